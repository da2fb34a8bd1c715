package dissimilarity

import (
	"fmt"
	"path/filepath"

	"github.com/pkg/errors"
)

// Checkpoint locates the exported dissimilarity weights.
type Checkpoint struct {
	SaveFolder     string `json:"save_folder" yaml:"save_folder"`
	WhichEpoch     string `json:"which_epoch" yaml:"which_epoch"`
	ExperimentName string `json:"experiment_name" yaml:"experiment_name"`
}

// Path returns <save_folder>/<which_epoch>_net_<experiment_name>.onnx.
func (c Checkpoint) Path() string {
	return filepath.Join(c.SaveFolder, fmt.Sprintf("%s_net_%s.onnx", c.WhichEpoch, c.ExperimentName))
}

// Validate checks every field is set.
func (c Checkpoint) Validate() error {
	switch {
	case c.SaveFolder == "":
		return errors.New("dissimilarity save_folder is empty")
	case c.WhichEpoch == "":
		return errors.New("dissimilarity which_epoch is empty")
	case c.ExperimentName == "":
		return errors.New("dissimilarity experiment_name is empty")
	}
	return nil
}
