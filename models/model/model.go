// Package model - Shared definitions for the external model stages.
package model

import (
	"github.com/nvr-ai/go-anomaly/inference"
	"github.com/nvr-ai/go-anomaly/inference/providers"
	"github.com/nvr-ai/go-anomaly/tensors"
	"github.com/pkg/errors"
)

// Name is the unique identifier of a model stage.
type Name string

const (
	// ModelNameSegmentation is the semantic segmentation network.
	ModelNameSegmentation Name = "segmentation"
	// ModelNameSynthesis is the label-to-photo synthesis network.
	ModelNameSynthesis Name = "synthesis"
	// ModelNameDissimilarity is the dissimilarity network.
	ModelNameDissimilarity Name = "dissimilarity"
	// ModelNamePerceptual is the VGG19 perceptual difference network.
	ModelNamePerceptual Name = "perceptual"
)

// NewModelArgs is the arguments for creating a new model.
type NewModelArgs struct {
	Name     Name             `json:"name" yaml:"name"`
	Path     string           `json:"path" yaml:"path"`
	Width    int              `json:"width" yaml:"width"`
	Height   int              `json:"height" yaml:"height"`
	Inputs   []string         `json:"inputs" yaml:"inputs"`
	Outputs  []string         `json:"outputs" yaml:"outputs"`
	Provider providers.Config `json:"provider" yaml:"provider"`
}

// Validate checks the arguments carry a path, a positive resolution and the expected
// number of tensor names.
//
// Arguments:
//   - inputs: The number of input names the model needs.
//   - outputs: The number of output names the model needs.
//
// Returns:
//   - error: An error describing the first problem.
func (a NewModelArgs) Validate(inputs, outputs int) error {
	if a.Path == "" {
		return errors.Errorf("%s: model path is empty", a.Name)
	}
	if a.Width <= 0 || a.Height <= 0 {
		return errors.Errorf("%s: resolution must be positive, got %dx%d", a.Name, a.Width, a.Height)
	}
	if len(a.Inputs) != inputs {
		return errors.Errorf("%s: expected %d input names, got %d", a.Name, inputs, len(a.Inputs))
	}
	if len(a.Outputs) != outputs {
		return errors.Errorf("%s: expected %d output names, got %d", a.Name, outputs, len(a.Outputs))
	}
	return nil
}

// Spec returns a batch-1 tensor spec of the given depth at the model resolution.
func (a NewModelArgs) Spec(name string, channels int) inference.TensorSpec {
	return inference.TensorSpec{
		Name:  name,
		Shape: []int64{1, int64(channels), int64(a.Height), int64(a.Width)},
	}
}

// Session opens an ONNX Runtime session for the given tensor specs.
func (a NewModelArgs) Session(inputs, outputs []inference.TensorSpec) (*inference.Session, error) {
	s, err := inference.NewSession(inference.NewSessionArgs{
		ModelPath: a.Path,
		Inputs:    inputs,
		Outputs:   outputs,
		Provider:  a.Provider,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "error loading %s model", a.Name)
	}
	return s, nil
}

// SynthesisInput is what the synthesis network is conditioned on.
type SynthesisInput struct {
	// Label holds dataset label IDs at the synthesis resolution.
	Label *tensors.LabelMap
	// Instance stands in for an instance map; it is a copy of Label.
	Instance *tensors.LabelMap
	// Image is the original in [-1, 1], 3×H×W.
	Image *tensors.Volume
}

// CheckVolume reports an ErrShapeMismatch when v is not channels×height×width.
func CheckVolume(name string, v *tensors.Volume, channels, width, height int) error {
	if v == nil {
		return errors.Wrapf(tensors.ErrShapeMismatch, "%s is nil", name)
	}
	if v.Channels != channels || v.Width != width || v.Height != height {
		return errors.Wrapf(tensors.ErrShapeMismatch, "%s: expected %dx%dx%d, got %dx%dx%d",
			name, channels, height, width, v.Channels, v.Height, v.Width)
	}
	return nil
}

// CheckLabels reports an ErrShapeMismatch when m is not width×height.
func CheckLabels(name string, m *tensors.LabelMap, width, height int) error {
	if m == nil {
		return errors.Wrapf(tensors.ErrShapeMismatch, "%s is nil", name)
	}
	if m.Width != width || m.Height != height {
		return errors.Wrapf(tensors.ErrShapeMismatch, "%s: expected %dx%d, got %dx%d",
			name, width, height, m.Width, m.Height)
	}
	return nil
}

// Output checks a runner result carries n outputs of the given lengths.
func Output(name Name, outputs [][]float32, lengths ...int) error {
	if len(outputs) != len(lengths) {
		return errors.Errorf("%s: expected %d outputs, got %d", name, len(lengths), len(outputs))
	}
	for i, n := range lengths {
		if len(outputs[i]) != n {
			return errors.Wrapf(tensors.ErrShapeMismatch, "%s: output %d has %d values, expected %d",
				name, i, len(outputs[i]), n)
		}
	}
	return nil
}
