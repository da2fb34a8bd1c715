// Package labels - Label ID tables and the train-ID → dataset-ID remapping that
// conditions the synthesis network.
package labels

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// IgnoreTrainID marks labels that are not part of the training label set.
const IgnoreTrainID = 255

// Label is one row of a dataset label table.
type Label struct {
	// Name is the human readable class name.
	Name string `json:"name" yaml:"name"`
	// ID is the dataset label ID.
	ID int `json:"id" yaml:"id"`
	// TrainID is the ID the segmentation network was trained on.
	TrainID int `json:"train_id" yaml:"train_id"`
}

// Table maps segmentation train IDs back to dataset label IDs.
type Table struct {
	labels  []Label
	inverse map[int]int
}

// NewTable builds a table from its rows. When several rows share a train ID the last
// row wins, so row order matters.
//
// Arguments:
//   - rows: The label rows in table order.
//
// Returns:
//   - *Table: The table.
func NewTable(rows []Label) *Table {
	t := &Table{
		labels:  append([]Label(nil), rows...),
		inverse: make(map[int]int, len(rows)),
	}
	for _, l := range rows {
		t.inverse[l.TrainID] = l.ID
	}
	return t
}

// Labels returns a copy of the table rows.
func (t *Table) Labels() []Label {
	return append([]Label(nil), t.labels...)
}

// NumTrainClasses counts the distinct train IDs other than IgnoreTrainID.
func (t *Table) NumTrainClasses() int {
	n := 0
	for id := range t.inverse {
		if id != IgnoreTrainID {
			n++
		}
	}
	return n
}

// LabelID returns the dataset label ID of a train ID.
func (t *Table) LabelID(trainID int) (int, bool) {
	id, ok := t.inverse[trainID]
	return id, ok
}

// tableFile is the on-disk layout read by LoadTable.
type tableFile struct {
	Labels []Label `yaml:"labels"`
}

// LoadTable reads a YAML label table of the form:
//
//	labels:
//	  - {name: road, id: 7, train_id: 0}
//
// Arguments:
//   - path: The YAML file.
//
// Returns:
//   - *Table: The table.
//   - error: An error if the file is missing, malformed or empty.
func LoadTable(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read label table %s", path)
	}
	var f tableFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, errors.Wrapf(err, "failed to parse label table %s", path)
	}
	if len(f.Labels) == 0 {
		return nil, errors.Errorf("label table %s has no labels", path)
	}
	return NewTable(f.Labels), nil
}

// Cityscapes is the Cityscapes label table in dataset order.
var Cityscapes = NewTable([]Label{
	{Name: "license plate", ID: -1, TrainID: IgnoreTrainID},
	{Name: "unlabeled", ID: 0, TrainID: IgnoreTrainID},
	{Name: "ego vehicle", ID: 1, TrainID: IgnoreTrainID},
	{Name: "rectification border", ID: 2, TrainID: IgnoreTrainID},
	{Name: "out of roi", ID: 3, TrainID: IgnoreTrainID},
	{Name: "static", ID: 4, TrainID: IgnoreTrainID},
	{Name: "dynamic", ID: 5, TrainID: IgnoreTrainID},
	{Name: "ground", ID: 6, TrainID: IgnoreTrainID},
	{Name: "road", ID: 7, TrainID: 0},
	{Name: "sidewalk", ID: 8, TrainID: 1},
	{Name: "parking", ID: 9, TrainID: IgnoreTrainID},
	{Name: "rail track", ID: 10, TrainID: IgnoreTrainID},
	{Name: "building", ID: 11, TrainID: 2},
	{Name: "wall", ID: 12, TrainID: 3},
	{Name: "fence", ID: 13, TrainID: 4},
	{Name: "guard rail", ID: 14, TrainID: IgnoreTrainID},
	{Name: "bridge", ID: 15, TrainID: IgnoreTrainID},
	{Name: "tunnel", ID: 16, TrainID: IgnoreTrainID},
	{Name: "pole", ID: 17, TrainID: 5},
	{Name: "polegroup", ID: 18, TrainID: IgnoreTrainID},
	{Name: "traffic light", ID: 19, TrainID: 6},
	{Name: "traffic sign", ID: 20, TrainID: 7},
	{Name: "vegetation", ID: 21, TrainID: 8},
	{Name: "terrain", ID: 22, TrainID: 9},
	{Name: "sky", ID: 23, TrainID: 10},
	{Name: "person", ID: 24, TrainID: 11},
	{Name: "rider", ID: 25, TrainID: 12},
	{Name: "car", ID: 26, TrainID: 13},
	{Name: "truck", ID: 27, TrainID: 14},
	{Name: "bus", ID: 28, TrainID: 15},
	{Name: "caravan", ID: 29, TrainID: IgnoreTrainID},
	{Name: "trailer", ID: 30, TrainID: IgnoreTrainID},
	{Name: "train", ID: 31, TrainID: 16},
	{Name: "motorcycle", ID: 32, TrainID: 17},
	{Name: "bicycle", ID: 33, TrainID: 18},
})
