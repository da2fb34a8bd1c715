package labels

import (
	"github.com/nvr-ai/go-anomaly/images"
	"github.com/nvr-ai/go-anomaly/tensors"
	"github.com/pkg/errors"
)

const (
	// Sentinel is the 8-bit value that marks pixels without a usable label.
	Sentinel = 255
	// DefaultUnknownID is the "unknown" class of the synthesis network (its label count).
	DefaultUnknownID = 35
)

// Remapper turns a train-ID label map into the conditioning input of the synthesis
// network.
type Remapper struct {
	// Table maps train IDs to dataset label IDs.
	Table *Table
	// UnknownID replaces sentinel pixels after resizing.
	UnknownID int
	// Width and Height are the synthesis working resolution.
	Width  int
	Height int
}

// NewRemapper creates a remapper for the given table and working resolution.
//
// Arguments:
//   - table: The label table, Cityscapes when nil.
//   - unknownID: The class that replaces sentinel pixels.
//   - width: The working width.
//   - height: The working height.
//
// Returns:
//   - *Remapper: The remapper.
//   - error: An error if the resolution is not positive.
func NewRemapper(table *Table, unknownID, width, height int) (*Remapper, error) {
	if table == nil {
		table = Cityscapes
	}
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid remapper resolution %dx%d", width, height)
	}
	return &Remapper{Table: table, UnknownID: unknownID, Width: width, Height: height}, nil
}

// ToLabelIDs replaces every train ID with its dataset label ID. Pixels whose train ID
// is not in the table become 0. IDs are stored as 8-bit values, so -1 wraps to the
// sentinel.
//
// Arguments:
//   - trainIDs: The arg-max label map.
//
// Returns:
//   - *tensors.LabelMap: A new map in dataset-ID space.
func (r *Remapper) ToLabelIDs(trainIDs *tensors.LabelMap) *tensors.LabelMap {
	out := tensors.NewLabelMap(trainIDs.Width, trainIDs.Height)
	for i, train := range trainIDs.Data {
		if id, ok := r.Table.LabelID(train); ok {
			out.Data[i] = int(uint8(id))
		}
	}
	return out
}

// Conditioning remaps, resizes (nearest) to the working resolution and replaces
// sentinel pixels with UnknownID.
//
// Arguments:
//   - trainIDs: The arg-max label map at segmentation resolution.
//
// Returns:
//   - *tensors.LabelMap: The remapped label map at working resolution.
func (r *Remapper) Conditioning(trainIDs *tensors.LabelMap) *tensors.LabelMap {
	ids := r.ToLabelIDs(trainIDs)
	small := images.ResizeLabels(ids, r.Width, r.Height)
	return small.Replace(Sentinel, r.UnknownID)
}
