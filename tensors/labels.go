package tensors

import (
	"image"

	"github.com/pkg/errors"
)

// LabelMap holds one integer class index per pixel.
type LabelMap struct {
	Width  int
	Height int
	Data   []int
}

// NewLabelMap allocates a label map filled with zeros.
func NewLabelMap(width, height int) *LabelMap {
	return &LabelMap{Width: width, Height: height, Data: make([]int, width*height)}
}

// At returns the label at column x, row y.
func (m *LabelMap) At(x, y int) int {
	return m.Data[y*m.Width+x]
}

// Set stores label v at column x, row y.
func (m *LabelMap) Set(x, y, v int) {
	m.Data[y*m.Width+x] = v
}

// Size returns the map dimensions as width×height.
func (m *LabelMap) Size() image.Point {
	return image.Point{X: m.Width, Y: m.Height}
}

// Clone returns a deep copy.
func (m *LabelMap) Clone() *LabelMap {
	out := NewLabelMap(m.Width, m.Height)
	copy(out.Data, m.Data)
	return out
}

// Replace returns a copy in which every pixel equal to from is set to to.
func (m *LabelMap) Replace(from, to int) *LabelMap {
	out := m.Clone()
	for i, v := range out.Data {
		if v == from {
			out.Data[i] = to
		}
	}
	return out
}

// Plane converts the labels to float32 values.
func (m *LabelMap) Plane() *Plane {
	p := NewPlane(m.Width, m.Height)
	for i, v := range m.Data {
		p.Data[i] = float32(v)
	}
	return p
}

// LabelMapFromPlane rounds every plane value to the nearest integer label.
func LabelMapFromPlane(p *Plane) *LabelMap {
	m := NewLabelMap(p.Width, p.Height)
	for i, v := range p.Data {
		m.Data[i] = int(v + 0.5)
	}
	return m
}

// OneHot encodes labels into a channels×H×W binary volume. Label k sets channel k.
//
// Arguments:
//   - m: The label map to encode.
//   - channels: The number of output channels, every label must lie in [0, channels).
//
// Returns:
//   - *Volume: The one-hot volume.
//   - error: An error if a label falls outside the channel range.
func OneHot(m *LabelMap, channels int) (*Volume, error) {
	if channels <= 0 {
		return nil, errors.Errorf("one-hot needs a positive channel count, got %d", channels)
	}
	plane := m.Width * m.Height
	data := make([]float32, channels*plane)
	for i, v := range m.Data {
		if v < 0 || v >= channels {
			return nil, errors.Errorf("label %d at pixel %d outside [0, %d)", v, i, channels)
		}
		data[v*plane+i] = 1
	}
	return NewVolume(channels, m.Height, m.Width, data)
}
