// Package tensors - Dense containers for per-pixel maps and class volumes.
package tensors

import (
	"image"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
)

// ErrShapeMismatch is returned when two tensors that must be spatially aligned are not.
var ErrShapeMismatch = errors.New("tensor shape mismatch")

// Plane is a single-channel H×W float32 map stored in row-major order.
type Plane struct {
	// Width is the number of columns.
	Width int `json:"width" yaml:"width"`
	// Height is the number of rows.
	Height int `json:"height" yaml:"height"`
	// Data holds Width*Height values, row by row.
	Data []float32 `json:"-" yaml:"-"`
}

// NewPlane allocates a zeroed plane.
//
// Arguments:
//   - width: The number of columns.
//   - height: The number of rows.
//
// Returns:
//   - *Plane: The zeroed plane.
func NewPlane(width, height int) *Plane {
	return &Plane{
		Width:  width,
		Height: height,
		Data:   make([]float32, width*height),
	}
}

// NewPlaneFrom wraps an existing backing slice without copying it.
//
// Arguments:
//   - width: The number of columns.
//   - height: The number of rows.
//   - data: The row-major backing slice, len(data) must equal width*height.
//
// Returns:
//   - *Plane: The plane sharing data.
//   - error: ErrShapeMismatch if the slice length does not match the dimensions.
func NewPlaneFrom(width, height int, data []float32) (*Plane, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Wrapf(ErrShapeMismatch, "invalid plane dimensions %dx%d", width, height)
	}
	if len(data) != width*height {
		return nil, errors.Wrapf(ErrShapeMismatch,
			"plane %dx%d needs %d values, got %d", width, height, width*height, len(data))
	}
	return &Plane{Width: width, Height: height, Data: data}, nil
}

// Fill returns a new plane with every pixel set to v.
func Fill(width, height int, v float32) *Plane {
	p := NewPlane(width, height)
	for i := range p.Data {
		p.Data[i] = v
	}
	return p
}

// At returns the value at column x, row y.
func (p *Plane) At(x, y int) float32 {
	return p.Data[y*p.Width+x]
}

// Set stores v at column x, row y.
func (p *Plane) Set(x, y int, v float32) {
	p.Data[y*p.Width+x] = v
}

// Size returns the plane dimensions as width×height.
func (p *Plane) Size() image.Point {
	return image.Point{X: p.Width, Y: p.Height}
}

// Clone returns a deep copy.
func (p *Plane) Clone() *Plane {
	out := NewPlane(p.Width, p.Height)
	copy(out.Data, p.Data)
	return out
}

// MinMax returns the smallest and largest value of the plane. NaN values are skipped.
//
// Returns:
//   - float32: The minimum.
//   - float32: The maximum.
func (p *Plane) MinMax() (float32, float32) {
	lo := math32.Inf(1)
	hi := math32.Inf(-1)
	for _, v := range p.Data {
		if math32.IsNaN(v) {
			continue
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// Scale returns a new plane with every value multiplied by k.
func (p *Plane) Scale(k float32) *Plane {
	out := NewPlane(p.Width, p.Height)
	for i, v := range p.Data {
		out.Data[i] = v * k
	}
	return out
}

// CheckSize reports an ErrShapeMismatch when the plane is not width×height.
//
// Arguments:
//   - name: A name used in the error message.
//   - width: The expected width.
//   - height: The expected height.
//
// Returns:
//   - error: nil when the plane matches.
func (p *Plane) CheckSize(name string, width, height int) error {
	if p == nil {
		return errors.Wrapf(ErrShapeMismatch, "%s: plane is nil", name)
	}
	if p.Width != width || p.Height != height || len(p.Data) != width*height {
		return errors.Wrapf(ErrShapeMismatch, "%s: expected %dx%d, got %dx%d (%d values)",
			name, width, height, p.Width, p.Height, len(p.Data))
	}
	return nil
}
