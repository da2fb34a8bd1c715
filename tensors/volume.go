package tensors

import (
	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Volume is a C×H×W float32 tensor, the layout produced by the segmentation and
// dissimilarity networks once the batch axis is dropped.
type Volume struct {
	Channels int
	Height   int
	Width    int
	dense    *tensor.Dense
}

// NewVolume wraps data in a C×H×W dense tensor without copying it.
//
// Arguments:
//   - channels: The size of the class axis.
//   - height: The number of rows.
//   - width: The number of columns.
//   - data: The channel-major backing slice.
//
// Returns:
//   - *Volume: The volume.
//   - error: ErrShapeMismatch if the slice length does not match.
func NewVolume(channels, height, width int, data []float32) (*Volume, error) {
	if channels <= 0 || height <= 0 || width <= 0 {
		return nil, errors.Wrapf(ErrShapeMismatch, "invalid volume shape %dx%dx%d", channels, height, width)
	}
	if len(data) != channels*height*width {
		return nil, errors.Wrapf(ErrShapeMismatch, "volume %dx%dx%d needs %d values, got %d",
			channels, height, width, channels*height*width, len(data))
	}
	return &Volume{
		Channels: channels,
		Height:   height,
		Width:    width,
		dense:    tensor.New(tensor.WithShape(channels, height, width), tensor.WithBacking(data)),
	}, nil
}

// Dense exposes the underlying gorgonia tensor.
func (v *Volume) Dense() *tensor.Dense {
	return v.dense
}

// Data returns the channel-major backing slice.
func (v *Volume) Data() []float32 {
	return v.dense.Data().([]float32)
}

// Channel returns the backing slice of channel c as a plane. The plane shares memory
// with the volume.
func (v *Volume) Channel(c int) *Plane {
	n := v.Height * v.Width
	return &Plane{Width: v.Width, Height: v.Height, Data: v.Data()[c*n : (c+1)*n]}
}

// Argmax returns, for every pixel, the index of the largest channel. Ties resolve to the
// lowest index.
func (v *Volume) Argmax() *LabelMap {
	n := v.Height * v.Width
	data := v.Data()
	out := NewLabelMap(v.Width, v.Height)
	for i := 0; i < n; i++ {
		best := 0
		bestVal := data[i]
		for c := 1; c < v.Channels; c++ {
			if val := data[c*n+i]; val > bestVal {
				best = c
				bestVal = val
			}
		}
		out.Data[i] = best
	}
	return out
}

// TopTwo returns the largest and second-largest channel value of every pixel.
//
// Returns:
//   - *Plane: Per-pixel top-1 values.
//   - *Plane: Per-pixel top-2 values (equal to top-1 for a single channel volume).
func (v *Volume) TopTwo() (*Plane, *Plane) {
	n := v.Height * v.Width
	data := v.Data()
	top1 := NewPlane(v.Width, v.Height)
	top2 := NewPlane(v.Width, v.Height)
	for i := 0; i < n; i++ {
		first, second := math32.Inf(-1), math32.Inf(-1)
		for c := 0; c < v.Channels; c++ {
			val := data[c*n+i]
			switch {
			case val > first:
				first, second = val, first
			case val > second:
				second = val
			}
		}
		if v.Channels == 1 {
			second = first
		}
		top1.Data[i] = first
		top2.Data[i] = second
	}
	return top1, top2
}

// Softmax normalizes the class axis of v into probabilities.
//
// The per-pixel maximum is subtracted before the graph runs so large logits cannot
// overflow exp in float32; the shift does not change the result.
//
// Arguments:
//   - v: The logits volume.
//
// Returns:
//   - *Volume: A new volume whose channels sum to one at every pixel.
//   - error: An error if the graph fails to build or run.
func Softmax(v *Volume) (*Volume, error) {
	n := v.Height * v.Width
	src := v.Data()
	shifted := make([]float32, len(src))
	for i := 0; i < n; i++ {
		hi := math32.Inf(-1)
		for c := 0; c < v.Channels; c++ {
			if val := src[c*n+i]; val > hi {
				hi = val
			}
		}
		for c := 0; c < v.Channels; c++ {
			shifted[c*n+i] = src[c*n+i] - hi
		}
	}

	g := G.NewGraph()
	logits := G.NewTensor(g, tensor.Float32, 3,
		G.WithShape(v.Channels, v.Height, v.Width),
		G.WithName("logits"),
		G.WithValue(tensor.New(tensor.WithShape(v.Channels, v.Height, v.Width), tensor.WithBacking(shifted))),
	)
	probs, err := G.SoftMax(logits, 0)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build softmax graph")
	}

	vm := G.NewTapeMachine(g)
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		return nil, errors.Wrap(err, "failed to run softmax graph")
	}

	result, ok := probs.Value().Data().([]float32)
	if !ok {
		return nil, errors.Errorf("unexpected softmax output type %T", probs.Value().Data())
	}
	out := make([]float32, len(result))
	copy(out, result)
	return NewVolume(v.Channels, v.Height, v.Width, out)
}
