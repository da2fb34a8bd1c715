package uncertainty

import (
	"github.com/chewxy/math32"
	"github.com/nvr-ai/go-anomaly/tensors"
	"github.com/pkg/errors"
)

// Channels holds both uncertainty channels of one image, each in [0, 255].
type Channels struct {
	// Entropy is the normalized per-pixel softmax entropy.
	Entropy *tensors.Plane
	// Distance is one minus the normalized top-1/top-2 margin.
	Distance *tensors.Plane
}

// RawEntropy computes -Σ_c P_c log P_c for every pixel. Zero probabilities contribute
// zero instead of NaN.
//
// Arguments:
//   - probs: The class probability map.
//
// Returns:
//   - *tensors.Plane: Entropy in nats, within [0, log C].
func RawEntropy(probs *tensors.Volume) *tensors.Plane {
	n := probs.Height * probs.Width
	data := probs.Data()
	out := tensors.NewPlane(probs.Width, probs.Height)
	for i := 0; i < n; i++ {
		var h float32
		for c := 0; c < probs.Channels; c++ {
			if p := data[c*n+i]; p > 0 {
				h -= p * math32.Log(p)
			}
		}
		out.Data[i] = h
	}
	return out
}

// Entropy returns the entropy channel normalized to [0, 255].
func Entropy(probs *tensors.Volume) *tensors.Plane {
	return ToByteRange(RawEntropy(probs))
}

// Margin returns top1 - top2 for every pixel.
func Margin(probs *tensors.Volume) *tensors.Plane {
	top1, top2 := probs.TopTwo()
	out := tensors.NewPlane(probs.Width, probs.Height)
	for i := range out.Data {
		out.Data[i] = top1.Data[i] - top2.Data[i]
	}
	return out
}

// SoftmaxDistance returns (1 - Normalize(top1 - top2)) * 255. Confident pixels score
// low, ambiguous pixels high.
func SoftmaxDistance(probs *tensors.Volume) *tensors.Plane {
	norm := Normalize(Margin(probs))
	out := tensors.NewPlane(norm.Width, norm.Height)
	for i, v := range norm.Data {
		out.Data[i] = (1 - v) * ByteRange
	}
	return out
}

// Extract computes both channels from the class probability map.
//
// Arguments:
//   - probs: The class probability map, C×H×W.
//
// Returns:
//   - *Channels: Entropy and softmax distance, both H×W in [0, 255].
//   - error: An error if the map has fewer than two classes.
func Extract(probs *tensors.Volume) (*Channels, error) {
	if probs == nil {
		return nil, errors.New("probability map is nil")
	}
	if probs.Channels < 2 {
		return nil, errors.Errorf("uncertainty needs at least two classes, got %d", probs.Channels)
	}
	return &Channels{
		Entropy:  Entropy(probs),
		Distance: SoftmaxDistance(probs),
	}, nil
}
