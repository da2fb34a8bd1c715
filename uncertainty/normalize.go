// Package uncertainty - Per-pixel uncertainty channels derived from the segmentation
// softmax: entropy and the top-2 softmax distance.
package uncertainty

import (
	"github.com/chewxy/math32"
	"github.com/nvr-ai/go-anomaly/tensors"
)

// ByteRange is the upper bound of every normalized channel.
const ByteRange = 255

// Normalize rescales a plane with v' = (v - min(v)) / max(v).
//
// The divisor is the maximum and not the range, so when min(v) != 0 the result does
// not span [0, 1]. A zero or non-finite divisor yields an all-zero plane.
//
// Arguments:
//   - p: The plane to normalize, left untouched.
//
// Returns:
//   - *tensors.Plane: The normalized plane.
func Normalize(p *tensors.Plane) *tensors.Plane {
	lo, hi := p.MinMax()
	return scaled(p, lo, hi)
}

// RangeNormalize rescales a plane with v' = (v - min(v)) / (max(v) - min(v)), mapping it
// onto [0, 1]. A constant plane yields all zeros.
func RangeNormalize(p *tensors.Plane) *tensors.Plane {
	lo, hi := p.MinMax()
	return scaled(p, lo, hi-lo)
}

func scaled(p *tensors.Plane, offset, divisor float32) *tensors.Plane {
	out := tensors.NewPlane(p.Width, p.Height)
	if divisor == 0 || math32.IsNaN(divisor) || math32.IsInf(divisor, 0) ||
		math32.IsInf(offset, 0) {
		return out
	}
	for i, v := range p.Data {
		n := (v - offset) / divisor
		if math32.IsNaN(n) || math32.IsInf(n, 0) {
			n = 0
		}
		out.Data[i] = n
	}
	return out
}

// ToByteRange normalizes p with Normalize and scales it by 255.
func ToByteRange(p *tensors.Plane) *tensors.Plane {
	return Normalize(p).Scale(ByteRange)
}

// Quantize truncates every value to an integer in [0, 255], the way the channels are
// stored as 8-bit rasters before they are resized.
func Quantize(p *tensors.Plane) *tensors.Plane {
	out := tensors.NewPlane(p.Width, p.Height)
	for i, v := range p.Data {
		switch {
		case math32.IsNaN(v) || v <= 0:
			out.Data[i] = 0
		case v >= ByteRange:
			out.Data[i] = ByteRange
		default:
			out.Data[i] = math32.Floor(v)
		}
	}
	return out
}
