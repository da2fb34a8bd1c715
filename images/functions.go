// Package images - provides idempotent resampling and conversion operations for the
// rasters and per-pixel maps that flow through the anomaly pipeline.
package images

import (
	"math"
	"runtime"
	"sync"

	"github.com/nvr-ai/go-anomaly/tensors"
	"github.com/pkg/errors"
)

// ResampleFilter defines the resampling algorithm used for scaling.
type ResampleFilter int

const (
	// NearestNeighborFilter uses nearest-neighbor interpolation. Required for label and
	// mask-like maps so no new values are invented.
	NearestNeighborFilter ResampleFilter = iota
	// BilinearFilter uses bilinear interpolation.
	BilinearFilter
	// BicubicFilter uses Catmull-Rom bicubic interpolation.
	BicubicFilter
	// LanczosFilter uses Lanczos resampling with a=3.
	LanczosFilter
)

// String returns the filter name.
func (f ResampleFilter) String() string {
	switch f {
	case NearestNeighborFilter:
		return "nearest"
	case BilinearFilter:
		return "bilinear"
	case BicubicFilter:
		return "bicubic"
	case LanczosFilter:
		return "lanczos"
	default:
		return "unknown"
	}
}

// MarshalText encodes the filter by name.
func (f ResampleFilter) MarshalText() ([]byte, error) {
	if f.String() == "unknown" {
		return nil, errors.Errorf("unknown resample filter %d", int(f))
	}
	return []byte(f.String()), nil
}

// UnmarshalText decodes a filter name as written by MarshalText.
func (f *ResampleFilter) UnmarshalText(text []byte) error {
	for _, candidate := range []ResampleFilter{
		NearestNeighborFilter, BilinearFilter, BicubicFilter, LanczosFilter,
	} {
		if candidate.String() == string(text) {
			*f = candidate
			return nil
		}
	}
	return errors.Errorf("unknown resample filter %q", string(text))
}

// kernel represents a resampling kernel function.
type kernel struct {
	// Support is the radius of the kernel in source pixels.
	Support float64
	// At evaluates the kernel at distance x.
	At func(x float64) float64
}

// kernels maps each filter type to its kernel function.
var kernels = map[ResampleFilter]kernel{
	BilinearFilter: {
		Support: 1.0,
		At: func(x float64) float64 {
			x = math.Abs(x)
			if x < 1.0 {
				return 1.0 - x
			}
			return 0.0
		},
	},
	BicubicFilter: {
		Support: 2.0,
		At: func(x float64) float64 {
			// Keys cubic with a=-0.5 (Catmull-Rom).
			x = math.Abs(x)
			if x < 1.0 {
				return (1.5*x-2.5)*x*x + 1.0
			}
			if x < 2.0 {
				return ((-0.5*x+2.5)*x-4.0)*x + 2.0
			}
			return 0.0
		},
	},
	LanczosFilter: {
		Support: 3.0,
		At: func(x float64) float64 {
			if x == 0.0 {
				return 1.0
			}
			x = math.Abs(x)
			if x >= 3.0 {
				return 0.0
			}
			pix := math.Pi * x
			return (math.Sin(pix) / pix) * (math.Sin(pix/3.0) / (pix / 3.0))
		},
	},
}

// Contribution represents a single source pixel's contribution to an output pixel.
type Contribution struct {
	pixel  int
	weight float64
}

// ResizePlane resamples a single-channel float map to width×height.
//
// The implementation uses separable filtering, horizontal pass first, and widens the
// kernel support when downsampling so every source pixel contributes. Weights are
// normalized per output pixel, so a constant plane stays constant at any size.
//
// Arguments:
//   - src: The plane to resize.
//   - width: The target width in pixels.
//   - height: The target height in pixels.
//   - filter: The resampling filter.
//
// Returns:
//   - *tensors.Plane: A new plane; src is never modified.
//
// @example
// small := ResizePlane(entropy, 512, 256, NearestNeighborFilter)
func ResizePlane(src *tensors.Plane, width, height int, filter ResampleFilter) *tensors.Plane {
	if width <= 0 || height <= 0 {
		return tensors.NewPlane(1, 1)
	}
	if src.Width == width && src.Height == height {
		return src.Clone()
	}
	if filter == NearestNeighborFilter {
		return resizePlaneNearest(src, width, height)
	}
	if _, ok := kernels[filter]; !ok {
		filter = BicubicFilter
	}

	intermediate := tensors.NewPlane(width, src.Height)
	resizeHorizontal(src, intermediate, filter)

	dst := tensors.NewPlane(width, height)
	resizeVertical(intermediate, dst, filter)
	return dst
}

// ResizeLabels resamples a label map with nearest-neighbor sampling.
//
// Arguments:
//   - src: The label map.
//   - width: The target width.
//   - height: The target height.
//
// Returns:
//   - *tensors.LabelMap: A new label map containing only labels present in src.
func ResizeLabels(src *tensors.LabelMap, width, height int) *tensors.LabelMap {
	dst := tensors.NewLabelMap(width, height)
	xs := nearestIndices(src.Width, width)
	ys := nearestIndices(src.Height, height)
	Parallel(height, func(partStart, partEnd int) {
		for y := partStart; y < partEnd; y++ {
			row := ys[y] * src.Width
			for x := 0; x < width; x++ {
				dst.Data[y*width+x] = src.Data[row+xs[x]]
			}
		}
	})
	return dst
}

// nearestIndices maps every destination index to the source pixel whose area contains
// the destination pixel center.
func nearestIndices(srcSize, dstSize int) []int {
	scale := float64(srcSize) / float64(dstSize)
	idx := make([]int, dstSize)
	for i := range idx {
		s := int((float64(i) + 0.5) * scale)
		if s >= srcSize {
			s = srcSize - 1
		}
		idx[i] = s
	}
	return idx
}

func resizePlaneNearest(src *tensors.Plane, width, height int) *tensors.Plane {
	dst := tensors.NewPlane(width, height)
	xs := nearestIndices(src.Width, width)
	ys := nearestIndices(src.Height, height)
	Parallel(height, func(partStart, partEnd int) {
		for y := partStart; y < partEnd; y++ {
			row := ys[y] * src.Width
			for x := 0; x < width; x++ {
				dst.Data[y*width+x] = src.Data[row+xs[x]]
			}
		}
	})
	return dst
}

// contributions pre-calculates the source weights of every output index along one axis.
func contributions(srcSize, dstSize int, filter ResampleFilter) [][]Contribution {
	k := kernels[filter]
	scale := float64(srcSize) / float64(dstSize)
	filterScale := math.Max(scale, 1.0)
	support := k.Support * filterScale

	out := make([][]Contribution, dstSize)
	for i := 0; i < dstSize; i++ {
		center := (float64(i) + 0.5) * scale

		left := int(math.Floor(center - support))
		right := int(math.Ceil(center + support))
		if left < 0 {
			left = 0
		}
		if right >= srcSize {
			right = srcSize - 1
		}

		var weights []Contribution
		var sum float64
		for s := left; s <= right; s++ {
			distance := math.Abs(float64(s) + 0.5 - center)
			weight := k.At(distance / filterScale)
			if weight != 0 {
				weights = append(weights, Contribution{pixel: s, weight: weight})
				sum += weight
			}
		}
		if sum != 0 {
			for j := range weights {
				weights[j].weight /= sum
			}
		}
		out[i] = weights
	}
	return out
}

func resizeHorizontal(src, dst *tensors.Plane, filter ResampleFilter) {
	cols := contributions(src.Width, dst.Width, filter)
	Parallel(src.Height, func(partStart, partEnd int) {
		for y := partStart; y < partEnd; y++ {
			srcRow := src.Data[y*src.Width : (y+1)*src.Width]
			for x := 0; x < dst.Width; x++ {
				var acc float64
				for _, c := range cols[x] {
					acc += float64(srcRow[c.pixel]) * c.weight
				}
				dst.Data[y*dst.Width+x] = float32(acc)
			}
		}
	})
}

func resizeVertical(src, dst *tensors.Plane, filter ResampleFilter) {
	rows := contributions(src.Height, dst.Height, filter)
	Parallel(dst.Width, func(partStart, partEnd int) {
		for x := partStart; x < partEnd; x++ {
			for y := 0; y < dst.Height; y++ {
				var acc float64
				for _, c := range rows[y] {
					acc += float64(src.Data[c.pixel*src.Width+x]) * c.weight
				}
				dst.Data[y*dst.Width+x] = float32(acc)
			}
		}
	})
}

// Clamp restricts a value to the range [min, max].
//
// @example
// clamped := Clamp(300.5, 0, 255) // Returns 255
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// Parallel splits [0, dataSize) into one partition per CPU and runs fn on each.
// Small inputs run on the calling goroutine.
//
// @example
//
//	Parallel(height, func(start, end int) {
//	    for y := start; y < end; y++ {
//	        // Process row y
//	    }
//	})
func Parallel(dataSize int, fn func(partStart, partEnd int)) {
	numGoroutines := runtime.NumCPU()
	if dataSize < numGoroutines*2 {
		fn(0, dataSize)
		return
	}

	partSize := dataSize / numGoroutines

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		partStart := i * partSize
		partEnd := partStart + partSize
		if i == numGoroutines-1 {
			partEnd = dataSize
		}
		go func(start, end int) {
			defer wg.Done()
			fn(start, end)
		}(partStart, partEnd)
	}
	wg.Wait()
}
