package images

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
)

// Normalization is a per-channel (x - mean) / std standardization applied to values in
// [0, 1].
type Normalization struct {
	Mean [3]float32 `json:"mean" yaml:"mean"`
	Std  [3]float32 `json:"std" yaml:"std"`
}

var (
	// ImageNet is the normalization used by the segmentation, perceptual and
	// dissimilarity networks.
	ImageNet = Normalization{
		Mean: [3]float32{0.485, 0.456, 0.406},
		Std:  [3]float32{0.229, 0.224, 0.225},
	}
	// Symmetric maps [0, 1] to [-1, 1], the range the synthesis network works in.
	Symmetric = Normalization{
		Mean: [3]float32{0.5, 0.5, 0.5},
		Std:  [3]float32{0.5, 0.5, 0.5},
	}
)

// ToCHW converts a raster into a 3×H×W tensor with values in [0, 1], channel order RGB.
//
// Arguments:
//   - img: The raster to convert.
//
// Returns:
//   - []float32: Channel-major values, 3*W*H long.
func ToCHW(img image.Image) []float32 {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	n := width * height
	data := make([]float32, 3*n)
	red := data[0:n]
	green := data[n : 2*n]
	blue := data[2*n : 3*n]

	Parallel(height, func(partStart, partEnd int) {
		for y := partStart; y < partEnd; y++ {
			for x := 0; x < width; x++ {
				r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
				i := y*width + x
				red[i] = float32(r>>8) / 255.0
				green[i] = float32(g>>8) / 255.0
				blue[i] = float32(bl>>8) / 255.0
			}
		}
	})
	return data
}

// Apply standardizes a 3×H×W tensor in place.
//
// Arguments:
//   - data: Channel-major values in [0, 1].
//
// Returns:
//   - error: An error if the tensor is not three equal channels.
func (n Normalization) Apply(data []float32) error {
	if len(data)%3 != 0 || len(data) == 0 {
		return errors.Errorf("expected a 3-channel tensor, got %d values", len(data))
	}
	pixels := len(data) / 3
	for c := 0; c < 3; c++ {
		mean, std := n.Mean[c], n.Std[c]
		channel := data[c*pixels : (c+1)*pixels]
		for i := range channel {
			channel[i] = (channel[i] - mean) / std
		}
	}
	return nil
}

// Normalized converts a raster into a standardized 3×H×W tensor.
func (n Normalization) Normalized(img image.Image) []float32 {
	data := ToCHW(img)
	// ToCHW always yields three channels.
	_ = n.Apply(data)
	return data
}

// FromSymmetricCHW converts a 3×H×W tensor in [-1, 1] back into an 8-bit raster
// using (v + 1) / 2 * 255, truncated toward zero after clamping.
//
// Arguments:
//   - data: Channel-major values.
//   - width: The raster width.
//   - height: The raster height.
//
// Returns:
//   - *image.RGBA: The raster.
//   - error: An error if the data does not hold 3*width*height values.
func FromSymmetricCHW(data []float32, width, height int) (*image.RGBA, error) {
	n := width * height
	if len(data) != 3*n {
		return nil, errors.Errorf("expected %d values for a 3x%dx%d tensor, got %d",
			3*n, height, width, len(data))
	}
	out := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := y*width + x
			out.SetRGBA(x, y, color.RGBA{
				R: toByte(data[i]),
				G: toByte(data[n+i]),
				B: toByte(data[2*n+i]),
				A: 255,
			})
		}
	}
	return out, nil
}

func toByte(v float32) uint8 {
	return uint8(Clamp(float64((v+1)/2*255), 0, 255))
}
