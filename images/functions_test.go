package images

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/nvr-ai/go-anomaly/tensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestResizePlanePreservesConstant validates that every filter keeps a constant map
// constant, in both directions, since weights are normalized per output pixel.
func TestResizePlanePreservesConstant(t *testing.T) {
	testCases := []struct {
		name   string
		filter ResampleFilter
		width  int
		height int
	}{
		{name: "nearest down", filter: NearestNeighborFilter, width: 16, height: 8},
		{name: "bilinear up", filter: BilinearFilter, width: 96, height: 48},
		{name: "bicubic up", filter: BicubicFilter, width: 128, height: 64},
		{name: "bicubic down", filter: BicubicFilter, width: 8, height: 4},
		{name: "lanczos up", filter: LanczosFilter, width: 100, height: 37},
	}

	src := tensors.Fill(32, 16, 0.398)
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dst := ResizePlane(src, tc.width, tc.height, tc.filter)
			require.Equal(t, tc.width, dst.Width)
			require.Equal(t, tc.height, dst.Height)
			for i, v := range dst.Data {
				if !assert.InDelta(t, 0.398, v, 1e-5, "pixel %d", i) {
					return
				}
			}
		})
	}
}

func TestResizePlaneSameSizeCopies(t *testing.T) {
	src := tensors.Fill(4, 4, 1)
	dst := ResizePlane(src, 4, 4, BicubicFilter)
	dst.Data[0] = 9
	assert.Equal(t, float32(1), src.Data[0])
}

func TestResizePlaneNearestDoesNotInventValues(t *testing.T) {
	src := tensors.NewPlane(8, 4)
	for i := range src.Data {
		src.Data[i] = float32(i % 3 * 100)
	}

	dst := ResizePlane(src, 3, 2, NearestNeighborFilter)
	for _, v := range dst.Data {
		assert.Contains(t, []float32{0, 100, 200}, v)
	}
}

func TestResizeLabelsPicksCenterPixel(t *testing.T) {
	// A 4x1 map downsampled by 4 takes the source pixel at index 2.
	src := tensors.NewLabelMap(4, 1)
	copy(src.Data, []int{1, 2, 3, 4})

	dst := ResizeLabels(src, 1, 1)
	assert.Equal(t, []int{3}, dst.Data)

	up := ResizeLabels(src, 8, 2)
	assert.Equal(t, []int{1, 1, 2, 2, 3, 3, 4, 4, 1, 1, 2, 2, 3, 3, 4, 4}, up.Data)
}

func TestToCHWAndNormalization(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.SetRGBA(0, 0, color.RGBA{R: 255, G: 0, B: 51, A: 255})
	img.SetRGBA(1, 0, color.RGBA{R: 0, G: 255, B: 0, A: 255})

	data := ToCHW(img)
	require.Len(t, data, 6)
	assert.InDeltaSlice(t, []float32{1, 0, 0, 1, 0.2, 0}, data, 1e-6)

	require.NoError(t, ImageNet.Apply(data))
	assert.InDelta(t, (1-0.485)/0.229, data[0], 1e-5)
	assert.InDelta(t, (0-0.456)/0.224, data[2], 1e-5)

	assert.Error(t, ImageNet.Apply(make([]float32, 4)))
}

func TestSymmetricRoundTrip(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(40 * x), G: uint8(100 * y), B: 200, A: 255})
		}
	}

	data := Symmetric.Normalized(img)
	for _, v := range data {
		assert.GreaterOrEqual(t, v, float32(-1))
		assert.LessOrEqual(t, v, float32(1))
	}

	// Nudge the values up slightly so truncation lands on the original byte.
	for i := range data {
		data[i] += 1e-4
	}
	back, err := FromSymmetricCHW(data, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, img.Pix, back.Pix)

	_, err = FromSymmetricCHW(data[:5], 3, 2)
	assert.Error(t, err)
}

func TestDecodeDetectsFormat(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 5, 3))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	assert.Equal(t, FormatPNG, DetectFormat(buf.Bytes()))
	assert.Equal(t, FormatJPEG, DetectFormat([]byte{0xFF, 0xD8, 0xFF, 0xE0}))
	assert.Equal(t, FormatWebP, DetectFormat([]byte("RIFF\x00\x00\x00\x00WEBPVP8 ")))

	img := &Image{Data: buf.Bytes()}
	decoded, err := DecodeImage(img)
	require.NoError(t, err)
	assert.Equal(t, 5, decoded.Bounds().Dx())
	assert.Equal(t, 5, img.Width)
	assert.Equal(t, 3, img.Height)
	assert.Equal(t, FormatPNG, img.Format)

	_, err = Decode(nil)
	assert.Error(t, err)
}

func TestResizeRGB(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 40, 20))
	out := ResizeRGB(src, 8, 4, BicubicFilter)
	assert.Equal(t, 8, out.Bounds().Dx())
	assert.Equal(t, 4, out.Bounds().Dy())
	assert.Same(t, src, ResizeRGB(src, 40, 20, BicubicFilter))
}
