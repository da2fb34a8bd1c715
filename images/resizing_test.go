package images

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/chai2010/webp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getTestImage() image.Image {
	// A 100x100 red image.
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			img.Set(x, y, color.RGBA{R: 255, G: 0, B: 0, A: 255})
		}
	}

	return img
}

// Helper functions to create test data for different formats
func getJPEGBytes(t testing.TB) []byte {
	var buf bytes.Buffer
	err := jpeg.Encode(&buf, getTestImage(), nil)
	require.NoError(t, err)
	return buf.Bytes()
}

func getPNGBytes(t testing.TB) []byte {
	var buf bytes.Buffer
	err := png.Encode(&buf, getTestImage())
	require.NoError(t, err)
	return buf.Bytes()
}

func getWebPBytes(t testing.TB) []byte {
	var buf bytes.Buffer
	err := webp.Encode(&buf, getTestImage(), &webp.Options{Lossless: true})
	require.NoError(t, err)
	return buf.Bytes()
}

// TestDecodeThenResize decodes every supported container and brings it to the
// segmentation working resolution.
func TestDecodeThenResize(t *testing.T) {
	tests := []struct {
		name     string
		format   ImageFormat
		getBytes func(t testing.TB) []byte
	}{
		{name: "JPEG", format: FormatJPEG, getBytes: getJPEGBytes},
		{name: "PNG", format: FormatPNG, getBytes: getPNGBytes},
		{name: "WebP", format: FormatWebP, getBytes: getWebPBytes},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.getBytes(t)
			assert.Equal(t, tt.format, DetectFormat(data))

			img, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, 100, img.Bounds().Dx())

			out := ResizeRGB(img, 64, 32, BicubicFilter)
			assert.Equal(t, 64, out.Bounds().Dx())
			assert.Equal(t, 32, out.Bounds().Dy())

			r, g, _, _ := out.At(32, 16).RGBA()
			assert.Greater(t, r>>8, uint32(200), "red survives the resize")
			assert.Less(t, g>>8, uint32(30))
		})
	}
}

func TestResizeRGBFilters(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 1))
	src.Set(0, 0, color.RGBA{A: 255})
	src.Set(1, 0, color.RGBA{A: 255})
	src.Set(2, 0, color.RGBA{R: 255, A: 255})
	src.Set(3, 0, color.RGBA{R: 255, A: 255})

	for _, filter := range []ResampleFilter{NearestNeighborFilter, BilinearFilter, BicubicFilter, LanczosFilter} {
		out := ResizeRGB(src, 8, 1, filter)
		assert.Equal(t, 8, out.Bounds().Dx(), filter.String())
		r0, _, _, _ := out.At(0, 0).RGBA()
		r7, _, _, _ := out.At(7, 0).RGBA()
		assert.Less(t, r0, r7, filter.String())
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("not a jpeg"))
	assert.Error(t, err)

	jpegBytes := getJPEGBytes(t)
	_, err = Decode(jpegBytes[:len(jpegBytes)/4])
	assert.Error(t, err)
}

func BenchmarkDecodeJPEG(b *testing.B) {
	data := getJPEGBytes(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Decode(data); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecodeWebP(b *testing.B) {
	data := getWebPBytes(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Decode(data); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkResizeWorkingResolutions measures the two RGB resizes done per image.
func BenchmarkResizeWorkingResolutions(b *testing.B) {
	src := image.NewRGBA(image.Rect(0, 0, 1280, 720))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		working := ResizeRGB(src, 2048, 1024, BicubicFilter)
		_ = ResizeRGB(working, 512, 256, BicubicFilter)
	}
}
