package images

import (
	"bytes"
	"image"
	"image/png"

	"github.com/cshum/vipsgen/vips"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// ResizeRGB resizes a raster to exactly width×height, ignoring the aspect ratio.
//
// Arguments:
//   - img: The source raster.
//   - width: The target width.
//   - height: The target height.
//   - filter: NearestNeighborFilter, BilinearFilter, BicubicFilter or LanczosFilter.
//
// Returns:
//   - image.Image: The resized raster.
//
// @example
// working := ResizeRGB(src, 2048, 1024, BicubicFilter)
func ResizeRGB(img image.Image, width, height int, filter ResampleFilter) image.Image {
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height && b.Min == (image.Point{}) {
		return img
	}
	return resize.Resize(uint(width), uint(height), img, interpolation(filter))
}

func interpolation(filter ResampleFilter) resize.InterpolationFunction {
	switch filter {
	case NearestNeighborFilter:
		return resize.NearestNeighbor
	case BilinearFilter:
		return resize.Bilinear
	case LanczosFilter:
		return resize.Lanczos3
	default:
		return resize.Bicubic
	}
}

// decodeWithVips loads formats the Go decoders do not know and re-encodes them as PNG.
func decodeWithVips(data []byte) (image.Image, error) {
	img, err := vips.NewImageFromBuffer(data, &vips.LoadOptions{
		Access: vips.AccessSequential,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to load image")
	}
	defer img.Close()

	encoded, err := img.PngsaveBuffer(&vips.PngsaveBufferOptions{})
	if err != nil || len(encoded) == 0 {
		return nil, errors.New("failed to transcode image to PNG")
	}

	decoded, err := png.Decode(bytes.NewReader(encoded))
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode transcoded PNG")
	}
	return decoded, nil
}
