// Package images - Image definition for processing utilities.
package images

import (
	"bytes"
	"image"
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder

	"github.com/chai2010/webp"
	"github.com/pkg/errors"
)

// Image represents an encoded image with a format, data, width, and height.
type Image struct {
	// The format of the image.
	Format ImageFormat `json:"format" yaml:"format"`
	// The data of the image.
	Data []byte `json:"data" yaml:"data"`
	// The width of the image.
	Width int `json:"width" yaml:"width"`
	// The height of the image.
	Height int `json:"height" yaml:"height"`
}

// ImageFormat represents supported image formats
type ImageFormat string

// ImageFormat constants
const (
	// FormatJPEG is the JPEG image format.
	FormatJPEG ImageFormat = "jpeg"
	// FormatWebP is the WebP image format.
	FormatWebP ImageFormat = "webp"
	// FormatPNG is the PNG image format.
	FormatPNG ImageFormat = "png"
	// FormatOther is anything the standard decoders do not handle (TIFF, HEIF, ...).
	FormatOther ImageFormat = "other"
)

// DetectFormat sniffs the container format from the leading magic bytes.
func DetectFormat(data []byte) ImageFormat {
	switch {
	case len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return FormatJPEG
	case len(data) >= 8 && bytes.Equal(data[:8], []byte("\x89PNG\r\n\x1a\n")):
		return FormatPNG
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return FormatWebP
	default:
		return FormatOther
	}
}

// Decode decodes raw bytes into an image.Image.
//
// JPEG and PNG go through the standard library decoders, WebP through chai2010/webp,
// and everything else is transcoded by libvips.
//
// Arguments:
//   - data: The encoded image.
//
// Returns:
//   - image.Image: The decoded raster.
//   - error: An error if the data is empty or cannot be decoded.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, errors.New("empty image data")
	}

	switch DetectFormat(data) {
	case FormatWebP:
		img, err := webp.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, errors.Wrap(err, "failed to decode WebP")
		}
		return img, nil
	case FormatJPEG, FormatPNG:
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, errors.Wrap(err, "failed to decode image")
		}
		return img, nil
	default:
		return decodeWithVips(data)
	}
}

// DecodeImage decodes an Image and fills in its dimensions.
func DecodeImage(img *Image) (image.Image, error) {
	if img == nil {
		return nil, errors.New("image is nil")
	}
	decoded, err := Decode(img.Data)
	if err != nil {
		return nil, err
	}
	img.Format = DetectFormat(img.Data)
	img.Width = decoded.Bounds().Dx()
	img.Height = decoded.Bounds().Dy()
	return decoded, nil
}
