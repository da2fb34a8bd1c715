package images

import (
	"image"

	"github.com/nvr-ai/go-anomaly/tensors"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ReadFile loads an image from disk through OpenCV, returning an RGB raster.
//
// Arguments:
//   - path: The image file path.
//
// Returns:
//   - image.Image: The decoded raster.
//   - error: An error if OpenCV cannot read the file.
func ReadFile(path string) (image.Image, error) {
	mat := gocv.IMRead(path, gocv.IMReadColor)
	defer mat.Close()
	if mat.Empty() {
		return nil, errors.Errorf("failed to read image %s", path)
	}
	img, err := mat.ToImage()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to convert %s", path)
	}
	return img, nil
}

// WriteHeatmap renders a [0, 1] score map with the jet colormap and writes it to path.
//
// Arguments:
//   - path: The output file, the extension selects the encoder.
//   - p: The score map.
//
// Returns:
//   - error: An error if the map cannot be encoded or written.
//
// Example:
//
// ```go
//
//	if err := WriteHeatmap("results/frame-1.png", score); err != nil {
//	    log.Printf("heatmap: %v", err)
//	}
//
// ```
func WriteHeatmap(path string, p *tensors.Plane) error {
	buf := make([]byte, len(p.Data))
	for i, v := range p.Data {
		buf[i] = uint8(Clamp(float64(v), 0, 1)*255 + 0.5)
	}

	gray, err := gocv.NewMatFromBytes(p.Height, p.Width, gocv.MatTypeCV8UC1, buf)
	if err != nil {
		return errors.Wrap(err, "failed to wrap score map")
	}
	defer gray.Close()

	colored := gocv.NewMat()
	defer colored.Close()
	gocv.ApplyColorMap(gray, &colored, gocv.ColormapJet)

	if ok := gocv.IMWrite(path, colored); !ok {
		return errors.Errorf("failed to write heatmap %s", path)
	}
	return nil
}
