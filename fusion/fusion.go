// Package fusion - Blends the learned dissimilarity with segmentation entropy into the
// final anomaly score.
package fusion

import (
	"github.com/nvr-ai/go-anomaly/images"
	"github.com/nvr-ai/go-anomaly/tensors"
	"github.com/pkg/errors"
)

const (
	// AnomalyWeight scales the dissimilarity probability of the anomalous class.
	AnomalyWeight = 0.75
	// EntropyWeight scales the entropy channel.
	EntropyWeight = 0.25
)

// OutputFilter resamples the score map back to the input resolution.
const OutputFilter = images.BicubicFilter

// Blend computes AnomalyWeight*pAnom + EntropyWeight*entropy per pixel.
//
// Arguments:
//   - pAnom: The anomalous-class probability, in [0, 1].
//   - entropy: The entropy channel as fed to the dissimilarity stage, in [0, 1].
//
// Returns:
//   - *tensors.Plane: The blended map at the working resolution.
//   - error: ErrShapeMismatch (wrapped) when the maps differ in size.
func Blend(pAnom, entropy *tensors.Plane) (*tensors.Plane, error) {
	if pAnom == nil {
		return nil, errors.Wrap(tensors.ErrShapeMismatch, "anomaly probability is nil")
	}
	if err := entropy.CheckSize("entropy", pAnom.Width, pAnom.Height); err != nil {
		return nil, err
	}
	out := tensors.NewPlane(pAnom.Width, pAnom.Height)
	for i := range out.Data {
		out.Data[i] = AnomalyWeight*pAnom.Data[i] + EntropyWeight*entropy.Data[i]
	}
	return out, nil
}

// Fuse blends the two maps and resamples the result to width×height, clamped to [0, 1].
//
// Arguments:
//   - pAnom: The anomalous-class probability.
//   - entropy: The entropy channel in [0, 1].
//   - width: The original image width.
//   - height: The original image height.
//
// Returns:
//   - *tensors.Plane: The anomaly score map, width×height.
//   - error: An error on misaligned inputs or a non-positive target size.
func Fuse(pAnom, entropy *tensors.Plane, width, height int) (*tensors.Plane, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("output resolution must be positive, got %dx%d", width, height)
	}
	blended, err := Blend(pAnom, entropy)
	if err != nil {
		return nil, err
	}
	out := images.ResizePlane(blended, width, height, OutputFilter)
	for i, v := range out.Data {
		out.Data[i] = float32(images.Clamp(float64(v), 0, 1))
	}
	return out, nil
}
