// Package features - Aligned evidence tensors for the dissimilarity stage.
package features

import (
	"context"

	"github.com/nvr-ai/go-anomaly/tensors"
	"github.com/pkg/errors"
)

const (
	// IgnoreClass is the one-hot channel that collects the segmentation ignore label.
	IgnoreClass = 20
	// SemanticChannels is the number of one-hot channels: 20 classes plus the ignore
	// bucket.
	SemanticChannels = IgnoreClass + 1
)

// PerceptualExtractor computes a per-pixel perceptual difference between two images.
type PerceptualExtractor interface {
	// Difference returns an unnormalized H×W difference map at the resolution of a.
	//
	// Both inputs are ImageNet-normalized 3×H×W tensors of the same size.
	Difference(ctx context.Context, a, b *tensors.Volume) (*tensors.Plane, error)
}

// Bundle holds every tensor the dissimilarity stage consumes for one image, all at
// the working resolution.
type Bundle struct {
	Width  int
	Height int
	// Image is the ImageNet-normalized original.
	Image *tensors.Volume
	// Synthesized is the ImageNet-normalized reconstruction.
	Synthesized *tensors.Volume
	// Semantic is the one-hot segmentation, SemanticChannels deep.
	Semantic *tensors.Volume
	// Entropy, Perceptual and Distance are in [0, 1].
	Entropy    *tensors.Plane
	Perceptual *tensors.Plane
	Distance   *tensors.Plane
}

// Validate checks that every tensor is present and sized Width×Height.
//
// Returns:
//   - error: ErrShapeMismatch (wrapped) naming the first misaligned tensor.
func (b *Bundle) Validate() error {
	volumes := []struct {
		name     string
		v        *tensors.Volume
		channels int
	}{
		{"image", b.Image, 3},
		{"synthesized", b.Synthesized, 3},
		{"semantic", b.Semantic, SemanticChannels},
	}
	for _, c := range volumes {
		if c.v == nil {
			return errors.Wrapf(tensors.ErrShapeMismatch, "%s is missing", c.name)
		}
		if c.v.Channels != c.channels || c.v.Width != b.Width || c.v.Height != b.Height {
			return errors.Wrapf(tensors.ErrShapeMismatch, "%s is %dx%dx%d, expected %dx%dx%d",
				c.name, c.v.Channels, c.v.Height, c.v.Width, c.channels, b.Height, b.Width)
		}
	}

	planes := []struct {
		name string
		p    *tensors.Plane
	}{
		{"entropy", b.Entropy},
		{"perceptual", b.Perceptual},
		{"distance", b.Distance},
	}
	for _, c := range planes {
		if c.p == nil {
			return errors.Wrapf(tensors.ErrShapeMismatch, "%s is missing", c.name)
		}
		if err := c.p.CheckSize(c.name, b.Width, b.Height); err != nil {
			return err
		}
	}
	return nil
}
