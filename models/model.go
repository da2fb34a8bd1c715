// Package models - Capability interfaces for the external model stages and their
// ONNX Runtime loader.
package models

import (
	"context"

	"github.com/nvr-ai/go-anomaly/features"
	"github.com/nvr-ai/go-anomaly/models/model"
	"github.com/nvr-ai/go-anomaly/tensors"
)

// Segmenter produces per-pixel class probabilities.
type Segmenter interface {
	// Segment takes an ImageNet-normalized 3×H×W image and returns C×H×W probabilities.
	Segment(ctx context.Context, img *tensors.Volume) (*tensors.Volume, error)
}

// Synthesizer reconstructs a photo from a label map.
type Synthesizer interface {
	// Synthesize returns a 3×H×W reconstruction in [-1, 1].
	Synthesize(ctx context.Context, in model.SynthesisInput) (*tensors.Volume, error)
}

// Dissimilarity scores disagreement between an image and its reconstruction.
type Dissimilarity interface {
	// Compare returns 2×H×W probabilities; channel 1 is the anomalous class.
	Compare(ctx context.Context, b *features.Bundle) (*tensors.Volume, error)
}

// PerceptualExtractor computes the perceptual difference of two images.
type PerceptualExtractor = features.PerceptualExtractor
