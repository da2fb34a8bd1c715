package features

import (
	"context"
	"fmt"
	"image"

	"github.com/nvr-ai/go-anomaly/images"
	"github.com/nvr-ai/go-anomaly/labels"
	"github.com/nvr-ai/go-anomaly/tensors"
	"github.com/nvr-ai/go-anomaly/uncertainty"
	"github.com/pkg/errors"
)

// Normalization names how the perceptual difference is scaled to [0, 255].
type Normalization string

const (
	// NormalizeMax divides by the maximum after subtracting the minimum.
	NormalizeMax Normalization = "max"
	// NormalizeRange divides by max - min.
	NormalizeRange Normalization = "range"
)

// Config controls the working resolution and the resampling filters.
type Config struct {
	// Width and Height are the working resolution of the dissimilarity stage.
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
	// ImageFilter resamples the original and the reconstruction.
	ImageFilter images.ResampleFilter `json:"image_filter" yaml:"image_filter"`
	// PerceptualNormalization selects the perceptual channel normalizer.
	PerceptualNormalization Normalization `json:"perceptual_normalization" yaml:"perceptual_normalization"`
}

// DefaultConfig returns 512×256 with bicubic image resampling and max-divisor
// normalization.
func DefaultConfig() Config {
	return Config{
		Width:                   images.SynthesisResolution.Pixels.Width,
		Height:                  images.SynthesisResolution.Pixels.Height,
		ImageFilter:             images.BicubicFilter,
		PerceptualNormalization: NormalizeMax,
	}
}

// Validate checks the resolution and the normalization name.
func (c Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return errors.Errorf("working resolution must be positive, got %dx%d", c.Width, c.Height)
	}
	if c.ImageFilter == images.NearestNeighborFilter {
		return errors.New("image filter must not be nearest")
	}
	switch c.PerceptualNormalization {
	case NormalizeMax, NormalizeRange:
	default:
		return errors.Errorf("unknown perceptual normalization %q", c.PerceptualNormalization)
	}
	return nil
}

// Inputs are the upstream products for one image.
type Inputs struct {
	// Image is the original at segmentation resolution.
	Image image.Image
	// Synthesized is the reconstruction as an 8-bit raster.
	Synthesized image.Image
	// TrainIDs is the segmentation label map.
	TrainIDs *tensors.LabelMap
	// Uncertainty holds entropy and distance in [0, 255] at segmentation resolution.
	Uncertainty *uncertainty.Channels
}

// Builder turns upstream products into an aligned Bundle.
type Builder struct {
	config     Config
	perceptual PerceptualExtractor
}

// NewBuilder creates a feature builder.
//
// Arguments:
//   - config: The builder configuration.
//   - perceptual: The perceptual difference extractor.
//
// Returns:
//   - *Builder: The builder.
//   - error: An error if the configuration is invalid or the extractor is nil.
func NewBuilder(config Config, perceptual PerceptualExtractor) (*Builder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if perceptual == nil {
		return nil, errors.New("a perceptual extractor is required")
	}
	return &Builder{config: config, perceptual: perceptual}, nil
}

// Config returns the builder configuration.
func (b *Builder) Config() Config {
	return b.config
}

// Build resamples, normalizes and one-hot encodes the inputs into a Bundle.
//
// Arguments:
//   - ctx: Passed to the perceptual extractor.
//   - in: The upstream products.
//
// Returns:
//   - *Bundle: The validated bundle.
//   - error: An error on missing inputs, extractor failure or misalignment.
func (b *Builder) Build(ctx context.Context, in Inputs) (*Bundle, error) {
	if in.Image == nil || in.Synthesized == nil || in.TrainIDs == nil || in.Uncertainty == nil {
		return nil, errors.New("feature inputs are incomplete")
	}
	w, h := b.config.Width, b.config.Height

	size := in.TrainIDs.Size()
	if err := in.Uncertainty.Entropy.CheckSize("entropy", size.X, size.Y); err != nil {
		return nil, err
	}
	if err := in.Uncertainty.Distance.CheckSize("distance", size.X, size.Y); err != nil {
		return nil, err
	}

	img, err := b.normalized(in.Image)
	if err != nil {
		return nil, errors.Wrap(err, "image")
	}
	syn, err := b.normalized(in.Synthesized)
	if err != nil {
		return nil, errors.Wrap(err, "synthesized image")
	}

	diff, err := b.perceptual.Difference(ctx, img, syn)
	if err != nil {
		return nil, errors.Wrap(err, "perceptual difference")
	}
	if err := diff.CheckSize("perceptual difference", w, h); err != nil {
		return nil, err
	}
	if b.config.PerceptualNormalization == NormalizeRange {
		diff = uncertainty.RangeNormalize(diff).Scale(uncertainty.ByteRange)
	} else {
		diff = uncertainty.ToByteRange(diff)
	}

	semantic := images.ResizeLabels(in.TrainIDs, w, h).Replace(labels.Sentinel, IgnoreClass)
	oneHot, err := tensors.OneHot(semantic, SemanticChannels)
	if err != nil {
		return nil, errors.Wrap(err, "semantic map")
	}

	bundle := &Bundle{
		Width:       w,
		Height:      h,
		Image:       img,
		Synthesized: syn,
		Semantic:    oneHot,
		Entropy:     b.channel(in.Uncertainty.Entropy),
		Perceptual:  b.channel(diff),
		Distance:    b.channel(in.Uncertainty.Distance),
	}
	if err := bundle.Validate(); err != nil {
		return nil, err
	}
	return bundle, nil
}

func (b *Builder) normalized(img image.Image) (*tensors.Volume, error) {
	w, h := b.config.Width, b.config.Height
	resized := images.ResizeRGB(img, w, h, b.config.ImageFilter)
	return tensors.NewVolume(3, h, w, images.ImageNet.Normalized(resized))
}

// channel quantizes a [0, 255] channel to whole bytes, resamples it nearest to the
// working resolution and rescales it to [0, 1].
func (b *Builder) channel(p *tensors.Plane) *tensors.Plane {
	q := uncertainty.Quantize(p)
	r := images.ResizePlane(q, b.config.Width, b.config.Height, images.NearestNeighborFilter)
	for i, v := range r.Data {
		r.Data[i] = v / uncertainty.ByteRange
	}
	return r
}

// String describes the builder for logs.
func (b *Builder) String() string {
	return fmt.Sprintf("features %dx%d image=%s perceptual=%s",
		b.config.Width, b.config.Height, b.config.ImageFilter, b.config.PerceptualNormalization)
}
