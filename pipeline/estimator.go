// Package pipeline - Runs the seven stages on one image and returns its anomaly map.
package pipeline

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/nvr-ai/go-anomaly/features"
	"github.com/nvr-ai/go-anomaly/fusion"
	"github.com/nvr-ai/go-anomaly/images"
	"github.com/nvr-ai/go-anomaly/labels"
	"github.com/nvr-ai/go-anomaly/models"
	"github.com/nvr-ai/go-anomaly/models/dissimilarity"
	"github.com/nvr-ai/go-anomaly/models/model"
	"github.com/nvr-ai/go-anomaly/tensors"
	"github.com/nvr-ai/go-anomaly/uncertainty"
	"github.com/pkg/errors"
)

// Config holds the resolutions and label handling of the pipeline.
type Config struct {
	// SegmentationWidth and SegmentationHeight are the segmentation input resolution.
	SegmentationWidth  int `json:"segmentation_width" yaml:"segmentation_width"`
	SegmentationHeight int `json:"segmentation_height" yaml:"segmentation_height"`
	// Features controls the dissimilarity working resolution; synthesis runs at it too.
	Features features.Config `json:"features" yaml:"features"`
	// UnknownID replaces sentinel labels in the synthesis conditioning.
	UnknownID int `json:"unknown_id" yaml:"unknown_id"`
	// LabelTable is an optional YAML label table, Cityscapes when empty.
	LabelTable string `json:"label_table" yaml:"label_table"`
}

// DefaultConfig returns 2048×1024 segmentation, 512×256 synthesis and dissimilarity,
// and unknown class 35.
func DefaultConfig() Config {
	return Config{
		SegmentationWidth:  images.SegmentationResolution.Pixels.Width,
		SegmentationHeight: images.SegmentationResolution.Pixels.Height,
		Features:           features.DefaultConfig(),
		UnknownID:          labels.DefaultUnknownID,
	}
}

// Validate checks resolutions and the unknown class.
func (c Config) Validate() error {
	if c.SegmentationWidth <= 0 || c.SegmentationHeight <= 0 {
		return errors.Errorf("segmentation resolution must be positive, got %dx%d",
			c.SegmentationWidth, c.SegmentationHeight)
	}
	if c.UnknownID < 0 || c.UnknownID > 255 {
		return errors.Errorf("unknown class %d does not fit in 8 bits", c.UnknownID)
	}
	return c.Features.Validate()
}

// Estimator turns an image into a per-pixel anomaly score.
//
// An Estimator holds no per-image state and may be shared; concurrent calls are
// serialized by the model handles.
type Estimator struct {
	config    Config
	models    *models.Set
	remapper  *labels.Remapper
	builder   *features.Builder
	debugMode bool
}

// NewEstimator wires the loaded models into a pipeline.
//
// Arguments:
//   - config: The pipeline configuration.
//   - set: The model handles. The estimator does not close them.
//
// Returns:
//   - *Estimator: The estimator.
//   - error: An error if the configuration is invalid or a handle is missing.
func NewEstimator(config Config, set *models.Set) (*Estimator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if set == nil || set.Segmenter == nil || set.Synthesizer == nil ||
		set.Dissimilarity == nil || set.Perceptual == nil {
		return nil, errors.New("every model handle is required")
	}

	table := labels.Cityscapes
	if config.LabelTable != "" {
		t, err := labels.LoadTable(config.LabelTable)
		if err != nil {
			return nil, err
		}
		table = t
	}
	remapper, err := labels.NewRemapper(table, config.UnknownID,
		config.Features.Width, config.Features.Height)
	if err != nil {
		return nil, err
	}
	builder, err := features.NewBuilder(config.Features, set.Perceptual)
	if err != nil {
		return nil, err
	}

	return &Estimator{
		config:   config,
		models:   set,
		remapper: remapper,
		builder:  builder,
	}, nil
}

// SetDebugMode enables or disables debug logging.
//
// Arguments:
//   - enabled: Whether to enable debug mode.
func (e *Estimator) SetDebugMode(enabled bool) {
	e.debugMode = enabled
}

// Estimate scores every pixel of img.
//
// Arguments:
//   - ctx: The request context, checked between stages.
//   - img: The input image, any size.
//
// Returns:
//   - *tensors.Plane: Scores in [0, 1] at the size of img.
//   - error: A stage, shape or cancellation error; no partial result is returned.
func (e *Estimator) Estimate(ctx context.Context, img image.Image) (*tensors.Plane, error) {
	res, err := e.run(ctx, img, false)
	if err != nil {
		return nil, err
	}
	return res.Score, nil
}

// EstimateWithTrace scores img and keeps every intermediate product and stage timing.
func (e *Estimator) EstimateWithTrace(ctx context.Context, img image.Image) (*Result, error) {
	return e.run(ctx, img, true)
}

func (e *Estimator) run(ctx context.Context, img image.Image, keep bool) (*Result, error) {
	if img == nil {
		return nil, errors.New("image is nil")
	}
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, errors.Errorf("image is empty: %v", bounds)
	}

	res := &Result{}
	trace := &Trace{}
	if keep {
		res.Trace = trace
	}
	step := func(name string, fn func() error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		err := fn()
		trace.Stages = append(trace.Stages, StageTiming{Name: name, Duration: time.Since(start)})
		if err != nil {
			return errors.Wrap(err, name)
		}
		if e.debugMode {
			fmt.Printf("[DEBUG] %s done in %s\n", name, time.Since(start))
		}
		return nil
	}

	if e.debugMode {
		fmt.Printf("[DEBUG] Input image: %dx%d\n", bounds.Dx(), bounds.Dy())
	}

	var (
		resized image.Image
		probs   *tensors.Volume
		trainID *tensors.LabelMap
		unc     *uncertainty.Channels
		raster  *image.RGBA
		bundle  *features.Bundle
		pAnom   *tensors.Plane
	)
	sw, sh := e.config.SegmentationWidth, e.config.SegmentationHeight
	fw, fh := e.config.Features.Width, e.config.Features.Height

	if err := step(StageSegmentation, func() error {
		resized = images.ResizeRGB(img, sw, sh, images.BicubicFilter)
		input, err := tensors.NewVolume(3, sh, sw, images.ImageNet.Normalized(resized))
		if err != nil {
			return err
		}
		probs, err = e.models.Segmenter.Segment(ctx, input)
		if err != nil {
			return err
		}
		if probs.Width != sw || probs.Height != sh {
			return errors.Wrapf(tensors.ErrShapeMismatch, "probabilities are %dx%d, expected %dx%d",
				probs.Width, probs.Height, sw, sh)
		}
		trainID = probs.Argmax()
		return nil
	}); err != nil {
		return nil, err
	}

	if err := step(StageUncertainty, func() error {
		var err error
		unc, err = uncertainty.Extract(probs)
		return err
	}); err != nil {
		return nil, err
	}

	if err := step(StageSynthesis, func() error {
		cond := e.remapper.Conditioning(trainID)
		synImage, err := tensors.NewVolume(3, fh, fw,
			images.Symmetric.Normalized(images.ResizeRGB(resized, fw, fh, e.config.Features.ImageFilter)))
		if err != nil {
			return err
		}
		generated, err := e.models.Synthesizer.Synthesize(ctx, model.SynthesisInput{
			Label:    cond,
			Instance: cond.Clone(),
			Image:    synImage,
		})
		if err != nil {
			return err
		}
		if err := model.CheckVolume("synthesized image", generated, 3, fw, fh); err != nil {
			return err
		}
		raster, err = images.FromSymmetricCHW(generated.Data(), generated.Width, generated.Height)
		return err
	}); err != nil {
		return nil, err
	}

	if err := step(StageFeatures, func() error {
		var err error
		bundle, err = e.builder.Build(ctx, features.Inputs{
			Image:       resized,
			Synthesized: raster,
			TrainIDs:    trainID,
			Uncertainty: unc,
		})
		return err
	}); err != nil {
		return nil, err
	}

	if err := step(StageDissimilarity, func() error {
		out, err := e.models.Dissimilarity.Compare(ctx, bundle)
		if err != nil {
			return err
		}
		if err := model.CheckVolume("dissimilarity output", out, dissimilarity.Classes, fw, fh); err != nil {
			return err
		}
		pAnom = out.Channel(dissimilarity.AnomalousChannel)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := step(StageFusion, func() error {
		var err error
		res.Score, err = fusion.Fuse(pAnom, bundle.Entropy, bounds.Dx(), bounds.Dy())
		return err
	}); err != nil {
		return nil, err
	}

	if keep {
		trace.Probabilities = probs
		trace.TrainIDs = trainID
		trace.Uncertainty = unc
		trace.Synthesized = raster
		trace.Bundle = bundle
		trace.Anomalous = pAnom
	}
	return res, nil
}
