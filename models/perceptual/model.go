// Package perceptual - ONNX VGG19 feature difference between two images.
package perceptual

import (
	"context"

	"github.com/nvr-ai/go-anomaly/features"
	"github.com/nvr-ai/go-anomaly/images"
	"github.com/nvr-ai/go-anomaly/inference"
	"github.com/nvr-ai/go-anomaly/models/model"
	"github.com/nvr-ai/go-anomaly/tensors"
)

// Options is the options for the perceptual model.
type Options struct {
	model.NewModelArgs `yaml:",inline"`
}

// DefaultOptions returns a 512×256 network fed two ImageNet-normalized images.
func DefaultOptions() Options {
	return Options{
		NewModelArgs: model.NewModelArgs{
			Name:    model.ModelNamePerceptual,
			Width:   images.SynthesisResolution.Pixels.Width,
			Height:  images.SynthesisResolution.Pixels.Height,
			Inputs:  []string{"a", "b"},
			Outputs: []string{"difference"},
		},
	}
}

// Validate checks the options.
func (o Options) Validate() error {
	return o.NewModelArgs.Validate(2, 1)
}

// Model is the instance of the perceptual network.
type Model struct {
	options Options
	runner  inference.Runner
}

var _ features.PerceptualExtractor = (*Model)(nil)

// NewModel loads the perceptual network.
func NewModel(options Options) (*Model, error) {
	if err := options.Validate(); err != nil {
		return nil, err
	}
	session, err := options.Session(
		[]inference.TensorSpec{
			options.Spec(options.Inputs[0], 3),
			options.Spec(options.Inputs[1], 3),
		},
		[]inference.TensorSpec{options.Spec(options.Outputs[0], 1)},
	)
	if err != nil {
		return nil, err
	}
	return NewModelWithRunner(options, session), nil
}

// NewModelWithRunner wraps an existing runner.
func NewModelWithRunner(options Options, runner inference.Runner) *Model {
	return &Model{options: options, runner: runner}
}

// Difference returns the unnormalized per-pixel feature distance of a and b.
func (m *Model) Difference(ctx context.Context, a, b *tensors.Volume) (*tensors.Plane, error) {
	o := m.options
	if err := model.CheckVolume("perceptual a", a, 3, o.Width, o.Height); err != nil {
		return nil, err
	}
	if err := model.CheckVolume("perceptual b", b, 3, o.Width, o.Height); err != nil {
		return nil, err
	}
	out, err := m.runner.Run(ctx, a.Data(), b.Data())
	if err != nil {
		return nil, err
	}
	if err := model.Output(o.Name, out, o.Width*o.Height); err != nil {
		return nil, err
	}
	return tensors.NewPlaneFrom(o.Width, o.Height, out[0])
}

// Close releases the session.
func (m *Model) Close() error {
	return m.runner.Close()
}
