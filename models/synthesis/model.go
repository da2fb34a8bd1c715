// Package synthesis - ONNX label-to-photo synthesis network.
package synthesis

import (
	"context"

	"github.com/nvr-ai/go-anomaly/images"
	"github.com/nvr-ai/go-anomaly/inference"
	"github.com/nvr-ai/go-anomaly/models/model"
	"github.com/nvr-ai/go-anomaly/tensors"
)

// Options is the options for the synthesis model.
type Options struct {
	model.NewModelArgs `yaml:",inline"`
}

// DefaultOptions returns a 512×256 network fed (label, instance, image).
func DefaultOptions() Options {
	return Options{
		NewModelArgs: model.NewModelArgs{
			Name:    model.ModelNameSynthesis,
			Width:   images.SynthesisResolution.Pixels.Width,
			Height:  images.SynthesisResolution.Pixels.Height,
			Inputs:  []string{"label", "instance", "image"},
			Outputs: []string{"synthesized"},
		},
	}
}

// Validate checks the options.
func (o Options) Validate() error {
	return o.NewModelArgs.Validate(3, 1)
}

// Model is the instance of the synthesis network.
type Model struct {
	options Options
	runner  inference.Runner
}

// NewModel loads the synthesis network.
//
// Arguments:
//   - options: The model options.
//
// Returns:
//   - *Model: The model.
//   - error: An error if the options are invalid or the session cannot be created.
func NewModel(options Options) (*Model, error) {
	if err := options.Validate(); err != nil {
		return nil, err
	}
	session, err := options.Session(
		[]inference.TensorSpec{
			options.Spec(options.Inputs[0], 1),
			options.Spec(options.Inputs[1], 1),
			options.Spec(options.Inputs[2], 3),
		},
		[]inference.TensorSpec{options.Spec(options.Outputs[0], 3)},
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

// Options returns the options for the synthesis model.
func (m *Model) Options() Options {
	return m.options
}

// Synthesize reconstructs a photo from the label conditioning.
//
// Arguments:
//   - ctx: The request context.
//   - in: Label IDs, the instance proxy and the [-1, 1] image, all Width×Height.
//
// Returns:
//   - *tensors.Volume: The reconstruction in [-1, 1], 3×Height×Width.
//   - error: An error on a shape mismatch or a runtime failure.
func (m *Model) Synthesize(ctx context.Context, in model.SynthesisInput) (*tensors.Volume, error) {
	o := m.options
	if err := model.CheckLabels("label", in.Label, o.Width, o.Height); err != nil {
		return nil, err
	}
	if err := model.CheckLabels("instance", in.Instance, o.Width, o.Height); err != nil {
		return nil, err
	}
	if err := model.CheckVolume("synthesis image", in.Image, 3, o.Width, o.Height); err != nil {
		return nil, err
	}

	out, err := m.runner.Run(ctx, in.Label.Plane().Data, in.Instance.Plane().Data, in.Image.Data())
	if err != nil {
		return nil, err
	}
	if err := model.Output(o.Name, out, 3*o.Width*o.Height); err != nil {
		return nil, err
	}
	return tensors.NewVolume(3, o.Height, o.Width, out[0])
}

// Close releases the session.
func (m *Model) Close() error {
	return m.runner.Close()
}
