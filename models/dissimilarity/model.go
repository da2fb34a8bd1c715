// Package dissimilarity - ONNX network scoring how much an image and its reconstruction
// disagree.
package dissimilarity

import (
	"context"

	"github.com/nvr-ai/go-anomaly/features"
	"github.com/nvr-ai/go-anomaly/images"
	"github.com/nvr-ai/go-anomaly/inference"
	"github.com/nvr-ai/go-anomaly/models/model"
	"github.com/nvr-ai/go-anomaly/tensors"
	"github.com/pkg/errors"
)

// Classes is the output depth: normal and anomalous.
const Classes = 2

// AnomalousChannel is the output channel holding the anomalous-class probability.
const AnomalousChannel = 1

// Options is the options for the dissimilarity model.
type Options struct {
	model.NewModelArgs `yaml:",inline"`
	// Prior feeds the entropy, perceptual and distance channels in addition to the
	// image pair and the semantic map.
	Prior bool `json:"prior" yaml:"prior"`
}

// DefaultOptions returns a 512×256 network with the uncertainty prior.
func DefaultOptions() Options {
	return Options{
		NewModelArgs: model.NewModelArgs{
			Name:   model.ModelNameDissimilarity,
			Width:  images.SynthesisResolution.Pixels.Width,
			Height: images.SynthesisResolution.Pixels.Height,
			Inputs: []string{
				"original", "synthesis", "semantic", "entropy", "perceptual", "distance",
			},
			Outputs: []string{"logits"},
		},
		Prior: true,
	}
}

// Validate checks the options. Without the prior only the first three input names are
// used.
func (o Options) Validate() error {
	return o.NewModelArgs.Validate(o.inputCount(), 1)
}

func (o Options) inputCount() int {
	if o.Prior {
		return 6
	}
	return 3
}

// WithoutPrior returns a copy configured for the three-input network.
func (o Options) WithoutPrior() Options {
	o.Prior = false
	if len(o.Inputs) > 3 {
		o.Inputs = append([]string(nil), o.Inputs[:3]...)
	}
	return o
}

// Model is the instance of the dissimilarity network.
type Model struct {
	options Options
	runner  inference.Runner
}

// NewModel loads the dissimilarity network.
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
	depths := []int{3, 3, features.SemanticChannels, 1, 1, 1}
	inputs := make([]inference.TensorSpec, options.inputCount())
	for i := range inputs {
		inputs[i] = options.Spec(options.Inputs[i], depths[i])
	}
	session, err := options.Session(
		inputs,
		[]inference.TensorSpec{options.Spec(options.Outputs[0], Classes)},
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

// Options returns the options for the dissimilarity model.
func (m *Model) Options() Options {
	return m.options
}

// Compare scores every pixel of the bundle.
//
// Arguments:
//   - ctx: The request context.
//   - b: The aligned feature bundle at the model resolution.
//
// Returns:
//   - *tensors.Volume: Softmax over (normal, anomalous), 2×Height×Width.
//   - error: An error on a shape mismatch or a runtime failure.
func (m *Model) Compare(ctx context.Context, b *features.Bundle) (*tensors.Volume, error) {
	o := m.options
	if b == nil {
		return nil, errors.Wrap(tensors.ErrShapeMismatch, "feature bundle is nil")
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if b.Width != o.Width || b.Height != o.Height {
		return nil, errors.Wrapf(tensors.ErrShapeMismatch, "bundle is %dx%d, model expects %dx%d",
			b.Width, b.Height, o.Width, o.Height)
	}

	inputs := [][]float32{b.Image.Data(), b.Synthesized.Data(), b.Semantic.Data()}
	if o.Prior {
		inputs = append(inputs, b.Entropy.Data, b.Perceptual.Data, b.Distance.Data)
	}
	out, err := m.runner.Run(ctx, inputs...)
	if err != nil {
		return nil, err
	}
	if err := model.Output(o.Name, out, Classes*o.Width*o.Height); err != nil {
		return nil, err
	}
	logits, err := tensors.NewVolume(Classes, o.Height, o.Width, out[0])
	if err != nil {
		return nil, err
	}
	return tensors.Softmax(logits)
}

// Close releases the session.
func (m *Model) Close() error {
	return m.runner.Close()
}
