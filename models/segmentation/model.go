// Package segmentation - ONNX semantic segmentation network.
package segmentation

import (
	"context"

	"github.com/nvr-ai/go-anomaly/images"
	"github.com/nvr-ai/go-anomaly/inference"
	"github.com/nvr-ai/go-anomaly/models/model"
	"github.com/nvr-ai/go-anomaly/tensors"
	"github.com/pkg/errors"
)

// DefaultClasses is the number of Cityscapes train classes.
const DefaultClasses = 19

// Options is the options for the segmentation model.
type Options struct {
	model.NewModelArgs `yaml:",inline"`
	// Classes is the depth of the logits output.
	Classes int `json:"classes" yaml:"classes"`
}

// DefaultOptions returns a 19-class network at 2048×1024.
func DefaultOptions() Options {
	return Options{
		NewModelArgs: model.NewModelArgs{
			Name:    model.ModelNameSegmentation,
			Width:   images.SegmentationResolution.Pixels.Width,
			Height:  images.SegmentationResolution.Pixels.Height,
			Inputs:  []string{"input"},
			Outputs: []string{"logits"},
		},
		Classes: DefaultClasses,
	}
}

// Validate checks the options.
func (o Options) Validate() error {
	if err := o.NewModelArgs.Validate(1, 1); err != nil {
		return err
	}
	if o.Classes < 2 {
		return errors.Errorf("segmentation needs at least two classes, got %d", o.Classes)
	}
	return nil
}

// Model is the instance of the segmentation network.
type Model struct {
	options Options
	runner  inference.Runner
}

// NewModel loads the segmentation network.
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
		[]inference.TensorSpec{options.Spec(options.Inputs[0], 3)},
		[]inference.TensorSpec{options.Spec(options.Outputs[0], options.Classes)},
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

// Options returns the options for the segmentation model.
func (m *Model) Options() Options {
	return m.options
}

// Segment runs the network on an ImageNet-normalized image and returns the per-pixel
// class probabilities.
//
// Arguments:
//   - ctx: The request context.
//   - img: The normalized image, 3×Height×Width.
//
// Returns:
//   - *tensors.Volume: Softmax over the class axis, Classes×Height×Width.
//   - error: An error on a shape mismatch or a runtime failure.
func (m *Model) Segment(ctx context.Context, img *tensors.Volume) (*tensors.Volume, error) {
	o := m.options
	if err := model.CheckVolume("segmentation input", img, 3, o.Width, o.Height); err != nil {
		return nil, err
	}
	out, err := m.runner.Run(ctx, img.Data())
	if err != nil {
		return nil, err
	}
	if err := model.Output(o.Name, out, o.Classes*o.Width*o.Height); err != nil {
		return nil, err
	}
	logits, err := tensors.NewVolume(o.Classes, o.Height, o.Width, out[0])
	if err != nil {
		return nil, err
	}
	return tensors.Softmax(logits)
}

// Close releases the session.
func (m *Model) Close() error {
	return m.runner.Close()
}
