// Package inference - ONNX Runtime sessions with named, preallocated tensors.
package inference

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/nvr-ai/go-anomaly/inference/providers"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// ErrClosed is returned by Run after Close.
var ErrClosed = errors.New("inference session is closed")

// TensorSpec names a float32 model input or output and its fixed shape.
type TensorSpec struct {
	Name  string  `json:"name" yaml:"name"`
	Shape []int64 `json:"shape" yaml:"shape"`
}

// Elements returns the number of values in a tensor of this shape.
func (t TensorSpec) Elements() int {
	n := int64(1)
	for _, d := range t.Shape {
		n *= d
	}
	return int(n)
}

// NewSessionArgs contains the arguments for NewSession.
type NewSessionArgs struct {
	// ModelPath is the path to the .onnx file.
	ModelPath string
	// Inputs lists the model inputs in feed order.
	Inputs []TensorSpec
	// Outputs lists the model outputs in fetch order.
	Outputs []TensorSpec
	// Provider selects the execution provider.
	Provider providers.Config
}

// Session represents a model session from the onnxruntime.
//
// Runs are serialized because the input and output tensors are reused across calls.
type Session struct {
	args    NewSessionArgs
	session *ort.AdvancedSession
	inputs  []*ort.Tensor[float32]
	outputs []*ort.Tensor[float32]

	mu             sync.Mutex
	inferenceCount int64
	totalTime      time.Duration
}

// NewSession loads a model and preallocates its input and output tensors.
//
// Initialize must have been called first.
//
// Arguments:
//   - args: The session arguments.
//
// Returns:
//   - *Session: The session.
//   - error: An error if the model file is missing or the session cannot be created.
func NewSession(args NewSessionArgs) (*Session, error) {
	if !ort.IsInitialized() {
		return nil, errors.New("onnxruntime environment is not initialized")
	}
	if len(args.Inputs) == 0 || len(args.Outputs) == 0 {
		return nil, errors.Errorf("model %s needs at least one input and one output", args.ModelPath)
	}
	if _, err := os.Stat(args.ModelPath); err != nil {
		return nil, errors.Wrapf(err, "model file %s", args.ModelPath)
	}

	s := &Session{args: args}

	inputValues := make([]ort.Value, 0, len(args.Inputs))
	inputNames := make([]string, 0, len(args.Inputs))
	for _, spec := range args.Inputs {
		t, err := ort.NewEmptyTensor[float32](ort.NewShape(spec.Shape...))
		if err != nil {
			s.Close()
			return nil, errors.Wrapf(err, "error creating input tensor %s", spec.Name)
		}
		s.inputs = append(s.inputs, t)
		inputValues = append(inputValues, t)
		inputNames = append(inputNames, spec.Name)
	}

	outputValues := make([]ort.Value, 0, len(args.Outputs))
	outputNames := make([]string, 0, len(args.Outputs))
	for _, spec := range args.Outputs {
		t, err := ort.NewEmptyTensor[float32](ort.NewShape(spec.Shape...))
		if err != nil {
			s.Close()
			return nil, errors.Wrapf(err, "error creating output tensor %s", spec.Name)
		}
		s.outputs = append(s.outputs, t)
		outputValues = append(outputValues, t)
		outputNames = append(outputNames, spec.Name)
	}

	options, err := providers.NewSessionOptions(args.Provider)
	if err != nil {
		s.Close()
		return nil, err
	}
	defer options.Destroy()

	session, err := ort.NewAdvancedSession(
		args.ModelPath,
		inputNames,
		outputNames,
		inputValues,
		outputValues,
		options,
	)
	if err != nil {
		s.Close()
		return nil, errors.Wrapf(err, "error creating ORT session for %s", args.ModelPath)
	}
	s.session = session

	return s, nil
}

// Run copies the inputs in, executes the model and returns copies of the outputs.
//
// Arguments:
//   - ctx: Checked before the model runs; a running model is not interrupted.
//   - inputs: One slice per declared input, in declaration order.
//
// Returns:
//   - [][]float32: One slice per declared output, owned by the caller.
//   - error: An error on cancellation, a size mismatch or a runtime failure.
func (s *Session) Run(ctx context.Context, inputs ...[]float32) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(inputs) != len(s.args.Inputs) {
		return nil, errors.Errorf("%s expects %d inputs, got %d",
			s.args.ModelPath, len(s.args.Inputs), len(inputs))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil, ErrClosed
	}

	for i, data := range inputs {
		dst := s.inputs[i].GetData()
		if len(data) != len(dst) {
			return nil, errors.Errorf("input %s: expected %d values, got %d",
				s.args.Inputs[i].Name, len(dst), len(data))
		}
		copy(dst, data)
	}

	start := time.Now()
	if err := s.session.Run(); err != nil {
		return nil, errors.Wrapf(err, "error running %s", s.args.ModelPath)
	}
	s.inferenceCount++
	s.totalTime += time.Since(start)

	out := make([][]float32, len(s.outputs))
	for i, t := range s.outputs {
		src := t.GetData()
		out[i] = make([]float32, len(src))
		copy(out[i], src)
	}
	return out, nil
}

// Stats returns the number of completed runs and their cumulative wall time.
func (s *Session) Stats() (int64, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inferenceCount, s.totalTime
}

// String describes the session for logs.
func (s *Session) String() string {
	return fmt.Sprintf("%s (%s)", s.args.ModelPath, s.args.Provider)
}

// Close releases the resources associated with the Session.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	for _, t := range s.inputs {
		keep(t.Destroy())
	}
	for _, t := range s.outputs {
		keep(t.Destroy())
	}
	s.inputs, s.outputs = nil, nil
	if s.session != nil {
		keep(s.session.Destroy())
		s.session = nil
	}
	return first
}

// Runner executes a model on flat float32 inputs. Session implements it.
type Runner interface {
	Run(ctx context.Context, inputs ...[]float32) ([][]float32, error)
	Close() error
}

var _ Runner = (*Session)(nil)
