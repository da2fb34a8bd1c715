// Package test - Deterministic frames and mock model stages for tests.
package test

import (
	"context"
	"image"
	"image/color"
	"sync"

	"github.com/nvr-ai/go-anomaly/features"
	"github.com/nvr-ai/go-anomaly/models/model"
	"github.com/nvr-ai/go-anomaly/tensors"
	"github.com/pkg/errors"
)

// MockFrameGenerator creates deterministic street-scene-like frames.
//
// @example
// gen := NewMockFrameGenerator(2048, 1024)
// frame := gen.GenerateAnomalyFrame(900, 600, 64)
type MockFrameGenerator struct {
	width  int
	height int
}

// NewMockFrameGenerator creates a new frame generator with specified dimensions.
//
// Arguments:
// - width: Frame width in pixels.
// - height: Frame height in pixels.
//
// Returns:
// - A configured MockFrameGenerator instance.
func NewMockFrameGenerator(width, height int) *MockFrameGenerator {
	return &MockFrameGenerator{width: width, height: height}
}

// GenerateStaticFrame creates a frame with a sky band over a road band.
func (g *MockFrameGenerator) GenerateStaticFrame() *image.RGBA {
	frame := image.NewRGBA(image.Rect(0, 0, g.width, g.height))
	sky := color.RGBA{R: 110, G: 150, B: 200, A: 255}
	road := color.RGBA{R: 90, G: 90, B: 95, A: 255}
	for y := 0; y < g.height; y++ {
		c := road
		if y < g.height/2 {
			c = sky
		}
		for x := 0; x < g.width; x++ {
			frame.SetRGBA(x, y, c)
		}
	}
	return frame
}

// GenerateAnomalyFrame paints a bright square obstacle onto the static frame.
//
// Arguments:
// - x: X coordinate of the obstacle.
// - y: Y coordinate of the obstacle.
// - size: Side length in pixels.
func (g *MockFrameGenerator) GenerateAnomalyFrame(x, y, size int) *image.RGBA {
	frame := g.GenerateStaticFrame()
	obstacle := color.RGBA{R: 250, G: 40, B: 200, A: 255}
	for dy := 0; dy < size && y+dy < g.height; dy++ {
		for dx := 0; dx < size && x+dx < g.width; dx++ {
			frame.SetRGBA(x+dx, y+dy, obstacle)
		}
	}
	return frame
}

// GenerateMask returns the ground truth of GenerateAnomalyFrame: 1 on the obstacle,
// 0 elsewhere and 255 (void) along the top row.
func (g *MockFrameGenerator) GenerateMask(x, y, size int) *image.Gray {
	mask := image.NewGray(image.Rect(0, 0, g.width, g.height))
	for dy := 0; dy < size && y+dy < g.height; dy++ {
		for dx := 0; dx < size && x+dx < g.width; dx++ {
			mask.SetGray(x+dx, y+dy, color.Gray{Y: 1})
		}
	}
	for px := 0; px < g.width; px++ {
		mask.SetGray(px, 0, color.Gray{Y: 255})
	}
	return mask
}

// Runner is an inference.Runner returning fixed outputs and recording its inputs.
type Runner struct {
	Outputs [][]float32
	Err     error

	mu     sync.Mutex
	Calls  [][][]float32
	Closed bool
}

// Run records a copy of the inputs and returns copies of Outputs.
func (r *Runner) Run(ctx context.Context, inputs ...[]float32) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	call := make([][]float32, len(inputs))
	for i, in := range inputs {
		call[i] = append([]float32(nil), in...)
	}
	r.Calls = append(r.Calls, call)
	if r.Err != nil {
		return nil, r.Err
	}
	out := make([][]float32, len(r.Outputs))
	for i, o := range r.Outputs {
		out[i] = append([]float32(nil), o...)
	}
	return out, nil
}

// Close marks the runner closed.
func (r *Runner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Closed = true
	return nil
}

// MockSegmenter returns a uniform probability map over Classes classes, or a map
// that puts Confidence on class Class everywhere when Confidence is set.
type MockSegmenter struct {
	Classes    int
	Class      int
	Confidence float32
	Err        error
}

// Segment implements models.Segmenter.
func (m *MockSegmenter) Segment(ctx context.Context, img *tensors.Volume) (*tensors.Volume, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if img == nil || img.Channels != 3 {
		return nil, errors.Wrap(tensors.ErrShapeMismatch, "segmenter expects a 3-channel image")
	}
	n := img.Width * img.Height
	data := make([]float32, m.Classes*n)
	rest := (1 - m.Confidence) / float32(m.Classes-1)
	for c := 0; c < m.Classes; c++ {
		v := 1 / float32(m.Classes)
		if m.Confidence > 0 {
			v = rest
			if c == m.Class {
				v = m.Confidence
			}
		}
		for i := 0; i < n; i++ {
			data[c*n+i] = v
		}
	}
	return tensors.NewVolume(m.Classes, img.Height, img.Width, data)
}

// MockSynthesizer returns the conditioning image unchanged.
type MockSynthesizer struct {
	Err error

	mu   sync.Mutex
	Last *model.SynthesisInput
}

// Synthesize implements models.Synthesizer.
func (m *MockSynthesizer) Synthesize(ctx context.Context, in model.SynthesisInput) (*tensors.Volume, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	m.Last = &in
	m.mu.Unlock()
	return tensors.NewVolume(3, in.Image.Height, in.Image.Width,
		append([]float32(nil), in.Image.Data()...))
}

// MockDissimilarity returns Anomalous as the anomalous-class probability everywhere.
type MockDissimilarity struct {
	Anomalous float32
	Err       error
}

// Compare implements models.Dissimilarity.
func (m *MockDissimilarity) Compare(ctx context.Context, b *features.Bundle) (*tensors.Volume, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	n := b.Width * b.Height
	data := make([]float32, 2*n)
	for i := 0; i < n; i++ {
		data[i] = 1 - m.Anomalous
		data[n+i] = m.Anomalous
	}
	return tensors.NewVolume(2, b.Height, b.Width, data)
}

// MockPerceptual returns the mean absolute channel difference of its inputs.
type MockPerceptual struct {
	Err error
}

// Difference implements features.PerceptualExtractor.
func (m *MockPerceptual) Difference(ctx context.Context, a, b *tensors.Volume) (*tensors.Plane, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if a.Width != b.Width || a.Height != b.Height {
		return nil, errors.Wrap(tensors.ErrShapeMismatch, "perceptual inputs differ in size")
	}
	n := a.Width * a.Height
	ad, bd := a.Data(), b.Data()
	out := tensors.NewPlane(a.Width, a.Height)
	for i := 0; i < n; i++ {
		var s float32
		for c := 0; c < 3; c++ {
			d := ad[c*n+i] - bd[c*n+i]
			if d < 0 {
				d = -d
			}
			s += d
		}
		out.Data[i] = s / 3
	}
	return out, nil
}
