package features

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/nvr-ai/go-anomaly/labels"
	"github.com/nvr-ai/go-anomaly/tensors"
	"github.com/nvr-ai/go-anomaly/uncertainty"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// absDiff returns the mean absolute channel difference, optionally at a forced size.
type absDiff struct {
	width, height int
}

func (d absDiff) Difference(_ context.Context, a, b *tensors.Volume) (*tensors.Plane, error) {
	w, h := a.Width, a.Height
	if d.width > 0 {
		w, h = d.width, d.height
	}
	out := tensors.NewPlane(w, h)
	if w != a.Width || h != a.Height {
		return out, nil
	}
	ad, bd := a.Data(), b.Data()
	n := w * h
	for i := 0; i < n; i++ {
		var s float32
		for c := 0; c < 3; c++ {
			v := ad[c*n+i] - bd[c*n+i]
			if v < 0 {
				v = -v
			}
			s += v
		}
		out.Data[i] = s / 3
	}
	return out, nil
}

func gradient(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 90, A: 255})
		}
	}
	return img
}

func uniform(w, h int, c color.RGBA) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func testInputs(w, h int) Inputs {
	trainIDs := tensors.NewLabelMap(w, h)
	for i := range trainIDs.Data {
		trainIDs.Data[i] = i % 19
	}
	// Left quarter carries the segmentation ignore label.
	for y := 0; y < h; y++ {
		for x := 0; x < w/4; x++ {
			trainIDs.Set(x, y, labels.Sentinel)
		}
	}
	entropy := tensors.NewPlane(w, h)
	distance := tensors.NewPlane(w, h)
	for i := range entropy.Data {
		entropy.Data[i] = float32(i%256) + 0.7
		distance.Data[i] = 255
	}
	return Inputs{
		Image:       gradient(w, h),
		Synthesized: uniform(16, 8, color.RGBA{R: 128, G: 128, B: 128, A: 255}),
		TrainIDs:    trainIDs,
		Uncertainty: &uncertainty.Channels{Entropy: entropy, Distance: distance},
	}
}

func smallConfig() Config {
	c := DefaultConfig()
	c.Width, c.Height = 16, 8
	return c
}

func TestBuildAlignsEveryTensor(t *testing.T) {
	b, err := NewBuilder(smallConfig(), absDiff{})
	require.NoError(t, err)

	bundle, err := b.Build(context.Background(), testInputs(64, 32))
	require.NoError(t, err)

	assert.Equal(t, 16, bundle.Width)
	assert.Equal(t, 8, bundle.Height)
	assert.Equal(t, 3, bundle.Image.Channels)
	assert.Equal(t, 3, bundle.Synthesized.Channels)
	assert.Equal(t, SemanticChannels, bundle.Semantic.Channels)

	for name, p := range map[string]*tensors.Plane{
		"entropy":    bundle.Entropy,
		"perceptual": bundle.Perceptual,
		"distance":   bundle.Distance,
	} {
		lo, hi := p.MinMax()
		assert.GreaterOrEqual(t, lo, float32(0), name)
		assert.LessOrEqual(t, hi, float32(1), name)
	}
	// 255 quantizes to 255 and rescales to exactly 1.
	assert.Equal(t, float32(1), bundle.Distance.At(3, 3))
}

func TestBuildMovesIgnoreLabelToBucket(t *testing.T) {
	b, err := NewBuilder(smallConfig(), absDiff{})
	require.NoError(t, err)

	bundle, err := b.Build(context.Background(), testInputs(64, 32))
	require.NoError(t, err)

	ignore := bundle.Semantic.Channel(IgnoreClass)
	assert.Equal(t, float32(1), ignore.At(0, 0))
	assert.Equal(t, float32(0), ignore.At(15, 7))

	// Exactly one channel is hot per pixel.
	labelsBack := bundle.Semantic.Argmax()
	for y := 0; y < 8; y++ {
		for x := 0; x < 16; x++ {
			var sum float32
			for c := 0; c < SemanticChannels; c++ {
				sum += bundle.Semantic.Channel(c).At(x, y)
			}
			assert.Equal(t, float32(1), sum)
			if x >= 4 {
				assert.Less(t, labelsBack.At(x, y), 19)
			}
		}
	}
}

func TestBuildEntropyIsQuantized(t *testing.T) {
	c := smallConfig()
	c.Width, c.Height = 64, 32
	b, err := NewBuilder(c, absDiff{})
	require.NoError(t, err)

	in := testInputs(64, 32)
	bundle, err := b.Build(context.Background(), in)
	require.NoError(t, err)
	// 0.7 is truncated away before rescaling.
	assert.InDelta(t, 0, bundle.Entropy.At(0, 0), 1e-7)
	assert.InDelta(t, 1.0/255, bundle.Entropy.At(1, 0), 1e-7)
}

func TestBuildRejectsMisalignedPerceptual(t *testing.T) {
	b, err := NewBuilder(smallConfig(), absDiff{width: 4, height: 4})
	require.NoError(t, err)

	// A 4x4 map resampled nearest to 16x8 would be aligned, so a wrong size must be
	// caught before resampling hides it.
	_, err = b.Build(context.Background(), testInputs(64, 32))
	require.Error(t, err)
	assert.True(t, errors.Is(err, tensors.ErrShapeMismatch))
}

func TestBuildRejectsIncompleteInputs(t *testing.T) {
	b, err := NewBuilder(smallConfig(), absDiff{})
	require.NoError(t, err)

	in := testInputs(64, 32)
	in.Uncertainty = nil
	_, err = b.Build(context.Background(), in)
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	c := DefaultConfig()
	c.Width = 0
	assert.Error(t, c.Validate())

	c = DefaultConfig()
	c.PerceptualNormalization = "zscore"
	assert.Error(t, c.Validate())

	_, err := NewBuilder(DefaultConfig(), nil)
	assert.Error(t, err)
}

func TestBundleValidate(t *testing.T) {
	assert.True(t, errors.Is((&Bundle{Width: 2, Height: 2}).Validate(), tensors.ErrShapeMismatch))
}
