package dissimilarity

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nvr-ai/go-anomaly/features"
	"github.com/nvr-ai/go-anomaly/tensors"
	"github.com/nvr-ai/go-anomaly/test"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bundle(t *testing.T, w, h int) *features.Bundle {
	t.Helper()
	n := w * h
	vol := func(c int) *tensors.Volume {
		v, err := tensors.NewVolume(c, h, w, make([]float32, c*n))
		require.NoError(t, err)
		return v
	}
	return &features.Bundle{
		Width:       w,
		Height:      h,
		Image:       vol(3),
		Synthesized: vol(3),
		Semantic:    vol(features.SemanticChannels),
		Entropy:     tensors.Fill(w, h, 0.2),
		Perceptual:  tensors.Fill(w, h, 0.3),
		Distance:    tensors.Fill(w, h, 0.4),
	}
}

func options(prior bool) Options {
	o := DefaultOptions()
	o.Path = "diss.onnx"
	o.Width, o.Height = 4, 2
	if !prior {
		o = o.WithoutPrior()
	}
	return o
}

func TestCompareWithPriorFeedsSixInputs(t *testing.T) {
	n := 8
	logits := make([]float32, 2*n)
	for i := 0; i < n; i++ {
		logits[n+i] = 2
	}
	runner := &test.Runner{Outputs: [][]float32{logits}}
	m := NewModelWithRunner(options(true), runner)

	probs, err := m.Compare(context.Background(), bundle(t, 4, 2))
	require.NoError(t, err)

	require.Len(t, runner.Calls[0], 6)
	assert.Len(t, runner.Calls[0][2], features.SemanticChannels*n)
	assert.Equal(t, float32(0.2), runner.Calls[0][3][0])
	assert.Equal(t, float32(0.3), runner.Calls[0][4][0])
	assert.Equal(t, float32(0.4), runner.Calls[0][5][0])

	// softmax(0, 2)[1]
	assert.InDelta(t, 0.8807971, probs.Channel(AnomalousChannel).At(0, 0), 1e-6)
}

func TestCompareWithoutPriorFeedsThreeInputs(t *testing.T) {
	runner := &test.Runner{Outputs: [][]float32{make([]float32, 16)}}
	m := NewModelWithRunner(options(false), runner)

	probs, err := m.Compare(context.Background(), bundle(t, 4, 2))
	require.NoError(t, err)
	require.Len(t, runner.Calls[0], 3)
	assert.InDelta(t, 0.5, probs.Channel(AnomalousChannel).At(3, 1), 1e-6)
	assert.NoError(t, options(false).Validate())
}

func TestCompareRejectsWrongResolution(t *testing.T) {
	m := NewModelWithRunner(options(true), &test.Runner{})
	_, err := m.Compare(context.Background(), bundle(t, 2, 2))
	assert.True(t, errors.Is(err, tensors.ErrShapeMismatch))
}

func TestCheckpointPath(t *testing.T) {
	c := Checkpoint{SaveFolder: "/models/diss", WhichEpoch: "best", ExperimentName: "replicate_best"}
	assert.Equal(t, filepath.Join("/models/diss", "best_net_replicate_best.onnx"), c.Path())
	assert.NoError(t, c.Validate())

	c.WhichEpoch = ""
	assert.Error(t, c.Validate())
}
