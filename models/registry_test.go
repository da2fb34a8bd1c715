package models

import (
	"path/filepath"
	"testing"

	"github.com/nvr-ai/go-anomaly/test"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func configured(dir string) Config {
	c := DefaultConfig()
	c.Segmentation.Path = filepath.Join(dir, "seg.onnx")
	c.Synthesis.Path = filepath.Join(dir, "syn.onnx")
	c.Perceptual.Path = filepath.Join(dir, "vgg19.onnx")
	c.Checkpoint.SaveFolder = dir
	c.Checkpoint.WhichEpoch = "best"
	c.Checkpoint.ExperimentName = "fishy"
	return c
}

func TestResolvedDerivesCheckpointPath(t *testing.T) {
	c := configured("/m").Resolved()
	assert.Equal(t, filepath.Join("/m", "best_net_fishy.onnx"), c.Dissimilarity.Path)
	assert.Equal(t, c.Provider, c.Segmentation.Provider)
	assert.Len(t, c.Dissimilarity.Inputs, 6)

	noPrior := configured("/m")
	noPrior.Dissimilarity.Prior = false
	assert.Len(t, noPrior.Resolved().Dissimilarity.Inputs, 3)
	assert.NoError(t, noPrior.Validate())
}

func TestValidateRequiresCheckpoint(t *testing.T) {
	c := configured("/m")
	c.Checkpoint.ExperimentName = ""
	assert.Error(t, c.Validate())

	assert.NoError(t, configured("/m").Validate())
}

func TestLoadReportsMissingCheckpoint(t *testing.T) {
	_, err := Load(configured(t.TempDir()))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingCheckpoint))
}

func TestSetCloseClosesHandles(t *testing.T) {
	set := NewSet(&test.MockSegmenter{Classes: 2}, &test.MockSynthesizer{},
		&test.MockDissimilarity{}, &test.MockPerceptual{})
	assert.NoError(t, set.Close())
}
