package pipeline

import (
	"context"
	"testing"

	"github.com/nvr-ai/go-anomaly/models"
	"github.com/nvr-ai/go-anomaly/test"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mockSet(anomalous float32) (*models.Set, *test.MockSynthesizer) {
	syn := &test.MockSynthesizer{}
	return models.NewSet(
		&test.MockSegmenter{Classes: 2},
		syn,
		&test.MockDissimilarity{Anomalous: anomalous},
		&test.MockPerceptual{},
	), syn
}

func TestEstimateEndToEndAtSegmentationResolution(t *testing.T) {
	set, _ := mockSet(0.4)
	e, err := NewEstimator(DefaultConfig(), set)
	require.NoError(t, err)

	frame := test.NewMockFrameGenerator(2048, 1024).GenerateAnomalyFrame(900, 600, 64)
	score, err := e.Estimate(context.Background(), frame)
	require.NoError(t, err)

	assert.Equal(t, 2048, score.Width)
	assert.Equal(t, 1024, score.Height)
	// A uniform two-class map has constant entropy, which normalizes to zero, so only
	// the dissimilarity term remains.
	for _, v := range score.Data {
		require.InDelta(t, 0.75*0.4, v, 1e-5)
	}
}

func TestEstimatePreservesArbitraryResolution(t *testing.T) {
	set, _ := mockSet(1)
	e, err := NewEstimator(DefaultConfig(), set)
	require.NoError(t, err)

	for _, size := range [][2]int{{300, 150}, {4000, 2000}, {17, 9}} {
		frame := test.NewMockFrameGenerator(size[0], size[1]).GenerateStaticFrame()
		score, err := e.Estimate(context.Background(), frame)
		require.NoError(t, err)
		assert.Equal(t, size[0], score.Width)
		assert.Equal(t, size[1], score.Height)
		lo, hi := score.MinMax()
		assert.GreaterOrEqual(t, lo, float32(0))
		assert.LessOrEqual(t, hi, float32(1))
	}
}

func TestEstimateWithTrace(t *testing.T) {
	set, syn := mockSet(0.5)
	e, err := NewEstimator(DefaultConfig(), set)
	require.NoError(t, err)

	frame := test.NewMockFrameGenerator(1024, 512).GenerateStaticFrame()
	res, err := e.EstimateWithTrace(context.Background(), frame)
	require.NoError(t, err)
	require.NotNil(t, res.Trace)

	names := make([]string, 0, len(res.Trace.Stages))
	for _, s := range res.Trace.Stages {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{
		StageSegmentation, StageUncertainty, StageSynthesis,
		StageFeatures, StageDissimilarity, StageFusion,
	}, names)

	assert.Equal(t, 2048, res.Trace.Probabilities.Width)
	assert.Equal(t, 512, res.Trace.Synthesized.Bounds().Dx())
	assert.Equal(t, 256, res.Trace.Bundle.Height)

	// Ties resolve to train ID 0, which is road (label ID 7).
	require.NotNil(t, syn.Last)
	assert.Equal(t, 7, syn.Last.Label.At(10, 10))
	assert.Equal(t, syn.Last.Label.Data, syn.Last.Instance.Data)

	// Entropy is zero and distance saturates for the uniform map.
	assert.Equal(t, float32(0), res.Trace.Bundle.Entropy.At(5, 5))
	assert.Equal(t, float32(1), res.Trace.Bundle.Distance.At(5, 5))
}

func TestEstimateFailsWholeImageOnStageError(t *testing.T) {
	boom := errors.New("synthesis exploded")
	set := models.NewSet(
		&test.MockSegmenter{Classes: 2},
		&test.MockSynthesizer{Err: boom},
		&test.MockDissimilarity{},
		&test.MockPerceptual{},
	)
	e, err := NewEstimator(DefaultConfig(), set)
	require.NoError(t, err)

	score, err := e.Estimate(context.Background(), test.NewMockFrameGenerator(64, 32).GenerateStaticFrame())
	assert.Nil(t, score)
	require.Error(t, err)
	assert.Equal(t, boom, errors.Cause(err))
	assert.Contains(t, err.Error(), StageSynthesis)
}

func TestEstimateHonoursCancellation(t *testing.T) {
	set, _ := mockSet(0.5)
	e, err := NewEstimator(DefaultConfig(), set)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Estimate(ctx, test.NewMockFrameGenerator(64, 32).GenerateStaticFrame())
	assert.Equal(t, context.Canceled, errors.Cause(err))
}

func TestNewEstimatorValidates(t *testing.T) {
	set, _ := mockSet(0.5)

	c := DefaultConfig()
	c.UnknownID = 300
	_, err := NewEstimator(c, set)
	assert.Error(t, err)

	_, err = NewEstimator(DefaultConfig(), models.NewSet(nil, nil, nil, nil))
	assert.Error(t, err)
}
