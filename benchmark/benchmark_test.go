package benchmark

import (
	"context"
	"encoding/json"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nvr-ai/go-anomaly/pipeline"
	"github.com/nvr-ai/go-anomaly/tensors"
	"github.com/nvr-ai/go-anomaly/test"
	"github.com/nvr-ai/go-anomaly/util"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// redEstimator scores a pixel 1 when its red channel is bright, which is exactly the
// obstacle painted by the mock frame generator.
type redEstimator struct {
	calls int
	fail  string
}

func (e *redEstimator) EstimateWithTrace(_ context.Context, img image.Image) (*pipeline.Result, error) {
	e.calls++
	b := img.Bounds()
	if e.fail != "" && b.Dx() == 33 {
		return nil, errors.New(e.fail)
	}
	score := tensors.NewPlane(b.Dx(), b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			r, _, _, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			if r>>8 > 200 {
				score.Set(x, y, 1)
			}
		}
	}
	return &pipeline.Result{
		Score: score,
		Trace: &pipeline.Trace{Stages: []pipeline.StageTiming{
			{Name: pipeline.StageSegmentation, Duration: time.Millisecond},
		}},
	}, nil
}

func writeSample(t *testing.T, dir, name string, w, h int, withMask bool) {
	t.Helper()
	gen := test.NewMockFrameGenerator(w, h)
	write := func(path string, img image.Image) {
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		f, err := os.Create(path)
		require.NoError(t, err)
		defer f.Close()
		require.NoError(t, png.Encode(f, img))
	}
	write(filepath.Join(dir, util.ImagesDir, name+".png"), gen.GenerateAnomalyFrame(4, 4, 6))
	if withMask {
		write(filepath.Join(dir, util.MasksDir, name+".png"), gen.GenerateMask(4, 4, 6))
	}
}

func TestSuiteRunEvaluatesMaskedSamples(t *testing.T) {
	data := t.TempDir()
	writeSample(t, data, "a", 32, 16, true)
	writeSample(t, data, "b", 32, 16, true)
	writeSample(t, data, "c", 32, 16, false)

	samples, err := util.LoadDataset(data)
	require.NoError(t, err)

	est := &redEstimator{}
	suite, err := NewSuite(NewSuiteArgs{Estimator: est, OutputPath: t.TempDir(), WarmupRuns: 2})
	require.NoError(t, err)

	report, err := suite.Run(context.Background(), "mock", samples)
	require.NoError(t, err)
	assert.Equal(t, 5, est.calls)

	require.NotNil(t, report.Evaluation)
	assert.InDelta(t, 1, report.Evaluation.AP, 1e-9)
	assert.InDelta(t, 1, report.Evaluation.AUROC, 1e-9)
	assert.InDelta(t, 0, report.Evaluation.FPR95, 1e-9)
	// The top row is void in both masks.
	assert.Equal(t, 2*32*15, report.Evaluation.Pixels)

	assert.Equal(t, 3, report.Performance.Images)
	assert.Zero(t, report.Performance.Failed)
	assert.Equal(t, 3*time.Millisecond, report.Performance.StageDurations[pipeline.StageSegmentation])
	require.Contains(t, report.Performance.StageStats, pipeline.StageSegmentation)
	assert.Equal(t, int64(3), report.Performance.StageStats[pipeline.StageSegmentation].Count)
	assert.Equal(t, time.Millisecond, report.Performance.StageStats[pipeline.StageSegmentation].P95)
	require.Len(t, report.Results, 3)
	assert.InDelta(t, 36.0/(32*16), report.Results[0].MeanScore, 1e-9)

	path, err := suite.SaveResults()
	require.NoError(t, err)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded Report
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "mock", decoded.Performance.Dataset)
}

func TestSuiteRecordsFailuresAndContinues(t *testing.T) {
	data := t.TempDir()
	writeSample(t, data, "good", 32, 16, true)
	writeSample(t, data, "bad", 33, 16, true)

	samples, err := util.LoadDataset(data)
	require.NoError(t, err)

	suite, err := NewSuite(NewSuiteArgs{
		Estimator:  &redEstimator{fail: "segmentation failed"},
		OutputPath: t.TempDir(),
	})
	require.NoError(t, err)

	report, err := suite.Run(context.Background(), "mock", samples)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Performance.Failed)
	assert.InDelta(t, 0.5, report.Performance.ErrorRate, 1e-9)
	assert.Equal(t, "segmentation failed", report.Results[0].Error)
	require.NotNil(t, report.Evaluation)
	assert.Equal(t, 32*15, report.Evaluation.Pixels)
}

func TestNewSuiteValidates(t *testing.T) {
	_, err := NewSuite(NewSuiteArgs{OutputPath: t.TempDir()})
	assert.Error(t, err)

	suite, err := NewSuite(NewSuiteArgs{Estimator: &redEstimator{}, OutputPath: t.TempDir()})
	require.NoError(t, err)
	_, err = suite.SaveResults()
	assert.Error(t, err)
	_, err = suite.Run(context.Background(), "empty", nil)
	assert.Error(t, err)
}
