package pipeline

import (
	"image"
	"time"

	"github.com/nvr-ai/go-anomaly/features"
	"github.com/nvr-ai/go-anomaly/tensors"
	"github.com/nvr-ai/go-anomaly/uncertainty"
)

// Stage names used in traces and error messages.
const (
	StageSegmentation  = "segmentation"
	StageUncertainty   = "uncertainty"
	StageSynthesis     = "synthesis"
	StageFeatures      = "features"
	StageDissimilarity = "dissimilarity"
	StageFusion        = "fusion"
)

// StageTiming is the wall time of one stage.
type StageTiming struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
}

// Trace holds the intermediates of one run.
type Trace struct {
	Stages        []StageTiming
	Probabilities *tensors.Volume
	TrainIDs      *tensors.LabelMap
	Uncertainty   *uncertainty.Channels
	Synthesized   *image.RGBA
	Bundle        *features.Bundle
	// Anomalous is the dissimilarity probability of the anomalous class.
	Anomalous *tensors.Plane
}

// Total returns the summed stage time.
func (t *Trace) Total() time.Duration {
	var d time.Duration
	for _, s := range t.Stages {
		d += s.Duration
	}
	return d
}

// Result is the score map and, when requested, the trace that produced it.
type Result struct {
	Score *tensors.Plane
	Trace *Trace
}
