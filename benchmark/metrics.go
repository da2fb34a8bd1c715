// Package benchmark - Runs the estimator over a dataset and reports accuracy and
// performance.
package benchmark

import (
	"time"

	"github.com/nvr-ai/go-anomaly/evaluation"
	"github.com/nvr-ai/go-anomaly/profiler"
)

// PerformanceMetrics captures detailed performance data
type PerformanceMetrics struct {
	Dataset         string                   `json:"dataset"`
	Timestamp       time.Time                `json:"timestamp"`
	Images          int                      `json:"images"`
	Failed          int                      `json:"failed"`
	TotalDuration   time.Duration            `json:"total_duration"`
	StageDurations  map[string]time.Duration `json:"stage_durations"`
	ImagesPerSecond float64                  `json:"images_per_second"`
	MemoryStats     MemoryMetrics            `json:"memory_stats"`
	CPUStats        CPUMetrics               `json:"cpu_stats"`
	ErrorRate       float64                  `json:"error_rate"`

	// StageStats holds per-image statistics for each stage and "total".
	StageStats map[string]profiler.TimingStats `json:"stage_stats"`
}

// MemoryMetrics captures memory usage statistics
type MemoryMetrics struct {
	AllocBytes      uint64 `json:"alloc_bytes"`
	TotalAllocBytes uint64 `json:"total_alloc_bytes"`
	SysBytes        uint64 `json:"sys_bytes"`
	NumGC           uint32 `json:"num_gc"`
	HeapAllocBytes  uint64 `json:"heap_alloc_bytes"`
	HeapSysBytes    uint64 `json:"heap_sys_bytes"`
}

// CPUMetrics captures CPU usage statistics
type CPUMetrics struct {
	NumCPU int `json:"num_cpu"`
}

// ImageResult is the outcome for one sample.
type ImageResult struct {
	Name      string        `json:"name"`
	Width     int           `json:"width"`
	Height    int           `json:"height"`
	Duration  time.Duration `json:"duration"`
	MeanScore float64       `json:"mean_score"`
	Heatmap   string        `json:"heatmap,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// Report is everything a run produces.
type Report struct {
	Performance PerformanceMetrics `json:"performance"`
	// Evaluation is nil when no sample carried a mask.
	Evaluation *evaluation.Metrics `json:"evaluation,omitempty"`
	Results    []ImageResult       `json:"results"`
}
