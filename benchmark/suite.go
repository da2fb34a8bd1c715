package benchmark

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/nvr-ai/go-anomaly/evaluation"
	"github.com/nvr-ai/go-anomaly/images"
	"github.com/nvr-ai/go-anomaly/pipeline"
	"github.com/nvr-ai/go-anomaly/profiler"
	"github.com/nvr-ai/go-anomaly/util"
	"github.com/pkg/errors"
)

// Estimator is the part of the pipeline the suite drives.
type Estimator interface {
	EstimateWithTrace(ctx context.Context, img image.Image) (*pipeline.Result, error)
}

// NewSuiteArgs represents the arguments for creating a new benchmark suite.
type NewSuiteArgs struct {
	Estimator Estimator `json:"-" yaml:"-"`
	// OutputPath is created if missing and receives the report and heatmaps.
	OutputPath string `json:"outputPath" yaml:"outputPath"`
	// Heatmaps writes a colour-mapped score image per sample.
	Heatmaps bool `json:"heatmaps" yaml:"heatmaps"`
	// WarmupRuns runs the first sample this many times before timing starts.
	WarmupRuns int `json:"warmupRuns" yaml:"warmupRuns"`
	// ReportInterval enables periodic profiler reports in debug mode.
	ReportInterval time.Duration `json:"reportInterval" yaml:"reportInterval"`
}

// Suite runs the estimator over a dataset.
type Suite struct {
	args      NewSuiteArgs
	debugMode bool

	mu     sync.RWMutex
	report *Report
}

// NewSuite creates a new benchmark suite.
//
// Arguments:
//   - args: The arguments for creating a new benchmark suite.
//
// Returns:
//   - *Suite: The benchmark suite.
//   - error: An error if no estimator is given or the output directory cannot be made.
func NewSuite(args NewSuiteArgs) (*Suite, error) {
	if args.Estimator == nil {
		return nil, errors.New("benchmark suite needs an estimator")
	}
	if args.OutputPath == "" {
		return nil, errors.New("benchmark suite needs an output path")
	}
	if err := os.MkdirAll(args.OutputPath, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create output directory")
	}
	return &Suite{args: args}, nil
}

// SetDebugMode enables or disables per-image debug logging.
func (s *Suite) SetDebugMode(enabled bool) {
	s.debugMode = enabled
}

// Run estimates every sample, evaluates those with masks and records performance.
//
// A failing sample is recorded and skipped; it never contributes partial scores.
//
// Arguments:
//   - ctx: Cancels the run between samples.
//   - dataset: A name for the report.
//   - samples: The samples to process.
//
// Returns:
//   - *Report: The report.
//   - error: Cancellation, or an evaluation error when masks are present but unusable.
func (s *Suite) Run(ctx context.Context, dataset string, samples []util.Sample) (*Report, error) {
	if len(samples) == 0 {
		return nil, errors.New("no samples to benchmark")
	}

	s.warmup(ctx, samples[0])

	var startMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&startMem)

	prof := profiler.NewRuntimeProfiler(profiler.ProfilingOptions{
		ReportInterval: s.args.ReportInterval,
		MaxSamples:     len(samples),
	})
	if s.debugMode && s.args.ReportInterval > 0 {
		prof.Start()
		defer prof.Stop()
	}

	report := &Report{
		Performance: PerformanceMetrics{
			Dataset:        dataset,
			Timestamp:      time.Now(),
			StageDurations: make(map[string]time.Duration),
		},
	}
	var acc evaluation.Accumulator
	masks := 0
	start := time.Now()

	for _, sample := range samples {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, res, err := s.process(ctx, sample)
		if err != nil {
			result.Error = err.Error()
			report.Performance.Failed++
			log.Printf("sample %s failed: %v", sample.Name, err)
			report.Results = append(report.Results, result)
			continue
		}
		for _, st := range res.Trace.Stages {
			report.Performance.StageDurations[st.Name] += st.Duration
			prof.RecordDuration(st.Name, st.Duration)
		}
		prof.RecordDuration("total", result.Duration)
		prof.RecordMetric("mean_score", result.MeanScore)

		if sample.HasMask() {
			mask, err := sample.ReadMask()
			if err != nil {
				return nil, err
			}
			if err := acc.Add(res.Score, mask); err != nil {
				return nil, errors.Wrapf(err, "sample %s", sample.Name)
			}
			masks++
		}
		report.Results = append(report.Results, result)
	}

	total := time.Since(start)
	var endMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&endMem)

	p := &report.Performance
	p.Images = len(samples)
	p.TotalDuration = total
	if done := len(samples) - p.Failed; done > 0 && total > 0 {
		p.ImagesPerSecond = float64(done) / total.Seconds()
	}
	p.ErrorRate = float64(p.Failed) / float64(len(samples))
	p.MemoryStats = MemoryMetrics{
		AllocBytes:      endMem.Alloc,
		TotalAllocBytes: endMem.TotalAlloc - startMem.TotalAlloc,
		SysBytes:        endMem.Sys,
		NumGC:           endMem.NumGC - startMem.NumGC,
		HeapAllocBytes:  endMem.HeapAlloc,
		HeapSysBytes:    endMem.HeapSys,
	}
	p.CPUStats = CPUMetrics{NumCPU: runtime.NumCPU()}
	p.StageStats = prof.Timings()

	if masks > 0 {
		metrics, err := acc.Compute()
		if err != nil {
			return nil, errors.Wrap(err, "evaluation")
		}
		report.Evaluation = &metrics
	}

	s.mu.Lock()
	s.report = report
	s.mu.Unlock()
	return report, nil
}

func (s *Suite) warmup(ctx context.Context, sample util.Sample) {
	if s.args.WarmupRuns <= 0 {
		return
	}
	img, err := sample.ReadImage()
	if err != nil {
		return
	}
	for i := 0; i < s.args.WarmupRuns; i++ {
		if _, err := s.args.Estimator.EstimateWithTrace(ctx, img); err != nil {
			return // warmup errors resurface in the timed run
		}
	}
}

func (s *Suite) process(ctx context.Context, sample util.Sample) (ImageResult, *pipeline.Result, error) {
	result := ImageResult{Name: sample.Name}
	img, err := sample.ReadImage()
	if err != nil {
		return result, nil, err
	}
	b := img.Bounds()
	result.Width, result.Height = b.Dx(), b.Dy()

	start := time.Now()
	res, err := s.args.Estimator.EstimateWithTrace(ctx, img)
	if err != nil {
		return result, nil, err
	}
	result.Duration = time.Since(start)

	var sum float64
	for _, v := range res.Score.Data {
		sum += float64(v)
	}
	result.MeanScore = sum / float64(len(res.Score.Data))

	if s.debugMode {
		fmt.Printf("[DEBUG] %s: %dx%d in %s, mean score %.4f\n",
			sample.Name, result.Width, result.Height, result.Duration, result.MeanScore)
	}

	if s.args.Heatmaps {
		path := filepath.Join(s.args.OutputPath, sample.Name+"_anomaly.png")
		if err := images.WriteHeatmap(path, res.Score); err != nil {
			return result, nil, errors.Wrap(err, "heatmap")
		}
		result.Heatmap = path
	}
	return result, res, nil
}

// SaveResults persists the last report to the output directory as JSON and a CSV
// summary.
//
// Returns:
//   - string: The JSON report path.
//   - error: An error if nothing ran yet or a file cannot be written.
func (s *Suite) SaveResults() (string, error) {
	s.mu.RLock()
	report := s.report
	s.mu.RUnlock()
	if report == nil {
		return "", errors.New("no results to save")
	}

	timestamp := report.Performance.Timestamp.Format("2006-01-02_15-04-05")
	resultsFile := filepath.Join(s.args.OutputPath, fmt.Sprintf("anomaly_results_%s.json", timestamp))

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal results")
	}
	if err := os.WriteFile(resultsFile, data, 0o644); err != nil {
		return "", errors.Wrap(err, "failed to write results file")
	}

	summaryFile := filepath.Join(s.args.OutputPath, fmt.Sprintf("anomaly_summary_%s.csv", timestamp))
	if err := saveSummaryCSV(summaryFile, report.Results); err != nil {
		return "", errors.Wrap(err, "failed to save summary CSV")
	}
	return resultsFile, nil
}

func saveSummaryCSV(filename string, results []ImageResult) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := file.WriteString("Image,Width,Height,Duration_ms,Mean_Score,Error\n"); err != nil {
		return err
	}
	for _, r := range results {
		line := fmt.Sprintf("%s,%d,%d,%.2f,%.4f,%q\n",
			r.Name,
			r.Width,
			r.Height,
			float64(r.Duration.Nanoseconds())/1e6,
			r.MeanScore,
			r.Error,
		)
		if _, err := file.WriteString(line); err != nil {
			return err
		}
	}
	return nil
}

// GetReport returns the last report, nil before the first run.
func (s *Suite) GetReport() *Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.report
}
