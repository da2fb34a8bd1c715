// Package profiler - Rolling timing and value statistics for pipeline runs.
package profiler

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// RuntimeProfiler tracks per-stage durations and custom values over a rolling window
// and can print periodic status reports while a long run is in progress.
type RuntimeProfiler struct {
	reportInterval time.Duration
	maxSamples     int
	out            io.Writer

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.RWMutex
	startTime time.Time
	running   bool

	memStats       runtime.MemStats
	lastGCCount    uint32
	operationTimes map[string]*tracker
	customMetrics  map[string]*tracker
}

// tracker keeps the newest maxSamples values of one series.
type tracker struct {
	values []float64
	count  int64
	min    float64
	max    float64
}

func (t *tracker) add(v float64, maxSamples int) {
	if t.count == 0 || v < t.min {
		t.min = v
	}
	if t.count == 0 || v > t.max {
		t.max = v
	}
	t.values = append(t.values, v)
	if len(t.values) > maxSamples {
		t.values = t.values[1:]
	}
	t.count++
}

// summary returns the mean and the p50 and p95 of the window.
func (t *tracker) summary() (mean, p50, p95 float64) {
	sorted := append([]float64(nil), t.values...)
	sort.Float64s(sorted)
	return stat.Mean(sorted, nil),
		stat.Quantile(0.5, stat.Empirical, sorted, nil),
		stat.Quantile(0.95, stat.Empirical, sorted, nil)
}

// ProfilingOptions configures the runtime profiler.
type ProfilingOptions struct {
	// ReportInterval specifies how often to emit status reports (default: 10s).
	ReportInterval time.Duration
	// MaxSamples specifies how many values per series are kept (default: 1000).
	MaxSamples int
	// Output receives the status reports (default: stdout).
	Output io.Writer
}

// TimingStats summarizes one operation's durations.
type TimingStats struct {
	Count int64         `json:"count"`
	Mean  time.Duration `json:"mean"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	P50   time.Duration `json:"p50"`
	P95   time.Duration `json:"p95"`
}

// MetricStats summarizes one custom value series.
type MetricStats struct {
	Count int64   `json:"count"`
	Mean  float64 `json:"mean"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	P95   float64 `json:"p95"`
}

// NewRuntimeProfiler creates a new runtime profiler with the specified options.
//
// Arguments:
// - opts: Configuration options for the profiler
//
// Returns:
// - A configured RuntimeProfiler instance
func NewRuntimeProfiler(opts ProfilingOptions) *RuntimeProfiler {
	if opts.ReportInterval == 0 {
		opts.ReportInterval = 10 * time.Second
	}
	if opts.MaxSamples == 0 {
		opts.MaxSamples = 1000
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &RuntimeProfiler{
		reportInterval: opts.ReportInterval,
		maxSamples:     opts.MaxSamples,
		out:            opts.Output,
		ctx:            ctx,
		cancel:         cancel,
		startTime:      time.Now(),
		operationTimes: make(map[string]*tracker),
		customMetrics:  make(map[string]*tracker),
	}
}

// Start begins emitting periodic status reports. Calling it twice has no effect.
func (rp *RuntimeProfiler) Start() {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	if rp.running {
		return
	}
	rp.running = true
	rp.startTime = time.Now()

	rp.wg.Add(1)
	go func() {
		defer rp.wg.Done()

		ticker := time.NewTicker(rp.reportInterval)
		defer ticker.Stop()

		for {
			select {
			case <-rp.ctx.Done():
				return
			case <-ticker.C:
				rp.emitStatusReport()
			}
		}
	}()
}

// Stop stops the reporter and waits for it to exit.
func (rp *RuntimeProfiler) Stop() {
	rp.mu.Lock()
	if !rp.running {
		rp.mu.Unlock()
		return
	}
	rp.running = false
	rp.mu.Unlock()

	rp.cancel()
	rp.wg.Wait()
}

// RecordMetric records a custom metric value.
//
// Arguments:
// - name: The name of the metric
// - value: The metric value to record
func (rp *RuntimeProfiler) RecordMetric(name string, value float64) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.series(rp.customMetrics, name).add(value, rp.maxSamples)
}

// RecordDuration records one completed operation.
//
// Arguments:
// - name: The operation, usually a pipeline stage
// - d: Its wall time
func (rp *RuntimeProfiler) RecordDuration(name string, d time.Duration) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.series(rp.operationTimes, name).add(float64(d), rp.maxSamples)
}

// StartOperation begins timing an operation.
//
// Arguments:
// - name: The name of the operation to track
//
// Returns:
// - A function to call when the operation completes
func (rp *RuntimeProfiler) StartOperation(name string) func() {
	start := time.Now()
	return func() {
		rp.RecordDuration(name, time.Since(start))
	}
}

func (rp *RuntimeProfiler) series(m map[string]*tracker, name string) *tracker {
	t, ok := m[name]
	if !ok {
		t = &tracker{values: make([]float64, 0, 16)}
		m[name] = t
	}
	return t
}

// Timings returns the statistics of every recorded operation.
func (rp *RuntimeProfiler) Timings() map[string]TimingStats {
	rp.mu.RLock()
	defer rp.mu.RUnlock()

	out := make(map[string]TimingStats, len(rp.operationTimes))
	for name, t := range rp.operationTimes {
		mean, p50, p95 := t.summary()
		out[name] = TimingStats{
			Count: t.count,
			Mean:  time.Duration(mean),
			Min:   time.Duration(t.min),
			Max:   time.Duration(t.max),
			P50:   time.Duration(p50),
			P95:   time.Duration(p95),
		}
	}
	return out
}

// Metrics returns the statistics of every custom metric.
func (rp *RuntimeProfiler) Metrics() map[string]MetricStats {
	rp.mu.RLock()
	defer rp.mu.RUnlock()

	out := make(map[string]MetricStats, len(rp.customMetrics))
	for name, t := range rp.customMetrics {
		mean, _, p95 := t.summary()
		out[name] = MetricStats{Count: t.count, Mean: mean, Min: t.min, Max: t.max, P95: p95}
	}
	return out
}

// emitStatusReport prints uptime, memory and the rolling statistics.
func (rp *RuntimeProfiler) emitStatusReport() {
	timings := rp.Timings()
	metrics := rp.Metrics()

	rp.mu.Lock()
	runtime.ReadMemStats(&rp.memStats)
	mem := rp.memStats
	newGC := mem.NumGC - rp.lastGCCount
	rp.lastGCCount = mem.NumGC
	uptime := time.Since(rp.startTime)
	rp.mu.Unlock()

	fmt.Fprintf(rp.out, "PROFILER STATUS REPORT - %s (uptime %v)\n",
		time.Now().Format("15:04:05.000"), uptime.Truncate(time.Millisecond))
	fmt.Fprintf(rp.out, "  Heap Alloc: %s  Sys: %s  GC cycles: %d (new: %d)\n",
		formatBytes(mem.HeapAlloc), formatBytes(mem.Sys), mem.NumGC, newGC)

	for _, name := range sortedKeys(timings) {
		s := timings[name]
		fmt.Fprintf(rp.out, "  %s: avg=%v, p95=%v, max=%v, count=%d\n",
			name,
			s.Mean.Truncate(time.Microsecond),
			s.P95.Truncate(time.Microsecond),
			s.Max.Truncate(time.Microsecond),
			s.Count)
	}
	for _, name := range sortedKeys(metrics) {
		s := metrics[name]
		fmt.Fprintf(rp.out, "  %s: avg=%.4f, min=%.4f, max=%.4f, samples=%d\n",
			name, s.Mean, s.Min, s.Max, s.Count)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// formatBytes formats byte counts in human-readable format.
func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
