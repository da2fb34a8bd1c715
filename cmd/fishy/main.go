package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nvr-ai/go-anomaly/benchmark"
	"github.com/nvr-ai/go-anomaly/config"
	"github.com/nvr-ai/go-anomaly/images"
	"github.com/nvr-ai/go-anomaly/inference"
	"github.com/nvr-ai/go-anomaly/models"
	"github.com/nvr-ai/go-anomaly/pipeline"
	"github.com/nvr-ai/go-anomaly/util"
)

func main() {
	var (
		configFile = flag.String("config", "", "Path to the YAML pipeline configuration")
		dataDir    = flag.String("data", "", "Dataset directory (images/ and labels/ subdirectories)")
		imagePath  = flag.String("image", "", "Score a single image and write its heatmap")
		outputDir  = flag.String("output", "", "Output directory, overrides output.results_dir")
		heatmaps   = flag.Bool("heatmaps", false, "Write a heatmap per dataset image")
		warmup     = flag.Int("warmup", 1, "Warmup runs before timing")
		debug      = flag.Bool("debug", false, "Enable debug logging")
		timeout    = flag.Duration("timeout", 2*time.Hour, "Overall timeout")
	)
	flag.Parse()

	if *dataDir == "" && *imagePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *outputDir != "" {
		cfg.Output.ResultsDir = *outputDir
	}
	if *heatmaps {
		cfg.Output.Heatmaps = true
	}
	if *debug {
		cfg.Debug = true
	}

	set, err := models.Load(cfg.Models())
	if err != nil {
		log.Fatalf("Failed to load models: %v", err)
	}
	defer func() {
		if err := set.Close(); err != nil {
			log.Printf("Failed to close models: %v", err)
		}
		if err := inference.Shutdown(); err != nil {
			log.Printf("Failed to shut down ONNX Runtime: %v", err)
		}
	}()

	estimator, err := pipeline.NewEstimator(cfg.Pipeline, set)
	if err != nil {
		log.Fatalf("Failed to create estimator: %v", err)
	}
	estimator.SetDebugMode(cfg.Debug)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if *imagePath != "" {
		if err := scoreImage(ctx, estimator, *imagePath, cfg.Output.ResultsDir); err != nil {
			log.Printf("Failed to score %s: %v", *imagePath, err)
		}
		return
	}

	if err := evaluate(ctx, estimator, cfg, *dataDir, *warmup); err != nil {
		log.Printf("Evaluation failed: %v", err)
	}
}

func scoreImage(ctx context.Context, estimator *pipeline.Estimator, path, outputDir string) error {
	img, err := images.ReadFile(path)
	if err != nil {
		return err
	}
	res, err := estimator.EstimateWithTrace(ctx, img)
	if err != nil {
		return err
	}
	for _, st := range res.Trace.Stages {
		fmt.Printf("  %-14s %v\n", st.Name, st.Duration)
	}
	fmt.Printf("  %-14s %v\n", "total", res.Trace.Total())

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return err
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	out := filepath.Join(outputDir, name+"_anomaly.png")
	if err := images.WriteHeatmap(out, res.Score); err != nil {
		return err
	}
	fmt.Printf("Heatmap written to %s\n", out)
	return nil
}

func evaluate(ctx context.Context, estimator *pipeline.Estimator, cfg *config.Config, dir string, warmup int) error {
	samples, err := util.LoadDataset(dir)
	if err != nil {
		return err
	}
	fmt.Printf("Loaded %d samples from %s\n", len(samples), dir)

	suite, err := benchmark.NewSuite(benchmark.NewSuiteArgs{
		Estimator:      estimator,
		OutputPath:     cfg.Output.ResultsDir,
		Heatmaps:       cfg.Output.Heatmaps,
		WarmupRuns:     warmup,
		ReportInterval: 30 * time.Second,
	})
	if err != nil {
		return err
	}
	suite.SetDebugMode(cfg.Debug)

	fmt.Println("Starting evaluation...")
	report, err := suite.Run(ctx, filepath.Base(dir), samples)
	if err != nil {
		return err
	}
	path, err := suite.SaveResults()
	if err != nil {
		return err
	}

	p := report.Performance
	fmt.Printf("\n=== ANOMALY EVALUATION SUMMARY ===\n")
	fmt.Printf("Images: %d (%d failed)\n", p.Images, p.Failed)
	fmt.Printf("Throughput: %.2f images/s in %v\n", p.ImagesPerSecond, p.TotalDuration)
	for _, stage := range []string{
		pipeline.StageSegmentation,
		pipeline.StageUncertainty,
		pipeline.StageSynthesis,
		pipeline.StageFeatures,
		pipeline.StageDissimilarity,
		pipeline.StageFusion,
	} {
		fmt.Printf("  %-14s %v\n", stage, p.StageDurations[stage])
	}
	if report.Evaluation != nil {
		fmt.Printf("\n%s\n", report.Evaluation)
	} else {
		fmt.Println("\nNo ground-truth masks found; metrics skipped.")
	}
	fmt.Printf("Results saved to: %s\n", path)
	return nil
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", filepath.Base(os.Args[0]))
		fmt.Fprintf(os.Stderr, "Pixel-wise anomaly scoring of street scenes.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(
			os.Stderr,
			"  %s -config ./fishy.yaml -data ./fs_lost_and_found -heatmaps\n",
			filepath.Base(os.Args[0]),
		)
		fmt.Fprintf(
			os.Stderr,
			"  %s -config ./fishy.yaml -image ./frame.png -output ./results\n",
			filepath.Base(os.Args[0]),
		)
	}
}
