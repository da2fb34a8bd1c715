// Package config - YAML configuration for the anomaly pipeline with .env overrides.
package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/nvr-ai/go-anomaly/inference/providers"
	"github.com/nvr-ai/go-anomaly/models"
	"github.com/nvr-ai/go-anomaly/models/dissimilarity"
	"github.com/nvr-ai/go-anomaly/models/perceptual"
	"github.com/nvr-ai/go-anomaly/models/segmentation"
	"github.com/nvr-ai/go-anomaly/models/synthesis"
	"github.com/nvr-ai/go-anomaly/pipeline"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Environment variables that override file values.
const (
	EnvRuntimeLibrary      = "ANOMALY_ORT_LIB"
	EnvSegmentationModel   = "ANOMALY_SEGMENTATION_MODEL"
	EnvSynthesisModel      = "ANOMALY_SYNTHESIS_MODEL"
	EnvDissimilarityFolder = "ANOMALY_DISSIMILARITY_SAVE_FOLDER"
	EnvPerceptualModel     = "ANOMALY_PERCEPTUAL_MODEL"
)

// RuntimeConfig selects the ONNX Runtime library and execution provider.
type RuntimeConfig struct {
	Library  string           `json:"library" yaml:"library"`
	Provider providers.Config `json:"provider" yaml:"provider"`
}

// DissimilarityModel is the model block of the dissimilarity configuration.
type DissimilarityModel struct {
	Prior bool `json:"prior" yaml:"prior"`
}

// DissimilarityConfig locates and shapes the dissimilarity network.
type DissimilarityConfig struct {
	Model                    DissimilarityModel `json:"model" yaml:"model"`
	dissimilarity.Checkpoint `yaml:",inline"`
	// Network overrides tensor names and resolution; its path and prior are ignored.
	Network dissimilarity.Options `json:"network" yaml:"network"`
}

// OutputConfig controls what is written next to the metrics.
type OutputConfig struct {
	ResultsDir string `json:"results_dir" yaml:"results_dir"`
	Heatmaps   bool   `json:"heatmaps" yaml:"heatmaps"`
}

// Config is the whole pipeline configuration.
type Config struct {
	Runtime       RuntimeConfig        `json:"runtime" yaml:"runtime"`
	Segmentation  segmentation.Options `json:"segmentation" yaml:"segmentation"`
	Synthesis     synthesis.Options    `json:"synthesis" yaml:"synthesis"`
	Perceptual    perceptual.Options   `json:"perceptual" yaml:"perceptual"`
	Dissimilarity DissimilarityConfig  `json:"dissimilarity" yaml:"dissimilarity"`
	Pipeline      pipeline.Config      `json:"pipeline" yaml:"pipeline"`
	Output        OutputConfig         `json:"output" yaml:"output"`
	Debug         bool                 `json:"debug" yaml:"debug"`
}

// DefaultConfig returns the default configuration with no model paths set.
func DefaultConfig() *Config {
	m := models.DefaultConfig()
	return &Config{
		Runtime:      RuntimeConfig{Provider: m.Provider},
		Segmentation: m.Segmentation,
		Synthesis:    m.Synthesis,
		Perceptual:   m.Perceptual,
		Dissimilarity: DissimilarityConfig{
			Model:   DissimilarityModel{Prior: true},
			Network: m.Dissimilarity,
		},
		Pipeline: pipeline.DefaultConfig(),
		Output:   OutputConfig{ResultsDir: "results"},
	}
}

// Load reads a YAML file over the defaults, then applies .env and environment
// overrides and validates the result.
//
// Arguments:
//   - path: The YAML file, empty to use the defaults only.
//
// Returns:
//   - *Config: The configuration.
//   - error: A read or parse error, or ErrInvalidConfig (wrapped).
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "error reading config %s", path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "error parsing config %s", path)
		}
	}

	// A missing .env file is not an error.
	_ = godotenv.Load()
	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides paths with any non-empty environment variable.
func (c *Config) ApplyEnv() {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.Runtime.Library, EnvRuntimeLibrary)
	set(&c.Segmentation.Path, EnvSegmentationModel)
	set(&c.Synthesis.Path, EnvSynthesisModel)
	set(&c.Dissimilarity.SaveFolder, EnvDissimilarityFolder)
	set(&c.Perceptual.Path, EnvPerceptualModel)
}

// CheckpointPath returns the dissimilarity weights file.
func (c *Config) CheckpointPath() string {
	return c.Dissimilarity.Checkpoint.Path()
}

// Models returns the model loader configuration.
func (c *Config) Models() models.Config {
	diss := c.Dissimilarity.Network
	diss.Path = ""
	diss.Prior = c.Dissimilarity.Model.Prior
	return models.Config{
		Library:       c.Runtime.Library,
		Provider:      c.Runtime.Provider,
		Segmentation:  c.Segmentation,
		Synthesis:     c.Synthesis,
		Dissimilarity: diss,
		Checkpoint:    c.Dissimilarity.Checkpoint,
		Perceptual:    c.Perceptual,
	}
}

// Validate checks the configuration is internally consistent.
//
// Returns:
//   - error: ErrInvalidConfig wrapping the first problem.
func (c *Config) Validate() error {
	invalid := func(err error) error {
		return errors.Wrapf(ErrInvalidConfig, "%v", err)
	}
	if err := c.Models().Validate(); err != nil {
		return invalid(err)
	}
	if err := c.Pipeline.Validate(); err != nil {
		return invalid(err)
	}

	p := c.Pipeline
	if c.Segmentation.Width != p.SegmentationWidth || c.Segmentation.Height != p.SegmentationHeight {
		return invalid(errors.Errorf("segmentation model is %dx%d but the pipeline feeds %dx%d",
			c.Segmentation.Width, c.Segmentation.Height, p.SegmentationWidth, p.SegmentationHeight))
	}
	fw, fh := p.Features.Width, p.Features.Height
	for _, m := range []struct {
		name          string
		width, height int
	}{
		{"synthesis", c.Synthesis.Width, c.Synthesis.Height},
		{"perceptual", c.Perceptual.Width, c.Perceptual.Height},
		{"dissimilarity", c.Dissimilarity.Network.Width, c.Dissimilarity.Network.Height},
	} {
		if m.width != fw || m.height != fh {
			return invalid(errors.Errorf("%s model is %dx%d but the working resolution is %dx%d",
				m.name, m.width, m.height, fw, fh))
		}
	}
	if c.Output.ResultsDir == "" {
		return invalid(errors.New("results_dir is empty"))
	}
	return nil
}
