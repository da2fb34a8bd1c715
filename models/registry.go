package models

import (
	"io"
	"log"
	"os"

	"github.com/nvr-ai/go-anomaly/inference"
	"github.com/nvr-ai/go-anomaly/inference/providers"
	"github.com/nvr-ai/go-anomaly/models/dissimilarity"
	"github.com/nvr-ai/go-anomaly/models/perceptual"
	"github.com/nvr-ai/go-anomaly/models/segmentation"
	"github.com/nvr-ai/go-anomaly/models/synthesis"
	"github.com/pkg/errors"
)

// ErrMissingCheckpoint is returned when a model file does not exist.
var ErrMissingCheckpoint = errors.New("model checkpoint not found")

// Config describes every model the pipeline loads.
type Config struct {
	// Library is the ONNX Runtime shared library, empty for the platform default.
	Library string `json:"library" yaml:"library"`
	// Provider is applied to every session.
	Provider      providers.Config         `json:"provider" yaml:"provider"`
	Segmentation  segmentation.Options     `json:"segmentation" yaml:"segmentation"`
	Synthesis     synthesis.Options        `json:"synthesis" yaml:"synthesis"`
	Dissimilarity dissimilarity.Options    `json:"dissimilarity" yaml:"dissimilarity"`
	Checkpoint    dissimilarity.Checkpoint `json:"checkpoint" yaml:"checkpoint"`
	Perceptual    perceptual.Options       `json:"perceptual" yaml:"perceptual"`
}

// DefaultConfig returns the default model shapes on CPU with no paths set.
func DefaultConfig() Config {
	return Config{
		Provider:      providers.DefaultConfig(),
		Segmentation:  segmentation.DefaultOptions(),
		Synthesis:     synthesis.DefaultOptions(),
		Dissimilarity: dissimilarity.DefaultOptions(),
		Perceptual:    perceptual.DefaultOptions(),
	}
}

// Resolved fills in the dissimilarity path from the checkpoint and the provider of
// every model.
func (c Config) Resolved() Config {
	if c.Dissimilarity.Path == "" {
		c.Dissimilarity.Path = c.Checkpoint.Path()
	}
	if !c.Dissimilarity.Prior {
		c.Dissimilarity = c.Dissimilarity.WithoutPrior()
	}
	c.Segmentation.Provider = c.Provider
	c.Synthesis.Provider = c.Provider
	c.Dissimilarity.Provider = c.Provider
	c.Perceptual.Provider = c.Provider
	return c
}

// Validate checks every model's options after resolution.
func (c Config) Validate() error {
	if c.Dissimilarity.Path == "" {
		if err := c.Checkpoint.Validate(); err != nil {
			return err
		}
	}
	r := c.Resolved()
	if err := r.Provider.Validate(); err != nil {
		return err
	}
	for _, v := range []interface{ Validate() error }{
		r.Segmentation, r.Synthesis, r.Dissimilarity, r.Perceptual,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Paths returns every model file the configuration refers to.
func (c Config) Paths() []string {
	r := c.Resolved()
	return []string{r.Segmentation.Path, r.Synthesis.Path, r.Dissimilarity.Path, r.Perceptual.Path}
}

// Set holds the loaded model handles. It is safe for concurrent use; each handle
// serializes its own runs.
type Set struct {
	Segmenter     Segmenter
	Synthesizer   Synthesizer
	Dissimilarity Dissimilarity
	Perceptual    PerceptualExtractor

	closers []io.Closer
}

// NewSet wraps existing handles. Handles that implement io.Closer are closed by Close.
func NewSet(seg Segmenter, syn Synthesizer, diss Dissimilarity, perc PerceptualExtractor) *Set {
	s := &Set{Segmenter: seg, Synthesizer: syn, Dissimilarity: diss, Perceptual: perc}
	for _, h := range []interface{}{seg, syn, diss, perc} {
		if c, ok := h.(io.Closer); ok {
			s.closers = append(s.closers, c)
		}
	}
	return s
}

// Load initializes ONNX Runtime and opens all four models.
//
// Arguments:
//   - cfg: The model configuration.
//
// Returns:
//   - *Set: The loaded handles, to be closed by the caller.
//   - error: ErrMissingCheckpoint (wrapped) for a missing file, or a load error.
func Load(cfg Config) (*Set, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.Resolved()

	for _, path := range cfg.Paths() {
		if _, err := os.Stat(path); err != nil {
			return nil, errors.Wrapf(ErrMissingCheckpoint, "%s: %v", path, err)
		}
	}

	if err := inference.Initialize(cfg.Library); err != nil {
		return nil, err
	}

	set := &Set{}
	seg, err := segmentation.NewModel(cfg.Segmentation)
	if err != nil {
		return nil, set.abort(err)
	}
	set.Segmenter = seg
	set.closers = append(set.closers, seg)

	syn, err := synthesis.NewModel(cfg.Synthesis)
	if err != nil {
		return nil, set.abort(err)
	}
	set.Synthesizer = syn
	set.closers = append(set.closers, syn)

	diss, err := dissimilarity.NewModel(cfg.Dissimilarity)
	if err != nil {
		return nil, set.abort(err)
	}
	set.Dissimilarity = diss
	set.closers = append(set.closers, diss)

	perc, err := perceptual.NewModel(cfg.Perceptual)
	if err != nil {
		return nil, set.abort(err)
	}
	set.Perceptual = perc
	set.closers = append(set.closers, perc)

	log.Printf("loaded models (%s, dissimilarity prior=%t)", cfg.Provider, cfg.Dissimilarity.Prior)
	return set, nil
}

func (s *Set) abort(err error) error {
	if cerr := s.Close(); cerr != nil {
		log.Printf("error closing partially loaded models: %v", cerr)
	}
	return err
}

// Close releases every handle and returns the first error.
func (s *Set) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	s.closers = nil
	return first
}
