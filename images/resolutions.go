package images

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// AspectRatio represents an aspect ratio by name (e.g., "2:1").
type AspectRatio string

// Aspect ratios of the working resolutions and the benchmark datasets.
const (
	AspectRatio21  AspectRatio = "2:1"
	AspectRatio169 AspectRatio = "16:9"
)

// ResolutionType names a working resolution of the pipeline or the native
// resolution of a benchmark dataset.
type ResolutionType string

// Defines the unique type for each known resolution.
const (
	// ResolutionTypeSegmentation is the resolution the segmentation network runs at.
	ResolutionTypeSegmentation ResolutionType = "segmentation"
	// ResolutionTypeSynthesis is shared by synthesis, perceptual and dissimilarity.
	ResolutionTypeSynthesis ResolutionType = "synthesis"
	// ResolutionTypeCityscapes is the native size of Cityscapes-style street scenes
	// (Lost and Found, Fishyscapes).
	ResolutionTypeCityscapes ResolutionType = "cityscapes"
	// ResolutionTypeRoadAnomaly is the native size of the Road Anomaly frames.
	ResolutionTypeRoadAnomaly ResolutionType = "road-anomaly"
)

// ResolutionPixels describes the exact dimensions of a resolution.
type ResolutionPixels struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Resolution describes a named resolution.
type Resolution struct {
	Name        ResolutionType   `json:"name"`
	AspectRatio AspectRatio      `json:"aspectRatio"`
	Pixels      ResolutionPixels `json:"pixels"`
}

// GetMegaPixels returns the megapixel count rounded to two decimals.
func (r Resolution) GetMegaPixels() float64 {
	if r.Pixels.Width <= 0 || r.Pixels.Height <= 0 {
		return 0.0
	}
	mp := float64(r.Pixels.Width*r.Pixels.Height) / 1_000_000.0
	return math.Round(mp*100) / 100
}

// Matches reports whether width×height equals the resolution.
func (r Resolution) Matches(width, height int) bool {
	return r.Pixels.Width == width && r.Pixels.Height == height
}

// String returns a human-readable summary of the resolution.
func (r Resolution) String() string {
	return fmt.Sprintf("%s (%dx%d, %.2fMP)", r.Name, r.Pixels.Width, r.Pixels.Height, r.GetMegaPixels())
}

// resolutions stores all known resolutions keyed by type.
var resolutions = map[ResolutionType]Resolution{
	ResolutionTypeSegmentation: {
		Name:        ResolutionTypeSegmentation,
		AspectRatio: AspectRatio21,
		Pixels:      ResolutionPixels{Width: 2048, Height: 1024},
	},
	ResolutionTypeSynthesis: {
		Name:        ResolutionTypeSynthesis,
		AspectRatio: AspectRatio21,
		Pixels:      ResolutionPixels{Width: 512, Height: 256},
	},
	ResolutionTypeCityscapes: {
		Name:        ResolutionTypeCityscapes,
		AspectRatio: AspectRatio21,
		Pixels:      ResolutionPixels{Width: 2048, Height: 1024},
	},
	ResolutionTypeRoadAnomaly: {
		Name:        ResolutionTypeRoadAnomaly,
		AspectRatio: AspectRatio169,
		Pixels:      ResolutionPixels{Width: 1280, Height: 720},
	},
}

var (
	// SegmentationResolution is the default segmentation working size.
	SegmentationResolution = resolutions[ResolutionTypeSegmentation]
	// SynthesisResolution is the default size of every stage after segmentation.
	SynthesisResolution = resolutions[ResolutionTypeSynthesis]
)

// GetResolutionByType retrieves a specific resolution by its type.
// It returns the Resolution and true if found, otherwise an empty Resolution and false.
func GetResolutionByType(t ResolutionType) (Resolution, bool) {
	res, ok := resolutions[t]
	return res, ok
}

// ParseResolution reads either a known resolution name or "WIDTHxHEIGHT".
//
// Arguments:
//   - s: The name or the dimensions, e.g. "synthesis" or "1024x512".
//
// Returns:
//   - Resolution: The resolution; a custom one carries the input as its name and no
//     aspect ratio.
//   - error: An error if s is neither a known name nor positive dimensions.
func ParseResolution(s string) (Resolution, error) {
	if res, ok := resolutions[ResolutionType(s)]; ok {
		return res, nil
	}
	w, h, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return Resolution{}, errors.Errorf("unknown resolution %q", s)
	}
	width, werr := strconv.Atoi(w)
	height, herr := strconv.Atoi(h)
	if werr != nil || herr != nil || width <= 0 || height <= 0 {
		return Resolution{}, errors.Errorf("invalid resolution %q", s)
	}
	return Resolution{
		Name:   ResolutionType(s),
		Pixels: ResolutionPixels{Width: width, Height: height},
	}, nil
}
