// Package util - Dataset loading for evaluation runs.
package util

import (
	"bytes"
	"image"
	"image/draw"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nvr-ai/go-anomaly/images"
	"github.com/pkg/errors"
)

const (
	// ImagesDir holds the input images of a dataset.
	ImagesDir = "images"
	// MasksDir holds the ground-truth masks, named like the images.
	MasksDir = "labels"
)

// Sample represents one dataset entry.
type Sample struct {
	// Name is the file name without extension.
	Name string
	// ImagePath is the path to the input image.
	ImagePath string
	// MaskPath is the path to the ground-truth mask, empty when there is none.
	MaskPath string
}

// HasMask reports whether the sample carries ground truth.
func (s Sample) HasMask() bool {
	return s.MaskPath != ""
}

// ReadImage decodes the input image.
//
// Returns:
//   - image.Image: The decoded image.
//   - error: A read or decode error.
func (s Sample) ReadImage() (image.Image, error) {
	data, err := os.ReadFile(s.ImagePath)
	if err != nil {
		return nil, err
	}
	img, err := images.Decode(data)
	if err != nil {
		return nil, errors.Wrapf(err, "error decoding %s", s.ImagePath)
	}
	return img, nil
}

// ReadMask decodes the ground-truth mask as 8-bit gray, origin at (0, 0).
//
// Returns:
//   - *image.Gray: The mask; 0 normal, 1 anomalous, 255 void.
//   - error: A read or decode error, or an error when the sample has no mask.
func (s Sample) ReadMask() (*image.Gray, error) {
	if !s.HasMask() {
		return nil, errors.Errorf("sample %s has no mask", s.Name)
	}
	data, err := os.ReadFile(s.MaskPath)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(err, "error decoding %s", s.MaskPath)
	}
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return g, nil
	}
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(g, g.Bounds(), img, b.Min, draw.Src)
	return g, nil
}

// LoadDataset lists the samples of a dataset directory.
//
// The directory either contains images/ and labels/ subdirectories, with masks
// sharing the image's base name, or is a flat directory of images without ground
// truth.
//
// Arguments:
// - dir: Dataset root.
//
// Returns:
// - []Sample: The samples sorted by name.
// - error: Error if the directory cannot be read or holds no images.
func LoadDataset(dir string) ([]Sample, error) {
	imageDir := filepath.Join(dir, ImagesDir)
	if info, err := os.Stat(imageDir); err != nil || !info.IsDir() {
		imageDir = dir
	}
	masks, err := listImages(filepath.Join(dir, MasksDir))
	if err != nil && !os.IsNotExist(errors.Cause(err)) {
		return nil, err
	}

	inputs, err := listImages(imageDir)
	if err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, errors.Errorf("no images in %s", imageDir)
	}

	samples := make([]Sample, 0, len(inputs))
	for name, path := range inputs {
		samples = append(samples, Sample{Name: name, ImagePath: path, MaskPath: masks[name]})
	}
	sort.Slice(samples, func(i, j int) bool {
		return samples[i].Name < samples[j].Name
	})
	return samples, nil
}

// listImages maps base names to paths for every image file in dir.
func listImages(dir string) (map[string]string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(files))
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(file.Name()))
		switch ext {
		case ".jpg", ".jpeg", ".png", ".webp", ".bmp", ".tif", ".tiff":
			out[strings.TrimSuffix(file.Name(), filepath.Ext(file.Name()))] = filepath.Join(dir, file.Name())
		}
	}
	return out, nil
}
