// Package anchors generates the fixed prior box sets that detection
// heads regress against.
package anchors

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/detbox/internal/geometry"
)

// ErrUnknownProfile reports a prior profile name with no generator.
var ErrUnknownProfile = errors.New("unknown prior profile")

// SSDProfile describes a multi-level single-shot prior layout.
type SSDProfile struct {
	Name            string
	ImageSize       int
	FeatureMapSizes []int
	Steps           []int
	MinSizes        []float64
	MaxSizes        []float64
	AspectRatios    [][]float64
	Variances       [4]float64
}

// Validate checks the per-level slices for consistent lengths and
// positive sizes.
func (p SSDProfile) Validate() error {
	if p.ImageSize <= 0 {
		return fmt.Errorf("image size must be positive, got %d", p.ImageSize)
	}
	n := len(p.FeatureMapSizes)
	if n == 0 {
		return errors.New("feature map sizes must not be empty")
	}
	if len(p.Steps) != n || len(p.MinSizes) != n || len(p.MaxSizes) != n || len(p.AspectRatios) != n {
		return fmt.Errorf("per-level slices must all have length %d", n)
	}
	for i, size := range p.FeatureMapSizes {
		if size <= 0 {
			return fmt.Errorf("level %d: feature map size must be positive, got %d", i, size)
		}
		if p.Steps[i] <= 0 {
			return fmt.Errorf("level %d: step must be positive, got %d", i, p.Steps[i])
		}
		if p.MinSizes[i] <= 0 || p.MaxSizes[i] <= p.MinSizes[i] {
			return fmt.Errorf("level %d: box sizes must satisfy 0 < min < max, got %v and %v",
				i, p.MinSizes[i], p.MaxSizes[i])
		}
		for _, ar := range p.AspectRatios[i] {
			if ar <= 0 {
				return fmt.Errorf("level %d: aspect ratio must be positive, got %v", i, ar)
			}
		}
	}
	return nil
}

func (p SSDProfile) priorCount() int {
	total := 0
	for i, size := range p.FeatureMapSizes {
		total += size * size * (2 + 2*len(p.AspectRatios[i]))
	}
	return total
}

// EfficientDetProfile describes octave anchors over a feature pyramid.
type EfficientDetProfile struct {
	Name         string
	ImageSize    int
	MinLevel     int
	MaxLevel     int
	NumScales    int
	AspectRatios []float64
	AnchorScale  float64
}

// Validate checks pyramid levels and scaling parameters.
func (p EfficientDetProfile) Validate() error {
	if p.ImageSize <= 0 {
		return fmt.Errorf("image size must be positive, got %d", p.ImageSize)
	}
	if p.MinLevel < 1 || p.MaxLevel < p.MinLevel {
		return fmt.Errorf("pyramid levels must satisfy 1 <= min <= max, got %d and %d", p.MinLevel, p.MaxLevel)
	}
	if p.ImageSize%(1<<p.MaxLevel) != 0 {
		return fmt.Errorf("image size %d is not divisible by the level %d stride", p.ImageSize, p.MaxLevel)
	}
	if p.NumScales <= 0 {
		return fmt.Errorf("scales per octave must be positive, got %d", p.NumScales)
	}
	if len(p.AspectRatios) == 0 {
		return errors.New("aspect ratios must not be empty")
	}
	for _, ar := range p.AspectRatios {
		if ar <= 0 {
			return fmt.Errorf("aspect ratio must be positive, got %v", ar)
		}
	}
	if p.AnchorScale <= 0 {
		return fmt.Errorf("anchor scale must be positive, got %v", p.AnchorScale)
	}
	return nil
}

func (p EfficientDetProfile) priorCount() int {
	total := 0
	for level := p.MinLevel; level <= p.MaxLevel; level++ {
		cells := p.ImageSize / (1 << level)
		total += cells * cells * p.NumScales * len(p.AspectRatios)
	}
	return total
}

// VOC returns the 300 pixel single-shot layout used for Pascal VOC
// training. It produces 8732 priors.
func VOC() SSDProfile {
	return SSDProfile{
		Name:            "voc",
		ImageSize:       300,
		FeatureMapSizes: []int{38, 19, 10, 5, 3, 1},
		Steps:           []int{8, 16, 32, 64, 100, 300},
		MinSizes:        []float64{30, 60, 111, 162, 213, 264},
		MaxSizes:        []float64{60, 111, 162, 213, 264, 315},
		AspectRatios:    [][]float64{{2}, {2, 3}, {2, 3}, {2, 3}, {2}, {2}},
		Variances:       [4]float64{0.1, 0.1, 0.2, 0.2},
	}
}

// EfficientDetD returns the octave anchor layout for compound scaling
// coefficient phi (0 through 7).
func EfficientDetD(phi int) (EfficientDetProfile, error) {
	sizes := []int{512, 640, 768, 896, 1024, 1280, 1280, 1536}
	anchorScales := []float64{4, 4, 4, 4, 4, 4, 5, 5}
	if phi < 0 || phi >= len(sizes) {
		return EfficientDetProfile{}, fmt.Errorf("phi must be within [0, %d], got %d", len(sizes)-1, phi)
	}
	return EfficientDetProfile{
		Name:         fmt.Sprintf("efficientdet-d%d", phi),
		ImageSize:    sizes[phi],
		MinLevel:     3,
		MaxLevel:     7,
		NumScales:    3,
		AspectRatios: []float64{1.0, 2.0, 0.5},
		AnchorScale:  anchorScales[phi],
	}, nil
}

// ByName generates the prior set for a built-in profile name.
func ByName(name string) ([]geometry.CenterBox, error) {
	if name == "voc" {
		return SSD(VOC())
	}
	if suffix, ok := strings.CutPrefix(name, "efficientdet-d"); ok {
		phi, err := strconv.Atoi(suffix)
		if err == nil {
			if p, err := EfficientDetD(phi); err == nil {
				return EfficientDet(p)
			}
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
}

// Names lists the built-in profile names.
func Names() []string {
	names := []string{"voc"}
	for phi := range 8 {
		names = append(names, fmt.Sprintf("efficientdet-d%d", phi))
	}
	return names
}

// IsBuiltin reports whether name resolves to a built-in profile.
func IsBuiltin(name string) bool {
	return slices.Contains(Names(), name)
}

// VOCClassNames returns the Pascal VOC class list with the background
// class at index 0.
func VOCClassNames() []string {
	return []string{
		"background", "aeroplane", "bicycle", "bird", "boat", "bottle",
		"bus", "car", "cat", "chair", "cow", "diningtable", "dog",
		"horse", "motorbike", "person", "pottedplant", "sheep", "sofa",
		"train", "tvmonitor",
	}
}
