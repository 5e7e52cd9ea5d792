// Package nms collapses overlapping detection candidates with greedy
// per-class non-maximum suppression.
package nms

import (
	"fmt"
	"sort"
	"sync"

	"github.com/MeKo-Tech/detbox/internal/geometry"
)

// Detection is one candidate row: a corner-form box with per-class
// scores.
type Detection struct {
	Box    geometry.Box
	Scores []float64
}

// Scored is one surviving row: the kept box and its class score.
type Scored struct {
	Box   geometry.Box
	Score float64
}

// Config holds suppression parameters.
type Config struct {
	// IoUThreshold suppresses a candidate when its overlap with an
	// already kept box reaches this value.
	IoUThreshold float64
	// ScoreEpsilon drops candidates scoring below it before sorting.
	ScoreEpsilon float64
	// TopK caps the candidates considered per class after sorting.
	TopK int
}

// DefaultConfig returns the standard suppression parameters.
func DefaultConfig() Config {
	return Config{IoUThreshold: 0.45, ScoreEpsilon: 0.01, TopK: 200}
}

// Validate checks the parameter ranges.
func (c Config) Validate() error {
	if c.IoUThreshold < 0 || c.IoUThreshold > 1 {
		return fmt.Errorf("iou threshold must be within [0, 1], got %v", c.IoUThreshold)
	}
	if c.ScoreEpsilon < 0 {
		return fmt.Errorf("score epsilon must not be negative, got %v", c.ScoreEpsilon)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("top k must be positive, got %d", c.TopK)
	}
	return nil
}

// Suppressor runs greedy per-class suppression with fixed parameters.
type Suppressor struct {
	cfg Config
}

// NewSuppressor builds a suppressor, rejecting invalid parameters.
func NewSuppressor(cfg Config) (*Suppressor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid suppression config: %w", err)
	}
	return &Suppressor{cfg: cfg}, nil
}

// Suppress runs greedy suppression for each class and concatenates the
// survivors in ascending class order. The returned label slice runs
// parallel to the rows. Within a class, survivors appear in selection
// order: descending score, original row order on ties.
func (s *Suppressor) Suppress(dets []Detection) ([]Scored, []int) {
	rows := make([]Scored, 0, len(dets))
	labels := make([]int, 0, len(dets))
	for class := range classCount(dets) {
		for _, idx := range s.suppressClass(dets, class) {
			rows = append(rows, Scored{Box: dets[idx].Box, Score: dets[idx].Scores[class]})
			labels = append(labels, class)
		}
	}
	return rows, labels
}

// SuppressParallel runs the per-class passes concurrently. Classes are
// independent, so the assembled output matches Suppress row for row.
func (s *Suppressor) SuppressParallel(dets []Detection) ([]Scored, []int) {
	classes := classCount(dets)
	perClass := make([][]int, classes)

	var wg sync.WaitGroup
	for class := range classes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			perClass[class] = s.suppressClass(dets, class)
		}()
	}
	wg.Wait()

	rows := make([]Scored, 0, len(dets))
	labels := make([]int, 0, len(dets))
	for class, kept := range perClass {
		for _, idx := range kept {
			rows = append(rows, Scored{Box: dets[idx].Box, Score: dets[idx].Scores[class]})
			labels = append(labels, class)
		}
	}
	return rows, labels
}

// suppressClass returns the kept row indices for one class in selection
// order.
func (s *Suppressor) suppressClass(dets []Detection, class int) []int {
	candidates := make([]int, 0, len(dets))
	for i, det := range dets {
		if class < len(det.Scores) && det.Scores[class] >= s.cfg.ScoreEpsilon {
			candidates = append(candidates, i)
		}
	}
	// Stable sort keeps equal scores in original row order.
	sort.SliceStable(candidates, func(a, b int) bool {
		return dets[candidates[a]].Scores[class] > dets[candidates[b]].Scores[class]
	})
	if len(candidates) > s.cfg.TopK {
		candidates = candidates[:s.cfg.TopK]
	}

	kept := make([]int, 0, len(candidates))
	suppressed := make([]bool, len(candidates))
	for i, idx := range candidates {
		if suppressed[i] {
			continue
		}
		kept = append(kept, idx)
		for j := i + 1; j < len(candidates); j++ {
			if suppressed[j] {
				continue
			}
			if geometry.IoU(dets[idx].Box, dets[candidates[j]].Box) >= s.cfg.IoUThreshold {
				suppressed[j] = true
			}
		}
	}
	return kept
}

// classCount returns the widest score vector across the rows.
func classCount(dets []Detection) int {
	classes := 0
	for _, det := range dets {
		if len(det.Scores) > classes {
			classes = len(det.Scores)
		}
	}
	return classes
}
