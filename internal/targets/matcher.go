// Package targets assigns ground-truth boxes to priors and converts
// the assignments to and from regression offsets.
package targets

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/MeKo-Tech/detbox/internal/geometry"
)

// BackgroundLabel is the reserved class index for unmatched priors.
const BackgroundLabel = 0

// forcedIoU marks priors claimed outright by a truth. It sits above any
// valid threshold so the claim survives the background cut.
const forcedIoU = 2

// LabeledBox pairs a corner-form box with its class label.
type LabeledBox struct {
	Box   geometry.Box
	Label int
}

// MatcherConfig holds matching parameters.
type MatcherConfig struct {
	IoUThreshold float64
}

// DefaultMatcherConfig returns the standard matching threshold.
func DefaultMatcherConfig() MatcherConfig {
	return MatcherConfig{IoUThreshold: 0.5}
}

// Matcher assigns ground-truth boxes to a fixed prior set.
type Matcher struct {
	cfg     MatcherConfig
	corners []geometry.Box
}

// NewMatcher builds a matcher over the given priors.
func NewMatcher(priors []geometry.CenterBox, cfg MatcherConfig) (*Matcher, error) {
	if cfg.IoUThreshold < 0 || cfg.IoUThreshold > 1 {
		return nil, fmt.Errorf("iou threshold must be within [0, 1], got %v", cfg.IoUThreshold)
	}
	return &Matcher{cfg: cfg, corners: geometry.ToCornerForm(priors)}, nil
}

// NumPriors returns the size of the prior set.
func (m *Matcher) NumPriors() int { return len(m.corners) }

// Match returns one row per prior holding the assigned truth box and
// label. A prior whose best overlap stays below the threshold keeps the
// matched coordinates but is labeled background. Every truth claims its
// best prior regardless of overlap; when several truths share a best
// prior, the one listed last wins. With no truths every row is a
// zero box labeled background.
func (m *Matcher) Match(truths []LabeledBox) []LabeledBox {
	matches := make([]LabeledBox, len(m.corners))
	if len(truths) == 0 || len(m.corners) == 0 {
		return matches
	}

	truthBoxes := make([]geometry.Box, len(truths))
	for i, t := range truths {
		truthBoxes[i] = t.Box
	}
	ious := geometry.IoUMatrix(truthBoxes, m.corners)

	// Best truth per prior; ties keep the earliest truth.
	bestTruth := make([]int, len(m.corners))
	bestIoU := make([]float64, len(m.corners))
	copy(bestIoU, ious.RawRowView(0))
	for i := 1; i < len(truths); i++ {
		for j, v := range ious.RawRowView(i) {
			if v > bestIoU[j] {
				bestIoU[j] = v
				bestTruth[j] = i
			}
		}
	}

	// Each truth claims its best prior outright. MaxIdx takes the first
	// best column on ties.
	for i := range truths {
		j := floats.MaxIdx(ious.RawRowView(i))
		bestTruth[j] = i
		bestIoU[j] = forcedIoU
	}

	for j := range m.corners {
		row := truths[bestTruth[j]]
		if bestIoU[j] < m.cfg.IoUThreshold {
			row.Label = BackgroundLabel
		}
		matches[j] = row
	}
	return matches
}
