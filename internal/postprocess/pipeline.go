// Package postprocess turns raw per-prior network output into final
// labeled detections: offsets are decoded against the prior set,
// duplicates are suppressed per class, and the survivors are filtered
// by score.
package postprocess

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/MeKo-Tech/detbox/internal/anchors"
	"github.com/MeKo-Tech/detbox/internal/common"
	"github.com/MeKo-Tech/detbox/internal/geometry"
	"github.com/MeKo-Tech/detbox/internal/nms"
	"github.com/MeKo-Tech/detbox/internal/targets"
	"gonum.org/v1/gonum/floats"
)

// Prediction is one network output row: regression offsets plus one
// score per class, in prior order.
type Prediction struct {
	Offsets [4]float64
	Scores  []float64
}

// Result is one final detection in normalized coordinates.
type Result struct {
	Box   geometry.Box
	Label int
	Score float64
	Class string
}

// Config controls the decode and suppression stages.
type Config struct {
	// Profile names the prior set New resolves.
	Profile string
	// Variances scale the regression offsets during decoding.
	Variances targets.Variances
	// NMS configures the per-class suppression pass.
	NMS nms.Config
	// MinScore drops suppression survivors scoring below it.
	MinScore float64
	// KeepLabels restricts results to the given class labels when set.
	KeepLabels []int
	// ClassNames maps labels to names on results when set.
	ClassNames []string
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Profile:   "voc",
		Variances: targets.DefaultVariances(),
		NMS:       nms.DefaultConfig(),
	}
}

// Pipeline decodes predictions against a fixed prior set.
type Pipeline struct {
	cfg        Config
	priors     []geometry.CenterBox
	suppressor *nms.Suppressor
	filters    []Filter
}

// New resolves the configured prior profile and builds a pipeline
// over it.
func New(cfg Config) (*Pipeline, error) {
	priors, err := anchors.ByName(cfg.Profile)
	if err != nil {
		return nil, err
	}
	return NewWithPriors(priors, cfg)
}

// NewWithPriors builds a pipeline over an explicit prior set, for
// profiles that are not built in.
func NewWithPriors(priors []geometry.CenterBox, cfg Config) (*Pipeline, error) {
	if len(priors) == 0 {
		return nil, errors.New("at least one prior is required")
	}
	if err := cfg.Variances.Validate(); err != nil {
		return nil, err
	}
	if cfg.MinScore < 0 || cfg.MinScore > 1 {
		return nil, fmt.Errorf("min score %v outside [0, 1]", cfg.MinScore)
	}
	suppressor, err := nms.NewSuppressor(cfg.NMS)
	if err != nil {
		return nil, err
	}

	var filters []Filter
	if cfg.MinScore > 0 {
		filters = append(filters, MinScore(cfg.MinScore))
	}
	if len(cfg.KeepLabels) > 0 {
		filters = append(filters, KeepClasses(cfg.KeepLabels...))
	}

	return &Pipeline{cfg: cfg, priors: priors, suppressor: suppressor, filters: filters}, nil
}

// NumPriors returns the row count Run expects.
func (p *Pipeline) NumPriors() int {
	return len(p.priors)
}

// Priors returns the prior set predictions are decoded against. The
// slice is shared; callers must not modify it.
func (p *Pipeline) Priors() []geometry.CenterBox {
	return p.priors
}

// Config returns a copy of the pipeline's configuration.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Run converts one prediction per prior into final detections. Offsets
// are decoded against the matching prior, the decoded candidates go
// through per-class suppression, background rows are dropped, and the
// configured filters (MinScore, KeepLabels) run over the survivors.
func (p *Pipeline) Run(preds []Prediction) ([]Result, error) {
	if len(preds) != len(p.priors) {
		return nil, fmt.Errorf("prediction count %d does not match prior count %d",
			len(preds), len(p.priors))
	}
	timer := common.NewNamedTimer("postprocess")

	numClasses := 0
	dets := make([]nms.Detection, len(preds))
	for i, pred := range preds {
		dets[i] = nms.Detection{
			Box:    targets.DecodeBox(pred.Offsets, p.priors[i], p.cfg.Variances),
			Scores: pred.Scores,
		}
		if len(pred.Scores) > numClasses {
			numClasses = len(pred.Scores)
		}
	}
	if numClasses == 0 {
		return []Result{}, nil
	}

	rows, labels := p.suppressor.Suppress(dets)
	merged, err := nms.Merge(rows, labels, numClasses)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(merged))
	for _, det := range merged {
		label := floats.MaxIdx(det.Scores)
		if label == targets.BackgroundLabel {
			continue
		}
		results = append(results, Result{
			Box:   det.Box,
			Label: label,
			Score: floats.Sum(det.Scores),
			Class: p.className(label),
		})
	}
	results = Apply(results, p.filters...)

	timer.Stop()
	slog.Debug("Postprocessing complete",
		"predictions", len(preds),
		"survivors", len(rows),
		"detections", len(results),
		"took_ms", timer.Milliseconds())
	return results, nil
}

func (p *Pipeline) className(label int) string {
	if label < len(p.cfg.ClassNames) {
		return p.cfg.ClassNames[label]
	}
	return strconv.Itoa(label)
}
