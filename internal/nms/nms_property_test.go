package nms

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/MeKo-Tech/detbox/internal/geometry"
)

// genDetection generates a candidate with a three-class score row.
func genDetection() gopter.Gen {
	return gopter.CombineGens(
		gen.Float64Range(0, 0.8),
		gen.Float64Range(0, 0.8),
		gen.Float64Range(0.05, 0.2),
		gen.Float64Range(0.05, 0.2),
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 1),
	).Map(func(vals []interface{}) Detection {
		x := vals[0].(float64)
		y := vals[1].(float64)
		return Detection{
			Box: geometry.Box{
				MinX: x,
				MinY: y,
				MaxX: x + vals[2].(float64),
				MaxY: y + vals[3].(float64),
			},
			Scores: []float64{vals[4].(float64), vals[5].(float64), vals[6].(float64)},
		}
	})
}

// TestSuppress_SurvivorInvariants verifies the structural guarantees of
// a suppression pass on arbitrary candidate sets.
func TestSuppress_SurvivorInvariants(t *testing.T) {
	properties := gopter.NewProperties(nil)
	cfg := Config{IoUThreshold: 0.4, ScoreEpsilon: 0.1, TopK: 5}

	properties.Property("survivors respect epsilon, top-k and overlap", prop.ForAll(
		func(dets []Detection) bool {
			s, err := NewSuppressor(cfg)
			if err != nil {
				return false
			}
			rows, labels := s.Suppress(dets)
			if len(rows) != len(labels) {
				return false
			}

			perClass := make(map[int][]Scored)
			for i, row := range rows {
				if row.Score < cfg.ScoreEpsilon {
					return false
				}
				perClass[labels[i]] = append(perClass[labels[i]], row)
			}
			for _, kept := range perClass {
				if len(kept) > cfg.TopK {
					return false
				}
				// Kept boxes of one class stay strictly below the
				// overlap threshold pairwise.
				for i := range kept {
					for j := i + 1; j < len(kept); j++ {
						if geometry.IoU(kept[i].Box, kept[j].Box) >= cfg.IoUThreshold {
							return false
						}
					}
				}
			}
			return true
		},
		gen.SliceOf(genDetection()),
	))

	properties.TestingRun(t)
}

// TestSuppress_ParallelAgrees verifies the concurrent pass assembles the
// same output as the sequential one.
func TestSuppress_ParallelAgrees(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("parallel equals sequential", prop.ForAll(
		func(dets []Detection) bool {
			s, err := NewSuppressor(Config{IoUThreshold: 0.4, ScoreEpsilon: 0.1, TopK: 5})
			if err != nil {
				return false
			}
			rows, labels := s.Suppress(dets)
			prows, plabels := s.SuppressParallel(dets)
			if len(rows) != len(prows) || len(labels) != len(plabels) {
				return false
			}
			for i := range rows {
				if rows[i] != prows[i] || labels[i] != plabels[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(genDetection()),
	))

	properties.TestingRun(t)
}
