package server

import (
	"testing"

	"github.com/MeKo-Tech/detbox/internal/geometry"
	"github.com/MeKo-Tech/detbox/internal/nms"
	"github.com/MeKo-Tech/detbox/internal/postprocess"
	"github.com/MeKo-Tech/detbox/internal/targets"
	"github.com/stretchr/testify/require"
)

// testPriors returns a small fixed prior set tiling the unit square.
// Four quadrant boxes keep handler tests fast and predictable compared
// to a full built-in profile.
func testPriors() []geometry.CenterBox {
	return []geometry.CenterBox{
		{CX: 0.25, CY: 0.25, W: 0.5, H: 0.5},
		{CX: 0.75, CY: 0.25, W: 0.5, H: 0.5},
		{CX: 0.25, CY: 0.75, W: 0.5, H: 0.5},
		{CX: 0.75, CY: 0.75, W: 0.5, H: 0.5},
	}
}

// newTestServer builds a server over the quadrant priors with default
// pipeline settings and no rate limiting.
func newTestServer(t *testing.T) *Server {
	t.Helper()

	srv, err := NewServer(Config{
		CORSOrigin: "*",
		MaxBodyMB:  1,
		Priors:     testPriors(),
		Pipeline: postprocess.Config{
			Profile:    "test",
			Variances:  targets.DefaultVariances(),
			NMS:        nms.DefaultConfig(),
			ClassNames: []string{"background", "object"},
		},
	})
	require.NoError(t, err)
	return srv
}

// backgroundPredictions returns one all-background prediction row per
// test prior: zero offsets, full score on the background class.
func backgroundPredictions(numClasses int) []PredictionPayload {
	rows := make([]PredictionPayload, len(testPriors()))
	for i := range rows {
		scores := make([]float64, numClasses)
		scores[0] = 1.0
		rows[i] = PredictionPayload{Scores: scores}
	}
	return rows
}

// objectPrediction marks one row as an object of the given class. The
// zero offsets leave the decoded box on the prior itself.
func objectPrediction(rows []PredictionPayload, prior, label int, score float64) {
	for i := range rows[prior].Scores {
		rows[prior].Scores[i] = 0
	}
	rows[prior].Scores[label] = score
}
