package nms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/detbox/internal/geometry"
)

// fixtureDetections returns five heavily overlapping candidates with
// five-class score rows. The last box has inverted corners, so it
// overlaps nothing and always survives its class pass.
func fixtureDetections() []Detection {
	boxes := []geometry.Box{
		{MinX: 0.01333333, MinY: 0.01333333, MaxX: 0.1, MaxY: 0.1},
		{MinX: 0.01333333, MinY: 0.01333333, MaxX: 0.14142136, MaxY: 0.14142136},
		{MinX: 0.01333333, MinY: 0.01333333, MaxX: 0.14142136, MaxY: 0.07071068},
		{MinX: 0.01333333, MinY: 0.01333333, MaxX: 0.07071068, MaxY: 0.14142136},
		{MinX: 0.44, MinY: 0.01333333, MaxX: 0.14142136, MaxY: 0.14142136},
	}
	scores := [][]float64{
		{0.21607161, 0.1958673, 0.15782336, 0.14358733, 0.2866504},
		{0.21370212, 0.25497785, 0.11090728, 0.14044093, 0.27997182},
		{0.13075765, 0.29108782, 0.15743962, 0.17582314, 0.24489177},
		{0.2383799, 0.14701877, 0.20044762, 0.20865859, 0.20549512},
		{0.12209236, 0.12411443, 0.20841956, 0.27059405, 0.2747796},
	}
	dets := make([]Detection, len(boxes))
	for i := range boxes {
		dets[i] = Detection{Box: boxes[i], Scores: scores[i]}
	}
	return dets
}

func suppressionCases() []struct {
	name       string
	cfg        Config
	wantRows   []int
	wantLabels []int
} {
	return []struct {
		name       string
		cfg        Config
		wantRows   []int
		wantLabels []int
	}{
		{
			name:       "default thresholds",
			cfg:        Config{IoUThreshold: 0.45, ScoreEpsilon: 0.01, TopK: 200},
			wantRows:   []int{3, 1, 2, 4, 2, 1, 3, 4, 4, 3, 2, 1, 4, 3, 2, 1, 0, 4},
			wantLabels: []int{0, 0, 0, 0, 1, 1, 1, 1, 2, 2, 2, 2, 3, 3, 3, 3, 4, 4},
		},
		{
			name:       "high epsilon",
			cfg:        Config{IoUThreshold: 0.45, ScoreEpsilon: 0.2, TopK: 200},
			wantRows:   []int{3, 1, 2, 1, 4, 3, 4, 3, 0, 4},
			wantLabels: []int{0, 0, 1, 1, 2, 2, 3, 3, 4, 4},
		},
		{
			name: "loose overlap",
			cfg:  Config{IoUThreshold: 0.75, ScoreEpsilon: 0.01, TopK: 200},
			wantRows: []int{
				3, 0, 1, 2, 4,
				2, 1, 0, 3, 4,
				4, 3, 0, 2, 1,
				4, 3, 2, 0, 1,
				0, 1, 4, 2, 3,
			},
			wantLabels: []int{
				0, 0, 0, 0, 0,
				1, 1, 1, 1, 1,
				2, 2, 2, 2, 2,
				3, 3, 3, 3, 3,
				4, 4, 4, 4, 4,
			},
		},
		{
			name:       "loose overlap and high epsilon",
			cfg:        Config{IoUThreshold: 0.75, ScoreEpsilon: 0.2, TopK: 200},
			wantRows:   []int{3, 0, 1, 2, 1, 4, 3, 4, 3, 0, 1, 4, 2, 3},
			wantLabels: []int{0, 0, 0, 1, 1, 2, 2, 3, 3, 4, 4, 4, 4, 4},
		},
		{
			name:       "halfway overlap",
			cfg:        Config{IoUThreshold: 0.50, ScoreEpsilon: 0.01, TopK: 200},
			wantRows:   []int{3, 1, 2, 4, 2, 1, 3, 4, 4, 3, 2, 1, 4, 3, 2, 1, 0, 1, 4},
			wantLabels: []int{0, 0, 0, 0, 1, 1, 1, 1, 2, 2, 2, 2, 3, 3, 3, 3, 4, 4, 4},
		},
	}
}

func TestSuppressFixtureCases(t *testing.T) {
	dets := fixtureDetections()
	for _, c := range suppressionCases() {
		t.Run(c.name, func(t *testing.T) {
			s, err := NewSuppressor(c.cfg)
			require.NoError(t, err)

			rows, labels := s.Suppress(dets)
			require.Equal(t, c.wantLabels, labels)
			require.Len(t, rows, len(c.wantRows))
			for i, idx := range c.wantRows {
				label := c.wantLabels[i]
				if rows[i].Box != dets[idx].Box {
					t.Fatalf("row %d: box %+v is not candidate %d", i, rows[i].Box, idx)
				}
				assert.InDelta(t, dets[idx].Scores[label], rows[i].Score, 1e-12, "row %d score", i)
			}
		})
	}
}

func TestSuppressParallelMatchesSequential(t *testing.T) {
	dets := fixtureDetections()
	for _, c := range suppressionCases() {
		s, err := NewSuppressor(c.cfg)
		require.NoError(t, err)

		rows, labels := s.Suppress(dets)
		prows, plabels := s.SuppressParallel(dets)
		assert.Equal(t, rows, prows, c.name)
		assert.Equal(t, labels, plabels, c.name)
	}
}

func TestSuppressTopK(t *testing.T) {
	s, err := NewSuppressor(Config{IoUThreshold: 0.45, ScoreEpsilon: 0.01, TopK: 1})
	require.NoError(t, err)

	rows, labels := s.Suppress(fixtureDetections())
	// One survivor per class: the top scorer.
	require.Equal(t, []int{0, 1, 2, 3, 4}, labels)
	wantRows := []int{3, 2, 4, 4, 0}
	dets := fixtureDetections()
	for i, idx := range wantRows {
		assert.Equal(t, dets[idx].Box, rows[i].Box, "row %d", i)
	}
}

func TestSuppressEpsilonIsInclusive(t *testing.T) {
	dets := []Detection{
		{Box: geometry.Box{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1}, Scores: []float64{0.25}},
		{Box: geometry.Box{MinX: 5, MinY: 5, MaxX: 6, MaxY: 6}, Scores: []float64{0.24}},
	}
	s, err := NewSuppressor(Config{IoUThreshold: 0.45, ScoreEpsilon: 0.25, TopK: 10})
	require.NoError(t, err)

	rows, labels := s.Suppress(dets)
	require.Len(t, rows, 1)
	assert.Equal(t, []int{0}, labels)
	assert.Equal(t, dets[0].Box, rows[0].Box)
}

func TestSuppressStableOnEqualScores(t *testing.T) {
	// Disjoint boxes with identical scores keep their input order.
	dets := []Detection{
		{Box: geometry.Box{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1}, Scores: []float64{0.5}},
		{Box: geometry.Box{MinX: 2, MinY: 2, MaxX: 3, MaxY: 3}, Scores: []float64{0.5}},
		{Box: geometry.Box{MinX: 4, MinY: 4, MaxX: 5, MaxY: 5}, Scores: []float64{0.5}},
	}
	s, err := NewSuppressor(DefaultConfig())
	require.NoError(t, err)

	rows, _ := s.Suppress(dets)
	require.Len(t, rows, 3)
	for i := range dets {
		assert.Equal(t, dets[i].Box, rows[i].Box, "row %d", i)
	}
}

func TestSuppressEmptyInput(t *testing.T) {
	s, err := NewSuppressor(DefaultConfig())
	require.NoError(t, err)

	rows, labels := s.Suppress(nil)
	require.NotNil(t, rows)
	require.NotNil(t, labels)
	assert.Empty(t, rows)
	assert.Empty(t, labels)
}

func TestSuppressRaggedScores(t *testing.T) {
	// Rows missing a class simply never compete in it.
	dets := []Detection{
		{Box: geometry.Box{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1}, Scores: []float64{0.9}},
		{Box: geometry.Box{MinX: 2, MinY: 2, MaxX: 3, MaxY: 3}, Scores: []float64{0.1, 0.8}},
	}
	s, err := NewSuppressor(DefaultConfig())
	require.NoError(t, err)

	rows, labels := s.Suppress(dets)
	require.Equal(t, []int{0, 0, 1}, labels)
	assert.Equal(t, dets[0].Box, rows[0].Box)
	assert.Equal(t, dets[1].Box, rows[1].Box)
	assert.Equal(t, dets[1].Box, rows[2].Box)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cases := []Config{
		{IoUThreshold: -0.1, ScoreEpsilon: 0.01, TopK: 10},
		{IoUThreshold: 1.1, ScoreEpsilon: 0.01, TopK: 10},
		{IoUThreshold: 0.5, ScoreEpsilon: -0.01, TopK: 10},
		{IoUThreshold: 0.5, ScoreEpsilon: 0.01, TopK: 0},
	}
	for _, cfg := range cases {
		require.Error(t, cfg.Validate(), "%+v", cfg)
		_, err := NewSuppressor(cfg)
		require.Error(t, err, "%+v", cfg)
	}
}

func BenchmarkSuppress(b *testing.B) {
	dets := make([]Detection, 0, 500)
	for i := range 500 {
		x := float64(i%20) * 0.05
		y := float64(i/20) * 0.04
		dets = append(dets, Detection{
			Box:    geometry.Box{MinX: x, MinY: y, MaxX: x + 0.1, MaxY: y + 0.1},
			Scores: []float64{0.1, float64(i%100) / 100, 0.3},
		})
	}
	s, err := NewSuppressor(DefaultConfig())
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for range b.N {
		s.Suppress(dets)
	}
}
