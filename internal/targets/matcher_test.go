package targets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/detbox/internal/anchors"
	"github.com/MeKo-Tech/detbox/internal/geometry"
)

func pixelTruths() []LabeledBox {
	return []LabeledBox{
		{Box: geometry.Box{MinX: 47, MinY: 239, MaxX: 194, MaxY: 370}, Label: 12},
		{Box: geometry.Box{MinX: 7, MinY: 11, MaxX: 351, MaxY: 497}, Label: 15},
		{Box: geometry.Box{MinX: 138, MinY: 199, MaxX: 206, MaxY: 300}, Label: 19},
		{Box: geometry.Box{MinX: 122, MinY: 154, MaxX: 214, MaxY: 194}, Label: 18},
		{Box: geometry.Box{MinX: 238, MinY: 155, MaxX: 306, MaxY: 204}, Label: 9},
	}
}

// quadrantPriors covers the unit square with two half-size priors on
// the diagonal and one on the lower left.
func quadrantPriors() []geometry.CenterBox {
	return []geometry.CenterBox{
		{CX: 0.25, CY: 0.25, W: 0.5, H: 0.5},
		{CX: 0.75, CY: 0.75, W: 0.5, H: 0.5},
		{CX: 0.25, CY: 0.75, W: 0.5, H: 0.5},
	}
}

func TestMatchAgainstVOCPriors(t *testing.T) {
	priors, err := anchors.SSD(anchors.VOC())
	require.NoError(t, err)
	m, err := NewMatcher(priors, DefaultMatcherConfig())
	require.NoError(t, err)

	matches := m.Match(pixelTruths())
	require.Len(t, matches, 8732)

	// The truth coordinates sit far outside the unit square, so every
	// overlap is zero and only the forced claims assign a class. Each
	// truth's best prior is column 0; the truth listed last keeps it.
	assert.Equal(t, 9, matches[0].Label)
	assert.Equal(t, geometry.Box{MinX: 238, MinY: 155, MaxX: 306, MaxY: 204}, matches[0].Box)

	first := geometry.Box{MinX: 47, MinY: 239, MaxX: 194, MaxY: 370}
	counts := make(map[geometry.Box]int)
	for i, row := range matches {
		counts[row.Box]++
		if i > 0 && row.Label != BackgroundLabel {
			t.Fatalf("prior %d: expected background, got label %d", i, row.Label)
		}
	}
	require.Len(t, counts, 2)
	assert.Equal(t, 1, counts[matches[0].Box])
	assert.Equal(t, 8731, counts[first])
}

func TestMatchAssignsOverlappingTruths(t *testing.T) {
	m, err := NewMatcher(quadrantPriors(), DefaultMatcherConfig())
	require.NoError(t, err)

	truths := []LabeledBox{
		{Box: geometry.Box{MinX: 0.05, MinY: 0.05, MaxX: 0.55, MaxY: 0.55}, Label: 2},
		{Box: geometry.Box{MinX: 0.45, MinY: 0.45, MaxX: 0.95, MaxY: 0.95}, Label: 5},
	}
	matches := m.Match(truths)
	require.Len(t, matches, 3)

	assert.Equal(t, 2, matches[0].Label)
	assert.Equal(t, truths[0].Box, matches[0].Box)
	assert.Equal(t, 5, matches[1].Label)
	assert.Equal(t, truths[1].Box, matches[1].Box)

	// The third prior barely overlaps either truth. It keeps the best
	// truth's coordinates but loses the class.
	assert.Equal(t, BackgroundLabel, matches[2].Label)
	assert.Equal(t, truths[0].Box, matches[2].Box)
}

func TestMatchForcesBestPriorOnFirstTie(t *testing.T) {
	// Two identical priors; the forced claim lands on the first one.
	priors := []geometry.CenterBox{
		{CX: 0.25, CY: 0.25, W: 0.5, H: 0.5},
		{CX: 0.25, CY: 0.25, W: 0.5, H: 0.5},
	}
	m, err := NewMatcher(priors, DefaultMatcherConfig())
	require.NoError(t, err)

	truths := []LabeledBox{
		{Box: geometry.Box{MinX: 0, MinY: 0, MaxX: 0.1, MaxY: 0.1}, Label: 7},
	}
	matches := m.Match(truths)
	require.Len(t, matches, 2)
	assert.Equal(t, 7, matches[0].Label)
	assert.Equal(t, BackgroundLabel, matches[1].Label)
	assert.Equal(t, truths[0].Box, matches[1].Box)
}

func TestMatchLastTruthWinsSharedPrior(t *testing.T) {
	priors := []geometry.CenterBox{{CX: 0.5, CY: 0.5, W: 1, H: 1}}
	m, err := NewMatcher(priors, DefaultMatcherConfig())
	require.NoError(t, err)

	box := geometry.Box{MinX: 0.2, MinY: 0.2, MaxX: 0.8, MaxY: 0.8}
	matches := m.Match([]LabeledBox{
		{Box: box, Label: 3},
		{Box: box, Label: 8},
	})
	require.Len(t, matches, 1)
	assert.Equal(t, 8, matches[0].Label)
	assert.Equal(t, box, matches[0].Box)
}

func TestMatchEmptyTruths(t *testing.T) {
	m, err := NewMatcher(quadrantPriors(), DefaultMatcherConfig())
	require.NoError(t, err)
	require.Equal(t, 3, m.NumPriors())

	for _, truths := range [][]LabeledBox{nil, {}} {
		matches := m.Match(truths)
		require.Len(t, matches, 3)
		for i, row := range matches {
			if row.Label != BackgroundLabel || row.Box != (geometry.Box{}) {
				t.Fatalf("row %d: expected zero background row, got %+v", i, row)
			}
		}
	}
}

func TestMatchEmptyPriors(t *testing.T) {
	m, err := NewMatcher(nil, DefaultMatcherConfig())
	require.NoError(t, err)
	matches := m.Match(pixelTruths())
	require.NotNil(t, matches)
	require.Empty(t, matches)
}

func TestNewMatcherRejectsBadThreshold(t *testing.T) {
	for _, threshold := range []float64{-0.1, 1.1} {
		_, err := NewMatcher(quadrantPriors(), MatcherConfig{IoUThreshold: threshold})
		require.Error(t, err, "threshold %v", threshold)
	}
}

func BenchmarkMatchVOC(b *testing.B) {
	priors, err := anchors.SSD(anchors.VOC())
	if err != nil {
		b.Fatal(err)
	}
	m, err := NewMatcher(priors, DefaultMatcherConfig())
	if err != nil {
		b.Fatal(err)
	}
	truths := pixelTruths()
	b.ResetTimer()
	for range b.N {
		m.Match(truths)
	}
}
