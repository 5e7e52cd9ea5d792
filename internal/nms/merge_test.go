package nms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/MeKo-Tech/detbox/internal/geometry"
)

func TestMergeOneHotRows(t *testing.T) {
	s, err := NewSuppressor(DefaultConfig())
	require.NoError(t, err)
	rows, labels := s.Suppress(fixtureDetections())

	merged, err := Merge(rows, labels, 5)
	require.NoError(t, err)
	require.Len(t, merged, len(rows))

	for i, det := range merged {
		require.Len(t, det.Scores, 5)
		assert.Equal(t, rows[i].Box, det.Box, "row %d", i)
		// The class slot carries the full score; every other slot is
		// exactly zero.
		assert.Equal(t, rows[i].Score, det.Scores[labels[i]], "row %d", i)
		assert.InDelta(t, rows[i].Score, floats.Sum(det.Scores), 1e-12, "row %d", i)
		assert.Equal(t, labels[i], floats.MaxIdx(det.Scores), "row %d", i)
		for class, score := range det.Scores {
			if class != labels[i] && score != 0 {
				t.Fatalf("row %d: class %d expected 0, got %v", i, class, score)
			}
		}
	}
}

func TestMergeEmpty(t *testing.T) {
	merged, err := Merge(nil, nil, 3)
	require.NoError(t, err)
	require.NotNil(t, merged)
	assert.Empty(t, merged)
}

func TestMergeErrors(t *testing.T) {
	rows := []Scored{{Box: geometry.Box{MaxX: 1, MaxY: 1}, Score: 0.5}}

	_, err := Merge(rows, nil, 3)
	require.Error(t, err)

	_, err = Merge(rows, []int{1}, 0)
	require.Error(t, err)

	_, err = Merge(rows, []int{3}, 3)
	require.Error(t, err)

	_, err = Merge(rows, []int{-1}, 3)
	require.Error(t, err)
}
