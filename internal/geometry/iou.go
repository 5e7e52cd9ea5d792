package geometry

import (
	"gonum.org/v1/gonum/mat"
)

// IoU computes the intersection-over-union of two corner-form boxes.
// Boxes with zero or inverted extent overlap nothing, so the result is
// 0 for them; the union guard keeps degenerate inputs from producing
// NaN or negative ratios.
func IoU(a, b Box) float64 {
	interW := min(a.MaxX, b.MaxX) - max(a.MinX, b.MinX)
	interH := min(a.MaxY, b.MaxY) - max(a.MinY, b.MinY)
	if interW <= 0 || interH <= 0 {
		return 0
	}
	inter := interW * interH
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// IoUs computes the IoU of one box against every entry of others.
func IoUs(box Box, others []Box) []float64 {
	out := make([]float64, len(others))
	for i, other := range others {
		out[i] = IoU(box, other)
	}
	return out
}

// IoUMatrix computes the pairwise IoU matrix between two box sets with
// shape (len(a), len(b)). Both sets must be non-empty; callers handle
// their empty cases before building the matrix.
func IoUMatrix(a, b []Box) *mat.Dense {
	m := mat.NewDense(len(a), len(b), nil)
	for i, boxA := range a {
		row := m.RawRowView(i)
		for j, boxB := range b {
			row[j] = IoU(boxA, boxB)
		}
	}
	return m
}
