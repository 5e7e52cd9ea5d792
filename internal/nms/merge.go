package nms

import "fmt"

// Merge expands suppressed rows back into detections whose score vector
// is zero everywhere except the row's class slot. The rows and labels
// slices must run parallel, and every label must fall inside
// [0, numClasses).
func Merge(rows []Scored, labels []int, numClasses int) ([]Detection, error) {
	if len(rows) != len(labels) {
		return nil, fmt.Errorf("rows and labels differ in length: %d and %d", len(rows), len(labels))
	}
	if numClasses <= 0 {
		return nil, fmt.Errorf("class count must be positive, got %d", numClasses)
	}
	out := make([]Detection, len(rows))
	for i, row := range rows {
		label := labels[i]
		if label < 0 || label >= numClasses {
			return nil, fmt.Errorf("row %d: label %d outside [0, %d)", i, label, numClasses)
		}
		scores := make([]float64, numClasses)
		scores[label] = row.Score
		out[i] = Detection{Box: row.Box, Scores: scores}
	}
	return out, nil
}
