package testutil

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// GroundTruth is the wire shape for an annotated box: corner-form
// coordinates plus a class label.
type GroundTruth struct {
	Box   [4]float64 `json:"box"`
	Label int        `json:"label"`
}

// PredictionRow is the wire shape for one raw network output row:
// regression offsets plus per-class scores.
type PredictionRow struct {
	Offsets [4]float64 `json:"offsets"`
	Scores  []float64  `json:"scores"`
}

// SampleGroundTruths returns a small set of labeled boxes in the unit
// square, spread out enough that they claim distinct priors.
func SampleGroundTruths() []GroundTruth {
	return []GroundTruth{
		{Box: [4]float64{0.1, 0.1, 0.3, 0.3}, Label: 1},
		{Box: [4]float64{0.5, 0.5, 0.8, 0.8}, Label: 2},
		{Box: [4]float64{0.2, 0.6, 0.4, 0.9}, Label: 3},
	}
}

// SamplePredictions builds numPriors rows of raw output with a single
// confident foreground row at prior 0. Every other row scores as
// background, so a decode-and-suppress pass yields exactly one
// detection.
func SamplePredictions(numPriors, numClasses, label int, score float64) ([]PredictionRow, error) {
	if numPriors <= 0 {
		return nil, fmt.Errorf("numPriors must be positive, got %d", numPriors)
	}
	if numClasses <= 0 {
		return nil, fmt.Errorf("numClasses must be positive, got %d", numClasses)
	}
	if label <= 0 || label >= numClasses {
		return nil, fmt.Errorf("label %d outside foreground range [1, %d)", label, numClasses)
	}

	background := make([]float64, numClasses)
	background[0] = 1

	rows := make([]PredictionRow, numPriors)
	for i := range rows {
		rows[i] = PredictionRow{Scores: background}
	}

	foreground := make([]float64, numClasses)
	foreground[0] = 1 - score
	foreground[label] = score
	rows[0] = PredictionRow{Scores: foreground}

	return rows, nil
}

// WriteJSON marshals v with indentation and writes it to path, creating
// parent directories as needed.
func WriteJSON(path string, v any) error {
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to create fixture directory: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal fixture: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write fixture file: %w", err)
	}

	return nil
}

// ReadJSON reads the file at path and unmarshals it into target.
func ReadJSON(path string, target any) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: Reading test fixture files with controlled paths
	if err != nil {
		return fmt.Errorf("failed to read fixture file: %w", err)
	}

	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to unmarshal fixture: %w", err)
	}

	return nil
}
