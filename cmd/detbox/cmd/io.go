package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/MeKo-Tech/detbox/internal/geometry"
	"github.com/MeKo-Tech/detbox/internal/postprocess"
	"github.com/MeKo-Tech/detbox/internal/targets"
	"github.com/spf13/cobra"
)

// JSON rows the commands read and write.

// PriorRow is one prior in center form.
type PriorRow struct {
	CX float64 `json:"cx"`
	CY float64 `json:"cy"`
	W  float64 `json:"w"`
	H  float64 `json:"h"`
}

// TruthRow is one labeled box, corner form [min x, min y, max x, max y].
type TruthRow struct {
	Box   [4]float64 `json:"box"`
	Label int        `json:"label"`
}

// TargetRow is one encoded regression target.
type TargetRow struct {
	Offsets [4]float64 `json:"offsets"`
	Label   int        `json:"label"`
}

// PredictionRow is one raw network output row.
type PredictionRow struct {
	Offsets [4]float64 `json:"offsets"`
	Scores  []float64  `json:"scores"`
}

// DetectionRow is one final detection.
type DetectionRow struct {
	Box   [4]float64 `json:"box"`
	Label int        `json:"label"`
	Class string     `json:"class,omitempty"`
	Score float64    `json:"score"`
}

// PriorsOutput is the priors command result.
type PriorsOutput struct {
	Profile string     `json:"profile"`
	Count   int        `json:"count"`
	Priors  []PriorRow `json:"priors"`
}

// MatchOutput is the match command result.
type MatchOutput struct {
	Profile    string      `json:"profile"`
	Count      int         `json:"count"`
	Foreground int         `json:"foreground"`
	Matches    []TruthRow  `json:"matches"`
	Targets    []TargetRow `json:"targets,omitempty"`
}

// DetectOutput is the detect command result.
type DetectOutput struct {
	Profile    string         `json:"profile"`
	Count      int            `json:"count"`
	Detections []DetectionRow `json:"detections"`
}

// readJSONInput decodes JSON from path, or from stdin when path is "-"
// or empty.
func readJSONInput(cmd *cobra.Command, path string, target any) error {
	var r io.Reader
	if path == "" || path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open input file: %w", err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	if err := json.NewDecoder(r).Decode(target); err != nil {
		return fmt.Errorf("failed to parse JSON input: %w", err)
	}
	return nil
}

// writeJSONOutput encodes v to path, or to stdout when path is "-" or
// empty.
func writeJSONOutput(cmd *cobra.Command, path string, v any) error {
	var w io.Writer
	if path == "" || path == "-" {
		w = cmd.OutOrStdout()
	} else {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() { _ = f.Close() }()
		w = f
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}
	return nil
}

func toPriorRows(priors []geometry.CenterBox) []PriorRow {
	rows := make([]PriorRow, len(priors))
	for i, p := range priors {
		rows[i] = PriorRow{CX: p.CX, CY: p.CY, W: p.W, H: p.H}
	}
	return rows
}

func toLabeledBoxes(rows []TruthRow) []targets.LabeledBox {
	out := make([]targets.LabeledBox, len(rows))
	for i, row := range rows {
		out[i] = targets.LabeledBox{
			Box:   geometry.Box{MinX: row.Box[0], MinY: row.Box[1], MaxX: row.Box[2], MaxY: row.Box[3]},
			Label: row.Label,
		}
	}
	return out
}

func fromLabeledBoxes(rows []targets.LabeledBox) []TruthRow {
	out := make([]TruthRow, len(rows))
	for i, row := range rows {
		out[i] = TruthRow{
			Box:   [4]float64{row.Box.MinX, row.Box.MinY, row.Box.MaxX, row.Box.MaxY},
			Label: row.Label,
		}
	}
	return out
}

func fromEncoded(rows []targets.Encoded) []TargetRow {
	out := make([]TargetRow, len(rows))
	for i, row := range rows {
		out[i] = TargetRow{
			Offsets: [4]float64{row.DX, row.DY, row.DW, row.DH},
			Label:   row.Label,
		}
	}
	return out
}

func toPredictions(rows []PredictionRow) []postprocess.Prediction {
	out := make([]postprocess.Prediction, len(rows))
	for i, row := range rows {
		out[i] = postprocess.Prediction{Offsets: row.Offsets, Scores: row.Scores}
	}
	return out
}

func fromResults(results []postprocess.Result) []DetectionRow {
	out := make([]DetectionRow, len(results))
	for i, res := range results {
		out[i] = DetectionRow{
			Box:   [4]float64{res.Box.MinX, res.Box.MinY, res.Box.MaxX, res.Box.MaxY},
			Label: res.Label,
			Class: res.Class,
			Score: res.Score,
		}
	}
	return out
}

func countForeground(rows []targets.LabeledBox) int {
	n := 0
	for _, row := range rows {
		if row.Label != targets.BackgroundLabel {
			n++
		}
	}
	return n
}
