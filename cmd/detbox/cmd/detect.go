package cmd

import (
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/detbox/internal/nms"
	"github.com/MeKo-Tech/detbox/internal/postprocess"
	"github.com/spf13/cobra"
)

// detectCmd decodes prediction rows against the prior set and runs
// per-class non-maximum suppression.
var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Decode predictions and suppress duplicate detections",
	Long: `Run raw per-prior prediction rows through decoding and per-class
non-maximum suppression. The input is a JSON array of
{"offsets": [dx, dy, dw, dh], "scores": [...]} rows, one per prior, read
from --input or stdin.

Examples:
  detbox detect --input preds.json
  detbox detect --input preds.json --nms-threshold 0.5 --min-score 0.3
  cat preds.json | detbox detect --output detections.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		nmsConfig := cfg.SuppressionConfig()
		if cmd.Flags().Changed("nms-threshold") {
			nmsConfig.IoUThreshold, _ = cmd.Flags().GetFloat64("nms-threshold")
		}
		if cmd.Flags().Changed("epsilon") {
			nmsConfig.ScoreEpsilon, _ = cmd.Flags().GetFloat64("epsilon")
		}
		if cmd.Flags().Changed("top-k") {
			nmsConfig.TopK, _ = cmd.Flags().GetInt("top-k")
		}
		minScore, _ := cmd.Flags().GetFloat64("min-score")
		keepLabels, _ := cmd.Flags().GetIntSlice("classes")

		variances, err := cfg.CodecVariances()
		if err != nil {
			return err
		}

		priors, err := cfg.ResolvePriors(cfg.Profile)
		if err != nil {
			return fmt.Errorf("failed to generate priors: %w", err)
		}

		pipeline, err := postprocess.NewWithPriors(priors, postprocess.Config{
			Profile:    cfg.Profile,
			Variances:  variances,
			NMS:        nmsConfig,
			MinScore:   minScore,
			KeepLabels: keepLabels,
			ClassNames: cfg.ClassNamesFor(cfg.Profile),
		})
		if err != nil {
			return fmt.Errorf("failed to build pipeline: %w", err)
		}

		inputPath, _ := cmd.Flags().GetString("input")
		var preds []PredictionRow
		if err := readJSONInput(cmd, inputPath, &preds); err != nil {
			return err
		}

		results, err := pipeline.Run(toPredictions(preds))
		if err != nil {
			return fmt.Errorf("detection failed: %w", err)
		}

		slog.Info("Detection complete",
			"profile", cfg.Profile,
			"predictions", len(preds),
			"detections", len(results))

		output, _ := cmd.Flags().GetString("output")
		return writeJSONOutput(cmd, output, DetectOutput{
			Profile:    cfg.Profile,
			Count:      len(results),
			Detections: fromResults(results),
		})
	},
}

func init() {
	rootCmd.AddCommand(detectCmd)
	detectCmd.Flags().StringP("input", "i", "", "prediction JSON file (default stdin)")
	detectCmd.Flags().Float64("nms-threshold", nms.DefaultConfig().IoUThreshold,
		"IoU at or above which overlapping boxes are suppressed (0..1)")
	detectCmd.Flags().Float64("epsilon", nms.DefaultConfig().ScoreEpsilon,
		"minimum class score for a row to enter suppression")
	detectCmd.Flags().Int("top-k", nms.DefaultConfig().TopK, "per-class candidate cap before suppression")
	detectCmd.Flags().Float64("min-score", 0.0, "drop final detections scoring below this")
	detectCmd.Flags().IntSlice("classes", nil, "keep only these class labels (default all)")
	detectCmd.Flags().StringP("output", "o", "", "output file path (default stdout)")
}
