package cmd

import (
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/detbox/internal/targets"
	"github.com/spf13/cobra"
)

// matchCmd assigns ground-truth boxes to priors and optionally encodes
// the assignments as regression targets.
var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Assign ground-truth boxes to the prior set",
	Long: `Match ground-truth boxes against the profile's prior set. Every truth is
guaranteed at least one assigned prior; priors overlapping no truth above
the IoU threshold come back with the background label.

The truth input is a JSON array of {"box": [x1, y1, x2, y2], "label": n}
rows, read from --truth or stdin.

Examples:
  detbox match --truth gt.json
  detbox match --truth gt.json --iou-threshold 0.4 --encode
  cat gt.json | detbox match --encode --output matches.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		iouThreshold := cfg.Match.IoUThreshold
		if cmd.Flags().Changed("iou-threshold") {
			iouThreshold, _ = cmd.Flags().GetFloat64("iou-threshold")
		}

		priors, err := cfg.ResolvePriors(cfg.Profile)
		if err != nil {
			return fmt.Errorf("failed to generate priors: %w", err)
		}

		matcher, err := targets.NewMatcher(priors, targets.MatcherConfig{IoUThreshold: iouThreshold})
		if err != nil {
			return fmt.Errorf("failed to build matcher: %w", err)
		}

		truthPath, _ := cmd.Flags().GetString("truth")
		var truths []TruthRow
		if err := readJSONInput(cmd, truthPath, &truths); err != nil {
			return err
		}

		matched := matcher.Match(toLabeledBoxes(truths))

		result := MatchOutput{
			Profile:    cfg.Profile,
			Count:      len(matched),
			Foreground: countForeground(matched),
			Matches:    fromLabeledBoxes(matched),
		}

		if encode, _ := cmd.Flags().GetBool("encode"); encode {
			variances, err := cfg.CodecVariances()
			if err != nil {
				return err
			}
			encoded, err := targets.Encode(matched, priors, variances)
			if err != nil {
				return fmt.Errorf("failed to encode targets: %w", err)
			}
			result.Targets = fromEncoded(encoded)
		}

		slog.Info("Matched ground truth",
			"profile", cfg.Profile,
			"truths", len(truths),
			"priors", len(priors),
			"foreground", result.Foreground)

		output, _ := cmd.Flags().GetString("output")
		return writeJSONOutput(cmd, output, result)
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)
	matchCmd.Flags().StringP("truth", "t", "", "ground-truth JSON file (default stdin)")
	matchCmd.Flags().Float64("iou-threshold", 0.5, "minimum IoU for a foreground assignment (0..1)")
	matchCmd.Flags().Bool("encode", false, "also emit variance-scaled regression targets")
	matchCmd.Flags().StringP("output", "o", "", "output file path (default stdout)")
}
