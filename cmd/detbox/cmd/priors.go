package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

// priorsCmd generates a prior set and writes it as JSON.
var priorsCmd = &cobra.Command{
	Use:   "priors",
	Short: "Generate the prior box set for a profile",
	Long: `Generate the deterministic prior (anchor) box set for a profile and
write it as JSON, one normalized center-form box per row.

Examples:
  detbox priors --profile voc
  detbox priors --profile efficientdet-d0 --output priors.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		priors, err := cfg.ResolvePriors(cfg.Profile)
		if err != nil {
			return fmt.Errorf("failed to generate priors: %w", err)
		}

		slog.Info("Generated priors", "profile", cfg.Profile, "count", len(priors))

		output, _ := cmd.Flags().GetString("output")
		return writeJSONOutput(cmd, output, PriorsOutput{
			Profile: cfg.Profile,
			Count:   len(priors),
			Priors:  toPriorRows(priors),
		})
	},
}

func init() {
	rootCmd.AddCommand(priorsCmd)
	priorsCmd.Flags().StringP("output", "o", "", "output file path (default stdout)")
}
