package cli

import (
	"github.com/spf13/cobra"

	"fundamentals-merge/internal/app"
)

var (
	mergeOutput string
	mergeDryRun bool
)

var mergeCmd = &cobra.Command{
	Use:   "merge <workbook>",
	Short: "Merge a single workbook with its price history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.MergeOptions{
			Path:      args[0],
			OutputDir: mergeOutput,
			DryRun:    mergeDryRun,
		}
		return getApp().Merge(cmd.Context(), opts)
	},
}

func init() {
	mergeCmd.Flags().StringVar(&mergeOutput, "output", "", "Root directory for the merged workbook (defaults to config)")
	mergeCmd.Flags().BoolVar(&mergeDryRun, "dry-run", false, "Print the aligned window without writing files")
}
