package cli

import (
	"github.com/spf13/cobra"

	"fundamentals-merge/internal/app"
)

var (
	processInput           string
	processOutput          string
	processContinueOnError bool
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Merge every workbook in the input directory with its price history",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ProcessOptions{
			InputDir:        processInput,
			OutputDir:       processOutput,
			ContinueOnError: processContinueOnError,
		}
		return getApp().Process(cmd.Context(), opts)
	},
}

func init() {
	processCmd.Flags().StringVar(&processInput, "input", "", "Directory of statement workbooks (defaults to config)")
	processCmd.Flags().StringVar(&processOutput, "output", "", "Root directory for merged workbooks (defaults to config)")
	processCmd.Flags().BoolVar(&processContinueOnError, "continue-on-error", false, "Keep going after unexpected per-file errors")
}
