package cli

import (
	"github.com/spf13/cobra"
)

var (
	simulateSkipped []string
	simulateFailed  []string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Send a synthetic batch summary through the configured notifier",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().SimulateAlert(cmd.Context(), simulateSkipped, simulateFailed)
	},
}

func init() {
	simulateCmd.Flags().StringSliceVar(&simulateSkipped, "skipped", nil, "Symbols reported as skipped")
	simulateCmd.Flags().StringSliceVar(&simulateFailed, "failed", nil, "Symbols reported as failed")
}
