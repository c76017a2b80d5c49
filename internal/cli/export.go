package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"fundamentals-merge/internal/app"
)

var (
	exportSymbol  string
	exportColumn  string
	exportPNGPath string
	exportCSVPath string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a stored merged table as CSV and/or PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		if exportSymbol == "" {
			return fmt.Errorf("--symbol must be provided")
		}

		opts := app.ExportOptions{
			Symbol:  exportSymbol,
			Column:  exportColumn,
			PNGPath: exportPNGPath,
			CSVPath: exportCSVPath,
		}
		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportSymbol, "symbol", "", "Ticker to export")
	exportCmd.Flags().StringVar(&exportColumn, "column", "", "Fundamentals column plotted against the close price")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
}
