package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fundamentals-merge/internal/output"
	"fundamentals-merge/internal/series"
)

// Export renders a stored merged table as CSV and/or a price chart.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	symbol := strings.ToUpper(strings.TrimSpace(opts.Symbol))
	if symbol == "" {
		return errors.New("--symbol is required")
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	if closeStore != nil {
		defer closeStore()
	}

	table, err := store.LoadTable(ctx, symbol)
	if err != nil {
		return err
	}
	if table.Len() == 0 {
		a.Logger.Info().Str("symbol", symbol).Msg("no stored rows for symbol")
		return nil
	}

	return a.render(symbol, table, opts)
}

func (a *App) render(symbol string, table *series.Table, opts ExportOptions) error {
	a.Logger.Info().Str("symbol", symbol).Int("rows", table.Len()).Msg("exporting merged table")

	if opts.CSVPath != "" {
		if err := output.WriteCSV(opts.CSVPath, table); err != nil {
			return err
		}
	}
	if opts.PNGPath != "" {
		if err := output.WriteChart(opts.PNGPath, symbol, table, a.Config.Align.CloseColumn, opts.Column); err != nil {
			return fmt.Errorf("render %s chart: %w", symbol, err)
		}
	}
	return nil
}
