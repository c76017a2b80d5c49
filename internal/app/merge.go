package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"fundamentals-merge/internal/aligner"
	"fundamentals-merge/internal/service"
)

// MergeOptions configure a single-workbook merge.
type MergeOptions struct {
	Path      string
	OutputDir string
	DryRun    bool
}

// Merge processes one workbook outside of a batch. With DryRun the aligned
// window is printed and nothing is written.
func (a *App) Merge(ctx context.Context, opts MergeOptions) error {
	if opts.Path == "" {
		return errors.New("workbook path is required")
	}
	if _, err := os.Stat(opts.Path); err != nil {
		return fmt.Errorf("workbook: %w", err)
	}

	batch := service.New(a.batchOptions(ProcessOptions{OutputDir: opts.OutputDir}, 0), a.newAligner(), a.newFetcher(), nil, nil, nil, a.Logger)

	if opts.DryRun {
		a.Logger.Warn().Msg("merge dry-run: no files will be written")
		result, err := batch.Merge(ctx, opts.Path)
		if err != nil {
			return err
		}
		return printResult(os.Stdout, result)
	}

	outcome, err := batch.ProcessFile(ctx, opts.Path, time.Now())
	if err != nil {
		return err
	}
	a.Logger.Info().Str("symbol", outcome.Symbol).Str("output", outcome.OutputPath).Msg("workbook merged")
	return nil
}

func printResult(out io.Writer, result *aligner.Result) error {
	_, err := fmt.Fprintf(out, "%s: %d rows from %s to %s (retried: %t)\n",
		result.Symbol,
		result.Table.Len(),
		result.Window.First.Format(time.DateOnly),
		result.Window.Last.Format(time.DateOnly),
		result.Retried,
	)
	return err
}
