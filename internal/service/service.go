package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"fundamentals-merge/internal/alerting"
	"fundamentals-merge/internal/aligner"
	"fundamentals-merge/internal/fetcher"
	"fundamentals-merge/internal/output"
	"fundamentals-merge/internal/storage"
	"fundamentals-merge/internal/workbook"
)

// Options parameterise a batch run.
type Options struct {
	InputDir        string
	Pattern         string
	Workbook        workbook.Options
	OutputDir       string
	DateFormat      string
	CloseColumn     string
	WriteCSV        bool
	WriteChart      bool
	ChartMetric     string
	ContinueOnError bool
	LockKey         int64
	Now             func() time.Time
}

// Outcome describes one merged workbook.
type Outcome struct {
	Symbol     string
	SourceFile string
	OutputPath string
	Result     *aligner.Result
}

// Summary totals a batch run.
type Summary struct {
	Processed int
	Skipped   []alerting.Issue
	Failed    []alerting.Issue
}

// Batch walks the input directory and merges every workbook with its prices.
type Batch struct {
	opts     Options
	aligner  *aligner.Aligner
	prices   fetcher.PriceHistoryFetcher
	tables   storage.TableStore
	runs     storage.RunStore
	notifier alerting.Notifier
	locker   storage.AdvisoryLocker
	logger   zerolog.Logger
}

// New constructs a batch driver. tables, runs and notifier may be nil.
func New(opts Options, al *aligner.Aligner, prices fetcher.PriceHistoryFetcher, tables storage.TableStore, runs storage.RunStore, notifier alerting.Notifier, logger zerolog.Logger) *Batch {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	var locker storage.AdvisoryLocker
	if l, ok := runs.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Batch{
		opts:     opts,
		aligner:  al,
		prices:   prices,
		tables:   tables,
		runs:     runs,
		notifier: notifier,
		locker:   locker,
		logger:   logger.With().Str("component", "batch").Logger(),
	}
}

// SymbolFromPath derives the ticker from a workbook name: the stem up to the
// first '-', upper-cased, with '.' replaced by '-' (brk.b-quarterly.xlsx becomes BRK-B).
func SymbolFromPath(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if idx := strings.Index(stem, "-"); idx >= 0 {
		stem = stem[:idx]
	}
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(stem)), ".", "-")
}

// Run processes every matching workbook in lexical order. Symbols that cannot
// be aligned are logged and skipped; other errors stop the batch unless
// ContinueOnError is set.
func (b *Batch) Run(ctx context.Context) (Summary, error) {
	var summary Summary

	unlock, proceed, err := b.acquireLock(ctx)
	if err != nil {
		return summary, err
	}
	if !proceed {
		b.logger.Warn().Int64("lock_key", b.opts.LockKey).Msg("another batch holds the advisory lock; skipping run")
		return summary, nil
	}
	if unlock != nil {
		defer unlock()
	}

	files, err := filepath.Glob(filepath.Join(b.opts.InputDir, b.opts.Pattern))
	if err != nil {
		return summary, fmt.Errorf("list input files: %w", err)
	}
	sort.Strings(files)

	startedAt := b.opts.Now()
	runDate := startedAt
	b.logger.Info().Str("dir", b.opts.InputDir).Int("files", len(files)).Msg("batch started")

	for _, path := range files {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		symbol := SymbolFromPath(path)
		b.logger.Info().Str("symbol", symbol).Str("file", path).Msg("processing workbook")

		outcome, err := b.ProcessFile(ctx, path, runDate)
		switch {
		case err == nil:
			summary.Processed++
			b.recordRun(ctx, mergedRun(outcome))
		case aligner.IsSkippable(err):
			summary.Skipped = append(summary.Skipped, alerting.Issue{Symbol: symbol, Reason: err.Error()})
			b.logger.Error().Err(err).Str("symbol", symbol).Msg("could not add the price data")
			b.recordRun(ctx, errorRun(symbol, path, storage.StatusSkipped, err))
		default:
			summary.Failed = append(summary.Failed, alerting.Issue{Symbol: symbol, Reason: err.Error()})
			b.logger.Error().Err(err).Str("symbol", symbol).Msg("workbook failed")
			b.recordRun(ctx, errorRun(symbol, path, storage.StatusFailed, err))
			if !b.opts.ContinueOnError {
				b.notify(ctx, startedAt, summary)
				return summary, fmt.Errorf("%s: %w", symbol, err)
			}
		}
	}

	b.logger.Info().
		Int("processed", summary.Processed).
		Int("skipped", len(summary.Skipped)).
		Int("failed", len(summary.Failed)).
		Msg("batch finished")
	b.notify(ctx, startedAt, summary)
	return summary, nil
}

// ProcessFile merges one workbook and writes its output files.
func (b *Batch) ProcessFile(ctx context.Context, path string, runDate time.Time) (Outcome, error) {
	symbol := SymbolFromPath(path)
	outcome := Outcome{Symbol: symbol, SourceFile: path}

	result, err := b.Merge(ctx, path)
	if err != nil {
		return outcome, err
	}
	outcome.Result = result

	outcome.OutputPath = output.Path(b.opts.OutputDir, symbol, runDate, b.opts.DateFormat)
	if err := output.WriteXLSX(outcome.OutputPath, result.Table); err != nil {
		return outcome, fmt.Errorf("write workbook: %w", err)
	}
	base := strings.TrimSuffix(outcome.OutputPath, filepath.Ext(outcome.OutputPath))
	if b.opts.WriteCSV {
		if err := output.WriteCSV(base+".csv", result.Table); err != nil {
			return outcome, fmt.Errorf("write csv: %w", err)
		}
	}
	if b.opts.WriteChart {
		if err := output.WriteChart(base+".png", symbol, result.Table, b.opts.CloseColumn, b.opts.ChartMetric); err != nil {
			b.logger.Warn().Err(err).Str("symbol", symbol).Msg("chart not written")
		}
	}

	if b.tables != nil {
		if err := b.tables.ReplaceTable(ctx, symbol, result.Table); err != nil {
			b.logger.Error().Err(err).Str("symbol", symbol).Msg("failed to persist merged table")
		}
	}

	return outcome, nil
}

// Merge loads one workbook and attaches its closing prices without writing anything.
func (b *Batch) Merge(ctx context.Context, path string) (*aligner.Result, error) {
	wb, err := workbook.Load(path, b.opts.Workbook)
	if err != nil {
		return nil, err
	}
	return b.aligner.AlignAndAttachPrice(ctx, SymbolFromPath(path), wb.Combine(), b.prices)
}

func (b *Batch) recordRun(ctx context.Context, run storage.RunRecord) {
	if b.runs == nil {
		return
	}
	if _, err := b.runs.RecordRun(ctx, run); err != nil {
		b.logger.Error().Err(err).Str("symbol", run.Symbol).Msg("failed to record run")
	}
}

func (b *Batch) notify(ctx context.Context, startedAt time.Time, summary Summary) {
	if b.notifier == nil || (len(summary.Skipped) == 0 && len(summary.Failed) == 0) {
		return
	}
	note := alerting.Notification{
		StartedAt:  startedAt,
		FinishedAt: b.opts.Now(),
		Processed:  summary.Processed,
		Skipped:    summary.Skipped,
		Failed:     summary.Failed,
	}
	if err := b.notifier.Notify(ctx, note); err != nil {
		b.logger.Error().Err(err).Msg("failed to dispatch batch summary")
	}
}

func (b *Batch) acquireLock(ctx context.Context) (func(), bool, error) {
	if b.opts.LockKey == 0 || b.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := b.locker.TryAdvisoryLock(ctx, b.opts.LockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}

func mergedRun(o Outcome) storage.RunRecord {
	first, last := o.Result.Window.First, o.Result.Window.Last
	return storage.RunRecord{
		Symbol:     o.Symbol,
		SourceFile: o.SourceFile,
		Status:     storage.StatusMerged,
		FirstDate:  &first,
		LastDate:   &last,
		Rows:       o.Result.Table.Len(),
		Retried:    o.Result.Retried,
		OutputPath: o.OutputPath,
	}
}

func errorRun(symbol, path, status string, err error) storage.RunRecord {
	msg := err.Error()
	return storage.RunRecord{
		Symbol:     symbol,
		SourceFile: path,
		Status:     status,
		Error:      &msg,
	}
}
