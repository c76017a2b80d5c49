package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"fundamentals-merge/internal/alerting"
	"fundamentals-merge/internal/aligner"
	"fundamentals-merge/internal/series"
	"fundamentals-merge/internal/storage"
	"fundamentals-merge/internal/workbook"
)

type mapFetcher map[string]*series.Table

func (m mapFetcher) FetchHistory(_ context.Context, symbol string, _, _ time.Time) (*series.Table, error) {
	tbl, ok := m[symbol]
	if !ok {
		return nil, errors.New("unknown symbol " + symbol)
	}
	return tbl.Clone(), nil
}

type memoryRuns struct {
	runs []storage.RunRecord
}

func (m *memoryRuns) RecordRun(_ context.Context, run storage.RunRecord) (storage.RunRecord, error) {
	run.ID = int64(len(m.runs) + 1)
	m.runs = append(m.runs, run)
	return run, nil
}

func (m *memoryRuns) ListRecentRuns(_ context.Context, limit int) ([]storage.RunRecord, error) {
	return m.runs, nil
}

type memoryTables map[string]*series.Table

func (m memoryTables) ReplaceTable(_ context.Context, symbol string, table *series.Table) error {
	m[symbol] = table
	return nil
}

func (m memoryTables) LoadTable(_ context.Context, symbol string) (*series.Table, error) {
	return m[symbol], nil
}

type recordingNotifier struct {
	notes []alerting.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, note alerting.Notification) error {
	r.notes = append(r.notes, note)
	return nil
}

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func priceTable(dates ...string) *series.Table {
	tbl := series.New(series.CloseField)
	for i, d := range dates {
		tbl.Append(day(d), series.Value(decimal.NewFromInt(int64(100+i))))
	}
	return tbl
}

func writeWorkbook(t *testing.T, path string) {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	sheet := "Income-Quarterly"
	require.NoError(t, f.SetSheetName(f.GetSheetName(0), sheet))
	rows := [][]interface{}{
		{"Quarter Ended", "2020-09-30", "2020-06-30", "2020-03-31"},
		{"Revenue", 300, 200, 100},
		{"EPS", "1.25", "1.1", "0.9"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow(sheet, cell, &r))
	}
	require.NoError(t, f.SaveAs(path))
}

func newBatch(t *testing.T, continueOnError bool, runs *memoryRuns, tables memoryTables, notifier alerting.Notifier) (*Batch, string) {
	t.Helper()

	in := t.TempDir()
	out := t.TempDir()
	writeWorkbook(t, filepath.Join(in, "aapl-quarterly.xlsx"))
	require.NoError(t, os.WriteFile(filepath.Join(in, "bad-quarterly.xlsx"), []byte("not a workbook"), 0o600))
	writeWorkbook(t, filepath.Join(in, "xom-quarterly.xlsx"))

	prices := mapFetcher{
		"AAPL": priceTable("2020-04-01", "2020-07-01", "2020-10-01"),
		"XOM":  priceTable("2020-05-15", "2020-08-15"),
	}

	opts := Options{
		InputDir:        in,
		Pattern:         "*.xlsx",
		Workbook:        workbook.Options{Sheets: []string{"Income-Quarterly"}},
		OutputDir:       out,
		DateFormat:      "02_01_2006",
		CloseColumn:     "Close Price",
		WriteCSV:        true,
		ContinueOnError: continueOnError,
		Now:             func() time.Time { return time.Date(2024, 3, 7, 9, 0, 0, 0, time.UTC) },
	}
	al := aligner.New(aligner.Options{ToleranceDays: 10, CloseColumn: "Close Price"}, zerolog.Nop())

	var runStore storage.RunStore
	if runs != nil {
		runStore = runs
	}
	var tableStore storage.TableStore
	if tables != nil {
		tableStore = tables
	}
	return New(opts, al, prices, tableStore, runStore, notifier, zerolog.Nop()), out
}

func TestSymbolFromPath(t *testing.T) {
	assert.Equal(t, "BRK-B", SymbolFromPath("/data/brk.b-quarterly-2024.xlsx"))
	assert.Equal(t, "MSFT", SymbolFromPath("msft.xlsx"))
	assert.Equal(t, "KO", SymbolFromPath("ko-statements.xlsm"))
}

func TestBatchContinuesPastFailures(t *testing.T) {
	runs := &memoryRuns{}
	tables := memoryTables{}
	notifier := &recordingNotifier{}
	batch, out := newBatch(t, true, runs, tables, notifier)

	summary, err := batch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Processed)
	require.Len(t, summary.Skipped, 1)
	assert.Equal(t, "XOM", summary.Skipped[0].Symbol)
	assert.Contains(t, summary.Skipped[0].Reason, "XOM")
	require.Len(t, summary.Failed, 1)
	assert.Equal(t, "BAD", summary.Failed[0].Symbol)

	xlsx := filepath.Join(out, "AAPL", "07_03_2024", "AAPL_quarterly_07_03_2024.xlsx")
	assert.FileExists(t, xlsx)
	assert.FileExists(t, filepath.Join(out, "AAPL", "07_03_2024", "AAPL_quarterly_07_03_2024.csv"))
	assert.NoDirExists(t, filepath.Join(out, "XOM"))

	merged := tables["AAPL"]
	require.NotNil(t, merged)
	assert.Equal(t, []string{"Revenue", "EPS", "Close Price"}, merged.Columns)
	assert.Equal(t, []time.Time{day("2020-03-31"), day("2020-06-30"), day("2020-09-30")}, merged.Dates())

	require.Len(t, runs.runs, 3)
	assert.Equal(t, storage.StatusMerged, runs.runs[0].Status)
	assert.Equal(t, 3, runs.runs[0].Rows)
	assert.Equal(t, day("2020-03-31"), *runs.runs[0].FirstDate)
	assert.Equal(t, day("2020-10-01"), *runs.runs[0].LastDate)
	assert.Equal(t, storage.StatusFailed, runs.runs[1].Status)
	assert.Equal(t, storage.StatusSkipped, runs.runs[2].Status)

	require.Len(t, notifier.notes, 1)
	assert.Equal(t, 1, notifier.notes[0].Processed)
}

func TestBatchStopsOnUnexpectedError(t *testing.T) {
	runs := &memoryRuns{}
	batch, _ := newBatch(t, false, runs, nil, nil)

	summary, err := batch.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BAD")
	assert.False(t, aligner.IsSkippable(err))

	assert.Equal(t, 1, summary.Processed)
	assert.Empty(t, summary.Skipped, "XOM is never reached")
	assert.Len(t, runs.runs, 2)
}

func TestBatchHonoursCancellation(t *testing.T) {
	batch, _ := newBatch(t, true, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := batch.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
