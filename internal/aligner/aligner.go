package aligner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"fundamentals-merge/internal/datematch"
	"fundamentals-merge/internal/fetcher"
	"fundamentals-merge/internal/series"
)

const (
	// DefaultToleranceDays is the default closeness window between dates.
	DefaultToleranceDays = 10
	// DefaultCloseColumn labels the attached price column.
	DefaultCloseColumn = "Close Price"
)

// Options tune the aligner.
type Options struct {
	ToleranceDays int
	CloseColumn   string
}

// Window is the inclusive date range retained from both tables.
type Window struct {
	First time.Time
	Last  time.Time
}

// Result is the merged table of one symbol.
type Result struct {
	Symbol  string
	Table   *series.Table
	Window  Window
	Retried bool
}

// Aligner trims fundamentals and price history to a common window and attaches
// closing prices to the fundamentals.
type Aligner struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs an Aligner.
func New(opts Options, logger zerolog.Logger) *Aligner {
	if opts.ToleranceDays <= 0 {
		opts.ToleranceDays = DefaultToleranceDays
	}
	if strings.TrimSpace(opts.CloseColumn) == "" {
		opts.CloseColumn = DefaultCloseColumn
	}
	return &Aligner{opts: opts, logger: logger.With().Str("component", "aligner").Logger()}
}

// AlignAndAttachPrice fetches quarterly prices covering fundamentals, trims both
// tables to the first and last pair of dates within the tolerance window, and
// returns fundamentals with the close column attached by row position.
//
// When no window is found, the price history is fetched again starting on the
// first day of the month after the first fundamentals date that follows the
// first price date, and the search is retried once.
func (a *Aligner) AlignAndAttachPrice(ctx context.Context, symbol string, fundamentals *series.Table, prices fetcher.PriceHistoryFetcher) (*Result, error) {
	if fundamentals.Len() < 2 {
		return nil, fmt.Errorf("%s: fundamentals need at least 2 rows, got %d", symbol, fundamentals.Len())
	}
	if err := fundamentals.Validate(); err != nil {
		return nil, fmt.Errorf("%s: fundamentals: %w", symbol, err)
	}

	firstFund, _ := fundamentals.FirstDate()
	lastFund, _ := fundamentals.LastDate()
	start := firstFund.AddDate(0, 0, 1)
	end := lastFund.AddDate(0, 0, 2)

	history, err := prices.FetchHistory(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}
	firstPrice, ok := history.FirstDate()
	if !ok {
		return nil, &DateAlignmentError{Symbol: symbol, Reason: fmt.Sprintf("no price history between %s and %s", isoDay(start), isoDay(end))}
	}

	fundDates := fundamentals.Dates()
	window, found := a.match(history.Dates(), fundDates)
	retried := false
	if !found {
		closest, ok := datematch.Closest(firstPrice, fundDates)
		if !ok {
			return nil, &DateAlignmentError{Symbol: symbol, Reason: fmt.Sprintf("no fundamentals date after first price date %s", isoDay(firstPrice))}
		}

		start = datematch.FirstOfNextMonth(closest)
		retried = true
		a.logger.Debug().Str("symbol", symbol).Time("start", start).Msg("shifted price history start")

		history, err = prices.FetchHistory(ctx, symbol, start, end)
		if err != nil {
			return nil, err
		}
		window, found = a.match(history.Dates(), fundDates)
		if !found {
			return nil, &DateAlignmentError{Symbol: symbol, Reason: fmt.Sprintf("no close dates within %d days were found", a.opts.ToleranceDays)}
		}
	}

	history = history.Between(window.First, window.Last)
	trimmed := fundamentals.Between(window.First, window.Last)
	a.logger.Debug().Str("symbol", symbol).Msg("tables trimmed")

	if trimmed.Len() != history.Len() {
		verr := &ValidationError{Symbol: symbol, Fundamentals: trimmed.Len(), Prices: history.Len()}
		a.logger.Error().Err(verr).Str("symbol", symbol).Msg("row count mismatch")
		return nil, verr
	}

	closes, ok := history.Column(series.CloseField)
	if !ok {
		return nil, fmt.Errorf("%s: price history has no %s column", symbol, series.CloseField)
	}
	merged, err := trimmed.WithColumn(a.opts.CloseColumn, closes)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", symbol, err)
	}

	resolvedFirst, _ := merged.FirstDate()
	resolvedLast, _ := merged.LastDate()
	a.logger.Info().
		Str("symbol", symbol).
		Str("start", isoDay(resolvedFirst)).
		Str("end", isoDay(resolvedLast)).
		Int("rows", merged.Len()).
		Bool("retried", retried).
		Msg("price attached")

	return &Result{Symbol: symbol, Table: merged, Window: window, Retried: retried}, nil
}

func (a *Aligner) match(priceDates, fundDates []time.Time) (Window, bool) {
	first, okFirst := datematch.FirstClose(priceDates, fundDates, a.opts.ToleranceDays)
	last, okLast := datematch.LastClose(priceDates, fundDates, a.opts.ToleranceDays)
	if !okFirst || !okLast {
		return Window{}, false
	}
	return Window{First: first, Last: last}, true
}

func isoDay(t time.Time) string {
	return t.Format(time.DateOnly)
}
