package fetcher

import (
	"context"
	"time"

	"fundamentals-merge/internal/series"
)

// PriceHistoryFetcher retrieves quarterly price history for a symbol. The
// returned table carries a series.CloseField column and timezone-naive dates.
type PriceHistoryFetcher interface {
	FetchHistory(ctx context.Context, symbol string, start, end time.Time) (*series.Table, error)
}
