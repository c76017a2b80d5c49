package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"fundamentals-merge/internal/datematch"
	"fundamentals-merge/internal/series"
)

const (
	yahooChartPath   = "/v8/finance/chart/"
	defaultYahooBase = "https://query1.finance.yahoo.com"
	quarterly        = "3mo"
)

// YahooOptions parameterise the Yahoo Finance chart fetcher.
type YahooOptions struct {
	BaseURL           string
	Interval          string
	Timeout           time.Duration
	UserAgent         string
	RequestsPerSecond float64
	Burst             int
}

// Yahoo fetches price history from the Yahoo Finance chart endpoint.
type Yahoo struct {
	opts    YahooOptions
	logger  zerolog.Logger
	client  *http.Client
	limiter *rate.Limiter
	baseURL string
}

// NewYahoo constructs a Yahoo price history fetcher.
func NewYahoo(opts YahooOptions, logger zerolog.Logger) *Yahoo {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultYahooBase
	}

	if opts.Interval == "" {
		opts.Interval = quarterly
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Yahoo{
		opts:    opts,
		logger:  logger.With().Str("component", "price_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, burst),
		baseURL: baseURL,
	}
}

// FetchHistory returns closing prices for [start, end). Dates are the exchange
// calendar day of each bar at midnight, without a timezone.
func (y *Yahoo) FetchHistory(ctx context.Context, symbol string, start, end time.Time) (*series.Table, error) {
	if strings.TrimSpace(symbol) == "" {
		return nil, errors.New("symbol is required")
	}
	if !start.Before(end) {
		return nil, fmt.Errorf("empty history range %s..%s", start.Format(time.DateOnly), end.Format(time.DateOnly))
	}

	if err := y.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("period1", strconv.FormatInt(start.Unix(), 10))
	query.Set("period2", strconv.FormatInt(end.Unix(), 10))
	query.Set("interval", y.opts.Interval)
	query.Set("events", "history")
	query.Set("includeAdjustedClose", "true")

	endpoint := y.baseURL + yahooChartPath + url.PathEscape(symbol) + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(y.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "fundmerge/1.0")
	}

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var chart chartResponse
	decodeErr := json.Unmarshal(payload, &chart)

	if resp.StatusCode != http.StatusOK {
		return nil, parseChartError(resp.StatusCode, chart, decodeErr, payload)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode chart response: %w", decodeErr)
	}
	if chart.Chart.Error != nil {
		return nil, parseChartError(resp.StatusCode, chart, nil, payload)
	}
	if len(chart.Chart.Result) == 0 {
		return series.New(series.CloseField), nil
	}

	table, err := chart.Chart.Result[0].table()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", symbol, err)
	}

	y.logger.Debug().
		Str("symbol", symbol).
		Time("start", start).
		Time("end", end).
		Int("rows", table.Len()).
		Msg("price history fetched")
	return table, nil
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta struct {
		Symbol               string `json:"symbol"`
		Currency             string `json:"currency"`
		ExchangeTimezoneName string `json:"exchangeTimezoneName"`
		GMTOffset            int    `json:"gmtoffset"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Close []json.Number `json:"close"`
		} `json:"quote"`
	} `json:"indicators"`
}

func (r chartResult) location() *time.Location {
	if r.Meta.ExchangeTimezoneName != "" {
		if loc, err := time.LoadLocation(r.Meta.ExchangeTimezoneName); err == nil {
			return loc
		}
	}
	return time.FixedZone("exchange", r.Meta.GMTOffset)
}

func (r chartResult) table() (*series.Table, error) {
	table := series.New(series.CloseField)
	if len(r.Indicators.Quote) == 0 {
		return table, nil
	}

	closes := r.Indicators.Quote[0].Close
	if len(closes) != len(r.Timestamp) {
		return nil, fmt.Errorf("chart has %d timestamps but %d closes", len(r.Timestamp), len(closes))
	}

	type bar struct {
		ts    int64
		price decimal.Decimal
	}
	loc := r.location()
	bars := make(map[time.Time]bar, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		if closes[i] == "" {
			continue
		}
		price, err := decimal.NewFromString(closes[i].String())
		if err != nil {
			return nil, fmt.Errorf("parse close %q: %w", closes[i], err)
		}
		date := datematch.Day(time.Unix(ts, 0).In(loc))

		// Yahoo appends the live bar on the same day as the last period; keep the latest.
		if prev, ok := bars[date]; ok && prev.ts > ts {
			continue
		}
		bars[date] = bar{ts: ts, price: price}
	}

	for date, b := range bars {
		table.Append(date, series.Value(b.price))
	}
	table.Sort()
	return table, nil
}

func parseChartError(status int, chart chartResponse, decodeErr error, payload []byte) error {
	if decodeErr == nil && chart.Chart.Error != nil {
		if chart.Chart.Error.Description != "" {
			return fmt.Errorf("yahoo chart error (%d): %s", status, chart.Chart.Error.Description)
		}
		if chart.Chart.Error.Code != "" {
			return fmt.Errorf("yahoo chart error (%d): %s", status, chart.Chart.Error.Code)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("yahoo chart error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("yahoo chart error (%d)", status)
}

var _ PriceHistoryFetcher = (*Yahoo)(nil)
