package app

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"fundamentals-merge/internal/alerting"
	"fundamentals-merge/internal/aligner"
	"fundamentals-merge/internal/config"
	"fundamentals-merge/internal/fetcher"
	"fundamentals-merge/internal/service"
	"fundamentals-merge/internal/storage"
	"fundamentals-merge/internal/workbook"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newFetcher() fetcher.PriceHistoryFetcher {
	cfg := a.Config.Yahoo
	return fetcher.NewYahoo(fetcher.YahooOptions{
		BaseURL:           cfg.BaseURL,
		Interval:          cfg.Interval,
		Timeout:           cfg.RequestTimeout,
		UserAgent:         cfg.UserAgent,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
	}, a.Logger)
}

func (a *App) newAligner() *aligner.Aligner {
	return aligner.New(aligner.Options{
		ToleranceDays: a.Config.Align.ToleranceDays,
		CloseColumn:   a.Config.Align.CloseColumn,
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if !a.Config.Alerting.Enabled || !a.Config.Alerting.Telegram.Enabled {
		return nil
	}
	cfg := a.Config.Alerting.Telegram
	return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, cfg.Timeout, a.Logger)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}
	return store, store.Close, nil
}

// ProcessOptions override configured batch settings for a single invocation.
type ProcessOptions struct {
	InputDir        string
	OutputDir       string
	ContinueOnError bool
}

// Process merges every workbook of the input directory with its price history.
func (a *App) Process(ctx context.Context, opts ProcessOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	var tableStore storage.TableStore
	var runStore storage.RunStore
	var lockKey int64
	if store != nil {
		tableStore = store
		runStore = store
		lockKey = a.Config.Database.AdvisoryLockKey
	}

	batch := service.New(a.batchOptions(opts, lockKey), a.newAligner(), a.newFetcher(), tableStore, runStore, a.newNotifier(), a.Logger)

	summary, err := batch.Run(ctx)
	if err != nil {
		a.Logger.Error().Err(err).Msg("batch terminated with error")
		return err
	}
	if len(summary.Failed) > 0 {
		return fmt.Errorf("%d workbook(s) failed: %s", len(summary.Failed), issueSymbols(summary.Failed))
	}
	return nil
}

func (a *App) batchOptions(opts ProcessOptions, lockKey int64) service.Options {
	cfg := a.Config
	out := service.Options{
		InputDir:        cfg.Input.Dir,
		Pattern:         cfg.Input.Pattern,
		Workbook:        workbook.Options{Sheets: cfg.Input.Sheets, DropOldest: cfg.Input.DropOldest},
		OutputDir:       cfg.Output.Dir,
		DateFormat:      cfg.Output.DateFormat,
		CloseColumn:     cfg.Align.CloseColumn,
		WriteCSV:        cfg.Output.CSV,
		WriteChart:      cfg.Output.Chart,
		ChartMetric:     cfg.Output.ChartMetric,
		ContinueOnError: cfg.Batch.ContinueOnError || opts.ContinueOnError,
		LockKey:         lockKey,
	}
	if opts.InputDir != "" {
		out.InputDir = opts.InputDir
	}
	if opts.OutputDir != "" {
		out.OutputDir = opts.OutputDir
	}
	return out
}

func issueSymbols(issues []alerting.Issue) string {
	symbols := make([]string, 0, len(issues))
	for _, issue := range issues {
		symbols = append(symbols, issue.Symbol)
	}
	return strings.Join(symbols, ", ")
}

// ExportOptions select a stored table and the files to render.
type ExportOptions struct {
	Symbol  string
	Column  string
	CSVPath string
	PNGPath string
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}
