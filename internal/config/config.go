package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"fundamentals-merge/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	Input    InputConfig    `mapstructure:"input"`
	Output   OutputConfig   `mapstructure:"output"`
	Align    AlignConfig    `mapstructure:"align"`
	Yahoo    YahooConfig    `mapstructure:"yahoo"`
	Database DatabaseConfig `mapstructure:"database"`
	Batch    BatchConfig    `mapstructure:"batch"`
	Alerting AlertingConfig `mapstructure:"alerting"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// InputConfig locates the statement workbooks.
type InputConfig struct {
	Dir        string   `mapstructure:"dir"`
	Pattern    string   `mapstructure:"pattern"`
	Sheets     []string `mapstructure:"sheets"`
	DropOldest bool     `mapstructure:"drop_oldest"`
}

// OutputConfig controls where merged tables land.
type OutputConfig struct {
	Dir        string `mapstructure:"dir"`
	DateFormat string `mapstructure:"date_format"`
	CSV        bool   `mapstructure:"csv"`
	Chart      bool   `mapstructure:"chart"`
	// ChartMetric is plotted against the close price when Chart is set.
	ChartMetric string `mapstructure:"chart_metric"`
}

// AlignConfig tunes date matching.
type AlignConfig struct {
	ToleranceDays int    `mapstructure:"tolerance_days"`
	CloseColumn   string `mapstructure:"close_column"`
}

// YahooConfig covers the price history source.
type YahooConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	Interval          string        `mapstructure:"interval"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	UserAgent         string        `mapstructure:"user_agent"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
}

// BatchConfig governs how failures affect a run.
type BatchConfig struct {
	ContinueOnError bool `mapstructure:"continue_on_error"`
}

// AlertingConfig defines batch summary routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig holds Telegram bot settings.
type TelegramConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	BotToken string        `mapstructure:"bot_token"`
	ChatID   string        `mapstructure:"chat_id"`
	APIBase  string        `mapstructure:"api_base"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FUNDMERGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "fundmerge")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("input.dir", "data/raw")
	v.SetDefault("input.pattern", "*.xls*")
	v.SetDefault("input.sheets", []string{
		"Income-Quarterly",
		"Balance-Sheet-Quarterly",
		"Cash-Flow-Quarterly",
		"Ratios-Quarterly",
	})
	v.SetDefault("input.drop_oldest", true)

	v.SetDefault("output.dir", "data/processed")
	v.SetDefault("output.date_format", "02_01_2006")
	v.SetDefault("output.csv", false)
	v.SetDefault("output.chart", false)
	v.SetDefault("output.chart_metric", "")

	v.SetDefault("align.tolerance_days", 10)
	v.SetDefault("align.close_column", "Close Price")

	v.SetDefault("yahoo.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("yahoo.interval", "3mo")
	v.SetDefault("yahoo.request_timeout", "15s")
	v.SetDefault("yahoo.user_agent", "fundmerge/1.0")
	v.SetDefault("yahoo.requests_per_second", 2.0)
	v.SetDefault("yahoo.burst", 1)

	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.advisory_lock_key", int64(0x66756e64))

	v.SetDefault("batch.continue_on_error", false)

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.telegram.timeout", "10s")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Align.ToleranceDays <= 0 {
		return fmt.Errorf("align.tolerance_days must be greater than zero")
	}
	if strings.TrimSpace(c.Align.CloseColumn) == "" {
		return fmt.Errorf("align.close_column must not be empty")
	}
	if c.Input.Pattern == "" {
		return fmt.Errorf("input.pattern must not be empty")
	}
	if len(c.Input.Sheets) == 0 {
		return fmt.Errorf("input.sheets must list at least one sheet")
	}
	if c.Output.DateFormat == "" {
		return fmt.Errorf("output.date_format must not be empty")
	}
	if c.Yahoo.RequestsPerSecond <= 0 {
		return fmt.Errorf("yahoo.requests_per_second must be greater than zero")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token must be set")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id must be set")
		}
	}
	return nil
}
