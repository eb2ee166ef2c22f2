// Package config defines the top-level configuration for the scanner and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by POLYSCAN_* environment
// variables.
type Config struct {
	Polymarket PolymarketConfig `toml:"polymarket"`
	Opinion    OpinionConfig    `toml:"opinion"`
	Perp       PerpConfig       `toml:"perp"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Scan       ScanConfig       `toml:"scan"`
	Hedge      HedgeConfig      `toml:"hedge"`
	Rebalance  RebalanceConfig  `toml:"rebalance"`
	Tail       TailConfig       `toml:"tail"`
	Archive    ArchiveConfig    `toml:"archive"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
	DataDir    string           `toml:"data_dir"`
}

// PolymarketConfig holds Polymarket API endpoints.
type PolymarketConfig struct {
	GammaHost string `toml:"gamma_host"`
	ClobHost  string `toml:"clob_host"`
	DataHost  string `toml:"data_host"`
	WsHost    string `toml:"ws_host"`
	TagSlug   string `toml:"tag_slug"`
}

// OpinionConfig holds Opinion open-API parameters. The API key is optional;
// without it the Opinion side degrades to empty listings.
type OpinionConfig struct {
	Host   string `toml:"host"`
	ApiKey string `toml:"api_key"`
}

// PerpConfig holds the derivatives market-data endpoint.
type PerpConfig struct {
	BaseURL string `toml:"base_url"`
}

// PostgresConfig holds PostgreSQL connection parameters. Leave both DSN and
// Host empty to run without a database.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters. Leave Addr empty to run
// without Redis.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters. Leave Bucket or
// AccessKey empty to run without archival.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ScanConfig holds the cross-venue arbitrage scan parameters.
type ScanConfig struct {
	Interval         duration `toml:"interval"`
	Limit            int      `toml:"limit"`
	TargetSize       float64  `toml:"target_size"`
	MinTradeSize     float64  `toml:"min_trade_size"`
	MinProfitPercent float64  `toml:"min_profit_percent"`
	MaxSlippageBps   int      `toml:"max_slippage_bps"`
	MatchThreshold   float64  `toml:"match_threshold"`
	CacheTTL         duration `toml:"cache_ttl"`
}

// HedgeConfig holds the hedge scan parameters.
type HedgeConfig struct {
	Interval        duration `toml:"interval"`
	MappingsPath    string   `toml:"mappings_path"`
	Limit           int      `toml:"limit"`
	MinEdgePercent  float64  `toml:"min_edge_percent"`
	DefaultVol      float64  `toml:"default_vol"`
	MinGapSigma     float64  `toml:"min_gap_sigma"`
	UseRealizedVol  bool     `toml:"use_realized_vol"`
	VolTimeframe    string   `toml:"vol_timeframe"`
	VolLookbackDays int      `toml:"vol_lookback_days"`
	VolMaxCandles   int      `toml:"vol_max_candles"`
	Concurrency     int      `toml:"concurrency"`
}

// RebalanceConfig holds the rebalance monitor parameters.
type RebalanceConfig struct {
	Interval       duration `toml:"interval"`
	EMAAlpha       float64  `toml:"ema_alpha"`
	MinAbsMove     float64  `toml:"min_abs_move"`
	MinNotional    float64  `toml:"min_notional"`
	MaxAgeSeconds  int      `toml:"max_age_seconds"`
	MinTradeEvents int      `toml:"min_trade_events"`
}

// TailConfig holds the tail sweep scan parameters.
type TailConfig struct {
	Interval                  duration `toml:"interval"`
	Limit                     int      `toml:"limit"`
	MinYesPrice               float64  `toml:"min_yes_price"`
	MaxHoursToResolve         float64  `toml:"max_hours_to_resolve"`
	MaxSweepSize              float64  `toml:"max_sweep_size"`
	MinNotional               float64  `toml:"min_notional"`
	MinYieldPercent           float64  `toml:"min_yield_percent"`
	MinAnnualizedYieldPercent float64  `toml:"min_annualized_yield_percent"`
	FeeRate                   float64  `toml:"fee_rate"`
}

// ArchiveConfig holds the history archival parameters.
type ArchiveConfig struct {
	Enabled       bool     `toml:"enabled"`
	RetentionDays int      `toml:"retention_days"`
	Interval      duration `toml:"interval"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Polymarket: PolymarketConfig{
			GammaHost: "https://gamma-api.polymarket.com",
			ClobHost:  "https://clob.polymarket.com",
			DataHost:  "https://data-api.polymarket.com",
			WsHost:    "wss://ws-subscriptions-clob.polymarket.com/ws/market",
		},
		Opinion: OpinionConfig{
			Host: "https://proxy.opinion.trade:8443",
		},
		Perp: PerpConfig{
			BaseURL: "https://fapi.binance.com",
		},
		Postgres: PostgresConfig{
			Port:          5432,
			Database:      "polyscan",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Region:         "us-east-1",
			UseSSL:         true,
			ForcePathStyle: true,
		},
		Scan: ScanConfig{
			Interval:         duration{60 * time.Second},
			Limit:            50,
			TargetSize:       10.0,
			MinTradeSize:     5.0,
			MinProfitPercent: 1.0,
			MaxSlippageBps:   150,
			MatchThreshold:   0.6,
			CacheTTL:         duration{5 * time.Minute},
		},
		Hedge: HedgeConfig{
			Interval:        duration{60 * time.Second},
			MappingsPath:    "hedge_mappings.json",
			Limit:           50,
			MinEdgePercent:  2.0,
			DefaultVol:      1.0,
			VolTimeframe:    "1h",
			VolLookbackDays: 7,
			VolMaxCandles:   500,
			Concurrency:     4,
		},
		Rebalance: RebalanceConfig{
			Interval:       duration{5 * time.Second},
			EMAAlpha:       0.2,
			MinAbsMove:     0.15,
			MinNotional:    500.0,
			MaxAgeSeconds:  300,
			MinTradeEvents: 1,
		},
		Tail: TailConfig{
			Interval:                  duration{120 * time.Second},
			Limit:                     100,
			MinYesPrice:               0.90,
			MaxHoursToResolve:         48,
			MaxSweepSize:              1000,
			MinNotional:               50,
			MinYieldPercent:           1.0,
			MinAnnualizedYieldPercent: 20.0,
			FeeRate:                   0.0,
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			RetentionDays: 30,
			Interval:      duration{24 * time.Hour},
		},
		Notify: NotifyConfig{
			Events: []string{"arb", "hedge", "rebalance", "tail"},
		},
		Mode:     ModeArbitrage,
		LogLevel: "info",
		DataDir:  "data",
	}
}

// Application run modes.
const (
	ModeArbitrage = "arbitrage"
	ModeHedge     = "hedge"
	ModeMonitor   = "monitor"
	ModeTail      = "tail"
	ModeFull      = "full"
)

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	ModeArbitrage: true,
	ModeHedge:     true,
	ModeMonitor:   true,
	ModeTail:      true,
	ModeFull:      true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: arbitrage, hedge, monitor, tail, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Polymarket.GammaHost == "" {
		errs = append(errs, "polymarket: gamma_host must not be empty")
	}
	if c.Polymarket.ClobHost == "" {
		errs = append(errs, "polymarket: clob_host must not be empty")
	}
	if c.Polymarket.WsHost == "" {
		errs = append(errs, "polymarket: ws_host must not be empty")
	}
	if c.Opinion.Host == "" {
		errs = append(errs, "opinion: host must not be empty")
	}
	if (c.Mode == "hedge" || c.Mode == "full") && c.Perp.BaseURL == "" {
		errs = append(errs, "perp: base_url is required for hedge mode")
	}

	if strings.TrimSpace(c.Postgres.DSN) == "" && c.Postgres.Host != "" {
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	if c.Scan.Interval.Duration <= 0 {
		errs = append(errs, "scan: interval must be > 0")
	}
	if c.Scan.TargetSize <= 0 {
		errs = append(errs, "scan: target_size must be > 0")
	}
	if c.Scan.MinTradeSize < 0 {
		errs = append(errs, "scan: min_trade_size must be >= 0")
	}
	if c.Scan.MaxSlippageBps < 0 {
		errs = append(errs, "scan: max_slippage_bps must be >= 0")
	}
	if c.Scan.MatchThreshold < 0 || c.Scan.MatchThreshold > 1 {
		errs = append(errs, fmt.Sprintf("scan: match_threshold must be in [0, 1], got %g", c.Scan.MatchThreshold))
	}

	if c.Hedge.DefaultVol <= 0 {
		errs = append(errs, "hedge: default_vol must be > 0")
	}
	if c.Hedge.Concurrency < 1 {
		errs = append(errs, "hedge: concurrency must be >= 1")
	}

	if c.Rebalance.EMAAlpha <= 0 || c.Rebalance.EMAAlpha > 1 {
		errs = append(errs, fmt.Sprintf("rebalance: ema_alpha must be in (0, 1], got %g", c.Rebalance.EMAAlpha))
	}
	if c.Rebalance.MaxAgeSeconds <= 0 {
		errs = append(errs, "rebalance: max_age_seconds must be > 0")
	}

	if c.Tail.MinYesPrice <= 0 || c.Tail.MinYesPrice >= 1 {
		errs = append(errs, fmt.Sprintf("tail: min_yes_price must be in (0, 1), got %g", c.Tail.MinYesPrice))
	}
	if c.Tail.FeeRate < 0 || c.Tail.FeeRate >= 1 {
		errs = append(errs, fmt.Sprintf("tail: fee_rate must be in [0, 1), got %g", c.Tail.FeeRate))
	}

	if c.Archive.Enabled {
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1 when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "archive: s3 bucket must be configured when enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
