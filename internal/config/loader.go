package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies POLYSCAN_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known POLYSCAN_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Polymarket ──
	setStr(&cfg.Polymarket.GammaHost, "POLYSCAN_POLYMARKET_GAMMA_HOST")
	setStr(&cfg.Polymarket.ClobHost, "POLYSCAN_POLYMARKET_CLOB_HOST")
	setStr(&cfg.Polymarket.DataHost, "POLYSCAN_POLYMARKET_DATA_HOST")
	setStr(&cfg.Polymarket.WsHost, "POLYSCAN_POLYMARKET_WS_HOST")
	setStr(&cfg.Polymarket.TagSlug, "POLYSCAN_POLYMARKET_TAG_SLUG")

	// ── Opinion ──
	setStr(&cfg.Opinion.Host, "POLYSCAN_OPINION_HOST")
	setStr(&cfg.Opinion.ApiKey, "POLYSCAN_OPINION_API_KEY")

	// ── Perp ──
	setStr(&cfg.Perp.BaseURL, "POLYSCAN_PERP_BASE_URL")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "POLYSCAN_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "POLYSCAN_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "POLYSCAN_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "POLYSCAN_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "POLYSCAN_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "POLYSCAN_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "POLYSCAN_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "POLYSCAN_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "POLYSCAN_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "POLYSCAN_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "POLYSCAN_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "POLYSCAN_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "POLYSCAN_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "POLYSCAN_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "POLYSCAN_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "POLYSCAN_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "POLYSCAN_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "POLYSCAN_S3_REGION")
	setStr(&cfg.S3.Bucket, "POLYSCAN_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "POLYSCAN_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "POLYSCAN_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "POLYSCAN_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "POLYSCAN_S3_FORCE_PATH_STYLE")

	// ── Scan ──
	setDuration(&cfg.Scan.Interval, "POLYSCAN_SCAN_INTERVAL")
	setInt(&cfg.Scan.Limit, "POLYSCAN_SCAN_LIMIT")
	setFloat64(&cfg.Scan.TargetSize, "POLYSCAN_SCAN_TARGET_SIZE")
	setFloat64(&cfg.Scan.MinTradeSize, "POLYSCAN_SCAN_MIN_TRADE_SIZE")
	setFloat64(&cfg.Scan.MinProfitPercent, "POLYSCAN_SCAN_MIN_PROFIT_PERCENT")
	setInt(&cfg.Scan.MaxSlippageBps, "POLYSCAN_SCAN_MAX_SLIPPAGE_BPS")
	setFloat64(&cfg.Scan.MatchThreshold, "POLYSCAN_SCAN_MATCH_THRESHOLD")
	setDuration(&cfg.Scan.CacheTTL, "POLYSCAN_SCAN_CACHE_TTL")

	// ── Hedge ──
	setDuration(&cfg.Hedge.Interval, "POLYSCAN_HEDGE_INTERVAL")
	setStr(&cfg.Hedge.MappingsPath, "POLYSCAN_HEDGE_MAPPINGS_PATH")
	setInt(&cfg.Hedge.Limit, "POLYSCAN_HEDGE_LIMIT")
	setFloat64(&cfg.Hedge.MinEdgePercent, "POLYSCAN_HEDGE_MIN_EDGE_PERCENT")
	setFloat64(&cfg.Hedge.DefaultVol, "POLYSCAN_HEDGE_DEFAULT_VOL")
	setFloat64(&cfg.Hedge.MinGapSigma, "POLYSCAN_HEDGE_MIN_GAP_SIGMA")
	setBool(&cfg.Hedge.UseRealizedVol, "POLYSCAN_HEDGE_USE_REALIZED_VOL")
	setStr(&cfg.Hedge.VolTimeframe, "POLYSCAN_HEDGE_VOL_TIMEFRAME")
	setInt(&cfg.Hedge.VolLookbackDays, "POLYSCAN_HEDGE_VOL_LOOKBACK_DAYS")
	setInt(&cfg.Hedge.VolMaxCandles, "POLYSCAN_HEDGE_VOL_MAX_CANDLES")
	setInt(&cfg.Hedge.Concurrency, "POLYSCAN_HEDGE_CONCURRENCY")

	// ── Rebalance ──
	setDuration(&cfg.Rebalance.Interval, "POLYSCAN_REBALANCE_INTERVAL")
	setFloat64(&cfg.Rebalance.EMAAlpha, "POLYSCAN_REBALANCE_EMA_ALPHA")
	setFloat64(&cfg.Rebalance.MinAbsMove, "POLYSCAN_REBALANCE_MIN_ABS_MOVE")
	setFloat64(&cfg.Rebalance.MinNotional, "POLYSCAN_REBALANCE_MIN_NOTIONAL")
	setInt(&cfg.Rebalance.MaxAgeSeconds, "POLYSCAN_REBALANCE_MAX_AGE_SECONDS")
	setInt(&cfg.Rebalance.MinTradeEvents, "POLYSCAN_REBALANCE_MIN_TRADE_EVENTS")

	// ── Tail ──
	setDuration(&cfg.Tail.Interval, "POLYSCAN_TAIL_INTERVAL")
	setInt(&cfg.Tail.Limit, "POLYSCAN_TAIL_LIMIT")
	setFloat64(&cfg.Tail.MinYesPrice, "POLYSCAN_TAIL_MIN_YES_PRICE")
	setFloat64(&cfg.Tail.MaxHoursToResolve, "POLYSCAN_TAIL_MAX_HOURS_TO_RESOLVE")
	setFloat64(&cfg.Tail.MaxSweepSize, "POLYSCAN_TAIL_MAX_SWEEP_SIZE")
	setFloat64(&cfg.Tail.MinNotional, "POLYSCAN_TAIL_MIN_NOTIONAL")
	setFloat64(&cfg.Tail.MinYieldPercent, "POLYSCAN_TAIL_MIN_YIELD_PERCENT")
	setFloat64(&cfg.Tail.MinAnnualizedYieldPercent, "POLYSCAN_TAIL_MIN_ANNUALIZED_YIELD_PERCENT")
	setFloat64(&cfg.Tail.FeeRate, "POLYSCAN_TAIL_FEE_RATE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "POLYSCAN_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "POLYSCAN_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "POLYSCAN_ARCHIVE_INTERVAL")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "POLYSCAN_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "POLYSCAN_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "POLYSCAN_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "POLYSCAN_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "POLYSCAN_MODE")
	setStr(&cfg.LogLevel, "POLYSCAN_LOG_LEVEL")
	setStr(&cfg.DataDir, "POLYSCAN_DATA_DIR")
}

// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
