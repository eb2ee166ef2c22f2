package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/polyscan/internal/blob/s3"
	"github.com/alanyoungcy/polyscan/internal/cache/redis"
	"github.com/alanyoungcy/polyscan/internal/config"
	"github.com/alanyoungcy/polyscan/internal/domain"
	"github.com/alanyoungcy/polyscan/internal/notify"
	"github.com/alanyoungcy/polyscan/internal/platform/opinion"
	"github.com/alanyoungcy/polyscan/internal/platform/perp"
	"github.com/alanyoungcy/polyscan/internal/platform/polymarket"
	"github.com/alanyoungcy/polyscan/internal/storage"
	"github.com/alanyoungcy/polyscan/internal/store/postgres"
)

// Dependencies bundles every dependency the application modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
//
// Postgres, Redis, and S3 are all optional: when credentials are absent the
// corresponding fields stay nil and the modes degrade to the JSONL sink
// only.
type Dependencies struct {
	// Venue clients
	Gamma   *polymarket.GammaClient
	Clob    *polymarket.ClobClient
	Data    *polymarket.DataClient
	Opinion *opinion.Client
	Perp    *perp.Client

	// Persistence
	Sink           *storage.Sink
	ArbStore       domain.ArbHistoryStore
	HedgeStore     domain.HedgeHistoryStore
	RebalanceStore domain.RebalanceHistoryStore

	// Redis
	MarketCache domain.MarketCache
	SignalBus   domain.SignalBus

	// Cold storage
	Archiver *s3blob.Archiver

	// Notifications
	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Gamma:   polymarket.NewGammaClient(cfg.Polymarket.GammaHost),
		Clob:    polymarket.NewClobClient(cfg.Polymarket.ClobHost),
		Data:    polymarket.NewDataClient(cfg.Polymarket.DataHost),
		Opinion: opinion.NewClient(cfg.Opinion.Host, cfg.Opinion.ApiKey),
		Perp:    perp.NewClient(cfg.Perp.BaseURL),
	}

	// --- JSONL sink (always on) ---
	sink, err := storage.NewSink(cfg.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: storage: %w", err)
	}
	deps.Sink = sink

	// --- PostgreSQL (optional) ---
	pgCfg := postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	}
	if pgCfg.Configured() {
		pgClient, err := postgres.New(ctx, pgCfg)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.ArbStore = postgres.NewArbStore(pool)
		deps.HedgeStore = postgres.NewHedgeStore(pool)
		deps.RebalanceStore = postgres.NewRebalanceStore(pool)
	} else {
		logger.Info("postgres not configured; history persists to the jsonl sink only")
	}

	// --- Redis (optional) ---
	rdCfg := redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	}
	if rdCfg.Configured() {
		redisClient, err := redis.New(ctx, rdCfg)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.MarketCache = redis.NewMarketCache(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
	} else {
		logger.Info("redis not configured; running without market cache and signal bus")
	}

	// --- S3 cold storage (optional, only needed for archival) ---
	s3Cfg := s3blob.ClientConfig{
		Endpoint:       cfg.S3.Endpoint,
		Region:         cfg.S3.Region,
		Bucket:         cfg.S3.Bucket,
		AccessKey:      cfg.S3.AccessKey,
		SecretKey:      cfg.S3.SecretKey,
		UseSSL:         cfg.S3.UseSSL,
		ForcePathStyle: cfg.S3.ForcePathStyle,
	}
	if cfg.Archive.Enabled && s3Cfg.Configured() {
		s3Client, err := s3blob.New(ctx, s3Cfg)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		writer := s3blob.NewWriter(s3Client)
		deps.Archiver = s3blob.NewArchiver(writer, deps.ArbStore, deps.HedgeStore, deps.RebalanceStore, logger)
		if deps.ArbStore == nil {
			logger.Warn("archive enabled without postgres; archiver has nothing to move")
		}
	} else if cfg.Archive.Enabled {
		logger.Warn("archive enabled but s3 is not configured; history will not be archived")
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
