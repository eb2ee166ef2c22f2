package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/alanyoungcy/polyscan/internal/domain"
	"github.com/alanyoungcy/polyscan/internal/platform/opinion"
	"github.com/alanyoungcy/polyscan/internal/platform/polymarket"
	"github.com/alanyoungcy/polyscan/internal/scanner"
)

// pmLister lists active Polymarket markets scoped to an optional tag, with a
// Redis read-through cache in front of the Gamma API. The tag is resolved
// once at wiring time; scanners ask for markets without knowing about tags.
type pmLister struct {
	gamma  *polymarket.GammaClient
	tagID  string
	cache  domain.MarketCache
	ttl    time.Duration
	logger *slog.Logger
}

var _ scanner.PolymarketLister = (*pmLister)(nil)

func newPolymarketLister(gamma *polymarket.GammaClient, tagID string, cache domain.MarketCache, ttl time.Duration, logger *slog.Logger) *pmLister {
	return &pmLister{
		gamma:  gamma,
		tagID:  tagID,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With(slog.String("component", "pm_lister")),
	}
}

func (l *pmLister) ListActiveMarkets(ctx context.Context, limit int, tagID string) ([]domain.Market, error) {
	if tagID == "" {
		tagID = l.tagID
	}

	// The cache entry is scoped by the effective tag so a tag-filtered
	// listing never answers for the unscoped one, or the other way around.
	if l.cache != nil && l.ttl > 0 {
		markets, err := l.cache.GetMarkets(ctx, domain.PlatformPolymarket, tagID)
		if err == nil {
			return clampMarkets(markets, limit), nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			l.logger.Warn("market cache read failed", slog.String("error", err.Error()))
		}
	}

	markets, err := l.gamma.ListActiveMarkets(ctx, limit, tagID)
	if err != nil {
		return nil, err
	}

	if l.cache != nil && l.ttl > 0 && len(markets) > 0 {
		if err := l.cache.SetMarkets(ctx, domain.PlatformPolymarket, tagID, markets, l.ttl); err != nil {
			l.logger.Warn("market cache write failed", slog.String("error", err.Error()))
		}
	}
	return markets, nil
}

// opLister applies the same read-through cache to Opinion listings.
type opLister struct {
	client *opinion.Client
	cache  domain.MarketCache
	ttl    time.Duration
	logger *slog.Logger
}

var _ scanner.OpinionLister = (*opLister)(nil)

func newOpinionLister(client *opinion.Client, cache domain.MarketCache, ttl time.Duration, logger *slog.Logger) *opLister {
	return &opLister{
		client: client,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With(slog.String("component", "op_lister")),
	}
}

func (l *opLister) ListActiveMarkets(ctx context.Context, limit int) ([]domain.Market, error) {
	if l.cache != nil && l.ttl > 0 {
		markets, err := l.cache.GetMarkets(ctx, domain.PlatformOpinion, "")
		if err == nil {
			return clampMarkets(markets, limit), nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			l.logger.Warn("market cache read failed", slog.String("error", err.Error()))
		}
	}

	markets, err := l.client.ListActiveMarkets(ctx, limit)
	if err != nil {
		return nil, err
	}

	if l.cache != nil && l.ttl > 0 && len(markets) > 0 {
		if err := l.cache.SetMarkets(ctx, domain.PlatformOpinion, "", markets, l.ttl); err != nil {
			l.logger.Warn("market cache write failed", slog.String("error", err.Error()))
		}
	}
	return markets, nil
}

func clampMarkets(markets []domain.Market, limit int) []domain.Market {
	if limit > 0 && len(markets) > limit {
		return markets[:limit]
	}
	return markets
}
