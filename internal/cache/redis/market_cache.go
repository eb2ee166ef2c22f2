package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/polyscan/internal/domain"
)

// MarketCache implements domain.MarketCache: one JSON-serialized market
// listing per platform, refreshed wholesale by the scan loops so that other
// processes (and restarts) can reuse a recent listing instead of re-hitting
// the venue APIs.
//
// Key schema:
//
//	markets:{platform}            - unscoped listing, JSON array of markets
//	markets:{platform}:tag:{slug} - tag-scoped listing
type MarketCache struct {
	rdb *redis.Client
}

// NewMarketCache creates a MarketCache backed by the given Client.
func NewMarketCache(c *Client) *MarketCache {
	return &MarketCache{rdb: c.Underlying()}
}

func marketsKey(platform domain.Platform, scope string) string {
	key := "markets:" + string(platform)
	if scope != "" {
		key += ":tag:" + scope
	}
	return key
}

// SetMarkets replaces the cached listing for one platform and scope.
func (mc *MarketCache) SetMarkets(ctx context.Context, platform domain.Platform, scope string, markets []domain.Market, ttl time.Duration) error {
	data, err := json.Marshal(markets)
	if err != nil {
		return fmt.Errorf("redis: marshal %s markets: %w", platform, err)
	}
	if err := mc.rdb.Set(ctx, marketsKey(platform, scope), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set %s markets: %w", platform, err)
	}
	return nil
}

// GetMarkets returns the cached listing for one platform and scope. It
// returns domain.ErrNotFound when no listing is cached (or the TTL has
// lapsed).
func (mc *MarketCache) GetMarkets(ctx context.Context, platform domain.Platform, scope string) ([]domain.Market, error) {
	data, err := mc.rdb.Get(ctx, marketsKey(platform, scope)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get %s markets: %w", platform, err)
	}

	var markets []domain.Market
	if err := json.Unmarshal(data, &markets); err != nil {
		return nil, fmt.Errorf("redis: unmarshal %s markets: %w", platform, err)
	}
	return markets, nil
}

// Compile-time interface check.
var _ domain.MarketCache = (*MarketCache)(nil)
