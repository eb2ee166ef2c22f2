package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyscan/internal/domain"
	"github.com/alanyoungcy/polyscan/internal/platform/polymarket"
)

// fakeMarketCache keeps listings in memory, keyed the way the Redis cache
// keys them: per platform and scope.
type fakeMarketCache struct {
	entries map[string][]domain.Market
}

func newFakeMarketCache() *fakeMarketCache {
	return &fakeMarketCache{entries: make(map[string][]domain.Market)}
}

func (c *fakeMarketCache) key(platform domain.Platform, scope string) string {
	return string(platform) + "|" + scope
}

func (c *fakeMarketCache) SetMarkets(_ context.Context, platform domain.Platform, scope string, markets []domain.Market, _ time.Duration) error {
	c.entries[c.key(platform, scope)] = markets
	return nil
}

func (c *fakeMarketCache) GetMarkets(_ context.Context, platform domain.Platform, scope string) ([]domain.Market, error) {
	markets, ok := c.entries[c.key(platform, scope)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return markets, nil
}

var _ domain.MarketCache = (*fakeMarketCache)(nil)

// gammaStub serves /markets with a one-market listing whose question names
// the tag_id the request carried, so the test can tell listings apart.
func gammaStub(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tag := r.URL.Query().Get("tag_id")
		if tag == "" {
			tag = "unscoped"
		}
		fmt.Fprintf(w, `[{"id": "mkt-%s", "conditionId": "0x%s", "question": "listing for %s"}]`, tag, tag, tag)
	}))
}

func TestPolymarketListerScopesCacheByTag(t *testing.T) {
	srv := gammaStub(t)
	defer srv.Close()

	cache := newFakeMarketCache()
	logger := slog.New(slog.DiscardHandler)
	gamma := polymarket.NewGammaClient(srv.URL)

	tagged := newPolymarketLister(gamma, "101", cache, time.Minute, logger)
	unscoped := newPolymarketLister(gamma, "", cache, time.Minute, logger)

	got, err := tagged.ListActiveMarkets(context.Background(), 10, "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "mkt-101", got[0].ID)

	// The unscoped lister must not be served the tag-scoped listing.
	got, err = unscoped.ListActiveMarkets(context.Background(), 10, "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "mkt-unscoped", got[0].ID)

	// Both listings are now cached under their own scope.
	cached, err := cache.GetMarkets(context.Background(), domain.PlatformPolymarket, "101")
	require.NoError(t, err)
	assert.Equal(t, "mkt-101", cached[0].ID)
	cached, err = cache.GetMarkets(context.Background(), domain.PlatformPolymarket, "")
	require.NoError(t, err)
	assert.Equal(t, "mkt-unscoped", cached[0].ID)
}

func TestPolymarketListerScopesCacheHitByCallTag(t *testing.T) {
	srv := gammaStub(t)
	defer srv.Close()

	cache := newFakeMarketCache()
	logger := slog.New(slog.DiscardHandler)
	lister := newPolymarketLister(polymarket.NewGammaClient(srv.URL), "", cache, time.Minute, logger)

	// Warm the unscoped entry, then ask for a specific tag: the cached
	// unscoped listing must not answer for it.
	_, err := lister.ListActiveMarkets(context.Background(), 10, "")
	require.NoError(t, err)

	got, err := lister.ListActiveMarkets(context.Background(), 10, "202")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "mkt-202", got[0].ID)
}
