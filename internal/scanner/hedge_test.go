package scanner

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyscan/internal/domain"
)

type fakeQuotes struct {
	quotes map[string]domain.PriceQuote
	err    error
}

func (f *fakeQuotes) GetQuote(_ context.Context, market domain.Market) (domain.PriceQuote, error) {
	if f.err != nil {
		return domain.PriceQuote{}, f.err
	}
	return f.quotes[market.ID], nil
}

type fakePerp struct {
	marks      map[string]float64
	markErr    error
	funding    map[string]float64
	vols       map[string]float64 // keyed by symbol
	volCalls   int
	markCalls  int
	lastSymbol string
}

func (f *fakePerp) FetchMarkPrice(_ context.Context, symbol string) (float64, error) {
	f.markCalls++
	f.lastSymbol = symbol
	if f.markErr != nil {
		return 0, f.markErr
	}
	p, ok := f.marks[symbol]
	if !ok {
		return 0, errors.New("no mark")
	}
	return p, nil
}

func (f *fakePerp) FetchFundingRate(_ context.Context, symbol string) *float64 {
	if r, ok := f.funding[symbol]; ok {
		return &r
	}
	return nil
}

func (f *fakePerp) FetchRealizedVol(_ context.Context, symbol, _ string, _, _ int) (float64, bool) {
	f.volCalls++
	v, ok := f.vols[symbol]
	return v, ok && v > 0
}

func expiryIn(d time.Duration) string {
	return time.Now().UTC().Add(d).Format(time.RFC3339)
}

func hedgeFixture() ([]domain.Market, *fakeQuotes, *fakePerp, []domain.HedgeMapping) {
	markets := []domain.Market{{
		Platform: domain.PlatformPolymarket,
		ID:       "pm1",
		Title:    "Will BTC close above $100k?",
	}}
	quotes := &fakeQuotes{quotes: map[string]domain.PriceQuote{
		"pm1": {YesPrice: 0.30, NoPrice: 0.72},
	}}
	perp := &fakePerp{
		marks:   map[string]float64{"BTCUSDT": 100_000},
		funding: map[string]float64{"BTCUSDT": 0.0001},
	}
	mappings := []domain.HedgeMapping{{
		MarketID:         "pm1",
		UnderlyingSymbol: "BTCUSDT",
		Strike:           100_000,
		Expiry:           expiryIn(90 * 24 * time.Hour),
		YesOnAbove:       true,
		EstVol:           0.6,
	}}
	return markets, quotes, perp, mappings
}

func TestHedgeScanDigitalEdge(t *testing.T) {
	markets, quotes, perp, mappings := hedgeFixture()

	s := NewHedgeScanner(fakePMLister(markets), quotes, perp, mappings,
		HedgeConfig{Limit: 50, MinEdgePercent: 1}, discardLogger())
	opps, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, opps, 1)

	opp := opps[0]
	assert.Equal(t, "digital", opp.ProbSource)
	assert.Equal(t, "BTCUSDT", opp.UnderlyingSymbol)
	assert.Equal(t, 0.30, opp.VenueYes)
	assert.Equal(t, 100_000.0, opp.UnderlyingPrice)
	require.NotNil(t, opp.FundingRate)
	assert.Equal(t, 0.0001, *opp.FundingRate)

	// At-the-money driftless digital sits just under 0.5; venue YES at 0.30
	// leaves a positive edge around 18-20 points.
	assert.Greater(t, opp.ImpliedYes, 0.4)
	assert.Less(t, opp.ImpliedYes, 0.5)
	assert.InDelta(t, (opp.ImpliedYes-0.30)*100, opp.EdgePercent, 1e-9)
	assert.Empty(t, opp.Note)
}

func TestHedgeScanYesOnAboveInversion(t *testing.T) {
	markets, quotes, perp, mappings := hedgeFixture()
	mappings[0].YesOnAbove = false

	s := NewHedgeScanner(fakePMLister(markets), quotes, perp, mappings,
		HedgeConfig{Limit: 50}, discardLogger())
	opps, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, opps, 1)

	// Implied YES is the complement of prob-above.
	assert.Greater(t, opps[0].ImpliedYes, 0.5)
}

func TestHedgeScanSkipsOnMarkPriceError(t *testing.T) {
	markets, quotes, perp, mappings := hedgeFixture()
	perp.markErr = errors.New("exchange down")

	s := NewHedgeScanner(fakePMLister(markets), quotes, perp, mappings,
		HedgeConfig{Limit: 50}, discardLogger())
	opps, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, opps)
}

func TestHedgeScanSkipsUnlistedMarket(t *testing.T) {
	markets, quotes, perp, mappings := hedgeFixture()
	mappings[0].MarketID = "gone"

	s := NewHedgeScanner(fakePMLister(markets), quotes, perp, mappings,
		HedgeConfig{Limit: 50}, discardLogger())
	opps, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, opps)
	assert.Zero(t, perp.markCalls)
}

func TestHedgeScanMinEdgeFilter(t *testing.T) {
	markets, quotes, perp, mappings := hedgeFixture()
	// Venue quote near the model value: tiny edge.
	quotes.quotes["pm1"] = domain.PriceQuote{YesPrice: 0.45, NoPrice: 0.56}

	s := NewHedgeScanner(fakePMLister(markets), quotes, perp, mappings,
		HedgeConfig{Limit: 50, MinEdgePercent: 25}, discardLogger())
	opps, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, opps)
}

func TestHedgeScanRealizedVolCached(t *testing.T) {
	markets, quotes, perp, mappings := hedgeFixture()
	perp.vols = map[string]float64{"BTCUSDT": 0.8}

	second := mappings[0]
	second.MarketID = "pm1" // same market, same symbol/timeframe/lookback
	mappings = append(mappings, second)

	s := NewHedgeScanner(fakePMLister(markets), quotes, perp, mappings,
		HedgeConfig{Limit: 50, UseRealizedVol: true, Concurrency: 1}, discardLogger())
	opps, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Len(t, opps, 2)
	assert.Equal(t, 1, perp.volCalls, "one realized-vol fetch per cache key")
}

func TestHedgeScanMinGapSigmaFilter(t *testing.T) {
	markets, quotes, perp, mappings := hedgeFixture()
	mappings[0].PayoffType = "touch"
	mappings[0].Strike = 100_100 // spot 100k: well within 0.5 sigma*sqrt(T)

	s := NewHedgeScanner(fakePMLister(markets), quotes, perp, mappings,
		HedgeConfig{Limit: 50, MinGapSigma: 0.5}, discardLogger())
	opps, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, opps)
}

func TestHedgeScanTouchPayoff(t *testing.T) {
	markets, quotes, perp, mappings := hedgeFixture()
	mappings[0].PayoffType = "touch"
	mappings[0].Strike = 150_000
	mappings[0].Barrier = "up"

	s := NewHedgeScanner(fakePMLister(markets), quotes, perp, mappings,
		HedgeConfig{Limit: 50, MinGapSigma: 0.2}, discardLogger())
	opps, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, opps, 1)

	assert.Equal(t, "touch", opps[0].ProbSource)
	assert.Equal(t, "up", opps[0].BarrierDirection)
	assert.GreaterOrEqual(t, opps[0].ImpliedYes, 0.0)
	assert.LessOrEqual(t, opps[0].ImpliedYes, 1.0)
}

func TestHedgeScanShortExpiryNote(t *testing.T) {
	markets, quotes, perp, mappings := hedgeFixture()
	mappings[0].Expiry = expiryIn(12 * time.Hour)

	s := NewHedgeScanner(fakePMLister(markets), quotes, perp, mappings,
		HedgeConfig{Limit: 50}, discardLogger())
	opps, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, opps, 1)
	assert.Contains(t, opps[0].Note, "two days")
}

func TestHedgeScanSortsByAbsEdge(t *testing.T) {
	markets := []domain.Market{
		{ID: "a", Title: "A"},
		{ID: "b", Title: "B"},
	}
	quotes := &fakeQuotes{quotes: map[string]domain.PriceQuote{
		"a": {YesPrice: 0.40, NoPrice: 0.62}, // small edge
		"b": {YesPrice: 0.90, NoPrice: 0.12}, // large negative edge
	}}
	perp := &fakePerp{marks: map[string]float64{"BTCUSDT": 100_000}}
	mappings := []domain.HedgeMapping{
		{MarketID: "a", UnderlyingSymbol: "BTCUSDT", Strike: 100_000, Expiry: expiryIn(90 * 24 * time.Hour), YesOnAbove: true, EstVol: 0.6},
		{MarketID: "b", UnderlyingSymbol: "BTCUSDT", Strike: 100_000, Expiry: expiryIn(90 * 24 * time.Hour), YesOnAbove: true, EstVol: 0.6},
	}

	s := NewHedgeScanner(fakePMLister(markets), quotes, perp, mappings,
		HedgeConfig{Limit: 50}, discardLogger())
	opps, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, opps, 2)
	assert.Equal(t, "b", opps[0].Market.ID)
	assert.Greater(t, math.Abs(opps[0].EdgePercent), math.Abs(opps[1].EdgePercent))
}

func TestLoadMappings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hedge_markets.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"market_id": "m1", "underlying_symbol": "BTCUSDT", "strike": 100000, "expiry": "2026-12-31T00:00:00Z", "yes_on_above": true},
		{"market_id": "m2", "underlying_symbol": "ETHUSDT", "strike": "oops", "expiry": "2026-12-31T00:00:00Z"},
		{"underlying_symbol": "SOLUSDT", "strike": 300, "expiry": "2026-12-31T00:00:00Z"},
		{"market_id": "m4", "underlying_symbol": "ETHUSDT", "strike": 5000, "expiry": "2026-12-31T00:00:00Z", "payoff_type": "touch", "barrier": "down", "drift": 0.05}
	]`), 0o644))

	mappings, err := LoadMappings(path)
	require.NoError(t, err)

	// The string strike and the missing market_id are dropped individually.
	require.Len(t, mappings, 2)
	assert.Equal(t, "m1", mappings[0].MarketID)
	assert.Equal(t, "digital", mappings[0].PayoffType)
	assert.Equal(t, "up", mappings[0].Barrier)
	assert.Equal(t, "m4", mappings[1].MarketID)
	assert.Equal(t, "touch", mappings[1].PayoffType)
	assert.Equal(t, "down", mappings[1].Barrier)
}

func TestLoadMappingsMissingFile(t *testing.T) {
	mappings, err := LoadMappings(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Empty(t, mappings)
}
