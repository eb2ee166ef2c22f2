package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polyscan/internal/domain"
	"github.com/alanyoungcy/polyscan/internal/pricing"
)

// shortExpiryYears is the horizon below which model probabilities get an
// advisory note (two days).
const shortExpiryYears = 2.0 / 365.0

// LoadMappings reads hedge market mappings from a JSON file. A missing file
// yields an empty set; malformed entries are skipped individually.
func LoadMappings(path string) ([]domain.HedgeMapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scanner: read hedge mappings: %w", err)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("scanner: decode hedge mappings: %w", err)
	}

	mappings := make([]domain.HedgeMapping, 0, len(raw))
	for _, item := range raw {
		var m domain.HedgeMapping
		if err := json.Unmarshal(item, &m); err != nil {
			continue
		}
		if m.MarketID == "" || m.UnderlyingSymbol == "" || m.Strike <= 0 || m.Expiry == "" {
			continue
		}
		if m.PayoffType == "" {
			m.PayoffType = "digital"
		}
		if m.Barrier == "" {
			m.Barrier = "up"
		}
		mappings = append(mappings, m)
	}
	return mappings, nil
}

// QuoteSource reduces a market's books to its best buyable YES/NO prices.
type QuoteSource interface {
	GetQuote(ctx context.Context, market domain.Market) (domain.PriceQuote, error)
}

// PerpSource provides underlying prices, funding, and realized volatility.
type PerpSource interface {
	FetchMarkPrice(ctx context.Context, symbol string) (float64, error)
	FetchFundingRate(ctx context.Context, symbol string) *float64
	FetchRealizedVol(ctx context.Context, symbol, timeframe string, lookbackDays, maxCandles int) (float64, bool)
}

// HedgeConfig carries the tunables of the hedge scanner.
type HedgeConfig struct {
	Limit           int     // max Polymarket markets listed
	MinEdgePercent  float64 // drop opportunities below this absolute edge
	DefaultVol      float64 // fallback annualized volatility
	MinGapSigma     float64 // spot/barrier distance filter in sigma*sqrt(T)
	UseRealizedVol  bool
	VolTimeframe    string
	VolLookbackDays int
	VolMaxCandles   int
	Concurrency     int // concurrent mapping evaluations
}

type volKey struct {
	symbol       string
	timeframe    string
	lookbackDays int
}

// HedgeScanner compares venue YES quotes against model-implied
// probabilities derived from derivatives prices.
type HedgeScanner struct {
	pmMarkets PolymarketLister
	quotes    QuoteSource
	perp      PerpSource
	mappings  []domain.HedgeMapping
	cfg       HedgeConfig
	logger    *slog.Logger

	volMu    sync.Mutex
	volCache map[volKey]float64 // zero value means "unavailable"
}

// NewHedgeScanner creates a hedge scanner over the given mappings.
func NewHedgeScanner(pmMarkets PolymarketLister, quotes QuoteSource, perp PerpSource, mappings []domain.HedgeMapping, cfg HedgeConfig, logger *slog.Logger) *HedgeScanner {
	if cfg.DefaultVol <= 0 {
		cfg.DefaultVol = 1.0
	}
	if cfg.VolTimeframe == "" {
		cfg.VolTimeframe = "1h"
	}
	if cfg.VolLookbackDays <= 0 {
		cfg.VolLookbackDays = 7
	}
	if cfg.VolMaxCandles <= 0 {
		cfg.VolMaxCandles = 500
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &HedgeScanner{
		pmMarkets: pmMarkets,
		quotes:    quotes,
		perp:      perp,
		mappings:  mappings,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "hedge_scanner")),
		volCache:  make(map[volKey]float64),
	}
}

// Scan evaluates every mapping against the current listing and returns the
// opportunities sorted by absolute edge, largest first. Mappings whose
// market is unlisted or whose underlying price is unavailable are skipped.
func (s *HedgeScanner) Scan(ctx context.Context) ([]domain.HedgeOpportunity, error) {
	markets, err := s.pmMarkets.ListActiveMarkets(ctx, s.cfg.Limit, "")
	if err != nil {
		return nil, fmt.Errorf("scanner: list polymarket markets: %w", err)
	}
	index := make(map[string]domain.Market, len(markets))
	for _, m := range markets {
		index[m.ID] = m
	}

	now := time.Now().UTC()

	var mu sync.Mutex
	var results []domain.HedgeOpportunity

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for _, mapping := range s.mappings {
		g.Go(func() error {
			opp, ok := s.evaluate(gctx, mapping, index, now)
			if !ok {
				return nil
			}
			mu.Lock()
			results = append(results, opp)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return math.Abs(results[i].EdgePercent) > math.Abs(results[j].EdgePercent)
	})
	return results, nil
}

func (s *HedgeScanner) evaluate(ctx context.Context, mapping domain.HedgeMapping, index map[string]domain.Market, now time.Time) (domain.HedgeOpportunity, bool) {
	market, listed := index[mapping.MarketID]
	if !listed {
		return domain.HedgeOpportunity{}, false
	}

	quote, err := s.quotes.GetQuote(ctx, market)
	if err != nil {
		s.logger.Warn("quote unavailable",
			slog.String("market_id", mapping.MarketID),
			slog.String("error", err.Error()),
		)
		return domain.HedgeOpportunity{}, false
	}

	spot, err := s.perp.FetchMarkPrice(ctx, mapping.UnderlyingSymbol)
	if err != nil {
		s.logger.Warn("mark price unavailable",
			slog.String("symbol", mapping.UnderlyingSymbol),
			slog.String("error", err.Error()),
		)
		return domain.HedgeOpportunity{}, false
	}

	vol := s.resolveVol(ctx, mapping)

	probAbove, years, source, ok := s.impliedProb(mapping, spot, vol, now)
	if !ok {
		return domain.HedgeOpportunity{}, false
	}

	impliedYes := probAbove
	if !mapping.YesOnAbove {
		impliedYes = 1 - probAbove
	}
	edge := (impliedYes - quote.YesPrice) * 100
	if math.Abs(edge) < s.cfg.MinEdgePercent {
		return domain.HedgeOpportunity{}, false
	}

	funding := s.perp.FetchFundingRate(ctx, mapping.UnderlyingSymbol)

	var note string
	if years < shortExpiryYears {
		note = "expiry within two days; model probability may be distorted"
	}

	barrierDir := ""
	if source == "touch" || source == "no_touch" {
		barrierDir = mapping.Barrier
	}

	return domain.HedgeOpportunity{
		ID:               uuid.NewString(),
		Market:           market,
		UnderlyingSymbol: mapping.UnderlyingSymbol,
		VenueYes:         quote.YesPrice,
		VenueNo:          quote.NoPrice,
		ImpliedYes:       impliedYes,
		EdgePercent:      edge,
		UnderlyingPrice:  spot,
		Strike:           mapping.Strike,
		Expiry:           mapping.Expiry,
		FundingRate:      funding,
		Note:             note,
		ProbSource:       source,
		BarrierDirection: barrierDir,
		DetectedAt:       time.Now().UTC(),
	}, true
}

// resolveVol picks the annualized volatility for a mapping: realized vol
// when enabled and available (cached per symbol/timeframe/lookback), else
// the mapping's estimate, else the configured default.
func (s *HedgeScanner) resolveVol(ctx context.Context, mapping domain.HedgeMapping) float64 {
	vol := mapping.EstVol
	if vol <= 0 {
		vol = s.cfg.DefaultVol
	}
	if !s.cfg.UseRealizedVol {
		return vol
	}

	tf := mapping.VolTimeframe
	if tf == "" {
		tf = s.cfg.VolTimeframe
	}
	days := mapping.VolLookbackDays
	if days <= 0 {
		days = s.cfg.VolLookbackDays
	}
	key := volKey{symbol: mapping.UnderlyingSymbol, timeframe: tf, lookbackDays: days}

	s.volMu.Lock()
	cached, hit := s.volCache[key]
	s.volMu.Unlock()
	if hit {
		if cached > 0 {
			return cached
		}
		return vol
	}

	realized, ok := s.perp.FetchRealizedVol(ctx, key.symbol, key.timeframe, key.lookbackDays, s.cfg.VolMaxCandles)
	if !ok {
		realized = 0
	}
	s.volMu.Lock()
	s.volCache[key] = realized
	s.volMu.Unlock()

	if realized > 0 {
		return realized
	}
	return vol
}

// impliedProb dispatches to the payoff model. For touch payoffs the
// probability is undefined when spot sits within MinGapSigma sigma*sqrt(T)
// of the barrier; that filter is logged at debug level only.
func (s *HedgeScanner) impliedProb(mapping domain.HedgeMapping, spot, vol float64, now time.Time) (prob, years float64, source string, ok bool) {
	expiry, parsed := parseExpiry(mapping.Expiry)
	if !parsed || spot <= 0 || mapping.Strike <= 0 {
		return 0, 0, "", false
	}
	seconds := expiry.Sub(now).Seconds()
	if seconds <= 0 {
		return 0, 0, "", false
	}
	years = seconds / (365.0 * 24 * 3600)

	switch mapping.PayoffType {
	case "touch", "no_touch":
		sigma := math.Max(vol, 1e-6)
		gap := math.Abs(math.Log(spot / mapping.Strike))
		if gap < s.cfg.MinGapSigma*sigma*math.Sqrt(years) {
			s.logger.Debug("barrier too close to spot",
				slog.String("market_id", mapping.MarketID),
				slog.Float64("spot", spot),
				slog.Float64("barrier", mapping.Strike),
				slog.Float64("gap_sigma", gap/(sigma*math.Sqrt(years))),
			)
			return 0, years, "", false
		}
		dir := pricing.BarrierDirection(mapping.Barrier)
		if mapping.PayoffType == "touch" {
			prob, ok = pricing.OneTouchProb(spot, mapping.Strike, years, vol, mapping.Drift, dir)
			return prob, years, "touch", ok
		}
		prob, ok = pricing.NoTouchProb(spot, mapping.Strike, years, vol, mapping.Drift, dir)
		return prob, years, "no_touch", ok
	default:
		prob, ok = pricing.DigitalProb(spot, mapping.Strike, years, vol)
		return prob, years, "digital", ok
	}
}

// parseExpiry parses an ISO 8601 expiry; naive timestamps are taken as UTC.
func parseExpiry(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse("2006-01-02T15:04:05", value); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}
