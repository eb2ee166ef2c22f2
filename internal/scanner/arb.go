// Package scanner holds the opportunity scanners: cross-venue arbitrage,
// derivative-hedged mispricing, and near-resolution tail sweeps. Scanners
// are pure pass-based: each Scan call reads current data and returns a
// sorted batch of opportunities; persistence and fan-out happen upstream.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/polyscan/internal/domain"
	"github.com/alanyoungcy/polyscan/internal/feed"
	"github.com/alanyoungcy/polyscan/internal/matcher"
	"github.com/alanyoungcy/polyscan/internal/pricing"
)

// PolymarketLister lists tradable Polymarket markets.
type PolymarketLister interface {
	ListActiveMarkets(ctx context.Context, limit int, tagID string) ([]domain.Market, error)
}

// OpinionLister lists tradable Opinion markets.
type OpinionLister interface {
	ListActiveMarkets(ctx context.Context, limit int) ([]domain.Market, error)
}

// BookSource fetches the order book of one outcome token over REST.
type BookSource interface {
	GetOrderBook(ctx context.Context, tokenID string) (domain.OrderBook, error)
}

// ArbConfig carries the tunables of the arbitrage scanner.
type ArbConfig struct {
	Limit            int     // max markets listed per venue
	TargetSize       float64 // shares quoted per leg
	MinTradeSize     float64 // minimum executable size
	MinProfitPercent float64 // minimum profit to report
	MaxSlippageBps   int     // per-leg slippage bound vs best quote
	MatchThreshold   float64 // title similarity threshold
}

// ArbScanner pairs markets across the two venues and evaluates both
// complementary buy routes against live depth.
type ArbScanner struct {
	pmMarkets PolymarketLister
	opMarkets OpinionLister
	pmBooks   BookSource
	opBooks   BookSource
	state     *feed.State // optional; nil means REST only
	cfg       ArbConfig
	logger    *slog.Logger
}

// NewArbScanner creates an arbitrage scanner. state may be nil, in which
// case every book is fetched over REST.
func NewArbScanner(pmMarkets PolymarketLister, opMarkets OpinionLister, pmBooks, opBooks BookSource, state *feed.State, cfg ArbConfig, logger *slog.Logger) *ArbScanner {
	if cfg.MatchThreshold <= 0 {
		cfg.MatchThreshold = matcher.DefaultThreshold
	}
	return &ArbScanner{
		pmMarkets: pmMarkets,
		opMarkets: opMarkets,
		pmBooks:   pmBooks,
		opBooks:   opBooks,
		state:     state,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "arb_scanner")),
	}
}

// Scan lists both venues, matches markets by title, and returns every route
// that clears the size, cost, profit, and slippage gates, best profit
// first. Pairs whose books cannot be fetched are skipped.
func (s *ArbScanner) Scan(ctx context.Context) ([]domain.ArbOpportunity, error) {
	pm, err := s.pmMarkets.ListActiveMarkets(ctx, s.cfg.Limit, "")
	if err != nil {
		return nil, fmt.Errorf("scanner: list polymarket markets: %w", err)
	}
	op, err := s.opMarkets.ListActiveMarkets(ctx, s.cfg.Limit)
	if err != nil {
		return nil, fmt.Errorf("scanner: list opinion markets: %w", err)
	}

	pairs := matcher.Match(pm, op, s.cfg.MatchThreshold)
	s.logger.Debug("matched pairs",
		slog.Int("polymarket", len(pm)),
		slog.Int("opinion", len(op)),
		slog.Int("pairs", len(pairs)),
	)

	var results []domain.ArbOpportunity
	for _, pair := range pairs {
		opps, err := s.evaluatePair(ctx, pair)
		if err != nil {
			s.logger.Warn("pair skipped",
				slog.String("polymarket_id", pair.Polymarket.ID),
				slog.String("opinion_id", pair.Opinion.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		results = append(results, opps...)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].ProfitPercent > results[j].ProfitPercent
	})
	return results, nil
}

func (s *ArbScanner) evaluatePair(ctx context.Context, pair domain.MatchedPair) ([]domain.ArbOpportunity, error) {
	pmYes, err := s.book(ctx, s.pmBooks, pair.Polymarket, domain.OutcomeYes)
	if err != nil {
		return nil, err
	}
	pmNo, err := s.book(ctx, s.pmBooks, pair.Polymarket, domain.OutcomeNo)
	if err != nil {
		return nil, err
	}
	opYes, err := s.book(ctx, s.opBooks, pair.Opinion, domain.OutcomeYes)
	if err != nil {
		return nil, err
	}
	opNo, err := s.book(ctx, s.opBooks, pair.Opinion, domain.OutcomeNo)
	if err != nil {
		return nil, err
	}

	var out []domain.ArbOpportunity
	if opp, ok := s.evaluateRoute(pair, domain.RoutePolyNoOpinionYes, pmNo, opYes, "PM_NO", "OP_YES"); ok {
		out = append(out, opp)
	}
	if opp, ok := s.evaluateRoute(pair, domain.RoutePolyYesOpinionNo, pmYes, opNo, "PM_YES", "OP_NO"); ok {
		out = append(out, opp)
	}
	return out, nil
}

// evaluateRoute prices buying both legs at the configured target size and
// applies the gates: executable size, two-leg cost below one dollar, profit
// floor, and per-leg slippage against the best quote.
func (s *ArbScanner) evaluateRoute(pair domain.MatchedPair, route string, legA, legB domain.OrderBook, labelA, labelB string) (domain.ArbOpportunity, bool) {
	bestA := pricing.BestPrice(legA, pricing.SideBuy)
	bestB := pricing.BestPrice(legB, pricing.SideBuy)
	fillA := pricing.ComputeFill(legA, pricing.SideBuy, s.cfg.TargetSize)
	fillB := pricing.ComputeFill(legB, pricing.SideBuy, s.cfg.TargetSize)

	size := fillA.FilledSize
	if fillB.FilledSize < size {
		size = fillB.FilledSize
	}
	cost := fillA.AvgPrice + fillB.AvgPrice
	profit := (1 - cost) * 100

	ok := size >= s.cfg.MinTradeSize &&
		cost < 1 &&
		profit >= s.cfg.MinProfitPercent &&
		pricing.WithinSlippage(bestA, fillA.AvgPrice, s.cfg.MaxSlippageBps) &&
		pricing.WithinSlippage(bestB, fillB.AvgPrice, s.cfg.MaxSlippageBps)
	if !ok {
		return domain.ArbOpportunity{}, false
	}

	return domain.ArbOpportunity{
		ID:            uuid.NewString(),
		Pair:          pair,
		Route:         route,
		Cost:          cost,
		ProfitPercent: profit,
		Size:          size,
		MaxSize:       size,
		PriceBreakdown: fmt.Sprintf("%s %.4f | %s %.4f",
			labelA, fillA.AvgPrice, labelB, fillB.AvgPrice),
		DetectedAt: time.Now().UTC(),
	}, true
}

// book resolves one outcome book, preferring the live feed state and
// falling back to REST when the feed has nothing usable for the token.
func (s *ArbScanner) book(ctx context.Context, src BookSource, market domain.Market, outcome domain.Outcome) (domain.OrderBook, error) {
	if s.state != nil {
		if book, ok := s.state.BookForMarket(market, outcome); ok && !book.Empty() {
			return book, nil
		}
	}
	return src.GetOrderBook(ctx, market.TokenID(outcome))
}
