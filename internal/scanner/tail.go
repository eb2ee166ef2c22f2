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
)

// TailConfig carries the tunables of the tail sweep scanner.
type TailConfig struct {
	Limit                     int     // max markets listed
	MinYesPrice               float64 // best YES ask at or above this
	MaxHoursToResolve         float64
	MaxSweepSize              float64 // cap on the swept share count
	MinNotional               float64
	MinYieldPercent           float64
	MinAnnualizedYieldPercent float64
	FeeRate                   float64 // settlement fee on the payout
}

// TailScanner finds near-resolution markets whose YES side trades close to
// one dollar, where sweeping the remaining asks locks in a small, quick
// yield at settlement.
type TailScanner struct {
	pmMarkets PolymarketLister
	pmBooks   BookSource
	state     *feed.State // optional
	cfg       TailConfig
	logger    *slog.Logger
}

// NewTailScanner creates a tail sweep scanner. state may be nil.
func NewTailScanner(pmMarkets PolymarketLister, pmBooks BookSource, state *feed.State, cfg TailConfig, logger *slog.Logger) *TailScanner {
	return &TailScanner{
		pmMarkets: pmMarkets,
		pmBooks:   pmBooks,
		state:     state,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "tail_scanner")),
	}
}

// Scan returns sweep candidates sorted by expected yield then notional,
// both descending.
func (s *TailScanner) Scan(ctx context.Context) ([]domain.TailOpportunity, error) {
	markets, err := s.pmMarkets.ListActiveMarkets(ctx, s.cfg.Limit, "")
	if err != nil {
		return nil, fmt.Errorf("scanner: list polymarket markets: %w", err)
	}
	now := time.Now().UTC()

	var results []domain.TailOpportunity
	for _, m := range markets {
		opp, ok := s.evaluate(ctx, m, now)
		if ok {
			results = append(results, opp)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].ExpectedYieldPercent != results[j].ExpectedYieldPercent {
			return results[i].ExpectedYieldPercent > results[j].ExpectedYieldPercent
		}
		return results[i].Notional > results[j].Notional
	})
	return results, nil
}

func (s *TailScanner) evaluate(ctx context.Context, m domain.Market, now time.Time) (domain.TailOpportunity, bool) {
	if m.Platform != domain.PlatformPolymarket || m.YesTokenID == "" {
		return domain.TailOpportunity{}, false
	}

	hours, ok := hoursToResolve(m, now)
	if !ok || hours > s.cfg.MaxHoursToResolve {
		return domain.TailOpportunity{}, false
	}

	book, ok := s.yesBook(ctx, m)
	if !ok || len(book.Asks) == 0 {
		return domain.TailOpportunity{}, false
	}

	ask, ok := book.BestAsk()
	if !ok {
		return domain.TailOpportunity{}, false
	}
	price := ask.Price
	if price < s.cfg.MinYesPrice {
		return domain.TailOpportunity{}, false
	}

	sweep := sweepSize(book, s.cfg.MaxSweepSize)
	if sweep <= 0 {
		return domain.TailOpportunity{}, false
	}
	notional := price * sweep
	if notional < s.cfg.MinNotional {
		return domain.TailOpportunity{}, false
	}

	// Yield ignores time value: (1-price) per share paid out at
	// settlement, less fees, relative to the entry price.
	grossProfit := (1 - price) * (1 - s.cfg.FeeRate)
	if grossProfit <= 0 {
		return domain.TailOpportunity{}, false
	}
	yield := grossProfit / price * 100
	if yield < s.cfg.MinYieldPercent {
		return domain.TailOpportunity{}, false
	}

	days := hours / 24
	annualized := yield * 365 / days
	if annualized < s.cfg.MinAnnualizedYieldPercent {
		return domain.TailOpportunity{}, false
	}

	var flags []string
	if hours > 24 {
		flags = append(flags, "long_horizon")
	}
	var topDepth float64
	for i, lvl := range book.Asks {
		if i >= 5 {
			break
		}
		topDepth += lvl.Size
	}
	if topDepth < sweep*1.2 {
		flags = append(flags, "thin_book")
	}

	return domain.TailOpportunity{
		ID:                     uuid.NewString(),
		Market:                 m,
		YesPrice:               price,
		MaxSweepSize:           sweep,
		Notional:               notional,
		ExpectedYieldPercent:   yield,
		AnnualizedYieldPercent: annualized,
		HoursToResolve:         hours,
		RiskFlags:              flags,
		DetectedAt:             time.Now().UTC(),
	}, true
}

// yesBook resolves the YES book, preferring the feed state. ok is false
// only when the REST fallback fails.
func (s *TailScanner) yesBook(ctx context.Context, m domain.Market) (domain.OrderBook, bool) {
	if s.state != nil {
		if book, found := s.state.BookForMarket(m, domain.OutcomeYes); found && len(book.Asks) > 0 {
			return book, true
		}
	}
	book, err := s.pmBooks.GetOrderBook(ctx, m.YesTokenID)
	if err != nil {
		s.logger.Warn("yes book unavailable",
			slog.String("market_id", m.ID),
			slog.String("error", err.Error()),
		)
		return domain.OrderBook{}, false
	}
	return book, true
}

// sweepSize walks the ask ladder and returns the swept share count,
// capped at maxSize.
func sweepSize(book domain.OrderBook, maxSize float64) float64 {
	remaining := maxSize
	var filled float64
	for _, lvl := range book.Asks {
		if remaining <= 0 {
			break
		}
		take := lvl.Size
		if take > remaining {
			take = remaining
		}
		filled += take
		remaining -= take
	}
	return filled
}

// hoursToResolve computes the remaining hours until a market's resolve
// time. ok is false when the end date is missing, unparseable, or past.
func hoursToResolve(m domain.Market, now time.Time) (float64, bool) {
	end, ok := m.ResolveTime()
	if !ok || !end.After(now) {
		return 0, false
	}
	return end.Sub(now).Hours(), true
}
