// Package monitor watches the local feed replica for short-horizon price
// dislocations: a market whose YES price has jumped away from its smoothed
// baseline right after a large trade is likely overshooting and may revert.
// The monitor only flags candidates; it never places orders.
package monitor

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/polyscan/internal/domain"
	"github.com/alanyoungcy/polyscan/internal/feed"
)

// defaultEMAAlpha controls how fast the per-condition baseline tracks the
// current price. Larger values make the baseline follow price more closely
// and therefore signal less often.
const defaultEMAAlpha = 0.2

// tradeLookback bounds how many recent trades are pulled from the feed
// replica when corroborating a move.
const tradeLookback = 50

// RebalanceConfig holds the signal gates.
type RebalanceConfig struct {
	EMAAlpha       float64 // (0, 1]; defaults to defaultEMAAlpha
	MinAbsMove     float64 // minimum |current - baseline| to signal
	MinNotional    float64 // minimum notional of the latest trade
	MaxAgeSeconds  int     // maximum age of the latest trade
	MinTradeEvents int     // minimum trades observed for the condition
}

// RebalanceMonitor maintains an EMA baseline of the YES price per condition
// and emits a signal when the current price deviates sharply from it with a
// recent large trade behind the move. Detect is expected to be called
// periodically by the owning loop; it touches only local feed state and
// never the network.
//
// The baseline is seeded on the first observation of a condition, so a
// market can never signal on its first pass.
type RebalanceMonitor struct {
	state  *feed.State
	cfg    RebalanceConfig
	logger *slog.Logger

	baselineYes map[string]float64
}

// NewRebalanceMonitor creates a monitor over the given feed replica.
func NewRebalanceMonitor(state *feed.State, cfg RebalanceConfig, logger *slog.Logger) *RebalanceMonitor {
	if cfg.EMAAlpha <= 0 || cfg.EMAAlpha > 1 {
		cfg.EMAAlpha = defaultEMAAlpha
	}
	if cfg.MinTradeEvents <= 0 {
		cfg.MinTradeEvents = 1
	}
	return &RebalanceMonitor{
		state:       state,
		cfg:         cfg,
		logger:      logger.With(slog.String("component", "rebalance_monitor")),
		baselineYes: make(map[string]float64),
	}
}

// Detect evaluates every Polymarket market against its baseline and returns
// the signals ordered by (|delta|, trade notional) descending. Baselines
// update on every pass, including passes where the gates reject the market,
// so the baseline keeps tracking price between signals.
func (m *RebalanceMonitor) Detect(markets []domain.Market, now time.Time) []domain.RebalanceSignal {
	nowTS := now.Unix()

	var signals []domain.RebalanceSignal
	for _, market := range markets {
		if market.Platform != domain.PlatformPolymarket {
			continue
		}
		if market.ConditionID == "" || market.YesTokenID == "" {
			continue
		}

		book, ok := m.state.BookForMarket(market, domain.OutcomeYes)
		if !ok {
			continue
		}
		currentYes, ok := estimateYesPrice(book)
		if !ok {
			continue
		}

		baseline := m.updateBaseline(market.ConditionID, currentYes)
		delta := currentYes - baseline
		if math.Abs(delta) < m.cfg.MinAbsMove {
			continue
		}

		trades := m.state.LastTrades(market.ConditionID, tradeLookback)
		if len(trades) < m.cfg.MinTradeEvents {
			continue
		}
		last := trades[len(trades)-1]
		age := nowTS - last.Timestamp
		if age < 0 || age > int64(m.cfg.MaxAgeSeconds) {
			m.logger.Debug("stale last trade",
				slog.String("condition_id", market.ConditionID),
				slog.Int64("age_seconds", age))
			continue
		}
		if last.Notional < m.cfg.MinNotional {
			continue
		}

		direction := "short_no"
		if delta > 0 {
			direction = "short_yes"
		}

		parts := []string{
			fmt.Sprintf("price is about %.1f points off its baseline", math.Abs(delta)*100.0),
			fmt.Sprintf("latest trade moved about %.2f USDC", last.Notional),
		}
		if age > int64(m.cfg.MaxAgeSeconds)/2 {
			parts = append(parts, fmt.Sprintf("trade happened %d seconds ago, near the window limit", age))
		}

		signals = append(signals, domain.RebalanceSignal{
			ID:            uuid.NewString(),
			Market:        market,
			Direction:     direction,
			CurrentYes:    currentYes,
			BaselineYes:   baseline,
			Delta:         delta,
			TradeNotional: last.Notional,
			WindowSeconds: m.cfg.MaxAgeSeconds,
			Reason:        strings.Join(parts, "; "),
			DetectedAt:    now.UTC(),
		})
	}

	sort.Slice(signals, func(i, j int) bool {
		di, dj := math.Abs(signals[i].Delta), math.Abs(signals[j].Delta)
		if di != dj {
			return di > dj
		}
		return signals[i].TradeNotional > signals[j].TradeNotional
	})
	return signals
}

// updateBaseline folds the current price into the condition's EMA baseline
// and returns the updated value. The first observation seeds the baseline.
func (m *RebalanceMonitor) updateBaseline(conditionID string, price float64) float64 {
	previous, ok := m.baselineYes[conditionID]
	baseline := price
	if ok {
		baseline = m.cfg.EMAAlpha*price + (1.0-m.cfg.EMAAlpha)*previous
	}
	m.baselineYes[conditionID] = baseline
	return baseline
}

// estimateYesPrice derives a current YES price from the book: the bid/ask
// mid when both sides are quoted, otherwise the single quoted side.
func estimateYesPrice(book domain.OrderBook) (float64, bool) {
	bid, hasBid := book.BestBid()
	ask, hasAsk := book.BestAsk()
	switch {
	case hasBid && hasAsk:
		return (bid.Price + ask.Price) / 2.0, true
	case hasBid:
		return bid.Price, true
	case hasAsk:
		return ask.Price, true
	default:
		return 0, false
	}
}
