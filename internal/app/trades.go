package app

import (
	"context"
	"log/slog"

	"github.com/alanyoungcy/polyscan/internal/domain"
	"github.com/alanyoungcy/polyscan/internal/feed"
	"github.com/alanyoungcy/polyscan/internal/platform/polymarket"
	"github.com/alanyoungcy/polyscan/internal/storage"
)

// seedTradeLimit is how many recent trades are pulled from the Data-API when
// a feed-backed mode starts.
const seedTradeLimit = 500

// tradeSource abstracts the Data-API trade history endpoint.
type tradeSource interface {
	GetRecentTrades(ctx context.Context, limit int) ([]polymarket.APITrade, error)
}

var _ tradeSource = (*polymarket.DataClient)(nil)

// seedRecentTrades pre-fills the stream state's trade rings from the
// Data-API so trade-gated detectors have history before the websocket
// delivers its first trade, and records the pull in the trades log. The
// Data-API returns trades newest first; rings are appended oldest first so
// the newest trade stays the ring's most recent. Failures are logged and
// skipped: seeding is a warm-up, not a requirement.
func seedRecentTrades(ctx context.Context, src tradeSource, state *feed.State, sink *storage.Sink, logger *slog.Logger) {
	trades, err := src.GetRecentTrades(ctx, seedTradeLimit)
	if err != nil {
		logger.Warn("trade seed fetch failed", slog.String("error", err.Error()))
		return
	}
	if len(trades) == 0 {
		return
	}

	events := make([]domain.TradeEvent, 0, len(trades))
	for i := len(trades) - 1; i >= 0; i-- {
		ev := trades[i].ToDomainTrade()
		state.AppendTrade(ev)
		events = append(events, ev)
	}

	if sink != nil {
		if err := sink.LogTrades(events); err != nil {
			logger.Error("trade log write failed", slog.String("error", err.Error()))
		}
	}
	logger.Info("seeded recent trades", slog.Int("count", len(events)))
}
