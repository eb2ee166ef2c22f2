package monitor

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyscan/internal/domain"
	"github.com/alanyoungcy/polyscan/internal/feed"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func monitorConfig() RebalanceConfig {
	return RebalanceConfig{
		MinAbsMove:    0.15,
		MinNotional:   500,
		MaxAgeSeconds: 300,
	}
}

func monitorMarket(id string) domain.Market {
	return domain.Market{
		Platform:    domain.PlatformPolymarket,
		ID:          id,
		ConditionID: id,
		Title:       "Monitored market " + id,
		YesTokenID:  id + "-yes",
		NoTokenID:   id + "-no",
	}
}

func applyMid(state *feed.State, m domain.Market, mid float64) {
	state.ApplyBookSnapshot(m.YesTokenID, domain.OrderBook{
		Bids: []domain.Level{{Price: mid - 0.01, Size: 100}},
		Asks: []domain.Level{{Price: mid + 0.01, Size: 100}},
	})
}

func TestRebalanceMonitorDetectsOvershoot(t *testing.T) {
	state := feed.NewState()
	mon := NewRebalanceMonitor(state, monitorConfig(), discardLogger())
	m := monitorMarket("cond-1")
	now := time.Unix(1_700_000_600, 0).UTC()
	markets := []domain.Market{m}

	applyMid(state, m, 0.40)
	require.Empty(t, mon.Detect(markets, now), "first pass seeds the baseline")

	applyMid(state, m, 0.60)
	state.AppendTrade(domain.TradeEvent{
		ConditionID: m.ConditionID,
		TokenID:     m.YesTokenID,
		Size:        2000,
		Price:       0.60,
		Notional:    1200,
		Timestamp:   now.Unix() - 30,
	})

	signals := mon.Detect(markets, now)
	require.Len(t, signals, 1)
	sig := signals[0]
	assert.Equal(t, "short_yes", sig.Direction)
	assert.InDelta(t, 0.60, sig.CurrentYes, 1e-9)
	// baseline = 0.2*0.60 + 0.8*0.40 = 0.44
	assert.InDelta(t, 0.44, sig.BaselineYes, 1e-9)
	assert.InDelta(t, 0.16, sig.Delta, 1e-9)
	assert.InDelta(t, 1200, sig.TradeNotional, 1e-9)
	assert.Equal(t, 300, sig.WindowSeconds)
	assert.NotEmpty(t, sig.ID)
	assert.Contains(t, sig.Reason, "16.0 points")
	assert.Contains(t, sig.Reason, "1200.00 USDC")
	assert.NotContains(t, sig.Reason, "window limit")
}

func TestRebalanceMonitorDirectionShortNo(t *testing.T) {
	state := feed.NewState()
	mon := NewRebalanceMonitor(state, monitorConfig(), discardLogger())
	m := monitorMarket("cond-2")
	now := time.Unix(1_700_000_600, 0).UTC()
	markets := []domain.Market{m}

	applyMid(state, m, 0.70)
	require.Empty(t, mon.Detect(markets, now))

	applyMid(state, m, 0.45)
	state.AppendTrade(domain.TradeEvent{
		ConditionID: m.ConditionID,
		Notional:    900,
		Timestamp:   now.Unix() - 10,
	})

	signals := mon.Detect(markets, now)
	require.Len(t, signals, 1)
	assert.Equal(t, "short_no", signals[0].Direction)
	assert.Less(t, signals[0].Delta, 0.0)
}

func TestRebalanceMonitorGates(t *testing.T) {
	now := time.Unix(1_700_000_600, 0).UTC()

	cases := []struct {
		name  string
		setup func(state *feed.State, m domain.Market)
	}{
		{
			name: "small move",
			setup: func(state *feed.State, m domain.Market) {
				applyMid(state, m, 0.45) // 0.2*0.45+0.8*0.40 = 0.41, |delta| = 0.04
				state.AppendTrade(domain.TradeEvent{ConditionID: m.ConditionID, Notional: 1000, Timestamp: now.Unix() - 10})
			},
		},
		{
			name: "no trades",
			setup: func(state *feed.State, m domain.Market) {
				applyMid(state, m, 0.70)
			},
		},
		{
			name: "stale trade",
			setup: func(state *feed.State, m domain.Market) {
				applyMid(state, m, 0.70)
				state.AppendTrade(domain.TradeEvent{ConditionID: m.ConditionID, Notional: 1000, Timestamp: now.Unix() - 301})
			},
		},
		{
			name: "future-dated trade",
			setup: func(state *feed.State, m domain.Market) {
				applyMid(state, m, 0.70)
				state.AppendTrade(domain.TradeEvent{ConditionID: m.ConditionID, Notional: 1000, Timestamp: now.Unix() + 60})
			},
		},
		{
			name: "small trade",
			setup: func(state *feed.State, m domain.Market) {
				applyMid(state, m, 0.70)
				state.AppendTrade(domain.TradeEvent{ConditionID: m.ConditionID, Notional: 499, Timestamp: now.Unix() - 10})
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			state := feed.NewState()
			mon := NewRebalanceMonitor(state, monitorConfig(), discardLogger())
			m := monitorMarket("cond-g")
			markets := []domain.Market{m}

			applyMid(state, m, 0.40)
			require.Empty(t, mon.Detect(markets, now))

			tc.setup(state, m)
			assert.Empty(t, mon.Detect(markets, now))
		})
	}
}

func TestRebalanceMonitorBaselineUpdatesOnRejectedPasses(t *testing.T) {
	state := feed.NewState()
	mon := NewRebalanceMonitor(state, monitorConfig(), discardLogger())
	m := monitorMarket("cond-3")
	now := time.Unix(1_700_000_600, 0).UTC()
	markets := []domain.Market{m}

	applyMid(state, m, 0.40)
	require.Empty(t, mon.Detect(markets, now))

	// No trades recorded, so every pass is rejected, but the baseline still
	// converges toward the new price.
	applyMid(state, m, 0.80)
	for i := 0; i < 40; i++ {
		require.Empty(t, mon.Detect(markets, now))
	}

	// Baseline has caught up; even with a fresh large trade the move gate
	// now rejects.
	state.AppendTrade(domain.TradeEvent{ConditionID: m.ConditionID, Notional: 2000, Timestamp: now.Unix() - 5})
	assert.Empty(t, mon.Detect(markets, now))
}

func TestRebalanceMonitorSortsByMoveThenNotional(t *testing.T) {
	state := feed.NewState()
	mon := NewRebalanceMonitor(state, monitorConfig(), discardLogger())
	now := time.Unix(1_700_000_600, 0).UTC()

	a := monitorMarket("cond-a")
	b := monitorMarket("cond-b")
	markets := []domain.Market{a, b}

	applyMid(state, a, 0.40)
	applyMid(state, b, 0.40)
	require.Empty(t, mon.Detect(markets, now))

	applyMid(state, a, 0.60) // |delta| 0.16
	applyMid(state, b, 0.70) // |delta| 0.24
	state.AppendTrade(domain.TradeEvent{ConditionID: a.ConditionID, Notional: 5000, Timestamp: now.Unix() - 5})
	state.AppendTrade(domain.TradeEvent{ConditionID: b.ConditionID, Notional: 800, Timestamp: now.Unix() - 5})

	signals := mon.Detect(markets, now)
	require.Len(t, signals, 2)
	assert.Equal(t, "cond-b", signals[0].Market.ConditionID, "larger move ranks first regardless of notional")
	assert.Equal(t, "cond-a", signals[1].Market.ConditionID)
}

func TestRebalanceMonitorSingleSidedBook(t *testing.T) {
	state := feed.NewState()
	mon := NewRebalanceMonitor(state, monitorConfig(), discardLogger())
	m := monitorMarket("cond-4")
	now := time.Unix(1_700_000_600, 0).UTC()
	markets := []domain.Market{m}

	state.ApplyBookSnapshot(m.YesTokenID, domain.OrderBook{
		Bids: []domain.Level{{Price: 0.40, Size: 50}},
	})
	require.Empty(t, mon.Detect(markets, now))

	state.ApplyBookSnapshot(m.YesTokenID, domain.OrderBook{
		Bids: []domain.Level{{Price: 0.62, Size: 50}},
	})
	state.AppendTrade(domain.TradeEvent{ConditionID: m.ConditionID, Notional: 750, Timestamp: now.Unix() - 200})

	signals := mon.Detect(markets, now)
	require.Len(t, signals, 1)
	assert.InDelta(t, 0.62, signals[0].CurrentYes, 1e-9)
	assert.Contains(t, signals[0].Reason, "window limit", "trade older than half the window is called out")
}

func TestRebalanceMonitorSkipsNonPolymarket(t *testing.T) {
	state := feed.NewState()
	mon := NewRebalanceMonitor(state, monitorConfig(), discardLogger())
	now := time.Unix(1_700_000_600, 0).UTC()

	op := monitorMarket("cond-op")
	op.Platform = domain.PlatformOpinion
	noCond := monitorMarket("cond-x")
	noCond.ConditionID = ""

	applyMid(state, op, 0.40)
	applyMid(state, noCond, 0.40)
	assert.Empty(t, mon.Detect([]domain.Market{op, noCond}, now))
	assert.Empty(t, mon.Detect([]domain.Market{op, noCond}, now))
}
