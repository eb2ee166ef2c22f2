package storage

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyscan/internal/domain"
)

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		out = append(out, rec)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestSinkAppendsArbOpportunities(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewSink(dir)
	require.NoError(t, err)

	detected := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	opp := domain.ArbOpportunity{
		ID:    "op-1",
		Route: domain.RoutePolyNoOpinionYes,
		Pair: domain.MatchedPair{
			Polymarket: domain.Market{ID: "pm-1"},
			Opinion:    domain.Market{ID: "op-7"},
			Similarity: 0.92,
		},
		Size:           500,
		Cost:           0.94,
		ProfitPercent:  6.0,
		PriceBreakdown: "PM_NO 0.4400 | OP_YES 0.5000",
		DetectedAt:     detected,
	}
	require.NoError(t, sink.LogArbOpportunities([]domain.ArbOpportunity{opp}))
	require.NoError(t, sink.LogArbOpportunities([]domain.ArbOpportunity{opp}))

	lines := readLines(t, filepath.Join(dir, ArbFile))
	require.Len(t, lines, 2, "append never truncates")
	rec := lines[0]
	assert.Equal(t, "2026-08-01T12:00:00Z", rec["ts"])
	assert.Equal(t, "PM_NO + OP_YES", rec["route"])
	assert.Equal(t, "pm-1", rec["pm_id"])
	assert.Equal(t, "op-7", rec["op_id"])
	assert.InDelta(t, 6.0, rec["profit_pct"].(float64), 1e-9)
}

func TestSinkHedgeFundingOmittedWhenNil(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewSink(dir)
	require.NoError(t, err)

	funding := -0.00025
	opps := []domain.HedgeOpportunity{
		{ID: "h-1", Market: domain.Market{ID: "pm-1", Title: "BTC above 100k"}, FundingRate: &funding, ProbSource: "digital"},
		{ID: "h-2", Market: domain.Market{ID: "pm-2"}},
	}
	require.NoError(t, sink.LogHedgeOpportunities(opps))

	lines := readLines(t, filepath.Join(dir, HedgeFile))
	require.Len(t, lines, 2)
	assert.InDelta(t, -0.00025, lines[0]["funding"].(float64), 1e-12)
	_, hasFunding := lines[1]["funding"]
	assert.False(t, hasFunding)
}

func TestSinkEmptyBatchWritesNothing(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewSink(dir)
	require.NoError(t, err)

	require.NoError(t, sink.LogRebalanceSignals(nil))
	_, statErr := os.Stat(filepath.Join(dir, RebalanceFile))
	assert.True(t, os.IsNotExist(statErr))
}

func TestSinkTailRecordShape(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewSink(dir)
	require.NoError(t, err)

	opp := domain.TailOpportunity{
		ID:                     "t-1",
		Market:                 domain.Market{ID: "pm-9", Title: "Resolves soon"},
		YesPrice:               0.95,
		MaxSweepSize:           700,
		Notional:               665,
		ExpectedYieldPercent:   5.16,
		AnnualizedYieldPercent: 376.5,
		HoursToResolve:         5,
		RiskFlags:              []string{"thin_book"},
		DetectedAt:             time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, sink.LogTailOpportunities([]domain.TailOpportunity{opp}))

	lines := readLines(t, filepath.Join(dir, TailFile))
	require.Len(t, lines, 1)
	assert.Equal(t, []any{"thin_book"}, lines[0]["risk_flags"])
	assert.InDelta(t, 0.95, lines[0]["yes_price"].(float64), 1e-9)
}

func TestSinkTradeRecordShape(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewSink(dir)
	require.NoError(t, err)

	trades := []domain.TradeEvent{
		{
			ConditionID: "0xabc",
			TokenID:     "tok1",
			Side:        "BUY",
			Size:        20,
			Price:       0.25,
			Notional:    5,
			Timestamp:   1784865600, // 2026-07-24T04:00:00Z
			Title:       "Will BTC close above $100k?",
			Outcome:     "Yes",
			Wallet:      "0xwallet",
		},
		{ConditionID: "0xdef", Side: "SELL", Size: 1, Price: 0.5, Notional: 0.5},
	}
	require.NoError(t, sink.LogTrades(trades))

	lines := readLines(t, filepath.Join(dir, TradeFile))
	require.Len(t, lines, 2)
	rec := lines[0]
	assert.Equal(t, "2026-07-24T04:00:00Z", rec["ts"])
	assert.Equal(t, "0xabc", rec["condition_id"])
	assert.InDelta(t, 5.0, rec["notional"].(float64), 1e-9)
	assert.Equal(t, "0xwallet", rec["wallet"])
	_, hasTx := rec["tx_hash"]
	assert.False(t, hasTx, "empty tx hash stays off the record")

	// Missing timestamp falls back to write time.
	ts, err := time.Parse(time.RFC3339, lines[1]["ts"].(string))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC(), ts, time.Minute)
}

func TestSinkZeroTimestampFallsBackToNow(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewSink(dir)
	require.NoError(t, err)

	require.NoError(t, sink.LogRebalanceSignals([]domain.RebalanceSignal{{ID: "r-1", Direction: "short_yes"}}))
	lines := readLines(t, filepath.Join(dir, RebalanceFile))
	require.Len(t, lines, 1)
	ts, err := time.Parse(time.RFC3339, lines[0]["ts"].(string))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC(), ts, time.Minute)
}
