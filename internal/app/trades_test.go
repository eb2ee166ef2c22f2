package app

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyscan/internal/feed"
	"github.com/alanyoungcy/polyscan/internal/platform/polymarket"
	"github.com/alanyoungcy/polyscan/internal/storage"
)

type fakeTradeSource struct {
	trades []polymarket.APITrade
	err    error
}

func (s *fakeTradeSource) GetRecentTrades(context.Context, int) ([]polymarket.APITrade, error) {
	return s.trades, s.err
}

func apiTrade(t *testing.T, raw string) polymarket.APITrade {
	t.Helper()
	var tr polymarket.APITrade
	require.NoError(t, json.Unmarshal([]byte(raw), &tr))
	return tr
}

func TestSeedRecentTradesFillsRingsNewestLast(t *testing.T) {
	dir := t.TempDir()
	sink, err := storage.NewSink(dir)
	require.NoError(t, err)
	state := feed.NewState()

	// Data-API order: newest first.
	src := &fakeTradeSource{trades: []polymarket.APITrade{
		apiTrade(t, `{"conditionId": "0xabc", "asset": "tok1", "side": "BUY", "size": 10, "price": 0.6, "timestamp": 200}`),
		apiTrade(t, `{"conditionId": "0xabc", "asset": "tok1", "side": "SELL", "size": 5, "price": 0.5, "timestamp": 100}`),
	}}

	seedRecentTrades(context.Background(), src, state, sink, slog.New(slog.DiscardHandler))

	trades := state.LastTrades("0xabc", 10)
	require.Len(t, trades, 2)
	assert.Equal(t, int64(100), trades[0].Timestamp, "oldest first in the ring")
	assert.Equal(t, int64(200), trades[1].Timestamp, "newest trade is the ring's most recent")

	f, err := os.Open(filepath.Join(dir, storage.TradeFile))
	require.NoError(t, err)
	defer f.Close()
	lines := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines++
	}
	require.NoError(t, sc.Err())
	assert.Equal(t, 2, lines)
}

func TestSeedRecentTradesToleratesFetchFailure(t *testing.T) {
	state := feed.NewState()
	src := &fakeTradeSource{err: errors.New("data-api down")}

	seedRecentTrades(context.Background(), src, state, nil, slog.New(slog.DiscardHandler))

	assert.Empty(t, state.LastTrades("0xabc", 10))
}
