// Package feed maintains a live in-memory replica of Polymarket market data
// over the CLOB MARKET WebSocket channel. The replica (State) is written by
// exactly one feed goroutine and read concurrently by the scanners.
package feed

import (
	"sync"

	"github.com/alanyoungcy/polyscan/internal/domain"
)

// maxTradesPerMarket bounds the per-condition trade ring buffer.
const maxTradesPerMarket = 200

// tradeRing is a fixed-capacity ring buffer of trade events, oldest evicted.
type tradeRing struct {
	buf   []domain.TradeEvent
	start int
	count int
}

func newTradeRing(capacity int) *tradeRing {
	return &tradeRing{buf: make([]domain.TradeEvent, capacity)}
}

func (r *tradeRing) push(ev domain.TradeEvent) {
	if r.count < len(r.buf) {
		r.buf[(r.start+r.count)%len(r.buf)] = ev
		r.count++
		return
	}
	r.buf[r.start] = ev
	r.start = (r.start + 1) % len(r.buf)
}

// list returns up to limit most recent trades, oldest first.
func (r *tradeRing) list(limit int) []domain.TradeEvent {
	n := r.count
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]domain.TradeEvent, 0, n)
	for i := r.count - n; i < r.count; i++ {
		out = append(out, r.buf[(r.start+i)%len(r.buf)])
	}
	return out
}

// State is the local replica of stream data: the latest order book per
// outcome token and a bounded ring of recent trades per condition. Book
// application replaces the whole book in one assignment; readers always see
// either the previous or the new snapshot, never a partial one.
type State struct {
	mu     sync.RWMutex
	books  map[string]domain.OrderBook
	trades map[string]*tradeRing
}

// NewState creates an empty State.
func NewState() *State {
	return &State{
		books:  make(map[string]domain.OrderBook),
		trades: make(map[string]*tradeRing),
	}
}

// ApplyBookSnapshot replaces the stored book for one token.
func (s *State) ApplyBookSnapshot(tokenID string, book domain.OrderBook) {
	if tokenID == "" {
		return
	}
	s.mu.Lock()
	s.books[tokenID] = book
	s.mu.Unlock()
}

// AppendTrade records a trade in its condition's ring buffer.
func (s *State) AppendTrade(ev domain.TradeEvent) {
	if ev.ConditionID == "" {
		return
	}
	s.mu.Lock()
	ring, ok := s.trades[ev.ConditionID]
	if !ok {
		ring = newTradeRing(maxTradesPerMarket)
		s.trades[ev.ConditionID] = ring
	}
	ring.push(ev)
	s.mu.Unlock()
}

// Book returns the latest book for a token. ok is false when the feed has
// not yet delivered a snapshot for it; a missing book means "unknown", not
// "no liquidity".
func (s *State) Book(tokenID string) (domain.OrderBook, bool) {
	s.mu.RLock()
	book, ok := s.books[tokenID]
	s.mu.RUnlock()
	return book, ok
}

// BookForMarket returns the book for one outcome of a market.
func (s *State) BookForMarket(market domain.Market, outcome domain.Outcome) (domain.OrderBook, bool) {
	tokenID := market.TokenID(outcome)
	if tokenID == "" {
		return domain.OrderBook{}, false
	}
	return s.Book(tokenID)
}

// LastTrades returns up to limit most recent trades for a condition, oldest
// first. The returned slice is owned by the caller.
func (s *State) LastTrades(conditionID string, limit int) []domain.TradeEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ring, ok := s.trades[conditionID]
	if !ok {
		return nil
	}
	return ring.list(limit)
}
