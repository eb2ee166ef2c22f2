package domain

// Level is a single price+size entry in an order book ladder.
type Level struct {
	Price float64
	Size  float64
}

// OrderBook is a full snapshot of one outcome token's book. Bids are ordered
// best (highest) first and asks best (lowest) first, exactly as the venue
// delivers them; consumers never re-sort.
type OrderBook struct {
	Bids []Level
	Asks []Level
}

// BestBid returns the top bid level, if any.
func (b OrderBook) BestBid() (Level, bool) {
	if len(b.Bids) == 0 {
		return Level{}, false
	}
	return b.Bids[0], true
}

// BestAsk returns the top ask level, if any.
func (b OrderBook) BestAsk() (Level, bool) {
	if len(b.Asks) == 0 {
		return Level{}, false
	}
	return b.Asks[0], true
}

// Empty reports whether both sides of the book are empty. An empty book means
// "unknown", not "zero liquidity": the feed may simply not cover this token.
func (b OrderBook) Empty() bool {
	return len(b.Bids) == 0 && len(b.Asks) == 0
}
