package domain

import "time"

// TradeEvent is a single fill reported on the market feed. Immutable once
// constructed.
type TradeEvent struct {
	ConditionID string
	TokenID     string
	Side        string // "BUY" or "SELL"
	Size        float64
	Price       float64
	Notional    float64 // Size * Price
	Timestamp   int64   // unix seconds
	Title       string
	Outcome     string
	TxHash      string
	Wallet      string
	Pseudonym   string
}

// Time converts the unix timestamp to a UTC time.
func (t TradeEvent) Time() time.Time {
	return time.Unix(t.Timestamp, 0).UTC()
}
