// Package pricing implements the depth-aware fill model and the closed-form
// probability approximations shared by the scanners.
package pricing

import (
	"math"

	"github.com/alanyoungcy/polyscan/internal/domain"
)

// Side selects which ladder a fill consumes: a buy walks the asks, a sell
// walks the bids.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// emptyBookPrice is the sentinel average price returned when nothing is
// fillable. It is the worst possible binary-market price, so downstream
// profitability gates reject it instead of treating an empty book as free
// liquidity.
const emptyBookPrice = 1.0

// Fill is the result of walking a ladder for a target size.
type Fill struct {
	AvgPrice   float64
	FilledSize float64
	Notional   float64
}

// ComputeFill walks the opposing ladder from best to worst, consuming
// min(level size, remaining) per level until size is exhausted or the ladder
// runs out. If nothing was fillable the sentinel price 1.0 is returned with
// zero size and notional.
func ComputeFill(book domain.OrderBook, side Side, size float64) Fill {
	levels := book.Asks
	if side == SideSell {
		levels = book.Bids
	}

	remaining := size
	var filled, notional float64
	for _, lvl := range levels {
		take := math.Min(lvl.Size, remaining)
		notional += take * lvl.Price
		filled += take
		remaining -= take
		if remaining <= 0 {
			break
		}
	}

	if filled == 0 {
		return Fill{AvgPrice: emptyBookPrice}
	}
	return Fill{
		AvgPrice:   notional / filled,
		FilledSize: filled,
		Notional:   notional,
	}
}

// BestPrice returns the single best opposing level's price, or the 1.0
// sentinel if that side of the book is empty.
func BestPrice(book domain.OrderBook, side Side) float64 {
	if side == SideBuy {
		if lvl, ok := book.BestAsk(); ok {
			return lvl.Price
		}
		return emptyBookPrice
	}
	if lvl, ok := book.BestBid(); ok {
		return lvl.Price
	}
	return emptyBookPrice
}

// WithinSlippage reports whether avgPrice deviates from refPrice by at most
// maxBps basis points. A zero reference price is unusable and always fails.
func WithinSlippage(refPrice, avgPrice float64, maxBps int) bool {
	if refPrice == 0 {
		return false
	}
	diffBps := math.Abs(avgPrice-refPrice) / refPrice * 10_000
	return diffBps <= float64(maxBps)
}
