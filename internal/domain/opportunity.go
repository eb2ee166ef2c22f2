package domain

import "time"

// MatchedPair joins one market from each venue with the title similarity that
// produced the match. It is an ephemeral scan-cycle result, never persisted
// on its own.
type MatchedPair struct {
	Polymarket Market
	Opinion    Market
	Similarity float64
}

// Arbitrage route names. Each route buys both complementary outcomes, one leg
// per venue.
const (
	RoutePolyNoOpinionYes = "PM_NO + OP_YES"
	RoutePolyYesOpinionNo = "PM_YES + OP_NO"
)

// ArbOpportunity is one profitable cross-venue route found by a scan cycle.
type ArbOpportunity struct {
	ID             string
	Pair           MatchedPair
	Route          string
	Cost           float64 // summed two-leg average fill price
	ProfitPercent  float64 // (1 - Cost) * 100
	Size           float64 // achievable size across both legs
	MaxSize        float64
	PriceBreakdown string
	DetectedAt     time.Time
}

// HedgeMapping binds a venue market to a derivatives underlying so the hedge
// scanner can price it with a probability model.
type HedgeMapping struct {
	MarketID         string  `json:"market_id"`
	UnderlyingSymbol string  `json:"underlying_symbol"`
	Strike           float64 `json:"strike"`
	Expiry           string  `json:"expiry"` // ISO8601, UTC
	YesOnAbove       bool    `json:"yes_on_above"`
	EstVol           float64 `json:"est_vol,omitempty"`
	PayoffType       string  `json:"payoff_type,omitempty"` // "digital", "touch", "no_touch"
	Barrier          string  `json:"barrier,omitempty"`     // "up" or "down"
	Drift            float64 `json:"drift,omitempty"`
	VolTimeframe     string  `json:"vol_timeframe,omitempty"`
	VolLookbackDays  int     `json:"vol_lookback_days,omitempty"`
}

// HedgeOpportunity reports the edge between a venue quote and the
// model-implied probability of the same event.
type HedgeOpportunity struct {
	ID               string
	Market           Market
	UnderlyingSymbol string
	VenueYes         float64
	VenueNo          float64
	ImpliedYes       float64
	EdgePercent      float64 // (ImpliedYes - VenueYes) * 100
	UnderlyingPrice  float64
	Strike           float64
	Expiry           string
	FundingRate      *float64
	Note             string
	ProbSource       string // "digital", "touch", "no_touch"
	BarrierDirection string // set for touch/no_touch
	DetectedAt       time.Time
}

// RebalanceSignal flags a short-horizon price dislocation versus the EMA
// baseline, corroborated by a recent large trade.
type RebalanceSignal struct {
	ID            string
	Market        Market
	Direction     string // "short_yes" or "short_no"
	CurrentYes    float64
	BaselineYes   float64
	Delta         float64
	TradeNotional float64
	WindowSeconds int
	Reason        string
	DetectedAt    time.Time
}

// TailOpportunity is a near-resolution sweep candidate: YES priced close to 1
// with little time left until settlement.
type TailOpportunity struct {
	ID                     string
	Market                 Market
	YesPrice               float64
	MaxSweepSize           float64
	Notional               float64
	ExpectedYieldPercent   float64
	AnnualizedYieldPercent float64
	HoursToResolve         float64
	RiskFlags              []string
	DetectedAt             time.Time
}
