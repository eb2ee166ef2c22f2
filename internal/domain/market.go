package domain

import (
	"strconv"
	"time"
)

// Platform identifies the prediction-market venue a market belongs to.
type Platform string

const (
	PlatformPolymarket Platform = "polymarket"
	PlatformOpinion    Platform = "opinion"
)

// Market is the immutable metadata of a binary prediction market. It is
// populated by the venue listing clients and refreshed only by re-listing;
// the live feed never mutates it.
type Market struct {
	Platform    Platform
	ID          string
	Title       string
	ConditionID string
	EndDate     string // venue-provided, ISO8601 or numeric unix timestamp
	YesTokenID  string
	NoTokenID   string
	Category    string
	Tags        []string
	Volume24h   float64
	Liquidity   float64
}

// TokenID returns the outcome token id for the given side.
func (m Market) TokenID(outcome Outcome) string {
	if outcome == OutcomeYes {
		return m.YesTokenID
	}
	return m.NoTokenID
}

// ResolveTime parses EndDate into a UTC time. It accepts RFC 3339 strings as
// well as numeric unix timestamps in seconds or milliseconds.
func (m Market) ResolveTime() (time.Time, bool) {
	if m.EndDate == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, m.EndDate); err == nil {
		return t.UTC(), true
	}
	if ts, err := strconv.ParseFloat(m.EndDate, 64); err == nil {
		if ts > 1e11 {
			ts /= 1000.0
		}
		sec := int64(ts)
		nsec := int64((ts - float64(sec)) * float64(time.Second))
		return time.Unix(sec, nsec).UTC(), true
	}
	return time.Time{}, false
}

// Outcome names one side of a binary market.
type Outcome string

const (
	OutcomeYes Outcome = "yes"
	OutcomeNo  Outcome = "no"
)

// PriceQuote bundles the best buyable YES/NO prices of one market.
type PriceQuote struct {
	YesPrice     float64
	NoPrice      float64
	YesLiquidity float64
	NoLiquidity  float64
}
