package pricing

import "math"

// minVol is the numerical floor applied to annualized volatility before it is
// used as a divisor.
const minVol = 1e-6

// BarrierDirection selects which way the barrier lies relative to spot.
type BarrierDirection string

const (
	BarrierUp   BarrierDirection = "up"
	BarrierDown BarrierDirection = "down"
)

// DigitalProb approximates the probability that spot finishes above strike at
// expiry under a driftless log-normal process: Phi(d2) with
// d2 = (ln(S/K) - sigma^2 T / 2) / (sigma sqrt(T)).
// Returns ok=false when time to expiry, spot, or strike are non-positive.
func DigitalProb(spot, strike, years, vol float64) (float64, bool) {
	if spot <= 0 || strike <= 0 || years <= 0 {
		return 0, false
	}
	sigma := math.Max(vol, minVol)
	denom := sigma * math.Sqrt(years)
	if denom <= 0 {
		return 0, false
	}
	d2 := (math.Log(spot/strike) - 0.5*sigma*sigma*years) / denom
	return normCDF(d2), true
}

// OneTouchProb approximates the probability that spot ever crosses barrier
// before expiry, using the reflection-principle closed form under a
// log-normal process with annualized drift. A "down" barrier is handled by
// reflecting through the reciprocal of spot and barrier.
// The result is clamped to [0, 1]. Returns ok=false on invalid inputs.
func OneTouchProb(spot, barrier, years, vol, drift float64, dir BarrierDirection) (float64, bool) {
	if spot <= 0 || barrier <= 0 || years <= 0 || vol <= 0 {
		return 0, false
	}

	mu := drift
	sigma := vol
	if dir == BarrierDown {
		spot, barrier = 1/spot, 1/barrier
	}

	lnRatio := math.Log(spot / barrier)
	denom := sigma * math.Sqrt(years)
	if denom == 0 {
		return 0, false
	}

	d1 := (lnRatio + (mu+0.5*sigma*sigma)*years) / denom
	d2 := (lnRatio + (mu-0.5*sigma*sigma)*years) / denom
	// Drift correction for the mirrored path weight.
	kappa := 2 * mu / (sigma * sigma)

	reflect := math.Pow(barrier/spot, kappa)
	prob := normCDF(-d2) + reflect*normCDF(d1)
	return clamp01(prob), true
}

// NoTouchProb is the complement of OneTouchProb.
func NoTouchProb(spot, barrier, years, vol, drift float64, dir BarrierDirection) (float64, bool) {
	touch, ok := OneTouchProb(spot, barrier, years, vol, drift, dir)
	if !ok {
		return 0, false
	}
	return clamp01(1 - touch), true
}

func normCDF(x float64) float64 {
	return 0.5 * (1.0 + math.Erf(x/math.Sqrt2))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
