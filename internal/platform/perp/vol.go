package perp

import "math"

const secondsPerYear = 365.0 * 24 * 3600

// RealizedVolFromCloses computes annualized realized volatility as the
// sample standard deviation of log returns over consecutive closes, scaled
// by the number of bars per year. ok is false when fewer than three closes
// (two returns) are available or the result is not finite.
func RealizedVolFromCloses(closes []float64, barSeconds float64) (float64, bool) {
	if barSeconds <= 0 || len(closes) < 3 {
		return 0, false
	}

	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		prev, cur := closes[i-1], closes[i]
		if prev <= 0 || cur <= 0 {
			continue
		}
		returns = append(returns, math.Log(cur/prev))
	}
	if len(returns) < 2 {
		return 0, false
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var sq float64
	for _, r := range returns {
		d := r - mean
		sq += d * d
	}
	variance := sq / float64(len(returns)-1)

	vol := math.Sqrt(variance) * math.Sqrt(secondsPerYear/barSeconds)
	if math.IsNaN(vol) || math.IsInf(vol, 0) {
		return 0, false
	}
	return vol, true
}
