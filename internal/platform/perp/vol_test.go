package perp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeframeSeconds(t *testing.T) {
	cases := []struct {
		tf   string
		want float64
	}{
		{"1m", 60},
		{"15m", 900},
		{"1h", 3600},
		{"4h", 14400},
		{"1d", 86400},
		{"1w", 604800},
	}
	for _, tc := range cases {
		got, err := TimeframeSeconds(tc.tf)
		require.NoError(t, err, tc.tf)
		assert.Equal(t, tc.want, got, tc.tf)
	}

	for _, bad := range []string{"", "h", "0h", "-1h", "10x", "abc"} {
		_, err := TimeframeSeconds(bad)
		assert.Error(t, err, bad)
	}
}

func TestRealizedVolConstantPrices(t *testing.T) {
	closes := []float64{100, 100, 100, 100, 100}
	vol, ok := RealizedVolFromCloses(closes, 3600)
	require.True(t, ok)
	assert.Zero(t, vol)
}

func TestRealizedVolKnownSeries(t *testing.T) {
	// Alternating +1%/-1% moves: log returns alternate between
	// ln(1.01) and ln(1/1.01), mean 0, so the sample stdev is close to
	// |ln(1.01)| and annualization scales by sqrt(bars per year).
	closes := []float64{100}
	for i := 0; i < 40; i++ {
		if i%2 == 0 {
			closes = append(closes, closes[len(closes)-1]*1.01)
		} else {
			closes = append(closes, closes[len(closes)-1]/1.01)
		}
	}

	barSec := 86400.0
	vol, ok := RealizedVolFromCloses(closes, barSec)
	require.True(t, ok)

	perBar := math.Abs(math.Log(1.01))
	expected := perBar * math.Sqrt(365)
	assert.InDelta(t, expected, vol, expected*0.05)
}

func TestRealizedVolInsufficientData(t *testing.T) {
	_, ok := RealizedVolFromCloses(nil, 3600)
	assert.False(t, ok)

	_, ok = RealizedVolFromCloses([]float64{100, 101}, 3600)
	assert.False(t, ok)

	_, ok = RealizedVolFromCloses([]float64{100, 101, 102}, 0)
	assert.False(t, ok)

	// Non-positive closes contribute no returns.
	_, ok = RealizedVolFromCloses([]float64{100, 0, -5, 0}, 3600)
	assert.False(t, ok)
}
