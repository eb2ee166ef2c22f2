package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigitalProbInUnitInterval(t *testing.T) {
	p, ok := DigitalProb(100, 150, 0.1, 1.0)
	require.True(t, ok)
	assert.Greater(t, p, 0.0)
	assert.Less(t, p, 1.0)
}

func TestDigitalProbHigherStrikeLessLikely(t *testing.T) {
	near, ok := DigitalProb(100, 110, 0.2, 0.5)
	require.True(t, ok)
	far, ok := DigitalProb(100, 200, 0.2, 0.5)
	require.True(t, ok)
	assert.Greater(t, near, far)
}

func TestDigitalProbInvalidInputs(t *testing.T) {
	cases := []struct {
		name                      string
		spot, strike, years, vol float64
	}{
		{"expired", 100, 150, 0, 1.0},
		{"negative time", 100, 150, -0.1, 1.0},
		{"zero spot", 0, 150, 0.1, 1.0},
		{"zero strike", 100, 0, 0.1, 1.0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, ok := DigitalProb(tc.spot, tc.strike, tc.years, tc.vol)
			assert.False(t, ok)
		})
	}
}

func TestDigitalProbVolFloor(t *testing.T) {
	// Zero vol is clamped rather than rejected; far-below strike with spot
	// above it resolves to ~certainty.
	p, ok := DigitalProb(100, 50, 0.1, 0)
	require.True(t, ok)
	assert.InDelta(t, 1.0, p, 1e-6)
}

func TestOneTouchCloserBarrierMoreLikely(t *testing.T) {
	close, ok := OneTouchProb(100, 140, 0.2, 0.2, 0, BarrierUp)
	require.True(t, ok)
	far, ok := OneTouchProb(100, 200, 0.2, 0.2, 0, BarrierUp)
	require.True(t, ok)

	assert.GreaterOrEqual(t, close, 0.0)
	assert.LessOrEqual(t, close, 1.0)
	assert.GreaterOrEqual(t, far, 0.0)
	assert.LessOrEqual(t, far, 1.0)
	assert.Greater(t, close, far)
}

func TestOneTouchDownDirection(t *testing.T) {
	nearer, ok := OneTouchProb(100, 90, 0.2, 0.2, 0, BarrierDown)
	require.True(t, ok)
	farther, ok := OneTouchProb(100, 70, 0.2, 0.2, 0, BarrierDown)
	require.True(t, ok)
	assert.Greater(t, nearer, farther)
}

func TestNoTouchComplementsOneTouch(t *testing.T) {
	cases := []struct {
		name                        string
		spot, barrier, years, vol float64
		dir                         BarrierDirection
	}{
		{"up mid vol", 100, 120, 0.2, 0.4, BarrierUp},
		{"up near barrier", 100, 105, 0.5, 0.6, BarrierUp},
		{"down", 100, 80, 0.3, 0.5, BarrierDown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			touch, ok := OneTouchProb(tc.spot, tc.barrier, tc.years, tc.vol, 0, tc.dir)
			require.True(t, ok)
			noTouch, ok := NoTouchProb(tc.spot, tc.barrier, tc.years, tc.vol, 0, tc.dir)
			require.True(t, ok)
			assert.InDelta(t, 1.0, touch+noTouch, 1e-3)
		})
	}
}

func TestOneTouchInvalidInputs(t *testing.T) {
	_, ok := OneTouchProb(100, 120, 0, 0.4, 0, BarrierUp)
	assert.False(t, ok)
	_, ok = OneTouchProb(100, 120, 0.2, 0, 0, BarrierUp)
	assert.False(t, ok)
	_, ok = OneTouchProb(0, 120, 0.2, 0.4, 0, BarrierUp)
	assert.False(t, ok)
	_, ok = OneTouchProb(100, 0, 0.2, 0.4, 0, BarrierUp)
	assert.False(t, ok)
}

func TestOneTouchWithDriftStaysClamped(t *testing.T) {
	p, ok := OneTouchProb(100, 101, 1.0, 2.0, 0.5, BarrierUp)
	require.True(t, ok)
	assert.GreaterOrEqual(t, p, 0.0)
	assert.LessOrEqual(t, p, 1.0)
}
