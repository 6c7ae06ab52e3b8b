package playback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPositionToRateAnchors(t *testing.T) {
	scale := DefaultRateScale()

	tests := []struct {
		pos  float64
		rate float64
	}{
		{0, 0.5},
		{25, 1},
		{50, 2},
		{75, 4},
		{100, 8},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.rate, scale.PositionToRate(tt.pos), 1e-9,
			"PositionToRate(%v)", tt.pos)
	}
}

func TestScaleForRangeDefaultsMatchDefaultScale(t *testing.T) {
	scale := ScaleForRange(0.5, 8, 4)
	want := DefaultRateScale()

	for pos := 0.0; pos <= 100; pos += 5 {
		assert.InDelta(t, want.PositionToRate(pos), scale.PositionToRate(pos), 1e-9,
			"PositionToRate(%v)", pos)
	}
	a, ok := scale.NearestAnchor(27)
	require.True(t, ok)
	assert.Equal(t, Anchor{Pos: 25, Rate: 1}, a)
}

func TestScaleForRangeCustomBounds(t *testing.T) {
	scale := ScaleForRange(0.25, 16, 2)

	assert.InDelta(t, 0.25, scale.MinRate(), 1e-9)
	assert.InDelta(t, 16, scale.MaxRate(), 1e-9)
	// Each quarter of the control multiplies the rate by the same factor.
	assert.InDelta(t, 2, scale.PositionToRate(50), 1e-9)
	assert.InDelta(t, 16, scale.ClampRate(1e9), 1e-9)

	_, ok := scale.NearestAnchor(22)
	assert.False(t, ok, "22 is outside a 2-unit snap window around 25")
}

func TestPositionToRateIsLogarithmicBetweenAnchors(t *testing.T) {
	scale := DefaultRateScale()

	// Halfway between the 1x and 2x anchors the log-space midpoint is sqrt(2).
	assert.InDelta(t, 1.41421356, scale.PositionToRate(37.5), 1e-6)
	// Halfway between 4x and 8x it is 4*sqrt(2).
	assert.InDelta(t, 5.65685424, scale.PositionToRate(87.5), 1e-6)
}

func TestPositionToRateClampsRange(t *testing.T) {
	scale := DefaultRateScale()
	assert.InDelta(t, 0.5, scale.PositionToRate(-10), 1e-9)
	assert.InDelta(t, 8, scale.PositionToRate(250), 1e-9)
}

func TestRateToPositionRoundTrip(t *testing.T) {
	scale := DefaultRateScale()
	for pos := 0.0; pos <= 100; pos += 2.5 {
		rate := scale.PositionToRate(pos)
		back := scale.RateToPosition(rate)
		assert.InDelta(t, pos, back, 1e-6, "round trip at pos %v", pos)
	}
}

func TestNearestAnchorSnapping(t *testing.T) {
	scale := DefaultRateScale()

	a, ok := scale.NearestAnchor(27)
	require.True(t, ok)
	assert.Equal(t, Anchor{Pos: 25, Rate: 1}, a)

	a, ok = scale.NearestAnchor(96)
	require.True(t, ok)
	assert.Equal(t, Anchor{Pos: 100, Rate: 8}, a)

	_, ok = scale.NearestAnchor(37.5)
	assert.False(t, ok, "midpoint between anchors should not snap")
}

func TestClampRate(t *testing.T) {
	scale := DefaultRateScale()
	assert.Equal(t, 0.5, scale.ClampRate(0.1))
	assert.Equal(t, 8.0, scale.ClampRate(30))
	assert.Equal(t, 3.0, scale.ClampRate(3))
}

func TestNewRateScaleRequiresTwoAnchors(t *testing.T) {
	assert.Panics(t, func() {
		NewRateScale([]Anchor{{Pos: 0, Rate: 1}}, 4)
	})
}
