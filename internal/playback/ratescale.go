package playback

import "math"

// Anchor pairs a linear control position with a playback rate multiplier.
type Anchor struct {
	Pos  float64 `json:"pos"`
	Rate float64 `json:"rate"`
}

// RateScale maps a linear control position (0-100) onto a playback rate via
// linear interpolation in log-rate space between bracketing anchors. The log
// mapping makes low multipliers easier to select precisely than high ones.
type RateScale struct {
	anchors       []Anchor
	snapThreshold float64
}

// DefaultRateScale places 1x at a quarter of the control range, with
// doublings at each further quarter.
func DefaultRateScale() RateScale {
	return NewRateScale([]Anchor{
		{Pos: 0, Rate: 0.5},
		{Pos: 25, Rate: 1},
		{Pos: 50, Rate: 2},
		{Pos: 75, Rate: 4},
		{Pos: 100, Rate: 8},
	}, 4)
}

// ScaleForRange builds a five-anchor scale spanning minRate to maxRate,
// with rates log-evenly spaced so each quarter of the control multiplies
// the rate by the same factor. The default rate range reproduces
// DefaultRateScale exactly.
func ScaleForRange(minRate, maxRate, snapThreshold float64) RateScale {
	const anchorCount = 5
	anchors := make([]Anchor, anchorCount)
	for i := range anchors {
		t := float64(i) / float64(anchorCount-1)
		logRate := math.Log(minRate) + t*(math.Log(maxRate)-math.Log(minRate))
		anchors[i] = Anchor{Pos: t * 100, Rate: math.Exp(logRate)}
	}
	return NewRateScale(anchors, snapThreshold)
}

// NewRateScale builds a RateScale from anchors sorted ascending by position.
// At least two anchors are required; fewer panics, as a misconfigured scale
// is a programming error.
func NewRateScale(anchors []Anchor, snapThreshold float64) RateScale {
	if len(anchors) < 2 {
		panic("ratescale: need at least two anchors")
	}
	return RateScale{anchors: anchors, snapThreshold: snapThreshold}
}

// MinRate returns the lowest selectable rate.
func (s RateScale) MinRate() float64 { return s.anchors[0].Rate }

// MaxRate returns the highest selectable rate.
func (s RateScale) MaxRate() float64 { return s.anchors[len(s.anchors)-1].Rate }

// PositionToRate converts a control position to a rate multiplier.
func (s RateScale) PositionToRate(pos float64) float64 {
	first := s.anchors[0]
	last := s.anchors[len(s.anchors)-1]
	if pos < first.Pos {
		pos = first.Pos
	}
	if pos > last.Pos {
		pos = last.Pos
	}

	lower, upper := first, last
	for i := 0; i < len(s.anchors)-1; i++ {
		if pos >= s.anchors[i].Pos && pos <= s.anchors[i+1].Pos {
			lower = s.anchors[i]
			upper = s.anchors[i+1]
			break
		}
	}

	t := (pos - lower.Pos) / (upper.Pos - lower.Pos)
	logRate := math.Log(lower.Rate) + t*(math.Log(upper.Rate)-math.Log(lower.Rate))
	return math.Exp(logRate)
}

// RateToPosition converts a rate multiplier back to a control position.
// It is the inverse of PositionToRate: the same interpolation run backward.
func (s RateScale) RateToPosition(rate float64) float64 {
	first := s.anchors[0]
	last := s.anchors[len(s.anchors)-1]
	if rate < first.Rate {
		rate = first.Rate
	}
	if rate > last.Rate {
		rate = last.Rate
	}

	lower, upper := first, last
	for i := 0; i < len(s.anchors)-1; i++ {
		if rate >= s.anchors[i].Rate && rate <= s.anchors[i+1].Rate {
			lower = s.anchors[i]
			upper = s.anchors[i+1]
			break
		}
	}

	t := (math.Log(rate) - math.Log(lower.Rate)) / (math.Log(upper.Rate) - math.Log(lower.Rate))
	return lower.Pos + t*(upper.Pos-lower.Pos)
}

// NearestAnchor returns the anchor within the snap threshold of the given
// control position, giving the control detents at common multipliers.
func (s RateScale) NearestAnchor(pos float64) (Anchor, bool) {
	for _, a := range s.anchors {
		if math.Abs(pos-a.Pos) <= s.snapThreshold {
			return a, true
		}
	}
	return Anchor{}, false
}

// ClampRate limits a requested rate to the selectable range.
func (s RateScale) ClampRate(rate float64) float64 {
	if rate < s.MinRate() {
		return s.MinRate()
	}
	if rate > s.MaxRate() {
		return s.MaxRate()
	}
	return rate
}
