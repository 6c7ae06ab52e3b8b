// Package playback turns a discrete, irregularly sampled location trail into
// a continuous playback experience: interpolated position, speed and progress
// at any elapsed offset, plus a rate-scaled playback clock.
package playback

import "time"

// MinTrailDuration is the floor applied to a trail's duration so that
// progress arithmetic never divides by zero when all samples share one
// timestamp.
const MinTrailDuration = time.Second

// Sample is a single usable position sample in a trail. Speed is km/h;
// samples with unknown speed carry 0.
type Sample struct {
	Timestamp time.Time
	Latitude  float64
	Longitude float64
	Speed     float64
}

// RawSample is a position sample as fetched from storage. Latitude and
// longitude may be absent; such samples are filtered out before playback.
type RawSample struct {
	Timestamp time.Time
	Latitude  *float64
	Longitude *float64
	Speed     *float64
}

// Trail is an ordered, finite sequence of samples for one vehicle.
// Samples are non-decreasing in timestamp; a uniform sampling interval is
// never assumed.
type Trail struct {
	VehicleID int
	Samples   []Sample
}

// NewTrail filters raw samples down to those with known coordinates and
// builds a Trail. Samples with unknown speed are kept with speed 0.
func NewTrail(vehicleID int, raw []RawSample) *Trail {
	samples := make([]Sample, 0, len(raw))
	for _, r := range raw {
		if r.Latitude == nil || r.Longitude == nil {
			continue
		}
		s := Sample{
			Timestamp: r.Timestamp,
			Latitude:  *r.Latitude,
			Longitude: *r.Longitude,
		}
		if r.Speed != nil {
			s.Speed = *r.Speed
		}
		samples = append(samples, s)
	}
	return &Trail{VehicleID: vehicleID, Samples: samples}
}

// Playable reports whether the trail has enough samples to interpolate.
func (t *Trail) Playable() bool {
	return len(t.Samples) >= 2
}

// Start returns the timestamp of the first sample.
func (t *Trail) Start() time.Time {
	return t.Samples[0].Timestamp
}

// End returns the timestamp of the last sample.
func (t *Trail) End() time.Time {
	return t.Samples[len(t.Samples)-1].Timestamp
}

// Duration returns the trail's time span, clamped to MinTrailDuration.
func (t *Trail) Duration() time.Duration {
	d := t.End().Sub(t.Start())
	if d < MinTrailDuration {
		return MinTrailDuration
	}
	return d
}

// Position is an interpolated point on a trail at some elapsed offset.
type Position struct {
	NormalizedPos float64   `json:"normalized_pos"`
	Index         int       `json:"index"`
	TotalSamples  int       `json:"total_samples"`
	Timestamp     time.Time `json:"timestamp"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	Speed         float64   `json:"speed"`
}

// PositionAt computes the interpolated position at the given elapsed offset
// from the trail start. The offset is clamped to [0, Duration].
//
// The bounding pair (p1, p2) straddles the absolute time; past the last
// sample it is (secondToLast, last), before the first it is (first, second).
// Latitude and longitude are a plain linear blend of the pair — no
// great-circle correction, which is fine for short segments. Speed is taken
// from the earlier sample rather than interpolated, avoiding speed-spike
// artifacts at segment boundaries.
func (t *Trail) PositionAt(offset time.Duration) Position {
	duration := t.Duration()
	if offset < 0 {
		offset = 0
	}
	if offset > duration {
		offset = duration
	}

	current := t.Start().Add(offset)

	p1 := t.Samples[0]
	p2 := t.Samples[1]
	p1Index := 0

	for i := 0; i < len(t.Samples)-1; i++ {
		t1 := t.Samples[i].Timestamp
		t2 := t.Samples[i+1].Timestamp

		if !current.Before(t1) && !current.After(t2) {
			p1 = t.Samples[i]
			p2 = t.Samples[i+1]
			p1Index = i
			break
		}

		// Past this segment: advance the pair.
		if current.After(t2) {
			p1 = t.Samples[i+1]
			next := i + 2
			if next > len(t.Samples)-1 {
				next = len(t.Samples) - 1
			}
			p2 = t.Samples[next]
			p1Index = i + 1
		}
	}

	segment := p2.Timestamp.Sub(p1.Timestamp)
	fraction := 0.0
	if segment > 0 {
		fraction = float64(current.Sub(p1.Timestamp)) / float64(segment)
		if fraction < 0 {
			fraction = 0
		}
		if fraction > 1 {
			fraction = 1
		}
	}

	lat := p1.Latitude + (p2.Latitude-p1.Latitude)*fraction
	lon := p1.Longitude + (p2.Longitude-p1.Longitude)*fraction

	return Position{
		NormalizedPos: float64(offset) / float64(duration),
		Index:         p1Index,
		TotalSamples:  len(t.Samples),
		Timestamp:     current,
		Latitude:      lat,
		Longitude:     lon,
		Speed:         p1.Speed,
	}
}

// TravelledPath returns the cumulative path up to the given position: every
// sample from the start through the position's index, with the interpolated
// point appended. Points are [lat, lon] pairs.
func (t *Trail) TravelledPath(pos Position) [][2]float64 {
	path := make([][2]float64, 0, pos.Index+2)
	for i := 0; i <= pos.Index && i < len(t.Samples); i++ {
		path = append(path, [2]float64{t.Samples[i].Latitude, t.Samples[i].Longitude})
	}
	return append(path, [2]float64{pos.Latitude, pos.Longitude})
}
