package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource returns canned samples, optionally blocking until released so
// tests can interleave loads.
type fakeSource struct {
	mu      sync.Mutex
	samples map[int][]RawSample
	err     error
	gate    chan struct{}
	calls   int
}

func (f *fakeSource) GetRange(ctx context.Context, vehicleID int, from, to time.Time) ([]RawSample, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gate
	f.gate = nil
	err := f.err
	samples := f.samples[vehicleID]
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return samples, nil
}

func rawSamples(samples ...Sample) []RawSample {
	raw := make([]RawSample, len(samples))
	for i, s := range samples {
		lat, lon, speed := s.Latitude, s.Longitude, s.Speed
		raw[i] = RawSample{Timestamp: s.Timestamp, Latitude: &lat, Longitude: &lon, Speed: &speed}
	}
	return raw
}

func loadedSession(t *testing.T) *Session {
	t.Helper()
	source := &fakeSource{samples: map[int][]RawSample{
		1: rawSamples(
			sampleAt(0, 0, 0, 0),
			sampleAt(10, 0, 0.001, 20),
			sampleAt(20, 0, 0.002, 40),
		),
	}}
	session := NewSession(source, DefaultRateScale())
	result := session.Load(context.Background(), 1, trailBase, trailBase.Add(time.Hour))
	require.Equal(t, LoadInstalled, result.Outcome)
	return session
}

func drainEvents(ch <-chan Event) []Event {
	var events []Event
	for {
		select {
		case e := <-ch:
			events = append(events, e)
		default:
			return events
		}
	}
}

func TestLoadInstallsTrail(t *testing.T) {
	session := loadedSession(t)
	defer session.Close()

	trail := session.Trail()
	require.NotNil(t, trail)
	assert.Equal(t, 3, len(trail.Samples))
	assert.Equal(t, time.Duration(0), session.Cursor())
}

func TestLoadInsufficientData(t *testing.T) {
	source := &fakeSource{samples: map[int][]RawSample{
		1: rawSamples(sampleAt(0, 1, 1, 5)),
	}}
	session := NewSession(source, DefaultRateScale())
	defer session.Close()

	result := session.Load(context.Background(), 1, trailBase, trailBase.Add(time.Hour))
	assert.Equal(t, LoadInsufficient, result.Outcome)
	assert.Equal(t, 1, result.SampleCount)
	assert.NotEmpty(t, result.Message)
	assert.Nil(t, session.Trail(), "no trail installed on insufficient data")
}

func TestLoadFetchFailure(t *testing.T) {
	source := &fakeSource{err: errors.New("storage offline")}
	session := NewSession(source, DefaultRateScale())
	defer session.Close()

	result := session.Load(context.Background(), 1, trailBase, trailBase.Add(time.Hour))
	assert.Equal(t, LoadFailed, result.Outcome)
	assert.Contains(t, result.Message, "storage offline")
	assert.Nil(t, session.Trail())
}

func TestStaleLoadIsDiscarded(t *testing.T) {
	gate := make(chan struct{})
	source := &fakeSource{
		gate: gate,
		samples: map[int][]RawSample{
			1: rawSamples(sampleAt(0, 9, 9, 0), sampleAt(10, 9, 9, 0)),
			2: rawSamples(sampleAt(0, 0, 0, 0), sampleAt(10, 0, 0.001, 20)),
		},
	}
	session := NewSession(source, DefaultRateScale())
	defer session.Close()

	resultA := make(chan LoadResult, 1)
	started := make(chan struct{})
	go func() {
		close(started)
		resultA <- session.Load(context.Background(), 1, trailBase, trailBase.Add(time.Hour))
	}()
	<-started
	// Give load A time to reach the gated fetch before load B starts.
	time.Sleep(10 * time.Millisecond)

	resultB := session.Load(context.Background(), 2, trailBase, trailBase.Add(time.Hour))
	require.Equal(t, LoadInstalled, resultB.Outcome)

	close(gate)
	a := <-resultA
	assert.Equal(t, LoadSuperseded, a.Outcome)

	// Only B's trail is installed.
	trail := session.Trail()
	require.NotNil(t, trail)
	assert.Equal(t, 2, trail.VehicleID)
}

func TestSeekClamping(t *testing.T) {
	session := loadedSession(t)
	defer session.Close()

	session.Seek(-0.5)
	atZero := session.Cursor()
	session.Seek(0)
	assert.Equal(t, session.Cursor(), atZero, "Seek(-0.5) must equal Seek(0)")

	session.Seek(1.5)
	atEnd := session.Cursor()
	session.Seek(1)
	assert.Equal(t, session.Cursor(), atEnd, "Seek(1.5) must equal Seek(1)")
	assert.Equal(t, session.Trail().Duration(), atEnd)
}

func TestSeekEmitsPositionImmediately(t *testing.T) {
	session := loadedSession(t)
	defer session.Close()

	id, ch := session.Subscribe()
	defer session.Unsubscribe(id)

	session.Seek(0.25)
	events := drainEvents(ch)
	require.Len(t, events, 1)
	require.Equal(t, EventPosition, events[0].Kind)
	assert.InDelta(t, 0.25, events[0].Position.NormalizedPos, 1e-9)
	assert.InDelta(t, 0.0005, events[0].Position.Longitude, 1e-12)
}

func TestSkipForwardAndBackward(t *testing.T) {
	session := loadedSession(t)
	defer session.Close()

	session.SkipForward(0.05)
	assert.Equal(t, time.Second, session.Cursor())

	session.SkipBackward(0.5)
	assert.Equal(t, time.Duration(0), session.Cursor(), "skip backward clamps at start")

	session.Seek(0.9)
	session.SkipForward(0.5)
	assert.Equal(t, session.Trail().Duration(), session.Cursor(), "skip forward clamps at end")
}

func TestPlayRequiresPlayableTrail(t *testing.T) {
	source := &fakeSource{}
	session := NewSession(source, DefaultRateScale())
	defer session.Close()

	session.Play()
	assert.False(t, session.Playing(), "Play with no trail is a no-op")
}

func TestPauseIsIdempotent(t *testing.T) {
	session := loadedSession(t)
	defer session.Close()
	session.Play()

	id, ch := session.Subscribe()
	defer session.Unsubscribe(id)

	session.Pause()
	afterOnce := session.Playing()
	eventsOnce := drainEvents(ch)

	session.Pause()
	assert.Equal(t, afterOnce, session.Playing())
	assert.Len(t, eventsOnce, 1)
	assert.Empty(t, drainEvents(ch), "second Pause emits nothing")
}

func TestSetRateClamped(t *testing.T) {
	session := loadedSession(t)
	defer session.Close()

	session.SetRate(100)
	assert.Equal(t, 8.0, session.Rate())
	session.SetRate(0.01)
	assert.Equal(t, 0.5, session.Rate())
	session.SetRate(2)
	assert.Equal(t, 2.0, session.Rate())
}

func TestTickAdvancesByScaledDelta(t *testing.T) {
	session := loadedSession(t)
	defer session.Close()

	session.SetRate(2)
	session.Play()
	session.Tick(time.Second)
	assert.Equal(t, 2*time.Second, session.Cursor())

	// Paused sessions ignore ticks.
	session.Pause()
	session.Tick(time.Second)
	assert.Equal(t, 2*time.Second, session.Cursor())
}

func TestTickReachingEndPauses(t *testing.T) {
	session := loadedSession(t)
	defer session.Close()

	session.Play()
	id, ch := session.Subscribe()
	defer session.Unsubscribe(id)

	session.Tick(time.Hour)

	assert.False(t, session.Playing(), "clock stops at trail end")
	assert.Equal(t, session.Trail().Duration(), session.Cursor())

	events := drainEvents(ch)
	require.Len(t, events, 2)
	assert.Equal(t, EventPosition, events[0].Kind)
	assert.Equal(t, 1.0, events[0].Position.NormalizedPos)
	require.Equal(t, EventPlayState, events[1].Kind)
	assert.False(t, *events[1].PlayState)
}

func TestStopResetsAndReEmits(t *testing.T) {
	session := loadedSession(t)
	defer session.Close()

	session.Seek(0.5)
	session.Play()

	id, ch := session.Subscribe()
	defer session.Unsubscribe(id)

	session.Stop()

	assert.False(t, session.Playing())
	assert.Equal(t, time.Duration(0), session.Cursor())

	events := drainEvents(ch)
	require.Len(t, events, 2)
	assert.Equal(t, EventPlayState, events[0].Kind)
	require.Equal(t, EventPosition, events[1].Kind)
	assert.Equal(t, 0.0, events[1].Position.NormalizedPos)
}

func TestLoadStopsRunningPlayback(t *testing.T) {
	session := loadedSession(t)
	defer session.Close()

	session.Play()
	require.True(t, session.Playing())

	result := session.Load(context.Background(), 1, trailBase, trailBase.Add(time.Hour))
	require.Equal(t, LoadInstalled, result.Outcome)
	assert.False(t, session.Playing(), "reload stops the old trail's clock")
	assert.Equal(t, time.Duration(0), session.Cursor())
}
