package playback

import (
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// LoadOutcome classifies the result of loading a trail.
type LoadOutcome string

const (
	// LoadInstalled means the trail was installed and the cursor reset.
	LoadInstalled LoadOutcome = "installed"
	// LoadInsufficient means fewer than 2 usable samples were found.
	// This is a normal empty outcome, not an error.
	LoadInsufficient LoadOutcome = "insufficient_data"
	// LoadFailed means the storage fetch errored.
	LoadFailed LoadOutcome = "failed"
	// LoadSuperseded means a newer load started before this one finished;
	// its result was discarded.
	LoadSuperseded LoadOutcome = "superseded"
)

// LoadResult reports the outcome of a Load call. Failures are data, not
// panics; the caller decides how to surface them.
type LoadResult struct {
	Outcome     LoadOutcome `json:"outcome"`
	Message     string      `json:"message,omitempty"`
	SampleCount int         `json:"sample_count"`
}

// TrailSource fetches recorded samples for a vehicle, ordered by timestamp
// ascending. Implemented by the history store.
type TrailSource interface {
	GetRange(ctx context.Context, vehicleID int, from, to time.Time) ([]RawSample, error)
}

// EventKind distinguishes session event payloads.
type EventKind string

const (
	// EventPosition carries an interpolated position update.
	EventPosition EventKind = "position"
	// EventPlayState carries a play/pause transition.
	EventPlayState EventKind = "playstate"
)

// Event is delivered to session subscribers on position and play-state
// changes. Exactly one payload field is set, matching Kind.
type Event struct {
	Kind      EventKind `json:"kind"`
	Position  *Position `json:"position,omitempty"`
	PlayState *bool     `json:"playing,omitempty"`
}

// Session owns one vehicle's playback state: the installed trail, the
// cursor, the rate, and the play flag. Construct one per selection and
// discard it when the selection changes; nothing is shared between sessions.
type Session struct {
	source TrailSource
	scale  RateScale

	mu          sync.Mutex
	trail       *Trail
	cursor      time.Duration
	rate        float64
	playing     bool
	generation  uint64
	subscribers map[string]chan Event
}

// NewSession creates a playback session with no trail installed, reading
// trails from source and clamping rates to scale.
func NewSession(source TrailSource, scale RateScale) *Session {
	return &Session{
		source:      source,
		scale:       scale,
		rate:        1,
		subscribers: make(map[string]chan Event),
	}
}

// randomID generates a random subscriber ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

// Subscribe registers an event consumer. Events are delivered on a buffered
// channel; a consumer that falls behind misses intermediate updates rather
// than stalling the session.
func (s *Session) Subscribe() (string, <-chan Event) {
	id := randomID()
	ch := make(chan Event, 16)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (s *Session) Unsubscribe(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.subscribers[id]; ok {
		close(ch)
		delete(s.subscribers, id)
	}
}

// publish delivers an event to all subscribers without blocking.
// Callers must hold s.mu.
func (s *Session) publish(e Event) {
	for _, ch := range s.subscribers {
		select {
		case ch <- e:
		default:
		}
	}
}

func (s *Session) publishPosition(pos Position) {
	p := pos
	s.publish(Event{Kind: EventPosition, Position: &p})
}

func (s *Session) publishPlayState(playing bool) {
	p := playing
	s.publish(Event{Kind: EventPlayState, PlayState: &p})
}

// Load fetches the vehicle's samples in [from, to] and installs them as the
// active trail. Any previous trail is discarded and playback stops. If a
// newer Load starts before this one finishes, the late result is discarded
// and LoadSuperseded is returned.
func (s *Session) Load(ctx context.Context, vehicleID int, from, to time.Time) LoadResult {
	s.mu.Lock()
	s.generation++
	token := s.generation
	// Stop the old trail's playback immediately; a stale clock must not
	// keep emitting positions for a superseded selection.
	if s.playing {
		s.playing = false
		s.publishPlayState(false)
	}
	s.mu.Unlock()

	raw, err := s.source.GetRange(ctx, vehicleID, from, to)

	s.mu.Lock()
	defer s.mu.Unlock()

	if token != s.generation {
		return LoadResult{Outcome: LoadSuperseded, Message: "load superseded by a newer request"}
	}

	if err != nil {
		return LoadResult{Outcome: LoadFailed, Message: fmt.Sprintf("failed to load trail: %v", err)}
	}

	trail := NewTrail(vehicleID, raw)
	if !trail.Playable() {
		// No trail is installed on insufficient data.
		s.trail = nil
		s.cursor = 0
		return LoadResult{
			Outcome:     LoadInsufficient,
			Message:     "not enough data points in selected range",
			SampleCount: len(trail.Samples),
		}
	}

	s.trail = trail
	s.cursor = 0
	s.publishPosition(trail.PositionAt(0))

	return LoadResult{Outcome: LoadInstalled, SampleCount: len(trail.Samples)}
}

// Trail returns the installed trail, or nil.
func (s *Session) Trail() *Trail {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trail
}

// Playing reports whether the playback clock is running.
func (s *Session) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// Rate returns the current playback rate multiplier.
func (s *Session) Rate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rate
}

// SetRate sets the playback rate, clamped to the session's rate scale.
// Takes effect on the next tick.
func (s *Session) SetRate(rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rate = s.scale.ClampRate(rate)
}

// Cursor returns the elapsed offset from the trail start.
func (s *Session) Cursor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// PositionAt reports the interpolated position at the current cursor.
// Returns false when no trail is installed.
func (s *Session) Position() (Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.trail == nil {
		return Position{}, false
	}
	return s.trail.PositionAt(s.cursor), true
}

// Seek moves the cursor to a normalized position in [0, 1], clamped, and
// re-emits the position immediately. The play state is unchanged.
func (s *Session) Seek(normalized float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.trail == nil {
		return
	}
	if normalized < 0 {
		normalized = 0
	}
	if normalized > 1 {
		normalized = 1
	}
	s.cursor = time.Duration(normalized * float64(s.trail.Duration()))
	s.publishPosition(s.trail.PositionAt(s.cursor))
}

// SkipForward advances the cursor by fraction of the total duration,
// clamped to the trail end.
func (s *Session) SkipForward(fraction float64) {
	s.skip(fraction)
}

// SkipBackward moves the cursor back by fraction of the total duration,
// clamped to the trail start.
func (s *Session) SkipBackward(fraction float64) {
	s.skip(-fraction)
}

func (s *Session) skip(fraction float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.trail == nil {
		return
	}
	duration := s.trail.Duration()
	s.cursor += time.Duration(fraction * float64(duration))
	if s.cursor < 0 {
		s.cursor = 0
	}
	if s.cursor > duration {
		s.cursor = duration
	}
	s.publishPosition(s.trail.PositionAt(s.cursor))
}

// Play starts the playback clock from the current cursor. No-op when
// already playing or when no playable trail is installed.
func (s *Session) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.trail == nil || !s.trail.Playable() || s.playing {
		return
	}
	s.playing = true
	s.publishPlayState(true)
}

// Pause stops the playback clock; the cursor is retained. Idempotent.
func (s *Session) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pauseLocked()
}

func (s *Session) pauseLocked() {
	if !s.playing {
		return
	}
	s.playing = false
	s.publishPlayState(false)
}

// Stop pauses playback, resets the cursor to the start, and re-emits the
// initial position.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pauseLocked()
	s.cursor = 0
	if s.trail != nil {
		s.publishPosition(s.trail.PositionAt(0))
	}
}

// Tick advances the cursor by delta scaled by the playback rate and emits a
// position update. Reaching the end of the trail clamps the cursor, emits
// one final update, and pauses. Purely delta-driven: uneven tick intervals
// change smoothness, never correctness.
func (s *Session) Tick(delta time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.playing || s.trail == nil {
		return
	}

	s.cursor += time.Duration(float64(delta) * s.rate)
	duration := s.trail.Duration()

	if s.cursor >= duration {
		s.cursor = duration
		s.publishPosition(s.trail.PositionAt(s.cursor))
		s.pauseLocked()
		return
	}

	s.publishPosition(s.trail.PositionAt(s.cursor))
}

// Close unsubscribes all consumers. The session must not be used afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = false
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
}
