package dispatch

import (
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/EyasDmour/vehicle-tracker/internal/monitoring"
	"github.com/EyasDmour/vehicle-tracker/internal/routing"
)

// State is the dispatch selection machine's position.
type State string

const (
	// StateIdle means no search has run, or the last one was cancelled.
	StateIdle State = "idle"
	// StateSearching means routing lookups are in flight.
	StateSearching State = "searching"
	// StatePresenting means a ranked candidate list is shown.
	StatePresenting State = "presenting"
	// StateConfirmed means the assignment call succeeded.
	StateConfirmed State = "confirmed"
)

var (
	// ErrNoEligibleCandidates is returned when no vehicle has a known
	// position and a dispatchable status.
	ErrNoEligibleCandidates = errors.New("no eligible vehicles to dispatch")
	// ErrNoHighlight is returned by Confirm when no candidate is highlighted.
	ErrNoHighlight = errors.New("no candidate highlighted")
	// ErrInvalidState is returned when an operation is not legal in the
	// machine's current state.
	ErrInvalidState = errors.New("operation not valid in current state")
	// ErrSuperseded is returned when a newer search started before this
	// one finished; its result was discarded.
	ErrSuperseded = errors.New("search superseded by a newer request")
)

// FleetSource provides a snapshot of every vehicle's current position and
// status, refreshed out of band by the telemetry path.
type FleetSource interface {
	Snapshot(ctx context.Context) ([]Vehicle, error)
}

// Assigner performs the assignment side effect and refreshes the incident
// list after success.
type Assigner interface {
	Assign(ctx context.Context, incidentID, vehicleID int, statusID *int) error
	ReloadIncidents(ctx context.Context) error
}

// StateChange is delivered to subscribers on every machine transition and
// highlight change.
type StateChange struct {
	State         State       `json:"state"`
	Candidates    []Candidate `json:"candidates"`
	HighlightedID *int        `json:"highlighted_id,omitempty"`
}

// Session drives the dispatch flow for one incident. Construct one when the
// operator opens the flow, discard it when the flow closes or the incident
// changes; a stale session's in-flight lookups can then never leak into the
// new one.
type Session struct {
	incidentID     int
	incident       routing.Point
	fleet          FleetSource
	router         Router
	assigner       Assigner
	urgencySeconds float64

	mu          sync.Mutex
	state       State
	candidates  []Candidate
	highlighted *int
	generation  uint64
	subscribers map[string]chan StateChange
}

// NewSession creates an Idle dispatch session for the given incident.
func NewSession(incidentID int, incident routing.Point, fleet FleetSource, router Router, assigner Assigner, urgencySeconds float64) *Session {
	return &Session{
		incidentID:     incidentID,
		incident:       incident,
		fleet:          fleet,
		router:         router,
		assigner:       assigner,
		urgencySeconds: urgencySeconds,
		state:          StateIdle,
		subscribers:    make(map[string]chan StateChange),
	}
}

func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

// Subscribe registers a state-change consumer.
func (s *Session) Subscribe() (string, <-chan StateChange) {
	id := randomID()
	ch := make(chan StateChange, 16)
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

// publish delivers the current machine position to all subscribers without
// blocking. Callers must hold s.mu.
func (s *Session) publish() {
	change := StateChange{
		State:         s.state,
		Candidates:    append([]Candidate(nil), s.candidates...),
		HighlightedID: s.highlighted,
	}
	for _, ch := range s.subscribers {
		select {
		case ch <- change:
		default:
		}
	}
}

// State returns the machine's current position.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Candidates returns the ranked candidate list from the last search.
func (s *Session) Candidates() []Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Candidate(nil), s.candidates...)
}

// Highlighted returns the highlighted candidate's vehicle ID, if any.
func (s *Session) Highlighted() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.highlighted == nil {
		return 0, false
	}
	return *s.highlighted, true
}

// Search ranks the fleet against the incident and presents candidates.
// Auto mode pre-highlights the top-ranked candidate; manual mode leaves the
// highlight empty for the operator to browse. A search that finds no
// eligible vehicle returns ErrNoEligibleCandidates and the machine returns
// to Idle. A search superseded by a newer one discards its result and
// returns ErrSuperseded.
func (s *Session) Search(ctx context.Context, auto bool) error {
	s.mu.Lock()
	s.generation++
	token := s.generation
	s.state = StateSearching
	s.highlighted = nil
	s.publish()
	s.mu.Unlock()

	fleet, err := s.fleet.Snapshot(ctx)
	if err != nil {
		return s.failSearch(token, fmt.Errorf("failed to read fleet positions: %w", err))
	}

	eligible := EligibleCandidates(fleet)
	if len(eligible) == 0 {
		return s.failSearch(token, ErrNoEligibleCandidates)
	}

	ranked := Rank(ctx, s.router, s.incident, eligible, s.urgencySeconds)

	s.mu.Lock()
	defer s.mu.Unlock()
	if token != s.generation {
		return ErrSuperseded
	}

	s.candidates = ranked
	s.state = StatePresenting
	if auto {
		id := ranked[0].VehicleID
		s.highlighted = &id
	}
	s.publish()
	return nil
}

// failSearch returns the machine to Idle unless the search was superseded.
func (s *Session) failSearch(token uint64, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token != s.generation {
		return ErrSuperseded
	}
	s.state = StateIdle
	s.candidates = nil
	s.publish()
	return err
}

// ToggleHighlight highlights the given candidate, or clears the highlight
// when it is already highlighted. Only legal while presenting.
func (s *Session) ToggleHighlight(vehicleID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePresenting {
		return ErrInvalidState
	}

	found := false
	for _, c := range s.candidates {
		if c.VehicleID == vehicleID {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("vehicle %d is not a candidate", vehicleID)
	}

	if s.highlighted != nil && *s.highlighted == vehicleID {
		s.highlighted = nil
	} else {
		id := vehicleID
		s.highlighted = &id
	}
	s.publish()
	return nil
}

// Cancel abandons the presented candidates and returns to Idle.
func (s *Session) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePresenting {
		return ErrInvalidState
	}
	s.state = StateIdle
	s.candidates = nil
	s.highlighted = nil
	s.publish()
	return nil
}

// Confirm assigns the highlighted candidate to the incident. On success the
// incident list is reloaded and the machine moves to Confirmed. On failure
// the machine stays in Presenting so the operator can retry; the assignment
// is never silently reissued.
func (s *Session) Confirm(ctx context.Context, statusID *int) error {
	s.mu.Lock()
	if s.state != StatePresenting {
		s.mu.Unlock()
		return ErrInvalidState
	}
	if s.highlighted == nil {
		s.mu.Unlock()
		return ErrNoHighlight
	}
	vehicleID := *s.highlighted
	s.mu.Unlock()

	if err := s.assigner.Assign(ctx, s.incidentID, vehicleID, statusID); err != nil {
		return fmt.Errorf("failed to assign vehicle %d: %w", vehicleID, err)
	}

	if err := s.assigner.ReloadIncidents(ctx); err != nil {
		// The assignment itself succeeded; a reload failure only delays
		// the list refresh.
		monitoring.Logf("failed to reload incidents after assignment: %v", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateConfirmed
	s.publish()
	return nil
}

// Close unsubscribes all consumers. The session must not be used afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
}
