package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/EyasDmour/vehicle-tracker/internal/db"
	"github.com/EyasDmour/vehicle-tracker/internal/events"
	"github.com/EyasDmour/vehicle-tracker/internal/playback"
)

// dbTrailSource adapts the location history table to the playback engine.
type dbTrailSource struct {
	db *db.DB
}

func (t *dbTrailSource) GetRange(ctx context.Context, vehicleID int, from, to time.Time) ([]playback.RawSample, error) {
	points, err := t.db.GetLocationHistory(ctx, vehicleID, from, to)
	if err != nil {
		return nil, err
	}

	samples := make([]playback.RawSample, len(points))
	for i, p := range points {
		samples[i] = playback.RawSample{
			Timestamp: p.RecordedAt,
			Latitude:  p.Latitude,
			Longitude: p.Longitude,
			Speed:     p.SpeedKMPH,
		}
	}
	return samples, nil
}

// ensurePlaybackSession lazily creates the playback session and starts its
// tick driver. Session events are bridged onto the SSE hub so the UI gets
// position frames on the same stream as everything else.
func (s *Server) ensurePlaybackSession() *playback.Session {
	s.playbackMu.Lock()
	defer s.playbackMu.Unlock()

	if s.playbackSession != nil {
		return s.playbackSession
	}

	session := playback.NewSession(&dbTrailSource{db: s.db}, s.playbackScale)
	ctx, cancel := context.WithCancel(context.Background())
	s.playbackSession = session
	s.playbackCancel = cancel

	driver := playback.NewDriver(session, s.clock, s.cfg.GetTickInterval())
	go driver.Run(ctx)

	go func() {
		id, ch := session.Subscribe()
		defer session.Unsubscribe(id)
		for {
			select {
			case event, ok := <-ch:
				if !ok {
					return
				}
				s.hub.Publish(events.TopicPlayback, event)
			case <-ctx.Done():
				return
			}
		}
	}()

	return session
}

type playbackStatusResponse struct {
	Loaded      bool               `json:"loaded"`
	VehicleID   int                `json:"vehicle_id,omitempty"`
	SampleCount int                `json:"sample_count,omitempty"`
	Playing     bool               `json:"playing"`
	Rate        float64            `json:"rate"`
	SliderPos   float64            `json:"slider_position"`
	Position    *playback.Position `json:"position,omitempty"`
}

func (s *Server) playbackStatusResponse(session *playback.Session) playbackStatusResponse {
	resp := playbackStatusResponse{
		Playing:   session.Playing(),
		Rate:      session.Rate(),
		SliderPos: s.playbackScale.RateToPosition(session.Rate()),
	}
	if trail := session.Trail(); trail != nil {
		resp.Loaded = true
		resp.VehicleID = trail.VehicleID
		resp.SampleCount = len(trail.Samples)
	}
	if pos, ok := session.Position(); ok {
		resp.Position = &pos
	}
	return resp
}

func (s *Server) playbackLoad(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req struct {
		VehicleID int       `json:"vehicle_id"`
		From      time.Time `json:"from"`
		To        time.Time `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.VehicleID < 1 {
		s.writeJSONError(w, http.StatusBadRequest, "vehicle_id is required")
		return
	}
	if req.From.IsZero() || req.To.IsZero() || req.To.Before(req.From) {
		s.writeJSONError(w, http.StatusBadRequest, "from/to must form a valid range")
		return
	}
	if _, err := s.db.GetVehicle(req.VehicleID); err != nil {
		s.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("Vehicle %d not found", req.VehicleID))
		return
	}

	session := s.ensurePlaybackSession()
	result := session.Load(r.Context(), req.VehicleID, req.From, req.To)

	switch result.Outcome {
	case playback.LoadFailed:
		s.writeJSONError(w, http.StatusInternalServerError, result.Message)
	case playback.LoadSuperseded:
		s.writeJSONError(w, http.StatusConflict, "Load superseded by a newer request")
	default:
		s.writeJSON(w, result)
	}
}

// requirePlayback fetches the session if a trail is loaded, writing the
// error response otherwise.
func (s *Server) requirePlayback(w http.ResponseWriter) (*playback.Session, bool) {
	session := s.ensurePlaybackSession()
	if session.Trail() == nil {
		s.writeJSONError(w, http.StatusConflict, "No trail loaded")
		return nil, false
	}
	return session, true
}

func (s *Server) playbackPlay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	session, ok := s.requirePlayback(w)
	if !ok {
		return
	}
	session.Play()
	s.writeJSON(w, s.playbackStatusResponse(session))
}

func (s *Server) playbackPause(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	session, ok := s.requirePlayback(w)
	if !ok {
		return
	}
	session.Pause()
	s.writeJSON(w, s.playbackStatusResponse(session))
}

func (s *Server) playbackStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	session, ok := s.requirePlayback(w)
	if !ok {
		return
	}
	session.Stop()
	s.writeJSON(w, s.playbackStatusResponse(session))
}

func (s *Server) playbackSeek(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req struct {
		Position float64 `json:"position"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	session, ok := s.requirePlayback(w)
	if !ok {
		return
	}
	session.Seek(req.Position)
	s.writeJSON(w, s.playbackStatusResponse(session))
}

func (s *Server) playbackSkip(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req struct {
		Direction string  `json:"direction"`
		Fraction  float64 `json:"fraction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Fraction <= 0 {
		req.Fraction = 0.05
	}

	session, ok := s.requirePlayback(w)
	if !ok {
		return
	}

	switch req.Direction {
	case "forward":
		session.SkipForward(req.Fraction)
	case "backward":
		session.SkipBackward(req.Fraction)
	default:
		s.writeJSONError(w, http.StatusBadRequest, "direction must be forward or backward")
		return
	}
	s.writeJSON(w, s.playbackStatusResponse(session))
}

// playbackRate accepts either an explicit rate or a slider position, which
// is mapped through the logarithmic scale and snapped to nearby anchors.
func (s *Server) playbackRate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req struct {
		Rate      *float64 `json:"rate"`
		SliderPos *float64 `json:"slider_position"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Rate == nil && req.SliderPos == nil {
		s.writeJSONError(w, http.StatusBadRequest, "rate or slider_position is required")
		return
	}

	session := s.ensurePlaybackSession()

	var rate float64
	if req.Rate != nil {
		rate = s.playbackScale.ClampRate(*req.Rate)
	} else {
		pos := *req.SliderPos
		if anchor, ok := s.playbackScale.NearestAnchor(pos); ok {
			pos = anchor.Pos
		}
		rate = s.playbackScale.PositionToRate(pos)
	}

	session.SetRate(rate)
	s.writeJSON(w, s.playbackStatusResponse(session))
}

func (s *Server) playbackStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	session := s.ensurePlaybackSession()
	s.writeJSON(w, s.playbackStatusResponse(session))
}
