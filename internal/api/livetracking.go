package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/EyasDmour/vehicle-tracker/internal/db"
	"github.com/EyasDmour/vehicle-tracker/internal/events"
)

type livePositionResponse struct {
	VehicleID   int      `json:"vehicle_id"`
	PlateNumber string   `json:"plate_number"`
	Make        string   `json:"make"`
	Model       string   `json:"model"`
	DriverName  *string  `json:"driver_name"`
	Status      string   `json:"status"`
	Latitude    float64  `json:"latitude"`
	Longitude   float64  `json:"longitude"`
	Speed       float64  `json:"speed"`
	Heading     *float64 `json:"heading"`
	Units       string   `json:"units"`
	UpdatedAt   string   `json:"updated_at"`
}

// handleLiveTracking ingests telemetry reports on POST and returns the
// current fleet snapshot on GET. Every report both updates the live table
// and appends to location history, so playback sees the same data the map
// does.
func (s *Server) handleLiveTracking(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listLivePositions(w, r)
	case http.MethodPost:
		s.ingestLivePosition(w, r)
	default:
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) livePositionToResponse(p db.LivePosition) livePositionResponse {
	return livePositionResponse{
		VehicleID:   p.VehicleID,
		PlateNumber: p.PlateNumber,
		Make:        p.Make,
		Model:       p.Model,
		DriverName:  p.DriverName,
		Status:      p.StatusName,
		Latitude:    p.Latitude,
		Longitude:   p.Longitude,
		Speed:       s.convertSpeed(p.SpeedKMPH),
		Heading:     p.Heading,
		Units:       s.units,
		UpdatedAt:   p.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func (s *Server) listLivePositions(w http.ResponseWriter, _ *http.Request) {
	positions, err := s.db.GetLivePositions()
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to fetch live positions")
		return
	}

	resp := make([]livePositionResponse, len(positions))
	for i, p := range positions {
		resp[i] = s.livePositionToResponse(p)
	}
	s.writeJSON(w, resp)
}

func (s *Server) showLivePosition(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id, ok := pathID(r)
	if !ok {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid vehicle ID")
		return
	}

	position, err := s.db.GetLivePosition(id)
	if err != nil {
		s.writeJSONError(w, http.StatusNotFound,
			fmt.Sprintf("No live position for vehicle %d", id))
		return
	}
	s.writeJSON(w, s.livePositionToResponse(*position))
}

func (s *Server) ingestLivePosition(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VehicleID  int       `json:"vehicle_id"`
		Latitude   float64   `json:"latitude"`
		Longitude  float64   `json:"longitude"`
		SpeedKMPH  float64   `json:"speed_kmph"`
		Heading    *float64  `json:"heading"`
		RecordedAt time.Time `json:"recorded_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.VehicleID < 1 {
		s.writeJSONError(w, http.StatusBadRequest, "vehicle_id is required")
		return
	}
	if req.Latitude < -90 || req.Latitude > 90 || req.Longitude < -180 || req.Longitude > 180 {
		s.writeJSONError(w, http.StatusBadRequest, "Coordinates out of range")
		return
	}
	if _, err := s.db.GetVehicle(req.VehicleID); err != nil {
		s.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("Vehicle %d not found", req.VehicleID))
		return
	}

	at := req.RecordedAt
	if at.IsZero() {
		at = s.clock.Now()
	}

	if err := s.db.UpsertLivePosition(req.VehicleID, req.Latitude, req.Longitude, req.SpeedKMPH, req.Heading, at); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to update live position")
		return
	}

	point := &db.LocationPoint{
		VehicleID:  req.VehicleID,
		Latitude:   &req.Latitude,
		Longitude:  &req.Longitude,
		SpeedKMPH:  &req.SpeedKMPH,
		Heading:    req.Heading,
		RecordedAt: at,
	}
	if err := s.db.RecordLocation(point); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to record location history")
		return
	}

	s.hub.Publish(events.TopicPosition, map[string]any{
		"vehicle_id":  req.VehicleID,
		"latitude":    req.Latitude,
		"longitude":   req.Longitude,
		"speed":       s.convertSpeed(req.SpeedKMPH),
		"heading":     req.Heading,
		"units":       s.units,
		"recorded_at": at.UTC().Format(time.RFC3339),
	})

	s.writeJSON(w, map[string]any{"status": "recorded", "vehicle_id": req.VehicleID})
}
