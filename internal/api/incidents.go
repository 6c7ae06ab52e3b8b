package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/EyasDmour/vehicle-tracker/internal/db"
	"github.com/EyasDmour/vehicle-tracker/internal/dispatch"
	"github.com/EyasDmour/vehicle-tracker/internal/events"
	"github.com/EyasDmour/vehicle-tracker/internal/routing"
)

type incidentRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Status      string  `json:"status"`
	Priority    string  `json:"priority"`
}

func (s *Server) handleIncidents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		var incidents []db.Incident
		var err error
		if r.URL.Query().Get("open") == "true" {
			incidents, err = s.db.GetOpenIncidents()
		} else {
			incidents, err = s.db.GetAllIncidents()
		}
		if err != nil {
			s.writeJSONError(w, http.StatusInternalServerError,
				fmt.Sprintf("Failed to retrieve incidents: %v", err))
			return
		}
		s.writeJSON(w, incidents)

	case http.MethodPost:
		s.createIncident(w, r)

	default:
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) decodeIncidentRequest(w http.ResponseWriter, r *http.Request) (*db.Incident, bool) {
	var req incidentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return nil, false
	}
	if req.Title == "" {
		s.writeJSONError(w, http.StatusBadRequest, "title is required")
		return nil, false
	}
	if req.Latitude < -90 || req.Latitude > 90 || req.Longitude < -180 || req.Longitude > 180 {
		s.writeJSONError(w, http.StatusBadRequest, "coordinates out of range")
		return nil, false
	}

	statusName := req.Status
	if statusName == "" {
		statusName = "open"
	}
	status, err := s.db.GetIncidentStatusByName(statusName)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Unknown status %q", statusName))
		return nil, false
	}

	priorityName := req.Priority
	if priorityName == "" {
		priorityName = "medium"
	}
	priorities, err := s.db.GetIncidentPriorities()
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve priorities: %v", err))
		return nil, false
	}
	priorityID := 0
	for _, p := range priorities {
		if p.Name == priorityName {
			priorityID = p.ID
			break
		}
	}
	if priorityID == 0 {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Unknown priority %q", priorityName))
		return nil, false
	}

	return &db.Incident{
		Title:       req.Title,
		Description: req.Description,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		StatusID:    status.ID,
		PriorityID:  priorityID,
	}, true
}

func (s *Server) createIncident(w http.ResponseWriter, r *http.Request) {
	incident, ok := s.decodeIncidentRequest(w, r)
	if !ok {
		return
	}

	if err := s.db.CreateIncident(incident); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to create incident: %v", err))
		return
	}

	created, err := s.db.GetIncident(incident.ID)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to reload incident: %v", err))
		return
	}

	s.hub.Publish(events.TopicIncident, created)
	s.writeJSON(w, created)
}

func (s *Server) handleIncident(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid incident ID")
		return
	}

	switch r.Method {
	case http.MethodGet:
		incident, err := s.db.GetIncident(id)
		if err != nil {
			s.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("Incident %d not found", id))
			return
		}
		s.writeJSON(w, incident)

	case http.MethodPut:
		incident, ok := s.decodeIncidentRequest(w, r)
		if !ok {
			return
		}
		incident.ID = id
		if err := s.db.UpdateIncident(incident); err != nil {
			s.writeJSONError(w, http.StatusNotFound,
				fmt.Sprintf("Failed to update incident: %v", err))
			return
		}
		updated, err := s.db.GetIncident(id)
		if err != nil {
			s.writeJSONError(w, http.StatusInternalServerError,
				fmt.Sprintf("Failed to reload incident: %v", err))
			return
		}
		s.hub.Publish(events.TopicIncident, updated)
		s.writeJSON(w, updated)

	case http.MethodDelete:
		if err := s.db.DeleteIncident(id); err != nil {
			s.writeJSONError(w, http.StatusNotFound,
				fmt.Sprintf("Failed to delete incident: %v", err))
			return
		}
		s.dropDispatchSession(id)
		s.writeJSON(w, map[string]string{"status": "deleted"})

	default:
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) closeIncident(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id, ok := pathID(r)
	if !ok {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid incident ID")
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if req.Status == "" {
		req.Status = "resolved"
	}
	if req.Status != "resolved" && req.Status != "closed" {
		s.writeJSONError(w, http.StatusBadRequest, "status must be resolved or closed")
		return
	}

	if err := s.db.CloseIncident(id, req.Status); err != nil {
		s.writeJSONError(w, http.StatusNotFound,
			fmt.Sprintf("Failed to close incident: %v", err))
		return
	}

	s.dropDispatchSession(id)

	incident, err := s.db.GetIncident(id)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to reload incident: %v", err))
		return
	}

	s.hub.Publish(events.TopicIncident, incident)
	s.writeJSON(w, incident)
}

func (s *Server) listIncidentStatuses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	statuses, err := s.db.GetIncidentStatuses()
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve statuses: %v", err))
		return
	}
	s.writeJSON(w, statuses)
}

func (s *Server) listIncidentPriorities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	priorities, err := s.db.GetIncidentPriorities()
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve priorities: %v", err))
		return
	}
	s.writeJSON(w, priorities)
}

// liveFleetSource adapts the live position table to the dispatch ranker.
type liveFleetSource struct {
	db *db.DB
}

func (f *liveFleetSource) Snapshot(ctx context.Context) ([]dispatch.Vehicle, error) {
	positions, err := f.db.GetLivePositions()
	if err != nil {
		return nil, err
	}

	fleet := make([]dispatch.Vehicle, 0, len(positions))
	for _, p := range positions {
		driverName := ""
		if p.DriverName != nil {
			driverName = *p.DriverName
		}
		fleet = append(fleet, dispatch.Vehicle{
			ID:          p.VehicleID,
			PlateNumber: p.PlateNumber,
			Make:        p.Make,
			Model:       p.Model,
			DriverName:  driverName,
			Status:      p.StatusName,
			Position:    &routing.Point{Latitude: p.Latitude, Longitude: p.Longitude},
		})
	}
	return fleet, nil
}

// hubAssigner performs assignments against the database and streams the
// refreshed incident list to SSE clients afterwards.
type hubAssigner struct {
	db  *db.DB
	hub *events.Hub
}

func (a *hubAssigner) Assign(_ context.Context, incidentID, vehicleID int, statusID *int) error {
	return a.db.AssignVehicle(incidentID, vehicleID, statusID)
}

func (a *hubAssigner) ReloadIncidents(_ context.Context) error {
	incidents, err := a.db.GetAllIncidents()
	if err != nil {
		return err
	}
	a.hub.Publish(events.TopicIncident, incidents)
	return nil
}

// showNearestVehicles ranks the fleet against an incident in one shot,
// without opening a dispatch session.
func (s *Server) showNearestVehicles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id, ok := pathID(r)
	if !ok {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid incident ID")
		return
	}

	incident, err := s.db.GetIncident(id)
	if err != nil {
		s.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("Incident %d not found", id))
		return
	}

	source := &liveFleetSource{db: s.db}
	fleet, err := source.Snapshot(r.Context())
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to read fleet positions: %v", err))
		return
	}

	eligible := dispatch.EligibleCandidates(fleet)
	if limit := s.cfg.GetDispatchBatchLimit(); len(eligible) > limit {
		eligible = eligible[:limit]
	}

	ranked := dispatch.Rank(
		r.Context(),
		s.router,
		routing.Point{Latitude: incident.Latitude, Longitude: incident.Longitude},
		eligible,
		s.cfg.GetUrgencySeconds(),
	)
	s.writeJSON(w, ranked)
}

// dispatchSession returns the selection machine for an incident, creating
// it on first use.
func (s *Server) dispatchSession(incidentID int) (*dispatch.Session, error) {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	if session, ok := s.dispatchSessions[incidentID]; ok {
		return session, nil
	}

	incident, err := s.db.GetIncident(incidentID)
	if err != nil {
		return nil, err
	}

	session := dispatch.NewSession(
		incidentID,
		routing.Point{Latitude: incident.Latitude, Longitude: incident.Longitude},
		&liveFleetSource{db: s.db},
		s.router,
		&hubAssigner{db: s.db, hub: s.hub},
		s.cfg.GetUrgencySeconds(),
	)
	s.dispatchSessions[incidentID] = session
	return session, nil
}

func (s *Server) dropDispatchSession(incidentID int) {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()
	if session, ok := s.dispatchSessions[incidentID]; ok {
		session.Close()
		delete(s.dispatchSessions, incidentID)
	}
}

type dispatchStateResponse struct {
	IncidentID    int                  `json:"incident_id"`
	State         dispatch.State       `json:"state"`
	Candidates    []dispatch.Candidate `json:"candidates"`
	HighlightedID *int                 `json:"highlighted_id,omitempty"`
}

func (s *Server) dispatchStateResponse(incidentID int, session *dispatch.Session) dispatchStateResponse {
	resp := dispatchStateResponse{
		IncidentID: incidentID,
		State:      session.State(),
		Candidates: session.Candidates(),
	}
	if id, ok := session.Highlighted(); ok {
		resp.HighlightedID = &id
	}
	return resp
}

func (s *Server) showDispatchState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id, ok := pathID(r)
	if !ok {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid incident ID")
		return
	}

	session, err := s.dispatchSession(id)
	if err != nil {
		s.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("Incident %d not found", id))
		return
	}
	s.writeJSON(w, s.dispatchStateResponse(id, session))
}

func (s *Server) dispatchSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id, ok := pathID(r)
	if !ok {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid incident ID")
		return
	}

	session, err := s.dispatchSession(id)
	if err != nil {
		s.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("Incident %d not found", id))
		return
	}

	auto := r.URL.Query().Get("auto") == "true"
	if err := session.Search(r.Context(), auto); err != nil {
		switch {
		case errors.Is(err, dispatch.ErrNoEligibleCandidates):
			s.writeJSONError(w, http.StatusConflict, "No eligible vehicles to dispatch")
		case errors.Is(err, dispatch.ErrSuperseded):
			s.writeJSONError(w, http.StatusConflict, "Search superseded by a newer request")
		default:
			s.writeJSONError(w, http.StatusInternalServerError,
				fmt.Sprintf("Search failed: %v", err))
		}
		return
	}

	s.hub.Publish(events.TopicDispatch, s.dispatchStateResponse(id, session))
	s.writeJSON(w, s.dispatchStateResponse(id, session))
}

func (s *Server) dispatchHighlight(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id, ok := pathID(r)
	if !ok {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid incident ID")
		return
	}

	var req struct {
		VehicleID int `json:"vehicle_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	session, err := s.dispatchSession(id)
	if err != nil {
		s.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("Incident %d not found", id))
		return
	}

	if err := session.ToggleHighlight(req.VehicleID); err != nil {
		if errors.Is(err, dispatch.ErrInvalidState) {
			s.writeJSONError(w, http.StatusConflict, "No candidate list is being presented")
		} else {
			s.writeJSONError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	s.writeJSON(w, s.dispatchStateResponse(id, session))
}

func (s *Server) dispatchConfirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id, ok := pathID(r)
	if !ok {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid incident ID")
		return
	}

	var req struct {
		StatusID *int `json:"status_id"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	session, err := s.dispatchSession(id)
	if err != nil {
		s.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("Incident %d not found", id))
		return
	}

	if err := session.Confirm(r.Context(), req.StatusID); err != nil {
		switch {
		case errors.Is(err, dispatch.ErrNoHighlight):
			s.writeJSONError(w, http.StatusConflict, "No candidate highlighted")
		case errors.Is(err, dispatch.ErrInvalidState):
			s.writeJSONError(w, http.StatusConflict, "No candidate list is being presented")
		default:
			s.writeJSONError(w, http.StatusInternalServerError,
				fmt.Sprintf("Assignment failed: %v", err))
		}
		return
	}

	resp := s.dispatchStateResponse(id, session)
	s.hub.Publish(events.TopicDispatch, resp)
	s.dropDispatchSession(id)
	s.writeJSON(w, resp)
}

func (s *Server) dispatchCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id, ok := pathID(r)
	if !ok {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid incident ID")
		return
	}

	session, err := s.dispatchSession(id)
	if err != nil {
		s.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("Incident %d not found", id))
		return
	}

	if err := session.Cancel(); err != nil {
		s.writeJSONError(w, http.StatusConflict, "No candidate list is being presented")
		return
	}

	s.writeJSON(w, s.dispatchStateResponse(id, session))
}
