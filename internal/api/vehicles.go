package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/EyasDmour/vehicle-tracker/internal/db"
	"github.com/EyasDmour/vehicle-tracker/internal/events"
)

type vehicleRequest struct {
	PlateNumber string `json:"plate_number"`
	Make        string `json:"make"`
	Model       string `json:"model"`
	ModelYear   *int   `json:"model_year"`
	Status      string `json:"status"`
	DriverID    *int   `json:"driver_id"`
}

func (s *Server) handleVehicles(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listVehicles(w, r)
	case http.MethodPost:
		s.createVehicle(w, r)
	default:
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) listVehicles(w http.ResponseWriter, r *http.Request) {
	vehicles, err := s.db.GetAllVehicles()
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve vehicles: %v", err))
		return
	}
	s.writeJSON(w, vehicles)
}

func (s *Server) listUnassignedVehicles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	vehicles, err := s.db.GetUnassignedVehicles()
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve unassigned vehicles: %v", err))
		return
	}
	s.writeJSON(w, vehicles)
}

func (s *Server) assignDriver(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id, ok := pathID(r)
	if !ok {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid vehicle ID")
		return
	}

	var req struct {
		DriverID *int `json:"driver_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.DriverID != nil {
		if _, err := s.db.GetDriver(*req.DriverID); err != nil {
			s.writeJSONError(w, http.StatusNotFound,
				fmt.Sprintf("Driver %d not found", *req.DriverID))
			return
		}
	}

	if err := s.db.AssignDriver(id, req.DriverID); err != nil {
		s.writeJSONError(w, http.StatusNotFound,
			fmt.Sprintf("Failed to assign driver: %v", err))
		return
	}

	updated, err := s.db.GetVehicle(id)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to reload vehicle: %v", err))
		return
	}
	s.hub.Publish(events.TopicVehicle, updated)
	s.writeJSON(w, updated)
}

func (s *Server) decodeVehicleRequest(w http.ResponseWriter, r *http.Request) (*db.Vehicle, bool) {
	var req vehicleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return nil, false
	}
	if req.PlateNumber == "" || req.Make == "" || req.Model == "" {
		s.writeJSONError(w, http.StatusBadRequest, "plate_number, make and model are required")
		return nil, false
	}

	statusName := req.Status
	if statusName == "" {
		statusName = "offline"
	}
	status, err := s.db.GetVehicleStatusByName(statusName)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Unknown status %q", statusName))
		return nil, false
	}

	return &db.Vehicle{
		PlateNumber: req.PlateNumber,
		Make:        req.Make,
		Model:       req.Model,
		ModelYear:   req.ModelYear,
		StatusID:    status.ID,
		DriverID:    req.DriverID,
	}, true
}

func (s *Server) createVehicle(w http.ResponseWriter, r *http.Request) {
	vehicle, ok := s.decodeVehicleRequest(w, r)
	if !ok {
		return
	}

	if err := s.db.CreateVehicle(vehicle); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to create vehicle: %v", err))
		return
	}

	created, err := s.db.GetVehicle(vehicle.ID)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to reload vehicle: %v", err))
		return
	}

	s.hub.Publish(events.TopicVehicle, created)
	s.writeJSON(w, created)
}

func (s *Server) handleVehicle(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid vehicle ID")
		return
	}

	switch r.Method {
	case http.MethodGet:
		vehicle, err := s.db.GetVehicle(id)
		if err != nil {
			s.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("Vehicle %d not found", id))
			return
		}
		s.writeJSON(w, vehicle)

	case http.MethodPut:
		vehicle, ok := s.decodeVehicleRequest(w, r)
		if !ok {
			return
		}
		vehicle.ID = id
		if err := s.db.UpdateVehicle(vehicle); err != nil {
			s.writeJSONError(w, http.StatusNotFound,
				fmt.Sprintf("Failed to update vehicle: %v", err))
			return
		}
		updated, err := s.db.GetVehicle(id)
		if err != nil {
			s.writeJSONError(w, http.StatusInternalServerError,
				fmt.Sprintf("Failed to reload vehicle: %v", err))
			return
		}
		s.hub.Publish(events.TopicVehicle, updated)
		s.writeJSON(w, updated)

	case http.MethodDelete:
		if err := s.db.DeleteVehicle(id); err != nil {
			s.writeJSONError(w, http.StatusNotFound,
				fmt.Sprintf("Failed to delete vehicle: %v", err))
			return
		}
		s.writeJSON(w, map[string]string{"status": "deleted"})

	default:
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) listVehicleStatuses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	statuses, err := s.db.GetVehicleStatuses()
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve statuses: %v", err))
		return
	}
	s.writeJSON(w, statuses)
}
