package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/EyasDmour/vehicle-tracker/internal/db"
)

type driverRequest struct {
	Name          string  `json:"name"`
	Phone         *string `json:"phone"`
	LicenseNumber *string `json:"license_number"`
}

func (s *Server) handleDrivers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		drivers, err := s.db.GetAllDrivers()
		if err != nil {
			s.writeJSONError(w, http.StatusInternalServerError,
				fmt.Sprintf("Failed to retrieve drivers: %v", err))
			return
		}
		s.writeJSON(w, drivers)

	case http.MethodPost:
		var req driverRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.Name == "" {
			s.writeJSONError(w, http.StatusBadRequest, "name is required")
			return
		}

		driver := &db.Driver{Name: req.Name, Phone: req.Phone, LicenseNumber: req.LicenseNumber}
		if err := s.db.CreateDriver(driver); err != nil {
			s.writeJSONError(w, http.StatusInternalServerError,
				fmt.Sprintf("Failed to create driver: %v", err))
			return
		}
		s.writeJSON(w, driver)

	default:
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) handleDriver(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid driver ID")
		return
	}

	switch r.Method {
	case http.MethodGet:
		driver, err := s.db.GetDriver(id)
		if err != nil {
			s.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("Driver %d not found", id))
			return
		}
		s.writeJSON(w, driver)

	case http.MethodPut:
		var req driverRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.Name == "" {
			s.writeJSONError(w, http.StatusBadRequest, "name is required")
			return
		}

		driver := &db.Driver{ID: id, Name: req.Name, Phone: req.Phone, LicenseNumber: req.LicenseNumber}
		if err := s.db.UpdateDriver(driver); err != nil {
			s.writeJSONError(w, http.StatusNotFound,
				fmt.Sprintf("Failed to update driver: %v", err))
			return
		}
		s.writeJSON(w, driver)

	case http.MethodDelete:
		if err := s.db.DeleteDriver(id); err != nil {
			s.writeJSONError(w, http.StatusNotFound,
				fmt.Sprintf("Failed to delete driver: %v", err))
			return
		}
		s.writeJSON(w, map[string]string{"status": "deleted"})

	default:
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}
