package db

import (
	"testing"
)

// Helper functions for creating pointer values
func strPtr(s string) *string {
	return &s
}

func floatPtr(f float64) *float64 {
	return &f
}

func intPtr(i int) *int {
	return &i
}

// createTestVehicle inserts a vehicle in the named status and returns it.
func createTestVehicle(t *testing.T, db *DB, plate, statusName string) *Vehicle {
	t.Helper()

	status, err := db.GetVehicleStatusByName(statusName)
	if err != nil {
		t.Fatalf("GetVehicleStatusByName failed: %v", err)
	}

	vehicle := &Vehicle{
		PlateNumber: plate,
		Make:        "Toyota",
		Model:       "Hilux",
		ModelYear:   intPtr(2022),
		StatusID:    status.ID,
	}

	if err := db.CreateVehicle(vehicle); err != nil {
		t.Fatalf("CreateVehicle failed: %v", err)
	}

	return vehicle
}

// createTestIncident inserts an open, medium-priority incident at the given
// coordinates and returns it.
func createTestIncident(t *testing.T, db *DB, title string, lat, lon float64) *Incident {
	t.Helper()

	status, err := db.GetIncidentStatusByName("open")
	if err != nil {
		t.Fatalf("GetIncidentStatusByName failed: %v", err)
	}

	priorities, err := db.GetIncidentPriorities()
	if err != nil {
		t.Fatalf("GetIncidentPriorities failed: %v", err)
	}
	if len(priorities) == 0 {
		t.Fatal("no incident priorities seeded")
	}

	incident := &Incident{
		Title:      title,
		Latitude:   lat,
		Longitude:  lon,
		StatusID:   status.ID,
		PriorityID: priorities[0].ID,
	}

	if err := db.CreateIncident(incident); err != nil {
		t.Fatalf("CreateIncident failed: %v", err)
	}

	return incident
}
