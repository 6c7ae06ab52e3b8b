package db

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// Status is a named lookup row shared by the vehicle and incident status
// tables.
type Status struct {
	ID   int    `json:"id"`
	GUID string `json:"guid"`
	Name string `json:"name"`
}

// Priority is an incident priority lookup row. Higher level means more
// urgent.
type Priority struct {
	ID    int    `json:"id"`
	GUID  string `json:"guid"`
	Name  string `json:"name"`
	Level int    `json:"level"`
}

func (db *DB) statuses(table string) ([]Status, error) {
	rows, err := db.DB.Query(fmt.Sprintf(`SELECT id, guid, name FROM %s ORDER BY id ASC`, table))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	var statuses []Status
	for rows.Next() {
		var status Status
		if err := rows.Scan(&status.ID, &status.GUID, &status.Name); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", table, err)
		}
		statuses = append(statuses, status)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", table, err)
	}

	return statuses, nil
}

// GetVehicleStatuses retrieves all vehicle statuses
func (db *DB) GetVehicleStatuses() ([]Status, error) {
	return db.statuses("vehicle_statuses")
}

// GetIncidentStatuses retrieves all incident statuses
func (db *DB) GetIncidentStatuses() ([]Status, error) {
	return db.statuses("incident_statuses")
}

// GetIncidentPriorities retrieves all incident priorities ordered by level
func (db *DB) GetIncidentPriorities() ([]Priority, error) {
	rows, err := db.DB.Query(`SELECT id, guid, name, level FROM incident_priorities ORDER BY level ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query incident priorities: %w", err)
	}
	defer rows.Close()

	var priorities []Priority
	for rows.Next() {
		var priority Priority
		if err := rows.Scan(&priority.ID, &priority.GUID, &priority.Name, &priority.Level); err != nil {
			return nil, fmt.Errorf("failed to scan incident priority: %w", err)
		}
		priorities = append(priorities, priority)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating incident priorities: %w", err)
	}

	return priorities, nil
}

// GetVehicleStatusByName looks up a vehicle status row by its name.
func (db *DB) GetVehicleStatusByName(name string) (*Status, error) {
	var status Status
	err := db.DB.QueryRow(
		`SELECT id, guid, name FROM vehicle_statuses WHERE name = ?`, name,
	).Scan(&status.ID, &status.GUID, &status.Name)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("vehicle status %q not found", name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vehicle status: %w", err)
	}

	return &status, nil
}

// GetIncidentStatusByName looks up an incident status row by its name.
func (db *DB) GetIncidentStatusByName(name string) (*Status, error) {
	var status Status
	err := db.DB.QueryRow(
		`SELECT id, guid, name FROM incident_statuses WHERE name = ?`, name,
	).Scan(&status.ID, &status.GUID, &status.Name)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("incident status %q not found", name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get incident status: %w", err)
	}

	return &status, nil
}

// CreateVehicleStatus inserts a new vehicle status with a fresh GUID.
func (db *DB) CreateVehicleStatus(name string) (*Status, error) {
	status := Status{GUID: uuid.NewString(), Name: name}

	result, err := db.DB.Exec(
		`INSERT INTO vehicle_statuses (guid, name) VALUES (?, ?)`,
		status.GUID, status.Name,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create vehicle status: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert ID: %w", err)
	}

	status.ID = int(id)
	return &status, nil
}

// CreateIncidentPriority inserts a new incident priority with a fresh GUID.
func (db *DB) CreateIncidentPriority(name string, level int) (*Priority, error) {
	priority := Priority{GUID: uuid.NewString(), Name: name, Level: level}

	result, err := db.DB.Exec(
		`INSERT INTO incident_priorities (guid, name, level) VALUES (?, ?, ?)`,
		priority.GUID, priority.Name, priority.Level,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create incident priority: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert ID: %w", err)
	}

	priority.ID = int(id)
	return &priority, nil
}
