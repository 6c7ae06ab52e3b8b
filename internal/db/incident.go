package db

import (
	"database/sql"
	"fmt"
	"time"
)

// Incident represents a reported event that may need a vehicle dispatched.
type Incident struct {
	ID           int       `json:"id"`
	Title        string    `json:"title"`
	Description  *string   `json:"description"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	StatusID     int       `json:"status_id"`
	StatusName   string    `json:"status"`
	PriorityID   int       `json:"priority_id"`
	PriorityName string    `json:"priority"`
	VehicleID    *int      `json:"vehicle_id"`
	PlateNumber  *string   `json:"plate_number"`
	ReportedAt   time.Time `json:"reported_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

const incidentSelect = `
	SELECT
		i.id, i.title, i.description, i.latitude, i.longitude,
		i.status_id, s.name, i.priority_id, p.name,
		i.vehicle_id, v.plate_number,
		i.reported_at, i.created_at, i.updated_at
	FROM incidents i
	JOIN incident_statuses s ON s.id = i.status_id
	JOIN incident_priorities p ON p.id = i.priority_id
	LEFT JOIN vehicles v ON v.id = i.vehicle_id
`

func scanIncident(row interface{ Scan(...any) error }) (*Incident, error) {
	var incident Incident
	var reportedAtUnix, createdAtUnix, updatedAtUnix int64

	err := row.Scan(
		&incident.ID,
		&incident.Title,
		&incident.Description,
		&incident.Latitude,
		&incident.Longitude,
		&incident.StatusID,
		&incident.StatusName,
		&incident.PriorityID,
		&incident.PriorityName,
		&incident.VehicleID,
		&incident.PlateNumber,
		&reportedAtUnix,
		&createdAtUnix,
		&updatedAtUnix,
	)
	if err != nil {
		return nil, err
	}

	incident.ReportedAt = time.Unix(reportedAtUnix, 0)
	incident.CreatedAt = time.Unix(createdAtUnix, 0)
	incident.UpdatedAt = time.Unix(updatedAtUnix, 0)
	return &incident, nil
}

// CreateIncident creates a new incident in the database
func (db *DB) CreateIncident(incident *Incident) error {
	query := `
		INSERT INTO incidents (title, description, latitude, longitude, status_id, priority_id, reported_at)
		VALUES (?, ?, ?, ?, ?, ?, strftime('%s','now'))
	`

	result, err := db.DB.Exec(
		query,
		incident.Title,
		incident.Description,
		incident.Latitude,
		incident.Longitude,
		incident.StatusID,
		incident.PriorityID,
	)
	if err != nil {
		return fmt.Errorf("failed to create incident: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}

	incident.ID = int(id)
	return nil
}

// UpdateIncident updates an incident's details. The assigned vehicle is
// left alone; dispatch and close own that column.
func (db *DB) UpdateIncident(incident *Incident) error {
	query := `
		UPDATE incidents SET
			title = ?,
			description = ?,
			latitude = ?,
			longitude = ?,
			status_id = ?,
			priority_id = ?,
			updated_at = strftime('%s','now')
		WHERE id = ?
	`

	result, err := db.DB.Exec(
		query,
		incident.Title,
		incident.Description,
		incident.Latitude,
		incident.Longitude,
		incident.StatusID,
		incident.PriorityID,
		incident.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update incident: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("incident not found")
	}

	return nil
}

// GetIncident retrieves an incident by ID
func (db *DB) GetIncident(id int) (*Incident, error) {
	incident, err := scanIncident(db.DB.QueryRow(incidentSelect+" WHERE i.id = ?", id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("incident not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get incident: %w", err)
	}
	return incident, nil
}

// GetAllIncidents retrieves all incidents, most recently reported first.
func (db *DB) GetAllIncidents() ([]Incident, error) {
	rows, err := db.DB.Query(incidentSelect + " ORDER BY i.reported_at DESC, i.id DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query incidents: %w", err)
	}
	defer rows.Close()

	var incidents []Incident
	for rows.Next() {
		incident, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan incident: %w", err)
		}
		incidents = append(incidents, *incident)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating incidents: %w", err)
	}

	return incidents, nil
}

// GetOpenIncidents retrieves incidents that are not resolved or closed.
func (db *DB) GetOpenIncidents() ([]Incident, error) {
	rows, err := db.DB.Query(incidentSelect + `
		WHERE s.name NOT IN ('resolved', 'closed')
		ORDER BY p.level DESC, i.reported_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query open incidents: %w", err)
	}
	defer rows.Close()

	var incidents []Incident
	for rows.Next() {
		incident, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan incident: %w", err)
		}
		incidents = append(incidents, *incident)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating incidents: %w", err)
	}

	return incidents, nil
}

// AssignVehicle attaches a vehicle to an incident and moves the incident to
// the given status (or 'dispatched' when statusID is nil). The vehicle is
// marked busy so it stops appearing in later searches.
func (db *DB) AssignVehicle(incidentID, vehicleID int, statusID *int) error {
	tx, err := db.DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var currentVehicle *int
	err = tx.QueryRow(`SELECT vehicle_id FROM incidents WHERE id = ?`, incidentID).Scan(&currentVehicle)
	if err == sql.ErrNoRows {
		return fmt.Errorf("incident not found")
	}
	if err != nil {
		return fmt.Errorf("failed to get incident: %w", err)
	}
	if currentVehicle != nil {
		return fmt.Errorf("incident %d already has vehicle %d assigned", incidentID, *currentVehicle)
	}

	var result sql.Result
	if statusID != nil {
		result, err = tx.Exec(`
			UPDATE incidents SET vehicle_id = ?, status_id = ?, updated_at = strftime('%s','now')
			WHERE id = ?
		`, vehicleID, *statusID, incidentID)
	} else {
		result, err = tx.Exec(`
			UPDATE incidents SET
				vehicle_id = ?,
				status_id = (SELECT id FROM incident_statuses WHERE name = 'dispatched'),
				updated_at = strftime('%s','now')
			WHERE id = ?
		`, vehicleID, incidentID)
	}
	if err != nil {
		return fmt.Errorf("failed to assign vehicle: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("incident not found")
	}

	_, err = tx.Exec(`
		UPDATE vehicles SET
			status_id = (SELECT id FROM vehicle_statuses WHERE name = 'busy'),
			updated_at = strftime('%s','now')
		WHERE id = ?
	`, vehicleID)
	if err != nil {
		return fmt.Errorf("failed to mark vehicle busy: %w", err)
	}

	return tx.Commit()
}

// CloseIncident moves an incident to the named terminal status and releases
// its vehicle back to the available pool.
func (db *DB) CloseIncident(incidentID int, statusName string) error {
	tx, err := db.DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var vehicleID *int
	err = tx.QueryRow(`SELECT vehicle_id FROM incidents WHERE id = ?`, incidentID).Scan(&vehicleID)
	if err == sql.ErrNoRows {
		return fmt.Errorf("incident not found")
	}
	if err != nil {
		return fmt.Errorf("failed to get incident: %w", err)
	}

	result, err := tx.Exec(`
		UPDATE incidents SET
			vehicle_id = NULL,
			status_id = (SELECT id FROM incident_statuses WHERE name = ?),
			updated_at = strftime('%s','now')
		WHERE id = ?
	`, statusName, incidentID)
	if err != nil {
		return fmt.Errorf("failed to close incident: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("incident not found")
	}

	if vehicleID != nil {
		_, err = tx.Exec(`
			UPDATE vehicles SET
				status_id = (SELECT id FROM vehicle_statuses WHERE name = 'available'),
				updated_at = strftime('%s','now')
			WHERE id = ?
		`, *vehicleID)
		if err != nil {
			return fmt.Errorf("failed to release vehicle: %w", err)
		}
	}

	return tx.Commit()
}

// DeleteIncident deletes an incident from the database
func (db *DB) DeleteIncident(id int) error {
	result, err := db.DB.Exec(`DELETE FROM incidents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete incident: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("incident not found")
	}

	return nil
}
