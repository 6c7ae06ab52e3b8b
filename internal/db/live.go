package db

import (
	"fmt"
	"time"
)

// LivePosition is the most recent known fix for a vehicle, joined with the
// vehicle row so dispatch can filter on status without a second query.
type LivePosition struct {
	VehicleID   int       `json:"vehicle_id"`
	PlateNumber string    `json:"plate_number"`
	Make        string    `json:"make"`
	Model       string    `json:"model"`
	DriverName  *string   `json:"driver_name"`
	StatusName  string    `json:"status"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	SpeedKMPH   float64   `json:"speed_kmph"`
	Heading     *float64  `json:"heading"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UpsertLivePosition overwrites a vehicle's current fix.
func (db *DB) UpsertLivePosition(vehicleID int, latitude, longitude, speedKMPH float64, heading *float64, at time.Time) error {
	if at.IsZero() {
		at = time.Now()
	}

	_, err := db.DB.Exec(`
		INSERT INTO live_positions (vehicle_id, latitude, longitude, speed_kmph, heading, updated_at_ms)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(vehicle_id) DO UPDATE SET
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			speed_kmph = excluded.speed_kmph,
			heading = excluded.heading,
			updated_at_ms = excluded.updated_at_ms
	`, vehicleID, latitude, longitude, speedKMPH, heading, at.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to upsert live position: %w", err)
	}

	return nil
}

// GetLivePosition returns the current fix for one vehicle, or
// sql.ErrNoRows when the vehicle has never reported.
func (db *DB) GetLivePosition(vehicleID int) (*LivePosition, error) {
	row := db.DB.QueryRow(`
		SELECT
			l.vehicle_id, v.plate_number, v.make, v.model, d.name, s.name,
			l.latitude, l.longitude, l.speed_kmph, l.heading, l.updated_at_ms
		FROM live_positions l
		JOIN vehicles v ON v.id = l.vehicle_id
		JOIN vehicle_statuses s ON s.id = v.status_id
		LEFT JOIN drivers d ON d.id = v.driver_id
		WHERE l.vehicle_id = ?
	`, vehicleID)

	var position LivePosition
	var updatedAtMs int64

	err := row.Scan(
		&position.VehicleID,
		&position.PlateNumber,
		&position.Make,
		&position.Model,
		&position.DriverName,
		&position.StatusName,
		&position.Latitude,
		&position.Longitude,
		&position.SpeedKMPH,
		&position.Heading,
		&updatedAtMs,
	)
	if err != nil {
		return nil, err
	}

	position.UpdatedAt = time.UnixMilli(updatedAtMs)
	return &position, nil
}

// GetLivePositions returns the current fix for every vehicle that has one.
func (db *DB) GetLivePositions() ([]LivePosition, error) {
	rows, err := db.DB.Query(`
		SELECT
			l.vehicle_id, v.plate_number, v.make, v.model, d.name, s.name,
			l.latitude, l.longitude, l.speed_kmph, l.heading, l.updated_at_ms
		FROM live_positions l
		JOIN vehicles v ON v.id = l.vehicle_id
		JOIN vehicle_statuses s ON s.id = v.status_id
		LEFT JOIN drivers d ON d.id = v.driver_id
		ORDER BY v.plate_number ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query live positions: %w", err)
	}
	defer rows.Close()

	var positions []LivePosition
	for rows.Next() {
		var position LivePosition
		var updatedAtMs int64

		err := rows.Scan(
			&position.VehicleID,
			&position.PlateNumber,
			&position.Make,
			&position.Model,
			&position.DriverName,
			&position.StatusName,
			&position.Latitude,
			&position.Longitude,
			&position.SpeedKMPH,
			&position.Heading,
			&updatedAtMs,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan live position: %w", err)
		}

		position.UpdatedAt = time.UnixMilli(updatedAtMs)
		positions = append(positions, position)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating live positions: %w", err)
	}

	return positions, nil
}
