package db

import (
	"database/sql"
	"fmt"
	"time"
)

// Vehicle represents one fleet vehicle. StatusName and DriverName are
// denormalized from the joined tables on read.
type Vehicle struct {
	ID          int       `json:"id"`
	PlateNumber string    `json:"plate_number"`
	Make        string    `json:"make"`
	Model       string    `json:"model"`
	ModelYear   *int      `json:"model_year"`
	StatusID    int       `json:"status_id"`
	StatusName  string    `json:"status"`
	DriverID    *int      `json:"driver_id"`
	DriverName  *string   `json:"driver_name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

const vehicleSelect = `
	SELECT
		v.id, v.plate_number, v.make, v.model, v.model_year,
		v.status_id, s.name, v.driver_id, d.name,
		v.created_at, v.updated_at
	FROM vehicles v
	JOIN vehicle_statuses s ON s.id = v.status_id
	LEFT JOIN drivers d ON d.id = v.driver_id
`

func scanVehicle(row interface{ Scan(...any) error }) (*Vehicle, error) {
	var vehicle Vehicle
	var createdAtUnix, updatedAtUnix int64

	err := row.Scan(
		&vehicle.ID,
		&vehicle.PlateNumber,
		&vehicle.Make,
		&vehicle.Model,
		&vehicle.ModelYear,
		&vehicle.StatusID,
		&vehicle.StatusName,
		&vehicle.DriverID,
		&vehicle.DriverName,
		&createdAtUnix,
		&updatedAtUnix,
	)
	if err != nil {
		return nil, err
	}

	vehicle.CreatedAt = time.Unix(createdAtUnix, 0)
	vehicle.UpdatedAt = time.Unix(updatedAtUnix, 0)
	return &vehicle, nil
}

// CreateVehicle creates a new vehicle in the database
func (db *DB) CreateVehicle(vehicle *Vehicle) error {
	query := `
		INSERT INTO vehicles (plate_number, make, model, model_year, status_id, driver_id)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := db.DB.Exec(
		query,
		vehicle.PlateNumber,
		vehicle.Make,
		vehicle.Model,
		vehicle.ModelYear,
		vehicle.StatusID,
		vehicle.DriverID,
	)
	if err != nil {
		return fmt.Errorf("failed to create vehicle: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}

	vehicle.ID = int(id)
	return nil
}

// GetVehicle retrieves a vehicle by ID
func (db *DB) GetVehicle(id int) (*Vehicle, error) {
	vehicle, err := scanVehicle(db.DB.QueryRow(vehicleSelect+" WHERE v.id = ?", id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("vehicle not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vehicle: %w", err)
	}
	return vehicle, nil
}

// GetAllVehicles retrieves all vehicles ordered by plate number
func (db *DB) GetAllVehicles() ([]Vehicle, error) {
	rows, err := db.DB.Query(vehicleSelect + " ORDER BY v.plate_number ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query vehicles: %w", err)
	}
	defer rows.Close()

	var vehicles []Vehicle
	for rows.Next() {
		vehicle, err := scanVehicle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vehicle: %w", err)
		}
		vehicles = append(vehicles, *vehicle)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating vehicles: %w", err)
	}

	return vehicles, nil
}

// GetUnassignedVehicles retrieves vehicles with no driver assigned,
// ordered by plate number.
func (db *DB) GetUnassignedVehicles() ([]Vehicle, error) {
	rows, err := db.DB.Query(vehicleSelect + " WHERE v.driver_id IS NULL ORDER BY v.plate_number ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query unassigned vehicles: %w", err)
	}
	defer rows.Close()

	var vehicles []Vehicle
	for rows.Next() {
		vehicle, err := scanVehicle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vehicle: %w", err)
		}
		vehicles = append(vehicles, *vehicle)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating vehicles: %w", err)
	}

	return vehicles, nil
}

// AssignDriver sets or clears the driver on a vehicle. A nil driverID
// unassigns the current driver.
func (db *DB) AssignDriver(vehicleID int, driverID *int) error {
	result, err := db.DB.Exec(`
		UPDATE vehicles SET
			driver_id = ?,
			updated_at = strftime('%s','now')
		WHERE id = ?
	`, driverID, vehicleID)
	if err != nil {
		return fmt.Errorf("failed to assign driver: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("vehicle not found")
	}

	return nil
}

// UpdateVehicle updates an existing vehicle in the database
func (db *DB) UpdateVehicle(vehicle *Vehicle) error {
	query := `
		UPDATE vehicles SET
			plate_number = ?,
			make = ?,
			model = ?,
			model_year = ?,
			status_id = ?,
			driver_id = ?,
			updated_at = strftime('%s','now')
		WHERE id = ?
	`

	result, err := db.DB.Exec(
		query,
		vehicle.PlateNumber,
		vehicle.Make,
		vehicle.Model,
		vehicle.ModelYear,
		vehicle.StatusID,
		vehicle.DriverID,
		vehicle.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update vehicle: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("vehicle not found")
	}

	return nil
}

// UpdateVehicleStatus moves a vehicle to the named status.
func (db *DB) UpdateVehicleStatus(vehicleID int, statusName string) error {
	result, err := db.DB.Exec(`
		UPDATE vehicles SET
			status_id = (SELECT id FROM vehicle_statuses WHERE name = ?),
			updated_at = strftime('%s','now')
		WHERE id = ?
	`, statusName, vehicleID)
	if err != nil {
		return fmt.Errorf("failed to update vehicle status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("vehicle not found")
	}

	return nil
}

// DeleteVehicle deletes a vehicle from the database
func (db *DB) DeleteVehicle(id int) error {
	result, err := db.DB.Exec(`DELETE FROM vehicles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete vehicle: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("vehicle not found")
	}

	return nil
}
