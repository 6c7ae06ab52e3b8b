package db

import (
	"database/sql"
	"fmt"
	"time"
)

// Driver represents a person who can be assigned to a vehicle.
type Driver struct {
	ID            int       `json:"id"`
	Name          string    `json:"name"`
	Phone         *string   `json:"phone"`
	LicenseNumber *string   `json:"license_number"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CreateDriver creates a new driver in the database
func (db *DB) CreateDriver(driver *Driver) error {
	query := `
		INSERT INTO drivers (name, phone, license_number)
		VALUES (?, ?, ?)
	`

	result, err := db.DB.Exec(query, driver.Name, driver.Phone, driver.LicenseNumber)
	if err != nil {
		return fmt.Errorf("failed to create driver: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}

	driver.ID = int(id)
	return nil
}

// GetDriver retrieves a driver by ID
func (db *DB) GetDriver(id int) (*Driver, error) {
	query := `
		SELECT id, name, phone, license_number, created_at, updated_at
		FROM drivers
		WHERE id = ?
	`

	var driver Driver
	var createdAtUnix, updatedAtUnix int64

	err := db.DB.QueryRow(query, id).Scan(
		&driver.ID,
		&driver.Name,
		&driver.Phone,
		&driver.LicenseNumber,
		&createdAtUnix,
		&updatedAtUnix,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("driver not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get driver: %w", err)
	}

	driver.CreatedAt = time.Unix(createdAtUnix, 0)
	driver.UpdatedAt = time.Unix(updatedAtUnix, 0)

	return &driver, nil
}

// GetAllDrivers retrieves all drivers ordered by name
func (db *DB) GetAllDrivers() ([]Driver, error) {
	query := `
		SELECT id, name, phone, license_number, created_at, updated_at
		FROM drivers
		ORDER BY name ASC
	`

	rows, err := db.DB.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query drivers: %w", err)
	}
	defer rows.Close()

	var drivers []Driver
	for rows.Next() {
		var driver Driver
		var createdAtUnix, updatedAtUnix int64

		err := rows.Scan(
			&driver.ID,
			&driver.Name,
			&driver.Phone,
			&driver.LicenseNumber,
			&createdAtUnix,
			&updatedAtUnix,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan driver: %w", err)
		}

		driver.CreatedAt = time.Unix(createdAtUnix, 0)
		driver.UpdatedAt = time.Unix(updatedAtUnix, 0)

		drivers = append(drivers, driver)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating drivers: %w", err)
	}

	return drivers, nil
}

// UpdateDriver updates an existing driver in the database
func (db *DB) UpdateDriver(driver *Driver) error {
	query := `
		UPDATE drivers SET
			name = ?,
			phone = ?,
			license_number = ?,
			updated_at = strftime('%s','now')
		WHERE id = ?
	`

	result, err := db.DB.Exec(query, driver.Name, driver.Phone, driver.LicenseNumber, driver.ID)
	if err != nil {
		return fmt.Errorf("failed to update driver: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("driver not found")
	}

	return nil
}

// DeleteDriver deletes a driver from the database
func (db *DB) DeleteDriver(id int) error {
	result, err := db.DB.Exec(`DELETE FROM drivers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete driver: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("driver not found")
	}

	return nil
}
