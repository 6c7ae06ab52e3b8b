package db

import (
	"context"
	"fmt"
	"time"
)

// LocationPoint is one telemetry sample. Coordinates and speed are nullable
// because devices sometimes report partial fixes.
type LocationPoint struct {
	ID         int       `json:"id"`
	VehicleID  int       `json:"vehicle_id"`
	Latitude   *float64  `json:"latitude"`
	Longitude  *float64  `json:"longitude"`
	SpeedKMPH  *float64  `json:"speed_kmph"`
	Heading    *float64  `json:"heading"`
	RecordedAt time.Time `json:"recorded_at"`
}

// RecordLocation appends a telemetry sample to a vehicle's history.
func (db *DB) RecordLocation(point *LocationPoint) error {
	if point.RecordedAt.IsZero() {
		point.RecordedAt = time.Now()
	}

	result, err := db.DB.Exec(`
		INSERT INTO location_history (vehicle_id, latitude, longitude, speed_kmph, heading, recorded_at_ms)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		point.VehicleID,
		point.Latitude,
		point.Longitude,
		point.SpeedKMPH,
		point.Heading,
		point.RecordedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to record location: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}

	point.ID = int(id)
	return nil
}

// GetLocationHistory returns a vehicle's samples inside [from, to] in
// chronological order. Samples sharing a timestamp keep insertion order.
func (db *DB) GetLocationHistory(ctx context.Context, vehicleID int, from, to time.Time) ([]LocationPoint, error) {
	rows, err := db.DB.QueryContext(ctx, `
		SELECT id, vehicle_id, latitude, longitude, speed_kmph, heading, recorded_at_ms
		FROM location_history
		WHERE vehicle_id = ? AND recorded_at_ms >= ? AND recorded_at_ms <= ?
		ORDER BY recorded_at_ms ASC, id ASC
	`, vehicleID, from.UnixMilli(), to.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to query location history: %w", err)
	}
	defer rows.Close()

	var points []LocationPoint
	for rows.Next() {
		var point LocationPoint
		var recordedAtMs int64

		err := rows.Scan(
			&point.ID,
			&point.VehicleID,
			&point.Latitude,
			&point.Longitude,
			&point.SpeedKMPH,
			&point.Heading,
			&recordedAtMs,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan location point: %w", err)
		}

		point.RecordedAt = time.UnixMilli(recordedAtMs)
		points = append(points, point)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating location history: %w", err)
	}

	return points, nil
}

// GetLocationSpeeds returns just the non-null speeds inside [from, to] for
// summary statistics.
func (db *DB) GetLocationSpeeds(ctx context.Context, vehicleID int, from, to time.Time) ([]float64, error) {
	rows, err := db.DB.QueryContext(ctx, `
		SELECT speed_kmph
		FROM location_history
		WHERE vehicle_id = ? AND recorded_at_ms >= ? AND recorded_at_ms <= ?
			AND speed_kmph IS NOT NULL
		ORDER BY recorded_at_ms ASC, id ASC
	`, vehicleID, from.UnixMilli(), to.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to query speeds: %w", err)
	}
	defer rows.Close()

	var speeds []float64
	for rows.Next() {
		var speed float64
		if err := rows.Scan(&speed); err != nil {
			return nil, fmt.Errorf("failed to scan speed: %w", err)
		}
		speeds = append(speeds, speed)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating speeds: %w", err)
	}

	return speeds, nil
}

// PruneLocationHistory deletes samples recorded before the cutoff and
// returns how many rows were removed.
func (db *DB) PruneLocationHistory(cutoff time.Time) (int64, error) {
	result, err := db.DB.Exec(
		`DELETE FROM location_history WHERE recorded_at_ms < ?`,
		cutoff.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune location history: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return deleted, nil
}
