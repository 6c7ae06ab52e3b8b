package db

import (
	"context"
	"testing"
	"time"
)

func recordSample(t *testing.T, db *DB, vehicleID int, at time.Time, lat, lon, speed float64) *LocationPoint {
	t.Helper()
	point := &LocationPoint{
		VehicleID:  vehicleID,
		Latitude:   floatPtr(lat),
		Longitude:  floatPtr(lon),
		SpeedKMPH:  floatPtr(speed),
		RecordedAt: at,
	}
	if err := db.RecordLocation(point); err != nil {
		t.Fatalf("RecordLocation failed: %v", err)
	}
	return point
}

func TestLocationHistoryRangeQuery(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	vehicle := createTestVehicle(t, db, "AMN-1234", "available")
	base := time.Date(2026, 5, 12, 8, 0, 0, 0, time.UTC)

	recordSample(t, db, vehicle.ID, base.Add(-time.Hour), 31.90, 35.90, 10)
	recordSample(t, db, vehicle.ID, base, 31.95, 35.91, 40)
	recordSample(t, db, vehicle.ID, base.Add(10*time.Second), 31.96, 35.92, 50)
	recordSample(t, db, vehicle.ID, base.Add(2*time.Hour), 31.99, 35.95, 20)

	points, err := db.GetLocationHistory(context.Background(), vehicle.ID, base, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("GetLocationHistory failed: %v", err)
	}

	if len(points) != 2 {
		t.Fatalf("expected 2 points in range, got %d", len(points))
	}
	if !points[0].RecordedAt.Equal(base) {
		t.Errorf("first point timestamp mismatch: got %v, want %v", points[0].RecordedAt, base)
	}
	if points[1].SpeedKMPH == nil || *points[1].SpeedKMPH != 50 {
		t.Errorf("second point speed mismatch: got %v", points[1].SpeedKMPH)
	}
}

func TestLocationHistoryStableOrderAtEqualTimestamps(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	vehicle := createTestVehicle(t, db, "AMN-1234", "available")
	at := time.Date(2026, 5, 12, 8, 0, 0, 0, time.UTC)

	first := recordSample(t, db, vehicle.ID, at, 31.95, 35.91, 40)
	second := recordSample(t, db, vehicle.ID, at, 31.96, 35.92, 41)

	points, err := db.GetLocationHistory(context.Background(), vehicle.ID, at, at)
	if err != nil {
		t.Fatalf("GetLocationHistory failed: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}
	if points[0].ID != first.ID || points[1].ID != second.ID {
		t.Errorf("insertion order not preserved: got %d,%d want %d,%d",
			points[0].ID, points[1].ID, first.ID, second.ID)
	}
}

func TestLocationHistoryScopedToVehicle(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	first := createTestVehicle(t, db, "AMN-1234", "available")
	second := createTestVehicle(t, db, "AMN-5678", "available")
	at := time.Date(2026, 5, 12, 8, 0, 0, 0, time.UTC)

	recordSample(t, db, first.ID, at, 31.95, 35.91, 40)
	recordSample(t, db, second.ID, at, 31.96, 35.92, 41)

	points, err := db.GetLocationHistory(context.Background(), first.ID, at.Add(-time.Minute), at.Add(time.Minute))
	if err != nil {
		t.Fatalf("GetLocationHistory failed: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("expected 1 point, got %d", len(points))
	}
	if points[0].VehicleID != first.ID {
		t.Errorf("VehicleID mismatch: got %d, want %d", points[0].VehicleID, first.ID)
	}
}

func TestLocationHistoryNullableFields(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	vehicle := createTestVehicle(t, db, "AMN-1234", "available")
	at := time.Date(2026, 5, 12, 8, 0, 0, 0, time.UTC)

	point := &LocationPoint{VehicleID: vehicle.ID, RecordedAt: at}
	if err := db.RecordLocation(point); err != nil {
		t.Fatalf("RecordLocation failed: %v", err)
	}

	points, err := db.GetLocationHistory(context.Background(), vehicle.ID, at, at)
	if err != nil {
		t.Fatalf("GetLocationHistory failed: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("expected 1 point, got %d", len(points))
	}
	if points[0].Latitude != nil || points[0].Longitude != nil || points[0].SpeedKMPH != nil {
		t.Errorf("expected null fields to round-trip as nil: %+v", points[0])
	}
}

func TestGetLocationSpeedsSkipsNulls(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	vehicle := createTestVehicle(t, db, "AMN-1234", "available")
	at := time.Date(2026, 5, 12, 8, 0, 0, 0, time.UTC)

	recordSample(t, db, vehicle.ID, at, 31.95, 35.91, 40)
	if err := db.RecordLocation(&LocationPoint{VehicleID: vehicle.ID, RecordedAt: at.Add(time.Second)}); err != nil {
		t.Fatalf("RecordLocation failed: %v", err)
	}
	recordSample(t, db, vehicle.ID, at.Add(2*time.Second), 31.96, 35.92, 60)

	speeds, err := db.GetLocationSpeeds(context.Background(), vehicle.ID, at, at.Add(time.Minute))
	if err != nil {
		t.Fatalf("GetLocationSpeeds failed: %v", err)
	}
	if len(speeds) != 2 {
		t.Fatalf("expected 2 speeds, got %d", len(speeds))
	}
	if speeds[0] != 40 || speeds[1] != 60 {
		t.Errorf("speeds mismatch: got %v", speeds)
	}
}

func TestPruneLocationHistory(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	vehicle := createTestVehicle(t, db, "AMN-1234", "available")
	base := time.Date(2026, 5, 12, 8, 0, 0, 0, time.UTC)

	recordSample(t, db, vehicle.ID, base.Add(-48*time.Hour), 31.90, 35.90, 10)
	recordSample(t, db, vehicle.ID, base, 31.95, 35.91, 40)

	deleted, err := db.PruneLocationHistory(base.Add(-24 * time.Hour))
	if err != nil {
		t.Fatalf("PruneLocationHistory failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 row pruned, got %d", deleted)
	}

	points, err := db.GetLocationHistory(context.Background(), vehicle.ID, base.Add(-72*time.Hour), base)
	if err != nil {
		t.Fatalf("GetLocationHistory failed: %v", err)
	}
	if len(points) != 1 {
		t.Errorf("expected 1 point remaining, got %d", len(points))
	}
}

func TestLivePositionUpsert(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	vehicle := createTestVehicle(t, db, "AMN-1234", "available")
	at := time.Date(2026, 5, 12, 8, 0, 0, 0, time.UTC)

	if err := db.UpsertLivePosition(vehicle.ID, 31.95, 35.91, 40, floatPtr(180), at); err != nil {
		t.Fatalf("UpsertLivePosition failed: %v", err)
	}
	if err := db.UpsertLivePosition(vehicle.ID, 31.96, 35.92, 45, nil, at.Add(time.Second)); err != nil {
		t.Fatalf("UpsertLivePosition (second) failed: %v", err)
	}

	positions, err := db.GetLivePositions()
	if err != nil {
		t.Fatalf("GetLivePositions failed: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("expected 1 live position, got %d", len(positions))
	}

	position := positions[0]
	if position.Latitude != 31.96 || position.Longitude != 35.92 {
		t.Errorf("coordinates not overwritten: got %f,%f", position.Latitude, position.Longitude)
	}
	if position.SpeedKMPH != 45 {
		t.Errorf("speed not overwritten: got %f", position.SpeedKMPH)
	}
	if position.Heading != nil {
		t.Errorf("heading not overwritten to null: got %v", *position.Heading)
	}
	if position.StatusName != "available" {
		t.Errorf("StatusName mismatch: got %q", position.StatusName)
	}
	if !position.UpdatedAt.Equal(at.Add(time.Second)) {
		t.Errorf("UpdatedAt mismatch: got %v", position.UpdatedAt)
	}
}
