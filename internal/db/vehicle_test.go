package db

import (
	"os"
	"testing"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	fname := t.Name() + ".db"
	_ = os.Remove(fname)

	db, err := NewDB(fname)
	if err != nil {
		t.Fatalf("failed to create test DB: %v", err)
	}
	return db
}

func cleanupTestDB(t *testing.T, db *DB) {
	t.Helper()
	fname := t.Name() + ".db"
	db.Close()
	_ = os.Remove(fname)
	_ = os.Remove(fname + "-shm")
	_ = os.Remove(fname + "-wal")
}

func TestCreateAndGetVehicle(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	vehicle := createTestVehicle(t, db, "AMN-1234", "available")
	if vehicle.ID == 0 {
		t.Fatal("expected vehicle ID to be set after create")
	}

	retrieved, err := db.GetVehicle(vehicle.ID)
	if err != nil {
		t.Fatalf("GetVehicle failed: %v", err)
	}

	if retrieved.PlateNumber != "AMN-1234" {
		t.Errorf("PlateNumber mismatch: got %q, want %q", retrieved.PlateNumber, "AMN-1234")
	}
	if retrieved.StatusName != "available" {
		t.Errorf("StatusName mismatch: got %q, want %q", retrieved.StatusName, "available")
	}
	if retrieved.ModelYear == nil || *retrieved.ModelYear != 2022 {
		t.Errorf("ModelYear mismatch: got %v, want 2022", retrieved.ModelYear)
	}
	if retrieved.DriverID != nil {
		t.Errorf("expected no driver, got %v", *retrieved.DriverID)
	}
}

func TestGetVehicleNotFound(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	if _, err := db.GetVehicle(999); err == nil {
		t.Error("expected error for missing vehicle")
	}
}

func TestCreateVehicleDuplicatePlate(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	createTestVehicle(t, db, "AMN-1234", "available")

	status, err := db.GetVehicleStatusByName("available")
	if err != nil {
		t.Fatalf("GetVehicleStatusByName failed: %v", err)
	}

	dup := &Vehicle{PlateNumber: "AMN-1234", Make: "Nissan", Model: "Patrol", StatusID: status.ID}
	if err := db.CreateVehicle(dup); err == nil {
		t.Error("expected error for duplicate plate number")
	}
}

func TestGetAllVehiclesOrdersByPlate(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	createTestVehicle(t, db, "ZZZ-0001", "available")
	createTestVehicle(t, db, "AAA-0001", "busy")

	vehicles, err := db.GetAllVehicles()
	if err != nil {
		t.Fatalf("GetAllVehicles failed: %v", err)
	}

	if len(vehicles) != 2 {
		t.Fatalf("expected 2 vehicles, got %d", len(vehicles))
	}
	if vehicles[0].PlateNumber != "AAA-0001" {
		t.Errorf("expected AAA-0001 first, got %q", vehicles[0].PlateNumber)
	}
}

func TestUpdateVehicleStatus(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	vehicle := createTestVehicle(t, db, "AMN-1234", "available")

	if err := db.UpdateVehicleStatus(vehicle.ID, "busy"); err != nil {
		t.Fatalf("UpdateVehicleStatus failed: %v", err)
	}

	retrieved, err := db.GetVehicle(vehicle.ID)
	if err != nil {
		t.Fatalf("GetVehicle failed: %v", err)
	}
	if retrieved.StatusName != "busy" {
		t.Errorf("StatusName mismatch: got %q, want %q", retrieved.StatusName, "busy")
	}

	if err := db.UpdateVehicleStatus(999, "busy"); err == nil {
		t.Error("expected error for missing vehicle")
	}
}

func TestUpdateVehicleAssignsDriver(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	vehicle := createTestVehicle(t, db, "AMN-1234", "available")

	driver := &Driver{Name: "Omar Haddad", Phone: strPtr("+962790000000")}
	if err := db.CreateDriver(driver); err != nil {
		t.Fatalf("CreateDriver failed: %v", err)
	}

	vehicle.DriverID = &driver.ID
	if err := db.UpdateVehicle(vehicle); err != nil {
		t.Fatalf("UpdateVehicle failed: %v", err)
	}

	retrieved, err := db.GetVehicle(vehicle.ID)
	if err != nil {
		t.Fatalf("GetVehicle failed: %v", err)
	}
	if retrieved.DriverName == nil || *retrieved.DriverName != "Omar Haddad" {
		t.Errorf("DriverName mismatch: got %v, want Omar Haddad", retrieved.DriverName)
	}
}

func TestDeleteVehicle(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	vehicle := createTestVehicle(t, db, "AMN-1234", "available")

	if err := db.DeleteVehicle(vehicle.ID); err != nil {
		t.Fatalf("DeleteVehicle failed: %v", err)
	}
	if _, err := db.GetVehicle(vehicle.ID); err == nil {
		t.Error("expected error after delete")
	}
	if err := db.DeleteVehicle(vehicle.ID); err == nil {
		t.Error("expected error for double delete")
	}
}

func TestDriverCRUD(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	driver := &Driver{Name: "Lina Haddad", LicenseNumber: strPtr("JO-55521")}
	if err := db.CreateDriver(driver); err != nil {
		t.Fatalf("CreateDriver failed: %v", err)
	}

	retrieved, err := db.GetDriver(driver.ID)
	if err != nil {
		t.Fatalf("GetDriver failed: %v", err)
	}
	if retrieved.Name != "Lina Haddad" {
		t.Errorf("Name mismatch: got %q", retrieved.Name)
	}
	if retrieved.Phone != nil {
		t.Errorf("expected nil phone, got %v", *retrieved.Phone)
	}

	retrieved.Phone = strPtr("+962781112222")
	if err := db.UpdateDriver(retrieved); err != nil {
		t.Fatalf("UpdateDriver failed: %v", err)
	}

	drivers, err := db.GetAllDrivers()
	if err != nil {
		t.Fatalf("GetAllDrivers failed: %v", err)
	}
	if len(drivers) != 1 {
		t.Fatalf("expected 1 driver, got %d", len(drivers))
	}
	if drivers[0].Phone == nil || *drivers[0].Phone != "+962781112222" {
		t.Errorf("Phone mismatch: got %v", drivers[0].Phone)
	}

	if err := db.DeleteDriver(driver.ID); err != nil {
		t.Fatalf("DeleteDriver failed: %v", err)
	}
	if _, err := db.GetDriver(driver.ID); err == nil {
		t.Error("expected error after delete")
	}
}
