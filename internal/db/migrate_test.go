package db

import (
	"os"
	"testing"
)

func TestMigrateUpDownRoundTrip(t *testing.T) {
	fname := t.Name() + ".db"
	_ = os.Remove(fname)
	defer func() {
		_ = os.Remove(fname)
		_ = os.Remove(fname + "-shm")
		_ = os.Remove(fname + "-wal")
	}()

	database, err := OpenDB(fname)
	if err != nil {
		t.Fatalf("OpenDB failed: %v", err)
	}
	defer database.Close()

	migrationsFS, err := getMigrationsFS()
	if err != nil {
		t.Fatalf("getMigrationsFS failed: %v", err)
	}

	version, dirty, err := database.MigrateVersion(migrationsFS)
	if err != nil {
		t.Fatalf("MigrateVersion on fresh DB failed: %v", err)
	}
	if version != 0 || dirty {
		t.Errorf("fresh DB should be at version 0 clean, got %d dirty=%v", version, dirty)
	}

	if err := database.MigrateUp(migrationsFS); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}

	latest, err := GetLatestMigrationVersion(migrationsFS)
	if err != nil {
		t.Fatalf("GetLatestMigrationVersion failed: %v", err)
	}

	version, dirty, err = database.MigrateVersion(migrationsFS)
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != latest || dirty {
		t.Errorf("expected version %d clean, got %d dirty=%v", latest, version, dirty)
	}

	// Running up again is a no-op.
	if err := database.MigrateUp(migrationsFS); err != nil {
		t.Fatalf("MigrateUp (repeat) failed: %v", err)
	}

	// One step down drops the seed data but keeps the schema.
	if err := database.MigrateDown(migrationsFS); err != nil {
		t.Fatalf("MigrateDown failed: %v", err)
	}
	version, _, err = database.MigrateVersion(migrationsFS)
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != latest-1 {
		t.Errorf("expected version %d after down, got %d", latest-1, version)
	}

	statuses, err := database.GetVehicleStatuses()
	if err != nil {
		t.Fatalf("GetVehicleStatuses failed: %v", err)
	}
	if len(statuses) != 0 {
		t.Errorf("expected seed data dropped, got %d statuses", len(statuses))
	}
}

func TestCheckAndPromptMigrations(t *testing.T) {
	fname := t.Name() + ".db"
	_ = os.Remove(fname)
	defer func() {
		_ = os.Remove(fname)
		_ = os.Remove(fname + "-shm")
		_ = os.Remove(fname + "-wal")
	}()

	database, err := OpenDB(fname)
	if err != nil {
		t.Fatalf("OpenDB failed: %v", err)
	}
	defer database.Close()

	migrationsFS, err := getMigrationsFS()
	if err != nil {
		t.Fatalf("getMigrationsFS failed: %v", err)
	}

	needsWork, err := database.CheckAndPromptMigrations(migrationsFS)
	if !needsWork || err == nil {
		t.Error("fresh DB should report outstanding migrations")
	}

	if err := database.MigrateUp(migrationsFS); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}

	needsWork, err = database.CheckAndPromptMigrations(migrationsFS)
	if needsWork || err != nil {
		t.Errorf("migrated DB should be clean: needsWork=%v err=%v", needsWork, err)
	}
}

func TestBaselineAtVersion(t *testing.T) {
	fname := t.Name() + ".db"
	_ = os.Remove(fname)
	defer func() {
		_ = os.Remove(fname)
		_ = os.Remove(fname + "-shm")
		_ = os.Remove(fname + "-wal")
	}()

	database, err := OpenDB(fname)
	if err != nil {
		t.Fatalf("OpenDB failed: %v", err)
	}
	defer database.Close()

	if err := database.BaselineAtVersion(1); err != nil {
		t.Fatalf("BaselineAtVersion failed: %v", err)
	}

	migrationsFS, err := getMigrationsFS()
	if err != nil {
		t.Fatalf("getMigrationsFS failed: %v", err)
	}

	version, dirty, err := database.MigrateVersion(migrationsFS)
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 1 || dirty {
		t.Errorf("expected baseline version 1 clean, got %d dirty=%v", version, dirty)
	}

	// Baselining twice is rejected.
	if err := database.BaselineAtVersion(2); err == nil {
		t.Error("expected error baselining an already-baselined DB")
	}
}
