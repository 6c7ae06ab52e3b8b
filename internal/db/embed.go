package db

import (
	"embed"
	"io/fs"
	"os"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// getMigrationsFS returns the migrations filesystem. In development the
// on-disk directory wins so new migration files can be iterated on without
// rebuilding; released binaries fall back to the embedded copy.
func getMigrationsFS() (fs.FS, error) {
	if info, err := os.Stat("internal/db/migrations"); err == nil && info.IsDir() {
		return os.DirFS("internal/db/migrations"), nil
	}
	return fs.Sub(embeddedMigrations, "migrations")
}
