package database

import "errors"

// Sentinel errors for the run history database.
var (
	// ErrDisabled indicates the database section is disabled in configuration.
	ErrDisabled = errors.New("database: disabled in configuration")

	// ErrMigrationMissing indicates an applied migration has no file in MigrationsFS.
	ErrMigrationMissing = errors.New("database: migration not found")
)
