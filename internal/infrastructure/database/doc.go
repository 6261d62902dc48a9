// Package database provides the SQLite store behind devicesim's run history.
//
// This package manages:
//   - Opening the database file with WAL mode and a busy timeout
//   - Schema migrations embedded in the binary (see the migrations package)
//   - Connection lifecycle and health checks
//
// The store is optional: Open returns ErrDisabled unless database.enabled is
// set. Only aggregate per-run counters are kept; the simulator never stores
// payloads or undelivered messages.
//
// Usage:
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration Strategy:
//
// Migrations are additive. Each file pair is named
// YYYYMMDD_HHMMSS_description.up.sql / .down.sql and applied in version
// order, one transaction per migration.
package database
