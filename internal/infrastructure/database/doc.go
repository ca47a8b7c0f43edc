// Package database provides the SQLite store behind the device report inventory.
//
// This package manages:
//   - Opening the database file, or a private in-memory database
//   - WAL mode and busy timeout settings
//   - Embedded schema migrations with status and rollback
//
// All queries use parameterised statements, and the database file is
// created with 0600 permissions.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{
//	    Path:        cfg.Database.Path,
//	    WALMode:     cfg.Database.WALMode,
//	    BusyTimeout: cfg.Database.BusyTimeout,
//	})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// # Migrations
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql, and are registered with SetMigrations. New
// columns must be NULLABLE or carry a DEFAULT so an older binary can still
// read the table.
package database
