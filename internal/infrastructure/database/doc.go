// Package database provides SQLite connectivity for the serial2mqtt frame
// journal.
//
// It manages:
//   - The connection, with optional WAL mode and a busy timeout
//   - Schema migrations read from any fs.FS (the binary embeds package migrations)
//   - Connection pool lifecycle and health checks
//
// All queries use parameterised statements and the database file is created
// with 0600 permissions.
//
// Usage:
//
//	db, err := database.Open(ctx, cfg.Journal.Database())
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migration files live at the root of the supplied filesystem and are named
// YYYYMMDD_HHMMSS_description.up.sql with a matching .down.sql. Each one is
// applied in its own transaction, oldest first.
package database
