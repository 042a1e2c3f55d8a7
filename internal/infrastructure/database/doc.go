// Package database provides SQLite connectivity for the Eclypse bridge.
//
// The bridge stores two things in SQLite: config entries (controller
// credentials plus the exported object registry) and the audit trail of
// property writes.
//
// This package manages:
//   - Connection setup with WAL mode and a busy timeout
//   - Schema migrations read from an fs.FS (see the migrations package)
//   - Health checks and transaction helpers
//
// Security Considerations:
//   - All queries use parameterised statements
//   - The database file is chmod 0600 because it holds controller passwords
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if _, err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migration files are named "NNN_description.up.sql" with an optional
// "NNN_description.down.sql". Versions sort lexically, so keep the prefix
// zero padded.
package database
