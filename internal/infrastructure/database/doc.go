// Package database provides the bridge's SQLite connection and schema
// migrations.
//
// The database holds the operator audit trail. It is opened with WAL mode and
// a busy timeout, capped at one connection (SQLite has a single writer), and
// the file is created with 0600 permissions.
//
// Migrations are embedded from migrations/*.sql, named
// YYYYMMDD_HHMMSS_description.up.sql with a matching .down.sql:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, database.Embedded); err != nil {
//	    return err
//	}
package database
