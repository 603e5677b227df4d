// Package database provides SQLite connectivity for the SQL gateway.
//
// This package manages:
//   - The sqlx connection to the database file the gateway exposes
//   - Migrations for the gateway's own bookkeeping tables (audit log)
//   - Connection lifecycle and health checks
//
// User tables are owned by whoever created them; the gateway never alters
// them. Only files embedded through MigrationsFS are applied.
//
// Usage:
//
//	db, err := database.Open(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
package database
