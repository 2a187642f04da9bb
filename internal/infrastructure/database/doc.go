// Package database provides SQLite connectivity for the SIP MQTT bridge.
//
// The database holds the flat settings document edited through the settings
// surface and a journal of run-once programs received over MQTT.
//
// This package manages:
//   - Database connection with WAL mode
//   - Embedded, additive schema migrations
//   - Health checks and lifecycle management
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
package database
