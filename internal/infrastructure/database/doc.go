// Package database provides SQL connectivity for the service desk core.
//
// Two dialects are supported:
//   - SQLite (github.com/mattn/go-sqlite3), the default for single-node installs
//   - PostgreSQL (github.com/jackc/pgx/v5/stdlib), for shared deployments
//
// This package manages:
//   - Connection setup and lifecycle (WAL mode and busy timeout on SQLite)
//   - Schema migrations, selected per dialect
//   - Placeholder rebinding so repositories can write queries once with ?
//
// Security Considerations:
//   - All queries use parameterised statements (no SQL injection)
//   - SQLite database files are restricted to 0600
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{
//	    Dialect: database.DialectSQLite,
//	    Path:    "./data/servicedesk.db",
//	    WALMode: true,
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
// Migration Layout:
//
// Migration files are named YYYYMMDD_HHMMSS_description.{up,down}.sql and
// live in one subdirectory per dialect (sqlite/, postgres/) of MigrationsFS.
// Both directories carry the same versions so a schema can move between
// backends.
package database
