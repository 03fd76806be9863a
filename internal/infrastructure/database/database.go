package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver ("pgx")
	_ "github.com/mattn/go-sqlite3"    // SQLite driver
)

// Database configuration constants.
const (
	// dirPermissions is the permission mode for the database directory.
	dirPermissions = 0750

	// filePermissions is the permission mode for the database file.
	filePermissions = 0600

	// msPerSecond converts seconds to milliseconds.
	msPerSecond = 1000

	// connectionTimeout is the timeout for verifying database connectivity.
	connectionTimeout = 5 * time.Second

	// connMaxIdleTime is how long idle connections are kept open.
	connMaxIdleTime = 30 * time.Minute

	// postgresMaxOpenConns bounds the PostgreSQL pool.
	postgresMaxOpenConns = 10
)

// Dialect identifies the SQL flavour behind a DB.
type Dialect string

// Supported dialects. The string values double as migration subdirectory names.
const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// driverName returns the database/sql driver registered for the dialect.
func (d Dialect) driverName() string {
	if d == DialectPostgres {
		return "pgx"
	}
	return "sqlite3"
}

// Rebind rewrites ? placeholders into the dialect's native form.
// Queries in this module are written with ? and never contain a literal ?.
func (d Dialect) Rebind(query string) string {
	if d != DialectPostgres || !strings.Contains(query, "?") {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8) //nolint:mnd // room for a few multi-digit placeholders
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// DB wraps a sql.DB connection with service desk functionality.
// It provides migration support, health checks, and proper lifecycle management.
type DB struct {
	*sql.DB
	dialect Dialect
	path    string
}

// Config contains database configuration options.
// These map to the database section of config.yaml.
type Config struct {
	// Dialect selects SQLite (default) or PostgreSQL.
	Dialect Dialect

	// Path is the filesystem path to the SQLite database file.
	// The directory will be created if it doesn't exist.
	Path string

	// DSN is the PostgreSQL connection string.
	DSN string

	// WALMode enables Write-Ahead Logging for better concurrent access (SQLite).
	WALMode bool

	// BusyTimeout is the maximum time to wait for a database lock in seconds (SQLite).
	BusyTimeout int
}

// Open creates a new database connection with the specified configuration.
//
// For SQLite it creates the database directory, configures WAL mode and the
// busy timeout, and restricts file permissions. For PostgreSQL it opens a
// pgx-backed pool from the DSN. Both paths verify the connection with a ping.
//
// Parameters:
//   - ctx: Context bounding the connectivity check
//   - cfg: Database configuration
//
// Returns:
//   - *DB: Connected database wrapper
//   - error: If connection or configuration fails
func Open(ctx context.Context, cfg Config) (*DB, error) {
	if cfg.Dialect == "" {
		cfg.Dialect = DialectSQLite
	}

	var (
		dsn string
		err error
	)
	switch cfg.Dialect {
	case DialectSQLite:
		dsn, err = sqliteDSN(cfg)
	case DialectPostgres:
		if cfg.DSN == "" {
			err = fmt.Errorf("postgres DSN is required")
		}
		dsn = cfg.DSN
	default:
		err = fmt.Errorf("unsupported dialect %q", cfg.Dialect)
	}
	if err != nil {
		return nil, err
	}

	sqlDB, err := sql.Open(cfg.Dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if cfg.Dialect == DialectSQLite {
		// SQLite only supports one writer
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
	} else {
		sqlDB.SetMaxOpenConns(postgresMaxOpenConns)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	db := &DB{
		DB:      sqlDB,
		dialect: cfg.Dialect,
		path:    cfg.Path,
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		sqlDB.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("verifying database connection: %w", err)
	}

	if cfg.Dialect == DialectSQLite {
		// Ignore error - file might not exist yet on first run
		_ = os.Chmod(cfg.Path, filePermissions) //nolint:errcheck // Intentional: first run creates file later
	}

	return db, nil
}

// sqliteDSN builds the go-sqlite3 connection string and ensures the directory exists.
// See: https://github.com/mattn/go-sqlite3#connection-string
func sqliteDSN(cfg Config) (string, error) {
	if cfg.Path == "" {
		return "", fmt.Errorf("sqlite database path is required")
	}

	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return "", fmt.Errorf("creating database directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on",
		cfg.Path,
		cfg.BusyTimeout*msPerSecond,
	)
	if cfg.WALMode {
		dsn += "&_journal_mode=WAL&_synchronous=NORMAL"
	}
	return dsn, nil
}

// Close closes the database connection gracefully.
func (db *DB) Close() error {
	if db.DB == nil {
		return nil
	}
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// Dialect returns the SQL dialect of the connection.
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// Path returns the filesystem path to the SQLite database file.
// It is empty for PostgreSQL connections.
func (db *DB) Path() string {
	return db.path
}

// HealthCheck verifies the database is accessible and functioning.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (db *DB) HealthCheck(ctx context.Context) error {
	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// BeginTx starts a new transaction with the given options.
//
// Example:
//
//	tx, err := db.BeginTx(ctx, nil)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback() // No-op if committed
//
//	// ... execute queries on tx ...
//
//	return tx.Commit()
func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	tx, err := db.DB.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	return tx, nil
}
