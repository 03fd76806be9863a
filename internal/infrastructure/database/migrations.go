package database

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"time"
)

// MigrationsFS holds the schema files, one subdirectory per dialect, named
// <YYYYMMDD_HHMMSS>_<name>.up.sql with an optional matching .down.sql.
// The migrations package assigns it from an embed.FS in its init.
var MigrationsFS fs.FS

// MigrationsDir is the root within MigrationsFS that holds the dialect
// subdirectories.
var MigrationsDir = "."

const (
	migrationsTable = "schema_migrations"
	appliedAtFormat = time.RFC3339
)

// migrationFilePattern captures version, name and direction.
var migrationFilePattern = regexp.MustCompile(`^(\d{8}_\d{6})_([A-Za-z0-9_]+)\.(up|down)\.sql$`)

// Migration is one versioned schema change for a dialect.
type Migration struct {
	Version string
	Name    string
	UpSQL   string
	DownSQL string
}

// MigrationRecord is a row of schema_migrations.
type MigrationRecord struct {
	Version   string
	AppliedAt time.Time
}

// Migrate applies every pending migration for the connection's dialect, oldest
// first. Each runs in its own transaction, so a failure leaves earlier
// migrations committed and a later Migrate resumes at the failed one.
func (db *DB) Migrate(ctx context.Context) error {
	if err := db.createMigrationsTable(ctx); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	_, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		return err
	}

	insert := db.dialect.Rebind("INSERT INTO " + migrationsTable + " (version, applied_at) VALUES (?, ?)")
	for _, m := range pending {
		err := db.inTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, m.UpSQL); err != nil {
				return fmt.Errorf("executing SQL: %w", err)
			}
			if _, err := tx.ExecContext(ctx, insert, m.Version, time.Now().UTC().Format(appliedAtFormat)); err != nil {
				return fmt.Errorf("recording migration: %w", err)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("applying migration %s (%s): %w", m.Version, m.Name, err)
		}
	}

	return nil
}

// MigrateDown reverts the newest applied migration. It is a no-op when
// nothing is applied and an error when that migration has no down file.
func (db *DB) MigrateDown(ctx context.Context) error {
	applied, err := db.appliedMigrations(ctx)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		return nil
	}
	version := applied[len(applied)-1].Version

	known, err := loadMigrations(db.dialect)
	if err != nil {
		return err
	}
	idx := sort.Search(len(known), func(i int) bool { return known[i].Version >= version })
	if idx == len(known) || known[idx].Version != version {
		return fmt.Errorf("migration %s is applied but has no file", version)
	}
	m := known[idx]
	if m.DownSQL == "" {
		return fmt.Errorf("migration %s has no down SQL", version)
	}

	remove := db.dialect.Rebind("DELETE FROM " + migrationsTable + " WHERE version = ?")
	return db.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, m.DownSQL); err != nil {
			return fmt.Errorf("reverting %s: %w", version, err)
		}
		if _, err := tx.ExecContext(ctx, remove, version); err != nil {
			return fmt.Errorf("removing migration record: %w", err)
		}
		return nil
	})
}

// GetMigrationStatus splits the dialect's migrations into applied records
// and pending files. The schema_migrations table must already exist.
func (db *DB) GetMigrationStatus(ctx context.Context) (applied []MigrationRecord, pending []Migration, err error) {
	applied, err = db.appliedMigrations(ctx)
	if err != nil {
		return nil, nil, err
	}

	known, err := loadMigrations(db.dialect)
	if err != nil {
		return nil, nil, err
	}

	done := make(map[string]struct{}, len(applied))
	for _, r := range applied {
		done[r.Version] = struct{}{}
	}
	for _, m := range known {
		if _, ok := done[m.Version]; !ok {
			pending = append(pending, m)
		}
	}

	return applied, pending, nil
}

// createMigrationsTable uses DDL valid for both SQLite and PostgreSQL.
func (db *DB) createMigrationsTable(ctx context.Context) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS `+migrationsTable+` (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`)
	return err
}

func (db *DB) appliedMigrations(ctx context.Context) ([]MigrationRecord, error) {
	rows, err := db.DB.QueryContext(ctx,
		"SELECT version, applied_at FROM "+migrationsTable+" ORDER BY version",
	)
	if err != nil {
		return nil, fmt.Errorf("querying applied migrations: %w", err)
	}
	defer rows.Close()

	var records []MigrationRecord
	for rows.Next() {
		var (
			r  MigrationRecord
			at string
		)
		if err := rows.Scan(&r.Version, &at); err != nil {
			return nil, fmt.Errorf("scanning applied migration: %w", err)
		}
		r.AppliedAt, _ = time.Parse(appliedAtFormat, at) //nolint:errcheck // written by Migrate
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}
	return records, nil
}

// inTx runs fn in a transaction, committing only when fn succeeds.
func (db *DB) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}

// migrationFile is a parsed schema file name.
type migrationFile struct {
	version string
	name    string
	up      bool
}

// parseMigrationFilename reports false for anything that is not a
// well-formed up or down migration file name.
func parseMigrationFilename(filename string) (migrationFile, bool) {
	m := migrationFilePattern.FindStringSubmatch(filename)
	if m == nil {
		return migrationFile{}, false
	}
	return migrationFile{version: m[1], name: m[2], up: m[3] == "up"}, true
}

// loadMigrations reads one dialect's directory, sorted by version. A nil
// filesystem or a missing directory yields no migrations. A down file
// without an up file is ignored.
func loadMigrations(dialect Dialect) ([]Migration, error) {
	if MigrationsFS == nil {
		return nil, nil
	}

	dir := path.Join(MigrationsDir, string(dialect))
	entries, err := fs.ReadDir(MigrationsFS, dir)
	if err != nil {
		return nil, nil //nolint:nilerr // nothing to apply for this dialect
	}

	byVersion := make(map[string]*Migration)
	downs := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		f, ok := parseMigrationFilename(entry.Name())
		if !ok {
			continue
		}

		body, err := fs.ReadFile(MigrationsFS, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		if !f.up {
			downs[f.version] = string(body)
			continue
		}
		byVersion[f.version] = &Migration{Version: f.version, Name: f.name, UpSQL: string(body)}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for version, m := range byVersion {
		m.DownSQL = downs[version]
		migrations = append(migrations, *m)
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })

	return migrations, nil
}
