package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"

	"github.com/nerrad567/servicedesk-core/internal/infrastructure/database"
)

// pgUniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

const credentialColumns = "id, email, password_hash, refresh_token, role, resident_id, manager_id, created_at, updated_at"

// SQLCredentialStore implements CredentialStore on SQLite or PostgreSQL.
type SQLCredentialStore struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewSQLCredentialStore creates a credential store over db.
func NewSQLCredentialStore(db *sql.DB, dialect database.Dialect) *SQLCredentialStore {
	return &SQLCredentialStore{db: db, dialect: dialect}
}

// FindByIdentifier retrieves a credential by email.
func (s *SQLCredentialStore) FindByIdentifier(ctx context.Context, identifier string) (*Credential, error) {
	return s.getCredential(ctx, "SELECT "+credentialColumns+" FROM credentials WHERE email = ?", identifier)
}

// FindByRefreshToken retrieves the credential currently holding token.
// An empty token never matches.
func (s *SQLCredentialStore) FindByRefreshToken(ctx context.Context, token string) (*Credential, error) {
	if token == "" {
		return nil, ErrCredentialNotFound
	}
	return s.getCredential(ctx, "SELECT "+credentialColumns+" FROM credentials WHERE refresh_token = ?", token)
}

// Create inserts a new credential. ID and timestamps are filled in.
func (s *SQLCredentialStore) Create(ctx context.Context, cred *Credential) error {
	if cred.ID == "" {
		cred.ID = "usr-" + uuid.NewString()[:8]
	}
	if cred.Role == "" {
		cred.Role = RoleResident
	}

	now := time.Now().UTC().Format(time.RFC3339)
	cred.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled
	cred.UpdatedAt = cred.CreatedAt

	_, err := s.db.ExecContext(ctx, s.dialect.Rebind(
		`INSERT INTO credentials (`+credentialColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		cred.ID, cred.Email, cred.PasswordHash, nullString(cred.RefreshToken),
		string(cred.Role), nullInt64(cred.ResidentID), nullInt64(cred.ManagerID),
		now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateIdentifier
		}
		return fmt.Errorf("%w: creating credential: %w", ErrStorageFailure, err)
	}

	return nil
}

// UpdateRefreshToken replaces the stored refresh token in one statement.
func (s *SQLCredentialStore) UpdateRefreshToken(ctx context.Context, identifier, token string) error {
	now := time.Now().UTC().Format(time.RFC3339)

	result, err := s.db.ExecContext(ctx, s.dialect.Rebind(
		`UPDATE credentials SET refresh_token = ?, updated_at = ? WHERE email = ?`),
		nullString(token), now, identifier,
	)
	if err != nil {
		return fmt.Errorf("%w: updating refresh token: %w", ErrStorageFailure, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: updating refresh token: %w", ErrStorageFailure, err)
	}
	if rows == 0 {
		return ErrCredentialNotFound
	}
	return nil
}

// HealthCheck verifies the credentials table is reachable.
func (s *SQLCredentialStore) HealthCheck(ctx context.Context) error {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM credentials").Scan(&n); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageFailure, err)
	}
	return nil
}

func (s *SQLCredentialStore) getCredential(ctx context.Context, query string, args ...any) (*Credential, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.Rebind(query), args...)

	var c Credential
	var refreshToken sql.NullString
	var residentID, managerID sql.NullInt64
	var role, createdAt, updatedAt string

	err := row.Scan(&c.ID, &c.Email, &c.PasswordHash, &refreshToken,
		&role, &residentID, &managerID, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCredentialNotFound
		}
		return nil, fmt.Errorf("%w: scanning credential: %w", ErrStorageFailure, err)
	}

	c.Role = Role(role)
	c.RefreshToken = refreshToken.String
	if residentID.Valid {
		c.ResidentID = &residentID.Int64
	}
	if managerID.Valid {
		c.ManagerID = &managerID.Int64
	}
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	c.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled

	return &c, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

// isUniqueViolation recognises unique constraint errors from either driver.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}

	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
