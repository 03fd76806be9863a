package auth

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/servicedesk-core/internal/infrastructure/database"
	_ "github.com/nerrad567/servicedesk-core/migrations" // registers embedded migrations
)

const (
	testAccessSecret  = "test-access-secret-0123456789abcdef"
	testRefreshSecret = "test-refresh-secret-0123456789abcdef"
)

// testDB creates a temporary SQLite database with all migrations applied.
// The database is closed when the test completes.
func testDB(t *testing.T) *database.DB {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{
		Dialect:     database.DialectSQLite,
		Path:        filepath.Join(t.TempDir(), "auth-test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("applying migrations: %v", err)
	}
	return db
}

// testSQLStore returns a credential store over a fresh SQLite database.
func testSQLStore(t *testing.T) *SQLCredentialStore {
	t.Helper()
	return NewSQLCredentialStore(testDB(t).DB, database.DialectSQLite)
}

// fixedClock returns a clock pinned at the given Unix time.
func fixedClock(unix int64) func() time.Time {
	return func() time.Time { return time.Unix(unix, 0) }
}

// testCodec returns an HS256 codec with a pinned clock and predictable token IDs.
func testCodec(unix int64) *HS256 {
	n := 0
	return &HS256{
		now: fixedClock(unix),
		newID: func() string {
			n++
			return fmt.Sprintf("jti-%d", n)
		},
	}
}

// newTestService builds a Service over a memory store with default TTLs.
func newTestService(t *testing.T, store CredentialStore) *Service {
	t.Helper()

	svc, err := NewService(store, NewHS256(), ScryptHasher{}, SessionConfig{
		AccessSecret:  []byte(testAccessSecret),
		RefreshSecret: []byte(testRefreshSecret),
		AccessTTL:     DefaultAccessTTL,
		RefreshTTL:    DefaultRefreshTTL,
	})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc
}

// seedCredential registers a credential directly in store.
func seedCredential(t *testing.T, store CredentialStore, email, password string, role Role) *Credential {
	t.Helper()

	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	cred := &Credential{Email: email, PasswordHash: hash, Role: role}
	if err := store.Create(context.Background(), cred); err != nil {
		t.Fatalf("creating credential %s: %v", email, err)
	}
	return cred
}
