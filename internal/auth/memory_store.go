package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryCredentialStore is a CredentialStore held in process memory.
// Contents are lost on restart. Safe for concurrent use.
type MemoryCredentialStore struct {
	mu    sync.RWMutex
	byKey map[string]*Credential
}

// NewMemoryCredentialStore returns an empty store.
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{byKey: make(map[string]*Credential)}
}

// FindByIdentifier implements CredentialStore.
func (s *MemoryCredentialStore) FindByIdentifier(_ context.Context, identifier string) (*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.byKey[identifier]
	if !ok {
		return nil, ErrCredentialNotFound
	}
	return copyCredential(c), nil
}

// FindByRefreshToken implements CredentialStore.
func (s *MemoryCredentialStore) FindByRefreshToken(_ context.Context, token string) (*Credential, error) {
	if token == "" {
		return nil, ErrCredentialNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.byKey {
		if c.RefreshToken == token {
			return copyCredential(c), nil
		}
	}
	return nil, ErrCredentialNotFound
}

// Create implements CredentialStore.
func (s *MemoryCredentialStore) Create(_ context.Context, cred *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byKey[cred.Email]; exists {
		return ErrDuplicateIdentifier
	}

	if cred.ID == "" {
		cred.ID = "usr-" + uuid.NewString()[:8]
	}
	if cred.Role == "" {
		cred.Role = RoleResident
	}
	now := time.Now().UTC().Truncate(time.Second)
	cred.CreatedAt = now
	cred.UpdatedAt = now

	s.byKey[cred.Email] = copyCredential(cred)
	return nil
}

// UpdateRefreshToken implements CredentialStore.
func (s *MemoryCredentialStore) UpdateRefreshToken(_ context.Context, identifier, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byKey[identifier]
	if !ok {
		return ErrCredentialNotFound
	}
	c.RefreshToken = token
	c.UpdatedAt = time.Now().UTC().Truncate(time.Second)
	return nil
}

// HealthCheck always succeeds.
func (s *MemoryCredentialStore) HealthCheck(context.Context) error {
	return nil
}

func copyCredential(c *Credential) *Credential {
	out := *c
	if c.ResidentID != nil {
		v := *c.ResidentID
		out.ResidentID = &v
	}
	if c.ManagerID != nil {
		v := *c.ManagerID
		out.ManagerID = &v
	}
	return &out
}
