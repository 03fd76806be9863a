package auth

import (
	"errors"
	"time"
)

// Role classifies a credential.
type Role string

const (
	// RoleResident is a tenant raising service requests. Default for new accounts.
	RoleResident Role = "resident"

	// RoleManager handles requests for the residents they manage.
	RoleManager Role = "manager"

	// RoleAdmin operates the platform itself.
	RoleAdmin Role = "admin"
)

// ValidRoles is the set of roles a credential may hold.
var ValidRoles = []Role{RoleResident, RoleManager, RoleAdmin}

// IsValidRole returns true if r is one of ValidRoles.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// Credential is a persisted identity.
type Credential struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never serialised
	RefreshToken string    `json:"-"` // empty when logged out; never serialised
	Role         Role      `json:"role"`
	ResidentID   *int64    `json:"residentId,omitempty"`
	ManagerID    *int64    `json:"managerId,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Public returns the projection safe to hand back to clients.
func (c *Credential) Public() *PublicCredential {
	return &PublicCredential{
		ID:         c.ID,
		Email:      c.Email,
		Role:       c.Role,
		ResidentID: c.ResidentID,
		ManagerID:  c.ManagerID,
	}
}

// PublicCredential is a Credential without secrets or bookkeeping.
type PublicCredential struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Role       Role   `json:"role"`
	ResidentID *int64 `json:"residentId,omitempty"`
	ManagerID  *int64 `json:"managerId,omitempty"`
}

// TokenPair is returned by a successful login.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Sentinel errors for session and store operations.
var (
	ErrMissingField        = errors.New("missing required field")
	ErrInvalidRole         = errors.New("invalid role")
	ErrInvalidEmail        = errors.New("invalid email address")
	ErrDuplicateIdentifier = errors.New("identifier already registered")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrCredentialNotFound  = errors.New("credential not found")
	ErrStorageFailure      = errors.New("credential storage failure")
	ErrForbidden           = errors.New("insufficient permissions")
)
