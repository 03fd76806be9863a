package auth

import "context"

// CredentialStore persists credentials.
//
// Implementations return ErrCredentialNotFound for missing rows,
// ErrDuplicateIdentifier when Create hits an existing identifier, and wrap
// every other failure with ErrStorageFailure. UpdateRefreshToken must be an
// atomic single-row write: concurrent logins for one identity resolve to
// whichever write lands last.
type CredentialStore interface {
	FindByIdentifier(ctx context.Context, identifier string) (*Credential, error)
	FindByRefreshToken(ctx context.Context, token string) (*Credential, error)
	Create(ctx context.Context, cred *Credential) error

	// UpdateRefreshToken replaces the stored refresh token. An empty token clears it.
	UpdateRefreshToken(ctx context.Context, identifier, token string) error
}
