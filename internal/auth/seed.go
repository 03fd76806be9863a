package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
)

// seedPasswordBytes is the number of random bytes for the seed admin password.
const seedPasswordBytes = 16

// SeedAdmin creates an admin credential for email if none exists yet.
// The generated password is logged once at warn level and must be changed.
// Returns the generated password (empty string if seeding was skipped).
func SeedAdmin(ctx context.Context, store CredentialStore, hasher PasswordHasher, email string, logger *slog.Logger) (string, error) {
	if email == "" {
		return "", nil
	}

	_, err := store.FindByIdentifier(ctx, email)
	switch {
	case err == nil:
		logger.Info("bootstrap admin exists, skipping seed", "email", email)
		return "", nil
	case !errors.Is(err, ErrCredentialNotFound):
		return "", fmt.Errorf("checking bootstrap admin: %w", err)
	}

	passwordBytes := make([]byte, seedPasswordBytes)
	if _, err := rand.Read(passwordBytes); err != nil {
		return "", fmt.Errorf("generating seed password: %w", err)
	}
	password := hex.EncodeToString(passwordBytes)

	hash, err := hasher.Hash(password)
	if err != nil {
		return "", fmt.Errorf("hashing seed password: %w", err)
	}

	admin := &Credential{
		Email:        email,
		PasswordHash: hash,
		Role:         RoleAdmin,
	}
	if err := store.Create(ctx, admin); err != nil {
		return "", fmt.Errorf("creating bootstrap admin: %w", err)
	}

	logger.Warn("bootstrap admin created",
		"email", email,
		"password", password,
		"action_required", "change this password immediately",
	)

	return password, nil
}
