package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// scrypt parameters. Changing any of these invalidates stored verifiers.
const (
	scryptScheme  = "scrypt"
	scryptN       = 16384 // CPU/memory cost
	scryptR       = 8     // block size
	scryptP       = 1     // parallelism
	scryptKeyLen  = 64    // derived key length
	scryptSaltLen = 16    // salt length (128 bits)

	verifierFields = 3
)

// PasswordHasher derives and checks password verifiers.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, stored string) bool
}

// ScryptHasher is the default PasswordHasher.
type ScryptHasher struct{}

// Hash implements PasswordHasher.
func (ScryptHasher) Hash(password string) (string, error) {
	return HashPassword(password)
}

// Verify implements PasswordHasher.
func (ScryptHasher) Verify(password, stored string) bool {
	return VerifyPassword(password, stored)
}

// HashPassword derives a verifier for password with a fresh random salt.
// Format: scrypt$<salt-hex>$<key-hex>
func HashPassword(password string) (string, error) {
	salt := make([]byte, scryptSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	key, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return "", fmt.Errorf("deriving key: %w", err)
	}

	return scryptScheme + "$" + hex.EncodeToString(salt) + "$" + hex.EncodeToString(key), nil
}

// VerifyPassword reports whether password matches the stored verifier.
// Malformed verifiers and unknown schemes return false.
func VerifyPassword(password, stored string) bool {
	parts := strings.Split(stored, "$")
	if len(parts) != verifierFields || parts[0] != scryptScheme {
		return false
	}

	salt, err := hex.DecodeString(parts[1])
	if err != nil || len(salt) == 0 {
		return false
	}
	want, err := hex.DecodeString(parts[2])
	if err != nil || len(want) != scryptKeyLen {
		return false
	}

	got, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return false
	}

	return subtle.ConstantTimeCompare(got, want) == 1
}
