package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
)

// Claim keys carried by access and refresh tokens.
const (
	ClaimEmail = "email"
	ClaimRole  = "role"
)

// Default token lifetimes.
const (
	DefaultAccessTTL  = time.Hour
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// emailPattern checks the rough shape of an address only.
var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// dummyPassword backs the verifier checked when a login names an unknown identifier.
const dummyPassword = "servicedesk-dummy-password"

// SessionConfig carries the signing secrets and token lifetimes.
type SessionConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// RegisterInput is the data accepted by Register.
type RegisterInput struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	Role       Role   `json:"role"`
	ResidentID *int64 `json:"residentId"`
	ManagerID  *int64 `json:"managerId"`
}

// Service implements registration, login, refresh and logout.
//
// It holds no per-session state: the credential store is the only shared
// mutable resource, and the stored refresh token is the single live session.
type Service struct {
	store  CredentialStore
	codec  TokenCodec
	hasher PasswordHasher
	cfg    SessionConfig

	dummyOnce sync.Once
	dummyHash string
}

// NewService validates cfg and returns a Service.
func NewService(store CredentialStore, codec TokenCodec, hasher PasswordHasher, cfg SessionConfig) (*Service, error) {
	switch {
	case store == nil || codec == nil || hasher == nil:
		return nil, errors.New("store, codec and hasher are required")
	case len(cfg.AccessSecret) == 0:
		return nil, errors.New("access token secret is required")
	case len(cfg.RefreshSecret) == 0:
		return nil, errors.New("refresh token secret is required")
	case subtle.ConstantTimeCompare(cfg.AccessSecret, cfg.RefreshSecret) == 1:
		return nil, errors.New("access and refresh token secrets must differ")
	case cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0:
		return nil, errors.New("token TTLs must be positive")
	}

	return &Service{store: store, codec: codec, hasher: hasher, cfg: cfg}, nil
}

// Register creates a credential and returns its public projection.
// Only the resident and manager roles may be requested; an admin role is
// rejected with ErrInvalidRole.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*PublicCredential, error) {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required),
		validation.Field(&in.Password, validation.Required),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingField, err) //nolint:errorlint // ozzo errors are flattened into the message
	}

	if err := validation.Validate(in.Email, validation.Match(emailPattern)); err != nil {
		return nil, fmt.Errorf("%w: email %v", ErrInvalidEmail, err) //nolint:errorlint // flattened
	}
	// Admins are only created by SeedAdmin.
	if err := validation.Validate(in.Role, validation.In(RoleResident, RoleManager)); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, in.Role)
	}

	switch _, err := s.store.FindByIdentifier(ctx, in.Email); {
	case err == nil:
		return nil, ErrDuplicateIdentifier
	case !errors.Is(err, ErrCredentialNotFound):
		return nil, asStorageFailure(err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	cred := &Credential{
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		ResidentID:   in.ResidentID,
		ManagerID:    in.ManagerID,
	}
	if cred.Role == "" {
		cred.Role = RoleResident
	}

	if err := s.store.Create(ctx, cred); err != nil {
		if errors.Is(err, ErrDuplicateIdentifier) {
			return nil, ErrDuplicateIdentifier
		}
		return nil, asStorageFailure(err)
	}

	return cred.Public(), nil
}

// Login checks the password and issues a token pair. The refresh token
// replaces whatever was stored before, so an earlier session's refresh
// token stops working. Two concurrent logins race; the last write wins.
func (s *Service) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	if email == "" || password == "" {
		return nil, ErrMissingField
	}

	cred, err := s.store.FindByIdentifier(ctx, email)
	if err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			s.hasher.Verify(password, s.dummyVerifier())
			return nil, ErrInvalidCredentials
		}
		return nil, asStorageFailure(err)
	}

	if !s.hasher.Verify(password, cred.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	claims := principalClaims(cred)

	access, err := s.codec.Sign(claims, s.cfg.AccessSecret, s.cfg.AccessTTL)
	if err != nil {
		return nil, fmt.Errorf("signing access token: %w", err)
	}
	refresh, err := s.codec.Sign(claims, s.cfg.RefreshSecret, s.cfg.RefreshTTL)
	if err != nil {
		return nil, fmt.Errorf("signing refresh token: %w", err)
	}

	if err := s.store.UpdateRefreshToken(ctx, cred.Email, refresh); err != nil {
		return nil, asStorageFailure(err)
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Refresh exchanges a refresh token for a new access token. The refresh
// token must verify and must equal the value currently stored for its
// identity. The refresh token itself is not rotated.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", ErrMissingField
	}

	claims, err := s.codec.Verify(refreshToken, s.cfg.RefreshSecret)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidRefreshToken, err)
	}

	email, ok := claims.String(ClaimEmail)
	if !ok || email == "" {
		return "", ErrInvalidRefreshToken
	}

	cred, err := s.store.FindByIdentifier(ctx, email)
	if err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			return "", ErrInvalidRefreshToken
		}
		return "", asStorageFailure(err)
	}

	if subtle.ConstantTimeCompare([]byte(cred.RefreshToken), []byte(refreshToken)) != 1 {
		return "", ErrInvalidRefreshToken
	}

	access, err := s.codec.Sign(principalClaims(cred), s.cfg.AccessSecret, s.cfg.AccessTTL)
	if err != nil {
		return "", fmt.Errorf("signing access token: %w", err)
	}
	return access, nil
}

// Logout clears the stored refresh token for email.
func (s *Service) Logout(ctx context.Context, email string) error {
	if err := s.store.UpdateRefreshToken(ctx, email, ""); err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			return ErrCredentialNotFound
		}
		return asStorageFailure(err)
	}
	return nil
}

// VerifyAccessToken verifies an access token and returns its claims.
func (s *Service) VerifyAccessToken(token string) (Claims, error) {
	return s.codec.Verify(token, s.cfg.AccessSecret)
}

// Profile returns the public projection for email.
func (s *Service) Profile(ctx context.Context, email string) (*PublicCredential, error) {
	cred, err := s.store.FindByIdentifier(ctx, email)
	if err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			return nil, ErrCredentialNotFound
		}
		return nil, asStorageFailure(err)
	}
	return cred.Public(), nil
}

func (s *Service) dummyVerifier() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash(dummyPassword) //nolint:errcheck // an empty verifier still fails closed
	})
	return s.dummyHash
}

func principalClaims(cred *Credential) Claims {
	return Claims{
		ClaimEmail: cred.Email,
		ClaimRole:  string(cred.Role),
	}
}

// asStorageFailure makes sure an unexpected store error carries ErrStorageFailure.
func asStorageFailure(err error) error {
	if errors.Is(err, ErrStorageFailure) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStorageFailure, err)
}
