package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewService_ValidatesConfig(t *testing.T) {
	good := SessionConfig{
		AccessSecret:  []byte(testAccessSecret),
		RefreshSecret: []byte(testRefreshSecret),
		AccessTTL:     time.Hour,
		RefreshTTL:    24 * time.Hour,
	}
	store := NewMemoryCredentialStore()

	tests := []struct {
		name   string
		mutate func(*SessionConfig)
	}{
		{"missing access secret", func(c *SessionConfig) { c.AccessSecret = nil }},
		{"missing refresh secret", func(c *SessionConfig) { c.RefreshSecret = nil }},
		{"identical secrets", func(c *SessionConfig) { c.RefreshSecret = c.AccessSecret }},
		{"zero access ttl", func(c *SessionConfig) { c.AccessTTL = 0 }},
		{"negative refresh ttl", func(c *SessionConfig) { c.RefreshTTL = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := good
			tt.mutate(&cfg)
			_, err := NewService(store, NewHS256(), ScryptHasher{}, cfg)
			assert.Error(t, err)
		})
	}

	_, err := NewService(nil, NewHS256(), ScryptHasher{}, good)
	assert.Error(t, err, "nil store")

	svc, err := NewService(store, NewHS256(), ScryptHasher{}, good)
	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestService_Register(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, NewMemoryCredentialStore())
	managerID := int64(9)

	pub, err := svc.Register(ctx, RegisterInput{
		Email:     "manager@example.com",
		Password:  "pw123",
		Role:      RoleManager,
		ManagerID: &managerID,
	})
	require.NoError(t, err)
	assert.Equal(t, "manager@example.com", pub.Email)
	assert.Equal(t, RoleManager, pub.Role)
	require.NotNil(t, pub.ManagerID)
	assert.Equal(t, int64(9), *pub.ManagerID)
	assert.NotEmpty(t, pub.ID)

	pub, err = svc.Register(ctx, RegisterInput{Email: "resident@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, RoleResident, pub.Role, "role defaults to resident")

	tests := []struct {
		name    string
		in      RegisterInput
		wantErr error
	}{
		{"missing email", RegisterInput{Password: "pw"}, ErrMissingField},
		{"missing password", RegisterInput{Email: "x@example.com"}, ErrMissingField},
		{"missing both", RegisterInput{}, ErrMissingField},
		{"bad email", RegisterInput{Email: "not-an-email", Password: "pw"}, ErrInvalidEmail},
		{"unknown role", RegisterInput{Email: "x@example.com", Password: "pw", Role: "owner"}, ErrInvalidRole},
		{"admin role", RegisterInput{Email: "x@example.com", Password: "pw", Role: RoleAdmin}, ErrInvalidRole},
		{"duplicate", RegisterInput{Email: "manager@example.com", Password: "other"}, ErrDuplicateIdentifier},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.in)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestService_RegisterStoresVerifierNotPassword(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCredentialStore()
	svc := newTestService(t, store)

	_, err := svc.Register(ctx, RegisterInput{Email: "alice@example.com", Password: "pw123"})
	require.NoError(t, err)

	cred, err := store.FindByIdentifier(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.NotContains(t, cred.PasswordHash, "pw123")
	assert.True(t, VerifyPassword("pw123", cred.PasswordHash))
}

func TestService_Login(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCredentialStore()
	svc := newTestService(t, store)
	seedCredential(t, store, "alice@example.com", "pw123", RoleResident)

	t.Run("success", func(t *testing.T) {
		pair, err := svc.Login(ctx, "alice@example.com", "pw123")
		require.NoError(t, err)

		access, err := svc.VerifyAccessToken(pair.AccessToken)
		require.NoError(t, err)
		email, _ := access.String(ClaimEmail)
		role, _ := access.String(ClaimRole)
		assert.Equal(t, "alice@example.com", email)
		assert.Equal(t, "resident", role)

		cred, err := store.FindByIdentifier(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, pair.RefreshToken, cred.RefreshToken, "refresh token persisted")
	})

	t.Run("wrong password and unknown user are indistinguishable", func(t *testing.T) {
		_, errWrong := svc.Login(ctx, "alice@example.com", "nope")
		_, errUnknown := svc.Login(ctx, "nobody@example.com", "pw123")

		assert.ErrorIs(t, errWrong, ErrInvalidCredentials)
		assert.ErrorIs(t, errUnknown, ErrInvalidCredentials)
		assert.Equal(t, errWrong.Error(), errUnknown.Error())
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := svc.Login(ctx, "", "pw123")
		assert.ErrorIs(t, err, ErrMissingField)
		_, err = svc.Login(ctx, "alice@example.com", "")
		assert.ErrorIs(t, err, ErrMissingField)
	})
}

func TestService_AccessAndRefreshUseDistinctSecrets(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCredentialStore()
	svc := newTestService(t, store)
	seedCredential(t, store, "alice@example.com", "pw123", RoleResident)

	pair, err := svc.Login(ctx, "alice@example.com", "pw123")
	require.NoError(t, err)

	_, err = svc.VerifyAccessToken(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidSignature, "refresh token must not pass as an access token")

	_, err = svc.Refresh(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken, "access token must not pass as a refresh token")
}

// TestService_SessionScenario walks register, login, refresh and re-login.
func TestService_SessionScenario(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, NewMemoryCredentialStore())

	_, err := svc.Register(ctx, RegisterInput{Email: "alice@example.com", Password: "pw123"})
	require.NoError(t, err)

	first, err := svc.Login(ctx, "alice@example.com", "pw123")
	require.NoError(t, err)

	codec := NewHS256()
	access, err := codec.Verify(first.AccessToken, []byte(testAccessSecret))
	require.NoError(t, err)
	refresh, err := codec.Verify(first.RefreshToken, []byte(testRefreshSecret))
	require.NoError(t, err)

	assert.Equal(t, int64(3600), lifetime(t, access))
	assert.Equal(t, int64(604800), lifetime(t, refresh))

	renewed, err := svc.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	renewedClaims, err := svc.VerifyAccessToken(renewed)
	require.NoError(t, err)

	firstID, _ := access.String(ClaimTokenID)
	renewedID, _ := renewedClaims.String(ClaimTokenID)
	assert.NotEqual(t, firstID, renewedID, "refreshed access token gets a new token id")

	// Refresh does not rotate: the same refresh token keeps working
	_, err = svc.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)

	// A second login replaces the stored refresh token
	_, err = svc.Login(ctx, "alice@example.com", "pw123")
	require.NoError(t, err)

	_, err = svc.Refresh(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestService_Refresh_Failures(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCredentialStore()
	svc := newTestService(t, store)
	seedCredential(t, store, "alice@example.com", "pw123", RoleResident)

	pair, err := svc.Login(ctx, "alice@example.com", "pw123")
	require.NoError(t, err)

	codec := NewHS256()
	noEmail, err := codec.Sign(Claims{"role": "resident"}, []byte(testRefreshSecret), time.Hour)
	require.NoError(t, err)
	ghost, err := codec.Sign(Claims{ClaimEmail: "ghost@example.com"}, []byte(testRefreshSecret), time.Hour)
	require.NoError(t, err)
	expired, err := codec.Sign(Claims{ClaimEmail: "alice@example.com"}, []byte(testRefreshSecret), -time.Second)
	require.NoError(t, err)
	unstored, err := codec.Sign(Claims{ClaimEmail: "alice@example.com"}, []byte(testRefreshSecret), time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not.a.token"},
		{"tampered", pair.RefreshToken + "x"},
		{"no email claim", noEmail},
		{"unknown identity", ghost},
		{"expired", expired},
		{"valid but not stored", unstored},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Refresh(ctx, tt.token)
			assert.ErrorIs(t, err, ErrInvalidRefreshToken)
		})
	}

	_, err = svc.Refresh(ctx, "")
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestService_Logout(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCredentialStore()
	svc := newTestService(t, store)
	seedCredential(t, store, "alice@example.com", "pw123", RoleResident)

	pair, err := svc.Login(ctx, "alice@example.com", "pw123")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, "alice@example.com"))

	_, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken, "logout revokes the refresh token")

	assert.ErrorIs(t, svc.Logout(ctx, "nobody@example.com"), ErrCredentialNotFound)
}

func TestService_Profile(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCredentialStore()
	svc := newTestService(t, store)
	seedCredential(t, store, "alice@example.com", "pw123", RoleManager)

	pub, err := svc.Profile(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, RoleManager, pub.Role)

	_, err = svc.Profile(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrCredentialNotFound)
}

func TestService_StorageFailures(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, failingStore{})

	_, err := svc.Register(ctx, RegisterInput{Email: "a@example.com", Password: "pw"})
	assert.ErrorIs(t, err, ErrStorageFailure)

	_, err = svc.Login(ctx, "a@example.com", "pw")
	assert.ErrorIs(t, err, ErrStorageFailure)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)

	assert.ErrorIs(t, svc.Logout(ctx, "a@example.com"), ErrStorageFailure)

	_, err = svc.Profile(ctx, "a@example.com")
	assert.ErrorIs(t, err, ErrStorageFailure)
}

func TestService_LoginDoesNotIssueTokensWhenPersistFails(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryCredentialStore()
	seedCredential(t, inner, "alice@example.com", "pw123", RoleResident)
	svc := newTestService(t, &updateFailingStore{MemoryCredentialStore: inner})

	pair, err := svc.Login(ctx, "alice@example.com", "pw123")
	assert.ErrorIs(t, err, ErrStorageFailure)
	assert.Nil(t, pair)
}

func TestService_RefreshStorageFailure(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, failingStore{})

	token, err := NewHS256().Sign(Claims{ClaimEmail: "a@example.com"}, []byte(testRefreshSecret), time.Hour)
	require.NoError(t, err)

	_, err = svc.Refresh(ctx, token)
	assert.ErrorIs(t, err, ErrStorageFailure)
}

// updateFailingStore fails refresh token writes only.
type updateFailingStore struct {
	*MemoryCredentialStore
}

func (*updateFailingStore) UpdateRefreshToken(context.Context, string, string) error {
	return errors.New("write timeout")
}

func lifetime(t *testing.T, c Claims) int64 {
	t.Helper()
	iat, ok := c.Int64(ClaimIssuedAt)
	require.True(t, ok, "iat present")
	exp, ok := c.Int64(ClaimExpiresAt)
	require.True(t, ok, "exp present")
	return exp - iat
}
