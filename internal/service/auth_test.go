package service

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/Dan9191/card-vault/internal/errs"
	"github.com/Dan9191/card-vault/internal/repository"
	"github.com/Dan9191/card-vault/internal/token"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestAuthService() (*AuthService, *repository.Memory) {
	store := repository.NewMemory()
	codec := token.NewCodec([]byte("auth-test-secret"))
	return NewAuthService(store, codec, testLogger(), time.Hour), store
}

func TestRegisterAndAuthenticate(t *testing.T) {
	svc, _ := newTestAuthService()
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice", "alice@example.com", "Password123")
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "alice", user.Username)
	assert.NotEqual(t, "Password123", user.PasswordHash)

	credential, err := svc.Authenticate(ctx, "alice", "Password123")
	require.NoError(t, err)

	userID, err := svc.VerifySession(ctx, credential)
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	svc, _ := newTestAuthService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "alice@example.com", "Password123")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "alice", "other@example.com", "Password456")
	assert.ErrorIs(t, err, errs.ErrAlreadyExists)
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestAuthService()
	ctx := context.Background()

	tests := []struct {
		name     string
		username string
		email    string
		password string
	}{
		{"empty username", "", "a@example.com", "Password123"},
		{"bad email", "alice", "not-an-email", "Password123"},
		{"short password", "alice", "a@example.com", "Pw1"},
		{"no digits", "alice", "a@example.com", "OnlyLetters"},
		{"no letters", "alice", "a@example.com", "1234567890"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.username, tt.email, tt.password)
			assert.ErrorIs(t, err, errs.ErrMalformed)
		})
	}
}

func TestAuthenticateFailuresIndistinguishable(t *testing.T) {
	svc, _ := newTestAuthService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "alice@example.com", "Password123")
	require.NoError(t, err)

	_, unknownErr := svc.Authenticate(ctx, "nobody", "Password123")
	_, wrongPwErr := svc.Authenticate(ctx, "alice", "WrongPassword1")

	assert.ErrorIs(t, unknownErr, errs.ErrInvalidCredentials)
	assert.ErrorIs(t, wrongPwErr, errs.ErrInvalidCredentials)
	assert.Equal(t, unknownErr.Error(), wrongPwErr.Error())
}

func TestVerifySessionRejectsForgedCredential(t *testing.T) {
	svc, _ := newTestAuthService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "alice@example.com", "Password123")
	require.NoError(t, err)

	forger := token.NewCodec([]byte("wrong-secret"))
	forged, err := forger.IssueSession("some-user", time.Hour)
	require.NoError(t, err)

	_, err = svc.VerifySession(ctx, forged)
	assert.ErrorIs(t, err, errs.ErrSignatureInvalid)
}

func TestLogoutDenylistsSession(t *testing.T) {
	svc, _ := newTestAuthService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "alice@example.com", "Password123")
	require.NoError(t, err)
	credential, err := svc.Authenticate(ctx, "alice", "Password123")
	require.NoError(t, err)

	_, err = svc.VerifySession(ctx, credential)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, credential))

	_, err = svc.VerifySession(ctx, credential)
	assert.ErrorIs(t, err, errs.ErrInvalidCredentials)
}

func TestPurgeExpiredSessions(t *testing.T) {
	svc, store := newTestAuthService()
	ctx := context.Background()

	require.NoError(t, store.RevokeSession(ctx, "expired-jti", time.Now().Add(-time.Minute)))
	require.NoError(t, store.RevokeSession(ctx, "live-jti", time.Now().Add(time.Hour)))

	require.NoError(t, svc.PurgeExpiredSessions(ctx))

	revoked, err := store.IsSessionRevoked(ctx, "expired-jti")
	require.NoError(t, err)
	assert.False(t, revoked)

	revoked, err = store.IsSessionRevoked(ctx, "live-jti")
	require.NoError(t, err)
	assert.True(t, revoked)
}
