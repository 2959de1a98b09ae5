package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Dan9191/card-vault/internal/errs"
	"github.com/Dan9191/card-vault/internal/models"
	"github.com/Dan9191/card-vault/internal/repository"
	"github.com/Dan9191/card-vault/internal/token"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// dummyHash is compared against when the username is unknown, so that
// failed logins take comparable time whether or not the user exists.
var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

// AuthService handles user registration and session credentials
type AuthService struct {
	store      repository.Store
	codec      *token.Codec
	log        *logrus.Logger
	sessionTTL time.Duration
}

// NewAuthService initializes a new auth service
func NewAuthService(store repository.Store, codec *token.Codec, log *logrus.Logger, sessionTTL time.Duration) *AuthService {
	return &AuthService{store: store, codec: codec, log: log, sessionTTL: sessionTTL}
}

// Register creates a new user with a hashed password
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", errs.ErrMalformed)
	}
	if !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: invalid email address", errs.ErrMalformed)
	}
	if err := validatePasswordStrength(password); err != nil {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hashedPassword),
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.log.Infof("User registered: %s", user.Username)
	return user, nil
}

// Authenticate verifies a username/password pair and returns a signed
// user-session credential. Unknown username and wrong password are
// indistinguishable to the caller.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (string, error) {
	user, err := s.store.FindUserByUsername(ctx, username)
	if err != nil {
		// Burn a hash comparison anyway so the two failure causes take
		// comparable time.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return "", errs.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", errs.ErrInvalidCredentials
	}

	credential, err := s.codec.IssueSession(user.ID, s.sessionTTL)
	if err != nil {
		return "", fmt.Errorf("failed to issue session credential: %w", err)
	}

	s.log.Infof("User logged in: %s", user.Username)
	return credential, nil
}

// VerifySession validates a user-session credential and returns the
// user identifier it is bound to. A structurally incomplete payload and
// a denylisted session both fail with ErrInvalidCredentials.
func (s *AuthService) VerifySession(ctx context.Context, credential string) (string, error) {
	claims, err := s.codec.VerifySession(credential)
	if err != nil {
		return "", err
	}
	if claims.Subject == "" || claims.ID == "" {
		return "", errs.ErrInvalidCredentials
	}

	revoked, err := s.store.IsSessionRevoked(ctx, claims.ID)
	if err != nil {
		return "", fmt.Errorf("failed to check session revocation: %w", err)
	}
	if revoked {
		return "", errs.ErrInvalidCredentials
	}
	return claims.Subject, nil
}

// Logout denylists the presented session credential until its natural
// expiry, so it can no longer pass VerifySession.
func (s *AuthService) Logout(ctx context.Context, credential string) error {
	claims, err := s.codec.VerifySession(credential)
	if err != nil {
		return err
	}
	if claims.ID == "" || claims.ExpiresAt == nil {
		return errs.ErrInvalidCredentials
	}
	if err := s.store.RevokeSession(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return err
	}
	s.log.Infof("Session revoked for user %s", claims.Subject)
	return nil
}

// PurgeExpiredSessions drops denylist entries whose credentials have
// expired on their own. Called on a schedule.
func (s *AuthService) PurgeExpiredSessions(ctx context.Context) error {
	purged, err := s.store.PurgeExpiredSessions(ctx, time.Now().UTC())
	if err != nil {
		return err
	}
	if purged > 0 {
		s.log.Infof("Purged %d expired session denylist entries", purged)
	}
	return nil
}

func validatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", errs.ErrMalformed)
	}
	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case r >= '0' && r <= '9':
			hasDigit = true
		case r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z':
			hasLetter = true
		}
	}
	if !hasLetter || !hasDigit {
		return fmt.Errorf("%w: password must contain letters and digits", errs.ErrMalformed)
	}
	return nil
}
