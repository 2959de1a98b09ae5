// Package token implements the credential codec shared by both security
// layers: compact, self-contained, expiry-bearing bearer credentials
// signed with a process-wide secret. Verification needs no database
// round-trip; the card service's current-token-identifier check covers
// the cases where revocation must be instant.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/Dan9191/card-vault/internal/errs"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionClaims is the payload of a user-session credential. Subject
// carries the user identifier.
type SessionClaims struct {
	jwt.RegisteredClaims
}

// CardClaims is the payload of a card-access credential. Subject carries
// the owning user identifier; ID (jti) is the token identifier that the
// card service matches against the card's current token identifier.
type CardClaims struct {
	CardID string `json:"card_id"`
	Scope  Scope  `json:"scope"`
	jwt.RegisteredClaims
}

// Codec signs and verifies bearer credentials. It is a pure function of
// its secret, the clock, and the input.
type Codec struct {
	secret []byte
	now    func() time.Time
}

// NewCodec creates a codec signing with the given secret
func NewCodec(secret []byte) *Codec {
	return &Codec{secret: secret, now: time.Now}
}

// NewCodecAt creates a codec with an explicit clock, for tests
func NewCodecAt(secret []byte, now func() time.Time) *Codec {
	return &Codec{secret: secret, now: now}
}

// IssueSession issues a user-session credential for the given user
func (c *Codec) IssueSession(userID string, ttl time.Duration) (string, error) {
	now := c.now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session credential: %w", err)
	}
	return signed, nil
}

// IssueCard issues a card-access credential binding the user, the card,
// the token identifier and the scope to each other.
func (c *Codec) IssueCard(userID, cardID, tokenID string, scope Scope, ttl time.Duration) (string, error) {
	now := c.now()
	claims := CardClaims{
		CardID: cardID,
		Scope:  scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        tokenID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign card credential: %w", err)
	}
	return signed, nil
}

// VerifySession parses and verifies a user-session credential
func (c *Codec) VerifySession(credential string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	if err := c.parse(credential, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// VerifyCard parses and verifies a card-access credential
func (c *Codec) VerifyCard(credential string) (*CardClaims, error) {
	claims := &CardClaims{}
	if err := c.parse(credential, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// parse verifies the signature and expiry and maps library errors onto
// the taxonomy. The signature check runs before claim validation, so a
// tampered credential always reports ErrSignatureInvalid, never
// ErrMalformed or ErrExpired. HMAC comparison inside the library is
// constant-time.
func (c *Codec) parse(credential string, claims jwt.Claims) error {
	_, err := jwt.ParseWithClaims(credential, claims,
		func(t *jwt.Token) (interface{}, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return errs.ErrSignatureInvalid
	case errors.Is(err, jwt.ErrTokenExpired):
		return errs.ErrExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return errs.ErrMalformed
	default:
		return fmt.Errorf("%w: %v", errs.ErrMalformed, err)
	}
}
