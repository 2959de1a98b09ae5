package repository

import (
	"context"
	"time"

	"github.com/Dan9191/card-vault/internal/models"
)

// Store is the persistence contract the services depend on. Errors are
// reported through the internal/errs sentinels.
type Store interface {
	// CreateUser inserts a user. Fails with errs.ErrAlreadyExists when
	// the username is taken.
	CreateUser(ctx context.Context, user *models.User) error
	// FindUserByUsername retrieves a user by username. Fails with
	// errs.ErrNotFound when no such user exists.
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	// FindUserByID retrieves a user by identifier. Fails with
	// errs.ErrNotFound when no such user exists.
	FindUserByID(ctx context.Context, id string) (*models.User, error)

	// CreateCard inserts a card row.
	CreateCard(ctx context.Context, card *models.Card) error
	// FindCardByID retrieves a card regardless of status. Fails with
	// errs.ErrNotFound when the row does not exist.
	FindCardByID(ctx context.Context, id string) (*models.Card, error)
	// ListCardsByOwner returns every card owned by the given user.
	ListCardsByOwner(ctx context.Context, ownerID string) ([]*models.Card, error)
	// UpdateCardCAS atomically moves a card from the expected
	// (status, current token id) pair to the new pair. Fails with
	// errs.ErrConflict when the expectation no longer holds and with
	// errs.ErrNotFound when the row does not exist. This is the
	// serialization point for refresh/revoke/delete on a single card.
	UpdateCardCAS(ctx context.Context, id string, expectStatus models.CardStatus, expectTokenID string, newStatus models.CardStatus, newTokenID string) (*models.Card, error)

	// RevokeSession records a session token identifier as revoked until
	// the credential's natural expiry.
	RevokeSession(ctx context.Context, tokenID string, expiresAt time.Time) error
	// IsSessionRevoked reports whether a session token identifier has
	// been revoked.
	IsSessionRevoked(ctx context.Context, tokenID string) (bool, error)
	// PurgeExpiredSessions removes denylist entries whose credentials
	// have expired on their own. Returns the number of rows removed.
	PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}
