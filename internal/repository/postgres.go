package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dan9191/card-vault/internal/errs"
	"github.com/Dan9191/card-vault/internal/models"
	"github.com/lib/pq"
)

// Postgres provides database operations backed by PostgreSQL
type Postgres struct {
	db *sql.DB
}

// NewPostgres initializes a new postgres store
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// CreateUser creates a new user in the database
func (r *Postgres) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO vault.users (id, username, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4, CURRENT_TIMESTAMP)
		RETURNING created_at`
	err := r.db.QueryRowContext(ctx, query, user.ID, user.Username, user.Email, user.PasswordHash).
		Scan(&user.CreatedAt)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// FindUserByUsername retrieves a user by username
func (r *Postgres) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	user := &models.User{}
	query := `
		SELECT id, username, email, password_hash, created_at
		FROM vault.users
		WHERE username = $1`
	err := r.db.QueryRowContext(ctx, query, username).
		Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// FindUserByID retrieves a user by identifier
func (r *Postgres) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	user := &models.User{}
	query := `
		SELECT id, username, email, password_hash, created_at
		FROM vault.users
		WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// CreateCard creates a new card row
func (r *Postgres) CreateCard(ctx context.Context, card *models.Card) error {
	query := `
		INSERT INTO vault.cards
			(id, owner_id, payload_ref, masked_number, cardholder_name, status, current_token_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		card.ID, card.OwnerID, card.PayloadRef, card.MaskedNumber, card.CardholderName,
		card.Status, card.CurrentTokenID).
		Scan(&card.CreatedAt, &card.UpdatedAt)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("failed to create card: %w", err)
	}
	return nil
}

// FindCardByID retrieves a card by identifier, regardless of status
func (r *Postgres) FindCardByID(ctx context.Context, id string) (*models.Card, error) {
	card := &models.Card{}
	query := `
		SELECT id, owner_id, payload_ref, masked_number, cardholder_name, status, current_token_id, created_at, updated_at
		FROM vault.cards
		WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&card.ID, &card.OwnerID, &card.PayloadRef, &card.MaskedNumber, &card.CardholderName,
		&card.Status, &card.CurrentTokenID, &card.CreatedAt, &card.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find card: %w", err)
	}
	return card, nil
}

// ListCardsByOwner retrieves all cards owned by the given user
func (r *Postgres) ListCardsByOwner(ctx context.Context, ownerID string) ([]*models.Card, error) {
	query := `
		SELECT id, owner_id, payload_ref, masked_number, cardholder_name, status, current_token_id, created_at, updated_at
		FROM vault.cards
		WHERE owner_id = $1
		ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	defer rows.Close()

	var cards []*models.Card
	for rows.Next() {
		card := &models.Card{}
		if err := rows.Scan(
			&card.ID, &card.OwnerID, &card.PayloadRef, &card.MaskedNumber, &card.CardholderName,
			&card.Status, &card.CurrentTokenID, &card.CreatedAt, &card.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	return cards, nil
}

// UpdateCardCAS applies a compare-and-set update on (status, current_token_id).
// Zero rows affected means the expectation no longer holds: ErrConflict when
// the row still exists, ErrNotFound when it is gone.
func (r *Postgres) UpdateCardCAS(ctx context.Context, id string, expectStatus models.CardStatus, expectTokenID string, newStatus models.CardStatus, newTokenID string) (*models.Card, error) {
	card := &models.Card{}
	query := `
		UPDATE vault.cards
		SET status = $4, current_token_id = $5, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND status = $2 AND current_token_id = $3
		RETURNING id, owner_id, payload_ref, masked_number, cardholder_name, status, current_token_id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, id, expectStatus, expectTokenID, newStatus, newTokenID).Scan(
		&card.ID, &card.OwnerID, &card.PayloadRef, &card.MaskedNumber, &card.CardholderName,
		&card.Status, &card.CurrentTokenID, &card.CreatedAt, &card.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		checkErr := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM vault.cards WHERE id = $1)`, id).Scan(&exists)
		if checkErr != nil {
			return nil, fmt.Errorf("failed to check card existence: %w", checkErr)
		}
		if exists {
			return nil, errs.ErrConflict
		}
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update card: %w", err)
	}
	return card, nil
}

// RevokeSession records a session token identifier on the denylist
func (r *Postgres) RevokeSession(ctx context.Context, tokenID string, expiresAt time.Time) error {
	query := `
		INSERT INTO vault.revoked_sessions (token_id, expires_at, revoked_at)
		VALUES ($1, $2, CURRENT_TIMESTAMP)
		ON CONFLICT (token_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, tokenID, expiresAt); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// IsSessionRevoked reports whether a session token identifier is denylisted
func (r *Postgres) IsSessionRevoked(ctx context.Context, tokenID string) (bool, error) {
	var revoked bool
	query := `SELECT EXISTS (SELECT 1 FROM vault.revoked_sessions WHERE token_id = $1)`
	if err := r.db.QueryRowContext(ctx, query, tokenID).Scan(&revoked); err != nil {
		return false, fmt.Errorf("failed to check session revocation: %w", err)
	}
	return revoked, nil
}

// PurgeExpiredSessions removes denylist rows whose credentials have expired
func (r *Postgres) PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM vault.revoked_sessions WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged sessions: %w", err)
	}
	return n, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
