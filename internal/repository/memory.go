package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Dan9191/card-vault/internal/errs"
	"github.com/Dan9191/card-vault/internal/models"
)

// Memory is an in-process Store used by tests and for local runs
// without a database. A single mutex gives the same per-card
// serialization the postgres CAS update provides.
type Memory struct {
	mu              sync.Mutex
	users           map[string]*models.User // keyed by username
	cards           map[string]*models.Card // keyed by card id
	revokedSessions map[string]time.Time    // token id -> credential expiry
}

// NewMemory initializes an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		users:           make(map[string]*models.User),
		cards:           make(map[string]*models.Card),
		revokedSessions: make(map[string]time.Time),
	}
}

// CreateUser inserts a user, enforcing username uniqueness
func (m *Memory) CreateUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.Username]; ok {
		return errs.ErrAlreadyExists
	}
	user.CreatedAt = time.Now().UTC()
	stored := *user
	m.users[user.Username] = &stored
	return nil
}

// FindUserByUsername retrieves a user by username
func (m *Memory) FindUserByUsername(_ context.Context, username string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[username]
	if !ok {
		return nil, errs.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

// FindUserByID retrieves a user by identifier
func (m *Memory) FindUserByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.ID == id {
			copied := *user
			return &copied, nil
		}
	}
	return nil, errs.ErrNotFound
}

// CreateCard inserts a card row
func (m *Memory) CreateCard(_ context.Context, card *models.Card) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cards[card.ID]; ok {
		return errs.ErrAlreadyExists
	}
	now := time.Now().UTC()
	card.CreatedAt = now
	card.UpdatedAt = now
	stored := *card
	m.cards[card.ID] = &stored
	return nil
}

// FindCardByID retrieves a card regardless of status
func (m *Memory) FindCardByID(_ context.Context, id string) (*models.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	card, ok := m.cards[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	copied := *card
	return &copied, nil
}

// ListCardsByOwner returns every card owned by the given user, oldest
// first, matching the postgres ordering
func (m *Memory) ListCardsByOwner(_ context.Context, ownerID string) ([]*models.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var cards []*models.Card
	for _, card := range m.cards {
		if card.OwnerID == ownerID {
			copied := *card
			cards = append(cards, &copied)
		}
	}
	sort.Slice(cards, func(i, j int) bool {
		if cards[i].CreatedAt.Equal(cards[j].CreatedAt) {
			return cards[i].ID < cards[j].ID
		}
		return cards[i].CreatedAt.Before(cards[j].CreatedAt)
	})
	return cards, nil
}

// UpdateCardCAS applies a compare-and-set update on (status, current token id)
func (m *Memory) UpdateCardCAS(_ context.Context, id string, expectStatus models.CardStatus, expectTokenID string, newStatus models.CardStatus, newTokenID string) (*models.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	card, ok := m.cards[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	if card.Status != expectStatus || card.CurrentTokenID != expectTokenID {
		return nil, errs.ErrConflict
	}
	card.Status = newStatus
	card.CurrentTokenID = newTokenID
	card.UpdatedAt = time.Now().UTC()
	copied := *card
	return &copied, nil
}

// RevokeSession records a session token identifier on the denylist
func (m *Memory) RevokeSession(_ context.Context, tokenID string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.revokedSessions[tokenID]; !ok {
		m.revokedSessions[tokenID] = expiresAt
	}
	return nil
}

// IsSessionRevoked reports whether a session token identifier is denylisted
func (m *Memory) IsSessionRevoked(_ context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, revoked := m.revokedSessions[tokenID]
	return revoked, nil
}

// PurgeExpiredSessions removes denylist entries whose credentials have expired
func (m *Memory) PurgeExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var purged int64
	for id, expiresAt := range m.revokedSessions {
		if expiresAt.Before(now) {
			delete(m.revokedSessions, id)
			purged++
		}
	}
	return purged, nil
}
