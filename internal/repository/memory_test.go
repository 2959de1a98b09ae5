package repository

import (
	"context"
	"testing"
	"time"

	"github.com/Dan9191/card-vault/internal/errs"
	"github.com/Dan9191/card-vault/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryUserUniqueness(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	require.NoError(t, store.CreateUser(ctx, &models.User{ID: "u1", Username: "alice"}))
	err := store.CreateUser(ctx, &models.User{ID: "u2", Username: "alice"})
	assert.ErrorIs(t, err, errs.ErrAlreadyExists)

	user, err := store.FindUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)

	user, err = store.FindUserByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	_, err = store.FindUserByUsername(ctx, "bob")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestMemoryCardCAS(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	card := &models.Card{
		ID:             "c1",
		OwnerID:        "u1",
		Status:         models.StatusActive,
		CurrentTokenID: "t1",
	}
	require.NoError(t, store.CreateCard(ctx, card))

	// CAS succeeds when the expectation holds.
	updated, err := store.UpdateCardCAS(ctx, "c1", models.StatusActive, "t1", models.StatusActive, "t2")
	require.NoError(t, err)
	assert.Equal(t, "t2", updated.CurrentTokenID)

	// A second CAS against the stale token id loses.
	_, err = store.UpdateCardCAS(ctx, "c1", models.StatusActive, "t1", models.StatusActive, "t3")
	assert.ErrorIs(t, err, errs.ErrConflict)

	// Status mismatch also loses.
	_, err = store.UpdateCardCAS(ctx, "c1", models.StatusRevoked, "t2", models.StatusDeleted, "t4")
	assert.ErrorIs(t, err, errs.ErrConflict)

	// Missing row reads as NotFound, not Conflict.
	_, err = store.UpdateCardCAS(ctx, "missing", models.StatusActive, "t1", models.StatusActive, "t2")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestMemoryReturnsCopies(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	card := &models.Card{ID: "c1", OwnerID: "u1", Status: models.StatusActive, CurrentTokenID: "t1"}
	require.NoError(t, store.CreateCard(ctx, card))

	fetched, err := store.FindCardByID(ctx, "c1")
	require.NoError(t, err)
	fetched.CurrentTokenID = "mutated"

	again, err := store.FindCardByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "t1", again.CurrentTokenID)
}

func TestMemoryListCardsOrderedByCreation(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	base := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	created := map[string]time.Time{
		"c-b": base.Add(2 * time.Hour),
		"c-a": base.Add(time.Hour),
		"c-c": base,
	}
	for id, at := range created {
		require.NoError(t, store.CreateCard(ctx, &models.Card{
			ID: id, OwnerID: "u1", Status: models.StatusActive, CurrentTokenID: "t-" + id,
		}))
		store.cards[id].CreatedAt = at
	}

	cards, err := store.ListCardsByOwner(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, cards, 3)
	assert.Equal(t, "c-c", cards[0].ID)
	assert.Equal(t, "c-a", cards[1].ID)
	assert.Equal(t, "c-b", cards[2].ID)
}

func TestMemorySessionDenylist(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	revoked, err := store.IsSessionRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, store.RevokeSession(ctx, "jti-1", time.Now().Add(time.Hour)))
	require.NoError(t, store.RevokeSession(ctx, "jti-2", time.Now().Add(-time.Hour)))

	revoked, err = store.IsSessionRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	purged, err := store.PurgeExpiredSessions(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	revoked, err = store.IsSessionRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)
}
