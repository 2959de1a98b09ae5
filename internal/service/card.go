package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dan9191/card-vault/internal/errs"
	"github.com/Dan9191/card-vault/internal/models"
	"github.com/Dan9191/card-vault/internal/repository"
	"github.com/Dan9191/card-vault/internal/token"
	"github.com/Dan9191/card-vault/internal/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// readRetryBackoff is the pause before the single retry of an
// idempotent read that hit a transient store failure. Mutations are
// never retried here: the caller must retry the whole request.
const readRetryBackoff = 50 * time.Millisecond

// Notifier delivers best-effort security notices to card owners
type Notifier interface {
	SendCardSecurityNotice(to, username, maskedNumber, event string, when time.Time) error
}

// TokenizeRequest carries the sensitive card data presented for
// tokenization. None of it is persisted: the PAN and CVV are handed to
// the external secret store and only an opaque reference plus a masked
// number are kept.
type TokenizeRequest struct {
	CardNumber     string
	CardholderName string
	ExpiryMonth    int
	ExpiryYear     int
	CVV            string
}

// CardService owns the tokenized-card lifecycle and the card-access
// credentials bound to it.
type CardService struct {
	store        repository.Store
	codec        *token.Codec
	log          *logrus.Logger
	notifier     Notifier // may be nil
	cardTokenTTL time.Duration
}

// NewCardService initializes a new card service. notifier may be nil.
func NewCardService(store repository.Store, codec *token.Codec, log *logrus.Logger, notifier Notifier, cardTokenTTL time.Duration) *CardService {
	return &CardService{store: store, codec: codec, log: log, notifier: notifier, cardTokenTTL: cardTokenTTL}
}

// Tokenize creates an active card record for the user and issues its
// first card-access credential with full-access scope.
func (s *CardService) Tokenize(ctx context.Context, userID string, req TokenizeRequest) (*models.Card, string, error) {
	if !utils.ValidCardNumber(req.CardNumber) {
		return nil, "", fmt.Errorf("%w: invalid card number", errs.ErrMalformed)
	}
	if !utils.ValidCVV(req.CVV) {
		return nil, "", fmt.Errorf("%w: invalid cvv", errs.ErrMalformed)
	}
	if !utils.ValidExpiry(req.ExpiryMonth, req.ExpiryYear, time.Now()) {
		return nil, "", fmt.Errorf("%w: invalid expiry date", errs.ErrMalformed)
	}
	if req.CardholderName == "" {
		return nil, "", fmt.Errorf("%w: cardholder name is required", errs.ErrMalformed)
	}

	card := &models.Card{
		ID:      uuid.NewString(),
		OwnerID: userID,
		// Reference under which the raw card data is held by the
		// external secret store. The PAN itself never touches our rows.
		PayloadRef:     uuid.NewString(),
		MaskedNumber:   utils.MaskCardNumber(req.CardNumber),
		CardholderName: req.CardholderName,
		Status:         models.StatusActive,
		CurrentTokenID: uuid.NewString(),
	}

	if err := s.store.CreateCard(ctx, card); err != nil {
		return nil, "", err
	}

	credential, err := s.codec.IssueCard(userID, card.ID, card.CurrentTokenID, token.ScopeFullAccess, s.cardTokenTTL)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue card credential: %w", err)
	}

	s.log.Infof("Card %s tokenized for user %s", card.ID, userID)
	return card, credential, nil
}

// VerifyAccess validates a card-access credential against the card it
// is bound to and the scope the operation requires, and returns the
// card. It re-reads status and current token identifier on every call.
func (s *CardService) VerifyAccess(ctx context.Context, credential string, required token.Scope) (*models.Card, error) {
	claims, err := s.verifyClaims(credential, required)
	if err != nil {
		return nil, err
	}
	card, err := s.findCard(ctx, claims.CardID)
	if err != nil {
		return nil, err
	}
	if err := s.checkCurrency(card, claims); err != nil {
		return nil, err
	}
	return card, nil
}

// verifyClaims validates the credential itself: signature, expiry,
// structural completeness and scope. No store access.
func (s *CardService) verifyClaims(credential string, required token.Scope) (*token.CardClaims, error) {
	claims, err := s.codec.VerifyCard(credential)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" || claims.CardID == "" || claims.ID == "" || !claims.Scope.Valid() {
		return nil, errs.ErrMalformed
	}
	if !claims.Scope.Satisfies(required) {
		return nil, errs.ErrScopeInsufficient
	}
	return claims, nil
}

// verifyAccessFor is the full gate for an operation targeting a card:
// credential, then card lookup, then owner/card binding, then lifecycle
// state. Binding runs before the status checks so a non-owner session
// only ever learns NotFound, never whether the card is revoked.
func (s *CardService) verifyAccessFor(ctx context.Context, credential string, required token.Scope, userID, cardID string) (*models.Card, *token.CardClaims, error) {
	claims, err := s.verifyClaims(credential, required)
	if err != nil {
		return nil, nil, err
	}
	card, err := s.findCard(ctx, claims.CardID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.checkBinding(card, claims, userID, cardID); err != nil {
		return nil, nil, err
	}
	if err := s.checkCurrency(card, claims); err != nil {
		return nil, nil, err
	}
	return card, claims, nil
}

// checkCurrency enforces the card's lifecycle state against the
// credential. Status is checked before token currency: a revoked card
// reports CardNotActive even though revocation also rotated the token
// identifier.
func (s *CardService) checkCurrency(card *models.Card, claims *token.CardClaims) error {
	switch card.Status {
	case models.StatusDeleted:
		return errs.ErrNotFound
	case models.StatusRevoked:
		return errs.ErrCardNotActive
	}
	if card.CurrentTokenID != claims.ID {
		return errs.ErrTokenSuperseded
	}
	return nil
}

// Get returns the card when the credential carries read-only or
// full-access scope and the caller owns it.
func (s *CardService) Get(ctx context.Context, userID, cardID, credential string) (*models.Card, error) {
	card, _, err := s.verifyAccessFor(ctx, credential, token.ScopeReadOnly, userID, cardID)
	return card, err
}

// List returns every card owned by the user. Requires only a valid
// session; no card-access credential is involved.
func (s *CardService) List(ctx context.Context, userID string) ([]*models.Card, error) {
	cards, err := s.store.ListCardsByOwner(ctx, userID)
	if err != nil && isTransient(err) {
		time.Sleep(readRetryBackoff)
		cards, err = s.store.ListCardsByOwner(ctx, userID)
	}
	return cards, err
}

// Refresh rotates the card's current token identifier and issues a new
// credential with the same scope as the presented one. The old
// credential fails with TokenSuperseded from this point on, even before
// its cryptographic expiry.
func (s *CardService) Refresh(ctx context.Context, userID, cardID, credential string) (*models.Card, string, error) {
	card, claims, err := s.verifyAccessFor(ctx, credential, token.ScopeRefreshOnly, userID, cardID)
	if err != nil {
		return nil, "", err
	}

	newTokenID := uuid.NewString()
	updated, err := s.store.UpdateCardCAS(ctx, card.ID, models.StatusActive, card.CurrentTokenID, models.StatusActive, newTokenID)
	if err != nil {
		return nil, "", err
	}

	newCredential, err := s.codec.IssueCard(userID, card.ID, newTokenID, claims.Scope, s.cardTokenTTL)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue card credential: %w", err)
	}

	s.log.Infof("Card %s refreshed for user %s", card.ID, userID)
	return updated, newCredential, nil
}

// Revoke moves the card to revoked and rotates the current token
// identifier so no outstanding credential can pass VerifyAccess again.
// Requires full-access scope. The row is kept for audit.
func (s *CardService) Revoke(ctx context.Context, userID, cardID, credential string) (*models.Card, error) {
	card, _, err := s.verifyAccessFor(ctx, credential, token.ScopeFullAccess, userID, cardID)
	if err != nil {
		return nil, err
	}

	updated, err := s.store.UpdateCardCAS(ctx, card.ID, models.StatusActive, card.CurrentTokenID, models.StatusRevoked, uuid.NewString())
	if err != nil {
		return nil, err
	}

	s.log.Infof("Card %s revoked for user %s", card.ID, userID)
	s.notify(ctx, userID, updated, "Revoked")
	return updated, nil
}

// Delete moves the card to its terminal deleted state. Requires
// full-access scope and ownership. On an active card the credential
// must also be the current one. A revoked card may still be deleted,
// and revocation already rotated its token identifier, so only there
// the token-currency check is waived. Deleted cards yield NotFound.
func (s *CardService) Delete(ctx context.Context, userID, cardID, credential string) error {
	claims, err := s.verifyClaims(credential, token.ScopeFullAccess)
	if err != nil {
		return err
	}
	card, err := s.findCard(ctx, claims.CardID)
	if err != nil {
		return err
	}
	if err := s.checkBinding(card, claims, userID, cardID); err != nil {
		return err
	}
	switch card.Status {
	case models.StatusDeleted:
		return errs.ErrNotFound
	case models.StatusActive:
		if card.CurrentTokenID != claims.ID {
			return errs.ErrTokenSuperseded
		}
	}

	updated, err := s.store.UpdateCardCAS(ctx, card.ID, card.Status, card.CurrentTokenID, models.StatusDeleted, uuid.NewString())
	if err != nil {
		return err
	}

	s.log.Infof("Card %s deleted for user %s", card.ID, userID)
	s.notify(ctx, userID, updated, "Deleted")
	return nil
}

// checkBinding verifies that the credential, the targeted card and the
// session all agree on card and owner. Mismatches surface as NotFound
// so a non-owner learns nothing about foreign cards.
func (s *CardService) checkBinding(card *models.Card, claims *token.CardClaims, userID, cardID string) error {
	if card.ID != cardID || card.OwnerID != userID || claims.Subject != userID {
		return errs.ErrNotFound
	}
	return nil
}

// findCard reads a card, retrying once on a transient store failure
func (s *CardService) findCard(ctx context.Context, id string) (*models.Card, error) {
	card, err := s.store.FindCardByID(ctx, id)
	if err != nil && isTransient(err) {
		time.Sleep(readRetryBackoff)
		card, err = s.store.FindCardByID(ctx, id)
	}
	return card, err
}

// notify sends a best-effort security notice to the card owner.
// Failures are logged, never surfaced.
func (s *CardService) notify(ctx context.Context, userID string, card *models.Card, event string) {
	if s.notifier == nil {
		return
	}
	user, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		s.log.Warnf("Skipping %s notice for card %s: %v", event, card.ID, err)
		return
	}
	go func() {
		if err := s.notifier.SendCardSecurityNotice(user.Email, user.Username, card.MaskedNumber, event, card.UpdatedAt); err != nil {
			s.log.Warnf("Failed to send %s notice for card %s: %v", event, card.ID, err)
		}
	}()
}

func isTransient(err error) bool {
	for _, sentinel := range []error{
		errs.ErrNotFound, errs.ErrAlreadyExists, errs.ErrConflict,
	} {
		if errors.Is(err, sentinel) {
			return false
		}
	}
	return true
}
