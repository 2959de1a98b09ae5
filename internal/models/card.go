package models

import "time"

// CardStatus is the lifecycle status of a tokenized card.
// Transitions: active -> revoked, active -> deleted, revoked -> deleted.
// There is no transition out of deleted.
type CardStatus string

const (
	StatusActive  CardStatus = "active"
	StatusRevoked CardStatus = "revoked"
	StatusDeleted CardStatus = "deleted"
)

// Card represents a tokenized card. The raw card number never appears
// here: PayloadRef is an opaque handle into the external secret store,
// and MaskedNumber keeps only the last four digits for display.
type Card struct {
	ID             string     `json:"id"`
	OwnerID        string     `json:"owner_id"`
	PayloadRef     string     `json:"-"` // Not serialized
	MaskedNumber   string     `json:"masked_card_number"`
	CardholderName string     `json:"cardholder_name"`
	Status         CardStatus `json:"status"`
	CurrentTokenID string     `json:"-"` // Not serialized
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
