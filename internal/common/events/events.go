// Package events holds the topics, CloudEvent types and payloads exchanged with other
// services.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Topics.
const (
	TopicAdoptionEvents = "adoption.events"
	TopicPaymentEvents  = "payment.events"
)

// Event types published on TopicAdoptionEvents.
const (
	AdoptionPetsAdopted    = "adoption.pets_adopted"
	AdoptionPaymentApplied = "adoption.payment_applied"
	AdoptionPetsReturned   = "adoption.pets_returned"
)

// Event types consumed from TopicPaymentEvents.
const (
	PaymentReceived = "payment.received"
)

// PetsAdoptedEvent is published after pets are added to a user's ledger.
type PetsAdoptedEvent struct {
	LedgerID      uuid.UUID   `json:"ledger_id"`
	UserID        uuid.UUID   `json:"user_id"`
	PetIDs        []uuid.UUID `json:"pet_ids"`
	AddedCents    int64       `json:"added_cents"`
	TotalCents    int64       `json:"total_cents"`
	PayMoneyCents int64       `json:"pay_money_cents"`
	Status        string      `json:"status"`
	OccurredAt    time.Time   `json:"occurred_at"`
}

// PaymentAppliedEvent is published after a payment is credited to a ledger.
type PaymentAppliedEvent struct {
	LedgerID       uuid.UUID `json:"ledger_id"`
	UserID         uuid.UUID `json:"user_id"`
	AmountCents    int64     `json:"amount_cents"`
	PaymentID      string    `json:"payment_id,omitempty"`
	PayMoneyCents  int64     `json:"pay_money_cents"`
	RemainingCents int64     `json:"remaining_cents"`
	Status         string    `json:"status"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// PetsReturnedEvent is published after pets are removed from a ledger. RefundCents is
// the amount the payment service owes back to the user.
type PetsReturnedEvent struct {
	LedgerID      uuid.UUID   `json:"ledger_id"`
	UserID        uuid.UUID   `json:"user_id"`
	PetIDs        []uuid.UUID `json:"pet_ids"`
	RemovedCents  int64       `json:"removed_cents"`
	RefundCents   int64       `json:"refund_cents"`
	TotalCents    int64       `json:"total_cents"`
	PayMoneyCents int64       `json:"pay_money_cents"`
	Status        string      `json:"status"`
	OccurredAt    time.Time   `json:"occurred_at"`
}

// PaymentReceivedEvent is consumed from the payment service.
type PaymentReceivedEvent struct {
	PaymentID   string    `json:"payment_id"`
	UserID      uuid.UUID `json:"user_id"`
	AmountCents int64     `json:"amount_cents"`
	OccurredAt  time.Time `json:"occurred_at"`
}
