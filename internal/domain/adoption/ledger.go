package adoption

import (
	"fmt"
	"time"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/domain"
	"github.com/google/uuid"
)

// Line attributes one adopted pet to a ledger at the price it had when adopted.
type Line struct {
	PetID      uuid.UUID
	PriceCents int64
	AddedAt    time.Time
}

// EntryKind names the event an Entry records.
type EntryKind string

const (
	EntryAdopt   EntryKind = "adopt"
	EntryPayment EntryKind = "payment"
	EntryCancel  EntryKind = "cancel"
)

// Entry is one immutable record in a ledger's history.
type Entry struct {
	ID          uuid.UUID
	Kind        EntryKind
	AmountCents int64
	RefundCents int64
	PetIDs      []uuid.UUID
	// Reference is an external identifier (a payment id) used to make replays idempotent.
	Reference string
	CreatedAt time.Time
}

// Removal describes the outcome of RemovePets.
type Removal struct {
	PetIDs       []uuid.UUID
	RemovedCents int64
	RefundCents  int64
}

// Ledger is the aggregate root holding every pet currently adopted by one user together
// with the money paid for them. The total is always the sum of the line prices.
type Ledger struct {
	id            uuid.UUID
	userID        uuid.UUID
	lines         []Line
	payMoneyCents int64
	entries       []Entry
	version       int64
	createdAt     time.Time
	updatedAt     time.Time
}

// NewLedger creates an empty ledger for a user.
func NewLedger(userID uuid.UUID) (*Ledger, error) {
	if userID == uuid.Nil {
		return nil, domain.NewValidationError("user ID is required")
	}
	now := time.Now().UTC()
	return &Ledger{
		id:        uuid.New(),
		userID:    userID,
		version:   1,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// Reconstruct rebuilds a Ledger from persistence data (no validation).
func Reconstruct(
	id, userID uuid.UUID,
	lines []Line,
	payMoneyCents int64,
	entries []Entry,
	version int64,
	createdAt, updatedAt time.Time,
) *Ledger {
	return &Ledger{
		id:            id,
		userID:        userID,
		lines:         lines,
		payMoneyCents: payMoneyCents,
		entries:       entries,
		version:       version,
		createdAt:     createdAt,
		updatedAt:     updatedAt,
	}
}

// --- Getters ---

// ID returns the ledger's unique identifier.
func (l *Ledger) ID() uuid.UUID { return l.id }

// UserID returns the owning user's ID.
func (l *Ledger) UserID() uuid.UUID { return l.userID }

// PayMoneyCents returns the cumulative amount paid.
func (l *Ledger) PayMoneyCents() int64 { return l.payMoneyCents }

// Version returns the entity version for optimistic locking.
func (l *Ledger) Version() int64 { return l.version }

// CreatedAt returns the creation timestamp.
func (l *Ledger) CreatedAt() time.Time { return l.createdAt }

// UpdatedAt returns the last-updated timestamp.
func (l *Ledger) UpdatedAt() time.Time { return l.updatedAt }

// Lines returns a copy of the ledger lines in adoption order.
func (l *Ledger) Lines() []Line {
	out := make([]Line, len(l.lines))
	copy(out, l.lines)
	return out
}

// Entries returns a copy of the ledger history.
func (l *Ledger) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// TotalCents returns the sum of the prices of the pets currently in the ledger.
func (l *Ledger) TotalCents() int64 {
	var total int64
	for _, line := range l.lines {
		total += line.PriceCents
	}
	return total
}

// RemainingCents returns the amount still owed.
func (l *Ledger) RemainingCents() int64 {
	return l.TotalCents() - l.payMoneyCents
}

// Status returns the status derived from the current amounts.
func (l *Ledger) Status() Status {
	return ComputeStatus(l.payMoneyCents, l.TotalCents())
}

// PetIDs returns the ids of the pets currently in the ledger.
func (l *Ledger) PetIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(l.lines))
	for i, line := range l.lines {
		ids[i] = line.PetID
	}
	return ids
}

// Contains reports whether the pet is currently in the ledger.
func (l *Ledger) Contains(petID uuid.UUID) bool {
	return l.lineIndex(petID) >= 0
}

// Partition splits petIDs into those held by this ledger and those that are not.
func (l *Ledger) Partition(petIDs []uuid.UUID) (owned, foreign []uuid.UUID) {
	for _, id := range petIDs {
		if l.Contains(id) {
			owned = append(owned, id)
		} else {
			foreign = append(foreign, id)
		}
	}
	return owned, foreign
}

// HasEntryReference reports whether an entry with the given external reference exists.
func (l *Ledger) HasEntryReference(reference string) bool {
	if reference == "" {
		return false
	}
	for _, e := range l.entries {
		if e.Reference == reference {
			return true
		}
	}
	return false
}

func (l *Ledger) lineIndex(petID uuid.UUID) int {
	for i, line := range l.lines {
		if line.PetID == petID {
			return i
		}
	}
	return -1
}

// --- Behavior ---

// AddPets appends lines and returns the resulting increase of the total. The ledger is
// left untouched if any line is invalid or already present.
func (l *Ledger) AddPets(lines []Line) (int64, error) {
	if len(lines) == 0 {
		return 0, domain.NewValidationError("at least one pet is required")
	}

	seen := make(map[uuid.UUID]struct{}, len(lines))
	var delta int64
	for _, line := range lines {
		if line.PriceCents <= 0 {
			return 0, domain.NewValidationError(fmt.Sprintf("pet %s has no price", line.PetID))
		}
		if _, dup := seen[line.PetID]; dup || l.Contains(line.PetID) {
			return 0, domain.NewFieldValidationError("pet already in ledger",
				map[string]string{line.PetID.String(): "pet is already part of this adoption"})
		}
		seen[line.PetID] = struct{}{}
		delta += line.PriceCents
	}

	now := time.Now().UTC()
	ids := make([]uuid.UUID, len(lines))
	for i, line := range lines {
		if line.AddedAt.IsZero() {
			line.AddedAt = now
		}
		l.lines = append(l.lines, line)
		ids[i] = line.PetID
	}
	l.record(Entry{Kind: EntryAdopt, AmountCents: delta, PetIDs: ids}, now)
	return delta, nil
}

// ApplyPayment adds amountCents to the paid amount. A payment that would exceed the total
// is rejected with an overpayment error and the ledger is unchanged.
func (l *Ledger) ApplyPayment(amountCents int64, reference string) error {
	if amountCents <= 0 {
		return domain.NewValidationError("payment amount must be positive")
	}
	if excess := l.payMoneyCents + amountCents - l.TotalCents(); excess > 0 {
		return domain.NewOverpaymentError(excess)
	}

	l.payMoneyCents += amountCents
	l.record(Entry{Kind: EntryPayment, AmountCents: amountCents, Reference: reference}, time.Now().UTC())
	return nil
}

// RemovePets drops the given pets from the ledger. Every id must be held by the ledger.
// When the ledger empties, everything paid is refunded; otherwise any payment beyond the
// new total is refunded so that the paid amount never exceeds the total.
func (l *Ledger) RemovePets(petIDs []uuid.UUID) (Removal, error) {
	if len(petIDs) == 0 {
		return Removal{}, domain.NewValidationError("at least one pet is required")
	}
	remove := make(map[uuid.UUID]struct{}, len(petIDs))
	for _, id := range petIDs {
		if !l.Contains(id) {
			return Removal{}, domain.NewFieldValidationError("pet not in ledger",
				map[string]string{id.String(): "pet does not belong to this user"})
		}
		remove[id] = struct{}{}
	}

	var removal Removal
	kept := make([]Line, 0, len(l.lines))
	for _, line := range l.lines {
		if _, ok := remove[line.PetID]; ok {
			removal.PetIDs = append(removal.PetIDs, line.PetID)
			removal.RemovedCents += line.PriceCents
			continue
		}
		kept = append(kept, line)
	}
	l.lines = kept

	if total := l.TotalCents(); total == 0 {
		removal.RefundCents = l.payMoneyCents
		l.payMoneyCents = 0
	} else if l.payMoneyCents > total {
		removal.RefundCents = l.payMoneyCents - total
		l.payMoneyCents = total
	}

	l.record(Entry{
		Kind:        EntryCancel,
		AmountCents: removal.RemovedCents,
		RefundCents: removal.RefundCents,
		PetIDs:      removal.PetIDs,
	}, time.Now().UTC())
	return removal, nil
}

// IncrementVersion bumps the version for optimistic locking.
func (l *Ledger) IncrementVersion() {
	l.version++
	l.updatedAt = time.Now().UTC()
}

func (l *Ledger) record(e Entry, at time.Time) {
	e.ID = uuid.New()
	e.CreatedAt = at
	l.entries = append(l.entries, e)
	l.updatedAt = at
}
