package memory

import (
	"context"
	"slices"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/domain"
	adoptionDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/adoption"
	"github.com/google/uuid"
)

// Ledger row locks are keyed by user so that the user-id lookups used by the service lock
// the same row as Save and Update.
const ledgerLockPrefix = "ledger:"

// LedgerRepository implements adoption.LedgerRepository on a Store.
type LedgerRepository struct {
	store *Store
	tx    *txn
}

func cloneLedger(l *adoptionDomain.Ledger) *adoptionDomain.Ledger {
	return adoptionDomain.Reconstruct(
		l.ID(), l.UserID(), l.Lines(), l.PayMoneyCents(), l.Entries(),
		l.Version(), l.CreatedAt(), l.UpdatedAt(),
	)
}

func (r *LedgerRepository) FindByID(_ context.Context, id uuid.UUID) (*adoptionDomain.Ledger, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	l, ok := r.store.ledgers[id]
	if !ok {
		return nil, domain.NewNotFoundError("AdoptionLedger", id.String())
	}
	return cloneLedger(l), nil
}

func (r *LedgerRepository) FindByUserID(_ context.Context, userID uuid.UUID) (*adoptionDomain.Ledger, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return r.findByUserID(userID)
}

func (r *LedgerRepository) findByUserID(userID uuid.UUID) (*adoptionDomain.Ledger, error) {
	for _, l := range r.store.ledgers {
		if l.UserID() == userID {
			return cloneLedger(l), nil
		}
	}
	return nil, domain.NewNotFoundError("AdoptionLedger", userID.String())
}

func (r *LedgerRepository) FindByUserIDForUpdate(ctx context.Context, userID uuid.UUID) (*adoptionDomain.Ledger, error) {
	var l *adoptionDomain.Ledger
	err := r.store.run(r.tx, func(t *txn) error {
		if err := t.lock(ctx, ledgerLockPrefix+userID.String()); err != nil {
			return err
		}
		r.store.mu.RLock()
		defer r.store.mu.RUnlock()
		var err error
		l, err = r.findByUserID(userID)
		return err
	})
	return l, err
}

func (r *LedgerRepository) FindByPetID(_ context.Context, petID uuid.UUID) (*adoptionDomain.Ledger, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, l := range r.store.ledgers {
		if l.Contains(petID) {
			return cloneLedger(l), nil
		}
	}
	return nil, domain.NewNotFoundError("AdoptionLedger", petID.String())
}

func (r *LedgerRepository) ListAll(_ context.Context, page, limit int) ([]*adoptionDomain.Ledger, int64, error) {
	r.store.mu.RLock()
	ledgers := make([]*adoptionDomain.Ledger, 0, len(r.store.ledgers))
	for _, l := range r.store.ledgers {
		ledgers = append(ledgers, cloneLedger(l))
	}
	r.store.mu.RUnlock()

	slices.SortFunc(ledgers, func(a, b *adoptionDomain.Ledger) int {
		if c := b.CreatedAt().Compare(a.CreatedAt()); c != 0 {
			return c
		}
		return compareIDs(a.ID(), b.ID())
	})
	return paginate(ledgers, domain.Offset(page, limit), limit), int64(len(ledgers)), nil
}

func (r *LedgerRepository) Stats(_ context.Context) (adoptionDomain.Stats, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	stats := adoptionDomain.Stats{CountByStatus: make(map[adoptionDomain.Status]int64)}
	for _, l := range r.store.ledgers {
		stats.CountByStatus[l.Status()]++
		stats.TotalCents += l.TotalCents()
		stats.CollectedCents += l.PayMoneyCents()
	}
	stats.OutstandingCents = stats.TotalCents - stats.CollectedCents
	return stats, nil
}

func (r *LedgerRepository) Save(ctx context.Context, ledger *adoptionDomain.Ledger) error {
	return r.store.run(r.tx, func(t *txn) error {
		if err := t.lock(ctx, ledgerLockPrefix+ledger.UserID().String()); err != nil {
			return err
		}
		r.store.mu.Lock()
		defer r.store.mu.Unlock()

		for _, l := range r.store.ledgers {
			if l.UserID() == ledger.UserID() {
				return domain.NewConflictError("user already has an adoption ledger")
			}
		}
		if err := r.checkPetsUnheld(ledger); err != nil {
			return err
		}
		put(t, r.store.ledgers, ledger.ID(), cloneLedger(ledger))
		return nil
	})
}

func (r *LedgerRepository) Update(ctx context.Context, ledger *adoptionDomain.Ledger) error {
	return r.store.run(r.tx, func(t *txn) error {
		if err := t.lock(ctx, ledgerLockPrefix+ledger.UserID().String()); err != nil {
			return err
		}
		r.store.mu.Lock()
		defer r.store.mu.Unlock()

		stored, ok := r.store.ledgers[ledger.ID()]
		if !ok || stored.Version() != ledger.Version()-1 {
			return domain.NewConcurrentModificationError("adoption ledger was modified by another transaction")
		}
		if err := r.checkPetsUnheld(ledger); err != nil {
			return err
		}
		put(t, r.store.ledgers, ledger.ID(), cloneLedger(ledger))
		return nil
	})
}

// checkPetsUnheld enforces that a pet belongs to at most one ledger.
func (r *LedgerRepository) checkPetsUnheld(ledger *adoptionDomain.Ledger) error {
	for id, other := range r.store.ledgers {
		if id == ledger.ID() {
			continue
		}
		for _, petID := range ledger.PetIDs() {
			if other.Contains(petID) {
				return domain.NewConflictError("pet is already held by another adoption ledger")
			}
		}
	}
	return nil
}
