package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/domain"
	petDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/pet"
	"github.com/google/uuid"
)

const petLockPrefix = "pet:"

// PetRepository implements pet.PetRepository on a Store.
type PetRepository struct {
	store *Store
	tx    *txn
}

func clonePet(p *petDomain.Pet) *petDomain.Pet {
	return petDomain.Reconstruct(
		p.ID(), p.Tag(), p.Kind(), p.Age(), p.PriceCents(), p.Gender(),
		p.IsAdopted(), p.Version(), p.CreatedAt(), p.UpdatedAt(),
	)
}

func (r *PetRepository) FindByID(_ context.Context, id uuid.UUID) (*petDomain.Pet, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	p, ok := r.store.pets[id]
	if !ok {
		return nil, domain.NewNotFoundError("Pet", id.String())
	}
	return clonePet(p), nil
}

func (r *PetRepository) FindByTag(_ context.Context, tag string) (*petDomain.Pet, error) {
	tag = petDomain.NormalizeTag(tag)
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, p := range r.store.pets {
		if p.Tag() == tag {
			return clonePet(p), nil
		}
	}
	return nil, domain.NewNotFoundError("Pet", tag)
}

func (r *PetRepository) FindByIDsForUpdate(ctx context.Context, ids []uuid.UUID) ([]*petDomain.Pet, error) {
	var pets []*petDomain.Pet
	err := r.store.run(r.tx, func(t *txn) error {
		if err := t.lockAll(ctx, petLockPrefix, ids); err != nil {
			return err
		}
		r.store.mu.RLock()
		defer r.store.mu.RUnlock()
		pets = r.findByIDs(ids)
		return nil
	})
	return pets, err
}

func (r *PetRepository) findByIDs(ids []uuid.UUID) []*petDomain.Pet {
	var pets []*petDomain.Pet
	for _, id := range sortedIDs(ids) {
		if p, ok := r.store.pets[id]; ok {
			pets = append(pets, clonePet(p))
		}
	}
	return pets
}

func (r *PetRepository) FindMany(_ context.Context, f petDomain.Filter, page, limit int) ([]*petDomain.Pet, int64, error) {
	r.store.mu.RLock()
	var matched []*petDomain.Pet
	for _, p := range r.store.pets {
		if matchesFilter(p, f) {
			matched = append(matched, clonePet(p))
		}
	}
	r.store.mu.RUnlock()

	slices.SortFunc(matched, func(a, b *petDomain.Pet) int {
		if c := b.CreatedAt().Compare(a.CreatedAt()); c != 0 {
			return c
		}
		return compareIDs(a.ID(), b.ID())
	})
	return paginate(matched, domain.Offset(page, limit), limit), int64(len(matched)), nil
}

func matchesFilter(p *petDomain.Pet, f petDomain.Filter) bool {
	switch {
	case f.Kind != "" && p.Kind() != f.Kind,
		f.Gender != "" && p.Gender() != f.Gender,
		f.IsAdopted != nil && p.IsAdopted() != *f.IsAdopted,
		f.MinAge > 0 && p.Age() < f.MinAge,
		f.MaxAge > 0 && p.Age() > f.MaxAge,
		f.MinPriceCents > 0 && p.PriceCents() < f.MinPriceCents,
		f.MaxPriceCents > 0 && p.PriceCents() > f.MaxPriceCents:
		return false
	}
	prefix := petDomain.NormalizeTag(f.TagPrefix)
	return prefix == "" || strings.HasPrefix(p.Tag(), prefix)
}

func (r *PetRepository) BulkUpdateAdopted(ctx context.Context, ids []uuid.UUID, adopted bool) error {
	if len(ids) == 0 {
		return nil
	}
	return r.store.run(r.tx, func(t *txn) error {
		if err := t.lockAll(ctx, petLockPrefix, ids); err != nil {
			return err
		}
		r.store.mu.Lock()
		defer r.store.mu.Unlock()

		want := sortedIDs(ids)
		updated := make([]*petDomain.Pet, 0, len(want))
		for _, id := range want {
			stored, ok := r.store.pets[id]
			if !ok || stored.IsAdopted() == adopted {
				continue
			}
			p := clonePet(stored)
			if adopted {
				_ = p.MarkAdopted()
			} else {
				_ = p.MarkReturned()
			}
			updated = append(updated, p)
		}
		if len(updated) != len(want) {
			return domain.NewConcurrentModificationError(fmt.Sprintf("expected to update %d pets, updated %d", len(want), len(updated)))
		}
		for _, p := range updated {
			put(t, r.store.pets, p.ID(), p)
		}
		return nil
	})
}

func (r *PetRepository) Save(ctx context.Context, pet *petDomain.Pet) error {
	return r.store.run(r.tx, func(t *txn) error {
		if err := t.lock(ctx, petLockPrefix+pet.ID().String()); err != nil {
			return err
		}
		r.store.mu.Lock()
		defer r.store.mu.Unlock()

		if _, exists := r.store.pets[pet.ID()]; exists {
			return domain.NewConflictError(fmt.Sprintf("pet %s already exists", pet.ID()))
		}
		if r.tagTaken(pet.Tag(), pet.ID()) {
			return domain.NewConflictError(fmt.Sprintf("pet with tag %s already exists", pet.Tag()))
		}
		put(t, r.store.pets, pet.ID(), clonePet(pet))
		return nil
	})
}

func (r *PetRepository) Update(ctx context.Context, pet *petDomain.Pet) error {
	return r.store.run(r.tx, func(t *txn) error {
		if err := t.lock(ctx, petLockPrefix+pet.ID().String()); err != nil {
			return err
		}
		r.store.mu.Lock()
		defer r.store.mu.Unlock()

		stored, ok := r.store.pets[pet.ID()]
		if !ok || stored.Version() != pet.Version()-1 {
			return domain.NewConcurrentModificationError("pet was modified by another transaction")
		}
		if r.tagTaken(pet.Tag(), pet.ID()) {
			return domain.NewConflictError(fmt.Sprintf("pet with tag %s already exists", pet.Tag()))
		}
		put(t, r.store.pets, pet.ID(), clonePet(pet))
		return nil
	})
}

func (r *PetRepository) tagTaken(tag string, except uuid.UUID) bool {
	for id, p := range r.store.pets {
		if id != except && p.Tag() == tag {
			return true
		}
	}
	return false
}

// DeleteMany removes pets and their photos. Pets still held by a ledger are refused, as
// the foreign key does on postgres.
func (r *PetRepository) DeleteMany(ctx context.Context, ids []uuid.UUID) (int64, error) {
	var deleted int64
	err := r.store.run(r.tx, func(t *txn) error {
		if err := t.lockAll(ctx, petLockPrefix, ids); err != nil {
			return err
		}
		r.store.mu.Lock()
		defer r.store.mu.Unlock()

		for _, l := range r.store.ledgers {
			for _, id := range ids {
				if l.Contains(id) {
					return domain.NewConflictError(fmt.Sprintf("pet %s is held by an adoption ledger", id))
				}
			}
		}
		for _, id := range sortedIDs(ids) {
			if !remove(t, r.store.pets, id) {
				continue
			}
			deleted++
			for photoID, ph := range r.store.photos {
				if ph.PetID() == id {
					remove(t, r.store.photos, photoID)
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}
