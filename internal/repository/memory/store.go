// Package memory implements the repositories on process memory. Every write runs inside a
// transaction that holds row locks until it ends and is undone when it fails, so the
// adoption workflows behave as they do on postgres.
package memory

import (
	"bytes"
	"context"
	"slices"
	"sync"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/lock"
	adoptionDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/adoption"
	petDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/pet"
	photoDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/photo"
	userDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/user"
	"github.com/google/uuid"
)

// Store holds every table. Stored aggregates are private copies; callers only ever see
// clones.
type Store struct {
	mu      sync.RWMutex
	pets    map[uuid.UUID]*petDomain.Pet
	users   map[uuid.UUID]*userDomain.User
	ledgers map[uuid.UUID]*adoptionDomain.Ledger
	photos  map[uuid.UUID]*photoDomain.PetPhoto

	rows lock.Keyed
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		pets:    make(map[uuid.UUID]*petDomain.Pet),
		users:   make(map[uuid.UUID]*userDomain.User),
		ledgers: make(map[uuid.UUID]*adoptionDomain.Ledger),
		photos:  make(map[uuid.UUID]*photoDomain.PetPhoto),
	}
}

// Pets returns a non-transactional pet repository.
func (s *Store) Pets() *PetRepository { return &PetRepository{store: s} }

// Users returns a non-transactional user repository.
func (s *Store) Users() *UserRepository { return &UserRepository{store: s} }

// Ledgers returns a non-transactional ledger repository.
func (s *Store) Ledgers() *LedgerRepository { return &LedgerRepository{store: s} }

// Photos returns a photo repository.
func (s *Store) Photos() *PhotoRepository { return &PhotoRepository{store: s} }

// Transaction runs fn with repositories bound to one transaction. Writes are undone and
// locks released when fn returns an error or panics.
func (s *Store) Transaction(ctx context.Context, fn func(ctx context.Context, repos adoptionDomain.Repositories) error) (err error) {
	t := s.begin()
	defer func() {
		if p := recover(); p != nil {
			t.finish(false)
			panic(p)
		}
		t.finish(err == nil)
	}()

	return fn(ctx, adoptionDomain.Repositories{
		Pets:    &PetRepository{store: s, tx: t},
		Users:   &UserRepository{store: s, tx: t},
		Ledgers: &LedgerRepository{store: s, tx: t},
	})
}

type txn struct {
	store   *Store
	held    map[string]struct{}
	unlocks []func()
	// undo entries run in reverse under store.mu.
	undo []func()
}

func (s *Store) begin() *txn {
	return &txn{store: s, held: make(map[string]struct{})}
}

// run executes fn inside tx, or inside a transaction of its own when tx is nil.
func (s *Store) run(tx *txn, fn func(t *txn) error) error {
	if tx != nil {
		return fn(tx)
	}
	t := s.begin()
	err := fn(t)
	t.finish(err == nil)
	return err
}

// lock takes the row lock for key until the transaction ends. Keys already held are
// skipped so a transaction never waits on itself.
func (t *txn) lock(ctx context.Context, key string) error {
	if _, ok := t.held[key]; ok {
		return nil
	}
	unlock, err := t.store.rows.Lock(ctx, key)
	if err != nil {
		return err
	}
	t.held[key] = struct{}{}
	t.unlocks = append(t.unlocks, unlock)
	return nil
}

func (t *txn) lockAll(ctx context.Context, prefix string, ids []uuid.UUID) error {
	for _, id := range sortedIDs(ids) {
		if err := t.lock(ctx, prefix+id.String()); err != nil {
			return err
		}
	}
	return nil
}

func (t *txn) onRollback(fn func()) {
	t.undo = append(t.undo, fn)
}

func (t *txn) finish(commit bool) {
	if !commit && len(t.undo) > 0 {
		t.store.mu.Lock()
		for i := len(t.undo) - 1; i >= 0; i-- {
			t.undo[i]()
		}
		t.store.mu.Unlock()
	}
	for i := len(t.unlocks) - 1; i >= 0; i-- {
		t.unlocks[i]()
	}
	t.undo, t.unlocks = nil, nil
}

// put stores v under id in m and registers the undo. Callers hold store.mu.
func put[T any](t *txn, m map[uuid.UUID]T, id uuid.UUID, v T) {
	prev, existed := m[id]
	m[id] = v
	t.onRollback(func() {
		if existed {
			m[id] = prev
		} else {
			delete(m, id)
		}
	})
}

// remove deletes id from m and registers the undo. Callers hold store.mu.
func remove[T any](t *txn, m map[uuid.UUID]T, id uuid.UUID) bool {
	prev, existed := m[id]
	if !existed {
		return false
	}
	delete(m, id)
	t.onRollback(func() { m[id] = prev })
	return true
}

func sortedIDs(ids []uuid.UUID) []uuid.UUID {
	out := slices.Clone(ids)
	slices.SortFunc(out, compareIDs)
	return slices.Compact(out)
}

func compareIDs(a, b uuid.UUID) int {
	return bytes.Compare(a[:], b[:])
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}
