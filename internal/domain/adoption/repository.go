package adoption

import (
	"context"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/pet"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/user"
	"github.com/google/uuid"
)

// Stats summarizes all ledgers (admin).
type Stats struct {
	CountByStatus    map[Status]int64
	TotalCents       int64
	CollectedCents   int64
	OutstandingCents int64
}

// LedgerRepository defines the persistence contract for ledger aggregates.
type LedgerRepository interface {
	// FindByID retrieves a ledger by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Ledger, error)

	// FindByUserID retrieves the ledger of a user.
	FindByUserID(ctx context.Context, userID uuid.UUID) (*Ledger, error)

	// FindByUserIDForUpdate is FindByUserID with the ledger row locked.
	FindByUserIDForUpdate(ctx context.Context, userID uuid.UUID) (*Ledger, error)

	// FindByPetID retrieves the ledger currently holding a pet.
	FindByPetID(ctx context.Context, petID uuid.UUID) (*Ledger, error)

	// ListAll retrieves all ledgers with pagination (admin).
	ListAll(ctx context.Context, page, limit int) ([]*Ledger, int64, error)

	// Stats aggregates counts and amounts over all ledgers (admin).
	Stats(ctx context.Context) (Stats, error)

	// Save persists a new ledger. A second ledger for the same user is a Conflict.
	Save(ctx context.Context, ledger *Ledger) error

	// Update persists changes to an existing ledger with optimistic locking.
	Update(ctx context.Context, ledger *Ledger) error
}

// Repositories is the set of repositories bound to one unit of work.
type Repositories struct {
	Pets    pet.PetRepository
	Users   user.UserRepository
	Ledgers LedgerRepository
}

// UnitOfWork runs fn atomically: every write made through repos is committed when fn
// returns nil and discarded otherwise.
type UnitOfWork interface {
	Transaction(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
