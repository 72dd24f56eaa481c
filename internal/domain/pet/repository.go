package pet

import (
	"context"

	"github.com/google/uuid"
)

// Filter narrows a catalog listing. Nil/zero fields do not filter.
type Filter struct {
	Kind          Kind
	Gender        Gender
	IsAdopted     *bool
	MinAge        int
	MaxAge        int
	MinPriceCents int64
	MaxPriceCents int64
	TagPrefix     string
}

// PetRepository defines persistence operations for catalog pets.
type PetRepository interface {
	// FindByID retrieves a pet by id.
	FindByID(ctx context.Context, id uuid.UUID) (*Pet, error)

	// FindByTag retrieves a pet by its case-insensitive tag.
	FindByTag(ctx context.Context, tag string) (*Pet, error)

	// FindByIDsForUpdate returns the pets that exist among ids, with the rows locked until
	// the surrounding transaction ends. Missing ids are simply absent.
	FindByIDsForUpdate(ctx context.Context, ids []uuid.UUID) ([]*Pet, error)

	// FindMany retrieves a filtered page of pets and the total match count.
	FindMany(ctx context.Context, filter Filter, page, limit int) ([]*Pet, int64, error)

	// BulkUpdateAdopted sets the adopted flag on every listed pet.
	BulkUpdateAdopted(ctx context.Context, ids []uuid.UUID, adopted bool) error

	// Save persists a new pet.
	Save(ctx context.Context, pet *Pet) error

	// Update persists changes to an existing pet with optimistic locking.
	Update(ctx context.Context, pet *Pet) error

	// DeleteMany removes the listed pets.
	DeleteMany(ctx context.Context, ids []uuid.UUID) (int64, error)
}
