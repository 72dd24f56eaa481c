package photo

import (
	"context"

	"github.com/google/uuid"
)

// PhotoRepository defines persistence operations for pet photos.
type PhotoRepository interface {
	Save(ctx context.Context, photo *PetPhoto) error
	FindByPetID(ctx context.Context, petID uuid.UUID) ([]*PetPhoto, error)
	FindByID(ctx context.Context, id uuid.UUID) (*PetPhoto, error)
}
