package memory

import (
	"context"
	"slices"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/domain"
	photoDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/photo"
	"github.com/google/uuid"
)

// PhotoRepository implements photo.PhotoRepository on a Store. Photos are immutable, so
// they are shared rather than cloned.
type PhotoRepository struct {
	store *Store
}

func (r *PhotoRepository) Save(_ context.Context, photo *photoDomain.PetPhoto) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.pets[photo.PetID()]; !ok {
		return domain.NewNotFoundError("Pet", photo.PetID().String())
	}
	r.store.photos[photo.ID()] = photo
	return nil
}

func (r *PhotoRepository) FindByPetID(_ context.Context, petID uuid.UUID) ([]*photoDomain.PetPhoto, error) {
	r.store.mu.RLock()
	var photos []*photoDomain.PetPhoto
	for _, p := range r.store.photos {
		if p.PetID() == petID {
			photos = append(photos, p)
		}
	}
	r.store.mu.RUnlock()

	slices.SortFunc(photos, func(a, b *photoDomain.PetPhoto) int {
		return a.CreatedAt().Compare(b.CreatedAt())
	})
	return photos, nil
}

func (r *PhotoRepository) FindByID(_ context.Context, id uuid.UUID) (*photoDomain.PetPhoto, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	p, ok := r.store.photos[id]
	if !ok {
		return nil, domain.NewNotFoundError("Photo", id.String())
	}
	return p, nil
}
