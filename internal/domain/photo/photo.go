package photo

import (
	"net/url"
	"time"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/domain"
	"github.com/google/uuid"
)

const maxCaptionLength = 280

// PetPhoto is the aggregate root for a catalog pet's gallery image.
type PetPhoto struct {
	id         uuid.UUID
	petID      uuid.UUID
	uploaderID uuid.UUID
	photoURL   string
	caption    string
	createdAt  time.Time
}

// NewPetPhoto creates a new pet photo.
func NewPetPhoto(petID, uploaderID uuid.UUID, photoURL, caption string) (*PetPhoto, error) {
	if petID == uuid.Nil {
		return nil, domain.NewValidationError("pet ID is required")
	}
	if photoURL == "" {
		return nil, domain.NewValidationError("photo URL is required")
	}
	if u, err := url.ParseRequestURI(photoURL); err != nil || u.Host == "" {
		return nil, domain.NewValidationError("photo URL must be absolute")
	}
	if len(caption) > maxCaptionLength {
		return nil, domain.NewValidationError("caption is too long")
	}

	return &PetPhoto{
		id:         uuid.New(),
		petID:      petID,
		uploaderID: uploaderID,
		photoURL:   photoURL,
		caption:    caption,
		createdAt:  time.Now().UTC(),
	}, nil
}

// Reconstruct rebuilds a PetPhoto from persistence.
func Reconstruct(id, petID, uploaderID uuid.UUID, photoURL, caption string, createdAt time.Time) *PetPhoto {
	return &PetPhoto{
		id:         id,
		petID:      petID,
		uploaderID: uploaderID,
		photoURL:   photoURL,
		caption:    caption,
		createdAt:  createdAt,
	}
}

// Getters.
func (p *PetPhoto) ID() uuid.UUID         { return p.id }
func (p *PetPhoto) PetID() uuid.UUID      { return p.petID }
func (p *PetPhoto) UploaderID() uuid.UUID { return p.uploaderID }
func (p *PetPhoto) PhotoURL() string      { return p.photoURL }
func (p *PetPhoto) Caption() string       { return p.caption }
func (p *PetPhoto) CreatedAt() time.Time  { return p.createdAt }
