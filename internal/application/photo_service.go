package application

import (
	"context"
	"time"

	photoDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/photo"
	petDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/pet"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UploadPhotoRequest holds the data to attach a photo to a catalog pet.
type UploadPhotoRequest struct {
	PhotoURL string `json:"photo_url" binding:"required,url"`
	Caption  string `json:"caption" binding:"max=280"`
}

// PhotoDTO is the API response representation of a pet photo.
type PhotoDTO struct {
	ID         uuid.UUID `json:"id"`
	PetID      uuid.UUID `json:"pet_id"`
	UploaderID uuid.UUID `json:"uploader_id"`
	PhotoURL   string    `json:"photo_url"`
	Caption    string    `json:"caption"`
	CreatedAt  time.Time `json:"created_at"`
}

// PhotoService handles the pet gallery use cases.
type PhotoService struct {
	repo   photoDomain.PhotoRepository
	pets   petDomain.PetRepository
	logger *zap.Logger
}

// NewPhotoService creates a new PhotoService.
func NewPhotoService(repo photoDomain.PhotoRepository, pets petDomain.PetRepository, logger *zap.Logger) *PhotoService {
	return &PhotoService{repo: repo, pets: pets, logger: logger}
}

// UploadPhoto adds a photo to a pet's gallery.
func (s *PhotoService) UploadPhoto(ctx context.Context, petID, uploaderID uuid.UUID, req UploadPhotoRequest) (*PhotoDTO, error) {
	if _, err := s.pets.FindByID(ctx, petID); err != nil {
		return nil, err
	}

	photo, err := photoDomain.NewPetPhoto(petID, uploaderID, req.PhotoURL, req.Caption)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, photo); err != nil {
		return nil, err
	}

	s.logger.Info("photo uploaded",
		zap.String("pet_id", petID.String()),
		zap.String("photo_id", photo.ID().String()),
	)

	return toPhotoDTO(photo), nil
}

// GetPetPhotos returns the gallery of a pet, oldest first.
func (s *PhotoService) GetPetPhotos(ctx context.Context, petID uuid.UUID) ([]*PhotoDTO, error) {
	photos, err := s.repo.FindByPetID(ctx, petID)
	if err != nil {
		return nil, err
	}

	dtos := make([]*PhotoDTO, len(photos))
	for i, p := range photos {
		dtos[i] = toPhotoDTO(p)
	}
	return dtos, nil
}

func toPhotoDTO(p *photoDomain.PetPhoto) *PhotoDTO {
	return &PhotoDTO{
		ID:         p.ID(),
		PetID:      p.PetID(),
		UploaderID: p.UploaderID(),
		PhotoURL:   p.PhotoURL(),
		Caption:    p.Caption(),
		CreatedAt:  p.CreatedAt(),
	}
}
