package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/domain"
	photoDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/photo"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PhotoModel is the GORM model for the pet_photos table.
type PhotoModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	PetID      uuid.UUID `gorm:"type:uuid;not null;index"`
	UploaderID uuid.UUID `gorm:"type:uuid;not null"`
	PhotoURL   string    `gorm:"type:text;not null"`
	Caption    string    `gorm:"type:text;not null;default:''"`
	CreatedAt  time.Time `gorm:"not null"`
}

// TableName sets the table name.
func (PhotoModel) TableName() string { return "pet_photos" }

// GormPhotoRepository implements PhotoRepository using GORM.
type GormPhotoRepository struct {
	db *gorm.DB
}

// NewGormPhotoRepository creates a new GormPhotoRepository.
func NewGormPhotoRepository(db *gorm.DB) *GormPhotoRepository {
	return &GormPhotoRepository{db: db}
}

// Save persists a new pet photo.
func (r *GormPhotoRepository) Save(ctx context.Context, photo *photoDomain.PetPhoto) error {
	model := toPhotoModel(photo)
	return r.db.WithContext(ctx).Create(&model).Error
}

// FindByPetID returns all photos of a pet, oldest first.
func (r *GormPhotoRepository) FindByPetID(ctx context.Context, petID uuid.UUID) ([]*photoDomain.PetPhoto, error) {
	var models []PhotoModel
	if err := r.db.WithContext(ctx).Where("pet_id = ?", petID).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}

	photos := make([]*photoDomain.PetPhoto, len(models))
	for i := range models {
		photos[i] = toPhotoDomain(&models[i])
	}
	return photos, nil
}

// FindByID returns a single photo by ID.
func (r *GormPhotoRepository) FindByID(ctx context.Context, id uuid.UUID) (*photoDomain.PetPhoto, error) {
	var model PhotoModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Photo", id.String())
		}
		return nil, err
	}
	return toPhotoDomain(&model), nil
}

func toPhotoModel(p *photoDomain.PetPhoto) PhotoModel {
	return PhotoModel{
		ID:         p.ID(),
		PetID:      p.PetID(),
		UploaderID: p.UploaderID(),
		PhotoURL:   p.PhotoURL(),
		Caption:    p.Caption(),
		CreatedAt:  p.CreatedAt(),
	}
}

func toPhotoDomain(m *PhotoModel) *photoDomain.PetPhoto {
	return photoDomain.Reconstruct(
		m.ID,
		m.PetID,
		m.UploaderID,
		m.PhotoURL,
		m.Caption,
		m.CreatedAt,
	)
}
