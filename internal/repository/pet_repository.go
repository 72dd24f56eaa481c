package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/database"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/domain"
	petDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/pet"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PetModel is the GORM model for the pets table.
type PetModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Tag        string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_pets_tag"`
	Kind       string    `gorm:"type:varchar(20);not null"`
	Age        int       `gorm:"type:int;not null"`
	PriceCents int64     `gorm:"type:bigint;not null"`
	Gender     string    `gorm:"type:char(1);not null"`
	IsAdopted  bool      `gorm:"not null;default:false;index"`
	Version    int64     `gorm:"not null;default:1"`
	CreatedAt  time.Time `gorm:"type:timestamptz;not null;default:now()"`
	UpdatedAt  time.Time `gorm:"type:timestamptz;not null;default:now()"`
}

// TableName overrides the default table name.
func (PetModel) TableName() string { return "pets" }

var petUpdateColumns = []string{"tag", "kind", "age", "price_cents", "gender", "is_adopted", "version", "updated_at"}

// GormPetRepository implements PetRepository using GORM.
type GormPetRepository struct {
	db *gorm.DB
}

// NewGormPetRepository creates a new GormPetRepository.
func NewGormPetRepository(db *gorm.DB) *GormPetRepository {
	return &GormPetRepository{db: db}
}

// FindByID retrieves a pet by id.
func (r *GormPetRepository) FindByID(ctx context.Context, id uuid.UUID) (*petDomain.Pet, error) {
	var model PetModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Pet", id.String())
		}
		return nil, err
	}
	return toPetDomain(&model), nil
}

// FindByTag retrieves a pet by its case-insensitive tag.
func (r *GormPetRepository) FindByTag(ctx context.Context, tag string) (*petDomain.Pet, error) {
	tag = petDomain.NormalizeTag(tag)
	var model PetModel
	if err := r.db.WithContext(ctx).Where("tag = ?", tag).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Pet", tag)
		}
		return nil, err
	}
	return toPetDomain(&model), nil
}

// FindByIDsForUpdate locks rows in id order so concurrent adopters cannot deadlock on
// overlapping selections.
func (r *GormPetRepository) FindByIDsForUpdate(ctx context.Context, ids []uuid.UUID) ([]*petDomain.Pet, error) {
	return r.findByIDs(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), ids)
}

func (r *GormPetRepository) findByIDs(db *gorm.DB, ids []uuid.UUID) ([]*petDomain.Pet, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var models []PetModel
	if err := db.Where("id IN ?", ids).Order("id").Find(&models).Error; err != nil {
		return nil, err
	}
	pets := make([]*petDomain.Pet, len(models))
	for i := range models {
		pets[i] = toPetDomain(&models[i])
	}
	return pets, nil
}

// FindMany retrieves a filtered page of pets, newest first.
func (r *GormPetRepository) FindMany(ctx context.Context, filter petDomain.Filter, page, limit int) ([]*petDomain.Pet, int64, error) {
	query := applyPetFilter(r.db.WithContext(ctx).Model(&PetModel{}), filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var models []PetModel
	if err := query.
		Order("created_at DESC, id").
		Offset(domain.Offset(page, limit)).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, err
	}

	pets := make([]*petDomain.Pet, len(models))
	for i := range models {
		pets[i] = toPetDomain(&models[i])
	}
	return pets, total, nil
}

func applyPetFilter(query *gorm.DB, f petDomain.Filter) *gorm.DB {
	if f.Kind != "" {
		query = query.Where("kind = ?", string(f.Kind))
	}
	if f.Gender != "" {
		query = query.Where("gender = ?", string(f.Gender))
	}
	if f.IsAdopted != nil {
		query = query.Where("is_adopted = ?", *f.IsAdopted)
	}
	if f.MinAge > 0 {
		query = query.Where("age >= ?", f.MinAge)
	}
	if f.MaxAge > 0 {
		query = query.Where("age <= ?", f.MaxAge)
	}
	if f.MinPriceCents > 0 {
		query = query.Where("price_cents >= ?", f.MinPriceCents)
	}
	if f.MaxPriceCents > 0 {
		query = query.Where("price_cents <= ?", f.MaxPriceCents)
	}
	if prefix := petDomain.NormalizeTag(f.TagPrefix); prefix != "" {
		query = query.Where("tag LIKE ?", escapeLike(prefix)+"%")
	}
	return query
}

// BulkUpdateAdopted flips is_adopted on every listed pet whose flag currently holds the
// opposite value. Any pet left unchanged means the caller's view was stale.
func (r *GormPetRepository) BulkUpdateAdopted(ctx context.Context, ids []uuid.UUID, adopted bool) error {
	if len(ids) == 0 {
		return nil
	}
	result := r.db.WithContext(ctx).
		Model(&PetModel{}).
		Where("id IN ? AND is_adopted = ?", ids, !adopted).
		Updates(map[string]interface{}{
			"is_adopted": adopted,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected != int64(len(ids)) {
		return domain.NewConcurrentModificationError(fmt.Sprintf("expected to update %d pets, updated %d", len(ids), result.RowsAffected))
	}
	return nil
}

// Save persists a new pet.
func (r *GormPetRepository) Save(ctx context.Context, pet *petDomain.Pet) error {
	model := toPetModel(pet)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return domain.NewConflictError(fmt.Sprintf("pet with tag %s already exists", pet.Tag()))
		}
		return err
	}
	return nil
}

// Update persists changes to an existing pet with optimistic locking.
func (r *GormPetRepository) Update(ctx context.Context, pet *petDomain.Pet) error {
	model := toPetModel(pet)
	previousVersion := pet.Version() - 1

	result := r.db.WithContext(ctx).
		Model(&PetModel{}).
		Where("id = ? AND version = ?", model.ID, previousVersion).
		Select(petUpdateColumns).
		Updates(model)

	if result.Error != nil {
		if database.IsUniqueViolation(result.Error) {
			return domain.NewConflictError(fmt.Sprintf("pet with tag %s already exists", pet.Tag()))
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.NewConcurrentModificationError("pet was modified by another transaction")
	}
	return nil
}

// DeleteMany removes the listed pets and returns how many rows went.
func (r *GormPetRepository) DeleteMany(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&PetModel{})
	return result.RowsAffected, result.Error
}

// --- Conversions ---

func toPetModel(p *petDomain.Pet) *PetModel {
	return &PetModel{
		ID:         p.ID(),
		Tag:        p.Tag(),
		Kind:       string(p.Kind()),
		Age:        p.Age(),
		PriceCents: p.PriceCents(),
		Gender:     string(p.Gender()),
		IsAdopted:  p.IsAdopted(),
		Version:    p.Version(),
		CreatedAt:  p.CreatedAt(),
		UpdatedAt:  p.UpdatedAt(),
	}
}

func toPetDomain(m *PetModel) *petDomain.Pet {
	return petDomain.Reconstruct(
		m.ID,
		m.Tag,
		petDomain.Kind(m.Kind),
		m.Age,
		m.PriceCents,
		petDomain.Gender(m.Gender),
		m.IsAdopted,
		m.Version,
		m.CreatedAt, m.UpdatedAt,
	)
}
