package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/database"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/domain"
	adoptionDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/adoption"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	constraintLedgerUser = "idx_adoption_ledgers_user_id"
	constraintLedgerPet  = "idx_adoption_ledger_pets_pet_id"
)

// LedgerModel is the GORM model for the adoption_ledgers table. Total and status are
// denormalized from the lines so that admin listings and stats can filter on them.
type LedgerModel struct {
	ID            uuid.UUID          `gorm:"type:uuid;primaryKey"`
	UserID        uuid.UUID          `gorm:"type:uuid;not null;uniqueIndex:idx_adoption_ledgers_user_id"`
	TotalCents    int64              `gorm:"not null;default:0"`
	PayMoneyCents int64              `gorm:"not null;default:0"`
	Status        string             `gorm:"not null;size:20;index"`
	Version       int64              `gorm:"not null;default:1"`
	CreatedAt     time.Time          `gorm:"not null"`
	UpdatedAt     time.Time          `gorm:"not null"`
	Pets          []LedgerPetModel   `gorm:"foreignKey:LedgerID"`
	Entries       []LedgerEntryModel `gorm:"foreignKey:LedgerID"`
}

// TableName returns the table name for the GORM model.
func (LedgerModel) TableName() string { return "adoption_ledgers" }

// LedgerPetModel is one row of adoption_ledger_pets.
type LedgerPetModel struct {
	LedgerID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	PetID      uuid.UUID `gorm:"type:uuid;primaryKey;uniqueIndex:idx_adoption_ledger_pets_pet_id"`
	PriceCents int64     `gorm:"not null"`
	AddedAt    time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (LedgerPetModel) TableName() string { return "adoption_ledger_pets" }

// EntryMetadata is the JSON payload stored alongside a ledger entry.
type EntryMetadata struct {
	PetIDs []uuid.UUID `json:"pet_ids,omitempty"`
}

// LedgerEntryModel is one row of adoption_ledger_entries.
type LedgerEntryModel struct {
	ID          uuid.UUID                         `gorm:"type:uuid;primaryKey"`
	LedgerID    uuid.UUID                         `gorm:"type:uuid;not null;index"`
	Kind        string                            `gorm:"not null;size:20"`
	AmountCents int64                             `gorm:"not null"`
	RefundCents int64                             `gorm:"not null;default:0"`
	Reference   string                            `gorm:"not null;size:128;default:''"`
	Metadata    datatypes.JSONType[EntryMetadata] `gorm:"type:jsonb;not null"`
	CreatedAt   time.Time                         `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (LedgerEntryModel) TableName() string { return "adoption_ledger_entries" }

// GormLedgerRepository is the GORM-based implementation of LedgerRepository.
type GormLedgerRepository struct {
	db *gorm.DB
}

// NewGormLedgerRepository creates a new GormLedgerRepository.
func NewGormLedgerRepository(db *gorm.DB) *GormLedgerRepository {
	return &GormLedgerRepository{db: db}
}

func (r *GormLedgerRepository) withChildren(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Pets", func(db *gorm.DB) *gorm.DB { return db.Order("added_at, pet_id") }).
		Preload("Entries", func(db *gorm.DB) *gorm.DB { return db.Order("created_at, id") })
}

// FindByID retrieves a ledger by its unique identifier.
func (r *GormLedgerRepository) FindByID(ctx context.Context, id uuid.UUID) (*adoptionDomain.Ledger, error) {
	return r.findOne(r.withChildren(ctx).Where("id = ?", id), id.String())
}

// FindByUserID retrieves the ledger of a user.
func (r *GormLedgerRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*adoptionDomain.Ledger, error) {
	return r.findOne(r.withChildren(ctx).Where("user_id = ?", userID), userID.String())
}

// FindByUserIDForUpdate retrieves and row-locks the ledger of a user.
func (r *GormLedgerRepository) FindByUserIDForUpdate(ctx context.Context, userID uuid.UUID) (*adoptionDomain.Ledger, error) {
	return r.findOne(
		r.withChildren(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ?", userID),
		userID.String(),
	)
}

// FindByPetID retrieves the ledger currently holding a pet.
func (r *GormLedgerRepository) FindByPetID(ctx context.Context, petID uuid.UUID) (*adoptionDomain.Ledger, error) {
	return r.findOne(
		r.withChildren(ctx).
			Where("id = (?)", r.db.WithContext(ctx).Model(&LedgerPetModel{}).Select("ledger_id").Where("pet_id = ?", petID)),
		petID.String(),
	)
}

func (r *GormLedgerRepository) findOne(query *gorm.DB, key string) (*adoptionDomain.Ledger, error) {
	var model LedgerModel
	if err := query.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("AdoptionLedger", key)
		}
		return nil, fmt.Errorf("failed to find adoption ledger: %w", err)
	}
	return toLedgerDomain(&model), nil
}

// ListAll retrieves all ledgers with pagination (admin).
func (r *GormLedgerRepository) ListAll(ctx context.Context, page, limit int) ([]*adoptionDomain.Ledger, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&LedgerModel{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count adoption ledgers: %w", err)
	}

	var models []LedgerModel
	if err := r.withChildren(ctx).
		Order("created_at DESC, id").
		Offset(domain.Offset(page, limit)).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list adoption ledgers: %w", err)
	}

	ledgers := make([]*adoptionDomain.Ledger, len(models))
	for i := range models {
		ledgers[i] = toLedgerDomain(&models[i])
	}
	return ledgers, total, nil
}

// Stats aggregates counts and amounts over all ledgers grouped by status (admin).
func (r *GormLedgerRepository) Stats(ctx context.Context) (adoptionDomain.Stats, error) {
	type statusRow struct {
		Status   string
		Count    int64
		Total    int64
		PayMoney int64
	}
	var rows []statusRow
	if err := r.db.WithContext(ctx).Model(&LedgerModel{}).
		Select("status, count(*) AS count, COALESCE(SUM(total_cents), 0) AS total, COALESCE(SUM(pay_money_cents), 0) AS pay_money").
		Group("status").
		Find(&rows).Error; err != nil {
		return adoptionDomain.Stats{}, fmt.Errorf("failed to aggregate adoption ledgers: %w", err)
	}

	stats := adoptionDomain.Stats{CountByStatus: make(map[adoptionDomain.Status]int64)}
	for _, row := range rows {
		status, err := adoptionDomain.ParseStatus(row.Status)
		if err != nil {
			return adoptionDomain.Stats{}, err
		}
		stats.CountByStatus[status] = row.Count
		stats.TotalCents += row.Total
		stats.CollectedCents += row.PayMoney
	}
	stats.OutstandingCents = stats.TotalCents - stats.CollectedCents
	return stats, nil
}

// Save persists a new ledger together with its lines and entries.
func (r *GormLedgerRepository) Save(ctx context.Context, ledger *adoptionDomain.Ledger) error {
	model := toLedgerModel(ledger)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(model).Error; err != nil {
			return err
		}
		if len(model.Pets) > 0 {
			if err := tx.Create(&model.Pets).Error; err != nil {
				return err
			}
		}
		if len(model.Entries) > 0 {
			if err := tx.Create(&model.Entries).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return translateLedgerError("save", err)
	}
	return nil
}

// Update persists changes to an existing ledger with optimistic locking. Lines are synced
// to the current set; entries are append-only, so only unseen ones are inserted.
func (r *GormLedgerRepository) Update(ctx context.Context, ledger *adoptionDomain.Ledger) error {
	model := toLedgerModel(ledger)
	expectedVersion := ledger.Version() - 1

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&LedgerModel{}).
			Where("id = ? AND version = ?", model.ID, expectedVersion).
			Updates(map[string]interface{}{
				"total_cents":     model.TotalCents,
				"pay_money_cents": model.PayMoneyCents,
				"status":          model.Status,
				"version":         model.Version,
				"updated_at":      model.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.NewConcurrentModificationError("adoption ledger was modified by another transaction")
		}

		keep := make([]uuid.UUID, len(model.Pets))
		for i, p := range model.Pets {
			keep[i] = p.PetID
		}
		remove := tx.Where("ledger_id = ?", model.ID)
		if len(keep) > 0 {
			remove = remove.Where("pet_id NOT IN ?", keep)
		}
		if err := remove.Delete(&LedgerPetModel{}).Error; err != nil {
			return err
		}
		if len(model.Pets) > 0 {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "ledger_id"}, {Name: "pet_id"}},
				DoNothing: true,
			}).Create(&model.Pets).Error; err != nil {
				return err
			}
		}

		if len(model.Entries) > 0 {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoNothing: true,
			}).Create(&model.Entries).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return translateLedgerError("update", err)
	}
	return nil
}

func translateLedgerError(op string, err error) error {
	if _, ok := domain.AsError(err); ok {
		return err
	}
	if database.IsUniqueViolation(err) {
		switch database.ConstraintName(err) {
		case constraintLedgerUser:
			return domain.NewConflictError("user already has an adoption ledger")
		case constraintLedgerPet:
			return domain.NewConflictError("pet is already held by another adoption ledger")
		}
		return domain.NewConflictError("adoption ledger conflicts with existing data")
	}
	return fmt.Errorf("failed to %s adoption ledger: %w", op, err)
}

// --- Conversion Helpers ---

func toLedgerModel(l *adoptionDomain.Ledger) *LedgerModel {
	lines := l.Lines()
	pets := make([]LedgerPetModel, len(lines))
	for i, line := range lines {
		pets[i] = LedgerPetModel{
			LedgerID:   l.ID(),
			PetID:      line.PetID,
			PriceCents: line.PriceCents,
			AddedAt:    line.AddedAt,
		}
	}

	history := l.Entries()
	entries := make([]LedgerEntryModel, len(history))
	for i, e := range history {
		entries[i] = LedgerEntryModel{
			ID:          e.ID,
			LedgerID:    l.ID(),
			Kind:        string(e.Kind),
			AmountCents: e.AmountCents,
			RefundCents: e.RefundCents,
			Reference:   e.Reference,
			Metadata:    datatypes.NewJSONType(EntryMetadata{PetIDs: e.PetIDs}),
			CreatedAt:   e.CreatedAt,
		}
	}

	return &LedgerModel{
		ID:            l.ID(),
		UserID:        l.UserID(),
		TotalCents:    l.TotalCents(),
		PayMoneyCents: l.PayMoneyCents(),
		Status:        string(l.Status()),
		Version:       l.Version(),
		CreatedAt:     l.CreatedAt(),
		UpdatedAt:     l.UpdatedAt(),
		Pets:          pets,
		Entries:       entries,
	}
}

func toLedgerDomain(m *LedgerModel) *adoptionDomain.Ledger {
	lines := make([]adoptionDomain.Line, len(m.Pets))
	for i, p := range m.Pets {
		lines[i] = adoptionDomain.Line{PetID: p.PetID, PriceCents: p.PriceCents, AddedAt: p.AddedAt}
	}

	entries := make([]adoptionDomain.Entry, len(m.Entries))
	for i, e := range m.Entries {
		entries[i] = adoptionDomain.Entry{
			ID:          e.ID,
			Kind:        adoptionDomain.EntryKind(e.Kind),
			AmountCents: e.AmountCents,
			RefundCents: e.RefundCents,
			PetIDs:      e.Metadata.Data().PetIDs,
			Reference:   e.Reference,
			CreatedAt:   e.CreatedAt,
		}
	}

	return adoptionDomain.Reconstruct(
		m.ID, m.UserID,
		lines,
		m.PayMoneyCents,
		entries,
		m.Version,
		m.CreatedAt, m.UpdatedAt,
	)
}
