package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/auth"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/database"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/domain"
	userDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/user"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserModel is the GORM model for the users table.
type UserModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Username     string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_users_username"`
	Role         string    `gorm:"type:varchar(20);not null"`
	PasswordHash string    `gorm:"type:text;not null"`
	Email        string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_users_email"`
	Active       bool      `gorm:"not null;default:true"`
	Version      int64     `gorm:"not null;default:1"`
	CreatedAt    time.Time `gorm:"type:timestamptz;not null;default:now()"`
	UpdatedAt    time.Time `gorm:"type:timestamptz;not null;default:now()"`
}

func (UserModel) TableName() string { return "users" }

var userUpdateColumns = []string{"role", "password_hash", "email", "active", "version", "updated_at"}

// GormUserRepository implements UserRepository using GORM.
type GormUserRepository struct {
	db *gorm.DB
}

func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

func (r *GormUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*userDomain.User, error) {
	return r.findOne(r.db.WithContext(ctx).Where("id = ?", id), id.String())
}

func (r *GormUserRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*userDomain.User, error) {
	return r.findOne(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id), id.String())
}

func (r *GormUserRepository) FindByUsername(ctx context.Context, username string) (*userDomain.User, error) {
	return r.findOne(r.db.WithContext(ctx).Where("username = ?", username), username)
}

func (r *GormUserRepository) findOne(query *gorm.DB, key string) (*userDomain.User, error) {
	var model UserModel
	if err := query.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("User", key)
		}
		return nil, err
	}
	return toUserDomain(&model), nil
}

func (r *GormUserRepository) FindMany(ctx context.Context, page, limit int) ([]*userDomain.User, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&UserModel{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var models []UserModel
	if err := r.db.WithContext(ctx).
		Order("created_at DESC, id").
		Offset(domain.Offset(page, limit)).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, err
	}

	users := make([]*userDomain.User, len(models))
	for i := range models {
		users[i] = toUserDomain(&models[i])
	}
	return users, total, nil
}

func (r *GormUserRepository) Save(ctx context.Context, user *userDomain.User) error {
	model := toUserModel(user)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return translateUserConflict(err)
	}
	return nil
}

func (r *GormUserRepository) Update(ctx context.Context, user *userDomain.User) error {
	model := toUserModel(user)
	previousVersion := user.Version() - 1

	result := r.db.WithContext(ctx).
		Model(&UserModel{}).
		Where("id = ? AND version = ?", model.ID, previousVersion).
		Select(userUpdateColumns).
		Updates(model)

	if result.Error != nil {
		return translateUserConflict(result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewConcurrentModificationError("user was modified by another transaction")
	}
	return nil
}

func translateUserConflict(err error) error {
	if !database.IsUniqueViolation(err) {
		return err
	}
	switch database.ConstraintName(err) {
	case "idx_users_username":
		return domain.NewConflictError("username is already taken")
	case "idx_users_email":
		return domain.NewConflictError("email is already registered")
	}
	return domain.NewConflictError("user already exists")
}

// --- Conversions ---

func toUserModel(u *userDomain.User) *UserModel {
	return &UserModel{
		ID:           u.ID(),
		Username:     u.Username(),
		Role:         string(u.Role()),
		PasswordHash: u.PasswordHash(),
		Email:        u.Email(),
		Active:       u.IsActive(),
		Version:      u.Version(),
		CreatedAt:    u.CreatedAt(),
		UpdatedAt:    u.UpdatedAt(),
	}
}

func toUserDomain(m *UserModel) *userDomain.User {
	return userDomain.Reconstruct(
		m.ID,
		m.Username,
		auth.Role(m.Role),
		m.PasswordHash, m.Email,
		m.Active,
		m.Version,
		m.CreatedAt, m.UpdatedAt,
	)
}
