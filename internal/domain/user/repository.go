package user

import (
	"context"

	"github.com/google/uuid"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	// FindByIDForUpdate locks the user row until the surrounding transaction ends. Ledger
	// mutations take this lock to serialize per user across processes.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindMany(ctx context.Context, page, limit int) ([]*User, int64, error)
	Save(ctx context.Context, user *User) error
	Update(ctx context.Context, user *User) error
}
