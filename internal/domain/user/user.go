package user

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/auth"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/domain"
	"github.com/google/uuid"
)

// User is the aggregate root for a marketplace account.
type User struct {
	id           uuid.UUID
	username     string
	role         auth.Role
	passwordHash string
	email        string
	active       bool
	version      int64
	createdAt    time.Time
	updatedAt    time.Time
}

// NewUser creates an active user. passwordHash must already be hashed.
func NewUser(username string, role auth.Role, email, passwordHash string) (*User, error) {
	username = strings.TrimSpace(username)
	if len(username) < 3 {
		return nil, domain.NewValidationError("username must be at least 3 characters")
	}
	if !role.IsValid() {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid role: %s", role))
	}
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, domain.NewValidationError("password is required")
	}

	now := time.Now().UTC()
	return &User{
		id:           uuid.New(),
		username:     username,
		role:         role,
		passwordHash: passwordHash,
		email:        email,
		active:       true,
		version:      1,
		createdAt:    now,
		updatedAt:    now,
	}, nil
}

// Reconstruct rebuilds a User from persistence data (no validation).
func Reconstruct(
	id uuid.UUID,
	username string,
	role auth.Role,
	passwordHash, email string,
	active bool,
	version int64,
	createdAt, updatedAt time.Time,
) *User {
	return &User{
		id:           id,
		username:     username,
		role:         role,
		passwordHash: passwordHash,
		email:        email,
		active:       active,
		version:      version,
		createdAt:    createdAt,
		updatedAt:    updatedAt,
	}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return "", domain.NewValidationError(fmt.Sprintf("invalid email: %s", email))
	}
	return email, nil
}

// --- Getters ---

func (u *User) ID() uuid.UUID        { return u.id }
func (u *User) Username() string     { return u.username }
func (u *User) Role() auth.Role      { return u.role }
func (u *User) PasswordHash() string { return u.passwordHash }
func (u *User) Email() string        { return u.email }
func (u *User) IsActive() bool       { return u.active }
func (u *User) Version() int64       { return u.version }
func (u *User) CreatedAt() time.Time { return u.createdAt }
func (u *User) UpdatedAt() time.Time { return u.updatedAt }

// --- Behavior ---

// Update applies an admin edit of email and role in one step. Empty values are kept;
// nothing changes unless both are valid.
func (u *User) Update(email string, role auth.Role) error {
	if email == "" && role == "" {
		return domain.NewValidationError("nothing to update")
	}
	newEmail := u.email
	if email != "" {
		normalized, err := normalizeEmail(email)
		if err != nil {
			return err
		}
		newEmail = normalized
	}
	if role != "" && !role.IsValid() {
		return domain.NewValidationError(fmt.Sprintf("invalid role: %s", role))
	}

	u.email = newEmail
	if role != "" {
		u.role = role
	}
	u.touch()
	return nil
}

// Deactivate soft-deletes the account.
func (u *User) Deactivate() error {
	if !u.active {
		return domain.NewInvalidStateError("inactive", "inactive")
	}
	u.active = false
	u.touch()
	return nil
}

func (u *User) touch() {
	u.version++
	u.updatedAt = time.Now().UTC()
}
