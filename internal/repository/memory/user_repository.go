package memory

import (
	"context"
	"slices"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/domain"
	userDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/user"
	"github.com/google/uuid"
)

const userLockPrefix = "user:"

// UserRepository implements user.UserRepository on a Store.
type UserRepository struct {
	store *Store
	tx    *txn
}

func cloneUser(u *userDomain.User) *userDomain.User {
	return userDomain.Reconstruct(
		u.ID(), u.Username(), u.Role(), u.PasswordHash(), u.Email(),
		u.IsActive(), u.Version(), u.CreatedAt(), u.UpdatedAt(),
	)
}

func (r *UserRepository) FindByID(_ context.Context, id uuid.UUID) (*userDomain.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return r.findByID(id)
}

func (r *UserRepository) findByID(id uuid.UUID) (*userDomain.User, error) {
	u, ok := r.store.users[id]
	if !ok {
		return nil, domain.NewNotFoundError("User", id.String())
	}
	return cloneUser(u), nil
}

func (r *UserRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*userDomain.User, error) {
	var u *userDomain.User
	err := r.store.run(r.tx, func(t *txn) error {
		if err := t.lock(ctx, userLockPrefix+id.String()); err != nil {
			return err
		}
		r.store.mu.RLock()
		defer r.store.mu.RUnlock()
		var err error
		u, err = r.findByID(id)
		return err
	})
	return u, err
}

func (r *UserRepository) FindByUsername(_ context.Context, username string) (*userDomain.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, u := range r.store.users {
		if u.Username() == username {
			return cloneUser(u), nil
		}
	}
	return nil, domain.NewNotFoundError("User", username)
}

func (r *UserRepository) FindMany(_ context.Context, page, limit int) ([]*userDomain.User, int64, error) {
	r.store.mu.RLock()
	users := make([]*userDomain.User, 0, len(r.store.users))
	for _, u := range r.store.users {
		users = append(users, cloneUser(u))
	}
	r.store.mu.RUnlock()

	slices.SortFunc(users, func(a, b *userDomain.User) int {
		if c := b.CreatedAt().Compare(a.CreatedAt()); c != 0 {
			return c
		}
		return compareIDs(a.ID(), b.ID())
	})
	return paginate(users, domain.Offset(page, limit), limit), int64(len(users)), nil
}

func (r *UserRepository) Save(ctx context.Context, user *userDomain.User) error {
	return r.store.run(r.tx, func(t *txn) error {
		if err := t.lock(ctx, userLockPrefix+user.ID().String()); err != nil {
			return err
		}
		r.store.mu.Lock()
		defer r.store.mu.Unlock()

		if _, exists := r.store.users[user.ID()]; exists {
			return domain.NewConflictError("user already exists")
		}
		if err := r.checkUnique(user); err != nil {
			return err
		}
		put(t, r.store.users, user.ID(), cloneUser(user))
		return nil
	})
}

func (r *UserRepository) Update(ctx context.Context, user *userDomain.User) error {
	return r.store.run(r.tx, func(t *txn) error {
		if err := t.lock(ctx, userLockPrefix+user.ID().String()); err != nil {
			return err
		}
		r.store.mu.Lock()
		defer r.store.mu.Unlock()

		stored, ok := r.store.users[user.ID()]
		if !ok || stored.Version() != user.Version()-1 {
			return domain.NewConcurrentModificationError("user was modified by another transaction")
		}
		if err := r.checkUnique(user); err != nil {
			return err
		}
		put(t, r.store.users, user.ID(), cloneUser(user))
		return nil
	})
}

func (r *UserRepository) checkUnique(user *userDomain.User) error {
	for id, u := range r.store.users {
		if id == user.ID() {
			continue
		}
		if u.Username() == user.Username() {
			return domain.NewConflictError("username is already taken")
		}
		if u.Email() == user.Email() {
			return domain.NewConflictError("email is already registered")
		}
	}
	return nil
}
