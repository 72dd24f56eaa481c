package repository

import (
	"context"
	"time"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/database"
	adoptionDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/adoption"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var retryDelays = []time.Duration{20 * time.Millisecond, 80 * time.Millisecond, 250 * time.Millisecond}

// GormUnitOfWork binds the pet, user and ledger repositories to a single database
// transaction.
type GormUnitOfWork struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewGormUnitOfWork creates a new GormUnitOfWork.
func NewGormUnitOfWork(db *gorm.DB, logger *zap.Logger) *GormUnitOfWork {
	return &GormUnitOfWork{db: db, logger: logger}
}

// Transaction runs fn in a transaction. Serialization failures and deadlocks roll back and
// rerun fn, so fn must not have side effects outside the repositories it is given.
func (u *GormUnitOfWork) Transaction(ctx context.Context, fn func(ctx context.Context, repos adoptionDomain.Repositories) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(ctx, adoptionDomain.Repositories{
				Pets:    NewGormPetRepository(tx),
				Users:   NewGormUserRepository(tx),
				Ledgers: NewGormLedgerRepository(tx),
			})
		})
		if err == nil || !database.IsRetryable(err) || attempt >= len(retryDelays) {
			return err
		}

		u.logger.Warn("retrying transaction",
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		select {
		case <-time.After(retryDelays[attempt]):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
