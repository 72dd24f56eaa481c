package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/auth"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/domain"
	adoptionDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/adoption"
	petDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/pet"
	userDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/user"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedPet(t *testing.T, s *Store, tag string, price int64) *petDomain.Pet {
	t.Helper()
	p, err := petDomain.NewPet(tag, petDomain.KindCat, 2, price, petDomain.GenderFemale)
	require.NoError(t, err)
	require.NoError(t, s.Pets().Save(context.Background(), p))
	return p
}

func seedUser(t *testing.T, s *Store, name string) *userDomain.User {
	t.Helper()
	u, err := userDomain.NewUser(name, auth.RoleCustomer, name+"@example.com", "hash")
	require.NoError(t, err)
	require.NoError(t, s.Users().Save(context.Background(), u))
	return u
}

func TestStore_TransactionRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	p := seedPet(t, s, "milo", 1500)
	u := seedUser(t, s, "alice")

	boom := errors.New("boom")
	err := s.Transaction(ctx, func(ctx context.Context, repos adoptionDomain.Repositories) error {
		require.NoError(t, repos.Pets.BulkUpdateAdopted(ctx, []uuid.UUID{p.ID()}, true))

		l, err := adoptionDomain.NewLedger(u.ID())
		require.NoError(t, err)
		_, err = l.AddPets([]adoptionDomain.Line{{PetID: p.ID(), PriceCents: p.PriceCents()}})
		require.NoError(t, err)
		require.NoError(t, repos.Ledgers.Save(ctx, l))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	stored, err := s.Pets().FindByID(ctx, p.ID())
	require.NoError(t, err)
	assert.False(t, stored.IsAdopted())

	_, err = s.Ledgers().FindByUserID(ctx, u.ID())
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
}

func TestStore_TransactionCommits(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	p := seedPet(t, s, "milo", 1500)

	err := s.Transaction(ctx, func(ctx context.Context, repos adoptionDomain.Repositories) error {
		return repos.Pets.BulkUpdateAdopted(ctx, []uuid.UUID{p.ID()}, true)
	})
	require.NoError(t, err)

	stored, err := s.Pets().FindByID(ctx, p.ID())
	require.NoError(t, err)
	assert.True(t, stored.IsAdopted())
	assert.Equal(t, p.Version()+1, stored.Version())
}

func TestStore_RowLockBlocksSecondTransaction(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	u := seedUser(t, s, "alice")

	locked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.Transaction(ctx, func(ctx context.Context, repos adoptionDomain.Repositories) error {
			if _, err := repos.Users.FindByIDForUpdate(ctx, u.ID()); err != nil {
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()
	<-locked

	waitCtx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()
	err := s.Transaction(waitCtx, func(ctx context.Context, repos adoptionDomain.Repositories) error {
		_, err := repos.Users.FindByIDForUpdate(ctx, u.ID())
		return err
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, <-done)

	err = s.Transaction(ctx, func(ctx context.Context, repos adoptionDomain.Repositories) error {
		_, err := repos.Users.FindByIDForUpdate(ctx, u.ID())
		return err
	})
	assert.NoError(t, err)
}

func TestPetRepository_BulkUpdateIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	a := seedPet(t, s, "a", 100)
	b := seedPet(t, s, "b", 100)
	require.NoError(t, s.Pets().BulkUpdateAdopted(ctx, []uuid.UUID{a.ID()}, true))

	err := s.Pets().BulkUpdateAdopted(ctx, []uuid.UUID{a.ID(), b.ID()}, true)
	assert.True(t, domain.IsKind(err, domain.KindConflict))

	stored, err := s.Pets().FindByID(ctx, b.ID())
	require.NoError(t, err)
	assert.False(t, stored.IsAdopted())
}

func TestPetRepository_TagUniqueAndFilter(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seedPet(t, s, "rex", 100)
	seedPet(t, s, "rosie", 500)
	seedPet(t, s, "bella", 900)

	dup, err := petDomain.NewPet("REX", petDomain.KindDog, 1, 100, petDomain.GenderMale)
	require.NoError(t, err)
	assert.True(t, domain.IsKind(s.Pets().Save(ctx, dup), domain.KindConflict))

	pets, total, err := s.Pets().FindMany(ctx, petDomain.Filter{TagPrefix: "R"}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, pets, 2)

	pets, total, err = s.Pets().FindMany(ctx, petDomain.Filter{MinPriceCents: 200}, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, pets, 1)
}

func TestLedgerRepository_Constraints(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	p := seedPet(t, s, "milo", 1500)
	alice := seedUser(t, s, "alice")
	bob := seedUser(t, s, "bob")

	first, err := adoptionDomain.NewLedger(alice.ID())
	require.NoError(t, err)
	_, err = first.AddPets([]adoptionDomain.Line{{PetID: p.ID(), PriceCents: 1500}})
	require.NoError(t, err)
	require.NoError(t, s.Ledgers().Save(ctx, first))

	second, err := adoptionDomain.NewLedger(alice.ID())
	require.NoError(t, err)
	err = s.Ledgers().Save(ctx, second)
	assert.True(t, domain.IsKind(err, domain.KindConflict), "one ledger per user")
	assert.False(t, domain.IsRetryable(err))

	other, err := adoptionDomain.NewLedger(bob.ID())
	require.NoError(t, err)
	_, err = other.AddPets([]adoptionDomain.Line{{PetID: p.ID(), PriceCents: 1500}})
	require.NoError(t, err)
	assert.True(t, domain.IsKind(s.Ledgers().Save(ctx, other), domain.KindConflict), "pet held by one ledger")

	stale, err := s.Ledgers().FindByUserID(ctx, alice.ID())
	require.NoError(t, err)
	fresh, err := s.Ledgers().FindByUserID(ctx, alice.ID())
	require.NoError(t, err)

	require.NoError(t, fresh.ApplyPayment(500, ""))
	fresh.IncrementVersion()
	require.NoError(t, s.Ledgers().Update(ctx, fresh))

	require.NoError(t, stale.ApplyPayment(100, ""))
	stale.IncrementVersion()
	err = s.Ledgers().Update(ctx, stale)
	assert.True(t, domain.IsKind(err, domain.KindConflict))
	assert.True(t, domain.IsRetryable(err), "a stale version is contention, not bad data")

	byPet, err := s.Ledgers().FindByPetID(ctx, p.ID())
	require.NoError(t, err)
	assert.Equal(t, first.ID(), byPet.ID())

	stats, err := s.Ledgers().Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.CountByStatus[adoptionDomain.StatusPending])
	assert.Equal(t, int64(1000), stats.OutstandingCents)
}

func TestPetRepository_DeleteRefusesHeldPets(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	held := seedPet(t, s, "held", 100)
	free := seedPet(t, s, "free", 100)
	u := seedUser(t, s, "alice")

	l, err := adoptionDomain.NewLedger(u.ID())
	require.NoError(t, err)
	_, err = l.AddPets([]adoptionDomain.Line{{PetID: held.ID(), PriceCents: 100}})
	require.NoError(t, err)
	require.NoError(t, s.Ledgers().Save(ctx, l))

	_, err = s.Pets().DeleteMany(ctx, []uuid.UUID{held.ID(), free.ID()})
	assert.True(t, domain.IsKind(err, domain.KindConflict))

	n, err := s.Pets().DeleteMany(ctx, []uuid.UUID{free.ID()})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
