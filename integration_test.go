//go:build integration

package main_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/application"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/domain"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/events"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/repository"
)

// TestPaymentReceived_CreditsLedger verifies that a payment.received event is applied
// to the user's ledger exactly once and announced on adoption.events.
func TestPaymentReceived_CreditsLedger(t *testing.T) {
	db := setupPostgres(t)
	brokers := setupKafka(t)
	stack := setupAdoptionStack(t, db, brokers)

	user := seedUser(t, db, "alice")
	pet := seedPet(t, db, "rex", 5000)

	_, err := stack.Service.Adopt(context.Background(), application.AdoptRequest{UserID: user.ID(), Pets: []uuid.UUID{pet.ID()}})
	require.NoError(t, err)

	// Start the consumer.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = stack.Consumer.Start(ctx) }()
	time.Sleep(3 * time.Second) // Wait for consumer group join.

	evt := events.PaymentReceivedEvent{
		PaymentID:   "pay-" + uuid.New().String()[:8],
		UserID:      user.ID(),
		AmountCents: 2000,
		OccurredAt:  time.Now().UTC(),
	}
	publishTestEvent(t, brokers, events.TopicPaymentEvents, "service-payment", events.PaymentReceived, evt)
	publishTestEvent(t, brokers, events.TopicPaymentEvents, "service-payment", events.PaymentReceived, evt)

	waitForPayMoney(t, db, user.ID(), 2000, 15*time.Second)

	ce := consumeOneEvent(t, brokers, events.TopicAdoptionEvents, events.AdoptionPaymentApplied, 15*time.Second)
	var applied events.PaymentAppliedEvent
	require.NoError(t, ce.ParseData(&applied))
	assert.Equal(t, user.ID(), applied.UserID)
	assert.Equal(t, evt.PaymentID, applied.PaymentID)
	assert.Equal(t, int64(3000), applied.RemainingCents)

	// The replayed payment must not be credited twice.
	time.Sleep(2 * time.Second)
	summary, err := stack.Service.GetPaymentSummary(context.Background(), user.ID())
	require.NoError(t, err)
	assert.Equal(t, int64(2000), summary.PayMoneyCents)
}

// TestAdoptionLifecycle_Postgres runs the adopt, pay and cancel scenario against the
// real schema.
func TestAdoptionLifecycle_Postgres(t *testing.T) {
	db := setupPostgres(t)
	stack := setupAdoptionStack(t, db, nil)
	ctx := context.Background()

	user := seedUser(t, db, "alice")
	p1 := seedPet(t, db, "rex", 2000)
	p2 := seedPet(t, db, "fido", 3000)

	ledger, err := stack.Service.Adopt(ctx, application.AdoptRequest{UserID: user.ID(), Pets: []uuid.UUID{p1.ID(), p2.ID()}})
	require.NoError(t, err)
	assert.Equal(t, int64(5000), ledger.TotalCents)

	_, err = stack.Service.Pay(ctx, application.PayRequest{UserID: user.ID(), Amount: decimal.NewFromInt(50)})
	require.NoError(t, err)

	_, err = stack.Service.Pay(ctx, application.PayRequest{UserID: user.ID(), Amount: decimal.NewFromInt(1)})
	assert.True(t, domain.IsKind(err, domain.KindConflict), "overpayment is rejected")

	result, err := stack.Service.Cancel(ctx, application.CancelRequest{UserID: user.ID(), Pets: []uuid.UUID{p1.ID()}})
	require.NoError(t, err)
	assert.Equal(t, int64(2000), result.RefundCents)
	assert.Equal(t, "completed", result.Ledger.Status)

	pet, err := repository.NewGormPetRepository(db).FindByID(ctx, p1.ID())
	require.NoError(t, err)
	assert.False(t, pet.IsAdopted())

	full, err := stack.Service.GetLedger(ctx, ledger.ID)
	require.NoError(t, err)
	assert.Len(t, full.Pets, 1)
	assert.Len(t, full.History, 3)
}

// TestConcurrentAdopt_SamePet verifies that row locks let exactly one of several racing
// users adopt a pet.
func TestConcurrentAdopt_SamePet(t *testing.T) {
	db := setupPostgres(t)
	stack := setupAdoptionStack(t, db, nil)
	ctx := context.Background()

	pet := seedPet(t, db, "rex", 2000)
	const racers = 6
	users := make([]uuid.UUID, racers)
	for i := range users {
		users[i] = seedUser(t, db, fmt.Sprintf("user%d", i)).ID()
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for _, userID := range users {
		wg.Add(1)
		go func(userID uuid.UUID) {
			defer wg.Done()
			_, err := stack.Service.Adopt(ctx, application.AdoptRequest{UserID: userID, Pets: []uuid.UUID{pet.ID()}})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}(userID)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)

	var held int64
	require.NoError(t, db.Table("adoption_ledger_pets").Where("pet_id = ?", pet.ID()).Count(&held).Error)
	assert.Equal(t, int64(1), held)
}
