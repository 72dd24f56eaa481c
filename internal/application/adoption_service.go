package application

import (
	"context"
	"fmt"
	"time"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/domain"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/events"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/kafka"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/lock"
	adoptionDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/adoption"
	petDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/pet"
	userDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/user"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const eventSource = "service-adoption"

// EventPublisher publishes CloudEvents. *kafka.Producer satisfies it.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic string, event kafka.CloudEvent) error
}

// AdoptRequest holds the data needed to adopt pets. Amounts are in currency units.
type AdoptRequest struct {
	UserID   uuid.UUID       `json:"user_id"`
	Pets     []uuid.UUID     `json:"pets" binding:"required,min=1"`
	PayMoney decimal.Decimal `json:"pay_money"`
}

// PayRequest holds a payment towards a user's ledger.
type PayRequest struct {
	UserID uuid.UUID       `json:"user_id"`
	Amount decimal.Decimal `json:"amount"`
}

// CancelRequest holds the pets a user returns.
type CancelRequest struct {
	UserID uuid.UUID   `json:"user_id"`
	Pets   []uuid.UUID `json:"pets" binding:"required,min=1"`
}

// LedgerPetDTO is one pet line of a ledger.
type LedgerPetDTO struct {
	PetID      uuid.UUID `json:"pet_id"`
	PriceCents int64     `json:"price_cents"`
	AddedAt    time.Time `json:"added_at"`
}

// LedgerEntryDTO is one history record of a ledger.
type LedgerEntryDTO struct {
	ID          uuid.UUID   `json:"id"`
	Kind        string      `json:"kind"`
	AmountCents int64       `json:"amount_cents"`
	RefundCents int64       `json:"refund_cents,omitempty"`
	PetIDs      []uuid.UUID `json:"pet_ids,omitempty"`
	Reference   string      `json:"reference,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// LedgerDTO is the response representation of an adoption ledger.
type LedgerDTO struct {
	ID             uuid.UUID        `json:"id"`
	UserID         uuid.UUID        `json:"user_id"`
	Pets           []LedgerPetDTO   `json:"pets"`
	TotalCents     int64            `json:"total_cents"`
	PayMoneyCents  int64            `json:"pay_money_cents"`
	RemainingCents int64            `json:"remaining_cents"`
	Status         string           `json:"status"`
	Currency       string           `json:"currency"`
	History        []LedgerEntryDTO `json:"history,omitempty"`
	Version        int64            `json:"version"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// PaymentSummaryDTO is the balance view of a ledger.
type PaymentSummaryDTO struct {
	UserID         uuid.UUID `json:"user_id"`
	TotalCents     int64     `json:"total_cents"`
	PayMoneyCents  int64     `json:"pay_money_cents"`
	RemainingCents int64     `json:"remaining_cents"`
	Status         string    `json:"status"`
	Currency       string    `json:"currency"`
}

// CancelResultDTO reports the outcome of returning pets. IgnoredPets lists requested ids
// that were not in the user's ledger.
type CancelResultDTO struct {
	Ledger       LedgerDTO   `json:"ledger"`
	RefundCents  int64       `json:"refund_cents"`
	CanceledPets []uuid.UUID `json:"canceled_pets"`
	IgnoredPets  []uuid.UUID `json:"ignored_pets"`
}

// LedgerStatsDTO holds ledger statistics for the admin dashboard.
type LedgerStatsDTO struct {
	TotalLedgers     int64            `json:"total_ledgers"`
	ByStatus         map[string]int64 `json:"by_status"`
	TotalCents       int64            `json:"total_cents"`
	CollectedCents   int64            `json:"collected_cents"`
	OutstandingCents int64            `json:"outstanding_cents"`
}

// AdoptionService is the application service orchestrating adoption, payment and
// cancellation use cases. Mutations for one user are serialized; different users run in
// parallel.
type AdoptionService struct {
	uow         adoptionDomain.UnitOfWork
	ledgers     adoptionDomain.LedgerRepository
	publisher   EventPublisher
	locks       lock.Keyed
	lockTimeout time.Duration
	logger      *zap.Logger
}

// NewAdoptionService creates a new AdoptionService. lockTimeout bounds how long a request
// waits behind another in-flight operation for the same user; zero waits for the request
// context only.
func NewAdoptionService(
	uow adoptionDomain.UnitOfWork,
	ledgers adoptionDomain.LedgerRepository,
	publisher EventPublisher,
	lockTimeout time.Duration,
	logger *zap.Logger,
) *AdoptionService {
	return &AdoptionService{
		uow:         uow,
		ledgers:     ledgers,
		publisher:   publisher,
		lockTimeout: lockTimeout,
		logger:      logger,
	}
}

// Adopt attributes the requested pets to the user's ledger, creating it on first
// adoption, and credits the optional initial payment. Nothing is written unless every pet
// is available and the payment fits the new total.
func (s *AdoptionService) Adopt(ctx context.Context, req AdoptRequest) (*LedgerDTO, error) {
	petIDs, err := normalizePetIDs(req.Pets)
	if err != nil {
		return nil, err
	}
	payCents, err := domain.CentsFromDecimal(req.PayMoney)
	if err != nil {
		return nil, err
	}
	if payCents < 0 {
		return nil, domain.NewValidationError("pay money cannot be negative")
	}

	var (
		ledger     *adoptionDomain.Ledger
		addedCents int64
	)
	err = s.withUserLock(ctx, req.UserID, func() error {
		return s.uow.Transaction(ctx, func(ctx context.Context, repos adoptionDomain.Repositories) error {
			if _, err := lockActiveUser(ctx, repos.Users, req.UserID); err != nil {
				return err
			}

			pets, err := repos.Pets.FindByIDsForUpdate(ctx, petIDs)
			if err != nil {
				return fmt.Errorf("failed to load pets: %w", err)
			}
			lines, err := adoptableLines(petIDs, pets)
			if err != nil {
				return err
			}

			l, isNew, err := loadOrCreateLedger(ctx, repos.Ledgers, req.UserID)
			if err != nil {
				return err
			}
			if addedCents, err = l.AddPets(lines); err != nil {
				return err
			}
			if payCents > 0 {
				if err := l.ApplyPayment(payCents, ""); err != nil {
					return err
				}
			}

			if err := repos.Pets.BulkUpdateAdopted(ctx, petIDs, true); err != nil {
				return err
			}
			if isNew {
				err = repos.Ledgers.Save(ctx, l)
			} else {
				l.IncrementVersion()
				err = repos.Ledgers.Update(ctx, l)
			}
			if err != nil {
				return err
			}
			ledger = l
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("pets adopted",
		zap.String("user_id", req.UserID.String()),
		zap.String("ledger_id", ledger.ID().String()),
		zap.Int("pets", len(petIDs)),
		zap.Int64("added_cents", addedCents),
		zap.Int64("pay_money_cents", payCents),
		zap.String("status", ledger.Status().String()),
	)

	s.publishEvent(ctx, events.AdoptionPetsAdopted, req.UserID, events.PetsAdoptedEvent{
		LedgerID:      ledger.ID(),
		UserID:        ledger.UserID(),
		PetIDs:        petIDs,
		AddedCents:    addedCents,
		TotalCents:    ledger.TotalCents(),
		PayMoneyCents: ledger.PayMoneyCents(),
		Status:        ledger.Status().String(),
		OccurredAt:    time.Now().UTC(),
	})

	result := toLedgerDTO(ledger, false)
	return &result, nil
}

// Pay credits a payment to the user's ledger. Payments beyond the outstanding balance are
// rejected.
func (s *AdoptionService) Pay(ctx context.Context, req PayRequest) (*PaymentSummaryDTO, error) {
	amountCents, err := domain.CentsFromDecimal(req.Amount)
	if err != nil {
		return nil, err
	}
	if amountCents <= 0 {
		return nil, domain.NewValidationError("payment amount must be positive")
	}

	ledger, _, err := s.applyPayment(ctx, req.UserID, amountCents, "")
	if err != nil {
		return nil, err
	}
	return toPaymentSummaryDTO(ledger), nil
}

// ApplyExternalPayment credits a payment reported by the payment service. Replays of the
// same payment id are acknowledged without being applied twice.
func (s *AdoptionService) ApplyExternalPayment(ctx context.Context, evt events.PaymentReceivedEvent) error {
	if evt.PaymentID == "" {
		return domain.NewValidationError("payment id is required")
	}
	if evt.AmountCents <= 0 {
		return domain.NewValidationError("payment amount must be positive")
	}

	_, applied, err := s.applyPayment(ctx, evt.UserID, evt.AmountCents, evt.PaymentID)
	if err != nil {
		return err
	}
	if !applied {
		s.logger.Info("duplicate payment ignored",
			zap.String("payment_id", evt.PaymentID),
			zap.String("user_id", evt.UserID.String()),
		)
	}
	return nil
}

func (s *AdoptionService) applyPayment(ctx context.Context, userID uuid.UUID, amountCents int64, reference string) (*adoptionDomain.Ledger, bool, error) {
	var (
		ledger  *adoptionDomain.Ledger
		applied bool
	)
	err := s.withUserLock(ctx, userID, func() error {
		return s.uow.Transaction(ctx, func(ctx context.Context, repos adoptionDomain.Repositories) error {
			if _, err := repos.Users.FindByIDForUpdate(ctx, userID); err != nil {
				return err
			}
			l, err := repos.Ledgers.FindByUserIDForUpdate(ctx, userID)
			if err != nil {
				return err
			}
			ledger, applied = l, false

			if l.HasEntryReference(reference) {
				return nil
			}
			if err := l.ApplyPayment(amountCents, reference); err != nil {
				return err
			}
			l.IncrementVersion()
			if err := repos.Ledgers.Update(ctx, l); err != nil {
				return err
			}
			applied = true
			return nil
		})
	})
	if err != nil {
		return nil, false, err
	}
	if !applied {
		return ledger, false, nil
	}

	s.logger.Info("payment applied",
		zap.String("user_id", userID.String()),
		zap.String("ledger_id", ledger.ID().String()),
		zap.Int64("amount_cents", amountCents),
		zap.Int64("remaining_cents", ledger.RemainingCents()),
		zap.String("status", ledger.Status().String()),
	)

	s.publishEvent(ctx, events.AdoptionPaymentApplied, userID, events.PaymentAppliedEvent{
		LedgerID:       ledger.ID(),
		UserID:         userID,
		AmountCents:    amountCents,
		PaymentID:      reference,
		PayMoneyCents:  ledger.PayMoneyCents(),
		RemainingCents: ledger.RemainingCents(),
		Status:         ledger.Status().String(),
		OccurredAt:     time.Now().UTC(),
	})
	return ledger, true, nil
}

// Cancel returns pets from the user's ledger to the catalog. Requested ids that are not
// in the ledger are ignored and reported back; if none of them are, the request fails.
func (s *AdoptionService) Cancel(ctx context.Context, req CancelRequest) (*CancelResultDTO, error) {
	petIDs, err := normalizePetIDs(req.Pets)
	if err != nil {
		return nil, err
	}

	var (
		ledger  *adoptionDomain.Ledger
		removal adoptionDomain.Removal
		ignored []uuid.UUID
	)
	err = s.withUserLock(ctx, req.UserID, func() error {
		return s.uow.Transaction(ctx, func(ctx context.Context, repos adoptionDomain.Repositories) error {
			if _, err := repos.Users.FindByIDForUpdate(ctx, req.UserID); err != nil {
				return err
			}
			l, err := repos.Ledgers.FindByUserIDForUpdate(ctx, req.UserID)
			if err != nil {
				return err
			}

			owned, foreign := l.Partition(petIDs)
			if len(owned) == 0 {
				return domain.NewValidationError("none of the selected pets belong to this user")
			}

			r, err := l.RemovePets(owned)
			if err != nil {
				return err
			}
			if err := repos.Pets.BulkUpdateAdopted(ctx, owned, false); err != nil {
				return err
			}
			l.IncrementVersion()
			if err := repos.Ledgers.Update(ctx, l); err != nil {
				return err
			}
			ledger, removal, ignored = l, r, foreign
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if len(ignored) > 0 {
		s.logger.Warn("cancel ignored pets outside the ledger",
			zap.String("user_id", req.UserID.String()),
			zap.Stringers("pet_ids", ignored),
		)
	}
	s.logger.Info("pets returned",
		zap.String("user_id", req.UserID.String()),
		zap.String("ledger_id", ledger.ID().String()),
		zap.Int("pets", len(removal.PetIDs)),
		zap.Int64("removed_cents", removal.RemovedCents),
		zap.Int64("refund_cents", removal.RefundCents),
		zap.String("status", ledger.Status().String()),
	)

	s.publishEvent(ctx, events.AdoptionPetsReturned, req.UserID, events.PetsReturnedEvent{
		LedgerID:      ledger.ID(),
		UserID:        ledger.UserID(),
		PetIDs:        removal.PetIDs,
		RemovedCents:  removal.RemovedCents,
		RefundCents:   removal.RefundCents,
		TotalCents:    ledger.TotalCents(),
		PayMoneyCents: ledger.PayMoneyCents(),
		Status:        ledger.Status().String(),
		OccurredAt:    time.Now().UTC(),
	})

	if ignored == nil {
		ignored = []uuid.UUID{}
	}
	return &CancelResultDTO{
		Ledger:       toLedgerDTO(ledger, false),
		RefundCents:  removal.RefundCents,
		CanceledPets: removal.PetIDs,
		IgnoredPets:  ignored,
	}, nil
}

// GetLedgerForUser returns the ledger of a user.
func (s *AdoptionService) GetLedgerForUser(ctx context.Context, userID uuid.UUID) (*LedgerDTO, error) {
	l, err := s.ledgers.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	result := toLedgerDTO(l, false)
	return &result, nil
}

// GetPaymentSummary returns the balance of a user's ledger.
func (s *AdoptionService) GetPaymentSummary(ctx context.Context, userID uuid.UUID) (*PaymentSummaryDTO, error) {
	l, err := s.ledgers.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toPaymentSummaryDTO(l), nil
}

// --- Admin methods ---

// GetLedger returns a ledger with its history (admin).
func (s *AdoptionService) GetLedger(ctx context.Context, ledgerID uuid.UUID) (*LedgerDTO, error) {
	l, err := s.ledgers.FindByID(ctx, ledgerID)
	if err != nil {
		return nil, err
	}
	result := toLedgerDTO(l, true)
	return &result, nil
}

// GetLedgerForPet returns the ledger currently holding a pet (admin).
func (s *AdoptionService) GetLedgerForPet(ctx context.Context, petID uuid.UUID) (*LedgerDTO, error) {
	l, err := s.ledgers.FindByPetID(ctx, petID)
	if err != nil {
		return nil, err
	}
	result := toLedgerDTO(l, true)
	return &result, nil
}

// ListLedgers returns a paginated list of all ledgers (admin).
func (s *AdoptionService) ListLedgers(ctx context.Context, page, limit int) ([]LedgerDTO, int64, error) {
	ledgers, total, err := s.ledgers.ListAll(ctx, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list adoption ledgers: %w", err)
	}

	dtos := make([]LedgerDTO, len(ledgers))
	for i, l := range ledgers {
		dtos[i] = toLedgerDTO(l, false)
	}
	return dtos, total, nil
}

// GetLedgerStats returns aggregate ledger statistics (admin).
func (s *AdoptionService) GetLedgerStats(ctx context.Context) (*LedgerStatsDTO, error) {
	stats, err := s.ledgers.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get adoption stats: %w", err)
	}

	byStatus := make(map[string]int64, len(stats.CountByStatus))
	var total int64
	for status, c := range stats.CountByStatus {
		byStatus[status.String()] = c
		total += c
	}

	return &LedgerStatsDTO{
		TotalLedgers:     total,
		ByStatus:         byStatus,
		TotalCents:       stats.TotalCents,
		CollectedCents:   stats.CollectedCents,
		OutstandingCents: stats.OutstandingCents,
	}, nil
}

// --- Helpers ---

// withUserLock runs fn while holding the in-process lock for userID.
func (s *AdoptionService) withUserLock(ctx context.Context, userID uuid.UUID, fn func() error) error {
	if userID == uuid.Nil {
		return domain.NewValidationError("user ID is required")
	}

	lockCtx := ctx
	if s.lockTimeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, s.lockTimeout)
		defer cancel()
	}

	unlock, err := s.locks.Lock(lockCtx, userID.String())
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return domain.NewConcurrentModificationError("another adoption operation for this user is in progress")
	}
	defer unlock()
	return fn()
}

// lockActiveUser locks the user row and treats inactive accounts as missing.
func lockActiveUser(ctx context.Context, users userDomain.UserRepository, userID uuid.UUID) (*userDomain.User, error) {
	u, err := users.FindByIDForUpdate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.IsActive() {
		return nil, domain.NewNotFoundError("User", userID.String())
	}
	return u, nil
}

func loadOrCreateLedger(ctx context.Context, ledgers adoptionDomain.LedgerRepository, userID uuid.UUID) (*adoptionDomain.Ledger, bool, error) {
	l, err := ledgers.FindByUserIDForUpdate(ctx, userID)
	if err == nil {
		return l, false, nil
	}
	if !domain.IsKind(err, domain.KindNotFound) {
		return nil, false, err
	}
	l, err = adoptionDomain.NewLedger(userID)
	if err != nil {
		return nil, false, err
	}
	return l, true, nil
}

// normalizePetIDs rejects empty selections and nil ids and drops duplicates, keeping the
// first occurrence.
func normalizePetIDs(ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, domain.NewValidationError("at least one pet is required")
	}
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			return nil, domain.NewValidationError("pet id is required")
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

// adoptableLines checks that every requested pet exists and is free, reporting each
// offending id, and prices the rest.
func adoptableLines(petIDs []uuid.UUID, pets []*petDomain.Pet) ([]adoptionDomain.Line, error) {
	byID := make(map[uuid.UUID]*petDomain.Pet, len(pets))
	for _, p := range pets {
		byID[p.ID()] = p
	}

	fields := make(map[string]string)
	lines := make([]adoptionDomain.Line, 0, len(petIDs))
	for _, id := range petIDs {
		p, ok := byID[id]
		switch {
		case !ok:
			fields[id.String()] = "pet not found"
		case p.IsAdopted():
			fields[id.String()] = "pet is already adopted"
		default:
			lines = append(lines, adoptionDomain.Line{PetID: id, PriceCents: p.PriceCents()})
		}
	}
	if len(fields) > 0 {
		return nil, domain.NewFieldValidationError("some of the selected pets cannot be adopted", fields)
	}
	return lines, nil
}

// publishEvent keys the event by user so one user's events stay ordered on a partition.
func (s *AdoptionService) publishEvent(ctx context.Context, eventType string, userID uuid.UUID, data interface{}) {
	cloudEvent, err := kafka.NewCloudEvent(eventSource, eventType, data)
	if err != nil {
		s.logger.Error("failed to create cloud event",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		return
	}
	cloudEvent.Subject = userID.String()

	if err := s.publisher.PublishEvent(ctx, events.TopicAdoptionEvents, cloudEvent); err != nil {
		s.logger.Error("failed to publish event",
			zap.String("topic", events.TopicAdoptionEvents),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}

func toLedgerDTO(l *adoptionDomain.Ledger, withHistory bool) LedgerDTO {
	lines := l.Lines()
	pets := make([]LedgerPetDTO, len(lines))
	for i, line := range lines {
		pets[i] = LedgerPetDTO{PetID: line.PetID, PriceCents: line.PriceCents, AddedAt: line.AddedAt}
	}

	dto := LedgerDTO{
		ID:             l.ID(),
		UserID:         l.UserID(),
		Pets:           pets,
		TotalCents:     l.TotalCents(),
		PayMoneyCents:  l.PayMoneyCents(),
		RemainingCents: l.RemainingCents(),
		Status:         l.Status().String(),
		Currency:       domain.CurrencyUSD,
		Version:        l.Version(),
		CreatedAt:      l.CreatedAt(),
		UpdatedAt:      l.UpdatedAt(),
	}
	if withHistory {
		for _, e := range l.Entries() {
			dto.History = append(dto.History, LedgerEntryDTO{
				ID:          e.ID,
				Kind:        string(e.Kind),
				AmountCents: e.AmountCents,
				RefundCents: e.RefundCents,
				PetIDs:      e.PetIDs,
				Reference:   e.Reference,
				CreatedAt:   e.CreatedAt,
			})
		}
	}
	return dto
}

func toPaymentSummaryDTO(l *adoptionDomain.Ledger) *PaymentSummaryDTO {
	return &PaymentSummaryDTO{
		UserID:         l.UserID(),
		TotalCents:     l.TotalCents(),
		PayMoneyCents:  l.PayMoneyCents(),
		RemainingCents: l.RemainingCents(),
		Status:         l.Status().String(),
		Currency:       domain.CurrencyUSD,
	}
}
