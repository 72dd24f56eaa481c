package application

import (
	"context"
	"fmt"
	"time"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/domain"
	adoptionDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/adoption"
	petDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/pet"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreatePetRequest is the request DTO for listing a pet in the catalog.
type CreatePetRequest struct {
	Tag    string          `json:"tag" binding:"required"`
	Kind   string          `json:"kind" binding:"required"`
	Age    int             `json:"age" binding:"required,gt=0"`
	Price  decimal.Decimal `json:"price"`
	Gender string          `json:"gender" binding:"required,gender"`
}

// UpdatePetRequest is the request DTO for editing a catalog pet. Omitted fields are kept.
type UpdatePetRequest struct {
	Tag    string           `json:"tag"`
	Kind   string           `json:"kind"`
	Age    int              `json:"age" binding:"omitempty,gt=0"`
	Price  *decimal.Decimal `json:"price"`
	Gender string           `json:"gender" binding:"omitempty,gender"`
}

// ListPetsQuery holds catalog filters. Prices are decimal strings.
type ListPetsQuery struct {
	Kind     string `form:"kind"`
	Gender   string `form:"gender"`
	Adopted  *bool  `form:"adopted"`
	MinAge   int    `form:"min_age" binding:"omitempty,gte=0"`
	MaxAge   int    `form:"max_age" binding:"omitempty,gte=0"`
	MinPrice string `form:"min_price"`
	MaxPrice string `form:"max_price"`
	Tag      string `form:"tag"`
}

// DeletePetsRequest lists the pets to remove from the catalog.
type DeletePetsRequest struct {
	IDs []uuid.UUID `json:"ids" binding:"required,min=1"`
}

// PetDTO is the API response representation of a catalog pet.
type PetDTO struct {
	ID         uuid.UUID `json:"id"`
	Tag        string    `json:"tag"`
	Kind       string    `json:"kind"`
	Age        int       `json:"age"`
	PriceCents int64     `json:"price_cents"`
	Gender     string    `json:"gender"`
	IsAdopted  bool      `json:"is_adopted"`
	Version    int64     `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// PetService implements catalog use cases.
type PetService struct {
	repo   petDomain.PetRepository
	uow    adoptionDomain.UnitOfWork
	logger *zap.Logger
}

// NewPetService creates a new PetService. Edits that must not race with adoptions run
// through uow.
func NewPetService(repo petDomain.PetRepository, uow adoptionDomain.UnitOfWork, logger *zap.Logger) *PetService {
	return &PetService{repo: repo, uow: uow, logger: logger}
}

// CreatePet lists a new pet in the catalog.
func (s *PetService) CreatePet(ctx context.Context, req CreatePetRequest) (*PetDTO, error) {
	priceCents, err := domain.CentsFromDecimal(req.Price)
	if err != nil {
		return nil, err
	}

	pet, err := petDomain.NewPet(req.Tag, petDomain.Kind(req.Kind), req.Age, priceCents, petDomain.Gender(req.Gender))
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, pet); err != nil {
		s.logger.Error("failed to create pet", zap.Error(err))
		return nil, fmt.Errorf("failed to create pet: %w", err)
	}

	s.logger.Info("pet listed",
		zap.String("pet_id", pet.ID().String()),
		zap.String("tag", pet.Tag()),
		zap.Int64("price_cents", pet.PriceCents()),
	)
	result := toPetDTO(pet)
	return &result, nil
}

// GetPet returns a single pet by ID.
func (s *PetService) GetPet(ctx context.Context, petID uuid.UUID) (*PetDTO, error) {
	pet, err := s.repo.FindByID(ctx, petID)
	if err != nil {
		return nil, err
	}
	result := toPetDTO(pet)
	return &result, nil
}

// GetPetByTag returns a single pet by its tag.
func (s *PetService) GetPetByTag(ctx context.Context, tag string) (*PetDTO, error) {
	pet, err := s.repo.FindByTag(ctx, tag)
	if err != nil {
		return nil, err
	}
	result := toPetDTO(pet)
	return &result, nil
}

// ListPets returns a filtered page of the catalog.
func (s *PetService) ListPets(ctx context.Context, q ListPetsQuery, page, limit int) ([]PetDTO, int64, error) {
	filter, err := q.toFilter()
	if err != nil {
		return nil, 0, err
	}

	pets, total, err := s.repo.FindMany(ctx, filter, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list pets: %w", err)
	}

	dtos := make([]PetDTO, len(pets))
	for i, p := range pets {
		dtos[i] = toPetDTO(p)
	}
	return dtos, total, nil
}

// UpdatePet edits a catalog pet. The row is locked so a concurrent adoption cannot slip
// between the adopted check and a price change.
func (s *PetService) UpdatePet(ctx context.Context, petID uuid.UUID, req UpdatePetRequest) (*PetDTO, error) {
	fields := petDomain.UpdateFields{
		Tag:    req.Tag,
		Kind:   petDomain.Kind(req.Kind),
		Age:    req.Age,
		Gender: petDomain.Gender(req.Gender),
	}
	if req.Price != nil {
		cents, err := domain.CentsFromDecimal(*req.Price)
		if err != nil {
			return nil, err
		}
		if cents <= 0 {
			return nil, domain.NewValidationError("pet price must be positive")
		}
		fields.PriceCents = cents
	}

	var updated *petDomain.Pet
	err := s.uow.Transaction(ctx, func(ctx context.Context, repos adoptionDomain.Repositories) error {
		pets, err := repos.Pets.FindByIDsForUpdate(ctx, []uuid.UUID{petID})
		if err != nil {
			return fmt.Errorf("failed to load pet: %w", err)
		}
		if len(pets) == 0 {
			return domain.NewNotFoundError("Pet", petID.String())
		}
		pet := pets[0]
		if err := pet.Update(fields); err != nil {
			return err
		}
		if err := repos.Pets.Update(ctx, pet); err != nil {
			return err
		}
		updated = pet
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("pet updated", zap.String("pet_id", petID.String()))
	result := toPetDTO(updated)
	return &result, nil
}

// DeletePets removes pets from the catalog. Adopted pets cannot be deleted; the whole
// request fails if any of them is.
func (s *PetService) DeletePets(ctx context.Context, ids []uuid.UUID) (int64, error) {
	ids, err := normalizePetIDs(ids)
	if err != nil {
		return 0, err
	}

	var deleted int64
	err = s.uow.Transaction(ctx, func(ctx context.Context, repos adoptionDomain.Repositories) error {
		pets, err := repos.Pets.FindByIDsForUpdate(ctx, ids)
		if err != nil {
			return fmt.Errorf("failed to load pets: %w", err)
		}
		if len(pets) == 0 {
			return domain.NewNotFoundError("Pet", ids[0].String())
		}
		for _, p := range pets {
			if p.IsAdopted() {
				return domain.NewInvalidStateError("adopted", "deleted")
			}
		}
		deleted, err = repos.Pets.DeleteMany(ctx, ids)
		return err
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("pets deleted", zap.Int64("count", deleted))
	return deleted, nil
}

func (q ListPetsQuery) toFilter() (petDomain.Filter, error) {
	f := petDomain.Filter{
		Kind:      petDomain.Kind(q.Kind),
		Gender:    petDomain.Gender(q.Gender),
		IsAdopted: q.Adopted,
		MinAge:    q.MinAge,
		MaxAge:    q.MaxAge,
		TagPrefix: petDomain.NormalizeTag(q.Tag),
	}
	if f.Kind != "" && !f.Kind.IsValid() {
		return f, domain.NewValidationError(fmt.Sprintf("invalid pet kind: %s", q.Kind))
	}
	if f.Gender != "" && !f.Gender.IsValid() {
		return f, domain.NewValidationError(fmt.Sprintf("invalid pet gender: %s", q.Gender))
	}

	var err error
	if f.MinPriceCents, err = parseOptionalCents(q.MinPrice); err != nil {
		return f, err
	}
	if f.MaxPriceCents, err = parseOptionalCents(q.MaxPrice); err != nil {
		return f, err
	}
	return f, nil
}

func parseOptionalCents(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, domain.NewValidationError(fmt.Sprintf("invalid price: %s", s))
	}
	return domain.CentsFromDecimal(d)
}

func toPetDTO(p *petDomain.Pet) PetDTO {
	return PetDTO{
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
