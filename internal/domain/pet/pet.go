package pet

import (
	"fmt"
	"strings"
	"time"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/domain"
	"github.com/google/uuid"
)

// Kind is the species of a catalog pet.
type Kind string

const (
	KindDog     Kind = "dog"
	KindCat     Kind = "cat"
	KindBird    Kind = "bird"
	KindRabbit  Kind = "rabbit"
	KindReptile Kind = "reptile"
	KindOther   Kind = "other"
)

// IsValid returns true if the kind is recognized.
func (k Kind) IsValid() bool {
	switch k {
	case KindDog, KindCat, KindBird, KindRabbit, KindReptile, KindOther:
		return true
	}
	return false
}

// Gender is a pet's sex, M or F.
type Gender string

const (
	GenderMale   Gender = "M"
	GenderFemale Gender = "F"
)

// IsValid returns true if the gender is M or F.
func (g Gender) IsValid() bool {
	return g == GenderMale || g == GenderFemale
}

// Pet is the aggregate root for a catalog pet offered for adoption.
type Pet struct {
	id         uuid.UUID
	tag        string
	kind       Kind
	age        int
	priceCents int64
	gender     Gender
	isAdopted  bool
	version    int64
	createdAt  time.Time
	updatedAt  time.Time
}

// NormalizeTag lower-cases and trims a tag; tags are unique case-insensitively.
func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

// NewPet creates a new, not yet adopted catalog pet with validated fields.
func NewPet(tag string, kind Kind, age int, priceCents int64, gender Gender) (*Pet, error) {
	tag = NormalizeTag(tag)
	if tag == "" {
		return nil, domain.NewValidationError("pet tag is required")
	}
	if !kind.IsValid() {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid pet kind: %s", kind))
	}
	if age <= 0 {
		return nil, domain.NewValidationError("pet age must be positive")
	}
	if priceCents <= 0 {
		return nil, domain.NewValidationError("pet price must be positive")
	}
	if !gender.IsValid() {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid pet gender: %s", gender))
	}

	now := time.Now().UTC()
	return &Pet{
		id:         uuid.New(),
		tag:        tag,
		kind:       kind,
		age:        age,
		priceCents: priceCents,
		gender:     gender,
		version:    1,
		createdAt:  now,
		updatedAt:  now,
	}, nil
}

// Reconstruct rebuilds a Pet from persistence data (no validation).
func Reconstruct(
	id uuid.UUID,
	tag string,
	kind Kind,
	age int,
	priceCents int64,
	gender Gender,
	isAdopted bool,
	version int64,
	createdAt, updatedAt time.Time,
) *Pet {
	return &Pet{
		id:         id,
		tag:        tag,
		kind:       kind,
		age:        age,
		priceCents: priceCents,
		gender:     gender,
		isAdopted:  isAdopted,
		version:    version,
		createdAt:  createdAt,
		updatedAt:  updatedAt,
	}
}

// --- Getters ---

func (p *Pet) ID() uuid.UUID        { return p.id }
func (p *Pet) Tag() string          { return p.tag }
func (p *Pet) Kind() Kind           { return p.kind }
func (p *Pet) Age() int             { return p.age }
func (p *Pet) PriceCents() int64    { return p.priceCents }
func (p *Pet) Gender() Gender       { return p.gender }
func (p *Pet) IsAdopted() bool      { return p.isAdopted }
func (p *Pet) Version() int64       { return p.version }
func (p *Pet) CreatedAt() time.Time { return p.createdAt }
func (p *Pet) UpdatedAt() time.Time { return p.updatedAt }

// --- Behavior ---

// UpdateFields carries optional admin edits; zero values leave a field unchanged.
type UpdateFields struct {
	Tag        string
	Kind       Kind
	Age        int
	PriceCents int64
	Gender     Gender
}

// Update applies partial admin edits. The price of an adopted pet is frozen because the
// adopter's ledger already carries it.
func (p *Pet) Update(f UpdateFields) error {
	if f.Kind != "" && !f.Kind.IsValid() {
		return domain.NewValidationError(fmt.Sprintf("invalid pet kind: %s", f.Kind))
	}
	if f.Gender != "" && !f.Gender.IsValid() {
		return domain.NewValidationError(fmt.Sprintf("invalid pet gender: %s", f.Gender))
	}
	if f.Age < 0 {
		return domain.NewValidationError("pet age must be positive")
	}
	if f.PriceCents < 0 {
		return domain.NewValidationError("pet price must be positive")
	}
	repriced := f.PriceCents > 0 && f.PriceCents != p.priceCents
	if repriced && p.isAdopted {
		return domain.NewInvalidStateError("adopted", "repriced")
	}

	if tag := NormalizeTag(f.Tag); tag != "" {
		p.tag = tag
	}
	if f.Kind != "" {
		p.kind = f.Kind
	}
	if f.Age > 0 {
		p.age = f.Age
	}
	if repriced {
		p.priceCents = f.PriceCents
	}
	if f.Gender != "" {
		p.gender = f.Gender
	}
	p.version++
	p.updatedAt = time.Now().UTC()
	return nil
}

// MarkAdopted flags the pet as taken. Fails if it already is.
func (p *Pet) MarkAdopted() error {
	if p.isAdopted {
		return domain.NewInvalidStateError("adopted", "adopted")
	}
	p.isAdopted = true
	p.version++
	p.updatedAt = time.Now().UTC()
	return nil
}

// MarkReturned puts an adopted pet back in the catalog.
func (p *Pet) MarkReturned() error {
	if !p.isAdopted {
		return domain.NewInvalidStateError("available", "available")
	}
	p.isAdopted = false
	p.version++
	p.updatedAt = time.Now().UTC()
	return nil
}
