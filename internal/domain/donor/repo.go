package donor

import (
	"context"

	"github.com/google/uuid"
)

// ListFilter narrows donor listings. Zero values match everything.
type ListFilter struct {
	Status         string
	BloodType      string
	IncludeRetired bool
}

type DonorRepository interface {
	Create(ctx context.Context, d *Donor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Donor, error)
	GetByNumber(ctx context.Context, number string) (*Donor, error)
	Update(ctx context.Context, d *Donor) error
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Donor, int, error)
	AddDonation(ctx context.Context, h *DonationHistory) error
	ListDonations(ctx context.Context, donorID uuid.UUID) ([]*DonationHistory, error)
}

type DeferralRepository interface {
	Create(ctx context.Context, d *Deferral) error
	GetByID(ctx context.Context, id uuid.UUID) (*Deferral, error)
	Update(ctx context.Context, d *Deferral) error
	ListByDonor(ctx context.Context, donorID uuid.UUID) ([]*Deferral, error)
}

type HealthRepository interface {
	Create(ctx context.Context, h *HealthAssessment) error
	ListByDonor(ctx context.Context, donorID uuid.UUID) ([]*HealthAssessment, error)
}
