package bloodunit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ListFilter struct {
	Status    string
	BloodType string
	Component string
	DonorID   *uuid.UUID
}

// Repository persists blood units and their status history. Soft-deleted
// units are invisible to every read.
type Repository interface {
	Create(ctx context.Context, u *BloodUnit) error
	GetByID(ctx context.Context, id uuid.UUID) (*BloodUnit, error)
	GetByNumber(ctx context.Context, number string) (*BloodUnit, error)
	Update(ctx context.Context, u *BloodUnit) error
	// SoftDelete never removes a Transfused unit; it reports NotFound instead.
	SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*BloodUnit, int, error)
	// ListByStatus returns every unit in status, ordered by expiration date.
	// A non-nil expiringBy limits the result to units expiring at or before it.
	ListByStatus(ctx context.Context, status string, expiringBy *time.Time) ([]*BloodUnit, error)
	AddStatusChange(ctx context.Context, sc *StatusChange) error
	ListStatusChanges(ctx context.Context, unitID uuid.UUID) ([]*StatusChange, error)
}
