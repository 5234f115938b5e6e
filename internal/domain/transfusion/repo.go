package transfusion

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, r *Record) error
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	// GetByUnit returns the record referencing unitID, or a NotFound error.
	GetByUnit(ctx context.Context, unitID uuid.UUID) (*Record, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListByRecipient(ctx context.Context, recipientID uuid.UUID) ([]*Record, error)
}
