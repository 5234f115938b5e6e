package recipient

import (
	"context"

	"github.com/google/uuid"
)

type ListFilter struct {
	BloodType string
	Hospital  string
}

type RecipientRepository interface {
	Create(ctx context.Context, r *Recipient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Recipient, error)
	GetByNumber(ctx context.Context, number string) (*Recipient, error)
	Update(ctx context.Context, r *Recipient) error
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Recipient, int, error)
}

type RequestFilter struct {
	Status  string
	Urgency string
}

type RequestRepository interface {
	Create(ctx context.Context, r *BloodRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*BloodRequest, error)
	Update(ctx context.Context, r *BloodRequest) error
	ListByRecipient(ctx context.Context, recipientID uuid.UUID) ([]*BloodRequest, error)
	List(ctx context.Context, f RequestFilter, limit, offset int) ([]*BloodRequest, int, error)
}
