package recipient

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bloodbank/bloodbank/internal/domain/bloodunit"
	"github.com/bloodbank/bloodbank/internal/domain/donor"
	"github.com/bloodbank/bloodbank/internal/platform/apperr"
	"github.com/bloodbank/bloodbank/internal/platform/db"
	"github.com/bloodbank/bloodbank/pkg/dateutil"
)

type Service struct {
	recipients RecipientRepository
	requests   RequestRepository
	tx         db.Transactor
	logger     zerolog.Logger
	now        func() time.Time
}

func NewService(recipients RecipientRepository, requests RequestRepository, tx db.Transactor) *Service {
	return &Service{
		recipients: recipients,
		requests:   requests,
		tx:         tx,
		logger:     zerolog.Nop(),
		now:        time.Now,
	}
}

func (s *Service) SetLogger(l zerolog.Logger) { s.logger = l.With().Str("component", "recipient").Logger() }

// -- Recipients --

func (s *Service) CreateRecipient(ctx context.Context, r *Recipient) error {
	if strings.TrimSpace(r.RecipientNumber) == "" {
		return apperr.Validation("recipient_number is required")
	}
	if strings.TrimSpace(r.FirstName) == "" {
		return apperr.Validation("first_name is required")
	}
	if strings.TrimSpace(r.LastName) == "" {
		return apperr.Validation("last_name is required")
	}
	if r.DateOfBirth.IsZero() {
		return apperr.Validation("date_of_birth is required")
	}
	if r.DateOfBirth.After(s.now()) {
		return apperr.Validation("date_of_birth cannot be in the future")
	}
	if !donor.ValidBloodType(r.BloodType) {
		return apperr.Validation("invalid blood_type: %q", r.BloodType)
	}
	r.TransfusionCount = 0
	r.LastTransfusionDate = nil
	return s.recipients.Create(ctx, r)
}

func (s *Service) GetRecipient(ctx context.Context, id uuid.UUID) (*Recipient, error) {
	return s.recipients.GetByID(ctx, id)
}

func (s *Service) GetRecipientByNumber(ctx context.Context, number string) (*Recipient, error) {
	return s.recipients.GetByNumber(ctx, number)
}

func (s *Service) ListRecipients(ctx context.Context, f ListFilter, limit, offset int) ([]*Recipient, int, error) {
	if f.BloodType != "" && !donor.ValidBloodType(f.BloodType) {
		return nil, 0, apperr.Validation("invalid blood_type: %q", f.BloodType)
	}
	return s.recipients.List(ctx, f, limit, offset)
}

// RecordTransfusion bumps the recipient's counters for a transfusion given
// on date. It joins the caller's transaction.
func (s *Service) RecordTransfusion(ctx context.Context, recipientID uuid.UUID, date time.Time) (*Recipient, error) {
	var r *Recipient
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		r, err = s.recipients.GetByID(ctx, recipientID)
		if err != nil {
			return err
		}
		r.TransfusionCount++
		r.LastTransfusionDate = dateutil.MaxTime(append(timesOf(r.LastTransfusionDate), date)...)
		return s.recipients.Update(ctx, r)
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// RetractTransfusion reverses RecordTransfusion. lastRemaining is the most
// recent date among the recipient's remaining transfusions, nil if none.
func (s *Service) RetractTransfusion(ctx context.Context, recipientID uuid.UUID, lastRemaining *time.Time) (*Recipient, error) {
	var r *Recipient
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		r, err = s.recipients.GetByID(ctx, recipientID)
		if err != nil {
			return err
		}
		if r.TransfusionCount > 0 {
			r.TransfusionCount--
		}
		r.LastTransfusionDate = lastRemaining
		return s.recipients.Update(ctx, r)
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// -- Blood requests --

type CreateRequestCommand struct {
	RequestNumber  string
	RecipientID    uuid.UUID
	BloodType      string
	Component      string
	UnitsRequested int
	Urgency        string
	RequiredBy     *time.Time
	Notes          *string
}

func (c *CreateRequestCommand) validate() error {
	if strings.TrimSpace(c.RequestNumber) == "" {
		return apperr.Validation("request_number is required")
	}
	if c.RecipientID == uuid.Nil {
		return apperr.Validation("recipient_id is required")
	}
	if c.BloodType != "" && !donor.ValidBloodType(c.BloodType) {
		return apperr.Validation("invalid blood_type: %q", c.BloodType)
	}
	if !bloodunit.ValidComponent(c.Component) {
		return apperr.Validation("invalid component: %q", c.Component)
	}
	if c.UnitsRequested <= 0 {
		return apperr.Validation("units_requested must be greater than 0")
	}
	if !validUrgencies[c.Urgency] {
		return apperr.Validation("invalid urgency: %q", c.Urgency)
	}
	return nil
}

// CreateRequest opens a Pending request. Blood type defaults to the
// recipient's own.
func (s *Service) CreateRequest(ctx context.Context, cmd CreateRequestCommand) (*BloodRequest, error) {
	if cmd.Component == "" {
		cmd.Component = bloodunit.ComponentWholeBlood
	}
	if cmd.Urgency == "" {
		cmd.Urgency = UrgencyRoutine
	}
	if err := cmd.validate(); err != nil {
		return nil, err
	}
	r, err := s.recipients.GetByID(ctx, cmd.RecipientID)
	if err != nil {
		return nil, err
	}
	br := &BloodRequest{
		RequestNumber:  cmd.RequestNumber,
		RecipientID:    r.ID,
		BloodType:      cmd.BloodType,
		Component:      cmd.Component,
		UnitsRequested: cmd.UnitsRequested,
		Urgency:        cmd.Urgency,
		RequiredBy:     cmd.RequiredBy,
		Status:         RequestPending,
		Notes:          cmd.Notes,
	}
	if br.BloodType == "" {
		br.BloodType = r.BloodType
	}
	if err := s.requests.Create(ctx, br); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("request_number", br.RequestNumber).
		Str("recipient_id", br.RecipientID.String()).
		Str("urgency", br.Urgency).
		Int("units", br.UnitsRequested).
		Msg("blood request created")
	return br, nil
}

func (s *Service) GetRequest(ctx context.Context, id uuid.UUID) (*BloodRequest, error) {
	return s.requests.GetByID(ctx, id)
}

func (s *Service) ListRequests(ctx context.Context, recipientID uuid.UUID) ([]*BloodRequest, error) {
	if _, err := s.recipients.GetByID(ctx, recipientID); err != nil {
		return nil, err
	}
	return s.requests.ListByRecipient(ctx, recipientID)
}

func (s *Service) ListAllRequests(ctx context.Context, f RequestFilter, limit, offset int) ([]*BloodRequest, int, error) {
	if f.Status != "" {
		if _, ok := allowedRequestTransitions[f.Status]; !ok {
			return nil, 0, apperr.Validation("invalid status: %q", f.Status)
		}
	}
	if f.Urgency != "" && !validUrgencies[f.Urgency] {
		return nil, 0, apperr.Validation("invalid urgency: %q", f.Urgency)
	}
	return s.requests.List(ctx, f, limit, offset)
}

// allowedRequestTransitions defines the administrative status changes of a
// blood request. Requests never change status on their own.
var allowedRequestTransitions = map[string]map[string]bool{
	RequestPending: {
		RequestProcessing: true,
		RequestCancelled:  true,
	},
	RequestProcessing: {
		RequestFulfilled: true,
		RequestCancelled: true,
	},
	RequestFulfilled: {},
	RequestCancelled: {},
}

type UpdateRequestStatusCommand struct {
	RequestID uuid.UUID
	Status    string
	Actor     string
	Notes     *string
}

func (s *Service) UpdateRequestStatus(ctx context.Context, cmd UpdateRequestStatusCommand) (*BloodRequest, error) {
	if _, known := allowedRequestTransitions[cmd.Status]; !known {
		return nil, apperr.Validation("invalid status: %q", cmd.Status)
	}
	var br *BloodRequest
	var prev string
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		br, err = s.requests.GetByID(ctx, cmd.RequestID)
		if err != nil {
			return err
		}
		prev = br.Status
		if !allowedRequestTransitions[br.Status][cmd.Status] {
			return apperr.New(apperr.KindInvalidTransition,
				"invalid status transition from %s to %s", br.Status, cmd.Status)
		}
		br.Status = cmd.Status
		if cmd.Notes != nil {
			br.Notes = cmd.Notes
		}
		if cmd.Actor != "" {
			br.UpdatedBy = &cmd.Actor
		}
		return s.requests.Update(ctx, br)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("request_number", br.RequestNumber).
		Str("from", prev).
		Str("to", br.Status).
		Str("actor", cmd.Actor).
		Msg("blood request status changed")
	return br, nil
}

func timesOf(t *time.Time) []time.Time {
	if t == nil {
		return nil
	}
	return []time.Time{*t}
}
