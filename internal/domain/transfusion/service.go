package transfusion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bloodbank/bloodbank/internal/domain/bloodunit"
	"github.com/bloodbank/bloodbank/internal/domain/recipient"
	"github.com/bloodbank/bloodbank/internal/platform/apperr"
	"github.com/bloodbank/bloodbank/internal/platform/db"
	"github.com/bloodbank/bloodbank/internal/platform/metrics"
	"github.com/bloodbank/bloodbank/pkg/dateutil"
)

// Units is the blood-unit side of a transfusion. *bloodunit.Service
// satisfies it.
type Units interface {
	Get(ctx context.Context, id uuid.UUID) (*bloodunit.BloodUnit, error)
	MarkTransfused(ctx context.Context, cmd bloodunit.MarkTransfusedCommand) (*bloodunit.BloodUnit, error)
	RevertTransfusion(ctx context.Context, cmd bloodunit.RevertTransfusionCommand) (*bloodunit.BloodUnit, error)
}

// Recipients is the recipient side of a transfusion. *recipient.Service
// satisfies it.
type Recipients interface {
	GetRecipient(ctx context.Context, id uuid.UUID) (*recipient.Recipient, error)
	GetRequest(ctx context.Context, id uuid.UUID) (*recipient.BloodRequest, error)
	RecordTransfusion(ctx context.Context, recipientID uuid.UUID, date time.Time) (*recipient.Recipient, error)
	RetractTransfusion(ctx context.Context, recipientID uuid.UUID, lastRemaining *time.Time) (*recipient.Recipient, error)
}

type Service struct {
	records       Repository
	units         Units
	recipients    Recipients
	tx            db.Transactor
	enforceCompat bool
	metrics       *metrics.Metrics
	logger        zerolog.Logger
	now           func() time.Time
}

func NewService(records Repository, units Units, recipients Recipients, tx db.Transactor) *Service {
	return &Service{
		records:       records,
		units:         units,
		recipients:    recipients,
		tx:            tx,
		enforceCompat: true,
		logger:        zerolog.Nop(),
		now:           time.Now,
	}
}

func (s *Service) SetMetrics(m *metrics.Metrics) { s.metrics = m }
func (s *Service) SetLogger(l zerolog.Logger)    { s.logger = l.With().Str("component", "transfusion").Logger() }

// SetEnforceCompatibility toggles the ABO/Rh check on CreateTransfusion.
func (s *Service) SetEnforceCompatibility(on bool) { s.enforceCompat = on }

func (s *Service) CheckCompatibility(donorType, recipientType string) (*Compatibility, error) {
	for _, t := range []string{donorType, recipientType} {
		if _, ok := redCellCompat[t]; !ok {
			return nil, apperr.Validation("invalid blood type: %q", t)
		}
	}
	return &Compatibility{
		DonorType:     donorType,
		RecipientType: recipientType,
		Compatible:    IsCompatible(donorType, recipientType),
		CanReceive:    CompatibleDonorTypes(recipientType),
	}, nil
}

type CreateTransfusionCommand struct {
	TransfusionNumber string
	RecipientID       uuid.UUID
	BloodUnitID       uuid.UUID
	RequestID         *uuid.UUID
	TransfusionDate   *time.Time
	Hospital          *string
	Physician         *string
	VolumeML          *int
	Outcome           string
	AdverseReactions  *string
	Notes             *string
	Actor             string
}

func (c *CreateTransfusionCommand) validate() error {
	if strings.TrimSpace(c.TransfusionNumber) == "" {
		return apperr.Validation("transfusion_number is required")
	}
	if c.RecipientID == uuid.Nil {
		return apperr.Validation("recipient_id is required")
	}
	if c.BloodUnitID == uuid.Nil {
		return apperr.Validation("blood_unit_id is required")
	}
	if c.VolumeML != nil && *c.VolumeML <= 0 {
		return apperr.Validation("volume_ml must be greater than 0")
	}
	if !validOutcomes[c.Outcome] {
		return apperr.Validation("invalid outcome: %q", c.Outcome)
	}
	return nil
}

// CreateTransfusion consumes an Available unit for a recipient. The unit
// transition, its back-reference, the record and the recipient counters are
// written in one transaction.
func (s *Service) CreateTransfusion(ctx context.Context, cmd CreateTransfusionCommand) (*Record, error) {
	if cmd.Outcome == "" {
		cmd.Outcome = OutcomeSuccessful
	}
	if err := cmd.validate(); err != nil {
		return nil, err
	}
	date := s.now()
	if cmd.TransfusionDate != nil {
		date = *cmd.TransfusionDate
	}
	actor := cmd.Actor
	if strings.TrimSpace(actor) == "" {
		actor = "system"
	}

	rec := &Record{
		TransfusionNumber: cmd.TransfusionNumber,
		RecipientID:       cmd.RecipientID,
		BloodUnitID:       cmd.BloodUnitID,
		RequestID:         cmd.RequestID,
		TransfusionDate:   date,
		Hospital:          cmd.Hospital,
		Physician:         cmd.Physician,
		VolumeML:          cmd.VolumeML,
		Outcome:           cmd.Outcome,
		AdverseReactions:  cmd.AdverseReactions,
		Notes:             cmd.Notes,
		CreatedBy:         actor,
	}

	var unitNumber string
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		r, err := s.recipients.GetRecipient(ctx, cmd.RecipientID)
		if err != nil {
			return err
		}
		u, err := s.units.Get(ctx, cmd.BloodUnitID)
		if err != nil {
			return err
		}
		unitNumber = u.UnitNumber
		if u.Status != bloodunit.StatusAvailable {
			return apperr.New(apperr.KindUnitUnavailable, "blood unit %s is %s", u.UnitNumber, u.Status)
		}
		if existing, err := s.records.GetByUnit(ctx, u.ID); err == nil {
			return apperr.New(apperr.KindUnitUnavailable,
				"blood unit %s is already used by transfusion %s", u.UnitNumber, existing.TransfusionNumber)
		} else if !errors.Is(err, apperr.ErrNotFound) {
			return err
		}
		if s.enforceCompat && !IsCompatible(u.BloodType, r.BloodType) {
			return apperr.New(apperr.KindIncompatible,
				"blood unit %s (%s) is not compatible with recipient blood type %s", u.UnitNumber, u.BloodType, r.BloodType)
		}
		if cmd.RequestID != nil {
			if err := s.checkRequest(ctx, *cmd.RequestID, r.ID); err != nil {
				return err
			}
		}

		if err := s.records.Create(ctx, rec); err != nil {
			return err
		}
		if _, err := s.units.MarkTransfused(ctx, bloodunit.MarkTransfusedCommand{
			UnitID: u.ID,
			Ref: bloodunit.TransfusionRef{
				TransfusionID: rec.ID,
				RecipientID:   r.ID,
				Date:          date,
				Hospital:      cmd.Hospital,
				Physician:     cmd.Physician,
			},
			Actor: actor,
			Note:  fmt.Sprintf("Transfused to recipient %s (%s)", r.RecipientNumber, rec.TransfusionNumber),
		}); err != nil {
			return err
		}
		_, err = s.recipients.RecordTransfusion(ctx, r.ID, date)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransfusion("create")
	s.logger.Info().
		Str("transfusion_number", rec.TransfusionNumber).
		Str("recipient_id", rec.RecipientID.String()).
		Str("unit_number", unitNumber).
		Str("outcome", rec.Outcome).
		Str("actor", actor).
		Msg("transfusion recorded")
	return rec, nil
}

func (s *Service) checkRequest(ctx context.Context, requestID, recipientID uuid.UUID) error {
	br, err := s.recipients.GetRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if br.RecipientID != recipientID {
		return apperr.Validation("blood request %s belongs to another recipient", br.RequestNumber)
	}
	if !br.Open() {
		return apperr.Validation("blood request %s is %s", br.RequestNumber, br.Status)
	}
	return nil
}

type DeleteTransfusionCommand struct {
	RecipientID   uuid.UUID
	TransfusionID uuid.UUID
	Actor         string
}

// DeleteTransfusion retracts a transfusion record. The unit returns to
// Available and the recipient's last transfusion date is recomputed from
// the records that remain.
func (s *Service) DeleteTransfusion(ctx context.Context, cmd DeleteTransfusionCommand) error {
	var rec *Record
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		rec, err = s.records.GetByID(ctx, cmd.TransfusionID)
		if err != nil {
			return err
		}
		if rec.RecipientID != cmd.RecipientID {
			return apperr.NotFound("transfusion record")
		}
		if _, err := s.units.RevertTransfusion(ctx, bloodunit.RevertTransfusionCommand{
			UnitID:        rec.BloodUnitID,
			TransfusionID: rec.ID,
			Actor:         cmd.Actor,
			Note: fmt.Sprintf("Transfusion %s reversed: status reverted from %s to %s",
				rec.TransfusionNumber, bloodunit.StatusTransfused, bloodunit.StatusAvailable),
		}); err != nil {
			return err
		}
		if err := s.records.Delete(ctx, rec.ID); err != nil {
			return err
		}
		remaining, err := s.records.ListByRecipient(ctx, rec.RecipientID)
		if err != nil {
			return err
		}
		dates := make([]time.Time, 0, len(remaining))
		for _, r := range remaining {
			dates = append(dates, r.TransfusionDate)
		}
		_, err = s.recipients.RetractTransfusion(ctx, rec.RecipientID, dateutil.MaxTime(dates...))
		return err
	})
	if err != nil {
		return err
	}

	s.metrics.IncTransfusion("delete")
	s.logger.Info().
		Str("transfusion_number", rec.TransfusionNumber).
		Str("recipient_id", rec.RecipientID.String()).
		Str("blood_unit_id", rec.BloodUnitID.String()).
		Str("actor", cmd.Actor).
		Msg("transfusion retracted")
	return nil
}

func (s *Service) GetTransfusion(ctx context.Context, id uuid.UUID) (*Record, error) {
	return s.records.GetByID(ctx, id)
}

func (s *Service) ListTransfusions(ctx context.Context, recipientID uuid.UUID) ([]*Record, error) {
	if _, err := s.recipients.GetRecipient(ctx, recipientID); err != nil {
		return nil, err
	}
	return s.records.ListByRecipient(ctx, recipientID)
}
