package donor

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/bloodbank/bloodbank/internal/platform/apperr"
	"github.com/bloodbank/bloodbank/internal/platform/db"
	"github.com/bloodbank/bloodbank/internal/platform/metrics"
	"github.com/bloodbank/bloodbank/pkg/dateutil"
)

type Service struct {
	donors    DonorRepository
	deferrals DeferralRepository
	health    HealthRepository
	tx        db.Transactor
	rules     Rules
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(donors DonorRepository, deferrals DeferralRepository, health HealthRepository, tx db.Transactor, rules Rules) *Service {
	return &Service{
		donors:    donors,
		deferrals: deferrals,
		health:    health,
		tx:        tx,
		rules:     rules,
		logger:    zerolog.Nop(),
		now:       time.Now,
	}
}

func (s *Service) SetMetrics(m *metrics.Metrics) { s.metrics = m }
func (s *Service) SetLogger(l zerolog.Logger)    { s.logger = l.With().Str("component", "donor").Logger() }

// -- Donors --

func (s *Service) CreateDonor(ctx context.Context, d *Donor) error {
	if strings.TrimSpace(d.DonorNumber) == "" {
		return apperr.Validation("donor_number is required")
	}
	if strings.TrimSpace(d.FirstName) == "" {
		return apperr.Validation("first_name is required")
	}
	if strings.TrimSpace(d.LastName) == "" {
		return apperr.Validation("last_name is required")
	}
	if d.DateOfBirth.IsZero() {
		return apperr.Validation("date_of_birth is required")
	}
	if d.DateOfBirth.After(s.now()) {
		return apperr.Validation("date_of_birth cannot be in the future")
	}
	if !ValidBloodType(d.BloodType) {
		return apperr.Validation("invalid blood_type: %q", d.BloodType)
	}
	switch d.Status {
	case "":
		d.Status = StatusActive
	case StatusActive, StatusInactive:
	default:
		return apperr.Validation("new donors must be %s or %s", StatusActive, StatusInactive)
	}
	d.DonationCount = 0
	d.LastDonationDate = nil
	d.RetiredAt = nil
	return s.donors.Create(ctx, d)
}

func (s *Service) GetDonor(ctx context.Context, id uuid.UUID) (*Donor, error) {
	return s.donors.GetByID(ctx, id)
}

func (s *Service) GetDonorByNumber(ctx context.Context, number string) (*Donor, error) {
	return s.donors.GetByNumber(ctx, number)
}

func (s *Service) ListDonors(ctx context.Context, f ListFilter, limit, offset int) ([]*Donor, int, error) {
	if f.BloodType != "" && !ValidBloodType(f.BloodType) {
		return nil, 0, apperr.Validation("invalid blood_type: %q", f.BloodType)
	}
	return s.donors.List(ctx, f, limit, offset)
}

// UpdateContactCommand changes a donor's demographic and contact fields.
// Status and donation counters are not editable here.
type UpdateContactCommand struct {
	DonorID   uuid.UUID
	FirstName *string
	LastName  *string
	Gender    *string
	Phone     *string
	Email     *string
	Address   *string
}

func (s *Service) UpdateContact(ctx context.Context, cmd UpdateContactCommand) (*Donor, error) {
	if cmd.FirstName != nil && strings.TrimSpace(*cmd.FirstName) == "" {
		return nil, apperr.Validation("first_name cannot be empty")
	}
	if cmd.LastName != nil && strings.TrimSpace(*cmd.LastName) == "" {
		return nil, apperr.Validation("last_name cannot be empty")
	}
	var d *Donor
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		d, err = s.donors.GetByID(ctx, cmd.DonorID)
		if err != nil {
			return err
		}
		if cmd.FirstName != nil {
			d.FirstName = *cmd.FirstName
		}
		if cmd.LastName != nil {
			d.LastName = *cmd.LastName
		}
		if cmd.Gender != nil {
			d.Gender = cmd.Gender
		}
		if cmd.Phone != nil {
			d.Phone = cmd.Phone
		}
		if cmd.Email != nil {
			d.Email = cmd.Email
		}
		if cmd.Address != nil {
			d.Address = cmd.Address
		}
		return s.donors.Update(ctx, d)
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// RetireDonor soft-retires a donor. Retired donors keep their history but
// cannot give new donations.
func (s *Service) RetireDonor(ctx context.Context, id uuid.UUID) (*Donor, error) {
	var d *Donor
	changed := false
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		d, err = s.donors.GetByID(ctx, id)
		if err != nil || d.Retired() {
			return err
		}
		now := s.now()
		d.RetiredAt = &now
		changed = true
		return s.donors.Update(ctx, d)
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return d, nil
	}
	s.logger.Info().Str("donor_number", d.DonorNumber).Msg("donor retired")
	return d, nil
}

// RecordDonationCommand is issued by the blood-unit lifecycle when a unit is
// collected. It must run inside the caller's transaction.
type RecordDonationCommand struct {
	DonorID      uuid.UUID
	BloodUnitID  uuid.UUID
	UnitNumber   string
	DonationDate time.Time
	DonationType DonationType
	VolumeML     int
}

// RecordDonation increments the donor's donation count, advances the last
// donation date and appends a donation history row.
func (s *Service) RecordDonation(ctx context.Context, cmd RecordDonationCommand) (*Donor, error) {
	if cmd.DonationDate.IsZero() {
		return nil, apperr.Validation("donation_date is required")
	}
	if cmd.DonationType == "" {
		cmd.DonationType = DonationWholeBlood
	}
	if !validDonationTypes[cmd.DonationType] {
		return nil, apperr.Validation("invalid donation_type: %q", cmd.DonationType)
	}

	var d *Donor
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		d, err = s.donors.GetByID(ctx, cmd.DonorID)
		if err != nil {
			return err
		}
		if d.Retired() {
			return apperr.Validation("donor %s is retired", d.DonorNumber)
		}
		d.DonationCount++
		d.LastDonationDate = dateutil.MaxTime(append(timesOf(d.LastDonationDate), cmd.DonationDate)...)
		if err := s.donors.Update(ctx, d); err != nil {
			return err
		}
		return s.donors.AddDonation(ctx, &DonationHistory{
			DonorID:      d.ID,
			BloodUnitID:  cmd.BloodUnitID,
			UnitNumber:   cmd.UnitNumber,
			DonationDate: cmd.DonationDate,
			DonationType: cmd.DonationType,
			VolumeML:     cmd.VolumeML,
		})
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) ListDonations(ctx context.Context, donorID uuid.UUID) ([]*DonationHistory, error) {
	if _, err := s.donors.GetByID(ctx, donorID); err != nil {
		return nil, err
	}
	return s.donors.ListDonations(ctx, donorID)
}

// -- Eligibility --

// EvaluateEligibilityQuery asks whether a donor may donate. AsOf defaults to
// now and DonationType to whole blood.
type EvaluateEligibilityQuery struct {
	DonorID      uuid.UUID
	AsOf         *time.Time
	DonationType DonationType
}

// EvaluateEligibility loads the donor, their deferrals and health history
// concurrently and applies the rules.
func (s *Service) EvaluateEligibility(ctx context.Context, q EvaluateEligibilityQuery) (*EligibilityResult, error) {
	if q.DonorID == uuid.Nil {
		return nil, apperr.Validation("donorId is required")
	}
	dt := q.DonationType
	if dt == "" {
		dt = DonationWholeBlood
	}
	if !validDonationTypes[dt] {
		return nil, apperr.Validation("invalid donation_type: %q", dt)
	}
	asOf := s.now()
	if q.AsOf != nil {
		asOf = *q.AsOf
	}

	var (
		d           *Donor
		deferrals   []*Deferral
		assessments []*HealthAssessment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		d, err = s.donors.GetByID(gctx, q.DonorID)
		return err
	})
	g.Go(func() error {
		var err error
		deferrals, err = s.deferrals.ListByDonor(gctx, q.DonorID)
		return err
	})
	g.Go(func() error {
		var err error
		assessments, err = s.health.ListByDonor(gctx, q.DonorID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := s.rules.EvaluateFor(dt, d, SelectActiveDeferral(deferrals), LatestAssessment(assessments), asOf)
	s.metrics.ObserveEligibility(res.IsEligible, res.Rule)
	return &res, nil
}

// -- Deferrals --

type CreateDeferralCommand struct {
	DonorID      uuid.UUID
	DeferralType string
	Reason       string
	ReasonDetail *string
	StartDate    *time.Time
	EndDate      *time.Time
	Indefinite   bool
	Actor        string
}

func (c *CreateDeferralCommand) validate() error {
	if c.DonorID == uuid.Nil {
		return apperr.Validation("donor_id is required")
	}
	if c.DeferralType != DeferralTemporary && c.DeferralType != DeferralPermanent {
		return apperr.Validation("deferral_type must be %s or %s", DeferralTemporary, DeferralPermanent)
	}
	if !validDeferralReasons[c.Reason] {
		return apperr.Validation("invalid deferral reason: %q", c.Reason)
	}
	if c.DeferralType == DeferralPermanent && c.EndDate != nil {
		return apperr.Validation("permanent deferrals cannot have an end_date")
	}
	if c.Indefinite && c.EndDate != nil {
		return apperr.Validation("indefinite deferrals cannot have an end_date")
	}
	if c.StartDate != nil && c.EndDate != nil && c.EndDate.Before(*c.StartDate) {
		return apperr.Validation("end_date must not be before start_date")
	}
	return nil
}

// CreateDeferral records a new Active deferral and marks the donor Deferred
// in the same transaction.
func (s *Service) CreateDeferral(ctx context.Context, cmd CreateDeferralCommand) (*Deferral, error) {
	if err := cmd.validate(); err != nil {
		return nil, err
	}
	start := s.now()
	if cmd.StartDate != nil {
		start = *cmd.StartDate
	}
	def := &Deferral{
		DonorID:      cmd.DonorID,
		DeferralType: cmd.DeferralType,
		Reason:       cmd.Reason,
		ReasonDetail: cmd.ReasonDetail,
		StartDate:    start,
		EndDate:      cmd.EndDate,
		Indefinite:   cmd.Indefinite || cmd.DeferralType == DeferralPermanent || cmd.EndDate == nil,
		Status:       DeferralActive,
		CreatedBy:    cmd.Actor,
	}

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		d, err := s.donors.GetByID(ctx, cmd.DonorID)
		if err != nil {
			return err
		}
		if err := s.deferrals.Create(ctx, def); err != nil {
			return err
		}
		if d.Status != StatusDeferred {
			d.Status = StatusDeferred
			return s.donors.Update(ctx, d)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncDeferralChange(DeferralActive)
	s.logger.Info().
		Str("donor_id", def.DonorID.String()).
		Str("deferral_id", def.ID.String()).
		Str("type", def.DeferralType).
		Str("reason", def.Reason).
		Str("actor", cmd.Actor).
		Msg("donor deferred")
	return def, nil
}

func (s *Service) GetDeferral(ctx context.Context, id uuid.UUID) (*Deferral, error) {
	return s.deferrals.GetByID(ctx, id)
}

func (s *Service) ListDeferrals(ctx context.Context, donorID uuid.UUID) ([]*Deferral, error) {
	if _, err := s.donors.GetByID(ctx, donorID); err != nil {
		return nil, err
	}
	return s.deferrals.ListByDonor(ctx, donorID)
}

// allowedDeferralTransitions defines which review outcomes are reachable
// from each deferral status.
var allowedDeferralTransitions = map[string]map[string]bool{
	DeferralActive: {
		DeferralUnderReview: true,
		DeferralReinstated:  true,
		DeferralExpired:     true,
	},
	DeferralUnderReview: {
		DeferralActive:     true,
		DeferralReinstated: true,
		DeferralExpired:    true,
	},
	DeferralReinstated: {},
	DeferralExpired:    {},
}

type ReviewDeferralCommand struct {
	DeferralID uuid.UUID
	Status     string
	Actor      string
	Note       *string
}

// ReviewDeferral moves a deferral to a new status. When no deferral of the
// donor remains open (Active or Under Review) the donor returns to Active;
// re-activating a deferral marks the donor Deferred again.
func (s *Service) ReviewDeferral(ctx context.Context, cmd ReviewDeferralCommand) (*Deferral, error) {
	if cmd.DeferralID == uuid.Nil {
		return nil, apperr.Validation("deferral id is required")
	}
	if _, known := allowedDeferralTransitions[cmd.Status]; !known {
		return nil, apperr.Validation("invalid deferral status: %q", cmd.Status)
	}
	if strings.TrimSpace(cmd.Actor) == "" {
		return nil, apperr.Validation("reviewed_by is required")
	}

	var def *Deferral
	var prev string
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		def, err = s.deferrals.GetByID(ctx, cmd.DeferralID)
		if err != nil {
			return err
		}
		prev = def.Status
		if !allowedDeferralTransitions[def.Status][cmd.Status] {
			return apperr.New(apperr.KindInvalidTransition,
				"invalid deferral status transition from %s to %s", def.Status, cmd.Status)
		}

		now := s.now()
		def.Status = cmd.Status
		def.ReviewedBy = &cmd.Actor
		def.ReviewNote = cmd.Note
		def.ReviewedAt = &now
		if err := s.deferrals.Update(ctx, def); err != nil {
			return err
		}
		return s.syncDonorStatus(ctx, def.DonorID)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncDeferralChange(def.Status)
	s.logger.Info().
		Str("deferral_id", def.ID.String()).
		Str("donor_id", def.DonorID.String()).
		Str("from", prev).
		Str("to", def.Status).
		Str("actor", cmd.Actor).
		Msg("deferral reviewed")
	return def, nil
}

func (s *Service) syncDonorStatus(ctx context.Context, donorID uuid.UUID) error {
	d, err := s.donors.GetByID(ctx, donorID)
	if err != nil {
		return err
	}
	all, err := s.deferrals.ListByDonor(ctx, donorID)
	if err != nil {
		return err
	}
	open, active := false, false
	for _, def := range all {
		switch def.Status {
		case DeferralActive:
			open, active = true, true
		case DeferralUnderReview:
			open = true
		}
	}

	switch {
	case active && d.Status != StatusDeferred:
		d.Status = StatusDeferred
	case !open && d.Status == StatusDeferred:
		d.Status = StatusActive
	default:
		return nil
	}
	return s.donors.Update(ctx, d)
}

// -- Health assessments --

type RecordHealthCommand struct {
	DonorID             uuid.UUID
	AssessedAt          *time.Time
	HemoglobinGDL       *float64
	SystolicBP          *int
	DiastolicBP         *int
	PulseBPM            *int
	TemperatureC        *float64
	WeightKG            *float64
	IsEligible          bool
	IneligibilityReason *string
	NextEligibleDate    *time.Time
	PermanentlyDeferred bool
	Actor               string
}

// RecordHealthAssessment appends a screening result. The newest assessment
// by AssessedAt is the one eligibility evaluation uses.
func (s *Service) RecordHealthAssessment(ctx context.Context, cmd RecordHealthCommand) (*HealthAssessment, error) {
	if cmd.DonorID == uuid.Nil {
		return nil, apperr.Validation("donor_id is required")
	}
	if strings.TrimSpace(cmd.Actor) == "" {
		return nil, apperr.Validation("assessed_by is required")
	}
	if cmd.IsEligible && (cmd.PermanentlyDeferred || cmd.IneligibilityReason != nil) {
		return nil, apperr.Validation("an eligible assessment cannot carry an ineligibility verdict")
	}
	for name, v := range map[string]*float64{"hemoglobin_g_dl": cmd.HemoglobinGDL, "temperature_c": cmd.TemperatureC, "weight_kg": cmd.WeightKG} {
		if v != nil && *v <= 0 {
			return nil, apperr.Validation("%s must be greater than 0", name)
		}
	}
	if _, err := s.donors.GetByID(ctx, cmd.DonorID); err != nil {
		return nil, err
	}

	assessedAt := s.now()
	if cmd.AssessedAt != nil {
		assessedAt = *cmd.AssessedAt
	}
	h := &HealthAssessment{
		DonorID:             cmd.DonorID,
		AssessedAt:          assessedAt,
		HemoglobinGDL:       cmd.HemoglobinGDL,
		SystolicBP:          cmd.SystolicBP,
		DiastolicBP:         cmd.DiastolicBP,
		PulseBPM:            cmd.PulseBPM,
		TemperatureC:        cmd.TemperatureC,
		WeightKG:            cmd.WeightKG,
		IsEligible:          cmd.IsEligible,
		IneligibilityReason: cmd.IneligibilityReason,
		NextEligibleDate:    cmd.NextEligibleDate,
		PermanentlyDeferred: cmd.PermanentlyDeferred,
		AssessedBy:          cmd.Actor,
	}
	if err := s.health.Create(ctx, h); err != nil {
		return nil, err
	}
	return h, nil
}

func (s *Service) ListHealthAssessments(ctx context.Context, donorID uuid.UUID) ([]*HealthAssessment, error) {
	if _, err := s.donors.GetByID(ctx, donorID); err != nil {
		return nil, err
	}
	return s.health.ListByDonor(ctx, donorID)
}

func timesOf(t *time.Time) []time.Time {
	if t == nil {
		return nil
	}
	return []time.Time{*t}
}
