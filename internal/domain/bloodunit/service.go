package bloodunit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bloodbank/bloodbank/internal/domain/donor"
	"github.com/bloodbank/bloodbank/internal/platform/apperr"
	"github.com/bloodbank/bloodbank/internal/platform/db"
	"github.com/bloodbank/bloodbank/internal/platform/metrics"
	"github.com/bloodbank/bloodbank/pkg/dateutil"
)

// DonationRecorder applies the donor side of a collection. It is satisfied
// by *donor.Service and must join the caller's transaction.
type DonationRecorder interface {
	RecordDonation(ctx context.Context, cmd donor.RecordDonationCommand) (*donor.Donor, error)
}

type Service struct {
	units         Repository
	donors        DonationRecorder
	tx            db.Transactor
	shelfLifeDays int
	metrics       *metrics.Metrics
	logger        zerolog.Logger
	now           func() time.Time
}

func NewService(units Repository, donors DonationRecorder, tx db.Transactor, shelfLifeDays int) *Service {
	if shelfLifeDays <= 0 {
		shelfLifeDays = DefaultShelfLifeDays
	}
	return &Service{
		units:         units,
		donors:        donors,
		tx:            tx,
		shelfLifeDays: shelfLifeDays,
		logger:        zerolog.Nop(),
		now:           time.Now,
	}
}

func (s *Service) SetMetrics(m *metrics.Metrics) { s.metrics = m }
func (s *Service) SetLogger(l zerolog.Logger)    { s.logger = l.With().Str("component", "bloodunit").Logger() }

// CreateBloodUnitCommand records a collected unit. ExpirationDate defaults to
// CollectionDate plus the configured shelf life and Status to Quarantined.
type CreateBloodUnitCommand struct {
	UnitNumber      string
	DonorID         uuid.UUID
	BloodType       string
	Component       string
	VolumeML        int
	CollectionDate  time.Time
	ExpirationDate  *time.Time
	Status          string
	StorageLocation *string
	DonationType    donor.DonationType
	Actor           string
}

func (c *CreateBloodUnitCommand) validate(now time.Time) error {
	if strings.TrimSpace(c.UnitNumber) == "" {
		return apperr.Validation("unit_number is required")
	}
	if c.DonorID == uuid.Nil {
		return apperr.Validation("donor_id is required")
	}
	if !donor.ValidBloodType(c.BloodType) {
		return apperr.Validation("invalid blood_type: %q", c.BloodType)
	}
	if !validComponents[c.Component] {
		return apperr.Validation("invalid component: %q", c.Component)
	}
	if c.VolumeML <= 0 {
		return apperr.Validation("volume_ml must be greater than 0")
	}
	if c.CollectionDate.IsZero() {
		return apperr.Validation("collection_date is required")
	}
	if c.CollectionDate.After(now) {
		return apperr.Validation("collection_date cannot be in the future")
	}
	if c.ExpirationDate != nil && !c.ExpirationDate.After(c.CollectionDate) {
		return apperr.Validation("expiration_date must be after collection_date")
	}
	if c.Status != StatusQuarantined && c.Status != StatusAvailable {
		return apperr.Validation("new units must be %s or %s", StatusQuarantined, StatusAvailable)
	}
	return nil
}

// Create inserts the unit with its first history entry and records the
// donation against the donor in one transaction.
func (s *Service) Create(ctx context.Context, cmd CreateBloodUnitCommand) (*BloodUnit, error) {
	if cmd.Component == "" {
		cmd.Component = ComponentWholeBlood
	}
	if cmd.Status == "" {
		cmd.Status = StatusQuarantined
	}
	if err := cmd.validate(s.now()); err != nil {
		return nil, err
	}
	actor := actorOrSystem(cmd.Actor)

	u := &BloodUnit{
		UnitNumber:      cmd.UnitNumber,
		DonorID:         cmd.DonorID,
		BloodType:       cmd.BloodType,
		Component:       cmd.Component,
		VolumeML:        cmd.VolumeML,
		CollectionDate:  cmd.CollectionDate,
		ExpirationDate:  ExpirationFor(cmd.CollectionDate, s.shelfLifeDays),
		Status:          cmd.Status,
		StorageLocation: cmd.StorageLocation,
	}
	if cmd.ExpirationDate != nil {
		u.ExpirationDate = *cmd.ExpirationDate
	}

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.units.Create(ctx, u); err != nil {
			return err
		}
		if err := s.units.AddStatusChange(ctx, &StatusChange{
			UnitID:    u.ID,
			ToStatus:  u.Status,
			ChangedAt: s.now(),
			ChangedBy: actor,
			Note:      "Unit collected",
		}); err != nil {
			return err
		}
		d, err := s.donors.RecordDonation(ctx, donor.RecordDonationCommand{
			DonorID:      cmd.DonorID,
			BloodUnitID:  u.ID,
			UnitNumber:   u.UnitNumber,
			DonationDate: u.CollectionDate,
			DonationType: cmd.DonationType,
			VolumeML:     u.VolumeML,
		})
		if err != nil {
			return err
		}
		if d.BloodType != u.BloodType {
			return apperr.Validation("unit blood type %s does not match donor blood type %s", u.BloodType, d.BloodType)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncUnitsCollected(u.BloodType)
	s.logger.Info().
		Str("unit_number", u.UnitNumber).
		Str("donor_id", u.DonorID.String()).
		Str("blood_type", u.BloodType).
		Str("status", u.Status).
		Time("expires", u.ExpirationDate).
		Msg("blood unit recorded")
	return u, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*BloodUnit, error) {
	return s.units.GetByID(ctx, id)
}

func (s *Service) GetByNumber(ctx context.Context, number string) (*BloodUnit, error) {
	return s.units.GetByNumber(ctx, number)
}

func (s *Service) List(ctx context.Context, f ListFilter, limit, offset int) ([]*BloodUnit, int, error) {
	if f.Status != "" && !ValidStatus(f.Status) {
		return nil, 0, apperr.Validation("invalid status: %q", f.Status)
	}
	if f.BloodType != "" && !donor.ValidBloodType(f.BloodType) {
		return nil, 0, apperr.Validation("invalid blood_type: %q", f.BloodType)
	}
	return s.units.List(ctx, f, limit, offset)
}

func (s *Service) History(ctx context.Context, id uuid.UUID) ([]*StatusChange, error) {
	if _, err := s.units.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.units.ListStatusChanges(ctx, id)
}

// TransitionCommand moves a unit along the status graph. Note defaults to
// "Status changed from X to Y".
type TransitionCommand struct {
	UnitID uuid.UUID
	Status string
	Actor  string
	Note   *string
}

// Transition applies an administrative status change. Units become
// Transfused only by recording a transfusion, which also links the record.
func (s *Service) Transition(ctx context.Context, cmd TransitionCommand) (*BloodUnit, error) {
	if cmd.UnitID == uuid.Nil {
		return nil, apperr.Validation("unit id is required")
	}
	var u *BloodUnit
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		u, err = s.units.GetByID(ctx, cmd.UnitID)
		if err != nil {
			return err
		}
		if err := CheckTransition(u.Status, cmd.Status); err != nil {
			return err
		}
		if cmd.Status == StatusTransfused {
			return apperr.New(apperr.KindInvalidTransition,
				"blood unit %s becomes %s only by recording a transfusion", u.UnitNumber, StatusTransfused)
		}
		note := defaultNote(u.Status, cmd.Status)
		if cmd.Note != nil && strings.TrimSpace(*cmd.Note) != "" {
			note = *cmd.Note
		}
		return s.apply(ctx, u, cmd.Status, actorOrSystem(cmd.Actor), note)
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

// apply persists u in status to and appends the history entry.
func (s *Service) apply(ctx context.Context, u *BloodUnit, to, actor, note string) error {
	from := u.Status
	u.Status = to
	if err := s.units.Update(ctx, u); err != nil {
		return err
	}
	if err := s.units.AddStatusChange(ctx, &StatusChange{
		UnitID:     u.ID,
		FromStatus: &from,
		ToStatus:   to,
		ChangedAt:  s.now(),
		ChangedBy:  actor,
		Note:       note,
	}); err != nil {
		return err
	}

	s.metrics.ObserveUnitTransition(from, to)
	s.logger.Info().
		Str("unit_number", u.UnitNumber).
		Str("from", from).
		Str("to", to).
		Str("actor", actor).
		Msg("blood unit status changed")
	return nil
}

// MarkTransfusedCommand is issued by the transfusion workflow inside its
// transaction.
type MarkTransfusedCommand struct {
	UnitID uuid.UUID
	Ref    TransfusionRef
	Actor  string
	Note   string
}

// MarkTransfused moves an Available unit to Transfused and attaches the
// transfusion back-reference.
func (s *Service) MarkTransfused(ctx context.Context, cmd MarkTransfusedCommand) (*BloodUnit, error) {
	var u *BloodUnit
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		u, err = s.units.GetByID(ctx, cmd.UnitID)
		if err != nil {
			return err
		}
		if u.Status != StatusAvailable {
			return apperr.New(apperr.KindUnitUnavailable, "blood unit %s is %s", u.UnitNumber, u.Status)
		}
		if u.Transfusion != nil {
			return apperr.New(apperr.KindUnitUnavailable,
				"blood unit %s is already linked to a transfusion", u.UnitNumber)
		}
		if err := CheckTransition(u.Status, StatusTransfused); err != nil {
			return err
		}
		ref := cmd.Ref
		u.Transfusion = &ref
		note := cmd.Note
		if note == "" {
			note = defaultNote(u.Status, StatusTransfused)
		}
		return s.apply(ctx, u, StatusTransfused, actorOrSystem(cmd.Actor), note)
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

type RevertTransfusionCommand struct {
	UnitID        uuid.UUID
	TransfusionID uuid.UUID
	Actor         string
	Note          string
}

// RevertTransfusion returns a transfused unit to Available when its
// transfusion record is retracted. It is the only path out of Transfused.
func (s *Service) RevertTransfusion(ctx context.Context, cmd RevertTransfusionCommand) (*BloodUnit, error) {
	var u *BloodUnit
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		u, err = s.units.GetByID(ctx, cmd.UnitID)
		if err != nil {
			return err
		}
		if u.Status != StatusTransfused {
			return apperr.New(apperr.KindInvalidTransition,
				"blood unit %s is %s, not %s", u.UnitNumber, u.Status, StatusTransfused)
		}
		if u.Transfusion == nil || u.Transfusion.TransfusionID != cmd.TransfusionID {
			return apperr.New(apperr.KindInvalidTransition,
				"blood unit %s is not linked to transfusion %s", u.UnitNumber, cmd.TransfusionID)
		}
		u.Transfusion = nil
		note := cmd.Note
		if note == "" {
			note = "Transfusion reversed: " + defaultNote(StatusTransfused, StatusAvailable)
		}
		return s.apply(ctx, u, StatusAvailable, actorOrSystem(cmd.Actor), note)
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Delete soft-deletes a unit. Transfused units are retained permanently.
func (s *Service) Delete(ctx context.Context, id uuid.UUID, actor string) error {
	var u *BloodUnit
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		u, err = s.units.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if u.Status == StatusTransfused {
			return apperr.New(apperr.KindProtectedRecord, "transfused blood unit %s cannot be deleted", u.UnitNumber)
		}
		return s.units.SoftDelete(ctx, id, s.now())
	})
	if err != nil {
		return err
	}
	s.logger.Info().
		Str("unit_number", u.UnitNumber).
		Str("status", u.Status).
		Str("actor", actorOrSystem(actor)).
		Msg("blood unit deleted")
	return nil
}

// Expiry returns the expiry view of a unit; asOf defaults to now.
func (s *Service) Expiry(ctx context.Context, id uuid.UUID, asOf *time.Time) (ExpiryInfo, error) {
	u, err := s.units.GetByID(ctx, id)
	if err != nil {
		return ExpiryInfo{}, err
	}
	return ExpiryStatus(u, s.asOf(asOf)), nil
}

type UnitExpiry struct {
	Unit   *BloodUnit `json:"unit"`
	Expiry ExpiryInfo `json:"expiry"`
}

// ListExpiring returns Available units expiring within withinDays of asOf,
// soonest first. Units already past expiry are included.
func (s *Service) ListExpiring(ctx context.Context, asOf *time.Time, withinDays int) ([]UnitExpiry, error) {
	if withinDays < 0 {
		return nil, apperr.Validation("days must not be negative")
	}
	at := s.asOf(asOf)
	by := dateutil.AddDays(at, withinDays)
	units, err := s.units.ListByStatus(ctx, StatusAvailable, &by)
	if err != nil {
		return nil, err
	}
	out := make([]UnitExpiry, 0, len(units))
	for _, u := range units {
		out = append(out, UnitExpiry{Unit: u, Expiry: ExpiryStatus(u, at)})
	}
	return out, nil
}

type InventoryLine struct {
	BloodType string              `json:"blood_type"`
	Available int                 `json:"available"`
	VolumeML  int                 `json:"volume_ml"`
	ByLevel   map[ExpiryLevel]int `json:"by_level"`
}

type Inventory struct {
	AsOf  time.Time       `json:"as_of"`
	Total int             `json:"total"`
	Lines []InventoryLine `json:"lines"`
}

// InventorySummary counts Available units per blood type and expiry level.
// Every blood type appears, in the canonical order, even when empty.
func (s *Service) InventorySummary(ctx context.Context, asOf *time.Time) (*Inventory, error) {
	at := s.asOf(asOf)
	units, err := s.units.ListByStatus(ctx, StatusAvailable, nil)
	if err != nil {
		return nil, err
	}
	inv := &Inventory{AsOf: at, Lines: make([]InventoryLine, len(donor.BloodTypes))}
	index := make(map[string]int, len(donor.BloodTypes))
	for i, bt := range donor.BloodTypes {
		inv.Lines[i] = InventoryLine{BloodType: bt, ByLevel: make(map[ExpiryLevel]int, len(ExpiryLevels))}
		index[bt] = i
	}
	for _, u := range units {
		i, ok := index[u.BloodType]
		if !ok {
			continue
		}
		line := &inv.Lines[i]
		line.Available++
		line.VolumeML += u.VolumeML
		line.ByLevel[ExpiryStatus(u, at).Level]++
		inv.Total++
	}
	return inv, nil
}

type SweepResult struct {
	AsOf     time.Time `json:"as_of"`
	Expired  []string  `json:"expired"`
	Examined int       `json:"examined"`
}

// SweepExpired moves every Available unit whose expiration date has passed
// to Expired through the state machine. Each unit commits on its own, so a
// failure leaves earlier units expired and is returned with the partial
// result.
func (s *Service) SweepExpired(ctx context.Context, asOf *time.Time, actor string) (*SweepResult, error) {
	at := s.asOf(asOf)
	res := &SweepResult{AsOf: at, Expired: []string{}}
	defer s.metrics.IncSweepRun()

	due, err := s.units.ListByStatus(ctx, StatusAvailable, &at)
	if err != nil {
		return res, err
	}
	res.Examined = len(due)
	for _, u := range due {
		note := fmt.Sprintf("Expiration date %s passed", u.ExpirationDate.Format("2006-01-02"))
		if _, err := s.Transition(ctx, TransitionCommand{
			UnitID: u.ID,
			Status: StatusExpired,
			Actor:  actor,
			Note:   &note,
		}); err != nil {
			return res, fmt.Errorf("expire unit %s: %w", u.UnitNumber, err)
		}
		res.Expired = append(res.Expired, u.UnitNumber)
	}

	s.logger.Info().Int("examined", res.Examined).Int("expired", len(res.Expired)).Msg("expiry sweep finished")
	return res, nil
}

func (s *Service) asOf(t *time.Time) time.Time {
	if t != nil {
		return *t
	}
	return s.now()
}

func actorOrSystem(actor string) string {
	if strings.TrimSpace(actor) == "" {
		return "system"
	}
	return actor
}
