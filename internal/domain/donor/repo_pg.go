package donor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bloodbank/bloodbank/internal/platform/apperr"
	"github.com/bloodbank/bloodbank/internal/platform/db"
)

type donorRepoPG struct{ pool *pgxpool.Pool }

func NewDonorRepoPG(pool *pgxpool.Pool) DonorRepository {
	return &donorRepoPG{pool: pool}
}

func (r *donorRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const donorCols = `id, donor_number, first_name, last_name, date_of_birth, gender, blood_type,
	phone, email, address, status, donation_count, last_donation_date, retired_at,
	created_at, updated_at`

func (r *donorRepoPG) scanRow(row pgx.Row) (*Donor, error) {
	var d Donor
	err := row.Scan(&d.ID, &d.DonorNumber, &d.FirstName, &d.LastName, &d.DateOfBirth, &d.Gender, &d.BloodType,
		&d.Phone, &d.Email, &d.Address, &d.Status, &d.DonationCount, &d.LastDonationDate, &d.RetiredAt,
		&d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("donor")
	}
	if err != nil {
		return nil, apperr.Storage(err, "scan donor")
	}
	return &d, nil
}

func (r *donorRepoPG) Create(ctx context.Context, d *Donor) error {
	d.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO donor (id, donor_number, first_name, last_name, date_of_birth, gender, blood_type,
			phone, email, address, status, donation_count, last_donation_date)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING created_at, updated_at`,
		d.ID, d.DonorNumber, d.FirstName, d.LastName, d.DateOfBirth, d.Gender, d.BloodType,
		d.Phone, d.Email, d.Address, d.Status, d.DonationCount, d.LastDonationDate,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	return apperr.Storage(err, "insert donor")
}

func (r *donorRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Donor, error) {
	return r.scanRow(r.conn(ctx).QueryRow(ctx, `SELECT `+donorCols+` FROM donor WHERE id = $1`+db.ForUpdate(ctx), id))
}

func (r *donorRepoPG) GetByNumber(ctx context.Context, number string) (*Donor, error) {
	return r.scanRow(r.conn(ctx).QueryRow(ctx, `SELECT `+donorCols+` FROM donor WHERE donor_number = $1`+db.ForUpdate(ctx), number))
}

func (r *donorRepoPG) Update(ctx context.Context, d *Donor) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE donor SET first_name=$2, last_name=$3, gender=$4, phone=$5, email=$6, address=$7,
			status=$8, donation_count=$9, last_donation_date=$10, retired_at=$11, updated_at=NOW()
		WHERE id = $1`,
		d.ID, d.FirstName, d.LastName, d.Gender, d.Phone, d.Email, d.Address,
		d.Status, d.DonationCount, d.LastDonationDate, d.RetiredAt)
	if err != nil {
		return apperr.Storage(err, "update donor")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("donor")
	}
	return nil
}

func (r *donorRepoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Donor, int, error) {
	var where []string
	var args []interface{}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.BloodType != "" {
		args = append(args, f.BloodType)
		where = append(where, fmt.Sprintf("blood_type = $%d", len(args)))
	}
	if !f.IncludeRetired {
		where = append(where, "retired_at IS NULL")
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM donor`+clause, args...).Scan(&total); err != nil {
		return nil, 0, apperr.Storage(err, "count donors")
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx, fmt.Sprintf(`SELECT `+donorCols+` FROM donor`+clause+
		` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, apperr.Storage(err, "list donors")
	}
	defer rows.Close()
	var items []*Donor
	for rows.Next() {
		d, err := r.scanRow(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, apperr.Storage(rows.Err(), "list donors")
}

func (r *donorRepoPG) AddDonation(ctx context.Context, h *DonationHistory) error {
	h.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO donation_history (id, donor_id, blood_unit_id, unit_number, donation_date, donation_type, volume_ml)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at`,
		h.ID, h.DonorID, h.BloodUnitID, h.UnitNumber, h.DonationDate, h.DonationType, h.VolumeML,
	).Scan(&h.CreatedAt)
	return apperr.Storage(err, "insert donation history")
}

func (r *donorRepoPG) ListDonations(ctx context.Context, donorID uuid.UUID) ([]*DonationHistory, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, donor_id, blood_unit_id, unit_number, donation_date, donation_type, volume_ml, created_at
		FROM donation_history WHERE donor_id = $1 ORDER BY donation_date DESC`, donorID)
	if err != nil {
		return nil, apperr.Storage(err, "list donations")
	}
	defer rows.Close()
	var items []*DonationHistory
	for rows.Next() {
		var h DonationHistory
		if err := rows.Scan(&h.ID, &h.DonorID, &h.BloodUnitID, &h.UnitNumber, &h.DonationDate,
			&h.DonationType, &h.VolumeML, &h.CreatedAt); err != nil {
			return nil, apperr.Storage(err, "scan donation")
		}
		items = append(items, &h)
	}
	return items, apperr.Storage(rows.Err(), "list donations")
}

// -- Deferrals --

type deferralRepoPG struct{ pool *pgxpool.Pool }

func NewDeferralRepoPG(pool *pgxpool.Pool) DeferralRepository {
	return &deferralRepoPG{pool: pool}
}

func (r *deferralRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const deferralCols = `id, donor_id, deferral_type, reason, reason_detail, start_date, end_date, indefinite,
	status, created_by, reviewed_by, review_note, reviewed_at, created_at, updated_at`

func (r *deferralRepoPG) scanRow(row pgx.Row) (*Deferral, error) {
	var d Deferral
	err := row.Scan(&d.ID, &d.DonorID, &d.DeferralType, &d.Reason, &d.ReasonDetail, &d.StartDate, &d.EndDate,
		&d.Indefinite, &d.Status, &d.CreatedBy, &d.ReviewedBy, &d.ReviewNote, &d.ReviewedAt,
		&d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("deferral")
	}
	if err != nil {
		return nil, apperr.Storage(err, "scan deferral")
	}
	return &d, nil
}

func (r *deferralRepoPG) Create(ctx context.Context, d *Deferral) error {
	d.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO donor_deferral (id, donor_id, deferral_type, reason, reason_detail, start_date, end_date,
			indefinite, status, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		d.ID, d.DonorID, d.DeferralType, d.Reason, d.ReasonDetail, d.StartDate, d.EndDate,
		d.Indefinite, d.Status, d.CreatedBy,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	return apperr.Storage(err, "insert deferral")
}

func (r *deferralRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Deferral, error) {
	return r.scanRow(r.conn(ctx).QueryRow(ctx, `SELECT `+deferralCols+` FROM donor_deferral WHERE id = $1`+db.ForUpdate(ctx), id))
}

func (r *deferralRepoPG) Update(ctx context.Context, d *Deferral) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE donor_deferral SET status=$2, reviewed_by=$3, review_note=$4, reviewed_at=$5, end_date=$6,
			updated_at=NOW()
		WHERE id = $1`,
		d.ID, d.Status, d.ReviewedBy, d.ReviewNote, d.ReviewedAt, d.EndDate)
	if err != nil {
		return apperr.Storage(err, "update deferral")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("deferral")
	}
	return nil
}

func (r *deferralRepoPG) ListByDonor(ctx context.Context, donorID uuid.UUID) ([]*Deferral, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+deferralCols+` FROM donor_deferral
		WHERE donor_id = $1 ORDER BY start_date DESC, created_at DESC`, donorID)
	if err != nil {
		return nil, apperr.Storage(err, "list deferrals")
	}
	defer rows.Close()
	var items []*Deferral
	for rows.Next() {
		d, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, apperr.Storage(rows.Err(), "list deferrals")
}

// -- Health assessments --

type healthRepoPG struct{ pool *pgxpool.Pool }

func NewHealthRepoPG(pool *pgxpool.Pool) HealthRepository {
	return &healthRepoPG{pool: pool}
}

func (r *healthRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func (r *healthRepoPG) Create(ctx context.Context, h *HealthAssessment) error {
	h.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO donor_health (id, donor_id, assessed_at, hemoglobin_g_dl, systolic_bp, diastolic_bp,
			pulse_bpm, temperature_c, weight_kg, is_eligible, ineligibility_reason, next_eligible_date,
			permanently_deferred, assessed_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING created_at`,
		h.ID, h.DonorID, h.AssessedAt, h.HemoglobinGDL, h.SystolicBP, h.DiastolicBP,
		h.PulseBPM, h.TemperatureC, h.WeightKG, h.IsEligible, h.IneligibilityReason, h.NextEligibleDate,
		h.PermanentlyDeferred, h.AssessedBy,
	).Scan(&h.CreatedAt)
	return apperr.Storage(err, "insert health assessment")
}

func (r *healthRepoPG) ListByDonor(ctx context.Context, donorID uuid.UUID) ([]*HealthAssessment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, donor_id, assessed_at, hemoglobin_g_dl, systolic_bp, diastolic_bp, pulse_bpm,
			temperature_c, weight_kg, is_eligible, ineligibility_reason, next_eligible_date,
			permanently_deferred, assessed_by, created_at
		FROM donor_health WHERE donor_id = $1 ORDER BY assessed_at DESC`, donorID)
	if err != nil {
		return nil, apperr.Storage(err, "list health assessments")
	}
	defer rows.Close()
	var items []*HealthAssessment
	for rows.Next() {
		var h HealthAssessment
		if err := rows.Scan(&h.ID, &h.DonorID, &h.AssessedAt, &h.HemoglobinGDL, &h.SystolicBP, &h.DiastolicBP,
			&h.PulseBPM, &h.TemperatureC, &h.WeightKG, &h.IsEligible, &h.IneligibilityReason,
			&h.NextEligibleDate, &h.PermanentlyDeferred, &h.AssessedBy, &h.CreatedAt); err != nil {
			return nil, apperr.Storage(err, "scan health assessment")
		}
		items = append(items, &h)
	}
	return items, apperr.Storage(rows.Err(), "list health assessments")
}
