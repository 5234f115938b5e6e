package bloodunit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bloodbank/bloodbank/internal/platform/apperr"
	"github.com/bloodbank/bloodbank/internal/platform/db"
)

type unitRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &unitRepoPG{pool: pool}
}

func (r *unitRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const unitCols = `id, unit_number, donor_id, blood_type, component, volume_ml, collection_date,
	expiration_date, status, storage_location, transfusion_id, recipient_id, transfusion_date,
	transfusion_hospital, transfusion_physician, deleted_at, created_at, updated_at`

func (r *unitRepoPG) scanRow(row pgx.Row) (*BloodUnit, error) {
	var (
		u             BloodUnit
		transfusionID *uuid.UUID
		recipientID   *uuid.UUID
		txDate        *time.Time
		hospital      *string
		physician     *string
	)
	err := row.Scan(&u.ID, &u.UnitNumber, &u.DonorID, &u.BloodType, &u.Component, &u.VolumeML, &u.CollectionDate,
		&u.ExpirationDate, &u.Status, &u.StorageLocation, &transfusionID, &recipientID, &txDate,
		&hospital, &physician, &u.DeletedAt, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("blood unit")
	}
	if err != nil {
		return nil, apperr.Storage(err, "scan blood unit")
	}
	if transfusionID != nil && recipientID != nil && txDate != nil {
		u.Transfusion = &TransfusionRef{
			TransfusionID: *transfusionID,
			RecipientID:   *recipientID,
			Date:          *txDate,
			Hospital:      hospital,
			Physician:     physician,
		}
	}
	return &u, nil
}

func (r *unitRepoPG) Create(ctx context.Context, u *BloodUnit) error {
	u.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO blood_unit (id, unit_number, donor_id, blood_type, component, volume_ml,
			collection_date, expiration_date, status, storage_location)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		u.ID, u.UnitNumber, u.DonorID, u.BloodType, u.Component, u.VolumeML,
		u.CollectionDate, u.ExpirationDate, u.Status, u.StorageLocation,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	return apperr.Storage(err, "insert blood unit")
}

func (r *unitRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*BloodUnit, error) {
	return r.scanRow(r.conn(ctx).QueryRow(ctx,
		`SELECT `+unitCols+` FROM blood_unit WHERE id = $1 AND deleted_at IS NULL`+db.ForUpdate(ctx), id))
}

func (r *unitRepoPG) GetByNumber(ctx context.Context, number string) (*BloodUnit, error) {
	return r.scanRow(r.conn(ctx).QueryRow(ctx,
		`SELECT `+unitCols+` FROM blood_unit WHERE unit_number = $1 AND deleted_at IS NULL`+db.ForUpdate(ctx), number))
}

func (r *unitRepoPG) Update(ctx context.Context, u *BloodUnit) error {
	var (
		transfusionID *uuid.UUID
		recipientID   *uuid.UUID
		txDate        *time.Time
		hospital      *string
		physician     *string
	)
	if ref := u.Transfusion; ref != nil {
		transfusionID, recipientID, txDate = &ref.TransfusionID, &ref.RecipientID, &ref.Date
		hospital, physician = ref.Hospital, ref.Physician
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE blood_unit SET status=$2, storage_location=$3, expiration_date=$4,
			transfusion_id=$5, recipient_id=$6, transfusion_date=$7,
			transfusion_hospital=$8, transfusion_physician=$9, updated_at=NOW()
		WHERE id = $1 AND deleted_at IS NULL`,
		u.ID, u.Status, u.StorageLocation, u.ExpirationDate,
		transfusionID, recipientID, txDate, hospital, physician)
	if err != nil {
		return apperr.Storage(err, "update blood unit")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("blood unit")
	}
	return nil
}

func (r *unitRepoPG) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE blood_unit SET deleted_at = $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL AND status <> $3`, id, at, StatusTransfused)
	if err != nil {
		return apperr.Storage(err, "delete blood unit")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("blood unit")
	}
	return nil
}

func (r *unitRepoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*BloodUnit, int, error) {
	where := []string{"deleted_at IS NULL"}
	var args []interface{}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.BloodType != "" {
		args = append(args, f.BloodType)
		where = append(where, fmt.Sprintf("blood_type = $%d", len(args)))
	}
	if f.Component != "" {
		args = append(args, f.Component)
		where = append(where, fmt.Sprintf("component = $%d", len(args)))
	}
	if f.DonorID != nil {
		args = append(args, *f.DonorID)
		where = append(where, fmt.Sprintf("donor_id = $%d", len(args)))
	}
	clause := " WHERE " + strings.Join(where, " AND ")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM blood_unit`+clause, args...).Scan(&total); err != nil {
		return nil, 0, apperr.Storage(err, "count blood units")
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx, fmt.Sprintf(`SELECT `+unitCols+` FROM blood_unit`+clause+
		` ORDER BY collection_date DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, apperr.Storage(err, "list blood units")
	}
	items, err := r.collect(rows)
	return items, total, err
}

func (r *unitRepoPG) ListByStatus(ctx context.Context, status string, expiringBy *time.Time) ([]*BloodUnit, error) {
	query := `SELECT ` + unitCols + ` FROM blood_unit WHERE deleted_at IS NULL AND status = $1`
	args := []interface{}{status}
	if expiringBy != nil {
		query += ` AND expiration_date <= $2`
		args = append(args, *expiringBy)
	}
	rows, err := r.conn(ctx).Query(ctx, query+` ORDER BY expiration_date`, args...)
	if err != nil {
		return nil, apperr.Storage(err, "list blood units by status")
	}
	return r.collect(rows)
}

func (r *unitRepoPG) collect(rows pgx.Rows) ([]*BloodUnit, error) {
	defer rows.Close()
	var items []*BloodUnit
	for rows.Next() {
		u, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, u)
	}
	return items, apperr.Storage(rows.Err(), "read blood units")
}

func (r *unitRepoPG) AddStatusChange(ctx context.Context, sc *StatusChange) error {
	sc.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO blood_unit_status_history (id, blood_unit_id, from_status, to_status, changed_at, changed_by, note)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		sc.ID, sc.UnitID, sc.FromStatus, sc.ToStatus, sc.ChangedAt, sc.ChangedBy, sc.Note)
	return apperr.Storage(err, "insert status change")
}

func (r *unitRepoPG) ListStatusChanges(ctx context.Context, unitID uuid.UUID) ([]*StatusChange, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, blood_unit_id, from_status, to_status, changed_at, changed_by, note
		FROM blood_unit_status_history WHERE blood_unit_id = $1 ORDER BY seq`, unitID)
	if err != nil {
		return nil, apperr.Storage(err, "list status changes")
	}
	defer rows.Close()
	var items []*StatusChange
	for rows.Next() {
		var sc StatusChange
		if err := rows.Scan(&sc.ID, &sc.UnitID, &sc.FromStatus, &sc.ToStatus, &sc.ChangedAt,
			&sc.ChangedBy, &sc.Note); err != nil {
			return nil, apperr.Storage(err, "scan status change")
		}
		items = append(items, &sc)
	}
	return items, apperr.Storage(rows.Err(), "list status changes")
}
