package transfusion

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bloodbank/bloodbank/internal/platform/apperr"
	"github.com/bloodbank/bloodbank/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const recordCols = `id, transfusion_number, recipient_id, blood_unit_id, request_id, transfusion_date,
	hospital, physician, volume_ml, outcome, adverse_reactions, notes, created_by, created_at`

func (r *repoPG) scanRow(row pgx.Row) (*Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.TransfusionNumber, &rec.RecipientID, &rec.BloodUnitID, &rec.RequestID,
		&rec.TransfusionDate, &rec.Hospital, &rec.Physician, &rec.VolumeML, &rec.Outcome,
		&rec.AdverseReactions, &rec.Notes, &rec.CreatedBy, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("transfusion record")
	}
	if err != nil {
		return nil, apperr.Storage(err, "scan transfusion record")
	}
	return &rec, nil
}

func (r *repoPG) Create(ctx context.Context, rec *Record) error {
	rec.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO transfusion_record (id, transfusion_number, recipient_id, blood_unit_id, request_id,
			transfusion_date, hospital, physician, volume_ml, outcome, adverse_reactions, notes, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING created_at`,
		rec.ID, rec.TransfusionNumber, rec.RecipientID, rec.BloodUnitID, rec.RequestID,
		rec.TransfusionDate, rec.Hospital, rec.Physician, rec.VolumeML, rec.Outcome,
		rec.AdverseReactions, rec.Notes, rec.CreatedBy,
	).Scan(&rec.CreatedAt)
	return apperr.Storage(err, "insert transfusion record")
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	return r.scanRow(r.conn(ctx).QueryRow(ctx,
		`SELECT `+recordCols+` FROM transfusion_record WHERE id = $1`+db.ForUpdate(ctx), id))
}

func (r *repoPG) GetByUnit(ctx context.Context, unitID uuid.UUID) (*Record, error) {
	return r.scanRow(r.conn(ctx).QueryRow(ctx,
		`SELECT `+recordCols+` FROM transfusion_record WHERE blood_unit_id = $1`, unitID))
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM transfusion_record WHERE id = $1`, id)
	if err != nil {
		return apperr.Storage(err, "delete transfusion record")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("transfusion record")
	}
	return nil
}

func (r *repoPG) ListByRecipient(ctx context.Context, recipientID uuid.UUID) ([]*Record, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+recordCols+` FROM transfusion_record WHERE recipient_id = $1 ORDER BY transfusion_date DESC`, recipientID)
	if err != nil {
		return nil, apperr.Storage(err, "list transfusion records")
	}
	defer rows.Close()
	var items []*Record
	for rows.Next() {
		rec, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	return items, apperr.Storage(rows.Err(), "list transfusion records")
}
