package recipient

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

// -- Recipient --

type recipientRepoPG struct{ pool *pgxpool.Pool }

func NewRecipientRepoPG(pool *pgxpool.Pool) RecipientRepository {
	return &recipientRepoPG{pool: pool}
}

func (r *recipientRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const recipientCols = `id, recipient_number, first_name, last_name, date_of_birth, gender, blood_type,
	hospital, phone, medical_notes, transfusion_count, last_transfusion_date, created_at, updated_at`

func (r *recipientRepoPG) scanRow(row pgx.Row) (*Recipient, error) {
	var rc Recipient
	err := row.Scan(&rc.ID, &rc.RecipientNumber, &rc.FirstName, &rc.LastName, &rc.DateOfBirth, &rc.Gender, &rc.BloodType,
		&rc.Hospital, &rc.Phone, &rc.MedicalNotes, &rc.TransfusionCount, &rc.LastTransfusionDate, &rc.CreatedAt, &rc.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("recipient")
	}
	if err != nil {
		return nil, apperr.Storage(err, "scan recipient")
	}
	return &rc, nil
}

func (r *recipientRepoPG) Create(ctx context.Context, rc *Recipient) error {
	rc.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO recipient (id, recipient_number, first_name, last_name, date_of_birth, gender, blood_type,
			hospital, phone, medical_notes, transfusion_count, last_transfusion_date)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING created_at, updated_at`,
		rc.ID, rc.RecipientNumber, rc.FirstName, rc.LastName, rc.DateOfBirth, rc.Gender, rc.BloodType,
		rc.Hospital, rc.Phone, rc.MedicalNotes, rc.TransfusionCount, rc.LastTransfusionDate,
	).Scan(&rc.CreatedAt, &rc.UpdatedAt)
	return apperr.Storage(err, "insert recipient")
}

func (r *recipientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Recipient, error) {
	return r.scanRow(r.conn(ctx).QueryRow(ctx,
		`SELECT `+recipientCols+` FROM recipient WHERE id = $1`+db.ForUpdate(ctx), id))
}

func (r *recipientRepoPG) GetByNumber(ctx context.Context, number string) (*Recipient, error) {
	return r.scanRow(r.conn(ctx).QueryRow(ctx,
		`SELECT `+recipientCols+` FROM recipient WHERE recipient_number = $1`, number))
}

func (r *recipientRepoPG) Update(ctx context.Context, rc *Recipient) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE recipient SET first_name=$2, last_name=$3, gender=$4, hospital=$5, phone=$6, medical_notes=$7,
			transfusion_count=$8, last_transfusion_date=$9, updated_at=NOW()
		WHERE id = $1`,
		rc.ID, rc.FirstName, rc.LastName, rc.Gender, rc.Hospital, rc.Phone, rc.MedicalNotes,
		rc.TransfusionCount, rc.LastTransfusionDate)
	if err != nil {
		return apperr.Storage(err, "update recipient")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("recipient")
	}
	return nil
}

func (r *recipientRepoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Recipient, int, error) {
	var where []string
	var args []interface{}
	if f.BloodType != "" {
		args = append(args, f.BloodType)
		where = append(where, fmt.Sprintf("blood_type = $%d", len(args)))
	}
	if f.Hospital != "" {
		args = append(args, f.Hospital)
		where = append(where, fmt.Sprintf("hospital = $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM recipient`+clause, args...).Scan(&total); err != nil {
		return nil, 0, apperr.Storage(err, "count recipients")
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx, fmt.Sprintf(`SELECT `+recipientCols+` FROM recipient`+clause+
		` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, apperr.Storage(err, "list recipients")
	}
	defer rows.Close()
	var items []*Recipient
	for rows.Next() {
		rc, err := r.scanRow(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rc)
	}
	return items, total, apperr.Storage(rows.Err(), "list recipients")
}

// -- BloodRequest --

type requestRepoPG struct{ pool *pgxpool.Pool }

func NewRequestRepoPG(pool *pgxpool.Pool) RequestRepository {
	return &requestRepoPG{pool: pool}
}

func (r *requestRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const requestCols = `id, request_number, recipient_id, blood_type, component, units_requested, urgency,
	required_by, status, notes, updated_by, created_at, updated_at`

func (r *requestRepoPG) scanRow(row pgx.Row) (*BloodRequest, error) {
	var br BloodRequest
	err := row.Scan(&br.ID, &br.RequestNumber, &br.RecipientID, &br.BloodType, &br.Component, &br.UnitsRequested,
		&br.Urgency, &br.RequiredBy, &br.Status, &br.Notes, &br.UpdatedBy, &br.CreatedAt, &br.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("blood request")
	}
	if err != nil {
		return nil, apperr.Storage(err, "scan blood request")
	}
	return &br, nil
}

func (r *requestRepoPG) Create(ctx context.Context, br *BloodRequest) error {
	br.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO blood_request (id, request_number, recipient_id, blood_type, component, units_requested,
			urgency, required_by, status, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		br.ID, br.RequestNumber, br.RecipientID, br.BloodType, br.Component, br.UnitsRequested,
		br.Urgency, br.RequiredBy, br.Status, br.Notes,
	).Scan(&br.CreatedAt, &br.UpdatedAt)
	return apperr.Storage(err, "insert blood request")
}

func (r *requestRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*BloodRequest, error) {
	return r.scanRow(r.conn(ctx).QueryRow(ctx,
		`SELECT `+requestCols+` FROM blood_request WHERE id = $1`+db.ForUpdate(ctx), id))
}

func (r *requestRepoPG) Update(ctx context.Context, br *BloodRequest) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE blood_request SET status=$2, notes=$3, updated_by=$4, updated_at=NOW()
		WHERE id = $1`,
		br.ID, br.Status, br.Notes, br.UpdatedBy)
	if err != nil {
		return apperr.Storage(err, "update blood request")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("blood request")
	}
	return nil
}

func (r *requestRepoPG) ListByRecipient(ctx context.Context, recipientID uuid.UUID) ([]*BloodRequest, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+requestCols+` FROM blood_request WHERE recipient_id = $1 ORDER BY created_at DESC`, recipientID)
	if err != nil {
		return nil, apperr.Storage(err, "list blood requests")
	}
	defer rows.Close()
	var items []*BloodRequest
	for rows.Next() {
		br, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, br)
	}
	return items, apperr.Storage(rows.Err(), "list blood requests")
}

func (r *requestRepoPG) List(ctx context.Context, f RequestFilter, limit, offset int) ([]*BloodRequest, int, error) {
	var where []string
	var args []interface{}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Urgency != "" {
		args = append(args, f.Urgency)
		where = append(where, fmt.Sprintf("urgency = $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM blood_request`+clause, args...).Scan(&total); err != nil {
		return nil, 0, apperr.Storage(err, "count blood requests")
	}

	args = append(args, limit, offset)
	// Emergencies first, then the earliest deadline.
	rows, err := r.conn(ctx).Query(ctx, fmt.Sprintf(`SELECT `+requestCols+` FROM blood_request`+clause+`
		ORDER BY CASE urgency WHEN 'Emergency' THEN 0 WHEN 'Urgent' THEN 1 ELSE 2 END,
			required_by NULLS LAST, created_at
		LIMIT $%d OFFSET $%d`, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, apperr.Storage(err, "list blood requests")
	}
	defer rows.Close()
	var items []*BloodRequest
	for rows.Next() {
		br, err := r.scanRow(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, br)
	}
	return items, total, apperr.Storage(rows.Err(), "list blood requests")
}
