package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/altamedica/platform-api/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *repoPG) Create(ctx context.Context, s *Session) error {
	s.ID = uuid.New()
	transcript, err := json.Marshal(s.Transcript)
	if err != nil {
		return fmt.Errorf("encoding transcript: %w", err)
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO intake_session (id, patient_id, status, transcript, summary)
		VALUES ($1, $2, $3, $4, $5)`,
		s.ID, s.PatientID, s.Status, transcript, s.Summary)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Session, error) {
	row := r.conn(ctx).QueryRow(ctx, `
		SELECT id, patient_id, status, transcript, summary, created_at, updated_at
		FROM intake_session WHERE id = $1`, id)

	var s Session
	var transcript []byte
	err := row.Scan(&s.ID, &s.PatientID, &s.Status, &transcript, &s.Summary, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(transcript, &s.Transcript); err != nil {
		return nil, fmt.Errorf("decoding transcript: %w", err)
	}
	return &s, nil
}

func (r *repoPG) Update(ctx context.Context, s *Session) error {
	transcript, err := json.Marshal(s.Transcript)
	if err != nil {
		return fmt.Errorf("encoding transcript: %w", err)
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE intake_session SET status = $2, transcript = $3, summary = $4, updated_at = NOW()
		WHERE id = $1`,
		s.ID, s.Status, transcript, s.Summary)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
