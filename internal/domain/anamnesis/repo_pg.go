package anamnesis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/altamedica/platform-api/internal/platform/db"
	"github.com/altamedica/platform-api/pkg/pagination"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type storePG struct{ pool *pgxpool.Pool }

// NewStorePG builds the Postgres-backed store.
func NewStorePG(pool *pgxpool.Pool) Store {
	return &storePG{pool: pool}
}

func (s *storePG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return s.pool
}

func (s *storePG) begin(ctx context.Context) (pgx.Tx, error) {
	if c := db.ConnFromContext(ctx); c != nil {
		return c.Begin(ctx)
	}
	return s.pool.Begin(ctx)
}

// Serialization failures and deadlocks are safe to retry: the transaction
// rolled back without writing anything.
const (
	maxSaveAttempts  = 3
	retryBaseBackoff = 25 * time.Millisecond
)

func isTransient(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

func (s *storePG) SaveOrUpdate(ctx context.Context, patientID string, sections map[string]json.RawMessage, editorUID string) (*Record, error) {
	return s.save(ctx, patientID, sections, editorUID, "", false)
}

func (s *storePG) SaveWithExpectedVersion(ctx context.Context, patientID string, sections map[string]json.RawMessage, editorUID, expectedVersion string) (*Record, error) {
	return s.save(ctx, patientID, sections, editorUID, expectedVersion, true)
}

func (s *storePG) save(ctx context.Context, patientID string, sections map[string]json.RawMessage, editorUID, expectedVersion string, checkVersion bool) (*Record, error) {
	var lastErr error
	for attempt := 0; attempt < maxSaveAttempts; attempt++ {
		if attempt > 0 {
			backoff := retryBaseBackoff << (attempt - 1)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ErrTransient(ctx.Err())
			}
		}

		rec, err := s.trySave(ctx, patientID, sections, editorUID, expectedVersion, checkVersion)
		if err == nil {
			return rec, nil
		}
		// Conflicts are a business outcome, never retried.
		var ce *ConflictError
		if errors.As(err, &ce) {
			return nil, err
		}
		if !isTransient(err) {
			return nil, fmt.Errorf("saving anamnesis for patient %s: %w", patientID, err)
		}
		lastErr = err
	}
	return nil, ErrTransient(lastErr)
}

func (s *storePG) trySave(ctx context.Context, patientID string, sections map[string]json.RawMessage, editorUID, expectedVersion string, checkVersion bool) (*Record, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	current, err := s.lockCurrent(ctx, tx, patientID)
	if err != nil {
		return nil, err
	}

	// A missing record proceeds as a create; only an existing record with a
	// different version is a conflict.
	if checkVersion && current != nil && current.VersionID != expectedVersion {
		return nil, &ConflictError{
			ExpectedVersion: expectedVersion,
			CurrentVersion:  current.VersionID,
			Current:         current,
		}
	}

	newSections, err := json.Marshal(sections)
	if err != nil {
		return nil, fmt.Errorf("encoding sections: %w", err)
	}

	// Every write appends one history row carrying the written state; the
	// snapshot of the replaced record is NULL on the first write.
	var prevSnapshot []byte
	if current != nil {
		prevSnapshot, err = json.Marshal(current)
		if err != nil {
			return nil, fmt.Errorf("encoding previous snapshot: %w", err)
		}
	}

	rec := &Record{
		PatientID:    patientID,
		Sections:     sections,
		VersionID:    uuid.NewString(),
		UpdatedAt:    time.Now().UTC(),
		LastEditedBy: editorUID,
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO anamnesis_version (patient_id, version_id, sections, edited_by, created_at, previous_snapshot)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.PatientID, rec.VersionID, newSections, rec.LastEditedBy, rec.UpdatedAt, prevSnapshot)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO anamnesis_record (patient_id, sections, version_id, updated_at, last_edited_by)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (patient_id) DO UPDATE SET
			sections = EXCLUDED.sections,
			version_id = EXCLUDED.version_id,
			updated_at = EXCLUDED.updated_at,
			last_edited_by = EXCLUDED.last_edited_by`,
		rec.PatientID, newSections, rec.VersionID, rec.UpdatedAt, rec.LastEditedBy)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *storePG) lockCurrent(ctx context.Context, tx pgx.Tx, patientID string) (*Record, error) {
	row := tx.QueryRow(ctx, `
		SELECT patient_id, sections, version_id, updated_at, last_edited_by
		FROM anamnesis_record WHERE patient_id = $1 FOR UPDATE`, patientID)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	var sections []byte
	if err := row.Scan(&rec.PatientID, &sections, &rec.VersionID, &rec.UpdatedAt, &rec.LastEditedBy); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(sections, &rec.Sections); err != nil {
		return nil, fmt.Errorf("decoding sections: %w", err)
	}
	return &rec, nil
}

func (s *storePG) GetCurrent(ctx context.Context, patientID string) (*Record, error) {
	row := s.conn(ctx).QueryRow(ctx, `
		SELECT patient_id, sections, version_id, updated_at, last_edited_by
		FROM anamnesis_record WHERE patient_id = $1`, patientID)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading anamnesis for patient %s: %w", patientID, err)
	}
	return rec, nil
}

func (s *storePG) GetHistory(ctx context.Context, patientID string, page pagination.Params) ([]Version, int, error) {
	q := s.conn(ctx)

	var total int
	err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM anamnesis_version WHERE patient_id = $1`, patientID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("counting anamnesis versions: %w", err)
	}

	rows, err := q.Query(ctx, `
		SELECT seq, version_id, sections, edited_by, created_at, previous_snapshot
		FROM anamnesis_version
		WHERE patient_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2 OFFSET $3`, patientID, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("loading anamnesis history: %w", err)
	}
	defer rows.Close()

	versions := make([]Version, 0, page.Limit)
	for rows.Next() {
		var v Version
		var sections, snapshot []byte
		if err := rows.Scan(&v.Seq, &v.VersionID, &sections, &v.EditedBy, &v.CreatedAt, &snapshot); err != nil {
			return nil, 0, err
		}
		v.PreviousSnapshot = snapshot
		if err := json.Unmarshal(sections, &v.Sections); err != nil {
			return nil, 0, fmt.Errorf("decoding version %s: %w", v.VersionID, err)
		}
		versions = append(versions, v)
	}
	return versions, total, rows.Err()
}
