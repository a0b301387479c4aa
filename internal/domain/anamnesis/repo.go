package anamnesis

import (
	"context"
	"encoding/json"

	"github.com/altamedica/platform-api/pkg/pagination"
)

// Store persists anamnesis records with an append-only version history.
//
// Every successful write produces a fresh version token and appends one
// history entry with the written state and a snapshot of the record it
// replaced, in the same transaction. Writes with an expected version
// implement optimistic concurrency: the first writer wins and later
// writers get a ConflictError carrying the current state.
type Store interface {
	// SaveOrUpdate writes the sections unconditionally, creating the record
	// if it does not exist yet.
	SaveOrUpdate(ctx context.Context, patientID string, sections map[string]json.RawMessage, editorUID string) (*Record, error)

	// SaveWithExpectedVersion writes only if the record's current version
	// matches expectedVersion. On mismatch it returns a *ConflictError and
	// leaves the record untouched.
	SaveWithExpectedVersion(ctx context.Context, patientID string, sections map[string]json.RawMessage, editorUID, expectedVersion string) (*Record, error)

	// GetCurrent returns the current record, or (nil, nil) when the patient
	// has none. Absence is not an error at this layer.
	GetCurrent(ctx context.Context, patientID string) (*Record, error)

	// GetHistory returns history entries, newest first, with the total
	// count for pagination.
	GetHistory(ctx context.Context, patientID string, page pagination.Params) ([]Version, int, error)
}
