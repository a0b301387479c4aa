package anamnesis

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/altamedica/platform-api/internal/platform/auth"
	"github.com/altamedica/platform-api/pkg/pagination"
)

// Service enforces the access gate and validation in front of the store.
// The gate always checks in the same order: authentication, email
// verification, then role permission. Callers see the first failure only.
type Service struct {
	store  Store
	logger zerolog.Logger
}

func NewService(store Store, logger zerolog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

func (s *Service) authorize(caller *auth.Identity, patientID string, write bool) error {
	if caller == nil {
		return ErrUnauthenticated()
	}
	if !caller.EmailVerified {
		return ErrEmailNotVerified()
	}

	own := caller.UID == patientID
	var perm auth.Permission
	switch {
	case own && write:
		perm = auth.PermWriteOwnRecords
	case own:
		perm = auth.PermReadOwnRecords
	case write:
		perm = auth.PermWriteAnyRecord
	default:
		perm = auth.PermReadAnyRecord
	}
	if !caller.Role.Can(perm) {
		return ErrForbidden("not allowed to access this patient's record")
	}
	return nil
}

// Save writes the sections unconditionally after the access gate and
// structural validation pass.
func (s *Service) Save(ctx context.Context, caller *auth.Identity, patientID string, sections map[string]json.RawMessage) (*Record, error) {
	if err := s.authorize(caller, patientID, true); err != nil {
		return nil, err
	}
	if result := Validate(sections); !result.Valid {
		return nil, ErrValidation(result.Problems)
	}

	rec, err := s.store.SaveOrUpdate(ctx, patientID, sections, caller.UID)
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("patient_id", patientID).
		Str("version_id", rec.VersionID).
		Str("edited_by", caller.UID).
		Msg("anamnesis saved")
	return rec, nil
}

// Sync writes the sections only if the caller's expected version is still
// current. A stale expectation returns the conflict with the winning state.
func (s *Service) Sync(ctx context.Context, caller *auth.Identity, patientID string, sections map[string]json.RawMessage, expectedVersion string) (*Record, error) {
	if err := s.authorize(caller, patientID, true); err != nil {
		return nil, err
	}
	if expectedVersion == "" {
		return nil, ErrValidation([]string{"expected_version is required"})
	}
	if result := Validate(sections); !result.Valid {
		return nil, ErrValidation(result.Problems)
	}

	rec, err := s.store.SaveWithExpectedVersion(ctx, patientID, sections, caller.UID, expectedVersion)
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("patient_id", patientID).
		Str("version_id", rec.VersionID).
		Str("edited_by", caller.UID).
		Msg("anamnesis synced")
	return rec, nil
}

// Get returns the current record or a not-found error.
func (s *Service) Get(ctx context.Context, caller *auth.Identity, patientID string) (*Record, error) {
	if err := s.authorize(caller, patientID, false); err != nil {
		return nil, err
	}
	rec, err := s.store.GetCurrent(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNotFound(patientID)
	}
	return rec, nil
}

// History returns the record's version history, newest first.
func (s *Service) History(ctx context.Context, caller *auth.Identity, patientID string, page pagination.Params) ([]Version, int, error) {
	if err := s.authorize(caller, patientID, false); err != nil {
		return nil, 0, err
	}
	return s.store.GetHistory(ctx, patientID, page)
}
