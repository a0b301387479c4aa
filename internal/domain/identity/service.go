package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/altamedica/platform-api/internal/platform/auth"
	"github.com/altamedica/platform-api/pkg/pagination"
)

// ErrForbidden is returned when the caller may not touch the profile.
var ErrForbidden = errors.New("not allowed to access this profile")

// ErrInvalid is returned for structurally invalid profile data.
type ErrInvalid struct{ Reason string }

func (e *ErrInvalid) Error() string { return "invalid profile: " + e.Reason }

type Service struct {
	patients PatientRepository
	doctors  DoctorRepository
	logger   zerolog.Logger
}

func NewService(patients PatientRepository, doctors DoctorRepository, logger zerolog.Logger) *Service {
	return &Service{patients: patients, doctors: doctors, logger: logger}
}

func validatePatient(p *Patient) error {
	if strings.TrimSpace(p.ID) == "" {
		return &ErrInvalid{Reason: "id is required"}
	}
	if strings.TrimSpace(p.FullName) == "" {
		return &ErrInvalid{Reason: "full_name is required"}
	}
	if !strings.Contains(p.Email, "@") {
		return &ErrInvalid{Reason: "email is invalid"}
	}
	return nil
}

func validateDoctor(d *Doctor) error {
	if strings.TrimSpace(d.ID) == "" {
		return &ErrInvalid{Reason: "id is required"}
	}
	if strings.TrimSpace(d.FullName) == "" {
		return &ErrInvalid{Reason: "full_name is required"}
	}
	if strings.TrimSpace(d.LicenseNumber) == "" {
		return &ErrInvalid{Reason: "license_number is required"}
	}
	return nil
}

// canReadPatient allows the patient themselves and any caller with
// record-read rights.
func canReadPatient(caller *auth.Identity, patientID string) bool {
	if caller == nil {
		return false
	}
	if caller.UID == patientID {
		return true
	}
	return caller.Role.Can(auth.PermReadAnyRecord)
}

func (s *Service) CreatePatient(ctx context.Context, caller *auth.Identity, p *Patient) error {
	if caller == nil || !caller.Role.Can(auth.PermManageProfiles) {
		return ErrForbidden
	}
	if err := validatePatient(p); err != nil {
		return err
	}
	if err := s.patients.Create(ctx, p); err != nil {
		return err
	}
	s.logger.Info().Str("patient_id", p.ID).Msg("patient profile created")
	return nil
}

func (s *Service) GetPatient(ctx context.Context, caller *auth.Identity, id string) (*Patient, error) {
	if !canReadPatient(caller, id) {
		return nil, ErrForbidden
	}
	return s.patients.GetByID(ctx, id)
}

// UpdatePatient lets the patient edit their own profile; otherwise the
// caller needs profile management rights.
func (s *Service) UpdatePatient(ctx context.Context, caller *auth.Identity, p *Patient) error {
	if caller == nil {
		return ErrForbidden
	}
	if caller.UID != p.ID && !caller.Role.Can(auth.PermManageProfiles) {
		return ErrForbidden
	}
	if err := validatePatient(p); err != nil {
		return err
	}
	return s.patients.Update(ctx, p)
}

func (s *Service) ListPatients(ctx context.Context, caller *auth.Identity, page pagination.Params) ([]Patient, int, error) {
	if caller == nil || !caller.Role.Can(auth.PermReadAnyRecord) {
		return nil, 0, ErrForbidden
	}
	return s.patients.List(ctx, page)
}

func (s *Service) CreateDoctor(ctx context.Context, caller *auth.Identity, d *Doctor) error {
	if caller == nil || !caller.Role.Can(auth.PermManageProfiles) {
		return ErrForbidden
	}
	if err := validateDoctor(d); err != nil {
		return err
	}
	if err := s.doctors.Create(ctx, d); err != nil {
		return err
	}
	s.logger.Info().Str("doctor_id", d.ID).Msg("doctor profile created")
	return nil
}

// GetDoctor is readable by any authenticated caller; doctor profiles are
// directory data, not PHI.
func (s *Service) GetDoctor(ctx context.Context, caller *auth.Identity, id string) (*Doctor, error) {
	if caller == nil {
		return nil, ErrForbidden
	}
	return s.doctors.GetByID(ctx, id)
}

func (s *Service) UpdateDoctor(ctx context.Context, caller *auth.Identity, d *Doctor) error {
	if caller == nil {
		return ErrForbidden
	}
	if caller.UID != d.ID && !caller.Role.Can(auth.PermManageProfiles) {
		return ErrForbidden
	}
	if err := validateDoctor(d); err != nil {
		return err
	}
	return s.doctors.Update(ctx, d)
}

func (s *Service) ListDoctors(ctx context.Context, caller *auth.Identity, page pagination.Params) ([]Doctor, int, error) {
	if caller == nil {
		return nil, 0, ErrForbidden
	}
	return s.doctors.List(ctx, page)
}
