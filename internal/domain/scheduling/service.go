package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/altamedica/platform-api/internal/platform/auth"
	"github.com/altamedica/platform-api/pkg/pagination"
)

var (
	ErrForbidden = errors.New("not allowed to access this appointment")
	ErrOverlap   = errors.New("doctor already has an appointment in this slot")
)

// ErrInvalid is returned for structurally invalid appointment data.
type ErrInvalid struct{ Reason string }

func (e *ErrInvalid) Error() string { return "invalid appointment: " + e.Reason }

// ErrBadTransition is returned for illegal state machine moves.
type ErrBadTransition struct{ From, To Status }

func (e *ErrBadTransition) Error() string {
	return fmt.Sprintf("cannot move appointment from %s to %s", e.From, e.To)
}

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) involved(caller *auth.Identity, a *Appointment) bool {
	if caller == nil {
		return false
	}
	if caller.Role == auth.RoleAdmin {
		return true
	}
	return caller.UID == a.PatientID || caller.UID == a.DoctorID
}

// Propose creates an appointment in the proposed state. Patients may only
// propose for themselves.
func (s *Service) Propose(ctx context.Context, caller *auth.Identity, a *Appointment) error {
	if caller == nil {
		return ErrForbidden
	}
	if caller.Role == auth.RolePatient && caller.UID != a.PatientID {
		return ErrForbidden
	}
	if a.PatientID == "" || a.DoctorID == "" {
		return &ErrInvalid{Reason: "patient_id and doctor_id are required"}
	}
	if !a.EndTime.After(a.StartTime) {
		return &ErrInvalid{Reason: "end_time must be after start_time"}
	}
	if a.StartTime.Before(time.Now()) {
		return &ErrInvalid{Reason: "appointment must be in the future"}
	}

	overlap, err := s.repo.HasOverlap(ctx, a.DoctorID, a.StartTime, a.EndTime)
	if err != nil {
		return err
	}
	if overlap {
		return ErrOverlap
	}

	a.Status = StatusProposed
	if err := s.repo.Create(ctx, a); err != nil {
		return err
	}
	s.logger.Info().
		Str("appointment_id", a.ID.String()).
		Str("patient_id", a.PatientID).
		Str("doctor_id", a.DoctorID).
		Msg("appointment proposed")
	return nil
}

// Get returns the appointment if the caller is a participant.
func (s *Service) Get(ctx context.Context, caller *auth.Identity, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.involved(caller, a) {
		return nil, ErrForbidden
	}
	return a, nil
}

// Transition moves an appointment to a new status. Booking assigns the
// video room; all other transitions leave it untouched.
func (s *Service) Transition(ctx context.Context, caller *auth.Identity, id uuid.UUID, to Status) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.involved(caller, a) {
		return nil, ErrForbidden
	}
	// Patients may only book or cancel; clinical transitions belong to the
	// doctor.
	if caller.Role == auth.RolePatient && to != StatusBooked && to != StatusCancelled {
		return nil, ErrForbidden
	}
	if !CanTransition(a.Status, to) {
		return nil, &ErrBadTransition{From: a.Status, To: to}
	}

	a.Status = to
	if to == StatusBooked && a.VideoRoomID == "" {
		a.VideoRoomID = "room-" + uuid.NewString()
	}
	if err := s.repo.UpdateStatus(ctx, a); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("appointment_id", a.ID.String()).
		Str("status", string(to)).
		Msg("appointment transitioned")
	return a, nil
}

// ListForPatient returns a patient's appointments. Patients see only their
// own; doctors and admins see any patient's.
func (s *Service) ListForPatient(ctx context.Context, caller *auth.Identity, patientID string, page pagination.Params) ([]Appointment, int, error) {
	if caller == nil {
		return nil, 0, ErrForbidden
	}
	if caller.UID != patientID && !caller.Role.Can(auth.PermReadAnyRecord) {
		return nil, 0, ErrForbidden
	}
	return s.repo.ListByPatient(ctx, patientID, page)
}

// ListForDoctor returns a doctor's schedule. Only the doctor themselves or
// an admin may see it.
func (s *Service) ListForDoctor(ctx context.Context, caller *auth.Identity, doctorID string, page pagination.Params) ([]Appointment, int, error) {
	if caller == nil {
		return nil, 0, ErrForbidden
	}
	if caller.UID != doctorID && caller.Role != auth.RoleAdmin {
		return nil, 0, ErrForbidden
	}
	return s.repo.ListByDoctor(ctx, doctorID, page)
}
