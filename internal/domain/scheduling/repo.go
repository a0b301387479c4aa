package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/altamedica/platform-api/pkg/pagination"
)

var ErrNotFound = errors.New("appointment not found")

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	UpdateStatus(ctx context.Context, a *Appointment) error
	// HasOverlap reports whether the doctor already has a non-terminal
	// appointment overlapping [start, end).
	HasOverlap(ctx context.Context, doctorID string, start, end time.Time) (bool, error)
	ListByPatient(ctx context.Context, patientID string, page pagination.Params) ([]Appointment, int, error)
	ListByDoctor(ctx context.Context, doctorID string, page pagination.Params) ([]Appointment, int, error)
}
