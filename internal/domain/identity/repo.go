package identity

import (
	"context"
	"errors"

	"github.com/altamedica/platform-api/pkg/pagination"
)

// ErrNotFound is returned when the requested profile does not exist.
var ErrNotFound = errors.New("profile not found")

// ErrDuplicate is returned when creating a profile with an ID or email that
// already exists.
var ErrDuplicate = errors.New("profile already exists")

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id string) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	List(ctx context.Context, page pagination.Params) ([]Patient, int, error)
}

type DoctorRepository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id string) (*Doctor, error)
	Update(ctx context.Context, d *Doctor) error
	List(ctx context.Context, page pagination.Params) ([]Doctor, int, error)
}
