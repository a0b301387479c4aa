package intake

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("intake session not found")

type Repository interface {
	Create(ctx context.Context, s *Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*Session, error)
	Update(ctx context.Context, s *Session) error
}
