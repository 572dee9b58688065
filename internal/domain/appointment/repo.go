package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// FindActive returns the live booked or arrived appointment holding the
	// medic's slot at start, or apperr.ErrNotFound.
	FindActive(ctx context.Context, medicID uuid.UUID, start time.Time) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	Delete(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Appointment, int, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}
