package encounter

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, e *Encounter) error
	GetByID(ctx context.Context, id uuid.UUID) (*Encounter, error)
	Update(ctx context.Context, e *Encounter) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Encounter, int, error)
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Encounter, int, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}
