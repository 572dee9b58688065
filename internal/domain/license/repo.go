package license

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, l *License) error
	GetByID(ctx context.Context, id uuid.UUID) (*License, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*License, error)
	// List filters by user_id and, when activeAt is set, to licenses in force then.
	List(ctx context.Context, userID *uuid.UUID, activeAt *time.Time, limit, offset int) ([]*License, int, error)
	Update(ctx context.Context, l *License) error
	Delete(ctx context.Context, id uuid.UUID) error
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}
