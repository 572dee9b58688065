package patient

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Create keeps a preset ID, otherwise assigns one. The document blind
	// index and search name are derived here.
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	// GetByDocument finds the live patient whose document number normalizes
	// to the same digits as doc.
	GetByDocument(ctx context.Context, doc string) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Patient, int, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}
