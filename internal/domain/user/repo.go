package user

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Create keeps a preset ID, otherwise assigns one.
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	Update(ctx context.Context, u *User) error
	UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error
	UpdateTOTP(ctx context.Context, id uuid.UUID, secret *string, enabled bool) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*User, int, error)
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*User, int, error)
	// Exists also sees soft-deleted rows.
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}
