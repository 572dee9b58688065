package license

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medapp/medapp/internal/domain/user"
	"github.com/medapp/medapp/internal/platform/apperr"
	"github.com/medapp/medapp/internal/platform/auth"
)

// UserGetter is the part of user.Repository the service needs.
type UserGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
}

type Service struct {
	repo  Repository
	users UserGetter
	now   func() time.Time
}

func NewService(repo Repository, users UserGetter) *Service {
	return &Service{repo: repo, users: users, now: time.Now}
}

func (s *Service) canRead(ctx context.Context, owner uuid.UUID) error {
	if auth.IsAdmin(auth.RolesFromContext(ctx)) || auth.UserIDFromContext(ctx) == owner.String() {
		return nil
	}
	return apperr.ErrForbidden
}

func (s *Service) validate(ctx context.Context, l *License) error {
	l.Number = strings.TrimSpace(l.Number)
	if l.Number == "" {
		return apperr.Invalid("number is required")
	}
	if l.IssuedAt != nil && l.ExpiresAt != nil && !l.ExpiresAt.After(*l.IssuedAt) {
		return apperr.Invalid("expires_at must be after issued_at")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, l *License) error {
	if l.UserID == uuid.Nil {
		return apperr.Invalid("user_id is required")
	}
	if err := s.validate(ctx, l); err != nil {
		return err
	}
	if _, err := s.users.GetByID(ctx, l.UserID); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return apperr.Invalid("user %s does not exist", l.UserID)
		}
		return err
	}
	return s.repo.Create(ctx, l)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*License, error) {
	l, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.canRead(ctx, l.UserID); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID) ([]*License, error) {
	if err := s.canRead(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.ListByUser(ctx, userID)
}

// List returns licenses for admins, optionally only those active today.
func (s *Service) List(ctx context.Context, userID *uuid.UUID, activeOnly bool, limit, offset int) ([]*License, int, error) {
	var at *time.Time
	if activeOnly {
		now := s.now()
		at = &now
	}
	return s.repo.List(ctx, userID, at, limit, offset)
}

// Update replaces the mutable fields. The holder of a license cannot change.
func (s *Service) Update(ctx context.Context, l *License) error {
	existing, err := s.repo.GetByID(ctx, l.ID)
	if err != nil {
		return err
	}
	if l.UserID != uuid.Nil && l.UserID != existing.UserID {
		return apperr.Invalid("user_id cannot be changed")
	}
	l.UserID = existing.UserID
	if err := s.validate(ctx, l); err != nil {
		return err
	}
	return s.repo.Update(ctx, l)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}
