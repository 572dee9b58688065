package patient

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medapp/medapp/internal/platform/apperr"
	"github.com/medapp/medapp/internal/platform/search"
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func (s *Service) validate(p *Patient) error {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	if p.FirstName == "" || p.LastName == "" {
		return apperr.Invalid("first_name and last_name are required")
	}
	if p.Gender != nil && !validGenders[*p.Gender] {
		return apperr.Invalid("gender must be one of male, female, other, unknown")
	}
	if p.BirthDate != nil && p.BirthDate.After(s.now()) {
		return apperr.Invalid("birth_date cannot be in the future")
	}
	if p.DocumentNumber != nil && strings.TrimSpace(*p.DocumentNumber) == "" {
		p.DocumentNumber = nil
	}
	return nil
}

// ensureUniqueDocument rejects a document number already held by another
// live patient.
func (s *Service) ensureUniqueDocument(ctx context.Context, p *Patient) error {
	if p.DocumentNumber == nil || search.NormalizeDocument(*p.DocumentNumber) == "" {
		return nil
	}
	existing, err := s.repo.GetByDocument(ctx, *p.DocumentNumber)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.ID != p.ID {
		return apperr.Conflict("document %s is already registered", *p.DocumentNumber)
	}
	return nil
}

func (s *Service) Create(ctx context.Context, p *Patient) error {
	if err := s.validate(p); err != nil {
		return err
	}
	if err := s.ensureUniqueDocument(ctx, p); err != nil {
		return err
	}
	return s.repo.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByDocument(ctx context.Context, doc string) (*Patient, error) {
	if search.NormalizeDocument(doc) == "" {
		return nil, apperr.Invalid("document must contain digits")
	}
	return s.repo.GetByDocument(ctx, doc)
}

// Update replaces the patient. A synthesized record that is edited by staff
// is no longer considered synthesized.
func (s *Service) Update(ctx context.Context, p *Patient) error {
	existing, err := s.repo.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	if err := s.validate(p); err != nil {
		return err
	}
	if err := s.ensureUniqueDocument(ctx, p); err != nil {
		return err
	}
	p.LegacyID = existing.LegacyID
	p.CreatedAt = existing.CreatedAt
	p.Synthesized = false
	return s.repo.Update(ctx, p)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Patient, int, error) {
	if g := params["gender"]; g != "" && !validGenders[g] {
		return nil, 0, apperr.Invalid("unknown gender %q", g)
	}
	return s.repo.Search(ctx, params, limit, offset)
}
