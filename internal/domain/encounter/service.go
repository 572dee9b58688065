package encounter

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/medapp/medapp/internal/domain/patient"
	"github.com/medapp/medapp/internal/domain/user"
	"github.com/medapp/medapp/internal/platform/apperr"
	"github.com/medapp/medapp/internal/platform/auth"
)

type PatientGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

type UserGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
}

type Service struct {
	repo     Repository
	patients PatientGetter
	users    UserGetter
	now      func() time.Time
}

func NewService(repo Repository, patients PatientGetter, users UserGetter) *Service {
	return &Service{repo: repo, patients: patients, users: users, now: time.Now}
}

func caller(ctx context.Context) (uuid.UUID, bool) {
	id, _ := uuid.Parse(auth.UserIDFromContext(ctx))
	return id, auth.IsAdmin(auth.RolesFromContext(ctx))
}

// canModify allows the authoring medic and admins.
func canModify(ctx context.Context, e *Encounter) error {
	self, admin := caller(ctx)
	if admin || (self != uuid.Nil && self == e.MedicID) {
		return nil
	}
	return apperr.ErrForbidden
}

func (s *Service) checkPatient(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return apperr.Invalid("patient_id is required")
	}
	if _, err := s.patients.GetByID(ctx, id); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return apperr.Invalid("patient %s does not exist", id)
		}
		return err
	}
	return nil
}

func (s *Service) checkMedic(ctx context.Context, id uuid.UUID) error {
	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.Invalid("medic %s does not exist", id)
	}
	if err != nil {
		return err
	}
	if !auth.HasRole(u.Roles, auth.RoleMedic) {
		return apperr.Invalid("user %s is not a medic", id)
	}
	return nil
}

// Create records a new encounter. When medic_id is omitted the caller is the
// author; only admins may record encounters on behalf of another medic.
func (s *Service) Create(ctx context.Context, e *Encounter) error {
	self, admin := caller(ctx)
	if e.MedicID == uuid.Nil {
		e.MedicID = self
	}
	if e.MedicID == uuid.Nil {
		return apperr.Invalid("medic_id is required")
	}
	if !admin && e.MedicID != self {
		return apperr.ErrForbidden
	}
	if err := s.checkPatient(ctx, e.PatientID); err != nil {
		return err
	}
	if err := s.checkMedic(ctx, e.MedicID); err != nil {
		return err
	}
	if e.Date.IsZero() {
		e.Date = s.now().UTC()
	}
	return s.repo.Create(ctx, e)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Encounter, error) {
	return s.repo.GetByID(ctx, id)
}

// Update replaces date, insurance, forms and patient. The author is fixed.
func (s *Service) Update(ctx context.Context, e *Encounter) error {
	existing, err := s.repo.GetByID(ctx, e.ID)
	if err != nil {
		return err
	}
	if err := canModify(ctx, existing); err != nil {
		return err
	}
	if e.MedicID != uuid.Nil && e.MedicID != existing.MedicID {
		return apperr.Invalid("medic_id cannot be changed")
	}
	if e.PatientID == uuid.Nil {
		e.PatientID = existing.PatientID
	}
	if e.PatientID != existing.PatientID {
		if err := s.checkPatient(ctx, e.PatientID); err != nil {
			return err
		}
	}
	if e.Date.IsZero() {
		e.Date = existing.Date
	}
	e.MedicID = existing.MedicID
	e.LegacyID = existing.LegacyID
	e.CreatedAt = existing.CreatedAt
	return s.repo.Update(ctx, e)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := canModify(ctx, existing); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Encounter, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Encounter, int, error) {
	return s.repo.Search(ctx, params, limit, offset)
}
