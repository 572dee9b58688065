package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"

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
}

func NewService(repo Repository, patients PatientGetter, users UserGetter) *Service {
	return &Service{repo: repo, patients: patients, users: users}
}

func (s *Service) checkRefs(ctx context.Context, a *Appointment) error {
	if a.PatientID == uuid.Nil {
		return apperr.Invalid("patient_id is required")
	}
	if a.MedicID == uuid.Nil {
		return apperr.Invalid("medic_id is required")
	}
	if a.StartAt.IsZero() {
		return apperr.Invalid("start_at is required")
	}
	if _, err := s.patients.GetByID(ctx, a.PatientID); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return apperr.Invalid("patient %s does not exist", a.PatientID)
		}
		return err
	}
	u, err := s.users.GetByID(ctx, a.MedicID)
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.Invalid("medic %s does not exist", a.MedicID)
	}
	if err != nil {
		return err
	}
	if !auth.HasRole(u.Roles, auth.RoleMedic) {
		return apperr.Invalid("user %s is not a medic", a.MedicID)
	}
	return nil
}

// checkSlot rejects a booking when another active appointment already holds
// the medic's slot.
func (s *Service) checkSlot(ctx context.Context, a *Appointment) error {
	if !IsActive(a.Status) {
		return nil
	}
	existing, err := s.repo.FindActive(ctx, a.MedicID, a.StartAt)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.ID != a.ID {
		return apperr.Conflict("medic already has an appointment at %s", a.StartAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func (s *Service) Create(ctx context.Context, a *Appointment) error {
	if a.Status == "" {
		a.Status = StatusBooked
	}
	if !ValidStatus(a.Status) {
		return apperr.Invalid("unknown status %q", a.Status)
	}
	if err := s.checkRefs(ctx, a); err != nil {
		return err
	}
	if err := s.checkSlot(ctx, a); err != nil {
		return err
	}
	return s.repo.Create(ctx, a)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

// Update reschedules an appointment or changes its patient or medic. The
// status only changes through UpdateStatus.
func (s *Service) Update(ctx context.Context, a *Appointment) error {
	existing, err := s.repo.GetByID(ctx, a.ID)
	if err != nil {
		return err
	}
	if !IsActive(existing.Status) {
		return apperr.Invalid("a %s appointment cannot be modified", existing.Status)
	}
	a.Status = existing.Status
	a.LegacyID = existing.LegacyID
	a.CreatedAt = existing.CreatedAt
	if err := s.checkRefs(ctx, a); err != nil {
		return err
	}
	if err := s.checkSlot(ctx, a); err != nil {
		return err
	}
	return s.repo.Update(ctx, a)
}

func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*Appointment, error) {
	if !ValidStatus(status) {
		return nil, apperr.Invalid("unknown status %q", status)
	}
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status == status {
		return a, nil
	}
	if !CanTransition(a.Status, status) {
		return nil, apperr.Invalid("cannot change status from %s to %s", a.Status, status)
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, fmt.Errorf("update appointment status: %w", err)
	}
	a.Status = status
	return a, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Appointment, int, error) {
	if v := params["status"]; v != "" {
		for _, st := range strings.Split(v, ",") {
			if !ValidStatus(st) {
				return nil, 0, apperr.Invalid("unknown status %q", st)
			}
		}
	}
	return s.repo.Search(ctx, params, limit, offset)
}
