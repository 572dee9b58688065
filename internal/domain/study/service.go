package study

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
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

// normalizeTypes lower-cases, dedupes and checks the ordered panels.
func normalizeTypes(types []string) ([]string, error) {
	seen := make(map[string]bool, len(types))
	out := make([]string, 0, len(types))
	for _, t := range types {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		if !ValidPanel(t) {
			return nil, apperr.Invalid("unknown study type %q", t)
		}
		seen[t] = true
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil, apperr.Invalid("at least one study type is required")
	}
	return out, nil
}

func (s *Service) validateStudy(ctx context.Context, st *Study) error {
	if st.PatientID == uuid.Nil {
		return apperr.Invalid("patient_id is required")
	}
	types, err := normalizeTypes(st.Types)
	if err != nil {
		return err
	}
	st.Types = types
	if _, err := s.patients.GetByID(ctx, st.PatientID); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return apperr.Invalid("patient %s does not exist", st.PatientID)
		}
		return err
	}
	if st.MedicID != nil {
		if _, err := s.users.GetByID(ctx, *st.MedicID); err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return apperr.Invalid("medic %s does not exist", *st.MedicID)
			}
			return err
		}
	}
	return nil
}

// CreateStudy orders a study. A medic ordering without medic_id is recorded
// as the ordering medic.
func (s *Service) CreateStudy(ctx context.Context, st *Study) error {
	roles := auth.RolesFromContext(ctx)
	if st.MedicID == nil && !auth.IsAdmin(roles) {
		if id, err := uuid.Parse(auth.UserIDFromContext(ctx)); err == nil {
			st.MedicID = &id
		}
	}
	if err := s.validateStudy(ctx, st); err != nil {
		return err
	}
	if st.Date.IsZero() {
		st.Date = s.now().UTC()
	}
	return s.repo.CreateStudy(ctx, st)
}

// GetStudy returns the study with its live results.
func (s *Service) GetStudy(ctx context.Context, id uuid.UUID) (*Study, error) {
	st, err := s.repo.GetStudy(ctx, id)
	if err != nil {
		return nil, err
	}
	results, err := s.repo.ListResults(ctx, id)
	if err != nil {
		return nil, err
	}
	st.Results = results
	return st, nil
}

// UpdateStudy replaces the study. A panel that already has results cannot be
// removed from the study.
func (s *Service) UpdateStudy(ctx context.Context, st *Study) error {
	existing, err := s.repo.GetStudy(ctx, st.ID)
	if err != nil {
		return err
	}
	if st.PatientID == uuid.Nil {
		st.PatientID = existing.PatientID
	}
	if st.Date.IsZero() {
		st.Date = existing.Date
	}
	if err := s.validateStudy(ctx, st); err != nil {
		return err
	}
	results, err := s.repo.ListResults(ctx, st.ID)
	if err != nil {
		return err
	}
	for _, r := range results {
		if !st.HasType(r.Type) {
			return apperr.Invalid("type %s has results and cannot be removed", r.Type)
		}
	}
	st.LegacyID = existing.LegacyID
	st.CreatedAt = existing.CreatedAt
	st.Results = nil
	return s.repo.UpdateStudy(ctx, st)
}

func (s *Service) DeleteStudy(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteStudy(ctx, id)
}

func (s *Service) SearchStudies(ctx context.Context, params map[string]string, limit, offset int) ([]*Study, int, error) {
	if t := params["type"]; t != "" && !ValidPanel(t) {
		return nil, 0, apperr.Invalid("unknown study type %q", t)
	}
	return s.repo.SearchStudies(ctx, params, limit, offset)
}

func validateResult(st *Study, r *Result) error {
	r.Type = strings.ToLower(strings.TrimSpace(r.Type))
	if !st.HasType(r.Type) {
		return apperr.Invalid("study %s did not order type %q", st.ID, r.Type)
	}
	if len(r.Data) > 0 && !json.Valid(r.Data) {
		return apperr.Invalid("data must be valid JSON")
	}
	return nil
}

func (s *Service) AddResult(ctx context.Context, studyID uuid.UUID, r *Result) error {
	st, err := s.repo.GetStudy(ctx, studyID)
	if err != nil {
		return err
	}
	r.StudyID = studyID
	if err := validateResult(st, r); err != nil {
		return err
	}
	return s.repo.CreateResult(ctx, r)
}

func (s *Service) ListResults(ctx context.Context, studyID uuid.UUID) ([]*Result, error) {
	if _, err := s.repo.GetStudy(ctx, studyID); err != nil {
		return nil, err
	}
	return s.repo.ListResults(ctx, studyID)
}

// result loads a result and checks it belongs to studyID.
func (s *Service) result(ctx context.Context, studyID, id uuid.UUID) (*Result, error) {
	r, err := s.repo.GetResult(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.StudyID != studyID {
		return nil, apperr.ErrNotFound
	}
	return r, nil
}

func (s *Service) GetResult(ctx context.Context, studyID, id uuid.UUID) (*Result, error) {
	return s.result(ctx, studyID, id)
}

func (s *Service) UpdateResult(ctx context.Context, studyID uuid.UUID, r *Result) error {
	existing, err := s.result(ctx, studyID, r.ID)
	if err != nil {
		return err
	}
	st, err := s.repo.GetStudy(ctx, studyID)
	if err != nil {
		return err
	}
	if r.Type == "" {
		r.Type = existing.Type
	}
	r.StudyID = studyID
	if err := validateResult(st, r); err != nil {
		return err
	}
	r.LegacyID = existing.LegacyID
	r.CreatedAt = existing.CreatedAt
	return s.repo.UpdateResult(ctx, r)
}

func (s *Service) DeleteResult(ctx context.Context, studyID, id uuid.UUID) error {
	if _, err := s.result(ctx, studyID, id); err != nil {
		return err
	}
	return s.repo.DeleteResult(ctx, id)
}
