package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medapp/medapp/internal/platform/apperr"
	"github.com/medapp/medapp/internal/platform/auth"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrTOTPRequired       = errors.New("totp code required")
	ErrInvalidTOTP        = errors.New("invalid totp code")
)

// TokenIssuer is satisfied by *auth.TokenIssuer.
type TokenIssuer interface {
	Issue(userID, tenantID string, roles []string) (string, time.Time, error)
}

type Service struct {
	repo       Repository
	tokens     TokenIssuer
	totpIssuer string
	now        func() time.Time
}

func NewService(repo Repository, tokens TokenIssuer, totpIssuer string) *Service {
	return &Service{repo: repo, tokens: tokens, totpIssuer: totpIssuer, now: time.Now}
}

// caller returns the authenticated user id and whether they are an admin.
func caller(ctx context.Context) (uuid.UUID, bool) {
	id, _ := uuid.Parse(auth.UserIDFromContext(ctx))
	return id, auth.IsAdmin(auth.RolesFromContext(ctx))
}

func requireSelfOrAdmin(ctx context.Context, id uuid.UUID) error {
	self, admin := caller(ctx)
	if admin || self == id {
		return nil
	}
	return apperr.ErrForbidden
}

func validRoles(roles []string) error {
	if len(roles) == 0 {
		return apperr.Invalid("at least one role is required")
	}
	for _, r := range roles {
		if !auth.ValidRole(r) {
			return apperr.Invalid("unknown role %q", r)
		}
	}
	return nil
}

// Create registers a user with a bcrypt-hashed password. Usernames are
// unique ignoring case.
func (s *Service) Create(ctx context.Context, in CreateInput) (*User, error) {
	username := NormalizeUsername(in.Username)
	if username == "" {
		return nil, apperr.Invalid("username is required")
	}
	if in.FirstName == "" || in.LastName == "" {
		return nil, apperr.Invalid("first_name and last_name are required")
	}
	if err := validRoles(in.Roles); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		if errors.Is(err, auth.ErrWeakPassword) {
			return nil, apperr.Invalid("%s", err.Error())
		}
		return nil, err
	}

	if _, err := s.repo.GetByUsername(ctx, username); err == nil {
		return nil, apperr.Conflict("username %q is taken", username)
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	u := &User{
		Username:     username,
		PasswordHash: hash,
		Roles:        in.Roles,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        in.Email,
		Phone:        in.Phone,
		Specialty:    in.Specialty,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	if err := requireSelfOrAdmin(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*User, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*User, int, error) {
	return s.repo.Search(ctx, params, limit, offset)
}

// Update replaces the profile fields. Only admins may change roles.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*User, error) {
	if err := requireSelfOrAdmin(ctx, id); err != nil {
		return nil, err
	}
	if in.FirstName == "" || in.LastName == "" {
		return nil, apperr.Invalid("first_name and last_name are required")
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if len(in.Roles) > 0 {
		if _, admin := caller(ctx); !admin {
			return nil, apperr.ErrForbidden
		}
		if err := validRoles(in.Roles); err != nil {
			return nil, err
		}
		u.Roles = in.Roles
	}
	u.FirstName = in.FirstName
	u.LastName = in.LastName
	u.Email = in.Email
	u.Phone = in.Phone
	u.Specialty = in.Specialty

	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// ChangePassword requires the current password unless an admin is resetting
// someone else's.
func (s *Service) ChangePassword(ctx context.Context, id uuid.UUID, in ChangePasswordInput) error {
	if err := requireSelfOrAdmin(ctx, id); err != nil {
		return err
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	self, admin := caller(ctx)
	if !admin || self == id {
		if !auth.CheckPassword(u.PasswordHash, in.CurrentPassword) {
			return ErrInvalidCredentials
		}
	}
	hash, err := auth.HashPassword(in.NewPassword)
	if err != nil {
		if errors.Is(err, auth.ErrWeakPassword) {
			return apperr.Invalid("%s", err.Error())
		}
		return err
	}
	return s.repo.UpdatePassword(ctx, id, hash)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	self, admin := caller(ctx)
	if !admin {
		return apperr.ErrForbidden
	}
	if self == id {
		return apperr.Invalid("users cannot delete themselves")
	}
	return s.repo.Delete(ctx, id)
}

// Login checks credentials and, when the account has two-factor enabled, the
// TOTP code, then issues a token scoped to tenantID.
func (s *Service) Login(ctx context.Context, tenantID string, in LoginInput) (*LoginResult, error) {
	u, err := s.repo.GetByUsername(ctx, in.Username)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !auth.CheckPassword(u.PasswordHash, in.Password) {
		return nil, ErrInvalidCredentials
	}

	if u.TOTPEnabled {
		if in.TOTPCode == "" {
			return nil, ErrTOTPRequired
		}
		if u.TOTPSecret == nil || !auth.ValidateTOTP(in.TOTPCode, *u.TOTPSecret, s.now()) {
			return nil, ErrInvalidTOTP
		}
	}

	token, exp, err := s.tokens.Issue(u.ID.String(), tenantID, u.Roles)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return &LoginResult{Token: token, ExpiresAt: exp, User: u}, nil
}

// SetupTOTP stores a fresh, not yet enabled secret for the caller and returns
// it for enrollment in an authenticator app.
func (s *Service) SetupTOTP(ctx context.Context, id uuid.UUID) (*auth.TOTPEnrollment, error) {
	if self, _ := caller(ctx); self != id {
		return nil, apperr.ErrForbidden
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.TOTPEnabled {
		return nil, apperr.Conflict("two-factor authentication is already enabled")
	}
	enrollment, err := auth.GenerateTOTP(s.totpIssuer, u.Username)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateTOTP(ctx, id, &enrollment.Secret, false); err != nil {
		return nil, err
	}
	return enrollment, nil
}

// EnableTOTP turns two-factor on once the user proves the secret works.
func (s *Service) EnableTOTP(ctx context.Context, id uuid.UUID, code string) error {
	if self, _ := caller(ctx); self != id {
		return apperr.ErrForbidden
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if u.TOTPSecret == nil {
		return apperr.Invalid("two-factor setup has not been started")
	}
	if !auth.ValidateTOTP(code, *u.TOTPSecret, s.now()) {
		return ErrInvalidTOTP
	}
	return s.repo.UpdateTOTP(ctx, id, u.TOTPSecret, true)
}

// DisableTOTP requires a valid code from the user, while admins can disable
// another user's two-factor without one.
func (s *Service) DisableTOTP(ctx context.Context, id uuid.UUID, code string) error {
	if err := requireSelfOrAdmin(ctx, id); err != nil {
		return err
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !u.TOTPEnabled {
		return apperr.Invalid("two-factor authentication is not enabled")
	}
	self, admin := caller(ctx)
	if !admin || self == id {
		if u.TOTPSecret == nil || !auth.ValidateTOTP(code, *u.TOTPSecret, s.now()) {
			return ErrInvalidTOTP
		}
	}
	return s.repo.UpdateTOTP(ctx, id, nil, false)
}
