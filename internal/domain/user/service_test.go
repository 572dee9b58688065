package user

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"

	"github.com/medapp/medapp/internal/platform/apperr"
	"github.com/medapp/medapp/internal/platform/auth"
)

type mockRepo struct {
	users map[uuid.UUID]*User
}

func newMockRepo() *mockRepo {
	return &mockRepo{users: make(map[uuid.UUID]*User)}
}

func (m *mockRepo) Create(_ context.Context, u *User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	m.users[u.ID] = u
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	u, ok := m.users[id]
	if !ok || u.DeletedAt != nil {
		return nil, apperr.ErrNotFound
	}
	return u, nil
}

func (m *mockRepo) GetByUsername(_ context.Context, username string) (*User, error) {
	for _, u := range m.users {
		if u.Username == NormalizeUsername(username) && u.DeletedAt == nil {
			return u, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (m *mockRepo) Update(_ context.Context, u *User) error {
	m.users[u.ID] = u
	return nil
}

func (m *mockRepo) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	u, ok := m.users[id]
	if !ok {
		return apperr.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (m *mockRepo) UpdateTOTP(_ context.Context, id uuid.UUID, secret *string, enabled bool) error {
	u, ok := m.users[id]
	if !ok {
		return apperr.ErrNotFound
	}
	u.TOTPSecret = secret
	u.TOTPEnabled = enabled
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	u, ok := m.users[id]
	if !ok || u.DeletedAt != nil {
		return apperr.ErrNotFound
	}
	now := time.Now()
	u.DeletedAt = &now
	return nil
}

func (m *mockRepo) List(ctx context.Context, limit, offset int) ([]*User, int, error) {
	return m.Search(ctx, nil, limit, offset)
}

func (m *mockRepo) Search(_ context.Context, params map[string]string, _, _ int) ([]*User, int, error) {
	var out []*User
	for _, u := range m.users {
		if u.DeletedAt != nil {
			continue
		}
		if q := params["q"]; q != "" && !strings.Contains(strings.ToLower(u.FullName()+" "+u.Username), strings.ToLower(q)) {
			continue
		}
		out = append(out, u)
	}
	return out, len(out), nil
}

func (m *mockRepo) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	_, ok := m.users[id]
	return ok, nil
}

type fakeIssuer struct {
	tenant string
}

func (f *fakeIssuer) Issue(userID, tenantID string, roles []string) (string, time.Time, error) {
	f.tenant = tenantID
	return "token-for-" + userID, time.Now().Add(time.Hour), nil
}

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo()
	return NewService(repo, &fakeIssuer{}, "medapp"), repo
}

func adminCtx() context.Context {
	return auth.WithUser(context.Background(), uuid.NewString(), []string{auth.RoleAdmin})
}

func userCtx(id uuid.UUID, roles ...string) context.Context {
	return auth.WithUser(context.Background(), id.String(), roles)
}

func createMedic(t *testing.T, svc *Service, username string) *User {
	t.Helper()
	u, err := svc.Create(adminCtx(), CreateInput{
		Username:  username,
		Password:  "s3cret-pass",
		Roles:     []string{auth.RoleMedic},
		FirstName: "Laura",
		LastName:  "Pérez",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return u
}

func TestCreate(t *testing.T) {
	svc, _ := newTestService()
	u := createMedic(t, svc, "  DrPerez ")

	if u.Username != "drperez" {
		t.Errorf("expected normalized username, got %q", u.Username)
	}
	if u.PasswordHash == "s3cret-pass" || !auth.CheckPassword(u.PasswordHash, "s3cret-pass") {
		t.Error("expected bcrypt hash of the password")
	}
}

func TestCreate_DuplicateUsername(t *testing.T) {
	svc, _ := newTestService()
	createMedic(t, svc, "drperez")

	_, err := svc.Create(adminCtx(), CreateInput{
		Username: "DRPEREZ", Password: "another-pass", Roles: []string{auth.RoleMedic}, FirstName: "A", LastName: "B",
	})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestCreate_Validation(t *testing.T) {
	svc, _ := newTestService()
	tests := []struct {
		name string
		in   CreateInput
	}{
		{"no username", CreateInput{Password: "longenough", Roles: []string{"medic"}, FirstName: "A", LastName: "B"}},
		{"unknown role", CreateInput{Username: "abc", Password: "longenough", Roles: []string{"nurse"}, FirstName: "A", LastName: "B"}},
		{"no roles", CreateInput{Username: "abc", Password: "longenough", FirstName: "A", LastName: "B"}},
		{"short password", CreateInput{Username: "abc", Password: "short", Roles: []string{"medic"}, FirstName: "A", LastName: "B"}},
		{"no name", CreateInput{Username: "abc", Password: "longenough", Roles: []string{"medic"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(adminCtx(), tt.in)
			var verr *apperr.ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestGet_SelfOrAdmin(t *testing.T) {
	svc, _ := newTestService()
	u := createMedic(t, svc, "drperez")

	if _, err := svc.Get(userCtx(u.ID, auth.RoleMedic), u.ID); err != nil {
		t.Errorf("self read failed: %v", err)
	}
	if _, err := svc.Get(adminCtx(), u.ID); err != nil {
		t.Errorf("admin read failed: %v", err)
	}
	if _, err := svc.Get(userCtx(uuid.New(), auth.RoleReceptionist), u.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
}

func TestUpdate_RolesAdminOnly(t *testing.T) {
	svc, _ := newTestService()
	u := createMedic(t, svc, "drperez")

	_, err := svc.Update(userCtx(u.ID, auth.RoleMedic), u.ID, UpdateInput{FirstName: "Laura", LastName: "Pérez", Roles: []string{auth.RoleAdmin}})
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected ErrForbidden for self role escalation, got %v", err)
	}

	updated, err := svc.Update(adminCtx(), u.ID, UpdateInput{FirstName: "Laura", LastName: "Gómez", Roles: []string{auth.RoleMedic, auth.RoleReceptionist}})
	if err != nil {
		t.Fatalf("admin update: %v", err)
	}
	if updated.LastName != "Gómez" || len(updated.Roles) != 2 {
		t.Errorf("unexpected user after update: %+v", updated)
	}
}

func TestChangePassword(t *testing.T) {
	svc, repo := newTestService()
	u := createMedic(t, svc, "drperez")
	ctx := userCtx(u.ID, auth.RoleMedic)

	err := svc.ChangePassword(ctx, u.ID, ChangePasswordInput{CurrentPassword: "wrong", NewPassword: "brand-new-pass"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}

	if err := svc.ChangePassword(ctx, u.ID, ChangePasswordInput{CurrentPassword: "s3cret-pass", NewPassword: "brand-new-pass"}); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if !auth.CheckPassword(repo.users[u.ID].PasswordHash, "brand-new-pass") {
		t.Error("expected new password to be stored")
	}

	if err := svc.ChangePassword(adminCtx(), u.ID, ChangePasswordInput{NewPassword: "admin-reset-pass"}); err != nil {
		t.Fatalf("admin reset: %v", err)
	}
}

func TestDelete(t *testing.T) {
	svc, _ := newTestService()
	u := createMedic(t, svc, "drperez")

	if err := svc.Delete(userCtx(u.ID, auth.RoleMedic), u.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	if err := svc.Delete(userCtx(u.ID, auth.RoleAdmin), u.ID); err == nil {
		t.Error("expected admins to be unable to delete themselves")
	}
	if err := svc.Delete(adminCtx(), u.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(adminCtx(), u.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected deleted user to be hidden, got %v", err)
	}
}

func TestLogin(t *testing.T) {
	repo := newMockRepo()
	issuer := &fakeIssuer{}
	svc := NewService(repo, issuer, "medapp")
	u := createMedic(t, svc, "drperez")

	res, err := svc.Login(context.Background(), "clinica_norte", LoginInput{Username: "DrPerez", Password: "s3cret-pass"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Token != "token-for-"+u.ID.String() || issuer.tenant != "clinica_norte" {
		t.Errorf("unexpected login result %+v (tenant %s)", res, issuer.tenant)
	}

	if _, err := svc.Login(context.Background(), "t", LoginInput{Username: "drperez", Password: "nope"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(context.Background(), "t", LoginInput{Username: "ghost", Password: "s3cret-pass"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestTOTPFlow(t *testing.T) {
	svc, _ := newTestService()
	u := createMedic(t, svc, "drperez")
	ctx := userCtx(u.ID, auth.RoleMedic)

	if _, err := svc.SetupTOTP(adminCtx(), u.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("setup must be done by the user, got %v", err)
	}

	enrollment, err := svc.SetupTOTP(ctx, u.ID)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := svc.EnableTOTP(ctx, u.ID, "000000"); !errors.Is(err, ErrInvalidTOTP) {
		t.Errorf("expected ErrInvalidTOTP, got %v", err)
	}
	code, _ := totp.GenerateCode(enrollment.Secret, time.Now())
	if err := svc.EnableTOTP(ctx, u.ID, code); err != nil {
		t.Fatalf("enable: %v", err)
	}

	_, err = svc.Login(context.Background(), "t", LoginInput{Username: "drperez", Password: "s3cret-pass"})
	if !errors.Is(err, ErrTOTPRequired) {
		t.Errorf("expected ErrTOTPRequired, got %v", err)
	}
	_, err = svc.Login(context.Background(), "t", LoginInput{Username: "drperez", Password: "s3cret-pass", TOTPCode: "123456x"})
	if !errors.Is(err, ErrInvalidTOTP) {
		t.Errorf("expected ErrInvalidTOTP, got %v", err)
	}
	code, _ = totp.GenerateCode(enrollment.Secret, time.Now())
	if _, err := svc.Login(context.Background(), "t", LoginInput{Username: "drperez", Password: "s3cret-pass", TOTPCode: code}); err != nil {
		t.Fatalf("login with totp: %v", err)
	}

	if err := svc.DisableTOTP(adminCtx(), u.ID, ""); err != nil {
		t.Fatalf("admin disable: %v", err)
	}
	if _, err := svc.Login(context.Background(), "t", LoginInput{Username: "drperez", Password: "s3cret-pass"}); err != nil {
		t.Errorf("expected login without totp after disable, got %v", err)
	}
}
