package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func contextWithRoles(roles ...string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithUser(context.Background(), "user-1", roles))
	return e.NewContext(req, httptest.NewRecorder())
}

func TestRequireRole_Allowed(t *testing.T) {
	c := contextWithRoles(RoleMedic)
	if err := RequireRole(RoleMedic, RoleReceptionist)(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRequireRole_Denied(t *testing.T) {
	c := contextWithRoles(RoleReceptionist)
	err := RequireRole(RoleMedic)(okHandler)(c)
	assertStatus(t, err, http.StatusForbidden)
}

func TestRequireRole_NoRoles(t *testing.T) {
	c := contextWithRoles()
	err := RequireRole(RoleMedic)(okHandler)(c)
	assertStatus(t, err, http.StatusForbidden)
}

func TestRequireRole_AdminBypass(t *testing.T) {
	c := contextWithRoles(RoleAdmin)
	if err := RequireRole(RoleMedic)(okHandler)(c); err != nil {
		t.Fatalf("admin should bypass role check: %v", err)
	}
}

func TestHasRole(t *testing.T) {
	tests := []struct {
		roles []string
		role  string
		want  bool
	}{
		{[]string{RoleMedic}, RoleMedic, true},
		{[]string{RoleMedic}, RoleReceptionist, false},
		{[]string{RoleAdmin}, RoleReceptionist, true},
		{nil, RoleMedic, false},
	}
	for _, tt := range tests {
		if got := HasRole(tt.roles, tt.role); got != tt.want {
			t.Errorf("HasRole(%v, %q) = %v, want %v", tt.roles, tt.role, got, tt.want)
		}
	}
}

func TestValidRole(t *testing.T) {
	for _, r := range []string{RoleAdmin, RoleMedic, RoleReceptionist} {
		if !ValidRole(r) {
			t.Errorf("expected %q to be valid", r)
		}
	}
	if ValidRole("physician") {
		t.Error("expected physician to be rejected")
	}
}

func TestUserIDFromContext(t *testing.T) {
	if uid := UserIDFromContext(context.Background()); uid != "" {
		t.Errorf("expected empty user id, got %q", uid)
	}
	ctx := WithUser(context.Background(), "u-9", []string{RoleMedic})
	if uid := UserIDFromContext(ctx); uid != "u-9" {
		t.Errorf("expected u-9, got %q", uid)
	}
}
