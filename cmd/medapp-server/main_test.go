package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/medapp/medapp/internal/config"
	"github.com/medapp/medapp/internal/platform/auth"
	"github.com/medapp/medapp/internal/platform/phi"
)

func testConfig(env string) *config.Config {
	return &config.Config{
		Env:            env,
		Port:           "0",
		DefaultTenant:  "default",
		CORSOrigins:    []string{"http://localhost:3000"},
		AuthSigningKey: strings.Repeat("k", 32),
		AuthTokenTTL:   time.Hour,
		AuthIssuer:     "medapp",
	}
}

func newTestServer(t *testing.T, env string) http.Handler {
	t.Helper()
	phiSvc, err := phi.NewService("", zerolog.Nop())
	if err != nil {
		t.Fatalf("phi service: %v", err)
	}
	// Nothing below reaches the database.
	return newServer(testConfig(env), nil, phiSvc, zerolog.Nop())
}

func TestServer_Health(t *testing.T) {
	e := newTestServer(t, "production")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), version) {
		t.Errorf("expected version in body, got %s", rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected request id header")
	}
}

func TestServer_RequiresToken(t *testing.T) {
	e := newTestServer(t, "production")
	for _, path := range []string{
		"/api/v1/patients", "/api/v1/encounters", "/api/v1/appointments", "/api/v1/studies",
		"/api/v1/licenses", "/api/v1/users",
	} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", path, rec.Code)
		}
	}
}

func TestServer_RejectsForeignToken(t *testing.T) {
	e := newTestServer(t, "production")
	other := auth.NewTokenIssuer([]byte(strings.Repeat("x", 32)), "medapp", time.Hour)
	token, _, err := other.Issue("00000000-0000-0000-0000-000000000001", "default", []string{auth.RoleAdmin})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestServer_InvalidTenant(t *testing.T) {
	e := newTestServer(t, "production")
	issuer := auth.NewTokenIssuer([]byte(strings.Repeat("k", 32)), "medapp", time.Hour)
	token, _, err := issuer.Issue("00000000-0000-0000-0000-000000000001", "", []string{auth.RoleAdmin})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Tenant-ID", "bad-tenant;drop")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}
