package license

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medapp/medapp/internal/platform/auth"
)

func newRequest(ctx context.Context, method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req.WithContext(ctx)
}

func TestHandler_CreateAndGet(t *testing.T) {
	medic := uuid.New()
	h := NewHandler(NewService(newMockRepo(), stubUsers{medic: true}))
	e := echo.New()

	rec := httptest.NewRecorder()
	body := `{"user_id":"` + medic.String() + `","number":"MN-778","jurisdiction":"Buenos Aires","issued_at":"2019-03-01T00:00:00Z"}`
	c := e.NewContext(newRequest(adminCtx, http.MethodPost, "/api/v1/licenses", body), rec)
	if err := h.Create(c); err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.Code != http.StatusCreated || !strings.Contains(rec.Body.String(), `"number":"MN-778"`) {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
}

func TestHandler_CreateInvalid(t *testing.T) {
	h := NewHandler(NewService(newMockRepo(), stubUsers{}))
	e := echo.New()
	c := e.NewContext(newRequest(adminCtx, http.MethodPost, "/api/v1/licenses", `{"number":"x"}`), httptest.NewRecorder())

	err := h.Create(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_ListByUserForbidden(t *testing.T) {
	medic := uuid.New()
	h := NewHandler(NewService(newMockRepo(), stubUsers{medic: true}))
	e := echo.New()

	ctx := auth.WithUser(context.Background(), uuid.NewString(), []string{auth.RoleMedic})
	c := e.NewContext(newRequest(ctx, http.MethodGet, "/", ""), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(medic.String())

	err := h.ListByUser(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %v", err)
	}
}

func TestHandler_ListByUserEmpty(t *testing.T) {
	medic := uuid.New()
	h := NewHandler(NewService(newMockRepo(), stubUsers{medic: true}))
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(newRequest(adminCtx, http.MethodGet, "/", ""), rec)
	c.SetParamNames("id")
	c.SetParamValues(medic.String())
	if err := h.ListByUser(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("expected empty JSON array, got %s", rec.Body.String())
	}
}

func TestHandler_ListInvalidUserID(t *testing.T) {
	h := NewHandler(NewService(newMockRepo(), stubUsers{}))
	e := echo.New()
	c := e.NewContext(newRequest(adminCtx, http.MethodGet, "/api/v1/licenses?user_id=nope", ""), httptest.NewRecorder())

	err := h.List(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}
