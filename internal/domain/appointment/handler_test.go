package appointment

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/medapp/medapp/internal/platform/validate"
)

func newTestHandler() (*Handler, *mockRepo, *echo.Echo) {
	svc, repo := newTestService()
	e := echo.New()
	e.Validator = validate.New()
	return NewHandler(svc), repo, e
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func httpStatus(err error) int {
	if he, ok := err.(*echo.HTTPError); ok {
		return he.Code
	}
	return 0
}

const bookingBody = `{"patient_id":"0b7e3a52-1f0e-4d2b-9a51-3c1f9f6b2a01",` +
	`"medic_id":"7d3c1a9e-5b2f-4e8a-b6c4-1a2b3c4d5e01","start_at":"2024-03-04T09:30:00Z","extra":{"reason":"control"}}`

func statusContext(e *echo.Echo, id, body string) (echo.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPut, "/", body), rec)
	c.SetParamNames("id")
	c.SetParamValues(id)
	return c, rec
}

func TestHandler_Create(t *testing.T) {
	h, _, e := newTestHandler()

	rec := httptest.NewRecorder()
	if err := h.Create(e.NewContext(jsonRequest(http.MethodPost, "/api/v1/appointments", bookingBody), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"status":"booked"`) || !strings.Contains(body, `"reason":"control"`) {
		t.Errorf("unexpected body %s", body)
	}

	err := h.Create(e.NewContext(jsonRequest(http.MethodPost, "/api/v1/appointments", bookingBody), httptest.NewRecorder()))
	if code := httpStatus(err); code != http.StatusConflict {
		t.Errorf("expected 409 for a taken slot, got %d", code)
	}
}

func TestHandler_UpdateStatus(t *testing.T) {
	h, repo, e := newTestHandler()
	if err := h.Create(e.NewContext(jsonRequest(http.MethodPost, "/", bookingBody), httptest.NewRecorder())); err != nil {
		t.Fatalf("create: %v", err)
	}
	var id string
	for k := range repo.appointments {
		id = k.String()
	}

	c, rec := statusContext(e, id, `{"status":"arrived"}`)
	if err := h.UpdateStatus(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"status":"arrived"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}

	c, _ = statusContext(e, id, `{"status":"booked"}`)
	if code := httpStatus(h.UpdateStatus(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400 for a backwards transition, got %d", code)
	}

	c, _ = statusContext(e, id, `{}`)
	if code := httpStatus(h.UpdateStatus(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400 without a status, got %d", code)
	}
}

func TestHandler_Search(t *testing.T) {
	h, _, e := newTestHandler()
	if err := h.Create(e.NewContext(jsonRequest(http.MethodPost, "/", bookingBody), httptest.NewRecorder())); err != nil {
		t.Fatalf("create: %v", err)
	}

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodGet, "/api/v1/appointments?status=booked", ""), rec)
	if err := h.Search(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"total":1`) {
		t.Errorf("expected one result, got %s", rec.Body.String())
	}
}
