package study

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func request(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req.WithContext(medicCtx())
}

func withIDs(c echo.Context, names []string, values ...string) echo.Context {
	c.SetParamNames(names...)
	c.SetParamValues(values...)
	return c
}

func TestHandler_StudyWithResults(t *testing.T) {
	svc, repo := newTestService()
	h := NewHandler(svc)
	e := echo.New()

	rec := httptest.NewRecorder()
	body := `{"patient_id":"` + patientID.String() + `","types":["hemogram"]}`
	if err := h.CreateStudy(e.NewContext(request(http.MethodPost, "/api/v1/studies", body), rec)); err != nil {
		t.Fatalf("create study: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	var studyID string
	for id := range repo.studies {
		studyID = id.String()
	}

	rec = httptest.NewRecorder()
	c := withIDs(e.NewContext(request(http.MethodPost, "/", `{"type":"hemogram","data":{"hb":13.5}}`), rec), []string{"id"}, studyID)
	if err := h.AddResult(c); err != nil {
		t.Fatalf("add result: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	c = withIDs(e.NewContext(request(http.MethodGet, "/", ""), rec), []string{"id"}, studyID)
	if err := h.GetStudy(c); err != nil {
		t.Fatalf("get study: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"hb":13.5`) {
		t.Errorf("expected result data in body, got %s", rec.Body.String())
	}
}

func TestHandler_AddResultWrongType(t *testing.T) {
	svc, _ := newTestService()
	h := NewHandler(svc)
	e := echo.New()
	st := newStudy(t, svc, "hemogram")

	c := withIDs(e.NewContext(request(http.MethodPost, "/", `{"type":"thyroid","data":{}}`), httptest.NewRecorder()), []string{"id"}, st.ID.String())
	he, ok := h.AddResult(c).(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", he)
	}
}

func TestHandler_GetResultBadID(t *testing.T) {
	svc, _ := newTestService()
	h := NewHandler(svc)
	e := echo.New()

	c := withIDs(e.NewContext(request(http.MethodGet, "/", ""), httptest.NewRecorder()), []string{"id", "result_id"}, uuid0, "nope")
	he, ok := h.GetResult(c).(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", he)
	}
}

const uuid0 = "00000000-0000-0000-0000-000000000000"
