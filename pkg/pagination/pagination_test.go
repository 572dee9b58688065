package pagination

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func contextFor(target string) echo.Context {
	e := echo.New()
	return e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())
}

func TestFromContext_Defaults(t *testing.T) {
	p := FromContext(contextFor("/"))
	if p.Limit != DefaultLimit {
		t.Errorf("expected default limit %d, got %d", DefaultLimit, p.Limit)
	}
	if p.Offset != 0 {
		t.Errorf("expected default offset 0, got %d", p.Offset)
	}
}

func TestFromContext_CustomValues(t *testing.T) {
	p := FromContext(contextFor("/?limit=50&offset=10"))
	if p.Limit != 50 || p.Offset != 10 {
		t.Errorf("expected 50/10, got %d/%d", p.Limit, p.Offset)
	}
}

func TestFromContext_Page(t *testing.T) {
	p := FromContext(contextFor("/?limit=25&page=3"))
	if p.Offset != 50 {
		t.Errorf("expected offset 50 for page 3, got %d", p.Offset)
	}
}

func TestFromContext_MaxLimit(t *testing.T) {
	p := FromContext(contextFor("/?limit=1000"))
	if p.Limit != MaxLimit {
		t.Errorf("expected limit capped at %d, got %d", MaxLimit, p.Limit)
	}
}

func TestFromContext_NegativeOffset(t *testing.T) {
	p := FromContext(contextFor("/?offset=-5"))
	if p.Offset != 0 {
		t.Errorf("expected offset 0, got %d", p.Offset)
	}
}

func TestNewResponse(t *testing.T) {
	resp := NewResponse([]string{"a", "b"}, 10, 2, 0)
	if resp.Total != 10 || !resp.HasMore {
		t.Errorf("unexpected response: %+v", resp)
	}
	resp = NewResponse([]string{"a"}, 3, 2, 2)
	if resp.HasMore {
		t.Error("expected HasMore false on the last page")
	}
}

func TestParams_Offsets(t *testing.T) {
	p := Params{Limit: 20, Offset: 10}
	if p.NextOffset() != 30 {
		t.Errorf("expected next offset 30, got %d", p.NextOffset())
	}
	if p.PreviousOffset() != 0 {
		t.Errorf("expected previous offset clamped to 0, got %d", p.PreviousOffset())
	}
	if !p.HasPrevious() || !p.HasNext(31) || p.HasNext(30) {
		t.Error("unexpected HasPrevious/HasNext")
	}
}

func TestParams_Links_KeepsFilters(t *testing.T) {
	u, _ := url.Parse("/api/v1/patients?q=garcia&page=2&limit=10")
	links := Params{Limit: 10, Offset: 10}.Links(u, 35)

	if !strings.Contains(links.Next, "q=garcia") || !strings.Contains(links.Next, "offset=20") {
		t.Errorf("unexpected next link %q", links.Next)
	}
	if strings.Contains(links.Next, "page=") {
		t.Errorf("page must be replaced by offset, got %q", links.Next)
	}
	if !strings.Contains(links.Previous, "offset=0") {
		t.Errorf("unexpected previous link %q", links.Previous)
	}
}

func TestFromRequest_NoLinksOnSinglePage(t *testing.T) {
	c := contextFor("/api/v1/patients")
	resp := FromRequest(c, []int{1}, 1, FromContext(c))
	if resp.Links != nil {
		t.Errorf("expected no links, got %+v", resp.Links)
	}
}
