package pagination

import (
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params holds pagination parameters extracted from a request.
type Params struct {
	Limit  int
	Offset int
}

// FromContext reads limit and offset, or limit and a 1-based page, from the
// query string. Out of range values are clamped.
func FromContext(c echo.Context) Params {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if page, _ := strconv.Atoi(c.QueryParam("page")); page > 1 && offset == 0 {
		offset = (page - 1) * limit
	}
	if offset < 0 {
		offset = 0
	}

	return Params{Limit: limit, Offset: offset}
}

// Links carries relative URLs for neighbouring pages.
type Links struct {
	Next     string `json:"next,omitempty"`
	Previous string `json:"previous,omitempty"`
}

// Response wraps a paginated API response.
type Response struct {
	Data    interface{} `json:"data"`
	Total   int         `json:"total"`
	Limit   int         `json:"limit"`
	Offset  int         `json:"offset"`
	HasMore bool        `json:"has_more"`
	Links   *Links      `json:"links,omitempty"`
}

func NewResponse(data interface{}, total, limit, offset int) *Response {
	return &Response{
		Data:    data,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+limit < total,
	}
}

// FromRequest builds a response and fills Links from the request URL, keeping
// its filters.
func FromRequest(c echo.Context, data interface{}, total int, p Params) *Response {
	resp := NewResponse(data, total, p.Limit, p.Offset)
	links := p.Links(c.Request().URL, total)
	if links.Next != "" || links.Previous != "" {
		resp.Links = &links
	}
	return resp
}

func (p Params) HasNext(total int) bool {
	return p.Offset+p.Limit < total
}

func (p Params) HasPrevious() bool {
	return p.Offset > 0
}

func (p Params) NextOffset() int {
	return p.Offset + p.Limit
}

// PreviousOffset never goes below zero.
func (p Params) PreviousOffset() int {
	prev := p.Offset - p.Limit
	if prev < 0 {
		return 0
	}
	return prev
}

// Links returns next/previous URLs relative to u.
func (p Params) Links(u *url.URL, total int) Links {
	var links Links
	if p.HasNext(total) {
		links.Next = p.pageURL(u, p.NextOffset())
	}
	if p.HasPrevious() {
		links.Previous = p.pageURL(u, p.PreviousOffset())
	}
	return links
}

func (p Params) pageURL(u *url.URL, offset int) string {
	q := u.Query()
	q.Del("page")
	q.Set("limit", strconv.Itoa(p.Limit))
	q.Set("offset", strconv.Itoa(offset))
	return u.Path + "?" + q.Encode()
}
