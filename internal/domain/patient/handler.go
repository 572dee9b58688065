package patient

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medapp/medapp/internal/platform/apperr"
	"github.com/medapp/medapp/internal/platform/auth"
	"github.com/medapp/medapp/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleMedic, auth.RoleReceptionist))
	g.GET("/patients", h.Search)
	g.GET("/patients/by-document/:document", h.GetByDocument)
	g.GET("/patients/:id", h.Get)
	g.POST("/patients", h.Create)
	g.PUT("/patients/:id", h.Update)
	g.DELETE("/patients/:id", h.Delete)
}

var searchParams = []string{"q", "gender", "birth_date", "insurer", "synthesized"}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) Create(c echo.Context) error {
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p.ID = uuid.Nil
	p.Synthesized = false
	if err := h.svc.Create(c.Request().Context(), &p); err != nil {
		return apperr.HTTP(err, "patient")
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err, "patient")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) GetByDocument(c echo.Context) error {
	p, err := h.svc.GetByDocument(c.Request().Context(), c.Param("document"))
	if err != nil {
		return apperr.HTTP(err, "patient")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Search(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := make(map[string]string)
	for _, k := range searchParams {
		if v := c.QueryParam(k); v != "" {
			params[k] = v
		}
	}
	patients, total, err := h.svc.Search(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err, "patient")
	}
	return c.JSON(http.StatusOK, pagination.FromRequest(c, patients, total, pg))
}

func (h *Handler) Update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p.ID = id
	if err := h.svc.Update(c.Request().Context(), &p); err != nil {
		return apperr.HTTP(err, "patient")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return apperr.HTTP(err, "patient")
	}
	return c.NoContent(http.StatusNoContent)
}
