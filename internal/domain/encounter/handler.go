package encounter

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
	g := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleMedic))
	g.GET("/encounters", h.Search)
	g.GET("/encounters/:id", h.Get)
	g.POST("/encounters", h.Create)
	g.PUT("/encounters/:id", h.Update)
	g.DELETE("/encounters/:id", h.Delete)
	g.GET("/patients/:id/encounters", h.ListByPatient)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) Create(c echo.Context) error {
	var e Encounter
	if err := c.Bind(&e); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	e.ID = uuid.Nil
	if err := h.svc.Create(c.Request().Context(), &e); err != nil {
		return apperr.HTTP(err, "encounter")
	}
	return c.JSON(http.StatusCreated, e)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	e, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err, "encounter")
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) Search(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := make(map[string]string)
	for _, k := range []string{"patient", "medic", "date"} {
		if v := c.QueryParam(k); v != "" {
			params[k] = v
		}
	}
	items, total, err := h.svc.Search(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err, "encounter")
	}
	return c.JSON(http.StatusOK, pagination.FromRequest(c, items, total, pg))
}

func (h *Handler) ListByPatient(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByPatient(c.Request().Context(), id, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err, "encounter")
	}
	return c.JSON(http.StatusOK, pagination.FromRequest(c, items, total, pg))
}

func (h *Handler) Update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var e Encounter
	if err := c.Bind(&e); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	e.ID = id
	if err := h.svc.Update(c.Request().Context(), &e); err != nil {
		return apperr.HTTP(err, "encounter")
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return apperr.HTTP(err, "encounter")
	}
	return c.NoContent(http.StatusNoContent)
}
