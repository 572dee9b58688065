package appointment

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medapp/medapp/internal/platform/apperr"
	"github.com/medapp/medapp/internal/platform/auth"
	"github.com/medapp/medapp/internal/platform/validate"
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
	g.GET("/appointments", h.Search)
	g.GET("/appointments/:id", h.Get)
	g.POST("/appointments", h.Create)
	g.PUT("/appointments/:id", h.Update)
	g.PUT("/appointments/:id/status", h.UpdateStatus)
	g.DELETE("/appointments/:id", h.Delete)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) Create(c echo.Context) error {
	var a Appointment
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a.ID = uuid.Nil
	if err := h.svc.Create(c.Request().Context(), &a); err != nil {
		return apperr.HTTP(err, "appointment")
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err, "appointment")
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Search(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := make(map[string]string)
	for _, k := range []string{"patient", "medic", "date", "status"} {
		if v := c.QueryParam(k); v != "" {
			params[k] = v
		}
	}
	items, total, err := h.svc.Search(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err, "appointment")
	}
	return c.JSON(http.StatusOK, pagination.FromRequest(c, items, total, pg))
}

func (h *Handler) Update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var a Appointment
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a.ID = id
	if err := h.svc.Update(c.Request().Context(), &a); err != nil {
		return apperr.HTTP(err, "appointment")
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in StatusInput
	if err := validate.Bind(c, &in); err != nil {
		return err
	}
	a, err := h.svc.UpdateStatus(c.Request().Context(), id, in.Status)
	if err != nil {
		return apperr.HTTP(err, "appointment")
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return apperr.HTTP(err, "appointment")
	}
	return c.NoContent(http.StatusNoContent)
}
