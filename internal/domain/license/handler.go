package license

import (
	"net/http"
	"strconv"

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
	read := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleMedic))
	read.GET("/licenses/:id", h.Get)
	read.GET("/users/:id/licenses", h.ListByUser)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.GET("/licenses", h.List)
	admin.POST("/licenses", h.Create)
	admin.PUT("/licenses/:id", h.Update)
	admin.DELETE("/licenses/:id", h.Delete)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) Create(c echo.Context) error {
	var l License
	if err := c.Bind(&l); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.Create(c.Request().Context(), &l); err != nil {
		return apperr.HTTP(err, "license")
	}
	return c.JSON(http.StatusCreated, l)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	l, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err, "license")
	}
	return c.JSON(http.StatusOK, l)
}

func (h *Handler) ListByUser(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	licenses, err := h.svc.ListByUser(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err, "license")
	}
	if licenses == nil {
		licenses = []*License{}
	}
	return c.JSON(http.StatusOK, licenses)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	var userID *uuid.UUID
	if raw := c.QueryParam("user_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid user_id")
		}
		userID = &id
	}
	active, _ := strconv.ParseBool(c.QueryParam("active"))

	licenses, total, err := h.svc.List(c.Request().Context(), userID, active, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err, "license")
	}
	return c.JSON(http.StatusOK, pagination.FromRequest(c, licenses, total, pg))
}

func (h *Handler) Update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var l License
	if err := c.Bind(&l); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	l.ID = id
	if err := h.svc.Update(c.Request().Context(), &l); err != nil {
		return apperr.HTTP(err, "license")
	}
	return c.JSON(http.StatusOK, l)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return apperr.HTTP(err, "license")
	}
	return c.NoContent(http.StatusNoContent)
}
