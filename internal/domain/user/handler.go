package user

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medapp/medapp/internal/platform/apperr"
	"github.com/medapp/medapp/internal/platform/auth"
	"github.com/medapp/medapp/internal/platform/db"
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
	api.POST("/auth/login", h.Login)

	all := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleMedic, auth.RoleReceptionist))
	all.GET("/users", h.Search)
	all.GET("/users/me", h.Me)
	all.GET("/users/:id", h.Get)
	all.PUT("/users/:id", h.Update)
	all.PUT("/users/:id/password", h.ChangePassword)
	all.POST("/users/:id/totp/setup", h.SetupTOTP)
	all.POST("/users/:id/totp/enable", h.EnableTOTP)
	all.POST("/users/:id/totp/disable", h.DisableTOTP)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.POST("/users", h.Create)
	admin.DELETE("/users/:id", h.Delete)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrTOTPRequired):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrInvalidTOTP):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	return apperr.HTTP(err, "user")
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) Login(c echo.Context) error {
	var in LoginInput
	if err := validate.Bind(c, &in); err != nil {
		return err
	}
	tenant := db.TenantFromContext(c.Request().Context())
	res, err := h.svc.Login(c.Request().Context(), tenant, in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) Create(c echo.Context) error {
	var in CreateInput
	if err := validate.Bind(c, &in); err != nil {
		return err
	}
	u, err := h.svc.Create(c.Request().Context(), in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, u)
}

func (h *Handler) Me(c echo.Context) error {
	id, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}
	u, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	u, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) Search(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := map[string]string{}
	for _, k := range []string{"q", "username", "role", "specialty"} {
		if v := c.QueryParam(k); v != "" {
			params[k] = v
		}
	}
	users, total, err := h.svc.Search(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.FromRequest(c, users, total, pg))
}

func (h *Handler) Update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in UpdateInput
	if err := validate.Bind(c, &in); err != nil {
		return err
	}
	u, err := h.svc.Update(c.Request().Context(), id, in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) ChangePassword(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in ChangePasswordInput
	if err := validate.Bind(c, &in); err != nil {
		return err
	}
	if err := h.svc.ChangePassword(c.Request().Context(), id, in); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) SetupTOTP(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	enrollment, err := h.svc.SetupTOTP(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, enrollment)
}

func (h *Handler) EnableTOTP(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in TOTPCodeInput
	if err := validate.Bind(c, &in); err != nil {
		return err
	}
	if err := h.svc.EnableTOTP(c.Request().Context(), id, in.Code); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) DisableTOTP(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in struct {
		Code string `json:"code"`
	}
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.DisableTOTP(c.Request().Context(), id, in.Code); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
