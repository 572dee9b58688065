package study

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
	g.GET("/studies", h.SearchStudies)
	g.GET("/studies/:id", h.GetStudy)
	g.POST("/studies", h.CreateStudy)
	g.PUT("/studies/:id", h.UpdateStudy)
	g.DELETE("/studies/:id", h.DeleteStudy)

	g.GET("/studies/:id/results", h.ListResults)
	g.POST("/studies/:id/results", h.AddResult)
	g.GET("/studies/:id/results/:result_id", h.GetResult)
	g.PUT("/studies/:id/results/:result_id", h.UpdateResult)
	g.DELETE("/studies/:id/results/:result_id", h.DeleteResult)
}

func parseUUID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func (h *Handler) CreateStudy(c echo.Context) error {
	var st Study
	if err := c.Bind(&st); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	st.ID = uuid.Nil
	st.Results = nil
	if err := h.svc.CreateStudy(c.Request().Context(), &st); err != nil {
		return apperr.HTTP(err, "study")
	}
	return c.JSON(http.StatusCreated, st)
}

func (h *Handler) GetStudy(c echo.Context) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return err
	}
	st, err := h.svc.GetStudy(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err, "study")
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) SearchStudies(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := make(map[string]string)
	for _, k := range []string{"patient", "medic", "date", "type"} {
		if v := c.QueryParam(k); v != "" {
			params[k] = v
		}
	}
	items, total, err := h.svc.SearchStudies(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err, "study")
	}
	return c.JSON(http.StatusOK, pagination.FromRequest(c, items, total, pg))
}

func (h *Handler) UpdateStudy(c echo.Context) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return err
	}
	var st Study
	if err := c.Bind(&st); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	st.ID = id
	if err := h.svc.UpdateStudy(c.Request().Context(), &st); err != nil {
		return apperr.HTTP(err, "study")
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) DeleteStudy(c echo.Context) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteStudy(c.Request().Context(), id); err != nil {
		return apperr.HTTP(err, "study")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListResults(c echo.Context) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return err
	}
	results, err := h.svc.ListResults(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err, "study")
	}
	if results == nil {
		results = []*Result{}
	}
	return c.JSON(http.StatusOK, results)
}

func (h *Handler) AddResult(c echo.Context) error {
	studyID, err := parseUUID(c, "id")
	if err != nil {
		return err
	}
	var r Result
	if err := c.Bind(&r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	r.ID = uuid.Nil
	if err := h.svc.AddResult(c.Request().Context(), studyID, &r); err != nil {
		return apperr.HTTP(err, "study")
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *Handler) GetResult(c echo.Context) error {
	studyID, err := parseUUID(c, "id")
	if err != nil {
		return err
	}
	id, err := parseUUID(c, "result_id")
	if err != nil {
		return err
	}
	r, err := h.svc.GetResult(c.Request().Context(), studyID, id)
	if err != nil {
		return apperr.HTTP(err, "result")
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) UpdateResult(c echo.Context) error {
	studyID, err := parseUUID(c, "id")
	if err != nil {
		return err
	}
	id, err := parseUUID(c, "result_id")
	if err != nil {
		return err
	}
	var r Result
	if err := c.Bind(&r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	r.ID = id
	if err := h.svc.UpdateResult(c.Request().Context(), studyID, &r); err != nil {
		return apperr.HTTP(err, "result")
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) DeleteResult(c echo.Context) error {
	studyID, err := parseUUID(c, "id")
	if err != nil {
		return err
	}
	id, err := parseUUID(c, "result_id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteResult(c.Request().Context(), studyID, id); err != nil {
		return apperr.HTTP(err, "result")
	}
	return c.NoContent(http.StatusNoContent)
}
