// Package apperr holds the error values shared by the domain services and
// their translation to HTTP responses.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/labstack/echo/v4"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
	ErrConflict  = errors.New("conflict")
)

// ValidationError reports bad input. Its message is safe to show to clients.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func Invalid(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// Conflict wraps ErrConflict with a client-facing reason.
func Conflict(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// FromPG maps driver errors onto the shared sentinels. Unique violations
// become ErrConflict and foreign key violations become validation errors.
func FromPG(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
		case "23503":
			return Invalid("referenced record does not exist (%s)", pgErr.ConstraintName)
		}
	}
	return err
}

// HTTP converts a service error into an echo error. resource names the
// entity in not-found messages.
func HTTP(err error, resource string) error {
	var verr *ValidationError
	var herr *echo.HTTPError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &herr):
		return herr
	case errors.As(err, &verr):
		return echo.NewHTTPError(http.StatusBadRequest, verr.Msg)
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, resource+" not found")
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, "forbidden")
	case errors.Is(err, ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
}
