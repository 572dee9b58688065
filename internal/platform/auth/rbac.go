package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	RoleAdmin        = "admin"
	RoleMedic        = "medic"
	RoleReceptionist = "receptionist"
)

// ValidRole reports whether r is a role the application knows about.
func ValidRole(r string) bool {
	switch r {
	case RoleAdmin, RoleMedic, RoleReceptionist:
		return true
	}
	return false
}

// HasRole reports whether roles grants role. Admin grants everything.
func HasRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role || r == RoleAdmin {
			return true
		}
	}
	return false
}

// IsAdmin reports whether roles contains the admin role.
func IsAdmin(roles []string) bool {
	for _, r := range roles {
		if r == RoleAdmin {
			return true
		}
	}
	return false
}

// RequireRole returns middleware that checks if the user has at least one of the specified roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userRoles := RolesFromContext(c.Request().Context())
			for _, required := range roles {
				if HasRole(userRoles, required) {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}
