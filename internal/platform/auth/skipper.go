package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths bypass authentication. Login needs the tenant middleware, so
// it is listed separately from the infrastructure endpoints.
var publicPaths = map[string]bool{
	"/health":    true,
	"/health/db": true,
}

var unauthenticatedPaths = map[string]bool{
	"/api/v1/auth/login": true,
}

// AuthSkipper returns true for requests that do not need a bearer token.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()] || unauthenticatedPaths[c.Path()]
}

// TenantSkipper returns true for requests that need no tenant connection.
func TenantSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}

// IsPublicPath reports whether path is an infrastructure endpoint.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
