package middleware // middleware provides shared request processing for handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/BrianYam/lil-frankenstack-sub001/internal/model"
)

// RequireRole returns a middleware that enforces that the session principal
// holds one of the given roles.  With no roles declared the check is a
// no-op.  A missing principal or a principal without a recognized role is a
// 403, not a 401: the caller authenticated fine, it just is not allowed.
// It assumes SessionAuth ran earlier in the chain.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	// Build a set of allowed roles for constant-time lookups.
	allowed := make(map[model.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if len(allowed) == 0 {
				return next(c)
			}
			u := CurrentUser(c)
			if u == nil || !u.Role.Valid() || !allowed[u.Role] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
