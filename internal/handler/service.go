package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/BrianYam/lil-frankenstack-sub001/internal/middleware"
)

// ServiceVerify answers a service caller with the identity of the API key
// it authenticated with.  Useful as a smoke test when rolling keys.
func ServiceVerify(c echo.Context) error {
	k := middleware.CurrentAPIKey(c)
	if k == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"key_id":      k.ID,
		"client_name": k.ClientName,
		"permissions": k.Permissions,
	})
}
