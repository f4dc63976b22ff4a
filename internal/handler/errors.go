package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// errorBody is the normalized shape of every unhandled error response.
type errorBody struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Timestamp  string `json:"timestamp"`
	Path       string `json:"path"`
}

// NewHTTPErrorHandler returns echo's top-level error handler.  Handlers
// write their own JSON for expected failures; anything that escapes (echo
// routing errors, panics caught by the recover middleware, forgotten
// returns) lands here, gets normalized and logged with request context.
// Internal error details are logged but never echoed to the client.
func NewHTTPErrorHandler(logger *logrus.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		message := "internal server error"
		if he, ok := err.(*echo.HTTPError); ok {
			status = he.Code
			if m, ok := he.Message.(string); ok {
				message = m
			}
		}

		entry := logger.WithFields(logrus.Fields{
			"method": c.Request().Method,
			"path":   c.Request().URL.Path,
			"status": status,
			"ip":     c.RealIP(),
		})
		if status >= 500 {
			entry.WithError(err).Error("unhandled error")
		} else {
			entry.Info("request error")
		}

		_ = c.JSON(status, errorBody{
			StatusCode: status,
			Message:    message,
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
			Path:       c.Request().URL.Path,
		})
	}
}
