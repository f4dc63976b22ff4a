package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/BrianYam/lil-frankenstack-sub001/internal/logs"
)

// maxLoggedBody caps how much of a request body is buffered for logging.
const maxLoggedBody = 4096

// RequestLogger logs one line per request with method, route, status,
// duration and client address.  JSON request bodies are included at debug
// level after recursive masking of credential fields; tokens and passwords
// must never reach the log stream in cleartext.
func RequestLogger(logger *logrus.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()

			var maskedBody interface{}
			if logger.IsLevelEnabled(logrus.DebugLevel) && req.Body != nil &&
				strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
				buf, _ := io.ReadAll(io.LimitReader(req.Body, maxLoggedBody))
				rest, _ := io.ReadAll(req.Body)
				req.Body = io.NopCloser(io.MultiReader(bytes.NewReader(buf), bytes.NewReader(rest)))
				var decoded interface{}
				if err := json.Unmarshal(buf, &decoded); err == nil {
					maskedBody = logs.MaskFields(decoded)
				}
			}

			err := next(c)
			if err != nil {
				// Let echo's error handler write the response, then log the
				// final status below.
				c.Error(err)
			}

			fields := logrus.Fields{
				"method": req.Method,
				"route":  c.Path(),
				"uri":    req.RequestURI,
				"status": c.Response().Status,
				"dur_ms": time.Since(start).Milliseconds(),
				"ip":     c.RealIP(),
			}
			if maskedBody != nil {
				fields["body"] = maskedBody
			}

			entry := logger.WithFields(fields)
			if c.Response().Status >= 500 {
				entry.Error("request")
			} else {
				entry.Info("request")
			}
			return nil
		}
	}
}
