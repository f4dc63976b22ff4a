package logs

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds the application logger.  The logger is constructed once in main
// and handed to each component explicitly; there is no package-level
// singleton, which keeps components testable without process-wide state.
func New(level, format string) *logrus.Logger {
	l := logrus.New()

	switch level {
	case "trace":
		l.SetLevel(logrus.TraceLevel)
	case "debug":
		l.SetLevel(logrus.DebugLevel)
	case "warning", "warn":
		l.SetLevel(logrus.WarnLevel)
	case "error":
		l.SetLevel(logrus.ErrorLevel)
	default:
		l.SetLevel(logrus.InfoLevel)
	}

	if format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	}

	l.SetOutput(os.Stdout)
	return l
}

// MaskFields recursively replaces the values of known sensitive keys in a
// decoded JSON payload before it is logged.  The input is modified in place
// and also returned for convenience.
func MaskFields(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, inner := range t {
			if sensitiveField(k) {
				t[k] = "***"
				continue
			}
			t[k] = MaskFields(inner)
		}
	case []interface{}:
		for i, inner := range t {
			t[i] = MaskFields(inner)
		}
	}
	return v
}

// sensitiveField reports whether a JSON key is known to carry credentials.
func sensitiveField(k string) bool {
	switch k {
	case "password", "current_password", "new_password",
		"currentPassword", "newPassword",
		"refresh_token", "refreshToken", "access_token", "accessToken",
		"token", "key", "secret", "apiKey", "api_key", "authorization":
		return true
	}
	return false
}
