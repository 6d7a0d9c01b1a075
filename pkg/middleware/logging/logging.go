// Package logging writes one structured log entry per HTTP request.
package logging

import (
	"net/http"
	"strings"
	"time"

	"github.com/nimburion/docquery/pkg/middleware/requestid"
	"github.com/nimburion/docquery/pkg/observability/logger"
	"github.com/nimburion/docquery/pkg/server/router"
)

// Log field names.
const (
	FieldRequestID  = "request_id"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldRoute      = "route"
	FieldStatus     = "status"
	FieldDurationMS = "duration_ms"
	FieldRemoteAddr = "remote_addr"
	FieldUserAgent  = "http_user_agent"
	FieldError      = "error"
)

// Config configures request logging.
type Config struct {
	Enabled bool
	// LogStart also emits a "request started" entry at debug level.
	LogStart bool
	// ExcludedPathPrefixes are never logged, e.g. probes.
	ExcludedPathPrefixes []string
}

// DefaultConfig logs every request.
func DefaultConfig() Config {
	return Config{Enabled: true}
}

// Logging creates middleware with DefaultConfig.
func Logging(log logger.Logger) router.MiddlewareFunc {
	return WithConfig(log, DefaultConfig())
}

// WithConfig creates request logging middleware. Requests whose handler
// returned an error, or whose status is 5xx, are logged at error level.
func WithConfig(log logger.Logger, cfg Config) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			req := c.Request()
			if !cfg.Enabled || excluded(cfg.ExcludedPathPrefixes, req.URL.Path) {
				return next(c)
			}

			start := time.Now()
			if cfg.LogStart {
				log.Debug("request started", baseFields(c)...)
			}

			err := next(c)

			status := c.Response().Status()
			fields := append(baseFields(c),
				FieldStatus, status,
				FieldDurationMS, time.Since(start).Milliseconds(),
			)

			switch {
			case err != nil:
				log.Error("request failed", append(fields, FieldError, err.Error())...)
			case status >= http.StatusInternalServerError:
				log.Error("request completed", fields...)
			default:
				log.Info("request completed", fields...)
			}
			return err
		}
	}
}

func baseFields(c router.Context) []any {
	req := c.Request()
	return []any{
		FieldRequestID, requestid.GetRequestID(req.Context()),
		FieldMethod, req.Method,
		FieldPath, req.URL.EscapedPath(),
		FieldRoute, c.Route(),
		FieldRemoteAddr, req.RemoteAddr,
		FieldUserAgent, req.UserAgent(),
	}
}

func excluded(prefixes []string, path string) bool {
	for _, prefix := range prefixes {
		if prefix != "" && strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
