package server

import (
	"net/http"
	"strings"

	"github.com/nimburion/docquery/pkg/config"
	"github.com/nimburion/docquery/pkg/middleware/compression"
	"github.com/nimburion/docquery/pkg/middleware/logging"
	"github.com/nimburion/docquery/pkg/middleware/metrics"
	"github.com/nimburion/docquery/pkg/middleware/ratelimit"
	"github.com/nimburion/docquery/pkg/middleware/recovery"
	"github.com/nimburion/docquery/pkg/middleware/requestid"
	"github.com/nimburion/docquery/pkg/middleware/tracing"
	"github.com/nimburion/docquery/pkg/observability/logger"
	"github.com/nimburion/docquery/pkg/server/router"
)

// PublicAPIServer wraps Server for application traffic.
type PublicAPIServer struct {
	*Server
}

// NewPublicAPIServer creates a PublicAPIServer with the default rate limit
// and observability settings.
func NewPublicAPIServer(cfg config.HTTPConfig, r router.Router, log logger.Logger) *PublicAPIServer {
	defaults := config.DefaultConfig()
	return NewPublicAPIServerWithConfig(cfg, defaults.RateLimit, defaults.Observability, r, log)
}

// NewPublicAPIServerWithConfig creates a PublicAPIServer and installs the
// middleware stack on r, outermost first:
//
//  1. request_id
//  2. tracing (when enabled)
//  3. logging
//  4. recovery
//  5. metrics
//  6. compression (when enabled)
//  7. rate_limit (when enabled)
//  8. request_size (when a limit is set)
//
// Routes must be registered on r after this call.
func NewPublicAPIServerWithConfig(
	cfg config.HTTPConfig,
	rateCfg config.RateLimitConfig,
	obsCfg config.ObservabilityConfig,
	r router.Router,
	log logger.Logger,
) *PublicAPIServer {
	loggingCfg := logging.Config{
		Enabled:              obsCfg.RequestLogging,
		ExcludedPathPrefixes: obsCfg.RequestLoggingSkip,
	}

	type middlewareEntry struct {
		name string
		fn   router.MiddlewareFunc
	}
	namedMiddlewares := []middlewareEntry{{name: "request_id", fn: requestid.RequestID()}}
	if obsCfg.TracingEnabled {
		namedMiddlewares = append(namedMiddlewares, middlewareEntry{name: "tracing", fn: tracing.Tracing(tracing.Config{})})
	}
	namedMiddlewares = append(namedMiddlewares,
		middlewareEntry{name: "logging", fn: logging.WithConfig(log, loggingCfg)},
		middlewareEntry{name: "recovery", fn: recovery.Recovery(log)},
		middlewareEntry{name: "metrics", fn: metrics.Metrics()},
	)
	if cfg.Compression {
		namedMiddlewares = append(namedMiddlewares, middlewareEntry{name: "compression", fn: compression.Middleware(compression.Config{MinSize: cfg.CompressionMinSize})})
	}
	if rateCfg.Enabled {
		limiter := ratelimit.NewTokenBucketLimiter(rateCfg.RequestsPerSecond, rateCfg.Burst)
		namedMiddlewares = append(namedMiddlewares, middlewareEntry{name: "rate_limit", fn: ratelimit.RateLimit(limiter, nil)})
	}
	if cfg.MaxRequestSize > 0 {
		namedMiddlewares = append(namedMiddlewares, middlewareEntry{name: "request_size", fn: maxRequestSize(cfg.MaxRequestSize)})
	}

	middlewareFuncs := make([]router.MiddlewareFunc, 0, len(namedMiddlewares))
	middlewareNames := make([]string, 0, len(namedMiddlewares))
	for _, entry := range namedMiddlewares {
		middlewareFuncs = append(middlewareFuncs, entry.fn)
		middlewareNames = append(middlewareNames, entry.name)
	}
	log.Debug("active middleware stack", "middlewares", strings.Join(middlewareNames, ", "))
	r.Use(middlewareFuncs...)

	serverCfg := Config{
		Port:         cfg.Port,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &PublicAPIServer{Server: NewServer(serverCfg, r, log)}
}

// Router returns the router routes are registered on.
func (s *PublicAPIServer) Router() router.Router {
	return s.router
}

// maxRequestSize caps request bodies; reads past limit fail inside Bind.
func maxRequestSize(limit int64) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			req := c.Request()
			if req.ContentLength > limit {
				return c.JSON(http.StatusRequestEntityTooLarge, map[string]string{
					"code":    "request.too_large",
					"message": "request body exceeds the configured limit",
				})
			}
			if req.Body != nil && req.Body != http.NoBody {
				req.Body = http.MaxBytesReader(c.Response(), req.Body, limit)
				c.SetRequest(req)
			}
			return next(c)
		}
	}
}
