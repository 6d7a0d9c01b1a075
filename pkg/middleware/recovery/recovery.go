// Package recovery turns handler panics into 500 responses.
package recovery

import (
	"net/http"
	"runtime/debug"

	"github.com/nimburion/docquery/pkg/middleware/requestid"
	"github.com/nimburion/docquery/pkg/observability/logger"
	"github.com/nimburion/docquery/pkg/server/router"
)

// Recovery logs a recovered panic with its stack and answers 500 when the
// response has not been written yet.
func Recovery(log logger.Logger) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				requestID := requestid.GetRequestID(c.Request().Context())
				log.Error("panic recovered",
					"request_id", requestID,
					"panic", r,
					"stack", string(debug.Stack()),
				)

				if c.Response().Written() {
					return
				}
				err = c.JSON(http.StatusInternalServerError, map[string]interface{}{
					"code":       "internal.panic",
					"message":    "an unexpected error occurred",
					"request_id": requestID,
				})
			}()

			return next(c)
		}
	}
}
