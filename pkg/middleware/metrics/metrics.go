// Package metrics records Prometheus HTTP metrics per route.
package metrics

import (
	"time"

	"github.com/nimburion/docquery/pkg/observability/metrics"
	"github.com/nimburion/docquery/pkg/server/router"
)

// Metrics records request duration, count and in-flight requests. Requests
// are labelled with the matched route pattern so encoded queries do not
// create new series.
func Metrics() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			metrics.IncrementInFlight()
			defer metrics.DecrementInFlight()

			start := time.Now()
			err := next(c)

			route := c.Route()
			if route == "" {
				route = "unmatched"
			}
			metrics.RecordHTTPMetrics(c.Request().Method, route, c.Response().Status(), time.Since(start))

			return err
		}
	}
}
