package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

// Middleware collects HTTP request metrics. Paths are recorded by route
// pattern so that ids in the URL do not explode label cardinality.
func (c *Collector) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			err := next(ctx)
			if err != nil {
				ctx.Error(err)
			}

			path := ctx.Path()
			if path == "" {
				path = "unmatched"
			}
			req := ctx.Request()
			status := strconv.Itoa(ctx.Response().Status)

			c.httpRequests.WithLabelValues(req.Method, path, status).Inc()
			c.httpDuration.WithLabelValues(req.Method, path).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}
