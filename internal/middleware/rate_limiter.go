package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// DefaultRate is the per-IP request rate (per second) for the sign-in routes.
const DefaultRate = 5

// RateLimiter limits each client IP to perSecond requests per second, with a
// burst of the same size. Non-positive values use DefaultRate.
func RateLimiter(perSecond float64) echo.MiddlewareFunc {
	if perSecond <= 0 {
		perSecond = DefaultRate
	}
	config := middleware.RateLimiterConfig{
		// In-memory counts are enough for a single instance.
		Store: middleware.NewRateLimiterMemoryStore(rate.Limit(perSecond)),

		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests, "Too many requests. Please try again later.")
		},
	}
	return middleware.RateLimiterWithConfig(config)
}
