package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hakkacheyassin/ft-trans/limiter"
)

// RateLimitMiddleware throttles a route group by client IP through the
// redis-backed limiter. Fails open on limiter backend errors.
func RateLimitMiddleware(manager *limiter.Manager, prefix string, limit int, window time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := prefix + ":" + c.RealIP()
			allowed, err := manager.Allow(c.Request().Context(), key, limit, window)
			if err == nil && !allowed {
				return c.JSON(http.StatusTooManyRequests, map[string]string{
					"error": "too many requests",
				})
			}
			return next(c)
		}
	}
}
