package api

import (
	"errors"

	"github.com/labstack/echo/v5"
	"golang.org/x/time/rate"
)

var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimit rejects requests beyond rps per second, allowing bursts of
// burst, across the whole server. rps <= 0 disables the limit.
func RateLimit(rps float64, burst int) echo.MiddlewareFunc {
	if rps <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	lim := rate.NewLimiter(rate.Limit(rps), max(burst, 1))
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			if !lim.Allow() {
				return writeError(c, ErrRateLimited)
			}
			return next(c)
		}
	}
}
