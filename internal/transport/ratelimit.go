package transport

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"linkrelay/internal/ratelimit"
)

// RateLimitMiddleware throttles ingestion per client address. The limiter
// failing (redis down) does not block traffic; readiness reporting covers
// that case.
func RateLimitMiddleware(limiter ratelimit.RateLimiter, logger *zap.Logger) fiber.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if limiter == nil {
			return c.Next()
		}

		allowed, err := limiter.Allow(c.Context(), "ingest:"+c.IP())
		if err != nil {
			logger.Warn("rate limiter unavailable, allowing request", zap.Error(err))
			return c.Next()
		}
		if !allowed {
			return fiber.NewError(fiber.StatusTooManyRequests, "rate limit exceeded")
		}
		return c.Next()
	}
}
