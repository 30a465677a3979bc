package transport

import (
	"github.com/gofiber/fiber/v2"
	"github.com/relaykit/smsrelay/internal/ratelimit"
	"go.uber.org/zap"
)

// CallbackRateLimit throttles the provider webhook per calling address.
// Limiter failures fail open: a broken Redis must not drop delivery reports.
func CallbackRateLimit(limiter ratelimit.RateLimiter, logger *zap.Logger) fiber.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if limiter == nil {
			return c.Next()
		}

		allowed, err := limiter.Allow(c.Context(), "callback:"+c.IP())
		if err != nil {
			logger.Warn("rate limiter unavailable, allowing request",
				zap.String("path", c.Path()),
				zap.Error(err),
			)
			return c.Next()
		}
		if !allowed {
			return fiber.NewError(fiber.StatusTooManyRequests, "callback rate limit exceeded")
		}

		return c.Next()
	}
}
