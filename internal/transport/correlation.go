package transport

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"linkrelay/internal/observability"
)

// CorrelationMiddleware copies the request id into the user context so
// downstream logging can tag entries with it.
func CorrelationMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		correlationID := strings.TrimSpace(c.Get(fiber.HeaderXRequestID))
		if correlationID == "" {
			if value, ok := c.Locals("requestid").(string); ok {
				correlationID = strings.TrimSpace(value)
			}
		}
		if correlationID != "" {
			c.SetUserContext(observability.WithCorrelationID(c.UserContext(), correlationID))
		}
		return c.Next()
	}
}
