package transport

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"linkrelay/internal/domain"
	"linkrelay/internal/observability"
)

// ErrorHandler maps domain sentinel errors onto HTTP status codes and keeps
// the JSON error shape uniform across handlers.
func ErrorHandler(baseLogger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := statusFromError(err)
		logger := observability.WithContextLogger(baseLogger, c.UserContext())

		if code >= fiber.StatusInternalServerError {
			logger.Error("request error",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Int("status", code),
				zap.Error(err),
			)
		} else {
			logger.Warn("request rejected",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Int("status", code),
				zap.Error(err),
			)
		}

		return c.Status(code).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
}

func statusFromError(err error) int {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code
	}

	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidConfig):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrCapacityExceeded):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}
