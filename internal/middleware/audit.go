package middleware

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/swish/internal/logging"
)

// Audit logs one line per request, labelled by route pattern so user and
// transaction ids stay out of the path attribute. Rejected requests log at
// warn with the client-facing reason; failures log at error.
func Audit(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		} else if err != nil {
			status = fiber.StatusInternalServerError
		}

		log := logging.FromContext(c.UserContext(), logger)
		attrs := []slog.Attr{
			slog.String("method", c.Method()),
			slog.String("route", c.Route().Path),
			slog.Int("status", status),
			slog.Duration("duration", time.Since(start)),
		}
		if userID, _ := c.Locals("user_id").(string); userID != "" {
			attrs = append(attrs, slog.String("user_id", userID))
		}

		level, msg := slog.LevelInfo, "request completed"
		switch {
		case status >= fiber.StatusInternalServerError:
			level, msg = slog.LevelError, "request failed"
			if err != nil {
				attrs = append(attrs, slog.Any("error", err))
			}
		case fe != nil:
			level, msg = slog.LevelWarn, "request rejected"
			attrs = append(attrs, slog.String("reason", fe.Message))
		}
		log.LogAttrs(c.UserContext(), level, msg, attrs...)
		return err
	}
}
