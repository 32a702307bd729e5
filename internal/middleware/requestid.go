package middleware

import (
	"regexp"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/congo-pay/swish/internal/logging"
)

const requestIDHeader = "X-Request-ID"

// Incoming ids end up in logs, so only short token-like values are trusted.
var validRequestID = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// RequestID reuses the caller's X-Request-ID or assigns a fresh one. The id is
// echoed in the response and carried in the request context for logging.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqID := c.Get(requestIDHeader)
		if !validRequestID.MatchString(reqID) {
			reqID = uuid.NewString()
		}
		c.Set(requestIDHeader, reqID)
		c.SetUserContext(logging.WithRequestID(c.UserContext(), reqID))
		return c.Next()
	}
}
