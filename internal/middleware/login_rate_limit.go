package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/swish/internal/validation"
)

const loginRateLimitPrefix = "rl:login:"

// LoginRateLimit limits login attempts per phone number, or per IP when the
// body carries none. Without Redis, or when Redis fails, requests pass.
func LoginRateLimit(cache *redis.Client, maxPerMin int, logger *slog.Logger) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 5
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next()
		}
		var req struct {
			PhoneNumber string `json:"phoneNumber"`
		}
		_ = c.BodyParser(&req)
		subject := validation.NormalizePhone(req.PhoneNumber)
		if subject == "" {
			subject = c.IP()
		}
		key := loginRateLimitPrefix + strings.ToLower(subject)
		cnt, err := cache.Incr(c.UserContext(), key).Result()
		if err != nil {
			logger.Warn("login rate limit unavailable", "error", err)
			return c.Next()
		}
		if cnt == 1 {
			cache.Expire(c.UserContext(), key, time.Minute)
		}
		if cnt > int64(maxPerMin) {
			return fiber.NewError(http.StatusTooManyRequests, "Too many login attempts, try again later")
		}
		return c.Next()
	}
}
