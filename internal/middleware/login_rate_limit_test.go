package middleware

import (
	"net/http/httptest"
	"strings"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/swish/internal/logging"
)

func TestLoginRateLimitPerPhone(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	app := fiber.New()
	app.Post("/users/login", LoginRateLimit(cache, 2, logging.Discard()), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	attempt := func(phone string) int {
		req := httptest.NewRequest(fiber.MethodPost, "/users/login", strings.NewReader(`{"phoneNumber":"`+phone+`","password":"x"}`))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	for i := 0; i < 2; i++ {
		if status := attempt("+46 70 123 45 67"); status != fiber.StatusOK {
			t.Fatalf("attempt %d: expected 200, got %d", i+1, status)
		}
	}
	if status := attempt("+46701234567"); status != fiber.StatusTooManyRequests {
		t.Fatalf("expected 429 after limit, got %d", status)
	}
	if status := attempt("+46707654321"); status != fiber.StatusOK {
		t.Fatalf("other phones are counted separately, got %d", status)
	}
	if ttl := mr.TTL(loginRateLimitPrefix + "+46701234567"); ttl <= 0 {
		t.Fatalf("expected counter to expire, ttl %v", ttl)
	}
}

func TestLoginRateLimitWithoutRedis(t *testing.T) {
	app := fiber.New()
	app.Post("/users/login", LoginRateLimit(nil, 1, logging.Discard()), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/users/login", nil))
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("expected pass-through without redis, got %d", resp.StatusCode)
		}
	}
}
