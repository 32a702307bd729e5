package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	replayedHeader       = "Idempotent-Replayed"
	idempotencyPrefix    = "swish:idem:"
	storeTimeout         = 2 * time.Second
)

// IdempotencyOptions tunes the Idempotency middleware.
type IdempotencyOptions struct {
	TTL time.Duration
	// Required rejects unsafe requests without an Idempotency-Key header.
	// Otherwise such requests pass through unrecorded.
	Required bool
}

// replay is what the cache holds per key. Status 0 marks a request that is
// still being processed.
type replay struct {
	Fingerprint string `json:"fingerprint"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

type replayCache struct {
	client *redis.Client
	ttl    time.Duration
}

func (r replayCache) lookup(ctx context.Context, key string) (replay, bool, error) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return replay{}, false, nil
	}
	if err != nil {
		return replay{}, false, err
	}
	var rep replay
	if err := json.Unmarshal(raw, &rep); err != nil {
		return replay{}, false, err
	}
	return rep, true, nil
}

func (r replayCache) reserve(ctx context.Context, key, fp string) (bool, error) {
	payload, err := json.Marshal(replay{Fingerprint: fp})
	if err != nil {
		return false, err
	}
	return r.client.SetNX(ctx, key, payload, r.ttl).Result()
}

func (r replayCache) save(ctx context.Context, key string, rep replay) error {
	payload, err := json.Marshal(rep)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, payload, r.ttl).Err()
}

func (r replayCache) release(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	r.client.Del(ctx, key)
}

// fingerprint identifies the request a key was first used with.
func fingerprint(c *fiber.Ctx) string {
	sum := sha256.New()
	sum.Write([]byte(c.Method()))
	sum.Write([]byte{0})
	sum.Write([]byte(c.Path()))
	sum.Write([]byte{0})
	sum.Write(c.Body())
	return hex.EncodeToString(sum.Sum(nil))
}

// Idempotency replays the stored response when an unsafe request repeats its
// Idempotency-Key. Keys are scoped to the authenticated user. Reusing a key
// with a different request is rejected with 422; a repeat that arrives while
// the first is still running gets 409. Server errors are not stored so the
// caller can retry with the same key.
func Idempotency(cache *redis.Client, opts IdempotencyOptions, logger *slog.Logger) fiber.Handler {
	store := replayCache{client: cache, ttl: opts.TTL}
	if store.ttl <= 0 {
		store.ttl = 24 * time.Hour
	}
	return func(c *fiber.Ctx) error {
		switch c.Method() {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return c.Next()
		}

		key := strings.TrimSpace(c.Get(idempotencyKeyHeader))
		if key == "" {
			if opts.Required {
				return fiber.NewError(fiber.StatusBadRequest, "missing Idempotency-Key header")
			}
			return c.Next()
		}
		if cache == nil {
			return c.Next()
		}

		scope, _ := c.Locals("user_id").(string)
		if scope == "" {
			scope = "anonymous"
		}
		cacheKey := idempotencyPrefix + scope + ":" + key
		fp := fingerprint(c)
		log := logger.With(slog.String("idempotency_key", key), slog.String("user_id", scope))

		ctx, cancel := context.WithTimeout(c.UserContext(), storeTimeout)
		defer cancel()

		rep, found, err := store.lookup(ctx, cacheKey)
		if err != nil {
			log.Error("idempotency lookup failed", slog.Any("error", err))
			return fiber.NewError(fiber.StatusInternalServerError, "idempotency store failure")
		}
		if !found {
			reserved, err := store.reserve(ctx, cacheKey, fp)
			if err != nil {
				log.Error("idempotency reservation failed", slog.Any("error", err))
				return fiber.NewError(fiber.StatusInternalServerError, "idempotency store failure")
			}
			if reserved {
				return record(c, store, cacheKey, fp, log)
			}
			// Lost the race to a concurrent first use.
			rep = replay{Fingerprint: fp}
		}

		if rep.Fingerprint != fp {
			return fiber.NewError(fiber.StatusUnprocessableEntity, "Idempotency-Key was already used with a different request")
		}
		if rep.Status == 0 {
			return fiber.NewError(fiber.StatusConflict, "a request with this Idempotency-Key is still being processed")
		}
		if rep.ContentType != "" {
			c.Set(fiber.HeaderContentType, rep.ContentType)
		}
		c.Set(replayedHeader, "true")
		return c.Status(rep.Status).Send(rep.Body)
	}
}

func record(c *fiber.Ctx, store replayCache, cacheKey, fp string, log *slog.Logger) error {
	handlerErr := c.Next()
	if handlerErr != nil {
		// Render now so the stored replay matches what the client receives.
		if err := c.App().ErrorHandler(c, handlerErr); err != nil {
			store.release(cacheKey)
			return handlerErr
		}
	}
	status := c.Response().StatusCode()
	if status >= fiber.StatusInternalServerError {
		store.release(cacheKey)
		return handlerErr
	}

	rep := replay{
		Fingerprint: fp,
		Status:      status,
		ContentType: string(c.Response().Header.ContentType()),
		Body:        append([]byte(nil), c.Response().Body()...),
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := store.save(ctx, cacheKey, rep); err != nil {
		// The handler already ran; a retry with this key will run it again.
		log.Warn("failed to store idempotent response", slog.Any("error", err))
		store.release(cacheKey)
	}
	return handlerErr
}
