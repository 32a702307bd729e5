package session

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the snapshot as two Redis keys written in one MULTI/EXEC,
// which lets several CLI hosts share a session.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore builds a store whose keys are namespaced by prefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) tokenKey() string    { return s.prefix + TokenKey }
func (s *RedisStore) identityKey() string { return s.prefix + IdentityKey }

// Load reads both keys.
func (s *RedisStore) Load(ctx context.Context) (Snapshot, error) {
	values, err := s.client.MGet(ctx, s.tokenKey(), s.identityKey()).Result()
	if err != nil {
		return Snapshot{}, fmt.Errorf("load session: %w", err)
	}
	var snap Snapshot
	if len(values) == 2 {
		snap.Token, _ = values[0].(string)
		snap.Identity, _ = values[1].(string)
	}
	return snap, nil
}

// Save writes both keys atomically.
func (s *RedisStore) Save(ctx context.Context, snap Snapshot) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.tokenKey(), snap.Token, 0)
		pipe.Set(ctx, s.identityKey(), snap.Identity, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Clear deletes both keys.
func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.tokenKey(), s.identityKey()).Err(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
