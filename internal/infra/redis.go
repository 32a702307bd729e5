package infra

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// OpenRedis parses url, names the connection clientName and checks the server
// answers. Both the sandbox cache and the CLI session store use it.
func OpenRedis(ctx context.Context, url, clientName string) (*redis.Client, error) {
	if url == "" {
		return nil, errors.New("redis url is required")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if clientName != "" {
		opt.ClientName = clientName
	}

	client := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, errors.Join(fmt.Errorf("ping redis: %w", err), client.Close())
	}
	return client, nil
}
