package notification

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// KindTransferReceived tells a receiver that funds arrived or are pending.
	KindTransferReceived = "transfer_received"
	// KindTransferCancelled tells a receiver that a pending transfer was withdrawn.
	KindTransferCancelled = "transfer_cancelled"

	// DefaultChannel is the Redis channel RedisNotifier publishes to.
	DefaultChannel = "swish:notifications"
)

// Message describes a notification payload.
type Message struct {
	Kind          string    `json:"kind"`
	UserID        string    `json:"user_id"`
	TransactionID string    `json:"transaction_id,omitempty"`
	Body          string    `json:"body"`
	SentAt        time.Time `json:"sent_at"`
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		slog.String("kind", message.Kind),
		slog.String("user_id", message.UserID),
		slog.String("transaction_id", message.TransactionID),
		slog.String("body", message.Body),
	)
	return nil
}

// RedisNotifier publishes JSON-encoded messages on a Redis channel.
type RedisNotifier struct {
	cache   *redis.Client
	channel string
}

// NewRedisNotifier builds a publisher. An empty channel uses DefaultChannel.
func NewRedisNotifier(cache *redis.Client, channel string) *RedisNotifier {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisNotifier{cache: cache, channel: channel}
}

// Send publishes message.
func (n *RedisNotifier) Send(ctx context.Context, message Message) error {
	if message.SentAt.IsZero() {
		message.SentAt = time.Now().UTC()
	}
	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return n.cache.Publish(ctx, n.channel, payload).Err()
}

// Multi fans a message out to every notifier and returns the first error.
type Multi []Notifier

// Send delivers message to all notifiers, even after a failure.
func (m Multi) Send(ctx context.Context, message Message) error {
	var first error
	for _, n := range m {
		if err := n.Send(ctx, message); err != nil && first == nil {
			first = err
		}
	}
	return first
}
