package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/swish/internal/logging"
)

func TestRedisNotifierPublishes(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	ctx := context.Background()
	sub := cache.Subscribe(ctx, "test:notifications")
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	n := NewRedisNotifier(cache, "test:notifications")
	if err := n.Send(ctx, Message{Kind: KindTransferReceived, UserID: "u2", TransactionID: "tx1", Body: "20.00 SEK"}); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case msg := <-sub.Channel():
		var got Message
		if err := json.Unmarshal([]byte(msg.Payload), &got); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if got.Kind != KindTransferReceived || got.UserID != "u2" || got.TransactionID != "tx1" {
			t.Fatalf("unexpected message %+v", got)
		}
		if got.SentAt.IsZero() {
			t.Fatalf("expected sent_at to be stamped")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no message published")
	}
}

type failingNotifier struct{ calls *int }

func (f failingNotifier) Send(context.Context, Message) error {
	*f.calls++
	return errors.New("down")
}

func TestMultiDeliversToAll(t *testing.T) {
	var calls int
	m := Multi{failingNotifier{&calls}, NewLoggerNotifier(logging.Discard()), failingNotifier{&calls}}
	if err := m.Send(context.Background(), Message{Kind: KindTransferCancelled}); err == nil {
		t.Fatalf("expected first error to be returned")
	}
	if calls != 2 {
		t.Fatalf("expected every notifier to be called, got %d", calls)
	}
}
