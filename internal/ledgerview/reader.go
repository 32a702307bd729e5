package ledgerview

import (
	"context"
	"log/slog"

	"github.com/congo-pay/swish/internal/remote"
)

// TransactionSource is the read side of the transaction service.
type TransactionSource interface {
	Recent(ctx context.Context, userID string, limit int) (remote.RecentResponse, error)
	Get(ctx context.Context, id string) (remote.RawTransaction, error)
	Between(ctx context.Context, user1ID, user2ID string, limit int) (remote.BetweenResponse, error)
	Stats(ctx context.Context, userID string, days int) (remote.Stats, error)
}

// Reader fetches history and returns it from the viewer's side. It holds no
// cache; every call goes to the service.
type Reader struct {
	source TransactionSource
	logger *slog.Logger
}

// NewReader builds a Reader over source.
func NewReader(source TransactionSource, logger *slog.Logger) *Reader {
	return &Reader{source: source, logger: logger}
}

// Recent returns the latest entries involving viewerID.
func (r *Reader) Recent(ctx context.Context, viewerID string, limit int) ([]Entry, error) {
	resp, err := r.source.Recent(ctx, viewerID, limit)
	if err != nil {
		r.logger.Warn("fetch recent transactions", slog.String("user_id", viewerID), "error", err)
		return nil, err
	}
	return ToViewEntries(resp.Transactions, viewerID), nil
}

// Between returns the entries exchanged by viewerID and otherID.
func (r *Reader) Between(ctx context.Context, viewerID, otherID string, limit int) ([]Entry, error) {
	resp, err := r.source.Between(ctx, viewerID, otherID, limit)
	if err != nil {
		r.logger.Warn("fetch transactions between users", slog.String("user_id", viewerID), slog.String("other_id", otherID), "error", err)
		return nil, err
	}
	return ToViewEntries(resp.Transactions, viewerID), nil
}

// Get returns a single entry.
func (r *Reader) Get(ctx context.Context, id, viewerID string) (Entry, error) {
	raw, err := r.source.Get(ctx, id)
	if err != nil {
		return Entry{}, err
	}
	return ToViewEntry(raw, viewerID), nil
}

// Stats passes the service's totals through unchanged.
func (r *Reader) Stats(ctx context.Context, viewerID string, days int) (remote.Stats, error) {
	return r.source.Stats(ctx, viewerID, days)
}
