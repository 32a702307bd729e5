package ledger

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInsufficientFunds occurs when the source account lacks available balance
	// to cover a requested posting.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrDuplicateTransaction indicates the provided client transaction identifier
	// already exists and therefore the operation should be treated as idempotent.
	ErrDuplicateTransaction = errors.New("duplicate transaction")

	// ErrTransactionNotFound is returned for unknown transaction ids.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrNotCancellable is returned when cancelling a transaction that already
	// settled or was cancelled.
	ErrNotCancellable = errors.New("only pending transactions can be cancelled")

	// ErrAccountNotFound is returned when a posting references an unknown account.
	ErrAccountNotFound = errors.New("account not found")
)

const (
	StatusCompleted = "completed"
	StatusPending   = "pending"
	StatusCancelled = "cancelled"

	// KindP2P marks user-to-user transfers; only these show up in history.
	KindP2P = "p2p"
	// KindOpening marks the opening balance credited to a new wallet.
	KindOpening = "opening"

	// TreasuryAccountCode funds opening balances and may go negative.
	TreasuryAccountCode = "sandbox:treasury"
)

// Posting is a request to move Amount minor units between two accounts.
type Posting struct {
	FromCode    string
	ToCode      string
	Kind        string
	ClientTxID  string
	Amount      int64
	Currency    string
	SenderID    string
	ReceiverID  string
	Description string
	// Status is StatusCompleted or StatusPending. Pending postings hold the
	// funds until they settle or are cancelled.
	Status string
}

// Record is a stored transaction.
type Record struct {
	ID          string
	ClientTxID  string
	Kind        string
	FromCode    string
	ToCode      string
	SenderID    string
	ReceiverID  string
	Amount      int64
	Currency    string
	Description string
	Status      string
	FromBalance int64
	ToBalance   int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Query selects p2p records involving UserID, optionally restricted to those
// exchanged with CounterpartyID or created at or after Since. Results are
// newest first; Limit <= 0 means no limit.
type Query struct {
	UserID         string
	CounterpartyID string
	Since          time.Time
	Limit          int
}

func (q Query) matches(r Record) bool {
	if r.Kind != KindP2P {
		return false
	}
	if r.SenderID != q.UserID && r.ReceiverID != q.UserID {
		return false
	}
	if q.CounterpartyID != "" && r.SenderID != q.CounterpartyID && r.ReceiverID != q.CounterpartyID {
		return false
	}
	if !q.Since.IsZero() && r.CreatedAt.Before(q.Since) {
		return false
	}
	return true
}

// Ledger defines the contract implemented by ledger backends (e.g. Postgres).
type Ledger interface {
	EnsureAccount(ctx context.Context, code string) error
	Balance(ctx context.Context, code string) (int64, error)
	// Transfer posts p. A repeated Kind/ClientTxID returns the stored record
	// together with ErrDuplicateTransaction.
	Transfer(ctx context.Context, p Posting) (Record, error)
	// Cancel reverses a pending transaction.
	Cancel(ctx context.Context, id string) (Record, error)
	Get(ctx context.Context, id string) (Record, error)
	History(ctx context.Context, q Query) ([]Record, error)
}
