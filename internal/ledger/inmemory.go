package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type inMemoryLedger struct {
	mu       sync.RWMutex
	balances map[string]int64
	records  map[string]Record
	byClient map[string]string
	order    []string
	now      func() time.Time
}

// NewInMemory creates a concurrency-safe in-memory ledger useful for unit tests.
func NewInMemory() Ledger {
	return &inMemoryLedger{
		balances: map[string]int64{TreasuryAccountCode: 0},
		records:  make(map[string]Record),
		byClient: make(map[string]string),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (l *inMemoryLedger) EnsureAccount(_ context.Context, code string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.balances[code]; !exists {
		l.balances[code] = 0
	}
	return nil
}

func (l *inMemoryLedger) Balance(_ context.Context, code string) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	balance, exists := l.balances[code]
	if !exists {
		return 0, ErrAccountNotFound
	}
	return balance, nil
}

func (l *inMemoryLedger) Transfer(_ context.Context, p Posting) (Record, error) {
	if p.Amount <= 0 {
		return Record{}, ErrInsufficientFunds
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	clientKey := p.Kind + ":" + p.ClientTxID
	if id, exists := l.byClient[clientKey]; exists {
		rec := l.records[id]
		rec.FromBalance, rec.ToBalance = l.balances[rec.FromCode], l.balances[rec.ToCode]
		return rec, ErrDuplicateTransaction
	}

	fromBalance, ok := l.balances[p.FromCode]
	if !ok {
		return Record{}, ErrAccountNotFound
	}
	toBalance, ok := l.balances[p.ToCode]
	if !ok {
		return Record{}, ErrAccountNotFound
	}
	if p.FromCode != TreasuryAccountCode && fromBalance < p.Amount {
		return Record{}, ErrInsufficientFunds
	}

	fromBalance -= p.Amount
	toBalance += p.Amount
	l.balances[p.FromCode] = fromBalance
	l.balances[p.ToCode] = toBalance

	now := l.now()
	status := p.Status
	if status == "" {
		status = StatusCompleted
	}
	rec := Record{
		ID:          uuid.NewString(),
		ClientTxID:  p.ClientTxID,
		Kind:        p.Kind,
		FromCode:    p.FromCode,
		ToCode:      p.ToCode,
		SenderID:    p.SenderID,
		ReceiverID:  p.ReceiverID,
		Amount:      p.Amount,
		Currency:    p.Currency,
		Description: p.Description,
		Status:      status,
		FromBalance: fromBalance,
		ToBalance:   toBalance,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	l.records[rec.ID] = rec
	l.byClient[clientKey] = rec.ID
	l.order = append(l.order, rec.ID)
	return rec, nil
}

func (l *inMemoryLedger) Cancel(_ context.Context, id string) (Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[id]
	if !ok {
		return Record{}, ErrTransactionNotFound
	}
	if rec.Status != StatusPending {
		return Record{}, ErrNotCancellable
	}

	l.balances[rec.FromCode] += rec.Amount
	l.balances[rec.ToCode] -= rec.Amount
	rec.Status = StatusCancelled
	rec.UpdatedAt = l.now()
	rec.FromBalance, rec.ToBalance = l.balances[rec.FromCode], l.balances[rec.ToCode]
	l.records[id] = rec
	return rec, nil
}

func (l *inMemoryLedger) Get(_ context.Context, id string) (Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.records[id]
	if !ok {
		return Record{}, ErrTransactionNotFound
	}
	return rec, nil
}

func (l *inMemoryLedger) History(_ context.Context, q Query) ([]Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Record, 0)
	for i := len(l.order) - 1; i >= 0; i-- {
		rec := l.records[l.order[i]]
		if !q.matches(rec) {
			continue
		}
		out = append(out, rec)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}
