package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLedger persists ledger entries in PostgreSQL ensuring double-entry balance.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

const recordColumns = `id, client_tx_id, kind, from_code, to_code, sender_id, receiver_id,
        amount, currency, description, status, created_at, updated_at`

// EnsureAccount guarantees an account exists for the provided code.
func (l *PostgresLedger) EnsureAccount(ctx context.Context, code string) error {
	_, err := l.db.Exec(ctx, `INSERT INTO accounts (id, code) VALUES ($1, $2)
        ON CONFLICT (code) DO NOTHING`, uuid.New(), code)
	return err
}

// Balance returns the summed balance for the specified account code.
func (l *PostgresLedger) Balance(ctx context.Context, code string) (int64, error) {
	const query = `
        SELECT a.id, COALESCE(SUM(e.amount), 0)
        FROM accounts a
        LEFT JOIN entries e ON e.account_id = a.id
        WHERE a.code = $1
        GROUP BY a.id`
	var (
		accountID uuid.UUID
		balance   int64
	)
	if err := l.db.QueryRow(ctx, query, code).Scan(&accountID, &balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%w: %s", ErrAccountNotFound, code)
		}
		return 0, err
	}
	return balance, nil
}

// Transfer records a balanced posting between two accounts.
func (l *PostgresLedger) Transfer(ctx context.Context, p Posting) (Record, error) {
	if p.Amount <= 0 {
		return Record{}, fmt.Errorf("amount must be positive")
	}
	status := p.Status
	if status == "" {
		status = StatusCompleted
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Record{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	fromAccountID, err := accountIDForCode(ctx, tx, p.FromCode)
	if err != nil {
		return Record{}, err
	}
	toAccountID, err := accountIDForCode(ctx, tx, p.ToCode)
	if err != nil {
		return Record{}, err
	}

	existing, err := scanRecord(tx.QueryRow(ctx, `SELECT `+recordColumns+` FROM transactions WHERE client_tx_id = $1 AND kind = $2`, p.ClientTxID, p.Kind))
	if err == nil {
		if existing.FromBalance, err = balanceForAccount(ctx, tx, fromAccountID); err != nil {
			return Record{}, err
		}
		if existing.ToBalance, err = balanceForAccount(ctx, tx, toAccountID); err != nil {
			return Record{}, err
		}
		return existing, ErrDuplicateTransaction
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return Record{}, err
	}

	fromBalance, err := balanceForAccount(ctx, tx, fromAccountID)
	if err != nil {
		return Record{}, err
	}
	if p.FromCode != TreasuryAccountCode && fromBalance < p.Amount {
		return Record{}, ErrInsufficientFunds
	}

	txID := uuid.New()
	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, `INSERT INTO transactions (`+recordColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)`,
		txID, p.ClientTxID, p.Kind, p.FromCode, p.ToCode, p.SenderID, p.ReceiverID,
		p.Amount, p.Currency, p.Description, status, now); err != nil {
		return Record{}, err
	}
	if err := postEntries(ctx, tx, txID, fromAccountID, toAccountID, p.Amount); err != nil {
		return Record{}, err
	}

	rec := Record{
		ID:          txID.String(),
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
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if rec.FromBalance, err = balanceForAccount(ctx, tx, fromAccountID); err != nil {
		return Record{}, err
	}
	if rec.ToBalance, err = balanceForAccount(ctx, tx, toAccountID); err != nil {
		return Record{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Cancel reverses a pending transaction with compensating entries.
func (l *PostgresLedger) Cancel(ctx context.Context, id string) (Record, error) {
	txID, err := uuid.Parse(id)
	if err != nil {
		return Record{}, ErrTransactionNotFound
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Record{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	rec, err := scanRecord(tx.QueryRow(ctx, `SELECT `+recordColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, txID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrTransactionNotFound
		}
		return Record{}, err
	}
	if rec.Status != StatusPending {
		return Record{}, ErrNotCancellable
	}

	fromAccountID, err := accountIDForCode(ctx, tx, rec.FromCode)
	if err != nil {
		return Record{}, err
	}
	toAccountID, err := accountIDForCode(ctx, tx, rec.ToCode)
	if err != nil {
		return Record{}, err
	}
	if err := postEntries(ctx, tx, txID, toAccountID, fromAccountID, rec.Amount); err != nil {
		return Record{}, err
	}

	rec.Status = StatusCancelled
	rec.UpdatedAt = time.Now().UTC()
	if _, err := tx.Exec(ctx, `UPDATE transactions SET status = $1, updated_at = $2 WHERE id = $3`, rec.Status, rec.UpdatedAt, txID); err != nil {
		return Record{}, err
	}
	if rec.FromBalance, err = balanceForAccount(ctx, tx, fromAccountID); err != nil {
		return Record{}, err
	}
	if rec.ToBalance, err = balanceForAccount(ctx, tx, toAccountID); err != nil {
		return Record{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Get fetches one transaction.
func (l *PostgresLedger) Get(ctx context.Context, id string) (Record, error) {
	txID, err := uuid.Parse(id)
	if err != nil {
		return Record{}, ErrTransactionNotFound
	}
	rec, err := scanRecord(l.db.QueryRow(ctx, `SELECT `+recordColumns+` FROM transactions WHERE id = $1`, txID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrTransactionNotFound
	}
	return rec, err
}

// History lists p2p transactions matching q, newest first.
func (l *PostgresLedger) History(ctx context.Context, q Query) ([]Record, error) {
	var (
		where = []string{"kind = $1", "(sender_id = $2 OR receiver_id = $2)"}
		args  = []any{KindP2P, q.UserID}
	)
	if q.CounterpartyID != "" {
		args = append(args, q.CounterpartyID)
		where = append(where, fmt.Sprintf("(sender_id = $%d OR receiver_id = $%d)", len(args), len(args)))
	}
	if !q.Since.IsZero() {
		args = append(args, q.Since.UTC())
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	query := `SELECT ` + recordColumns + ` FROM transactions WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_at DESC, id DESC`
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := l.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func postEntries(ctx context.Context, tx pgx.Tx, txID, debitAccountID, creditAccountID uuid.UUID, amount int64) error {
	const insert = `INSERT INTO entries (id, transaction_id, account_id, amount) VALUES ($1, $2, $3, $4)`
	if _, err := tx.Exec(ctx, insert, uuid.New(), txID, debitAccountID, -amount); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, insert, uuid.New(), txID, creditAccountID, amount)
	return err
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec Record
		id  uuid.UUID
	)
	if err := row.Scan(&id, &rec.ClientTxID, &rec.Kind, &rec.FromCode, &rec.ToCode, &rec.SenderID, &rec.ReceiverID,
		&rec.Amount, &rec.Currency, &rec.Description, &rec.Status, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return Record{}, err
	}
	rec.ID = id.String()
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return rec, nil
}

func accountIDForCode(ctx context.Context, tx pgx.Tx, code string) (uuid.UUID, error) {
	const query = `SELECT id FROM accounts WHERE code = $1 FOR UPDATE`
	var id uuid.UUID
	if err := tx.QueryRow(ctx, query, code).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, fmt.Errorf("%w: %s", ErrAccountNotFound, code)
		}
		return uuid.Nil, err
	}
	return id, nil
}

func balanceForAccount(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) (int64, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM entries WHERE account_id = $1`
	var balance int64
	if err := tx.QueryRow(ctx, query, accountID).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return balance, nil
}
