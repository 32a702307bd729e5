package wallet

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrWalletNotFound is returned for owners without a wallet.
	ErrWalletNotFound = errors.New("wallet not found")
	// ErrWalletExists is returned when an owner already has a wallet.
	ErrWalletExists = errors.New("wallet exists")
)

// Repository persists wallet metadata. Each owner has at most one wallet.
type Repository interface {
	Create(ctx context.Context, wallet Wallet) error
	GetByOwner(ctx context.Context, ownerID string) (Wallet, error)
}

// PostgresRepository stores wallets in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const walletColumns = `id, owner_id, account_code, currency, status, created_at`

// Create inserts w. The unique owner_id constraint maps to ErrWalletExists.
func (r *PostgresRepository) Create(ctx context.Context, w Wallet) error {
	ids, err := parseIDs(w.ID, w.OwnerID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO wallets (`+walletColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		ids[0], ids[1], w.AccountCode, w.Currency, w.Status, w.CreatedAt.UTC())
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrWalletExists
	}
	return err
}

// GetByOwner fetches the wallet owned by ownerID.
func (r *PostgresRepository) GetByOwner(ctx context.Context, ownerID string) (Wallet, error) {
	owner, err := uuid.Parse(ownerID)
	if err != nil {
		return Wallet{}, ErrWalletNotFound
	}
	var (
		w           Wallet
		id, ownerDB uuid.UUID
	)
	err = r.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE owner_id = $1`, owner).
		Scan(&id, &ownerDB, &w.AccountCode, &w.Currency, &w.Status, &w.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Wallet{}, ErrWalletNotFound
	}
	if err != nil {
		return Wallet{}, err
	}
	w.ID, w.OwnerID = id.String(), ownerDB.String()
	w.CreatedAt = w.CreatedAt.UTC()
	return w, nil
}

func parseIDs(raw ...string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, len(raw))
	for i, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, err
		}
		out[i] = id
	}
	return out, nil
}
