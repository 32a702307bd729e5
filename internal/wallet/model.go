package wallet

import "time"

// Wallet is the single stored-value account of a user, backed by the ledger.
type Wallet struct {
	ID          string
	OwnerID     string
	AccountCode string
	Currency    string
	Status      string
	CreatedAt   time.Time
}

// Balance encapsulates available funds for a wallet in minor units.
type Balance struct {
	WalletID string
	Currency string
	Amount   int64
	AsOf     time.Time
}
