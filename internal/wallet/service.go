package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/congo-pay/swish/internal/ledger"
)

const (
	statusActive = "active"
)

// Service exposes wallet operations backed by the ledger.
type Service struct {
	repo            Repository
	ledger          ledger.Ledger
	defaultCurrency string
}

// NewService builds a wallet service instance. Wallets created without a
// currency use defaultCurrency.
func NewService(repo Repository, ledger ledger.Ledger, defaultCurrency string) *Service {
	return &Service{repo: repo, ledger: ledger, defaultCurrency: defaultCurrency}
}

// CreateInput captures data required to create a wallet.
type CreateInput struct {
	OwnerID  string
	Currency string
	// OpeningBalance in minor units is credited from the treasury account.
	OpeningBalance int64
}

// Create provisions a wallet and associated ledger account.
func (s *Service) Create(ctx context.Context, input CreateInput) (Wallet, error) {
	if _, err := uuid.Parse(input.OwnerID); err != nil {
		return Wallet{}, fmt.Errorf("invalid owner id: %w", err)
	}

	walletID := uuid.New().String()
	accountCode := fmt.Sprintf("wallet:%s", walletID)
	if err := s.ledger.EnsureAccount(ctx, accountCode); err != nil {
		return Wallet{}, err
	}

	currency := input.Currency
	if currency == "" {
		currency = s.defaultCurrency
	}

	wallet := Wallet{
		ID:          walletID,
		OwnerID:     input.OwnerID,
		AccountCode: accountCode,
		Currency:    currency,
		Status:      statusActive,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, wallet); err != nil {
		return Wallet{}, err
	}

	if input.OpeningBalance > 0 {
		if _, err := s.ledger.Transfer(ctx, ledger.Posting{
			FromCode:   ledger.TreasuryAccountCode,
			ToCode:     accountCode,
			Kind:       ledger.KindOpening,
			ClientTxID: walletID,
			Amount:     input.OpeningBalance,
			Currency:   currency,
			ReceiverID: input.OwnerID,
		}); err != nil {
			return Wallet{}, fmt.Errorf("credit opening balance: %w", err)
		}
	}

	return wallet, nil
}

// GetByOwner retrieves the wallet owned by ownerID.
func (s *Service) GetByOwner(ctx context.Context, ownerID string) (Wallet, error) {
	return s.repo.GetByOwner(ctx, ownerID)
}

// BalanceByOwner returns the ledger balance of ownerID's wallet.
func (s *Service) BalanceByOwner(ctx context.Context, ownerID string) (Balance, error) {
	wallet, err := s.repo.GetByOwner(ctx, ownerID)
	if err != nil {
		return Balance{}, err
	}
	amount, err := s.ledger.Balance(ctx, wallet.AccountCode)
	if err != nil {
		return Balance{}, err
	}
	return Balance{WalletID: wallet.ID, Currency: wallet.Currency, Amount: amount, AsOf: time.Now().UTC()}, nil
}
