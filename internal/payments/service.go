package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/congo-pay/swish/internal/identity"
	"github.com/congo-pay/swish/internal/ledger"
	"github.com/congo-pay/swish/internal/logging"
	"github.com/congo-pay/swish/internal/notification"
	"github.com/congo-pay/swish/internal/remote"
	"github.com/congo-pay/swish/internal/validation"
	"github.com/congo-pay/swish/internal/wallet"
)

const (
	defaultHistoryLimit = 10
	defaultStatsDays    = 30
	maxDescription      = 255
)

var (
	// ErrNotOwner indicates the caller is not the sender.
	ErrNotOwner = errors.New("not the sender of this transfer")
	// ErrNotParty indicates the caller took no part in a transaction.
	ErrNotParty = errors.New("not a party to this transaction")
	// ErrSelfTransfer rejects transfers to the sender's own phone.
	ErrSelfTransfer = errors.New("cannot transfer to yourself")
	// ErrSenderNotFound and ErrReceiverNotFound name the unknown side.
	ErrSenderNotFound   = errors.New("sender not found")
	ErrReceiverNotFound = errors.New("receiver not found")
)

// Service wires wallet ledger postings for P2P transfers.
type Service struct {
	ledger       ledger.Ledger
	wallets      *wallet.Service
	users        *identity.Service
	notifier     notification.Notifier
	pendingAbove int64
	logger       *slog.Logger
	now          func() time.Time
}

// NewService constructs a payment service. Transfers above pendingAbove minor
// units are held as pending until cancelled; zero disables holding.
func NewService(led ledger.Ledger, wallets *wallet.Service, users *identity.Service, notifier notification.Notifier, pendingAbove int64, logger *slog.Logger) *Service {
	return &Service{
		ledger:       led,
		wallets:      wallets,
		users:        users,
		notifier:     notifier,
		pendingAbove: pendingAbove,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// TransferInput captures the data needed to move funds between users.
type TransferInput struct {
	SenderPhone     string
	ReceiverPhone   string
	Amount          decimal.Decimal
	Description     string
	ClientTxID      string
	RequestorUserID string
}

// Transfer moves funds from the sender's wallet to the receiver's wallet.
// Replaying a ClientTxID returns the original result without moving funds.
func (s *Service) Transfer(ctx context.Context, input TransferInput) (remote.TransferResponse, error) {
	senderPhone, err := validation.Phone("sender_phone", input.SenderPhone)
	if err != nil {
		return remote.TransferResponse{}, err
	}
	receiverPhone, err := validation.Phone("receiver_phone", input.ReceiverPhone)
	if err != nil {
		return remote.TransferResponse{}, err
	}
	amount, err := ledger.ToMinor(input.Amount)
	if err != nil {
		return remote.TransferResponse{}, validation.Field("amount", err.Error())
	}
	description := strings.TrimSpace(input.Description)
	if len(description) > maxDescription {
		return remote.TransferResponse{}, validation.Field("description", fmt.Sprintf("must be at most %d characters", maxDescription))
	}

	sender, err := s.userByPhone(ctx, senderPhone, ErrSenderNotFound)
	if err != nil {
		return remote.TransferResponse{}, err
	}
	if input.RequestorUserID != "" && sender.ID != input.RequestorUserID {
		return remote.TransferResponse{}, ErrNotOwner
	}
	receiver, err := s.userByPhone(ctx, receiverPhone, ErrReceiverNotFound)
	if err != nil {
		return remote.TransferResponse{}, err
	}
	if sender.ID == receiver.ID {
		return remote.TransferResponse{}, ErrSelfTransfer
	}

	fromWallet, err := s.wallets.GetByOwner(ctx, sender.ID)
	if err != nil {
		return remote.TransferResponse{}, err
	}
	toWallet, err := s.wallets.GetByOwner(ctx, receiver.ID)
	if err != nil {
		return remote.TransferResponse{}, err
	}

	if input.ClientTxID == "" {
		input.ClientTxID = uuid.New().String()
	}
	status := ledger.StatusCompleted
	if s.pendingAbove > 0 && amount > s.pendingAbove {
		status = ledger.StatusPending
	}

	rec, err := s.ledger.Transfer(ctx, ledger.Posting{
		FromCode:    fromWallet.AccountCode,
		ToCode:      toWallet.AccountCode,
		Kind:        ledger.KindP2P,
		ClientTxID:  sender.ID + ":" + input.ClientTxID,
		Amount:      amount,
		Currency:    fromWallet.Currency,
		SenderID:    sender.ID,
		ReceiverID:  receiver.ID,
		Description: description,
		Status:      status,
	})
	if errors.Is(err, ledger.ErrDuplicateTransaction) {
		logging.FromContext(ctx, s.logger).Info("transfer replayed", slog.String("transaction_id", rec.ID))
		return transferResponse(rec, sender, receiver), nil
	}
	if err != nil {
		return remote.TransferResponse{}, err
	}

	s.notify(ctx, notification.Message{
		Kind:          notification.KindTransferReceived,
		UserID:        receiver.ID,
		TransactionID: rec.ID,
		Body:          fmt.Sprintf("%s sent you %s %s", sender.DisplayName(), ledger.FromMinor(rec.Amount).StringFixed(ledger.MinorUnitScale), rec.Currency),
	})
	logging.FromContext(ctx, s.logger).Info("transfer posted",
		slog.String("transaction_id", rec.ID),
		slog.String("sender_id", sender.ID),
		slog.String("receiver_id", receiver.ID),
		slog.String("status", rec.Status),
	)
	return transferResponse(rec, sender, receiver), nil
}

// Recent lists the latest transfers involving userID, newest first.
func (s *Service) Recent(ctx context.Context, userID string, limit int) ([]remote.RawTransaction, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	records, err := s.ledger.History(ctx, ledger.Query{UserID: userID, Limit: limit})
	if err != nil {
		return nil, err
	}
	return s.rawTransactions(ctx, records)
}

// Between lists transfers exchanged by two users, newest first.
func (s *Service) Between(ctx context.Context, userID, otherID string, limit int) ([]remote.RawTransaction, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	records, err := s.ledger.History(ctx, ledger.Query{UserID: userID, CounterpartyID: otherID, Limit: limit})
	if err != nil {
		return nil, err
	}
	return s.rawTransactions(ctx, records)
}

// Get returns one transfer the requestor took part in.
func (s *Service) Get(ctx context.Context, id, requestorID string) (remote.RawTransaction, error) {
	rec, err := s.p2pRecord(ctx, id)
	if err != nil {
		return remote.RawTransaction{}, err
	}
	if rec.SenderID != requestorID && rec.ReceiverID != requestorID {
		return remote.RawTransaction{}, ErrNotParty
	}
	raws, err := s.rawTransactions(ctx, []ledger.Record{rec})
	if err != nil {
		return remote.RawTransaction{}, err
	}
	return raws[0], nil
}

// Cancel withdraws a pending transfer made by the requestor.
func (s *Service) Cancel(ctx context.Context, id, requestorID string) (remote.CancelResponse, error) {
	rec, err := s.p2pRecord(ctx, id)
	if err != nil {
		return remote.CancelResponse{}, err
	}
	if rec.SenderID != requestorID {
		return remote.CancelResponse{}, ErrNotOwner
	}
	cancelled, err := s.ledger.Cancel(ctx, rec.ID)
	if err != nil {
		return remote.CancelResponse{}, err
	}

	s.notify(ctx, notification.Message{
		Kind:          notification.KindTransferCancelled,
		UserID:        cancelled.ReceiverID,
		TransactionID: cancelled.ID,
		Body:          fmt.Sprintf("A pending transfer of %s %s was cancelled", ledger.FromMinor(cancelled.Amount).StringFixed(ledger.MinorUnitScale), cancelled.Currency),
	})
	logging.FromContext(ctx, s.logger).Info("transfer cancelled", slog.String("transaction_id", cancelled.ID))
	return remote.CancelResponse{
		TransactionID: cancelled.ID,
		Status:        cancelled.Status,
		CancelledAt:   cancelled.UpdatedAt.Format(time.RFC3339),
	}, nil
}

// Stats sums what userID sent and received over the last days. Cancelled
// transfers are not counted.
func (s *Service) Stats(ctx context.Context, userID string, days int) (remote.Stats, error) {
	if days <= 0 {
		days = defaultStatsDays
	}
	records, err := s.ledger.History(ctx, ledger.Query{UserID: userID, Since: s.now().AddDate(0, 0, -days)})
	if err != nil {
		return remote.Stats{}, err
	}

	currency := ""
	if w, err := s.wallets.GetByOwner(ctx, userID); err == nil {
		currency = w.Currency
	}
	var (
		sentCount, receivedCount int
		sent, received           int64
	)
	for _, rec := range records {
		if rec.Status == ledger.StatusCancelled {
			continue
		}
		if rec.SenderID == userID {
			sentCount++
			sent += rec.Amount
		} else {
			receivedCount++
			received += rec.Amount
		}
	}
	return remote.Stats{
		UserID:            userID,
		PeriodDays:        days,
		TotalTransactions: sentCount + receivedCount,
		Sent:              remote.FlowTotals{Count: sentCount, TotalAmount: remote.NewAmount(ledger.FromMinor(sent)), Currency: currency},
		Received:          remote.FlowTotals{Count: receivedCount, TotalAmount: remote.NewAmount(ledger.FromMinor(received)), Currency: currency},
		NetAmount:         remote.NewAmount(ledger.FromMinor(received - sent)),
	}, nil
}

func (s *Service) p2pRecord(ctx context.Context, id string) (ledger.Record, error) {
	rec, err := s.ledger.Get(ctx, id)
	if err != nil {
		return ledger.Record{}, err
	}
	if rec.Kind != ledger.KindP2P {
		return ledger.Record{}, ledger.ErrTransactionNotFound
	}
	return rec, nil
}

func (s *Service) userByPhone(ctx context.Context, phone string, notFound error) (identity.User, error) {
	user, err := s.users.FindByPhone(ctx, phone)
	if errors.Is(err, identity.ErrUserNotFound) {
		return identity.User{}, notFound
	}
	return user, err
}

func (s *Service) notify(ctx context.Context, msg notification.Message) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, msg); err != nil {
		logging.FromContext(ctx, s.logger).Warn("notification failed", slog.String("kind", msg.Kind), "error", err)
	}
}

// rawTransactions renders records with both parties resolved. Each user is
// looked up at most once per call.
func (s *Service) rawTransactions(ctx context.Context, records []ledger.Record) ([]remote.RawTransaction, error) {
	parties := make(map[string]*remote.Party)
	party := func(id string) (*remote.Party, error) {
		if p, ok := parties[id]; ok {
			return p, nil
		}
		user, err := s.users.Get(ctx, id)
		if errors.Is(err, identity.ErrUserNotFound) {
			p := &remote.Party{ID: id}
			parties[id] = p
			return p, nil
		}
		if err != nil {
			return nil, err
		}
		p := &remote.Party{ID: user.ID, FirstName: user.FirstName, LastName: user.LastName, PhoneNumber: user.PhoneNumber}
		parties[id] = p
		return p, nil
	}

	out := make([]remote.RawTransaction, 0, len(records))
	for _, rec := range records {
		sender, err := party(rec.SenderID)
		if err != nil {
			return nil, err
		}
		receiver, err := party(rec.ReceiverID)
		if err != nil {
			return nil, err
		}
		out = append(out, remote.RawTransaction{
			ID:          rec.ID,
			SenderID:    rec.SenderID,
			ReceiverID:  rec.ReceiverID,
			Amount:      remote.NewAmount(ledger.FromMinor(rec.Amount)),
			Currency:    rec.Currency,
			Description: rec.Description,
			Status:      rec.Status,
			CreatedAt:   rec.CreatedAt.Format(time.RFC3339),
			Sender:      sender,
			Receiver:    receiver,
		})
	}
	return out, nil
}

func transferResponse(rec ledger.Record, sender, receiver identity.User) remote.TransferResponse {
	return remote.TransferResponse{
		TransactionID: rec.ID,
		Status:        rec.Status,
		Sender:        remote.TransferParty{ID: sender.ID, Phone: sender.PhoneNumber, Name: sender.DisplayName()},
		Receiver:      remote.TransferParty{ID: receiver.ID, Phone: receiver.PhoneNumber, Name: receiver.DisplayName()},
		Amount:        remote.NewAmount(ledger.FromMinor(rec.Amount)),
		Currency:      rec.Currency,
		CreatedAt:     rec.CreatedAt.Format(time.RFC3339),
	}
}
