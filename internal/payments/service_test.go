package payments

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/congo-pay/swish/internal/identity"
	"github.com/congo-pay/swish/internal/ledger"
	"github.com/congo-pay/swish/internal/logging"
	"github.com/congo-pay/swish/internal/notification"
	"github.com/congo-pay/swish/internal/validation"
	"github.com/congo-pay/swish/internal/wallet"
)

type testNotifier struct {
	sent []notification.Message
}

func (n *testNotifier) Send(_ context.Context, msg notification.Message) error {
	n.sent = append(n.sent, msg)
	return nil
}

type fixture struct {
	svc      *Service
	wallets  *wallet.Service
	notifier *testNotifier
	anna     identity.User
	erik     identity.User
}

func newFixture(t *testing.T, pendingAbove int64) fixture {
	t.Helper()
	ctx := context.Background()
	led := ledger.NewInMemory()
	if err := led.EnsureAccount(ctx, ledger.TreasuryAccountCode); err != nil {
		t.Fatalf("treasury: %v", err)
	}
	wallets := wallet.NewService(wallet.NewMemoryRepository(), led, "SEK")
	users := identity.NewService(identity.NewMemoryRepository(), "000000")
	notifier := &testNotifier{}

	mk := func(phone, first string) identity.User {
		u, err := users.Register(ctx, identity.RegisterInput{PhoneNumber: phone, FirstName: first, LastName: "Svensson", Email: first + "@example.se", Password: "hemligt"})
		if err != nil {
			t.Fatalf("register %s: %v", first, err)
		}
		if _, err := wallets.Create(ctx, wallet.CreateInput{OwnerID: u.ID, OpeningBalance: 100_000}); err != nil {
			t.Fatalf("wallet %s: %v", first, err)
		}
		return u
	}

	f := fixture{
		svc:      NewService(led, wallets, users, notifier, pendingAbove, logging.Discard()),
		wallets:  wallets,
		notifier: notifier,
	}
	f.anna = mk("+46701234567", "Anna")
	f.erik = mk("+46707654321", "Erik")
	return f
}

func (f fixture) balance(t *testing.T, userID string) int64 {
	t.Helper()
	b, err := f.wallets.BalanceByOwner(context.Background(), userID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return b.Amount
}

func TestTransferSuccess(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	res, err := f.svc.Transfer(ctx, TransferInput{
		SenderPhone:     f.anna.PhoneNumber,
		ReceiverPhone:   "+46 70 765 43 21",
		Amount:          decimal.RequireFromString("20.00"),
		Description:     "lunch",
		RequestorUserID: f.anna.ID,
	})
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if res.Status != ledger.StatusCompleted || res.Receiver.ID != f.erik.ID || res.Sender.Name != "Anna Svensson" {
		t.Fatalf("unexpected response %+v", res)
	}
	if !res.Amount.Equal(decimal.NewFromInt(20)) || res.Currency != "SEK" {
		t.Fatalf("unexpected amount %s %s", res.Amount, res.Currency)
	}
	if got := f.balance(t, f.anna.ID); got != 98_000 {
		t.Fatalf("expected sender balance 98000, got %d", got)
	}
	if got := f.balance(t, f.erik.ID); got != 102_000 {
		t.Fatalf("expected receiver balance 102000, got %d", got)
	}
	if len(f.notifier.sent) != 1 || f.notifier.sent[0].Kind != notification.KindTransferReceived || f.notifier.sent[0].UserID != f.erik.ID {
		t.Fatalf("expected receiver notification, got %+v", f.notifier.sent)
	}
}

func TestTransferRejections(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	base := TransferInput{SenderPhone: f.anna.PhoneNumber, ReceiverPhone: f.erik.PhoneNumber, Amount: decimal.NewFromInt(1), RequestorUserID: f.anna.ID}

	cases := []struct {
		name   string
		mutate func(*TransferInput)
		check  func(error) bool
	}{
		{"insufficient funds", func(in *TransferInput) { in.Amount = decimal.NewFromInt(5_000) }, func(err error) bool { return errors.Is(err, ledger.ErrInsufficientFunds) }},
		{"not the sender", func(in *TransferInput) { in.RequestorUserID = f.erik.ID }, func(err error) bool { return errors.Is(err, ErrNotOwner) }},
		{"self transfer", func(in *TransferInput) { in.ReceiverPhone = f.anna.PhoneNumber }, func(err error) bool { return errors.Is(err, ErrSelfTransfer) }},
		{"unknown receiver", func(in *TransferInput) { in.ReceiverPhone = "+46700000000" }, func(err error) bool { return errors.Is(err, ErrReceiverNotFound) }},
		{"sub-minor amount", func(in *TransferInput) { in.Amount = decimal.RequireFromString("0.001") }, validation.IsValidation},
		{"zero amount", func(in *TransferInput) { in.Amount = decimal.Zero }, validation.IsValidation},
		{"amount beyond int64 minor units", func(in *TransferInput) { in.Amount = decimal.RequireFromString("184467440737095516.17") }, validation.IsValidation},
		{"missing receiver", func(in *TransferInput) { in.ReceiverPhone = "" }, validation.IsValidation},
	}
	for _, tc := range cases {
		in := base
		tc.mutate(&in)
		if _, err := f.svc.Transfer(ctx, in); !tc.check(err) {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
	}
	if got := f.balance(t, f.anna.ID); got != 100_000 {
		t.Fatalf("rejected transfers must not move funds, balance %d", got)
	}
	if got := f.balance(t, f.erik.ID); got != 100_000 {
		t.Fatalf("rejected transfers must not credit the receiver, balance %d", got)
	}
}

func TestTransferReplayIsIdempotent(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	in := TransferInput{SenderPhone: f.anna.PhoneNumber, ReceiverPhone: f.erik.PhoneNumber, Amount: decimal.NewFromInt(10), ClientTxID: "key-1", RequestorUserID: f.anna.ID}

	first, err := f.svc.Transfer(ctx, in)
	if err != nil {
		t.Fatalf("first transfer: %v", err)
	}
	second, err := f.svc.Transfer(ctx, in)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if first.TransactionID != second.TransactionID {
		t.Fatalf("replay produced a new transaction %s != %s", second.TransactionID, first.TransactionID)
	}
	if got := f.balance(t, f.anna.ID); got != 99_000 {
		t.Fatalf("replay moved funds twice, balance %d", got)
	}
	if len(f.notifier.sent) != 1 {
		t.Fatalf("replay must not notify again, got %d", len(f.notifier.sent))
	}
}

func TestPendingTransferCanBeCancelledBySender(t *testing.T) {
	f := newFixture(t, 50_000)
	ctx := context.Background()

	res, err := f.svc.Transfer(ctx, TransferInput{SenderPhone: f.anna.PhoneNumber, ReceiverPhone: f.erik.PhoneNumber, Amount: decimal.NewFromInt(600), RequestorUserID: f.anna.ID})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if res.Status != ledger.StatusPending {
		t.Fatalf("expected pending status above threshold, got %s", res.Status)
	}

	if _, err := f.svc.Cancel(ctx, res.TransactionID, f.erik.ID); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("receiver must not cancel, got %v", err)
	}
	cancelled, err := f.svc.Cancel(ctx, res.TransactionID, f.anna.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != ledger.StatusCancelled || cancelled.CancelledAt == "" {
		t.Fatalf("unexpected cancel response %+v", cancelled)
	}
	if got := f.balance(t, f.anna.ID); got != 100_000 {
		t.Fatalf("cancel must refund the sender, balance %d", got)
	}
	if _, err := f.svc.Cancel(ctx, res.TransactionID, f.anna.ID); !errors.Is(err, ledger.ErrNotCancellable) {
		t.Fatalf("expected second cancel to fail, got %v", err)
	}
	last := f.notifier.sent[len(f.notifier.sent)-1]
	if last.Kind != notification.KindTransferCancelled || last.UserID != f.erik.ID {
		t.Fatalf("expected cancellation notice to receiver, got %+v", last)
	}
}

func TestHistoryAndStats(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	send := func(from, to identity.User, amount int64) string {
		res, err := f.svc.Transfer(ctx, TransferInput{SenderPhone: from.PhoneNumber, ReceiverPhone: to.PhoneNumber, Amount: decimal.NewFromInt(amount), RequestorUserID: from.ID})
		if err != nil {
			t.Fatalf("transfer: %v", err)
		}
		return res.TransactionID
	}
	send(f.anna, f.erik, 20)
	send(f.erik, f.anna, 5)
	last := send(f.anna, f.erik, 7)

	recent, err := f.svc.Recent(ctx, f.anna.ID, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 || recent[0].ID != last {
		t.Fatalf("expected newest two, got %+v", recent)
	}
	if recent[0].Sender == nil || recent[0].Sender.FirstName != "Anna" || recent[0].Receiver.PhoneNumber != f.erik.PhoneNumber {
		t.Fatalf("expected resolved parties, got %+v", recent[0])
	}

	between, err := f.svc.Between(ctx, f.erik.ID, f.anna.ID, 0)
	if err != nil || len(between) != 3 {
		t.Fatalf("expected 3 transfers between, got %d, %v", len(between), err)
	}

	if _, err := f.svc.Get(ctx, last, "someone-else"); !errors.Is(err, ErrNotParty) {
		t.Fatalf("expected outsider to be refused, got %v", err)
	}
	got, err := f.svc.Get(ctx, last, f.erik.ID)
	if err != nil || got.ID != last {
		t.Fatalf("get: %+v, %v", got, err)
	}

	stats, err := f.svc.Stats(ctx, f.anna.ID, 0)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.PeriodDays != 30 || stats.TotalTransactions != 3 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.Sent.Count != 2 || !stats.Sent.TotalAmount.Equal(decimal.NewFromInt(27)) {
		t.Fatalf("unexpected sent totals %+v", stats.Sent)
	}
	if !stats.Received.TotalAmount.Equal(decimal.NewFromInt(5)) || !stats.NetAmount.Equal(decimal.NewFromInt(-22)) {
		t.Fatalf("unexpected received/net %+v %s", stats.Received, stats.NetAmount)
	}
}
