// Package transfer submits transfers and reconciles local state with the
// remote outcome.
package transfer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/congo-pay/swish/internal/remote"
	"github.com/congo-pay/swish/internal/session"
	"github.com/congo-pay/swish/internal/transport"
	"github.com/congo-pay/swish/internal/validation"
)

var (
	// ErrTransferFailed is returned when the service rejects a transfer without a reason.
	ErrTransferFailed = errors.New("transfer failed")
	// ErrCancelFailed is returned when the service rejects a cancel without a reason.
	ErrCancelFailed = errors.New("cancel failed")
	// ErrSubmissionInFlight is returned when Submit is called while another
	// submission has not resolved yet.
	ErrSubmissionInFlight = errors.New("a transfer is already being submitted")
)

// Session is the part of the session manager the workflow needs.
type Session interface {
	Identity() (session.Identity, bool)
	RefreshBalance(ctx context.Context) error
}

// Service is the write side of the transaction service.
type Service interface {
	Transfer(ctx context.Context, req remote.TransferRequest, idempotencyKey string) (remote.TransferResponse, error)
	Cancel(ctx context.Context, id string) (remote.CancelResponse, error)
}

// HistoryHook is called after a successful mutation so history views can
// re-fetch.
type HistoryHook func(ctx context.Context) error

// Request is one transfer as entered by the user.
type Request struct {
	ReceiverPhone string
	Amount        string
	Description   string
}

type transferInput struct {
	SenderPhone   string `json:"senderPhone" validate:"required,phone"`
	ReceiverPhone string `json:"receiverPhone" validate:"required,phone"`
	Description   string `json:"description" validate:"max=255"`
}

// Outcome is a transfer the service accepted. Reconcile is non-nil when a
// follow-up refresh failed; the transfer itself still happened.
type Outcome struct {
	Result         remote.TransferResponse
	Amount         decimal.Decimal
	IdempotencyKey string
	Reconcile      *ReconcileError
}

// CancelOutcome is a cancellation the service accepted.
type CancelOutcome struct {
	Result    remote.CancelResponse
	Reconcile *ReconcileError
}

// ReconcileError reports which refresh failed after a successful mutation.
type ReconcileError struct {
	Balance error
	History error
}

func (e *ReconcileError) Error() string {
	var parts []string
	if e.Balance != nil {
		parts = append(parts, "balance: "+e.Balance.Error())
	}
	if e.History != nil {
		parts = append(parts, "history: "+e.History.Error())
	}
	return "reconcile " + strings.Join(parts, "; ")
}

func (e *ReconcileError) Unwrap() []error {
	var errs []error
	if e.Balance != nil {
		errs = append(errs, e.Balance)
	}
	if e.History != nil {
		errs = append(errs, e.History)
	}
	return errs
}

// Workflow validates, submits and reconciles transfers. At most one Submit
// runs at a time per Workflow.
type Workflow struct {
	session   Session
	service   Service
	onHistory HistoryHook
	validator *validation.Validator
	logger    *slog.Logger
	inFlight  atomic.Bool
	newKey    func() string
}

// NewWorkflow wires a workflow. onHistory may be nil.
func NewWorkflow(sess Session, service Service, onHistory HistoryHook, logger *slog.Logger) *Workflow {
	return &Workflow{
		session:   sess,
		service:   service,
		onHistory: onHistory,
		validator: validation.New(),
		logger:    logger,
		newKey:    uuid.NewString,
	}
}

// Submit sends one transfer from the current identity. Input problems are
// returned as *validation.Error before any network call. A service failure is
// returned with the remote message and leaves local state untouched. On
// success the balance and history are refreshed concurrently.
func (w *Workflow) Submit(ctx context.Context, req Request) (Outcome, error) {
	if !w.inFlight.CompareAndSwap(false, true) {
		return Outcome{}, ErrSubmissionInFlight
	}
	defer w.inFlight.Store(false)

	identity, ok := w.session.Identity()
	if !ok {
		return Outcome{}, &validation.Error{Field: "senderPhone", Reason: "is required", Cause: session.ErrNotAuthenticated}
	}

	in := transferInput{
		SenderPhone:   validation.NormalizePhone(identity.PhoneNumber),
		ReceiverPhone: validation.NormalizePhone(req.ReceiverPhone),
		Description:   strings.TrimSpace(req.Description),
	}
	if err := w.validator.Struct(in); err != nil {
		return Outcome{}, err
	}
	if in.SenderPhone == in.ReceiverPhone {
		return Outcome{}, validation.Field("receiverPhone", "must differ from the sender")
	}
	amount, err := ParseAndNormalize(req.Amount)
	if err != nil {
		return Outcome{}, err
	}

	key := w.newKey()
	resp, err := w.service.Transfer(ctx, remote.TransferRequest{
		SenderPhone:   in.SenderPhone,
		ReceiverPhone: in.ReceiverPhone,
		Amount:        json.Number(amount.StringFixed(Scale)),
		Description:   in.Description,
	}, key)
	if err != nil {
		w.logger.Info("transfer rejected", slog.String("user_id", identity.ID), slog.String("idempotency_key", key), "error", err)
		return Outcome{}, transport.Reason(err, ErrTransferFailed)
	}
	w.logger.Info("transfer submitted",
		slog.String("user_id", identity.ID),
		slog.String("transaction_id", resp.TransactionID),
		slog.String("status", resp.Status),
	)

	return Outcome{
		Result:         resp,
		Amount:         amount,
		IdempotencyKey: key,
		Reconcile:      w.reconcile(ctx),
	}, nil
}

// Cancel asks the service to cancel a pending transaction and reconciles on
// success.
func (w *Workflow) Cancel(ctx context.Context, transactionID string) (CancelOutcome, error) {
	identity, ok := w.session.Identity()
	if !ok {
		return CancelOutcome{}, session.ErrNotAuthenticated
	}
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return CancelOutcome{}, validation.Field("transactionId", "is required")
	}
	resp, err := w.service.Cancel(ctx, transactionID)
	if err != nil {
		return CancelOutcome{}, transport.Reason(err, ErrCancelFailed)
	}
	w.logger.Info("transfer cancelled", slog.String("user_id", identity.ID), slog.String("transaction_id", transactionID))
	return CancelOutcome{Result: resp, Reconcile: w.reconcile(ctx)}, nil
}

func (w *Workflow) reconcile(ctx context.Context) *ReconcileError {
	var (
		g          errgroup.Group
		balanceErr error
		historyErr error
	)
	g.Go(func() error {
		balanceErr = w.session.RefreshBalance(ctx)
		return balanceErr
	})
	if w.onHistory != nil {
		g.Go(func() error {
			if err := w.onHistory(ctx); err != nil {
				historyErr = fmt.Errorf("reload history: %w", err)
			}
			return historyErr
		})
	}
	if err := g.Wait(); err == nil {
		return nil
	}
	w.logger.Warn("reconcile after transfer failed", "balance_error", balanceErr, "history_error", historyErr)
	return &ReconcileError{Balance: balanceErr, History: historyErr}
}
