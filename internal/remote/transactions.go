package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/congo-pay/swish/internal/transport"
)

const idempotencyKeyHeader = "Idempotency-Key"

// Party is one side of a raw transaction. Upstream services disagree on field
// spellings, so both name and phone come in two variants.
type Party struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	Phone       string `json:"phone,omitempty"`
}

// RawTransaction is a transfer as stored by the transaction service. It has
// no fixed viewer perspective.
type RawTransaction struct {
	ID          string `json:"id"`
	SenderID    string `json:"sender_id,omitempty"`
	ReceiverID  string `json:"receiver_id,omitempty"`
	Amount      Amount `json:"amount"`
	Currency    string `json:"currency,omitempty"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	Sender      *Party `json:"sender,omitempty"`
	Receiver    *Party `json:"receiver,omitempty"`
}

// TransferRequest is the body of POST /transactions/transfer. Amount is sent
// as a JSON number with exactly two decimals.
type TransferRequest struct {
	SenderPhone   string      `json:"sender_phone"`
	ReceiverPhone string      `json:"receiver_phone"`
	Amount        json.Number `json:"amount"`
	Description   string      `json:"description,omitempty"`
}

// TransferParty is the identity snippet echoed back by a transfer.
type TransferParty struct {
	ID    string `json:"id"`
	Phone string `json:"phone"`
	Name  string `json:"name"`
}

// TransferResponse is the authoritative outcome of a transfer.
type TransferResponse struct {
	TransactionID string        `json:"transaction_id"`
	Status        string        `json:"status"`
	Sender        TransferParty `json:"sender"`
	Receiver      TransferParty `json:"receiver"`
	Amount        Amount        `json:"amount"`
	Currency      string        `json:"currency"`
	CreatedAt     string        `json:"created_at"`
}

// RecentResponse wraps GET /transactions/user/{id}/recent.
type RecentResponse struct {
	Transactions []RawTransaction `json:"transactions"`
	Count        int              `json:"count"`
	UserID       string           `json:"user_id"`
}

// BetweenResponse wraps GET /transactions/between/{a}/{b}.
type BetweenResponse struct {
	Transactions []RawTransaction `json:"transactions"`
	Count        int              `json:"count"`
	User1ID      string           `json:"user1_id"`
	User2ID      string           `json:"user2_id"`
}

// CancelResponse wraps PUT /transactions/{id}/cancel.
type CancelResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	CancelledAt   string `json:"cancelled_at"`
}

// FlowTotals summarises one direction of money flow.
type FlowTotals struct {
	Count       int    `json:"count"`
	TotalAmount Amount `json:"total_amount"`
	Currency    string `json:"currency"`
}

// Stats wraps GET /transactions/stats/{id}.
type Stats struct {
	UserID            string     `json:"user_id"`
	PeriodDays        int        `json:"period_days"`
	TotalTransactions int        `json:"total_transactions"`
	Sent              FlowTotals `json:"sent"`
	Received          FlowTotals `json:"received"`
	NetAmount         Amount     `json:"net_amount"`
}

// Transactions is a typed client for the transaction service.
type Transactions struct {
	client *transport.Client
}

// NewTransactions wraps a transport client bound to the transaction service.
func NewTransactions(client *transport.Client) *Transactions {
	return &Transactions{client: client}
}

// Transfer submits one transfer. A non-empty idempotencyKey is sent as the
// Idempotency-Key header.
func (t *Transactions) Transfer(ctx context.Context, req TransferRequest, idempotencyKey string) (TransferResponse, error) {
	var header http.Header
	if idempotencyKey != "" {
		header = http.Header{idempotencyKeyHeader: []string{idempotencyKey}}
	}
	var out TransferResponse
	err := t.client.Call(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/transactions/transfer",
		Body:   req,
		Header: header,
	}, &out)
	return out, err
}

// Recent lists the latest transactions involving userID.
func (t *Transactions) Recent(ctx context.Context, userID string, limit int) (RecentResponse, error) {
	var out RecentResponse
	err := t.client.Call(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   "/transactions/user/" + url.PathEscape(userID) + "/recent",
		Query:  limitQuery("limit", limit),
	}, &out)
	return out, err
}

// Get fetches a single transaction.
func (t *Transactions) Get(ctx context.Context, id string) (RawTransaction, error) {
	var out RawTransaction
	err := t.client.Call(ctx, transport.Request{Method: http.MethodGet, Path: "/transactions/" + url.PathEscape(id)}, &out)
	return out, err
}

// Between lists transactions exchanged by two users.
func (t *Transactions) Between(ctx context.Context, user1ID, user2ID string, limit int) (BetweenResponse, error) {
	var out BetweenResponse
	err := t.client.Call(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   "/transactions/between/" + url.PathEscape(user1ID) + "/" + url.PathEscape(user2ID),
		Query:  limitQuery("limit", limit),
	}, &out)
	return out, err
}

// Cancel asks the service to cancel a transaction that has not settled.
func (t *Transactions) Cancel(ctx context.Context, id string) (CancelResponse, error) {
	var out CancelResponse
	err := t.client.Call(ctx, transport.Request{Method: http.MethodPut, Path: "/transactions/" + url.PathEscape(id) + "/cancel"}, &out)
	return out, err
}

// Stats fetches sent/received totals for userID over the last days.
func (t *Transactions) Stats(ctx context.Context, userID string, days int) (Stats, error) {
	var out Stats
	err := t.client.Call(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   "/transactions/stats/" + url.PathEscape(userID),
		Query:  limitQuery("days", days),
	}, &out)
	return out, err
}

func limitQuery(key string, n int) url.Values {
	if n <= 0 {
		return nil
	}
	return url.Values{key: []string{strconv.Itoa(n)}}
}
