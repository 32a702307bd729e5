// Package ledgerview reinterprets perspective-free transaction records from
// the point of view of one user.
package ledgerview

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/congo-pay/swish/internal/remote"
)

// Direction is the flow of money relative to the viewer.
type Direction string

const (
	Sent     Direction = "sent"
	Received Direction = "received"
)

// Status is the viewer-facing state of a transfer.
type Status string

const (
	Completed Status = "completed"
	Pending   Status = "pending"
	Failed    Status = "failed"
)

// PartyView is one side of a transaction with names and phones resolved.
type PartyView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Entry is a raw transaction seen by one viewer. It is derived on every fetch
// and never persisted.
type Entry struct {
	ID                string          `json:"id"`
	Direction         Direction       `json:"direction"`
	Counterparty      string          `json:"counterparty"`
	CounterpartyPhone string          `json:"counterpartyPhone"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency,omitempty"`
	Timestamp         time.Time       `json:"timestamp"`
	Message           string          `json:"message,omitempty"`
	Status            Status          `json:"status"`
	Sender            PartyView       `json:"sender"`
	Receiver          PartyView       `json:"receiver"`
}

// MapStatus folds any upstream status string into Completed, Pending or
// Failed. Unknown values are Pending.
func MapStatus(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "completed":
		return Completed
	case "failed", "cancelled", "canceled":
		return Failed
	default:
		return Pending
	}
}

// ToViewEntry converts raw for viewerID. It never fails: missing parties or
// names become empty strings and an unreadable timestamp becomes the zero
// time. With an empty viewerID the entry is reported as sent with the
// receiver as counterparty.
func ToViewEntry(raw remote.RawTransaction, viewerID string) Entry {
	sender := resolveParty(raw.Sender, raw.SenderID)
	receiver := resolveParty(raw.Receiver, raw.ReceiverID)

	direction := Sent
	counterparty := receiver
	if viewerID != "" && sender.ID != viewerID && raw.SenderID != viewerID {
		direction = Received
		counterparty = sender
	}

	return Entry{
		ID:                raw.ID,
		Direction:         direction,
		Counterparty:      counterparty.Name,
		CounterpartyPhone: counterparty.Phone,
		Amount:            raw.Amount.Abs(),
		Currency:          raw.Currency,
		Timestamp:         parseTimestamp(raw.CreatedAt),
		Message:           raw.Description,
		Status:            MapStatus(raw.Status),
		Sender:            sender,
		Receiver:          receiver,
	}
}

// ToViewEntries converts raws in order. The result is never nil.
func ToViewEntries(raws []remote.RawTransaction, viewerID string) []Entry {
	entries := make([]Entry, 0, len(raws))
	for _, raw := range raws {
		entries = append(entries, ToViewEntry(raw, viewerID))
	}
	return entries
}

func resolveParty(p *remote.Party, fallbackID string) PartyView {
	if p == nil {
		return PartyView{ID: fallbackID}
	}
	view := PartyView{ID: p.ID, Name: DisplayName(*p), Phone: p.PhoneNumber}
	if view.ID == "" {
		view.ID = fallbackID
	}
	if view.Phone == "" {
		view.Phone = p.Phone
	}
	return view
}

// DisplayName prefers the explicit name and falls back to first and last
// name joined.
func DisplayName(p remote.Party) string {
	if name := strings.TrimSpace(p.Name); name != "" {
		return name
	}
	return strings.TrimSpace(strings.TrimSpace(p.FirstName) + " " + strings.TrimSpace(p.LastName))
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func parseTimestamp(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts
		}
	}
	return time.Time{}
}
