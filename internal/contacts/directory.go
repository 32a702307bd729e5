// Package contacts resolves the counterparties a user can send money to.
package contacts

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/congo-pay/swish/internal/ledgerview"
	"github.com/congo-pay/swish/internal/remote"
	"github.com/congo-pay/swish/internal/transport"
	"github.com/congo-pay/swish/internal/validation"
)

// ErrAddFailed is returned when adding a contact fails without a remote reason.
var ErrAddFailed = errors.New("could not add contact")

// Contact is a counterparty known to the viewer.
type Contact struct {
	ID       string             `json:"id"`
	Name     string             `json:"name"`
	Phone    string             `json:"phone"`
	Initials string             `json:"initials"`
	Recent   []ledgerview.Entry `json:"recent,omitempty"`
}

// Source is the contacts part of the user service.
type Source interface {
	Contacts(ctx context.Context, userID string) (remote.ContactsResponse, error)
	AddContact(ctx context.Context, userID, phoneNumber, nickname string) (remote.AddContactResponse, error)
}

// Directory reads contacts straight from the user service on every call.
type Directory struct {
	source Source
	logger *slog.Logger
}

// NewDirectory builds a Directory over source.
func NewDirectory(source Source, logger *slog.Logger) *Directory {
	return &Directory{source: source, logger: logger}
}

// List returns the contacts of userID. No contacts is an empty, non-nil
// slice with a nil error.
func (d *Directory) List(ctx context.Context, userID string) ([]Contact, error) {
	resp, err := d.source.Contacts(ctx, userID)
	if err != nil {
		d.logger.Warn("fetch contacts", slog.String("user_id", userID), "error", err)
		return nil, err
	}
	out := make([]Contact, 0, len(resp.Contacts))
	for _, raw := range resp.Contacts {
		out = append(out, fromRaw(raw, userID))
	}
	return out, nil
}

// Add stores phone as a contact of userID under nickname.
func (d *Directory) Add(ctx context.Context, userID, phone, nickname string) (Contact, error) {
	normalized, err := validation.Phone("phoneNumber", phone)
	if err != nil {
		return Contact{}, err
	}
	resp, err := d.source.AddContact(ctx, userID, normalized, strings.TrimSpace(nickname))
	if err != nil {
		return Contact{}, transport.Reason(err, ErrAddFailed)
	}
	return fromRaw(resp.Contact, userID), nil
}

func fromRaw(raw remote.RawContact, viewerID string) Contact {
	name := strings.TrimSpace(raw.Nickname)
	if name == "" {
		name = raw.PhoneNumber
	}
	c := Contact{
		ID:       raw.ID,
		Name:     name,
		Phone:    raw.PhoneNumber,
		Initials: Initials(name),
	}
	if len(raw.RecentTransactions) > 0 {
		c.Recent = ledgerview.ToViewEntries(raw.RecentTransactions, viewerID)
	}
	return c
}

// Initials upper-cases the first letter of at most the first two
// whitespace-separated tokens of name. Tokens without letters, such as a
// phone number, contribute nothing.
func Initials(name string) string {
	var b strings.Builder
	taken := 0
	for _, token := range strings.Fields(name) {
		if taken == 2 {
			break
		}
		i := strings.IndexFunc(token, unicode.IsLetter)
		if i < 0 {
			continue
		}
		r, _ := utf8.DecodeRuneInString(token[i:])
		b.WriteRune(unicode.ToUpper(r))
		taken++
	}
	return b.String()
}
