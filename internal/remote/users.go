package remote

import (
	"context"
	"net/http"
	"net/url"

	"github.com/congo-pay/swish/internal/transport"
)

// User is the profile returned by the user service.
type User struct {
	ID          string   `json:"id"`
	PhoneNumber string   `json:"phoneNumber"`
	FirstName   string   `json:"firstName"`
	LastName    string   `json:"lastName"`
	Email       string   `json:"email"`
	IsVerified  bool     `json:"isVerified"`
	Balance     *float64 `json:"balance,omitempty"`
}

// LoginRequest is the body of POST /users/login.
type LoginRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Password    string `json:"password"`
}

// LoginResponse is returned by a successful login.
type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// RegisterRequest is the body of POST /users/register.
type RegisterRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	Password    string `json:"password"`
}

// RegisterResponse acknowledges a newly created account.
type RegisterResponse struct {
	Message     string `json:"message"`
	UserID      string `json:"userId"`
	PhoneNumber string `json:"phoneNumber"`
}

// RawContact is a counterparty as stored by the user service.
type RawContact struct {
	ID                 string           `json:"id"`
	Nickname           string           `json:"nickname"`
	PhoneNumber        string           `json:"phoneNumber"`
	RecentTransactions []RawTransaction `json:"recentTransactions,omitempty"`
}

// ContactsResponse wraps GET /users/{id}/contacts.
type ContactsResponse struct {
	Contacts []RawContact `json:"contacts"`
}

// AddContactResponse wraps POST /users/{id}/contacts.
type AddContactResponse struct {
	Message string     `json:"message"`
	Contact RawContact `json:"contact"`
}

// BalanceResponse wraps GET /users/{id}/balance.
type BalanceResponse struct {
	UserID   string  `json:"userId"`
	Balance  float64 `json:"balance"`
	Currency string  `json:"currency"`
}

// ValidateResponse wraps POST /users/validate.
type ValidateResponse struct {
	Valid bool   `json:"valid"`
	User  *User  `json:"user,omitempty"`
	Error string `json:"error,omitempty"`
}

// LookupResponse wraps GET /users/{phoneNumber}.
type LookupResponse struct {
	User               User             `json:"user"`
	RecentTransactions []RawTransaction `json:"recentTransactions"`
}

// MessageResponse is the generic acknowledgement body.
type MessageResponse struct {
	Message string `json:"message"`
}

// Users is a typed client for the user service.
type Users struct {
	client *transport.Client
}

// NewUsers wraps a transport client bound to the user service.
func NewUsers(client *transport.Client) *Users {
	return &Users{client: client}
}

// Login exchanges credentials for a token and profile.
func (u *Users) Login(ctx context.Context, req LoginRequest) (LoginResponse, error) {
	var out LoginResponse
	err := u.client.Call(ctx, transport.Request{Method: http.MethodPost, Path: "/users/login", Body: req}, &out)
	return out, err
}

// Register creates an account. It does not authenticate.
func (u *Users) Register(ctx context.Context, req RegisterRequest) (RegisterResponse, error) {
	var out RegisterResponse
	err := u.client.Call(ctx, transport.Request{Method: http.MethodPost, Path: "/users/register", Body: req}, &out)
	return out, err
}

// Contacts lists the counterparties known to userID.
func (u *Users) Contacts(ctx context.Context, userID string) (ContactsResponse, error) {
	var out ContactsResponse
	err := u.client.Call(ctx, transport.Request{Method: http.MethodGet, Path: "/users/" + url.PathEscape(userID) + "/contacts"}, &out)
	return out, err
}

// AddContact stores phoneNumber as a counterparty of userID.
func (u *Users) AddContact(ctx context.Context, userID, phoneNumber, nickname string) (AddContactResponse, error) {
	body := map[string]string{"phoneNumber": phoneNumber}
	if nickname != "" {
		body["nickname"] = nickname
	}
	var out AddContactResponse
	err := u.client.Call(ctx, transport.Request{Method: http.MethodPost, Path: "/users/" + url.PathEscape(userID) + "/contacts", Body: body}, &out)
	return out, err
}

// Balance fetches the latest balance of userID.
func (u *Users) Balance(ctx context.Context, userID string) (BalanceResponse, error) {
	var out BalanceResponse
	err := u.client.Call(ctx, transport.Request{Method: http.MethodGet, Path: "/users/" + url.PathEscape(userID) + "/balance"}, &out)
	return out, err
}

// Verify submits the verification code received by userID.
func (u *Users) Verify(ctx context.Context, userID, code string) (MessageResponse, error) {
	var out MessageResponse
	err := u.client.Call(ctx, transport.Request{
		Method: http.MethodPut,
		Path:   "/users/" + url.PathEscape(userID) + "/verify",
		Body:   map[string]string{"verificationCode": code},
	}, &out)
	return out, err
}

// Validate checks that a phone number or user id belongs to an account.
func (u *Users) Validate(ctx context.Context, phoneNumber, userID string) (ValidateResponse, error) {
	body := map[string]string{}
	if phoneNumber != "" {
		body["phoneNumber"] = phoneNumber
	}
	if userID != "" {
		body["userId"] = userID
	}
	var out ValidateResponse
	err := u.client.Call(ctx, transport.Request{Method: http.MethodPost, Path: "/users/validate", Body: body}, &out)
	return out, err
}

// Lookup fetches the public profile registered to phoneNumber.
func (u *Users) Lookup(ctx context.Context, phoneNumber string) (LookupResponse, error) {
	var out LookupResponse
	err := u.client.Call(ctx, transport.Request{Method: http.MethodGet, Path: "/users/" + url.PathEscape(phoneNumber)}, &out)
	return out, err
}
