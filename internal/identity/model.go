package identity

import (
	"errors"
	"time"
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidCode        = errors.New("invalid verification code")
	ErrContactExists      = errors.New("contact already exists")
	ErrSelfContact        = errors.New("cannot add yourself as a contact")
)

// User represents a registered account.
type User struct {
	ID           string
	PhoneNumber  string
	FirstName    string
	LastName     string
	Email        string
	PasswordHash []byte
	IsVerified   bool
	CreatedAt    time.Time
}

// RegisterInput carries the fields of a new account.
type RegisterInput struct {
	PhoneNumber string `json:"phoneNumber" validate:"required,phone"`
	FirstName   string `json:"firstName" validate:"required,max=100"`
	LastName    string `json:"lastName" validate:"required,max=100"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=6"`
}

// Contact links an owner to another user under an optional nickname.
type Contact struct {
	OwnerID   string
	ContactID string
	Nickname  string
	CreatedAt time.Time
}
