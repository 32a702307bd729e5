package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/congo-pay/swish/internal/validation"
)

// Service manages identity lifecycle.
type Service struct {
	repo             Repository
	validator        *validation.Validator
	verificationCode string
	now              func() time.Time
}

// NewService creates a new identity service. verificationCode is the only
// code Verify accepts.
func NewService(repo Repository, verificationCode string) *Service {
	return &Service{
		repo:             repo,
		validator:        validation.New(),
		verificationCode: verificationCode,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// Register creates an unverified user and stores a hashed password.
func (s *Service) Register(ctx context.Context, input RegisterInput) (User, error) {
	input.FirstName = strings.TrimSpace(input.FirstName)
	input.LastName = strings.TrimSpace(input.LastName)
	input.Email = strings.TrimSpace(input.Email)
	if err := s.validator.Struct(input); err != nil {
		return User{}, err
	}
	phone, err := validation.Phone("phoneNumber", input.PhoneNumber)
	if err != nil {
		return User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}

	user := User{
		ID:           uuid.New().String(),
		PhoneNumber:  phone,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Email:        input.Email,
		PasswordHash: hash,
		CreatedAt:    s.now(),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return User{}, err
	}
	return user, nil
}

// Authenticate verifies a phone number and password.
func (s *Service) Authenticate(ctx context.Context, phone, password string) (User, error) {
	user, err := s.repo.FindByPhone(ctx, validation.NormalizePhone(phone))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

// Get fetches a user by id.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	return s.repo.FindByID(ctx, id)
}

// FindByPhone fetches a user by phone number, ignoring formatting characters.
func (s *Service) FindByPhone(ctx context.Context, phone string) (User, error) {
	return s.repo.FindByPhone(ctx, validation.NormalizePhone(phone))
}

// Verify marks the user verified when code matches.
func (s *Service) Verify(ctx context.Context, userID, code string) error {
	if strings.TrimSpace(code) == "" {
		return validation.Field("verificationCode", "is required")
	}
	if code != s.verificationCode {
		return ErrInvalidCode
	}
	return s.repo.MarkVerified(ctx, userID)
}

// ContactUser pairs a contact link with the user it points at.
type ContactUser struct {
	Contact
	User User
}

// AddContact links the user registered to phone as a contact of ownerID.
func (s *Service) AddContact(ctx context.Context, ownerID, phone, nickname string) (ContactUser, error) {
	cleaned, err := validation.Phone("phoneNumber", phone)
	if err != nil {
		return ContactUser{}, err
	}
	target, err := s.repo.FindByPhone(ctx, cleaned)
	if err != nil {
		return ContactUser{}, err
	}
	if target.ID == ownerID {
		return ContactUser{}, ErrSelfContact
	}
	contact := Contact{
		OwnerID:   ownerID,
		ContactID: target.ID,
		Nickname:  strings.TrimSpace(nickname),
		CreatedAt: s.now(),
	}
	if err := s.repo.AddContact(ctx, contact); err != nil {
		return ContactUser{}, err
	}
	return ContactUser{Contact: contact, User: target}, nil
}

// Contacts lists ownerID's contacts with their profiles. Contacts whose user
// no longer exists are skipped.
func (s *Service) Contacts(ctx context.Context, ownerID string) ([]ContactUser, error) {
	links, err := s.repo.ListContacts(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]ContactUser, 0, len(links))
	for _, link := range links {
		user, err := s.repo.FindByID(ctx, link.ContactID)
		if errors.Is(err, ErrUserNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, ContactUser{Contact: link, User: user})
	}
	return out, nil
}

// Validate resolves a phone number or, when phone is empty, a user id.
func (s *Service) Validate(ctx context.Context, phone, userID string) (User, error) {
	switch {
	case strings.TrimSpace(phone) != "":
		return s.FindByPhone(ctx, phone)
	case strings.TrimSpace(userID) != "":
		return s.Get(ctx, userID)
	default:
		return User{}, &validation.Error{Reason: "phoneNumber or userId is required"}
	}
}

// DisplayName joins first and last name.
func (u User) DisplayName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
