package validation

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signup struct {
	PhoneNumber string `json:"phoneNumber" validate:"required,phone"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=6"`
}

func TestStructReportsJSONFieldNames(t *testing.T) {
	v := New()

	err := v.Struct(signup{PhoneNumber: "+46 70 123 45 67", Email: "not-an-email", Password: "secret"})
	var ve *Error
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "email", ve.Field)
	assert.Equal(t, "must be a valid email address", ve.Reason)
}

func TestStructAcceptsValidInput(t *testing.T) {
	assert.NoError(t, New().Struct(signup{PhoneNumber: "+46701234567", Email: "a@b.se", Password: "secret1"}))
}

func TestStructMinLength(t *testing.T) {
	err := New().Struct(signup{PhoneNumber: "+46701234567", Email: "a@b.se", Password: "abc"})
	assert.EqualError(t, err, "password: must be at least 6 characters")
}

func TestPhoneNormalizes(t *testing.T) {
	phone, err := Phone("receiverPhone", " +46 (70) 123-45.67 ")
	require.NoError(t, err)
	assert.Equal(t, "+46701234567", phone)

	_, err = Phone("receiverPhone", "   ")
	assert.EqualError(t, err, "receiverPhone: is required")

	_, err = Phone("receiverPhone", "call me")
	assert.True(t, IsValidation(err))
}

func TestIsValidationThroughWrapping(t *testing.T) {
	err := fmt.Errorf("submit: %w", Field("amount", "must be positive"))
	assert.True(t, IsValidation(err))
	assert.True(t, errors.Is(err, &Error{}))
	assert.False(t, IsValidation(errors.New("plain")))
}

func TestErrorUnwrapsCause(t *testing.T) {
	cause := errors.New("not authenticated")
	err := fmt.Errorf("submit: %w", &Error{Field: "senderPhone", Reason: "is required", Cause: cause})
	assert.True(t, IsValidation(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "submit: senderPhone: is required", err.Error())
	assert.Nil(t, Field("amount", "is required").Unwrap())
}
