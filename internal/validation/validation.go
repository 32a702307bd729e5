// Package validation turns struct-tag validation failures into *Error values
// that callers can present without inspecting validator internals.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9]{6,15}$`)

// Error reports a single invalid input field. It is always raised before any
// network call and is recoverable by correcting the input.
type Error struct {
	Field  string
	Reason string
	// Cause is an optional sentinel the failure stems from.
	Cause error
}

func (e *Error) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Is makes errors.Is(err, &Error{}) match any validation error.
func (e *Error) Is(target error) bool {
	_, ok := target.(*Error)
	return ok
}

func (e *Error) Unwrap() error { return e.Cause }

// Field builds an *Error for field.
func Field(field, reason string) *Error {
	return &Error{Field: field, Reason: reason}
}

// IsValidation reports whether err is or wraps an *Error.
func IsValidation(err error) bool {
	var ve *Error
	return errors.As(err, &ve)
}

// Validator wraps go-playground validator with the phone rule used by both
// services.
type Validator struct {
	validate *validator.Validate
}

// New creates a Validator. Field names in errors come from json tags.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("phone", validatePhone)
	return &Validator{validate: v}
}

// Struct validates s and returns the first failure as *Error.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return Field(fe.Field(), reason(fe))
	}
	return &Error{Reason: err.Error()}
}

// Phone normalizes a phone number by dropping spaces, dashes and brackets, and
// checks its shape.
func Phone(field, raw string) (string, error) {
	cleaned := NormalizePhone(raw)
	if cleaned == "" {
		return "", Field(field, "is required")
	}
	if !phonePattern.MatchString(cleaned) {
		return "", Field(field, "must be a phone number")
	}
	return cleaned, nil
}

// NormalizePhone strips formatting characters from a phone number.
func NormalizePhone(raw string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.', '\u00a0':
			return -1
		}
		return r
	}, strings.TrimSpace(raw))
}

func validatePhone(fl validator.FieldLevel) bool {
	return phonePattern.MatchString(NormalizePhone(fl.Field().String()))
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "phone":
		return "must be a phone number"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
