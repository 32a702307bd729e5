package transfer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/congo-pay/swish/internal/validation"
)

// Scale is the number of decimals transmitted for an amount.
const Scale = 2

// MaxIntegerDigits bounds the whole-unit part of an amount so it stays
// representable in int64 minor units.
const MaxIntegerDigits = 15

const (
	maxFractionDigits = 18
	maxAmountLength   = 64
)

var amountPattern = regexp.MustCompile(`^-?(\d*)(?:[.,](\d*))?$`)

// ParseAmount reads user input as a positive decimal written in plain
// notation. A comma is accepted as the decimal separator.
func ParseAmount(raw string) (decimal.Decimal, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return decimal.Zero, validation.Field("amount", "is required")
	}
	if len(text) > maxAmountLength {
		return decimal.Zero, validation.Field("amount", "is too long")
	}
	parts := amountPattern.FindStringSubmatch(text)
	if parts == nil || parts[1]+parts[2] == "" {
		return decimal.Zero, validation.Field("amount", "must be a number")
	}
	if len(strings.TrimLeft(parts[1], "0")) > MaxIntegerDigits {
		return decimal.Zero, validation.Field("amount", fmt.Sprintf("must have at most %d whole digits", MaxIntegerDigits))
	}
	if len(parts[2]) > maxFractionDigits {
		return decimal.Zero, validation.Field("amount", fmt.Sprintf("must have at most %d decimals", maxFractionDigits))
	}
	d, err := decimal.NewFromString(strings.Replace(text, ",", ".", 1))
	if err != nil {
		return decimal.Zero, validation.Field("amount", "must be a number")
	}
	if !d.IsPositive() {
		return decimal.Zero, validation.Field("amount", "must be greater than zero")
	}
	return d, nil
}

// NormalizeAmount rounds to two decimals, half away from zero. It is
// idempotent.
func NormalizeAmount(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// ParseAndNormalize combines ParseAmount and NormalizeAmount and rejects
// amounts that round to zero.
func ParseAndNormalize(raw string) (decimal.Decimal, error) {
	d, err := ParseAmount(raw)
	if err != nil {
		return decimal.Zero, err
	}
	normalized := NormalizeAmount(d)
	if !normalized.IsPositive() {
		return decimal.Zero, validation.Field("amount", "must be at least 0.01")
	}
	return normalized, nil
}
