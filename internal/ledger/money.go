package ledger

import (
	"errors"

	"github.com/shopspring/decimal"
)

// MinorUnitScale is the number of decimals held by one major unit.
const MinorUnitScale = 2

// ErrInvalidAmount is returned for amounts that are not positive, carry more
// precision than a minor unit or do not fit in int64 minor units.
var ErrInvalidAmount = errors.New("amount must be positive, in range and have at most two decimals")

// ToMinor converts a major-unit amount to minor units.
func ToMinor(amount decimal.Decimal) (int64, error) {
	if !amount.IsPositive() {
		return 0, ErrInvalidAmount
	}
	shifted := amount.Shift(MinorUnitScale)
	if !shifted.Equal(shifted.Truncate(0)) || !shifted.BigInt().IsInt64() {
		return 0, ErrInvalidAmount
	}
	return shifted.IntPart(), nil
}

// FromMinor converts minor units back to a major-unit amount.
func FromMinor(minor int64) decimal.Decimal {
	return decimal.New(minor, -MinorUnitScale)
}
