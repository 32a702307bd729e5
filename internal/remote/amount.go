package remote

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a monetary value that upstream services emit either as a JSON
// number or as a numeric string. Values that parse as neither decode to zero.
type Amount struct {
	decimal.Decimal
}

// NewAmount wraps d.
func NewAmount(d decimal.Decimal) Amount {
	return Amount{Decimal: d}
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(data []byte) error {
	raw := bytes.TrimSpace(data)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		a.Decimal = decimal.Zero
		return nil
	}
	text := string(raw)
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			a.Decimal = decimal.Zero
			return nil
		}
		text = strings.TrimSpace(s)
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		d = decimal.Zero
	}
	a.Decimal = d
	return nil
}

// MarshalJSON emits the amount as a JSON number.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}
