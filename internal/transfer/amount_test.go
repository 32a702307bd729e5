package transfer

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/swish/internal/validation"
)

func TestParseAndNormalize(t *testing.T) {
	cases := map[string]string{
		"19.999":              "20.00",
		"0.005":               "0.01",
		"0.015":               "0.02",
		"2.675":               "2.68",
		"100":                 "100.00",
		" 12,5 ":              "12.50",
		"5.":                  "5.00",
		",5":                  "0.50",
		"0.01":                "0.01",
		"999999999999999.99":  "999999999999999.99",
		"0000000000000000042": "42.00",
		"149.994":             "149.99",
	}
	for in, want := range cases {
		got, err := ParseAndNormalize(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got.StringFixed(Scale), in)
	}
}

func TestParseAndNormalizeRejects(t *testing.T) {
	for _, in := range []string{"", "   ", "abc", "-5", "0", "0.00", "0.004", "1,000.50", "1,2,3", "NaN", "Inf", ".", "1e2", "1e3", "1E3", "1e5000000", "1e2000000000", "0x10", "1_000"} {
		_, err := ParseAndNormalize(in)
		require.Error(t, err, in)
		var ve *validation.Error
		require.ErrorAs(t, err, &ve, in)
		assert.Equal(t, "amount", ve.Field, in)
	}
}

func TestParseAmountBoundsSize(t *testing.T) {
	cases := map[string]string{
		"1000000000000000":                   "must have at most 15 whole digits",
		"0.0000000000000000001":              "must have at most 18 decimals",
		strings.Repeat("9", 65):              "is too long",
		"1" + strings.Repeat("0", 5_000_000): "is too long",
	}
	for in, reason := range cases {
		_, err := ParseAmount(in)
		var ve *validation.Error
		require.ErrorAs(t, err, &ve, "%.20s", in)
		assert.Equal(t, reason, ve.Reason, "%.20s", in)
	}
}

func TestNormalizeAmountIsIdempotent(t *testing.T) {
	for _, in := range []string{"19.999", "0.005", "0.004", "-2.345", "123456789.125", "7"} {
		once := NormalizeAmount(decimal.RequireFromString(in))
		twice := NormalizeAmount(once)
		assert.True(t, once.Equal(twice), in)
	}
}

func TestNormalizeAmountTieBreakIsHalfAwayFromZero(t *testing.T) {
	assert.Equal(t, "0.01", NormalizeAmount(decimal.RequireFromString("0.005")).StringFixed(Scale))
	assert.Equal(t, "-0.01", NormalizeAmount(decimal.RequireFromString("-0.005")).StringFixed(Scale))
	assert.Equal(t, "0.00", NormalizeAmount(decimal.RequireFromString("0.0049")).StringFixed(Scale))
}
