package cli

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/congo-pay/swish/internal/ledgerview"
)

// money renders amount with two decimals in the printer's locale, e.g.
// "1 234,50 SEK" for Swedish.
func (a *App) money(amount decimal.Decimal, currency string) string {
	if currency == "" {
		currency = defaultCurrency
	}
	return a.printer.Sprintf("%.2f %s", amount.Round(2).InexactFloat64(), currency)
}

// signed prefixes outgoing amounts with a minus sign.
func (a *App) signed(e ledgerview.Entry) string {
	if e.Direction == ledgerview.Sent {
		return "-" + a.money(e.Amount, e.Currency)
	}
	return "+" + a.money(e.Amount, e.Currency)
}

func when(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
