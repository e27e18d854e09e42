// Package money parses statement amounts and keeps them at the precision of
// their ISO-4217 currency. Amounts are decimal.Decimal throughout; go-money
// supplies the currency table and display formatting.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Common currency codes (ISO-4217)
const (
	USD = "USD" // US Dollar
	EUR = "EUR" // Euro
	GBP = "GBP" // British Pound
	INR = "INR" // Indian Rupee
	BRL = "BRL" // Brazilian Real
	JPY = "JPY" // Japanese Yen (no decimal places)
)

// ErrInvalidAmount is returned when a string cannot be read as an amount.
var ErrInvalidAmount = errors.New("invalid amount")

// Symbols stripped before parsing. Longer symbols first so "R$" is removed
// before "$".
var symbols = []string{"R$", "Rs.", "Rs", "INR", "$", "€", "£", "¥", "₹"}

// Money represents a monetary value with currency.
type Money struct {
	m *money.Money
}

// IsCurrency reports whether code is a known ISO-4217 currency.
func IsCurrency(code string) bool {
	if code == "" || strings.ToUpper(code) != code {
		return false
	}
	return money.GetCurrency(code) != nil
}

// NewFromDecimal creates Money from a decimal.Decimal value, rounding to the
// currency's minor unit. Unknown currencies fall back to USD.
func NewFromDecimal(amount decimal.Decimal, currencyCode string) *Money {
	currency := money.GetCurrency(currencyCode)
	if currency == nil {
		currency = money.GetCurrency(USD)
	}

	multiplier := decimal.New(1, int32(currency.Fraction))
	cents := amount.Mul(multiplier).Round(0).IntPart()

	return &Money{m: money.New(cents, currency.Code)}
}

// NewFromString parses a string amount and currency.
// Accepts formats like "100.50", "1,234.56", "1.234,56" (European)
func NewFromString(amount string, currencyCode string, europeanFormat bool) (*Money, error) {
	value, negative, err := ParseMagnitude(amount, europeanFormat)
	if err != nil {
		return nil, err
	}
	if negative {
		value = value.Neg()
	}
	return NewFromDecimal(value, currencyCode), nil
}

// ParseMagnitude reads a statement amount and returns its absolute value and
// whether the text was written as negative. Negative forms are a leading or
// trailing '-' and accounting parentheses.
func ParseMagnitude(amount string, europeanFormat bool) (decimal.Decimal, bool, error) {
	s := strings.TrimSpace(amount)
	s = strings.ReplaceAll(s, " ", "")
	for _, sym := range symbols {
		s = strings.ReplaceAll(s, sym, "")
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	if strings.HasPrefix(s, "-") {
		negative = true
		s = s[1:]
	} else if strings.HasSuffix(s, "-") {
		negative = true
		s = s[:len(s)-1]
	}
	s = strings.TrimPrefix(s, "+")

	if europeanFormat {
		// European: 1.234,56 -> 1234.56
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	} else {
		// American: 1,234.56 -> 1234.56
		s = strings.ReplaceAll(s, ",", "")
	}
	if s == "" {
		return decimal.Zero, false, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	if d.IsNegative() {
		negative = true
	}
	return d.Abs(), negative, nil
}

// Normalize rounds amount to the minor unit of currencyCode.
func Normalize(amount decimal.Decimal, currencyCode string) decimal.Decimal {
	return NewFromDecimal(amount, currencyCode).ToDecimal()
}

// Amount returns the amount in minor units (cents)
func (m *Money) Amount() int64 {
	if m == nil || m.m == nil {
		return 0
	}
	return m.m.Amount()
}

// Currency returns the ISO-4217 currency code
func (m *Money) Currency() string {
	if m == nil || m.m == nil {
		return ""
	}
	return m.m.Currency().Code
}

// IsNegative returns true if the amount is less than zero
func (m *Money) IsNegative() bool {
	return m != nil && m.m != nil && m.m.IsNegative()
}

// Display returns a formatted string for display (e.g., "$1,234.56")
func (m *Money) Display() string {
	if m == nil || m.m == nil {
		return ""
	}
	return m.m.Display()
}

// ToDecimal converts to decimal.Decimal for precise calculations
func (m *Money) ToDecimal() decimal.Decimal {
	if m == nil || m.m == nil {
		return decimal.Zero
	}
	currency := m.m.Currency()
	d := decimal.NewFromInt(m.m.Amount())
	divisor := decimal.New(1, int32(currency.Fraction))
	return d.Div(divisor)
}
