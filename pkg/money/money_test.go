package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMagnitude(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		european bool
		want     string
		negative bool
	}{
		{"plain", "90000.00", false, "90000", false},
		{"thousands separator", "52,683.63", false, "52683.63", false},
		{"rupee symbol", "₹1,250.50", false, "1250.5", false},
		{"rs prefix", "Rs.99.00", false, "99", false},
		{"leading minus", "-45.10", false, "45.1", true},
		{"trailing minus", "45.10-", false, "45.1", true},
		{"parentheses", "(1,000.00)", false, "1000", true},
		{"european", "1.234,56", true, "1234.56", false},
		{"european negative", "-1.234,56 €", true, "1234.56", true},
		{"explicit plus", "+12.00", false, "12", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, negative, err := ParseMagnitude(tt.input, tt.european)
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
			assert.Equal(t, tt.negative, negative)
		})
	}
}

func TestParseMagnitude_Invalid(t *testing.T) {
	for _, input := range []string{"", "  ", "abc", "₹", "12.3.4"} {
		t.Run(input, func(t *testing.T) {
			_, _, err := ParseMagnitude(input, false)
			assert.ErrorIs(t, err, ErrInvalidAmount)
		})
	}
}

func TestNewFromString(t *testing.T) {
	m, err := NewFromString("-1,234.567", USD, false)
	require.NoError(t, err)
	assert.Equal(t, int64(-123457), m.Amount())
	assert.True(t, m.IsNegative())
	assert.Equal(t, USD, m.Currency())
}

func TestIsCurrency(t *testing.T) {
	assert.True(t, IsCurrency(INR))
	assert.True(t, IsCurrency(EUR))
	assert.False(t, IsCurrency("inr"), "codes are upper case")
	assert.False(t, IsCurrency("XXQ"))
	assert.False(t, IsCurrency(""))
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		currency string
		want     string
	}{
		{"two decimals", "10.005", USD, "10.01"},
		{"yen has none", "1500.4", JPY, "1500"},
		{"unchanged", "-90000.00", INR, "-90000"},
		{"unknown falls back to usd", "1.239", "ZZZ", "1.24"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(decimal.RequireFromString(tt.amount), tt.currency)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestDisplay(t *testing.T) {
	m := NewFromDecimal(decimal.RequireFromString("1234.5"), USD)
	assert.Equal(t, "$1,234.50", m.Display())
	assert.Equal(t, "", (*Money)(nil).Display())
}

func TestTestDataGenerator_Reproducible(t *testing.T) {
	a := NewTestDataGeneratorWithSeed(42).Entries(5)
	b := NewTestDataGeneratorWithSeed(42).Entries(5)
	require.Len(t, a, 5)
	assert.Equal(t, a, b)
	for _, e := range a {
		assert.True(t, e.Amount.IsPositive())
		assert.NotContains(t, e.Narration, " ")
		if e.IsExpense {
			assert.Equal(t, "DR", e.Marker())
			assert.True(t, e.SignedAmount().IsNegative())
		}
	}
}
