package money

import (
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
)

// TestDataGenerator generates realistic statement test data using gofakeit.
type TestDataGenerator struct {
	faker *gofakeit.Faker
}

// NewTestDataGenerator creates a new test data generator with a random seed.
func NewTestDataGenerator() *TestDataGenerator {
	return &TestDataGenerator{
		faker: gofakeit.New(0), // Random seed
	}
}

// NewTestDataGeneratorWithSeed creates a generator with a specific seed for reproducibility.
func NewTestDataGeneratorWithSeed(seed int64) *TestDataGenerator {
	return &TestDataGenerator{
		faker: gofakeit.New(seed),
	}
}

// StatementEntry is one generated statement line.
type StatementEntry struct {
	Date        time.Time
	Narration   string
	Amount      decimal.Decimal // always positive
	IsExpense   bool
	Counterpart string
}

// Marker returns the DR/CR suffix printed next to the amount.
func (e StatementEntry) Marker() string {
	if e.IsExpense {
		return "DR"
	}
	return "CR"
}

// SignedAmount returns the amount negated for expenses.
func (e StatementEntry) SignedAmount() decimal.Decimal {
	if e.IsExpense {
		return e.Amount.Neg()
	}
	return e.Amount
}

// Entry generates a single random statement line.
func (g *TestDataGenerator) Entry() StatementEntry {
	isExpense := g.faker.Bool()
	cents := g.faker.Number(100, 10_000_000)

	return StatementEntry{
		Date:        g.faker.DateRange(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)),
		Narration:   g.Narration(isExpense),
		Amount:      decimal.New(int64(cents), -2),
		IsExpense:   isExpense,
		Counterpart: g.faker.Company(),
	}
}

// Entries generates count random statement lines.
func (g *TestDataGenerator) Entries(count int) []StatementEntry {
	entries := make([]StatementEntry, count)
	for i := 0; i < count; i++ {
		entries[i] = g.Entry()
	}
	return entries
}

var expenseChannels = []string{"UPI", "POS", "ATM", "ACH-D", "BIL"}
var incomeChannels = []string{"NEFT", "IMPS", "RTGS", "SAL"}

// Narration returns a bank-style narration without spaces, so it survives
// as a single text fragment.
func (g *TestDataGenerator) Narration(isExpense bool) string {
	channels := incomeChannels
	if isExpense {
		channels = expenseChannels
	}
	channel := channels[g.faker.Number(0, len(channels)-1)]
	return fmt.Sprintf("%s/%d/%s", channel, g.faker.Number(100000, 999999), g.faker.LetterN(8))
}
