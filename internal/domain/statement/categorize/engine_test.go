package categorize

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/statement-engine/internal/domain/statement/model"
)

func TestEngine_Match(t *testing.T) {
	engine := NewEngine([]Rule{
		{Keyword: "uber", Category: "Transport"},
		{Keyword: "UBER EATS", Category: "Food & Drink"},
		{Keyword: "netflix", Category: "Subscriptions", Priority: 5},
		{Keyword: "card", Category: "Card", Priority: 1},
	})

	tests := []struct {
		name        string
		description string
		want        string
	}{
		{"case insensitive", "POS Uber trip 1234", "Transport"},
		{"longer keyword wins", "UBER EATS ORDER", "Food & Drink"},
		{"priority beats length", "CARD NETFLIX.COM", "Subscriptions"},
		{"priority beats longer keyword", "UBER CARD", "Card"},
		{"no match", "NEFT-TRANSFER", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := engine.Match(tt.description)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Category)
		})
	}
}

func TestEngine_DuplicateKeywordFirstWins(t *testing.T) {
	engine := NewEngine([]Rule{
		{Keyword: "RENT", Category: "Housing"},
		{Keyword: "rent", Category: "Other"},
		{Keyword: "", Category: "Ignored"},
		{Keyword: "EMPTY", Category: ""},
	})
	assert.Equal(t, 1, engine.PatternCount())
	assert.Equal(t, "Housing", engine.Match("RENT/JUNE").Category)
}

func TestEngine_Categorize(t *testing.T) {
	engine := NewEngine(DefaultRules())
	in := []model.Transaction{
		{Description: "UPI/SWIGGY/ORDER", Category: model.DefaultCategory},
		{Description: "NEFT-ACME PAYROLL", Category: model.DefaultCategory},
		{Description: "UNKNOWN PAYEE"},
	}

	out := engine.Categorize(in)
	assert.Equal(t, "Food & Drink", out[0].Category)
	assert.Equal(t, "Income", out[1].Category)
	assert.Equal(t, model.DefaultCategory, out[2].Category)
	assert.Equal(t, model.DefaultCategory, in[0].Category, "input is not modified")
}

func TestEngine_EmptyAndRebuild(t *testing.T) {
	engine := NewEngine(nil)
	assert.Nil(t, engine.Match("anything"))

	engine.Build([]Rule{{Keyword: "ANYTHING", Category: "Misc"}})
	require.NotNil(t, engine.Match("anything"))
}

func TestEngine_ConcurrentBuildAndMatch(t *testing.T) {
	engine := NewEngine(DefaultRules())
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			engine.Build(DefaultRules())
		}()
		go func(i int) {
			defer wg.Done()
			_ = engine.Match(fmt.Sprintf("ATM WITHDRAWAL %d", i))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, "Cash", engine.Match("ATM WITHDRAWAL").Category)
}

func TestParseRules(t *testing.T) {
	rules, err := ParseRules([]byte(`
- keyword: STARBUCKS
  category: Coffee
  priority: 3
- keyword: LIDL
  category: Groceries
`))
	require.NoError(t, err)
	assert.Equal(t, []Rule{
		{Keyword: "STARBUCKS", Category: "Coffee", Priority: 3},
		{Keyword: "LIDL", Category: "Groceries"},
	}, rules)

	_, err = ParseRules([]byte("keyword: [unclosed"))
	assert.Error(t, err)
}
