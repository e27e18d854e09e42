package parser

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/statement-engine/internal/domain/statement/extract"
	"github.com/FACorreiaa/statement-engine/internal/domain/statement/layout"
	"github.com/FACorreiaa/statement-engine/internal/domain/statement/model"
	"github.com/FACorreiaa/statement-engine/internal/domain/statement/registry"
	"github.com/FACorreiaa/statement-engine/internal/domain/statement/template"
	"github.com/FACorreiaa/statement-engine/pkg/money"
)

// fakeExtractor serves fixed pages of fragments.
type fakeExtractor struct {
	pages   [][]layout.TextFragment
	openErr error
	pageErr error
}

func (f fakeExtractor) Open([]byte) (extract.Pages, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	return fakePages(f), nil
}

type fakePages fakeExtractor

func (p fakePages) NumPages() int { return len(p.pages) }

func (p fakePages) Fragments(page int) ([]layout.TextFragment, error) {
	if p.pageErr != nil && page == len(p.pages)-1 {
		return nil, p.pageErr
	}
	return p.pages[page], nil
}

func f(text string, x, y float64) layout.TextFragment {
	return layout.TextFragment{Text: text, X: x, Y: y, Width: float64(len(text)) * 5, Height: 9}
}

func builtin(t *testing.T, id string) template.Template {
	t.Helper()
	all, err := template.Builtins()
	require.NoError(t, err)
	for _, b := range all {
		if b.Identifier == id {
			return b
		}
	}
	t.Fatalf("no builtin %s", id)
	return template.Template{}
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("tx-%d", n)
	}
}

func hdfcHeader(y float64) []layout.TextFragment {
	return []layout.TextFragment{
		f("Date", 32, y), f("Narration", 97, y), f("Chq./Ref.No.", 330, y),
		f("Value Dt", 342, y), f("Amount", 402, y), f("Closing Balance", 482, y),
	}
}

func twoPageStatement() [][]layout.TextFragment {
	page1 := append(hdfcHeader(760),
		f("Opening Balance", 97, 750), f("10,000.00", 482, 750),
		f("12-06-2025", 32, 740), f("UPI/Payment.../", 97, 740), f("12-06-2025", 342, 740), f("90000.00 DR", 402, 740), f("1,10,000.00", 482, 740),
		f("07-06-2025", 32, 720), f("NEFT-.../", 97, 720), f("52683.63 CR", 402, 720),
		f("30-06-2025", 32, 100), f("RENT/JUNE", 97, 100),
	)
	page2 := []layout.TextFragment{
		f("landlord ref", 97, 740),
		f("25,000.00 DR", 402, 730),
	}
	return [][]layout.TextFragment{page1, page2}
}

func TestTable_ParsesMultiPageStatement(t *testing.T) {
	tmpl := builtin(t, "hdfc_bank")
	p, err := NewTable(tmpl.ParserConfig, fakeExtractor{pages: twoPageStatement()}, Options{NewID: sequentialIDs()})
	require.NoError(t, err)

	txs, err := p.Parse(context.Background(), model.Document{Name: "june.pdf"})
	require.NoError(t, err)
	require.Len(t, txs, 3)

	assert.Equal(t, model.Transaction{
		ID:          "tx-1",
		Date:        "2025-06-12",
		Description: "UPI/Payment.../",
		Amount:      txs[0].Amount,
		Currency:    money.INR,
		Type:        model.TypeExpense,
		Category:    model.DefaultCategory,
	}, txs[0])
	assert.True(t, decimal.RequireFromString("-90000.00").Equal(txs[0].Amount))

	assert.Equal(t, "2025-06-07", txs[1].Date)
	assert.True(t, decimal.RequireFromString("52683.63").Equal(txs[1].Amount))
	assert.Equal(t, model.TypeIncome, txs[1].Type)

	assert.Equal(t, "2025-06-30", txs[2].Date)
	assert.Equal(t, "RENT/JUNE landlord ref", txs[2].Description, "pending carries across the page break")
	assert.True(t, decimal.RequireFromString("-25000").Equal(txs[2].Amount))
}

func TestTable_Idempotent(t *testing.T) {
	tmpl := builtin(t, "hdfc_bank")
	p, err := NewTable(tmpl.ParserConfig, fakeExtractor{pages: twoPageStatement()}, Options{})
	require.NoError(t, err)

	first, err := p.Parse(context.Background(), model.Document{})
	require.NoError(t, err)
	second, err := p.Parse(context.Background(), model.Document{})
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.NotEqual(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].Date, second[i].Date)
		assert.Equal(t, first[i].Description, second[i].Description)
		assert.True(t, first[i].Amount.Equal(second[i].Amount))
		assert.Equal(t, first[i].Type, second[i].Type)
	}
}

func TestTable_SkipHeaderLines(t *testing.T) {
	cfg := builtin(t, "hdfc_bank").ParserConfig
	cfg.SkipHeaderLines = 2 // opening balance and the first transaction

	p, err := NewTable(cfg, fakeExtractor{pages: twoPageStatement()[:1]}, Options{})
	require.NoError(t, err)

	txs, err := p.Parse(context.Background(), model.Document{})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "2025-06-07", txs[0].Date)
}

func TestTable_CurrencyFallsBackToOptions(t *testing.T) {
	cfg := builtin(t, "hdfc_bank").ParserConfig
	cfg.Currency = ""

	p, err := NewTable(cfg, fakeExtractor{pages: twoPageStatement()}, Options{Currency: money.EUR})
	require.NoError(t, err)

	txs, err := p.Parse(context.Background(), model.Document{})
	require.NoError(t, err)
	require.NotEmpty(t, txs)
	assert.Equal(t, money.EUR, txs[0].Currency)
}

func TestTable_ExtractionErrors(t *testing.T) {
	cfg := builtin(t, "hdfc_bank").ParserConfig

	p, err := NewTable(cfg, fakeExtractor{openErr: fmt.Errorf("%w: encrypted", model.ErrExtraction)}, Options{})
	require.NoError(t, err)
	_, err = p.Parse(context.Background(), model.Document{Name: "locked.pdf"})
	assert.ErrorIs(t, err, model.ErrExtraction)
	assert.ErrorContains(t, err, "locked.pdf")

	p, err = NewTable(cfg, fakeExtractor{pages: twoPageStatement(), pageErr: model.ErrExtraction}, Options{})
	require.NoError(t, err)
	_, err = p.Parse(context.Background(), model.Document{})
	assert.ErrorIs(t, err, model.ErrExtraction)
}

func TestNewTable_InvalidConfig(t *testing.T) {
	cfg := builtin(t, "hdfc_bank").ParserConfig

	_, err := NewTable(cfg, nil, Options{})
	assert.Error(t, err)

	cfg.DatePattern = "("
	_, err = NewTable(cfg, fakeExtractor{}, Options{})
	assert.ErrorContains(t, err, "date pattern")

	cfg = builtin(t, "hdfc_bank").ParserConfig
	cfg.SkipPatterns = []string{"["}
	_, err = NewTable(cfg, fakeExtractor{}, Options{})
	assert.ErrorContains(t, err, "skip pattern")
}

func TestRegister(t *testing.T) {
	reg := registry.New(nil)
	Register(reg, fakeExtractor{pages: twoPageStatement()}, Options{})

	assert.Equal(t, []string{ModuleColumnCSV, ModuleTablePDF}, reg.ListAvailable())

	p, err := reg.Build(context.Background(), builtin(t, "hdfc_bank"))
	require.NoError(t, err)
	txs, err := p.Parse(context.Background(), model.Document{})
	require.NoError(t, err)
	assert.Len(t, txs, 3)

	_, err = reg.Build(context.Background(), template.Template{Identifier: "broken", ParserModule: ModuleColumnCSV})
	assert.ErrorContains(t, err, "columnMapping")
}
