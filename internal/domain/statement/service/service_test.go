package service

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/statement-engine/internal/domain/statement/categorize"
	"github.com/FACorreiaa/statement-engine/internal/domain/statement/extract"
	"github.com/FACorreiaa/statement-engine/internal/domain/statement/layout"
	"github.com/FACorreiaa/statement-engine/internal/domain/statement/model"
	"github.com/FACorreiaa/statement-engine/internal/domain/statement/parser"
	"github.com/FACorreiaa/statement-engine/internal/domain/statement/registry"
	"github.com/FACorreiaa/statement-engine/internal/domain/statement/repository"
	"github.com/FACorreiaa/statement-engine/internal/domain/statement/sniffer"
	"github.com/FACorreiaa/statement-engine/internal/domain/statement/template"
	"github.com/FACorreiaa/statement-engine/pkg/metrics"
)

type pageExtractor [][]layout.TextFragment

func (e pageExtractor) Open([]byte) (extract.Pages, error) { return e, nil }
func (e pageExtractor) NumPages() int                      { return len(e) }
func (e pageExtractor) Fragments(page int) ([]layout.TextFragment, error) {
	return e[page], nil
}

func frag(text string, x, y float64) layout.TextFragment {
	return layout.TextFragment{Text: text, X: x, Y: y, Width: float64(len(text)) * 5, Height: 9}
}

func hdfcPage() []layout.TextFragment {
	return []layout.TextFragment{
		frag("Date", 32, 760), frag("Narration", 97, 760), frag("Amount", 402, 760),
		frag("12-06-2025", 32, 740), frag("UPI/SWIGGY/ORDER", 97, 740), frag("450.00 DR", 402, 740),
		frag("13-06-2025", 32, 720), frag("NEFT-ACME PAYROLL", 97, 720), frag("90000.00 CR", 402, 720),
	}
}

var pdfDoc = model.Document{Name: "june.pdf", Data: []byte("%PDF-1.7\n%fake body")}

var csvDoc = model.Document{Name: "export.csv", Data: []byte(
	"Date,Description,Debit,Credit\n" +
		"2025-06-01,NETFLIX.COM,15.99,\n" +
		"2025-06-02,Salary June,,2500.00\n" +
		"2025-06-03,Corner kiosk,3.20,\n")}

type panicParser struct{}

func (panicParser) Parse(context.Context, model.Document) ([]model.Transaction, error) {
	var m map[string]int
	m["boom"]++
	return nil, nil
}

type fixture struct {
	svc     *StatementService
	store   *repository.MemoryStore
	cache   *template.Cache
	metrics *metrics.Metrics
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	builtins, err := template.Builtins()
	require.NoError(t, err)

	store := repository.NewMemoryStore(builtins...)
	require.NoError(t, store.Save(context.Background(), template.Template{
		Identifier:   "panicky",
		BankName:     "Panic Bank",
		Format:       model.FormatCSV,
		ParserModule: "panicky",
	}))

	reg := registry.New(nil)
	parser.Register(reg, pageExtractor{hdfcPage()}, parser.Options{})
	reg.RegisterFactory("panicky", func(template.ParserConfig) (registry.Parser, error) {
		return panicParser{}, nil
	})

	cache := template.NewCache(store, nil)
	m := metrics.New(prometheus.NewRegistry())
	svc := NewStatementService(cache, reg, nil).
		WithCategorizer(categorize.NewEngine(categorize.DefaultRules())).
		WithMetrics(m)
	return fixture{svc: svc, store: store, cache: cache, metrics: m}
}

func TestParseStatement_PDF(t *testing.T) {
	f := newFixture(t)

	res := f.svc.ParseStatement(context.Background(), pdfDoc, "hdfc_bank")
	require.True(t, res.Success, res.Error)
	require.Len(t, res.Transactions, 2)

	first := res.Transactions[0]
	assert.Equal(t, "2025-06-12", first.Date)
	assert.True(t, decimal.RequireFromString("-450").Equal(first.Amount))
	assert.Equal(t, model.TypeExpense, first.Type)
	assert.Equal(t, "INR", first.Currency)
	assert.Equal(t, "Food & Drink", first.Category)

	assert.Equal(t, model.TypeIncome, res.Transactions[1].Type)
	assert.Equal(t, "Income", res.Transactions[1].Category)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ParsesTotal.WithLabelValues("hdfc_bank", metrics.OutcomeSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.TransactionsTotal.WithLabelValues("hdfc_bank")))
}

func TestParseStatement_CSV(t *testing.T) {
	f := newFixture(t)

	res := f.svc.ParseStatement(context.Background(), csvDoc, "generic_csv")
	require.True(t, res.Success, res.Error)
	require.Len(t, res.Transactions, 3)
	assert.Equal(t, "Subscriptions", res.Transactions[0].Category)
	assert.True(t, decimal.RequireFromString("-15.99").Equal(res.Transactions[0].Amount))
	assert.Equal(t, "Income", res.Transactions[1].Category)
	assert.Equal(t, model.DefaultCategory, res.Transactions[2].Category)
}

func TestParseStatement_Failures(t *testing.T) {
	tests := []struct {
		name     string
		doc      model.Document
		template string
		wantErr  error
		contains string
	}{
		{"unknown template", pdfDoc, "unknown_bank", template.ErrTemplateNotFound, "unknown_bank"},
		{"pdf template with csv data", csvDoc, "hdfc_bank", model.ErrFormatMismatch, "expects PDF"},
		{"csv template with pdf data", pdfDoc, "generic_csv", model.ErrFormatMismatch, "document is PDF"},
		{"binary data", model.Document{Name: "x.bin", Data: []byte{0x00, 0x01, 0xff, 0xfe}}, "generic_csv", model.ErrFormatMismatch, "unknown"},
		{"empty document", model.Document{Name: "empty.csv"}, "generic_csv", sniffer.ErrEmptyFile, "empty.csv"},
		{"parser panic", csvDoc, "panicky", nil, "internal parser error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			res := f.svc.ParseStatement(context.Background(), tt.doc, tt.template)

			assert.False(t, res.Success)
			assert.NotNil(t, res.Transactions)
			assert.Empty(t, res.Transactions)
			assert.Contains(t, res.Error, tt.contains)
			if tt.wantErr != nil {
				assert.ErrorIs(t, res.Err, tt.wantErr)
			}
			label := tt.template
			if errors.Is(tt.wantErr, template.ErrTemplateNotFound) {
				label = metrics.UnknownTemplate
			}
			assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ParsesTotal.WithLabelValues(label, metrics.OutcomeFailure)))
		})
	}
}

func TestParseStatement_UnknownTemplatesShareOneSeries(t *testing.T) {
	f := newFixture(t)
	for _, id := range []string{"nope_1", "nope_2", "nope_3"} {
		res := f.svc.ParseStatement(context.Background(), csvDoc, id)
		require.False(t, res.Success)
	}

	assert.Equal(t, 1, testutil.CollectAndCount(f.metrics.ParsesTotal))
	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.ParsesTotal.WithLabelValues(metrics.UnknownTemplate, metrics.OutcomeFailure)))
	assert.Equal(t, 0, testutil.CollectAndCount(f.metrics.TransactionsTotal))
}

func TestParseStatement_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.svc.ParseStatement(ctx, pdfDoc, "hdfc_bank")
	b := f.svc.ParseStatement(ctx, pdfDoc, "hdfc_bank")
	require.True(t, a.Success)
	require.Len(t, b.Transactions, len(a.Transactions))
	for i := range a.Transactions {
		x, y := a.Transactions[i], b.Transactions[i]
		x.ID, y.ID = "", ""
		assert.Equal(t, x, y)
	}
	assert.Equal(t, int64(1), f.cache.Loads(), "template is loaded once")
}

func TestRun_TemplateTestThroughManager(t *testing.T) {
	f := newFixture(t)
	validator := template.NewValidator(moduleSet{parser.ModuleTablePDF, parser.ModuleColumnCSV})
	manager := template.NewManager(f.store, f.cache, validator, nil).WithRunner(f.svc)

	got := manager.Test(context.Background(), "generic_csv", csvDoc)
	assert.Equal(t, template.TestResult{Success: true, TransactionCount: 3}, got)

	got = manager.Test(context.Background(), "generic_csv", pdfDoc)
	assert.False(t, got.Success)
	require.NotEmpty(t, got.Errors)
	assert.Contains(t, got.Errors[0], "does not match")
}

func TestRun_RecoversPanic(t *testing.T) {
	f := newFixture(t)
	tmpl, err := f.store.Load(context.Background(), "panicky")
	require.NoError(t, err)

	_, err = f.svc.Run(context.Background(), tmpl, csvDoc)
	require.Error(t, err)
	assert.False(t, errors.Is(err, model.ErrFormatMismatch))
}

type moduleSet []string

func (m moduleSet) IsAvailable(id string) bool {
	for _, v := range m {
		if v == id {
			return true
		}
	}
	return false
}
