// Package parser implements the built-in parser modules: a template-driven PDF
// table parser and a column-index CSV parser.
package parser

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/statement-engine/internal/domain/statement/model"
	"github.com/FACorreiaa/statement-engine/internal/domain/statement/reconstruct"
	"github.com/FACorreiaa/statement-engine/internal/domain/statement/template"
	"github.com/FACorreiaa/statement-engine/pkg/money"
)

// Module identifiers used in Template.ParserModule.
const (
	ModuleTablePDF  = "table_pdf"
	ModuleColumnCSV = "column_csv"
)

// Options are shared by both parser modules.
type Options struct {
	// Currency applies when the template declares none.
	Currency string
	Logger   *slog.Logger
	// NewID generates transaction ids. Defaults to random UUIDs.
	NewID func() string
}

func (o Options) withDefaults() Options {
	if o.Currency == "" {
		o.Currency = money.USD
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	return o
}

// ParseError describes a row that contributed nothing. Row errors never fail
// a parse; they are logged and counted.
type ParseError struct {
	Page    int
	Row     int
	Column  string
	Message string
}

func (e ParseError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("page %d row %d: %s", e.Page, e.Row, e.Message)
	}
	return fmt.Sprintf("page %d row %d, column %s: %s", e.Page, e.Row, e.Column, e.Message)
}

func currencyOf(cfg template.ParserConfig, opts Options) string {
	if cfg.Currency != "" {
		return cfg.Currency
	}
	return opts.Currency
}

func markersOf(cfg template.ParserConfig) reconstruct.Markers {
	m := reconstruct.DefaultMarkers()
	if cfg.TypeMarkers == nil {
		return m
	}
	if len(cfg.TypeMarkers.Credit) > 0 {
		m.Credit = cfg.TypeMarkers.Credit
	}
	if len(cfg.TypeMarkers.Debit) > 0 {
		m.Debit = cfg.TypeMarkers.Debit
	}
	return m
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("skip pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// newTransaction finalizes a signed amount into an output transaction.
func newTransaction(opts Options, currency, date, description string, amount decimal.Decimal, t model.TransactionType) model.Transaction {
	return model.Transaction{
		ID:          opts.NewID(),
		Date:        date,
		Description: cleanDescription(description),
		Amount:      money.Normalize(amount, currency),
		Currency:    currency,
		Type:        t,
		Category:    model.DefaultCategory,
	}
}

// cleanDescription normalizes a transaction description
func cleanDescription(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
