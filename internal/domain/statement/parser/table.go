package parser

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/FACorreiaa/statement-engine/internal/domain/statement/extract"
	"github.com/FACorreiaa/statement-engine/internal/domain/statement/layout"
	"github.com/FACorreiaa/statement-engine/internal/domain/statement/model"
	"github.com/FACorreiaa/statement-engine/internal/domain/statement/reconstruct"
	"github.com/FACorreiaa/statement-engine/internal/domain/statement/template"
)

// Table parses PDF statements laid out as a table. Each instance is built for
// one template and may be reused; Parse keeps no state between calls.
type Table struct {
	extractor    extract.Extractor
	spec         layout.Spec
	rules        reconstruct.Rules
	rowTolerance float64
	skipRows     int
	currency     string
	opts         Options
}

// NewTable builds a table parser from a PDF template config.
func NewTable(cfg template.ParserConfig, extractor extract.Extractor, opts Options) (*Table, error) {
	if extractor == nil {
		return nil, fmt.Errorf("table parser: no extractor")
	}
	opts = opts.withDefaults()

	var datePattern *regexp.Regexp
	if cfg.DatePattern != "" {
		re, err := regexp.Compile(cfg.DatePattern)
		if err != nil {
			return nil, fmt.Errorf("date pattern %q: %w", cfg.DatePattern, err)
		}
		datePattern = re
	}
	skip, err := compilePatterns(cfg.SkipPatterns)
	if err != nil {
		return nil, err
	}
	dateLayout, err := template.GoLayout(cfg.DateFormat)
	if err != nil {
		return nil, err
	}

	var debit, credit string
	if cfg.AmountColumns != nil {
		debit, credit = cfg.AmountColumns.Debit, cfg.AmountColumns.Credit
	}

	return &Table{
		extractor: extractor,
		spec: layout.Spec{
			Headers:        cfg.Headers,
			Adjustments:    spans(cfg.BoundaryAdjustments),
			Defaults:       spans(cfg.DefaultBoundaries),
			DefaultHeaderY: cfg.DefaultHeaderY,
			TopMargin:      cfg.TopMargin,
		},
		rules: reconstruct.Rules{
			DateColumn:           cfg.DateColumn,
			DateLayout:           dateLayout,
			DatePattern:          datePattern,
			DescriptionColumns:   cfg.DescriptionColumns,
			DebitColumn:          debit,
			CreditColumn:         credit,
			TypeColumn:           cfg.TypeColumn,
			ColumnTolerance:      cfg.ColumnTolerance,
			MultiLineDescription: cfg.MultiLineDescription,
			Markers:              markersOf(cfg),
			SkipPatterns:         skip,
		},
		rowTolerance: cfg.RowTolerance,
		skipRows:     cfg.SkipHeaderLines,
		currency:     currencyOf(cfg, opts),
		opts:         opts,
	}, nil
}

// Parse extracts every page in order and folds its rows into transactions.
// A transaction opened at the bottom of a page may be completed on the next.
func (p *Table) Parse(_ context.Context, doc model.Document) ([]model.Transaction, error) {
	pages, err := p.extractor.Open(doc.Data)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", doc.Name, err)
	}

	st := reconstruct.State{}
	for i := 0; i < pages.NumPages(); i++ {
		frags, err := pages.Fragments(i)
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", doc.Name, err)
		}

		set, rows := layout.PageRows(frags, p.spec, p.rowTolerance)
		if p.skipRows > 0 {
			rows = rows[min(p.skipRows, len(rows)):]
		}

		before, dropped := len(st.Emitted), st.Dropped
		st = reconstruct.EndPage(p.rules.Fold(st, rows, set))
		p.opts.Logger.Debug("statement page parsed",
			slog.String("document", doc.Name),
			slog.Int("page", i),
			slog.Bool("headers_found", set.FromHeaders),
			slog.Int("rows", len(rows)),
			slog.Int("transactions", len(st.Emitted)-before),
			slog.Int("dropped_rows", st.Dropped-dropped),
		)
	}

	drafts := reconstruct.Finish(st)
	txs := make([]model.Transaction, 0, len(drafts))
	for _, d := range drafts {
		txs = append(txs, newTransaction(p.opts, p.currency, d.Date, d.Description, d.Amount, d.Type))
	}
	return txs, nil
}

func spans(in map[string]template.Span) map[string]layout.Span {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]layout.Span, len(in))
	for label, s := range in {
		out[label] = layout.Span{Start: s.Start, Width: s.Width}
	}
	return out
}
