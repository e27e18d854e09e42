package parser

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/statement-engine/internal/domain/statement/model"
	"github.com/FACorreiaa/statement-engine/internal/domain/statement/reconstruct"
	"github.com/FACorreiaa/statement-engine/internal/domain/statement/sniffer"
	"github.com/FACorreiaa/statement-engine/internal/domain/statement/template"
	"github.com/FACorreiaa/statement-engine/pkg/money"
)

// Columns parses delimited exports by column index.
type Columns struct {
	mapping   template.ColumnMapping
	delimiter rune
	skipLines int
	layout    string
	european  bool
	markers   reconstruct.Markers
	currency  string
	opts      Options
}

// NewColumns builds a CSV parser from a template config.
func NewColumns(cfg template.ParserConfig, opts Options) (*Columns, error) {
	if cfg.ColumnMapping == nil {
		return nil, errors.New("column parser: columnMapping is required")
	}
	opts = opts.withDefaults()

	dateLayout, err := template.GoLayout(cfg.DateFormat)
	if err != nil {
		return nil, err
	}

	var delimiter rune
	if cfg.Delimiter != "" {
		delimiter, _ = utf8.DecodeRuneInString(cfg.Delimiter)
	}
	return &Columns{
		mapping:   *cfg.ColumnMapping,
		delimiter: delimiter,
		skipLines: cfg.SkipHeaderLines,
		layout:    dateLayout,
		european:  cfg.EuropeanFormat,
		markers:   markersOf(cfg),
		currency:  currencyOf(cfg, opts),
		opts:      opts,
	}, nil
}

// Parse reads every record. Rows without a valid date, a description and a
// nonzero amount are skipped; that includes the header row.
func (p *Columns) Parse(_ context.Context, doc model.Document) ([]model.Transaction, error) {
	delimiter := p.delimiter
	if delimiter == 0 {
		if d, n := sniffer.DetectDelimiter(doc.Data); n > 0 {
			delimiter = d
		} else {
			delimiter = ','
		}
	}

	reader := newRecordReader(skipLines(bytes.NewReader(doc.Data), p.skipLines), delimiter)

	var txs []model.Transaction
	var skipped []ParseError
	rowNum := p.skipLines
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				skipped = append(skipped, ParseError{Row: rowNum, Message: perr.Err.Error()})
				continue
			}
			return nil, fmt.Errorf("read %s: %w", doc.Name, err)
		}

		tx, perr := p.processRecord(record, rowNum)
		if perr != nil {
			skipped = append(skipped, *perr)
			continue
		}
		txs = append(txs, tx)
	}

	if len(skipped) > 0 {
		p.opts.Logger.Debug("csv rows skipped",
			slog.String("document", doc.Name),
			slog.Int("skipped", len(skipped)),
			slog.String("first", skipped[0].Error()),
		)
	}
	return txs, nil
}

func (p *Columns) processRecord(record []string, rowNum int) (model.Transaction, *ParseError) {
	getValue := func(idx *int) string {
		if idx == nil || *idx < 0 || *idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[*idx])
	}

	date, err := p.parseDate(getValue(p.mapping.Date))
	if err != nil {
		return model.Transaction{}, &ParseError{Row: rowNum, Column: "date", Message: err.Error()}
	}

	desc := getValue(p.mapping.Description)
	if desc == "" {
		return model.Transaction{}, &ParseError{Row: rowNum, Column: "description", Message: "missing description"}
	}

	var amount decimal.Decimal
	var kind model.TransactionType
	if p.mapping.Amount != nil {
		amount, kind, err = p.parseAmount(getValue(p.mapping.Amount))
	} else {
		amount, kind, err = p.parseDebitCredit(getValue(p.mapping.Debit), getValue(p.mapping.Credit))
	}
	if err != nil {
		return model.Transaction{}, &ParseError{Row: rowNum, Column: "amount", Message: err.Error()}
	}

	// An explicit marker column is authoritative for the sign.
	if marker := p.markers.Lookup(getValue(p.mapping.Type)); marker != "" {
		kind = marker
		amount = amount.Abs()
		if kind == model.TypeExpense {
			amount = amount.Neg()
		}
	}

	return newTransaction(p.opts, p.currency, date, desc, amount, kind), nil
}

// parseDate uses the template layout when one is declared. Common formats
// are only tried for templates without a date format.
func (p *Columns) parseDate(s string) (string, error) {
	if s == "" {
		return "", errors.New("missing date")
	}
	if p.layout != "" {
		t, err := time.Parse(p.layout, s)
		if err != nil {
			return "", fmt.Errorf("date %q does not match the template format", s)
		}
		return t.Format(reconstruct.ISODate), nil
	}

	formats := []string{
		"2006-01-02", // ISO 8601
		"02/01/2006", // DD/MM/YYYY (European)
		"02-01-2006", // DD-MM-YYYY
		"2006/01/02", // YYYY/MM/DD
		"02.01.2006", // DD.MM.YYYY (German)
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
	}
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t.Format(reconstruct.ISODate), nil
		}
	}
	return "", fmt.Errorf("unrecognized date %q", s)
}

// parseAmount reads a signed single-column amount.
func (p *Columns) parseAmount(s string) (decimal.Decimal, model.TransactionType, error) {
	tokens := strings.Fields(s)
	marker := model.TransactionType("")
	if len(tokens) > 1 {
		if m := p.markers.Lookup(tokens[len(tokens)-1]); m != "" {
			marker = m
			s = strings.Join(tokens[:len(tokens)-1], "")
		}
	}

	value, negative, err := money.ParseMagnitude(s, p.european)
	if err != nil {
		return decimal.Zero, "", err
	}
	if value.IsZero() {
		return decimal.Zero, "", errors.New("zero amount")
	}

	kind := marker
	if kind == "" {
		kind = model.TypeIncome
		if negative {
			kind = model.TypeExpense
		}
	}
	if kind == model.TypeExpense {
		return value.Neg(), kind, nil
	}
	return value, kind, nil
}

// parseDebitCredit handles double-entry bookkeeping columns
func (p *Columns) parseDebitCredit(debitStr, creditStr string) (decimal.Decimal, model.TransactionType, error) {
	// Try debit first (negative = money out)
	if debitStr != "" {
		if v, _, err := money.ParseMagnitude(debitStr, p.european); err == nil && !v.IsZero() {
			return v.Neg(), model.TypeExpense, nil
		}
	}
	// Try credit (positive = money in)
	if creditStr != "" {
		if v, _, err := money.ParseMagnitude(creditStr, p.european); err == nil && !v.IsZero() {
			return v, model.TypeIncome, nil
		}
	}
	return decimal.Zero, "", errors.New("no debit or credit amount")
}

// newRecordReader wraps gocsv's lenient reader with the template delimiter.
func newRecordReader(r io.Reader, delimiter rune) gocsv.CSVReader {
	reader := gocsv.LazyCSVReader(r)
	if cr, ok := reader.(*csv.Reader); ok {
		cr.Comma = delimiter
		cr.FieldsPerRecord = -1 // Variable field count
	}
	return reader
}

// skipLines returns a reader positioned after the first n lines.
func skipLines(r io.Reader, n int) io.Reader {
	if n <= 0 {
		return r
	}
	br := bufio.NewReader(r)
	for i := 0; i < n; i++ {
		if _, err := br.ReadString('\n'); err != nil {
			return strings.NewReader("")
		}
	}
	return br
}
