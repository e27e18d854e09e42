// Package model holds the transaction and document types shared by the
// statement parsing packages.
package model

import (
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultCategory is assigned when no categorizer claims a transaction.
const DefaultCategory = "Uncategorized"

// Format is a statement document format.
type Format string

const (
	FormatPDF     Format = "PDF"
	FormatCSV     Format = "CSV"
	FormatUnknown Format = ""
)

// ParseFormat normalizes a user supplied format name ("pdf", "Csv", ...).
func ParseFormat(s string) Format {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PDF":
		return FormatPDF
	case "CSV":
		return FormatCSV
	}
	return FormatUnknown
}

// TransactionType tells whether money came in or went out.
type TransactionType string

const (
	TypeIncome  TransactionType = "income"
	TypeExpense TransactionType = "expense"
)

// Transaction is the normalized output of a statement parse.
// Amount is signed: negative for expenses, positive for income.
type Transaction struct {
	ID          string          `json:"id"`
	Date        string          `json:"date"` // ISO-8601, 2006-01-02
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"` // ISO-4217
	Type        TransactionType `json:"type"`
	Category    string          `json:"category"`
}

// Document is an uploaded statement file.
type Document struct {
	Name string
	Data []byte
}

// Extension returns the lowercased file extension without the dot.
func (d Document) Extension() string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(d.Name)), ".")
}
