// Package template defines per-institution statement templates, their
// validation, storage contract, cache and management operations.
package template

import (
	"context"
	"errors"

	"github.com/FACorreiaa/statement-engine/internal/domain/statement/model"
)

var (
	ErrTemplateNotFound = errors.New("template not found")
	ErrTemplateExists   = errors.New("template already exists")
	ErrValidation       = errors.New("template validation failed")
)

// TypeTableBased is the only PDF parser config type.
const TypeTableBased = "table_based"

// Template is a declarative description of one institution's statement layout.
type Template struct {
	Identifier   string       `json:"identifier" yaml:"identifier"`
	BankName     string       `json:"bank_name" yaml:"bank_name"`
	Format       model.Format `json:"format" yaml:"format"`
	ParserModule string       `json:"parser_module" yaml:"parser_module"`
	ParserConfig ParserConfig `json:"parser_config" yaml:"parser_config"`
}

// Span is an explicit column start/width in PDF points.
type Span struct {
	Start float64 `json:"start" yaml:"start"`
	Width float64 `json:"width" yaml:"width"`
}

// AmountColumns names the debit and credit columns. They may be the same
// column when amounts carry a CR/DR marker.
type AmountColumns struct {
	Debit  string `json:"debit" yaml:"debit"`
	Credit string `json:"credit" yaml:"credit"`
}

// TypeMarkers overrides the credit/debit marker tokens.
type TypeMarkers struct {
	Credit []string `json:"credit,omitempty" yaml:"credit,omitempty"`
	Debit  []string `json:"debit,omitempty" yaml:"debit,omitempty"`
}

// ColumnMapping holds zero-based CSV column indices.
type ColumnMapping struct {
	Date        *int `json:"date" yaml:"date"`
	Description *int `json:"description" yaml:"description"`
	Amount      *int `json:"amount,omitempty" yaml:"amount,omitempty"`
	Debit       *int `json:"debit,omitempty" yaml:"debit,omitempty"`
	Credit      *int `json:"credit,omitempty" yaml:"credit,omitempty"`
	Type        *int `json:"type,omitempty" yaml:"type,omitempty"`
}

// ParserConfig is the union of the PDF and CSV parser settings. Which fields
// apply depends on the template format.
type ParserConfig struct {
	Type                 string          `json:"type,omitempty" yaml:"type,omitempty"`
	Headers              []string        `json:"headers,omitempty" yaml:"headers,omitempty"`
	DateColumn           string          `json:"dateColumn,omitempty" yaml:"dateColumn,omitempty"`
	DateFormat           string          `json:"dateFormat,omitempty" yaml:"dateFormat,omitempty"`
	DatePattern          string          `json:"datePattern,omitempty" yaml:"datePattern,omitempty"`
	AmountColumns        *AmountColumns  `json:"amountColumns,omitempty" yaml:"amountColumns,omitempty"`
	TypeColumn           string          `json:"typeColumn,omitempty" yaml:"typeColumn,omitempty"`
	DescriptionColumns   []string        `json:"descriptionColumns,omitempty" yaml:"descriptionColumns,omitempty"`
	ColumnTolerance      float64         `json:"columnTolerance" yaml:"columnTolerance"`
	RowTolerance         float64         `json:"rowTolerance" yaml:"rowTolerance"`
	SkipHeaderLines      int             `json:"skipHeaderLines,omitempty" yaml:"skipHeaderLines,omitempty"`
	MultiLineDescription bool            `json:"multiLineDescription,omitempty" yaml:"multiLineDescription,omitempty"`
	BoundaryAdjustments  map[string]Span `json:"boundaryAdjustments,omitempty" yaml:"boundaryAdjustments,omitempty"`
	DefaultBoundaries    map[string]Span `json:"defaultBoundaries,omitempty" yaml:"defaultBoundaries,omitempty"`
	DefaultHeaderY       float64         `json:"defaultHeaderY,omitempty" yaml:"defaultHeaderY,omitempty"`
	TopMargin            float64         `json:"topMargin,omitempty" yaml:"topMargin,omitempty"`
	Currency             string          `json:"currency,omitempty" yaml:"currency,omitempty"`
	TypeMarkers          *TypeMarkers    `json:"typeMarkers,omitempty" yaml:"typeMarkers,omitempty"`
	SkipPatterns         []string        `json:"skipPatterns,omitempty" yaml:"skipPatterns,omitempty"`

	// CSV only.
	ColumnMapping  *ColumnMapping `json:"columnMapping,omitempty" yaml:"columnMapping,omitempty"`
	Delimiter      string         `json:"delimiter,omitempty" yaml:"delimiter,omitempty"`
	EuropeanFormat bool           `json:"europeanFormat,omitempty" yaml:"europeanFormat,omitempty"`
}

// Store persists templates. Load returns ErrTemplateNotFound for unknown ids.
// Create stores t only when its identifier is free and returns
// ErrTemplateExists otherwise; Save replaces.
type Store interface {
	Load(ctx context.Context, identifier string) (Template, error)
	Create(ctx context.Context, t Template) error
	Save(ctx context.Context, t Template) error
	List(ctx context.Context) ([]Template, error)
}
