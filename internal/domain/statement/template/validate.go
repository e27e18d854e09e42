package template

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/FACorreiaa/statement-engine/internal/domain/statement/model"
	"github.com/FACorreiaa/statement-engine/pkg/money"
)

var identifierPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// ValidationResult lists every rule a template violates.
type ValidationResult struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors,omitempty"`
}

// ValidationError carries the field-level messages of a rejected template.
// It matches ErrValidation with errors.Is.
type ValidationError struct {
	Identifier string
	Errors     []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("template %q is invalid: %s", e.Identifier, strings.Join(e.Errors, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ModuleSet reports which parser modules can be instantiated.
type ModuleSet interface {
	IsAvailable(identifier string) bool
}

// Validator checks templates before they are stored or used.
type Validator struct {
	modules ModuleSet
}

// NewValidator creates a validator. A nil module set skips the parser module
// check.
func NewValidator(modules ModuleSet) *Validator {
	return &Validator{modules: modules}
}

// Validate checks t and collects every violation instead of stopping at the
// first.
func (v *Validator) Validate(t Template) ValidationResult {
	var errs []string
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	if !identifierPattern.MatchString(t.Identifier) {
		add("identifier %q must match %s", t.Identifier, identifierPattern)
	}
	if strings.TrimSpace(t.BankName) == "" {
		add("bank_name is required")
	}
	if t.ParserModule == "" {
		add("parser_module is required")
	} else if v.modules != nil && !v.modules.IsAvailable(t.ParserModule) {
		add("parser_module %q is not registered", t.ParserModule)
	}
	if c := t.ParserConfig.Currency; c != "" && !money.IsCurrency(c) {
		add("currency %q is not an ISO-4217 code", c)
	}
	if _, err := GoLayout(t.ParserConfig.DateFormat); err != nil {
		add("parser_config.dateFormat: %v", err)
	}

	switch t.Format {
	case model.FormatPDF:
		errs = append(errs, validatePDF(t.ParserConfig)...)
	case model.FormatCSV:
		errs = append(errs, validateCSV(t.ParserConfig)...)
	default:
		add("format %q must be PDF or CSV", t.Format)
	}

	return ValidationResult{IsValid: len(errs) == 0, Errors: errs}
}

// Check returns a *ValidationError when t is invalid.
func (v *Validator) Check(t Template) error {
	res := v.Validate(t)
	if res.IsValid {
		return nil
	}
	return &ValidationError{Identifier: t.Identifier, Errors: res.Errors}
}

func validatePDF(c ParserConfig) []string {
	var errs []string
	if c.Type != TypeTableBased {
		errs = append(errs, fmt.Sprintf("parser_config.type must be %q", TypeTableBased))
	}
	if len(c.Headers) == 0 {
		errs = append(errs, "parser_config.headers must not be empty")
	}
	if strings.TrimSpace(c.DateColumn) == "" {
		errs = append(errs, "parser_config.dateColumn is required")
	}
	if c.AmountColumns == nil || c.AmountColumns.Debit == "" || c.AmountColumns.Credit == "" {
		errs = append(errs, "parser_config.amountColumns must map both debit and credit")
	}
	if len(c.DescriptionColumns) == 0 {
		errs = append(errs, "parser_config.descriptionColumns must not be empty")
	}
	if c.ColumnTolerance < 0 {
		errs = append(errs, "parser_config.columnTolerance must be >= 0")
	}
	if c.RowTolerance < 0 {
		errs = append(errs, "parser_config.rowTolerance must be >= 0")
	}
	if c.SkipHeaderLines < 0 {
		errs = append(errs, "parser_config.skipHeaderLines must be >= 0")
	}
	if c.DatePattern != "" {
		if _, err := regexp.Compile(c.DatePattern); err != nil {
			errs = append(errs, fmt.Sprintf("parser_config.datePattern: %v", err))
		}
	}
	for i, p := range c.SkipPatterns {
		if _, err := regexp.Compile(p); err != nil {
			errs = append(errs, fmt.Sprintf("parser_config.skipPatterns[%d]: %v", i, err))
		}
	}
	labels := make([]string, 0, len(c.BoundaryAdjustments))
	for label := range c.BoundaryAdjustments {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		if c.BoundaryAdjustments[label].Width < 0 {
			errs = append(errs, fmt.Sprintf("parser_config.boundaryAdjustments.%s.width must be >= 0", label))
		}
	}
	return errs
}

func validateCSV(c ParserConfig) []string {
	m := c.ColumnMapping
	if m == nil {
		return []string{"parser_config.columnMapping is required for CSV templates"}
	}

	var errs []string
	index := func(name string, p *int, required bool) {
		if p == nil {
			if required {
				errs = append(errs, fmt.Sprintf("parser_config.columnMapping.%s is required", name))
			}
			return
		}
		if *p < 0 {
			errs = append(errs, fmt.Sprintf("parser_config.columnMapping.%s must be >= 0", name))
		}
	}
	index("date", m.Date, true)
	index("description", m.Description, true)
	index("amount", m.Amount, false)
	index("debit", m.Debit, false)
	index("credit", m.Credit, false)
	index("type", m.Type, false)

	if m.Amount == nil && (m.Debit == nil || m.Credit == nil) {
		errs = append(errs, "parser_config.columnMapping needs amount or both debit and credit")
	}
	if len([]rune(c.Delimiter)) > 1 {
		errs = append(errs, "parser_config.delimiter must be a single character")
	}
	if c.SkipHeaderLines < 0 {
		errs = append(errs, "parser_config.skipHeaderLines must be >= 0")
	}
	return errs
}
