// Package reconstruct folds ordered table rows into transactions, handling
// transactions whose date, description and amount are split across rows.
package reconstruct

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/statement-engine/internal/domain/statement/layout"
	"github.com/FACorreiaa/statement-engine/internal/domain/statement/model"
	"github.com/FACorreiaa/statement-engine/pkg/money"
)

// ISODate is the canonical output date layout.
const ISODate = "2006-01-02"

// Markers are the explicit credit/debit tokens of an institution.
type Markers struct {
	Credit []string
	Debit  []string
}

// DefaultMarkers returns the common CR/DR marker pair.
func DefaultMarkers() Markers {
	return Markers{
		Credit: []string{"CR", "CREDIT"},
		Debit:  []string{"DR", "DEBIT"},
	}
}

// Lookup maps a token to a transaction type. The empty type means the token
// is not a marker.
func (m Markers) Lookup(token string) model.TransactionType {
	token = strings.TrimSuffix(strings.TrimSpace(token), ".")
	if token == "" {
		return ""
	}
	for _, c := range m.Credit {
		if strings.EqualFold(token, c) {
			return model.TypeIncome
		}
	}
	for _, d := range m.Debit {
		if strings.EqualFold(token, d) {
			return model.TypeExpense
		}
	}
	return ""
}

// Rules is the reconstruction part of a template.
type Rules struct {
	DateColumn  string
	DateLayout  string // Go time layout for the matched date text
	DatePattern *regexp.Regexp

	DescriptionColumns []string
	// DebitColumn and CreditColumn may name the same column when a single
	// amount column carries a CR/DR marker.
	DebitColumn  string
	CreditColumn string
	TypeColumn   string

	ColumnTolerance      float64
	MultiLineDescription bool
	Markers              Markers
	SkipPatterns         []*regexp.Regexp
}

// Fields are the candidate values extracted from one row.
type Fields struct {
	Date        string          // ISO date, empty when absent or invalid
	Description string          // description text, amount and marker tokens removed
	Amount      decimal.Decimal // non-negative magnitude, zero when absent
	Type        model.TransactionType
	Skip        bool
}

// HasAmount reports whether the row carried a nonzero amount.
func (f Fields) HasAmount() bool { return !f.Amount.IsZero() }

// Assignment is a row's text split by column.
type Assignment struct {
	Columns    map[string][]string
	Unassigned []string
}

// Text joins the fragments assigned to label.
func (a Assignment) Text(label string) string {
	if label == "" {
		return ""
	}
	return strings.Join(a.Columns[label], " ")
}

// Assign places each fragment in the first boundary, in template order, whose
// widened interval contains its x. Fragments matching none are unassigned.
func Assign(row layout.Row, set layout.BoundarySet, tolerance float64) Assignment {
	a := Assignment{Columns: make(map[string][]string)}
	boundaries := set.Boundaries()

	for _, f := range row.Fragments {
		text := strings.TrimSpace(f.Text)
		if text == "" {
			continue
		}
		placed := false
		for _, b := range boundaries {
			if b.Contains(f.X, tolerance) {
				a.Columns[b.Label] = append(a.Columns[b.Label], text)
				placed = true
				break
			}
		}
		if !placed {
			a.Unassigned = append(a.Unassigned, text)
		}
	}
	return a
}

// Extract assigns a row to columns and derives its candidate fields.
func (r Rules) Extract(row layout.Row, set layout.BoundarySet) Fields {
	if r.skips(row.Text()) {
		return Fields{Skip: true}
	}
	return r.FromAssignment(Assign(row, set, r.ColumnTolerance))
}

// FromAssignment derives candidate fields from column text.
func (r Rules) FromAssignment(a Assignment) Fields {
	var f Fields
	f.Date = r.parseDate(a.Text(r.DateColumn))

	descParts := make([]string, 0, len(r.DescriptionColumns)+len(a.Unassigned))
	for _, col := range r.DescriptionColumns {
		if col == r.DateColumn || col == r.DebitColumn || col == r.CreditColumn || col == r.TypeColumn {
			continue
		}
		if t := a.Text(col); t != "" {
			descParts = append(descParts, t)
		}
	}
	descParts = append(descParts, a.Unassigned...)
	desc := strings.Fields(strings.Join(descParts, " "))

	amt := r.columnAmount(a)
	desc, descMarker := r.trimMarker(desc, amt.found())
	if !amt.found() {
		// Overflowing amount fragments land in the description; recover the
		// trailing amount token when the amount columns are empty.
		var tail amountCandidate
		desc, tail = r.trimAmount(desc)
		if tail.found() {
			amt = tail
			if descMarker == "" {
				desc, descMarker = r.trimMarker(desc, true)
			}
		}
	}

	f.Description = strings.Join(desc, " ")
	f.Amount = amt.value
	f.Type = r.inferType(a, amt, descMarker)
	return f
}

// TypeMatcher is one step of the type inference chain.
type TypeMatcher func(r Rules, a Assignment, amt amountCandidate, descMarker model.TransactionType) model.TransactionType

var typeMatchers = []TypeMatcher{
	typeFromMarkerColumn,
	typeFromAmountSuffix,
	typeFromDescriptionSuffix,
	typeFromAmountColumn,
	typeFromSign,
}

func (r Rules) inferType(a Assignment, amt amountCandidate, descMarker model.TransactionType) model.TransactionType {
	for _, match := range typeMatchers {
		if t := match(r, a, amt, descMarker); t != "" {
			return t
		}
	}
	return ""
}

func typeFromMarkerColumn(r Rules, a Assignment, _ amountCandidate, _ model.TransactionType) model.TransactionType {
	if r.TypeColumn == "" {
		return ""
	}
	return r.Markers.Lookup(a.Text(r.TypeColumn))
}

func typeFromAmountSuffix(_ Rules, _ Assignment, amt amountCandidate, _ model.TransactionType) model.TransactionType {
	return amt.marker
}

func typeFromDescriptionSuffix(_ Rules, _ Assignment, _ amountCandidate, descMarker model.TransactionType) model.TransactionType {
	return descMarker
}

func typeFromAmountColumn(r Rules, _ Assignment, amt amountCandidate, _ model.TransactionType) model.TransactionType {
	if r.DebitColumn == r.CreditColumn || !amt.found() {
		return ""
	}
	switch amt.column {
	case r.DebitColumn:
		return model.TypeExpense
	case r.CreditColumn:
		return model.TypeIncome
	}
	return ""
}

func typeFromSign(_ Rules, _ Assignment, amt amountCandidate, _ model.TransactionType) model.TransactionType {
	if amt.found() && amt.negative {
		return model.TypeExpense
	}
	return ""
}

type amountCandidate struct {
	value    decimal.Decimal
	negative bool
	marker   model.TransactionType
	column   string
}

func (c amountCandidate) found() bool { return !c.value.IsZero() }

func (r Rules) columnAmount(a Assignment) amountCandidate {
	columns := []string{r.DebitColumn}
	if r.CreditColumn != r.DebitColumn {
		columns = append(columns, r.CreditColumn)
	}
	for _, col := range columns {
		text := a.Text(col)
		if text == "" {
			continue
		}
		tokens := strings.Fields(text)
		var marker model.TransactionType
		if len(tokens) > 1 {
			if t := r.Markers.Lookup(tokens[len(tokens)-1]); t != "" {
				marker = t
				tokens = tokens[:len(tokens)-1]
			}
		}
		value, negative, err := money.ParseMagnitude(strings.Join(tokens, ""), false)
		if err != nil || value.IsZero() {
			continue
		}
		return amountCandidate{value: value, negative: negative, marker: marker, column: col}
	}
	return amountCandidate{}
}

var amountToken = regexp.MustCompile(`^[-(]?[^\d\s]{0,3}\d[\d,]*\.\d{2}\)?-?$`)

func (r Rules) trimAmount(tokens []string) ([]string, amountCandidate) {
	if len(tokens) == 0 {
		return tokens, amountCandidate{}
	}
	last := tokens[len(tokens)-1]
	if !amountToken.MatchString(last) {
		return tokens, amountCandidate{}
	}
	value, negative, err := money.ParseMagnitude(last, false)
	if err != nil || value.IsZero() {
		return tokens, amountCandidate{}
	}
	return tokens[:len(tokens)-1], amountCandidate{value: value, negative: negative}
}

// trimMarker removes a trailing marker token. A lone token is only taken as
// a marker on a row that carries an amount, where it is spillover from the
// amount column rather than a description.
func (r Rules) trimMarker(tokens []string, hasAmount bool) ([]string, model.TransactionType) {
	if len(tokens) == 0 || (len(tokens) == 1 && !hasAmount) {
		return tokens, ""
	}
	if t := r.Markers.Lookup(tokens[len(tokens)-1]); t != "" {
		return tokens[:len(tokens)-1], t
	}
	return tokens, ""
}

// parseDate matches the date pattern and validates the calendar date. Any
// failure yields "" so a malformed date is never partially accepted.
func (r Rules) parseDate(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	match := text
	if r.DatePattern != nil {
		match = r.DatePattern.FindString(text)
		if match == "" {
			return ""
		}
	}
	goLayout := r.DateLayout
	if goLayout == "" {
		goLayout = ISODate
	}
	t, err := time.Parse(goLayout, match)
	if err != nil {
		return ""
	}
	return t.Format(ISODate)
}

func (r Rules) skips(text string) bool {
	for _, re := range r.SkipPatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
