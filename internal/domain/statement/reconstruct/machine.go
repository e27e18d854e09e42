package reconstruct

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/statement-engine/internal/domain/statement/layout"
	"github.com/FACorreiaa/statement-engine/internal/domain/statement/model"
)

// Draft is a transaction under construction. Amount is signed once a type is
// known: negative for expenses.
type Draft struct {
	Date        string
	Description string
	Amount      decimal.Decimal
	Type        model.TransactionType
}

// State is the fold accumulator. It is treated as a value: Step never mutates
// the state it receives.
type State struct {
	Pending *Draft
	Emitted []Draft
	// Dropped counts rows that matched no transition.
	Dropped int
}

// Fold runs Step over every row of one page. The returned state carries the
// pending draft so the fold can continue on the next page.
func (r Rules) Fold(st State, rows []layout.Row, set layout.BoundarySet) State {
	for _, row := range rows {
		st = r.Step(st, r.Extract(row, set))
	}
	return st
}

// Step applies one row's fields to the state. Transitions are checked in
// priority order and the first that applies wins.
func (r Rules) Step(st State, f Fields) State {
	if f.Skip {
		return st
	}

	switch {
	// A dated row opens a new transaction, closing the previous one.
	case f.Date != "" && f.Description != "":
		st = emit(st)
		st.Pending = &Draft{
			Date:        f.Date,
			Description: f.Description,
			Type:        f.Type,
		}
		if f.HasAmount() {
			st.Pending.Amount = signed(f.Amount, f.Type)
		}
		return st

	// An amount row completes the pending transaction.
	case st.Pending != nil && f.Date == "" && f.HasAmount() && st.Pending.Amount.IsZero():
		next := *st.Pending
		if next.Type == "" {
			next.Type = f.Type
		}
		next.Amount = signed(f.Amount, next.Type)
		if r.MultiLineDescription && f.Description != "" && f.Description != next.Description {
			next.Description = joinDescription(next.Description, f.Description)
		}
		st.Pending = &next
		return st

	// Continuation text extends the description.
	case st.Pending != nil && f.Date == "" && !f.HasAmount() && f.Description != "" && r.MultiLineDescription:
		next := *st.Pending
		next.Description = joinDescription(next.Description, f.Description)
		st.Pending = &next
		return st
	}

	// Orphan amounts, second amounts and undescribed dated rows fall through.
	if f.Date != "" || f.HasAmount() || f.Description != "" {
		st.Dropped++
	}
	return st
}

// EndPage emits a completed pending draft. A draft still waiting for its
// amount carries over to the next page.
func EndPage(st State) State {
	if st.Pending == nil || st.Pending.Amount.IsZero() {
		return st
	}
	return emit(st)
}

// Finish flushes the pending draft. A pending transaction that never received
// an amount is discarded.
func Finish(st State) []Draft {
	return emit(st).Emitted
}

// emit moves a pending draft with a nonzero amount to the output.
func emit(st State) State {
	if st.Pending == nil {
		return st
	}
	p := *st.Pending
	st.Pending = nil
	if p.Amount.IsZero() {
		return st
	}
	p.Type = resolveType(p.Type, p.Amount)
	st.Emitted = appendDraft(st.Emitted, p)
	return st
}

// appendDraft copies before appending so earlier states keep their slice.
func appendDraft(emitted []Draft, d Draft) []Draft {
	out := make([]Draft, len(emitted), len(emitted)+1)
	copy(out, emitted)
	return append(out, d)
}

func signed(magnitude decimal.Decimal, t model.TransactionType) decimal.Decimal {
	if t == model.TypeExpense {
		return magnitude.Abs().Neg()
	}
	return magnitude.Abs()
}

// resolveType settles an unknown type from the amount's sign.
func resolveType(t model.TransactionType, amount decimal.Decimal) model.TransactionType {
	if t != "" {
		return t
	}
	if amount.IsNegative() {
		return model.TypeExpense
	}
	return model.TypeIncome
}

func joinDescription(a, b string) string {
	return strings.TrimSpace(a + " " + b)
}
