// Package evaluator derives budget and goal state from transactions.
//
// Nothing here is persisted: every status is recomputed from the current
// transaction set on each call.
package evaluator

import (
	"time"

	"github.com/shopspring/decimal"

	"hisob/internal/core"
	"hisob/internal/currency"
	"hisob/internal/period"
)

// BudgetState is the display label of a budget evaluation.
type BudgetState string

const (
	UnderThreshold BudgetState = "UNDER_THRESHOLD"
	NearThreshold  BudgetState = "NEAR_THRESHOLD"
	OverBudget     BudgetState = "OVER_BUDGET"
)

var hundred = decimal.NewFromInt(100)

// BudgetStatus is the derived state of a budget at a point in time.
type BudgetStatus struct {
	BudgetID    int64           `json:"budget_id"`
	Currency    core.Currency   `json:"currency"`
	Amount      decimal.Decimal `json:"amount"`
	Spent       decimal.Decimal `json:"spent"`
	Remaining   decimal.Decimal `json:"remaining"`
	UsagePct    decimal.Decimal `json:"usage_percentage"`
	IsOver      bool            `json:"is_over_budget"`
	ShouldAlert bool            `json:"should_alert"`
	State       BudgetState     `json:"state"`
	Window      period.Range    `json:"window"`
}

// BudgetWindow returns the span counted against b: from StartDate to
// EndDate, or to asOf when the budget is open-ended.
func BudgetWindow(b core.Budget, asOf time.Time) period.Range {
	end := b.EndDate.Time
	if end.IsZero() {
		end = asOf
	}
	return period.NewRange(b.StartDate.Time, end)
}

// EvaluateBudget sums the expenses counted against b and derives usage flags.
// Each expense is valued at the rate captured when it was recorded, then the
// base total is converted into the budget currency with table. A budget
// without a category counts every expense.
func EvaluateBudget(b core.Budget, expenses []core.Transaction, asOf time.Time, table currency.RateTable) BudgetStatus {
	window := BudgetWindow(b, asOf)

	base := decimal.Zero
	for _, tx := range expenses {
		if tx.Kind != core.Expense || !window.Contains(tx.Date.Time) {
			continue
		}
		if b.CategoryID != 0 && tx.CategoryID != b.CategoryID {
			continue
		}
		base = base.Add(currency.ToBase(tx, table))
	}
	spent := core.RoundHalfUp(currency.ConvertExact(base, table.Base(), b.Currency, table), b.Currency.MinorUnits())

	// Thresholds compare the exact usage; UsagePct is for display only.
	usage := core.Percent(spent, b.Amount)
	st := BudgetStatus{
		BudgetID:    b.ID,
		Currency:    b.Currency,
		Amount:      b.Amount,
		Spent:       spent,
		Remaining:   b.Amount.Sub(spent),
		UsagePct:    core.RoundHalfUp(usage, 2),
		IsOver:      b.Amount.IsPositive() && spent.GreaterThanOrEqual(b.Amount),
		ShouldAlert: usage.GreaterThanOrEqual(b.AlertThreshold),
		Window:      window,
	}
	switch {
	case st.IsOver:
		st.State = OverBudget
	case st.ShouldAlert:
		st.State = NearThreshold
	default:
		st.State = UnderThreshold
	}
	return st
}
