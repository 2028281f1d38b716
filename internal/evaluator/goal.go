package evaluator

import (
	"time"

	"github.com/shopspring/decimal"

	"hisob/internal/core"
	"hisob/internal/currency"
	"hisob/internal/period"
)

// GoalProgress is the derived state of an income goal.
type GoalProgress struct {
	GoalID         int64           `json:"goal_id"`
	Currency       core.Currency   `json:"currency"`
	Target         decimal.Decimal `json:"target"`
	Current        decimal.Decimal `json:"current"`
	Remaining      decimal.Decimal `json:"remaining"`
	ProgressPct    decimal.Decimal `json:"progress_percentage"`
	OnTrack        bool            `json:"on_track"`
	DaysRemaining  int             `json:"days_remaining"`
	ExpectedAmount decimal.Decimal `json:"expected_amount"`
	// ForecastDate is when Current reaches Target at the pace observed so
	// far. Zero when nothing has accumulated yet.
	ForecastDate time.Time `json:"forecast_date"`
}

// EvaluateGoal sums the received incomes counted towards g and measures them
// against a linear accumulation curve from StartDate to EndDate. Incomes are
// summed in the base currency at their captured rates and converted into the
// goal currency once.
func EvaluateGoal(g core.Goal, incomes []core.Transaction, asOf time.Time, table currency.RateTable) GoalProgress {
	today := period.Day(asOf)
	window := period.NewRange(g.StartDate.Time, g.EndDate.Time)

	base := decimal.Zero
	for _, tx := range incomes {
		if tx.Kind != core.Income || tx.Status != core.StatusReceived {
			continue
		}
		if !window.Contains(tx.Date.Time) || !g.MatchesCategory(tx.CategoryID) {
			continue
		}
		base = base.Add(currency.ToBase(tx, table))
	}
	current := core.RoundHalfUp(currency.ConvertExact(base, table.Base(), g.Currency, table), g.Currency.MinorUnits())

	p := GoalProgress{
		GoalID:         g.ID,
		Currency:       g.Currency,
		Target:         g.TargetAmount,
		Current:        current,
		Remaining:      decimal.Max(decimal.Zero, g.TargetAmount.Sub(current)),
		ProgressPct:    decimal.Zero,
		ExpectedAmount: decimal.Zero,
	}
	if g.TargetAmount.IsPositive() {
		p.ProgressPct = decimal.Min(hundred, core.RoundHalfUp(core.Percent(current, g.TargetAmount), 2))
	}
	if !today.After(window.End) {
		p.DaysRemaining = daysBetween(today, window.End)
	}

	total := window.Days()
	elapsed := daysBetween(window.Start, today) + 1
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > total {
		elapsed = total
	}
	if total > 0 {
		expected := g.TargetAmount.Mul(decimal.NewFromInt(int64(elapsed))).Div(decimal.NewFromInt(int64(total)))
		p.ExpectedAmount = core.RoundHalfUp(expected, g.Currency.MinorUnits())
	}

	if p.DaysRemaining == 0 {
		p.OnTrack = current.GreaterThanOrEqual(g.TargetAmount)
	} else {
		p.OnTrack = current.GreaterThanOrEqual(p.ExpectedAmount)
	}

	p.ForecastDate = forecast(current, g.TargetAmount, elapsed, today)
	return p
}

// forecast projects the day the target is reached at the average daily pace.
func forecast(current, target decimal.Decimal, elapsed int, today time.Time) time.Time {
	if current.GreaterThanOrEqual(target) && current.IsPositive() {
		return today
	}
	if !current.IsPositive() || elapsed <= 0 {
		return time.Time{}
	}
	pace := current.Div(decimal.NewFromInt(int64(elapsed)))
	days := target.Sub(current).Div(pace).Ceil().IntPart()
	return today.AddDate(0, 0, int(days))
}

// UpdateStatus applies the status transitions of an active goal: completed
// once the current amount reaches the target, cancelled once the end date has
// passed.
// Completed and cancelled are final. changed reports whether g was modified.
func UpdateStatus(g core.Goal, progress GoalProgress, asOf time.Time) (updated core.Goal, changed bool) {
	if g.Status.IsTerminal() {
		return g, false
	}
	next := core.GoalActive
	switch {
	case g.TargetAmount.IsPositive() && progress.Current.GreaterThanOrEqual(g.TargetAmount):
		next = core.GoalCompleted
	case g.EndDate.Before(period.Day(asOf)):
		next = core.GoalCancelled
	}
	current := g.Status
	if current == "" {
		current = core.GoalActive
	}
	if next == current {
		return g, false
	}
	g.Status = next
	g.UpdatedAt = asOf
	return g, true
}

func daysBetween(from, to time.Time) int {
	return int(period.Day(to).Sub(period.Day(from)).Hours() / 24)
}
