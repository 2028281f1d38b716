package evaluator

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"hisob/internal/core"
	"hisob/internal/currency"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func expense(amount string, cur core.Currency, rate string, cat int64, date string) core.Transaction {
	tx := core.Transaction{
		Kind:       core.Expense,
		Amount:     dec(amount),
		Currency:   cur,
		CategoryID: cat,
		Date:       core.DateOf(day(date)),
	}
	if rate != "" {
		tx.ExchangeRate = dec(rate)
	}
	return tx
}

func income(amount string, cur core.Currency, status core.TransactionStatus, cat int64, date string) core.Transaction {
	return core.Transaction{
		Kind:       core.Income,
		Amount:     dec(amount),
		Currency:   cur,
		CategoryID: cat,
		Status:     status,
		Date:       core.DateOf(day(date)),
	}
}

func budget(amount, threshold string) core.Budget {
	return core.Budget{
		ID:             1,
		CategoryID:     5,
		Amount:         dec(amount),
		Currency:       core.UZS,
		Period:         core.Monthly,
		StartDate:      core.DateOf(day("2024-03-01")),
		EndDate:        core.DateOf(day("2024-03-31")),
		AlertThreshold: dec(threshold),
		IsActive:       true,
	}
}

func TestEvaluateBudgetThreshold(t *testing.T) {
	expenses := []core.Transaction{
		expense("500", core.UZS, "1", 5, "2024-03-02"),
		expense("350", core.UZS, "1", 5, "2024-03-20"),
		expense("900", core.UZS, "1", 6, "2024-03-20"), // other category
		expense("900", core.UZS, "1", 5, "2024-04-01"), // after end
	}
	st := EvaluateBudget(budget("1000", "80"), expenses, day("2024-03-25"), currency.StaticTable())

	if !st.Spent.Equal(dec("850")) || !st.UsagePct.Equal(dec("85")) {
		t.Fatalf("spent=%s usage=%s", st.Spent, st.UsagePct)
	}
	if !st.ShouldAlert || st.IsOver {
		t.Fatalf("expected alert without overrun, got %+v", st)
	}
	if st.State != NearThreshold || !st.Remaining.Equal(dec("150")) {
		t.Fatalf("state=%s remaining=%s", st.State, st.Remaining)
	}
}

func TestEvaluateBudgetStates(t *testing.T) {
	tests := []struct {
		name  string
		spent string
		state BudgetState
		over  bool
	}{
		{"under", "100", UnderThreshold, false},
		{"at threshold", "800", NearThreshold, false},
		{"exactly full", "1000", OverBudget, true},
		{"overrun", "1200", OverBudget, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txs := []core.Transaction{expense(tt.spent, core.UZS, "", 5, "2024-03-10")}
			st := EvaluateBudget(budget("1000", "80"), txs, day("2024-03-25"), currency.StaticTable())
			if st.State != tt.state || st.IsOver != tt.over {
				t.Fatalf("state=%s over=%v usage=%s", st.State, st.IsOver, st.UsagePct)
			}
		})
	}
}

func TestEvaluateBudgetUsesCapturedRate(t *testing.T) {
	b := budget("100", "90")
	b.Currency = core.USD
	b.EndDate = core.Date{}

	// 10 USD captured at 13000 = 130000 UZS = 10.40 USD at today's 12500.
	txs := []core.Transaction{
		expense("10", core.USD, "13000", 5, "2024-03-10"),
		expense("10", core.USD, "", 5, "2024-03-26"), // after asOf on an open budget
	}
	st := EvaluateBudget(b, txs, day("2024-03-25"), currency.StaticTable())
	if !st.Spent.Equal(dec("10.4")) {
		t.Fatalf("spent = %s, want 10.40", st.Spent)
	}
	if !st.Window.End.Equal(day("2024-03-25")) {
		t.Fatalf("open budget window must end at asOf, got %s", st.Window)
	}
}

func TestEvaluateBudgetJustBelowAmount(t *testing.T) {
	// 999999 of 1000000 displays as 100.00% but one sum remains.
	txs := []core.Transaction{expense("999999", core.UZS, "", 5, "2024-03-10")}
	st := EvaluateBudget(budget("1000000", "80"), txs, day("2024-03-25"), currency.StaticTable())
	if !st.UsagePct.Equal(dec("100")) || !st.Remaining.Equal(dec("1")) {
		t.Fatalf("usage=%s remaining=%s", st.UsagePct, st.Remaining)
	}
	if st.IsOver || st.State != NearThreshold {
		t.Fatalf("state=%s over=%v, want NEAR_THRESHOLD", st.State, st.IsOver)
	}
}

func TestEvaluateBudgetZeroAmount(t *testing.T) {
	b := budget("1000", "80")
	b.Amount = decimal.Zero
	st := EvaluateBudget(b, []core.Transaction{expense("10", core.UZS, "", 5, "2024-03-10")}, day("2024-03-25"), currency.StaticTable())
	if !st.UsagePct.IsZero() {
		t.Fatalf("zero budget must report zero usage, got %s", st.UsagePct)
	}
}

func goal(target string) core.Goal {
	return core.Goal{
		ID:           9,
		Name:         "March income",
		GoalType:     core.GoalMonthly,
		TargetAmount: dec(target),
		Currency:     core.UZS,
		StartDate:    core.DateOf(day("2024-03-01")),
		EndDate:      core.DateOf(day("2024-03-30")),
		Status:       core.GoalActive,
	}
}

func TestEvaluateGoal(t *testing.T) {
	incomes := []core.Transaction{
		income("400", core.UZS, core.StatusReceived, 1, "2024-03-02"),
		income("100", core.UZS, core.StatusReceived, 2, "2024-03-05"),
		income("999", core.UZS, core.StatusPending, 1, "2024-03-05"),
		income("999", core.UZS, core.StatusReceived, 1, "2024-04-01"),
	}
	// Day 10 of a 30-day goal: expected 1000 * 10 / 30 = 333.
	p := EvaluateGoal(goal("1000"), incomes, day("2024-03-10"), currency.StaticTable())

	if !p.Current.Equal(dec("500")) || !p.ProgressPct.Equal(dec("50")) || !p.Remaining.Equal(dec("500")) {
		t.Fatalf("unexpected progress %+v", p)
	}
	if p.DaysRemaining != 20 || !p.ExpectedAmount.Equal(dec("333")) || !p.OnTrack {
		t.Fatalf("days=%d expected=%s onTrack=%v", p.DaysRemaining, p.ExpectedAmount, p.OnTrack)
	}
	// 50 per day over 10 days; 500 left needs 10 more days.
	if !p.ForecastDate.Equal(day("2024-03-20")) {
		t.Fatalf("forecast = %s", p.ForecastDate.Format(time.DateOnly))
	}

	g := goal("1000")
	g.CategoryIDs = []int64{2}
	p = EvaluateGoal(g, incomes, day("2024-03-10"), currency.StaticTable())
	if !p.Current.Equal(dec("100")) || p.OnTrack {
		t.Fatalf("category filter ignored: %+v", p)
	}
}

func TestEvaluateGoalUsesCapturedRate(t *testing.T) {
	// 10 USD received at 11000 counts 110000 UZS, not 125000 at today's rate.
	tx := income("10", core.USD, core.StatusReceived, 1, "2024-03-02")
	tx.ExchangeRate = dec("11000")
	p := EvaluateGoal(goal("220000"), []core.Transaction{tx}, day("2024-03-10"), currency.StaticTable())
	if !p.Current.Equal(dec("110000")) || !p.ProgressPct.Equal(dec("50")) {
		t.Fatalf("current=%s progress=%s", p.Current, p.ProgressPct)
	}
}

func TestEvaluateGoalRoundsOnce(t *testing.T) {
	g := goal("1")
	g.Currency = core.USD
	// Each 100 UZS is 0.008 USD. Rounded one by one the three would be 0.03.
	var incomes []core.Transaction
	for range 3 {
		incomes = append(incomes, income("100", core.UZS, core.StatusReceived, 1, "2024-03-02"))
	}
	p := EvaluateGoal(g, incomes, day("2024-03-10"), currency.StaticTable())
	if !p.Current.Equal(dec("0.02")) {
		t.Fatalf("current = %s, want 0.02", p.Current)
	}
}

func TestEvaluateGoalEdges(t *testing.T) {
	incomes := []core.Transaction{income("2", core.USD, core.StatusReceived, 1, "2024-03-02")}

	over := EvaluateGoal(goal("10000"), incomes, day("2024-04-15"), currency.StaticTable())
	if !over.ProgressPct.Equal(dec("100")) || !over.Remaining.IsZero() || over.DaysRemaining != 0 || !over.OnTrack {
		t.Fatalf("goal past target: %+v", over)
	}

	zero := EvaluateGoal(goal("0"), nil, day("2024-03-10"), currency.StaticTable())
	if !zero.ProgressPct.IsZero() || !zero.ForecastDate.IsZero() {
		t.Fatalf("zero target goal: %+v", zero)
	}

	late := EvaluateGoal(goal("100000"), incomes, day("2024-04-15"), currency.StaticTable())
	if late.OnTrack || late.DaysRemaining != 0 {
		t.Fatalf("expired goal below target must be off track: %+v", late)
	}
}

func TestUpdateStatusIsSticky(t *testing.T) {
	table := currency.StaticTable()
	incomes := []core.Transaction{income("1000", core.UZS, core.StatusReceived, 1, "2024-03-02")}
	g := goal("1000")

	p := EvaluateGoal(g, incomes, day("2024-03-10"), table)
	g, changed := UpdateStatus(g, p, day("2024-03-10"))
	if !changed || g.Status != core.GoalCompleted {
		t.Fatalf("expected completion, got %s", g.Status)
	}

	// The income is later cancelled and progress drops to zero.
	incomes[0].Status = core.StatusCancelled
	p = EvaluateGoal(g, incomes, day("2024-03-12"), table)
	if !p.ProgressPct.IsZero() {
		t.Fatalf("progress should drop, got %s", p.ProgressPct)
	}
	g, changed = UpdateStatus(g, p, day("2024-03-12"))
	if changed || g.Status != core.GoalCompleted {
		t.Fatalf("completed goal must stay completed, got %s", g.Status)
	}
}

func TestUpdateStatusNeedsFullTarget(t *testing.T) {
	// 99996 of 100000 rounds to 100.00% while 4 is still missing.
	incomes := []core.Transaction{income("99996", core.UZS, core.StatusReceived, 1, "2024-03-02")}
	g := goal("100000")
	p := EvaluateGoal(g, incomes, day("2024-03-10"), currency.StaticTable())
	if !p.ProgressPct.Equal(dec("100")) || !p.Remaining.Equal(dec("4")) {
		t.Fatalf("progress=%s remaining=%s", p.ProgressPct, p.Remaining)
	}
	if g, changed := UpdateStatus(g, p, day("2024-03-10")); changed || g.Status != core.GoalActive {
		t.Fatalf("goal short of target completed: %s", g.Status)
	}

	incomes = append(incomes, income("4", core.UZS, core.StatusReceived, 1, "2024-03-03"))
	p = EvaluateGoal(g, incomes, day("2024-03-10"), currency.StaticTable())
	if g, changed := UpdateStatus(g, p, day("2024-03-10")); !changed || g.Status != core.GoalCompleted {
		t.Fatalf("goal at target not completed: %s", g.Status)
	}
}

func TestUpdateStatusCancelsExpired(t *testing.T) {
	g := goal("1000")
	p := EvaluateGoal(g, nil, day("2024-03-30"), currency.StaticTable())
	if _, changed := UpdateStatus(g, p, day("2024-03-30")); changed {
		t.Fatalf("goal ending today is still active")
	}
	g, changed := UpdateStatus(g, p, day("2024-03-31"))
	if !changed || g.Status != core.GoalCancelled {
		t.Fatalf("expected cancellation, got %s", g.Status)
	}
	if _, changed := UpdateStatus(g, GoalProgress{ProgressPct: dec("100")}, day("2024-04-01")); changed {
		t.Fatalf("cancelled goal must stay cancelled")
	}
}

func TestNextOccurrence(t *testing.T) {
	tests := []struct {
		r        core.Recurrence
		interval int
		from     string
		want     string
	}{
		{core.Daily, 3, "2024-02-27", "2024-03-01"},
		{core.Weekly, 1, "2024-12-30", "2025-01-06"},
		{core.Biweekly, 2, "2024-03-01", "2024-03-29"},
		{core.Monthly, 1, "2024-01-31", "2024-02-29"},
		{core.Monthly, 1, "2023-01-31", "2023-02-28"},
		{core.Monthly, 0, "2024-03-15", "2024-04-15"},
		{core.Quarterly, 1, "2024-11-30", "2025-02-28"},
		{core.Yearly, 1, "2024-02-29", "2025-02-28"},
		{core.Yearly, 4, "2024-02-29", "2028-02-29"},
	}
	for _, tt := range tests {
		t.Run(string(tt.r)+" "+tt.from, func(t *testing.T) {
			got, err := NextOccurrence(tt.r, tt.interval, day(tt.from))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(day(tt.want)) {
				t.Fatalf("got %s, want %s", got.Format(time.DateOnly), tt.want)
			}
		})
	}

	if _, err := NextOccurrence("hourly", 1, day("2024-01-01")); !errors.Is(err, core.ErrInvalidRecurrence) {
		t.Fatalf("expected ErrInvalidRecurrence, got %v", err)
	}
}

func TestDueOccurrences(t *testing.T) {
	ri := core.RecurringIncome{
		Recurrence: core.Weekly,
		Interval:   1,
		NextDate:   core.DateOf(day("2024-03-01")),
		EndDate:    core.DateOf(day("2024-03-20")),
	}
	due, next, err := DueOccurrences(ri, day("2024-03-31"), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(due) != 3 || !due[2].Equal(day("2024-03-15")) {
		t.Fatalf("unexpected occurrences %v", due)
	}
	if !next.Equal(day("2024-03-22")) {
		t.Fatalf("next = %s", next.Format(time.DateOnly))
	}

	ri.EndDate = core.Date{}
	due, _, _ = DueOccurrences(ri, day("2024-12-31"), 2)
	if len(due) != 2 {
		t.Fatalf("limit not honored: %d", len(due))
	}
}

func TestDueOccurrencesKeepsMonthEnd(t *testing.T) {
	dates := func(ts []time.Time) []string {
		out := make([]string, len(ts))
		for i, d := range ts {
			out[i] = d.Format(time.DateOnly)
		}
		return out
	}
	tests := []struct {
		name     string
		r        core.Recurrence
		interval int
		start    string
		next     string
		asOf     string
		want     []string
		wantNext string
	}{
		{
			name: "monthly from the 31st", r: core.Monthly, interval: 1,
			start: "2024-01-31", next: "2024-01-31", asOf: "2024-05-01",
			want:     []string{"2024-01-31", "2024-02-29", "2024-03-31", "2024-04-30"},
			wantNext: "2024-05-31",
		},
		{
			name: "resumed after a clamped date", r: core.Monthly, interval: 1,
			start: "2024-01-31", next: "2024-02-29", asOf: "2024-03-31",
			want:     []string{"2024-02-29", "2024-03-31"},
			wantNext: "2024-04-30",
		},
		{
			name: "quarterly from the 30th of November", r: core.Quarterly, interval: 1,
			start: "2024-11-30", next: "2025-02-28", asOf: "2025-06-01",
			want:     []string{"2025-02-28", "2025-05-30"},
			wantNext: "2025-08-30",
		},
		{
			name: "yearly from a leap day", r: core.Yearly, interval: 1,
			start: "2024-02-29", next: "2025-02-28", asOf: "2028-03-01",
			want:     []string{"2025-02-28", "2026-02-28", "2027-02-28", "2028-02-29"},
			wantNext: "2029-02-28",
		},
		{
			name: "no start date falls back to next", r: core.Monthly, interval: 2,
			next: "2024-01-31", asOf: "2024-06-01",
			want:     []string{"2024-01-31", "2024-03-31", "2024-05-31"},
			wantNext: "2024-07-31",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ri := core.RecurringIncome{
				Recurrence: tt.r,
				Interval:   tt.interval,
				NextDate:   core.DateOf(day(tt.next)),
			}
			if tt.start != "" {
				ri.StartDate = core.DateOf(day(tt.start))
			}
			due, next, err := DueOccurrences(ri, day(tt.asOf), 10)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := dates(due); strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Fatalf("due = %v, want %v", got, tt.want)
			}
			if !next.Equal(day(tt.wantNext)) {
				t.Fatalf("next = %s, want %s", next.Format(time.DateOnly), tt.wantNext)
			}
		})
	}
}
