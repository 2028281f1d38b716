package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"hisob/internal/core"
	"hisob/internal/period"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "hisob.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteTransactions(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	created := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
	usd := core.Transaction{
		ID:            "tx-1",
		UserID:        7,
		Kind:          core.Expense,
		Amount:        decimal.RequireFromString("12.50"),
		Currency:      core.USD,
		ExchangeRate:  decimal.RequireFromString("12650"),
		CategoryID:    3,
		CategoryName:  "Transport",
		Date:          core.NewDate(2024, 3, 2),
		PaymentMethod: core.PaymentCard,
		Tags:          []string{"work", "taxi"},
		Description:   "Airport",
		CreatedAt:     created,
	}
	uzs := core.Transaction{
		ID:        "tx-2",
		UserID:    7,
		Kind:      core.Income,
		Amount:    decimal.NewFromInt(5000000),
		Currency:  core.UZS,
		Date:      core.NewDate(2024, 3, 10),
		Status:    core.StatusReceived,
		IsTaxable: true,
		TaxAmount: decimal.NewFromInt(600000),
		CreatedAt: created,
	}
	other := uzs
	other.ID, other.UserID = "tx-3", 8

	for _, tx := range []core.Transaction{usd, uzs, other} {
		if err := repo.SaveTransaction(ctx, tx); err != nil {
			t.Fatalf("save %s: %v", tx.ID, err)
		}
	}

	got, err := repo.GetTransaction(ctx, "tx-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Amount.Equal(usd.Amount) || !got.ExchangeRate.Equal(usd.ExchangeRate) || len(got.Tags) != 2 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if !got.Date.Equal(usd.Date.Time) || !got.CreatedAt.Equal(created) {
		t.Fatalf("dates mismatch: %s %s", got.Date, got.CreatedAt)
	}
	if base, ok := got.BaseAmount(); !ok || !base.Equal(decimal.RequireFromString("158125")) {
		t.Fatalf("captured rate lost: %s", base)
	}

	list, err := repo.ListTransactions(ctx, 7, period.Range{Start: core.NewDate(2024, 3, 1).Time, End: core.NewDate(2024, 3, 5).Time})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != "tx-1" {
		t.Fatalf("expected only tx-1 in range, got %d", len(list))
	}

	all, err := repo.ListTransactions(ctx, 7, period.Range{})
	if err != nil || len(all) != 2 || all[0].ID != "tx-2" {
		t.Fatalf("expected newest first, got %v (%v)", all, err)
	}
	if all[0].ExchangeRate.IsPositive() {
		t.Fatalf("missing rate must stay empty")
	}

	recent, err := repo.RecentTransactions(ctx, 7, core.Income, 5)
	if err != nil || len(recent) != 1 || !recent[0].IsTaxable {
		t.Fatalf("recent incomes: %v (%v)", recent, err)
	}

	if _, err := repo.GetTransaction(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteBudgetsAndGoals(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	b := core.Budget{
		UserID:         7,
		CategoryID:     3,
		Name:           "Transport",
		Amount:         decimal.NewFromInt(1000000),
		Currency:       core.UZS,
		Period:         core.Monthly,
		StartDate:      core.NewDate(2024, 3, 1),
		AlertThreshold: decimal.NewFromInt(80),
		IsActive:       true,
	}
	id, err := repo.SaveBudget(ctx, b)
	if err != nil {
		t.Fatalf("save budget: %v", err)
	}
	got, err := repo.GetBudget(ctx, 7, id)
	if err != nil {
		t.Fatalf("get budget: %v", err)
	}
	if !got.EndDate.IsZero() || !got.AlertThreshold.Equal(b.AlertThreshold) || !got.IsActive {
		t.Fatalf("unexpected budget %+v", got)
	}
	if _, err := repo.GetBudget(ctx, 8, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("budgets must be scoped to their owner, got %v", err)
	}

	g := core.Goal{
		UserID:       7,
		Name:         "Q1 income",
		GoalType:     core.GoalCustom,
		TargetAmount: decimal.NewFromInt(3000),
		Currency:     core.USD,
		StartDate:    core.NewDate(2024, 1, 1),
		EndDate:      core.NewDate(2024, 3, 31),
		CategoryIDs:  []int64{1, 2},
	}
	gid, err := repo.SaveGoal(ctx, g)
	if err != nil {
		t.Fatalf("save goal: %v", err)
	}
	active, err := repo.ListGoalsByStatus(ctx, core.GoalActive)
	if err != nil || len(active) != 1 || len(active[0].CategoryIDs) != 2 {
		t.Fatalf("active goals: %v (%v)", active, err)
	}

	at := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	if err := repo.UpdateGoalStatus(ctx, gid, core.GoalCancelled, at); err != nil {
		t.Fatalf("update status: %v", err)
	}
	if err := repo.UpdateGoalStatus(ctx, gid, core.GoalCompleted, at.Add(time.Second)); err != nil {
		t.Fatalf("update status: %v", err)
	}
	stored, _ := repo.GetGoal(ctx, 7, gid)
	if stored.Status != core.GoalCompleted {
		t.Fatalf("last writer should win, got %s", stored.Status)
	}
	if err := repo.UpdateGoalStatus(ctx, 999, core.GoalCompleted, at); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteRecurringIncomes(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	ri := core.RecurringIncome{
		UserID: 7,
		Template: core.Transaction{
			Amount:     decimal.NewFromInt(8000000),
			Currency:   core.UZS,
			CategoryID: 1,
			Source:     "Salary",
		},
		Recurrence: core.Monthly,
		Interval:   1,
		NextDate:   core.NewDate(2024, 3, 25),
		IsActive:   true,
	}
	id, err := repo.SaveRecurringIncome(ctx, ri)
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	due, err := repo.DueRecurringIncomes(ctx, time.Date(2024, 3, 24, 0, 0, 0, 0, time.UTC))
	if err != nil || len(due) != 0 {
		t.Fatalf("nothing should be due yet: %v (%v)", due, err)
	}
	due, err = repo.DueRecurringIncomes(ctx, time.Date(2024, 3, 25, 0, 0, 0, 0, time.UTC))
	if err != nil || len(due) != 1 || due[0].Template.Kind != core.Income || due[0].Template.UserID != 7 {
		t.Fatalf("expected one due income: %v (%v)", due, err)
	}
	if due[0].StartDate.String() != "2024-03-25" {
		t.Fatalf("start date defaults to the first next date, got %s", due[0].StartDate)
	}

	if err := repo.AdvanceRecurringIncome(ctx, id, time.Date(2024, 4, 25, 0, 0, 0, 0, time.UTC), false); err != nil {
		t.Fatalf("advance: %v", err)
	}
	due, _ = repo.DueRecurringIncomes(ctx, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC))
	if len(due) != 0 {
		t.Fatalf("inactive schedules must not be due")
	}
}
