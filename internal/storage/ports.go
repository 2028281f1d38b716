package storage

import (
	"context"
	"errors"
	"time"

	"hisob/internal/core"
	"hisob/internal/period"
)

// ErrNotFound is returned when a record does not exist for the requesting user.
var ErrNotFound = errors.New("record not found")

// Ports implemented by every persistence backend.
type (
	TransactionStore interface {
		SaveTransaction(ctx context.Context, tx core.Transaction) error
		GetTransaction(ctx context.Context, id string) (core.Transaction, error)
		// ListTransactions returns the user's transactions dated within r,
		// newest first. A zero range returns everything.
		ListTransactions(ctx context.Context, userID int64, r period.Range) ([]core.Transaction, error)
		// RecentTransactions returns the newest limit transactions of a kind.
		RecentTransactions(ctx context.Context, userID int64, kind core.Kind, limit int) ([]core.Transaction, error)
	}

	BudgetStore interface {
		SaveBudget(ctx context.Context, b core.Budget) (int64, error)
		GetBudget(ctx context.Context, userID, id int64) (core.Budget, error)
		ListBudgets(ctx context.Context, userID int64) ([]core.Budget, error)
	}

	GoalStore interface {
		SaveGoal(ctx context.Context, g core.Goal) (int64, error)
		GetGoal(ctx context.Context, userID, id int64) (core.Goal, error)
		// ListGoalsByStatus returns goals of every user with the given status.
		ListGoalsByStatus(ctx context.Context, status core.GoalStatus) ([]core.Goal, error)
		// UpdateGoalStatus overwrites the status. Concurrent writers race and
		// the last one wins.
		UpdateGoalStatus(ctx context.Context, id int64, status core.GoalStatus, at time.Time) error
	}

	RecurringIncomeStore interface {
		SaveRecurringIncome(ctx context.Context, ri core.RecurringIncome) (int64, error)
		// DueRecurringIncomes returns active schedules whose next date is on
		// or before asOf.
		DueRecurringIncomes(ctx context.Context, asOf time.Time) ([]core.RecurringIncome, error)
		AdvanceRecurringIncome(ctx context.Context, id int64, next time.Time, active bool) error
	}

	// Repository is the full persistence surface.
	Repository interface {
		TransactionStore
		BudgetStore
		GoalStore
		RecurringIncomeStore
		Ping(ctx context.Context) error
		Close() error
	}
)
