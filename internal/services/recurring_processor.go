package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"hisob/internal/core"
	"hisob/internal/evaluator"
	"hisob/internal/storage"
)

// maxCatchUp bounds how many missed occurrences one run materializes per
// schedule.
const maxCatchUp = 366

// RecurringProcessor turns due recurring income schedules into incomes.
type RecurringProcessor struct {
	store        storage.RecurringIncomeStore
	transactions *TransactionService
}

func NewRecurringProcessor(store storage.RecurringIncomeStore, transactions *TransactionService) *RecurringProcessor {
	return &RecurringProcessor{
		store:        store,
		transactions: transactions,
	}
}

// ProcessDue records one income per due occurrence of every active schedule
// and advances the schedule past asOf. It returns the number of incomes
// recorded. A failing schedule is logged and left untouched for the next run.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, asOf time.Time) (int, error) {
	if p.store == nil || p.transactions == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	schedules, err := p.store.DueRecurringIncomes(ctx, asOf)
	if err != nil {
		return 0, fmt.Errorf("failed to get due recurring incomes: %w", err)
	}

	slog.InfoContext(ctx, "Processing recurring incomes",
		"due", len(schedules),
		"processing_date", asOf.Format("2006-01-02"))

	created := 0
	for _, ri := range schedules {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		n, err := p.processOne(ctx, ri, asOf)
		created += n
		if err != nil {
			slog.ErrorContext(ctx, "Failed to process recurring income",
				"recurring_id", ri.ID,
				"error", err)
		}
	}

	slog.InfoContext(ctx, "Recurring income processing complete",
		"created", created,
		"total_checked", len(schedules))
	return created, nil
}

func (p *RecurringProcessor) processOne(ctx context.Context, ri core.RecurringIncome, asOf time.Time) (int, error) {
	due, next, err := evaluator.DueOccurrences(ri, asOf, maxCatchUp)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, day := range due {
		tx := ri.Template
		tx.ID = ""
		tx.UserID = ri.UserID
		tx.Kind = core.Income
		tx.Date = core.DateOf(day)
		tx.Tags = append([]string(nil), ri.Template.Tags...)
		if tx.Source == "" {
			tx.Source = "recurring"
		}
		if _, err := p.transactions.Record(ctx, tx); err != nil {
			// Advance past what was recorded so a retry does not duplicate it.
			if created > 0 {
				if aerr := p.store.AdvanceRecurringIncome(ctx, ri.ID, day, true); aerr != nil {
					slog.ErrorContext(ctx, "Failed to advance recurring income", "recurring_id", ri.ID, "error", aerr)
				}
			}
			return created, fmt.Errorf("record occurrence %s: %w", day.Format("2006-01-02"), err)
		}
		created++
		slog.InfoContext(ctx, "Created income from recurring schedule",
			"recurring_id", ri.ID,
			"date", day.Format("2006-01-02"),
			"amount", ri.Template.Amount.String(),
			"currency", ri.Template.Currency,
			"recurrence", ri.Recurrence)
	}

	active := ri.EndDate.IsZero() || !next.After(ri.EndDate.Time)
	if err := p.store.AdvanceRecurringIncome(ctx, ri.ID, next, active); err != nil {
		return created, fmt.Errorf("advance schedule: %w", err)
	}
	return created, nil
}
