package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"hisob/internal/amqp"
	"hisob/internal/core"
	"hisob/internal/evaluator"
	"hisob/internal/storage"
)

type BudgetService struct {
	budgets   storage.BudgetStore
	txs       storage.TransactionStore
	rates     RateProvider
	publisher Publisher
}

func NewBudgetService(budgets storage.BudgetStore, txs storage.TransactionStore, rates RateProvider, publisher Publisher) *BudgetService {
	return &BudgetService{budgets: budgets, txs: txs, rates: rates, publisher: publisher}
}

// Create validates and stores a budget.
func (s *BudgetService) Create(ctx context.Context, b core.Budget) (int64, error) {
	if err := b.Validate(); err != nil {
		return 0, fmt.Errorf("validate budget: %w", err)
	}
	id, err := s.budgets.SaveBudget(ctx, b)
	if err != nil {
		return 0, fmt.Errorf("save budget: %w", err)
	}
	return id, nil
}

// Evaluate derives the budget status as of asOf. A status that calls for an
// alert is published as budget.alert.
func (s *BudgetService) Evaluate(ctx context.Context, userID, budgetID int64, asOf time.Time) (evaluator.BudgetStatus, error) {
	b, err := s.budgets.GetBudget(ctx, userID, budgetID)
	if err != nil {
		return evaluator.BudgetStatus{}, fmt.Errorf("get budget: %w", err)
	}

	st, err := s.evaluate(ctx, b, asOf)
	if err != nil {
		return evaluator.BudgetStatus{}, err
	}
	if st.ShouldAlert && b.IsActive {
		if err := s.publishAlert(ctx, b, st); err != nil {
			slog.ErrorContext(ctx, "Failed to publish budget alert",
				"budget_id", b.ID, "error", err)
		}
	}
	return st, nil
}

// EvaluateAll derives the status of every budget of userID.
func (s *BudgetService) EvaluateAll(ctx context.Context, userID int64, asOf time.Time) ([]evaluator.BudgetStatus, error) {
	list, err := s.budgets.ListBudgets(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	out := make([]evaluator.BudgetStatus, 0, len(list))
	for _, b := range list {
		st, err := s.evaluate(ctx, b, asOf)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

func (s *BudgetService) evaluate(ctx context.Context, b core.Budget, asOf time.Time) (evaluator.BudgetStatus, error) {
	window := evaluator.BudgetWindow(b, asOf)
	if !window.Valid() {
		return evaluator.EvaluateBudget(b, nil, asOf, s.rates.Rates(ctx)), nil
	}
	txs, err := s.txs.ListTransactions(ctx, b.UserID, window)
	if err != nil {
		return evaluator.BudgetStatus{}, fmt.Errorf("list expenses: %w", err)
	}
	return evaluator.EvaluateBudget(b, txs, asOf, s.rates.Rates(ctx)), nil
}

func (s *BudgetService) publishAlert(ctx context.Context, b core.Budget, st evaluator.BudgetStatus) error {
	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping budget alert")
		return nil
	}
	return s.publisher.PublishBudgetAlert(ctx, &amqp.BudgetAlertMessage{
		BudgetID:  b.ID,
		UserID:    b.UserID,
		State:     string(st.State),
		UsagePct:  st.UsagePct.String(),
		Spent:     st.Spent.String(),
		Currency:  st.Currency.String(),
		Timestamp: time.Now(),
	})
}
