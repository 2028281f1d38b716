package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"hisob/internal/amqp"
	"hisob/internal/core"
	"hisob/internal/evaluator"
	"hisob/internal/period"
	"hisob/internal/storage"
)

// refreshConcurrency bounds parallel goal refreshes in RefreshActive.
const refreshConcurrency = 4

type GoalService struct {
	goals     storage.GoalStore
	txs       storage.TransactionStore
	rates     RateProvider
	publisher Publisher
	locks     keyedMutex
}

func NewGoalService(goals storage.GoalStore, txs storage.TransactionStore, rates RateProvider, publisher Publisher) *GoalService {
	return &GoalService{goals: goals, txs: txs, rates: rates, publisher: publisher}
}

// Create validates and stores a goal in the active state.
func (s *GoalService) Create(ctx context.Context, g core.Goal) (int64, error) {
	if g.GoalType == "" {
		g.GoalType = core.GoalCustom
	}
	g.Status = core.GoalActive
	if err := g.Validate(); err != nil {
		return 0, fmt.Errorf("validate goal: %w", err)
	}
	id, err := s.goals.SaveGoal(ctx, g)
	if err != nil {
		return 0, fmt.Errorf("save goal: %w", err)
	}
	return id, nil
}

// Evaluate derives progress without touching the stored status.
func (s *GoalService) Evaluate(ctx context.Context, userID, goalID int64, asOf time.Time) (evaluator.GoalProgress, error) {
	g, err := s.goals.GetGoal(ctx, userID, goalID)
	if err != nil {
		return evaluator.GoalProgress{}, fmt.Errorf("get goal: %w", err)
	}
	return s.progress(ctx, g, asOf)
}

// RefreshStatus evaluates the goal and persists a status transition if one
// applies. Refreshes of the same goal are serialized within the process;
// across processes the last write wins.
func (s *GoalService) RefreshStatus(ctx context.Context, userID, goalID int64, asOf time.Time) (core.Goal, evaluator.GoalProgress, error) {
	unlock := s.locks.lock(goalID)
	defer unlock()

	g, err := s.goals.GetGoal(ctx, userID, goalID)
	if err != nil {
		return core.Goal{}, evaluator.GoalProgress{}, fmt.Errorf("get goal: %w", err)
	}
	return s.refresh(ctx, g, asOf)
}

func (s *GoalService) refresh(ctx context.Context, g core.Goal, asOf time.Time) (core.Goal, evaluator.GoalProgress, error) {
	p, err := s.progress(ctx, g, asOf)
	if err != nil {
		return core.Goal{}, evaluator.GoalProgress{}, err
	}

	from := g.Status
	updated, changed := evaluator.UpdateStatus(g, p, asOf)
	if !changed {
		return g, p, nil
	}
	if err := s.goals.UpdateGoalStatus(ctx, g.ID, updated.Status, updated.UpdatedAt); err != nil {
		return core.Goal{}, evaluator.GoalProgress{}, fmt.Errorf("update goal status: %w", err)
	}

	slog.InfoContext(ctx, "Goal status changed",
		"goal_id", g.ID,
		"user_id", g.UserID,
		"from", from,
		"to", updated.Status,
		"progress_pct", p.ProgressPct.String())

	if err := s.publishStatusChange(ctx, g, from, updated.Status, p); err != nil {
		slog.ErrorContext(ctx, "Failed to publish goal status change",
			"goal_id", g.ID, "error", err)
	}
	return updated, p, nil
}

// RefreshActive refreshes every active goal and returns how many changed.
// Individual failures are logged and do not stop the run.
func (s *GoalService) RefreshActive(ctx context.Context, asOf time.Time) (int, error) {
	active, err := s.goals.ListGoalsByStatus(ctx, core.GoalActive)
	if err != nil {
		return 0, fmt.Errorf("list active goals: %w", err)
	}

	var (
		mu      sync.Mutex
		changed int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(refreshConcurrency)
	for _, goal := range active {
		g.Go(func() error {
			unlock := s.locks.lock(goal.ID)
			defer unlock()

			updated, _, err := s.refresh(gctx, goal, asOf)
			if err != nil {
				slog.ErrorContext(gctx, "Failed to refresh goal", "goal_id", goal.ID, "error", err)
				return nil
			}
			if updated.Status != goal.Status {
				mu.Lock()
				changed++
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return changed, err
	}

	slog.InfoContext(ctx, "Goal refresh complete",
		"checked", len(active),
		"changed", changed)
	return changed, nil
}

func (s *GoalService) progress(ctx context.Context, g core.Goal, asOf time.Time) (evaluator.GoalProgress, error) {
	window := period.NewRange(g.StartDate.Time, g.EndDate.Time)
	var incomes []core.Transaction
	if window.Valid() {
		txs, err := s.txs.ListTransactions(ctx, g.UserID, window)
		if err != nil {
			return evaluator.GoalProgress{}, fmt.Errorf("list incomes: %w", err)
		}
		incomes = txs
	}
	return evaluator.EvaluateGoal(g, incomes, asOf, s.rates.Rates(ctx)), nil
}

func (s *GoalService) publishStatusChange(ctx context.Context, g core.Goal, from, to core.GoalStatus, p evaluator.GoalProgress) error {
	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping goal status event")
		return nil
	}
	if from == "" {
		from = core.GoalActive
	}
	return s.publisher.PublishGoalStatusChanged(ctx, &amqp.GoalStatusChangedMessage{
		GoalID:    g.ID,
		UserID:    g.UserID,
		From:      string(from),
		To:        string(to),
		Progress:  p.ProgressPct.String(),
		Timestamp: time.Now(),
	})
}

// keyedMutex hands out one mutex per key and forgets it when unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[int64]*refLock
}

type refLock struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key int64) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[int64]*refLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &refLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
