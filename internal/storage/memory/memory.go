// Package memory is an in-process implementation of the storage ports, used
// by the memory backend and by service tests.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"hisob/internal/core"
	"hisob/internal/period"
	"hisob/internal/storage"
)

type Store struct {
	mu        sync.RWMutex
	txs       map[string]core.Transaction
	budgets   map[int64]core.Budget
	goals     map[int64]core.Goal
	recurring map[int64]core.RecurringIncome
	nextID    int64
}

var _ storage.Repository = (*Store)(nil)

func New() *Store {
	return &Store{
		txs:       make(map[string]core.Transaction),
		budgets:   make(map[int64]core.Budget),
		goals:     make(map[int64]core.Goal),
		recurring: make(map[int64]core.RecurringIncome),
	}
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func cloneTx(tx core.Transaction) core.Transaction {
	tx.Tags = slices.Clone(tx.Tags)
	return tx
}

func (s *Store) SaveTransaction(_ context.Context, tx core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs[tx.ID] = cloneTx(tx)
	return nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.txs[id]
	if !ok {
		return core.Transaction{}, storage.ErrNotFound
	}
	return cloneTx(tx), nil
}

func (s *Store) ListTransactions(_ context.Context, userID int64, r period.Range) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Transaction
	for _, tx := range s.txs {
		if tx.UserID != userID {
			continue
		}
		if !r.Start.IsZero() && tx.Date.Before(r.Start) {
			continue
		}
		if !r.End.IsZero() && tx.Date.After(r.End) {
			continue
		}
		out = append(out, cloneTx(tx))
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *Store) RecentTransactions(ctx context.Context, userID int64, kind core.Kind, limit int) ([]core.Transaction, error) {
	all, _ := s.ListTransactions(ctx, userID, period.Range{})
	out := make([]core.Transaction, 0, limit)
	for _, tx := range all {
		if tx.Kind != kind {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, tx)
	}
	return out, nil
}

func sortNewestFirst(txs []core.Transaction) {
	slices.SortStableFunc(txs, func(a, b core.Transaction) int {
		if c := b.Date.Compare(a.Date.Time); c != 0 {
			return c
		}
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
}

func (s *Store) SaveBudget(_ context.Context, b core.Budget) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == 0 {
		b.ID = s.id()
	} else if old, ok := s.budgets[b.ID]; !ok || old.UserID != b.UserID {
		return 0, storage.ErrNotFound
	}
	s.budgets[b.ID] = b
	return b.ID, nil
}

func (s *Store) GetBudget(_ context.Context, userID, id int64) (core.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.budgets[id]
	if !ok || b.UserID != userID {
		return core.Budget{}, storage.ErrNotFound
	}
	return b, nil
}

func (s *Store) ListBudgets(_ context.Context, userID int64) ([]core.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Budget
	for _, b := range s.budgets {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	slices.SortFunc(out, func(a, b core.Budget) int { return int(a.ID - b.ID) })
	return out, nil
}

func (s *Store) SaveGoal(_ context.Context, g core.Goal) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.Status == "" {
		g.Status = core.GoalActive
	}
	if g.ID == 0 {
		g.ID = s.id()
	} else if old, ok := s.goals[g.ID]; !ok || old.UserID != g.UserID {
		return 0, storage.ErrNotFound
	}
	g.CategoryIDs = slices.Clone(g.CategoryIDs)
	s.goals[g.ID] = g
	return g.ID, nil
}

func (s *Store) GetGoal(_ context.Context, userID, id int64) (core.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.goals[id]
	if !ok || g.UserID != userID {
		return core.Goal{}, storage.ErrNotFound
	}
	return g, nil
}

func (s *Store) ListGoalsByStatus(_ context.Context, status core.GoalStatus) ([]core.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Goal
	for _, g := range s.goals {
		if g.Status == status {
			out = append(out, g)
		}
	}
	slices.SortFunc(out, func(a, b core.Goal) int { return int(a.ID - b.ID) })
	return out, nil
}

func (s *Store) UpdateGoalStatus(_ context.Context, id int64, status core.GoalStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[id]
	if !ok {
		return storage.ErrNotFound
	}
	g.Status = status
	g.UpdatedAt = at
	s.goals[id] = g
	return nil
}

func (s *Store) SaveRecurringIncome(_ context.Context, ri core.RecurringIncome) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ri.ID == 0 {
		ri.ID = s.id()
	}
	ri.Template.Kind = core.Income
	ri.Template.UserID = ri.UserID
	ri.StartDate = ri.Anchor()
	if ri.Template.Status == "" {
		ri.Template.Status = core.StatusReceived
	}
	ri.Template = cloneTx(ri.Template)
	s.recurring[ri.ID] = ri
	return ri.ID, nil
}

func (s *Store) DueRecurringIncomes(_ context.Context, asOf time.Time) ([]core.RecurringIncome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	day := period.Day(asOf)
	var out []core.RecurringIncome
	for _, ri := range s.recurring {
		if ri.IsActive && !ri.NextDate.After(day) {
			ri.Template = cloneTx(ri.Template)
			out = append(out, ri)
		}
	}
	slices.SortFunc(out, func(a, b core.RecurringIncome) int {
		if c := a.NextDate.Compare(b.NextDate.Time); c != 0 {
			return c
		}
		return int(a.ID - b.ID)
	})
	return out, nil
}

func (s *Store) AdvanceRecurringIncome(_ context.Context, id int64, next time.Time, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ri, ok := s.recurring[id]
	if !ok {
		return storage.ErrNotFound
	}
	ri.NextDate = core.DateOf(next)
	ri.IsActive = active
	s.recurring[id] = ri
	return nil
}
