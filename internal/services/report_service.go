package services

import (
	"context"
	"fmt"
	"log/slog"

	"hisob/internal/aggregate"
	"hisob/internal/core"
	"hisob/internal/delta"
	"hisob/internal/period"
	"hisob/internal/storage"
)

// ReportService loads a user's transactions for a filter range and runs the
// pure aggregation functions over them with the live rate table.
type ReportService struct {
	store storage.TransactionStore
	rates RateProvider
}

func NewReportService(store storage.TransactionStore, rates RateProvider) *ReportService {
	return &ReportService{store: store, rates: rates}
}

// load fetches the candidate set. A malformed range selects nothing and skips
// the storage round trip.
func (s *ReportService) load(ctx context.Context, userID int64, r period.Range) ([]core.Transaction, error) {
	if !r.IsZero() && !r.Valid() {
		slog.DebugContext(ctx, "Empty result for inverted range", "range", r.String())
		return nil, nil
	}
	txs, err := s.store.ListTransactions(ctx, userID, r)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

func (s *ReportService) Aggregate(ctx context.Context, userID int64, filter aggregate.FilterSpec, by aggregate.GroupBy, target core.Currency) (aggregate.Result, error) {
	txs, err := s.load(ctx, userID, filter.Range)
	if err != nil {
		return aggregate.Result{}, err
	}
	return aggregate.Aggregate(txs, filter, by, target, s.rates.Rates(ctx)), nil
}

func (s *ReportService) Trend(ctx context.Context, userID int64, filter aggregate.FilterSpec, g aggregate.Granularity, target core.Currency) ([]aggregate.Point, error) {
	txs, err := s.load(ctx, userID, filter.Range)
	if err != nil {
		return nil, err
	}
	return aggregate.Trend(txs, filter, g, target, s.rates.Rates(ctx))
}

func (s *ReportService) Summarize(ctx context.Context, userID int64, filter aggregate.FilterSpec, target core.Currency) (aggregate.Stats, error) {
	txs, err := s.load(ctx, userID, filter.Range)
	if err != nil {
		return aggregate.Stats{}, err
	}
	return aggregate.Summarize(txs, filter, target, s.rates.Rates(ctx)), nil
}

// Comparison is the total of a filter over two periods.
type Comparison struct {
	Currency core.Currency `json:"currency"`
	Current  period.Range  `json:"current_period"`
	Previous period.Range  `json:"previous_period"`
	Change   delta.Change  `json:"change"`
}

// Compare totals filter over its range and over prev, with one rate table for
// both sides.
func (s *ReportService) Compare(ctx context.Context, userID int64, filter aggregate.FilterSpec, prev period.Range, target core.Currency) (Comparison, error) {
	table := s.rates.Rates(ctx)

	cur, err := s.load(ctx, userID, filter.Range)
	if err != nil {
		return Comparison{}, err
	}
	old, err := s.load(ctx, userID, prev)
	if err != nil {
		return Comparison{}, err
	}

	prevFilter := filter
	prevFilter.Range = prev
	curTotal := aggregate.Aggregate(cur, filter, aggregate.None, target, table).Total
	prevTotal := aggregate.Aggregate(old, prevFilter, aggregate.None, target, table).Total

	return Comparison{
		Currency: target,
		Current:  filter.Range,
		Previous: prev,
		Change:   delta.Compare(curTotal, prevTotal),
	}, nil
}
