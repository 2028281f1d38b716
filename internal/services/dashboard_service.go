package services

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"hisob/internal/aggregate"
	"hisob/internal/core"
	"hisob/internal/currency"
	"hisob/internal/delta"
	"hisob/internal/period"
	"hisob/internal/storage"
)

// RecentLimit caps the merged recent transaction list.
const RecentLimit = 5

// MaxChartDays bounds the daily chart window.
const MaxChartDays = 366

// Summary is the dashboard payload. Totals cover the current month to date
// and are compared with the whole previous month.
type Summary struct {
	Currency         core.Currency    `json:"currency"`
	BaseCurrency     core.Currency    `json:"base_currency"`
	Period           period.Range     `json:"period"`
	PreviousPeriod   period.Range     `json:"previous_period"`
	TotalIncome      decimal.Decimal  `json:"total_income"`
	TotalExpense     decimal.Decimal  `json:"total_expense"`
	CurrentBalance   decimal.Decimal  `json:"current_balance"`
	IncomeChange     decimal.Decimal  `json:"income_change"`
	ExpenseChange    decimal.Decimal  `json:"expense_change"`
	BalanceChange    decimal.Decimal  `json:"balance_change"`
	IncomeDirection  delta.Direction  `json:"income_direction"`
	ExpenseDirection delta.Direction  `json:"expense_direction"`
	BalanceDirection delta.Direction  `json:"balance_direction"`
	Recent           []RecentActivity `json:"recent_transactions"`
}

// RecentActivity is a transaction with its amount expressed in the summary
// currency.
type RecentActivity struct {
	ID             string          `json:"id"`
	Kind           core.Kind       `json:"type"`
	Amount         decimal.Decimal `json:"amount"`
	OriginalAmount decimal.Decimal `json:"original_amount"`
	Currency       core.Currency   `json:"currency"`
	CategoryName   string          `json:"category_name"`
	Date           string          `json:"date"`
	Description    string          `json:"description"`
}

type DashboardService struct {
	store storage.TransactionStore
	rates RateProvider
}

func NewDashboardService(store storage.TransactionStore, rates RateProvider) *DashboardService {
	return &DashboardService{store: store, rates: rates}
}

type periodTotals struct {
	income, expense decimal.Decimal
}

// Summary sums income and expense in base for the current and previous
// periods, derives the changes there, and converts the totals into target.
// An empty base means the base of the live table.
func (s *DashboardService) Summary(ctx context.Context, userID int64, base, target core.Currency, asOf time.Time) (Summary, error) {
	table := s.rates.Rates(ctx)
	if base == "" {
		base = table.Base()
	}
	if target == "" {
		target = base
	}

	cur := period.MustResolve(period.ThisMonth, asOf)
	prev := period.Previous(period.ThisMonth, asOf, cur)

	var now, before periodTotals
	var recent []core.Transaction

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		now, err = s.totals(gctx, userID, cur, base, table)
		return err
	})
	g.Go(func() error {
		var err error
		before, err = s.totals(gctx, userID, prev, base, table)
		return err
	})
	g.Go(func() error {
		var err error
		recent, err = s.recent(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return Summary{}, fmt.Errorf("dashboard summary: %w", err)
	}

	balance := now.income.Sub(now.expense)
	incomeChange := delta.Compare(now.income, before.income)
	expenseChange := delta.Compare(now.expense, before.expense)
	balanceChange := delta.Compare(balance, before.income.Sub(before.expense))

	sum := Summary{
		Currency:         target,
		BaseCurrency:     base,
		Period:           cur,
		PreviousPeriod:   prev,
		TotalIncome:      currency.Convert(now.income, base, target, table),
		TotalExpense:     currency.Convert(now.expense, base, target, table),
		CurrentBalance:   currency.Convert(balance, base, target, table),
		IncomeChange:     incomeChange.Percent,
		ExpenseChange:    expenseChange.Percent,
		BalanceChange:    balanceChange.Percent,
		IncomeDirection:  incomeChange.Direction,
		ExpenseDirection: expenseChange.Direction,
		BalanceDirection: balanceChange.Direction,
		Recent:           make([]RecentActivity, 0, len(recent)),
	}
	for _, tx := range recent {
		sum.Recent = append(sum.Recent, RecentActivity{
			ID:             tx.ID,
			Kind:           tx.Kind,
			Amount:         core.RoundHalfUp(aggregate.Normalize(tx, target, table), target.MinorUnits()),
			OriginalAmount: tx.Amount,
			Currency:       tx.Currency,
			CategoryName:   tx.CategoryName,
			Date:           tx.Date.String(),
			Description:    tx.Description,
		})
	}
	return sum, nil
}

func (s *DashboardService) totals(ctx context.Context, userID int64, r period.Range, base core.Currency, table currency.RateTable) (periodTotals, error) {
	txs, err := s.store.ListTransactions(ctx, userID, r)
	if err != nil {
		return periodTotals{}, fmt.Errorf("list transactions %s: %w", r, err)
	}
	f := aggregate.FilterSpec{Range: r}
	f.Kind = core.Income
	income := aggregate.Sum(txs, f, base, table)
	f.Kind = core.Expense
	expense := aggregate.Sum(txs, f, base, table)
	return periodTotals{income: income, expense: expense}, nil
}

// recent merges the newest received incomes and expenses, newest first.
func (s *DashboardService) recent(ctx context.Context, userID int64) ([]core.Transaction, error) {
	incomes, err := s.store.RecentTransactions(ctx, userID, core.Income, RecentLimit*2)
	if err != nil {
		return nil, fmt.Errorf("recent incomes: %w", err)
	}
	expenses, err := s.store.RecentTransactions(ctx, userID, core.Expense, RecentLimit)
	if err != nil {
		return nil, fmt.Errorf("recent expenses: %w", err)
	}

	merged := make([]core.Transaction, 0, RecentLimit*2)
	for _, tx := range incomes {
		if tx.Counts() && len(merged) < RecentLimit {
			merged = append(merged, tx)
		}
	}
	merged = append(merged, expenses...)
	slices.SortStableFunc(merged, func(a, b core.Transaction) int {
		if c := b.Date.Compare(a.Date.Time); c != 0 {
			return c
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if len(merged) > RecentLimit {
		merged = merged[:RecentLimit]
	}
	return merged, nil
}

// Chart is a zero-filled daily income and expense series.
type Chart struct {
	Currency core.Currency     `json:"currency"`
	Labels   []string          `json:"labels"`
	Income   []decimal.Decimal `json:"income_data"`
	Expense  []decimal.Decimal `json:"expense_data"`
}

// Chart returns one point per day for the last days days up to asOf.
func (s *DashboardService) Chart(ctx context.Context, userID int64, days int, target core.Currency, asOf time.Time) (Chart, error) {
	if days < 1 {
		days = 30
	}
	if days > MaxChartDays {
		days = MaxChartDays
	}
	table := s.rates.Rates(ctx)
	r := period.NewRange(asOf.AddDate(0, 0, -days), asOf)

	txs, err := s.store.ListTransactions(ctx, userID, r)
	if err != nil {
		return Chart{}, fmt.Errorf("list transactions: %w", err)
	}

	f := aggregate.FilterSpec{Range: r, Kind: core.Income}
	income, err := aggregate.Trend(txs, f, aggregate.Day, target, table)
	if err != nil {
		return Chart{}, err
	}
	f.Kind = core.Expense
	expense, err := aggregate.Trend(txs, f, aggregate.Day, target, table)
	if err != nil {
		return Chart{}, err
	}

	c := Chart{
		Currency: target,
		Labels:   make([]string, len(income)),
		Income:   make([]decimal.Decimal, len(income)),
		Expense:  make([]decimal.Decimal, len(expense)),
	}
	for i, p := range income {
		c.Labels[i] = p.Start.Format("01-02")
		c.Income[i] = p.Total
		c.Expense[i] = expense[i].Total
	}
	return c, nil
}
