package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"hisob/internal/core"
	"hisob/internal/period"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

var _ Repository = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows one writer; serializing through one connection avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

const transactionColumns = `id, user_id, kind, amount, currency, exchange_rate, category_id, category_name,
	date, payment_method, tags, status, source, description, is_taxable, tax_amount, created_at`

// SaveTransaction inserts or replaces a transaction by id.
func (r *SQLiteRepository) SaveTransaction(ctx context.Context, tx core.Transaction) error {
	rate := ""
	if tx.ExchangeRate.IsPositive() {
		rate = tx.ExchangeRate.String()
	}
	_, err := r.db.ExecContext(ctx, `INSERT OR REPLACE INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.UserID, string(tx.Kind), tx.Amount.String(), string(tx.Currency), rate,
		tx.CategoryID, tx.CategoryName, EncodeDate(tx.Date), string(tx.PaymentMethod),
		EncodeList(tx.Tags), string(tx.Status), tx.Source, tx.Description, tx.IsTaxable,
		tx.TaxAmount.String(), EncodeTime(tx.CreatedAt))
	if err != nil {
		return fmt.Errorf("save transaction: %w", err)
	}

	slog.DebugContext(ctx, "Transaction saved to SQLite",
		"id", tx.ID,
		"kind", tx.Kind,
		"currency", tx.Currency,
		"date", tx.Date.String())
	return nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return tx, nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID int64, rng period.Range) ([]core.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = ?`
	args := []any{userID}
	if !rng.Start.IsZero() {
		query += ` AND date >= ?`
		args = append(args, rng.Start.Format(time.DateOnly))
	}
	if !rng.End.IsZero() {
		query += ` AND date <= ?`
		args = append(args, rng.End.Format(time.DateOnly))
	}
	query += ` ORDER BY date DESC, created_at DESC`

	return r.queryTransactions(ctx, query, args...)
}

func (r *SQLiteRepository) RecentTransactions(ctx context.Context, userID int64, kind core.Kind, limit int) ([]core.Transaction, error) {
	return r.queryTransactions(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE user_id = ? AND kind = ? ORDER BY date DESC, created_at DESC LIMIT ?`,
		userID, string(kind), limit)
}

func (r *SQLiteRepository) queryTransactions(ctx context.Context, query string, args ...any) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s scanner) (core.Transaction, error) {
	var (
		tx                                     core.Transaction
		kind, cur, pm, status                  string
		amount, rate, tags, taxAmount, created string
		date                                   *string
	)
	if err := s.Scan(&tx.ID, &tx.UserID, &kind, &amount, &cur, &rate, &tx.CategoryID, &tx.CategoryName,
		&date, &pm, &tags, &status, &tx.Source, &tx.Description, &tx.IsTaxable, &taxAmount, &created); err != nil {
		return core.Transaction{}, err
	}
	tx.Kind = core.Kind(kind)
	tx.Currency = core.Currency(cur)
	tx.PaymentMethod = core.PaymentMethod(pm)
	tx.Status = core.TransactionStatus(status)

	var err error
	if tx.Amount, err = DecodeDecimal(amount); err != nil {
		return core.Transaction{}, err
	}
	if tx.ExchangeRate, err = DecodeDecimal(rate); err != nil {
		return core.Transaction{}, err
	}
	if tx.TaxAmount, err = DecodeDecimal(taxAmount); err != nil {
		return core.Transaction{}, err
	}
	if tx.Date, err = DecodeDate(date); err != nil {
		return core.Transaction{}, err
	}
	if tx.Tags, err = DecodeList[string](tags); err != nil {
		return core.Transaction{}, err
	}
	if tx.CreatedAt, err = DecodeTime(created); err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}

const budgetColumns = `id, user_id, category_id, name, amount, currency, period, start_date, end_date, alert_threshold, is_active`

func (r *SQLiteRepository) SaveBudget(ctx context.Context, b core.Budget) (int64, error) {
	if b.ID != 0 {
		_, err := r.db.ExecContext(ctx, `UPDATE budgets SET category_id = ?, name = ?, amount = ?, currency = ?,
			period = ?, start_date = ?, end_date = ?, alert_threshold = ?, is_active = ? WHERE id = ? AND user_id = ?`,
			b.CategoryID, b.Name, b.Amount.String(), string(b.Currency), string(b.Period),
			EncodeDate(b.StartDate), EncodeDate(b.EndDate), b.AlertThreshold.String(), b.IsActive, b.ID, b.UserID)
		if err != nil {
			return 0, fmt.Errorf("update budget: %w", err)
		}
		return b.ID, nil
	}

	res, err := r.db.ExecContext(ctx, `INSERT INTO budgets (user_id, category_id, name, amount, currency, period,
		start_date, end_date, alert_threshold, is_active) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.UserID, b.CategoryID, b.Name, b.Amount.String(), string(b.Currency), string(b.Period),
		EncodeDate(b.StartDate), EncodeDate(b.EndDate), b.AlertThreshold.String(), b.IsActive)
	if err != nil {
		return 0, fmt.Errorf("create budget: %w", err)
	}
	return res.LastInsertId()
}

func (r *SQLiteRepository) GetBudget(ctx context.Context, userID, id int64) (core.Budget, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE id = ? AND user_id = ?`, id, userID)
	b, err := scanBudget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, ErrNotFound
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget %d: %w", id, err)
	}
	return b, nil
}

func (r *SQLiteRepository) ListBudgets(ctx context.Context, userID int64) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanBudget(s scanner) (core.Budget, error) {
	var (
		b                        core.Budget
		amount, cur, per, thresh string
		start, end               *string
	)
	if err := s.Scan(&b.ID, &b.UserID, &b.CategoryID, &b.Name, &amount, &cur, &per, &start, &end, &thresh, &b.IsActive); err != nil {
		return core.Budget{}, err
	}
	b.Currency = core.Currency(cur)
	b.Period = core.Recurrence(per)

	var err error
	if b.Amount, err = DecodeDecimal(amount); err != nil {
		return core.Budget{}, err
	}
	if b.AlertThreshold, err = DecodeDecimal(thresh); err != nil {
		return core.Budget{}, err
	}
	if b.StartDate, err = DecodeDate(start); err != nil {
		return core.Budget{}, err
	}
	if b.EndDate, err = DecodeDate(end); err != nil {
		return core.Budget{}, err
	}
	return b, nil
}

const goalColumns = `id, user_id, name, goal_type, target_amount, currency, start_date, end_date, category_ids, status, updated_at`

func (r *SQLiteRepository) SaveGoal(ctx context.Context, g core.Goal) (int64, error) {
	if g.Status == "" {
		g.Status = core.GoalActive
	}
	if g.UpdatedAt.IsZero() {
		g.UpdatedAt = time.Now()
	}
	if g.ID != 0 {
		_, err := r.db.ExecContext(ctx, `UPDATE goals SET name = ?, goal_type = ?, target_amount = ?, currency = ?,
			start_date = ?, end_date = ?, category_ids = ?, status = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
			g.Name, string(g.GoalType), g.TargetAmount.String(), string(g.Currency), EncodeDate(g.StartDate),
			EncodeDate(g.EndDate), EncodeList(g.CategoryIDs), string(g.Status), EncodeTime(g.UpdatedAt), g.ID, g.UserID)
		if err != nil {
			return 0, fmt.Errorf("update goal: %w", err)
		}
		return g.ID, nil
	}

	res, err := r.db.ExecContext(ctx, `INSERT INTO goals (user_id, name, goal_type, target_amount, currency,
		start_date, end_date, category_ids, status, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.UserID, g.Name, string(g.GoalType), g.TargetAmount.String(), string(g.Currency), EncodeDate(g.StartDate),
		EncodeDate(g.EndDate), EncodeList(g.CategoryIDs), string(g.Status), EncodeTime(g.UpdatedAt))
	if err != nil {
		return 0, fmt.Errorf("create goal: %w", err)
	}
	return res.LastInsertId()
}

func (r *SQLiteRepository) GetGoal(ctx context.Context, userID, id int64) (core.Goal, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+goalColumns+` FROM goals WHERE id = ? AND user_id = ?`, id, userID)
	g, err := scanGoal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Goal{}, ErrNotFound
	}
	if err != nil {
		return core.Goal{}, fmt.Errorf("get goal %d: %w", id, err)
	}
	return g, nil
}

func (r *SQLiteRepository) ListGoalsByStatus(ctx context.Context, status core.GoalStatus) ([]core.Goal, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+goalColumns+` FROM goals WHERE status = ? ORDER BY id`, string(status))
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var out []core.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) UpdateGoalStatus(ctx context.Context, id int64, status core.GoalStatus, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE goals SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), EncodeTime(at), id)
	if err != nil {
		return fmt.Errorf("update goal status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	slog.InfoContext(ctx, "Goal status updated", "id", id, "status", status)
	return nil
}

func scanGoal(s scanner) (core.Goal, error) {
	var (
		g                                  core.Goal
		gt, target, cur, cats, status, upd string
		start, end                         *string
	)
	if err := s.Scan(&g.ID, &g.UserID, &g.Name, &gt, &target, &cur, &start, &end, &cats, &status, &upd); err != nil {
		return core.Goal{}, err
	}
	g.GoalType = core.GoalType(gt)
	g.Currency = core.Currency(cur)
	g.Status = core.GoalStatus(status)

	var err error
	if g.TargetAmount, err = DecodeDecimal(target); err != nil {
		return core.Goal{}, err
	}
	if g.StartDate, err = DecodeDate(start); err != nil {
		return core.Goal{}, err
	}
	if g.EndDate, err = DecodeDate(end); err != nil {
		return core.Goal{}, err
	}
	if g.CategoryIDs, err = DecodeList[int64](cats); err != nil {
		return core.Goal{}, err
	}
	if g.UpdatedAt, err = DecodeTime(upd); err != nil {
		return core.Goal{}, err
	}
	return g, nil
}

const recurringColumns = `id, user_id, amount, currency, category_id, category_name, payment_method, source,
	description, tags, is_taxable, tax_amount, recurrence, interval_count, start_date, next_date, end_date, is_active`

func (r *SQLiteRepository) SaveRecurringIncome(ctx context.Context, ri core.RecurringIncome) (int64, error) {
	t := ri.Template
	res, err := r.db.ExecContext(ctx, `INSERT INTO recurring_incomes (user_id, amount, currency, category_id,
		category_name, payment_method, source, description, tags, is_taxable, tax_amount, recurrence,
		interval_count, start_date, next_date, end_date, is_active) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ri.UserID, t.Amount.String(), string(t.Currency), t.CategoryID, t.CategoryName, string(t.PaymentMethod),
		t.Source, t.Description, EncodeList(t.Tags), t.IsTaxable, t.TaxAmount.String(), string(ri.Recurrence),
		ri.Interval, EncodeDate(ri.Anchor()), EncodeDate(ri.NextDate), EncodeDate(ri.EndDate), ri.IsActive)
	if err != nil {
		return 0, fmt.Errorf("create recurring income: %w", err)
	}
	return res.LastInsertId()
}

func (r *SQLiteRepository) DueRecurringIncomes(ctx context.Context, asOf time.Time) ([]core.RecurringIncome, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+recurringColumns+` FROM recurring_incomes
		WHERE is_active = 1 AND next_date <= ? ORDER BY next_date, id`, asOf.Format(time.DateOnly))
	if err != nil {
		return nil, fmt.Errorf("get due recurring incomes: %w", err)
	}
	defer rows.Close()

	var out []core.RecurringIncome
	for rows.Next() {
		ri, err := scanRecurring(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recurring income: %w", err)
		}
		out = append(out, ri)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) AdvanceRecurringIncome(ctx context.Context, id int64, next time.Time, active bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE recurring_incomes SET next_date = ?, is_active = ? WHERE id = ?`,
		next.Format(time.DateOnly), active, id)
	if err != nil {
		return fmt.Errorf("advance recurring income: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanRecurring(s scanner) (core.RecurringIncome, error) {
	var (
		ri                              core.RecurringIncome
		amount, cur, pm, tags, tax, rec string
		start, next, end                *string
	)
	t := &ri.Template
	if err := s.Scan(&ri.ID, &ri.UserID, &amount, &cur, &t.CategoryID, &t.CategoryName, &pm, &t.Source,
		&t.Description, &tags, &t.IsTaxable, &tax, &rec, &ri.Interval, &start, &next, &end, &ri.IsActive); err != nil {
		return core.RecurringIncome{}, err
	}
	t.UserID = ri.UserID
	t.Kind = core.Income
	t.Status = core.StatusReceived
	t.Currency = core.Currency(cur)
	t.PaymentMethod = core.PaymentMethod(pm)
	ri.Recurrence = core.Recurrence(rec)

	var err error
	if t.Amount, err = DecodeDecimal(amount); err != nil {
		return core.RecurringIncome{}, err
	}
	if t.TaxAmount, err = DecodeDecimal(tax); err != nil {
		return core.RecurringIncome{}, err
	}
	if t.Tags, err = DecodeList[string](tags); err != nil {
		return core.RecurringIncome{}, err
	}
	if ri.StartDate, err = DecodeDate(start); err != nil {
		return core.RecurringIncome{}, err
	}
	if ri.NextDate, err = DecodeDate(next); err != nil {
		return core.RecurringIncome{}, err
	}
	if ri.EndDate, err = DecodeDate(end); err != nil {
		return core.RecurringIncome{}, err
	}
	return ri, nil
}
