// Package postgres implements the storage ports on PostgreSQL through a pgx
// connection pool.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"hisob/internal/core"
	"hisob/internal/period"
	"hisob/internal/storage"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Repository struct {
	pool *pgxpool.Pool
}

var _ storage.Repository = (*Repository)(nil)

// New connects to url, applies migrations and returns a ready repository.
func New(ctx context.Context, url string) (*Repository, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := runMigrations(pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Repository{pool: pool}, nil
}

func runMigrations(pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		return fmt.Errorf("create pgx driver: %w", err)
	}
	d, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", d, "pgx5", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

// Numeric columns are exchanged as text so values keep their exact decimal form.
const transactionColumns = `id, user_id, kind, amount::text, currency, COALESCE(exchange_rate::text, ''),
	category_id, category_name, date, payment_method, tags, status, source, description, is_taxable,
	tax_amount::text, created_at`

func nullableNumeric(d decimal.Decimal) *string {
	if !d.IsPositive() {
		return nil
	}
	s := d.String()
	return &s
}

func nullableDate(d core.Date) *time.Time {
	if d.IsZero() {
		return nil
	}
	t := d.Time
	return &t
}

func (r *Repository) SaveTransaction(ctx context.Context, tx core.Transaction) error {
	tags := tx.Tags
	if tags == nil {
		tags = []string{}
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO transactions (id, user_id, kind, amount, currency, exchange_rate, category_id, category_name,
			date, payment_method, tags, status, source, description, is_taxable, tax_amount, created_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6::numeric, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16::numeric, $17)
		ON CONFLICT (id) DO UPDATE SET
			kind = EXCLUDED.kind, amount = EXCLUDED.amount, currency = EXCLUDED.currency,
			exchange_rate = EXCLUDED.exchange_rate, category_id = EXCLUDED.category_id,
			category_name = EXCLUDED.category_name, date = EXCLUDED.date,
			payment_method = EXCLUDED.payment_method, tags = EXCLUDED.tags, status = EXCLUDED.status,
			source = EXCLUDED.source, description = EXCLUDED.description,
			is_taxable = EXCLUDED.is_taxable, tax_amount = EXCLUDED.tax_amount`,
		tx.ID, tx.UserID, string(tx.Kind), tx.Amount.String(), string(tx.Currency), nullableNumeric(tx.ExchangeRate),
		tx.CategoryID, tx.CategoryName, tx.Date.Time, string(tx.PaymentMethod), tags, string(tx.Status),
		tx.Source, tx.Description, tx.IsTaxable, tx.TaxAmount.String(), tx.CreatedAt)
	if err != nil {
		return fmt.Errorf("save transaction: %w", err)
	}
	slog.DebugContext(ctx, "Transaction saved to Postgres", "id", tx.ID, "kind", tx.Kind)
	return nil
}

func (r *Repository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Transaction{}, storage.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return tx, nil
}

func (r *Repository) ListTransactions(ctx context.Context, userID int64, rng period.Range) ([]core.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = $1`
	args := []any{userID}
	if !rng.Start.IsZero() {
		args = append(args, rng.Start)
		query += fmt.Sprintf(` AND date >= $%d`, len(args))
	}
	if !rng.End.IsZero() {
		args = append(args, rng.End)
		query += fmt.Sprintf(` AND date <= $%d`, len(args))
	}
	query += ` ORDER BY date DESC, created_at DESC`
	return r.queryTransactions(ctx, query, args...)
}

func (r *Repository) RecentTransactions(ctx context.Context, userID int64, kind core.Kind, limit int) ([]core.Transaction, error) {
	return r.queryTransactions(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE user_id = $1 AND kind = $2 ORDER BY date DESC, created_at DESC LIMIT $3`,
		userID, string(kind), limit)
}

func (r *Repository) queryTransactions(ctx context.Context, query string, args ...any) ([]core.Transaction, error) {
	rows, err := r.pool.Query(ctx, query, args...)
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

func scanTransaction(row pgx.Row) (core.Transaction, error) {
	var (
		tx                      core.Transaction
		kind, cur, pm, status   string
		amount, rate, taxAmount string
		date                    time.Time
	)
	if err := row.Scan(&tx.ID, &tx.UserID, &kind, &amount, &cur, &rate, &tx.CategoryID, &tx.CategoryName,
		&date, &pm, &tx.Tags, &status, &tx.Source, &tx.Description, &tx.IsTaxable, &taxAmount, &tx.CreatedAt); err != nil {
		return core.Transaction{}, err
	}
	tx.Kind = core.Kind(kind)
	tx.Currency = core.Currency(cur)
	tx.PaymentMethod = core.PaymentMethod(pm)
	tx.Status = core.TransactionStatus(status)
	tx.Date = core.DateOf(date)
	if len(tx.Tags) == 0 {
		tx.Tags = nil
	}

	var err error
	if tx.Amount, err = storage.DecodeDecimal(amount); err != nil {
		return core.Transaction{}, err
	}
	if tx.ExchangeRate, err = storage.DecodeDecimal(rate); err != nil {
		return core.Transaction{}, err
	}
	if tx.TaxAmount, err = storage.DecodeDecimal(taxAmount); err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}

const budgetColumns = `id, user_id, category_id, name, amount::text, currency, period, start_date, end_date,
	alert_threshold::text, is_active`

func (r *Repository) SaveBudget(ctx context.Context, b core.Budget) (int64, error) {
	if b.ID != 0 {
		_, err := r.pool.Exec(ctx, `UPDATE budgets SET category_id = $1, name = $2, amount = $3::numeric,
			currency = $4, period = $5, start_date = $6, end_date = $7, alert_threshold = $8::numeric,
			is_active = $9 WHERE id = $10 AND user_id = $11`,
			b.CategoryID, b.Name, b.Amount.String(), string(b.Currency), string(b.Period), b.StartDate.Time,
			nullableDate(b.EndDate), b.AlertThreshold.String(), b.IsActive, b.ID, b.UserID)
		if err != nil {
			return 0, fmt.Errorf("update budget: %w", err)
		}
		return b.ID, nil
	}

	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO budgets (user_id, category_id, name, amount, currency, period,
		start_date, end_date, alert_threshold, is_active)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9::numeric, $10) RETURNING id`,
		b.UserID, b.CategoryID, b.Name, b.Amount.String(), string(b.Currency), string(b.Period),
		b.StartDate.Time, nullableDate(b.EndDate), b.AlertThreshold.String(), b.IsActive).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create budget: %w", err)
	}
	return id, nil
}

func (r *Repository) GetBudget(ctx context.Context, userID, id int64) (core.Budget, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE id = $1 AND user_id = $2`, id, userID)
	b, err := scanBudget(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Budget{}, storage.ErrNotFound
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget %d: %w", id, err)
	}
	return b, nil
}

func (r *Repository) ListBudgets(ctx context.Context, userID int64) ([]core.Budget, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE user_id = $1 ORDER BY id`, userID)
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

func scanBudget(row pgx.Row) (core.Budget, error) {
	var (
		b                        core.Budget
		amount, cur, per, thresh string
		start                    time.Time
		end                      *time.Time
	)
	if err := row.Scan(&b.ID, &b.UserID, &b.CategoryID, &b.Name, &amount, &cur, &per, &start, &end, &thresh, &b.IsActive); err != nil {
		return core.Budget{}, err
	}
	b.Currency = core.Currency(cur)
	b.Period = core.Recurrence(per)
	b.StartDate = core.DateOf(start)
	if end != nil {
		b.EndDate = core.DateOf(*end)
	}

	var err error
	if b.Amount, err = storage.DecodeDecimal(amount); err != nil {
		return core.Budget{}, err
	}
	if b.AlertThreshold, err = storage.DecodeDecimal(thresh); err != nil {
		return core.Budget{}, err
	}
	return b, nil
}

const goalColumns = `id, user_id, name, goal_type, target_amount::text, currency, start_date, end_date,
	category_ids, status, updated_at`

func (r *Repository) SaveGoal(ctx context.Context, g core.Goal) (int64, error) {
	if g.Status == "" {
		g.Status = core.GoalActive
	}
	if g.UpdatedAt.IsZero() {
		g.UpdatedAt = time.Now()
	}
	cats := g.CategoryIDs
	if cats == nil {
		cats = []int64{}
	}
	if g.ID != 0 {
		_, err := r.pool.Exec(ctx, `UPDATE goals SET name = $1, goal_type = $2, target_amount = $3::numeric,
			currency = $4, start_date = $5, end_date = $6, category_ids = $7, status = $8, updated_at = $9
			WHERE id = $10 AND user_id = $11`,
			g.Name, string(g.GoalType), g.TargetAmount.String(), string(g.Currency), g.StartDate.Time,
			g.EndDate.Time, cats, string(g.Status), g.UpdatedAt, g.ID, g.UserID)
		if err != nil {
			return 0, fmt.Errorf("update goal: %w", err)
		}
		return g.ID, nil
	}

	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO goals (user_id, name, goal_type, target_amount, currency,
		start_date, end_date, category_ids, status, updated_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9, $10) RETURNING id`,
		g.UserID, g.Name, string(g.GoalType), g.TargetAmount.String(), string(g.Currency), g.StartDate.Time,
		g.EndDate.Time, cats, string(g.Status), g.UpdatedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create goal: %w", err)
	}
	return id, nil
}

func (r *Repository) GetGoal(ctx context.Context, userID, id int64) (core.Goal, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+goalColumns+` FROM goals WHERE id = $1 AND user_id = $2`, id, userID)
	g, err := scanGoal(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Goal{}, storage.ErrNotFound
	}
	if err != nil {
		return core.Goal{}, fmt.Errorf("get goal %d: %w", id, err)
	}
	return g, nil
}

func (r *Repository) ListGoalsByStatus(ctx context.Context, status core.GoalStatus) ([]core.Goal, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+goalColumns+` FROM goals WHERE status = $1 ORDER BY id`, string(status))
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

func (r *Repository) UpdateGoalStatus(ctx context.Context, id int64, status core.GoalStatus, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE goals SET status = $1, updated_at = $2 WHERE id = $3`, string(status), at, id)
	if err != nil {
		return fmt.Errorf("update goal status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	slog.InfoContext(ctx, "Goal status updated", "id", id, "status", status)
	return nil
}

func scanGoal(row pgx.Row) (core.Goal, error) {
	var (
		g                       core.Goal
		gt, target, cur, status string
		start, end              time.Time
	)
	if err := row.Scan(&g.ID, &g.UserID, &g.Name, &gt, &target, &cur, &start, &end, &g.CategoryIDs, &status, &g.UpdatedAt); err != nil {
		return core.Goal{}, err
	}
	g.GoalType = core.GoalType(gt)
	g.Currency = core.Currency(cur)
	g.Status = core.GoalStatus(status)
	g.StartDate = core.DateOf(start)
	g.EndDate = core.DateOf(end)
	if len(g.CategoryIDs) == 0 {
		g.CategoryIDs = nil
	}

	var err error
	if g.TargetAmount, err = storage.DecodeDecimal(target); err != nil {
		return core.Goal{}, err
	}
	return g, nil
}

const recurringColumns = `id, user_id, amount::text, currency, category_id, category_name, payment_method, source,
	description, tags, is_taxable, tax_amount::text, recurrence, interval_count, start_date, next_date, end_date, is_active`

func (r *Repository) SaveRecurringIncome(ctx context.Context, ri core.RecurringIncome) (int64, error) {
	t := ri.Template
	tags := t.Tags
	if tags == nil {
		tags = []string{}
	}
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO recurring_incomes (user_id, amount, currency, category_id,
		category_name, payment_method, source, description, tags, is_taxable, tax_amount, recurrence,
		interval_count, start_date, next_date, end_date, is_active)
		VALUES ($1, $2::numeric, $3, $4, $5, $6, $7, $8, $9, $10, $11::numeric, $12, $13, $14, $15, $16, $17)
		RETURNING id`,
		ri.UserID, t.Amount.String(), string(t.Currency), t.CategoryID, t.CategoryName, string(t.PaymentMethod),
		t.Source, t.Description, tags, t.IsTaxable, t.TaxAmount.String(), string(ri.Recurrence), ri.Interval,
		ri.Anchor().Time, ri.NextDate.Time, nullableDate(ri.EndDate), ri.IsActive).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create recurring income: %w", err)
	}
	return id, nil
}

func (r *Repository) DueRecurringIncomes(ctx context.Context, asOf time.Time) ([]core.RecurringIncome, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+recurringColumns+` FROM recurring_incomes
		WHERE is_active AND next_date <= $1 ORDER BY next_date, id`, period.Day(asOf))
	if err != nil {
		return nil, fmt.Errorf("get due recurring incomes: %w", err)
	}
	defer rows.Close()

	var out []core.RecurringIncome
	for rows.Next() {
		var (
			ri                   core.RecurringIncome
			amount, cur, pm, tax string
			rec                  string
			start, next          time.Time
			end                  *time.Time
		)
		t := &ri.Template
		if err := rows.Scan(&ri.ID, &ri.UserID, &amount, &cur, &t.CategoryID, &t.CategoryName, &pm, &t.Source,
			&t.Description, &t.Tags, &t.IsTaxable, &tax, &rec, &ri.Interval, &start, &next, &end, &ri.IsActive); err != nil {
			return nil, fmt.Errorf("scan recurring income: %w", err)
		}
		t.UserID = ri.UserID
		t.Kind = core.Income
		t.Status = core.StatusReceived
		t.Currency = core.Currency(cur)
		t.PaymentMethod = core.PaymentMethod(pm)
		ri.Recurrence = core.Recurrence(rec)
		ri.StartDate = core.DateOf(start)
		ri.NextDate = core.DateOf(next)
		if end != nil {
			ri.EndDate = core.DateOf(*end)
		}
		if t.Amount, err = storage.DecodeDecimal(amount); err != nil {
			return nil, err
		}
		if t.TaxAmount, err = storage.DecodeDecimal(tax); err != nil {
			return nil, err
		}
		out = append(out, ri)
	}
	return out, rows.Err()
}

func (r *Repository) AdvanceRecurringIncome(ctx context.Context, id int64, next time.Time, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE recurring_incomes SET next_date = $1, is_active = $2 WHERE id = $3`,
		period.Day(next), active, id)
	if err != nil {
		return fmt.Errorf("advance recurring income: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}
