package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"moneta/internal/core"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

const (
	dateFormat = "2006-01-02"
	timeFormat = time.RFC3339
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// _txlock=immediate takes the write lock at BEGIN so two concurrent
	// mutations of the same owner-month serialize around the summary
	// recomputation instead of failing at COMMIT.
	dsn := dbPath + "?_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

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

// CreateTransaction persists a validated transaction and recomputes its
// month's summary within the same storage transaction.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (owner, tx_date, amount, kind, category, description, source, verified, month_key, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Owner, t.Date.Format(dateFormat), t.Amount.String(), string(t.Kind),
		t.Category, t.Description, t.Source, boolToInt(t.Verified),
		string(t.MonthKey), now.Format(timeFormat), now.Format(timeFormat))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("last insert id: %w", err)
	}

	if err := r.recomputeMonthTx(ctx, tx, t.Owner, t.MonthKey); err != nil {
		return core.Transaction{}, err
	}

	if err := tx.Commit(); err != nil {
		return core.Transaction{}, fmt.Errorf("commit transaction: %w", err)
	}

	t.ID = id
	slog.InfoContext(ctx, "Transaction saved",
		"id", t.ID,
		"owner", t.Owner,
		"kind", t.Kind,
		"amount", t.Amount.String(),
		"month_key", t.MonthKey)

	return t, nil
}

// UpdateTransaction overwrites a transaction and recomputes both the month
// it used to live in and the month it lives in now (a date change can move
// it between buckets). Both recomputations share the storage transaction.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t core.Transaction, oldMonth core.MonthKey) (core.Transaction, error) {
	t.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE transactions
		 SET tx_date = ?, amount = ?, kind = ?, category = ?, description = ?, source = ?, verified = ?, month_key = ?, updated_at = ?
		 WHERE id = ? AND owner = ?`,
		t.Date.Format(dateFormat), t.Amount.String(), string(t.Kind),
		t.Category, t.Description, t.Source, boolToInt(t.Verified),
		string(t.MonthKey), t.UpdatedAt.Format(timeFormat),
		t.ID, t.Owner)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return core.Transaction{}, fmt.Errorf("rows affected: %w", err)
	} else if n == 0 {
		return core.Transaction{}, core.ErrNotFound
	}

	if err := r.recomputeMonthTx(ctx, tx, t.Owner, oldMonth); err != nil {
		return core.Transaction{}, err
	}
	if t.MonthKey != oldMonth {
		if err := r.recomputeMonthTx(ctx, tx, t.Owner, t.MonthKey); err != nil {
			return core.Transaction{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return core.Transaction{}, fmt.Errorf("commit transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction updated",
		"id", t.ID,
		"owner", t.Owner,
		"month_key", t.MonthKey,
		"old_month_key", oldMonth)

	return t, nil
}

// DeleteTransaction removes a transaction and recomputes its month's
// summary in the same storage transaction. Returns the affected month key.
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, owner string, id int64) (core.MonthKey, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var monthKey string
	err = tx.QueryRowContext(ctx,
		`SELECT month_key FROM transactions WHERE id = ? AND owner = ?`, id, owner).Scan(&monthKey)
	if errors.Is(err, sql.ErrNoRows) {
		return "", core.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load transaction month: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM transactions WHERE id = ? AND owner = ?`, id, owner); err != nil {
		return "", fmt.Errorf("delete transaction: %w", err)
	}

	if err := r.recomputeMonthTx(ctx, tx, owner, core.MonthKey(monthKey)); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction deleted", "id", id, "owner", owner, "month_key", monthKey)
	return core.MonthKey(monthKey), nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, owner string, id int64) (*core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, owner, tx_date, amount, kind, category, description, source, verified, month_key, created_at, updated_at
		 FROM transactions WHERE id = ? AND owner = ?`, id, owner)

	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, owner string, monthKey core.MonthKey) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, owner, tx_date, amount, kind, category, description, source, verified, month_key, created_at, updated_at
		 FROM transactions WHERE owner = ? AND month_key = ? ORDER BY tx_date, id`,
		owner, string(monthKey))
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// RecomputeMonth re-derives one owner-month summary from the current
// transaction set. Idempotent; safe to call redundantly.
func (r *SQLiteRepository) RecomputeMonth(ctx context.Context, owner string, monthKey core.MonthKey) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := r.recomputeMonthTx(ctx, tx, owner, monthKey); err != nil {
		return err
	}
	return tx.Commit()
}

// recomputeMonthTx rebuilds the summary row from scratch rather than
// patching it incrementally, so it can never drift from the ledger.
func (r *SQLiteRepository) recomputeMonthTx(ctx context.Context, tx *sql.Tx, owner string, monthKey core.MonthKey) error {
	rows, err := tx.QueryContext(ctx,
		`SELECT amount, kind FROM transactions WHERE owner = ? AND month_key = ?`,
		owner, string(monthKey))
	if err != nil {
		return fmt.Errorf("load month transactions: %w", err)
	}
	defer rows.Close()

	income := decimal.Zero
	expense := decimal.Zero
	for rows.Next() {
		var amountStr, kind string
		if err := rows.Scan(&amountStr, &kind); err != nil {
			return fmt.Errorf("scan amount: %w", err)
		}
		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return fmt.Errorf("parse stored amount %q: %w", amountStr, err)
		}
		switch core.TransactionKind(kind) {
		case core.Income:
			income = income.Add(amount)
		case core.Expense:
			expense = expense.Add(amount)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate month transactions: %w", err)
	}

	profit := income.Sub(expense)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO monthly_summaries (owner, month_key, total_income, total_expense, profit, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(owner, month_key) DO UPDATE SET
		   total_income = excluded.total_income,
		   total_expense = excluded.total_expense,
		   profit = excluded.profit,
		   updated_at = excluded.updated_at`,
		owner, string(monthKey), income.String(), expense.String(), profit.String(),
		time.Now().UTC().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("upsert monthly summary: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetSummary(ctx context.Context, owner string, monthKey core.MonthKey) (*core.MonthlySummary, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT owner, month_key, total_income, total_expense, profit, updated_at
		 FROM monthly_summaries WHERE owner = ? AND month_key = ?`,
		owner, string(monthKey))

	s, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get summary: %w", err)
	}
	return s, nil
}

// History returns all summaries for an owner, ascending by month key. This
// is the input shape the forecaster expects.
func (r *SQLiteRepository) History(ctx context.Context, owner string) ([]core.MonthlySummary, error) {
	return r.querySummaries(ctx,
		`SELECT owner, month_key, total_income, total_expense, profit, updated_at
		 FROM monthly_summaries WHERE owner = ? ORDER BY month_key ASC`, owner)
}

// RecentSummaries returns up to limit summaries, most recent month first.
func (r *SQLiteRepository) RecentSummaries(ctx context.Context, owner string, limit int) ([]core.MonthlySummary, error) {
	return r.querySummaries(ctx,
		`SELECT owner, month_key, total_income, total_expense, profit, updated_at
		 FROM monthly_summaries WHERE owner = ? ORDER BY month_key DESC LIMIT ?`, owner, limit)
}

func (r *SQLiteRepository) querySummaries(ctx context.Context, query string, args ...any) ([]core.MonthlySummary, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query summaries: %w", err)
	}
	defer rows.Close()

	var out []core.MonthlySummary
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// Months lists the owner's month keys, most recent first.
func (r *SQLiteRepository) Months(ctx context.Context, owner string) ([]core.MonthKey, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT month_key FROM monthly_summaries WHERE owner = ? ORDER BY month_key DESC`, owner)
	if err != nil {
		return nil, fmt.Errorf("list months: %w", err)
	}
	defer rows.Close()

	var out []core.MonthKey
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan month key: %w", err)
		}
		out = append(out, core.MonthKey(k))
	}
	return out, rows.Err()
}

// SumProfitSince totals profit across summaries at or after the given month
// key. Amounts are stored as decimal strings, so the totalling happens here
// rather than in SQL.
func (r *SQLiteRepository) SumProfitSince(ctx context.Context, owner string, from core.MonthKey) (decimal.Decimal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT profit FROM monthly_summaries WHERE owner = ? AND month_key >= ?`,
		owner, string(from))
	if err != nil {
		return decimal.Zero, fmt.Errorf("query profits: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var profitStr string
		if err := rows.Scan(&profitStr); err != nil {
			return decimal.Zero, fmt.Errorf("scan profit: %w", err)
		}
		profit, err := decimal.NewFromString(profitStr)
		if err != nil {
			return decimal.Zero, fmt.Errorf("parse stored profit %q: %w", profitStr, err)
		}
		total = total.Add(profit)
	}
	return total, rows.Err()
}

// TopExpenseCategories returns the largest expense categories of one
// owner-month, descending by total.
func (r *SQLiteRepository) TopExpenseCategories(ctx context.Context, owner string, monthKey core.MonthKey, limit int) ([]core.CategoryTotal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT category, amount FROM transactions
		 WHERE owner = ? AND month_key = ? AND kind = 'expense'`,
		owner, string(monthKey))
	if err != nil {
		return nil, fmt.Errorf("query expense categories: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]decimal.Decimal)
	for rows.Next() {
		var category, amountStr string
		if err := rows.Scan(&category, &amountStr); err != nil {
			return nil, fmt.Errorf("scan expense row: %w", err)
		}
		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return nil, fmt.Errorf("parse stored amount %q: %w", amountStr, err)
		}
		totals[category] = totals[category].Add(amount)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]core.CategoryTotal, 0, len(totals))
	for category, total := range totals {
		out = append(out, core.CategoryTotal{Category: category, Total: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Total.Equal(out[j].Total) {
			return out[i].Total.GreaterThan(out[j].Total)
		}
		return out[i].Category < out[j].Category
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *SQLiteRepository) CreateGoal(ctx context.Context, g core.Goal) (core.Goal, error) {
	now := time.Now().UTC()
	g.CreatedAt = now
	g.UpdatedAt = now

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO goals (owner, title, description, target_amount, target_date, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		g.Owner, g.Title, g.Description, g.TargetAmount.String(),
		g.TargetDate.Format(dateFormat), string(g.Status),
		now.Format(timeFormat), now.Format(timeFormat))
	if err != nil {
		return core.Goal{}, fmt.Errorf("insert goal: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return core.Goal{}, fmt.Errorf("last insert id: %w", err)
	}
	g.ID = id

	slog.InfoContext(ctx, "Goal created",
		"id", g.ID,
		"owner", g.Owner,
		"target_amount", g.TargetAmount.String(),
		"target_date", g.TargetDate.Format(dateFormat))
	return g, nil
}

func (r *SQLiteRepository) UpdateGoal(ctx context.Context, g core.Goal) (core.Goal, error) {
	g.UpdatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx,
		`UPDATE goals SET title = ?, description = ?, target_amount = ?, target_date = ?, status = ?, updated_at = ?
		 WHERE id = ? AND owner = ?`,
		g.Title, g.Description, g.TargetAmount.String(),
		g.TargetDate.Format(dateFormat), string(g.Status),
		g.UpdatedAt.Format(timeFormat), g.ID, g.Owner)
	if err != nil {
		return core.Goal{}, fmt.Errorf("update goal: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return core.Goal{}, fmt.Errorf("rows affected: %w", err)
	} else if n == 0 {
		return core.Goal{}, core.ErrNotFound
	}
	return g, nil
}

func (r *SQLiteRepository) UpdateGoalStatus(ctx context.Context, owner string, id int64, status core.GoalStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE goals SET status = ?, updated_at = ? WHERE id = ? AND owner = ?`,
		string(status), time.Now().UTC().Format(timeFormat), id, owner)
	if err != nil {
		return fmt.Errorf("update goal status: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("rows affected: %w", err)
	} else if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) GetGoal(ctx context.Context, owner string, id int64) (*core.Goal, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, owner, title, description, target_amount, target_date, status, created_at, updated_at
		 FROM goals WHERE id = ? AND owner = ?`, id, owner)

	g, err := scanGoal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get goal: %w", err)
	}
	return g, nil
}

func (r *SQLiteRepository) ListGoals(ctx context.Context, owner string) ([]core.Goal, error) {
	return r.queryGoals(ctx,
		`SELECT id, owner, title, description, target_amount, target_date, status, created_at, updated_at
		 FROM goals WHERE owner = ? ORDER BY status, target_date`, owner)
}

func (r *SQLiteRepository) ListGoalsByStatus(ctx context.Context, owner string, status core.GoalStatus) ([]core.Goal, error) {
	return r.queryGoals(ctx,
		`SELECT id, owner, title, description, target_amount, target_date, status, created_at, updated_at
		 FROM goals WHERE owner = ? AND status = ? ORDER BY target_date`, owner, string(status))
}

func (r *SQLiteRepository) queryGoals(ctx context.Context, query string, args ...any) ([]core.Goal, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query goals: %w", err)
	}
	defer rows.Close()

	var out []core.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		out = append(out, *g)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*core.Transaction, error) {
	var (
		t                            core.Transaction
		dateStr, amountStr, kind     string
		monthKey, createdAt, updated string
		verified                     int
	)
	err := row.Scan(&t.ID, &t.Owner, &dateStr, &amountStr, &kind, &t.Category,
		&t.Description, &t.Source, &verified, &monthKey, &createdAt, &updated)
	if err != nil {
		return nil, err
	}

	if t.Date, err = time.Parse(dateFormat, dateStr); err != nil {
		return nil, fmt.Errorf("parse stored date %q: %w", dateStr, err)
	}
	if t.Amount, err = decimal.NewFromString(amountStr); err != nil {
		return nil, fmt.Errorf("parse stored amount %q: %w", amountStr, err)
	}
	t.Kind = core.TransactionKind(kind)
	t.Verified = verified != 0
	t.MonthKey = core.MonthKey(monthKey)
	if t.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	if t.UpdatedAt, err = time.Parse(timeFormat, updated); err != nil {
		return nil, fmt.Errorf("parse updated_at %q: %w", updated, err)
	}
	return &t, nil
}

func scanSummary(row rowScanner) (*core.MonthlySummary, error) {
	var (
		s                         core.MonthlySummary
		monthKey, income, expense string
		profit, updatedAt         string
	)
	if err := row.Scan(&s.Owner, &monthKey, &income, &expense, &profit, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	s.MonthKey = core.MonthKey(monthKey)
	if s.TotalIncome, err = decimal.NewFromString(income); err != nil {
		return nil, fmt.Errorf("parse total_income %q: %w", income, err)
	}
	if s.TotalExpense, err = decimal.NewFromString(expense); err != nil {
		return nil, fmt.Errorf("parse total_expense %q: %w", expense, err)
	}
	if s.Profit, err = decimal.NewFromString(profit); err != nil {
		return nil, fmt.Errorf("parse profit %q: %w", profit, err)
	}
	if s.UpdatedAt, err = time.Parse(timeFormat, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at %q: %w", updatedAt, err)
	}
	return &s, nil
}

func scanGoal(row rowScanner) (*core.Goal, error) {
	var (
		g                          core.Goal
		target, targetDate, status string
		createdAt, updatedAt       string
	)
	err := row.Scan(&g.ID, &g.Owner, &g.Title, &g.Description, &target,
		&targetDate, &status, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if g.TargetAmount, err = decimal.NewFromString(target); err != nil {
		return nil, fmt.Errorf("parse target_amount %q: %w", target, err)
	}
	if g.TargetDate, err = time.Parse(dateFormat, targetDate); err != nil {
		return nil, fmt.Errorf("parse target_date %q: %w", targetDate, err)
	}
	g.Status = core.GoalStatus(status)
	if g.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	if g.UpdatedAt, err = time.Parse(timeFormat, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at %q: %w", updatedAt, err)
	}
	return &g, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
