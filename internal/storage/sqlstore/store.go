// Package sqlstore implements storage.Store on database/sql for SQLite
// (modernc.org/sqlite) and PostgreSQL (lib/pq). The schema is applied with
// golang-migrate from embedded migrations on open.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

var _ storage.Store = (*Store)(nil)

type Store struct {
	db *sql.DB
	d  Dialect
}

// OpenSQLite opens (creating if needed) a SQLite database file.
func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	s, err := Open(ctx, SQLite, dsn)
	if err != nil {
		return nil, err
	}
	// SQLite has a single writer.
	s.db.SetMaxOpenConns(1)
	return s, nil
}

// OpenPostgres connects to PostgreSQL using a lib/pq DSN or URL.
func OpenPostgres(ctx context.Context, dsn string) (*Store, error) {
	s, err := Open(ctx, Postgres, dsn)
	if err != nil {
		return nil, err
	}
	s.db.SetMaxOpenConns(20)
	s.db.SetConnMaxIdleTime(5 * time.Minute)
	return s, nil
}

// Open connects, pings and migrates.
func Open(ctx context.Context, d Dialect, dsn string) (*Store, error) {
	db, err := sql.Open(d.DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", d.Name, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(d, dsn); err != nil {
		db.Close()
		return nil, err
	}
	slog.InfoContext(ctx, "SQL store ready", "dialect", d.Name)
	return &Store{db: db, d: d}, nil
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.d.Rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.d.Rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.d.Rebind(query), args...)
}

func (s *Store) insertErr(op string, err error) error {
	if s.d.IsUniqueViolation(err) {
		return core.ErrConflict
	}
	return core.StoreErr(op, err)
}

func ms(t time.Time) int64 { return t.UnixMilli() }

func fromMs(v int64) time.Time { return time.UnixMilli(v).UTC() }

type scanner interface {
	Scan(dest ...any) error
}

func affectedOrNotFound(op string, res sql.Result, err error) error {
	if err != nil {
		return core.StoreErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.StoreErr(op, err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func noRows(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound
	}
	return core.StoreErr(op, err)
}

// Accounts

const accountColumns = `id, name, email, password_hash, balance_cents, created_at`

func scanAccount(row scanner) (core.Account, error) {
	var (
		a       core.Account
		balance int64
		created int64
	)
	if err := row.Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &balance, &created); err != nil {
		return core.Account{}, err
	}
	a.Balance = core.Cents(balance)
	a.CreatedAt = fromMs(created)
	return a, nil
}

func (s *Store) CreateAccount(ctx context.Context, a core.Account) error {
	_, err := s.exec(ctx,
		`INSERT INTO accounts (`+accountColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, strings.ToLower(a.Email), a.PasswordHash, a.Balance.Cents, ms(a.CreatedAt))
	if err != nil {
		return s.insertErr("create account", err)
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, id string) (core.Account, error) {
	a, err := scanAccount(s.queryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id))
	if err != nil {
		return core.Account{}, noRows("get account", err)
	}
	return a, nil
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (core.Account, error) {
	a, err := scanAccount(s.queryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = ?`, strings.ToLower(email)))
	if err != nil {
		return core.Account{}, noRows("get account by email", err)
	}
	return a, nil
}

func (s *Store) ReconcileBalance(ctx context.Context, accountID string) (core.Money, error) {
	var balance int64
	err := s.queryRow(ctx, `
		UPDATE accounts SET balance_cents = (
			SELECT COALESCE(SUM(CASE WHEN kind = 'income' THEN amount_cents ELSE -amount_cents END), 0)
			FROM entries WHERE account_id = ?
		)
		WHERE id = ?
		RETURNING balance_cents`, accountID, accountID).Scan(&balance)
	if err != nil {
		return core.Money{}, noRows("reconcile balance", err)
	}
	return core.Cents(balance), nil
}

func (s *Store) ListAccountIDs(ctx context.Context) ([]string, error) {
	rows, err := s.query(ctx, `SELECT id FROM accounts ORDER BY id`)
	if err != nil {
		return nil, core.StoreErr("list accounts", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, core.StoreErr("list accounts", err)
		}
		ids = append(ids, id)
	}
	return ids, core.StoreErr("list accounts", rows.Err())
}

// Ledger

const entryColumns = `id, account_id, kind, category, amount_cents, description, occurred_on, created_at, updated_at`

func scanEntry(row scanner) (core.LedgerEntry, error) {
	var (
		e                core.LedgerEntry
		kind, date       string
		amount           int64
		created, updated int64
	)
	if err := row.Scan(&e.ID, &e.AccountID, &kind, &e.Category, &amount, &e.Description, &date, &created, &updated); err != nil {
		return core.LedgerEntry{}, err
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("parse occurred_on %q: %w", date, err)
	}
	e.Kind = core.EntryKind(kind)
	e.Amount = core.Cents(amount)
	e.Date = d
	e.CreatedAt = fromMs(created)
	e.UpdatedAt = fromMs(updated)
	return e, nil
}

func (s *Store) CreateEntry(ctx context.Context, e core.LedgerEntry) error {
	_, err := s.exec(ctx,
		`INSERT INTO entries (`+entryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.AccountID, string(e.Kind), e.Category, e.Amount.Cents, e.Description,
		e.Date.String(), ms(e.CreatedAt), ms(e.UpdatedAt))
	if err != nil {
		return s.insertErr("create entry", err)
	}
	return nil
}

func (s *Store) GetEntry(ctx context.Context, accountID, id string) (core.LedgerEntry, error) {
	e, err := scanEntry(s.queryRow(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE id = ? AND account_id = ?`, id, accountID))
	if err != nil {
		return core.LedgerEntry{}, noRows("get entry", err)
	}
	return e, nil
}

// entryWhere renders the filter as a WHERE clause with its arguments.
func entryWhere(accountID string, f core.EntryFilter) (string, []any) {
	clauses := []string{"account_id = ?"}
	args := []any{accountID}
	if f.Kind != "" {
		clauses = append(clauses, "kind = ?")
		args = append(args, string(f.Kind))
	}
	if f.Category != "" {
		clauses = append(clauses, "category = ?")
		args = append(args, f.Category)
	}
	if !f.From.IsZero() {
		clauses = append(clauses, "occurred_on >= ?")
		args = append(args, f.From.String())
	}
	if !f.To.IsZero() {
		clauses = append(clauses, "occurred_on <= ?")
		args = append(args, f.To.String())
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (s *Store) ListEntries(ctx context.Context, accountID string, f core.EntryFilter) ([]core.LedgerEntry, error) {
	where, args := entryWhere(accountID, f)
	q := `SELECT ` + entryColumns + ` FROM entries` + where + ` ORDER BY occurred_on DESC, created_at DESC`
	if f.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, core.StoreErr("list entries", err)
	}
	defer rows.Close()

	out := make([]core.LedgerEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, core.StoreErr("list entries", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, core.StoreErr("list entries", err)
	}
	return out, nil
}

func (s *Store) UpdateEntry(ctx context.Context, e core.LedgerEntry) error {
	res, err := s.exec(ctx, `
		UPDATE entries
		SET kind = ?, category = ?, amount_cents = ?, description = ?, occurred_on = ?, updated_at = ?
		WHERE id = ? AND account_id = ?`,
		string(e.Kind), e.Category, e.Amount.Cents, e.Description, e.Date.String(), ms(e.UpdatedAt),
		e.ID, e.AccountID)
	return affectedOrNotFound("update entry", res, err)
}

func (s *Store) DeleteEntry(ctx context.Context, accountID, id string) (core.LedgerEntry, error) {
	e, err := scanEntry(s.queryRow(ctx,
		`DELETE FROM entries WHERE id = ? AND account_id = ? RETURNING `+entryColumns, id, accountID))
	if err != nil {
		return core.LedgerEntry{}, noRows("delete entry", err)
	}
	return e, nil
}

func (s *Store) ListCategories(ctx context.Context, accountID string) ([]string, error) {
	rows, err := s.query(ctx, `SELECT DISTINCT category FROM entries WHERE account_id = ? ORDER BY category`, accountID)
	if err != nil {
		return nil, core.StoreErr("list categories", err)
	}
	defer rows.Close()
	out := make([]string, 0)
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, core.StoreErr("list categories", err)
		}
		out = append(out, c)
	}
	return out, core.StoreErr("list categories", rows.Err())
}

func expenseSum(accountID, category string, from, to core.Date) (string, []any) {
	where, args := entryWhere(accountID, core.EntryFilter{Kind: core.KindExpense, Category: category, From: from, To: to})
	return `SELECT COALESCE(SUM(amount_cents), 0) FROM entries` + where, args
}

func (s *Store) SumExpenses(ctx context.Context, accountID, category string, from, to core.Date) (core.Money, error) {
	q, args := expenseSum(accountID, category, from, to)
	var total int64
	if err := s.queryRow(ctx, q, args...).Scan(&total); err != nil {
		return core.Money{}, core.StoreErr("sum expenses", err)
	}
	return core.Cents(total), nil
}

// Budgets

const budgetColumns = `id, account_id, category, limit_cents, spent_cents, enabled, period, created_at, updated_at`

func scanBudget(row scanner) (core.Budget, error) {
	var (
		b                core.Budget
		limit, spent     int64
		period           string
		created, updated int64
	)
	if err := row.Scan(&b.ID, &b.AccountID, &b.Category, &limit, &spent, &b.Enabled, &period, &created, &updated); err != nil {
		return core.Budget{}, err
	}
	b.Limit = core.Cents(limit)
	b.Spent = core.Cents(spent)
	b.Period = core.BudgetPeriod(period)
	b.CreatedAt = fromMs(created)
	b.UpdatedAt = fromMs(updated)
	return b, nil
}

func (s *Store) CreateBudget(ctx context.Context, b core.Budget) error {
	_, err := s.exec(ctx,
		`INSERT INTO budgets (`+budgetColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.AccountID, b.Category, b.Limit.Cents, b.Spent.Cents, b.Enabled, string(b.Period),
		ms(b.CreatedAt), ms(b.UpdatedAt))
	if err != nil {
		return s.insertErr("create budget", err)
	}
	return nil
}

func (s *Store) UpdateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	got, err := scanBudget(s.queryRow(ctx, `
		UPDATE budgets SET limit_cents = ?, enabled = ?, period = ?, updated_at = ?
		WHERE account_id = ? AND category = ?
		RETURNING `+budgetColumns,
		b.Limit.Cents, b.Enabled, string(b.Period), ms(b.UpdatedAt), b.AccountID, b.Category))
	if err != nil {
		return core.Budget{}, noRows("update budget", err)
	}
	return got, nil
}

func (s *Store) GetBudget(ctx context.Context, accountID, category string) (core.Budget, error) {
	b, err := scanBudget(s.queryRow(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE account_id = ? AND category = ?`, accountID, category))
	if err != nil {
		return core.Budget{}, noRows("get budget", err)
	}
	return b, nil
}

func (s *Store) ListBudgets(ctx context.Context, accountID string) ([]core.Budget, error) {
	rows, err := s.query(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE account_id = ? ORDER BY category`, accountID)
	if err != nil {
		return nil, core.StoreErr("list budgets", err)
	}
	defer rows.Close()
	out := make([]core.Budget, 0)
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, core.StoreErr("list budgets", err)
		}
		out = append(out, b)
	}
	return out, core.StoreErr("list budgets", rows.Err())
}

func (s *Store) DeleteBudget(ctx context.Context, accountID, category string) error {
	res, err := s.exec(ctx, `DELETE FROM budgets WHERE account_id = ? AND category = ?`, accountID, category)
	return affectedOrNotFound("delete budget", res, err)
}

func (s *Store) RecomputeBudgetSpent(ctx context.Context, accountID, category string, from, to core.Date) (core.Budget, error) {
	sum, args := expenseSum(accountID, category, from, to)
	args = append(args, accountID, category)
	b, err := scanBudget(s.queryRow(ctx,
		`UPDATE budgets SET spent_cents = (`+sum+`)
		WHERE account_id = ? AND category = ?
		RETURNING `+budgetColumns, args...))
	if err != nil {
		return core.Budget{}, noRows("recompute budget", err)
	}
	return b, nil
}

// Goals

const goalColumns = `id, account_id, title, target_cents, current_cents, due_on, category, status, created_at, updated_at`

func scanGoal(row scanner) (core.SavingsGoal, error) {
	var (
		g                     core.SavingsGoal
		target, current       int64
		due, category, status string
		created, updated      int64
	)
	if err := row.Scan(&g.ID, &g.AccountID, &g.Title, &target, &current, &due, &category, &status, &created, &updated); err != nil {
		return core.SavingsGoal{}, err
	}
	d, err := core.ParseDate(due)
	if err != nil {
		return core.SavingsGoal{}, fmt.Errorf("parse due_on %q: %w", due, err)
	}
	g.Target = core.Cents(target)
	g.Current = core.Cents(current)
	g.DueDate = d
	g.Category = core.GoalCategory(category)
	g.Status = core.GoalStatus(status)
	g.CreatedAt = fromMs(created)
	g.UpdatedAt = fromMs(updated)
	return g, nil
}

func (s *Store) CreateGoal(ctx context.Context, g core.SavingsGoal) error {
	_, err := s.exec(ctx,
		`INSERT INTO goals (`+goalColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.AccountID, g.Title, g.Target.Cents, g.Current.Cents, g.DueDate.String(),
		string(g.Category), string(g.Status), ms(g.CreatedAt), ms(g.UpdatedAt))
	if err != nil {
		return s.insertErr("create goal", err)
	}
	return nil
}

func (s *Store) GetGoal(ctx context.Context, accountID, id string) (core.SavingsGoal, error) {
	g, err := scanGoal(s.queryRow(ctx,
		`SELECT `+goalColumns+` FROM goals WHERE id = ? AND account_id = ?`, id, accountID))
	if err != nil {
		return core.SavingsGoal{}, noRows("get goal", err)
	}
	return g, nil
}

func (s *Store) ListGoals(ctx context.Context, accountID string) ([]core.SavingsGoal, error) {
	rows, err := s.query(ctx,
		`SELECT `+goalColumns+` FROM goals WHERE account_id = ? ORDER BY due_on ASC, created_at ASC`, accountID)
	if err != nil {
		return nil, core.StoreErr("list goals", err)
	}
	defer rows.Close()
	out := make([]core.SavingsGoal, 0)
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, core.StoreErr("list goals", err)
		}
		out = append(out, g)
	}
	return out, core.StoreErr("list goals", rows.Err())
}

func (s *Store) DeleteGoal(ctx context.Context, accountID, id string) error {
	res, err := s.exec(ctx, `DELETE FROM goals WHERE id = ? AND account_id = ?`, id, accountID)
	return affectedOrNotFound("delete goal", res, err)
}

func (s *Store) AdjustGoal(ctx context.Context, accountID, id string, delta core.Money, now time.Time) (core.SavingsGoal, error) {
	g, err := scanGoal(s.queryRow(ctx, `
		UPDATE goals SET current_cents = current_cents + ?, updated_at = ?
		WHERE id = ? AND account_id = ? AND status = 'in_progress' AND current_cents + ? >= 0
		RETURNING `+goalColumns,
		delta.Cents, ms(now), id, accountID, delta.Cents))
	if err == nil {
		return g, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return core.SavingsGoal{}, core.StoreErr("adjust goal", err)
	}

	// Nothing matched: report why.
	cur, err := s.GetGoal(ctx, accountID, id)
	if err != nil {
		return core.SavingsGoal{}, err
	}
	if cur.Status != core.GoalInProgress {
		return core.SavingsGoal{}, core.ErrGoalClosed
	}
	return core.SavingsGoal{}, core.Invalid("amount", "withdrawal exceeds saved amount")
}

func (s *Store) SetGoalStatus(ctx context.Context, accountID, id string, status core.GoalStatus, now time.Time) error {
	if status != core.GoalInProgress {
		res, err := s.exec(ctx, `
			UPDATE goals SET status = ?, updated_at = ?
			WHERE id = ? AND account_id = ? AND status = 'in_progress'`,
			string(status), ms(now), id, accountID)
		if err != nil {
			return core.StoreErr("set goal status", err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			return nil
		}
	}
	_, err := s.GetGoal(ctx, accountID, id)
	return err
}
