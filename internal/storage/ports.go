// Package storage defines the persistence ports of FinTrack. Implementations
// live in the memory, sqlstore and mongostore subpackages.
//
// Derived values (account balance, budget spent, goal progress) are only ever
// written through single recompute or conditional-increment operations so
// that concurrent writers cannot lose updates.
package storage

import (
	"context"
	"time"

	"fintrack/internal/core"
)

type (
	LedgerStore interface {
		CreateEntry(ctx context.Context, e core.LedgerEntry) error
		GetEntry(ctx context.Context, accountID, id string) (core.LedgerEntry, error)
		// ListEntries returns matching entries newest first.
		ListEntries(ctx context.Context, accountID string, f core.EntryFilter) ([]core.LedgerEntry, error)
		// UpdateEntry overwrites the mutable fields of an entry owned by
		// e.AccountID.
		UpdateEntry(ctx context.Context, e core.LedgerEntry) error
		// DeleteEntry removes an entry and returns what was removed.
		DeleteEntry(ctx context.Context, accountID, id string) (core.LedgerEntry, error)
		ListCategories(ctx context.Context, accountID string) ([]string, error)
		// SumExpenses totals expense entries; an empty category means all.
		SumExpenses(ctx context.Context, accountID, category string, from, to core.Date) (core.Money, error)
	}

	BudgetStore interface {
		// CreateBudget fails with core.ErrConflict when the category already
		// has a budget.
		CreateBudget(ctx context.Context, b core.Budget) error
		// UpdateBudget changes limit, enabled and period. Spent is untouched.
		UpdateBudget(ctx context.Context, b core.Budget) (core.Budget, error)
		GetBudget(ctx context.Context, accountID, category string) (core.Budget, error)
		ListBudgets(ctx context.Context, accountID string) ([]core.Budget, error)
		DeleteBudget(ctx context.Context, accountID, category string) error
		// RecomputeBudgetSpent stores the sum of expenses in the category and
		// window as the budget's spent amount in one statement.
		RecomputeBudgetSpent(ctx context.Context, accountID, category string, from, to core.Date) (core.Budget, error)
	}

	GoalStore interface {
		CreateGoal(ctx context.Context, g core.SavingsGoal) error
		GetGoal(ctx context.Context, accountID, id string) (core.SavingsGoal, error)
		// ListGoals orders goals by due date ascending.
		ListGoals(ctx context.Context, accountID string) ([]core.SavingsGoal, error)
		DeleteGoal(ctx context.Context, accountID, id string) error
		// AdjustGoal adds delta to current while the goal is in progress and
		// the result stays non-negative. Fails with core.ErrGoalClosed or a
		// validation error on the amount otherwise.
		AdjustGoal(ctx context.Context, accountID, id string, delta core.Money, now time.Time) (core.SavingsGoal, error)
		// SetGoalStatus moves an in-progress goal to status. Goals already in
		// a terminal status are left alone.
		SetGoalStatus(ctx context.Context, accountID, id string, status core.GoalStatus, now time.Time) error
	}

	AccountStore interface {
		// CreateAccount fails with core.ErrConflict on a taken email.
		CreateAccount(ctx context.Context, a core.Account) error
		GetAccount(ctx context.Context, id string) (core.Account, error)
		GetAccountByEmail(ctx context.Context, email string) (core.Account, error)
		// ReconcileBalance recomputes the cached balance from the ledger and
		// returns it.
		ReconcileBalance(ctx context.Context, accountID string) (core.Money, error)
		ListAccountIDs(ctx context.Context) ([]string, error)
	}

	// Store is a complete backend.
	Store interface {
		LedgerStore
		BudgetStore
		GoalStore
		AccountStore
		Ping(ctx context.Context) error
		Close() error
	}
)
