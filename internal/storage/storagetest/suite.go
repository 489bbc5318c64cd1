// Package storagetest holds the behaviour every storage.Store backend must
// share. Backend packages call Run from their own tests.
package storagetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// Opener returns a fresh, empty store for one subtest.
type Opener func(t *testing.T) storage.Store

var epoch = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func Run(t *testing.T, open Opener) {
	t.Run("accounts", func(t *testing.T) { testAccounts(t, open(t)) })
	t.Run("entries", func(t *testing.T) { testEntries(t, open(t)) })
	t.Run("balance", func(t *testing.T) { testBalance(t, open(t)) })
	t.Run("budgets", func(t *testing.T) { testBudgets(t, open(t)) })
	t.Run("goals", func(t *testing.T) { testGoals(t, open(t)) })
	t.Run("concurrent spending", func(t *testing.T) { testConcurrentSpending(t, open(t)) })
}

func account(t *testing.T, s storage.Store, id string) core.Account {
	t.Helper()
	a := core.Account{
		ID:           id,
		Name:         "User " + id,
		Email:        id + "@example.com",
		PasswordHash: "hash",
		CreatedAt:    epoch,
	}
	require.NoError(t, s.CreateAccount(context.Background(), a))
	return a
}

func entry(accountID, id string, kind core.EntryKind, category string, cents int64, date core.Date, created time.Time) core.LedgerEntry {
	return core.LedgerEntry{
		ID:          id,
		AccountID:   accountID,
		Kind:        kind,
		Category:    category,
		Amount:      core.Cents(cents),
		Description: "entry " + id,
		Date:        date,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

func testAccounts(t *testing.T, s storage.Store) {
	ctx := context.Background()
	a := account(t, s, "acc-1")

	got, err := s.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, a.Email, got.Email)
	require.Equal(t, "hash", got.PasswordHash)
	require.True(t, got.Balance.IsZero())

	byEmail, err := s.GetAccountByEmail(ctx, a.Email)
	require.NoError(t, err)
	require.Equal(t, a.ID, byEmail.ID)

	dup := a
	dup.ID = "acc-2"
	require.ErrorIs(t, s.CreateAccount(ctx, dup), core.ErrConflict)

	_, err = s.GetAccount(ctx, "missing")
	require.ErrorIs(t, err, core.ErrNotFound)
	_, err = s.GetAccountByEmail(ctx, "missing@example.com")
	require.ErrorIs(t, err, core.ErrNotFound)

	account(t, s, "acc-0")
	ids, err := s.ListAccountIDs(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"acc-0", "acc-1"}, ids)
}

func testEntries(t *testing.T, s storage.Store) {
	ctx := context.Background()
	a := account(t, s, "owner")
	other := account(t, s, "other")

	require.NoError(t, s.CreateEntry(ctx, entry(a.ID, "e1", core.KindExpense, "food", 5000, core.NewDate(2025, 3, 1), epoch)))
	require.NoError(t, s.CreateEntry(ctx, entry(a.ID, "e2", core.KindIncome, "salary", 300000, core.NewDate(2025, 3, 5), epoch)))
	require.NoError(t, s.CreateEntry(ctx, entry(a.ID, "e3", core.KindExpense, "food", 1500, core.NewDate(2025, 3, 1), epoch.Add(time.Minute))))
	require.NoError(t, s.CreateEntry(ctx, entry(other.ID, "x1", core.KindExpense, "food", 999, core.NewDate(2025, 3, 1), epoch)))

	all, err := s.ListEntries(ctx, a.ID, core.EntryFilter{})
	require.NoError(t, err)
	require.Equal(t, []string{"e2", "e3", "e1"}, ids(all))

	food, err := s.ListEntries(ctx, a.ID, core.EntryFilter{Kind: core.KindExpense, Category: "food"})
	require.NoError(t, err)
	require.Equal(t, []string{"e3", "e1"}, ids(food))

	window, err := s.ListEntries(ctx, a.ID, core.EntryFilter{From: core.NewDate(2025, 3, 2), To: core.NewDate(2025, 3, 31)})
	require.NoError(t, err)
	require.Equal(t, []string{"e2"}, ids(window))

	limited, err := s.ListEntries(ctx, a.ID, core.EntryFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)

	got, err := s.GetEntry(ctx, a.ID, "e1")
	require.NoError(t, err)
	require.Equal(t, int64(5000), got.Amount.Cents)
	require.Equal(t, "2025-03-01", got.Date.String())
	require.Equal(t, "entry e1", got.Description)

	_, err = s.GetEntry(ctx, other.ID, "e1")
	require.ErrorIs(t, err, core.ErrNotFound)

	got.Category = "groceries"
	got.Amount = core.Cents(6000)
	got.UpdatedAt = epoch.Add(time.Hour)
	require.NoError(t, s.UpdateEntry(ctx, got))
	updated, err := s.GetEntry(ctx, a.ID, "e1")
	require.NoError(t, err)
	require.Equal(t, "groceries", updated.Category)
	require.Equal(t, int64(6000), updated.Amount.Cents)

	stolen := updated
	stolen.AccountID = other.ID
	require.ErrorIs(t, s.UpdateEntry(ctx, stolen), core.ErrNotFound)

	cats, err := s.ListCategories(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"food", "groceries", "salary"}, cats)

	sum, err := s.SumExpenses(ctx, a.ID, "", core.Date{}, core.Date{})
	require.NoError(t, err)
	require.Equal(t, int64(7500), sum.Cents)

	_, err = s.DeleteEntry(ctx, other.ID, "e1")
	require.ErrorIs(t, err, core.ErrNotFound)
	removed, err := s.DeleteEntry(ctx, a.ID, "e1")
	require.NoError(t, err)
	require.Equal(t, "groceries", removed.Category)
	_, err = s.GetEntry(ctx, a.ID, "e1")
	require.ErrorIs(t, err, core.ErrNotFound)
}

func testBalance(t *testing.T, s storage.Store) {
	ctx := context.Background()
	a := account(t, s, "bal")

	require.NoError(t, s.CreateEntry(ctx, entry(a.ID, "i1", core.KindIncome, "salary", 100000, core.NewDate(2025, 3, 1), epoch)))
	require.NoError(t, s.CreateEntry(ctx, entry(a.ID, "x1", core.KindExpense, "rent", 40000, core.NewDate(2025, 3, 2), epoch)))

	balance, err := s.ReconcileBalance(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, int64(60000), balance.Cents)

	got, err := s.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, int64(60000), got.Balance.Cents)

	_, err = s.DeleteEntry(ctx, a.ID, "x1")
	require.NoError(t, err)
	balance, err = s.ReconcileBalance(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, int64(100000), balance.Cents)

	_, err = s.ReconcileBalance(ctx, "missing")
	require.ErrorIs(t, err, core.ErrNotFound)
}

func testBudgets(t *testing.T, s storage.Store) {
	ctx := context.Background()
	a := account(t, s, "bud")

	b := core.Budget{
		ID: "b1", AccountID: a.ID, Category: "food",
		Limit: core.Cents(10000), Enabled: true, Period: core.PeriodAll,
		CreatedAt: epoch, UpdatedAt: epoch,
	}
	require.NoError(t, s.CreateBudget(ctx, b))
	dup := b
	dup.ID = "b2"
	require.ErrorIs(t, s.CreateBudget(ctx, dup), core.ErrConflict)

	require.NoError(t, s.CreateEntry(ctx, entry(a.ID, "f1", core.KindExpense, "food", 5000, core.NewDate(2025, 2, 27), epoch)))
	require.NoError(t, s.CreateEntry(ctx, entry(a.ID, "f2", core.KindExpense, "food", 2000, core.NewDate(2025, 3, 3), epoch)))
	require.NoError(t, s.CreateEntry(ctx, entry(a.ID, "f3", core.KindIncome, "food", 9999, core.NewDate(2025, 3, 3), epoch)))

	got, err := s.RecomputeBudgetSpent(ctx, a.ID, "food", core.Date{}, core.Date{})
	require.NoError(t, err)
	require.Equal(t, int64(7000), got.Spent.Cents)

	got, err = s.RecomputeBudgetSpent(ctx, a.ID, "food", core.NewDate(2025, 3, 1), core.NewDate(2025, 3, 31))
	require.NoError(t, err)
	require.Equal(t, int64(2000), got.Spent.Cents)

	b.Limit = core.Cents(20000)
	b.Enabled = false
	b.Period = core.PeriodMonthly
	b.Spent = core.Cents(123456)
	b.UpdatedAt = epoch.Add(time.Hour)
	updated, err := s.UpdateBudget(ctx, b)
	require.NoError(t, err)
	require.Equal(t, int64(20000), updated.Limit.Cents)
	require.False(t, updated.Enabled)
	require.Equal(t, core.PeriodMonthly, updated.Period)
	require.Equal(t, int64(2000), updated.Spent.Cents, "update must not touch spent")

	require.NoError(t, s.CreateBudget(ctx, core.Budget{
		ID: "b0", AccountID: a.ID, Category: "bills", Limit: core.Cents(5000),
		Enabled: true, Period: core.PeriodAll, CreatedAt: epoch, UpdatedAt: epoch,
	}))
	list, err := s.ListBudgets(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "bills", list[0].Category)
	require.Equal(t, "food", list[1].Category)

	_, err = s.RecomputeBudgetSpent(ctx, a.ID, "travel", core.Date{}, core.Date{})
	require.ErrorIs(t, err, core.ErrNotFound)
	_, err = s.UpdateBudget(ctx, core.Budget{AccountID: a.ID, Category: "travel", Period: core.PeriodAll})
	require.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, s.DeleteBudget(ctx, a.ID, "bills"))
	require.ErrorIs(t, s.DeleteBudget(ctx, a.ID, "bills"), core.ErrNotFound)
	_, err = s.GetBudget(ctx, a.ID, "bills")
	require.ErrorIs(t, err, core.ErrNotFound)
}

func testGoals(t *testing.T, s storage.Store) {
	ctx := context.Background()
	a := account(t, s, "goal")
	other := account(t, s, "goal-other")

	mk := func(id string, due core.Date) core.SavingsGoal {
		return core.SavingsGoal{
			ID: id, AccountID: a.ID, Title: "Goal " + id,
			Target: core.Cents(100000), DueDate: due,
			Category: core.GoalTravel, Status: core.GoalInProgress,
			CreatedAt: epoch, UpdatedAt: epoch,
		}
	}
	require.NoError(t, s.CreateGoal(ctx, mk("g-late", core.NewDate(2026, 1, 1))))
	require.NoError(t, s.CreateGoal(ctx, mk("g-soon", core.NewDate(2025, 6, 1))))

	list, err := s.ListGoals(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, "g-soon", list[0].ID)
	require.Equal(t, "g-late", list[1].ID)

	g, err := s.AdjustGoal(ctx, a.ID, "g-soon", core.Cents(20000), epoch)
	require.NoError(t, err)
	require.Equal(t, int64(20000), g.Current.Cents)

	_, err = s.AdjustGoal(ctx, a.ID, "g-soon", core.Cents(-30000), epoch)
	require.True(t, core.IsValidation(err), "got %v", err)

	g, err = s.AdjustGoal(ctx, a.ID, "g-soon", core.Cents(-5000), epoch)
	require.NoError(t, err)
	require.Equal(t, int64(15000), g.Current.Cents)

	_, err = s.AdjustGoal(ctx, other.ID, "g-soon", core.Cents(100), epoch)
	require.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, s.SetGoalStatus(ctx, a.ID, "g-soon", core.GoalFailed, epoch))
	require.NoError(t, s.SetGoalStatus(ctx, a.ID, "g-soon", core.GoalCompleted, epoch))
	g, err = s.GetGoal(ctx, a.ID, "g-soon")
	require.NoError(t, err)
	require.Equal(t, core.GoalFailed, g.Status, "terminal status must not change")

	_, err = s.AdjustGoal(ctx, a.ID, "g-soon", core.Cents(100), epoch)
	require.ErrorIs(t, err, core.ErrGoalClosed)

	require.ErrorIs(t, s.DeleteGoal(ctx, other.ID, "g-late"), core.ErrNotFound)
	require.NoError(t, s.DeleteGoal(ctx, a.ID, "g-late"))
	_, err = s.GetGoal(ctx, a.ID, "g-late")
	require.ErrorIs(t, err, core.ErrNotFound)
}

func testConcurrentSpending(t *testing.T, s storage.Store) {
	ctx := context.Background()
	a := account(t, s, "race")
	require.NoError(t, s.CreateBudget(ctx, core.Budget{
		ID: "race-b", AccountID: a.ID, Category: "food", Limit: core.Cents(10000),
		Enabled: true, Period: core.PeriodAll, CreatedAt: epoch, UpdatedAt: epoch,
	}))

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e := entry(a.ID, fmt.Sprintf("race-%d", i), core.KindExpense, "food", 1000, core.NewDate(2025, 3, 1), epoch)
			if err := s.CreateEntry(ctx, e); err != nil {
				errs <- err
				return
			}
			if _, err := s.RecomputeBudgetSpent(ctx, a.ID, "food", core.Date{}, core.Date{}); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	b, err := s.GetBudget(ctx, a.ID, "food")
	require.NoError(t, err)
	require.Equal(t, int64(2000), b.Spent.Cents)
}

func ids(entries []core.LedgerEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}
