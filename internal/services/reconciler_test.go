package services

import (
	"testing"

	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
)

func TestReconciler_HealsDrift(t *testing.T) {
	e := newEnv(t)
	_, err := e.budgets.Upsert(e.ctx, e.account, "food", BudgetInput{Limit: core.Cents(10000), Enabled: true})
	require.NoError(t, err)
	e.expense(t, "food", 1000, "2025-03-02")

	// Simulate a write whose derived maintenance never ran.
	require.NoError(t, e.store.CreateEntry(e.ctx, core.LedgerEntry{
		ID: "raw", AccountID: e.account, Kind: core.KindExpense, Category: "food",
		Amount: core.Cents(500), Date: core.MustParseDate("2025-03-03"), CreatedAt: testNow, UpdatedAt: testNow,
	}))
	require.Equal(t, core.Cents(-1000), e.balance(t))

	g := e.goal(t, 50000, "2025-03-20")
	*e.clock = testNow.AddDate(0, 1, 0)

	report, err := e.reconciler.ReconcileAll(e.ctx)
	require.NoError(t, err)
	require.Equal(t, ReconcileReport{Accounts: 1, Drifted: 1, GoalsSettled: 1}, report)

	require.Equal(t, core.Cents(-1500), e.balance(t))
	b, _ := e.budgets.Get(e.ctx, e.account, "food")
	require.Equal(t, core.Cents(1500), b.Spent)
	stored, err := e.store.GetGoal(e.ctx, e.account, g.ID)
	require.NoError(t, err)
	require.Equal(t, core.GoalFailed, stored.Status)

	again, err := e.reconciler.ReconcileAll(e.ctx)
	require.NoError(t, err)
	require.Equal(t, ReconcileReport{Accounts: 1}, again)
}

func TestReconciler_ManyAccounts(t *testing.T) {
	e := newEnv(t)
	for _, email := range []string{"b@example.com", "c@example.com", "d@example.com"} {
		_, err := e.accounts.Register(e.ctx, "User", email, "password123")
		require.NoError(t, err)
	}
	report, err := e.reconciler.ReconcileAll(e.ctx)
	require.NoError(t, err)
	require.Equal(t, 4, report.Accounts)
	require.Zero(t, report.Failed)
}
