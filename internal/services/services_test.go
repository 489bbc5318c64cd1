package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"fintrack/internal/auth"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/events"
	"fintrack/internal/storage/memory"
)

var testNow = time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)

type env struct {
	ctx        context.Context
	store      *memory.Store
	events     *events.Recorder
	clock      *time.Time
	ledger     *LedgerService
	budgets    *BudgetService
	goals      *GoalService
	insights   *InsightsService
	accounts   *AccountService
	reconciler *Reconciler
	account    string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	now := testNow
	clock := WithClock(func() time.Time { return now })

	store := memory.New()
	rec := &events.Recorder{}
	budgets := NewBudgetService(store, rec, clock)
	insights := NewInsightsService(store, cache.NewLRUCache[core.Summary](16, time.Minute), clock)
	goals := NewGoalService(store, clock)
	e := &env{
		ctx:        context.Background(),
		store:      store,
		events:     rec,
		clock:      &now,
		budgets:    budgets,
		insights:   insights,
		goals:      goals,
		ledger:     NewLedgerService(store, budgets, insights, rec, clock),
		accounts:   NewAccountService(store, auth.NewPasswords(bcrypt.MinCost), auth.NewTokens("test-secret", time.Hour), clock),
		reconciler: NewReconciler(store, budgets, goals, insights, 4),
	}

	a, err := e.accounts.Register(e.ctx, "Ada", "ada@example.com", "password123")
	require.NoError(t, err)
	e.account = a.ID
	return e
}

func (e *env) expense(t *testing.T, category string, cents int64, date string) core.LedgerEntry {
	t.Helper()
	entry, err := e.ledger.Record(e.ctx, e.account, EntryInput{
		Kind:     core.KindExpense,
		Category: category,
		Amount:   core.Cents(cents),
		Date:     core.MustParseDate(date),
	})
	require.NoError(t, err)
	return entry
}

func (e *env) income(t *testing.T, category string, cents int64, date string) core.LedgerEntry {
	t.Helper()
	entry, err := e.ledger.Record(e.ctx, e.account, EntryInput{
		Kind:     core.KindIncome,
		Category: category,
		Amount:   core.Cents(cents),
		Date:     core.MustParseDate(date),
	})
	require.NoError(t, err)
	return entry
}

func (e *env) balance(t *testing.T) core.Money {
	t.Helper()
	a, err := e.accounts.Me(e.ctx, e.account)
	require.NoError(t, err)
	return a.Balance
}

func requireField(t *testing.T, err error, field string) {
	t.Helper()
	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, field, ve.Field)
}
