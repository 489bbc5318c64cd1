package services

import (
	"testing"

	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
)

func TestInsightsService_Summarize(t *testing.T) {
	e := newEnv(t)
	e.income(t, "salary", 250000, "2025-03-01")
	e.income(t, "freelance", 50000, "2025-02-10")
	e.expense(t, "food", 4000, "2025-03-02")
	e.expense(t, "food", 6000, "2025-03-09")
	e.expense(t, "bills", 90000, "2025-03-05")

	sum, err := e.insights.Summarize(e.ctx, e.account, core.Date{}, core.Date{})
	require.NoError(t, err)
	require.Equal(t, core.Cents(300000), sum.TotalIncome)
	require.Equal(t, core.Cents(100000), sum.TotalExpense)
	require.Equal(t, core.Cents(200000), sum.Balance)
	require.Equal(t, core.Cents(10000), sum.ByCategory["food"])
	require.Equal(t, core.Cents(50000), sum.IncomeByCategory["freelance"])
	require.Equal(t, 5, sum.EntryCount)
	require.Nil(t, sum.From)

	march, err := e.insights.Summarize(e.ctx, e.account, core.MustParseDate("2025-03-01"), core.MustParseDate("2025-03-31"))
	require.NoError(t, err)
	require.Equal(t, core.Cents(250000), march.TotalIncome)
	require.Equal(t, "2025-03-01", march.From.String())

	_, err = e.insights.Summarize(e.ctx, e.account, core.MustParseDate("2025-03-31"), core.MustParseDate("2025-03-01"))
	requireField(t, err, "to")
}

func TestInsightsService_CacheInvalidatedByLedger(t *testing.T) {
	e := newEnv(t)
	e.expense(t, "food", 1000, "2025-03-02")

	first, err := e.insights.Summarize(e.ctx, e.account, core.Date{}, core.Date{})
	require.NoError(t, err)
	require.Equal(t, core.Cents(1000), first.TotalExpense)

	// Writes that bypass the service are not seen until invalidation.
	require.NoError(t, e.store.CreateEntry(e.ctx, core.LedgerEntry{
		ID: "raw", AccountID: e.account, Kind: core.KindExpense, Category: "food",
		Amount: core.Cents(500), Date: core.MustParseDate("2025-03-03"), CreatedAt: testNow, UpdatedAt: testNow,
	}))
	cached, err := e.insights.Summarize(e.ctx, e.account, core.Date{}, core.Date{})
	require.NoError(t, err)
	require.Equal(t, core.Cents(1000), cached.TotalExpense)

	e.expense(t, "food", 2000, "2025-03-04")
	fresh, err := e.insights.Summarize(e.ctx, e.account, core.Date{}, core.Date{})
	require.NoError(t, err)
	require.Equal(t, core.Cents(3500), fresh.TotalExpense)
}

func TestInsightsService_Trend(t *testing.T) {
	tests := []struct {
		name          string
		previous      int64
		current       int64
		changePercent float64
		high          bool
	}{
		{"growth above threshold", 10000, 12000, 20, true},
		{"growth at threshold", 10000, 11000, 10, false},
		{"decrease", 10000, 5000, -50, false},
		{"no history", 0, 3000, 100, true},
		{"nothing at all", 0, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			if tt.previous > 0 {
				e.expense(t, "food", tt.previous, "2025-02-14")
			}
			if tt.current > 0 {
				e.expense(t, "food", tt.current, "2025-03-14")
			}
			e.income(t, "salary", 999999, "2025-03-01")

			tr, err := e.insights.Trend(e.ctx, e.account)
			require.NoError(t, err)
			require.Equal(t, "2025-03", tr.Month)
			require.Equal(t, core.Cents(tt.current), tr.CurrentMonthExpense)
			require.Equal(t, core.Cents(tt.previous), tr.PreviousMonthExpense)
			require.Equal(t, core.Cents(999999-tt.previous-tt.current), tr.PredictedSavings)
			require.InDelta(t, tt.changePercent, tr.ChangePercent, 0.001)
			require.Equal(t, tt.high, tr.HighSpending)
		})
	}
}
