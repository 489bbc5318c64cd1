package core

import (
	"sort"
	"time"
)

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string `json:"name"`
	Amount Money  `json:"amount"`
}

// Summary aggregates the entries of one account over a window.
type Summary struct {
	From             *Date            `json:"from,omitempty"`
	To               *Date            `json:"to,omitempty"`
	TotalIncome      Money            `json:"totalIncome"`
	TotalExpense     Money            `json:"totalExpense"`
	Balance          Money            `json:"balance"`
	ByCategory       map[string]Money `json:"byCategory"`
	IncomeByCategory map[string]Money `json:"incomeByCategory"`
	EntryCount       int              `json:"entryCount"`
}

// Summarize totals entries. ByCategory only carries expenses.
func Summarize(entries []LedgerEntry) Summary {
	s := Summary{
		ByCategory:       make(map[string]Money),
		IncomeByCategory: make(map[string]Money),
	}
	for _, e := range entries {
		switch e.Kind {
		case KindIncome:
			s.TotalIncome = s.TotalIncome.Add(e.Amount)
			s.IncomeByCategory[e.Category] = s.IncomeByCategory[e.Category].Add(e.Amount)
		case KindExpense:
			s.TotalExpense = s.TotalExpense.Add(e.Amount)
			s.ByCategory[e.Category] = s.ByCategory[e.Category].Add(e.Amount)
		}
		s.EntryCount++
	}
	s.Balance = s.TotalIncome.Sub(s.TotalExpense)
	return s
}

// Ranked returns ByCategory sorted by amount descending, then name.
func (s Summary) Ranked() []CategoryAmount {
	out := make([]CategoryAmount, 0, len(s.ByCategory))
	for name, amt := range s.ByCategory {
		out = append(out, CategoryAmount{Name: name, Amount: amt})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount.Cents != out[j].Amount.Cents {
			return out[i].Amount.Cents > out[j].Amount.Cents
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// HighSpendingThreshold is the month-over-month growth, in percent, above
// which spending is flagged.
const HighSpendingThreshold = 10

// Trend compares this month's expenses with the previous month's.
type Trend struct {
	Month                string  `json:"month"`
	CurrentMonthExpense  Money   `json:"currentMonthExpense"`
	PreviousMonthExpense Money   `json:"previousMonthExpense"`
	ChangePercent        float64 `json:"changePercent"`
	HighSpending         bool    `json:"highSpending"`
	// PredictedSavings is all-time income minus expense.
	PredictedSavings     Money   `json:"predictedSavings"`
}

// MonthBounds returns the first and last day of the month containing t.
func MonthBounds(t time.Time) (Date, Date) {
	first := NewDate(t.Year(), int(t.Month()), 1)
	last := Date{Time: first.AddDate(0, 1, -1)}
	return first, last
}

// NewTrend builds a Trend from the two monthly expense totals.
func NewTrend(month time.Time, current, previous Money) Trend {
	tr := Trend{
		Month:                month.Format("2006-01"),
		CurrentMonthExpense:  current,
		PreviousMonthExpense: previous,
	}
	switch {
	case previous.IsPositive():
		tr.ChangePercent = PercentOf(current.Sub(previous), previous).InexactFloat64()
	case current.IsPositive():
		tr.ChangePercent = 100
	}
	tr.HighSpending = tr.ChangePercent > HighSpendingThreshold
	return tr
}
