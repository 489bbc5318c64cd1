package core

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLedgerEntryValidate(t *testing.T) {
	good := LedgerEntry{
		Kind:     KindExpense,
		Category: "food",
		Amount:   Cents(5000),
		Date:     NewDate(2025, 1, 1),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name  string
		mut   func(*LedgerEntry)
		field string
	}{
		{"zero amount", func(e *LedgerEntry) { e.Amount = Cents(0) }, "amount"},
		{"negative amount", func(e *LedgerEntry) { e.Amount = Cents(-1) }, "amount"},
		{"bad kind", func(e *LedgerEntry) { e.Kind = "transfer" }, "kind"},
		{"missing category", func(e *LedgerEntry) { e.Category = "" }, "category"},
		{"long category", func(e *LedgerEntry) { e.Category = strings.Repeat("x", 33) }, "category"},
		{"long description", func(e *LedgerEntry) { e.Description = strings.Repeat("x", 201) }, "description"},
		{"zero date", func(e *LedgerEntry) { e.Date = Date{} }, "date"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := good
			tc.mut(&e)
			err := e.Validate()
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != tc.field {
				t.Fatalf("field = %q, want %q", ve.Field, tc.field)
			}
		})
	}
}

func TestEntryPatchApply(t *testing.T) {
	e := LedgerEntry{Kind: KindExpense, Category: "food", Amount: Cents(100), Date: NewDate(2025, 1, 1)}
	cat := "  Transport "
	amt := Cents(250)
	got := EntryPatch{Category: &cat, Amount: &amt}.Apply(e)
	if got.Category != "transport" || got.Amount.Cents != 250 || got.Kind != KindExpense {
		t.Fatalf("unexpected patched entry: %+v", got)
	}
	if !(EntryPatch{}).IsEmpty() {
		t.Fatalf("empty patch must report empty")
	}
}

func TestEntryFilterMatches(t *testing.T) {
	e := LedgerEntry{Kind: KindExpense, Category: "food", Date: NewDate(2025, 3, 15)}
	cases := []struct {
		f    EntryFilter
		want bool
	}{
		{EntryFilter{}, true},
		{EntryFilter{Kind: KindIncome}, false},
		{EntryFilter{Category: "food"}, true},
		{EntryFilter{Category: "bills"}, false},
		{EntryFilter{From: NewDate(2025, 3, 15), To: NewDate(2025, 3, 15)}, true},
		{EntryFilter{From: NewDate(2025, 3, 16)}, false},
		{EntryFilter{To: NewDate(2025, 3, 14)}, false},
	}
	for i, tc := range cases {
		if got := tc.f.Matches(e); got != tc.want {
			t.Fatalf("case %d: Matches = %v, want %v", i, got, tc.want)
		}
	}
}

func TestSortEntries(t *testing.T) {
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	entries := []LedgerEntry{
		{ID: "a", Date: NewDate(2025, 1, 1), CreatedAt: base},
		{ID: "b", Date: NewDate(2025, 1, 3), CreatedAt: base},
		{ID: "c", Date: NewDate(2025, 1, 1), CreatedAt: base.Add(time.Minute)},
	}
	SortEntries(entries)
	got := entries[0].ID + entries[1].ID + entries[2].ID
	if got != "bca" {
		t.Fatalf("order = %s, want bca", got)
	}
}

func TestBudgetPercentUsed(t *testing.T) {
	cases := []struct {
		spent, limit int64
		want         string
	}{
		{5000, 10000, "50"},
		{0, 10000, "0"},
		{15000, 10000, "100"},
		{500, 0, "0"},
	}
	for _, tc := range cases {
		b := Budget{Spent: Cents(tc.spent), Limit: Cents(tc.limit)}
		if got := b.PercentUsed().String(); got != tc.want {
			t.Fatalf("PercentUsed(%d/%d) = %s, want %s", tc.spent, tc.limit, got, tc.want)
		}
	}
}

func TestBudgetExceeded(t *testing.T) {
	b := Budget{Limit: Cents(100), Spent: Cents(101), Enabled: true}
	if !b.Exceeded() {
		t.Fatalf("expected exceeded")
	}
	b.Enabled = false
	if b.Exceeded() {
		t.Fatalf("disabled budget never exceeds")
	}
}

func TestDeriveGoalStatus(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name    string
		current int64
		due     Date
		want    GoalStatus
	}{
		{"reached", 100000, NewDate(2025, 12, 31), GoalCompleted},
		{"reached after due", 100000, NewDate(2025, 1, 1), GoalCompleted},
		{"overdue", 20000, NewDate(2025, 6, 9), GoalFailed},
		{"due today", 20000, NewDate(2025, 6, 10), GoalInProgress},
		{"open", 20000, NewDate(2025, 12, 31), GoalInProgress},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DeriveGoalStatus(Cents(tc.current), Cents(100000), tc.due, now)
			if got != tc.want {
				t.Fatalf("status = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestGoalStatusIsMonotone(t *testing.T) {
	now := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	g := SavingsGoal{Target: Cents(1000), Current: Cents(0), DueDate: NewDate(2025, 1, 1), Status: GoalFailed}
	g.Current = Cents(1000)
	if got := g.WithDerivedStatus(now).Status; got != GoalFailed {
		t.Fatalf("terminal status changed to %s", got)
	}
}

func TestSavingsGoalValidate(t *testing.T) {
	today := NewDate(2025, 6, 10)
	good := SavingsGoal{Title: "Trip", Target: Cents(1000), Category: GoalTravel, DueDate: today}
	if err := good.Validate(today); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bad := []SavingsGoal{
		{Title: " ", Target: Cents(1000), Category: GoalTravel, DueDate: today},
		{Title: "Trip", Target: Cents(0), Category: GoalTravel, DueDate: today},
		{Title: "Trip", Target: Cents(1000), Category: "car", DueDate: today},
		{Title: "Trip", Target: Cents(1000), Category: GoalTravel},
		{Title: "Trip", Target: Cents(1000), Category: GoalTravel, DueDate: today.AddDays(-1)},
	}
	for i, g := range bad {
		if err := g.Validate(today); !IsValidation(err) {
			t.Fatalf("case %d expected validation error, got %v", i, err)
		}
	}
}

func TestSummarize(t *testing.T) {
	entries := []LedgerEntry{
		{Kind: KindIncome, Category: "salary", Amount: Cents(300000)},
		{Kind: KindExpense, Category: "food", Amount: Cents(5000)},
		{Kind: KindExpense, Category: "food", Amount: Cents(2500)},
		{Kind: KindExpense, Category: "bills", Amount: Cents(10000)},
	}
	s := Summarize(entries)
	if s.TotalIncome.Cents != 300000 || s.TotalExpense.Cents != 17500 || s.Balance.Cents != 282500 {
		t.Fatalf("unexpected totals: %+v", s)
	}
	if s.ByCategory["food"].Cents != 7500 || len(s.ByCategory) != 2 {
		t.Fatalf("unexpected breakdown: %v", s.ByCategory)
	}
	if _, ok := s.ByCategory["salary"]; ok {
		t.Fatalf("income must not appear in the expense breakdown")
	}
	ranked := s.Ranked()
	if ranked[0].Name != "bills" || ranked[1].Name != "food" {
		t.Fatalf("unexpected ranking: %v", ranked)
	}
}

func TestNewTrend(t *testing.T) {
	month := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	tr := NewTrend(month, Cents(11500), Cents(10000))
	if tr.ChangePercent != 15 || !tr.HighSpending {
		t.Fatalf("unexpected trend: %+v", tr)
	}
	tr = NewTrend(month, Cents(10500), Cents(10000))
	if tr.HighSpending {
		t.Fatalf("5%% growth must not be flagged: %+v", tr)
	}
	tr = NewTrend(month, Cents(0), Cents(0))
	if tr.ChangePercent != 0 || tr.HighSpending {
		t.Fatalf("empty months must be flat: %+v", tr)
	}
}

func TestMonthBounds(t *testing.T) {
	first, last := MonthBounds(time.Date(2024, 2, 14, 0, 0, 0, 0, time.UTC))
	if first.String() != "2024-02-01" || last.String() != "2024-02-29" {
		t.Fatalf("bounds = %s..%s", first, last)
	}
}
