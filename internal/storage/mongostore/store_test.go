package mongostore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"fintrack/internal/core"
	"fintrack/internal/storage"
	"fintrack/internal/storage/storagetest"
)

func TestEntryFilter(t *testing.T) {
	tests := []struct {
		name   string
		filter core.EntryFilter
		want   bson.M
	}{
		{
			name:   "account only",
			filter: core.EntryFilter{},
			want:   bson.M{"account_id": "a1"},
		},
		{
			name:   "kind and category",
			filter: core.EntryFilter{Kind: core.KindExpense, Category: "food"},
			want:   bson.M{"account_id": "a1", "kind": "expense", "category": "food"},
		},
		{
			name: "date range",
			filter: core.EntryFilter{
				From: core.MustParseDate("2025-03-01"),
				To:   core.MustParseDate("2025-03-31"),
			},
			want: bson.M{"account_id": "a1", "occurred_on": bson.M{"$gte": "2025-03-01", "$lte": "2025-03-31"}},
		},
		{
			name:   "open ended",
			filter: core.EntryFilter{From: core.MustParseDate("2025-03-01")},
			want:   bson.M{"account_id": "a1", "occurred_on": bson.M{"$gte": "2025-03-01"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, entryFilter("a1", tt.filter))
		})
	}
}

func TestDocRoundTrip(t *testing.T) {
	g := core.SavingsGoal{
		ID:        "g1",
		AccountID: "a1",
		Title:     "Trip",
		Target:    core.Cents(10000),
		Current:   core.Cents(2500),
		Category:  core.GoalTravel,
		DueDate:   core.MustParseDate("2026-01-01"),
		Status:    core.GoalInProgress,
	}
	got, err := toGoalDoc(g).toCore()
	require.NoError(t, err)
	require.Equal(t, g.DueDate, got.DueDate)
	require.Equal(t, g.Current, got.Current)
	require.Equal(t, g.Status, got.Status)
}

// TestMongoStore runs the shared suite against a live server when
// FINTRACK_TEST_MONGO_URI is set.
func TestMongoStore(t *testing.T) {
	uri := os.Getenv("FINTRACK_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("FINTRACK_TEST_MONGO_URI not set")
	}
	storagetest.Run(t, func(t *testing.T) storage.Store { return openLive(t, uri) })
}

func openLive(t *testing.T, uri string) *Store {
	t.Helper()
	db := "fintrack_test_" + core.NewID()[:8]
	s, err := Open(context.Background(), uri, db)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.client.Database(db).Drop(context.Background())
		_ = s.Close()
	})
	return s
}

func TestSeqGuard(t *testing.T) {
	got := seqGuard(budgetKey("acc-1", "food"), fieldSpentSeq, 7)
	want := bson.M{
		"account_id": "acc-1",
		"category":   "food",
		"$or": bson.A{
			bson.M{fieldSpentSeq: bson.M{"$exists": false}},
			bson.M{fieldSpentSeq: bson.M{"$lte": int64(7)}},
		},
	}
	require.Equal(t, want, got)
}

// TestStaleRecomputeIsDiscarded replays a recompute that summed before a
// concurrent insert and wrote after a newer recompute.
func TestStaleRecomputeIsDiscarded(t *testing.T) {
	uri := os.Getenv("FINTRACK_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("FINTRACK_TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	s := openLive(t, uri)
	now := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.CreateAccount(ctx, core.Account{ID: "acc-1", Name: "A", Email: "a@example.com", CreatedAt: now}))
	require.NoError(t, s.CreateBudget(ctx, core.Budget{
		ID: "b-1", AccountID: "acc-1", Category: "food", Limit: core.Cents(10000),
		Enabled: true, Period: core.PeriodAll, CreatedAt: now, UpdatedAt: now,
	}))
	entry := func(id string) core.LedgerEntry {
		return core.LedgerEntry{
			ID: id, AccountID: "acc-1", Kind: core.KindExpense, Category: "food",
			Amount: core.Cents(1000), Date: core.DateOf(now), CreatedAt: now, UpdatedAt: now,
		}
	}

	require.NoError(t, s.CreateEntry(ctx, entry("e-1")))
	staleSeq, err := s.ledgerSeq(ctx, "acc-1")
	require.NoError(t, err)

	require.NoError(t, s.CreateEntry(ctx, entry("e-2")))
	b, err := s.RecomputeBudgetSpent(ctx, "acc-1", "food", core.Date{}, core.Date{})
	require.NoError(t, err)
	require.Equal(t, core.Cents(2000), b.Spent)

	b, err = s.storeBudgetSpent(ctx, "acc-1", "food", 1000, staleSeq)
	require.NoError(t, err)
	require.Equal(t, core.Cents(2000), b.Spent)

	balance, err := s.ReconcileBalance(ctx, "acc-1")
	require.NoError(t, err)
	require.Equal(t, core.Cents(-2000), balance)
	balance, err = s.storeBalance(ctx, "acc-1", -1000, staleSeq)
	require.NoError(t, err)
	require.Equal(t, core.Cents(-2000), balance)
}
