package services

import (
	"context"
	"fmt"
	"time"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// InsightsService derives read-only aggregates from the ledger. Results are
// memoised per account and dropped on every ledger mutation of that account.
type InsightsService struct {
	store   storage.LedgerStore
	summary cache.Cache[core.Summary]
	now     func() time.Time
}

func NewInsightsService(store storage.LedgerStore, summaries cache.Cache[core.Summary], opts ...Option) *InsightsService {
	o := applyOptions(opts)
	return &InsightsService{store: store, summary: summaries, now: o.now}
}

func summaryKey(accountID string, from, to core.Date) string {
	return accountID + "|summary|" + from.String() + "|" + to.String()
}

// Summarize totals the account's entries between from and to inclusive.
// Zero bounds are open.
func (s *InsightsService) Summarize(ctx context.Context, accountID string, from, to core.Date) (core.Summary, error) {
	f := core.EntryFilter{From: from, To: to}
	if err := f.Validate(); err != nil {
		return core.Summary{}, err
	}

	key := summaryKey(accountID, from, to)
	if s.summary != nil {
		if sum, ok := s.summary.Get(key); ok {
			return sum, nil
		}
	}

	entries, err := s.store.ListEntries(ctx, accountID, f)
	if err != nil {
		return core.Summary{}, fmt.Errorf("summarize: %w", err)
	}
	sum := core.Summarize(entries)
	if !from.IsZero() {
		sum.From = &from
	}
	if !to.IsZero() {
		sum.To = &to
	}

	if s.summary != nil {
		s.summary.Set(key, sum)
	}
	return sum, nil
}

// Trend compares the current calendar month's expenses with the previous
// month's.
func (s *InsightsService) Trend(ctx context.Context, accountID string) (core.Trend, error) {
	now := s.now().UTC()
	curFrom, curTo := core.MonthBounds(now)
	prevFrom, prevTo := core.MonthBounds(curFrom.AddDate(0, -1, 0))

	current, err := s.store.SumExpenses(ctx, accountID, "", curFrom, curTo)
	if err != nil {
		return core.Trend{}, fmt.Errorf("trend: %w", err)
	}
	previous, err := s.store.SumExpenses(ctx, accountID, "", prevFrom, prevTo)
	if err != nil {
		return core.Trend{}, fmt.Errorf("trend: %w", err)
	}
	all, err := s.Summarize(ctx, accountID, core.Date{}, core.Date{})
	if err != nil {
		return core.Trend{}, err
	}
	tr := core.NewTrend(now, current, previous)
	tr.PredictedSavings = all.Balance
	return tr, nil
}

// Invalidate drops every memoised aggregate of the account.
func (s *InsightsService) Invalidate(accountID string) {
	if s.summary != nil {
		s.summary.DeletePrefix(accountID + "|")
	}
}
