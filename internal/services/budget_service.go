package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/events"
	"fintrack/internal/storage"
)

// BudgetInput is the client-settable part of a budget.
type BudgetInput struct {
	Limit   core.Money
	Enabled bool
	Period  core.BudgetPeriod
}

type BudgetService struct {
	store     storage.BudgetStore
	publisher events.Publisher
	now       func() time.Time
}

func NewBudgetService(store storage.BudgetStore, publisher events.Publisher, opts ...Option) *BudgetService {
	o := applyOptions(opts)
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &BudgetService{store: store, publisher: publisher, now: o.now}
}

// Upsert creates the budget when absent, spent recomputed immediately, and
// otherwise updates only limit, enabled and period.
func (s *BudgetService) Upsert(ctx context.Context, accountID, category string, in BudgetInput) (core.Budget, error) {
	if in.Period == "" {
		in.Period = core.PeriodAll
	}
	now := s.now().UTC()
	b := core.Budget{
		ID:        core.NewID(),
		AccountID: accountID,
		Category:  core.NormalizeCategory(category),
		Limit:     in.Limit,
		Enabled:   in.Enabled,
		Period:    in.Period,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}

	err := s.store.CreateBudget(ctx, b)
	switch {
	case err == nil:
		slog.InfoContext(ctx, "Budget created", "account_id", accountID, "category", b.Category, "limit", b.Limit.String())
		return s.Recompute(ctx, accountID, b.Category)
	case errors.Is(err, core.ErrConflict):
		// Lost the create race or the budget already exists.
	default:
		return core.Budget{}, fmt.Errorf("create budget: %w", err)
	}

	prev, err := s.store.GetBudget(ctx, accountID, b.Category)
	if err != nil {
		return core.Budget{}, fmt.Errorf("load budget: %w", err)
	}
	updated, err := s.store.UpdateBudget(ctx, b)
	if err != nil {
		return core.Budget{}, fmt.Errorf("update budget: %w", err)
	}
	if prev.Period != updated.Period {
		return s.Recompute(ctx, accountID, b.Category)
	}
	s.checkExceeded(ctx, updated)
	return updated, nil
}

// Get returns the budget or a zero, disabled budget when none exists.
func (s *BudgetService) Get(ctx context.Context, accountID, category string) (core.Budget, error) {
	category = core.NormalizeCategory(category)
	b, err := s.store.GetBudget(ctx, accountID, category)
	if errors.Is(err, core.ErrNotFound) {
		return core.Budget{AccountID: accountID, Category: category, Period: core.PeriodAll}, nil
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget: %w", err)
	}
	return s.current(ctx, b)
}

// List returns the account's budgets keyed by category.
func (s *BudgetService) List(ctx context.Context, accountID string) (map[string]core.Budget, error) {
	list, err := s.store.ListBudgets(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	out := make(map[string]core.Budget, len(list))
	for _, b := range list {
		if b, err = s.current(ctx, b); err != nil {
			return nil, err
		}
		out[b.Category] = b
	}
	return out, nil
}

// current returns b with spent recomputed for today's window. Stored spent of
// a windowed budget goes stale once the window rolls over without a write.
func (s *BudgetService) current(ctx context.Context, b core.Budget) (core.Budget, error) {
	if b.Period == core.PeriodAll || b.Period == "" {
		return b, nil
	}
	fresh, err := s.recompute(ctx, b.AccountID, b.Category, false)
	if err != nil {
		return core.Budget{}, err
	}
	return fresh, nil
}

func (s *BudgetService) Remove(ctx context.Context, accountID, category string) error {
	if err := s.store.DeleteBudget(ctx, accountID, core.NormalizeCategory(category)); err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	return nil
}

// RecomputeSpent refreshes the stored spent amount and returns it.
func (s *BudgetService) RecomputeSpent(ctx context.Context, accountID, category string) (core.Money, error) {
	b, err := s.Recompute(ctx, accountID, category)
	if err != nil {
		return core.Money{}, err
	}
	return b.Spent, nil
}

// Recompute sums the category's expenses within the budget's tracking
// window and stores the total atomically.
func (s *BudgetService) Recompute(ctx context.Context, accountID, category string) (core.Budget, error) {
	return s.recompute(ctx, accountID, category, true)
}

// recompute stores the window sum; notify publishes budget.exceeded when the
// result is over the limit.
func (s *BudgetService) recompute(ctx context.Context, accountID, category string, notify bool) (core.Budget, error) {
	category = core.NormalizeCategory(category)
	current, err := s.store.GetBudget(ctx, accountID, category)
	if err != nil {
		return core.Budget{}, fmt.Errorf("recompute budget: %w", err)
	}
	w, err := GetPeriodWindow(current.Period)
	if err != nil {
		return core.Budget{}, err
	}
	from, to := w.Window(s.now())

	b, err := s.store.RecomputeBudgetSpent(ctx, accountID, category, from, to)
	if err != nil {
		return core.Budget{}, fmt.Errorf("recompute budget: %w", err)
	}
	if notify {
		s.checkExceeded(ctx, b)
	}
	return b, nil
}

// Refresh recomputes a category's budget if one exists.
func (s *BudgetService) Refresh(ctx context.Context, accountID, category string) error {
	_, err := s.Recompute(ctx, accountID, category)
	if errors.Is(err, core.ErrNotFound) {
		return nil
	}
	return err
}

// RefreshAll recomputes every budget of the account.
func (s *BudgetService) RefreshAll(ctx context.Context, accountID string) error {
	list, err := s.store.ListBudgets(ctx, accountID)
	if err != nil {
		return fmt.Errorf("list budgets: %w", err)
	}
	var errs []error
	for _, b := range list {
		if err := s.Refresh(ctx, accountID, b.Category); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *BudgetService) checkExceeded(ctx context.Context, b core.Budget) {
	if !b.Exceeded() {
		return
	}
	slog.WarnContext(ctx, "Budget exceeded",
		"account_id", b.AccountID,
		"category", b.Category,
		"limit", b.Limit.String(),
		"spent", b.Spent.String())
	e := events.New(events.BudgetExceeded, b.AccountID, "", b.Spent.Cents, b.Category)
	if err := s.publisher.Publish(ctx, e); err != nil {
		slog.ErrorContext(ctx, "Failed to publish budget event", "category", b.Category, "error", err)
	}
}
