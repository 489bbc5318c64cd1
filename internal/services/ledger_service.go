package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/events"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

// EntryInput is a new ledger entry as submitted by a client. A zero Date
// means today.
type EntryInput struct {
	Kind        core.EntryKind
	Category    string
	Amount      core.Money
	Description string
	Date        core.Date
}

// LedgerService writes ledger entries and keeps the values derived from them
// current: account balance, budget spent and cached insights. Entry writes
// are never undone when derived maintenance fails; the reconciler heals that.
type LedgerService struct {
	entries   storage.LedgerStore
	accounts  storage.AccountStore
	budgets   *BudgetService
	insights  *InsightsService
	publisher events.Publisher
	now       func() time.Time
}

func NewLedgerService(store storage.Store, budgets *BudgetService, insights *InsightsService, publisher events.Publisher, opts ...Option) *LedgerService {
	o := applyOptions(opts)
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &LedgerService{
		entries:   store,
		accounts:  store,
		budgets:   budgets,
		insights:  insights,
		publisher: publisher,
		now:       o.now,
	}
}

func (s *LedgerService) Record(ctx context.Context, accountID string, in EntryInput) (core.LedgerEntry, error) {
	now := s.now().UTC()
	e := core.LedgerEntry{
		ID:          core.NewID(),
		AccountID:   accountID,
		Kind:        in.Kind,
		Category:    core.NormalizeCategory(in.Category),
		Amount:      in.Amount,
		Description: strings.TrimSpace(in.Description),
		Date:        in.Date,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if e.Date.IsZero() {
		e.Date = core.DateOf(now)
	}
	if err := e.Validate(); err != nil {
		return core.LedgerEntry{}, err
	}

	if err := s.entries.CreateEntry(ctx, e); err != nil {
		return core.LedgerEntry{}, fmt.Errorf("save entry: %w", err)
	}
	slog.InfoContext(ctx, "Entry recorded",
		log.NewFields().
			WithAccount(accountID).
			WithEntry(e.ID, string(e.Kind), e.Category, e.Amount.Cents).
			WithOperation(log.OpCreate).
			ToSlice()...)

	s.afterChange(ctx, events.EntryRecorded, e, e.Category)
	return e, nil
}

func (s *LedgerService) List(ctx context.Context, accountID string, f core.EntryFilter) ([]core.LedgerEntry, error) {
	f.Category = core.NormalizeCategory(f.Category)
	if err := f.Validate(); err != nil {
		return nil, err
	}
	list, err := s.entries.ListEntries(ctx, accountID, f)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return list, nil
}

func (s *LedgerService) Get(ctx context.Context, accountID, entryID string) (core.LedgerEntry, error) {
	e, err := s.entries.GetEntry(ctx, accountID, entryID)
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("get entry: %w", err)
	}
	return e, nil
}

// Update validates the patched entry as a whole before writing it. Budgets of
// both the old and the new category are recomputed.
func (s *LedgerService) Update(ctx context.Context, accountID, entryID string, patch core.EntryPatch) (core.LedgerEntry, error) {
	old, err := s.entries.GetEntry(ctx, accountID, entryID)
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("get entry: %w", err)
	}
	if patch.IsEmpty() {
		return old, nil
	}

	e := patch.Apply(old)
	if err := e.Validate(); err != nil {
		return core.LedgerEntry{}, err
	}
	e.UpdatedAt = s.now().UTC()

	if err := s.entries.UpdateEntry(ctx, e); err != nil {
		return core.LedgerEntry{}, fmt.Errorf("update entry: %w", err)
	}
	slog.InfoContext(ctx, "Entry updated", "account_id", accountID, "entry_id", e.ID)

	s.afterChange(ctx, events.EntryUpdated, e, old.Category, e.Category)
	return e, nil
}

// Remove deletes the entry and reverses its effect on balance and budgets.
func (s *LedgerService) Remove(ctx context.Context, accountID, entryID string) error {
	e, err := s.entries.DeleteEntry(ctx, accountID, entryID)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	slog.InfoContext(ctx, "Entry removed", "account_id", accountID, "entry_id", e.ID)

	s.afterChange(ctx, events.EntryRemoved, e, e.Category)
	return nil
}

// Categories returns the default categories followed by any others the
// account has used.
func (s *LedgerService) Categories(ctx context.Context, accountID string) ([]string, error) {
	used, err := s.entries.ListCategories(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	out := slices.Clone(core.DefaultCategories)
	for _, c := range used {
		if !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *LedgerService) afterChange(ctx context.Context, t events.Type, e core.LedgerEntry, categories ...string) {
	categories = slices.Compact(slices.Sorted(slices.Values(categories)))

	if _, err := s.accounts.ReconcileBalance(ctx, e.AccountID); err != nil {
		slog.ErrorContext(ctx, "Failed to reconcile balance", "account_id", e.AccountID, "error", err)
	}
	if s.budgets != nil {
		for _, c := range categories {
			if err := s.budgets.Refresh(ctx, e.AccountID, c); err != nil {
				slog.ErrorContext(ctx, "Failed to recompute budget", "account_id", e.AccountID, "category", c, "error", err)
			}
		}
	}
	if s.insights != nil {
		s.insights.Invalidate(e.AccountID)
	}

	ev := events.New(t, e.AccountID, e.ID, e.Amount.Cents, categories...)
	if err := s.publisher.Publish(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event", "type", t, "entry_id", e.ID, "error", err)
	}
}
