// Package worker runs the background side of FinTrack: it consumes ledger
// events and periodically reconciles derived values.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"fintrack/internal/core"
	"fintrack/internal/events"
	"fintrack/internal/services"
	"fintrack/internal/sheets"
	"fintrack/internal/storage"
)

// EventWorker handles ledger events. Every handler reloads current state
// from the store, so redelivered or reordered events are harmless.
type EventWorker struct {
	entries storage.LedgerStore
	budgets *services.BudgetService
	mirror  sheets.EntryMirror
}

// NewEventWorker builds a worker. A nil mirror disables spreadsheet sync.
func NewEventWorker(entries storage.LedgerStore, budgets *services.BudgetService, mirror sheets.EntryMirror) *EventWorker {
	return &EventWorker{entries: entries, budgets: budgets, mirror: mirror}
}

func (w *EventWorker) Handle(ctx context.Context, e events.LedgerEvent) error {
	slog.DebugContext(ctx, "Processing ledger event", "type", e.Type, "account_id", e.AccountID, "entry_id", e.EntryID)

	switch e.Type {
	case events.EntryRecorded, events.EntryUpdated, events.EntryRemoved:
		if err := w.refreshBudgets(ctx, e); err != nil {
			return err
		}
		return w.syncEntry(ctx, e)
	case events.BudgetExceeded:
		slog.WarnContext(ctx, "Budget exceeded",
			"account_id", e.AccountID,
			"categories", e.Categories,
			"spent_cents", e.AmountCents)
		return nil
	default:
		slog.WarnContext(ctx, "Ignoring unknown event type", "type", e.Type)
		return nil
	}
}

func (w *EventWorker) refreshBudgets(ctx context.Context, e events.LedgerEvent) error {
	if w.budgets == nil {
		return nil
	}
	var errs []error
	for _, c := range e.Categories {
		if err := w.budgets.Refresh(ctx, e.AccountID, c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *EventWorker) syncEntry(ctx context.Context, e events.LedgerEvent) error {
	if w.mirror == nil || e.EntryID == "" {
		return nil
	}

	entry, err := w.entries.GetEntry(ctx, e.AccountID, e.EntryID)
	if errors.Is(err, core.ErrNotFound) {
		if err := w.mirror.Remove(ctx, e.EntryID); err != nil {
			return fmt.Errorf("remove mirrored entry: %w", err)
		}
		slog.InfoContext(ctx, "Removed mirrored entry", "entry_id", e.EntryID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load entry: %w", err)
	}

	ref, err := w.mirror.Upsert(ctx, entry)
	if err != nil {
		return fmt.Errorf("mirror entry: %w", err)
	}
	slog.InfoContext(ctx, "Mirrored entry", "entry_id", entry.ID, "ref", ref)
	return nil
}
