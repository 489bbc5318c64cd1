// Package sheets mirrors ledger entries into an external spreadsheet.
package sheets

import (
	"context"

	"fintrack/internal/core"
)

// EntryMirror keeps one spreadsheet row per ledger entry, keyed by entry id.
type EntryMirror interface {
	// Upsert writes e, replacing the row with the same id if present.
	Upsert(ctx context.Context, e core.LedgerEntry) (rowRef string, err error)
	// Remove clears the row of the entry. Unknown ids are not an error.
	Remove(ctx context.Context, entryID string) error
}

// Header is the first row of a mirror sheet.
var Header = []any{"ID", "Account", "Date", "Kind", "Category", "Amount", "Description", "Updated"}

// Row renders e in Header's column order.
func Row(e core.LedgerEntry) []any {
	return []any{
		e.ID,
		e.AccountID,
		e.Date.String(),
		string(e.Kind),
		e.Category,
		e.Amount.String(),
		e.Description,
		e.UpdatedAt.UTC().Format("2006-01-02 15:04:05"),
	}
}
