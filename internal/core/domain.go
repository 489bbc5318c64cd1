package core

import (
	"slices"
	"strings"
	"time"
)

const (
	MaxCategoryLen    = 32
	MaxDescriptionLen = 200
	MaxTitleLen       = 120
)

type EntryKind string

const (
	KindIncome  EntryKind = "income"
	KindExpense EntryKind = "expense"
)

func (k EntryKind) Valid() bool {
	return k == KindIncome || k == KindExpense
}

// DefaultCategories seeds the category picker; categories stay free-form.
var DefaultCategories = []string{
	"salary", "freelance", "investment",
	"food", "transport", "entertainment", "bills", "shopping", "other",
}

type (
	Account struct {
		ID           string    `json:"id"`
		Name         string    `json:"name"`
		Email        string    `json:"email"`
		PasswordHash string    `json:"-"`
		Balance      Money     `json:"balance"`
		CreatedAt    time.Time `json:"createdAt"`
	}

	LedgerEntry struct {
		ID          string    `json:"id"`
		AccountID   string    `json:"accountId"`
		Kind        EntryKind `json:"kind"`
		Category    string    `json:"category"`
		Amount      Money     `json:"amount"`
		Description string    `json:"description"`
		Date        Date      `json:"date"`
		CreatedAt   time.Time `json:"createdAt"`
		UpdatedAt   time.Time `json:"updatedAt"`
	}

	// EntryPatch carries the fields of a partial entry update; nil means
	// unchanged.
	EntryPatch struct {
		Kind        *EntryKind `json:"kind"`
		Category    *string    `json:"category"`
		Amount      *Money     `json:"amount"`
		Description *string    `json:"description"`
		Date        *Date      `json:"date"`
	}

	// EntryFilter narrows a ledger listing. Zero values are unbounded.
	EntryFilter struct {
		Kind     EntryKind
		Category string
		From     Date
		To       Date
		Limit    int
	}
)

// NormalizeCategory trims and lower-cases a category name.
func NormalizeCategory(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ValidateCategory checks an already normalized category.
func ValidateCategory(c string) error {
	if c == "" {
		return Invalid("category", "is required")
	}
	if len(c) > MaxCategoryLen {
		return Invalid("category", "must be at most 32 characters")
	}
	return nil
}

// Signed returns the amount with the sign it contributes to the balance.
func (e LedgerEntry) Signed() Money {
	if e.Kind == KindExpense {
		return e.Amount.Neg()
	}
	return e.Amount
}

func (e LedgerEntry) Validate() error {
	if !e.Kind.Valid() {
		return Invalid("kind", "must be income or expense")
	}
	if err := ValidateCategory(e.Category); err != nil {
		return err
	}
	if !e.Amount.IsPositive() {
		return Invalid("amount", "must be greater than zero")
	}
	if len(e.Description) > MaxDescriptionLen {
		return Invalid("description", "must be at most 200 characters")
	}
	if e.Date.IsZero() {
		return Invalid("date", "is required")
	}
	return nil
}

// Apply returns e with the patch fields overlaid and the category normalized.
func (p EntryPatch) Apply(e LedgerEntry) LedgerEntry {
	if p.Kind != nil {
		e.Kind = *p.Kind
	}
	if p.Category != nil {
		e.Category = NormalizeCategory(*p.Category)
	}
	if p.Amount != nil {
		e.Amount = *p.Amount
	}
	if p.Description != nil {
		e.Description = strings.TrimSpace(*p.Description)
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
	return e
}

func (p EntryPatch) IsEmpty() bool {
	return p.Kind == nil && p.Category == nil && p.Amount == nil && p.Description == nil && p.Date == nil
}

// Matches reports whether e passes every bound set on the filter.
func (f EntryFilter) Matches(e LedgerEntry) bool {
	if f.Kind != "" && e.Kind != f.Kind {
		return false
	}
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if !f.From.IsZero() && e.Date.Before(f.From.Time) {
		return false
	}
	if !f.To.IsZero() && e.Date.After(f.To.Time) {
		return false
	}
	return true
}

func (f EntryFilter) Validate() error {
	if f.Kind != "" && !f.Kind.Valid() {
		return Invalid("kind", "must be income or expense")
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From.Time) {
		return Invalid("to", "must not be before from")
	}
	if f.Limit < 0 {
		return Invalid("limit", "must not be negative")
	}
	return nil
}

// SortEntries orders entries newest first: date descending, then creation
// time descending.
func SortEntries(entries []LedgerEntry) {
	slices.SortStableFunc(entries, func(a, b LedgerEntry) int {
		if c := b.Date.Compare(a.Date.Time); c != 0 {
			return c
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}
