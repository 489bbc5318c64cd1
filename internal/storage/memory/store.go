// Package memory is a mutex-guarded, process-local storage backend used for
// development and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

var _ storage.Store = (*Store)(nil)

type budgetKey struct{ account, category string }

type Store struct {
	mu       sync.Mutex
	accounts map[string]core.Account
	emails   map[string]string
	entries  map[string]core.LedgerEntry
	budgets  map[budgetKey]core.Budget
	goals    map[string]core.SavingsGoal
}

func New() *Store {
	return &Store{
		accounts: make(map[string]core.Account),
		emails:   make(map[string]string),
		entries:  make(map[string]core.LedgerEntry),
		budgets:  make(map[budgetKey]core.Budget),
		goals:    make(map[string]core.SavingsGoal),
	}
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

// Accounts

func (s *Store) CreateAccount(_ context.Context, a core.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(a.Email)
	if _, taken := s.emails[email]; taken {
		return core.ErrConflict
	}
	if _, taken := s.accounts[a.ID]; taken {
		return core.ErrConflict
	}
	s.accounts[a.ID] = a
	s.emails[email] = a.ID
	return nil
}

func (s *Store) GetAccount(_ context.Context, id string) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return core.Account{}, core.ErrNotFound
	}
	return a, nil
}

func (s *Store) GetAccountByEmail(_ context.Context, email string) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.emails[strings.ToLower(email)]
	if !ok {
		return core.Account{}, core.ErrNotFound
	}
	return s.accounts[id], nil
}

func (s *Store) ReconcileBalance(_ context.Context, accountID string) (core.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return core.Money{}, core.ErrNotFound
	}
	var balance core.Money
	for _, e := range s.entries {
		if e.AccountID == accountID {
			balance = balance.Add(e.Signed())
		}
	}
	a.Balance = balance
	s.accounts[accountID] = a
	return balance, nil
}

func (s *Store) ListAccountIDs(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.accounts))
	for id := range s.accounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Ledger

func (s *Store) CreateEntry(_ context.Context, e core.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[e.ID]; exists {
		return core.ErrConflict
	}
	s.entries[e.ID] = e
	return nil
}

func (s *Store) GetEntry(_ context.Context, accountID, id string) (core.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || e.AccountID != accountID {
		return core.LedgerEntry{}, core.ErrNotFound
	}
	return e, nil
}

func (s *Store) ListEntries(_ context.Context, accountID string, f core.EntryFilter) ([]core.LedgerEntry, error) {
	s.mu.Lock()
	out := make([]core.LedgerEntry, 0)
	for _, e := range s.entries {
		if e.AccountID == accountID && f.Matches(e) {
			out = append(out, e)
		}
	}
	s.mu.Unlock()

	core.SortEntries(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) UpdateEntry(_ context.Context, e core.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.entries[e.ID]
	if !ok || cur.AccountID != e.AccountID {
		return core.ErrNotFound
	}
	e.CreatedAt = cur.CreatedAt
	s.entries[e.ID] = e
	return nil
}

func (s *Store) DeleteEntry(_ context.Context, accountID, id string) (core.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || e.AccountID != accountID {
		return core.LedgerEntry{}, core.ErrNotFound
	}
	delete(s.entries, id)
	return e, nil
}

func (s *Store) ListCategories(_ context.Context, accountID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]struct{}{}
	for _, e := range s.entries {
		if e.AccountID == accountID {
			seen[e.Category] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) SumExpenses(_ context.Context, accountID, category string, from, to core.Date) (core.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sumExpensesLocked(accountID, category, from, to), nil
}

func (s *Store) sumExpensesLocked(accountID, category string, from, to core.Date) core.Money {
	f := core.EntryFilter{Kind: core.KindExpense, Category: category, From: from, To: to}
	var total core.Money
	for _, e := range s.entries {
		if e.AccountID == accountID && f.Matches(e) {
			total = total.Add(e.Amount)
		}
	}
	return total
}

// Budgets

func (s *Store) CreateBudget(_ context.Context, b core.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := budgetKey{b.AccountID, b.Category}
	if _, exists := s.budgets[k]; exists {
		return core.ErrConflict
	}
	s.budgets[k] = b
	return nil
}

func (s *Store) UpdateBudget(_ context.Context, b core.Budget) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := budgetKey{b.AccountID, b.Category}
	cur, ok := s.budgets[k]
	if !ok {
		return core.Budget{}, core.ErrNotFound
	}
	cur.Limit = b.Limit
	cur.Enabled = b.Enabled
	cur.Period = b.Period
	cur.UpdatedAt = b.UpdatedAt
	s.budgets[k] = cur
	return cur, nil
}

func (s *Store) GetBudget(_ context.Context, accountID, category string) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[budgetKey{accountID, category}]
	if !ok {
		return core.Budget{}, core.ErrNotFound
	}
	return b, nil
}

func (s *Store) ListBudgets(_ context.Context, accountID string) ([]core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Budget, 0)
	for k, b := range s.budgets {
		if k.account == accountID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

func (s *Store) DeleteBudget(_ context.Context, accountID, category string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := budgetKey{accountID, category}
	if _, ok := s.budgets[k]; !ok {
		return core.ErrNotFound
	}
	delete(s.budgets, k)
	return nil
}

func (s *Store) RecomputeBudgetSpent(_ context.Context, accountID, category string, from, to core.Date) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := budgetKey{accountID, category}
	b, ok := s.budgets[k]
	if !ok {
		return core.Budget{}, core.ErrNotFound
	}
	b.Spent = s.sumExpensesLocked(accountID, category, from, to)
	s.budgets[k] = b
	return b, nil
}

// Goals

func (s *Store) CreateGoal(_ context.Context, g core.SavingsGoal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.goals[g.ID]; exists {
		return core.ErrConflict
	}
	s.goals[g.ID] = g
	return nil
}

func (s *Store) GetGoal(_ context.Context, accountID, id string) (core.SavingsGoal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[id]
	if !ok || g.AccountID != accountID {
		return core.SavingsGoal{}, core.ErrNotFound
	}
	return g, nil
}

func (s *Store) ListGoals(_ context.Context, accountID string) ([]core.SavingsGoal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.SavingsGoal, 0)
	for _, g := range s.goals {
		if g.AccountID == accountID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate.Time) {
			return out[i].DueDate.Before(out[j].DueDate.Time)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) DeleteGoal(_ context.Context, accountID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[id]
	if !ok || g.AccountID != accountID {
		return core.ErrNotFound
	}
	delete(s.goals, id)
	return nil
}

func (s *Store) AdjustGoal(_ context.Context, accountID, id string, delta core.Money, now time.Time) (core.SavingsGoal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[id]
	if !ok || g.AccountID != accountID {
		return core.SavingsGoal{}, core.ErrNotFound
	}
	if g.Status != core.GoalInProgress {
		return core.SavingsGoal{}, core.ErrGoalClosed
	}
	next := g.Current.Add(delta)
	if next.IsNegative() {
		return core.SavingsGoal{}, core.Invalid("amount", "withdrawal exceeds saved amount")
	}
	g.Current = next
	g.UpdatedAt = now
	s.goals[id] = g
	return g, nil
}

func (s *Store) SetGoalStatus(_ context.Context, accountID, id string, status core.GoalStatus, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[id]
	if !ok || g.AccountID != accountID {
		return core.ErrNotFound
	}
	if g.Status != core.GoalInProgress || status == core.GoalInProgress {
		return nil
	}
	g.Status = status
	g.UpdatedAt = now
	s.goals[id] = g
	return nil
}
