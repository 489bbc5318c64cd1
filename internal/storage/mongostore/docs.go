package mongostore

import (
	"slices"
	"time"

	"fintrack/internal/core"
)

type accountDoc struct {
	ID           string `bson:"_id"`
	Name         string `bson:"name"`
	Email        string `bson:"email"`
	PasswordHash string `bson:"password_hash"`
	BalanceCents int64  `bson:"balance_cents"`
	CreatedAt    int64  `bson:"created_at"`
}

func toAccountDoc(a core.Account) accountDoc {
	return accountDoc{
		ID:           a.ID,
		Name:         a.Name,
		Email:        a.Email,
		PasswordHash: a.PasswordHash,
		BalanceCents: a.Balance.Cents,
		CreatedAt:    a.CreatedAt.UnixMilli(),
	}
}

func (d accountDoc) toCore() core.Account {
	return core.Account{
		ID:           d.ID,
		Name:         d.Name,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Balance:      core.Cents(d.BalanceCents),
		CreatedAt:    fromMs(d.CreatedAt),
	}
}

type entryDoc struct {
	ID          string `bson:"_id"`
	AccountID   string `bson:"account_id"`
	Kind        string `bson:"kind"`
	Category    string `bson:"category"`
	AmountCents int64  `bson:"amount_cents"`
	Description string `bson:"description"`
	OccurredOn  string `bson:"occurred_on"`
	CreatedAt   int64  `bson:"created_at"`
	UpdatedAt   int64  `bson:"updated_at"`
}

func toEntryDoc(e core.LedgerEntry) entryDoc {
	return entryDoc{
		ID:          e.ID,
		AccountID:   e.AccountID,
		Kind:        string(e.Kind),
		Category:    e.Category,
		AmountCents: e.Amount.Cents,
		Description: e.Description,
		OccurredOn:  e.Date.String(),
		CreatedAt:   e.CreatedAt.UnixMilli(),
		UpdatedAt:   e.UpdatedAt.UnixMilli(),
	}
}

func (d entryDoc) toCore() (core.LedgerEntry, error) {
	date, err := core.ParseDate(d.OccurredOn)
	if err != nil {
		return core.LedgerEntry{}, err
	}
	return core.LedgerEntry{
		ID:          d.ID,
		AccountID:   d.AccountID,
		Kind:        core.EntryKind(d.Kind),
		Category:    d.Category,
		Amount:      core.Cents(d.AmountCents),
		Description: d.Description,
		Date:        date,
		CreatedAt:   fromMs(d.CreatedAt),
		UpdatedAt:   fromMs(d.UpdatedAt),
	}, nil
}

type budgetDoc struct {
	ID         string `bson:"_id"`
	AccountID  string `bson:"account_id"`
	Category   string `bson:"category"`
	LimitCents int64  `bson:"limit_cents"`
	SpentCents int64  `bson:"spent_cents"`
	Enabled    bool   `bson:"enabled"`
	Period     string `bson:"period"`
	CreatedAt  int64  `bson:"created_at"`
	UpdatedAt  int64  `bson:"updated_at"`
}

func toBudgetDoc(b core.Budget) budgetDoc {
	return budgetDoc{
		ID:         b.ID,
		AccountID:  b.AccountID,
		Category:   b.Category,
		LimitCents: b.Limit.Cents,
		SpentCents: b.Spent.Cents,
		Enabled:    b.Enabled,
		Period:     string(b.Period),
		CreatedAt:  b.CreatedAt.UnixMilli(),
		UpdatedAt:  b.UpdatedAt.UnixMilli(),
	}
}

func (d budgetDoc) toCore() core.Budget {
	return core.Budget{
		ID:        d.ID,
		AccountID: d.AccountID,
		Category:  d.Category,
		Limit:     core.Cents(d.LimitCents),
		Spent:     core.Cents(d.SpentCents),
		Enabled:   d.Enabled,
		Period:    core.BudgetPeriod(d.Period),
		CreatedAt: fromMs(d.CreatedAt),
		UpdatedAt: fromMs(d.UpdatedAt),
	}
}

type goalDoc struct {
	ID           string `bson:"_id"`
	AccountID    string `bson:"account_id"`
	Title        string `bson:"title"`
	TargetCents  int64  `bson:"target_cents"`
	CurrentCents int64  `bson:"current_cents"`
	Category     string `bson:"category"`
	DueOn        string `bson:"due_on"`
	Status       string `bson:"status"`
	CreatedAt    int64  `bson:"created_at"`
	UpdatedAt    int64  `bson:"updated_at"`
}

func toGoalDoc(g core.SavingsGoal) goalDoc {
	return goalDoc{
		ID:           g.ID,
		AccountID:    g.AccountID,
		Title:        g.Title,
		TargetCents:  g.Target.Cents,
		CurrentCents: g.Current.Cents,
		Category:     string(g.Category),
		DueOn:        g.DueDate.String(),
		Status:       string(g.Status),
		CreatedAt:    g.CreatedAt.UnixMilli(),
		UpdatedAt:    g.UpdatedAt.UnixMilli(),
	}
}

func (d goalDoc) toCore() (core.SavingsGoal, error) {
	due, err := core.ParseDate(d.DueOn)
	if err != nil {
		return core.SavingsGoal{}, err
	}
	return core.SavingsGoal{
		ID:        d.ID,
		AccountID: d.AccountID,
		Title:     d.Title,
		Target:    core.Cents(d.TargetCents),
		Current:   core.Cents(d.CurrentCents),
		Category:  core.GoalCategory(d.Category),
		DueDate:   due,
		Status:    core.GoalStatus(d.Status),
		CreatedAt: fromMs(d.CreatedAt),
		UpdatedAt: fromMs(d.UpdatedAt),
	}, nil
}

func fromMs(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func sortStrings(s []string) { slices.Sort(s) }
