package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// BudgetPeriod selects the window of entries that count toward Spent.
type BudgetPeriod string

const (
	PeriodAll     BudgetPeriod = "all"
	PeriodWeekly  BudgetPeriod = "weekly"
	PeriodMonthly BudgetPeriod = "monthly"
	PeriodYearly  BudgetPeriod = "yearly"
)

func (p BudgetPeriod) Valid() bool {
	switch p {
	case PeriodAll, PeriodWeekly, PeriodMonthly, PeriodYearly:
		return true
	}
	return false
}

type Budget struct {
	ID        string       `json:"id"`
	AccountID string       `json:"accountId"`
	Category  string       `json:"category"`
	Limit     Money        `json:"limit"`
	Spent     Money        `json:"spent"`
	Enabled   bool         `json:"enabled"`
	Period    BudgetPeriod `json:"period"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

var maxPercent = decimal.NewFromInt(100)

// PercentUsed is min(100, spent/limit*100), or 0 when there is no limit.
func (b Budget) PercentUsed() decimal.Decimal {
	p := PercentOf(b.Spent, b.Limit)
	if p.GreaterThan(maxPercent) {
		return maxPercent
	}
	return p
}

// Exceeded reports an enabled budget whose spent amount passed its limit.
func (b Budget) Exceeded() bool {
	return b.Enabled && b.Spent.Cents > b.Limit.Cents
}

// Remaining is limit minus spent, floored at zero.
func (b Budget) Remaining() Money {
	if b.Spent.Cents >= b.Limit.Cents {
		return Money{}
	}
	return b.Limit.Sub(b.Spent)
}

func (b Budget) Validate() error {
	if err := ValidateCategory(b.Category); err != nil {
		return err
	}
	if b.Limit.IsNegative() {
		return Invalid("limit", "must not be negative")
	}
	if !b.Period.Valid() {
		return Invalid("period", "must be one of all, weekly, monthly, yearly")
	}
	return nil
}
