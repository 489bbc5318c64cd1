package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type GoalCategory string

const (
	GoalTravel    GoalCategory = "travel"
	GoalGadget    GoalCategory = "gadget"
	GoalEmergency GoalCategory = "emergency"
	GoalOther     GoalCategory = "other"
)

func (c GoalCategory) Valid() bool {
	switch c {
	case GoalTravel, GoalGadget, GoalEmergency, GoalOther:
		return true
	}
	return false
}

type GoalStatus string

const (
	GoalInProgress GoalStatus = "in_progress"
	GoalCompleted  GoalStatus = "completed"
	GoalFailed     GoalStatus = "failed"
)

// Terminal reports whether no further transition is possible.
func (s GoalStatus) Terminal() bool {
	return s == GoalCompleted || s == GoalFailed
}

type SavingsGoal struct {
	ID        string       `json:"id"`
	AccountID string       `json:"accountId"`
	Title     string       `json:"title"`
	Target    Money        `json:"target"`
	Current   Money        `json:"current"`
	DueDate   Date         `json:"dueDate"`
	Category  GoalCategory `json:"category"`
	Status    GoalStatus   `json:"status"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// DeriveGoalStatus computes a goal's status from its progress and the clock.
// Reaching the target wins over an elapsed due date.
func DeriveGoalStatus(current, target Money, due Date, now time.Time) GoalStatus {
	if target.IsPositive() && current.Cents >= target.Cents {
		return GoalCompleted
	}
	if !due.IsZero() && DateOf(now).After(due.Time) {
		return GoalFailed
	}
	return GoalInProgress
}

// WithDerivedStatus returns g with its status recomputed for now. A persisted
// terminal status is kept.
func (g SavingsGoal) WithDerivedStatus(now time.Time) SavingsGoal {
	if g.Status.Terminal() {
		return g
	}
	g.Status = DeriveGoalStatus(g.Current, g.Target, g.DueDate, now)
	return g
}

// Progress is current/target*100 capped at 100.
func (g SavingsGoal) Progress() decimal.Decimal {
	p := PercentOf(g.Current, g.Target)
	if p.GreaterThan(maxPercent) {
		return maxPercent
	}
	return p
}

// Remaining is target minus current, floored at zero.
func (g SavingsGoal) Remaining() Money {
	if g.Current.Cents >= g.Target.Cents {
		return Money{}
	}
	return g.Target.Sub(g.Current)
}

// Validate checks a goal about to be created against today's date.
func (g SavingsGoal) Validate(today Date) error {
	if strings.TrimSpace(g.Title) == "" {
		return Invalid("title", "is required")
	}
	if len(g.Title) > MaxTitleLen {
		return Invalid("title", "must be at most 120 characters")
	}
	if !g.Target.IsPositive() {
		return Invalid("target", "must be greater than zero")
	}
	if g.Current.IsNegative() {
		return Invalid("current", "must not be negative")
	}
	if !g.Category.Valid() {
		return Invalid("category", "must be one of travel, gadget, emergency, other")
	}
	if g.DueDate.IsZero() {
		return Invalid("dueDate", "is required")
	}
	if g.DueDate.Before(today.Time) {
		return Invalid("dueDate", "must not be in the past")
	}
	return nil
}
