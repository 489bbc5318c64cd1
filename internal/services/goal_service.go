package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

type GoalInput struct {
	Title    string
	Target   core.Money
	// Current is an optional amount already saved.
	Current  core.Money
	Category core.GoalCategory
	DueDate  core.Date
}

// GoalService tracks savings goals. Status is derived from progress and the
// clock on every read; the stored status only ever leaves in_progress.
type GoalService struct {
	store storage.GoalStore
	now   func() time.Time
}

func NewGoalService(store storage.GoalStore, opts ...Option) *GoalService {
	o := applyOptions(opts)
	return &GoalService{store: store, now: o.now}
}

func (s *GoalService) Create(ctx context.Context, accountID string, in GoalInput) (core.SavingsGoal, error) {
	now := s.now().UTC()
	g := core.SavingsGoal{
		ID:        core.NewID(),
		AccountID: accountID,
		Title:     strings.TrimSpace(in.Title),
		Target:    in.Target,
		Current:   in.Current,
		Category:  in.Category,
		DueDate:   in.DueDate,
		Status:    core.GoalInProgress,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := g.Validate(core.DateOf(now)); err != nil {
		return core.SavingsGoal{}, err
	}
	g = g.WithDerivedStatus(now)
	if err := s.store.CreateGoal(ctx, g); err != nil {
		return core.SavingsGoal{}, fmt.Errorf("create goal: %w", err)
	}
	slog.InfoContext(ctx, "Goal created", "account_id", accountID, "goal_id", g.ID, "target", g.Target.String())
	return g, nil
}

// Deposit adds amount to the goal; negative amounts withdraw. Goals whose
// status is terminal reject further movements with core.ErrGoalClosed.
func (s *GoalService) Deposit(ctx context.Context, accountID, goalID string, amount core.Money) (core.SavingsGoal, error) {
	if amount.IsZero() {
		return core.SavingsGoal{}, core.Invalid("amount", "must not be zero")
	}

	g, err := s.Get(ctx, accountID, goalID)
	if err != nil {
		return core.SavingsGoal{}, err
	}
	if g.Status.Terminal() {
		return core.SavingsGoal{}, core.ErrGoalClosed
	}

	now := s.now().UTC()
	g, err = s.store.AdjustGoal(ctx, accountID, goalID, amount, now)
	if err != nil {
		return core.SavingsGoal{}, fmt.Errorf("adjust goal: %w", err)
	}
	slog.InfoContext(ctx, "Goal adjusted",
		"account_id", accountID,
		"goal_id", goalID,
		"amount", amount.String(),
		"current", g.Current.String())
	return s.settle(ctx, g, now), nil
}

// Get returns the goal with its status derived for now, persisting a newly
// reached terminal status.
func (s *GoalService) Get(ctx context.Context, accountID, goalID string) (core.SavingsGoal, error) {
	g, err := s.store.GetGoal(ctx, accountID, goalID)
	if err != nil {
		return core.SavingsGoal{}, fmt.Errorf("get goal: %w", err)
	}
	return s.settle(ctx, g, s.now().UTC()), nil
}

// List returns goals by due date ascending.
func (s *GoalService) List(ctx context.Context, accountID string) ([]core.SavingsGoal, error) {
	list, err := s.store.ListGoals(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	now := s.now().UTC()
	for i := range list {
		list[i] = s.settle(ctx, list[i], now)
	}
	return list, nil
}

func (s *GoalService) Remove(ctx context.Context, accountID, goalID string) error {
	if err := s.store.DeleteGoal(ctx, accountID, goalID); err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	return nil
}

// SettleAll persists the derived status of every goal of the account and
// returns how many changed.
func (s *GoalService) SettleAll(ctx context.Context, accountID string) (int, error) {
	list, err := s.store.ListGoals(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("list goals: %w", err)
	}
	now := s.now().UTC()
	changed := 0
	for _, g := range list {
		if s.settle(ctx, g, now).Status != g.Status {
			changed++
		}
	}
	return changed, nil
}

func (s *GoalService) settle(ctx context.Context, g core.SavingsGoal, now time.Time) core.SavingsGoal {
	derived := g.WithDerivedStatus(now)
	if derived.Status == g.Status {
		return g
	}
	if err := s.store.SetGoalStatus(ctx, g.AccountID, g.ID, derived.Status, now); err != nil {
		slog.ErrorContext(ctx, "Failed to persist goal status", "goal_id", g.ID, "status", derived.Status, "error", err)
	} else {
		slog.InfoContext(ctx, "Goal closed", "goal_id", g.ID, "status", derived.Status)
	}
	return derived
}
