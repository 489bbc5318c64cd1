package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/storage"
)

// ReconcileReport summarises one reconciliation pass.
type ReconcileReport struct {
	Accounts     int
	Drifted      int
	GoalsSettled int
	Failed       int
}

// Reconciler recomputes every derived value from the ledger: account
// balances, budget spent and goal status.
type Reconciler struct {
	store       storage.AccountStore
	budgets     *BudgetService
	goals       *GoalService
	insights    *InsightsService
	concurrency int
}

func NewReconciler(store storage.AccountStore, budgets *BudgetService, goals *GoalService, insights *InsightsService, concurrency int) *Reconciler {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Reconciler{store: store, budgets: budgets, goals: goals, insights: insights, concurrency: concurrency}
}

// ReconcileAccount reports whether the cached balance had drifted.
func (r *Reconciler) ReconcileAccount(ctx context.Context, accountID string) (drifted bool, settled int, err error) {
	before, err := r.store.GetAccount(ctx, accountID)
	if err != nil {
		return false, 0, fmt.Errorf("load account: %w", err)
	}
	balance, err := r.store.ReconcileBalance(ctx, accountID)
	if err != nil {
		return false, 0, fmt.Errorf("reconcile balance: %w", err)
	}
	if balance != before.Balance {
		drifted = true
		slog.WarnContext(ctx, "Balance drift corrected",
			"account_id", accountID,
			"cached", before.Balance.String(),
			"actual", balance.String())
	}

	var errs []error
	if err := r.budgets.RefreshAll(ctx, accountID); err != nil {
		errs = append(errs, err)
	}
	settled, err = r.goals.SettleAll(ctx, accountID)
	if err != nil {
		errs = append(errs, err)
	}
	if r.insights != nil {
		r.insights.Invalidate(accountID)
	}
	return drifted, settled, errors.Join(errs...)
}

// ReconcileAll reconciles every account with bounded concurrency. A failing
// account is logged and counted; it does not stop the pass.
func (r *Reconciler) ReconcileAll(ctx context.Context) (ReconcileReport, error) {
	ids, err := r.store.ListAccountIDs(ctx)
	if err != nil {
		return ReconcileReport{}, fmt.Errorf("list accounts: %w", err)
	}

	var drifted, settled, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			d, n, err := r.ReconcileAccount(gctx, id)
			if err != nil {
				failed.Add(1)
				slog.ErrorContext(gctx, "Reconcile failed", "account_id", id, "error", err)
				return nil
			}
			if d {
				drifted.Add(1)
			}
			settled.Add(int64(n))
			return nil
		})
	}
	err = g.Wait()

	report := ReconcileReport{
		Accounts:     len(ids),
		Drifted:      int(drifted.Load()),
		GoalsSettled: int(settled.Load()),
		Failed:       int(failed.Load()),
	}
	slog.InfoContext(ctx, "Reconcile pass finished",
		"accounts", report.Accounts,
		"drifted", report.Drifted,
		"goals_settled", report.GoalsSettled,
		"failed", report.Failed)
	return report, err
}
