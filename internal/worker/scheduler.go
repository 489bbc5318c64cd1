package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"fintrack/internal/services"
)

// Scheduler runs the reconciler on a cron schedule.
type Scheduler struct {
	reconciler *services.Reconciler
	schedule   string
	timeout    time.Duration

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

func NewScheduler(r *services.Reconciler, schedule string, timeout time.Duration) *Scheduler {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Scheduler{reconciler: r, schedule: schedule, timeout: timeout}
}

// Start registers the job and starts the cron loop. Jobs run with a context
// derived from ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("scheduler is already running")
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(s.schedule, func() { s.RunOnce(ctx) }); err != nil {
		return err
	}
	c.Start()
	s.cron, s.running = c, true

	slog.InfoContext(ctx, "Reconcile scheduler started", "schedule", s.schedule)
	return nil
}

// Run starts the scheduler and blocks until ctx is cancelled, then waits for
// a running job to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.Stop(stopCtx)
}

// RunOnce performs a single reconcile pass.
func (s *Scheduler) RunOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := s.reconciler.ReconcileAll(ctx); err != nil {
		slog.ErrorContext(ctx, "Scheduled reconcile failed", "error", err)
	}
}

// Stop halts scheduling and waits for a running job, up to ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	c := s.cron
	s.running = false
	s.mu.Unlock()

	select {
	case <-c.Stop().Done():
		slog.InfoContext(ctx, "Reconcile scheduler stopped")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Reconcile scheduler stop timed out")
		return ctx.Err()
	}
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
