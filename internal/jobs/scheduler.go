// Package jobs runs the periodic maintenance work of the economy.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fastprodman/pulsecards/internal/infra/logging"
	"github.com/fastprodman/pulsecards/internal/infra/metrics"
	"github.com/fastprodman/pulsecards/internal/services/credits"
	"github.com/go-co-op/gocron/v2"
)

type LockSweeper interface {
	ReleaseExpiredLocks(ctx context.Context) (int, error)
}

type Reconciler interface {
	ReconcileAll(ctx context.Context) ([]credits.Report, error)
}

type DayRoller interface {
	EnsureDay(ctx context.Context, day time.Time) (int, error)
}

type Config struct {
	LockSweepInterval time.Duration `env:"JOB_LOCK_SWEEP_INTERVAL" envDefault:"30s"`
	ReconcileInterval time.Duration `env:"JOB_RECONCILE_INTERVAL" envDefault:"1h"`
	JobTimeout        time.Duration `env:"JOB_TIMEOUT" envDefault:"5m"`
}

type Scheduler struct {
	sched   gocron.Scheduler
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
	log     *slog.Logger
}

// New registers the sweeper, reconciler and daily challenge rollover. The
// rollover also runs once as soon as the scheduler starts.
func New(cfg Config, sweeper LockSweeper, reconciler Reconciler, roller DayRoller) (*Scheduler, error) {
	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("new scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		sched:   sched,
		ctx:     ctx,
		cancel:  cancel,
		timeout: cfg.JobTimeout,
		log:     logging.Component("jobs"),
	}

	defs := []struct {
		name string
		def  gocron.JobDefinition
		run  func(context.Context) error
		opts []gocron.JobOption
	}{
		{
			name: "release-expired-locks",
			def:  gocron.DurationJob(cfg.LockSweepInterval),
			run: func(ctx context.Context) error {
				n, rerr := sweeper.ReleaseExpiredLocks(ctx)
				if n > 0 {
					s.log.Info("expired listing locks released", "count", n)
				}

				return rerr
			},
		},
		{
			name: "reconcile-ledger",
			def:  gocron.DurationJob(cfg.ReconcileInterval),
			run: func(ctx context.Context) error {
				mismatches, rerr := reconciler.ReconcileAll(ctx)
				if rerr != nil {
					return rerr
				}

				for _, r := range mismatches {
					s.log.Warn("ledger mismatch", "user_id", r.UserID, "balance", r.Balance, "ledger_sum", r.LedgerSum)
				}

				return nil
			},
		},
		{
			name: "daily-challenges",
			def:  gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(0, 0, 0))),
			run: func(ctx context.Context) error {
				_, rerr := roller.EnsureDay(ctx, time.Now().UTC())
				return rerr
			},
			opts: []gocron.JobOption{gocron.WithStartAt(gocron.WithStartImmediately())},
		},
	}

	for _, d := range defs {
		opts := append([]gocron.JobOption{
			gocron.WithName(d.name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		}, d.opts...)

		_, err = sched.NewJob(d.def, gocron.NewTask(s.wrap(d.name, d.run)), opts...)
		if err != nil {
			cancel()
			_ = sched.Shutdown()

			return nil, fmt.Errorf("register %s: %w", d.name, err)
		}
	}

	return s, nil
}

func (s *Scheduler) wrap(name string, run func(context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
		defer cancel()

		start := time.Now()
		err := run(ctx)

		outcome := "ok"
		if err != nil {
			outcome = "error"
			if !errors.Is(err, context.Canceled) {
				s.log.Error("job failed", "job", name, logging.Err(err))
			}
		}

		metrics.JobRuns.WithLabelValues(name, outcome).Inc()
		s.log.Debug("job finished", "job", name, "took", time.Since(start))
	}
}

func (s *Scheduler) Start() {
	s.sched.Start()
	s.log.Info("scheduler started", "jobs", len(s.sched.Jobs()))
}

// Shutdown cancels running jobs and waits for them to return.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.cancel()

	done := make(chan error, 1)
	go func() { done <- s.sched.Shutdown() }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("scheduler shutdown: %w", err)
		}

		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
