package scheduler

import (
	"context"
	"fmt"

	"webhook-relay/config"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler drives the maintenance jobs on their configured intervals. Each
// job is wrapped with SkipIfStillRunning so a slow run delays the next one
// instead of overlapping it.
type Scheduler struct {
	cron *cron.Cron
	jobs *Jobs
	cfg  config.SchedulerConfig
	log  zerolog.Logger
}

// New creates a scheduler around the given job set.
func New(jobs *Jobs, cfg config.SchedulerConfig, log zerolog.Logger) (*Scheduler, error) {
	log = log.With().Str("component", "scheduler").Logger()
	cronLog := &cronLogger{log: log}

	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cronLog),
		cron.Recover(cronLog),
	))

	s := &Scheduler{cron: c, jobs: jobs, cfg: cfg, log: log}

	register := func(name string, every fmt.Stringer, run func(context.Context)) error {
		_, err := c.AddFunc("@every "+every.String(), func() {
			run(context.Background())
		})
		if err != nil {
			return fmt.Errorf("registering %s job: %w", name, err)
		}
		return nil
	}

	if err := register("pending_sweep", cfg.PendingSweepEvery, func(ctx context.Context) {
		_, _ = jobs.PendingSweep(ctx)
	}); err != nil {
		return nil, err
	}
	if err := register("failed_retry", cfg.FailedRetryEvery, func(ctx context.Context) {
		_, _ = jobs.FailedRetry(ctx)
	}); err != nil {
		return nil, err
	}
	if err := register("cleanup", cfg.CleanupEvery, func(ctx context.Context) {
		_, _ = jobs.Cleanup(ctx)
	}); err != nil {
		return nil, err
	}

	return s, nil
}

// Start launches the cron loop in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().
		Str("pending_sweep", s.cfg.PendingSweepEvery.String()).
		Str("failed_retry", s.cfg.FailedRetryEvery.String()).
		Str("cleanup", s.cfg.CleanupEvery.String()).
		Msg("Scheduler started")
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info().Msg("Scheduler stopped")
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
