package scheduler

import (
	"context"
	"time"

	"webhook-relay/config"
	"webhook-relay/internal/core/ports"

	"github.com/rs/zerolog"
)

// Jobs holds the periodic maintenance operations. Each job is an ordinary
// method so the CLI and tests can run one synchronously without cron.
type Jobs struct {
	notifRepo  ports.NotificationRepository
	processor  ports.Processor
	dispatcher ports.Dispatcher
	cfg        config.SchedulerConfig
	log        zerolog.Logger
}

// NewJobs creates the maintenance job set.
func NewJobs(
	notifRepo ports.NotificationRepository,
	processor ports.Processor,
	dispatcher ports.Dispatcher,
	cfg config.SchedulerConfig,
	log zerolog.Logger,
) *Jobs {
	return &Jobs{
		notifRepo:  notifRepo,
		processor:  processor,
		dispatcher: dispatcher,
		cfg:        cfg,
		log:        log.With().Str("component", "scheduler").Logger(),
	}
}

// PendingSweep processes rows that are still new past the configured age.
// These are tasks the dispatcher dropped or lost (full buffer, crash,
// abandoned retries); the sweep is the pipeline's catch-all. Rows are
// processed inline, oldest first, one bounded batch per run.
func (j *Jobs) PendingSweep(ctx context.Context) (int, error) {
	olderThan := time.Now().UTC().Add(-j.cfg.PendingAge)

	ids, err := j.notifRepo.ListPendingIDs(ctx, olderThan, j.cfg.PendingBatch)
	if err != nil {
		j.log.Error().Err(err).Msg("Pending sweep: listing failed")
		return 0, err
	}

	processed := 0
	for _, id := range ids {
		if err := j.processor.Process(ctx, id); err != nil {
			j.log.Warn().Err(err).Int64("notification_id", id).Msg("Pending sweep: processing failed")
			continue
		}
		processed++
	}

	if len(ids) > 0 {
		j.log.Info().Int("found", len(ids)).Int("processed", processed).Msg("Pending sweep finished")
	}
	return processed, nil
}

// FailedRetry resets every error row to new and re-enqueues it on the
// dispatcher. A row that errors again will be picked up by the next run; a
// run after a clean pass touches nothing.
func (j *Jobs) FailedRetry(ctx context.Context) (int, error) {
	ids, err := j.notifRepo.ListFailedIDs(ctx)
	if err != nil {
		j.log.Error().Err(err).Msg("Failed retry: listing failed")
		return 0, err
	}

	retried := 0
	for _, id := range ids {
		if err := j.notifRepo.ResetForRetry(ctx, id); err != nil {
			j.log.Warn().Err(err).Int64("notification_id", id).Msg("Failed retry: reset failed")
			continue
		}
		j.dispatcher.Enqueue(id)
		retried++
	}

	if retried > 0 {
		j.log.Info().Int("retried", retried).Msg("Failed retry finished")
	}
	return retried, nil
}

// Cleanup deletes rows past the retention window, terminal or not.
func (j *Jobs) Cleanup(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-j.cfg.Retention)

	deleted, err := j.notifRepo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		j.log.Error().Err(err).Msg("Cleanup: deletion failed")
		return 0, err
	}

	if deleted > 0 {
		j.log.Info().Int64("deleted", deleted).Time("cutoff", cutoff).Msg("Cleanup finished")
	}
	return deleted, nil
}
