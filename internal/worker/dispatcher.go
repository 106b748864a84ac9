package worker

import (
	"context"
	"sync"
	"time"

	"webhook-relay/config"
	"webhook-relay/internal/core/ports"
	"webhook-relay/pkg/apperror"
	"webhook-relay/pkg/backoff"

	"github.com/rs/zerolog"
)

// Dispatcher implements ports.Dispatcher with a fixed worker pool draining a
// buffered channel of notification ids. Enqueue never blocks: when the buffer
// is full the id is dropped with a log line and the pending sweep picks the
// row up later.
type Dispatcher struct {
	processor ports.Processor
	tasks     chan int64
	cfg       config.WorkerConfig
	strategy  backoff.Strategy
	log       zerolog.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewDispatcher creates a dispatcher with the configured pool size and retry
// policy. Start must be called before Enqueue delivers anything.
func NewDispatcher(processor ports.Processor, cfg config.WorkerConfig, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		processor: processor,
		tasks:     make(chan int64, cfg.QueueSize),
		cfg:       cfg,
		strategy:  &backoff.Constant{Interval: cfg.RetryDelay},
		log:       log.With().Str("component", "dispatcher").Logger(),
	}
}

// Start launches the worker pool.
func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		d.cancel = cancel
		for i := 0; i < d.cfg.Count; i++ {
			d.wg.Add(1)
			go d.worker(ctx, i)
		}
		d.log.Info().Int("workers", d.cfg.Count).Int("queue_size", d.cfg.QueueSize).Msg("Dispatcher started")
	})
}

// Stop cancels the pool context, closes the task channel and waits for the
// workers to exit. Tasks still buffered get one attempt against the
// cancelled context, without retries; whatever fails falls to the pending
// sweep.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		if d.cancel != nil {
			d.cancel()
		}
		close(d.tasks)
		d.wg.Wait()
		d.log.Info().Msg("Dispatcher stopped")
	})
}

// Enqueue hands a notification id to the pool without blocking the caller.
func (d *Dispatcher) Enqueue(id int64) {
	select {
	case d.tasks <- id:
	default:
		d.log.Warn().Int64("notification_id", id).Msg("Task buffer full, dropping; pending sweep will recover")
	}
}

func (d *Dispatcher) worker(ctx context.Context, idx int) {
	defer d.wg.Done()
	log := d.log.With().Int("worker", idx).Logger()

	for id := range d.tasks {
		d.run(ctx, log, id)
	}
}

// run executes one task with bounded retries. Only transient failures are
// retried; anything else is terminal for this task.
func (d *Dispatcher) run(ctx context.Context, log zerolog.Logger, id int64) {
	for attempt := 1; attempt <= d.cfg.MaxRetries; attempt++ {
		err := d.processor.Process(ctx, id)
		if err == nil {
			return
		}
		if !apperror.IsTransient(err) {
			log.Error().Err(err).Int64("notification_id", id).Msg("Task failed permanently")
			return
		}
		if attempt == d.cfg.MaxRetries {
			break
		}

		delay := d.strategy.Delay(attempt)
		log.Warn().Err(err).
			Int64("notification_id", id).
			Int("attempt", attempt).
			Dur("retry_in", delay).
			Msg("Task failed, will retry")

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}

	log.Error().
		Int64("notification_id", id).
		Int("attempts", d.cfg.MaxRetries).
		Msg("Task abandoned after retries; pending sweep will recover")
}
