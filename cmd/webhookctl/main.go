package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"webhook-relay/config"
	pgStorage "webhook-relay/internal/adapter/storage/postgres"
	redisStorage "webhook-relay/internal/adapter/storage/redis"
	"webhook-relay/internal/scheduler"
	"webhook-relay/internal/service"
	"webhook-relay/pkg/logger"

	"github.com/spf13/cobra"
)

// webhookctl is the operational companion to the relay server. It talks to
// the same PostgreSQL and Redis instances; it does not call the HTTP API.

var cfgPath string

func main() {
	root := &cobra.Command{
		Use:           "webhookctl",
		Short:         "Operational tooling for the webhook relay",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file")

	root.AddCommand(retryFailedCmd(), statsCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// env wires the shared backends a command needs.
type env struct {
	cfg       *config.Config
	notifRepo *pgStorage.NotificationRepo
	forwarder *redisStorage.QueueForwarder
	processor *service.ProcessorImpl
	cleanup   func()
}

func setup(ctx context.Context) (*env, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	log := logger.New("warn", false)

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	notifRepo := pgStorage.NewNotificationRepo(pool)
	categoryRepo := pgStorage.NewCategoryRepo(pool)
	forwarder := redisStorage.NewQueueForwarder(rdb, cfg.Queue.Name, log)
	parser := service.NewSafeParser(cfg.Parser, cfg.Intake.MaxBodyBytes)
	processor := service.NewProcessor(notifRepo, categoryRepo, parser, forwarder, cfg.Extract, cfg.Forward, log)

	return &env{
		cfg:       cfg,
		notifRepo: notifRepo,
		forwarder: forwarder,
		processor: processor,
		cleanup: func() {
			rdb.Close()
			pool.Close()
		},
	}, nil
}

// syncDispatcher runs each re-enqueued task inline instead of on a pool, so
// the command only returns once every retried row reached a terminal state.
type syncDispatcher struct {
	ctx       context.Context
	processor *service.ProcessorImpl
	processed int
	failed    int
}

func (d *syncDispatcher) Enqueue(id int64) {
	if err := d.processor.Process(d.ctx, id); err != nil {
		fmt.Fprintf(os.Stderr, "notification %d: %v\n", id, err)
		d.failed++
		return
	}
	d.processed++
}

func retryFailedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry-failed",
		Short: "Reset every errored notification and process it synchronously",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := setup(ctx)
			if err != nil {
				return err
			}
			defer e.cleanup()

			log := logger.New("warn", false)
			d := &syncDispatcher{ctx: ctx, processor: e.processor}
			jobs := scheduler.NewJobs(e.notifRepo, e.processor, d, e.cfg.Scheduler, log)

			retried, err := jobs.FailedRetry(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("retried %d notification(s): %d processed, %d failed again\n",
				retried, d.processed, d.failed)
			return nil
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show per-status notification counts and downstream queue depth",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := setup(ctx)
			if err != nil {
				return err
			}
			defer e.cleanup()

			counts, err := e.notifRepo.CountByStatus(ctx)
			if err != nil {
				return fmt.Errorf("counting notifications: %w", err)
			}

			byName := make(map[string]int64, len(counts))
			statuses := make([]string, 0, len(counts))
			var total int64
			for status, count := range counts {
				byName[string(status)] = count
				statuses = append(statuses, string(status))
				total += count
			}
			sort.Strings(statuses)

			fmt.Println("notifications:")
			for _, status := range statuses {
				fmt.Printf("  %-10s %d\n", status, byName[status])
			}
			fmt.Printf("  %-10s %d\n", "total", total)

			stats, err := e.forwarder.Stats(ctx)
			if err != nil {
				return fmt.Errorf("reading queue stats: %w", err)
			}
			fmt.Printf("queue %q: %d pending message(s)\n", stats.QueueName, stats.PendingMessages)
			return nil
		},
	}
}
