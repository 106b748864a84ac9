package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"webhook-relay/config"
	httpHandler "webhook-relay/internal/adapter/http/handler"
	pgStorage "webhook-relay/internal/adapter/storage/postgres"
	redisStorage "webhook-relay/internal/adapter/storage/redis"
	"webhook-relay/internal/core/ports"
	"webhook-relay/internal/scheduler"
	"webhook-relay/internal/service"
	"webhook-relay/internal/worker"
	"webhook-relay/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Webhook Relay")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	notifRepo := pgStorage.NewNotificationRepo(pool)
	categoryRepo := pgStorage.NewCategoryRepo(pool)

	// Initialize downstream queue + rate limiting
	forwarder := redisStorage.NewQueueForwarder(rdb, cfg.Queue.Name, log)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Initialize core services
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	authSvc := service.NewOperatorAuthService(cfg.Auth.Username, cfg.Auth.PasswordHash, hashSvc, tokenSvc)
	parser := service.NewSafeParser(cfg.Parser, cfg.Intake.MaxBodyBytes)
	processor := service.NewProcessor(notifRepo, categoryRepo, parser, forwarder, cfg.Extract, cfg.Forward, log)

	// Worker pool + intake
	dispatcher := worker.NewDispatcher(processor, cfg.Worker, log)
	dispatcher.Start()
	defer dispatcher.Stop()

	intakeSvc := service.NewIntakeService(notifRepo, categoryRepo, dispatcher, cfg.Intake, log)

	// Maintenance jobs
	jobs := scheduler.NewJobs(notifRepo, processor, dispatcher, cfg.Scheduler, log)
	sched, err := scheduler.New(jobs, cfg.Scheduler, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize scheduler")
	}
	sched.Start()
	defer sched.Stop()

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		IntakeSvc:      intakeSvc,
		AuthSvc:        authSvc,
		TokenSvc:       tokenSvc,
		NotifRepo:      notifRepo,
		Forwarder:      forwarder,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		MaxBodyBytes:   cfg.Intake.MaxBodyBytes,
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
