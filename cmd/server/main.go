package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aznelite89/travel-budget-estimator/api/rest/routes"
	"github.com/aznelite89/travel-budget-estimator/config"
	"github.com/aznelite89/travel-budget-estimator/core/estimator"
	"github.com/aznelite89/travel-budget-estimator/core/executor"
	"github.com/aznelite89/travel-budget-estimator/core/monitoring"
	"github.com/aznelite89/travel-budget-estimator/core/repository"
	"github.com/aznelite89/travel-budget-estimator/core/scheduler"

	"github.com/gorilla/mux"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		arbor.NewLogger().Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger := config.NewLogger(cfg)

	runCtx, stopRunners := context.WithCancel(context.Background())
	defer stopRunners()

	store, closeStore := openStore(runCtx, cfg, logger)
	defer closeStore()

	est, err := estimator.NewClaudeEstimator(estimator.ClaudeConfig{
		APIKey:      cfg.Estimator.APIKey,
		Model:       cfg.Estimator.Model,
		MaxTokens:   cfg.Estimator.MaxTokens,
		Temperature: cfg.Estimator.Temperature,
		Timeout:     cfg.Estimator.Timeout,
		BufferRates: cfg.Estimator.BufferRates(),
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize estimator")
	}

	estimateExecutor := executor.NewEstimateExecutor(store, est, logger)

	sched := scheduler.NewScheduler(store, estimateExecutor, cfg.SchedulerWorkers, logger)
	sched.Start(runCtx)

	monitor := monitoring.NewJobMonitor(store, cfg.MonitorInterval, cfg.StalledJobAfter, logger)
	go monitor.Start(runCtx)

	r := mux.NewRouter()
	routes.SetupRoutes(r, store, sched, routes.Options{
		StreamPollInterval: cfg.StreamPollInterval,
		StreamPingInterval: cfg.StreamKeepAliveInterval,
		SubmitLimiter:      rate.NewLimiter(rate.Limit(cfg.SubmitRatePerSecond), cfg.SubmitBurst),
		AllowedOrigins:     cfg.CORSAllowedOrigins,
	}, logger)

	// Cancelling the base context ends open event streams, which Shutdown
	// would otherwise wait on forever
	baseCtx, closeStreams := context.WithCancel(context.Background())
	defer closeStreams()

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}

	go func() {
		logger.Info().Str("port", cfg.ServerPort).Str("store", cfg.Store).Msg("Starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")
	closeStreams()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("Scheduler did not drain before timeout")
	}
	stopRunners()

	logger.Info().Msg("Server exited")
}

// openStore returns the configured store and a function that releases it
func openStore(ctx context.Context, cfg *config.Config, logger arbor.ILogger) (repository.Store, func()) {
	if cfg.Store == "memory" {
		logger.Warn().Msg("Using in-memory store, jobs are lost on restart")
		return repository.NewMemoryStore(), func() {}
	}

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		logger.Fatal().Err(err).Msg("Failed to migrate database")
	}
	logger.Info().Msg("Database connected successfully")

	return repository.NewPostgresStore(db), func() { db.Close() }
}
