// Package main is the entry point for the lucky-draw API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"lucky-draw/internal/config"
	"lucky-draw/internal/handler"
	"lucky-draw/internal/pkg/db"
	"lucky-draw/internal/pkg/lock"
	"lucky-draw/internal/repository"
	"lucky-draw/internal/scheduler"
	"lucky-draw/internal/service"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	configureLogger(&cfg.Log)

	log.Info().Str("driver", cfg.Database.Driver).Msg("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, health, closeStore, err := openStore(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer closeStore()

	location, err := cfg.CheckIn.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid check-in timezone")
	}

	lockTimeout := cfg.Draws.LockTimeout
	if lockTimeout <= 0 {
		lockTimeout = service.DefaultLockTimeout
	}

	// Locks are shared so every service serializes on the same keys.
	userLock := lock.NewUserLock()
	drawLock := lock.NewDrawLock()

	svc := handler.Services{
		Accounts:       service.NewAccountService(store, userLock, lockTimeout, cfg.Account.InitialBalance, location, time.Now),
		Ledger:         service.NewLedgerService(store, userLock, lockTimeout),
		Participations: service.NewParticipationService(store, drawLock, userLock, lockTimeout, cfg.Draws.MaxEntriesPerUser, time.Now),
		Settlement:     service.NewSettlementService(store, drawLock, lockTimeout, service.CryptoSource{}, time.Now),
		Query:          service.NewQueryService(store, nil, time.Now),
		Ranking:        service.NewRankingService(store),
	}

	if cfg.Scheduler.Enabled {
		sched, err := scheduler.New(cfg.Scheduler.SettleSpec, svc.Settlement)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create settlement scheduler")
		}
		sched.Start()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			sched.Stop(stopCtx)
		}()
	}

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler.NewRouter(cfg, svc, health),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("Server is starting...")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal
	select {
	case <-ctx.Done():
		log.Info().Msg("Received shutdown signal")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("Server failed")
		}
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
	log.Info().Msg("Server stopped gracefully")
}

func configureLogger(cfg *config.LogConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if !cfg.Pretty {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}

// openStore returns the configured store, its health check and a close func.
func openStore(ctx context.Context, cfg *config.DatabaseConfig) (repository.Store, handler.HealthFunc, func(), error) {
	if cfg.Driver == "memory" {
		log.Warn().Msg("Using in-memory store, data is lost on restart")
		return repository.NewMemoryStore(), nil, func() {}, nil
	}

	// Initialize database connection pool
	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	// Run database migrations
	if err := db.Migrate(ctx, pool.Pool); err != nil {
		pool.Close()
		return nil, nil, nil, err
	}

	return repository.NewPostgresStore(pool.Pool), pool.HealthCheck, pool.Close, nil
}
