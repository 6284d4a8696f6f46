package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"budgetplanner/internal/amqp"
	"budgetplanner/internal/auth"
	"budgetplanner/internal/auth/local"
	"budgetplanner/internal/config"
	"budgetplanner/internal/docstore"
	"budgetplanner/internal/docstore/memory"
	"budgetplanner/internal/docstore/sqlite"
	apphttp "budgetplanner/internal/http"
	"budgetplanner/internal/ledger"
	applog "budgetplanner/internal/log"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.Config{
		Level:     slog.LevelInfo,
		Component: applog.ComponentApp,
	})
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err.Error())
		os.Exit(1)
	}

	var docs docstore.Store
	switch cfg.DataBackend {
	case "sqlite":
		repo, err := sqlite.NewRepository(cfg.SQLiteDBPath)
		if err != nil {
			logger.Error("Failed to initialize SQLite store", applog.FieldError, err.Error(), "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		defer repo.Close()
		docs = repo
		logger.Info("Initialized SQLite backend", "path", cfg.SQLiteDBPath)
	default:
		docs = memory.New()
		logger.Info("Initialized memory backend")
	}

	provider := local.NewProvider(docs, local.Options{
		BcryptCost: cfg.BcryptCost,
		SessionTTL: cfg.SessionTTL,
	})
	store := ledger.NewTransactionStore(docs)

	// Export feed is optional; without a broker URL mutations stay local.
	var publisher apphttp.Publisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err.Error())
			os.Exit(1)
		}
		defer client.Close()
		publisher = client
		logger.Info("Export feed enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("Export feed disabled - no AMQP_URL provided")
	}

	unsubscribe := provider.Subscribe(func(st auth.State) {
		logger.Info("auth state changed", "presence", st.Presence.String())
	})
	defer unsubscribe()

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Options{
		Provider:               provider,
		Store:                  store,
		Publisher:              publisher,
		Logger:                 logger.WithComponent(applog.ComponentHTTP),
		LoginAttemptsPerMinute: cfg.LoginAttemptsPerMinute,
	})

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting budgetplanner server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", applog.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
