// Command analytics runs a standalone aggregator for lookup events.
//
// It consumes the analytics topic that search instances publish to,
// aggregates totals, latency percentiles, top terms and zero-result queries in
// memory, persists periodic snapshots to PostgreSQL when enabled, and serves
// them at GET /api/v1/analytics and GET /api/v1/analytics/history.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	if !cfg.Kafka.Enabled {
		slog.Error("analytics service requires kafka.enabled")
		os.Exit(1)
	}
	slog.Info("starting analytics service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// One consumer group: instances of this service split the topic.
	agg := analytics.NewKafkaAggregator(func(h kafka.MessageHandler) *kafka.Consumer {
		return kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, h)
	})
	go func() {
		if err := agg.Start(ctx); err != nil {
			slog.Error("aggregator error", "error", err)
		}
	}()
	slog.Info("analytics aggregator started", "topic", cfg.Kafka.Topics.AnalyticsEvents)

	checker := health.NewChecker()
	checker.Register("kafka", agg.HealthCheck)

	var history analytics.History
	if cfg.Postgres.Enabled {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable, analytics persistence disabled", "error", err)
		} else {
			defer db.Close()
			checker.RegisterOptional("postgres", db.HealthCheck)
			store := aggregator.NewStore(db)
			if err := store.Migrate(ctx); err != nil {
				slog.Warn("analytics store migration failed, persistence disabled", "error", err)
			} else {
				store.StartPeriodicSave(ctx, agg, cfg.Analytics.PersistInterval)
				history = store
			}
		}
	}

	analyticsHandler := analytics.NewHandler(agg, history)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics", analyticsHandler.Stats)
	mux.HandleFunc("GET /api/v1/analytics/history", analyticsHandler.History)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.AllowOrigins))(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Deferred closes must not run while handlers are still draining.
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	<-shutdownDone

	slog.Info("analytics service stopped")
}
