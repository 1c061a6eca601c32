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
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics/collector"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/snapshot/registry"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/snapshot/source"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/ratelimit"
	pkgredis "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/resilience"
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
	slog.Info("starting search service",
		"port", cfg.Server.Port,
		"snapshot_source", cfg.Snapshot.Source,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	instance, err := os.Hostname()
	if err != nil {
		instance = fmt.Sprintf("pid-%d", os.Getpid())
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(nil)
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, nil)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := shutdownMetrics(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}()
	}

	checker := health.NewChecker()

	var db *postgres.Client
	if cfg.Postgres.Enabled {
		db, err = postgres.New(cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable, load history and analytics persistence disabled", "error", err)
		} else {
			defer db.Close()
			checker.RegisterOptional("postgres", db.HealthCheck)
		}
	}

	src, err := source.New(cfg)
	if err != nil {
		slog.Error("failed to create snapshot source", "error", err)
		os.Exit(1)
	}
	if obj, ok := src.(*source.Object); ok {
		obj.WithBreaker(resilience.NewCircuitBreaker("object-store", resilience.CircuitBreakerConfig{
			IsFailure: source.IsRemoteFailure,
			OnStateChange: func(name string, from, to resilience.State) {
				if m != nil {
					m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
				}
			},
		}))
	}

	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
			checker.RegisterOptional("redis", redisClient.HealthCheck)
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	regOpts := []registry.Option{
		registry.OnSwap(func(s *registry.Snapshot) {
			slog.Info("serving snapshot", "version", s.Version, "location", s.Location)
		}),
	}
	if m != nil {
		regOpts = append(regOpts, registry.WithMetrics(m))
	}
	var loads *registry.PostgresHistory
	if db != nil {
		loads = registry.NewPostgresHistory(db)
		if err := loads.Migrate(ctx); err != nil {
			slog.Warn("snapshot history migration failed, load history disabled", "error", err)
			loads = nil
		} else {
			regOpts = append(regOpts, registry.WithHistory(loads))
		}
	}
	reg := registry.New(src, cfg.Snapshot, regOpts...)
	checker.Register("snapshot", reg.HealthCheck)

	// The service starts even without a snapshot; lookups return 503 until a
	// reload succeeds.
	if _, err := reg.Reload(ctx, registry.TriggerStartup); err != nil {
		slog.Error("initial snapshot load failed", "error", err)
	}

	if cfg.Kafka.Enabled {
		snapshotConsumer := kafka.NewBroadcastConsumer(cfg.Kafka, cfg.Kafka.Topics.SnapshotPublished, instance, reg.HandlePublished)
		checker.RegisterOptional("snapshot-events", snapshotConsumer.HealthCheck)
		go func() {
			if err := snapshotConsumer.Start(ctx); err != nil {
				slog.Error("snapshot consumer error", "error", err)
			}
		}()
		slog.Info("listening for published snapshots", "topic", cfg.Kafka.Topics.SnapshotPublished)
	}

	exec := executor.New(reg)
	h := handler.New(exec, reg, cfg.Search.DefaultLimit, cfg.Search.MaxResults)
	if m != nil {
		h.WithMetrics(m)
	}
	if loads != nil {
		h.WithLoadHistory(loads)
	}
	if redisClient != nil {
		queryCache := cache.New(redisClient, cfg.Redis.CacheTTL)
		if m != nil {
			queryCache.WithMetrics(m)
		}
		h.WithCache(queryCache)
	}

	mux := http.NewServeMux()
	h.Register(mux)

	if cfg.Analytics.Enabled {
		var (
			agg  *analytics.Aggregator
			sink analytics.Sink
		)
		if cfg.Kafka.Enabled {
			producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
			defer producer.Close()
			batcher := collector.NewBatchCollector(producer, 100, 0)
			batcher.Start(ctx)
			defer batcher.Close()
			sink = batcher

			// Every instance reads the whole topic so its stats cover the
			// deployment.
			agg = analytics.NewKafkaAggregator(func(h kafka.MessageHandler) *kafka.Consumer {
				return kafka.NewBroadcastConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, instance, h)
			})
			go func() {
				if err := agg.Start(ctx); err != nil {
					slog.Error("analytics aggregator error", "error", err)
				}
			}()
			slog.Info("analytics published to kafka", "topic", cfg.Kafka.Topics.AnalyticsEvents)
		} else {
			agg = analytics.NewAggregator(nil)
			sink = agg
		}

		events := analytics.NewCollector(sink, cfg.Analytics.BufferSize)
		events.Start(ctx)
		defer events.Close()
		h.WithCollector(events)

		var history analytics.History
		if db != nil {
			store := aggregator.NewStore(db)
			if err := store.Migrate(ctx); err != nil {
				slog.Warn("analytics store migration failed, persistence disabled", "error", err)
			} else {
				store.StartPeriodicSave(ctx, agg, cfg.Analytics.PersistInterval)
				history = store
			}
		}

		analyticsH := analytics.NewHandler(agg, history)
		mux.HandleFunc("GET /api/v1/analytics", analyticsH.Stats)
		mux.HandleFunc("GET /api/v1/analytics/history", analyticsH.History)
	}

	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	if m != nil {
		chain = middleware.Metrics(m)(chain)
	}
	chain = middleware.Timeout(cfg.Server.WriteTimeout, "/api/v1/index/reload")(chain)
	if cfg.RateLimit.Enabled {
		limiter := ratelimit.New(cfg.RateLimit.Requests, cfg.RateLimit.Window)
		go limiter.Cleanup(ctx, cfg.RateLimit.Window)
		chain = middleware.RateLimit(limiter)(chain)
	}
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

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	<-shutdownDone

	slog.Info("search service stopped")
}
