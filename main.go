package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/RakeshSingh38/multi-agent-ai-system/internal/agents"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/analytics"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/app"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/circuitbreaker"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/config"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/coordinator"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/db"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/events"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/health"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/httpapi"
	_ "github.com/RakeshSingh38/multi-agent-ai-system/internal/metrics" // Import for side effects
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/taskstore"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/templates"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/tracing"
)

// reloadable holds the settings that follow config file edits
type reloadable struct {
	templates *templates.Templates
	quality   agents.Quality
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := app.NewLogger(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	shutdownTracing, err := tracing.Initialize(tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		ServiceName:  cfg.Tracing.ServiceName,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
	}, logger)
	if err != nil {
		logger.Warn("Tracing disabled", zap.Error(err))
		shutdownTracing = func(context.Context) error { return nil }
	}

	// Start circuit breaker metrics collection
	circuitbreaker.StartMetricsCollection()

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		addr := ":" + strconv.Itoa(cfg.Metrics.Port)
		logger.Info("Metrics server listening", zap.String("address", addr))
		if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()

	hm := health.NewManager(cfg.Health.CheckInterval, logger)

	// Persistence is optional; the service runs without it
	var dbClient *db.Client
	if cfg.Database.Enabled {
		dbClient, err = db.NewClient(&db.Config{
			URL:             cfg.Database.URL,
			MaxConnections:  cfg.Database.MaxConnections,
			IdleConnections: cfg.Database.IdleConnections,
			MaxLifetime:     cfg.Database.MaxLifetime,
			Workers:         cfg.Database.Workers,
			QueueSize:       cfg.Database.QueueSize,
		}, logger)
		if err != nil {
			logger.Warn("Database unavailable, continuing without persistence", zap.Error(err))
			dbClient = nil
		} else {
			defer dbClient.Close()
			_ = hm.RegisterChecker(health.NewDatabaseHealthChecker(dbClient.Wrapper(), logger))
		}
	} else {
		logger.Info("Database persistence disabled")
	}

	store, storeKind, closeStore := newTaskStore(cfg, hm, logger)
	defer closeStore()

	_ = hm.RegisterChecker(health.NewCustomHealthChecker("task_store", false, 2*time.Second,
		func(ctx context.Context) health.CheckResult {
			recs, err := store.List(ctx)
			if err != nil {
				return health.CheckResult{Status: health.StatusDegraded, Message: "Task store unavailable", Error: err.Error()}
			}
			return health.CheckResult{
				Status:  health.StatusHealthy,
				Message: "Task store reachable",
				Details: map[string]any{"backend": storeKind, "tasks": len(recs)},
			}
		}))

	var notifier events.Notifier = events.NopNotifier{}
	if len(cfg.Kafka.Brokers) > 0 {
		notifier = events.NewKafkaNotifier(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		logger.Info("Task events enabled", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}
	defer notifier.Close()

	chain := app.BuildLLM(cfg, logger)
	for _, backend := range chain.Backends() {
		_ = hm.RegisterChecker(health.NewLLMBackendHealthChecker(backend, logger))
	}

	tpl, err := app.LoadTemplates(cfg.TemplatesPath)
	if err != nil {
		logger.Warn("Using embedded prompt templates", zap.Error(err))
		tpl = templates.Default()
	}
	var current atomic.Pointer[reloadable]
	current.Store(&reloadable{templates: tpl, quality: app.Quality(cfg)})

	if cfg.Path != "" {
		var extra []string
		if cfg.TemplatesPath != "" {
			extra = append(extra, cfg.TemplatesPath)
		}
		watcher, err := config.NewWatcher(cfg, logger, extra...)
		if err != nil {
			logger.Warn("Config hot-reload disabled", zap.Error(err))
		} else {
			watcher.OnChange(func(next *config.Config) {
				t, err := app.LoadTemplates(next.TemplatesPath)
				if err != nil {
					logger.Error("Keeping previous prompt templates", zap.Error(err))
					t = current.Load().templates
				}
				current.Store(&reloadable{templates: t, quality: app.Quality(next)})
				logger.Info("Runtime settings reloaded",
					zap.String("templates_version", t.Version()),
					zap.Int("min_report_chars", app.Quality(next).MinReportChars),
				)
			})
			watcher.Start(ctx)
			defer watcher.Stop()
		}
	}

	registry := agents.DefaultRegistry()
	algorithms := analytics.NewRegistry()
	collect := app.NewCollector(cfg, logger)

	newExecutor := func() httpapi.Executor {
		rt := current.Load()
		deps := agents.Deps{
			Logger:     logger,
			Collector:  collect,
			LLM:        chain,
			Templates:  rt.templates,
			Algorithms: algorithms,
			Quality:    rt.quality,
		}
		opts := []coordinator.Option{
			coordinator.WithTaskStore(store),
			coordinator.WithNotifier(notifier),
		}
		if dbClient != nil {
			deps.Audit = dbClient
			opts = append(opts, coordinator.WithRecorder(dbClient))
		}
		return coordinator.New(registry, deps, opts...)
	}

	apiOpts := httpapi.Options{
		NewExecutor: newExecutor,
		Store:       store,
		Registry:    registry,
		Algorithms:  algorithms,
		TaskTimeout: cfg.API.RequestTimeout,
		AuthToken:   cfg.API.AuthToken,
		StoreKind:   storeKind,
	}
	if dbClient != nil {
		apiOpts.DB = dbClient
	}
	api := httpapi.NewHandler(apiOpts, logger)

	mux := http.NewServeMux()
	health.NewHTTPHandler(hm, logger).RegisterRoutes(mux)
	api.RegisterRoutes(mux)

	if err := hm.Start(ctx); err != nil {
		logger.Warn("Health manager failed to start", zap.Error(err))
	}
	defer hm.Stop()

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           api.Middleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		logger.Info("API server listening",
			zap.String("address", server.Addr),
			zap.String("version", httpapi.Version),
			zap.String("task_store", storeKind),
			zap.Bool("database", dbClient != nil),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("API server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Shutdown signal received", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("API server shutdown failed", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("Tracing shutdown failed", zap.Error(err))
	}
	cancel()
	logger.Info("Service stopped")
}

// newTaskStore connects to Redis when REDIS_URL is set and falls back to process memory.
// The returned func releases the store; the in-memory store is cleared on shutdown.
func newTaskStore(cfg *config.Config, hm *health.Manager, logger *zap.Logger) (taskstore.Store, string, func()) {
	if cfg.Redis.URL != "" {
		rdb, err := connectRedis(cfg.Redis.URL)
		if err == nil {
			wrapper := circuitbreaker.NewRedisWrapper(rdb, logger)
			_ = hm.RegisterChecker(health.NewRedisHealthChecker(wrapper, logger))
			logger.Info("Task store using Redis", zap.Duration("ttl", cfg.Redis.TaskTTL))
			return taskstore.NewRedis(wrapper, cfg.Redis.TaskTTL, logger), "redis", func() { rdb.Close() }
		}
		logger.Warn("Redis unavailable, using in-memory task store", zap.Error(err))
	}

	mem := taskstore.NewMemory()
	return mem, "memory", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = mem.Clear(ctx)
	}
}

func connectRedis(rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return rdb, nil
}
