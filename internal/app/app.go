package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"

	"github.com/utafrali/storefront/internal/cart"
	"github.com/utafrali/storefront/internal/client"
	"github.com/utafrali/storefront/internal/config"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/event"
	handler "github.com/utafrali/storefront/internal/handler/http"
	"github.com/utafrali/storefront/internal/kvstore"
	"github.com/utafrali/storefront/internal/kvstore/file"
	"github.com/utafrali/storefront/internal/kvstore/memory"
	kvpostgres "github.com/utafrali/storefront/internal/kvstore/postgres"
	kvredis "github.com/utafrali/storefront/internal/kvstore/redis"
	"github.com/utafrali/storefront/internal/notify"
	"github.com/utafrali/storefront/internal/orderstatus"
	"github.com/utafrali/storefront/internal/saved"
	"github.com/utafrali/storefront/pkg/database"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/httpclient"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/middleware"
	"github.com/utafrali/storefront/pkg/tracing"
)

const serviceName = "storefront"

// App wires together all dependencies and runs the storefront service.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	Cart          *cart.Store
	Saved         *saved.Store
	Orders        *orderstatus.Tracker
	Notifications *notify.Recorder
	KV            *kvstore.Adapter

	rdb            *redis.Client
	pool           *pgxpool.Pool
	kafka          *pkgkafka.Producer
	events         *event.Producer
	tracerShutdown func(context.Context) error
	httpServer     *http.Server
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}

	// Tracing.
	tracingCfg := tracing.DefaultConfig(serviceName)
	tracingCfg.Environment = cfg.Environment
	tracingCfg.Enabled = cfg.OTELEnabled
	tracingCfg.OTLPEndpoint = cfg.OTELEndpoint
	tracingCfg.SampleRate = cfg.OTELSampleRate
	shutdown, err := tracing.InitTracer(ctx, tracingCfg)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = shutdown

	database.SetSlowQueryLogging(200*time.Millisecond, logger)

	backend, err := a.openBackend(ctx)
	if err != nil {
		a.closeResources()
		return nil, err
	}
	a.KV = kvstore.New(backend, cfg.StorageBackend, logger)

	// Notifications go to the UI queue, the log and, when configured, Kafka.
	a.Notifications = notify.NewRecorder(cfg.NotificationBuffer)
	notifiers := notify.Multi{a.Notifications, notify.NewLogNotifier(logger)}
	if cfg.KafkaEnabled() {
		a.kafka = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		a.events = event.NewProducer(a.kafka, cfg.KafkaNotificationTopic, cfg.KafkaOrderTopic, 256, logger)
		notifiers = append(notifiers, a.events)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	// Stores. One instance each, shared by every request.
	a.Cart = cart.NewPersisted(ctx, a.KV, kvstore.Key(cfg.StorageNamespace, kvstore.CartKeySuffix), notifiers, logger)
	a.Saved = saved.NewPersisted(ctx, a.KV, kvstore.Key(cfg.StorageNamespace, kvstore.SavedKeySuffix), notifiers, logger)

	// Storefront API client.
	httpCfg := httpclient.DefaultConfig()
	httpCfg.Timeout = cfg.APITimeout
	apiHTTP := httpclient.NewCircuitBreakerClient(
		httpclient.New(httpCfg),
		httpclient.DefaultCircuitBreakerConfig("storefront-api"),
		logger,
	)
	api := client.New(cfg.APIBaseURL, apiHTTP, logger)

	// Order confirmation sessions.
	a.Orders = orderstatus.NewTracker(api, orderstatus.Config{
		Interval:    cfg.OrderPollInterval,
		MaxAttempts: cfg.OrderPollMaxAttempts,
		Retention:   cfg.OrderSessionRetention,
	}, logger)
	a.Orders.OnTerminal(a.onOrderResolved)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.Register("storage", a.KV.HealthCheck)
	healthHandler.Register("storefront_api", func(context.Context) error {
		if apiHTTP.State() == gobreaker.StateOpen {
			return fmt.Errorf("circuit open: %w", health.ErrDegraded)
		}
		return nil
	})
	if a.kafka != nil {
		healthHandler.Register("kafka", func(ctx context.Context) error {
			if err := a.kafka.Ping(ctx); err != nil {
				return fmt.Errorf("%v: %w", err, health.ErrDegraded)
			}
			return nil
		})
	}

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.CORSAllowedOrigins

	router := handler.NewRouter(handler.Dependencies{
		Cart:          a.Cart,
		Saved:         a.Saved,
		Catalog:       api,
		Orders:        a.Orders,
		Notifications: a.Notifications,
		Health:        healthHandler,
		CORS:          corsCfg,
		Logger:        logger,
	})

	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return a, nil
}

// openBackend connects the configured storage backend.
func (a *App) openBackend(ctx context.Context) (kvstore.Backend, error) {
	cfg := a.cfg
	switch cfg.StorageBackend {
	case config.StorageMemory:
		return memory.New(), nil

	case config.StorageFile:
		b, err := file.New(cfg.StorageDir)
		if err != nil {
			return nil, fmt.Errorf("open file storage: %w", err)
		}
		a.logger.Info("using file storage", slog.String("dir", cfg.StorageDir))
		return b, nil

	case config.StorageRedis:
		rdb, err := database.NewRedisClient(ctx, database.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPass,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.rdb = rdb
		a.logger.Info("connected to Redis",
			slog.String("addr", cfg.RedisAddr),
			slog.Int("db", cfg.RedisDB),
		)
		return kvredis.New(rdb, cfg.RedisTTL), nil

	case config.StoragePostgres:
		pool, err := database.NewPostgresPool(ctx, database.DefaultPostgresConfig(cfg.PostgresDSN), a.logger)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		a.pool = pool
		if err := kvpostgres.Migrate(ctx, pool, a.logger); err != nil {
			return nil, fmt.Errorf("migrate storage schema: %w", err)
		}
		if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, serviceName); err != nil {
			a.logger.Warn("failed to register pool metrics", slog.String("error", err.Error()))
		}
		return kvpostgres.New(pool), nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
}

// onOrderResolved runs once per confirmation session when it settles.
func (a *App) onOrderResolved(ctx context.Context, s domain.OrderStatusSession) {
	if s.State == domain.PollStatePaid && a.cfg.ClearCartOnPaid {
		a.Cart.Clear(ctx)
		a.logger.InfoContext(ctx, "cart cleared after confirmed payment",
			slog.String("merchant_reference", s.MerchantReference),
		)
	}
	if a.events != nil {
		a.events.PublishOrderResolved(ctx, s)
	}
}

// Handler returns the HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	a.Orders.Close()
	a.closeResources()

	a.logger.Info("application shutdown complete")
	return nil
}

// closeResources releases connections in reverse order of creation. It is
// safe to call with partially initialised dependencies.
func (a *App) closeResources() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if a.events != nil {
		if err := a.events.Close(shutdownCtx); err != nil {
			a.logger.Error("event producer close error", slog.String("error", err.Error()))
		}
	}
	if a.kafka != nil {
		if err := a.kafka.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(shutdownCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
		}
	}
}
