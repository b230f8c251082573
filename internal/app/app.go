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
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/ecommerce-accounts/internal/auth"
	"github.com/utafrali/ecommerce-accounts/internal/config"
	"github.com/utafrali/ecommerce-accounts/internal/event"
	handler "github.com/utafrali/ecommerce-accounts/internal/handler/http"
	"github.com/utafrali/ecommerce-accounts/internal/notification"
	"github.com/utafrali/ecommerce-accounts/internal/repository/postgres"
	"github.com/utafrali/ecommerce-accounts/internal/service"
	"github.com/utafrali/ecommerce-accounts/migrations"
	"github.com/utafrali/ecommerce-accounts/pkg/database"
	"github.com/utafrali/ecommerce-accounts/pkg/health"
	pkgkafka "github.com/utafrali/ecommerce-accounts/pkg/kafka"
	"github.com/utafrali/ecommerce-accounts/pkg/middleware"
	"github.com/utafrali/ecommerce-accounts/pkg/tracing"
)

const (
	startupTimeout  = 30 * time.Second
	tracerFlushTime = 3 * time.Second
)

// App wires together all dependencies and runs the accounts service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	dispatcher     *notification.Dispatcher
	httpServer     *http.Server
	tracerShutdown tracing.Shutdown
}

// NewApp creates a new application instance, initializing all dependencies.
// Anything opened before a failing step is closed again.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	ctx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = a.closeResources()
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Initialize OpenTelemetry tracing.
	a.tracerShutdown, err = tracing.InitTracer(ctx, cfg.Tracing())
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Initialize PostgreSQL connection pool.
	a.pool, err = database.NewPostgresPool(ctx, cfg.Postgres(), logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	if err := database.RegisterPoolMetrics(reg, a.pool, cfg.ServiceName()); err != nil {
		return nil, fmt.Errorf("register pool metrics: %w", err)
	}

	// Run database migrations.
	if err := database.RunMigrations(ctx, a.pool, migrations.FS, logger); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	// Configure slow query logging.
	if cfg.SlowQueryThreshold > 0 {
		database.SetSlowQueryLogging(cfg.SlowQueryThreshold, logger)
	}

	// Notification delivery: sender, dedup store and background dispatcher.
	dedup, err := a.newIdempotencyStore(ctx)
	if err != nil {
		return nil, err
	}
	sender := newSender(cfg, reg, logger)
	a.dispatcher = notification.NewDispatcher(sender, dedup, notification.DispatcherConfig{
		Timeout:      cfg.NotifyTimeout,
		RetryBackoff: cfg.NotifyRetryBackoff,
	}, reg, logger)
	logger.Info("notification dispatcher initialized", slog.String("sender", sender.Name()))

	// Initialize Kafka producer.
	a.producer = pkgkafka.NewProducer(
		pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers),
		pkgkafka.NewProducerMetrics(reg),
		logger,
	)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	// Build the dependency graph.
	credentials := auth.NewCredentials(
		auth.NewPasswordHasher(cfg.BcryptCost),
		auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiry),
	)
	userService := service.NewUserService(
		postgres.NewStore(a.pool),
		credentials,
		a.dispatcher,
		event.NewProducer(a.producer, logger),
		logger,
	)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return a.pool.Ping(ctx)
	})
	healthHandler.Register("kafka", func(ctx context.Context) error {
		return a.producer.Ping(ctx)
	})
	if a.redis != nil {
		healthHandler.Register("redis", func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		})
	}

	// HTTP router.
	router := handler.NewRouter(handler.RouterConfig{
		ServiceName: cfg.ServiceName(),
		Users:       userService,
		Tokens:      credentials,
		Health:      healthHandler,
		Logger:      logger,
		CORS:        middleware.CORSConfig{AllowedOrigins: cfg.CORSAllowedOrigins},
		Registry:    reg,
	})

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// newIdempotencyStore returns a Redis-backed store when Redis is configured
// and an in-process one otherwise.
func (a *App) newIdempotencyStore(ctx context.Context) (notification.IdempotencyStore, error) {
	redisCfg := a.cfg.Redis()
	if !redisCfg.Enabled() {
		a.logger.Warn("REDIS_HOST not set, notification dedup is process-local")
		return notification.NewMemoryIdempotencyStore(a.cfg.NotifyDedupTTL), nil
	}

	client, err := database.NewRedisClient(ctx, redisCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.redis = client
	a.logger.Info("connected to Redis", slog.String("addr", redisCfg.Addr()))
	return notification.NewRedisIdempotencyStore(client, a.cfg.NotifyDedupTTL), nil
}

// newSender picks SMTP behind a circuit breaker when an SMTP host is set, and
// the logging sender otherwise.
func newSender(cfg *config.Config, reg prometheus.Registerer, logger *slog.Logger) notification.Sender {
	if cfg.SMTPHost == "" {
		return notification.NewLogSender(logger)
	}
	smtp := notification.NewSMTPSender(notification.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})
	return notification.NewBreakerSender(smtp, notification.DefaultBreakerConfig("smtp"), reg, logger)
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
		return errors.Join(err, a.Shutdown())
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in order:
// 1. HTTP server (drain in-flight requests)
// 2. Notification dispatcher (finish in-flight deliveries)
// 3. Kafka producer, Redis, PostgreSQL pool
// 4. Tracer (flush spans recorded by the steps above)
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownGracePeriod)
	defer cancel()

	var errs []error

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.dispatcher.Close(ctx); err != nil {
		a.logger.Error("notification dispatcher close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	errs = append(errs, a.closeResources())

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// closeResources releases the clients opened by NewApp. It tolerates
// partially initialized apps.
func (a *App) closeResources() error {
	var errs []error

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.pool != nil {
		a.pool.Close()
	}

	if a.tracerShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), tracerFlushTime)
		defer cancel()
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
