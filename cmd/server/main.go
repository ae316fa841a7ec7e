package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/notifyhub/editorial-notify/internal/api"
	"github.com/notifyhub/editorial-notify/internal/api/handler"
	"github.com/notifyhub/editorial-notify/internal/channel/email"
	"github.com/notifyhub/editorial-notify/internal/config"
	"github.com/notifyhub/editorial-notify/internal/db"
	"github.com/notifyhub/editorial-notify/internal/domain"
	"github.com/notifyhub/editorial-notify/internal/engine"
	"github.com/notifyhub/editorial-notify/internal/metrics"
	"github.com/notifyhub/editorial-notify/internal/provider"
	"github.com/notifyhub/editorial-notify/internal/queue"
	"github.com/notifyhub/editorial-notify/internal/ratelimiter"
	"github.com/notifyhub/editorial-notify/internal/repository"
	"github.com/notifyhub/editorial-notify/internal/scheduler"
	"github.com/notifyhub/editorial-notify/internal/seed"
	"github.com/notifyhub/editorial-notify/internal/service"
	"github.com/notifyhub/editorial-notify/internal/step"
	"github.com/notifyhub/editorial-notify/internal/worker"
)

func main() {
	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("failed to load config", zap.Error(err))
	}

	logger := newLogger(cfg.LogLevel)
	defer logger.Sync() //nolint:errcheck

	ctx := context.Background()

	checks := map[string]handler.HealthCheck{}

	// ---- database ----
	var pool *pgxpool.Pool
	if cfg.NeedsPostgres() {
		pool, err = db.Connect(ctx, cfg)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer pool.Close()

		if err := db.Migrate(cfg.DatabaseURL, "migrations"); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
		logger.Info("database migrations applied")
		checks["postgres"] = pool.Ping
	}

	stores, closeStores, err := openStores(ctx, cfg, pool)
	if err != nil {
		logger.Fatal("failed to open stores", zap.Error(err))
	}
	defer closeStores()

	if cfg.SeedFile != "" {
		if err := applySeed(ctx, cfg.SeedFile, stores); err != nil {
			logger.Fatal("failed to load seed file", zap.Error(err))
		}
		logger.Info("seed file applied", zap.String("path", cfg.SeedFile))
	}

	// ---- core dependencies ----
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	onJob, onQueueDepth := m.WorkerHooks()

	site := domain.Site{Name: cfg.SiteName, URL: cfg.SiteURL, AdminEmail: cfg.AdminEmail}
	steps := step.NewRegistry()
	if err := step.RegisterDefaults(steps, step.Dependencies{
		Content: stores.content,
		Users:   stores.users,
		Site:    site,
		Logger:  logger,
	}); err != nil {
		logger.Fatal("failed to register steps", zap.Error(err))
	}

	var mailer provider.Mailer = provider.NewLogMailer(logger)
	if cfg.MailerURL != "" {
		mailer = provider.NewWebhookMailer(cfg.MailerURL, cfg.MailerTimeout)
	}
	limiter := ratelimiter.New(cfg.RateLimit)
	steps.MustRegister(
		email.New(mailer, limiter, cfg.MailFrom, logger.Named("email")),
		m,
	)

	eng := engine.New(engine.Deps{
		Workflows: stores.workflows,
		Meta:      stores.meta,
		Content:   stores.content,
		Users:     stores.users,
		Steps:     steps,
	}, engine.Options{
		DefaultChannel: cfg.DefaultChannel,
		Site:           site,
		Policy:         engine.ScheduledPolicy(cfg.ScheduledPolicy),
	}, logger)

	backend, closeBackend, err := openSchedulerBackend(ctx, cfg, pool, checks)
	if err != nil {
		logger.Fatal("failed to open scheduler backend", zap.Error(err))
	}
	defer closeBackend()

	adapter := scheduler.NewAdapter(backend, scheduler.Config{
		Delay: cfg.ScheduleDelay,
		Round: cfg.ScheduleRound,
	}, logger, scheduler.WithOnScheduled(func(domain.ScheduledNotification) { onJob("scheduled") }))
	if cfg.AsyncDelivery {
		eng.SetRunner(adapter)
		logger.Info("deferred delivery enabled",
			zap.Duration("delay", cfg.ScheduleDelay),
			zap.Duration("round", cfg.ScheduleRound),
		)
	}

	q := queue.New(cfg.SchedulerQueueSize)
	svc := service.NewEventService(eng, adapter, stores.meta, stores.users, m, logger)

	// ---- worker pool ----
	// Context for all background goroutines; cancelled on shutdown signal.
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	workers := worker.NewPool(cfg.SchedulerWorkers, q, eng, logger, worker.MetricHooks{
		OnJob:        onJob,
		OnQueueDepth: onQueueDepth,
	})
	workers.Start(workerCtx)

	schedulerW := worker.NewSchedulerWorker(backend, q, cfg.SchedulerInterval, logger, onJob)
	go schedulerW.Run(workerCtx)

	// ---- HTTP server ----
	router := api.NewRouter(svc, q, reg, checks, logger)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start server in a goroutine so it does not block the shutdown listener.
	go func() {
		logger.Info("server starting",
			zap.String("addr", srv.Addr),
			zap.String("store", cfg.StoreDriver),
			zap.String("scheduler", cfg.SchedulerBackend),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	// 1. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// 2. Stop claiming due jobs and signal workers to stop.
	cancelWorkers()

	// 3. Wait for in-flight jobs to finish.
	workers.Wait()

	logger.Info("server stopped cleanly")
}

func newLogger(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewExample()
	}
	return logger
}

// stores are the repositories selected by STORE_DRIVER.
type stores struct {
	workflows interface {
		repository.WorkflowRepository
		repository.WorkflowWriter
	}
	meta    repository.MetaStore
	content repository.ContentRepository
	users   repository.UserRepository
	// host receives seeded host entities; nil when the host tables are
	// owned by someone else.
	host seed.HostWriter
}

func openStores(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) (stores, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		host := repository.NewPgHostRepository(pool)
		return stores{
			workflows: repository.NewPgWorkflowRepository(pool),
			meta:      repository.NewPgMetaStore(pool),
			content:   host,
			users:     host,
		}, func() {}, nil

	case config.DriverSQLite:
		conn, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return stores{}, nil, err
		}
		sqliteStore, err := repository.NewSQLiteStore(conn)
		if err != nil {
			conn.Close()
			return stores{}, nil, err
		}
		// Host entities only come from the seed file on this driver.
		host := repository.NewMemoryStore()
		return stores{
			workflows: sqliteStore,
			meta:      sqliteStore,
			content:   host,
			users:     host,
			host:      host,
		}, func() { conn.Close() }, nil

	default:
		mem := repository.NewMemoryStore()
		return stores{
			workflows: mem,
			meta:      mem,
			content:   mem,
			users:     mem,
			host:      mem,
		}, func() {}, nil
	}
}

func applySeed(ctx context.Context, path string, s stores) error {
	file, err := seed.Load(path)
	if err != nil {
		return err
	}
	return file.Apply(ctx, seed.Targets{Workflows: s.workflows, Meta: s.meta, Host: s.host})
}

func openSchedulerBackend(
	ctx context.Context,
	cfg *config.Config,
	pool *pgxpool.Pool,
	checks map[string]handler.HealthCheck,
) (scheduler.Backend, func(), error) {
	switch cfg.SchedulerBackend {
	case config.DriverPostgres:
		return scheduler.NewPgBackend(pool), func() {}, nil

	case config.DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, errors.Wrap(err, "ping redis")
		}
		checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		return scheduler.NewRedisBackend(client, ""), func() { client.Close() }, nil

	default:
		return scheduler.NewMemoryBackend(), func() {}, nil
	}
}
