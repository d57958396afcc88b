// Package main is the entry point for the progress service worker.
//
// The worker consumes inbound platform events (enrollments, assessment
// grading) from the shared Redis channel, applies them through the same
// command handlers the API uses, and runs background jobs such as
// analytics snapshot warming.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/edulearn/progress-service/config"
	"github.com/edulearn/progress-service/internal/application/command"
	"github.com/edulearn/progress-service/internal/application/eventhandler"
	"github.com/edulearn/progress-service/internal/application/query"
	"github.com/edulearn/progress-service/internal/infrastructure/messaging"
	"github.com/edulearn/progress-service/internal/infrastructure/persistence/postgres"
	"github.com/edulearn/progress-service/internal/infrastructure/persistence/redis"
	"github.com/edulearn/progress-service/internal/infrastructure/scheduler"
	"github.com/edulearn/progress-service/internal/infrastructure/scheduler/jobs"
	"github.com/edulearn/progress-service/pkg/circuitbreaker"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION & LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg)
	log.Info("starting progress service worker",
		"env", string(cfg.App.Environment),
		"version", cfg.App.Version,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. POSTGRESQL
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	dbConn, err := connectDatabase(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbConn.Close()

	if err := dbConn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	if cfg.Database.AutoMigrate {
		migrator := postgres.NewMigrator(dbConn)
		if err := migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. REDIS
	// The worker exists to consume the shared channel; Redis is not
	// optional here.
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to Redis...")
	cache, err := redis.NewCache(redisConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	defer cache.Close()

	snapshotCache := redis.NewAnalyticsCache(cache, cfg.Analytics.SnapshotTTL)

	// ─────────────────────────────────────────────────────────────────────────
	// 4. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	busConfig := messaging.DefaultInMemoryEventBusConfig()
	busConfig.Logger = log
	busConfig.WorkerPoolSize = cfg.Events.WorkerPoolSize

	eventBus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
		Client:         messaging.NewCacheRedisClient(cache),
		ChannelName:    cfg.Events.ChannelName,
		InstanceID:     cfg.Events.InstanceID,
		LocalBusConfig: busConfig,
		Logger:         log,
	})
	if err != nil {
		return fmt.Errorf("failed to create event bus: %w", err)
	}
	defer eventBus.Close()

	// ─────────────────────────────────────────────────────────────────────────
	// 5. APPLICATION LAYER
	// ─────────────────────────────────────────────────────────────────────────
	progressRepo := postgres.NewProgressRepository(dbConn)
	readModel := postgres.NewReadModel(dbConn)
	uowFactory := postgres.NewUnitOfWorkFactory(dbConn)

	upsertProgress := command.NewUpsertProgressHandler(uowFactory, snapshotCache, eventBus, cfg.Certificates.BaseURL)
	recordAssessment := command.NewRecordAssessmentHandler(uowFactory, snapshotCache, eventBus)

	cacheBreaker := circuitbreaker.CacheBreaker(func(name string, from, to circuitbreaker.State) {
		log.Warn("circuit breaker state changed",
			"breaker", name,
			"from", from.String(),
			"to", to.String(),
		)
	})
	userAnalytics := query.NewGetUserAnalyticsHandler(readModel, snapshotCache, cacheBreaker)
	courseAnalytics := query.NewGetCourseAnalyticsHandler(readModel, snapshotCache, cacheBreaker)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. EVENT CONSUMER
	// ─────────────────────────────────────────────────────────────────────────
	var consumer *messaging.Consumer
	if cfg.Events.ConsumerEnabled {
		log.Info("starting event consumer...")

		enrollment := eventhandler.NewOnEnrollmentCreatedHandler(
			progressRepo,
			upsertProgress,
			log,
			eventhandler.DefaultEnrollmentCreatedConfig(),
		)
		graded := eventhandler.NewOnAssessmentGradedHandler(
			recordAssessment,
			log,
			eventhandler.DefaultAssessmentGradedConfig(),
		)

		consumer, err = messaging.NewConsumer(messaging.ConsumerConfig{
			EventBus:         eventBus,
			Enrollment:       enrollment,
			AssessmentGraded: graded,
			HandlerTimeout:   cfg.Events.HandlerTimeout,
			Logger:           log,
		})
		if err != nil {
			return fmt.Errorf("failed to create consumer: %w", err)
		}

		if err := consumer.Start(); err != nil {
			return fmt.Errorf("failed to start consumer: %w", err)
		}
	} else {
		log.Info("event consumer disabled")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.New(scheduler.Config{Logger: log})

	refreshConfig := jobs.DefaultRefreshSnapshotsConfig()
	refreshConfig.Logger = log
	refreshJob := jobs.NewRefreshSnapshotsJob(readModel, userAnalytics, courseAnalytics, refreshConfig)

	if err := sched.Register(refreshJob, scheduler.Every(cfg.Analytics.SnapshotTTL)); err != nil {
		return fmt.Errorf("failed to register job: %w", err)
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. WAIT & GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("progress service worker is running",
		"channel", cfg.Events.ChannelName,
		"consumer_enabled", cfg.Events.ConsumerEnabled,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		log.Info("context cancelled")
	}

	log.Info("starting graceful shutdown...")

	if err := sched.Stop(); err != nil {
		log.Error("failed to stop scheduler", "error", err)
	}
	if consumer != nil {
		if err := consumer.Stop(); err != nil {
			log.Error("failed to stop consumer", "error", err)
		}
	}

	log.Info("shutdown completed successfully")
	return nil
}

// connectDatabase connects using DATABASE_URL when set, otherwise the
// individual DB_* settings.
func connectDatabase(ctx context.Context, cfg *config.Config) (*postgres.Connection, error) {
	if cfg.Database.URL != "" {
		return postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	}

	pgCfg := postgres.DefaultConfig()
	pgCfg.Host = cfg.Database.Host
	pgCfg.Port = cfg.Database.Port
	pgCfg.Database = cfg.Database.Name
	pgCfg.User = cfg.Database.User
	pgCfg.Password = cfg.Database.Password
	pgCfg.SSLMode = cfg.Database.SSLMode
	pgCfg.MaxConns = cfg.Database.MaxConns
	pgCfg.MinConns = cfg.Database.MinConns
	pgCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	pgCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime
	pgCfg.ConnectTimeout = cfg.Database.ConnectTimeout
	pgCfg.QueryTimeout = cfg.Database.QueryTimeout

	return postgres.NewConnection(ctx, pgCfg)
}

// redisConfig maps application config to the cache package config.
func redisConfig(cfg *config.Config) redis.Config {
	redisCfg := redis.DefaultConfig()
	redisCfg.Host = cfg.Redis.Host
	redisCfg.Port = cfg.Redis.Port
	redisCfg.Password = cfg.Redis.Password
	redisCfg.DB = cfg.Redis.DB
	redisCfg.PoolSize = cfg.Redis.PoolSize
	redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
	redisCfg.DialTimeout = cfg.Redis.DialTimeout
	redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
	redisCfg.WriteTimeout = cfg.Redis.WriteTimeout
	return redisCfg
}

// setupLogger configures structured logging.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)

	return log
}
