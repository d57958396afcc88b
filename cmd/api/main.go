// Package main is the entry point for the progress service REST API.
//
// The architecture follows Clean Architecture and DDD:
// - Domain: progress records, assessment results, certificates, analytics
// - Application: use case orchestration (Commands/Queries)
// - Infrastructure: PostgreSQL store, Redis cache, event bus
// - Interface: HTTP endpoints
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/edulearn/progress-service/config"
	"github.com/edulearn/progress-service/internal/application/command"
	"github.com/edulearn/progress-service/internal/application/query"
	"github.com/edulearn/progress-service/internal/domain/analytics"
	"github.com/edulearn/progress-service/internal/domain/shared"
	"github.com/edulearn/progress-service/internal/infrastructure/messaging"
	"github.com/edulearn/progress-service/internal/infrastructure/persistence/postgres"
	"github.com/edulearn/progress-service/internal/infrastructure/persistence/redis"
	httpserver "github.com/edulearn/progress-service/internal/interface/http"
	"github.com/edulearn/progress-service/internal/interface/http/handlers"
	"github.com/edulearn/progress-service/pkg/circuitbreaker"
	"github.com/edulearn/progress-service/pkg/logger"
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
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting progress service API",
		"env", string(cfg.App.Environment),
		"version", cfg.App.Version,
		"debug", cfg.App.Debug,
	)

	apiLog := logger.New(logger.Options{
		Output: os.Stdout,
		Level:  logger.ParseLevel(cfg.Observability.LogLevel),
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 3. POSTGRESQL
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	dbConn, err := connectDatabase(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()

	if err := dbConn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	log.Info("database connection established")

	if cfg.Database.AutoMigrate {
		log.Info("running database migrations...")
		migrator := postgres.NewMigrator(dbConn)
		if err := migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS (optional)
	// ─────────────────────────────────────────────────────────────────────────
	var cache *redis.Cache
	var snapshotCache analytics.SnapshotCache = analytics.NoopSnapshotCache{}

	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis...")
		cache, err = redis.NewCache(redisConfig(cfg))
		if err != nil {
			log.Warn("failed to connect to Redis, running store-only", "error", err)
			cache = nil
		} else {
			defer cache.Close()
			snapshotCache = redis.NewAnalyticsCache(cache, cfg.Analytics.SnapshotTTL)
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. EVENT BUS
	// Redis pub/sub fans events out to other instances; without Redis
	// events stay in-process.
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing event bus...")
	busConfig := messaging.DefaultInMemoryEventBusConfig()
	busConfig.Logger = log

	var eventBus shared.EventBus
	if cache != nil {
		redisBus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         messaging.NewCacheRedisClient(cache),
			ChannelName:    cfg.Events.ChannelName,
			InstanceID:     cfg.Events.InstanceID,
			LocalBusConfig: busConfig,
			Logger:         log,
		})
		if err != nil {
			return fmt.Errorf("failed to create event bus: %w", err)
		}
		defer redisBus.Close()
		eventBus = redisBus
	} else {
		memBus := messaging.NewInMemoryEventBus(busConfig)
		defer memBus.Close()
		eventBus = memBus
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. REPOSITORIES & APPLICATION LAYER
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing application layer...")

	progressRepo := postgres.NewProgressRepository(dbConn)
	assessmentRepo := postgres.NewAssessmentRepository(dbConn)
	certificateRepo := postgres.NewCertificateRepository(dbConn)
	readModel := postgres.NewReadModel(dbConn)
	uowFactory := postgres.NewUnitOfWorkFactory(dbConn)

	cacheBreaker := circuitbreaker.CacheBreaker(func(name string, from, to circuitbreaker.State) {
		log.Warn("circuit breaker state changed",
			"breaker", name,
			"from", from.String(),
			"to", to.String(),
		)
	})

	upsertProgress := command.NewUpsertProgressHandler(uowFactory, snapshotCache, eventBus, cfg.Certificates.BaseURL)
	recordAssessment := command.NewRecordAssessmentHandler(uowFactory, snapshotCache, eventBus)
	issueCertificate := command.NewIssueCertificateHandler(uowFactory, snapshotCache, eventBus, cfg.Certificates.BaseURL)

	getProgress := query.NewGetProgressHandler(progressRepo, assessmentRepo)
	listProgress := query.NewListProgressHandler(progressRepo)
	getUserAnalytics := query.NewGetUserAnalyticsHandler(readModel, snapshotCache, cacheBreaker)
	getCourseAnalytics := query.NewGetCourseAnalyticsHandler(readModel, snapshotCache, cacheBreaker)
	listCertificates := query.NewListCertificatesHandler(certificateRepo)
	getServiceMetrics := query.NewGetServiceMetricsHandler(readModel)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. HEALTH CHECKS
	// ─────────────────────────────────────────────────────────────────────────
	healthChecker := handlers.NewCompositeHealthChecker(cfg.App.Version)
	healthChecker.AddCheck("database", handlers.NewDatabaseCheck(dbConn))
	if cache != nil {
		healthChecker.AddCheck("cache", handlers.NewCacheCheck(cache))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing HTTP server...")

	httpConfig := httpserver.DefaultConfig()
	httpConfig.Host = cfg.HTTP.Host
	httpConfig.Port = cfg.HTTP.Port
	httpConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	httpConfig.WriteTimeout = cfg.HTTP.WriteTimeout
	httpConfig.IdleTimeout = cfg.HTTP.IdleTimeout
	httpConfig.MaxBodyBytes = cfg.HTTP.MaxBodyBytes
	httpConfig.EnableCORS = cfg.HTTP.EnableCORS
	httpConfig.AllowedOrigins = cfg.HTTP.AllowedOrigins
	httpConfig.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	httpConfig.APIKeyHeader = cfg.HTTP.APIKeyHeader
	httpConfig.APIKeys = cfg.HTTP.APIKeys
	httpConfig.AnalyticsCacheMaxAge = cfg.HTTP.AnalyticsCacheMaxAge

	httpServer := httpserver.NewServer(httpConfig, httpserver.Dependencies{
		UpsertProgress:     upsertProgress,
		RecordAssessment:   recordAssessment,
		IssueCertificate:   issueCertificate,
		GetProgress:        getProgress,
		ListProgress:       listProgress,
		GetUserAnalytics:   getUserAnalytics,
		GetCourseAnalytics: getCourseAnalytics,
		ListCertificates:   listCertificates,
		GetServiceMetrics:  getServiceMetrics,
		Logger:             apiLog,
		HealthChecker:      healthChecker,
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 9. START & GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	errCh := make(chan error, 1)

	go func() {
		log.Info("starting HTTP server", "address", httpServer.Address())
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	log.Info("progress service API is running", "address", httpServer.Address())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		log.Error("service error", "error", err)
		return err
	case <-ctx.Done():
		log.Info("context cancelled")
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", "error", err)
		return err
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
