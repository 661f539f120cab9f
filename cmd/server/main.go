// Package main provides the entry point for the alert-core server.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/opsgrid/alert-core/internal/api"
	"github.com/opsgrid/alert-core/internal/audit"
	"github.com/opsgrid/alert-core/internal/config"
	"github.com/opsgrid/alert-core/internal/dedup"
	"github.com/opsgrid/alert-core/internal/ingest"
	"github.com/opsgrid/alert-core/internal/lifecycle"
	"github.com/opsgrid/alert-core/internal/lock"
	"github.com/opsgrid/alert-core/internal/logging"
	"github.com/opsgrid/alert-core/internal/metrics"
	"github.com/opsgrid/alert-core/internal/normalize"
	"github.com/opsgrid/alert-core/internal/priority"
	"github.com/opsgrid/alert-core/internal/rule"
	"github.com/opsgrid/alert-core/internal/store"
)

func main() {
	cfg := config.Load()
	logger := logging.NewLogger("alert-core", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	alertStore, ruleStore, recorder, cleanup, err := buildStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize stores")
	}
	defer cleanup()

	ruleCache := rule.NewCache(ruleStore, cfg.RuleCacheTTL)

	locker, err := buildLocker(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize fingerprint locking")
	}

	normalizer := normalize.New(ruleCache, recorder, logger)
	prioritizer := priority.New(ruleCache, recorder, logger)
	deduplicator := dedup.New(alertStore, locker, recorder, logger)
	pipeline := ingest.New(normalizer, prioritizer, deduplicator, logger)
	machine := lifecycle.New(alertStore, recorder, logger)

	router := buildRouter(cfg, logger, pipeline, alertStore, machine, ruleCache)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server exited properly")
}

// buildStores wires Postgres-backed stores when DATABASE_URL is set, and the
// in-memory implementations otherwise. The returned cleanup closes whatever
// was opened.
func buildStores(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (store.AlertStore, rule.Store, audit.Recorder, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Warn().Msg("DATABASE_URL not set, using in-memory stores")
		return store.NewInMemoryAlertStore(), rule.NewInMemoryStore(), audit.NewMemoryRecorder(), func() {}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, nil, nil, err
	}

	// Rule administration goes through database/sql so the same store code
	// serves production and sqlmock-backed tests.
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		pool.Close()
		return nil, nil, nil, nil, err
	}

	cleanup := func() {
		_ = db.Close()
		pool.Close()
	}
	return store.NewPostgresAlertStore(pool), rule.NewPostgresStore(db), audit.NewPostgresRecorder(pool), cleanup, nil
}

// buildLocker prefers Redis-backed fingerprint locks so deduplication stays
// serialized across replicas. Without REDIS_ADDR a sharded in-process mutex
// covers the single-instance case.
func buildLocker(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (lock.FingerprintLocker, error) {
	if cfg.RedisAddr == "" {
		logger.Warn().Msg("REDIS_ADDR not set, using in-process fingerprint locks")
		return lock.NewKeyed(0), nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return lock.NewRedisLocker(client, "alert-core:fplock", cfg.FingerprintLockTTL), nil
}

func buildRouter(cfg *config.Config, logger zerolog.Logger, pipeline *ingest.Pipeline, alerts store.AlertStore, machine *lifecycle.Machine, rules rule.Store) *gin.Engine {
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logging.RequestLogger(logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	router.GET("/metrics", metrics.Handler())

	handler := api.NewHandler(pipeline, alerts, machine, rules, logger)
	handler.RegisterRoutes(router.Group("/api/v1"), api.Limits{
		IngestMaxBytes: cfg.IngestMaxPayloadSize,
		AdminMaxBytes:  cfg.AdminMaxPayloadSize,
	})

	return router
}
