package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"

	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/common"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/config"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/db"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/obs"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/ratelimit"
)

// Dependencies enumerates core services shared across modules.
type Dependencies struct {
	DB              *pgxpool.Pool
	Redis           *redis.Client
	Validator       *validator.Validate
	LimiterStore    limiter.Store
	CatalogLimiter  *limiter.Limiter
	MetricsRegistry prometheus.Registerer
	Logger          zerolog.Logger
}

// Options toggles optional instrumentation.
type Options struct {
	ApplicationName string
	RedisMetrics    bool
}

// Open connects Postgres and Redis, runs migrations when configured and
// prepares the shared validator and rate limiter store.
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts Options) (*Dependencies, error) {
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}
	if cfg.MigrateOnStart {
		if err := db.MigrateUp(cfg.DatabaseURL); err != nil {
			return nil, fmt.Errorf("app: migrate: %w", err)
		}
		logger.Info().Msg("migrations applied")
	}

	pool, err := NewPool(ctx, cfg.DatabaseURL, opts.ApplicationName)
	if err != nil {
		return nil, err
	}
	rdb, err := NewRedis(ctx, cfg.RedisURL, logger, opts.RedisMetrics)
	if err != nil {
		pool.Close()
		return nil, err
	}
	store, err := ratelimit.NewStore(rdb, "limiter:catalog")
	if err != nil {
		pool.Close()
		_ = rdb.Close()
		return nil, fmt.Errorf("app: limiter store: %w", err)
	}
	catalogLimiter, err := ratelimit.NewIPLimiter(store, cfg.CatalogRateLimit)
	if err != nil {
		pool.Close()
		_ = rdb.Close()
		return nil, err
	}
	return &Dependencies{
		DB:              pool,
		Redis:           rdb,
		Validator:       common.NewValidator(),
		LimiterStore:    store,
		CatalogLimiter:  catalogLimiter,
		MetricsRegistry: prometheus.DefaultRegisterer,
		Logger:          logger,
	}, nil
}

// NewPool builds a traced pgx pool and verifies connectivity.
func NewPool(ctx context.Context, databaseURL, applicationName string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("app: parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	if applicationName == "" {
		applicationName = "pos-api"
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = applicationName

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("app: connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("app: ping database: %w", err)
	}
	return pool, nil
}

// NewRedis builds an instrumented Redis client and verifies connectivity.
func NewRedis(ctx context.Context, redisURL string, logger zerolog.Logger, withMetrics bool) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("app: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if withMetrics {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("app: ping redis: %w", err)
	}
	return client, nil
}

// Close releases the pool and Redis client.
func (d *Dependencies) Close() {
	if d == nil {
		return
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Error().Err(err).Msg("close redis")
		}
	}
	if d.DB != nil {
		d.DB.Close()
	}
}

// PingDB implements health.Checker.
func (d *Dependencies) PingDB(ctx context.Context, timeout time.Duration) error {
	if d == nil || d.DB == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return d.DB.Ping(ctx)
}

// PingRedis implements health.Checker.
func (d *Dependencies) PingRedis(ctx context.Context, timeout time.Duration) error {
	if d == nil || d.Redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return d.Redis.Ping(ctx).Err()
}
