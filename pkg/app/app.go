// Package app assembles the docquery service from its configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/nimburion/docquery/pkg/collections"
	"github.com/nimburion/docquery/pkg/config"
	"github.com/nimburion/docquery/pkg/health"
	"github.com/nimburion/docquery/pkg/observability/logger"
	"github.com/nimburion/docquery/pkg/observability/metrics"
	"github.com/nimburion/docquery/pkg/observability/tracing"
	"github.com/nimburion/docquery/pkg/query"
	"github.com/nimburion/docquery/pkg/repository/document"
	"github.com/nimburion/docquery/pkg/resilience"
	"github.com/nimburion/docquery/pkg/server"
	ginrouter "github.com/nimburion/docquery/pkg/server/router/gin"
	"github.com/nimburion/docquery/pkg/store"
	"github.com/nimburion/docquery/pkg/store/mongodb"
	"github.com/nimburion/docquery/pkg/store/redis"
	"github.com/nimburion/docquery/pkg/version"
)

// App owns every long-lived component of the service.
type App struct {
	cfg *config.Config
	log logger.Logger

	tracer     *tracing.TracerProvider
	mongo      *mongodb.Adapter
	redis      *redis.RedisAdapter
	engine     *query.Engine
	health     *health.Registry
	metrics    *metrics.Registry
	public     *server.PublicAPIServer
	management *server.ManagementServer
}

// New connects to the backing services and builds the HTTP servers.
// Components created before a failure are released.
func New(ctx context.Context, cfg *config.Config, log logger.Logger) (_ *App, err error) {
	a := &App{cfg: cfg, log: log}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	a.tracer, err = tracing.NewTracerProvider(ctx, tracing.TracerConfig{
		ServiceName:    cfg.Service.Name,
		ServiceVersion: version.Current(cfg.Service.Name).Version,
		Environment:    cfg.Service.Environment,
		Endpoint:       cfg.Observability.TracingEndpoint,
		SampleRate:     cfg.Observability.TracingSampleRate,
		Enabled:        cfg.Observability.TracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("create tracer provider: %w", err)
	}
	if a.tracer.Enabled() {
		log.Info("tracing enabled", "endpoint", cfg.Observability.TracingEndpoint, "sample_rate", cfg.Observability.TracingSampleRate)
	}

	a.mongo, err = mongodb.NewAdapter(mongoConfig(cfg.Database), log)
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	executor, err := document.NewMongoDBExecutor(a.mongo)
	if err != nil {
		return nil, err
	}

	a.health = health.NewRegistry()
	a.health.Register(health.NewDatabaseChecker("mongodb", a.mongo))

	var cache query.ResultCache
	if cfg.Cache.Enabled {
		a.redis, err = redis.NewRedisAdapter(redisConfig(cfg.Cache), log)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		breaker := resilience.NewCircuitBreaker(cfg.Cache.CircuitBreakerFailures, cfg.Cache.CircuitBreakerReset,
			resilience.WithStateChange(func(from, to resilience.State) {
				log.Warn("result cache circuit breaker changed state", "from", from.String(), "to", to.String())
			}),
		)
		cache = redis.NewResultCache(a.redis, redis.WithCircuitBreaker(breaker))
		a.health.Register(health.NewCacheChecker("redis", a.redis))
	}

	a.metrics = metrics.NewRegistry()
	a.engine, err = NewEngine(cfg, executor, cache, metrics.NewQueryMetrics(a.metrics), log)
	if err != nil {
		return nil, err
	}
	if cfg.Database.EnsureIndexes {
		ixCtx, cancel := context.WithTimeout(ctx, cfg.Database.ConnectTimeout)
		// The server still answers reads without indexes; uniqueness is best effort until they exist.
		if err := a.engine.EnsureIndexes(ixCtx); err != nil {
			log.Warn("ensure collection indexes", "error", err)
		}
		cancel()
	}

	publicRouter := ginrouter.NewRouter()
	a.public = server.NewPublicAPIServerWithConfig(cfg.HTTP, cfg.RateLimit, cfg.Observability, publicRouter, log)
	collections.NewHandler(a.engine, log).Register(publicRouter)

	if cfg.Management.Enabled {
		a.management = server.NewManagementServer(cfg.Management, ginrouter.NewRouter(), log, a.health, a.metrics)
	}
	return a, nil
}

// NewEngine builds the query engine from cfg. cache may be nil.
func NewEngine(cfg *config.Config, st query.Store, cache query.ResultCache, observer query.Observer, log logger.Logger) (*query.Engine, error) {
	registry, err := query.NewRegistry(query.DefaultCollections(), query.RegistryOptions{
		DefaultCollection: cfg.Query.DefaultCollection,
		Strict:            cfg.Query.StrictCollections,
	})
	if err != nil {
		return nil, fmt.Errorf("build collection registry: %w", err)
	}

	mode, ok := query.ParseMatchMode(cfg.Query.DefaultMatchMode)
	if !ok {
		return nil, fmt.Errorf("unknown default match mode %q", cfg.Query.DefaultMatchMode)
	}

	opts := []query.Option{
		query.WithLogger(log),
		query.WithSeparator(cfg.Query.Separator),
		query.WithDefaultMatchMode(mode),
		query.WithMaxRecordsPerSet(cfg.Query.MaxRecordsPerSet),
	}
	if observer != nil {
		opts = append(opts, query.WithObserver(observer))
	}
	if cache != nil {
		opts = append(opts, query.WithResultCache(cache, cfg.Cache.TTL))
	}
	return query.NewEngine(st, registry, opts...), nil
}

// Run serves until ctx is cancelled or a server fails.
func (a *App) Run(ctx context.Context) error {
	a.log.Info("service starting",
		"version", version.Current(a.cfg.Service.Name).String(),
		"http_port", a.cfg.HTTP.Port,
		"management_enabled", a.management != nil,
		"cache_enabled", a.redis != nil,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.public.Start(gctx) })
	if a.management != nil {
		g.Go(func() error { return a.management.Start(gctx) })
	}
	return g.Wait()
}

// Public returns the public API server.
func (a *App) Public() *server.PublicAPIServer {
	return a.public
}

// Management returns the management server, nil when disabled.
func (a *App) Management() *server.ManagementServer {
	return a.management
}

// Close releases the store connections and flushes pending spans.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	var adapters []store.Adapter
	if a.mongo != nil {
		adapters = append(adapters, a.mongo)
	}
	if a.redis != nil {
		adapters = append(adapters, a.redis)
	}
	if err := store.CloseAll(adapters...); err != nil {
		errs = append(errs, fmt.Errorf("close stores: %w", err))
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracer: %w", err))
		}
	}
	return errors.Join(errs...)
}

// CheckDependencies connects to every configured backing service once.
func CheckDependencies(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	reg := health.NewRegistry()

	mongo, err := mongodb.NewAdapter(mongoConfig(cfg.Database), log)
	if err != nil {
		return fmt.Errorf("mongodb: %w", err)
	}
	adapters := []store.Adapter{mongo}
	reg.Register(health.NewDatabaseChecker("mongodb", mongo))

	if cfg.Cache.Enabled {
		rdb, err := redis.NewRedisAdapter(redisConfig(cfg.Cache), log)
		if err != nil {
			_ = store.CloseAll(adapters...)
			return fmt.Errorf("redis: %w", err)
		}
		adapters = append(adapters, rdb)
		reg.Register(health.NewCacheChecker("redis", rdb))
	}
	defer func() { _ = store.CloseAll(adapters...) }()

	result := reg.Check(ctx)
	for _, check := range result.Checks {
		log.Info("dependency checked", "name", check.Name, "status", check.Status, "error", check.Error)
	}
	if !result.IsHealthy() {
		return fmt.Errorf("dependencies not healthy: %s", result.Status)
	}
	return nil
}

func mongoConfig(cfg config.DatabaseConfig) mongodb.Config {
	return mongodb.Config{
		URL:              cfg.URL,
		Database:         cfg.DatabaseName,
		MaxPoolSize:      cfg.MaxPoolSize,
		ConnectTimeout:   cfg.ConnectTimeout,
		OperationTimeout: cfg.QueryTimeout,
	}
}

func redisConfig(cfg config.CacheConfig) redis.Config {
	return redis.Config{
		URL:              cfg.URL,
		MaxConns:         cfg.MaxConns,
		OperationTimeout: cfg.OperationTimeout,
	}
}
