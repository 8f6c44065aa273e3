package app

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/RobiinJonsson/marketdata-dashboard-go/internal/aggregate"
	"github.com/RobiinJonsson/marketdata-dashboard-go/internal/cache"
	"github.com/RobiinJonsson/marketdata-dashboard-go/internal/config"
	"github.com/RobiinJonsson/marketdata-dashboard-go/internal/httpclient"
	"github.com/RobiinJonsson/marketdata-dashboard-go/internal/metrics"
	"github.com/RobiinJonsson/marketdata-dashboard-go/internal/service"
	"github.com/RobiinJonsson/marketdata-dashboard-go/internal/util"
)

// Container bundles the assembled data-access layer.
type Container struct {
	Config *config.Config
	Logger *zap.Logger

	Client        *httpclient.Client
	Instruments   *service.InstrumentService
	Transparency  *service.TransparencyService
	Venues        *service.VenueService
	LegalEntities *service.LegalEntityService
	Relationships *service.RelationshipService
	Aggregator    *aggregate.Aggregator
	Metrics       metrics.Recorder

	closers []func()
}

// Build wires cache, engine, adapters and aggregator from cfg. On failure everything created
// so far is released.
func Build(cfg *config.Config, logger *zap.Logger) (container *Container, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	var closers []func()
	defer func() {
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		}
	}()

	// Response cache
	var store cache.Store
	if cfg.Redis.Enabled {
		redisStore, err := cache.NewRedisStore(cache.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis cache: %w", err)
		}
		store = redisStore
	} else {
		store = cache.NewMemoryStore()
	}
	closers = append(closers, func() {
		_ = store.Close()
	})

	// Metrics
	recorder := metrics.Noop()
	if cfg.Metrics.Addr != "" {
		prom := metrics.NewPrometheusRecorder()
		closers = append(closers, prom.Serve(cfg.Metrics.Addr, logger))
		recorder = prom
	}

	// Request engine
	breaker := util.NewCircuitBreaker("refdata-api", cfg.API.CircuitThreshold, cfg.API.CircuitReset, logger)
	client := httpclient.New(cfg.API.BaseURL,
		httpclient.WithStore(store),
		httpclient.WithCacheTTL(cfg.Cache.TTL),
		httpclient.WithDefaults(httpclient.RequestConfig{
			Timeout: cfg.API.Timeout,
			Retries: httpclient.Int(cfg.API.Retries),
		}),
		httpclient.WithBaseDelay(cfg.API.RetryBaseDelay),
		httpclient.WithRateLimit(cfg.API.RateLimitRPS, 1),
		httpclient.WithCircuitBreaker(breaker),
		httpclient.WithRecorder(recorder),
		httpclient.WithLogger(logger),
	)

	// Adapters share the engine defaults; per-adapter overrides go here.
	defaults := httpclient.RequestConfig{}
	instruments := service.NewInstrumentService(client, defaults, logger)
	transparency := service.NewTransparencyService(client, defaults, logger)
	venues := service.NewVenueService(client, defaults, logger)
	entities := service.NewLegalEntityService(client, defaults, logger)
	relationships := service.NewRelationshipService(client, defaults, logger)

	aggregator := aggregate.NewAggregator(aggregate.Sources{
		Instruments:   instruments,
		Transparency:  transparency,
		LegalEntities: entities,
		Relationships: relationships,
	}, logger, cfg.Aggregate.Concurrency)

	logger.Info("Data access layer ready",
		zap.String("base_url", cfg.API.BaseURL),
		zap.String("cache_backend", cfg.Cache.Backend),
		zap.Duration("cache_ttl", cfg.Cache.TTL),
		zap.Int("retries", cfg.API.Retries),
		zap.Bool("circuit_breaker", breaker != nil),
	)

	return &Container{
		Config:        cfg,
		Logger:        logger,
		Client:        client,
		Instruments:   instruments,
		Transparency:  transparency,
		Venues:        venues,
		LegalEntities: entities,
		Relationships: relationships,
		Aggregator:    aggregator,
		Metrics:       recorder,
		closers:       closers,
	}, nil
}

// Close releases resources in reverse creation order.
func (c *Container) Close() {
	if c == nil {
		return
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}
