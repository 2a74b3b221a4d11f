package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	pkgkafka "github.com/autolane/search-service/pkg/kafka"

	"github.com/autolane/search-service/internal/cache"
	"github.com/autolane/search-service/internal/config"
	"github.com/autolane/search-service/internal/engine"
	esengine "github.com/autolane/search-service/internal/engine/elasticsearch"
	"github.com/autolane/search-service/internal/engine/memory"
	"github.com/autolane/search-service/internal/event"
	handler "github.com/autolane/search-service/internal/handler/http"
	"github.com/autolane/search-service/internal/indexer"
	"github.com/autolane/search-service/internal/service"
	"github.com/autolane/search-service/internal/upstream"
	"github.com/autolane/search-service/pkg/health"
	"github.com/autolane/search-service/pkg/httpclient"
	"github.com/autolane/search-service/pkg/tracing"
)

// App wires together all dependencies and runs the search service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	store          cache.Store
	consumers      []*pkgkafka.Consumer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "search",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Initialize search engine based on configuration.
	var eng engine.SearchEngine
	var esEng *esengine.Engine
	switch cfg.SearchEngine {
	case "elasticsearch":
		esEng, err = esengine.New(cfg.ElasticsearchURL, cfg.ElasticsearchIndex, logger)
		if err != nil {
			return nil, fmt.Errorf("init elasticsearch engine: %w", err)
		}
		eng = esEng
		logger.Info("elasticsearch search engine initialized",
			slog.String("url", cfg.ElasticsearchURL),
			slog.String("index", cfg.ElasticsearchIndex),
		)
	default:
		eng = memory.New()
		logger.Info("in-memory search engine initialized")
	}

	// Initialize the query cache.
	var store cache.Store
	switch cfg.CacheBackend {
	case "redis":
		redisStore, err := cache.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("init redis cache: %w", err)
		}
		store = redisStore
		logger.Info("redis query cache initialized", slog.String("addr", cfg.RedisAddr))
	default:
		store = cache.NewMemoryStore()
		logger.Info("in-memory query cache initialized")
	}

	ix := indexer.New(eng, store, logger)

	// Upstream read APIs walked during a full reindex. Each client goes
	// through its own circuit breaker so one flapping service does not
	// poison reindex calls to the others.
	hc := httpclient.New(httpclient.DefaultConfig())
	breaker := func(name string) *httpclient.CircuitBreakerClient {
		return httpclient.NewCircuitBreakerClient(hc, httpclient.DefaultCircuitBreakerConfig(name), logger)
	}
	sources := []upstream.Source{
		upstream.NewOfferClient(cfg.OfferServiceURL, breaker("offer-service")),
		upstream.NewPurchaseClient(cfg.PurchaseServiceURL, breaker("purchase-service")),
		upstream.NewTransportClient(cfg.TransportServiceURL, breaker("transport-service")),
	}

	searchService := service.NewSearchService(eng, ix, store, cfg.CacheTTL, sources, logger)

	// One consumer per change-event topic, all in the same group.
	eventConsumer := event.NewConsumer(ix, logger)

	var consumers []*pkgkafka.Consumer
	for _, topic := range event.Topics() {
		consumerCfg := pkgkafka.ConsumerConfig{
			Brokers:  cfg.KafkaBrokers,
			GroupID:  event.ConsumerGroup,
			Topic:    topic,
			MinBytes: 1,
			MaxBytes: 10e6, // 10 MB
		}
		c := pkgkafka.NewConsumer(consumerCfg, eventConsumer.Handle, logger)
		consumers = append(consumers, c)
	}
	logger.Info("kafka consumers initialized",
		slog.Any("brokers", cfg.KafkaBrokers),
		slog.Int("topic_count", len(event.Topics())),
	)

	// Health checks.
	healthHandler := health.NewHandler()
	if esEng != nil {
		healthHandler.Register("elasticsearch", esEng.Ping)
	}
	healthHandler.Register("cache", store.Ping)
	healthHandler.Register("kafka", func(ctx context.Context) error {
		return pkgkafka.PingBrokers(ctx, cfg.KafkaBrokers)
	})

	// HTTP router.
	router := handler.NewRouter(ctx, searchService, healthHandler, logger, cfg.PprofAllowedCIDRs)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		store:          store,
		consumers:      consumers,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the HTTP server and Kafka consumers, blocking until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1+len(a.consumers))

	// Start Kafka consumers in background goroutines.
	for _, c := range a.consumers {
		c := c
		go func() {
			if err := c.Start(ctx); err != nil {
				errCh <- fmt.Errorf("kafka consumer: %w", err)
			}
		}()
	}

	// Start HTTP server.
	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// Graceful HTTP server shutdown with a 10-second deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// Close Kafka consumers.
	for _, c := range a.consumers {
		if err := c.Close(); err != nil {
			a.logger.Error("kafka consumer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// Close the cache connection last; consumers invalidate through it.
	if err := a.store.Close(); err != nil {
		a.logger.Error("cache close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// Flush pending trace spans.
	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(shutdownCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
