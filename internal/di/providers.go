// Package di wires the application with google/wire. Provider functions live
// here; wire.go declares the injector and wire_gen.go is its generated form.
package di

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"typegraph-backend/internal/config"
	"typegraph-backend/internal/infrastructure/observability"
	"typegraph-backend/internal/infrastructure/persistence"
	"typegraph-backend/internal/infrastructure/persistence/neo4j"
	"typegraph-backend/internal/interfaces/http/handlers"
	"typegraph-backend/internal/interfaces/http/rest"
	"typegraph-backend/internal/repository"
	"typegraph-backend/internal/service/bulkimport"
	"typegraph-backend/internal/service/gateway"
	"typegraph-backend/internal/service/refresh"
	"typegraph-backend/internal/service/registry"
	"typegraph-backend/internal/service/replace"
)

// Container holds the long-lived components cmd/api drives.
type Container struct {
	Config   *config.Config
	Logging  Logging
	Tracing  *observability.TracerProvider
	Metrics  *observability.Collector
	Store    repository.Store
	Registry *registry.Service
	Gateway  *gateway.Gateway
	Poller   *refresh.Poller
	Handler  http.Handler
}

// Logging pairs the root logger with its level so the level can change at
// runtime.
type Logging struct {
	Logger *zap.Logger
	Level  zap.AtomicLevel
}

func provideLogging(cfg *config.Config) (Logging, func(), error) {
	logger, level, err := observability.NewLogger(cfg.Logging, cfg.Environment)
	if err != nil {
		return Logging{}, nil, err
	}
	cleanup := func() { _ = logger.Sync() }
	return Logging{Logger: logger, Level: level}, cleanup, nil
}

func provideLogger(l Logging) *zap.Logger {
	return l.Logger
}

func provideTracerProvider(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*observability.TracerProvider, func(), error) {
	tp, err := observability.InitTracing(ctx, cfg.Tracing, cfg.Environment)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
	return tp, cleanup, nil
}

func provideTracer(tp *observability.TracerProvider) trace.Tracer {
	return tp.Tracer()
}

// provideCollector returns nil when metrics are disabled; every consumer
// accepts a nil collector.
func provideCollector(cfg *config.Config) *observability.Collector {
	if !cfg.Metrics.Enabled {
		return nil
	}
	return observability.NewCollector(cfg.Metrics.Namespace)
}

func provideNeo4jStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*neo4j.Store, func(), error) {
	store, err := neo4j.NewStore(ctx, neo4j.Config{
		URI:                   cfg.Neo4j.URI,
		Username:              cfg.Neo4j.Username,
		Password:              cfg.Neo4j.Password,
		Database:              cfg.Neo4j.Database,
		MaxConnectionPoolSize: cfg.Neo4j.MaxConnectionPoolSize,
		ConnectionTimeout:     cfg.Neo4j.ConnectionTimeout,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := store.Close(context.Background()); err != nil {
			logger.Warn("neo4j driver close failed", zap.Error(err))
		}
	}
	return store, cleanup, nil
}

func provideDecoratorChain(cfg *config.Config, logger *zap.Logger, collector *observability.Collector, tracer trace.Tracer) *persistence.DecoratorChain {
	return persistence.NewDecoratorChain(cfg, logger, collector, tracer)
}

func provideStore(chain *persistence.DecoratorChain, base *neo4j.Store) repository.Store {
	return chain.Decorate(base)
}

// provideBreakerState takes the store so it runs after Decorate.
func provideBreakerState(chain *persistence.DecoratorChain, _ repository.Store) handlers.StateFunc {
	return chain.BreakerState()
}

func providePinger(store repository.Store) handlers.Pinger {
	return store
}

func provideGateway(store repository.Store, logger *zap.Logger, cfg *config.Config) *gateway.Gateway {
	return gateway.New(store, logger, gateway.Options{
		ActiveProperty: cfg.Graph.ActiveProperty,
		DateProperty:   cfg.Graph.DateProperty,
		BatchSize:      cfg.Graph.BackfillBatchSize,
	})
}

func provideReplace(store repository.Store, gw *gateway.Gateway, logger *zap.Logger, cfg *config.Config) (*replace.Protocol, error) {
	return replace.New(store, gw, logger, replace.Options{
		ActiveProperty: cfg.Graph.ActiveProperty,
		LineageType:    cfg.Graph.LineageType,
	})
}

func provideImporter(gw *gateway.Gateway, cfg *config.Config, logger *zap.Logger) *bulkimport.Importer {
	return bulkimport.NewImporter(gw, cfg.Graph.ImportRoot, logger)
}

func providePoller(reg *registry.Service, gw *gateway.Gateway, cfg *config.Config, logger *zap.Logger) *refresh.Poller {
	return refresh.NewPoller(refresh.NewViewLoader(reg, gw), cfg.Graph.RefreshInterval, logger)
}

func provideHandler(router *rest.Router) http.Handler {
	return router.Setup()
}
