// Package persistence provides cross-cutting concerns for the graph store.
// This file implements a decorator chain builder for applying multiple decorators.
package persistence

import (
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"typegraph-backend/internal/config"
	"typegraph-backend/internal/infrastructure/decorators"
	"typegraph-backend/internal/infrastructure/observability"
	"typegraph-backend/internal/repository"
)

// DecoratorChain wraps the base store with the configured decorators.
type DecoratorChain struct {
	config  *config.Config
	logger  *zap.Logger
	metrics *observability.Collector
	tracer  trace.Tracer

	breaker *CircuitBreakerStore
}

// NewDecoratorChain creates a chain builder. metrics and tracer may be nil.
func NewDecoratorChain(cfg *config.Config, logger *zap.Logger, metrics *observability.Collector, tracer trace.Tracer) *DecoratorChain {
	return &DecoratorChain{config: cfg, logger: logger, metrics: metrics, tracer: tracer}
}

// Decorate applies, innermost first: circuit breaker, metrics, tracing,
// logging.
func (dc *DecoratorChain) Decorate(base repository.Store) repository.Store {
	decorated := base

	if cb := dc.config.CircuitBreaker; cb.Enabled {
		dc.breaker = NewCircuitBreakerStore(decorated, CircuitBreakerConfig{
			Name:             "neo4j",
			MaxRequests:      cb.MaxRequests,
			Interval:         cb.Interval,
			Timeout:          cb.Timeout,
			FailureThreshold: cb.FailureThreshold,
			MinRequests:      cb.MinRequests,
		}, dc.logger)
		decorated = dc.breaker
		dc.logger.Debug("applied circuit breaker decorator")
	}

	if dc.config.Metrics.Enabled && dc.metrics != nil {
		decorated = observability.NewMetricsStore(decorated, dc.metrics)
		dc.logger.Debug("applied metrics decorator")
	}

	if dc.config.Tracing.Enabled && dc.tracer != nil {
		decorated = observability.NewTracingStore(decorated, dc.tracer)
		dc.logger.Debug("applied tracing decorator")
	}

	decorated = decorators.NewLoggingStore(decorated, dc.logger, decorators.LoggingConfig{
		LogStatements: dc.config.IsDevelopment(),
		LogLevel:      zapcore.DebugLevel,
		SlowThreshold: dc.config.Logging.SlowStatement,
	})
	return decorated
}

// BreakerState reports the state of the breaker applied by Decorate, or nil
// when the breaker is disabled.
func (dc *DecoratorChain) BreakerState() func() string {
	if dc.breaker == nil {
		return nil
	}
	return dc.breaker.State
}
