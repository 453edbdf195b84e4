// Package persistence - Circuit breaker decorator for the graph store.
package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	appErrors "typegraph-backend/internal/errors"
	"typegraph-backend/internal/repository"
)

// CircuitBreakerConfig configures the store circuit breaker.
type CircuitBreakerConfig struct {
	Name        string
	MaxRequests uint32        // requests allowed while half-open
	Interval    time.Duration // window after which closed-state counts reset
	Timeout     time.Duration // how long the circuit stays open
	// FailureThreshold is the failure ratio that trips the circuit once
	// MinRequests have been seen.
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultCircuitBreakerConfig returns the settings used when none are configured.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             "neo4j",
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// CircuitBreakerStore rejects statements while the store keeps failing.
// A whole write transaction counts as one request; the transaction-bound
// runner handed to the callback is not wrapped.
type CircuitBreakerStore struct {
	inner  repository.Store
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
}

var _ repository.Store = (*CircuitBreakerStore)(nil)

// NewCircuitBreakerStore wraps inner with a gobreaker circuit breaker.
func NewCircuitBreakerStore(inner repository.Store, config CircuitBreakerConfig, logger *zap.Logger) *CircuitBreakerStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("circuit_breaker")
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < config.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= config.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: isStoreHealthy,
	})
	return &CircuitBreakerStore{inner: inner, cb: cb, logger: logger}
}

// isStoreHealthy counts only store failures against the circuit. Rejected
// input and cancelled requests say nothing about the store.
func isStoreHealthy(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	var unified *appErrors.UnifiedError
	if errors.As(err, &unified) {
		return unified.Type != appErrors.ErrorTypeStore
	}
	return false
}

// Run executes stmt unless the circuit is open.
func (s *CircuitBreakerStore) Run(ctx context.Context, stmt repository.Statement) ([]repository.Record, error) {
	result, err := s.cb.Execute(func() (interface{}, error) {
		return s.inner.Run(ctx, stmt)
	})
	if err != nil {
		return nil, s.translate(err, stmt.Operation)
	}
	records, _ := result.([]repository.Record)
	return records, nil
}

// ExecuteWrite runs work unless the circuit is open.
func (s *CircuitBreakerStore) ExecuteWrite(ctx context.Context, work repository.TxWork) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.inner.ExecuteWrite(ctx, work)
	})
	return s.translate(err, "store.ExecuteWrite")
}

// Ping bypasses the breaker so health checks see the real store.
func (s *CircuitBreakerStore) Ping(ctx context.Context) error {
	return s.inner.Ping(ctx)
}

func (s *CircuitBreakerStore) Close(ctx context.Context) error {
	return s.inner.Close(ctx)
}

// State reports the breaker state for health output.
func (s *CircuitBreakerStore) State() string {
	return s.cb.State().String()
}

func (s *CircuitBreakerStore) translate(err error, operation string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		s.logger.Debug("statement rejected", zap.String("operation", operation), zap.Error(err))
		return appErrors.Store(appErrors.CodeCircuitOpen, "graph store temporarily unavailable").
			WithOperation(operation).
			WithCause(err).
			Build()
	}
	return err
}
