package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"typegraph-backend/internal/config"
	"typegraph-backend/internal/infrastructure/decorators"
	appErrors "typegraph-backend/internal/errors"
	"typegraph-backend/internal/repository"
	"typegraph-backend/internal/repository/mocks"
)

func testBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             "test",
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		FailureThreshold: 0.5,
		MinRequests:      2,
	}
}

func TestCircuitBreakerStore_OpensOnStoreFailures(t *testing.T) {
	inner := &mocks.Store{}
	s := NewCircuitBreakerStore(inner, testBreakerConfig(), zap.NewNop())
	ctx := context.Background()
	stmt := repository.Statement{Cypher: "RETURN 1", Operation: "test"}

	storeErr := appErrors.Store(appErrors.CodeStoreExecution, "down").Build()
	inner.On("Run", mock.Anything, stmt).Return(nil, storeErr).Twice()

	for i := 0; i < 2; i++ {
		_, err := s.Run(ctx, stmt)
		require.ErrorIs(t, err, storeErr)
	}
	assert.Equal(t, "open", s.State())

	_, err := s.Run(ctx, stmt)
	assert.True(t, appErrors.HasCode(err, appErrors.CodeCircuitOpen))
	inner.AssertNumberOfCalls(t, "Run", 2)

	err = s.ExecuteWrite(ctx, func(repository.Runner) error { return nil })
	assert.True(t, appErrors.HasCode(err, appErrors.CodeCircuitOpen))
}

func TestCircuitBreakerStore_IgnoresRejectedInput(t *testing.T) {
	inner := &mocks.Store{}
	s := NewCircuitBreakerStore(inner, testBreakerConfig(), zap.NewNop())
	ctx := context.Background()

	notFound := appErrors.NotFound(appErrors.CodeNodeNotFound, "gone").Build()
	inner.On("Run", mock.Anything, mock.Anything).Return(nil, notFound)

	for i := 0; i < 5; i++ {
		_, err := s.Run(ctx, repository.Statement{Cypher: "MATCH (n)"})
		require.True(t, appErrors.IsNotFound(err))
	}
	assert.Equal(t, "closed", s.State())
}

func TestIsStoreHealthy(t *testing.T) {
	assert.True(t, isStoreHealthy(nil))
	assert.True(t, isStoreHealthy(context.Canceled))
	assert.True(t, isStoreHealthy(appErrors.Validation(appErrors.CodeInvalidValue, "x").Build()))
	assert.False(t, isStoreHealthy(appErrors.Store(appErrors.CodeStoreConnection, "x").Build()))
	assert.False(t, isStoreHealthy(errors.New("raw")))
}

func TestDecoratorChain(t *testing.T) {
	cfg := &config.Config{Environment: config.Test}
	cfg.CircuitBreaker = config.CircuitBreaker{Enabled: true, MinRequests: 5, FailureThreshold: 0.5}

	inner := &mocks.Store{}
	chain := NewDecoratorChain(cfg, zap.NewNop(), nil, nil)
	decorated := chain.Decorate(inner)
	require.NotNil(t, chain.BreakerState())
	assert.Equal(t, "closed", chain.BreakerState()())

	// logging is always outermost
	_, ok := decorated.(*decorators.LoggingStore)
	assert.True(t, ok)

	inner.On("Ping", mock.Anything).Return(nil)
	assert.NoError(t, decorated.Ping(context.Background()))
	inner.AssertExpectations(t)
}

func TestDecoratorChain_BreakerDisabled(t *testing.T) {
	cfg := &config.Config{Environment: config.Test}
	chain := NewDecoratorChain(cfg, zap.NewNop(), nil, nil)
	chain.Decorate(&mocks.Store{})
	assert.Nil(t, chain.BreakerState())
}
