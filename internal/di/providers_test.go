package di

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"typegraph-backend/internal/config"
	appErrors "typegraph-backend/internal/errors"
	"typegraph-backend/internal/repository/mocks"
)

func testConfig() *config.Config {
	return &config.Config{
		Environment: config.Test,
		Metrics:     config.Metrics{Enabled: true, Namespace: "typegraph", Path: "/metrics"},
		CircuitBreaker: config.CircuitBreaker{
			Enabled:          true,
			MaxRequests:      1,
			Interval:         time.Minute,
			Timeout:          time.Second,
			FailureThreshold: 0.5,
			MinRequests:      3,
		},
		Graph: config.Graph{
			ActiveProperty:    "relevance",
			DateProperty:      "date",
			LineageType:       "SUPERSEDED_BY",
			BackfillBatchSize: 100,
			RefreshInterval:   time.Second,
		},
	}
}

func TestProvideCollector(t *testing.T) {
	cfg := testConfig()
	assert.NotNil(t, provideCollector(cfg))

	cfg.Metrics.Enabled = false
	assert.Nil(t, provideCollector(cfg))
}

func TestProvideBreakerState(t *testing.T) {
	cfg := testConfig()
	chain := provideDecoratorChain(cfg, zap.NewNop(), nil, nil)
	store := chain.Decorate(&mocks.Store{})

	state := provideBreakerState(chain, store)
	require.NotNil(t, state)
	assert.Equal(t, "closed", state())

	cfg.CircuitBreaker.Enabled = false
	chain = provideDecoratorChain(cfg, zap.NewNop(), nil, nil)
	store = chain.Decorate(&mocks.Store{})
	assert.Nil(t, provideBreakerState(chain, store))
}

func TestProvideReplace_RejectsBadLineageType(t *testing.T) {
	cfg := testConfig()
	store := &mocks.Store{}
	gw := provideGateway(store, zap.NewNop(), cfg)

	_, err := provideReplace(store, gw, zap.NewNop(), cfg)
	require.NoError(t, err)

	cfg.Graph.LineageType = "SUPERSEDED BY"
	_, err = provideReplace(store, gw, zap.NewNop(), cfg)
	require.Error(t, err)
	assert.True(t, appErrors.IsValidation(err))
}
