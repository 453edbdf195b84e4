package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"typegraph-backend/internal/interfaces/http/dto"
	"typegraph-backend/internal/service/registry"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// StateFunc reports a component state such as the circuit breaker's.
type StateFunc func() string

// Pinger checks store connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves liveness and readiness checks.
type HealthHandler struct {
	store    Pinger
	registry *registry.Service
	breaker  StateFunc
	timeout  time.Duration
	logger   *zap.Logger
}

// NewHealthHandler creates a health handler. breaker reports the circuit
// breaker state and may be nil when the breaker is disabled.
func NewHealthHandler(store Pinger, reg *registry.Service, breaker StateFunc, logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{
		store:    store,
		registry: reg,
		breaker:  breaker,
		timeout:  2 * time.Second,
		logger:   logger.Named("HealthHandler"),
	}
}

// Live handles GET /health. It does not touch the store.
func (h *HealthHandler) Live() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := dto.HealthResponse{Status: StatusHealthy, Store: "unchecked"}
		if h.registry != nil {
			resp.Types = len(h.registry.Registry().Types)
		}
		if h.breaker != nil {
			resp.CircuitBreaker = h.breaker()
		}
		respondJSON(w, http.StatusOK, resp)
	}
}

// Ready handles GET /ready: 503 until the store answers.
func (h *HealthHandler) Ready() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()

		resp := dto.HealthResponse{Status: StatusHealthy, Store: StatusHealthy}
		if h.registry != nil {
			resp.Types = len(h.registry.Registry().Types)
		}
		if h.breaker != nil {
			resp.CircuitBreaker = h.breaker()
		}
		status := http.StatusOK
		if err := h.store.Ping(ctx); err != nil {
			h.logger.Warn("store not ready", zap.Error(err))
			resp.Status, resp.Store = StatusUnhealthy, StatusUnhealthy
			status = http.StatusServiceUnavailable
		}
		respondJSON(w, status, resp)
	}
}
