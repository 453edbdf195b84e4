package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"typegraph-backend/internal/infrastructure/observability"
	"typegraph-backend/internal/interfaces/http/dto"
	httpErrors "typegraph-backend/internal/interfaces/http/errors"
	"typegraph-backend/internal/interfaces/http/validation"
	"typegraph-backend/internal/service/registry"
)

// TypeHandler serves the node type registry.
type TypeHandler struct {
	registry  *registry.Service
	metrics   *observability.Collector
	validator *validation.Validator
	logger    *zap.Logger
}

// NewTypeHandler creates a type handler. metrics may be nil.
func NewTypeHandler(reg *registry.Service, metrics *observability.Collector, v *validation.Validator, logger *zap.Logger) *TypeHandler {
	if reg == nil {
		panic("registry service is required")
	}
	if v == nil {
		v = validation.GetValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TypeHandler{registry: reg, metrics: metrics, validator: v, logger: logger.Named("TypeHandler")}
}

// ListTypes handles GET /api/v1/types.
func (h *TypeHandler) ListTypes() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reg := h.registry.Registry()
		resp := dto.TypeListResponse{Generation: reg.Generation, Types: make([]dto.TypeResponse, len(reg.Types))}
		for i, t := range reg.Types {
			resp.Types[i] = dto.NewTypeResponse(t)
		}
		respondJSON(w, http.StatusOK, resp)
	}
}

// GetType handles GET /api/v1/types/{type}.
func (h *TypeHandler) GetType() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := h.registry.Get(chi.URLParam(r, "type"))
		if err != nil {
			fail(h.logger, w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, dto.NewTypeResponse(t))
	}
}

// CreateType handles POST /api/v1/types.
func (h *TypeHandler) CreateType() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.CreateTypeRequest
		if !decode(w, r, h.validator, &req) {
			return
		}
		t, err := h.registry.AddType(r.Context(), req.Label)
		if err != nil {
			fail(h.logger, w, r, err)
			return
		}
		h.observeTypes()
		h.logger.Info("type created", zap.String("label", t.HumanLabel), zap.String("internal_label", t.InternalLabel))
		w.Header().Set("Location", "/api/v1/types/"+t.HumanLabel)
		respondJSON(w, http.StatusCreated, dto.NewTypeResponse(t))
	}
}

// AddProperty handles POST /api/v1/types/{type}/properties.
func (h *TypeHandler) AddProperty() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.AddPropertyRequest
		if !decode(w, r, h.validator, &req) {
			return
		}
		def, err := req.ToPropertyDef()
		if err != nil {
			httpErrors.NewBadRequest(err.Error()).WithRequest(r).Write(w)
			return
		}
		t, err := h.registry.AddProperty(r.Context(), chi.URLParam(r, "type"), def)
		if err != nil {
			fail(h.logger, w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, dto.NewTypeResponse(t))
	}
}

func (h *TypeHandler) observeTypes() {
	if h.metrics != nil {
		h.metrics.RegistryTypes.Set(float64(len(h.registry.Registry().Types)))
	}
}
