package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"typegraph-backend/internal/infrastructure/observability"
	"typegraph-backend/internal/interfaces/http/dto"
	"typegraph-backend/internal/interfaces/http/validation"
	"typegraph-backend/internal/service/bulkimport"
	"typegraph-backend/internal/service/registry"
)

// ImportHandler runs folder imports.
type ImportHandler struct {
	registry  *registry.Service
	importer  *bulkimport.Importer
	metrics   *observability.Collector
	validator *validation.Validator
	logger    *zap.Logger
}

// NewImportHandler creates an import handler. metrics may be nil.
func NewImportHandler(reg *registry.Service, im *bulkimport.Importer, metrics *observability.Collector, v *validation.Validator, logger *zap.Logger) *ImportHandler {
	if reg == nil || im == nil {
		panic("registry service and importer are required")
	}
	if v == nil {
		v = validation.GetValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportHandler{registry: reg, importer: im, metrics: metrics, validator: v, logger: logger.Named("ImportHandler")}
}

// ImportFolder handles POST /api/v1/types/{type}/import. Per-file failures
// are reported in the body; the request only fails when nothing could run.
func (h *ImportHandler) ImportFolder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := h.registry.Get(chi.URLParam(r, "type"))
		if err != nil {
			fail(h.logger, w, r, err)
			return
		}
		var req dto.ImportRequest
		if !decode(w, r, h.validator, &req) {
			return
		}

		res, err := h.importer.ImportFolder(r.Context(), t, req.ToOptions())
		if err != nil {
			fail(h.logger, w, r, err)
			return
		}
		if h.metrics != nil {
			h.metrics.NodesCreated.Add(float64(len(res.Added)))
		}
		for i := range res.Added {
			res.Added[i].Label = t.HumanLabel
		}
		respondJSON(w, http.StatusOK, res)
	}
}
