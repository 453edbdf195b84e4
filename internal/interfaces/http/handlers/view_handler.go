package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"typegraph-backend/internal/interfaces/http/dto"
	httpErrors "typegraph-backend/internal/interfaces/http/errors"
	"typegraph-backend/internal/interfaces/http/validation"
	"typegraph-backend/internal/service/refresh"
	"typegraph-backend/internal/service/registry"
)

// ViewHandler selects and reads the view kept fresh by the poller.
type ViewHandler struct {
	registry  *registry.Service
	poller    *refresh.Poller
	validator *validation.Validator
	logger    *zap.Logger
}

// NewViewHandler creates a view handler.
func NewViewHandler(reg *registry.Service, poller *refresh.Poller, v *validation.Validator, logger *zap.Logger) *ViewHandler {
	if reg == nil || poller == nil {
		panic("registry service and poller are required")
	}
	if v == nil {
		v = validation.GetValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ViewHandler{registry: reg, poller: poller, validator: v, logger: logger.Named("ViewHandler")}
}

// SetView handles PUT /api/v1/view. The new view is loaded once before the
// response so the returned snapshot is current.
func (h *ViewHandler) SetView() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.ViewRequest
		if !decode(w, r, h.validator, &req) {
			return
		}
		t, err := h.registry.Get(req.Type)
		if err != nil {
			fail(h.logger, w, r, err)
			return
		}
		filter, err := dto.ParseFilter(t, req.Filter)
		if err != nil {
			httpErrors.NewBadRequest(err.Error()).WithRequest(r).Write(w)
			return
		}

		h.poller.SetView(refresh.View{Type: t.HumanLabel, Filter: filter, Search: req.Search})
		h.poller.Refresh(r.Context())
		h.logger.Info("active view changed", zap.String("type", t.HumanLabel), zap.Bool("search", req.Search != ""))
		h.respondSnapshot(w)
	}
}

// GetView handles GET /api/v1/view.
func (h *ViewHandler) GetView() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.respondSnapshot(w)
	}
}

func (h *ViewHandler) respondSnapshot(w http.ResponseWriter) {
	snap := h.poller.Snapshot()
	records := snap.Records[:0:0]
	for _, rec := range snap.Records {
		if human, ok := h.registry.HumanLabel(rec.Label); ok {
			rec.Label = human
		}
		records = append(records, rec)
	}
	snap.Records = records
	respondJSON(w, http.StatusOK, snap)
}
