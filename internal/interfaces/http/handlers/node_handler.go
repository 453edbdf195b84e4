package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"typegraph-backend/internal/domain/node"
	"typegraph-backend/internal/domain/schema"
	"typegraph-backend/internal/infrastructure/observability"
	"typegraph-backend/internal/interfaces/http/dto"
	httpErrors "typegraph-backend/internal/interfaces/http/errors"
	"typegraph-backend/internal/interfaces/http/validation"
	"typegraph-backend/internal/service/gateway"
	"typegraph-backend/internal/service/registry"
	"typegraph-backend/internal/service/replace"
)

// searchParam is the query parameter that switches a node listing to text
// search. Every other parameter is a property filter.
const searchParam = "q"

// NodeHandler serves node reads, mutations and replacement.
type NodeHandler struct {
	registry  *registry.Service
	gateway   *gateway.Gateway
	replace   *replace.Protocol
	metrics   *observability.Collector
	validator *validation.Validator
	logger    *zap.Logger
	today     func() node.Date
}

// NewNodeHandler creates a node handler. metrics may be nil.
func NewNodeHandler(
	reg *registry.Service,
	gw *gateway.Gateway,
	rp *replace.Protocol,
	metrics *observability.Collector,
	v *validation.Validator,
	logger *zap.Logger,
) *NodeHandler {
	if reg == nil {
		panic("registry service is required")
	}
	if gw == nil {
		panic("gateway is required")
	}
	if rp == nil {
		panic("replace protocol is required")
	}
	if v == nil {
		v = validation.GetValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NodeHandler{
		registry:  reg,
		gateway:   gw,
		replace:   rp,
		metrics:   metrics,
		validator: v,
		logger:    logger.Named("NodeHandler"),
		today:     node.Today,
	}
}

// nodeType resolves the {type} path parameter.
func (h *NodeHandler) nodeType(w http.ResponseWriter, r *http.Request) (schema.NodeType, bool) {
	t, err := h.registry.Get(chi.URLParam(r, "type"))
	if err != nil {
		fail(h.logger, w, r, err)
		return schema.NodeType{}, false
	}
	return t, true
}

// ListNodes handles GET /api/v1/types/{type}/nodes. With q it searches;
// otherwise remaining parameters filter by property.
func (h *NodeHandler) ListNodes() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, ok := h.nodeType(w, r)
		if !ok {
			return
		}
		query := r.URL.Query()

		var (
			records []node.Record
			err     error
		)
		if text := query.Get(searchParam); text != "" {
			records, err = h.gateway.Search(r.Context(), t, text)
		} else {
			params := dto.FilterParams(query, searchParam)
			if len(params) == 0 {
				records, err = h.gateway.LoadByType(r.Context(), t)
			} else {
				filter, perr := dto.ParseFilter(t, params)
				if perr != nil {
					httpErrors.NewBadRequest(perr.Error()).WithRequest(r).Write(w)
					return
				}
				records, err = h.gateway.LoadFiltered(r.Context(), t, filter)
			}
		}
		if err != nil {
			fail(h.logger, w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, dto.NewNodeList(t.HumanLabel, h.humanize(records)))
	}
}

// ListExpired handles GET /api/v1/types/{type}/expired.
func (h *NodeHandler) ListExpired() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, ok := h.nodeType(w, r)
		if !ok {
			return
		}
		records, err := h.gateway.LoadExpired(r.Context(), t, h.today())
		if err != nil {
			fail(h.logger, w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, dto.NewNodeList(t.HumanLabel, h.humanize(records)))
	}
}

// CreateNode handles POST /api/v1/types/{type}/nodes.
func (h *NodeHandler) CreateNode() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, ok := h.nodeType(w, r)
		if !ok {
			return
		}
		var req dto.NodeValuesRequest
		if !decode(w, r, h.validator, &req) {
			return
		}
		rec, err := h.gateway.AddNode(r.Context(), t, req.Values)
		if err != nil {
			fail(h.logger, w, r, err)
			return
		}
		if h.metrics != nil {
			h.metrics.NodesCreated.Inc()
		}
		rec.Label = t.HumanLabel
		respondJSON(w, http.StatusCreated, rec)
	}
}

// UpdateNode handles PUT /api/v1/types/{type}/nodes/{id}. Only the supplied
// properties change.
func (h *NodeHandler) UpdateNode() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, ok := h.nodeType(w, r)
		if !ok {
			return
		}
		id, ok := nodeID(w, r)
		if !ok {
			return
		}
		var req dto.NodeValuesRequest
		if !decode(w, r, h.validator, &req) {
			return
		}
		rec, err := h.gateway.UpdateNode(r.Context(), t, node.ByID(id), req.Values)
		if err != nil {
			fail(h.logger, w, r, err)
			return
		}
		rec.Label = t.HumanLabel
		respondJSON(w, http.StatusOK, rec)
	}
}

// DeleteNode handles DELETE /api/v1/types/{type}/nodes/{id}.
func (h *NodeHandler) DeleteNode() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, ok := h.nodeType(w, r)
		if !ok {
			return
		}
		id, ok := nodeID(w, r)
		if !ok {
			return
		}
		h.delete(w, r, t, node.ByID(id))
	}
}

// DeleteMatching handles DELETE /api/v1/types/{type}/nodes with a property
// match body. Exactly one node must match.
func (h *NodeHandler) DeleteMatching() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, ok := h.nodeType(w, r)
		if !ok {
			return
		}
		var req dto.DeleteNodesRequest
		if !decode(w, r, h.validator, &req) {
			return
		}
		match, err := node.ByProperties(req.Match)
		if err != nil {
			fail(h.logger, w, r, err)
			return
		}
		h.delete(w, r, t, match)
	}
}

func (h *NodeHandler) delete(w http.ResponseWriter, r *http.Request, t schema.NodeType, match node.Match) {
	if err := h.gateway.DeleteNode(r.Context(), t, match); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	if h.metrics != nil {
		h.metrics.NodesDeleted.Inc()
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReplaceNode handles POST /api/v1/types/{type}/nodes/{id}/replace.
func (h *NodeHandler) ReplaceNode() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, ok := h.nodeType(w, r)
		if !ok {
			return
		}
		id, ok := nodeID(w, r)
		if !ok {
			return
		}
		var req dto.NodeValuesRequest
		if !decode(w, r, h.validator, &req) {
			return
		}
		res, err := h.replace.Replace(r.Context(), t, id, req.Values)
		if h.metrics != nil {
			h.metrics.ObserveReplace(err)
		}
		if err != nil {
			fail(h.logger, w, r, err)
			return
		}
		if h.metrics != nil {
			h.metrics.NodesCreated.Inc()
		}
		res.Replacement.Label = t.HumanLabel
		respondJSON(w, http.StatusCreated, res)
	}
}

// Related handles GET /api/v1/nodes/{id}/related.
func (h *NodeHandler) Related() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := nodeID(w, r)
		if !ok {
			return
		}
		records, err := h.gateway.LoadRelated(r.Context(), id)
		if err != nil {
			fail(h.logger, w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, dto.NewNodeList("", h.humanize(records)))
	}
}

// Relationships handles GET /api/v1/nodes/{id}/relationships.
func (h *NodeHandler) Relationships() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := nodeID(w, r)
		if !ok {
			return
		}
		rels, err := h.gateway.Relationships(r.Context(), id)
		if err != nil {
			fail(h.logger, w, r, err)
			return
		}
		if rels == nil {
			rels = []gateway.Relationship{}
		}
		respondJSON(w, http.StatusOK, rels)
	}
}

// CreateRelationship handles POST /api/v1/relationships.
func (h *NodeHandler) CreateRelationship() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.CreateRelationshipRequest
		if !decode(w, r, h.validator, &req) {
			return
		}
		rel, err := h.gateway.CreateRelationship(r.Context(), req.Source, req.Target, req.Type)
		if err != nil {
			fail(h.logger, w, r, err)
			return
		}
		respondJSON(w, http.StatusCreated, rel)
	}
}

// humanize swaps internal labels for the registry's human labels. Labels the
// registry does not know are left as they are.
func (h *NodeHandler) humanize(records []node.Record) []node.Record {
	for i := range records {
		if human, ok := h.registry.HumanLabel(records[i].Label); ok {
			records[i].Label = human
		}
	}
	return records
}
