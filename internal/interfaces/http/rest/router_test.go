package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"typegraph-backend/internal/config"
	"typegraph-backend/internal/domain/node"
	"typegraph-backend/internal/domain/schema"
	"typegraph-backend/internal/infrastructure/observability"
	"typegraph-backend/internal/interfaces/http/handlers"
	"typegraph-backend/internal/repository"
	"typegraph-backend/internal/repository/mocks"
	"typegraph-backend/internal/service/bulkimport"
	"typegraph-backend/internal/service/gateway"
	"typegraph-backend/internal/service/refresh"
	"typegraph-backend/internal/service/registry"
	"typegraph-backend/internal/service/replace"
)

type fixture struct {
	store      *mocks.Store
	collector  *observability.Collector
	router     http.Handler
	importRoot string
}

// newFixture serves the full API over a mock store whose registry holds one
// type, Document, stored as Label_1.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zap.NewNop()
	store := &mocks.Store{}

	gw := gateway.New(store, logger, gateway.DefaultOptions())
	reg := registry.NewService(gw, logger)

	seed := schema.NewRegistry()
	_, err := seed.AddType("Document")
	require.NoError(t, err)
	data, err := schema.Encode(seed)
	require.NoError(t, err)
	store.On("Run", mock.Anything, mocks.Cypher("MATCH (r:`NodeTypeCollection`)")).
		Return([]repository.Record{{"data": string(data)}}, nil).Once()
	_, err = reg.Load(context.Background())
	require.NoError(t, err)

	rp, err := replace.New(store, gw, logger, replace.Options{})
	require.NoError(t, err)
	poller := refresh.NewPoller(refresh.NewViewLoader(reg, gw), time.Minute, logger)
	collector := observability.NewCollector("test")
	importRoot := t.TempDir()

	cfg := &config.Config{Environment: config.Test}
	cfg.Metrics = config.Metrics{Enabled: true, Namespace: "test", Path: "/metrics"}
	cfg.Server.AllowedOrigins = []string{"http://localhost:3000"}
	cfg.Server.RequestTimeout = 5 * time.Second
	cfg.Server.MaxRequestSize = 1 << 20

	h := Handlers{
		Types:   handlers.NewTypeHandler(reg, collector, nil, logger),
		Nodes:   handlers.NewNodeHandler(reg, gw, rp, collector, nil, logger),
		Imports: handlers.NewImportHandler(reg, bulkimport.NewImporter(gw, importRoot, logger), collector, nil, logger),
		View:    handlers.NewViewHandler(reg, poller, nil, logger),
		Health:  handlers.NewHealthHandler(store, reg, func() string { return "closed" }, logger),
	}
	return &fixture{
		store:      store,
		collector:  collector,
		importRoot: importRoot,
		router:     NewRouter(h, cfg, collector, nil, logger).Setup(),
	}
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func documentRow(id int64, name string) repository.Record {
	return mocks.NodeRow(id, "Label_1", map[string]any{
		"name":      name,
		"date":      node.NewDate(2024, 3, 1),
		"relevance": true,
		"file_path": "",
	})
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, float64(1), body["types"])
	assert.Equal(t, "closed", body["circuit_breaker"])

	f.store.On("Ping", mock.Anything).Return(errors.New("refused")).Once()
	rec = f.do(http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unhealthy", decodeBody(t, rec)["store"])
}

func TestTypes(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/v1/types", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Generation int `json:"generation"`
		Types      []struct {
			Label         string `json:"label"`
			InternalLabel string `json:"internal_label"`
			Properties    []struct {
				Name string `json:"name"`
				Type string `json:"type"`
			} `json:"properties"`
		} `json:"types"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Generation)
	require.Len(t, list.Types, 1)
	assert.Equal(t, "Document", list.Types[0].Label)
	assert.Equal(t, "Label_1", list.Types[0].InternalLabel)
	assert.Len(t, list.Types[0].Properties, 4)

	f.store.On("Run", mock.Anything, mocks.Cypher("MERGE (r:`NodeTypeCollection`)")).Return(mocks.Rows(), nil).Once()
	rec = f.do(http.MethodPost, "/api/v1/types", `{"label":"Invoice"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Label_2", decodeBody(t, rec)["internal_label"])
	assert.Equal(t, "/api/v1/types/Invoice", rec.Header().Get("Location"))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.collector.RegistryTypes))

	rec = f.do(http.MethodPost, "/api/v1/types", `{"label":"Invoice"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestTypes_Validation(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/v1/types", `{"label":""}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])
	assert.Contains(t, body["fields"], "label")

	rec = f.do(http.MethodPost, "/api/v1/types/Document/properties", `{"name":"due date","type":"date"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["fields"], "name")

	rec = f.do(http.MethodPost, "/api/v1/types/Document/properties", `{"name":"due","type":"integer"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["fields"], "type")

	rec = f.do(http.MethodPost, "/api/v1/types", `{"label":"x","extra":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.store.AssertNotCalled(t, "Run", mock.Anything, mocks.Cypher("MERGE"))
}

func TestAddProperty(t *testing.T) {
	f := newFixture(t)

	f.store.On("Run", mock.Anything, mocks.Cypher("WHERE n.`due` IS NULL")).Return(mocks.CountRow(0), nil).Once()
	f.store.On("Run", mock.Anything, mocks.Cypher("MERGE (r:`NodeTypeCollection`)")).Return(mocks.Rows(), nil).Once()

	rec := f.do(http.MethodPost, "/api/v1/types/Document/properties", `{"name":"due","type":"date"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	props := decodeBody(t, rec)["properties"].([]any)
	assert.Len(t, props, 5)
	f.store.AssertExpectations(t)
}

func TestNodes_UnknownType(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/v1/types/Invoice/nodes", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "TYPE_NOT_FOUND", body["code"])
	assert.Equal(t, "/api/v1/types/Invoice/nodes", body["path"])
}

func TestNodes_List(t *testing.T) {
	f := newFixture(t)

	f.store.On("Run", mock.Anything, mock.MatchedBy(func(s repository.Statement) bool {
		return s.Operation == "gateway.LoadByType"
	})).Return(mocks.Rows(documentRow(1, "Report")), nil).Once()
	f.store.On("Run", mock.Anything, mock.MatchedBy(func(s repository.Statement) bool {
		return s.Operation == "gateway.Search" && s.Params["p0"] == "repo"
	})).Return(mocks.Rows(documentRow(1, "Report")), nil).Once()
	f.store.On("Run", mock.Anything, mock.MatchedBy(func(s repository.Statement) bool {
		return s.Operation == "gateway.LoadFiltered" && s.Params["p0"] == false
	})).Return(mocks.Rows(), nil).Once()

	rec := f.do(http.MethodGet, "/api/v1/types/Document/nodes", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["count"])
	first := body["nodes"].([]any)[0].(map[string]any)
	assert.Equal(t, "Document", first["label"])
	assert.Equal(t, float64(1), first["id"])

	rec = f.do(http.MethodGet, "/api/v1/types/Document/nodes?q=repo", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/api/v1/types/Document/nodes?relevance=false", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, decodeBody(t, rec)["nodes"])

	rec = f.do(http.MethodGet, "/api/v1/types/Document/nodes?owner=me", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.store.AssertExpectations(t)
}

func TestNodes_CreateUpdateDelete(t *testing.T) {
	f := newFixture(t)

	f.store.On("Run", mock.Anything, mocks.Cypher("CREATE (n:`Label_1` {")).
		Return(mocks.Rows(documentRow(7, "Report")), nil).Once()
	rec := f.do(http.MethodPost, "/api/v1/types/Document/nodes", `{"values":{"name":"Report","date":"2024-03-01"}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, float64(7), body["id"])
	assert.Equal(t, "Document", body["label"])
	assert.Equal(t, 1.0, testutil.ToFloat64(f.collector.NodesCreated))

	rec = f.do(http.MethodPost, "/api/v1/types/Document/nodes", `{"values":{"relevance":"maybe"}}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_VALUE", decodeBody(t, rec)["code"])

	f.store.On("Run", mock.Anything, mocks.Cypher("WHERE id(n) = $p0", "SET n.`name` = $p1")).
		Return(mocks.Rows(documentRow(7, "Renamed")), nil).Once()
	rec = f.do(http.MethodPut, "/api/v1/types/Document/nodes/7", `{"values":{"name":"Renamed"}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(http.MethodPut, "/api/v1/types/Document/nodes/seven", `{"values":{"name":"x"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.store.On("Run", mock.Anything, mocks.Cypher("DETACH DELETE n")).Return(mocks.CountRow(1), nil).Once()
	rec = f.do(http.MethodDelete, "/api/v1/types/Document/nodes/7", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.collector.NodesDeleted))

	f.store.AssertExpectations(t)
}

func TestNodes_DeleteMatchingAmbiguous(t *testing.T) {
	f := newFixture(t)

	f.store.On("ExecuteWrite", mock.Anything).Return(nil).Once()
	f.store.On("Run", mock.Anything, mocks.Cypher("count(n)")).Return(mocks.CountRow(2), nil).Once()

	rec := f.do(http.MethodDelete, "/api/v1/types/Document/nodes", `{"match":{"name":"Report"}}`)
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Equal(t, "AMBIGUOUS_MATCH", decodeBody(t, rec)["code"])
	f.store.AssertNotCalled(t, "Run", mock.Anything, mocks.Cypher("DETACH DELETE"))
}

func TestNodes_DeleteMatchingByID(t *testing.T) {
	f := newFixture(t)

	f.store.On("Run", mock.Anything, mocks.Cypher("WHERE id(n) = $p0", "DETACH DELETE n")).
		Return(mocks.CountRow(1), nil).Once()
	rec := f.do(http.MethodDelete, "/api/v1/types/Document/nodes", `{"match":{"Id":5,"name":"Report"}}`)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	f.store.AssertNotCalled(t, "ExecuteWrite", mock.Anything)

	rec = f.do(http.MethodDelete, "/api/v1/types/Document/nodes", `{"match":{"Id":"five","name":"Report"}}`)
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Equal(t, "MISSING_ID", decodeBody(t, rec)["code"])

	f.store.AssertExpectations(t)
}

func TestNodes_ReplaceMissingOriginal(t *testing.T) {
	f := newFixture(t)

	f.store.On("ExecuteWrite", mock.Anything).Return(nil).Once()
	f.store.On("Run", mock.Anything, mocks.Cypher("MATCH (o:`Label_1`) WHERE id(o) = $p0")).Return(mocks.CountRow(0), nil).Once()

	rec := f.do(http.MethodPost, "/api/v1/types/Document/nodes/3/replace", `{"values":{"name":"v2"}}`)
	require.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.collector.Replacements.WithLabelValues("rolled_back")))
}

func TestRelationships(t *testing.T) {
	f := newFixture(t)

	f.store.On("ExecuteWrite", mock.Anything).Return(nil)
	f.store.On("Run", mock.Anything, mocks.Cypher("OPTIONAL MATCH (a)-[r:`CITES`]->(b)")).
		Return(mocks.Rows(repository.Record{"nodes": int64(1), "existing": int64(1)}), nil).Once()

	rec := f.do(http.MethodPost, "/api/v1/relationships", `{"source":1,"target":2,"type":"CITES"}`)
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	rec = f.do(http.MethodPost, "/api/v1/relationships", `{"source":1,"target":2,"type":"CITES BY"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.store.On("Run", mock.Anything, mock.MatchedBy(func(s repository.Statement) bool {
		return s.Operation == "gateway.Relationships"
	})).Return(mocks.Rows(), nil).Once()
	rec = f.do(http.MethodGet, "/api/v1/nodes/1/relationships", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestView(t *testing.T) {
	f := newFixture(t)

	f.store.On("Run", mock.Anything, mock.MatchedBy(func(s repository.Statement) bool {
		return s.Operation == "gateway.LoadByType"
	})).Return(mocks.Rows(documentRow(1, "Report")), nil).Once()

	rec := f.do(http.MethodPut, "/api/v1/view", `{"type":"Document"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(http.MethodGet, "/api/v1/view", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Document", body["view"].(map[string]any)["type"])
	records := body["records"].([]any)
	require.Len(t, records, 1)
	assert.Equal(t, "Document", records[0].(map[string]any)["label"])

	rec = f.do(http.MethodPut, "/api/v1/view", `{"type":"Document","filter":{"date":"bad"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImport(t *testing.T) {
	f := newFixture(t)
	dir := filepath.Join(f.importRoot, "docs")
	require.NoError(t, os.Mkdir(dir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.pdf"), []byte("a"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.pdf"), []byte("b"), 0o600))

	f.store.On("Run", mock.Anything, mocks.Cypher("CREATE (n:`Label_1` {")).
		Return(mocks.Rows(documentRow(1, "a")), nil).Once()
	f.store.On("Run", mock.Anything, mocks.Cypher("CREATE (n:`Label_1` {")).
		Return(nil, errors.New("constraint")).Once()

	rec := f.do(http.MethodPost, "/api/v1/types/Document/import", `{"dir":"docs","date":"2024-03-01"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Len(t, body["added"], 1)
	assert.Len(t, body["failed"], 1)
	assert.NotEmpty(t, body["batch_id"])
	assert.Equal(t, 1.0, testutil.ToFloat64(f.collector.NodesCreated))

	rec = f.do(http.MethodPost, "/api/v1/types/Document/import", `{"dir":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImport_OutsideRoot(t *testing.T) {
	f := newFixture(t)
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("s"), 0o600))

	for _, dir := range []string{"../", outside, "docs/../../etc"} {
		body, err := json.Marshal(map[string]string{"dir": dir})
		require.NoError(t, err)
		rec := f.do(http.MethodPost, "/api/v1/types/Document/import", string(body))
		require.Equal(t, http.StatusBadRequest, rec.Code, dir)
		assert.Equal(t, "PATH_OUTSIDE_ROOT", decodeBody(t, rec)["code"], dir)
		assert.NotContains(t, rec.Body.String(), "secret.txt")
	}
	f.store.AssertNotCalled(t, "Run", mock.Anything, mocks.Cypher("CREATE (n:`Label_1` {"))
}

func TestMetricsAndCORS(t *testing.T) {
	f := newFixture(t)

	f.do(http.MethodGet, "/api/v1/types", "")
	rec := f.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `test_http_requests_total{method="GET",route="/api/v1/types`)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/types", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	pre := httptest.NewRecorder()
	f.router.ServeHTTP(pre, req)
	assert.Equal(t, "http://localhost:3000", pre.Header().Get("Access-Control-Allow-Origin"))
}
