package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "typegraph-backend/internal/errors"
	"typegraph-backend/internal/interfaces/http/dto"
)

func TestFromError_Status(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", appErrors.Validation(appErrors.CodeReservedProperty, "reserved").Build(), http.StatusBadRequest, appErrors.CodeReservedProperty},
		{"not found", appErrors.NotFound(appErrors.CodeNodeNotFound, "gone").Build(), http.StatusNotFound, appErrors.CodeNodeNotFound},
		{"conflict", appErrors.Conflict(appErrors.CodeDuplicateType, "exists").Build(), http.StatusConflict, appErrors.CodeDuplicateType},
		{"store", appErrors.Store(appErrors.CodeCircuitOpen, "open").Build(), http.StatusServiceUnavailable, appErrors.CodeCircuitOpen},
		{"serialization", appErrors.Serialization(appErrors.CodeRegistryDecode, "bad").Build(), http.StatusInternalServerError, appErrors.CodeRegistryDecode},
		{"wrapped keeps type", appErrors.Wrap(appErrors.NotFound(appErrors.CodeTypeNotFound, "no").Build(), "op", "outer"), http.StatusNotFound, appErrors.CodeTypeNotFound},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := FromError(tt.err)
			assert.Equal(t, tt.status, e.Status)
			assert.Equal(t, tt.code, e.Code)
			assert.ErrorIs(t, e, tt.err)
		})
	}
}

func TestFromError_HidesUnclassifiedCause(t *testing.T) {
	e := FromError(errors.New("password=secret"))
	assert.NotContains(t, e.Detail, "secret")
}

func TestValidationError_Fields(t *testing.T) {
	err := dto.ValidationErrors{Errors: []dto.ValidationError{{Field: "name", Message: "is required"}}}

	rec := httptest.NewRecorder()
	FromError(err).Write(rec)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, map[string]any{"name": "is required"}, body["fields"])
	assert.Equal(t, "validation failed: name: is required", body["detail"])
}
