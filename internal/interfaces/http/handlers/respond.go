// Package handlers adapts HTTP requests to the registry, gateway and replace
// services.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	appErrors "typegraph-backend/internal/errors"
	httpErrors "typegraph-backend/internal/interfaces/http/errors"
	"typegraph-backend/internal/interfaces/http/validation"
)

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// decode reads a JSON body into dst and validates it. It writes the error
// response itself and reports whether the handler should continue.
func decode(w http.ResponseWriter, r *http.Request, v *validation.Validator, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		msg := "invalid request body"
		if errors.Is(err, io.EOF) {
			msg = "request body is empty"
		}
		httpErrors.NewBadRequest(msg).WithRequest(r).Write(w)
		return false
	}
	if err := v.Validate(dst); err != nil {
		httpErrors.NewValidationError(err).WithRequest(r).Write(w)
		return false
	}
	return true
}

// nodeID parses the {id} path parameter.
func nodeID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		httpErrors.NewBadRequest("node id must be a non-negative integer").WithRequest(r).Write(w)
		return 0, false
	}
	return id, true
}

// fail maps err to a response. Server-side failures are logged at Error,
// rejected input at Debug.
func fail(logger *zap.Logger, w http.ResponseWriter, r *http.Request, err error) {
	httpErr := httpErrors.FromError(err).WithRequest(r)
	fields := []zap.Field{
		zap.String("path", r.URL.Path),
		zap.String("code", httpErr.Code),
		zap.String("request_id", httpErr.RequestID),
		zap.Error(err),
	}
	switch {
	case httpErr.Status >= http.StatusInternalServerError:
		logger.Error("request failed", fields...)
	case appErrors.IsConflict(err):
		logger.Info("request conflicted", fields...)
	default:
		logger.Debug("request rejected", fields...)
	}
	httpErr.Write(w)
}
