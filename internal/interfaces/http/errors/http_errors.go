// Package errors renders failures as RFC 7807 problem details.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	appErrors "typegraph-backend/internal/errors"
	"typegraph-backend/internal/interfaces/http/dto"
)

// HTTPError is a problem-details response body.
type HTTPError struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`

	Code      string            `json:"code,omitempty"`
	Operation string            `json:"operation,omitempty"`
	Resource  string            `json:"resource,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	Timestamp string            `json:"timestamp"`
	Path      string            `json:"path,omitempty"`
	Method    string            `json:"method,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`

	internal error
}

func (e *HTTPError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.Title
}

// Unwrap returns the error the response was built from.
func (e *HTTPError) Unwrap() error {
	return e.internal
}

// WithRequest copies correlation data from r.
func (e *HTTPError) WithRequest(r *http.Request) *HTTPError {
	e.Path = r.URL.Path
	e.Method = r.Method
	e.RequestID = middleware.GetReqID(r.Context())
	return e
}

// Write sends the error.
func (e *HTTPError) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(e.Status)
	_ = json.NewEncoder(w).Encode(e)
}

func newHTTPError(status int, kind, title, detail, code string) *HTTPError {
	return &HTTPError{
		Type:      "/errors/" + kind,
		Title:     title,
		Status:    status,
		Detail:    detail,
		Code:      code,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// NewBadRequest is a 400 for malformed input that never reached a service.
func NewBadRequest(detail string) *HTTPError {
	return newHTTPError(http.StatusBadRequest, "bad-request", "Bad Request", detail, "BAD_REQUEST")
}

// NewValidationError is a 400 carrying per-field messages.
func NewValidationError(err error) *HTTPError {
	e := newHTTPError(http.StatusBadRequest, "validation", "Validation Failed", err.Error(), "VALIDATION_ERROR")
	var ve dto.ValidationErrors
	if errors.As(err, &ve) {
		e.Fields = make(map[string]string, len(ve.Errors))
		details := make([]string, 0, len(ve.Errors))
		for _, fe := range ve.Errors {
			e.Fields[fe.Field] = fe.Message
			details = append(details, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
		}
		e.Detail = "validation failed: " + strings.Join(details, "; ")
	}
	e.internal = err
	return e
}

// NewInternal is a 500 that hides the cause.
func NewInternal() *HTTPError {
	return newHTTPError(http.StatusInternalServerError, "internal", "Internal Server Error",
		"an unexpected error occurred", "INTERNAL_ERROR")
}

// FromError maps a service error to a response.
//
//	VALIDATION -> 400, NOT_FOUND -> 404, CONFLICT -> 409,
//	STORE -> 503, SERIALIZATION and the rest -> 500
func FromError(err error) *HTTPError {
	var ve dto.ValidationErrors
	if errors.As(err, &ve) {
		return NewValidationError(err)
	}

	var ue *appErrors.UnifiedError
	if !errors.As(err, &ue) {
		e := NewInternal()
		e.internal = err
		return e
	}

	var e *HTTPError
	switch ue.Type {
	case appErrors.ErrorTypeValidation:
		e = newHTTPError(http.StatusBadRequest, "validation", "Validation Failed", ue.Message, ue.Code)
		if ue.Details != "" {
			e.Detail = ue.Message + ": " + ue.Details
		}
	case appErrors.ErrorTypeNotFound:
		e = newHTTPError(http.StatusNotFound, "not-found", "Resource Not Found", ue.Message, ue.Code)
	case appErrors.ErrorTypeConflict:
		e = newHTTPError(http.StatusConflict, "conflict", "Conflict", ue.Message, ue.Code)
	case appErrors.ErrorTypeStore:
		e = newHTTPError(http.StatusServiceUnavailable, "store-unavailable", "Store Unavailable", ue.Message, ue.Code)
	case appErrors.ErrorTypeSerialization:
		e = newHTTPError(http.StatusInternalServerError, "serialization", "Serialization Failed", ue.Message, ue.Code)
	default:
		e = NewInternal()
		e.Code = ue.Code
	}
	e.Operation = ue.Operation
	e.Resource = ue.Resource
	e.internal = err
	return e
}
