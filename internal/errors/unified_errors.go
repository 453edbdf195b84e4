// Package errors provides the unified error taxonomy shared by every layer of
// the type graph backend. Callers classify failures with the IsX helpers and
// never by matching message text.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// ============================================================================
// ERROR TYPES AND CLASSIFICATION
// ============================================================================

// ErrorType defines the category of error for proper handling and response.
type ErrorType string

const (
	// Detected before any store call; no partial effect.
	ErrorTypeValidation ErrorType = "VALIDATION"
	ErrorTypeNotFound   ErrorType = "NOT_FOUND"
	ErrorTypeConflict   ErrorType = "CONFLICT"

	// Raised by or after store interaction.
	ErrorTypeStore         ErrorType = "STORE"
	ErrorTypeSerialization ErrorType = "SERIALIZATION"
	ErrorTypeInternal      ErrorType = "INTERNAL"
)

// Error codes used across the module.
const (
	CodeInvalidValue         = "INVALID_VALUE"
	CodeInvalidIdentifier    = "INVALID_IDENTIFIER"
	CodeReservedProperty     = "RESERVED_PROPERTY"
	CodeUnknownProperty      = "UNKNOWN_PROPERTY"
	CodeUnknownPrimitiveType = "UNKNOWN_PRIMITIVE_TYPE"
	CodeEmptyMatch           = "EMPTY_MATCH"
	CodeAmbiguousMatch       = "AMBIGUOUS_MATCH"
	CodeMissingID            = "MISSING_ID"
	CodeNodeNotFound         = "NODE_NOT_FOUND"
	CodeTypeNotFound         = "TYPE_NOT_FOUND"
	CodeDuplicateType        = "DUPLICATE_TYPE"
	CodeDuplicateProperty    = "DUPLICATE_PROPERTY"
	CodeDuplicateRelation    = "DUPLICATE_RELATIONSHIP"
	CodeStoreExecution       = "STORE_EXECUTION"
	CodeStoreConnection      = "STORE_CONNECTION"
	CodeCircuitOpen          = "CIRCUIT_OPEN"
	CodeRegistryDecode       = "REGISTRY_DECODE"
	CodeRegistryPartialSave  = "REGISTRY_PARTIAL_SAVE"
	CodeImportDisabled       = "IMPORT_DISABLED"
	CodePathOutsideRoot      = "PATH_OUTSIDE_ROOT"
)

// ============================================================================
// UNIFIED ERROR STRUCTURE
// ============================================================================

// UnifiedError is the single error type returned by domain and service code.
type UnifiedError struct {
	Type    ErrorType `json:"type"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`

	// Operation is the attempted operation, e.g. "gateway.UpdateNode".
	Operation string `json:"operation,omitempty"`
	// Resource names the label, property or node the operation targeted.
	Resource string `json:"resource,omitempty"`

	Cause error `json:"-"`

	File string `json:"-"`
	Line int    `json:"-"`
}

// Error implements the error interface.
func (e *UnifiedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s:%s] %s", e.Type, e.Code, e.Message)
	if e.Details != "" {
		fmt.Fprintf(&b, ": %s", e.Details)
	}
	if e.Cause != nil && e.Details == "" {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap allows errors.Is and errors.As to work with the underlying cause.
func (e *UnifiedError) Unwrap() error {
	return e.Cause
}

// ============================================================================
// ERROR BUILDER FOR FLUENT CONSTRUCTION
// ============================================================================

// ErrorBuilder provides a fluent interface for constructing UnifiedError instances.
type ErrorBuilder struct {
	error *UnifiedError
}

// NewError creates a new error builder with the specified type and message.
func NewError(errType ErrorType, code, message string) *ErrorBuilder {
	_, file, line, _ := runtime.Caller(2)
	return &ErrorBuilder{
		error: &UnifiedError{
			Type:    errType,
			Code:    code,
			Message: message,
			File:    file,
			Line:    line,
		},
	}
}

// WithDetails adds additional details to the error.
func (b *ErrorBuilder) WithDetails(details string) *ErrorBuilder {
	b.error.Details = details
	return b
}

// WithOperation specifies the operation that failed.
func (b *ErrorBuilder) WithOperation(operation string) *ErrorBuilder {
	b.error.Operation = operation
	return b
}

// WithResource specifies the resource being operated on.
func (b *ErrorBuilder) WithResource(resource string) *ErrorBuilder {
	b.error.Resource = resource
	return b
}

// WithCause adds the underlying cause error.
func (b *ErrorBuilder) WithCause(cause error) *ErrorBuilder {
	b.error.Cause = cause
	return b
}

// Build returns the constructed UnifiedError.
func (b *ErrorBuilder) Build() *UnifiedError {
	return b.error
}

// ============================================================================
// CONVENIENCE CONSTRUCTORS
// ============================================================================

// Validation creates a validation error.
func Validation(code, message string) *ErrorBuilder {
	return NewError(ErrorTypeValidation, code, message)
}

// NotFound creates a not found error.
func NotFound(code, message string) *ErrorBuilder {
	return NewError(ErrorTypeNotFound, code, message)
}

// Conflict creates a conflict error.
func Conflict(code, message string) *ErrorBuilder {
	return NewError(ErrorTypeConflict, code, message)
}

// Store creates a store connectivity or execution error.
func Store(code, message string) *ErrorBuilder {
	return NewError(ErrorTypeStore, code, message)
}

// Serialization creates a serialization error.
func Serialization(code, message string) *ErrorBuilder {
	return NewError(ErrorTypeSerialization, code, message)
}

// Internal creates an internal error.
func Internal(code, message string) *ErrorBuilder {
	return NewError(ErrorTypeInternal, code, message)
}

// InvalidValue reports a value that cannot be marshaled for a property.
func InvalidValue(property string, value any, expected string) *UnifiedError {
	return Validation(CodeInvalidValue, fmt.Sprintf("invalid value for property %q", property)).
		WithResource(property).
		WithDetails(fmt.Sprintf("expected %s, got %v", expected, value)).
		Build()
}

// ============================================================================
// ERROR CLASSIFICATION AND CHECKING
// ============================================================================

// IsType checks if an error is of a specific type.
func IsType(err error, errType ErrorType) bool {
	var unifiedErr *UnifiedError
	if errors.As(err, &unifiedErr) {
		return unifiedErr.Type == errType
	}
	return false
}

// IsValidation checks if an error is a validation error.
func IsValidation(err error) bool {
	return IsType(err, ErrorTypeValidation)
}

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	return IsType(err, ErrorTypeNotFound)
}

// IsConflict checks if an error is a conflict error.
func IsConflict(err error) bool {
	return IsType(err, ErrorTypeConflict)
}

// IsStore checks if an error is a store error.
func IsStore(err error) bool {
	return IsType(err, ErrorTypeStore)
}

// IsSerialization checks if an error is a serialization error.
func IsSerialization(err error) bool {
	return IsType(err, ErrorTypeSerialization)
}

// HasCode reports whether the outermost UnifiedError in the chain carries code.
func HasCode(err error, code string) bool {
	var unifiedErr *UnifiedError
	if errors.As(err, &unifiedErr) {
		return unifiedErr.Code == code
	}
	return false
}

// ============================================================================
// ERROR WRAPPING AND CONTEXT PRESERVATION
// ============================================================================

// Wrap wraps an existing error with additional context while preserving the
// original classification. Unclassified errors become STORE errors when they
// come out of a store call and INTERNAL otherwise; use WrapStore for the former.
func Wrap(err error, operation, message string) error {
	if err == nil {
		return nil
	}

	var existingErr *UnifiedError
	if errors.As(err, &existingErr) {
		return &UnifiedError{
			Type:      existingErr.Type,
			Code:      existingErr.Code,
			Message:   message,
			Details:   existingErr.Error(),
			Operation: operation,
			Resource:  existingErr.Resource,
			Cause:     err,
			File:      existingErr.File,
			Line:      existingErr.Line,
		}
	}

	_, file, line, _ := runtime.Caller(1)
	return &UnifiedError{
		Type:      ErrorTypeInternal,
		Code:      "WRAP_ERROR",
		Message:   message,
		Details:   err.Error(),
		Operation: operation,
		Cause:     err,
		File:      file,
		Line:      line,
	}
}

// WrapStore classifies a raw store failure. Already classified errors keep
// their type so that validation raised inside a transaction stays validation.
func WrapStore(err error, operation string) error {
	if err == nil {
		return nil
	}
	var existingErr *UnifiedError
	if errors.As(err, &existingErr) {
		return Wrap(err, operation, fmt.Sprintf("%s failed", operation))
	}
	return Store(CodeStoreExecution, fmt.Sprintf("%s failed", operation)).
		WithOperation(operation).
		WithCause(err).
		Build()
}
