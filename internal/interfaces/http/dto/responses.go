package dto

import (
	"typegraph-backend/internal/domain/node"
	"typegraph-backend/internal/domain/schema"
)

// PropertyResponse describes one schema property.
type PropertyResponse struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Default string `json:"default,omitempty"`
}

// TypeResponse describes a node type.
type TypeResponse struct {
	Label         string             `json:"label"`
	InternalLabel string             `json:"internal_label"`
	Properties    []PropertyResponse `json:"properties"`
}

// NewTypeResponse converts a node type.
func NewTypeResponse(t schema.NodeType) TypeResponse {
	props := make([]PropertyResponse, len(t.Properties))
	for i, p := range t.Properties {
		props[i] = PropertyResponse{Name: p.Name, Type: p.Type.String(), Default: p.Default}
	}
	return TypeResponse{Label: t.HumanLabel, InternalLabel: t.InternalLabel, Properties: props}
}

// TypeListResponse lists every registered type.
type TypeListResponse struct {
	Generation int            `json:"generation"`
	Types      []TypeResponse `json:"types"`
}

// NodeListResponse wraps a list of nodes.
type NodeListResponse struct {
	Type  string        `json:"type,omitempty"`
	Count int           `json:"count"`
	Nodes []node.Record `json:"nodes"`
}

// NewNodeList builds a list response that always serialises nodes as an array.
func NewNodeList(typeLabel string, records []node.Record) NodeListResponse {
	if records == nil {
		records = []node.Record{}
	}
	return NodeListResponse{Type: typeLabel, Count: len(records), Nodes: records}
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status         string `json:"status"`
	Store          string `json:"store"`
	CircuitBreaker string `json:"circuit_breaker,omitempty"`
	Types          int    `json:"types"`
}

// ValidationError describes one rejected field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is returned by the request validator.
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (e ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "validation failed"
	}
	return e.Errors[0].Field + ": " + e.Errors[0].Message
}
