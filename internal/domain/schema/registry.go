package schema

import (
	"fmt"
	"strconv"
	"strings"

	"typegraph-backend/internal/domain/node"
	appErrors "typegraph-backend/internal/errors"
)

// InternalLabelPrefix prefixes every generated internal label.
const InternalLabelPrefix = "Label_"

// Registry is the in-memory set of node types. Generation only grows, so an
// internal label is never handed out twice.
type Registry struct {
	Generation int
	Types      []NodeType
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Find returns the type with exactly this human label.
func (r *Registry) Find(humanLabel string) (NodeType, bool) {
	for _, t := range r.Types {
		if t.HumanLabel == humanLabel {
			return t, true
		}
	}
	return NodeType{}, false
}

// FindInternal returns the type owning an internal label.
func (r *Registry) FindInternal(internalLabel string) (NodeType, bool) {
	for _, t := range r.Types {
		if t.InternalLabel == internalLabel {
			return t, true
		}
	}
	return NodeType{}, false
}

// AddType appends a type with the default schema and the next internal label.
func (r *Registry) AddType(humanLabel string) (NodeType, error) {
	if strings.TrimSpace(humanLabel) == "" {
		return NodeType{}, appErrors.Validation(appErrors.CodeInvalidValue, "type label must not be empty").Build()
	}
	if _, exists := r.Find(humanLabel); exists {
		return NodeType{}, appErrors.Conflict(appErrors.CodeDuplicateType,
			fmt.Sprintf("type %q already exists", humanLabel)).
			WithResource(humanLabel).
			Build()
	}

	r.Generation++
	t := NodeType{
		HumanLabel:    humanLabel,
		InternalLabel: InternalLabelPrefix + strconv.Itoa(r.Generation),
		Properties:    DefaultProperties(),
	}
	r.Types = append(r.Types, t)
	return t, nil
}

// AddProperty extends a type's schema in memory.
func (r *Registry) AddProperty(humanLabel string, def PropertyDef) (NodeType, error) {
	idx := r.index(humanLabel)
	if idx < 0 {
		return NodeType{}, appErrors.NotFound(appErrors.CodeTypeNotFound,
			fmt.Sprintf("type %q does not exist", humanLabel)).
			WithResource(humanLabel).
			Build()
	}
	if def.Name == node.KeyID || def.Name == node.KeyLabel {
		return NodeType{}, appErrors.Validation(appErrors.CodeReservedProperty,
			fmt.Sprintf("property name %q is reserved", def.Name)).
			WithResource(def.Name).
			Build()
	}
	if !def.Type.Valid() {
		return NodeType{}, appErrors.Validation(appErrors.CodeUnknownPrimitiveType,
			fmt.Sprintf("property %q has unknown primitive type", def.Name)).
			WithResource(def.Name).
			Build()
	}
	if def.Default != "" {
		if _, err := node.Marshal(def.Name, def.Type, def.Default); err != nil {
			return NodeType{}, err
		}
	}
	if _, exists := r.Types[idx].Property(def.Name); exists {
		return NodeType{}, appErrors.Conflict(appErrors.CodeDuplicateProperty,
			fmt.Sprintf("property %q already exists on type %q", def.Name, humanLabel)).
			WithResource(def.Name).
			Build()
	}

	r.Types[idx].Properties = append(r.Types[idx].Properties, def)
	return r.Types[idx], nil
}

// Recalculate raises Generation to the largest numeric suffix in use.
// It never lowers it.
func (r *Registry) Recalculate() {
	for _, t := range r.Types {
		suffix, ok := strings.CutPrefix(t.InternalLabel, InternalLabelPrefix)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(suffix)
		if err != nil {
			continue
		}
		if n > r.Generation {
			r.Generation = n
		}
	}
}

// Clone returns a deep copy safe to mutate.
func (r *Registry) Clone() *Registry {
	c := &Registry{Generation: r.Generation, Types: make([]NodeType, len(r.Types))}
	for i, t := range r.Types {
		c.Types[i] = t.clone()
	}
	return c
}

// Labels returns the human labels in registration order.
func (r *Registry) Labels() []string {
	labels := make([]string, len(r.Types))
	for i, t := range r.Types {
		labels[i] = t.HumanLabel
	}
	return labels
}

func (r *Registry) index(humanLabel string) int {
	for i, t := range r.Types {
		if t.HumanLabel == humanLabel {
			return i
		}
	}
	return -1
}
