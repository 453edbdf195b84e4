// Package schema defines runtime node types: a human label bound to a
// generated internal label and an ordered, typed property schema.
package schema

import (
	"fmt"

	"typegraph-backend/internal/domain/node"
	appErrors "typegraph-backend/internal/errors"
)

// Default schema property names seeded into every new type.
const (
	PropRelevance = "relevance"
	PropName      = "name"
	PropDate      = "date"
	PropFilePath  = "file_path"
)

// PropertyDef declares one property of a node type.
type PropertyDef struct {
	Name string
	Type node.PrimitiveType
	// Default is the literal used when a value is missing on create and when
	// backfilling existing nodes. Empty means the type's zero value.
	Default string
}

// DefaultValue returns the value stored when none was supplied.
func (p PropertyDef) DefaultValue() node.Value {
	if p.Default == "" {
		return node.ZeroValue(p.Type)
	}
	v, err := node.Marshal(p.Name, p.Type, p.Default)
	if err != nil {
		return node.ZeroValue(p.Type)
	}
	return v
}

// DefaultProperties is the schema every new type starts with.
func DefaultProperties() []PropertyDef {
	return []PropertyDef{
		{Name: PropRelevance, Type: node.TypeBoolean, Default: "true"},
		{Name: PropName, Type: node.TypeString},
		{Name: PropDate, Type: node.TypeDate},
		{Name: PropFilePath, Type: node.TypeString},
	}
}

// NodeType binds a human label to its internal store label and schema.
type NodeType struct {
	HumanLabel    string
	InternalLabel string
	Properties    []PropertyDef
}

// Property looks up a property definition by name.
func (t NodeType) Property(name string) (PropertyDef, bool) {
	for _, p := range t.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return PropertyDef{}, false
}

// PropertyNames returns names in schema order.
func (t NodeType) PropertyNames() []string {
	names := make([]string, len(t.Properties))
	for i, p := range t.Properties {
		names[i] = p.Name
	}
	return names
}

// Marshal validates raw user input against the schema and fills defaults for
// every declared property that was not supplied. Unknown names are rejected.
func (t NodeType) Marshal(values map[string]any) (map[string]node.Value, error) {
	out := make(map[string]node.Value, len(t.Properties))
	for name := range values {
		if name == node.KeyID || name == node.KeyLabel {
			continue
		}
		if _, ok := t.Property(name); !ok {
			return nil, appErrors.Validation(appErrors.CodeUnknownProperty,
				fmt.Sprintf("property %q is not declared on type %q", name, t.HumanLabel)).
				WithResource(name).
				Build()
		}
	}
	for _, p := range t.Properties {
		raw, ok := values[p.Name]
		if !ok {
			out[p.Name] = p.DefaultValue()
			continue
		}
		v, err := node.Marshal(p.Name, p.Type, raw)
		if err != nil {
			return nil, err
		}
		out[p.Name] = v
	}
	return out, nil
}

// MarshalPartial validates only the supplied values, for updates.
func (t NodeType) MarshalPartial(values map[string]any) (map[string]node.Value, error) {
	out := make(map[string]node.Value, len(values))
	for name, raw := range values {
		if name == node.KeyID || name == node.KeyLabel {
			continue
		}
		p, ok := t.Property(name)
		if !ok {
			return nil, appErrors.Validation(appErrors.CodeUnknownProperty,
				fmt.Sprintf("property %q is not declared on type %q", name, t.HumanLabel)).
				WithResource(name).
				Build()
		}
		v, err := node.Marshal(p.Name, p.Type, raw)
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}

// Unmarshal reads a stored property bag with the schema's types. Properties
// the schema does not declare are kept with their wire kind.
func (t NodeType) Unmarshal(props map[string]any) map[string]node.Value {
	out := make(map[string]node.Value, len(props))
	for name, raw := range props {
		if p, ok := t.Property(name); ok {
			out[name] = node.Unmarshal(p.Type, raw)
			continue
		}
		out[name] = node.FromWire(raw)
	}
	return out
}

func (t NodeType) clone() NodeType {
	c := t
	c.Properties = append([]PropertyDef(nil), t.Properties...)
	return c
}
