package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"typegraph-backend/internal/domain/node"
	appErrors "typegraph-backend/internal/errors"
)

// CodecVersion is written into every encoded payload.
const CodecVersion = 1

type payload struct {
	Version    int           `json:"version"`
	Generation int           `json:"generation"`
	Types      []typePayload `json:"types"`
}

type typePayload struct {
	Label         string            `json:"label"`
	InternalLabel string            `json:"internal_label"`
	Properties    []propertyPayload `json:"properties"`
}

type propertyPayload struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Default string `json:"default,omitempty"`
}

// Encode serialises the registry. Property order is preserved.
func Encode(r *Registry) ([]byte, error) {
	p := payload{Version: CodecVersion, Generation: r.Generation, Types: make([]typePayload, 0, len(r.Types))}
	for _, t := range r.Types {
		tp := typePayload{Label: t.HumanLabel, InternalLabel: t.InternalLabel}
		for _, prop := range t.Properties {
			tag, err := prop.Type.MarshalText()
			if err != nil {
				return nil, appErrors.Serialization(appErrors.CodeUnknownPrimitiveType,
					fmt.Sprintf("cannot encode property %q of type %q", prop.Name, t.HumanLabel)).
					WithCause(err).
					Build()
			}
			tp.Properties = append(tp.Properties, propertyPayload{Name: prop.Name, Type: string(tag), Default: prop.Default})
		}
		p.Types = append(p.Types, tp)
	}
	return json.Marshal(p)
}

// Decode parses a payload. The returned registry is never nil: malformed
// input yields an empty registry, and properties with unresolvable type tags
// degrade to String. Both cases are reported through a SERIALIZATION error
// next to the usable registry.
func Decode(data []byte) (*Registry, error) {
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return NewRegistry(), appErrors.Serialization(appErrors.CodeRegistryDecode, "registry payload is malformed").
			WithCause(err).
			Build()
	}

	r := &Registry{Generation: p.Generation}
	var problems []string
	for _, tp := range p.Types {
		if _, dup := r.Find(tp.Label); dup {
			problems = append(problems, fmt.Sprintf("duplicate type %q dropped", tp.Label))
			continue
		}
		t := NodeType{HumanLabel: tp.Label, InternalLabel: tp.InternalLabel}
		for _, pp := range tp.Properties {
			pt, err := node.ParsePrimitiveType(pp.Type)
			if err != nil {
				problems = append(problems, fmt.Sprintf("%s.%s: unknown type tag %q, using string", tp.Label, pp.Name, pp.Type))
				pt = node.TypeString
			}
			t.Properties = append(t.Properties, PropertyDef{Name: pp.Name, Type: pt, Default: pp.Default})
		}
		r.Types = append(r.Types, t)
	}
	r.Recalculate()

	if len(problems) > 0 {
		return r, appErrors.Serialization(appErrors.CodeRegistryDecode, "registry payload decoded with fallbacks").
			WithDetails(strings.Join(problems, "; ")).
			Build()
	}
	return r, nil
}
