// Package dto holds the request and response bodies of the HTTP API.
package dto

import (
	"fmt"
	"net/url"
	"strings"

	"typegraph-backend/internal/domain/node"
	"typegraph-backend/internal/domain/schema"
	"typegraph-backend/internal/service/bulkimport"
)

// CreateTypeRequest is the body of POST /types.
type CreateTypeRequest struct {
	Label string `json:"label" validate:"required,max=200"`
}

// AddPropertyRequest is the body of POST /types/{type}/properties.
type AddPropertyRequest struct {
	Name    string `json:"name" validate:"required,identifier"`
	Type    string `json:"type" validate:"required,primitive"`
	Default string `json:"default,omitempty" validate:"max=1000"`
}

// ToPropertyDef converts the request; the type tag is already validated.
func (r AddPropertyRequest) ToPropertyDef() (schema.PropertyDef, error) {
	t, err := node.ParsePrimitiveType(r.Type)
	if err != nil {
		return schema.PropertyDef{}, err
	}
	return schema.PropertyDef{Name: r.Name, Type: t, Default: r.Default}, nil
}

// NodeValuesRequest is the body of POST and PUT on nodes: property name to
// raw value (string, bool or date string).
type NodeValuesRequest struct {
	Values map[string]any `json:"values" validate:"required"`
}

// DeleteNodesRequest deletes by property match instead of id.
type DeleteNodesRequest struct {
	Match map[string]any `json:"match" validate:"required,min=1"`
}

// CreateRelationshipRequest is the body of POST /relationships.
type CreateRelationshipRequest struct {
	Source int64  `json:"source" validate:"gte=0"`
	Target int64  `json:"target" validate:"gte=0"`
	Type   string `json:"type" validate:"required,identifier"`
}

// ImportRequest is the body of POST /types/{type}/import.
type ImportRequest struct {
	Dir        string   `json:"dir"`
	Date       string   `json:"date,omitempty"`
	Active     *bool    `json:"active,omitempty"`
	Extensions []string `json:"extensions,omitempty"`
	Skip       []string `json:"skip,omitempty"`
	MaxFiles   int      `json:"max_files,omitempty"`
}

// ToOptions converts the request. Imported nodes are active unless the
// request says otherwise.
func (r ImportRequest) ToOptions() bulkimport.Options {
	active := true
	if r.Active != nil {
		active = *r.Active
	}
	return bulkimport.Options{
		Dir:        r.Dir,
		Date:       r.Date,
		Active:     active,
		Extensions: r.Extensions,
		Skip:       r.Skip,
		MaxFiles:   r.MaxFiles,
	}
}

// ViewRequest is the body of PUT /view.
type ViewRequest struct {
	Type   string            `json:"type" validate:"required"`
	Search string            `json:"search,omitempty"`
	Filter map[string]string `json:"filter,omitempty"`
}

// ParseFilter reads filter parameters against t's schema:
//
//	<boolean prop>=true|false
//	<date prop>=<from>..<to>   either side may be empty
//	<string prop>=<text>       case-insensitive substring
//
// Unknown properties are rejected.
func ParseFilter(t schema.NodeType, params map[string]string) (node.Filter, error) {
	filter := node.Filter{}
	for name, raw := range params {
		def, ok := t.Property(name)
		if !ok {
			return nil, fmt.Errorf("unknown filter property %q", name)
		}
		switch def.Type {
		case node.TypeBoolean:
			v, err := node.Marshal(name, node.TypeBoolean, raw)
			if err != nil {
				return nil, fmt.Errorf("filter %q: expected true or false", name)
			}
			b, _ := v.Bool()
			filter[name] = node.BoolEquals{Value: b}
		case node.TypeDate:
			r, err := parseDateRange(raw)
			if err != nil {
				return nil, fmt.Errorf("filter %q: %w", name, err)
			}
			filter[name] = r
		default:
			filter[name] = node.Contains{Text: raw}
		}
	}
	return filter, nil
}

// FilterParams collects query parameters other than the reserved ones.
func FilterParams(q url.Values, reserved ...string) map[string]string {
	skip := make(map[string]bool, len(reserved))
	for _, r := range reserved {
		skip[r] = true
	}
	out := make(map[string]string)
	for k, v := range q {
		if skip[k] || len(v) == 0 {
			continue
		}
		out[k] = v[0]
	}
	return out
}

func parseDateRange(raw string) (node.DateRange, error) {
	from, to, found := strings.Cut(raw, "..")
	if !found {
		// a single date matches that day only
		d, err := node.ParseDate(raw)
		if err != nil {
			return node.DateRange{}, err
		}
		return node.Between(d, d), nil
	}
	var r node.DateRange
	if from = strings.TrimSpace(from); from != "" {
		d, err := node.ParseDate(from)
		if err != nil {
			return node.DateRange{}, err
		}
		r.From = &d
	}
	if to = strings.TrimSpace(to); to != "" {
		d, err := node.ParseDate(to)
		if err != nil {
			return node.DateRange{}, err
		}
		r.To = &d
	}
	return r, nil
}
