// Package node holds the runtime representation of graph nodes: typed property
// values, the marshaling contract between user input and store values, the
// display rendering and the filter predicates used to query nodes.
package node

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	appErrors "typegraph-backend/internal/errors"
)

// Reserved keys never stored as properties and never rendered.
const (
	KeyID    = "Id"
	KeyLabel = "Label"
)

// UnknownLabel tags neighbours whose store entry carries no label.
const UnknownLabel = "Unknown"

// Record is a node as seen by callers: store id, label and property bag.
type Record struct {
	id    int64
	hasID bool

	Label      string
	Properties map[string]Value
}

// NewRecord returns a record that has not been persisted yet.
func NewRecord(label string, props map[string]Value) Record {
	if props == nil {
		props = make(map[string]Value)
	}
	return Record{Label: label, Properties: props}
}

// Persisted returns a record carrying its store id.
func Persisted(id int64, label string, props map[string]Value) Record {
	r := NewRecord(label, props)
	r.id, r.hasID = id, true
	return r
}

// ID returns the store id and whether one has been assigned.
func (r Record) ID() (int64, bool) {
	return r.id, r.hasID
}

// AssignID sets the store id. An assigned id never changes.
func (r *Record) AssignID(id int64) error {
	if r.hasID && r.id != id {
		return appErrors.Validation(appErrors.CodeInvalidValue, "node id is immutable once assigned").
			WithDetails(fmt.Sprintf("have %d, got %d", r.id, id)).
			Build()
	}
	r.id, r.hasID = id, true
	return nil
}

// Get returns a property value.
func (r Record) Get(name string) (Value, bool) {
	v, ok := r.Properties[name]
	return v, ok
}

// Match returns the identity used to address this node in the store: the
// store id when known, otherwise the full property set.
func (r Record) Match() Match {
	if r.hasID {
		return ByID(r.id)
	}
	props := make(map[string]any, len(r.Properties))
	for k, v := range r.Properties {
		if k == KeyID || k == KeyLabel {
			continue
		}
		props[k] = v
	}
	return Match{props: props}
}

// DisplayString renders "key: value" pairs joined by ", ", sorted by key and
// excluding the reserved Id and Label keys. It is never used for identity.
func (r Record) DisplayString() string {
	return Display(r.Properties)
}

// Display renders a property bag the way DisplayString does.
func Display(props map[string]Value) string {
	keys := make([]string, 0, len(props))
	for k := range props {
		if k == KeyID || k == KeyLabel {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+props[k].String())
	}
	return strings.Join(parts, ", ")
}

type recordJSON struct {
	ID         *int64           `json:"id,omitempty"`
	Label      string           `json:"label"`
	Properties map[string]Value `json:"properties"`
	Display    string           `json:"display"`
}

// MarshalJSON includes the derived display string.
func (r Record) MarshalJSON() ([]byte, error) {
	out := recordJSON{
		Label:      r.Label,
		Properties: r.Properties,
		Display:    r.DisplayString(),
	}
	if r.hasID {
		id := r.id
		out.ID = &id
	}
	return json.Marshal(out)
}

// Match addresses nodes for update and delete.
type Match struct {
	id    int64
	byID  bool
	props map[string]any
}

// ByID addresses exactly one node by store id.
func ByID(id int64) Match {
	return Match{id: id, byID: true}
}

// ByProperties addresses nodes by AND-equality of every given property.
// An Id key switches to ByID and must hold an integer; the reserved Label key
// is dropped.
func ByProperties(props map[string]any) (Match, error) {
	if raw, ok := props[KeyID]; ok {
		id, err := parseID(raw)
		if err != nil {
			return Match{}, err
		}
		return ByID(id), nil
	}
	clean := make(map[string]any, len(props))
	for k, v := range props {
		if k == KeyLabel {
			continue
		}
		clean[k] = v
	}
	return Match{props: clean}, nil
}

// parseID accepts every integer-valued numeric form a decoder may produce.
func parseID(raw any) (int64, error) {
	switch v := raw.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case float64:
		if v == math.Trunc(v) && v >= math.MinInt64 && v < math.MaxInt64 {
			return int64(v), nil
		}
	case json.Number:
		if id, err := v.Int64(); err == nil {
			return id, nil
		}
	}
	return 0, appErrors.Validation(appErrors.CodeMissingID, fmt.Sprintf("%s must be an integer, got %v", KeyID, raw)).
		WithResource(KeyID).
		Build()
}

// ID returns the id and whether the match is id based.
func (m Match) ID() (int64, bool) {
	return m.id, m.byID
}

// Properties returns the property conditions of a property match.
func (m Match) Properties() map[string]any {
	return m.props
}

// Empty reports whether the match constrains nothing.
func (m Match) Empty() bool {
	return !m.byID && len(m.props) == 0
}
