package cypher

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"typegraph-backend/internal/domain/node"
	"typegraph-backend/internal/repository"
)

// Builder assembles one statement. Identifier helpers validate as they go and
// the first failure is returned from Statement, so call sites read linearly:
//
//	b := cypher.New("gateway.LoadByType")
//	b.Line("MATCH (n:%s)", b.Label(label))
//	stmt, err := b.Statement()
type Builder struct {
	operation string
	buf       strings.Builder
	params    map[string]any
	next      int
	err       error
}

// New starts a statement for the named operation.
func New(operation string) *Builder {
	return &Builder{operation: operation, params: make(map[string]any)}
}

// Line appends one formatted line. Format strings are constant query text;
// dynamic parts must come from Label, Prop, RelType or Param.
func (b *Builder) Line(format string, args ...any) *Builder {
	if b.buf.Len() > 0 {
		b.buf.WriteByte('\n')
	}
	fmt.Fprintf(&b.buf, format, args...)
	return b
}

// Label returns a validated, quoted node label.
func (b *Builder) Label(name string) string {
	return b.ident(KindLabel, name)
}

// RelType returns a validated, quoted relationship type.
func (b *Builder) RelType(name string) string {
	return b.ident(KindRelationship, name)
}

// Prop returns alias.`name` after validating name.
func (b *Builder) Prop(alias, name string) string {
	return alias + "." + b.ident(KindProperty, name)
}

// Param binds v and returns its placeholder. node.Value arguments are bound
// as their wire form.
func (b *Builder) Param(v any) string {
	if val, ok := v.(node.Value); ok {
		v = val.Wire()
	}
	key := "p" + strconv.Itoa(b.next)
	b.next++
	b.params[key] = v
	return "$" + key
}

// Named binds v under a fixed name, for values referenced more than once.
func (b *Builder) Named(name string, v any) string {
	if val, ok := v.(node.Value); ok {
		v = val.Wire()
	}
	b.params[name] = v
	return "$" + name
}

// Equals renders AND-equality over props in key order.
func (b *Builder) Equals(alias string, props map[string]any) string {
	keys := sortedKeys(props)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, b.Prop(alias, k)+" = "+b.Param(props[k]))
	}
	return strings.Join(parts, " AND ")
}

// Assign renders a SET list over values in key order.
func (b *Builder) Assign(alias string, values map[string]node.Value) string {
	keys := sortedKeys(values)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, b.Prop(alias, k)+" = "+b.Param(values[k]))
	}
	return strings.Join(parts, ", ")
}

// Map renders a literal property map {`a`: $p0, ...} in key order.
func (b *Builder) Map(values map[string]node.Value) string {
	keys := sortedKeys(values)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, b.ident(KindProperty, k)+": "+b.Param(values[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Filter renders the AND of every constraining predicate, or "" when the
// filter constrains nothing.
func (b *Builder) Filter(alias string, f node.Filter) string {
	keys := sortedKeys(f)
	var parts []string
	for _, k := range keys {
		switch p := f[k].(type) {
		case node.BoolEquals:
			parts = append(parts, b.Prop(alias, k)+" = "+b.Param(p.Value))
		case node.DateRange:
			if p.From != nil {
				parts = append(parts, b.Prop(alias, k)+" >= "+b.Param(*p.From))
			}
			if p.To != nil {
				parts = append(parts, b.Prop(alias, k)+" <= "+b.Param(*p.To))
			}
		case node.Contains:
			parts = append(parts, "toLower(toString("+b.Prop(alias, k)+")) CONTAINS toLower("+b.Param(p.Text)+")")
		}
	}
	return strings.Join(parts, " AND ")
}

// Err returns the first identifier failure, if any.
func (b *Builder) Err() error {
	return b.err
}

// Statement returns the finished statement or the first identifier failure.
func (b *Builder) Statement() (repository.Statement, error) {
	if b.err != nil {
		return repository.Statement{}, b.err
	}
	return repository.Statement{Cypher: b.buf.String(), Params: b.params, Operation: b.operation}, nil
}

func (b *Builder) ident(kind IdentifierKind, name string) string {
	if err := ValidateIdentifier(kind, name); err != nil {
		if b.err == nil {
			b.err = err
		}
		return "``"
	}
	return quote(name)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
