// Package gateway translates schema-aware node operations into parameterised
// Cypher and converts store rows back into typed records.
package gateway

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"typegraph-backend/internal/domain/node"
	"typegraph-backend/internal/domain/schema"
	appErrors "typegraph-backend/internal/errors"
	"typegraph-backend/internal/repository"
	"typegraph-backend/internal/repository/cypher"
)

// Options holds the property names and batch size the gateway relies on.
type Options struct {
	ActiveProperty string
	DateProperty   string
	BatchSize      int
}

// DefaultOptions matches the default schema.
func DefaultOptions() Options {
	return Options{
		ActiveProperty: schema.PropRelevance,
		DateProperty:   schema.PropDate,
		BatchSize:      500,
	}
}

// Gateway is the graph gateway. It is safe for concurrent use; it holds no
// state besides the runner it issues statements through.
type Gateway struct {
	runner repository.Runner
	logger *zap.Logger
	opts   Options
}

// New creates a gateway over a store or any other runner.
func New(runner repository.Runner, logger *zap.Logger, opts Options) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultOptions().BatchSize
	}
	if opts.ActiveProperty == "" {
		opts.ActiveProperty = schema.PropRelevance
	}
	if opts.DateProperty == "" {
		opts.DateProperty = schema.PropDate
	}
	return &Gateway{runner: runner, logger: logger.Named("gateway"), opts: opts}
}

// WithRunner returns a gateway bound to another runner, typically the
// transaction runner of an ExecuteWrite callback.
func (g *Gateway) WithRunner(r repository.Runner) *Gateway {
	c := *g
	c.runner = r
	return &c
}

// Options returns the configured options.
func (g *Gateway) Options() Options {
	return g.opts
}

// inWrite runs work in one write transaction. A gateway already bound to a
// transaction runs work directly inside it.
func (g *Gateway) inWrite(ctx context.Context, work func(tx *Gateway) error) error {
	store, ok := g.runner.(repository.Store)
	if !ok {
		return work(g)
	}
	return store.ExecuteWrite(ctx, func(tx repository.Runner) error {
		return work(g.WithRunner(tx))
	})
}

// run executes a finished builder.
func (g *Gateway) run(ctx context.Context, b *cypher.Builder) ([]repository.Record, error) {
	stmt, err := b.Statement()
	if err != nil {
		return nil, err
	}
	records, err := g.runner.Run(ctx, stmt)
	if err != nil {
		return nil, appErrors.WrapStore(err, stmt.Operation)
	}
	return records, nil
}

// fail logs a failure of an operation that may have touched persisted state
// and returns it unchanged.
func (g *Gateway) fail(operation string, err error, fields ...zap.Field) error {
	if err == nil {
		return nil
	}
	if appErrors.IsValidation(err) || appErrors.IsConflict(err) || appErrors.IsNotFound(err) {
		g.logger.Debug("operation rejected", append(fields, zap.String("operation", operation), zap.Error(err))...)
		return err
	}
	g.logger.Error("operation failed", append(fields, zap.String("operation", operation), zap.Error(err))...)
	return err
}

const returnNode = "RETURN id(n) AS id, labels(n) AS labels, properties(n) AS props"

// LoadByType returns every node of the type, dates normalised on read.
func (g *Gateway) LoadByType(ctx context.Context, t schema.NodeType) ([]node.Record, error) {
	const op = "gateway.LoadByType"
	b := cypher.New(op)
	b.Line("MATCH (n:%s)", b.Label(t.InternalLabel))
	b.Line(returnNode)
	b.Line("ORDER BY id")

	records, err := g.run(ctx, b)
	if err != nil {
		return nil, g.fail(op, err, zap.String("label", t.InternalLabel))
	}
	return g.records(records, &t), nil
}

// LoadFiltered returns the nodes of the type matching every predicate.
func (g *Gateway) LoadFiltered(ctx context.Context, t schema.NodeType, filter node.Filter) ([]node.Record, error) {
	const op = "gateway.LoadFiltered"
	for name, pred := range filter {
		def, ok := t.Property(name)
		if !ok {
			return nil, appErrors.Validation(appErrors.CodeUnknownProperty,
				fmt.Sprintf("cannot filter on undeclared property %q", name)).
				WithOperation(op).
				WithResource(name).
				Build()
		}
		if !node.Applies(pred, def.Type) {
			return nil, appErrors.Validation(appErrors.CodeInvalidValue,
				fmt.Sprintf("%T filter does not apply to %s property %q", pred, def.Type, name)).
				WithOperation(op).
				WithResource(name).
				Build()
		}
	}

	b := cypher.New(op)
	b.Line("MATCH (n:%s)", b.Label(t.InternalLabel))
	if where := b.Filter("n", filter); where != "" {
		b.Line("WHERE %s", where)
	}
	b.Line(returnNode)
	b.Line("ORDER BY id")

	records, err := g.run(ctx, b)
	if err != nil {
		return nil, g.fail(op, err, zap.String("label", t.InternalLabel))
	}
	return g.records(records, &t), nil
}

// LoadExpired returns active nodes dated before today.
func (g *Gateway) LoadExpired(ctx context.Context, t schema.NodeType, today node.Date) ([]node.Record, error) {
	return g.LoadFiltered(ctx, t, node.ExpiredFilter(g.opts.DateProperty, g.opts.ActiveProperty, today))
}

// Search returns nodes where any property's string form contains text,
// ignoring case.
func (g *Gateway) Search(ctx context.Context, t schema.NodeType, text string) ([]node.Record, error) {
	const op = "gateway.Search"
	b := cypher.New(op)
	b.Line("MATCH (n:%s)", b.Label(t.InternalLabel))
	b.Line("WHERE any(k IN keys(n) WHERE toLower(toString(n[k])) CONTAINS toLower(%s))", b.Param(text))
	b.Line(returnNode)
	b.Line("ORDER BY id")

	records, err := g.run(ctx, b)
	if err != nil {
		return nil, g.fail(op, err, zap.String("label", t.InternalLabel))
	}
	return g.records(records, &t), nil
}

// LoadNode reads one node by id regardless of its label.
func (g *Gateway) LoadNode(ctx context.Context, id int64) (node.Record, error) {
	const op = "gateway.LoadNode"
	b := cypher.New(op)
	b.Line("MATCH (n) WHERE id(n) = %s", b.Param(id))
	b.Line(returnNode)

	records, err := g.run(ctx, b)
	if err != nil {
		return node.Record{}, g.fail(op, err, zap.Int64("id", id))
	}
	if len(records) == 0 {
		return node.Record{}, nodeNotFound(op, id)
	}
	return g.record(records[0], nil), nil
}

// records converts rows; t may be nil for schema-less reads.
func (g *Gateway) records(rows []repository.Record, t *schema.NodeType) []node.Record {
	out := make([]node.Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, g.record(row, t))
	}
	return out
}

func (g *Gateway) record(row repository.Record, t *schema.NodeType) node.Record {
	id, _ := row.Int64("id")
	label := node.UnknownLabel
	if labels := row.Strings("labels"); len(labels) > 0 {
		label = labels[0]
	}

	raw := row.Map("props")
	var props map[string]node.Value
	if t != nil {
		props = t.Unmarshal(raw)
		if label == node.UnknownLabel {
			label = t.InternalLabel
		}
	} else {
		props = make(map[string]node.Value, len(raw))
		for k, v := range raw {
			if k == g.opts.DateProperty {
				props[k] = node.NormalizeDate(v)
				continue
			}
			props[k] = node.FromWire(v)
		}
	}
	return node.Persisted(id, label, props)
}

func nodeNotFound(op string, id int64) error {
	return appErrors.NotFound(appErrors.CodeNodeNotFound, fmt.Sprintf("node %d does not exist", id)).
		WithOperation(op).
		WithResource(fmt.Sprint(id)).
		Build()
}
