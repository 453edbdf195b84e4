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

// AddNode validates values against the schema, fills defaults and creates
// exactly one node.
func (g *Gateway) AddNode(ctx context.Context, t schema.NodeType, values map[string]any) (node.Record, error) {
	const op = "gateway.AddNode"
	props, err := t.Marshal(values)
	if err != nil {
		return node.Record{}, appErrors.Wrap(err, op, "node values rejected")
	}

	b := cypher.New(op)
	b.Line("CREATE (n:%s %s)", b.Label(t.InternalLabel), b.Map(props))
	b.Line(returnNode)

	records, err := g.run(ctx, b)
	if err != nil {
		return node.Record{}, g.fail(op, err, zap.String("label", t.InternalLabel))
	}
	if len(records) != 1 {
		return node.Record{}, g.fail(op, appErrors.Internal(appErrors.CodeStoreExecution,
			fmt.Sprintf("create returned %d rows", len(records))).WithOperation(op).Build())
	}
	return g.record(records[0], &t), nil
}

// UpdateNode sets values on the node addressed by match. An id match must hit
// the node; a property match must hit exactly one node, checked in the same
// write transaction that updates it. A type without declared properties
// accepts values unvalidated.
func (g *Gateway) UpdateNode(ctx context.Context, t schema.NodeType, match node.Match, values map[string]any) (node.Record, error) {
	const op = "gateway.UpdateNode"
	if match.Empty() {
		return node.Record{}, emptyMatch(op)
	}

	updates, err := g.marshalValues(t, values)
	if err != nil {
		return node.Record{}, appErrors.Wrap(err, op, "update values rejected")
	}
	if len(updates) == 0 {
		return node.Record{}, appErrors.Validation(appErrors.CodeInvalidValue, "no values to update").
			WithOperation(op).
			Build()
	}

	var updated node.Record
	err = g.addressed(ctx, op, t, match, func(tx *Gateway, where func(*cypher.Builder) string) error {
		b := cypher.New(op)
		b.Line("MATCH (n:%s)", b.Label(t.InternalLabel))
		b.Line("WHERE %s", where(b))
		b.Line("SET %s", b.Assign("n", updates))
		b.Line(returnNode)

		records, err := tx.run(ctx, b)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return notFoundMatch(op, match)
		}
		updated = tx.record(records[0], &t)
		return nil
	})
	if err != nil {
		return node.Record{}, g.fail(op, err, zap.String("label", t.InternalLabel))
	}
	return updated, nil
}

// DeleteNode detach-deletes the node addressed by match, so no relationship
// survives it.
func (g *Gateway) DeleteNode(ctx context.Context, t schema.NodeType, match node.Match) error {
	const op = "gateway.DeleteNode"
	if match.Empty() {
		return emptyMatch(op)
	}

	err := g.addressed(ctx, op, t, match, func(tx *Gateway, where func(*cypher.Builder) string) error {
		b := cypher.New(op)
		b.Line("MATCH (n:%s)", b.Label(t.InternalLabel))
		b.Line("WHERE %s", where(b))
		b.Line("DETACH DELETE n")
		b.Line("RETURN count(*) AS count")

		records, err := tx.run(ctx, b)
		if err != nil {
			return err
		}
		n, err := repository.Count(records, "count")
		if err != nil {
			return appErrors.WrapStore(err, op)
		}
		if n == 0 {
			return notFoundMatch(op, match)
		}
		return nil
	})
	return g.fail(op, err, zap.String("label", t.InternalLabel))
}

// addressed resolves match into a WHERE clause and runs write with it. Id
// matches run directly. Property matches are counted first inside one write
// transaction: zero is NOT_FOUND and more than one is AMBIGUOUS_MATCH, with
// nothing written in either case.
func (g *Gateway) addressed(
	ctx context.Context,
	op string,
	t schema.NodeType,
	match node.Match,
	write func(tx *Gateway, where func(*cypher.Builder) string) error,
) error {
	if id, ok := match.ID(); ok {
		return write(g, func(b *cypher.Builder) string {
			return "id(n) = " + b.Param(id)
		})
	}

	conditions, err := g.marshalValues(t, match.Properties())
	if err != nil {
		return appErrors.Wrap(err, op, "match values rejected")
	}
	asAny := make(map[string]any, len(conditions))
	for k, v := range conditions {
		asAny[k] = v
	}
	where := func(b *cypher.Builder) string {
		return b.Equals("n", asAny)
	}

	return g.inWrite(ctx, func(tx *Gateway) error {
		b := cypher.New(op)
		b.Line("MATCH (n:%s)", b.Label(t.InternalLabel))
		b.Line("WHERE %s", where(b))
		b.Line("RETURN count(n) AS count")

		records, err := tx.run(ctx, b)
		if err != nil {
			return err
		}
		n, err := repository.Count(records, "count")
		if err != nil {
			return appErrors.WrapStore(err, op)
		}
		switch {
		case n == 0:
			return notFoundMatch(op, match)
		case n > 1:
			return appErrors.Validation(appErrors.CodeAmbiguousMatch,
				fmt.Sprintf("match addresses %d nodes, expected exactly one", n)).
				WithOperation(op).
				WithResource(t.InternalLabel).
				WithDetails("address the node by id").
				Build()
		}
		return write(tx, where)
	})
}

// marshalValues converts raw values with the schema, or by wire kind when the
// type declares no properties.
func (g *Gateway) marshalValues(t schema.NodeType, values map[string]any) (map[string]node.Value, error) {
	if len(t.Properties) > 0 {
		return t.MarshalPartial(values)
	}
	out := make(map[string]node.Value, len(values))
	for k, v := range values {
		if k == node.KeyID || k == node.KeyLabel {
			continue
		}
		out[k] = node.FromWire(v)
	}
	return out, nil
}

func emptyMatch(op string) error {
	return appErrors.Validation(appErrors.CodeEmptyMatch, "match must carry an id or at least one property").
		WithOperation(op).
		Build()
}

func notFoundMatch(op string, match node.Match) error {
	if id, ok := match.ID(); ok {
		return nodeNotFound(op, id)
	}
	return appErrors.NotFound(appErrors.CodeNodeNotFound, "no node matches the given properties").
		WithOperation(op).
		Build()
}
