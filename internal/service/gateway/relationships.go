package gateway

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"typegraph-backend/internal/domain/node"
	appErrors "typegraph-backend/internal/errors"
	"typegraph-backend/internal/repository"
	"typegraph-backend/internal/repository/cypher"
)

// Relationship is one directed edge.
type Relationship struct {
	ID     int64  `json:"id"`
	Type   string `json:"type"`
	Source int64  `json:"source"`
	Target int64  `json:"target"`
}

// CreateRelationship creates source-[relType]->target. An existing edge of
// the same type between the same ordered pair is a conflict.
func (g *Gateway) CreateRelationship(ctx context.Context, source, target int64, relType string) (Relationship, error) {
	const op = "gateway.CreateRelationship"
	if err := cypher.ValidateIdentifier(cypher.KindRelationship, relType); err != nil {
		return Relationship{}, err
	}

	var created Relationship
	err := g.inWrite(ctx, func(tx *Gateway) error {
		b := cypher.New(op)
		b.Line("MATCH (a), (b) WHERE id(a) = %s AND id(b) = %s", b.Named("source", source), b.Named("target", target))
		b.Line("OPTIONAL MATCH (a)-[r:%s]->(b)", b.RelType(relType))
		b.Line("RETURN count(DISTINCT a) AS nodes, count(r) AS existing")

		records, err := tx.run(ctx, b)
		if err != nil {
			return err
		}
		nodes, _ := firstInt(records, "nodes")
		existing, _ := firstInt(records, "existing")
		if nodes == 0 {
			return appErrors.NotFound(appErrors.CodeNodeNotFound,
				fmt.Sprintf("node %d or %d does not exist", source, target)).
				WithOperation(op).
				Build()
		}
		if existing > 0 {
			return appErrors.Conflict(appErrors.CodeDuplicateRelation,
				fmt.Sprintf("relationship %s from %d to %d already exists", relType, source, target)).
				WithOperation(op).
				WithResource(relType).
				Build()
		}

		b = cypher.New(op)
		b.Line("MATCH (a), (b) WHERE id(a) = %s AND id(b) = %s", b.Named("source", source), b.Named("target", target))
		b.Line("CREATE (a)-[r:%s]->(b)", b.RelType(relType))
		b.Line("RETURN id(r) AS id, type(r) AS type")

		records, err = tx.run(ctx, b)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return appErrors.Internal(appErrors.CodeStoreExecution, "relationship was not created").WithOperation(op).Build()
		}
		id, _ := records[0].Int64("id")
		created = Relationship{ID: id, Type: relType, Source: source, Target: target}
		return nil
	})
	if err != nil {
		return Relationship{}, g.fail(op, err, zap.Int64("source", source), zap.Int64("target", target), zap.String("type", relType))
	}
	return created, nil
}

// LoadRelated returns the distinct neighbours of a node in either direction,
// each tagged with its own first label.
func (g *Gateway) LoadRelated(ctx context.Context, id int64) ([]node.Record, error) {
	const op = "gateway.LoadRelated"
	b := cypher.New(op)
	b.Line("MATCH (s)-[]-(n) WHERE id(s) = %s", b.Param(id))
	b.Line("WITH DISTINCT n")
	b.Line(returnNode)
	b.Line("ORDER BY id")

	records, err := g.run(ctx, b)
	if err != nil {
		return nil, g.fail(op, err, zap.Int64("id", id))
	}
	return g.records(records, nil), nil
}

// Relationships lists every edge touching a node.
func (g *Gateway) Relationships(ctx context.Context, id int64) ([]Relationship, error) {
	const op = "gateway.Relationships"
	b := cypher.New(op)
	b.Line("MATCH (s)-[r]-() WHERE id(s) = %s", b.Param(id))
	b.Line("WITH DISTINCT r")
	b.Line("RETURN id(r) AS id, type(r) AS type, id(startNode(r)) AS source, id(endNode(r)) AS target")
	b.Line("ORDER BY id")

	records, err := g.run(ctx, b)
	if err != nil {
		return nil, g.fail(op, err, zap.Int64("id", id))
	}
	out := make([]Relationship, 0, len(records))
	for _, row := range records {
		rid, _ := row.Int64("id")
		src, _ := row.Int64("source")
		dst, _ := row.Int64("target")
		out = append(out, Relationship{ID: rid, Type: row.String("type"), Source: src, Target: dst})
	}
	return out, nil
}

func firstInt(records []repository.Record, key string) (int64, bool) {
	if len(records) == 0 {
		return 0, false
	}
	return records[0].Int64(key)
}
