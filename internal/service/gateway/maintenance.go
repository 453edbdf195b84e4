package gateway

import (
	"context"

	"go.uber.org/zap"

	"typegraph-backend/internal/domain/node"
	"typegraph-backend/internal/domain/schema"
	appErrors "typegraph-backend/internal/errors"
	"typegraph-backend/internal/repository"
	"typegraph-backend/internal/repository/cypher"
)

// BackfillProperty writes def's default onto every node of the type that
// lacks the property, in batches of Options.BatchSize. Each batch only
// touches nodes still missing the property, so an interrupted run is resumed
// by calling it again. Batches already written are not rolled back when a
// later batch fails; the returned count covers them.
func (g *Gateway) BackfillProperty(ctx context.Context, t schema.NodeType, def schema.PropertyDef) (int64, error) {
	const op = "gateway.BackfillProperty"
	value := def.DefaultValue()

	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, g.fail(op, appErrors.WrapStore(err, op), zap.Int64("written", total))
		}

		b := cypher.New(op)
		prop := b.Prop("n", def.Name)
		b.Line("MATCH (n:%s)", b.Label(t.InternalLabel))
		b.Line("WHERE %s IS NULL", prop)
		b.Line("WITH n LIMIT %s", b.Named("batch", int64(g.opts.BatchSize)))
		b.Line("SET %s = %s", prop, b.Named("value", value))
		b.Line("RETURN count(n) AS count")

		records, err := g.run(ctx, b)
		if err != nil {
			return total, g.fail(op, err,
				zap.String("label", t.InternalLabel),
				zap.String("property", def.Name),
				zap.Int64("written", total))
		}
		n, err := repository.Count(records, "count")
		if err != nil {
			return total, g.fail(op, appErrors.WrapStore(err, op))
		}
		total += n
		if n < int64(g.opts.BatchSize) {
			break
		}
	}

	g.logger.Info("property backfilled",
		zap.String("label", t.InternalLabel),
		zap.String("property", def.Name),
		zap.Int64("nodes", total))
	return total, nil
}

// booleanLiterals are the legacy string spellings rewritten to native booleans.
var booleanLiterals = []any{"true", "True", "TRUE", "false", "False", "FALSE"}

// NormalizeBooleans rewrites legacy "True"/"false" string values of property
// to native booleans in one statement.
func (g *Gateway) NormalizeBooleans(ctx context.Context, t schema.NodeType, property string) (int64, error) {
	const op = "gateway.NormalizeBooleans"
	b := cypher.New(op)
	prop := b.Prop("n", property)
	b.Line("MATCH (n:%s)", b.Label(t.InternalLabel))
	b.Line("WHERE %s IN %s", prop, b.Named("literals", booleanLiterals))
	b.Line("SET %s = toLower(%s) = 'true'", prop, prop)
	b.Line("RETURN count(n) AS count")

	records, err := g.run(ctx, b)
	if err != nil {
		return 0, g.fail(op, err, zap.String("label", t.InternalLabel), zap.String("property", property))
	}
	n, err := repository.Count(records, "count")
	if err != nil {
		return 0, g.fail(op, appErrors.WrapStore(err, op))
	}
	return n, nil
}

// DateMigration reports a MigrateDates run.
type DateMigration struct {
	Converted int64   `json:"converted"`
	Failed    []int64 `json:"failed"`
}

// MigrateDates converts every non-null, non-date value of property into a
// calendar date. Values that cannot be parsed are left untouched and listed
// in Failed.
func (g *Gateway) MigrateDates(ctx context.Context, t schema.NodeType, property string) (DateMigration, error) {
	const op = "gateway.MigrateDates"
	b := cypher.New(op)
	prop := b.Prop("n", property)
	b.Line("MATCH (n:%s)", b.Label(t.InternalLabel))
	b.Line("WHERE %s IS NOT NULL", prop)
	b.Line("RETURN id(n) AS id, %s AS value", prop)

	records, err := g.run(ctx, b)
	if err != nil {
		return DateMigration{}, g.fail(op, err, zap.String("label", t.InternalLabel), zap.String("property", property))
	}

	result := DateMigration{Failed: []int64{}}
	rows := make([]any, 0, len(records))
	for _, row := range records {
		id, _ := row.Int64("id")
		if _, isDate := row["value"].(node.Date); isDate {
			continue
		}
		parsed, err := node.Marshal(property, node.TypeDate, row["value"])
		if err != nil {
			result.Failed = append(result.Failed, id)
			continue
		}
		d, _ := parsed.Date()
		rows = append(rows, map[string]any{"id": id, "date": d})
	}

	if len(rows) > 0 {
		b = cypher.New(op)
		prop = b.Prop("n", property)
		b.Line("UNWIND %s AS row", b.Named("rows", rows))
		b.Line("MATCH (n:%s) WHERE id(n) = row.id", b.Label(t.InternalLabel))
		b.Line("SET %s = row.date", prop)
		b.Line("RETURN count(n) AS count")

		written, err := g.run(ctx, b)
		if err != nil {
			return result, g.fail(op, err, zap.String("label", t.InternalLabel), zap.String("property", property))
		}
		result.Converted, _ = repository.Count(written, "count")
	}

	if len(result.Failed) > 0 {
		g.logger.Warn("unparseable dates left unchanged",
			zap.String("label", t.InternalLabel),
			zap.String("property", property),
			zap.Int64s("ids", result.Failed))
	}
	return result, nil
}
