package gateway

import (
	"context"

	"go.uber.org/zap"

	"typegraph-backend/internal/repository/cypher"
)

// Registry marker node. One node with this label holds the encoded registry.
const (
	RegistryLabel    = "NodeTypeCollection"
	RegistryProperty = "Data"
)

// LoadRegistryPayload returns the stored registry payload and whether the
// marker node exists.
func (g *Gateway) LoadRegistryPayload(ctx context.Context) (string, bool, error) {
	const op = "gateway.LoadRegistryPayload"
	b := cypher.New(op)
	b.Line("MATCH (r:%s)", b.Label(RegistryLabel))
	b.Line("RETURN %s AS data", b.Prop("r", RegistryProperty))
	b.Line("ORDER BY id(r)")
	b.Line("LIMIT 1")

	records, err := g.run(ctx, b)
	if err != nil {
		return "", false, g.fail(op, err)
	}
	if len(records) == 0 {
		return "", false, nil
	}
	return records[0].String("data"), true, nil
}

// SaveRegistryPayload upserts the marker node in a single statement, so there
// is no window in which the registry is absent.
func (g *Gateway) SaveRegistryPayload(ctx context.Context, data string) error {
	const op = "gateway.SaveRegistryPayload"
	b := cypher.New(op)
	b.Line("MERGE (r:%s)", b.Label(RegistryLabel))
	b.Line("SET %s = %s", b.Prop("r", RegistryProperty), b.Param(data))

	_, err := g.run(ctx, b)
	return g.fail(op, err, zap.Int("bytes", len(data)))
}
