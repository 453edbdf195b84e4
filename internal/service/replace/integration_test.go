//go:build integration

package replace

import (
	"context"
	"errors"
	"os"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"typegraph-backend/internal/domain/node"
	"typegraph-backend/internal/domain/schema"
	"typegraph-backend/internal/infrastructure/persistence/neo4j"
	"typegraph-backend/internal/repository"
	"typegraph-backend/internal/service/gateway"
)

func liveStore(t *testing.T) (*neo4j.Store, schema.NodeType) {
	t.Helper()
	uri := os.Getenv("NEO4J_URI")
	if uri == "" {
		t.Skip("NEO4J_URI not set")
	}
	user := os.Getenv("NEO4J_USERNAME")
	if user == "" {
		user = "neo4j"
	}

	ctx := context.Background()
	store, err := neo4j.NewStore(ctx, neo4j.Config{
		URI:               uri,
		Username:          user,
		Password:          os.Getenv("NEO4J_PASSWORD"),
		Database:          os.Getenv("NEO4J_DATABASE"),
		ConnectionTimeout: 10 * time.Second,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	label := "ITest_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	t.Cleanup(func() {
		_, _ = store.Run(ctx, repository.Statement{Cypher: "MATCH (n:`" + label + "`) DETACH DELETE n"})
		_ = store.Close(ctx)
	})
	return store, schema.NodeType{HumanLabel: "Document", InternalLabel: label, Properties: schema.DefaultProperties()}
}

func edgeKeys(rels []gateway.Relationship) []string {
	keys := make([]string, len(rels))
	for i, r := range rels {
		keys[i] = r.Type + ":" + strconv.FormatInt(r.Source, 10) + "->" + strconv.FormatInt(r.Target, 10)
	}
	sort.Strings(keys)
	return keys
}

func TestIntegration_FailureAfterTransferLeavesGraphUnchanged(t *testing.T) {
	store, docType := liveStore(t)
	logger := zaptest.NewLogger(t)
	gw := gateway.New(store, logger, gateway.DefaultOptions())
	p, err := New(store, gw, logger, Options{})
	require.NoError(t, err)
	ctx := context.Background()

	add := func(name string) int64 {
		rec, err := gw.AddNode(ctx, docType, map[string]any{"name": name})
		require.NoError(t, err)
		id, _ := rec.ID()
		return id
	}
	original, cited, owner := add("v1"), add("cited"), add("owner")
	_, err = gw.CreateRelationship(ctx, original, cited, "CITES")
	require.NoError(t, err)
	_, err = gw.CreateRelationship(ctx, owner, original, "OWNS")
	require.NoError(t, err)

	before, err := gw.Relationships(ctx, original)
	require.NoError(t, err)

	p.afterStep = func(s Step) error {
		if s == StepTransferOutgoing {
			return errors.New("injected failure")
		}
		return nil
	}
	_, err = p.Replace(ctx, docType, original, map[string]any{"name": "v2"})
	require.Error(t, err)

	records, err := gw.LoadByType(ctx, docType)
	require.NoError(t, err)
	names := make([]string, 0, len(records))
	for _, r := range records {
		names = append(names, r.Properties["name"].String())
	}
	assert.ElementsMatch(t, []string{"v1", "cited", "owner"}, names, "no replacement node survives")

	after, err := gw.Relationships(ctx, original)
	require.NoError(t, err)
	assert.Equal(t, edgeKeys(before), edgeKeys(after))

	old, err := gw.LoadNode(ctx, original)
	require.NoError(t, err)
	assert.Equal(t, node.BoolValue(true), old.Properties["relevance"])
}

func TestIntegration_ReplaceRejectsOtherType(t *testing.T) {
	store, docType := liveStore(t)
	logger := zaptest.NewLogger(t)
	gw := gateway.New(store, logger, gateway.DefaultOptions())
	p, err := New(store, gw, logger, Options{})
	require.NoError(t, err)
	ctx := context.Background()

	other := docType
	other.InternalLabel = docType.InternalLabel + "_other"
	t.Cleanup(func() {
		_, _ = store.Run(ctx, repository.Statement{Cypher: "MATCH (n:`" + other.InternalLabel + "`) DETACH DELETE n"})
	})
	rec, err := gw.AddNode(ctx, other, map[string]any{"name": "foreign"})
	require.NoError(t, err)
	id, _ := rec.ID()

	_, err = p.Replace(ctx, docType, id, map[string]any{"name": "v2"})
	require.Error(t, err)

	foreign, err := gw.LoadNode(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, node.BoolValue(true), foreign.Properties["relevance"])
	rels, err := gw.Relationships(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, rels)
}
