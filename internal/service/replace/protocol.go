// Package replace supersedes a node with a new version in one transaction:
// the replacement takes over every relationship, the original is deactivated
// and a lineage edge links the two.
package replace

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"typegraph-backend/internal/domain/node"
	"typegraph-backend/internal/domain/schema"
	appErrors "typegraph-backend/internal/errors"
	"typegraph-backend/internal/repository"
	"typegraph-backend/internal/repository/cypher"
	"typegraph-backend/internal/service/gateway"
)

// DefaultLineageType is the relationship type from an original to its replacement.
const DefaultLineageType = "SUPERSEDED_BY"

// Step identifies a protocol step.
type Step int

const (
	StepCreate Step = iota + 1
	StepTransferOutgoing
	StepTransferIncoming
	StepSweep
	StepDeactivate
	StepLineage
)

func (s Step) String() string {
	switch s {
	case StepCreate:
		return "create_replacement"
	case StepTransferOutgoing:
		return "transfer_outgoing"
	case StepTransferIncoming:
		return "transfer_incoming"
	case StepSweep:
		return "sweep_original"
	case StepDeactivate:
		return "deactivate_original"
	case StepLineage:
		return "link_lineage"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// Options configures the protocol.
type Options struct {
	ActiveProperty string
	LineageType    string
}

// Result describes a completed replacement.
type Result struct {
	OriginalID  int64       `json:"original_id"`
	Replacement node.Record `json:"replacement"`
	Outgoing    int64       `json:"outgoing"`
	Incoming    int64       `json:"incoming"`
	Swept       int64       `json:"swept"`
}

// Protocol runs replacements.
type Protocol struct {
	store  repository.Store
	gw     *gateway.Gateway
	logger *zap.Logger
	opts   Options

	// afterStep is called after each completed step inside the transaction;
	// an error aborts and rolls back.
	afterStep func(Step) error
}

// New creates a protocol. gw supplies marshaling and node creation; it is
// rebound to the transaction for every run.
func New(store repository.Store, gw *gateway.Gateway, logger *zap.Logger, opts Options) (*Protocol, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.ActiveProperty == "" {
		opts.ActiveProperty = schema.PropRelevance
	}
	if opts.LineageType == "" {
		opts.LineageType = DefaultLineageType
	}
	if err := cypher.ValidateIdentifier(cypher.KindProperty, opts.ActiveProperty); err != nil {
		return nil, err
	}
	if err := cypher.ValidateIdentifier(cypher.KindRelationship, opts.LineageType); err != nil {
		return nil, err
	}
	return &Protocol{store: store, gw: gw, logger: logger.Named("replace"), opts: opts}, nil
}

// Replace supersedes originalID with a new node of type t built from values.
// The original must carry t's label. Steps run in order inside one write
// transaction; any failure rolls back all of them.
func (p *Protocol) Replace(ctx context.Context, t schema.NodeType, originalID int64, values map[string]any) (Result, error) {
	const op = "replace.Replace"
	start := time.Now()
	res := Result{OriginalID: originalID}

	err := p.store.ExecuteWrite(ctx, func(tx repository.Runner) error {
		res = Result{OriginalID: originalID}
		gw := p.gw.WithRunner(tx)

		if err := p.checkOriginal(ctx, tx, t, originalID); err != nil {
			return err
		}

		replacement, err := gw.AddNode(ctx, t, values)
		if err != nil {
			return err
		}
		res.Replacement = replacement
		newID, _ := replacement.ID()
		if err := p.done(StepCreate); err != nil {
			return err
		}

		if res.Outgoing, err = p.transfer(ctx, tx, originalID, newID, true); err != nil {
			return err
		}
		if err := p.done(StepTransferOutgoing); err != nil {
			return err
		}

		if res.Incoming, err = p.transfer(ctx, tx, originalID, newID, false); err != nil {
			return err
		}
		if err := p.done(StepTransferIncoming); err != nil {
			return err
		}

		if res.Swept, err = p.sweep(ctx, tx, originalID); err != nil {
			return err
		}
		if err := p.done(StepSweep); err != nil {
			return err
		}

		if err := p.deactivate(ctx, tx, t, originalID); err != nil {
			return err
		}
		if err := p.done(StepDeactivate); err != nil {
			return err
		}

		if err := p.link(ctx, tx, t, originalID, newID); err != nil {
			return err
		}
		return p.done(StepLineage)
	})
	if err != nil {
		p.logger.Error("replacement rolled back",
			zap.Int64("original", originalID),
			zap.String("type", t.HumanLabel),
			zap.Error(err))
		return Result{}, appErrors.Wrap(err, op, fmt.Sprintf("replacement of node %d rolled back", originalID))
	}

	newID, _ := res.Replacement.ID()
	p.logger.Info("node replaced",
		zap.Int64("original", originalID),
		zap.Int64("replacement", newID),
		zap.Int64("outgoing", res.Outgoing),
		zap.Int64("incoming", res.Incoming),
		zap.Int64("swept", res.Swept),
		zap.Duration("duration", time.Since(start)))
	return res, nil
}

func (p *Protocol) done(s Step) error {
	if p.afterStep == nil {
		return nil
	}
	if err := p.afterStep(s); err != nil {
		return appErrors.Internal(appErrors.CodeStoreExecution, fmt.Sprintf("aborted after %s", s)).
			WithCause(err).
			Build()
	}
	return nil
}

// checkOriginal confirms the original exists under t's label, so a node of
// another type (or the registry marker) is never superseded.
func (p *Protocol) checkOriginal(ctx context.Context, tx repository.Runner, t schema.NodeType, originalID int64) error {
	const op = "replace.checkOriginal"
	b := cypher.New(op)
	b.Line("MATCH (o:%s) WHERE id(o) = %s", b.Label(t.InternalLabel), b.Param(originalID))
	b.Line("RETURN count(o) AS count")

	rows, err := run(ctx, tx, b)
	if err != nil {
		return err
	}
	n, err := repository.Count(rows, "count")
	if err != nil {
		return appErrors.WrapStore(err, op)
	}
	if n == 0 {
		return appErrors.NotFound(appErrors.CodeNodeNotFound,
			fmt.Sprintf("node %d does not exist as %s", originalID, t.HumanLabel)).
			WithOperation(op).
			WithResource(fmt.Sprint(originalID)).
			Build()
	}
	return nil
}

type edge struct {
	id    int64
	other int64
	props map[string]any
}

// transfer recreates the original's outgoing (or incoming) relationships on
// the replacement, keeping type, direction, far end and properties. A self
// loop on the original becomes a self loop on the replacement and is moved
// with the outgoing set only.
func (p *Protocol) transfer(ctx context.Context, tx repository.Runner, originalID, newID int64, outgoing bool) (int64, error) {
	const op = "replace.transfer"
	b := cypher.New(op)
	if outgoing {
		b.Line("MATCH (o)-[r]->(m) WHERE id(o) = %s", b.Named("original", originalID))
	} else {
		b.Line("MATCH (m)-[r]->(o) WHERE id(o) = %s AND id(m) <> id(o)", b.Named("original", originalID))
	}
	b.Line("RETURN id(r) AS id, type(r) AS type, id(m) AS other, properties(r) AS props")
	b.Line("ORDER BY id")

	rows, err := run(ctx, tx, b)
	if err != nil {
		return 0, err
	}

	byType := make(map[string][]edge)
	for _, row := range rows {
		e := edge{props: row.Map("props")}
		e.id, _ = row.Int64("id")
		e.other, _ = row.Int64("other")
		if e.other == originalID {
			e.other = newID
		}
		if e.props == nil {
			e.props = map[string]any{}
		}
		typ := row.String("type")
		byType[typ] = append(byType[typ], e)
	}

	types := make([]string, 0, len(byType))
	for typ := range byType {
		types = append(types, typ)
	}
	sort.Strings(types)

	var moved int64
	for _, typ := range types {
		edges := byType[typ]
		batch := make([]any, len(edges))
		for i, e := range edges {
			batch[i] = map[string]any{"other": e.other, "props": e.props}
		}

		b := cypher.New(op)
		b.Line("UNWIND %s AS e", b.Named("edges", batch))
		b.Line("MATCH (n), (m) WHERE id(n) = %s AND id(m) = e.other", b.Named("replacement", newID))
		if outgoing {
			b.Line("CREATE (n)-[r:%s]->(m)", b.RelType(typ))
		} else {
			b.Line("CREATE (m)-[r:%s]->(n)", b.RelType(typ))
		}
		b.Line("SET r = e.props")
		b.Line("RETURN count(r) AS count")

		created, err := run(ctx, tx, b)
		if err != nil {
			return moved, err
		}
		n, _ := repository.Count(created, "count")
		if n != int64(len(edges)) {
			return moved, appErrors.Internal(appErrors.CodeStoreExecution,
				fmt.Sprintf("transferred %d of %d %s relationships", n, len(edges), typ)).
				WithOperation(op).
				Build()
		}
		moved += n

		ids := make([]any, len(edges))
		for i, e := range edges {
			ids[i] = e.id
		}
		b = cypher.New(op)
		b.Line("MATCH ()-[r]->() WHERE id(r) IN %s", b.Named("ids", ids))
		b.Line("DELETE r")
		if _, err := run(ctx, tx, b); err != nil {
			return moved, err
		}
	}
	return moved, nil
}

// sweep removes anything still attached to the original.
func (p *Protocol) sweep(ctx context.Context, tx repository.Runner, originalID int64) (int64, error) {
	b := cypher.New("replace.sweep")
	b.Line("MATCH (o)-[r]-() WHERE id(o) = %s", b.Param(originalID))
	b.Line("WITH DISTINCT r")
	b.Line("DELETE r")
	b.Line("RETURN count(*) AS count")

	rows, err := run(ctx, tx, b)
	if err != nil {
		return 0, err
	}
	n, _ := repository.Count(rows, "count")
	if n > 0 {
		p.logger.Warn("relationships left on original after transfer", zap.Int64("original", originalID), zap.Int64("count", n))
	}
	return n, nil
}

func (p *Protocol) deactivate(ctx context.Context, tx repository.Runner, t schema.NodeType, originalID int64) error {
	b := cypher.New("replace.deactivate")
	b.Line("MATCH (o:%s) WHERE id(o) = %s", b.Label(t.InternalLabel), b.Param(originalID))
	b.Line("SET %s = %s", b.Prop("o", p.opts.ActiveProperty), b.Param(false))
	b.Line("RETURN count(o) AS count")

	rows, err := run(ctx, tx, b)
	if err != nil {
		return err
	}
	if n, _ := repository.Count(rows, "count"); n != 1 {
		return appErrors.NotFound(appErrors.CodeNodeNotFound, fmt.Sprintf("node %d vanished during replacement", originalID)).
			WithOperation("replace.deactivate").
			Build()
	}
	return nil
}

func (p *Protocol) link(ctx context.Context, tx repository.Runner, t schema.NodeType, originalID, newID int64) error {
	b := cypher.New("replace.link")
	b.Line("MATCH (o:%s), (n:%s) WHERE id(o) = %s AND id(n) = %s",
		b.Label(t.InternalLabel), b.Label(t.InternalLabel), b.Param(originalID), b.Param(newID))
	b.Line("CREATE (o)-[r:%s]->(n)", b.RelType(p.opts.LineageType))
	b.Line("RETURN count(r) AS count")

	rows, err := run(ctx, tx, b)
	if err != nil {
		return err
	}
	if n, _ := repository.Count(rows, "count"); n != 1 {
		return appErrors.Internal(appErrors.CodeStoreExecution, "lineage relationship was not created").
			WithOperation("replace.link").
			Build()
	}
	return nil
}

func run(ctx context.Context, tx repository.Runner, b *cypher.Builder) ([]repository.Record, error) {
	stmt, err := b.Statement()
	if err != nil {
		return nil, err
	}
	rows, err := tx.Run(ctx, stmt)
	if err != nil {
		return nil, appErrors.WrapStore(err, stmt.Operation)
	}
	return rows, nil
}
