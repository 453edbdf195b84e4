package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"typegraph-backend/internal/repository"
)

// TracingStore opens a client span per statement and per transaction.
// Statement text is recorded; parameter values are not.
type TracingStore struct {
	inner  repository.Store
	tracer trace.Tracer
}

var _ repository.Store = (*TracingStore)(nil)

// NewTracingStore wraps inner.
func NewTracingStore(inner repository.Store, tracer trace.Tracer) *TracingStore {
	return &TracingStore{inner: inner, tracer: tracer}
}

func (s *TracingStore) Run(ctx context.Context, stmt repository.Statement) ([]repository.Record, error) {
	return traceRun(ctx, s.inner, stmt, s.tracer)
}

func (s *TracingStore) ExecuteWrite(ctx context.Context, work repository.TxWork) error {
	ctx, span := s.tracer.Start(ctx, "store.ExecuteWrite", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	attempts := 0
	err := s.inner.ExecuteWrite(ctx, func(tx repository.Runner) error {
		attempts++
		return work(&tracingRunner{inner: tx, tracer: s.tracer, ctx: ctx})
	})
	span.SetAttributes(attribute.Int("db.transaction.attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rolled back")
	}
	return err
}

func (s *TracingStore) Ping(ctx context.Context) error {
	return s.inner.Ping(ctx)
}

func (s *TracingStore) Close(ctx context.Context) error {
	return s.inner.Close(ctx)
}

// tracingRunner parents statement spans on the transaction span even when
// the callback passes a context without it.
type tracingRunner struct {
	inner  repository.Runner
	tracer trace.Tracer
	ctx    context.Context
}

func (r *tracingRunner) Run(ctx context.Context, stmt repository.Statement) ([]repository.Record, error) {
	if !trace.SpanFromContext(ctx).SpanContext().IsValid() {
		ctx = trace.ContextWithSpan(ctx, trace.SpanFromContext(r.ctx))
	}
	return traceRun(ctx, r.inner, stmt, r.tracer)
}

func traceRun(ctx context.Context, inner repository.Runner, stmt repository.Statement, tracer trace.Tracer) ([]repository.Record, error) {
	name := stmt.Operation
	if name == "" {
		name = "store.Run"
	}
	ctx, span := tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "neo4j"),
			attribute.String("db.statement", stmt.Cypher),
			attribute.Int("db.params", len(stmt.Params)),
		),
	)
	defer span.End()

	records, err := inner.Run(ctx, stmt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return records, err
	}
	span.SetAttributes(attribute.Int("db.rows", len(records)))
	return records, nil
}
