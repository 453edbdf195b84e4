package observability

import (
	"context"
	"time"

	appErrors "typegraph-backend/internal/errors"
	"typegraph-backend/internal/repository"
)

// MetricsStore records statement counts, latency and row counts per
// operation. Statements inside a transaction are recorded individually.
type MetricsStore struct {
	inner     repository.Store
	collector *Collector
}

var _ repository.Store = (*MetricsStore)(nil)

// NewMetricsStore wraps inner.
func NewMetricsStore(inner repository.Store, collector *Collector) *MetricsStore {
	return &MetricsStore{inner: inner, collector: collector}
}

func (s *MetricsStore) Run(ctx context.Context, stmt repository.Statement) ([]repository.Record, error) {
	return observeRun(ctx, s.inner, stmt, s.collector)
}

func (s *MetricsStore) ExecuteWrite(ctx context.Context, work repository.TxWork) error {
	err := s.inner.ExecuteWrite(ctx, func(tx repository.Runner) error {
		return work(&metricsRunner{inner: tx, collector: s.collector})
	})
	outcome := "committed"
	if err != nil {
		outcome = "rolled_back"
	}
	s.collector.Transactions.WithLabelValues(outcome).Inc()
	return err
}

func (s *MetricsStore) Ping(ctx context.Context) error {
	return s.inner.Ping(ctx)
}

func (s *MetricsStore) Close(ctx context.Context) error {
	return s.inner.Close(ctx)
}

type metricsRunner struct {
	inner     repository.Runner
	collector *Collector
}

func (r *metricsRunner) Run(ctx context.Context, stmt repository.Statement) ([]repository.Record, error) {
	return observeRun(ctx, r.inner, stmt, r.collector)
}

func observeRun(ctx context.Context, inner repository.Runner, stmt repository.Statement, c *Collector) ([]repository.Record, error) {
	op := stmt.Operation
	if op == "" {
		op = "unknown"
	}
	start := time.Now()
	records, err := inner.Run(ctx, stmt)
	c.StoreDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	c.StoreStatements.WithLabelValues(op, statusOf(err)).Inc()
	if err == nil {
		c.StoreRows.WithLabelValues(op).Observe(float64(len(records)))
	}
	return records, err
}

func statusOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case appErrors.IsValidation(err), appErrors.IsNotFound(err), appErrors.IsConflict(err):
		return "rejected"
	default:
		return "error"
	}
}
