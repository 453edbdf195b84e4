// Package mocks provides testify doubles for the store port.
package mocks

import (
	"context"
	"strings"

	"github.com/stretchr/testify/mock"

	"typegraph-backend/internal/repository"
)

// Store is a mock repository.Store. ExecuteWrite records the call and, unless
// an error is configured for it, runs the work against the same mock so that
// statements issued inside the transaction are matched like any other.
type Store struct {
	mock.Mock
}

// Run implements repository.Runner.
func (m *Store) Run(ctx context.Context, stmt repository.Statement) ([]repository.Record, error) {
	args := m.Called(ctx, stmt)
	var records []repository.Record
	if r := args.Get(0); r != nil {
		records = r.([]repository.Record)
	}
	return records, args.Error(1)
}

// ExecuteWrite implements repository.Store.
func (m *Store) ExecuteWrite(ctx context.Context, work repository.TxWork) error {
	args := m.Called(ctx)
	if err := args.Error(0); err != nil {
		return err
	}
	return work(m)
}

// Ping implements repository.Store.
func (m *Store) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Close implements repository.Store.
func (m *Store) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Cypher matches a Statement whose text contains every fragment.
func Cypher(fragments ...string) any {
	return mock.MatchedBy(func(stmt repository.Statement) bool {
		for _, f := range fragments {
			if !strings.Contains(stmt.Cypher, f) {
				return false
			}
		}
		return true
	})
}

// Rows builds a result set.
func Rows(records ...repository.Record) []repository.Record {
	if records == nil {
		return []repository.Record{}
	}
	return records
}

// NodeRow builds a row in the shape node reads return.
func NodeRow(id int64, label string, props map[string]any) repository.Record {
	return repository.Record{"id": id, "labels": []any{label}, "props": props}
}

// CountRow builds a single count(...) row.
func CountRow(n int64) []repository.Record {
	return []repository.Record{{"count": n}}
}
