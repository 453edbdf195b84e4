// Package repository defines the store port the graph services run against.
//
// The services never hold a driver or a global connection. They receive a
// Store and issue parameterised Statements through it, which lets the Neo4j
// adapter, the decorators and the test doubles all stand in for one another.
package repository

import (
	"context"
	"fmt"
)

// Statement is one parameterised query. Values only ever travel in Params.
type Statement struct {
	Cypher string
	Params map[string]any
	// Operation names the service call issuing the statement, for logs,
	// metrics and spans. It is not sent to the store.
	Operation string
}

// Record is one result row keyed by the RETURN aliases.
type Record map[string]any

// Runner executes statements. A Store is a Runner in auto-commit mode; the
// Runner handed to ExecuteWrite callbacks is bound to one transaction.
type Runner interface {
	Run(ctx context.Context, stmt Statement) ([]Record, error)
}

// TxWork is a unit of work executed inside one write transaction.
type TxWork func(tx Runner) error

// Store is the connected store handle.
type Store interface {
	Runner
	// ExecuteWrite runs work in a single write transaction. The transaction
	// commits only when work returns nil; any error rolls everything back.
	ExecuteWrite(ctx context.Context, work TxWork) error
	// Ping verifies connectivity.
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Int64 reads an integer column.
func (r Record) Int64(key string) (int64, bool) {
	switch v := r[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case float64:
		return int64(v), true
	}
	return 0, false
}

// Map reads a map column such as properties(n).
func (r Record) Map(key string) map[string]any {
	m, _ := r[key].(map[string]any)
	return m
}

// String reads a string column.
func (r Record) String(key string) string {
	s, _ := r[key].(string)
	return s
}

// Strings reads a list-of-strings column such as labels(n).
func (r Record) Strings(key string) []string {
	switch v := r[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Count reads a single count(...) result from the first row.
func Count(records []Record, key string) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	n, ok := records[0].Int64(key)
	if !ok {
		return 0, fmt.Errorf("column %q is not an integer", key)
	}
	return n, nil
}
