// Package neo4j implements the repository.Store port on the official Neo4j
// Go driver.
package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"typegraph-backend/internal/domain/node"
	appErrors "typegraph-backend/internal/errors"
	"typegraph-backend/internal/repository"
)

// Config holds what is needed to open a driver.
type Config struct {
	URI                   string
	Username              string
	Password              string
	Database              string
	MaxConnectionPoolSize int
	ConnectionTimeout     time.Duration
}

// Store runs statements through driver sessions. It owns the driver.
type Store struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *zap.Logger
}

var _ repository.Store = (*Store)(nil)

// NewStore opens a driver and verifies connectivity.
func NewStore(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
		func(c *neo4j.Config) {
			if cfg.MaxConnectionPoolSize > 0 {
				c.MaxConnectionPoolSize = cfg.MaxConnectionPoolSize
			}
			if cfg.ConnectionTimeout > 0 {
				c.SocketConnectTimeout = cfg.ConnectionTimeout
				c.ConnectionAcquisitionTimeout = cfg.ConnectionTimeout
			}
		})
	if err != nil {
		return nil, appErrors.Store(appErrors.CodeStoreConnection, "cannot create neo4j driver").
			WithOperation("neo4j.NewStore").
			WithCause(err).
			Build()
	}

	s := &Store{driver: driver, database: cfg.Database, logger: logger.Named("neo4j")}
	if err := s.Ping(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, err
	}
	s.logger.Info("connected to neo4j", zap.String("uri", cfg.URI), zap.String("database", cfg.Database))
	return s, nil
}

// Run executes stmt in an auto-commit transaction.
func (s *Store) Run(ctx context.Context, stmt repository.Statement) ([]repository.Record, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: s.database,
	})
	defer session.Close(ctx)

	result, err := session.Run(ctx, stmt.Cypher, toParams(stmt.Params))
	if err != nil {
		return nil, classify(err, stmt.Operation)
	}
	return collect(ctx, result, stmt.Operation)
}

// ExecuteWrite runs work in one managed write transaction. The driver may
// retry work on transient failures, so work must not keep state across calls.
func (s *Store) ExecuteWrite(ctx context.Context, work repository.TxWork) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: s.database,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return nil, work(&txRunner{tx: tx})
	})
	if err != nil {
		return classify(err, "neo4j.ExecuteWrite")
	}
	return nil
}

// Ping verifies the driver can reach the server.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.driver.VerifyConnectivity(ctx); err != nil {
		return appErrors.Store(appErrors.CodeStoreConnection, "neo4j is unreachable").
			WithOperation("neo4j.Ping").
			WithCause(err).
			Build()
	}
	return nil
}

// Close releases the driver and its connection pool.
func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

type txRunner struct {
	tx neo4j.ManagedTransaction
}

func (r *txRunner) Run(ctx context.Context, stmt repository.Statement) ([]repository.Record, error) {
	result, err := r.tx.Run(ctx, stmt.Cypher, toParams(stmt.Params))
	if err != nil {
		return nil, err
	}
	records, err := result.Collect(ctx)
	if err != nil {
		return nil, err
	}
	return toRecords(records), nil
}

func collect(ctx context.Context, result neo4j.ResultWithContext, operation string) ([]repository.Record, error) {
	records, err := result.Collect(ctx)
	if err != nil {
		return nil, classify(err, operation)
	}
	return toRecords(records), nil
}

func toRecords(records []*neo4j.Record) []repository.Record {
	out := make([]repository.Record, 0, len(records))
	for _, rec := range records {
		row := make(repository.Record, len(rec.Keys))
		for k, v := range rec.AsMap() {
			row[k] = fromDriver(v)
		}
		out = append(out, row)
	}
	return out
}

// classify turns driver errors into store errors. Errors raised by the
// transaction callback are already classified and pass through.
func classify(err error, operation string) error {
	if err == nil {
		return nil
	}
	if appErrors.IsType(err, appErrors.ErrorTypeValidation) ||
		appErrors.IsType(err, appErrors.ErrorTypeNotFound) ||
		appErrors.IsType(err, appErrors.ErrorTypeConflict) ||
		appErrors.IsType(err, appErrors.ErrorTypeStore) {
		return err
	}
	if neo4j.IsConnectivityError(err) {
		return appErrors.Store(appErrors.CodeStoreConnection, "lost connection to neo4j").
			WithOperation(operation).
			WithCause(err).
			Build()
	}
	details := err.Error()
	if neo4j.IsNeo4jError(err) {
		if nerr, ok := err.(*neo4j.Neo4jError); ok {
			details = fmt.Sprintf("%s: %s", nerr.Code, nerr.Msg)
		}
	}
	return appErrors.Store(appErrors.CodeStoreExecution, "statement failed").
		WithOperation(operation).
		WithDetails(details).
		WithCause(err).
		Build()
}

// toParams converts domain values into driver values.
func toParams(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = toDriver(v)
	}
	return out
}

func toDriver(v any) any {
	switch t := v.(type) {
	case node.Date:
		return neo4j.DateOf(t.Time())
	case node.Value:
		return toDriver(t.Wire())
	case map[string]any:
		return toParams(t)
	case []map[string]any:
		out := make([]any, len(t))
		for i, m := range t {
			out[i] = toParams(m)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = toDriver(item)
		}
		return out
	default:
		return v
	}
}

// fromDriver converts driver values into the plain values the services read:
// dates become node.Date, temporal values time.Time, graph entities their
// property maps.
func fromDriver(v any) any {
	switch t := v.(type) {
	case neo4j.Date:
		return node.DateOf(t.Time())
	case neo4j.LocalDateTime:
		return t.Time()
	case neo4j.LocalTime:
		return t.Time()
	case neo4j.Time:
		return t.Time()
	case neo4j.Node:
		return fromDriver(t.Props)
	case neo4j.Relationship:
		return fromDriver(t.Props)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = fromDriver(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = fromDriver(item)
		}
		return out
	default:
		return v
	}
}
