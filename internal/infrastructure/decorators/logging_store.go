// Package decorators adds cross-cutting behaviour to the graph store without
// touching the services that use it.
package decorators

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	appErrors "typegraph-backend/internal/errors"
	"typegraph-backend/internal/repository"
)

// LoggingConfig controls what the logging decorator writes.
type LoggingConfig struct {
	LogStatements bool          // log the Cypher text at debug level
	LogLevel      zapcore.Level // level for completed statements
	SlowThreshold time.Duration // completed statements slower than this log at warn
}

// DefaultLoggingConfig returns sensible defaults.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		LogStatements: true,
		LogLevel:      zapcore.DebugLevel,
		SlowThreshold: 500 * time.Millisecond,
	}
}

// LoggingStore logs every statement with an operation id, its duration and
// row count. Parameter values are never logged, only their names.
type LoggingStore struct {
	inner  repository.Store
	logger *zap.Logger
	config LoggingConfig
}

var _ repository.Store = (*LoggingStore)(nil)

// NewLoggingStore wraps inner.
func NewLoggingStore(inner repository.Store, logger *zap.Logger, config LoggingConfig) *LoggingStore {
	return &LoggingStore{
		inner:  inner,
		logger: logger.Named("store"),
		config: config,
	}
}

// Run logs one auto-commit statement.
func (s *LoggingStore) Run(ctx context.Context, stmt repository.Statement) ([]repository.Record, error) {
	return logRun(ctx, s.inner, stmt, s.logger, s.config, zap.String("operation_id", uuid.NewString()))
}

// ExecuteWrite logs the transaction and every statement inside it under one
// transaction id.
func (s *LoggingStore) ExecuteWrite(ctx context.Context, work repository.TxWork) error {
	start := time.Now()
	txID := uuid.NewString()
	logger := s.logger.With(zap.String("tx_id", txID))
	logger.Debug("transaction started")

	attempts := 0
	err := s.inner.ExecuteWrite(ctx, func(tx repository.Runner) error {
		attempts++
		return work(&loggingRunner{inner: tx, logger: logger, config: s.config})
	})

	fields := []zap.Field{zap.Duration("duration", time.Since(start)), zap.Int("attempts", attempts)}
	if err != nil {
		logger.Log(levelFor(err), "transaction rolled back", append(fields, zap.Error(err))...)
		return err
	}
	logger.Debug("transaction committed", fields...)
	return nil
}

func (s *LoggingStore) Ping(ctx context.Context) error {
	err := s.inner.Ping(ctx)
	if err != nil {
		s.logger.Warn("store ping failed", zap.Error(err))
	}
	return err
}

func (s *LoggingStore) Close(ctx context.Context) error {
	s.logger.Info("closing store")
	return s.inner.Close(ctx)
}

type loggingRunner struct {
	inner  repository.Runner
	logger *zap.Logger
	config LoggingConfig
}

func (r *loggingRunner) Run(ctx context.Context, stmt repository.Statement) ([]repository.Record, error) {
	return logRun(ctx, r.inner, stmt, r.logger, r.config, zap.String("operation_id", uuid.NewString()))
}

func logRun(ctx context.Context, inner repository.Runner, stmt repository.Statement, logger *zap.Logger, config LoggingConfig, extra ...zap.Field) ([]repository.Record, error) {
	start := time.Now()

	fields := append([]zap.Field{
		zap.String("operation", stmt.Operation),
		zap.Strings("params", paramNames(stmt.Params)),
	}, extra...)
	if config.LogStatements {
		fields = append(fields, zap.String("cypher", stmt.Cypher))
	}

	records, err := inner.Run(ctx, stmt)

	duration := time.Since(start)
	fields = append(fields, zap.Duration("duration", duration))

	if err != nil {
		logger.Log(levelFor(err), "statement failed", append(fields, zap.Error(err))...)
		return records, err
	}

	fields = append(fields, zap.Int("rows", len(records)))
	level := config.LogLevel
	message := "statement completed"
	if config.SlowThreshold > 0 && duration > config.SlowThreshold {
		level = zapcore.WarnLevel
		message = "slow statement completed"
	}
	logger.Log(level, message, fields...)
	return records, nil
}

// levelFor keeps rejected input out of the error log.
func levelFor(err error) zapcore.Level {
	switch {
	case appErrors.IsValidation(err), appErrors.IsNotFound(err), appErrors.IsConflict(err):
		return zapcore.DebugLevel
	default:
		return zapcore.ErrorLevel
	}
}

func paramNames(params map[string]any) []string {
	names := make([]string, 0, len(params))
	for k := range params {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
