package observability

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"typegraph-backend/internal/config"
)

// NewLogger builds the process logger. The returned level can be changed at
// runtime, e.g. after a configuration reload.
func NewLogger(cfg config.Logging, env config.Environment) (*zap.Logger, zap.AtomicLevel, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, zap.AtomicLevel{}, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var zc zap.Config
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stdout"}
	zc.ErrorOutputPaths = []string{"stderr"}

	if env == config.Production {
		zc.Sampling = &zap.SamplingConfig{Initial: 100, Thereafter: 100}
	} else {
		zc.Sampling = nil
	}

	logger, err := zc.Build(zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel))
	if err != nil {
		return nil, zap.AtomicLevel{}, err
	}
	return logger.With(zap.String("environment", string(env))), zc.Level, nil
}
