package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"typegraph-backend/internal/config"
	"typegraph-backend/internal/di"
	appErrors "typegraph-backend/internal/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, loader, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	container, cleanup, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	defer cleanup()

	logger := container.Logging.Logger
	logger.Info("configuration loaded",
		zap.String("environment", string(cfg.Environment)),
		zap.Strings("sources", cfg.LoadedFrom))

	if err := loadRegistry(ctx, container, logger); err != nil {
		logger.Error("type registry unavailable", zap.Error(err))
		return
	}

	watcher, err := config.NewWatcher(loader, cfg, logger)
	if err != nil {
		logger.Warn("configuration hot reload disabled", zap.Error(err))
	} else {
		defer watcher.Stop()
		watcher.OnChange(func(old, next *config.Config) {
			container.Poller.SetInterval(next.Graph.RefreshInterval)
			if level, err := zapcore.ParseLevel(next.Logging.Level); err == nil {
				container.Logging.Level.SetLevel(level)
			}
		})
	}

	go container.Poller.Run(ctx)

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      container.Handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down server")
	case err := <-serverErr:
		logger.Error("server failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("server stopped")
}

// loadRegistry reads the persisted types and backfills the active flag on
// nodes that predate it. A payload that only partly decodes is reported and
// the service starts with what could be read.
func loadRegistry(ctx context.Context, c *di.Container, logger *zap.Logger) error {
	start := time.Now()
	reg, err := c.Registry.Load(ctx)
	switch {
	case err == nil:
	case appErrors.IsSerialization(err):
		logger.Warn("type registry partly decoded", zap.Error(err))
	default:
		return err
	}

	written, err := c.Registry.EnsureActiveFlag(ctx)
	if err != nil {
		logger.Warn("active flag backfill incomplete", zap.Int64("written", written), zap.Error(err))
	}
	if c.Metrics != nil {
		c.Metrics.RegistryTypes.Set(float64(len(reg.Types)))
	}
	logger.Info("type registry ready",
		zap.Int("types", len(reg.Types)),
		zap.Int64("backfilled", written),
		zap.Duration("duration", time.Since(start)))
	return nil
}
