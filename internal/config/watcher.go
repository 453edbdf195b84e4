package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads the configuration when a file under the loader's
// directory changes. Hot reload only runs in development; elsewhere the
// watcher just holds the initial configuration.
type Watcher struct {
	loader    *Loader
	logger    *zap.Logger
	mu        sync.RWMutex
	config    *Config
	callbacks []func(old, new *Config)

	watcher  *fsnotify.Watcher
	stopCh   chan struct{}
	stopOnce sync.Once
	debounce time.Duration
}

// NewWatcher starts watching when initial is a development configuration.
func NewWatcher(loader *Loader, initial *Config, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Watcher{
		loader:   loader,
		logger:   logger.Named("config"),
		config:   initial,
		stopCh:   make(chan struct{}),
		debounce: 500 * time.Millisecond,
	}

	if !initial.IsDevelopment() {
		w.logger.Info("configuration hot reloading disabled", zap.String("environment", string(initial.Environment)))
		return w, nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsw.Add(loader.BasePath()); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", loader.BasePath(), err)
	}
	w.watcher = fsw
	go w.watchLoop()

	w.logger.Info("configuration hot reloading enabled", zap.String("dir", loader.BasePath()))
	return w, nil
}

// OnChange registers a callback run after every successful reload.
func (w *Watcher) OnChange(callback func(old, new *Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Config returns the current configuration.
func (w *Watcher) Config() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config
}

// Stop ends watching. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

func (w *Watcher) watchLoop() {
	defer w.watcher.Close()

	var timer *time.Timer
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 || !isConfigFile(event.Name) {
				continue
			}
			w.logger.Debug("configuration file changed", zap.String("file", event.Name), zap.String("op", event.Op.String()))
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, w.Reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("file watcher error", zap.Error(err))

		case <-w.stopCh:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// Reload re-runs the loader and notifies callbacks. An invalid file keeps
// the previous configuration.
func (w *Watcher) Reload() {
	next, err := w.loader.Load()
	if err != nil {
		w.logger.Error("invalid configuration after reload, keeping previous", zap.Error(err))
		return
	}

	w.mu.Lock()
	old := w.config
	w.config = next
	callbacks := make([]func(old, new *Config), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	w.logChanges(old, next)
	for i, cb := range callbacks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					w.logger.Error("configuration callback panicked", zap.Int("callback", i), zap.Any("panic", r))
				}
			}()
			cb(old, next)
		}()
	}
}

func (w *Watcher) logChanges(old, next *Config) {
	var changes []string
	if old.Graph.RefreshInterval != next.Graph.RefreshInterval {
		changes = append(changes, fmt.Sprintf("graph.refresh_interval: %s -> %s", old.Graph.RefreshInterval, next.Graph.RefreshInterval))
	}
	if old.Graph.BackfillBatchSize != next.Graph.BackfillBatchSize {
		changes = append(changes, fmt.Sprintf("graph.backfill_batch_size: %d -> %d", old.Graph.BackfillBatchSize, next.Graph.BackfillBatchSize))
	}
	if old.Logging.Level != next.Logging.Level {
		changes = append(changes, fmt.Sprintf("logging.level: %s -> %s", old.Logging.Level, next.Logging.Level))
	}
	if old.Neo4j.URI != next.Neo4j.URI {
		// the driver is not reopened
		changes = append(changes, "neo4j.uri (requires restart)")
	}
	if len(changes) > 0 {
		w.logger.Info("configuration reloaded", zap.Strings("changes", changes))
	}
}

func isConfigFile(path string) bool {
	switch filepath.Ext(path) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}
