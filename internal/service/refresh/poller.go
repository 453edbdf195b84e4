// Package refresh re-polls the active view on a fixed interval.
package refresh

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"typegraph-backend/internal/domain/node"
	"typegraph-backend/internal/service/gateway"
	"typegraph-backend/internal/service/registry"
)

// View is what the poller keeps fresh: all nodes of a type, optionally
// narrowed by a filter or a search text. Search takes precedence.
type View struct {
	Type   string      `json:"type"`
	Filter node.Filter `json:"-"`
	Search string      `json:"search,omitempty"`
}

// LoadFunc reads the records of a view.
type LoadFunc func(ctx context.Context, v View) ([]node.Record, error)

// Snapshot is the result of the last refresh.
type Snapshot struct {
	View        View          `json:"view"`
	Records     []node.Record `json:"records"`
	RefreshedAt time.Time     `json:"refreshed_at"`
	// LastError is the most recent failure; Records then still hold the
	// previous successful result.
	LastError string `json:"last_error,omitempty"`
}

// Poller refreshes the active view. It reads independently of in-flight
// mutations and never blocks them.
type Poller struct {
	load   LoadFunc
	logger *zap.Logger

	mu       sync.RWMutex
	view     *View
	viewGen  uint64 // bumped by every SetView
	snapshot Snapshot
	interval time.Duration

	wake chan struct{}
}

// NewPoller creates a poller with no active view.
func NewPoller(load LoadFunc, interval time.Duration, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Poller{
		load:     load,
		logger:   logger.Named("refresh"),
		interval: interval,
		wake:     make(chan struct{}, 1),
	}
}

// Run polls until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.Interval())
	defer ticker.Stop()
	current := p.Interval()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Refresh(ctx)
		case <-p.wake:
			if d := p.Interval(); d != current {
				ticker.Reset(d)
				current = d
			}
			p.Refresh(ctx)
		}
	}
}

// SetView replaces the active view and triggers a refresh.
func (p *Poller) SetView(v View) {
	p.mu.Lock()
	p.view = &v
	p.viewGen++
	p.mu.Unlock()
	p.poke()
}

// SetInterval changes the polling interval; it takes effect immediately.
func (p *Poller) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	p.mu.Lock()
	changed := p.interval != d
	p.interval = d
	p.mu.Unlock()
	if changed {
		p.logger.Info("refresh interval changed", zap.Duration("interval", d))
		p.poke()
	}
}

// Interval returns the current polling interval.
func (p *Poller) Interval() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.interval
}

// Snapshot returns the latest result.
func (p *Poller) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshot
}

// Refresh runs one poll of the active view. Errors are logged and recorded
// on the snapshot; the previous records are kept.
func (p *Poller) Refresh(ctx context.Context) {
	p.mu.RLock()
	if p.view == nil {
		p.mu.RUnlock()
		return
	}
	v, gen := *p.view, p.viewGen
	p.mu.RUnlock()

	records, err := p.load(ctx, v)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.viewGen != gen {
		// view changed while loading; the next poll picks it up
		return
	}
	if err != nil {
		p.logger.Warn("refresh failed", zap.String("type", v.Type), zap.Error(err))
		p.snapshot.LastError = err.Error()
		return
	}
	p.snapshot = Snapshot{View: v, Records: records, RefreshedAt: time.Now()}
}

func (p *Poller) poke() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// NewViewLoader resolves the view's type through the registry and reads it
// through the gateway.
func NewViewLoader(reg *registry.Service, gw *gateway.Gateway) LoadFunc {
	return func(ctx context.Context, v View) ([]node.Record, error) {
		t, err := reg.Get(v.Type)
		if err != nil {
			return nil, err
		}
		switch {
		case v.Search != "":
			return gw.Search(ctx, t, v.Search)
		case len(v.Filter) > 0:
			return gw.LoadFiltered(ctx, t, v.Filter)
		default:
			return gw.LoadByType(ctx, t)
		}
	}
}
