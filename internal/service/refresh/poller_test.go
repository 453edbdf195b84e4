package refresh

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"typegraph-backend/internal/domain/node"
)

func TestPoller_RefreshKeepsLastGoodSnapshot(t *testing.T) {
	fail := false
	load := func(ctx context.Context, v View) ([]node.Record, error) {
		if fail {
			return nil, errors.New("store unavailable")
		}
		return []node.Record{node.Persisted(1, "Label_1", nil)}, nil
	}
	p := NewPoller(load, time.Hour, zap.NewNop())
	ctx := context.Background()

	p.Refresh(ctx)
	assert.Empty(t, p.Snapshot().Records, "no view, nothing loaded")

	p.SetView(View{Type: "Document"})
	p.Refresh(ctx)
	snap := p.Snapshot()
	require.Len(t, snap.Records, 1)
	assert.Empty(t, snap.LastError)
	assert.Equal(t, "Document", snap.View.Type)

	fail = true
	p.Refresh(ctx)
	snap = p.Snapshot()
	assert.Len(t, snap.Records, 1)
	assert.Equal(t, "store unavailable", snap.LastError)
}

func TestPoller_RunPollsAndReacts(t *testing.T) {
	var calls atomic.Int32
	load := func(ctx context.Context, v View) ([]node.Record, error) {
		calls.Add(1)
		return nil, nil
	}
	p := NewPoller(load, 10*time.Millisecond, zap.NewNop())
	p.SetView(View{Type: "Document"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, 5*time.Millisecond)

	p.SetInterval(time.Hour)
	assert.Equal(t, time.Hour, p.Interval())

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}

func TestPoller_SetIntervalIgnoresNonPositive(t *testing.T) {
	p := NewPoller(nil, time.Minute, zap.NewNop())
	p.SetInterval(0)
	p.SetInterval(-time.Second)
	assert.Equal(t, time.Minute, p.Interval())
}

func TestPoller_FilterChangeDuringLoadDiscardsResult(t *testing.T) {
	var p *Poller
	calls := 0
	load := func(ctx context.Context, v View) ([]node.Record, error) {
		calls++
		if calls == 1 {
			// the filter changes while the first load is in flight
			p.SetView(View{Type: "Document", Filter: node.Filter{"relevance": node.BoolEquals{Value: false}}})
			return []node.Record{node.Persisted(1, "Label_1", nil), node.Persisted(2, "Label_1", nil)}, nil
		}
		return []node.Record{node.Persisted(2, "Label_1", nil)}, nil
	}
	p = NewPoller(load, time.Hour, zap.NewNop())
	ctx := context.Background()

	p.SetView(View{Type: "Document", Filter: node.Filter{"relevance": node.BoolEquals{Value: true}}})
	p.Refresh(ctx)
	assert.Empty(t, p.Snapshot().Records, "result of the superseded filter is dropped")

	p.Refresh(ctx)
	snap := p.Snapshot()
	require.Len(t, snap.Records, 1)
	assert.Equal(t, node.BoolEquals{Value: false}, snap.View.Filter["relevance"])
}
