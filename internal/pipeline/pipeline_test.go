package pipeline

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nugget/pipelined/internal/node"
	"github.com/nugget/pipelined/internal/resource"
)

// countingNode increments a shared counter on every Execute and closes
// Context.Dispatcher to DefaultNext, so a small two-node pipeline walks
// the loop indefinitely until stopped.
type countingNode struct {
	ctx *node.Context
	cfg node.Config
	n   *int64
}

func newCountingNode(counter *int64) node.Constructor {
	return func(ctx *node.Context, cfg node.Config) (node.Node, error) {
		return &countingNode{ctx: ctx, cfg: cfg, n: counter}, nil
	}
}

func (c *countingNode) Prepare() error { return nil }
func (c *countingNode) Execute() error { atomic.AddInt64(c.n, 1); return nil }
func (c *countingNode) Next()          { node.DefaultNext(c.ctx, c.cfg) }
func (c *countingNode) Dispose()       {}

// blockingNode parks in Execute until release is closed, used to land
// Stop precisely "during" a tick.
type blockingNode struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingNode) Prepare() error { return nil }
func (b *blockingNode) Execute() error {
	close(b.entered)
	<-b.release
	return nil
}
func (b *blockingNode) Next()    {}
func (b *blockingNode) Dispose() {}

func noopBuild(*resource.Creator, *node.Registry) {}

func twoNodeBuild(counter *int64) Builder {
	return func(_ *resource.Creator, reg *node.Registry) {
		reg.Register("counter", newCountingNode(counter))
	}
}

type recordingNotifier struct {
	mu  sync.Mutex
	got []any
}

func (r *recordingNotifier) Publish(msg any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, msg)
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

func TestPipeline_StartRunsLoopUntilStopped(t *testing.T) {
	var counter int64
	notif := &recordingNotifier{}
	m := New(nil, nil, notif, twoNodeBuild(&counter))

	if err := m.SetConfig([]Descriptor{
		{ID: "a", Name: "counter"},
		{ID: "b", Name: "counter"},
	}); err != nil {
		t.Fatalf("SetConfig: %v", err)
	}
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if m.Status() != StatusRunning {
		t.Fatalf("status = %v, want running", m.Status())
	}

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt64(&counter) < 20 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if atomic.LoadInt64(&counter) < 20 {
		t.Fatalf("counter = %d, want >= 20 (loop should have closed repeatedly)", counter)
	}

	if err := m.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if m.Status() != StatusStopped {
		t.Fatalf("status = %v, want stopped", m.Status())
	}
	if notif.count() == 0 {
		t.Fatal("expected at least one lifecycle notification published")
	}
}

func TestPipeline_StopDuringExecuteWaitsThenHalts(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	m := New(nil, nil, nil, func(_ *resource.Creator, reg *node.Registry) {
		reg.Register("block", func(ctx *node.Context, cfg node.Config) (node.Node, error) {
			return &blockingNode{entered: entered, release: release}, nil
		})
	})
	if err := m.SetConfig([]Descriptor{{ID: "a", Name: "block"}}); err != nil {
		t.Fatalf("SetConfig: %v", err)
	}
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("node never entered Execute")
	}

	stopDone := make(chan error, 1)
	go func() { stopDone <- m.Stop() }()

	// Stop must not return while the tick is still in flight: after
	// disposing the nodes it joins the worker, which is blocked in Execute.
	select {
	case <-stopDone:
		t.Fatal("Stop returned before the blocking tick released")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)

	select {
	case err := <-stopDone:
		if err != nil {
			t.Fatalf("Stop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after release")
	}
	if m.Status() != StatusStopped {
		t.Fatalf("status = %v, want stopped", m.Status())
	}
}

func TestPipeline_StopIsIdempotent(t *testing.T) {
	m := New(nil, nil, nil, noopBuild)
	if err := m.Stop(); err != nil {
		t.Fatalf("Stop on idle: %v", err)
	}
	if m.Status() != StatusIdle {
		t.Fatalf("status = %v, want idle", m.Status())
	}
}

func TestPipeline_SetConfigRejectedWhileRunning(t *testing.T) {
	var counter int64
	m := New(nil, nil, nil, twoNodeBuild(&counter))
	if err := m.SetConfig([]Descriptor{{ID: "a", Name: "counter"}}); err != nil {
		t.Fatalf("SetConfig: %v", err)
	}
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop()

	err := m.SetConfig([]Descriptor{{ID: "b", Name: "counter"}})
	if err == nil {
		t.Fatal("expected InvalidStateError while running")
	}
	if _, ok := err.(*InvalidStateError); !ok {
		t.Fatalf("err type = %T, want *InvalidStateError", err)
	}
}

func TestPipeline_StartRejectedWithoutConfig(t *testing.T) {
	m := New(nil, nil, nil, noopBuild)
	if err := m.Start(); err == nil {
		t.Fatal("expected error starting without config")
	}
}

func TestPipeline_StartRejectedWhileAlreadyRunning(t *testing.T) {
	var counter int64
	m := New(nil, nil, nil, twoNodeBuild(&counter))
	m.SetConfig([]Descriptor{{ID: "a", Name: "counter"}})
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop()

	if err := m.Start(); err == nil {
		t.Fatal("expected InvalidStateError on double start")
	}
}

func TestPipeline_GetStatusReflectsConfigLength(t *testing.T) {
	m := New(nil, nil, nil, noopBuild)
	if m.HasConfig() {
		t.Fatal("fresh manager should report no config")
	}
	m.SetConfig([]Descriptor{{ID: "a", Name: "x"}, {ID: "b", Name: "y"}})
	if !m.HasConfig() || m.ConfigLength() != 2 {
		t.Fatalf("HasConfig/ConfigLength = %v/%d, want true/2", m.HasConfig(), m.ConfigLength())
	}
}
