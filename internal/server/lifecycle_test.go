package server

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type mockService struct {
	started atomic.Bool
	stopped atomic.Bool
	startFn func() error
	order   *stopOrder
	name    string
}

type stopOrder struct {
	mu    sync.Mutex
	names []string
}

func (o *stopOrder) record(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.names = append(o.names, name)
}

func (m *mockService) Start() error {
	m.started.Store(true)
	if m.startFn != nil {
		return m.startFn()
	}
	for !m.stopped.Load() {
		time.Sleep(10 * time.Millisecond)
	}
	return nil
}

func (m *mockService) Stop() {
	m.stopped.Store(true)
	if m.order != nil {
		m.order.record(m.name)
	}
}

func TestLifecycleStartsAndStopsServicesInReverse(t *testing.T) {
	lc := NewLifecycle(zaptest.NewLogger(t))
	order := &stopOrder{}
	svc1 := &mockService{order: order, name: "svc1"}
	svc2 := &mockService{order: order, name: "svc2"}
	lc.Add("svc1", svc1)
	lc.Add("svc2", svc2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- lc.Run(ctx) }()

	require.Eventually(t, func() bool {
		return svc1.started.Load() && svc2.started.Load()
	}, 2*time.Second, 10*time.Millisecond, "services did not start in time")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("lifecycle did not shut down in time")
	}

	assert.True(t, svc1.stopped.Load())
	assert.True(t, svc2.stopped.Load())
	assert.Equal(t, []string{"svc2", "svc1"}, order.names)
}

func TestLifecycleReturnsServiceFailure(t *testing.T) {
	lc := NewLifecycle(zaptest.NewLogger(t))
	boom := errors.New("boom")
	healthy := &mockService{}
	lc.Add("healthy", healthy)
	lc.Add("broken", &mockService{startFn: func() error { return boom }})

	err := lc.Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.True(t, healthy.stopped.Load())
}

func TestFuncService(t *testing.T) {
	started := false
	stopped := false

	svc := &FuncService{
		StartFn: func() error {
			started = true
			return nil
		},
		StopFn: func() {
			stopped = true
		},
	}

	err := svc.Start()
	assert.NoError(t, err)
	assert.True(t, started)

	svc.Stop()
	assert.True(t, stopped)
}

func TestGroupServiceStopCancelsLoops(t *testing.T) {
	g := NewGroupService(zaptest.NewLogger(t))
	var exited atomic.Int32
	var cleaned atomic.Bool
	for _, name := range []string{"a", "b"} {
		g.Go(name, RunFunc(func(ctx context.Context) error {
			<-ctx.Done()
			exited.Add(1)
			return nil
		}))
	}
	g.OnStop(func() { cleaned.Store(true) })

	done := make(chan error, 1)
	go func() { done <- g.Start() }()
	require.Eventually(t, func() bool {
		g.mu.Lock()
		defer g.mu.Unlock()
		return g.cancel != nil
	}, 2*time.Second, 5*time.Millisecond)

	g.Stop()
	require.NoError(t, <-done)
	assert.Equal(t, int32(2), exited.Load())
	assert.True(t, cleaned.Load())
}

func TestGroupServiceFailureCancelsSiblings(t *testing.T) {
	g := NewGroupService(zaptest.NewLogger(t))
	boom := errors.New("boom")
	g.Go("waits", RunFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	}))
	g.Go("fails", RunFunc(func(context.Context) error { return boom }))

	assert.ErrorIs(t, g.Start(), boom)
}

func TestGroupServiceStoppedBeforeStart(t *testing.T) {
	g := NewGroupService(zaptest.NewLogger(t))
	var cleaned atomic.Bool
	g.Go("never", RunFunc(func(context.Context) error {
		t.Error("loop ran after Stop")
		return nil
	}))
	g.OnStop(func() { cleaned.Store(true) })

	g.Stop()
	assert.NoError(t, g.Start())
	assert.True(t, cleaned.Load())
}
