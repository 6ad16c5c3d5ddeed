package server

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Runner is a loop that runs until its context is cancelled.
type Runner interface {
	Run(ctx context.Context) error
}

// RunFunc adapts a function into a Runner.
type RunFunc func(ctx context.Context) error

// Run calls f.
func (f RunFunc) Run(ctx context.Context) error { return f(ctx) }

// GroupService runs several loops under one errgroup. The first loop to fail
// cancels the others.
type GroupService struct {
	logger  *zap.Logger
	names   []string
	runners []Runner
	onStop  []func()

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped bool
	done    chan struct{}
}

// NewGroupService creates an empty group.
func NewGroupService(logger *zap.Logger) *GroupService {
	return &GroupService{logger: logger, done: make(chan struct{})}
}

// Go adds a named loop. It must be called before Start.
func (g *GroupService) Go(name string, r Runner) {
	g.names = append(g.names, name)
	g.runners = append(g.runners, r)
}

// OnStop registers cleanup run after every loop has exited, such as closing
// the socket the loops shared.
func (g *GroupService) OnStop(fn func()) {
	g.onStop = append(g.onStop, fn)
}

// Start runs every loop and blocks until they have all returned.
//
// Postcondition: Returns the first loop error, or nil after Stop.
func (g *GroupService) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	g.mu.Lock()
	if g.stopped {
		g.mu.Unlock()
		cancel()
		g.cleanup()
		return nil
	}
	g.cancel = cancel
	g.mu.Unlock()
	defer close(g.done)
	defer cancel()

	eg, ctx := errgroup.WithContext(ctx)
	for i, r := range g.runners {
		r := r
		name := g.names[i]
		eg.Go(func() error {
			err := r.Run(ctx)
			g.logger.Debug("loop exited", zap.String("loop", name), zap.Error(err))
			return err
		})
	}
	err := eg.Wait()
	g.cleanup()
	return err
}

func (g *GroupService) cleanup() {
	for _, fn := range g.onStop {
		fn()
	}
}

// Stop cancels every loop and waits for Start to return. A group stopped
// before Start never runs.
func (g *GroupService) Stop() {
	g.mu.Lock()
	g.stopped = true
	cancel := g.cancel
	g.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-g.done
}
