// Package lifecycle coordinates subsystem startup, readiness, and shutdown.
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// StartupPending is the name Pending reports until WaitForStartup returns.
const StartupPending = "startup"

// ReadinessChecker reports whether a subsystem is ready to serve traffic.
type ReadinessChecker interface {
	Ready() bool
}

type tracked struct {
	name    string
	checker ReadinessChecker
}

// Coordinator runs startup hooks, gates readiness on tracked subsystems, and
// cancels its context to trigger shutdown hooks.
type Coordinator struct {
	ctx        context.Context
	cancel     context.CancelFunc
	startupWg  sync.WaitGroup
	shutdownWg sync.WaitGroup
	started    atomic.Bool

	mu      sync.RWMutex
	tracked []tracked
}

// New creates a Coordinator with a cancellable context.
func New() *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		ctx:    ctx,
		cancel: cancel,
	}
}

// Context returns the coordinator's context, cancelled on shutdown.
func (c *Coordinator) Context() context.Context {
	return c.ctx
}

// OnStartup runs fn concurrently; WaitForStartup waits for it.
func (c *Coordinator) OnStartup(fn func()) {
	c.startupWg.Go(fn)
}

// OnShutdown runs fn concurrently; Shutdown waits for it. Hooks should block
// on <-c.Context().Done() before cleaning up.
func (c *Coordinator) OnShutdown(fn func()) {
	c.shutdownWg.Go(fn)
}

// Track gates readiness on rc, reported under name while it is not ready.
func (c *Coordinator) Track(name string, rc ReadinessChecker) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tracked = append(c.tracked, tracked{name: name, checker: rc})
}

// Pending lists what currently blocks readiness, in tracking order.
func (c *Coordinator) Pending() []string {
	var pending []string
	if !c.started.Load() {
		pending = append(pending, StartupPending)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, t := range c.tracked {
		if !t.checker.Ready() {
			pending = append(pending, t.name)
		}
	}
	return pending
}

// Ready reports whether startup hooks finished and every tracked subsystem is ready.
func (c *Coordinator) Ready() bool {
	return len(c.Pending()) == 0
}

// WaitForStartup blocks until every startup hook has returned.
func (c *Coordinator) WaitForStartup() {
	c.startupWg.Wait()
	c.started.Store(true)
}

// Shutdown cancels the context and waits up to timeout for shutdown hooks.
func (c *Coordinator) Shutdown(timeout time.Duration) error {
	c.cancel()

	done := make(chan struct{})
	go func() {
		c.shutdownWg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		return fmt.Errorf("shutdown hooks still running after %v", timeout)
	}
}
