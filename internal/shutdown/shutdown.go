// Package shutdown tracks in-flight requests so the server can refuse new
// work and drain the rest within a deadline.
package shutdown

import (
	"sync"
	"time"
)

// Coordinator admits requests until shutdown is requested.
type Coordinator struct {
	mu       sync.Mutex
	cond     *sync.Cond
	active   int
	stopping bool
	deadline time.Time
}

// New returns an accepting coordinator.
func New() *Coordinator {
	c := &Coordinator{}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// TryEnter registers a request. It returns a release func, or false once
// shutdown has been requested. Release is safe to call more than once.
func (c *Coordinator) TryEnter() (func(), bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopping {
		return nil, false
	}
	c.active++
	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			c.active--
			c.cond.Broadcast()
			c.mu.Unlock()
		})
	}, true
}

// RequestShutdown stops admitting requests and sets the drain deadline to
// now+timeout. Later calls keep the first deadline.
func (c *Coordinator) RequestShutdown(timeout time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopping {
		return
	}
	c.stopping = true
	c.deadline = time.Now().Add(timeout)
	c.cond.Broadcast()
}

// ShuttingDown reports whether RequestShutdown has been called.
func (c *Coordinator) ShuttingDown() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopping
}

// Active returns the number of in-flight requests.
func (c *Coordinator) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// WaitForDrain blocks until no request is in flight or the deadline passes.
// It reports whether the drain completed. Without a pending shutdown it
// returns immediately with the current state.
func (c *Coordinator) WaitForDrain() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.stopping {
		return c.active == 0
	}

	// sync.Cond has no timed wait; a timer wakes the waiter at the deadline.
	remaining := time.Until(c.deadline)
	if remaining > 0 {
		timer := time.AfterFunc(remaining, func() {
			c.mu.Lock()
			c.cond.Broadcast()
			c.mu.Unlock()
		})
		defer timer.Stop()
	}
	for c.active > 0 && time.Now().Before(c.deadline) {
		c.cond.Wait()
	}
	return c.active == 0
}
