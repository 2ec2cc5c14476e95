package web

import (
	"sync"
	"time"
)

// coalescer batches rapid submissions and delivers only the latest value once
// the window passes without a new one. Deliveries never overlap and never go
// backwards: each one reads the latest value at delivery time.
type coalescer[T any] struct {
	mu      sync.Mutex
	window  time.Duration
	timer   *time.Timer
	latest  T
	pending bool
	stopped bool

	deliverMu sync.Mutex
	deliver   func(T)
}

func newCoalescer[T any](window time.Duration, deliver func(T)) *coalescer[T] {
	return &coalescer[T]{window: window, deliver: deliver}
}

// Submit replaces the pending value and restarts the window.
func (c *coalescer[T]) Submit(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.latest = v
	c.pending = true
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.window, c.flush)
}

func (c *coalescer[T]) flush() {
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()

	c.mu.Lock()
	if !c.pending || c.stopped {
		c.mu.Unlock()
		return
	}
	v := c.latest
	c.pending = false
	c.mu.Unlock()

	c.deliver(v)
}

// Stop drops any pending value.
func (c *coalescer[T]) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	c.pending = false
	if c.timer != nil {
		c.timer.Stop()
	}
}
