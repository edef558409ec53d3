package event

import (
	"context"
	"sync"
	"time"
)

// defaultFlushInterval bounds the flush rate at 5 Hz.
const defaultFlushInterval = 200 * time.Millisecond

// Coalescer batches high-frequency progress updates into bounded-rate
// flushes. Worker goroutines call MarkDirty (cheap, non-blocking); the loop
// started by Run wakes on the dirty flag, invokes the flush callback once,
// then sleeps at least the flush interval before re-waiting. Terminal events
// should force a mark so the final state is delivered promptly.
type Coalescer struct {
	flush    func()
	interval time.Duration

	mu    sync.Mutex
	dirty bool
	wake  chan struct{}
}

// NewCoalescer creates a coalescer invoking flush on every batch.
func NewCoalescer(flush func()) *Coalescer {
	return &Coalescer{
		flush:    flush,
		interval: defaultFlushInterval,
		wake:     make(chan struct{}, 1),
	}
}

// WithInterval overrides the minimum time between flushes. Used by tests.
func (c *Coalescer) WithInterval(d time.Duration) *Coalescer {
	c.interval = d
	return c
}

// MarkDirty records that state changed. Safe to call from any goroutine at
// any rate; the flush loop collapses bursts into single updates.
func (c *Coalescer) MarkDirty() {
	c.mu.Lock()
	c.dirty = true
	c.mu.Unlock()
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// consumeDirty clears and returns the dirty flag.
func (c *Coalescer) consumeDirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	was := c.dirty
	c.dirty = false
	return was
}

// Run drives the flush loop until ctx is done. A final flush is performed on
// exit when a mark is still pending, so the terminal state is never lost.
func (c *Coalescer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			if c.consumeDirty() {
				c.flush()
			}
			return
		case <-c.wake:
		}
		if !c.consumeDirty() {
			continue
		}
		c.flush()
		select {
		case <-ctx.Done():
			if c.consumeDirty() {
				c.flush()
			}
			return
		case <-time.After(c.interval):
		}
	}
}
