package scraper

import (
	"context"
	"sync"
)

// control is the per-run pause/abort handle. Abort is cooperative: it cancels
// the run context, and the worker observes it at unit boundaries. Pause is a
// flag the worker polls before starting a new unit of work; it never
// interrupts an in-flight fetch.
type control struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	paused bool
}

func newControl() *control {
	ctx, cancel := context.WithCancel(context.Background())
	return &control{ctx: ctx, cancel: cancel}
}

func (c *control) Abort() {
	c.cancel()
}

func (c *control) Aborted() bool {
	return c.ctx.Err() != nil
}

func (c *control) TogglePause() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = !c.paused
	return c.paused
}

func (c *control) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}
