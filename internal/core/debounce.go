package core

import (
	"errors"
	"sync"
	"time"
)

// ErrDebounceStopped is delivered to callers still waiting when the
// debouncer is torn down.
var ErrDebounceStopped = errors.New("debounced operation cancelled")

// Debouncer coalesces rapid successive invocations into a single
// execution. Each call restarts the window; when the window elapses only
// the last submitted function runs, and every caller that joined the
// window receives that single outcome.
type Debouncer struct {
	window time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	fn      func() error
	waiters []chan error
	stopped bool
}

// NewDebouncer creates a debouncer with the given coalescing window.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{window: window}
}

// Do submits fn and blocks until the coalesced execution completes. If
// more calls arrive within the window, fn is replaced and this caller
// receives the outcome of the final call's function.
func (d *Debouncer) Do(fn func() error) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return ErrDebounceStopped
	}

	d.fn = fn
	ch := make(chan error, 1)
	d.waiters = append(d.waiters, ch)

	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.window, func() { d.fire(gen) })
	d.mu.Unlock()

	return <-ch
}

// fire runs the last submitted function and broadcasts its outcome. A
// timer whose window was restarted after it already fired carries a
// stale generation and is ignored.
func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if d.stopped || gen != d.gen {
		d.mu.Unlock()
		return
	}
	fn := d.fn
	waiters := d.waiters
	d.fn = nil
	d.waiters = nil
	d.timer = nil
	d.mu.Unlock()

	if fn == nil {
		return
	}

	err := fn()
	for _, ch := range waiters {
		ch <- err
	}
}

// Stop cancels any pending execution and releases waiting callers with
// ErrDebounceStopped. Further calls to Do fail immediately.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	for _, ch := range d.waiters {
		ch <- ErrDebounceStopped
	}
	d.fn = nil
	d.waiters = nil
}
