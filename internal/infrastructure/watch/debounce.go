// Package watch reloads workspace files when they change on disk.
package watch

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of triggers into one callback carrying the
// most recent value. Editors often write a file several times per save.
type Debouncer[T any] struct {
	window   time.Duration
	callback func(T)

	mu      sync.Mutex
	timer   *time.Timer
	pending T
}

func NewDebouncer[T any](window time.Duration, callback func(T)) *Debouncer[T] {
	return &Debouncer[T]{window: window, callback: callback}
}

// Trigger records v and restarts the window.
func (d *Debouncer[T]) Trigger(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending = v
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.fire)
}

func (d *Debouncer[T]) fire() {
	d.mu.Lock()
	v := d.pending
	d.timer = nil
	d.mu.Unlock()
	d.callback(v)
}

// Stop cancels a pending callback.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
