package watcher

import (
	"maps"
	"slices"
	"sync"
	"time"
)

// Debouncer coalesces bursts of file system events into one batched callback
// per quiet period. Editors write several files per save and a checkout
// touches hundreds, the consumer wants one re-validation per burst.
type Debouncer struct {
	window   time.Duration
	callback func(paths []string)

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
}

// NewDebouncer creates a Debouncer that invokes callback with the batched
// paths once no event has arrived for the given window.
func NewDebouncer(window time.Duration, callback func(paths []string)) *Debouncer {
	return &Debouncer{
		window:   window,
		callback: callback,
		pending:  make(map[string]struct{}),
	}
}

// Add records a changed path and restarts the quiet period.
func (d *Debouncer) Add(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending[path] = struct{}{}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.fire)
}

// fire drains the pending set and hands the batch to the callback. Paths are
// sorted so downstream logging stays stable across bursts.
func (d *Debouncer) fire() {
	d.mu.Lock()
	paths := slices.Sorted(maps.Keys(d.pending))
	clear(d.pending)
	d.timer = nil
	d.mu.Unlock()

	// A timer that lost a reset race fires with nothing left to report.
	if len(paths) == 0 || d.callback == nil {
		return
	}
	d.callback(paths)
}
