package index

import (
	"sync"
	"time"
)

// debouncer coalesces bursts of trigger calls into one deferred execution
// of fn. It is safe to trigger from multiple mutation sites: a pending run
// is rescheduled, never doubled. Execution happens on a timer goroutine;
// fn must be safe to call from there.
type debouncer struct {
	mu       sync.Mutex
	interval time.Duration
	fn       func()
	timer    *time.Timer
	stopped  bool
}

func newDebouncer(interval time.Duration, fn func()) *debouncer {
	return &debouncer{interval: interval, fn: fn}
}

// trigger schedules fn after the debounce interval, pushing back any
// pending run.
func (d *debouncer) trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Reset(d.interval)
		return
	}
	d.timer = time.AfterFunc(d.interval, func() {
		d.mu.Lock()
		d.timer = nil
		stopped := d.stopped
		d.mu.Unlock()
		if !stopped {
			d.fn()
		}
	})
}

// flush cancels any pending run and executes fn synchronously when one was
// pending. It reports whether fn ran.
func (d *debouncer) flush() bool {
	d.mu.Lock()
	pending := d.timer != nil
	if pending {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()
	if pending {
		d.fn()
	}
	return pending
}

// stop cancels any pending run and prevents future scheduling.
func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
