package review

import (
	"sync"
	"time"
)

// debounceConfig controls how in-page writes are coalesced.
type debounceConfig struct {
	// Window is the quiet period after the last mutation. Default: 300ms.
	Window time.Duration
	// MaxPending flushes immediately when this many mutations accumulate
	// without a write. Default: 1000.
	MaxPending int
}

func (dc *debounceConfig) defaults() {
	if dc.Window <= 0 {
		dc.Window = 300 * time.Millisecond
	}
	if dc.MaxPending <= 0 {
		dc.MaxPending = 1000
	}
}

// debouncer runs flushFn once per burst of triggers. Each trigger cancels
// the scheduled flush and schedules a new one.
type debouncer struct {
	cfg     debounceConfig
	flushFn func()
	// timerFn runs window flushes; flushFn when nil.
	timerFn func()

	mu      sync.Mutex
	pending int
	gen     uint64
	timer   *time.Timer
}

func newDebouncer(cfg debounceConfig, flushFn func()) *debouncer {
	cfg.defaults()
	return &debouncer{cfg: cfg, flushFn: flushFn}
}

// trigger records a mutation and (re)starts the window. Returns true if an
// immediate flush ran because MaxPending was reached.
func (d *debouncer) trigger() bool {
	d.mu.Lock()
	d.pending++
	d.stopLocked()
	if d.pending >= d.cfg.MaxPending {
		d.pending = 0
		d.mu.Unlock()
		d.flushFn()
		return true
	}
	gen := d.gen
	d.timer = time.AfterFunc(d.cfg.Window, func() { d.fire(gen) })
	d.mu.Unlock()
	return false
}

func (d *debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || d.pending == 0 {
		d.mu.Unlock()
		return
	}
	d.pending = 0
	d.timer = nil
	fn := d.timerFn
	d.mu.Unlock()
	if fn == nil {
		fn = d.flushFn
	}
	fn()
}

// flush runs a pending flush now. Returns false if nothing was pending.
func (d *debouncer) flush() bool {
	d.mu.Lock()
	if d.pending == 0 {
		d.mu.Unlock()
		return false
	}
	d.pending = 0
	d.stopLocked()
	d.mu.Unlock()
	d.flushFn()
	return true
}

// stop cancels any pending flush without running it.
func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = 0
	d.stopLocked()
}

func (d *debouncer) stopLocked() {
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
