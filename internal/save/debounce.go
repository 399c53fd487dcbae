package save

import (
	"sync"
	"time"
)

// DefaultDebounceInterval is the quiet period after the last edit before
// an automatic remote save fires.
const DefaultDebounceInterval = 1200 * time.Millisecond

// Debouncer owns one cancellable deferred action per workspace.
//
// Scheduling replaces any pending action for the same workspace, so rapid
// edits coalesce into one firing after the quiet period. A generation
// counter guards each timer: a timer that lost a Stop race can never run
// its action, which keeps a superseded save from overtaking its
// replacement.
type Debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	pending map[string]*deferred
	gens    map[string]uint64
	stopped bool
}

type deferred struct {
	timer *time.Timer
	gen   uint64
}

// NewDebouncer creates a debouncer with the given quiet period;
// delay <= 0 uses the default.
func NewDebouncer(delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounceInterval
	}
	return &Debouncer{
		delay:   delay,
		pending: make(map[string]*deferred),
		gens:    make(map[string]uint64),
	}
}

// Schedule defers fn for the workspace, replacing any pending deferral.
// The timer is reset on every call, so fn runs only after a full quiet
// period with no further Schedule calls for the same workspace.
func (d *Debouncer) Schedule(tabID string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	if prev, ok := d.pending[tabID]; ok {
		prev.timer.Stop()
	}
	// Generations never restart for a workspace, even after Cancel
	// deletes the entry, so a stale timer can never claim a fresh one.
	d.gens[tabID]++
	gen := d.gens[tabID]

	h := &deferred{gen: gen}
	h.timer = time.AfterFunc(d.delay, func() {
		if d.claim(tabID, gen) {
			fn()
		}
	})
	d.pending[tabID] = h
}

// claim removes the pending entry if it still belongs to this timer
// generation. A false return means the timer was cancelled or superseded.
func (d *Debouncer) claim(tabID string, gen uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	h, ok := d.pending[tabID]
	if !ok || h.gen != gen {
		return false
	}
	delete(d.pending, tabID)
	return true
}

// Cancel drops any pending deferral for the workspace. The cancelled
// action never fires.
func (d *Debouncer) Cancel(tabID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if h, ok := d.pending[tabID]; ok {
		h.timer.Stop()
		delete(d.pending, tabID)
	}
}

// CancelAll drops every pending deferral.
func (d *Debouncer) CancelAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, h := range d.pending {
		h.timer.Stop()
		delete(d.pending, id)
	}
}

// Pending reports whether a deferral is scheduled for the workspace.
func (d *Debouncer) Pending(tabID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[tabID]
	return ok
}

// Stop cancels all pending deferrals and rejects future scheduling.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	for id, h := range d.pending {
		h.timer.Stop()
		delete(d.pending, id)
	}
}
