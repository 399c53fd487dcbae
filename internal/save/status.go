// Package save decides when local edits reach the remote store.
//
// Local writes are synchronous and immediate; remote writes are deferred
// behind either a debounce window or an explicit manual trigger. The
// package owns the save-status state machine shown to the UI and the
// cancellable timers that coalesce rapid edits into one remote write.
package save

import (
	"sync"
	"time"
)

// Status is the save-status state machine's current state.
type Status string

const (
	// StatusSaved means local and remote are believed consistent.
	StatusSaved Status = "saved"
	// StatusSaving means a remote write is in flight.
	StatusSaving Status = "saving"
	// StatusUnsaved means local edits have not reached the remote yet.
	StatusUnsaved Status = "unsaved"
	// StatusError means the last remote write failed; local data is
	// still durable.
	StatusError Status = "error"
)

// StatusTracker tracks the save state machine and the one-shot manual
// save trigger.
type StatusTracker struct {
	mu            sync.Mutex
	status        Status
	lastSaved     time.Time
	unsaved       bool
	manualPending bool

	// onChange, when set, observes every state transition.
	onChange func(Status)
}

// NewStatusTracker starts in the saved state.
func NewStatusTracker() *StatusTracker {
	return &StatusTracker{status: StatusSaved}
}

// SetChangeHook registers an observer for state transitions.
func (t *StatusTracker) SetChangeHook(fn func(Status)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onChange = fn
}

// transition records the new state and returns the observer callback to
// run once the lock is released. Hooks may call back into the tracker.
func (t *StatusTracker) transition(next Status) func() {
	t.status = next
	if t.onChange == nil {
		return nil
	}
	fn := t.onChange
	return func() { fn(next) }
}

func runHook(fn func()) {
	if fn != nil {
		fn()
	}
}

// MarkUnsaved records a local edit not yet synced remotely.
func (t *StatusTracker) MarkUnsaved() {
	t.mu.Lock()
	t.unsaved = true
	fn := t.transition(StatusUnsaved)
	t.mu.Unlock()
	runHook(fn)
}

// MarkSaving records the start of a remote write.
func (t *StatusTracker) MarkSaving() {
	t.mu.Lock()
	fn := t.transition(StatusSaving)
	t.mu.Unlock()
	runHook(fn)
}

// MarkSaved records a successful remote write.
func (t *StatusTracker) MarkSaved() {
	t.mu.Lock()
	t.unsaved = false
	t.lastSaved = time.Now()
	fn := t.transition(StatusSaved)
	t.mu.Unlock()
	runHook(fn)
}

// MarkError records a failed remote write. Local data is unaffected.
func (t *StatusTracker) MarkError() {
	t.mu.Lock()
	fn := t.transition(StatusError)
	t.mu.Unlock()
	runHook(fn)
}

// Status returns the current state.
func (t *StatusTracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// LastSaved returns when the last successful remote write completed,
// zero if none has.
func (t *StatusTracker) LastSaved() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastSaved
}

// HasUnsavedChanges reports whether local edits are pending remotely.
func (t *StatusTracker) HasUnsavedChanges() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.unsaved
}

// TriggerManualSave latches the one-shot manual save flag.
func (t *StatusTracker) TriggerManualSave() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.manualPending = true
}

// ConsumeManualSave reads and resets the manual save flag.
// Edge-triggered: returns true exactly once per trigger.
func (t *StatusTracker) ConsumeManualSave() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	fired := t.manualPending
	t.manualPending = false
	return fired
}
