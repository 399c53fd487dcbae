// Package tracker records which workspaces changed since the last flush,
// so the remote save path uploads only the documents that need it.
package tracker

import (
	"fmt"
	"sync"
)

// Changes is a snapshot of the accumulated change sets.
type Changes struct {
	// TasksChanged holds workspace IDs whose task lists changed.
	TasksChanged []string
	// TabsChanged holds workspace IDs whose metadata changed.
	TabsChanged []string
	// NewTabs holds workspace IDs created since the last flush.
	NewTabs []string
}

// Tracker accumulates change flags between remote flushes.
//
// Marks are purely additive within an accumulation window; the sets are
// cleared only after a confirmed successful flush. The tracker is never
// persisted.
type Tracker struct {
	mu           sync.Mutex
	tasksChanged map[string]struct{}
	tabsChanged  map[string]struct{}
	newTabs      map[string]struct{}
}

// New creates an empty change tracker.
func New() *Tracker {
	t := &Tracker{}
	t.reset()
	return t
}

func (t *Tracker) reset() {
	t.tasksChanged = make(map[string]struct{})
	t.tabsChanged = make(map[string]struct{})
	t.newTabs = make(map[string]struct{})
}

// MarkTasksChanged flags a workspace's task list as dirty.
func (t *Tracker) MarkTasksChanged(tabID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tasksChanged[tabID] = struct{}{}
}

// MarkTabChanged flags a workspace's metadata as dirty.
func (t *Tracker) MarkTabChanged(tabID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tabsChanged[tabID] = struct{}{}
}

// MarkNewTab flags a newly created workspace. Implies MarkTabChanged.
func (t *Tracker) MarkNewTab(tabID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.newTabs[tabID] = struct{}{}
	t.tabsChanged[tabID] = struct{}{}
}

// Changes returns a snapshot of the accumulated change sets.
func (t *Tracker) Changes() Changes {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Changes{
		TasksChanged: keys(t.tasksChanged),
		TabsChanged:  keys(t.tabsChanged),
		NewTabs:      keys(t.newTabs),
	}
}

// ClearSeen removes only the IDs captured in the given snapshot, leaving
// marks added after the snapshot intact. Used when a flush confirms a
// specific set of uploads while edits may still be arriving.
func (t *Tracker) ClearSeen(c Changes) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, id := range c.TasksChanged {
		delete(t.tasksChanged, id)
	}
	for _, id := range c.TabsChanged {
		delete(t.tabsChanged, id)
	}
	for _, id := range c.NewTabs {
		delete(t.newTabs, id)
	}
}

// ClearTab removes every flag for one workspace.
func (t *Tracker) ClearTab(tabID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.tasksChanged, tabID)
	delete(t.tabsChanged, tabID)
	delete(t.newTabs, tabID)
}

// Clear empties all change sets. Call only after a confirmed flush.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reset()
}

// HasChanges reports whether any workspace is flagged.
func (t *Tracker) HasChanges() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.tasksChanged) > 0 || len(t.tabsChanged) > 0 || len(t.newTabs) > 0
}

// Summary returns a human-readable description of the pending changes.
func (t *Tracker) Summary() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fmt.Sprintf("%d task collections, %d tabs, %d new tabs",
		len(t.tasksChanged), len(t.tabsChanged), len(t.newTabs))
}

func keys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
