// Package model provides the core data structures for devtab workspaces.
package model

import (
	"fmt"
	"math/rand"
	"strconv"
	"time"
)

// Task is a single task within a workspace.
//
// Notes holds rich-text content produced by the editor layer; this layer
// treats it as an opaque string. ID is derived from the creation timestamp
// in unix milliseconds and is unique within its workspace.
type Task struct {
	ID           int64  `json:"id"`
	Text         string `json:"text"`
	Notes        string `json:"notes"`
	Completed    bool   `json:"completed"`
	CreatedAt    string `json:"createdAt,omitempty"`
	LastModified string `json:"lastModified,omitempty"`
}

// Tab is a named workspace containing an ordered list of tasks.
type Tab struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	CreatedAt    string `json:"createdAt,omitempty"`
	LastModified string `json:"lastModified,omitempty"`
}

// TaskMap maps workspace ID to that workspace's task list.
// Slice order is display order (newest first).
type TaskMap map[string][]Task

// TabsMap maps workspace ID to workspace metadata.
type TabsMap map[string]Tab

// Clone returns a deep copy of the task map.
func (m TaskMap) Clone() TaskMap {
	out := make(TaskMap, len(m))
	for id, tasks := range m {
		cp := make([]Task, len(tasks))
		copy(cp, tasks)
		out[id] = cp
	}
	return out
}

// Clone returns a copy of the tabs map.
func (m TabsMap) Clone() TabsMap {
	out := make(TabsMap, len(m))
	for id, tab := range m {
		out[id] = tab
	}
	return out
}

// TotalTasks counts tasks across all workspaces.
func (m TaskMap) TotalTasks() int {
	total := 0
	for _, tasks := range m {
		total += len(tasks)
	}
	return total
}

// NewTabID generates a unique workspace ID: tab_<unixMillis>_<9 base36 chars>.
func NewTabID() string {
	return fmt.Sprintf("tab_%d_%s", time.Now().UnixMilli(), randBase36(9))
}

// NewTaskID returns a creation-timestamp-based task ID (unix milliseconds).
// Callers must bump the value on collision within a workspace.
func NewTaskID() int64 {
	return time.Now().UnixMilli()
}

func randBase36(n int) string {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[rand.Intn(len(alphabet))]
	}
	return string(b)
}

// NowISO returns the current time as an RFC 3339 UTC string, the format
// used for Task and Tab timestamps.
func NowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// TodayLabel returns the display name used for an auto-created default
// workspace, e.g. "02-Jan-25".
func TodayLabel() string {
	return time.Now().Format("02-Jan-06")
}

// FindTask returns the index of the task with the given ID, or -1.
func FindTask(tasks []Task, id int64) int {
	for i := range tasks {
		if tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// UniqueTaskID returns id, bumped past any task IDs already present in the
// list. Creation-timestamp IDs collide when two tasks are added within the
// same millisecond.
func UniqueTaskID(tasks []Task, id int64) int64 {
	for FindTask(tasks, id) >= 0 {
		id++
	}
	return id
}

// ParseTaskID parses a task ID from its decimal string form.
func ParseTaskID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid task id %q: %w", s, err)
	}
	return id, nil
}
