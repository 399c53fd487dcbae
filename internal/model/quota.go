package model

// UserQuota tracks per-user resource counts and daily operation counters
// against fixed limits.
//
// TasksCount and WorkspacesCount are recomputed from live state on every
// observation; ReadsToday/WritesToday are incremented explicitly and reset
// when LastResetDate no longer matches the current calendar day.
type UserQuota struct {
	TasksCount      int    `json:"tasksCount"`
	WorkspacesCount int    `json:"workspacesCount"`
	MaxTasks        int    `json:"maxTasks"`
	MaxWorkspaces   int    `json:"maxWorkspaces"`
	ReadsToday      int    `json:"readsToday"`
	WritesToday     int    `json:"writesToday"`
	MaxReadsPerDay  int    `json:"maxReadsPerDay"`
	MaxWritesPerDay int    `json:"maxWritesPerDay"`
	LastResetDate   string `json:"lastResetDate"`
}
