// Package quota tracks per-user resource counts and daily operation
// counters against fixed limits.
//
// Quota checks are advisory gates performed by the caller before a
// mutation. The manager never blocks storage operations itself: it is a
// UX guardrail, not a security boundary.
package quota

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/devtab/devtab/internal/model"
	"github.com/devtab/devtab/internal/store"
)

// Free tier limits.
const (
	DefaultMaxTasks        = 50
	DefaultMaxWorkspaces   = 10
	DefaultMaxReadsPerDay  = 200
	DefaultMaxWritesPerDay = 100
)

// softWarningRatio is the fraction of a limit at which the aggregate
// warning appears.
const softWarningRatio = 0.8

// Action identifies which limit a warning refers to.
type Action string

const (
	ActionTask      Action = "task"
	ActionWorkspace Action = "workspace"
	ActionRead      Action = "read"
	ActionWrite     Action = "write"
)

// Limits configures the per-user ceilings.
type Limits struct {
	MaxTasks        int
	MaxWorkspaces   int
	MaxReadsPerDay  int
	MaxWritesPerDay int
}

// DefaultLimits returns the free tier ceilings.
func DefaultLimits() Limits {
	return Limits{
		MaxTasks:        DefaultMaxTasks,
		MaxWorkspaces:   DefaultMaxWorkspaces,
		MaxReadsPerDay:  DefaultMaxReadsPerDay,
		MaxWritesPerDay: DefaultMaxWritesPerDay,
	}
}

// Manager owns one quota record for the authenticated user.
//
// Count fields are recomputed from live maps on every Refresh; daily
// counters reset when the stored calendar day differs from today.
// Lifecycle is tied to the user session: construct on sign-in, drop on
// sign-out.
type Manager struct {
	mu     sync.Mutex
	store  *store.Store
	userID string
	limits Limits
	logger *log.Logger
	quota  model.UserQuota

	// now is replaceable in tests for day-rollover scenarios.
	now func() time.Time
}

// NewManager loads or initializes the quota record for the user.
// If logger is nil, a default logger writing to stderr is used.
func NewManager(st *store.Store, userID string, limits Limits, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(os.Stderr, "[quota] ", log.LstdFlags)
	}
	if limits.MaxTasks <= 0 {
		limits = DefaultLimits()
	}

	m := &Manager{
		store:  st,
		userID: userID,
		limits: limits,
		logger: logger,
		now:    time.Now,
	}
	m.load()
	return m
}

func (m *Manager) today() string {
	return m.now().Format("2006-01-02")
}

// load reads the persisted record, resetting daily counters when the
// calendar day has rolled over.
func (m *Manager) load() {
	today := m.today()

	if stored := m.store.GetQuota(m.userID); stored != nil {
		m.quota = *stored
		if m.quota.LastResetDate != today {
			m.quota.ReadsToday = 0
			m.quota.WritesToday = 0
			m.quota.LastResetDate = today
			m.persist()
		}
		return
	}

	m.quota = model.UserQuota{
		MaxTasks:        m.limits.MaxTasks,
		MaxWorkspaces:   m.limits.MaxWorkspaces,
		MaxReadsPerDay:  m.limits.MaxReadsPerDay,
		MaxWritesPerDay: m.limits.MaxWritesPerDay,
		LastResetDate:   today,
	}
	m.persist()
}

func (m *Manager) persist() {
	if err := m.store.SaveQuota(m.userID, &m.quota); err != nil {
		m.logger.Printf("Warning: failed to persist quota: %v", err)
	}
}

// rollover resets daily counters if the day changed since the last call.
// Must hold mu.
func (m *Manager) rollover() {
	today := m.today()
	if m.quota.LastResetDate != today {
		m.quota.ReadsToday = 0
		m.quota.WritesToday = 0
		m.quota.LastResetDate = today
		m.persist()
	}
}

// Refresh recomputes resource counts from the live maps.
func (m *Manager) Refresh(tasks model.TaskMap, tabs model.TabsMap) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollover()
	m.quota.TasksCount = tasks.TotalTasks()
	m.quota.WorkspacesCount = len(tabs)
	m.persist()
}

// Quota returns a copy of the current record.
func (m *Manager) Quota() model.UserQuota {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollover()
	return m.quota
}

// CanCreateTask reports whether a task create is within limits.
func (m *Manager) CanCreateTask() bool {
	q := m.Quota()
	return q.TasksCount < q.MaxTasks && q.WritesToday < q.MaxWritesPerDay
}

// CanCreateWorkspace reports whether a workspace create is within limits.
func (m *Manager) CanCreateWorkspace() bool {
	q := m.Quota()
	return q.WorkspacesCount < q.MaxWorkspaces && q.WritesToday < q.MaxWritesPerDay
}

// CanRead reports whether another remote read is within today's limit.
func (m *Manager) CanRead() bool {
	q := m.Quota()
	return q.ReadsToday < q.MaxReadsPerDay
}

// CanWrite reports whether another remote write is within today's limit.
func (m *Manager) CanWrite() bool {
	q := m.Quota()
	return q.WritesToday < q.MaxWritesPerDay
}

// Warning returns the hard-limit message for the action, or "" when the
// action is still allowed.
func (m *Manager) Warning(action Action) string {
	q := m.Quota()
	switch action {
	case ActionTask:
		if q.TasksCount >= q.MaxTasks {
			return fmt.Sprintf("You've reached the maximum number of tasks (%d). Delete some tasks or upgrade your plan.", q.MaxTasks)
		}
	case ActionWorkspace:
		if q.WorkspacesCount >= q.MaxWorkspaces {
			return fmt.Sprintf("You've reached the maximum number of workspaces (%d). Delete some workspaces or upgrade your plan.", q.MaxWorkspaces)
		}
	case ActionWrite:
		if q.WritesToday >= q.MaxWritesPerDay {
			return fmt.Sprintf("You've reached today's write limit (%d). Try again tomorrow or upgrade your plan.", q.MaxWritesPerDay)
		}
	case ActionRead:
		if q.ReadsToday >= q.MaxReadsPerDay {
			return fmt.Sprintf("You've reached today's read limit (%d). Try again tomorrow or upgrade your plan.", q.MaxReadsPerDay)
		}
	}
	return ""
}

// SoftWarning returns a single aggregate message when any tracked
// quantity reaches 80% of its ceiling. Conditions are checked in fixed
// priority order (tasks, workspaces, writes, reads) and only the first
// match is surfaced.
func (m *Manager) SoftWarning() string {
	q := m.Quota()
	switch {
	case float64(q.TasksCount) >= float64(q.MaxTasks)*softWarningRatio:
		return fmt.Sprintf("You're approaching the task limit (%d/%d)", q.TasksCount, q.MaxTasks)
	case float64(q.WorkspacesCount) >= float64(q.MaxWorkspaces)*softWarningRatio:
		return fmt.Sprintf("You're approaching the workspace limit (%d/%d)", q.WorkspacesCount, q.MaxWorkspaces)
	case float64(q.WritesToday) >= float64(q.MaxWritesPerDay)*softWarningRatio:
		return fmt.Sprintf("You're approaching today's write limit (%d/%d)", q.WritesToday, q.MaxWritesPerDay)
	case float64(q.ReadsToday) >= float64(q.MaxReadsPerDay)*softWarningRatio:
		return fmt.Sprintf("You're approaching today's read limit (%d/%d)", q.ReadsToday, q.MaxReadsPerDay)
	}
	return ""
}

// IncrementReads persists one more remote read for today.
func (m *Manager) IncrementReads() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollover()
	m.quota.ReadsToday++
	m.persist()
}

// IncrementWrites persists one more remote write for today.
func (m *Manager) IncrementWrites() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollover()
	m.quota.WritesToday++
	m.persist()
}
