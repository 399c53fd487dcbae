// Package app holds the in-memory working state and applies every user
// mutation in a fixed order: quota gate, local write, change mark,
// save scheduling. The remote store is never written directly from here
// except for workspace deletion, which is carried out immediately.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/devtab/devtab/internal/model"
	"github.com/devtab/devtab/internal/quota"
	"github.com/devtab/devtab/internal/remote"
	"github.com/devtab/devtab/internal/save"
	"github.com/devtab/devtab/internal/store"
	syncer "github.com/devtab/devtab/internal/sync"
	"github.com/devtab/devtab/internal/tracker"
)

var (
	ErrNoWorkspace   = errors.New("app: no workspace selected")
	ErrTaskNotFound  = errors.New("app: task not found")
	ErrTabNotFound   = errors.New("app: workspace not found")
	ErrQuotaExceeded = errors.New("app: quota exceeded")
)

// Options configures an App. Store and Engine are required; Client and
// UserID may be empty for offline use.
type Options struct {
	Store  *store.Store
	Engine *syncer.Engine
	Client remote.Client
	UserID string

	Mode             save.Mode
	DebounceInterval time.Duration
	QuotaLimits      quota.Limits
	Notifier         save.Notifier
	Logger           *log.Logger
}

// App is the mutation surface over the working task and workspace maps.
//
// The maps themselves are guarded by mu. Remote writes are delegated to
// the Saver, which snapshots state through the Snapshot callback, so
// App methods must never call a flushing Saver method while holding mu.
type App struct {
	mu       sync.Mutex
	tasks    model.TaskMap
	tabs     model.TabsMap
	selected string

	store   *store.Store
	engine  *syncer.Engine
	client  remote.Client
	userID  string
	changes *tracker.Tracker
	saver   *save.Saver
	quota   *quota.Manager

	notifier save.Notifier
	logger   *log.Logger

	lastSoftWarning string
}

// New wires an App together. Call Load before using it.
func New(opts Options) *App {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[app] ", log.LstdFlags)
	}

	a := &App{
		tasks:    make(model.TaskMap),
		tabs:     make(model.TabsMap),
		store:    opts.Store,
		engine:   opts.Engine,
		client:   opts.Client,
		userID:   opts.UserID,
		changes:  tracker.New(),
		quota:    quota.NewManager(opts.Store, opts.UserID, opts.QuotaLimits, logger),
		notifier: opts.Notifier,
		logger:   logger,
	}

	interval := opts.DebounceInterval
	if interval <= 0 {
		interval = save.DefaultDebounceInterval
	}
	a.saver = save.NewSaver(save.Config{
		Mode:     opts.Mode,
		Client:   opts.Client,
		Changes:  a.changes,
		Debounce: save.NewDebouncer(interval),
		Snapshot: a.snapshot,
		Notifier: opts.Notifier,
		Logger:   logger,
		OnRemoteWrite: func() {
			a.quota.IncrementWrites()
		},
	})

	// Any direct store mutation makes the read cache stale.
	opts.Store.SetMutateHook(opts.Engine.Cache().Invalidate)

	return a
}

// snapshot clones the working state for a remote write.
func (a *App) snapshot() save.Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return save.Snapshot{
		Tasks:       a.tasks.Clone(),
		Tabs:        a.tabs.Clone(),
		SelectedTab: a.selected,
	}
}

// Load populates the working maps: local bootstrap first, then remote
// reconciliation when a client is configured.
func (a *App) Load(ctx context.Context) error {
	res, err := a.engine.Bootstrap()
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	if a.client != nil && a.userID != "" {
		synced, err := a.engine.SyncWithRemote(ctx, a.client, a.userID)
		if err != nil {
			a.logger.Printf("Warning: remote sync failed, using local data: %v", err)
		} else {
			res = synced
			if synced.FetchedRemote {
				// One read per fetched collection.
				a.quota.IncrementReads()
				a.quota.IncrementReads()
			}
		}
	}

	a.mu.Lock()
	a.tasks = res.Tasks
	a.tabs = res.Tabs
	a.selected = res.DefaultTabID
	a.mu.Unlock()

	a.refreshQuota()
	return nil
}

// Sync re-runs remote reconciliation on demand.
func (a *App) Sync(ctx context.Context) error {
	if a.client == nil || a.userID == "" {
		return errors.New("app: not signed in")
	}
	if !a.quota.CanRead() {
		return fmt.Errorf("%w: %s", ErrQuotaExceeded, a.quota.Warning(quota.ActionRead))
	}

	res, err := a.engine.SyncWithRemote(ctx, a.client, a.userID)
	if err != nil {
		return err
	}
	if res.FetchedRemote {
		a.quota.IncrementReads()
		a.quota.IncrementReads()
	}

	a.mu.Lock()
	a.tasks = res.Tasks
	a.tabs = res.Tabs
	a.selected = reconcile(a.selected, res)
	a.mu.Unlock()

	a.refreshQuota()
	return nil
}

func reconcile(current string, res *syncer.Result) string {
	if _, ok := res.Tabs[current]; ok {
		return current
	}
	return res.DefaultTabID
}

// AddTask creates a task at the top of the selected workspace.
func (a *App) AddTask(text string) (model.Task, error) {
	if !a.quota.CanCreateTask() {
		return model.Task{}, a.quotaErr(quota.ActionTask)
	}

	a.mu.Lock()
	tabID := a.selected
	if tabID == "" {
		a.mu.Unlock()
		return model.Task{}, ErrNoWorkspace
	}

	now := model.NowISO()
	task := model.Task{
		ID:           model.UniqueTaskID(a.tasks[tabID], model.NewTaskID()),
		Text:         text,
		CreatedAt:    now,
		LastModified: now,
	}
	a.tasks[tabID] = append([]model.Task{task}, a.tasks[tabID]...)
	err := a.store.UpsertTasksForTab(tabID, a.tasks[tabID])
	a.mu.Unlock()
	if err != nil {
		return model.Task{}, err
	}

	a.noteTaskEdit(tabID)
	return task, nil
}

// ToggleTask flips the completion state of a task in the selected
// workspace.
func (a *App) ToggleTask(taskID int64) (model.Task, error) {
	return a.updateTask(taskID, func(t *model.Task) {
		t.Completed = !t.Completed
	})
}

// SaveNotes replaces the notes attached to a task.
func (a *App) SaveNotes(taskID int64, notes string) (model.Task, error) {
	return a.updateTask(taskID, func(t *model.Task) {
		t.Notes = notes
	})
}

// RenameTask replaces the text of a task.
func (a *App) RenameTask(taskID int64, text string) (model.Task, error) {
	return a.updateTask(taskID, func(t *model.Task) {
		t.Text = text
	})
}

func (a *App) updateTask(taskID int64, apply func(*model.Task)) (model.Task, error) {
	a.mu.Lock()
	tabID := a.selected
	if tabID == "" {
		a.mu.Unlock()
		return model.Task{}, ErrNoWorkspace
	}
	list := a.tasks[tabID]
	i := model.FindTask(list, taskID)
	if i < 0 {
		a.mu.Unlock()
		return model.Task{}, fmt.Errorf("%w: %d", ErrTaskNotFound, taskID)
	}
	apply(&list[i])
	list[i].LastModified = model.NowISO()
	updated := list[i]
	err := a.store.UpsertTasksForTab(tabID, list)
	a.mu.Unlock()
	if err != nil {
		return model.Task{}, err
	}

	a.noteTaskEdit(tabID)
	return updated, nil
}

// DeleteTask removes a task from the selected workspace.
func (a *App) DeleteTask(taskID int64) error {
	a.mu.Lock()
	tabID := a.selected
	if tabID == "" {
		a.mu.Unlock()
		return ErrNoWorkspace
	}
	list := a.tasks[tabID]
	i := model.FindTask(list, taskID)
	if i < 0 {
		a.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrTaskNotFound, taskID)
	}
	a.tasks[tabID] = append(list[:i:i], list[i+1:]...)
	err := a.store.UpsertTasksForTab(tabID, a.tasks[tabID])
	a.mu.Unlock()
	if err != nil {
		return err
	}

	a.noteTaskEdit(tabID)
	return nil
}

// NewTab creates a workspace, selects it, and schedules it for upload.
func (a *App) NewTab(ctx context.Context, name string) (model.Tab, error) {
	if !a.quota.CanCreateWorkspace() {
		return model.Tab{}, a.quotaErr(quota.ActionWorkspace)
	}

	// Pending edits for the outgoing workspace go out before switching.
	if err := a.saver.Flush(ctx); err != nil {
		a.logger.Printf("Warning: flush before workspace create failed: %v", err)
	}

	a.mu.Lock()
	now := model.NowISO()
	tab := model.Tab{
		ID:           model.NewTabID(),
		Name:         name,
		CreatedAt:    now,
		LastModified: now,
	}
	a.tabs[tab.ID] = tab
	a.tasks[tab.ID] = []model.Task{}
	a.selected = tab.ID

	err := a.persistAllLocked()
	if err == nil {
		err = a.store.SetLastSelectedTab(tab.ID)
	}
	a.mu.Unlock()
	if err != nil {
		return model.Tab{}, err
	}

	a.changes.MarkNewTab(tab.ID)
	a.changes.MarkTasksChanged(tab.ID)
	a.saver.NoteEdit(tab.ID)
	a.refreshQuota()
	return tab, nil
}

// RenameTab changes a workspace name.
func (a *App) RenameTab(tabID, name string) (model.Tab, error) {
	a.mu.Lock()
	tab, ok := a.tabs[tabID]
	if !ok {
		a.mu.Unlock()
		return model.Tab{}, fmt.Errorf("%w: %s", ErrTabNotFound, tabID)
	}
	tab.Name = name
	tab.LastModified = model.NowISO()
	a.tabs[tabID] = tab
	err := a.store.SaveTabs(a.tabs)
	a.mu.Unlock()
	if err != nil {
		return model.Tab{}, err
	}

	a.changes.MarkTabChanged(tabID)
	a.saver.NoteEdit(tabID)
	return tab, nil
}

// DeleteTab removes a workspace and its tasks everywhere. The remote
// delete happens immediately rather than on the save cadence: a deleted
// workspace must not reappear from a later merge.
func (a *App) DeleteTab(ctx context.Context, tabID string) error {
	a.mu.Lock()
	if _, ok := a.tabs[tabID]; !ok {
		a.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTabNotFound, tabID)
	}
	delete(a.tabs, tabID)
	delete(a.tasks, tabID)
	if a.selected == tabID {
		a.selected = syncer.FirstTabID(a.tabs)
	}
	fallback := a.selected
	err := a.store.DeleteTab(tabID)
	if err == nil && fallback != "" {
		err = a.store.SetLastSelectedTab(fallback)
	}
	a.mu.Unlock()
	if err != nil {
		return err
	}

	a.changes.ClearTab(tabID)
	if a.client != nil {
		if err := a.client.DeleteTab(ctx, tabID); err != nil {
			return fmt.Errorf("remote delete: %w", err)
		}
		a.quota.IncrementWrites()
	}

	a.refreshQuota()
	return nil
}

// SelectTab flushes pending edits for the outgoing workspace, then
// switches and persists the selection.
func (a *App) SelectTab(ctx context.Context, tabID string) error {
	a.mu.Lock()
	_, ok := a.tabs[tabID]
	a.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrTabNotFound, tabID)
	}

	if err := a.saver.Flush(ctx); err != nil {
		a.logger.Printf("Warning: flush on workspace switch failed: %v", err)
	}

	a.mu.Lock()
	a.selected = tabID
	err := a.store.SetLastSelectedTab(tabID)
	a.mu.Unlock()
	return err
}

// ManualSave uploads the selected workspace now, regardless of mode.
func (a *App) ManualSave(ctx context.Context) error {
	if !a.quota.CanWrite() {
		return a.quotaErr(quota.ActionWrite)
	}
	a.saver.Status().TriggerManualSave()
	return a.saver.ManualSave(ctx)
}

// Flush forces all tracked changes out immediately.
func (a *App) Flush(ctx context.Context) error {
	return a.saver.Flush(ctx)
}

// Close flushes pending work and stops the save machinery. The store
// stays open; the caller owns its lifecycle.
func (a *App) Close(ctx context.Context) error {
	return a.saver.Close(ctx)
}

// PanelWidth returns the persisted right panel width, or 0 when unset.
func (a *App) PanelWidth() int {
	return a.store.PanelWidth()
}

// SetPanelWidth persists the right panel width locally and, when signed
// in, merge-patches it into the remote settings document.
func (a *App) SetPanelWidth(ctx context.Context, width int) error {
	if width < 0 {
		return fmt.Errorf("invalid panel width %d", width)
	}
	if err := a.store.SetPanelWidth(width); err != nil {
		return err
	}
	if a.client == nil {
		return nil
	}
	if !a.quota.CanWrite() {
		return a.quotaErr(quota.ActionWrite)
	}
	if err := a.client.SaveUserSettings(ctx, map[string]any{"rightPanelWidth": width}); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	a.quota.IncrementWrites()
	return nil
}

// Settings fetches the user's remote settings document. Offline, it
// returns the locally persisted values instead.
func (a *App) Settings(ctx context.Context) (map[string]any, error) {
	if a.client == nil {
		return map[string]any{"rightPanelWidth": a.store.PanelWidth()}, nil
	}
	if !a.quota.CanRead() {
		return nil, a.quotaErr(quota.ActionRead)
	}
	settings, err := a.client.GetUserSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch settings: %w", err)
	}
	a.quota.IncrementReads()
	return settings, nil
}

// noteTaskEdit is the common tail of every task mutation.
func (a *App) noteTaskEdit(tabID string) {
	a.changes.MarkTasksChanged(tabID)
	a.saver.NoteEdit(tabID)
	a.refreshQuota()
}

// persistAllLocked writes both maps to the local store. Must hold mu.
func (a *App) persistAllLocked() error {
	if err := a.store.SaveTasks(a.tasks); err != nil {
		return err
	}
	return a.store.SaveTabs(a.tabs)
}

func (a *App) quotaErr(action quota.Action) error {
	msg := a.quota.Warning(action)
	if msg == "" {
		msg = a.quota.Warning(quota.ActionWrite)
	}
	return fmt.Errorf("%w: %s", ErrQuotaExceeded, msg)
}

// refreshQuota recounts resources and surfaces at most one approaching
// limit message per distinct condition.
func (a *App) refreshQuota() {
	a.mu.Lock()
	tasks, tabs := a.tasks.Clone(), a.tabs.Clone()
	a.mu.Unlock()
	a.quota.Refresh(tasks, tabs)

	msg := a.quota.SoftWarning()
	if msg != "" && msg != a.lastSoftWarning && a.notifier != nil {
		a.notifier.Notify(msg)
	}
	a.lastSoftWarning = msg
}

// Tasks returns the selected workspace's tasks, newest first.
func (a *App) Tasks() []model.Task {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]model.Task(nil), a.tasks[a.selected]...)
}

// AllTasks returns a copy of the full task map.
func (a *App) AllTasks() model.TaskMap {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tasks.Clone()
}

// Tabs returns a copy of the workspace map.
func (a *App) Tabs() model.TabsMap {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tabs.Clone()
}

// SelectedTab returns the currently selected workspace ID.
func (a *App) SelectedTab() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.selected
}

// SaveStatus exposes the save state machine for read-only display.
func (a *App) SaveStatus() *save.StatusTracker {
	return a.saver.Status()
}

// ChangeSummary describes what is pending upload.
func (a *App) ChangeSummary() string {
	return a.changes.Summary()
}

// Quota returns the current quota record.
func (a *App) Quota() model.UserQuota {
	return a.quota.Quota()
}

// CacheStatus reports read cache freshness.
func (a *App) CacheStatus() syncer.CacheStatus {
	return a.engine.Cache().Status()
}
