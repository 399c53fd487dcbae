package sync

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/devtab/devtab/internal/model"
	"github.com/devtab/devtab/internal/remote"
	"github.com/devtab/devtab/internal/store"
)

// Result is the outcome of initialization or sync: the maps the
// application should adopt plus the workspace to select.
type Result struct {
	Tasks model.TaskMap
	Tabs  model.TabsMap

	// DefaultTabID is the reconciled selection: the previously selected
	// workspace when it still exists, otherwise the first available one.
	DefaultTabID string

	// FetchedRemote is true when this call actually hit the remote store,
	// so the caller can account the reads.
	FetchedRemote bool
}

// Engine orchestrates initial load and local/remote reconciliation.
type Engine struct {
	store  *store.Store
	cache  *Cache
	logger *log.Logger

	// lastSync records, per user, when this session last completed a
	// remote sync. Session-scoped; never persisted.
	mu       sync.Mutex
	lastSync map[string]time.Time
}

// New creates a sync engine over the given local store.
// If logger is nil, a default logger writing to stderr is used.
func New(st *store.Store, cache *Cache, logger *log.Logger) *Engine {
	if cache == nil {
		cache = NewCache(0)
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return &Engine{
		store:    st,
		cache:    cache,
		logger:   logger,
		lastSync: make(map[string]time.Time),
	}
}

// Cache returns the engine's read cache, for wiring store invalidation.
func (e *Engine) Cache() *Cache {
	return e.cache
}

// Bootstrap loads local state and guarantees at least one workspace exists.
//
// When no workspaces exist a default one named for today is created and
// persisted. Otherwise the last selected workspace is restored, falling
// back to the oldest workspace.
func (e *Engine) Bootstrap() (*Result, error) {
	tasks := e.store.GetTasks()
	tabs := e.store.GetTabs()

	if len(tabs) == 0 {
		tabID := model.NewTabID()
		tabs[tabID] = model.Tab{
			ID:        tabID,
			Name:      model.TodayLabel(),
			CreatedAt: model.NowISO(),
		}
		tasks[tabID] = []model.Task{}

		if err := e.store.SaveTasks(tasks); err != nil {
			return nil, fmt.Errorf("failed to persist default workspace tasks: %w", err)
		}
		if err := e.store.SaveTabs(tabs); err != nil {
			return nil, fmt.Errorf("failed to persist default workspace: %w", err)
		}

		return &Result{Tasks: tasks, Tabs: tabs, DefaultTabID: tabID}, nil
	}

	return &Result{Tasks: tasks, Tabs: tabs, DefaultTabID: reconcileSelection(e.store.LastSelectedTab(), tabs)}, nil
}

// SyncWithRemote reconciles local and remote state for the user.
//
// On any remote failure the local data is returned unchanged along with
// the error; the caller surfaces a non-fatal notification and continues
// local-only.
func (e *Engine) SyncWithRemote(ctx context.Context, client remote.Client, userID string) (*Result, error) {
	localTasks := e.store.GetTasks()
	localTabs := e.store.GetTabs()

	local := &Result{
		Tasks:        localTasks,
		Tabs:         localTabs,
		DefaultTabID: reconcileSelection(e.store.LastSelectedTab(), localTabs),
	}

	if client == nil || userID == "" {
		return local, nil
	}

	// A valid cache right after a recent sync for the same user means the
	// remote cannot have drifted far; skip the fetch entirely.
	if e.cache.Valid() && e.recentlySynced(userID) {
		e.logger.Printf("Cache valid and recently synced for %s, skipping remote fetch", userID)
		return local, nil
	}

	e.logger.Printf("Fetching remote state for %s", userID)

	remoteTasks, remoteTabs, err := fetchBoth(ctx, client)
	if err != nil {
		return local, fmt.Errorf("remote fetch failed: %w", err)
	}

	// Upload workspaces the remote has never seen, as one atomic commit.
	localOnly := localOnlyTabs(localTabs, remoteTabs)
	if len(localOnly) > 0 {
		e.logger.Printf("Uploading %d local-only workspaces", len(localOnly))
		if err := client.SmartSave(ctx, localOnly, localOnly, localTasks, localTabs); err != nil {
			return local, fmt.Errorf("failed to upload local-only workspaces: %w", err)
		}
	}

	// Remote wins on key collision; local-only keys survive.
	mergedTasks := mergeTasks(localTasks, remoteTasks)
	mergedTabs := mergeTabs(localTabs, remoteTabs)

	if err := e.store.SaveTasks(mergedTasks); err != nil {
		return local, fmt.Errorf("failed to persist merged tasks: %w", err)
	}
	if err := e.store.SaveTabs(mergedTabs); err != nil {
		return local, fmt.Errorf("failed to persist merged tabs: %w", err)
	}

	// SaveTasks/SaveTabs invalidated the cache through the mutate hook;
	// the snapshot we just fetched is the fresh truth.
	e.cache.Update(remoteTasks, remoteTabs)
	e.markSynced(userID)

	return &Result{
		Tasks:         mergedTasks,
		Tabs:          mergedTabs,
		DefaultTabID:  reconcileSelection(e.store.LastSelectedTab(), mergedTabs),
		FetchedRemote: true,
	}, nil
}

func (e *Engine) recentlySynced(userID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	last, ok := e.lastSync[userID]
	return ok && time.Since(last) < e.cache.ttl
}

func (e *Engine) markSynced(userID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastSync[userID] = time.Now()
}

// fetchBoth retrieves task and tab maps concurrently.
func fetchBoth(ctx context.Context, client remote.Client) (model.TaskMap, model.TabsMap, error) {
	var (
		tasks   model.TaskMap
		tabs    model.TabsMap
		taskErr error
		tabErr  error
		wg      sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		tasks, taskErr = client.GetAllTasks(ctx)
	}()
	go func() {
		defer wg.Done()
		tabs, tabErr = client.GetAllTabs(ctx)
	}()
	wg.Wait()

	if taskErr != nil {
		return nil, nil, taskErr
	}
	if tabErr != nil {
		return nil, nil, tabErr
	}
	return tasks, tabs, nil
}

func localOnlyTabs(local, remote model.TabsMap) []string {
	var ids []string
	for id := range local {
		if _, ok := remote[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func mergeTasks(local, remote model.TaskMap) model.TaskMap {
	merged := local.Clone()
	for id, tasks := range remote {
		merged[id] = tasks
	}
	return merged
}

func mergeTabs(local, remote model.TabsMap) model.TabsMap {
	merged := local.Clone()
	for id, tab := range remote {
		merged[id] = tab
	}
	return merged
}

// reconcileSelection keeps the previous selection when the workspace still
// exists, otherwise falls back to the oldest workspace.
func reconcileSelection(previous string, tabs model.TabsMap) string {
	if previous != "" {
		if _, ok := tabs[previous]; ok {
			return previous
		}
	}
	return FirstTabID(tabs)
}

// FirstTabID returns the oldest workspace ID by creation time (ID as a
// tiebreak), or "" for an empty map.
func FirstTabID(tabs model.TabsMap) string {
	ids := make([]string, 0, len(tabs))
	for id := range tabs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := tabs[ids[i]], tabs[ids[j]]
		if a.CreatedAt != b.CreatedAt {
			return a.CreatedAt < b.CreatedAt
		}
		return a.ID < b.ID
	})
	if len(ids) == 0 {
		return ""
	}
	return ids[0]
}
