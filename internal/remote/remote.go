// Package remote abstracts the cloud document store holding a user's
// workspaces and tasks.
//
// The remote store is organized per user: one task document per workspace
// (holding that workspace's full task list), one metadata document per
// workspace, and a single settings document. Multi-document methods commit
// atomically; single-document methods carry no cross-document guarantee.
//
// Any remote operation may fail (network, permission, server quota).
// Failures propagate to the caller as errors and must never corrupt local
// state; callers fall back to local-only operation.
package remote

import (
	"context"
	"errors"

	"github.com/devtab/devtab/internal/model"
)

// ErrUnauthenticated is returned when the remote rejects the client's
// credentials. Callers treat it like any other remote failure: local
// state stays authoritative.
var ErrUnauthenticated = errors.New("remote: unauthenticated")

// Client is the remote document store client.
//
// All multi-document methods (BatchSaveAll, ManualSave, SmartSave) are
// atomic: every write in the batch succeeds or none do.
type Client interface {
	// GetTasks fetches one workspace's task list. A missing document
	// yields an empty list, not an error.
	GetTasks(ctx context.Context, tabID string) ([]model.Task, error)

	// GetAllTasks fetches every task document in the user's namespace.
	GetAllTasks(ctx context.Context) (model.TaskMap, error)

	// SaveTasks writes one workspace's full task list.
	SaveTasks(ctx context.Context, tabID string, tasks []model.Task) error

	// DeleteTasks removes one workspace's task document. Idempotent.
	DeleteTasks(ctx context.Context, tabID string) error

	// SaveTab writes one workspace's metadata document.
	SaveTab(ctx context.Context, tab model.Tab) error

	// GetAllTabs fetches all workspace metadata. The map carries no
	// ordering; callers derive display order from CreatedAt.
	GetAllTabs(ctx context.Context) (model.TabsMap, error)

	// DeleteTab removes a workspace's metadata document and cascades to
	// its task document.
	DeleteTab(ctx context.Context, tabID string) error

	// BatchSaveAll atomically writes one workspace's task document plus
	// the given workspace metadata documents in a single commit.
	BatchSaveAll(ctx context.Context, tabID string, tasks []model.Task, tabs model.TabsMap) error

	// ManualSave atomically writes one task document and the matching
	// tab document. This is the explicit "save now" path.
	ManualSave(ctx context.Context, tabID string, tasks []model.Task, tab model.Tab) error

	// SmartSave atomically writes only the documents flagged as changed.
	// It issues no remote call at all when both change sets are empty.
	SmartSave(ctx context.Context, changedTaskTabs, changedTabs []string, allTasks model.TaskMap, allTabs model.TabsMap) error

	// SaveUserSettings merge-patches the user's settings document.
	SaveUserSettings(ctx context.Context, settings map[string]any) error

	// GetUserSettings fetches the user's settings document. A missing
	// document yields an empty bag.
	GetUserSettings(ctx context.Context) (map[string]any, error)
}
