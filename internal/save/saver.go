package save

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/devtab/devtab/internal/model"
	"github.com/devtab/devtab/internal/remote"
	"github.com/devtab/devtab/internal/tracker"
)

// Mode selects the remote save cadence.
type Mode string

const (
	// ModeDebounced writes remotely after a quiet period following each
	// edit, plus immediate flushes on workspace switch and shutdown.
	ModeDebounced Mode = "debounced"
	// ModeManual writes remotely only on an explicit save trigger.
	ModeManual Mode = "manual"
)

// Snapshot is the application state a remote write is built from. It is
// captured at write time, under the flush lock, so the newest data wins.
type Snapshot struct {
	Tasks       model.TaskMap
	Tabs        model.TabsMap
	SelectedTab string
}

// Notifier receives advisory sync messages for the UI boundary.
type Notifier interface {
	Notify(message string)
	NotifyError(message string)
}

// Saver carries local edits to the remote store on the configured cadence.
//
// All remote writes go through a single flush lock: an in-flight older
// write always completes before a newer one starts, and the newer write
// snapshots state after acquiring the lock, so its data supersedes.
type Saver struct {
	mode     Mode
	client   remote.Client // nil when unauthenticated
	status   *StatusTracker
	changes  *tracker.Tracker
	debounce *Debouncer
	snapshot func() Snapshot
	notifier Notifier
	logger   *log.Logger

	// onRemoteWrite observes each successful remote write (quota
	// accounting).
	onRemoteWrite func()

	flushMu sync.Mutex
}

// Config assembles a Saver.
type Config struct {
	Mode     Mode
	Client   remote.Client
	Status   *StatusTracker
	Changes  *tracker.Tracker
	Debounce *Debouncer
	// Snapshot returns the current application state. Required.
	Snapshot func() Snapshot
	Notifier Notifier
	Logger   *log.Logger
	// OnRemoteWrite is called after every successful remote write.
	OnRemoteWrite func()
}

// NewSaver creates a saver. Nil optional fields get defaults.
func NewSaver(cfg Config) *Saver {
	if cfg.Mode == "" {
		cfg.Mode = ModeDebounced
	}
	if cfg.Status == nil {
		cfg.Status = NewStatusTracker()
	}
	if cfg.Changes == nil {
		cfg.Changes = tracker.New()
	}
	if cfg.Debounce == nil {
		cfg.Debounce = NewDebouncer(0)
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stderr, "[save] ", log.LstdFlags)
	}
	return &Saver{
		mode:          cfg.Mode,
		client:        cfg.Client,
		status:        cfg.Status,
		changes:       cfg.Changes,
		debounce:      cfg.Debounce,
		snapshot:      cfg.Snapshot,
		notifier:      cfg.Notifier,
		logger:        cfg.Logger,
		onRemoteWrite: cfg.OnRemoteWrite,
	}
}

// Status returns the save-status tracker.
func (s *Saver) Status() *StatusTracker {
	return s.status
}

// Mode returns the configured cadence.
func (s *Saver) Mode() Mode {
	return s.mode
}

// NoteEdit records a local edit to the workspace. The local write has
// already happened; this schedules the remote side per the cadence.
func (s *Saver) NoteEdit(tabID string) {
	s.status.MarkUnsaved()

	if s.mode != ModeDebounced || s.client == nil {
		return
	}
	s.debounce.Schedule(tabID, func() {
		if err := s.Flush(context.Background()); err != nil {
			s.logger.Printf("Debounced save failed: %v", err)
		}
	})
}

// Flush uploads all tracked changes now, cancelling any pending debounce
// timers first so the deferred write cannot fire separately afterwards.
// Called on workspace switch, shutdown, and by debounce expiry.
func (s *Saver) Flush(ctx context.Context) error {
	s.debounce.CancelAll()
	return s.flushChanges(ctx)
}

func (s *Saver) flushChanges(ctx context.Context) error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	if s.client == nil {
		return nil
	}

	ch := s.changes.Changes()
	if len(ch.TasksChanged) == 0 && len(ch.TabsChanged) == 0 && len(ch.NewTabs) == 0 {
		return nil
	}

	s.status.MarkSaving()
	snap := s.snapshot()

	s.logger.Printf("Smart save: %s", s.changes.Summary())
	if err := s.client.SmartSave(ctx, ch.TasksChanged, ch.TabsChanged, snap.Tasks, snap.Tabs); err != nil {
		s.status.MarkError()
		s.notifyError(fmt.Sprintf("Sync failed: %v", err))
		return fmt.Errorf("smart save failed: %w", err)
	}

	// Edits that arrived while the write was in flight keep their marks.
	s.changes.ClearSeen(ch)
	s.status.MarkSaved()
	s.noteRemoteWrite()
	s.notify("Changes synced")
	return nil
}

// ManualSave uploads the currently selected workspace through the atomic
// two-document path. Any pending debounce for that workspace is cancelled
// so it cannot produce a duplicate write.
func (s *Saver) ManualSave(ctx context.Context) error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	// The explicit trigger is observed once per request; reset it here so
	// a later poll of the latch cannot replay this save.
	s.status.ConsumeManualSave()

	if s.client == nil {
		return nil
	}

	snap := s.snapshot()
	tab, ok := snap.Tabs[snap.SelectedTab]
	if !ok {
		return fmt.Errorf("selected workspace %q does not exist", snap.SelectedTab)
	}
	s.debounce.Cancel(snap.SelectedTab)

	s.status.MarkSaving()
	s.notify("Saving...")

	if err := s.client.ManualSave(ctx, tab.ID, snap.Tasks[tab.ID], tab); err != nil {
		s.status.MarkError()
		s.notifyError(fmt.Sprintf("Save failed: %v", err))
		return fmt.Errorf("manual save failed: %w", err)
	}

	s.changes.ClearTab(tab.ID)
	s.status.MarkSaved()
	s.noteRemoteWrite()
	s.notify("Saved")
	return nil
}

// Close flushes pending changes and stops the debouncer. The shutdown
// path: whatever is pending at this moment is written immediately.
func (s *Saver) Close(ctx context.Context) error {
	s.debounce.Stop()
	return s.flushChanges(ctx)
}

func (s *Saver) noteRemoteWrite() {
	if s.onRemoteWrite != nil {
		s.onRemoteWrite()
	}
}

func (s *Saver) notify(msg string) {
	if s.notifier != nil {
		s.notifier.Notify(msg)
	}
}

func (s *Saver) notifyError(msg string) {
	if s.notifier != nil {
		s.notifier.NotifyError(msg)
	}
}
