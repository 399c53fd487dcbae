package save

import (
	"context"
	"errors"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/devtab/devtab/internal/model"
	"github.com/devtab/devtab/internal/tracker"
)

// fakeClient records remote writes for assertions. Debounce timers fire
// on their own goroutines, so every field is mutex-guarded.
type fakeClient struct {
	mu sync.Mutex

	smartSaves      int
	manualSaves     int
	lastSmartTasks  model.TaskMap
	lastSmartTabs   model.TabsMap
	lastManualTasks []model.Task
	lastManualTab   model.Tab

	fail error
}

func (f *fakeClient) GetTasks(ctx context.Context, tabID string) ([]model.Task, error) {
	return nil, nil
}
func (f *fakeClient) GetAllTasks(ctx context.Context) (model.TaskMap, error) {
	return model.TaskMap{}, nil
}
func (f *fakeClient) SaveTasks(ctx context.Context, tabID string, tasks []model.Task) error {
	return nil
}
func (f *fakeClient) DeleteTasks(ctx context.Context, tabID string) error { return nil }
func (f *fakeClient) SaveTab(ctx context.Context, tab model.Tab) error    { return nil }
func (f *fakeClient) GetAllTabs(ctx context.Context) (model.TabsMap, error) {
	return model.TabsMap{}, nil
}
func (f *fakeClient) DeleteTab(ctx context.Context, tabID string) error { return nil }
func (f *fakeClient) BatchSaveAll(ctx context.Context, tabID string, tasks []model.Task, tabs model.TabsMap) error {
	return nil
}

func (f *fakeClient) ManualSave(ctx context.Context, tabID string, tasks []model.Task, tab model.Tab) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.manualSaves++
	f.lastManualTasks = append([]model.Task(nil), tasks...)
	f.lastManualTab = tab
	return nil
}

func (f *fakeClient) SmartSave(ctx context.Context, changedTaskTabs, changedTabs []string, allTasks model.TaskMap, allTabs model.TabsMap) error {
	if len(changedTaskTabs) == 0 && len(changedTabs) == 0 {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.smartSaves++
	f.lastSmartTasks = allTasks.Clone()
	f.lastSmartTabs = allTabs.Clone()
	return nil
}

func (f *fakeClient) SaveUserSettings(ctx context.Context, settings map[string]any) error {
	return nil
}
func (f *fakeClient) GetUserSettings(ctx context.Context) (map[string]any, error) {
	return map[string]any{}, nil
}

func (f *fakeClient) smartSaveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.smartSaves
}

// testState is a mutable snapshot source for the saver under test.
type testState struct {
	mu       sync.Mutex
	tasks    model.TaskMap
	tabs     model.TabsMap
	selected string
}

func newTestState() *testState {
	return &testState{
		tasks: model.TaskMap{
			"tab_a": {{ID: 1, Text: "one"}},
		},
		tabs: model.TabsMap{
			"tab_a": {ID: "tab_a", Name: "A"},
		},
		selected: "tab_a",
	}
}

func (s *testState) snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Tasks:       s.tasks.Clone(),
		Tabs:        s.tabs.Clone(),
		SelectedTab: s.selected,
	}
}

func (s *testState) setTaskText(tabID string, id int64, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.tasks[tabID]
	if i := model.FindTask(list, id); i >= 0 {
		list[i].Text = text
	}
}

func newTestSaver(t *testing.T, client *fakeClient, state *testState, mode Mode, debounce time.Duration) (*Saver, *tracker.Tracker) {
	t.Helper()

	changes := tracker.New()
	s := NewSaver(Config{
		Mode:     mode,
		Client:   client,
		Changes:  changes,
		Debounce: NewDebouncer(debounce),
		Snapshot: state.snapshot,
		Logger:   log.New(os.Stderr, "[test] ", 0),
	})
	return s, changes
}

func TestDebounceCoalescesRapidCalls(t *testing.T) {
	d := NewDebouncer(40 * time.Millisecond)
	defer d.Stop()

	var mu sync.Mutex
	fired := 0
	for i := 0; i < 5; i++ {
		d.Schedule("tab_a", func() {
			mu.Lock()
			fired++
			mu.Unlock()
		})
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if fired != 1 {
		t.Errorf("expected exactly 1 firing, got %d", fired)
	}
}

func TestDebounceCancelPreventsFiring(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	defer d.Stop()

	var mu sync.Mutex
	fired := 0
	d.Schedule("tab_a", func() {
		mu.Lock()
		fired++
		mu.Unlock()
	})
	d.Cancel("tab_a")

	time.Sleep(80 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if fired != 0 {
		t.Errorf("cancelled action fired %d times", fired)
	}
}

func TestDebounceGenerationSurvivesCancel(t *testing.T) {
	d := NewDebouncer(time.Hour)
	defer d.Stop()

	// First schedule takes generation 1, then gets cancelled.
	d.Schedule("tab_a", func() {})
	d.Cancel("tab_a")
	d.Schedule("tab_a", func() {})

	// A timer from the cancelled schedule must not be able to claim the
	// replacement entry with its stale generation.
	if d.claim("tab_a", 1) {
		t.Error("stale generation claimed the replacement schedule")
	}
	if !d.Pending("tab_a") {
		t.Error("stale claim removed the pending schedule")
	}
	if !d.claim("tab_a", 2) {
		t.Error("current generation could not claim its own schedule")
	}
}

func TestDebounceWorkspacesAreIndependent(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	defer d.Stop()

	var mu sync.Mutex
	fired := make(map[string]int)
	for _, id := range []string{"tab_a", "tab_b"} {
		id := id
		d.Schedule(id, func() {
			mu.Lock()
			fired[id]++
			mu.Unlock()
		})
	}

	time.Sleep(80 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if fired["tab_a"] != 1 || fired["tab_b"] != 1 {
		t.Errorf("expected one firing per workspace, got %v", fired)
	}
}

func TestDebounceStopRejectsNewWork(t *testing.T) {
	d := NewDebouncer(10 * time.Millisecond)
	d.Stop()

	fired := false
	d.Schedule("tab_a", func() { fired = true })
	time.Sleep(40 * time.Millisecond)

	if fired {
		t.Error("stopped debouncer ran a scheduled action")
	}
	if d.Pending("tab_a") {
		t.Error("stopped debouncer accepted a deferral")
	}
}

func TestStatusTrackerTransitions(t *testing.T) {
	st := NewStatusTracker()

	if got := st.Status(); got != StatusSaved {
		t.Fatalf("initial status = %q, want %q", got, StatusSaved)
	}

	st.MarkUnsaved()
	if st.Status() != StatusUnsaved || !st.HasUnsavedChanges() {
		t.Error("MarkUnsaved not reflected")
	}

	st.MarkSaving()
	if st.Status() != StatusSaving {
		t.Error("MarkSaving not reflected")
	}
	if !st.HasUnsavedChanges() {
		t.Error("saving must not clear the unsaved flag until confirmed")
	}

	st.MarkSaved()
	if st.Status() != StatusSaved || st.HasUnsavedChanges() {
		t.Error("MarkSaved not reflected")
	}
	if st.LastSaved().IsZero() {
		t.Error("LastSaved not recorded")
	}

	st.MarkError()
	if st.Status() != StatusError {
		t.Error("MarkError not reflected")
	}
}

func TestManualSaveLatchFiresOnce(t *testing.T) {
	st := NewStatusTracker()

	if st.ConsumeManualSave() {
		t.Fatal("latch must start clear")
	}

	st.TriggerManualSave()
	st.TriggerManualSave() // re-trigger before consume collapses

	if !st.ConsumeManualSave() {
		t.Error("latch lost the trigger")
	}
	if st.ConsumeManualSave() {
		t.Error("latch fired twice for one trigger window")
	}
}

func TestSaverDebouncedEditsCoalesce(t *testing.T) {
	client := &fakeClient{}
	state := newTestState()
	s, changes := newTestSaver(t, client, state, ModeDebounced, 40*time.Millisecond)

	// Five rapid edits to the same workspace.
	for i := 0; i < 5; i++ {
		state.setTaskText("tab_a", 1, "edit")
		changes.MarkTasksChanged("tab_a")
		s.NoteEdit("tab_a")
		time.Sleep(5 * time.Millisecond)
	}

	if got := s.Status().Status(); got != StatusUnsaved {
		t.Errorf("status during quiet period = %q, want %q", got, StatusUnsaved)
	}

	time.Sleep(150 * time.Millisecond)

	if got := client.smartSaveCount(); got != 1 {
		t.Fatalf("expected 1 remote write, got %d", got)
	}
	client.mu.Lock()
	written := client.lastSmartTasks["tab_a"]
	client.mu.Unlock()
	if len(written) != 1 || written[0].Text != "edit" {
		t.Errorf("write did not carry the final state: %+v", written)
	}
	if got := s.Status().Status(); got != StatusSaved {
		t.Errorf("status after flush = %q, want %q", got, StatusSaved)
	}
	if changes.HasChanges() {
		t.Errorf("marks remain after confirmed flush: %+v", changes.Changes())
	}
}

func TestSaverFlushPreemptsDebounce(t *testing.T) {
	client := &fakeClient{}
	state := newTestState()
	s, changes := newTestSaver(t, client, state, ModeDebounced, 40*time.Millisecond)

	changes.MarkTasksChanged("tab_a")
	s.NoteEdit("tab_a")

	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if got := client.smartSaveCount(); got != 1 {
		t.Fatalf("expected 1 write after flush, got %d", got)
	}

	// The cancelled debounce timer must not produce a second write.
	time.Sleep(100 * time.Millisecond)
	if got := client.smartSaveCount(); got != 1 {
		t.Errorf("debounce fired after flush: %d writes", got)
	}
}

func TestSaverManualModeNeverWritesAutomatically(t *testing.T) {
	client := &fakeClient{}
	state := newTestState()
	s, changes := newTestSaver(t, client, state, ModeManual, 20*time.Millisecond)

	changes.MarkTasksChanged("tab_a")
	s.NoteEdit("tab_a")

	time.Sleep(80 * time.Millisecond)

	if got := client.smartSaveCount(); got != 0 {
		t.Fatalf("manual mode wrote remotely without a trigger: %d", got)
	}
	if got := s.Status().Status(); got != StatusUnsaved {
		t.Errorf("status = %q, want %q", got, StatusUnsaved)
	}

	if err := s.ManualSave(context.Background()); err != nil {
		t.Fatalf("ManualSave failed: %v", err)
	}
	client.mu.Lock()
	saves, tab := client.manualSaves, client.lastManualTab
	client.mu.Unlock()
	if saves != 1 {
		t.Fatalf("expected 1 manual write, got %d", saves)
	}
	if tab.ID != "tab_a" {
		t.Errorf("manual save wrote wrong workspace: %+v", tab)
	}
}

func TestSaverManualSaveClearsOnlySelectedWorkspace(t *testing.T) {
	client := &fakeClient{}
	state := newTestState()
	state.mu.Lock()
	state.tabs["tab_b"] = model.Tab{ID: "tab_b", Name: "B"}
	state.tasks["tab_b"] = []model.Task{{ID: 2, Text: "two"}}
	state.mu.Unlock()

	s, changes := newTestSaver(t, client, state, ModeManual, 20*time.Millisecond)
	changes.MarkTasksChanged("tab_a")
	changes.MarkTasksChanged("tab_b")

	if err := s.ManualSave(context.Background()); err != nil {
		t.Fatalf("ManualSave failed: %v", err)
	}

	c := changes.Changes()
	if len(c.TasksChanged) != 1 || c.TasksChanged[0] != "tab_b" {
		t.Errorf("manual save should clear only the selected workspace, left: %v", c.TasksChanged)
	}
}

func TestSaverFlushFailureKeepsMarks(t *testing.T) {
	client := &fakeClient{fail: errors.New("network down")}
	state := newTestState()
	s, changes := newTestSaver(t, client, state, ModeDebounced, 20*time.Millisecond)

	changes.MarkTasksChanged("tab_a")
	if err := s.Flush(context.Background()); err == nil {
		t.Fatal("expected flush error")
	}

	if got := s.Status().Status(); got != StatusError {
		t.Errorf("status after failure = %q, want %q", got, StatusError)
	}
	if !changes.HasChanges() {
		t.Error("failed flush must not clear change marks")
	}

	// Recovery: the next flush retries the same changes.
	client.mu.Lock()
	client.fail = nil
	client.mu.Unlock()
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("retry flush failed: %v", err)
	}
	if changes.HasChanges() {
		t.Error("marks remain after successful retry")
	}
	if got := client.smartSaveCount(); got != 1 {
		t.Errorf("expected 1 successful write, got %d", got)
	}
}

func TestSaverEditDuringFlightSurvives(t *testing.T) {
	client := &fakeClient{}
	state := newTestState()
	s, changes := newTestSaver(t, client, state, ModeDebounced, 10*time.Millisecond)

	changes.MarkTasksChanged("tab_a")
	snapshotted := changes.Changes()

	// Simulate an edit landing after the flush snapshot was taken.
	changes.MarkTasksChanged("tab_b")
	changes.ClearSeen(snapshotted)

	if !changes.HasChanges() {
		t.Fatal("in-flight edit lost")
	}

	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if changes.HasChanges() {
		t.Error("follow-up flush should drain the late edit")
	}
}

func TestSaverCloseFlushesPending(t *testing.T) {
	client := &fakeClient{}
	state := newTestState()
	s, changes := newTestSaver(t, client, state, ModeDebounced, 10*time.Second)

	// The debounce window is far in the future; Close must not wait.
	changes.MarkTasksChanged("tab_a")
	s.NoteEdit("tab_a")

	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if got := client.smartSaveCount(); got != 1 {
		t.Errorf("expected shutdown flush, got %d writes", got)
	}
}

func TestSaverNilClientIsLocalOnly(t *testing.T) {
	state := newTestState()
	changes := tracker.New()
	s := NewSaver(Config{
		Client:   nil,
		Changes:  changes,
		Debounce: NewDebouncer(10 * time.Millisecond),
		Snapshot: state.snapshot,
		Logger:   log.New(os.Stderr, "[test] ", 0),
	})

	changes.MarkTasksChanged("tab_a")
	s.NoteEdit("tab_a")

	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("offline flush must succeed: %v", err)
	}
	if err := s.ManualSave(context.Background()); err != nil {
		t.Fatalf("offline manual save must succeed: %v", err)
	}
}

func TestSaverManualSaveResetsTrigger(t *testing.T) {
	client := &fakeClient{}
	state := newTestState()
	s, changes := newTestSaver(t, client, state, ModeManual, 20*time.Millisecond)
	changes.MarkTasksChanged("tab_a")

	s.Status().TriggerManualSave()
	if err := s.ManualSave(context.Background()); err != nil {
		t.Fatalf("ManualSave failed: %v", err)
	}

	if s.Status().ConsumeManualSave() {
		t.Error("manual trigger still pending after the save completed")
	}
	if got := client.smartSaveCount(); got != 0 {
		t.Errorf("manual save took the smart-save path: %d calls", got)
	}
}

func TestSaverManualSaveFailureStillResetsTrigger(t *testing.T) {
	client := &fakeClient{fail: errors.New("network down")}
	state := newTestState()
	s, _ := newTestSaver(t, client, state, ModeManual, 20*time.Millisecond)

	s.Status().TriggerManualSave()
	if err := s.ManualSave(context.Background()); err == nil {
		t.Fatal("expected manual save error")
	}
	if s.Status().ConsumeManualSave() {
		t.Error("failed save left the trigger latched")
	}
}
