// Package store provides the local persistence layer for devtab.
//
// Data lives in a single SQLite database (devtab.db) used as a synchronous
// key-value medium. The two collections (tasks-by-workspace and workspace
// metadata) are stored as whole JSON blobs and rewritten in full on every
// mutation; scalar keys hold session pointers like the last selected
// workspace.
//
// The store is always available and never the source of a fatal error:
// corrupt persisted JSON is logged and treated as empty state so the
// application can keep running on defaults.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/devtab/devtab/internal/model"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Persisted keys. The key set and meaning are part of the on-disk contract.
const (
	keyTasks           = "tasks_by_tab"
	keyTabs            = "tabs"
	keyLastSelectedTab = "last_selected_tab"
	keyPanelWidth      = "right_panel_width"
	keyQuotaPrefix     = "user_quota_"
)

// Store wraps the SQLite connection with key-value accessors for the
// devtab collections.
type Store struct {
	conn *sql.DB
	path string

	logger *log.Logger

	// onMutate is invoked after every successful mutating call so the
	// sync engine can invalidate its remote read cache. Local truth may
	// have diverged from what the cache believes is synced.
	onMutate func()
}

// Open creates or opens the local database at the specified path.
//
// The database is opened in WAL mode with a busy timeout. The caller MUST
// call Close() when done. If logger is nil, a default stderr logger is used.
func Open(path string, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "[store] ", log.LstdFlags)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{
		conn:   conn,
		path:   path,
		logger: logger,
	}

	if _, err := s.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := s.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := s.initSchema(); err != nil {
		_ = s.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection, checkpointing the WAL first.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		s.logger.Printf("Warning: failed to checkpoint WAL: %v", err)
	}
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	s.conn = nil
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// SetMutateHook registers a callback invoked after every mutating call.
func (s *Store) SetMutateHook(fn func()) {
	s.onMutate = fn
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	if _, err := s.conn.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

func (s *Store) get(key string) (string, bool) {
	var value string
	err := s.conn.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false
	}
	if err != nil {
		// Treated like a missing key; the local medium degrades to
		// empty/default behavior rather than failing the operation.
		s.logger.Printf("Warning: failed to read key %s: %v", key, err)
		return "", false
	}
	return value, true
}

func (s *Store) set(key, value string) error {
	_, err := s.conn.Exec(`
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("failed to write key %s: %w", key, err)
	}
	return nil
}

func (s *Store) mutated() {
	if s.onMutate != nil {
		s.onMutate()
	}
}

// GetTasks returns all persisted tasks keyed by workspace ID.
// Missing or malformed data yields an empty map, never an error.
func (s *Store) GetTasks() model.TaskMap {
	raw, ok := s.get(keyTasks)
	if ok {
		var tasks model.TaskMap
		if err := json.Unmarshal([]byte(raw), &tasks); err == nil {
			return tasks
		}
		s.logger.Printf("Invalid JSON in local store for tasks, treating as empty")
	}
	return model.TaskMap{}
}

// GetTabs returns all persisted workspace metadata.
// Missing or malformed data yields an empty map, never an error.
func (s *Store) GetTabs() model.TabsMap {
	raw, ok := s.get(keyTabs)
	if ok {
		var tabs model.TabsMap
		if err := json.Unmarshal([]byte(raw), &tabs); err == nil {
			return tabs
		}
		s.logger.Printf("Invalid JSON in local store for tabs, treating as empty")
	}
	return model.TabsMap{}
}

// SaveTasks persists the entire task map as one full replacement.
func (s *Store) SaveTasks(tasks model.TaskMap) error {
	data, err := json.Marshal(tasks)
	if err != nil {
		return fmt.Errorf("failed to marshal tasks: %w", err)
	}
	if err := s.set(keyTasks, string(data)); err != nil {
		return err
	}
	s.mutated()
	return nil
}

// SaveTabs persists the entire tabs map as one full replacement.
func (s *Store) SaveTabs(tabs model.TabsMap) error {
	data, err := json.Marshal(tabs)
	if err != nil {
		return fmt.Errorf("failed to marshal tabs: %w", err)
	}
	if err := s.set(keyTabs, string(data)); err != nil {
		return err
	}
	s.mutated()
	return nil
}

// UpsertTasksForTab replaces one workspace's task list inside the task map.
// Always a read-modify-write of the full persisted blob.
func (s *Store) UpsertTasksForTab(tabID string, tasks []model.Task) error {
	current := s.GetTasks()
	current[tabID] = tasks
	return s.SaveTasks(current)
}

// DeleteTab removes the workspace from both collections and persists both.
func (s *Store) DeleteTab(tabID string) error {
	tasks := s.GetTasks()
	tabs := s.GetTabs()

	delete(tasks, tabID)
	delete(tabs, tabID)

	if err := s.SaveTasks(tasks); err != nil {
		return err
	}
	return s.SaveTabs(tabs)
}

// LastSelectedTab returns the persisted workspace selection, or "" if unset.
func (s *Store) LastSelectedTab() string {
	v, _ := s.get(keyLastSelectedTab)
	return v
}

// SetLastSelectedTab persists the current workspace selection.
func (s *Store) SetLastSelectedTab(tabID string) error {
	if err := s.set(keyLastSelectedTab, tabID); err != nil {
		return err
	}
	s.mutated()
	return nil
}

// PanelWidth returns the persisted right-panel width, or 0 if unset.
func (s *Store) PanelWidth() int {
	v, ok := s.get(keyPanelWidth)
	if !ok {
		return 0
	}
	w, err := strconv.Atoi(v)
	if err != nil {
		s.logger.Printf("Invalid panel width %q, treating as unset", v)
		return 0
	}
	return w
}

// SetPanelWidth persists the right-panel width.
func (s *Store) SetPanelWidth(w int) error {
	return s.set(keyPanelWidth, strconv.Itoa(w))
}

// GetQuota returns the persisted quota record for the user, or nil if none.
func (s *Store) GetQuota(userID string) *model.UserQuota {
	raw, ok := s.get(keyQuotaPrefix + userID)
	if !ok {
		return nil
	}
	var q model.UserQuota
	if err := json.Unmarshal([]byte(raw), &q); err != nil {
		s.logger.Printf("Invalid JSON in local store for quota of %s, treating as unset", userID)
		return nil
	}
	return &q
}

// SaveQuota persists the quota record for the user.
func (s *Store) SaveQuota(userID string, q *model.UserQuota) error {
	data, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("failed to marshal quota: %w", err)
	}
	return s.set(keyQuotaPrefix+userID, string(data))
}
