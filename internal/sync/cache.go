package sync

import (
	"sync"
	"time"

	"github.com/devtab/devtab/internal/model"
)

// DefaultCacheTTL is how long a remote snapshot is trusted before the next
// sync fetches fresh data.
const DefaultCacheTTL = 5 * time.Minute

// Cache holds the last remote snapshot to suppress redundant fetches on
// rapid reloads.
//
// The cache is read-mostly with explicit invalidation: it is replaced
// wholesale on update and cleared wholesale on invalidation, never
// partially mutated.
type Cache struct {
	mu        sync.Mutex
	tasks     model.TaskMap
	tabs      model.TabsMap
	lastFetch time.Time
	ttl       time.Duration
}

// CacheStatus describes cache state for debugging surfaces.
type CacheStatus struct {
	Valid     bool          `json:"valid"`
	LastFetch time.Time     `json:"lastFetch"`
	Age       time.Duration `json:"age"`
}

// NewCache creates a cache with the given TTL; ttl <= 0 uses the default.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{ttl: ttl}
}

// Valid reports whether a snapshot is present and younger than the TTL.
func (c *Cache) Valid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.validLocked()
}

func (c *Cache) validLocked() bool {
	return c.tasks != nil && c.tabs != nil && time.Since(c.lastFetch) < c.ttl
}

// Update replaces the snapshot with fresh remote data.
func (c *Cache) Update(tasks model.TaskMap, tabs model.TabsMap) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tasks = tasks.Clone()
	c.tabs = tabs.Clone()
	c.lastFetch = time.Now()
}

// Invalidate clears the snapshot. Called whenever local data mutates:
// local truth may have diverged from what the cache believes is synced.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tasks = nil
	c.tabs = nil
	c.lastFetch = time.Time{}
}

// Status returns validity and age for debugging.
func (c *Cache) Status() CacheStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStatus{
		Valid:     c.validLocked(),
		LastFetch: c.lastFetch,
		Age:       time.Since(c.lastFetch),
	}
}
