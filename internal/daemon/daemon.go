// Package daemon provides the long-lived sync process.
//
// The daemon:
// 1. Periodically reconciles local data with the remote store
// 2. Lets the debounced save machinery run continuously
// 3. Publishes save, sync, and quota events to the dashboard
// 4. Handles graceful shutdown with a final flush
package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/devtab/devtab/internal/app"
	"github.com/devtab/devtab/internal/dashboard"
	"github.com/devtab/devtab/internal/save"
)

// Config holds configuration for the daemon.
type Config struct {
	// SyncInterval is how often to reconcile with the remote store.
	SyncInterval time.Duration

	// Logger for daemon activity
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		SyncInterval: 5 * time.Minute,
		Logger:       log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon drives periodic reconciliation and event publication.
type Daemon struct {
	app    *app.App
	dash   *dashboard.Server // nil disables event publication
	config *Config

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a daemon over a loaded App. dash may be nil.
func New(a *app.App, dash *dashboard.Server, config *Config) (*Daemon, error) {
	if a == nil {
		return nil, fmt.Errorf("app cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.SyncInterval <= 0 {
		config.SyncInterval = DefaultConfig().SyncInterval
	}
	if config.Logger == nil {
		config.Logger = DefaultConfig().Logger
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		app:    a,
		dash:   dash,
		config: config,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Start begins periodic syncing. Blocks until ctx is cancelled.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Println("Starting daemon")

	if d.dash != nil {
		// Every save state transition goes out live.
		st := d.app.SaveStatus()
		st.SetChangeHook(func(s save.Status) {
			d.dash.BroadcastSaveStatus(s, st.LastSaved())
		})
	}

	d.wg.Add(1)
	go d.syncLoop()

	select {
	case <-ctx.Done():
		d.config.Logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop shuts the daemon down and flushes pending uploads.
func (d *Daemon) Stop() error {
	d.cancel()
	d.wg.Wait()

	if d.dash != nil {
		d.app.SaveStatus().SetChangeHook(nil)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.app.Flush(ctx); err != nil {
		return fmt.Errorf("final flush failed: %w", err)
	}

	d.config.Logger.Println("Daemon stopped")
	return nil
}

// syncLoop reconciles with the remote store on the configured interval.
func (d *Daemon) syncLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			d.syncOnce()
		}
	}
}

func (d *Daemon) syncOnce() {
	before := d.app.CacheStatus().LastFetch
	start := time.Now()

	if err := d.app.Sync(d.ctx); err != nil {
		d.config.Logger.Printf("Periodic sync failed: %v", err)
		return
	}

	fetched := d.app.CacheStatus().LastFetch.After(before)
	d.config.Logger.Printf("Periodic sync complete (fetched remote: %v)", fetched)

	if d.dash != nil {
		d.dash.BroadcastSyncComplete(dashboard.SyncCompleteData{
			Workspaces:    len(d.app.Tabs()),
			Tasks:         d.app.AllTasks().TotalTasks(),
			FetchedRemote: fetched,
			Duration:      time.Since(start),
		})
		d.dash.BroadcastQuota(d.app.Quota())
	}
}
