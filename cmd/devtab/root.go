package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/devtab/devtab/internal/app"
	"github.com/devtab/devtab/internal/config"
	"github.com/devtab/devtab/internal/quota"
	"github.com/devtab/devtab/internal/remote"
	"github.com/devtab/devtab/internal/save"
	"github.com/devtab/devtab/internal/store"
	syncer "github.com/devtab/devtab/internal/sync"
	"github.com/devtab/devtab/internal/ui"
)

var rootCmd = &cobra.Command{
	Use:   "devtab",
	Short: "Task and notes manager with local-first cloud sync",
	Long: `devtab keeps tasks and notes in named workspaces, stored locally
in SQLite and synced to a remote backend when signed in.

Local writes always succeed immediately. Remote uploads follow the save
policy: debounced after each edit (the default) or only on an explicit
"devtab save" in manual mode.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var flagDataDir string

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "Data directory (default ~/.devtab)")

	rootCmd.AddGroup(
		&cobra.Group{ID: "tasks", Title: "Task Commands:"},
		&cobra.Group{ID: "sync", Title: "Sync Commands:"},
		&cobra.Group{ID: "advanced", Title: "Advanced Commands:"},
	)
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.RenderErr("Error: "+err.Error()))
		os.Exit(1)
	}
}

// cliNotifier surfaces advisory sync and quota messages on stderr.
type cliNotifier struct{}

func (cliNotifier) Notify(message string) {
	fmt.Fprintln(os.Stderr, ui.RenderWarn(message))
}

func (cliNotifier) NotifyError(message string) {
	fmt.Fprintln(os.Stderr, ui.RenderErr(message))
}

// newLogger writes to the rotating log file, falling back to stderr when
// the file cannot be opened.
func newLogger(cfg *config.Config) *log.Logger {
	var out io.Writer = os.Stderr
	if cfg.LogFile != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
	}
	return log.New(out, "[devtab] ", log.LstdFlags)
}

// session bundles everything a command needs plus its teardown.
type session struct {
	cfg    *config.Config
	app    *app.App
	store  *store.Store
	logger *log.Logger
}

// openSession loads config, opens the store, and brings the app up,
// including the initial local/remote reconciliation.
func openSession(cmd *cobra.Command) (*session, error) {
	cfg, err := config.Load(flagDataDir)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg)

	st, err := store.Open(cfg.StorePath(), logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	cache := syncer.NewCache(cfg.CacheTTL)
	engine := syncer.New(st, cache, logger)

	var client remote.Client
	if !cfg.Offline() {
		client = remote.NewHTTPClient(cfg.RemoteURL, cfg.RemoteToken, cfg.UserID, logger)
	}

	a := app.New(app.Options{
		Store:            st,
		Engine:           engine,
		Client:           client,
		UserID:           cfg.UserID,
		Mode:             save.Mode(cfg.SaveMode),
		DebounceInterval: cfg.DebounceInterval,
		QuotaLimits: quota.Limits{
			MaxTasks:        cfg.MaxTasks,
			MaxWorkspaces:   cfg.MaxWorkspaces,
			MaxReadsPerDay:  cfg.MaxReadsPerDay,
			MaxWritesPerDay: cfg.MaxWritesPerDay,
		},
		Notifier: cliNotifier{},
		Logger:   logger,
	})

	if err := a.Load(cmd.Context()); err != nil {
		_ = st.Close()
		return nil, err
	}

	return &session{cfg: cfg, app: a, store: st, logger: logger}, nil
}

// close flushes pending uploads and releases the store.
func (s *session) close(cmd *cobra.Command) {
	if err := s.app.Close(cmd.Context()); err != nil {
		s.logger.Printf("Warning: final flush failed: %v", err)
		fmt.Fprintln(os.Stderr, ui.RenderWarn("Some changes could not be uploaded; they remain queued locally."))
	}
	if err := s.store.Close(); err != nil {
		s.logger.Printf("Warning: store close failed: %v", err)
	}
}
