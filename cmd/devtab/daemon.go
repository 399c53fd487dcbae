package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/devtab/devtab/internal/daemon"
	"github.com/devtab/devtab/internal/dashboard"
	"github.com/devtab/devtab/internal/ui"
)

var (
	daemonSyncInterval time.Duration
	daemonNoDashboard  bool
)

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	GroupID: "advanced",
	Short:   "Run the background sync process",
	Long: `Run devtab as a long-lived process that keeps local and remote data
reconciled.

The daemon syncs with the remote store on a fixed interval and serves the
WebSocket dashboard so connected clients see save, sync, and quota events
live. On shutdown, pending uploads are flushed first.`,
	Run: func(cmd *cobra.Command, args []string) {
		s, err := openSession(cmd)
		if err != nil {
			exitErr(err)
		}
		defer s.close(cmd)

		if s.cfg.Offline() {
			exitErr(fmt.Errorf("not signed in: set remote_url and user_id in %s/config.yaml", s.cfg.DataDir))
		}

		var dash *dashboard.Server
		if !daemonNoDashboard {
			dash = dashboard.NewServer(&dashboard.Config{
				Port:   s.cfg.DashboardPort,
				Logger: log.New(os.Stderr, "[dashboard] ", log.LstdFlags),
			})
			if err := dash.Start(); err != nil {
				exitErr(err)
			}
			defer func() { _ = dash.Stop() }()
			fmt.Printf("Dashboard: ws://localhost:%d/ws\n", s.cfg.DashboardPort)
		}

		d, err := daemon.New(s.app, dash, &daemon.Config{
			SyncInterval: daemonSyncInterval,
			Logger:       s.logger,
		})
		if err != nil {
			exitErr(err)
		}

		fmt.Printf("%s Daemon running (sync every %v). Press Ctrl+C to stop.\n",
			ui.RenderPass("✓"), daemonSyncInterval)

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if err := d.Start(ctx); err != nil {
			exitErr(err)
		}
		fmt.Println("Daemon stopped")
	},
}

func init() {
	daemonCmd.Flags().DurationVar(&daemonSyncInterval, "sync-interval", 5*time.Minute, "How often to reconcile with the remote store")
	daemonCmd.Flags().BoolVar(&daemonNoDashboard, "no-dashboard", false, "Disable the WebSocket dashboard")
	rootCmd.AddCommand(daemonCmd)
}
