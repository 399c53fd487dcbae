package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/devtab/devtab/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Reconcile local data with the remote store",
	Long: `Fetch the remote task and workspace collections and merge them with
local data.

Local-only workspaces are uploaded in a single batch; for workspaces that
exist on both sides the remote version wins. Results are cached for five
minutes, so a sync shortly after another one returns local data without
touching the remote store.`,
	Run: func(cmd *cobra.Command, args []string) {
		s, err := openSession(cmd)
		if err != nil {
			exitErr(err)
		}
		defer s.close(cmd)

		if s.cfg.Offline() {
			exitErr(fmt.Errorf("not signed in: set remote_url and user_id in %s/config.yaml", s.cfg.DataDir))
		}

		start := time.Now()
		if err := s.app.Sync(cmd.Context()); err != nil {
			exitErr(err)
		}

		tabs := s.app.Tabs()
		total := s.app.AllTasks().TotalTasks()
		fmt.Printf("%s Synced %d workspaces, %d tasks in %v\n",
			ui.RenderPass("✓"), len(tabs), total, time.Since(start).Round(time.Millisecond))

		cs := s.app.CacheStatus()
		if cs.Valid {
			fmt.Println(ui.RenderMuted(fmt.Sprintf("Cache fresh (age %v)", cs.Age.Round(time.Second))))
		}
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
