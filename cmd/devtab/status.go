package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/devtab/devtab/internal/save"
	"github.com/devtab/devtab/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "sync",
	Short:   "Show save state, pending changes, and cache freshness",
	Run: func(cmd *cobra.Command, args []string) {
		s, err := openSession(cmd)
		if err != nil {
			exitErr(err)
		}
		defer s.close(cmd)

		st := s.app.SaveStatus()
		var line string
		switch st.Status() {
		case save.StatusSaved:
			line = ui.RenderPass("saved")
			if t := st.LastSaved(); !t.IsZero() {
				line += ui.RenderMuted(fmt.Sprintf(" (last upload %v ago)", time.Since(t).Round(time.Second)))
			}
		case save.StatusSaving:
			line = ui.RenderWarn("saving…")
		case save.StatusUnsaved:
			line = ui.RenderWarn("unsaved changes")
		case save.StatusError:
			line = ui.RenderErr("last upload failed")
		}
		fmt.Printf("Save state:  %s\n", line)
		fmt.Printf("Pending:     %s\n", s.app.ChangeSummary())

		cs := s.app.CacheStatus()
		if cs.Valid {
			fmt.Printf("Read cache:  %s\n", ui.RenderPass(fmt.Sprintf("fresh (age %v)", cs.Age.Round(time.Second))))
		} else if cs.LastFetch.IsZero() {
			fmt.Printf("Read cache:  %s\n", ui.RenderMuted("never fetched"))
		} else {
			fmt.Printf("Read cache:  %s\n", ui.RenderWarn(fmt.Sprintf("stale (age %v)", cs.Age.Round(time.Second))))
		}

		mode := "offline"
		if !s.cfg.Offline() {
			mode = fmt.Sprintf("signed in as %s", s.cfg.UserID)
		}
		fmt.Printf("Remote:      %s\n", ui.RenderMuted(mode))
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
