package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/devtab/devtab/internal/ui"
)

var saveAll bool

var saveCmd = &cobra.Command{
	Use:     "save",
	GroupID: "sync",
	Short:   "Upload the selected workspace to the remote store now",
	Long: `Upload immediately instead of waiting for the debounce timer.

By default only the selected workspace's tasks and metadata are written.
With --all, every workspace with tracked changes is uploaded in one batch.`,
	Run: func(cmd *cobra.Command, args []string) {
		s, err := openSession(cmd)
		if err != nil {
			exitErr(err)
		}
		defer s.close(cmd)

		if s.cfg.Offline() {
			exitErr(fmt.Errorf("not signed in: set remote_url and user_id in %s/config.yaml", s.cfg.DataDir))
		}

		if saveAll {
			if err := s.app.Flush(cmd.Context()); err != nil {
				exitErr(err)
			}
			fmt.Printf("%s Uploaded all pending changes\n", ui.RenderPass("✓"))
			return
		}

		if err := s.app.ManualSave(cmd.Context()); err != nil {
			exitErr(err)
		}
		fmt.Printf("%s Uploaded workspace %s\n", ui.RenderPass("✓"), s.app.SelectedTab())
	},
}

func init() {
	saveCmd.Flags().BoolVar(&saveAll, "all", false, "Upload every workspace with pending changes")
	rootCmd.AddCommand(saveCmd)
}
