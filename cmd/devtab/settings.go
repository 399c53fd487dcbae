package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/devtab/devtab/internal/ui"
)

var settingsCmd = &cobra.Command{
	Use:     "settings",
	GroupID: "advanced",
	Short:   "Show user settings",
	Run: func(cmd *cobra.Command, args []string) {
		s, err := openSession(cmd)
		if err != nil {
			exitErr(err)
		}
		defer s.close(cmd)

		settings, err := s.app.Settings(cmd.Context())
		if err != nil {
			exitErr(err)
		}

		fmt.Println(ui.Heading.Render("Settings"))
		if len(settings) == 0 {
			fmt.Println(ui.RenderMuted("No settings stored"))
			return
		}
		keys := make([]string, 0, len(settings))
		for k := range settings {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("%-20s %v\n", k, settings[k])
		}
	},
}

var panelWidthCmd = &cobra.Command{
	Use:   "panel-width [width]",
	Short: "Show or set the right panel width",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s, err := openSession(cmd)
		if err != nil {
			exitErr(err)
		}
		defer s.close(cmd)

		if len(args) == 0 {
			w := s.app.PanelWidth()
			if w == 0 {
				fmt.Println(ui.RenderMuted("Panel width not set"))
				return
			}
			fmt.Println(w)
			return
		}

		w, err := strconv.Atoi(args[0])
		if err != nil {
			exitErr(fmt.Errorf("invalid width %q", args[0]))
		}
		if err := s.app.SetPanelWidth(cmd.Context(), w); err != nil {
			exitErr(err)
		}
		fmt.Println(ui.RenderPass(fmt.Sprintf("Panel width set to %d", w)))
	},
}

func init() {
	settingsCmd.AddCommand(panelWidthCmd)
	rootCmd.AddCommand(settingsCmd)
}
