package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/devtab/devtab/internal/model"
	"github.com/devtab/devtab/internal/ui"
)

var tabCmd = &cobra.Command{
	Use:     "tab",
	GroupID: "tasks",
	Short:   "Manage workspaces",
}

var tabListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List workspaces",
	Run: func(cmd *cobra.Command, args []string) {
		s, err := openSession(cmd)
		if err != nil {
			exitErr(err)
		}
		defer s.close(cmd)

		tabs := s.app.Tabs()
		selected := s.app.SelectedTab()
		tasks := s.app.AllTasks()

		ids := make([]string, 0, len(tabs))
		for id := range tabs {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool {
			a, b := tabs[ids[i]], tabs[ids[j]]
			if a.CreatedAt != b.CreatedAt {
				return a.CreatedAt < b.CreatedAt
			}
			return a.ID < b.ID
		})

		for _, id := range ids {
			tab := tabs[id]
			marker := " "
			name := tab.Name
			if id == selected {
				marker = ui.RenderAccent("*")
				name = ui.RenderAccent(name)
			}
			fmt.Printf("%s %s  %s\n", marker, name, ui.RenderMuted(fmt.Sprintf("%d tasks  %s", len(tasks[id]), id)))
		}
	},
}

var tabNewCmd = &cobra.Command{
	Use:   "new [name]...",
	Short: "Create a workspace and switch to it",
	Long: `Create a workspace and make it the selected one.

Without a name the workspace is named after today's date.`,
	Run: func(cmd *cobra.Command, args []string) {
		name := strings.Join(args, " ")
		if name == "" {
			name = model.TodayLabel()
		}

		s, err := openSession(cmd)
		if err != nil {
			exitErr(err)
		}
		defer s.close(cmd)

		tab, err := s.app.NewTab(cmd.Context(), name)
		if err != nil {
			exitErr(err)
		}
		fmt.Printf("%s Created workspace %s (%s)\n", ui.RenderPass("✓"), ui.RenderAccent(tab.Name), tab.ID)
	},
}

var tabRenameCmd = &cobra.Command{
	Use:   "rename <id> <name>...",
	Short: "Rename a workspace",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		s, err := openSession(cmd)
		if err != nil {
			exitErr(err)
		}
		defer s.close(cmd)

		tab, err := s.app.RenameTab(args[0], strings.Join(args[1:], " "))
		if err != nil {
			exitErr(err)
		}
		fmt.Printf("%s Renamed workspace to %s\n", ui.RenderPass("✓"), ui.RenderAccent(tab.Name))
	},
}

var tabSelectCmd = &cobra.Command{
	Use:     "select <id>",
	Aliases: []string{"switch"},
	Short:   "Switch the selected workspace",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s, err := openSession(cmd)
		if err != nil {
			exitErr(err)
		}
		defer s.close(cmd)

		if err := s.app.SelectTab(cmd.Context(), args[0]); err != nil {
			exitErr(err)
		}
		fmt.Printf("%s Switched to workspace %s\n", ui.RenderPass("✓"), args[0])
	},
}

var tabRmForce bool

var tabRmCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"delete"},
	Short:   "Delete a workspace and all of its tasks",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s, err := openSession(cmd)
		if err != nil {
			exitErr(err)
		}
		defer s.close(cmd)

		tabID := args[0]
		tabs := s.app.Tabs()
		tab, ok := tabs[tabID]
		if !ok {
			exitErr(fmt.Errorf("workspace %s not found", tabID))
		}

		if !tabRmForce {
			count := len(s.app.AllTasks()[tabID])
			var confirmed bool
			form := huh.NewForm(huh.NewGroup(
				huh.NewConfirm().
					Title(fmt.Sprintf("Delete workspace %q and its %d tasks?", tab.Name, count)).
					Description("This removes the workspace locally and remotely.").
					Value(&confirmed),
			))
			if err := form.Run(); err != nil {
				exitErr(err)
			}
			if !confirmed {
				fmt.Println(ui.RenderMuted("Cancelled"))
				return
			}
		}

		if err := s.app.DeleteTab(cmd.Context(), tabID); err != nil {
			exitErr(err)
		}
		fmt.Printf("%s Deleted workspace %s\n", ui.RenderPass("✓"), tab.Name)
	},
}

func init() {
	tabRmCmd.Flags().BoolVarP(&tabRmForce, "force", "f", false, "Skip the confirmation prompt")
	tabCmd.AddCommand(tabListCmd, tabNewCmd, tabRenameCmd, tabSelectCmd, tabRmCmd)
	rootCmd.AddCommand(tabCmd)
}
