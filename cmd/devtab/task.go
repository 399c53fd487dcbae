package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/devtab/devtab/internal/model"
	"github.com/devtab/devtab/internal/ui"
)

var taskCmd = &cobra.Command{
	Use:     "task",
	GroupID: "tasks",
	Short:   "Manage tasks in the selected workspace",
}

var taskAddCmd = &cobra.Command{
	Use:   "add <text>...",
	Short: "Add a task to the top of the selected workspace",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s, err := openSession(cmd)
		if err != nil {
			exitErr(err)
		}
		defer s.close(cmd)

		task, err := s.app.AddTask(strings.Join(args, " "))
		if err != nil {
			exitErr(err)
		}
		fmt.Printf("%s Added task %d: %s\n", ui.RenderPass("✓"), task.ID, task.Text)
	},
}

var taskListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tasks in the selected workspace, newest first",
	Run: func(cmd *cobra.Command, args []string) {
		s, err := openSession(cmd)
		if err != nil {
			exitErr(err)
		}
		defer s.close(cmd)

		tabs := s.app.Tabs()
		selected := s.app.SelectedTab()
		if tab, ok := tabs[selected]; ok {
			fmt.Println(ui.Heading.Render(tab.Name))
		}

		tasks := s.app.Tasks()
		if len(tasks) == 0 {
			fmt.Println(ui.RenderMuted("No tasks. Add one with: devtab task add <text>"))
			return
		}
		for _, t := range tasks {
			text := t.Text
			if t.Completed {
				text = ui.Done.Render(text)
			}
			fmt.Printf("%s %d  %s\n", ui.Checkbox(t.Completed), t.ID, text)
			if t.Notes != "" {
				fmt.Printf("        %s\n", ui.RenderMuted(firstLine(t.Notes)))
			}
		}
	},
}

var taskDoneCmd = &cobra.Command{
	Use:   "done <id>",
	Short: "Toggle a task's completion state",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := model.ParseTaskID(args[0])
		if err != nil {
			exitErr(fmt.Errorf("invalid task id %q", args[0]))
		}

		s, err := openSession(cmd)
		if err != nil {
			exitErr(err)
		}
		defer s.close(cmd)

		task, err := s.app.ToggleTask(id)
		if err != nil {
			exitErr(err)
		}
		state := "reopened"
		if task.Completed {
			state = "completed"
		}
		fmt.Printf("%s Task %d %s\n", ui.RenderPass("✓"), task.ID, state)
	},
}

var taskEditCmd = &cobra.Command{
	Use:   "edit <id> <text>...",
	Short: "Replace a task's text",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := model.ParseTaskID(args[0])
		if err != nil {
			exitErr(fmt.Errorf("invalid task id %q", args[0]))
		}

		s, err := openSession(cmd)
		if err != nil {
			exitErr(err)
		}
		defer s.close(cmd)

		task, err := s.app.RenameTask(id, strings.Join(args[1:], " "))
		if err != nil {
			exitErr(err)
		}
		fmt.Printf("%s Task %d updated: %s\n", ui.RenderPass("✓"), task.ID, task.Text)
	},
}

var taskNotesCmd = &cobra.Command{
	Use:   "notes <id> [text]...",
	Short: "Show or replace the notes attached to a task",
	Long: `Show or replace a task's notes.

With only an id, prints the current notes. With extra arguments, replaces
the notes with the joined text. Use an empty quoted string to clear them.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := model.ParseTaskID(args[0])
		if err != nil {
			exitErr(fmt.Errorf("invalid task id %q", args[0]))
		}

		s, err := openSession(cmd)
		if err != nil {
			exitErr(err)
		}
		defer s.close(cmd)

		if len(args) == 1 {
			for _, t := range s.app.Tasks() {
				if t.ID == id {
					if t.Notes == "" {
						fmt.Println(ui.RenderMuted("(no notes)"))
					} else {
						fmt.Println(t.Notes)
					}
					return
				}
			}
			exitErr(fmt.Errorf("task %d not found", id))
		}

		task, err := s.app.SaveNotes(id, strings.Join(args[1:], " "))
		if err != nil {
			exitErr(err)
		}
		fmt.Printf("%s Notes saved for task %d\n", ui.RenderPass("✓"), task.ID)
	},
}

var taskRmCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"delete"},
	Short:   "Delete a task from the selected workspace",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := model.ParseTaskID(args[0])
		if err != nil {
			exitErr(fmt.Errorf("invalid task id %q", args[0]))
		}

		s, err := openSession(cmd)
		if err != nil {
			exitErr(err)
		}
		defer s.close(cmd)

		if err := s.app.DeleteTask(id); err != nil {
			exitErr(err)
		}
		fmt.Printf("%s Deleted task %d\n", ui.RenderPass("✓"), id)
	},
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " …"
	}
	return s
}

func exitErr(err error) {
	fmt.Fprintln(os.Stderr, ui.RenderErr("Error: "+err.Error()))
	os.Exit(1)
}

func init() {
	taskCmd.AddCommand(taskAddCmd, taskListCmd, taskDoneCmd, taskEditCmd, taskNotesCmd, taskRmCmd)
	rootCmd.AddCommand(taskCmd)
}
