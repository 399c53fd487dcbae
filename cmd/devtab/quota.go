package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/devtab/devtab/internal/ui"
)

var quotaCmd = &cobra.Command{
	Use:     "quota",
	GroupID: "sync",
	Short:   "Show free tier usage and limits",
	Run: func(cmd *cobra.Command, args []string) {
		s, err := openSession(cmd)
		if err != nil {
			exitErr(err)
		}
		defer s.close(cmd)

		q := s.app.Quota()
		fmt.Println(ui.Heading.Render("Quota"))
		printQuotaLine("Tasks", q.TasksCount, q.MaxTasks)
		printQuotaLine("Workspaces", q.WorkspacesCount, q.MaxWorkspaces)
		printQuotaLine("Reads today", q.ReadsToday, q.MaxReadsPerDay)
		printQuotaLine("Writes today", q.WritesToday, q.MaxWritesPerDay)
		fmt.Println(ui.RenderMuted("Daily counters reset at midnight local time (" + q.LastResetDate + ")"))
	},
}

func printQuotaLine(label string, used, max int) {
	line := fmt.Sprintf("%-13s %d/%d", label, used, max)
	switch {
	case used >= max:
		fmt.Println(ui.RenderErr(line))
	case float64(used) >= float64(max)*0.8:
		fmt.Println(ui.RenderWarn(line))
	default:
		fmt.Println(line)
	}
}

func init() {
	rootCmd.AddCommand(quotaCmd)
}
