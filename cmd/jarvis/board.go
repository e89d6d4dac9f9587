package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/jarvis-tasks/jarvis/internal/client"
	"github.com/jarvis-tasks/jarvis/internal/model"
	"github.com/jarvis-tasks/jarvis/internal/ui"
	"github.com/spf13/cobra"
)

var readyCmd = &cobra.Command{
	Use:     "ready",
	Short:   "List tasks whose dependencies are all done",
	GroupID: "views",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		project, _ := cmd.Flags().GetString("project")
		limit, _ := cmd.Flags().GetInt("limit")
		resp, err := tasksClient.Ready(cmd.Context(), project, limit)
		if err != nil {
			return fmt.Errorf("listing ready tasks: %w", err)
		}
		return printTasksResponse(resp)
	},
}

var blockedCmd = &cobra.Command{
	Use:     "blocked",
	Short:   "List tasks waiting on unfinished dependencies",
	GroupID: "views",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		project, _ := cmd.Flags().GetString("project")
		limit, _ := cmd.Flags().GetInt("limit")
		resp, err := tasksClient.Blocked(cmd.Context(), project, limit)
		if err != nil {
			return fmt.Errorf("listing blocked tasks: %w", err)
		}
		return printTasksResponse(resp)
	},
}

func printTasksResponse(resp *client.ListTasksResponse) error {
	if jsonOutput {
		return printJSON(resp)
	}
	printTaskList(resp.Tasks, resp.Total)
	return nil
}

var statsCmd = &cobra.Command{
	Use:     "stats",
	Short:   "Show task counts per board column",
	GroupID: "views",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := tasksClient.Stats(cmd.Context())
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}
		if jsonOutput {
			return printJSON(stats)
		}
		printStats(stats)
		return nil
	},
}

func printStats(stats *model.BoardStats) {
	counts := map[model.Status]int{
		model.StatusBacklog:    stats.Backlog,
		model.StatusPlanning:   stats.Planning,
		model.StatusTodo:       stats.Todo,
		model.StatusInProgress: stats.InProgress,
		model.StatusReview:     stats.Review,
		model.StatusDone:       stats.Done,
	}
	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	for _, s := range model.Statuses {
		fmt.Fprintf(w, "%s\t%d\t\n", ui.RenderStatus(s), counts[s])
	}
	fmt.Fprintf(w, "%s\t%d\t\n", ui.RenderAccent("total"), stats.Total())
	w.Flush()
}

func init() {
	for _, c := range []*cobra.Command{readyCmd, blockedCmd} {
		c.Flags().StringP("project", "P", "", "only tasks in this project")
		c.Flags().Int("limit", 0, "maximum number of tasks to show")
	}
}
