package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jarvis-tasks/jarvis/internal/client"
	"github.com/jarvis-tasks/jarvis/internal/model"
	"github.com/jarvis-tasks/jarvis/internal/ui"
	"github.com/spf13/cobra"
)

var depCmd = &cobra.Command{
	Use:     "dep",
	Short:   "Manage task dependencies",
	GroupID: "graph",
}

var depAddCmd = &cobra.Command{
	Use:   "add <task-id> <depends-on-id>",
	Short: "Make a task depend on another",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dep, err := tasksClient.AddDependency(cmd.Context(), args[0], args[1], actor)
		if err != nil {
			var apiErr *client.APIError
			if errors.As(err, &apiErr) && len(apiErr.Cycle) > 0 && !jsonOutput {
				fmt.Fprintln(stdout, ui.RenderError(apiErr.Message))
				fmt.Fprintf(stdout, "  %s\n", strings.Join(apiErr.Cycle, " -> "))
				return errors.New(apiErr.Message)
			}
			return fmt.Errorf("adding dependency: %w", err)
		}
		if jsonOutput {
			return printJSON(dep)
		}
		fmt.Fprintf(stdout, "%s now depends on %s\n", dep.TaskID, dep.DependsOnID)
		return nil
	},
}

var depRemoveCmd = &cobra.Command{
	Use:   "remove <task-id> <depends-on-id>",
	Short: "Remove a dependency",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := tasksClient.RemoveDependency(cmd.Context(), args[0], args[1], actor); err != nil {
			return fmt.Errorf("removing dependency: %w", err)
		}
		fmt.Fprintln(stdout, "Removed dependency")
		return nil
	},
}

var depListCmd = &cobra.Command{
	Use:   "list <task-id>",
	Short: "List what a task depends on and what depends on it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := tasksClient.GetDependencies(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("listing dependencies: %w", err)
		}
		if jsonOutput {
			return printJSON(info)
		}
		printIDs("Depends on", info.Dependencies)
		printIDs("Needed by", info.Dependents)
		fmt.Fprintf(stdout, "Depth: %d\n", info.Depth)
		return nil
	},
}

func printIDs(heading string, ids []string) {
	if len(ids) == 0 {
		fmt.Fprintf(stdout, "%s: %s\n", heading, ui.RenderMuted("none"))
		return
	}
	fmt.Fprintf(stdout, "%s: %s\n", heading, strings.Join(ids, ", "))
}

var depCheckCmd = &cobra.Command{
	Use:   "check <task-id> <depends-on-id>",
	Short: "Check whether a dependency could be added, without adding it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := tasksClient.ValidateDependency(cmd.Context(), args[0], args[1])
		if err != nil {
			return fmt.Errorf("checking dependency: %w", err)
		}
		if jsonOutput {
			return printJSON(v)
		}
		if v.Valid {
			fmt.Fprintln(stdout, "ok")
			return nil
		}
		fmt.Fprintln(stdout, ui.RenderError(v.Error))
		if len(v.Cycle) > 0 {
			fmt.Fprintf(stdout, "  %s\n", strings.Join(v.Cycle, " -> "))
		}
		return errors.New(v.Error)
	},
}

var depDepthCmd = &cobra.Command{
	Use:   "depth <task-id>",
	Short: "Print the length of the longest dependency chain below a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := tasksClient.GetDependencies(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("getting depth: %w", err)
		}
		if jsonOutput {
			return printJSON(map[string]any{"task_id": args[0], "depth": info.Depth})
		}
		fmt.Fprintln(stdout, info.Depth)
		return nil
	},
}

var depCanCmd = &cobra.Command{
	Use:   "can <task-id> <status>",
	Short: "Check whether a task may move to a status",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		check, err := tasksClient.CheckTransition(cmd.Context(), args[0], model.Status(args[1]))
		if err != nil {
			return fmt.Errorf("checking transition: %w", err)
		}
		if jsonOutput {
			return printJSON(check)
		}
		if check.Allowed {
			fmt.Fprintln(stdout, "ok")
			return nil
		}
		printBlocked(check.Reason, check.BlockingTasks)
		return errors.New("status change blocked")
	},
}

func init() {
	depCmd.AddCommand(depAddCmd)
	depCmd.AddCommand(depRemoveCmd)
	depCmd.AddCommand(depListCmd)
	depCmd.AddCommand(depCheckCmd)
	depCmd.AddCommand(depDepthCmd)
	depCmd.AddCommand(depCanCmd)
}
