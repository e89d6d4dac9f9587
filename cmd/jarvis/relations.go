package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/jarvis-tasks/jarvis/internal/client"
	"github.com/spf13/cobra"
)

var labelCmd = &cobra.Command{
	Use:     "label",
	Short:   "Manage task labels",
	GroupID: "tasks",
}

var labelAddCmd = &cobra.Command{
	Use:   "add <task-id> <label>...",
	Short: "Add labels to a task",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, label := range args[1:] {
			if _, err := tasksClient.AddLabel(cmd.Context(), args[0], label, actor); err != nil {
				return fmt.Errorf("adding label %q: %w", label, err)
			}
		}
		fmt.Fprintf(stdout, "Labeled %s: %s\n", args[0], strings.Join(args[1:], ", "))
		return nil
	},
}

var labelRemoveCmd = &cobra.Command{
	Use:   "remove <task-id> <label>...",
	Short: "Remove labels from a task",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, label := range args[1:] {
			if err := tasksClient.RemoveLabel(cmd.Context(), args[0], label, actor); err != nil {
				return fmt.Errorf("removing label %q: %w", label, err)
			}
		}
		fmt.Fprintf(stdout, "Unlabeled %s: %s\n", args[0], strings.Join(args[1:], ", "))
		return nil
	},
}

var commentCmd = &cobra.Command{
	Use:     "comment <task-id> <text>",
	Short:   "Comment on a task",
	GroupID: "tasks",
	Args:    cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := tasksClient.AddComment(cmd.Context(), args[0], actor, strings.Join(args[1:], " "))
		if err != nil {
			return fmt.Errorf("adding comment: %w", err)
		}
		if jsonOutput {
			return printJSON(c)
		}
		fmt.Fprintf(stdout, "Comment #%d added to %s\n", c.ID, c.TaskID)
		return nil
	},
}

var projectCmd = &cobra.Command{
	Use:     "project",
	Short:   "Manage projects",
	GroupID: "tasks",
}

var projectCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		description, _ := cmd.Flags().GetString("description")
		color, _ := cmd.Flags().GetString("color")
		p, err := tasksClient.CreateProject(cmd.Context(), &client.CreateProjectRequest{
			Name:        args[0],
			Description: description,
			Color:       color,
		})
		if err != nil {
			return fmt.Errorf("creating project: %w", err)
		}
		if jsonOutput {
			return printJSON(p)
		}
		fmt.Fprintf(stdout, "Created project %s (%s)\n", p.ID, p.Name)
		return nil
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		projects, err := tasksClient.ListProjects(cmd.Context())
		if err != nil {
			return fmt.Errorf("listing projects: %w", err)
		}
		if jsonOutput {
			return printJSON(projects)
		}
		if len(projects) == 0 {
			fmt.Fprintln(stdout, "No projects.")
			return nil
		}
		w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tCOLOR\tDESCRIPTION")
		for _, p := range projects {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Color, p.Description)
		}
		return w.Flush()
	},
}

var projectDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a project; its tasks are kept",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := tasksClient.DeleteProject(cmd.Context(), args[0], actor); err != nil {
			return fmt.Errorf("deleting project: %w", err)
		}
		fmt.Fprintf(stdout, "Deleted project %s\n", args[0])
		return nil
	},
}

func init() {
	labelCmd.AddCommand(labelAddCmd)
	labelCmd.AddCommand(labelRemoveCmd)

	projectCreateCmd.Flags().StringP("description", "d", "", "project description")
	projectCreateCmd.Flags().String("color", "", "hex color, e.g. #3366ff")
	projectCmd.AddCommand(projectCreateCmd)
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectDeleteCmd)
}
