package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/jarvis-tasks/jarvis/internal/client"
	"github.com/jarvis-tasks/jarvis/internal/model"
	"github.com/spf13/cobra"
)

// parseDueDate accepts YYYY-MM-DD or RFC 3339. "none" clears the date.
func parseDueDate(s string) (*time.Time, error) {
	if s == "none" {
		return &time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("invalid due date %q: want YYYY-MM-DD", s)
	}
	return &t, nil
}

// explainBlocked prints the blocking tasks of a refused status change and
// returns a short error for the exit status.
func explainBlocked(err error) error {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Reason != "" {
		if jsonOutput {
			_ = printJSON(map[string]any{
				"error":          apiErr.Message,
				"reason":         apiErr.Reason,
				"blocking_tasks": apiErr.BlockingTasks,
			})
		} else {
			printBlocked(apiErr.Reason, apiErr.BlockingTasks)
		}
		return errors.New(apiErr.Message)
	}
	return err
}

var createCmd = &cobra.Command{
	Use:     "create <title>",
	Short:   "Create a new task",
	GroupID: "tasks",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		description, _ := cmd.Flags().GetString("description")
		project, _ := cmd.Flags().GetString("project")
		status, _ := cmd.Flags().GetString("status")
		priority, _ := cmd.Flags().GetString("priority")
		assignee, _ := cmd.Flags().GetString("assignee")
		labels, _ := cmd.Flags().GetStringSlice("label")
		due, _ := cmd.Flags().GetString("due")
		deps, _ := cmd.Flags().GetStringSlice("depends-on")

		req := &client.CreateTaskRequest{
			Title:       args[0],
			Description: description,
			ProjectID:   project,
			Status:      status,
			Priority:    priority,
			Assignee:    assignee,
			Labels:      labels,
			CreatedBy:   actor,
		}
		if due != "" {
			d, err := parseDueDate(due)
			if err != nil {
				return err
			}
			req.DueDate = d
		}

		ctx := cmd.Context()
		task, err := tasksClient.CreateTask(ctx, req)
		if err != nil {
			return fmt.Errorf("creating task: %w", err)
		}
		for _, dep := range deps {
			d, err := tasksClient.AddDependency(ctx, task.ID, dep, actor)
			if err != nil {
				return fmt.Errorf("task %s created, but dependency on %s failed: %w", task.ID, dep, err)
			}
			task.Dependencies = append(task.Dependencies, d)
		}

		if jsonOutput {
			return printJSON(task)
		}
		printTask(task)
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:     "show <id>",
	Short:   "Show a task with its dependencies",
	GroupID: "tasks",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		withEvents, _ := cmd.Flags().GetBool("events")

		task, err := tasksClient.GetTask(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("getting task: %w", err)
		}
		comments, err := tasksClient.GetComments(cmd.Context(), task.ID)
		if err != nil {
			return fmt.Errorf("getting comments: %w", err)
		}
		task.Comments = comments

		var evts []*model.Event
		if withEvents {
			if evts, err = tasksClient.GetEvents(cmd.Context(), task.ID); err != nil {
				return fmt.Errorf("getting events: %w", err)
			}
		}

		if jsonOutput {
			if withEvents {
				return printJSON(map[string]any{"task": task, "events": evts})
			}
			return printJSON(task)
		}
		printTask(task)
		if len(comments) > 0 {
			fmt.Fprintln(stdout, "\nComments:")
			for _, c := range comments {
				fmt.Fprintf(stdout, "  [%s] %s: %s\n", formatAge(c.CreatedAt), c.Author, c.Text)
			}
		}
		if len(evts) > 0 {
			fmt.Fprintln(stdout, "\nHistory:")
			for _, e := range evts {
				printEvent(e)
			}
		}
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List tasks",
	GroupID: "tasks",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req := &client.ListTasksRequest{}
		req.Status, _ = cmd.Flags().GetStringSlice("status")
		req.Labels, _ = cmd.Flags().GetStringSlice("label")
		req.ProjectID, _ = cmd.Flags().GetString("project")
		req.Priority, _ = cmd.Flags().GetString("priority")
		req.Assignee, _ = cmd.Flags().GetString("assignee")
		req.Search, _ = cmd.Flags().GetString("search")
		req.Sort, _ = cmd.Flags().GetString("sort")
		req.Ready, _ = cmd.Flags().GetBool("ready")
		req.Blocked, _ = cmd.Flags().GetBool("blocked")
		req.Limit, _ = cmd.Flags().GetInt("limit")
		req.Offset, _ = cmd.Flags().GetInt("offset")

		resp, err := tasksClient.ListTasks(cmd.Context(), req)
		if err != nil {
			return fmt.Errorf("listing tasks: %w", err)
		}
		if jsonOutput {
			return printJSON(resp)
		}
		printTaskList(resp.Tasks, resp.Total)
		return nil
	},
}

var updateCmd = &cobra.Command{
	Use:     "update <id>",
	Short:   "Update a task",
	GroupID: "tasks",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := &client.UpdateTaskRequest{Actor: actor}
		for flag, dst := range map[string]**string{
			"title":       &req.Title,
			"description": &req.Description,
			"project":     &req.ProjectID,
			"status":      &req.Status,
			"priority":    &req.Priority,
			"assignee":    &req.Assignee,
		} {
			if cmd.Flags().Changed(flag) {
				v, _ := cmd.Flags().GetString(flag)
				*dst = &v
			}
		}
		if cmd.Flags().Changed("due") {
			v, _ := cmd.Flags().GetString("due")
			d, err := parseDueDate(v)
			if err != nil {
				return err
			}
			req.DueDate = d
		}
		if cmd.Flags().Changed("label") {
			req.Labels, _ = cmd.Flags().GetStringSlice("label")
			if req.Labels == nil {
				req.Labels = []string{}
			}
		}

		task, err := tasksClient.UpdateTask(cmd.Context(), args[0], req)
		if err != nil {
			return explainBlocked(err)
		}
		if jsonOutput {
			return printJSON(task)
		}
		printTask(task)
		return nil
	},
}

var doneCmd = &cobra.Command{
	Use:     "done <id>...",
	Short:   "Mark tasks done",
	GroupID: "tasks",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		done := string(model.StatusDone)
		for _, id := range args {
			task, err := tasksClient.UpdateTask(cmd.Context(), id, &client.UpdateTaskRequest{Status: &done, Actor: actor})
			if err != nil {
				return fmt.Errorf("%s: %w", id, explainBlocked(err))
			}
			if jsonOutput {
				if err := printJSON(task); err != nil {
					return err
				}
				continue
			}
			fmt.Fprintf(stdout, "Done %s: %s\n", task.ID, task.Title)
		}
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:     "delete <id>...",
	Short:   "Delete tasks and their dependency edges",
	GroupID: "tasks",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, id := range args {
			if err := tasksClient.DeleteTask(cmd.Context(), id, actor); err != nil {
				return fmt.Errorf("deleting %s: %w", id, err)
			}
			fmt.Fprintf(stdout, "Deleted %s\n", id)
		}
		return nil
	},
}

func init() {
	createCmd.Flags().StringP("description", "d", "", "task description")
	createCmd.Flags().StringP("project", "P", "", "project ID")
	createCmd.Flags().StringP("status", "s", "", "initial status (default backlog)")
	createCmd.Flags().StringP("priority", "p", "", "priority: low, medium, high, urgent (default medium)")
	createCmd.Flags().StringP("assignee", "a", "", "assignee")
	createCmd.Flags().StringSliceP("label", "l", nil, "labels (repeatable)")
	createCmd.Flags().String("due", "", "due date (YYYY-MM-DD)")
	createCmd.Flags().StringSlice("depends-on", nil, "IDs of tasks this one depends on")

	showCmd.Flags().Bool("events", false, "include the change history")

	listCmd.Flags().StringSliceP("status", "s", nil, "filter by status (repeatable)")
	listCmd.Flags().StringSliceP("label", "l", nil, "filter by label (all must match)")
	listCmd.Flags().StringP("project", "P", "", "filter by project ID")
	listCmd.Flags().StringP("priority", "p", "", "filter by priority")
	listCmd.Flags().StringP("assignee", "a", "", "filter by assignee")
	listCmd.Flags().StringP("search", "q", "", "search title and description")
	listCmd.Flags().String("sort", "", "sort field, prefix with - for descending (e.g. -priority)")
	listCmd.Flags().Bool("ready", false, "only tasks whose dependencies are all done")
	listCmd.Flags().Bool("blocked", false, "only tasks with unfinished dependencies")
	listCmd.Flags().Int("limit", 0, "maximum number of tasks")
	listCmd.Flags().Int("offset", 0, "number of tasks to skip")

	updateCmd.Flags().String("title", "", "new title")
	updateCmd.Flags().StringP("description", "d", "", "new description")
	updateCmd.Flags().StringP("project", "P", "", "new project ID (empty to clear)")
	updateCmd.Flags().StringP("status", "s", "", "new status")
	updateCmd.Flags().StringP("priority", "p", "", "new priority")
	updateCmd.Flags().StringP("assignee", "a", "", "new assignee")
	updateCmd.Flags().String("due", "", "new due date (YYYY-MM-DD, or none)")
	updateCmd.Flags().StringSliceP("label", "l", nil, "replace labels")
}
