package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jarvis-tasks/jarvis/internal/depgraph"
	"github.com/jarvis-tasks/jarvis/internal/events"
	"github.com/jarvis-tasks/jarvis/internal/model"
	"github.com/jarvis-tasks/jarvis/internal/ui"
)

const timeLayout = "2006-01-02 15:04:05"

var stdout io.Writer = os.Stdout

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Fprintln(stdout, string(data))
	return nil
}

func printTask(task *model.Task) {
	fmt.Fprintf(stdout, "ID:           %s\n", task.ID)
	fmt.Fprintf(stdout, "Title:        %s\n", task.Title)
	fmt.Fprintf(stdout, "Status:       %s\n", ui.RenderStatus(task.Status))
	fmt.Fprintf(stdout, "Priority:     %s\n", ui.RenderPriority(task.Priority))
	if task.ProjectID != "" {
		fmt.Fprintf(stdout, "Project:      %s\n", task.ProjectID)
	}
	if task.Assignee != "" {
		fmt.Fprintf(stdout, "Assignee:     %s\n", task.Assignee)
	}
	if task.Description != "" {
		fmt.Fprintf(stdout, "Description:  %s\n", task.Description)
	}
	if len(task.Labels) > 0 {
		fmt.Fprintf(stdout, "Labels:       %s\n", strings.Join(task.Labels, ", "))
	}
	if len(task.Dependencies) > 0 {
		ids := make([]string, len(task.Dependencies))
		for i, d := range task.Dependencies {
			ids[i] = d.DependsOnID
		}
		fmt.Fprintf(stdout, "Depends On:   %s\n", strings.Join(ids, ", "))
	}
	if task.DueDate != nil {
		fmt.Fprintf(stdout, "Due:          %s\n", task.DueDate.Format("2006-01-02"))
	}
	if task.CreatedBy != "" {
		fmt.Fprintf(stdout, "Created By:   %s\n", task.CreatedBy)
	}
	if !task.CreatedAt.IsZero() {
		fmt.Fprintf(stdout, "Created At:   %s\n", task.CreatedAt.Local().Format(timeLayout))
	}
	if task.CompletedAt != nil {
		fmt.Fprintf(stdout, "Completed At: %s\n", task.CompletedAt.Local().Format(timeLayout))
	}
}

func printTaskList(tasks []*model.Task, total int) {
	if len(tasks) == 0 {
		fmt.Fprintln(stdout, "No tasks found.")
		return
	}
	titleWidth := max(20, ui.Width()-60)
	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tPRIORITY\tTITLE\tASSIGNEE")
	for _, t := range tasks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			t.ID,
			ui.RenderStatus(t.Status),
			ui.RenderPriority(t.Priority),
			ui.Truncate(t.Title, titleWidth),
			t.Assignee,
		)
	}
	w.Flush()
	fmt.Fprintf(stdout, "\n%d tasks (%d total)\n", len(tasks), total)
}

// printBlocked explains why a status change was refused.
func printBlocked(reason string, blocking []*depgraph.BlockingTask) {
	fmt.Fprintln(stdout, ui.RenderError(reason))
	for _, b := range blocking {
		fmt.Fprintf(stdout, "  %s  %s  %s\n", b.ID, ui.RenderStatus(b.Status), b.Title)
	}
}

func printEvent(e *model.Event) {
	line := fmt.Sprintf("%s  %-26s %s", e.CreatedAt.Local().Format(timeLayout), e.Topic, e.TaskID)
	if d := describeEvent(e); d != "" {
		line += "  " + d
	}
	if e.Actor != "" {
		line += "  " + ui.RenderMuted(e.Actor)
	}
	fmt.Fprintln(stdout, line)
}

// describeEvent summarizes the payload of the topics worth a detail.
func describeEvent(e *model.Event) string {
	switch e.Topic {
	case events.TopicTaskUpdated:
		var p events.TaskUpdated
		if e.Decode(&p) != nil || len(p.Changes) == 0 {
			return ""
		}
		if v, ok := p.Changes["status"]; ok {
			return fmt.Sprintf("status → %v", v)
		}
		fields := make([]string, 0, len(p.Changes))
		for f := range p.Changes {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		return "changed " + strings.Join(fields, ", ")
	case events.TopicLabelAdded, events.TopicLabelRemoved:
		var p events.LabelAdded
		if e.Decode(&p) != nil {
			return ""
		}
		return p.Label
	case events.TopicDependencyAdded:
		var p events.DependencyAdded
		if e.Decode(&p) != nil || p.Dependency == nil {
			return ""
		}
		return "→ " + p.Dependency.DependsOnID
	case events.TopicDependencyRemoved:
		var p events.DependencyRemoved
		if e.Decode(&p) != nil {
			return ""
		}
		return "✗ " + p.DependsOnID
	}
	return ""
}

func formatAge(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
