package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/jarvis-tasks/jarvis/internal/model"
	"github.com/jarvis-tasks/jarvis/internal/store"
)

// FormatVersion is written in every export header.
const FormatVersion = "1"

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version         string    `json:"version"`
	Type            string    `json:"type"`
	Timestamp       time.Time `json:"timestamp"`
	ProjectCount    int       `json:"project_count"`
	TaskCount       int       `json:"task_count"`
	DependencyCount int       `json:"dependency_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ExportJSONL writes the whole board as JSONL to w: a header line, then
// projects sorted by ID, then tasks sorted by ID with their labels,
// dependencies, and comments embedded.
func ExportJSONL(ctx context.Context, s store.Store, w io.Writer) error {
	projects, err := s.ListProjects(ctx)
	if err != nil {
		return fmt.Errorf("list projects: %w", err)
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].ID < projects[j].ID })

	tasks, _, err := s.ListTasks(ctx, model.TaskFilter{Sort: "created_at"})
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}

	edges := 0
	for _, t := range tasks {
		if t.Labels, err = s.GetLabels(ctx, t.ID); err != nil {
			return fmt.Errorf("get labels for %s: %w", t.ID, err)
		}
		if t.Dependencies, err = s.GetDependencies(ctx, t.ID); err != nil {
			return fmt.Errorf("get dependencies for %s: %w", t.ID, err)
		}
		if t.Comments, err = s.GetComments(ctx, t.ID); err != nil {
			return fmt.Errorf("get comments for %s: %w", t.ID, err)
		}
		edges += len(t.Dependencies)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:         FormatVersion,
		Type:            "header",
		Timestamp:       time.Now().UTC(),
		ProjectCount:    len(projects),
		TaskCount:       len(tasks),
		DependencyCount: edges,
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, p := range projects {
		if err := enc.Encode(record{Type: "project", Data: p}); err != nil {
			return fmt.Errorf("encode project %s: %w", p.ID, err)
		}
	}
	for _, t := range tasks {
		if err := enc.Encode(record{Type: "task", Data: t}); err != nil {
			return fmt.Errorf("encode task %s: %w", t.ID, err)
		}
	}
	return nil
}
