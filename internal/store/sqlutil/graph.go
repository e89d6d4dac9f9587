package sqlutil

import (
	"context"
	"fmt"

	"github.com/jarvis-tasks/jarvis/internal/model"
)

// DefaultGraphLimit caps the node count of a graph view when no limit is given.
const DefaultGraphLimit = 500

// ListTasks runs filter against db and returns the page plus the total
// match count.
func (d Dialect) ListTasks(ctx context.Context, db Executor, filter model.TaskFilter) ([]*model.Task, int, error) {
	query, args := d.ListTasksQuery(filter)
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*model.Task
	var total int
	for rows.Next() {
		t, n, err := ScanTaskWithTotal(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan tasks: %w", err)
		}
		total = n
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("scan tasks: %w", err)
	}
	return tasks, total, nil
}

// TaskRefs loads id/title/status for ids in a single query.
func (d Dialect) TaskRefs(ctx context.Context, db Executor, ids []string) ([]*model.TaskRef, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := db.QueryContext(ctx,
		`SELECT id, title, status FROM tasks WHERE id IN (`+d.Placeholders(1, len(ids))+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return ScanAll(rows, ScanTaskRef)
}

// AllDependencies returns every edge, oldest first.
func AllDependencies(ctx context.Context, db Executor) ([]*model.Dependency, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+DependencyColumns+` FROM task_dependencies ORDER BY created_at, task_id, depends_on_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return ScanAll(rows, ScanDependency)
}

// Stats counts tasks per status.
func Stats(ctx context.Context, db Executor) (*model.BoardStats, error) {
	rows, err := db.QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	defer rows.Close()

	stats := &model.BoardStats{}
	for rows.Next() {
		var (
			status model.Status
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("stats: %w", err)
		}
		stats.Add(status, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	return stats, nil
}

// Graph assembles the board graph view: the most recently updated tasks
// with their labels and dependencies, the edges among them, and stats.
func (d Dialect) Graph(ctx context.Context, db Executor, limit int) (*model.GraphResponse, error) {
	if limit <= 0 {
		limit = DefaultGraphLimit
	}

	tasks, _, err := d.ListTasks(ctx, db, model.TaskFilter{Limit: limit, Sort: "-updated_at"})
	if err != nil {
		return nil, fmt.Errorf("graph: list tasks: %w", err)
	}

	idSet := make(map[string]struct{}, len(tasks))
	for _, t := range tasks {
		idSet[t.ID] = struct{}{}
	}

	// Labels for all tasks in one query.
	if len(tasks) > 0 {
		labelRows, err := db.QueryContext(ctx, `SELECT task_id, label FROM labels`)
		if err != nil {
			return nil, fmt.Errorf("graph: fetch labels: %w", err)
		}
		defer labelRows.Close()

		labelMap := make(map[string][]string)
		for labelRows.Next() {
			var taskID, label string
			if err := labelRows.Scan(&taskID, &label); err != nil {
				return nil, fmt.Errorf("graph: scan label: %w", err)
			}
			labelMap[taskID] = append(labelMap[taskID], label)
		}
		if err := labelRows.Err(); err != nil {
			return nil, fmt.Errorf("graph: label rows: %w", err)
		}
		for _, t := range tasks {
			t.Labels = labelMap[t.ID]
		}
	}

	deps, err := AllDependencies(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("graph: fetch deps: %w", err)
	}
	edges := []*model.GraphEdge{}
	depMap := make(map[string][]*model.Dependency)
	for _, dep := range deps {
		depMap[dep.TaskID] = append(depMap[dep.TaskID], dep)

		// Only include edges where both endpoints are in the node set.
		_, srcOK := idSet[dep.TaskID]
		_, tgtOK := idSet[dep.DependsOnID]
		if srcOK && tgtOK {
			edges = append(edges, &model.GraphEdge{Source: dep.TaskID, Target: dep.DependsOnID})
		}
	}
	for _, t := range tasks {
		t.Dependencies = depMap[t.ID]
	}

	stats, err := Stats(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("graph: %w", err)
	}

	if tasks == nil {
		tasks = []*model.Task{}
	}
	return &model.GraphResponse{Nodes: tasks, Edges: edges, Stats: stats}, nil
}
