package depgraph

import (
	"context"
	"fmt"
)

// CalculateDepth returns the length of the longest dependency chain below
// taskID: 0 when it has no dependencies, otherwise one more than the
// deepest of its direct dependencies.
func (m *Manager) CalculateDepth(ctx context.Context, taskID string) (int, error) {
	edges, err := m.backend.ListAllDependencies(ctx)
	if err != nil {
		return 0, fmt.Errorf("list dependencies: %w", err)
	}
	return depthOf(adjacency(edges), taskID, make(map[string]int))
}

// CalculateDepths returns the depth of every task that appears in the graph,
// sharing one edge fetch and one memo table.
func (m *Manager) CalculateDepths(ctx context.Context) (map[string]int, error) {
	edges, err := m.backend.ListAllDependencies(ctx)
	if err != nil {
		return nil, fmt.Errorf("list dependencies: %w", err)
	}
	adj := adjacency(edges)
	memo := make(map[string]int)
	for _, e := range edges {
		for _, id := range []string{e.TaskID, e.DependsOnID} {
			if _, err := depthOf(adj, id, memo); err != nil {
				return nil, err
			}
		}
	}
	return memo, nil
}

func depthOf(adj map[string][]string, taskID string, memo map[string]int) (int, error) {
	visiting := make(map[string]bool)

	var walk func(id string) (int, error)
	walk = func(id string) (int, error) {
		if d, ok := memo[id]; ok {
			return d, nil
		}
		if visiting[id] {
			return 0, fmt.Errorf("depth of %s: %w", taskID, ErrCycle)
		}
		visiting[id] = true

		depth := 0
		for _, dep := range adj[id] {
			d, err := walk(dep)
			if err != nil {
				return 0, err
			}
			depth = max(depth, d+1)
		}

		visiting[id] = false
		memo[id] = depth
		return depth, nil
	}
	return walk(taskID)
}
