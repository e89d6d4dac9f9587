package depgraph

import (
	"context"
	"fmt"
	"slices"
)

// Validation is the outcome of checking a proposed edge.
type Validation struct {
	Valid bool     `json:"valid"`
	Error string   `json:"error,omitempty"`
	Cycle []string `json:"cycle,omitempty"`
}

// ValidateDependency checks whether adding taskID -> dependsOnID keeps the
// graph acyclic. It never mutates anything. A rejected edge is reported in
// the result; the error return is only for store failures.
func (m *Manager) ValidateDependency(ctx context.Context, taskID, dependsOnID string) (*Validation, error) {
	return validate(ctx, m.backend, taskID, dependsOnID)
}

func validate(ctx context.Context, b Backend, taskID, dependsOnID string) (*Validation, error) {
	if taskID == dependsOnID {
		return &Validation{Error: MsgSelfDependency}, nil
	}

	edges, err := b.ListAllDependencies(ctx)
	if err != nil {
		return nil, fmt.Errorf("list dependencies: %w", err)
	}

	if cycle := findCycle(adjacency(edges), taskID, dependsOnID); cycle != nil {
		return &Validation{Error: MsgCircular, Cycle: cycle}, nil
	}
	return &Validation{Valid: true}, nil
}

// findCycle runs a DFS from start over adj with the hypothetical edge
// start -> proposed appended to start's own outgoing list. It returns the
// path from the first occurrence of the repeated node through that node
// again, or nil when no back edge is reachable.
func findCycle(adj map[string][]string, start, proposed string) []string {
	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	var path []string

	var dfs func(node string) []string
	dfs = func(node string) []string {
		visited[node] = true
		onStack[node] = true
		path = append(path, node)

		next := adj[node]
		if node == start {
			next = append(slices.Clone(next), proposed)
		}
		for _, n := range next {
			if onStack[n] {
				i := slices.Index(path, n)
				cycle := slices.Clone(path[i:])
				return append(cycle, n)
			}
			if !visited[n] {
				if c := dfs(n); c != nil {
					return c
				}
			}
		}

		onStack[node] = false
		path = path[:len(path)-1]
		return nil
	}
	return dfs(start)
}
