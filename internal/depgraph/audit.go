package depgraph

import (
	"context"
	"fmt"
	"slices"
)

// Audit summarizes the health of the whole stored graph.
type Audit struct {
	Tasks    int      `json:"tasks"`
	Edges    int      `json:"edges"`
	Cycle    []string `json:"cycle,omitempty"`
	MaxDepth int      `json:"max_depth"`
	Deepest  string   `json:"deepest,omitempty"`
}

// Audit scans every edge for a cycle and, when the graph is acyclic, finds
// the deepest task. Writes made before AddDependency took its lock could
// have left a cycle behind; this is how one is found.
func (m *Manager) Audit(ctx context.Context) (*Audit, error) {
	edges, err := m.backend.ListAllDependencies(ctx)
	if err != nil {
		return nil, fmt.Errorf("list dependencies: %w", err)
	}
	adj := adjacency(edges)

	nodes := make(map[string]struct{})
	for _, e := range edges {
		nodes[e.TaskID] = struct{}{}
		nodes[e.DependsOnID] = struct{}{}
	}
	ids := make([]string, 0, len(nodes))
	for id := range nodes {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	a := &Audit{Tasks: len(ids), Edges: len(edges)}
	if a.Cycle = detectCycle(adj, ids); a.Cycle != nil {
		return a, nil
	}

	memo := make(map[string]int)
	for _, id := range ids {
		d, err := depthOf(adj, id, memo)
		if err != nil {
			return nil, err
		}
		if d > a.MaxDepth {
			a.MaxDepth, a.Deepest = d, id
		}
	}
	return a, nil
}

// detectCycle colors nodes white/gray/black and returns the first cycle
// found, closed on its starting node.
func detectCycle(adj map[string][]string, ids []string) []string {
	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int)
	var path []string

	var dfs func(node string) []string
	dfs = func(node string) []string {
		color[node] = gray
		path = append(path, node)
		for _, next := range adj[node] {
			switch color[next] {
			case gray:
				i := slices.Index(path, next)
				return append(slices.Clone(path[i:]), next)
			case white:
				if c := dfs(next); c != nil {
					return c
				}
			}
		}
		color[node] = black
		path = path[:len(path)-1]
		return nil
	}

	for _, id := range ids {
		if color[id] == white {
			if c := dfs(id); c != nil {
				return c
			}
		}
	}
	return nil
}
