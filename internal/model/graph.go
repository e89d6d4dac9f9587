package model

// GraphEdge represents a dependency relationship as a graph edge.
type GraphEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// BoardStats holds task counts per board column.
type BoardStats struct {
	Backlog    int `json:"backlog"`
	Planning   int `json:"planning"`
	Todo       int `json:"todo"`
	InProgress int `json:"in_progress"`
	Review     int `json:"review"`
	Done       int `json:"done"`
}

// Add increments the counter for status s by n.
func (b *BoardStats) Add(s Status, n int) {
	switch s {
	case StatusBacklog:
		b.Backlog += n
	case StatusPlanning:
		b.Planning += n
	case StatusTodo:
		b.Todo += n
	case StatusInProgress:
		b.InProgress += n
	case StatusReview:
		b.Review += n
	case StatusDone:
		b.Done += n
	}
}

// Total returns the number of tasks across all columns.
func (b *BoardStats) Total() int {
	return b.Backlog + b.Planning + b.Todo + b.InProgress + b.Review + b.Done
}

// GraphResponse is the response for the dependency graph view.
type GraphResponse struct {
	Nodes []*Task        `json:"nodes"`
	Edges []*GraphEdge   `json:"edges"`
	Depth map[string]int `json:"depth,omitempty"`
	Stats *BoardStats    `json:"stats"`
}
