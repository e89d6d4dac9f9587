package model

// TaskFilter holds criteria for querying tasks.
type TaskFilter struct {
	Status    []Status `json:"status,omitempty"`
	ProjectID string   `json:"project_id,omitempty"`
	Priority  Priority `json:"priority,omitempty"`
	Assignee  string   `json:"assignee,omitempty"`
	Labels    []string `json:"labels,omitempty"`
	Search    string   `json:"search,omitempty"`  // substring match on title/description
	Ready     bool     `json:"ready,omitempty"`   // every dependency is done
	Blocked   bool     `json:"blocked,omitempty"` // at least one dependency is not done
	Sort      string   `json:"sort,omitempty"`    // e.g. "-priority", "due_date"; prefix "-" = descending
	Limit     int      `json:"limit,omitempty"`
	Offset    int      `json:"offset,omitempty"`
}
