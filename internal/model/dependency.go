package model

import "time"

// Dependency is a directed "depends-on" edge: TaskID cannot be considered
// complete until DependsOnID is complete.
type Dependency struct {
	TaskID      string    `json:"task_id"`
	DependsOnID string    `json:"depends_on_id"`
	CreatedAt   time.Time `json:"created_at"`
	CreatedBy   string    `json:"created_by,omitempty"`
}
