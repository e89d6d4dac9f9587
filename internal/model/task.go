package model

import (
	"time"
)

// Status represents the current board column of a task.
type Status string

const (
	StatusBacklog    Status = "backlog"
	StatusPlanning   Status = "planning"
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusReview     Status = "review"
	StatusDone       Status = "done"
)

// Statuses lists every status in board order.
var Statuses = []Status{
	StatusBacklog,
	StatusPlanning,
	StatusTodo,
	StatusInProgress,
	StatusReview,
	StatusDone,
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsValid checks whether the status is a known value.
func (s Status) IsValid() bool {
	switch s {
	case StatusBacklog, StatusPlanning, StatusTodo, StatusInProgress, StatusReview, StatusDone:
		return true
	}
	return false
}

// IsBackward reports whether moving to s walks a task back toward the
// start of the pipeline.
func (s Status) IsBackward() bool {
	switch s {
	case StatusBacklog, StatusPlanning, StatusTodo:
		return true
	}
	return false
}

// Priority ranks how urgent a task is.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// IsValid checks whether the priority is a known value.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Rank orders priorities for sorting; higher is more urgent.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 3
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	}
	return 0
}

// Task is the core work-item record shown on the board.
type Task struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"project_id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      Status     `json:"status"`
	Priority    Priority   `json:"priority"`
	Assignee    string     `json:"assignee,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CreatedBy   string     `json:"created_by,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`

	// Relational data -- populated by queries, not stored in the tasks table.
	Labels       []string      `json:"labels,omitempty"`
	Dependencies []*Dependency `json:"dependencies,omitempty"`
	Comments     []*Comment    `json:"comments,omitempty"`
}

// TaskRef is the slim view of a task the dependency graph needs.
type TaskRef struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status Status `json:"status"`
}

// Ref returns the TaskRef for t.
func (t *Task) Ref() *TaskRef {
	return &TaskRef{ID: t.ID, Title: t.Title, Status: t.Status}
}

// Label returns the title when set, otherwise the id.
func (r *TaskRef) Label() string {
	if r.Title != "" {
		return r.Title
	}
	return r.ID
}
