// Package client provides the interface the jarvis CLI uses to reach a task
// board server, and an HTTP/JSON implementation of it.
package client

import (
	"context"
	"time"

	"github.com/jarvis-tasks/jarvis/internal/depgraph"
	"github.com/jarvis-tasks/jarvis/internal/model"
)

// TasksClient is implemented by HTTPClient.
type TasksClient interface {
	// Task CRUD
	CreateTask(ctx context.Context, req *CreateTaskRequest) (*model.Task, error)
	GetTask(ctx context.Context, id string) (*model.Task, error)
	ListTasks(ctx context.Context, req *ListTasksRequest) (*ListTasksResponse, error)
	UpdateTask(ctx context.Context, id string, req *UpdateTaskRequest) (*model.Task, error)
	DeleteTask(ctx context.Context, id, actor string) error
	Ready(ctx context.Context, projectID string, limit int) (*ListTasksResponse, error)
	Blocked(ctx context.Context, projectID string, limit int) (*ListTasksResponse, error)

	// Dependencies
	AddDependency(ctx context.Context, taskID, dependsOnID, createdBy string) (*model.Dependency, error)
	RemoveDependency(ctx context.Context, taskID, dependsOnID, actor string) error
	GetDependencies(ctx context.Context, taskID string) (*DependencyInfo, error)
	ValidateDependency(ctx context.Context, taskID, dependsOnID string) (*depgraph.Validation, error)
	CheckTransition(ctx context.Context, taskID string, status model.Status) (*depgraph.TransitionCheck, error)

	// Labels
	AddLabel(ctx context.Context, taskID, label, actor string) (*model.Task, error)
	RemoveLabel(ctx context.Context, taskID, label, actor string) error
	GetLabels(ctx context.Context, taskID string) ([]string, error)

	// Comments and history
	AddComment(ctx context.Context, taskID, author, text string) (*model.Comment, error)
	GetComments(ctx context.Context, taskID string) ([]*model.Comment, error)
	GetEvents(ctx context.Context, taskID string) ([]*model.Event, error)

	// Projects
	CreateProject(ctx context.Context, req *CreateProjectRequest) (*model.Project, error)
	ListProjects(ctx context.Context) ([]*model.Project, error)
	DeleteProject(ctx context.Context, id, actor string) error

	// Board views
	Graph(ctx context.Context, limit int) (*model.GraphResponse, error)
	Stats(ctx context.Context) (*model.BoardStats, error)

	// Health
	Health(ctx context.Context) (string, error)

	// Lifecycle
	Close() error
}

// CreateTaskRequest holds parameters for creating a task. Empty status and
// priority take the server defaults.
type CreateTaskRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	ProjectID   string     `json:"project_id,omitempty"`
	Status      string     `json:"status,omitempty"`
	Priority    string     `json:"priority,omitempty"`
	Assignee    string     `json:"assignee,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Labels      []string   `json:"labels,omitempty"`
	CreatedBy   string     `json:"created_by,omitempty"`
}

// ListTasksRequest holds parameters for listing tasks.
type ListTasksRequest struct {
	Status    []string
	ProjectID string
	Priority  string
	Assignee  string
	Labels    []string
	Search    string
	Ready     bool
	Blocked   bool
	Sort      string
	Limit     int
	Offset    int
}

// ListTasksResponse is the response from ListTasks, Ready, and Blocked.
type ListTasksResponse struct {
	Tasks []*model.Task `json:"tasks"`
	Total int           `json:"total"`
}

// UpdateTaskRequest holds optional parameters for updating a task.
// Nil pointer fields mean "don't change". A zero DueDate clears it.
type UpdateTaskRequest struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	ProjectID   *string    `json:"project_id,omitempty"`
	Status      *string    `json:"status,omitempty"`
	Priority    *string    `json:"priority,omitempty"`
	Assignee    *string    `json:"assignee,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Labels      []string   `json:"labels,omitempty"`
	Actor       string     `json:"actor,omitempty"`
}

// DependencyInfo is a task's position in the dependency graph.
type DependencyInfo struct {
	Dependencies []string `json:"dependencies"`
	Dependents   []string `json:"dependents"`
	Depth        int      `json:"depth"`
}

// CreateProjectRequest holds parameters for creating a project.
type CreateProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
}
