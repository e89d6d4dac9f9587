package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jarvis-tasks/jarvis/internal/events"
	"github.com/jarvis-tasks/jarvis/internal/idgen"
	"github.com/jarvis-tasks/jarvis/internal/model"
	"github.com/jarvis-tasks/jarvis/internal/store"
)

// createTaskInput holds the parameters for creating a task.
type createTaskInput struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	ProjectID   string     `json:"project_id"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	Assignee    string     `json:"assignee"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Labels      []string   `json:"labels"`
	CreatedBy   string     `json:"created_by"`
}

// createTask validates input, persists a new task with its labels, and
// publishes a TaskCreated event. Returns inputError for validation failures.
func (s *TasksServer) createTask(ctx context.Context, in createTaskInput) (*model.Task, error) {
	if in.Title == "" {
		return nil, inputError("title is required")
	}

	id, err := idgen.Task()
	if err != nil {
		return nil, fmt.Errorf("failed to generate ID: %w", err)
	}

	now := time.Now().UTC()
	task := &model.Task{
		ID:          id,
		ProjectID:   in.ProjectID,
		Title:       in.Title,
		Description: in.Description,
		Status:      model.Status(in.Status),
		Priority:    model.Priority(in.Priority),
		Assignee:    in.Assignee,
		CreatedAt:   now,
		CreatedBy:   in.CreatedBy,
		UpdatedAt:   now,
		DueDate:     in.DueDate,
		Labels:      in.Labels,
	}
	if task.Status == "" {
		task.Status = model.StatusBacklog
	}
	if task.Priority == "" {
		task.Priority = model.PriorityMedium
	}
	// A new task has no dependencies, so starting in done is never gated.
	if task.Status == model.StatusDone {
		task.CompletedAt = &now
	}

	if err := model.ValidateTask(task); err != nil {
		return nil, inputError("invalid task: " + err.Error())
	}
	if err := s.checkProject(ctx, task.ProjectID); err != nil {
		return nil, err
	}

	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		if err := tx.CreateTask(ctx, task); err != nil {
			return fmt.Errorf("failed to create task: %w", err)
		}
		for _, label := range task.Labels {
			if err := tx.AddLabel(ctx, task.ID, label); err != nil {
				return fmt.Errorf("failed to add label %q: %w", label, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordAndPublish(ctx, events.TopicTaskCreated, task.ID, task.CreatedBy, events.TaskCreated{Task: task})
	return task, nil
}

// checkProject returns an inputError when projectID is set but unknown.
func (s *TasksServer) checkProject(ctx context.Context, projectID string) error {
	if projectID == "" {
		return nil
	}
	_, err := s.store.GetProject(ctx, projectID)
	if errors.Is(err, sql.ErrNoRows) {
		return inputError("unknown project " + projectID)
	}
	if err != nil {
		return fmt.Errorf("failed to get project: %w", err)
	}
	return nil
}

// updateTaskInput holds the parameters for a partial task update.
// Nil pointers leave the field unchanged.
type updateTaskInput struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	ProjectID   *string    `json:"project_id,omitempty"`
	Status      *string    `json:"status,omitempty"`
	Priority    *string    `json:"priority,omitempty"`
	Assignee    *string    `json:"assignee,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Labels      []string   `json:"labels,omitempty"`
	Actor       string     `json:"actor,omitempty"`

	// dueDateSet / labelsSet track whether the field was provided at all,
	// since a zero due date means "clear" rather than "not provided".
	dueDateSet bool
	labelsSet  bool
}

// updateTask applies in to the task. A status change is checked against the
// dependency graph first; a refusal comes back as *blockedError and nothing
// is written.
func (s *TasksServer) updateTask(ctx context.Context, id string, in updateTaskInput) (*model.Task, error) {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	changes := make(map[string]any)

	if in.Status != nil && model.Status(*in.Status) != task.Status {
		next := model.Status(*in.Status)
		if !next.IsValid() {
			return nil, inputError(fmt.Sprintf("invalid status %q", *in.Status))
		}
		check, err := s.graph.CanChangeStatus(ctx, id, next)
		if err != nil {
			return nil, fmt.Errorf("failed to check status change: %w", err)
		}
		if !check.Allowed {
			s.logger.Info("status change blocked", "task_id", id, "status", next, "reason", check.Reason)
			return nil, &blockedError{check: check}
		}
		task.Status = next
		changes["status"] = task.Status
	}
	if in.Title != nil {
		task.Title = *in.Title
		changes["title"] = task.Title
	}
	if in.Description != nil {
		task.Description = *in.Description
		changes["description"] = task.Description
	}
	if in.ProjectID != nil {
		if err := s.checkProject(ctx, *in.ProjectID); err != nil {
			return nil, err
		}
		task.ProjectID = *in.ProjectID
		changes["project_id"] = task.ProjectID
	}
	if in.Priority != nil {
		task.Priority = model.Priority(*in.Priority)
		changes["priority"] = task.Priority
	}
	if in.Assignee != nil {
		task.Assignee = *in.Assignee
		changes["assignee"] = task.Assignee
	}
	if in.dueDateSet {
		if in.DueDate != nil && in.DueDate.IsZero() {
			task.DueDate = nil
		} else {
			task.DueDate = in.DueDate
		}
		changes["due_date"] = task.DueDate
	}
	if in.labelsSet {
		task.Labels = in.Labels
		changes["labels"] = task.Labels
	}

	// Keep CompletedAt in step with the status.
	if task.Status == model.StatusDone && task.CompletedAt == nil {
		now := time.Now().UTC()
		task.CompletedAt = &now
		changes["completed_at"] = task.CompletedAt
	}
	if task.Status != model.StatusDone && task.CompletedAt != nil {
		task.CompletedAt = nil
		changes["completed_at"] = task.CompletedAt
	}

	task.UpdatedAt = time.Now().UTC()

	if err := model.ValidateTask(task); err != nil {
		return nil, inputError("invalid task: " + err.Error())
	}

	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		if err := tx.UpdateTask(ctx, task); err != nil {
			return fmt.Errorf("failed to update task: %w", err)
		}
		if in.labelsSet {
			if err := reconcileLabels(ctx, tx, task.ID, task.Labels); err != nil {
				return fmt.Errorf("failed to reconcile labels: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordAndPublish(ctx, events.TopicTaskUpdated, task.ID, in.Actor, events.TaskUpdated{
		Task:    task,
		Changes: changes,
	})
	return task, nil
}

// reconcileLabels makes the stored label set of taskID equal to want.
func reconcileLabels(ctx context.Context, tx store.Store, taskID string, want []string) error {
	have, err := tx.GetLabels(ctx, taskID)
	if err != nil {
		return err
	}
	for _, l := range have {
		if !slices.Contains(want, l) {
			if err := tx.RemoveLabel(ctx, taskID, l); err != nil {
				return err
			}
		}
	}
	for _, l := range want {
		if !slices.Contains(have, l) {
			if err := tx.AddLabel(ctx, taskID, l); err != nil {
				return err
			}
		}
	}
	return nil
}

// deleteTask removes a task; its dependency edges go with it via cascade.
func (s *TasksServer) deleteTask(ctx context.Context, id, actor string) error {
	if err := s.store.DeleteTask(ctx, id); err != nil {
		return err
	}
	s.recordAndPublish(ctx, events.TopicTaskDeleted, id, actor, events.TaskDeleted{TaskID: id})
	return nil
}

// createProject assigns an ID, validates and persists project.
func (s *TasksServer) createProject(ctx context.Context, project *model.Project) (*model.Project, error) {
	id, err := idgen.Project()
	if err != nil {
		return nil, fmt.Errorf("failed to generate ID: %w", err)
	}
	project.ID = id
	project.CreatedAt = time.Now().UTC()

	if err := model.ValidateProject(project); err != nil {
		return nil, inputError("invalid project: " + err.Error())
	}
	if err := s.store.CreateProject(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	s.recordAndPublish(ctx, events.TopicProjectCreated, project.ID, "", events.ProjectCreated{Project: project})
	return project, nil
}
