package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/jarvis-tasks/jarvis/internal/depgraph"
	"github.com/jarvis-tasks/jarvis/internal/model"
)

// handleCreateTask handles POST /v1/tasks.
func (s *TasksServer) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var in createTaskInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	task, err := s.createTask(r.Context(), in)
	if err != nil {
		s.writeTaskError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, task)
}

// parseTaskFilter reads a TaskFilter from query parameters.
func parseTaskFilter(r *http.Request) model.TaskFilter {
	q := r.URL.Query()
	filter := model.TaskFilter{
		ProjectID: q.Get("project_id"),
		Priority:  model.Priority(q.Get("priority")),
		Assignee:  q.Get("assignee"),
		Search:    q.Get("search"),
		Sort:      q.Get("sort"),
	}
	if v := q.Get("status"); v != "" {
		for _, st := range strings.Split(v, ",") {
			filter.Status = append(filter.Status, model.Status(st))
		}
	}
	if v := q.Get("labels"); v != "" {
		filter.Labels = strings.Split(v, ",")
	}
	filter.Ready, _ = strconv.ParseBool(q.Get("ready"))
	filter.Blocked, _ = strconv.ParseBool(q.Get("blocked"))
	filter.Limit = queryInt(r, "limit", 0)
	filter.Offset = queryInt(r, "offset", 0)
	return filter
}

// handleListTasks handles GET /v1/tasks.
func (s *TasksServer) handleListTasks(w http.ResponseWriter, r *http.Request) {
	s.listTasks(w, r, parseTaskFilter(r))
}

func (s *TasksServer) listTasks(w http.ResponseWriter, r *http.Request, filter model.TaskFilter) {
	tasks, total, err := s.store.ListTasks(r.Context(), filter)
	if err != nil {
		s.logger.Error("list tasks", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}

	// Ensure tasks is never null in JSON output.
	if tasks == nil {
		tasks = []*model.Task{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"tasks": tasks,
		"total": total,
	})
}

// handleGetTask handles GET /v1/tasks/{id}.
func (s *TasksServer) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	task, err := s.store.GetTask(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get task")
		return
	}

	deps, err := s.store.GetDependencies(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get dependencies")
		return
	}
	task.Dependencies = deps

	writeJSON(w, http.StatusOK, task)
}

// handleUpdateTask handles PATCH /v1/tasks/{id}.
func (s *TasksServer) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var in updateTaskInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	// For HTTP/JSON, DueDate/Labels presence is inferred from non-nil.
	in.dueDateSet = in.DueDate != nil
	in.labelsSet = in.Labels != nil

	task, err := s.updateTask(r.Context(), id, in)
	if err != nil {
		s.writeTaskError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, task)
}

// handleDeleteTask handles DELETE /v1/tasks/{id}.
func (s *TasksServer) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.deleteTask(r.Context(), r.PathValue("id"), r.URL.Query().Get("actor")); err != nil {
		s.writeTaskError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetReady handles GET /v1/ready.
// Returns unfinished tasks whose dependencies are all done.
func (s *TasksServer) handleGetReady(w http.ResponseWriter, r *http.Request) {
	s.listTasks(w, r, model.TaskFilter{
		Status:    openStatuses(),
		ProjectID: r.URL.Query().Get("project_id"),
		Ready:     true,
		Sort:      "-priority",
		Limit:     queryInt(r, "limit", 200),
	})
}

// handleGetBlocked handles GET /v1/blocked.
// Returns tasks with at least one unfinished dependency, each enriched with
// its dependency edges.
func (s *TasksServer) handleGetBlocked(w http.ResponseWriter, r *http.Request) {
	tasks, total, err := s.store.ListTasks(r.Context(), model.TaskFilter{
		Status:    openStatuses(),
		ProjectID: r.URL.Query().Get("project_id"),
		Blocked:   true,
		Sort:      "-priority",
		Limit:     queryInt(r, "limit", 200),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}

	for _, t := range tasks {
		deps, err := s.store.GetDependencies(r.Context(), t.ID)
		if err != nil {
			s.logger.Warn("failed to load dependencies", "task_id", t.ID, "error", err)
			continue
		}
		t.Dependencies = deps
	}

	if tasks == nil {
		tasks = []*model.Task{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tasks": tasks,
		"total": total,
	})
}

// openStatuses is every status except done.
func openStatuses() []model.Status {
	out := make([]model.Status, 0, len(model.Statuses)-1)
	for _, st := range model.Statuses {
		if st != model.StatusDone {
			out = append(out, st)
		}
	}
	return out
}

// writeTaskError maps errors from the task operations to HTTP responses.
func (s *TasksServer) writeTaskError(w http.ResponseWriter, err error) {
	var (
		ie inputError
		be *blockedError
	)
	switch {
	case errors.As(err, &be):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":          depgraph.MsgStatusBlocked,
			"reason":         be.check.Reason,
			"blocking_tasks": be.check.BlockingTasks,
		})
	case errors.As(err, &ie):
		writeError(w, http.StatusBadRequest, ie.Error())
	case errors.Is(err, sql.ErrNoRows):
		writeError(w, http.StatusNotFound, "task not found")
	default:
		s.logger.Error("task request failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
