package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jarvis-tasks/jarvis/internal/depgraph"
	"github.com/jarvis-tasks/jarvis/internal/events"
	"github.com/jarvis-tasks/jarvis/internal/model"
)

// handleGetDependencies handles GET /v1/tasks/{id}/dependencies.
func (s *TasksServer) handleGetDependencies(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("id")
	ctx := r.Context()

	deps, err := s.graph.GetDependencies(ctx, taskID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get dependencies")
		return
	}
	dependents, err := s.graph.GetDependents(ctx, taskID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get dependents")
		return
	}
	depth, err := s.graph.CalculateDepth(ctx, taskID)
	if err != nil {
		s.logger.Error("calculate depth", "task_id", taskID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to calculate depth")
		return
	}

	if deps == nil {
		deps = []string{}
	}
	if dependents == nil {
		dependents = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"dependencies": deps,
		"dependents":   dependents,
		"depth":        depth,
	})
}

// addDependencyRequest is the JSON body for POST /v1/tasks/{id}/dependencies.
type addDependencyRequest struct {
	DependsOnID string `json:"depends_on_id"`
	CreatedBy   string `json:"created_by"`
}

// decodeDependency reads the request body and checks that both endpoints
// of the proposed edge exist. Self-edges skip the check. It writes the
// error response itself and reports whether the caller should continue.
func (s *TasksServer) decodeDependency(w http.ResponseWriter, r *http.Request) (addDependencyRequest, bool) {
	var req addDependencyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return req, false
	}
	if req.DependsOnID == "" {
		writeError(w, http.StatusBadRequest, "depends_on_id is required")
		return req, false
	}

	// A self-edge is rejected by the graph before any lookup, even when the
	// task does not exist.
	taskID := r.PathValue("id")
	if req.DependsOnID == taskID {
		return req, true
	}

	ids := []string{taskID, req.DependsOnID}
	refs, err := s.store.GetTaskRefs(r.Context(), ids)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to look up tasks")
		return req, false
	}
	if len(refs) != len(ids) {
		writeError(w, http.StatusNotFound, "task not found")
		return req, false
	}
	return req, true
}

// handleAddDependency handles POST /v1/tasks/{id}/dependencies.
func (s *TasksServer) handleAddDependency(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("id")
	req, ok := s.decodeDependency(w, r)
	if !ok {
		return
	}

	dep, err := s.graph.AddDependency(r.Context(), taskID, req.DependsOnID, req.CreatedBy)
	if err != nil {
		var ve *depgraph.ValidationError
		if errors.As(err, &ve) {
			body := map[string]any{"error": ve.Message}
			if len(ve.Cycle) > 0 {
				body["cycle"] = ve.Cycle
			}
			writeJSON(w, http.StatusBadRequest, body)
			return
		}
		s.logger.Error("add dependency", "task_id", taskID, "depends_on_id", req.DependsOnID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to add dependency")
		return
	}

	depth, err := s.graph.CalculateDepth(r.Context(), taskID)
	if err != nil {
		s.logger.Warn("calculate depth after insert", "task_id", taskID, "error", err)
	}
	s.recordAndPublish(r.Context(), events.TopicDependencyAdded, taskID, dep.CreatedBy, events.DependencyAdded{
		Dependency: dep,
		Depth:      depth,
	})

	writeJSON(w, http.StatusCreated, dep)
}

// handleValidateDependency handles POST /v1/tasks/{id}/dependencies/validate.
// It answers whether the edge would be accepted without writing it.
func (s *TasksServer) handleValidateDependency(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeDependency(w, r)
	if !ok {
		return
	}

	v, err := s.graph.ValidateDependency(r.Context(), r.PathValue("id"), req.DependsOnID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to validate dependency")
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// handleRemoveDependency handles DELETE /v1/tasks/{id}/dependencies/{depends_on_id}.
// Removing an edge that does not exist still returns 204.
func (s *TasksServer) handleRemoveDependency(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("id")
	dependsOnID := r.PathValue("depends_on_id")

	if err := s.graph.RemoveDependency(r.Context(), taskID, dependsOnID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to remove dependency")
		return
	}

	s.recordAndPublish(r.Context(), events.TopicDependencyRemoved, taskID, r.URL.Query().Get("actor"), events.DependencyRemoved{
		TaskID:      taskID,
		DependsOnID: dependsOnID,
	})

	w.WriteHeader(http.StatusNoContent)
}

// handleCheckTransition handles GET /v1/tasks/{id}/transition?status=done.
func (s *TasksServer) handleCheckTransition(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("id")
	next := model.Status(r.URL.Query().Get("status"))
	if !next.IsValid() {
		writeError(w, http.StatusBadRequest, "status must be one of backlog, planning, todo, in_progress, review, done")
		return
	}

	if _, err := s.store.GetTask(r.Context(), taskID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get task")
		return
	}

	check, err := s.graph.CanChangeStatus(r.Context(), taskID, next)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check status change")
		return
	}
	writeJSON(w, http.StatusOK, check)
}
