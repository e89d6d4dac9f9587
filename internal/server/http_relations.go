package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/jarvis-tasks/jarvis/internal/events"
	"github.com/jarvis-tasks/jarvis/internal/model"
)

// handleGetLabels handles GET /v1/tasks/{id}/labels.
func (s *TasksServer) handleGetLabels(w http.ResponseWriter, r *http.Request) {
	labels, err := s.store.GetLabels(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get labels")
		return
	}

	if labels == nil {
		labels = []string{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"labels": labels})
}

// addLabelRequest is the JSON body for POST /v1/tasks/{id}/labels.
type addLabelRequest struct {
	Label string `json:"label"`
	Actor string `json:"actor"`
}

// handleAddLabel handles POST /v1/tasks/{id}/labels.
func (s *TasksServer) handleAddLabel(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("id")

	var req addLabelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.Label = strings.TrimSpace(req.Label)
	if req.Label == "" {
		writeError(w, http.StatusBadRequest, "label is required")
		return
	}

	if _, err := s.store.GetTask(r.Context(), taskID); err != nil {
		s.writeTaskError(w, err)
		return
	}
	if err := s.store.AddLabel(r.Context(), taskID, req.Label); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to add label")
		return
	}

	s.recordAndPublish(r.Context(), events.TopicLabelAdded, taskID, req.Actor, events.LabelAdded{
		TaskID: taskID,
		Label:  req.Label,
	})

	// Fetch the updated task to return.
	task, err := s.store.GetTask(r.Context(), taskID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get task after adding label")
		return
	}

	writeJSON(w, http.StatusCreated, task)
}

// handleRemoveLabel handles DELETE /v1/tasks/{id}/labels/{label}.
func (s *TasksServer) handleRemoveLabel(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("id")
	label := r.PathValue("label")

	if err := s.store.RemoveLabel(r.Context(), taskID, label); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to remove label")
		return
	}

	s.recordAndPublish(r.Context(), events.TopicLabelRemoved, taskID, r.URL.Query().Get("actor"), events.LabelRemoved{
		TaskID: taskID,
		Label:  label,
	})

	w.WriteHeader(http.StatusNoContent)
}

// handleGetComments handles GET /v1/tasks/{id}/comments.
func (s *TasksServer) handleGetComments(w http.ResponseWriter, r *http.Request) {
	comments, err := s.store.GetComments(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get comments")
		return
	}

	if comments == nil {
		comments = []*model.Comment{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"comments": comments})
}

// addCommentRequest is the JSON body for POST /v1/tasks/{id}/comments.
type addCommentRequest struct {
	Author string `json:"author"`
	Text   string `json:"text"`
}

// handleAddComment handles POST /v1/tasks/{id}/comments.
func (s *TasksServer) handleAddComment(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("id")

	var req addCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	if _, err := s.store.GetTask(r.Context(), taskID); err != nil {
		s.writeTaskError(w, err)
		return
	}

	comment := &model.Comment{
		TaskID:    taskID,
		Author:    req.Author,
		Text:      req.Text,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.AddComment(r.Context(), comment); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to add comment")
		return
	}

	s.recordAndPublish(r.Context(), events.TopicCommentAdded, taskID, comment.Author, events.CommentAdded{Comment: comment})

	writeJSON(w, http.StatusCreated, comment)
}

// handleGetEvents handles GET /v1/tasks/{id}/events.
func (s *TasksServer) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	evts, err := s.store.GetEvents(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get events")
		return
	}

	if evts == nil {
		evts = []*model.Event{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"events": evts})
}

// handleCreateProject handles POST /v1/projects.
func (s *TasksServer) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var project model.Project
	if err := json.NewDecoder(r.Body).Decode(&project); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	created, err := s.createProject(r.Context(), &project)
	if err != nil {
		var ie inputError
		if errors.As(err, &ie) {
			writeError(w, http.StatusBadRequest, ie.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create project")
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// handleListProjects handles GET /v1/projects.
func (s *TasksServer) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ListProjects(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list projects")
		return
	}
	if projects == nil {
		projects = []*model.Project{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": projects})
}

// handleGetProject handles GET /v1/projects/{id}.
func (s *TasksServer) handleGetProject(w http.ResponseWriter, r *http.Request) {
	project, err := s.store.GetProject(r.Context(), r.PathValue("id"))
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get project")
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// handleDeleteProject handles DELETE /v1/projects/{id}.
// Tasks in the project are kept and lose their project reference.
func (s *TasksServer) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.DeleteProject(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "project not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete project")
		return
	}

	s.recordAndPublish(r.Context(), events.TopicProjectDeleted, id, r.URL.Query().Get("actor"), events.ProjectDeleted{ProjectID: id})

	w.WriteHeader(http.StatusNoContent)
}
