// Package server exposes the task board over HTTP, with a gRPC listener for
// health checks.
package server

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/jarvis-tasks/jarvis/internal/depgraph"
	"github.com/jarvis-tasks/jarvis/internal/events"
	"github.com/jarvis-tasks/jarvis/internal/model"
	"github.com/jarvis-tasks/jarvis/internal/store"
)

// TasksServer handles task board requests.
type TasksServer struct {
	store     store.Store
	graph     *depgraph.Manager
	publisher events.Publisher
	sseHub    *sseHub
	logger    *slog.Logger
}

// NewTasksServer returns a TasksServer backed by the given store, dependency
// graph manager and publisher. A nil graph gets a default manager over s.
func NewTasksServer(s store.Store, g *depgraph.Manager, p events.Publisher, logger *slog.Logger) *TasksServer {
	if logger == nil {
		logger = slog.Default()
	}
	if g == nil {
		g = depgraph.New(s, depgraph.WithLogger(logger))
	}
	if p == nil {
		p = &events.NoopPublisher{}
	}
	return &TasksServer{
		store:     s,
		graph:     g,
		publisher: p,
		sseHub:    newSSEHub(),
		logger:    logger,
	}
}

// recordAndPublish persists an event to the store and publishes it to NATS.
// Both operations are best-effort; failures are logged but do not block the caller.
func (s *TasksServer) recordAndPublish(ctx context.Context, topic, taskID, actor string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn("failed to marshal event", "topic", topic, "task_id", taskID, "error", err)
		return
	}
	if err := s.store.RecordEvent(ctx, &model.Event{
		Topic:   topic,
		TaskID:  taskID,
		Actor:   actor,
		Payload: payload,
	}); err != nil {
		s.logger.Warn("failed to record event", "topic", topic, "task_id", taskID, "error", err)
	}
	if err := s.publisher.Publish(events.WithOrigin(ctx, taskID, actor), topic, event); err != nil {
		s.logger.Warn("failed to publish event", "topic", topic, "task_id", taskID, "error", err)
	}
	s.sseHub.broadcast(topic, taskID, payload)
}

// inputError indicates invalid user input.
// Transport layers map this to 400 / InvalidArgument.
type inputError string

func (e inputError) Error() string { return string(e) }

// blockedError is returned when the dependency graph refuses a status change.
type blockedError struct {
	check *depgraph.TransitionCheck
}

func (e *blockedError) Error() string {
	return depgraph.MsgStatusBlocked + ": " + e.check.Reason
}
