// Package depgraph maintains the directed "depends-on" graph between tasks.
//
// The Manager validates new edges against the acyclicity invariant, gates
// status transitions on dependency completion, and computes chain depth.
// Every call re-reads the edge table through its Backend; nothing is cached
// between calls.
package depgraph

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jarvis-tasks/jarvis/internal/model"
)

// Backend is the storage boundary the Manager reads and writes edges through.
type Backend interface {
	// ListAllDependencies returns every edge in the graph.
	ListAllDependencies(ctx context.Context) ([]*model.Dependency, error)
	// GetDependencies returns the outgoing edges of taskID.
	GetDependencies(ctx context.Context, taskID string) ([]*model.Dependency, error)
	// GetDependents returns the incoming edges of taskID.
	GetDependents(ctx context.Context, taskID string) ([]*model.Dependency, error)
	// AddDependency persists dep. Adding an existing edge is a no-op.
	AddDependency(ctx context.Context, dep *model.Dependency) error
	// RemoveDependency deletes the edge if present.
	RemoveDependency(ctx context.Context, taskID, dependsOnID string) error
	// GetTaskRefs loads id/title/status for the given tasks. Unknown ids are
	// omitted from the result.
	GetTaskRefs(ctx context.Context, ids []string) ([]*model.TaskRef, error)
	// RunLocked runs fn inside a transaction that holds the dependency
	// write lock, so concurrent edge writers are serialized.
	RunLocked(ctx context.Context, fn func(tx Backend) error) error
}

// Manager implements the dependency graph operations on top of a Backend.
type Manager struct {
	backend      Backend
	logger       *slog.Logger
	strictReopen bool
	now          func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for edge mutations.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithStrictReopen enables the un-complete rule: a done task may not move
// back out of done while any task depending on it is itself done.
func WithStrictReopen(strict bool) Option {
	return func(m *Manager) { m.strictReopen = strict }
}

// New creates a Manager backed by b.
func New(b Backend, opts ...Option) *Manager {
	m := &Manager{
		backend: b,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// GetDependencies returns the ids of the tasks taskID directly depends on,
// in insertion order.
func (m *Manager) GetDependencies(ctx context.Context, taskID string) ([]string, error) {
	deps, err := m.backend.GetDependencies(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("get dependencies of %s: %w", taskID, err)
	}
	ids := make([]string, len(deps))
	for i, d := range deps {
		ids[i] = d.DependsOnID
	}
	return ids, nil
}

// GetDependents returns the ids of the tasks that directly depend on taskID.
func (m *Manager) GetDependents(ctx context.Context, taskID string) ([]string, error) {
	deps, err := m.backend.GetDependents(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("get dependents of %s: %w", taskID, err)
	}
	ids := make([]string, len(deps))
	for i, d := range deps {
		ids[i] = d.TaskID
	}
	return ids, nil
}

// AddDependency validates and persists the edge taskID -> dependsOnID.
// An edge that fails validation is never written; the returned error is a
// *ValidationError carrying the message and, for cycles, the offending path.
// Validation and insert share one locked transaction.
func (m *Manager) AddDependency(ctx context.Context, taskID, dependsOnID, createdBy string) (*model.Dependency, error) {
	if taskID == dependsOnID {
		return nil, &ValidationError{Message: MsgSelfDependency}
	}

	dep := &model.Dependency{
		TaskID:      taskID,
		DependsOnID: dependsOnID,
		CreatedAt:   m.now().UTC(),
		CreatedBy:   createdBy,
	}
	err := m.backend.RunLocked(ctx, func(tx Backend) error {
		v, err := validate(ctx, tx, taskID, dependsOnID)
		if err != nil {
			return err
		}
		if !v.Valid {
			return &ValidationError{Message: v.Error, Cycle: v.Cycle}
		}
		return tx.AddDependency(ctx, dep)
	})
	if err != nil {
		return nil, err
	}

	m.logger.Debug("dependency added", "task_id", taskID, "depends_on_id", dependsOnID)
	return dep, nil
}

// RemoveDependency deletes the edge taskID -> dependsOnID. Removing an edge
// that does not exist succeeds.
func (m *Manager) RemoveDependency(ctx context.Context, taskID, dependsOnID string) error {
	if err := m.backend.RemoveDependency(ctx, taskID, dependsOnID); err != nil {
		return fmt.Errorf("remove dependency %s -> %s: %w", taskID, dependsOnID, err)
	}
	m.logger.Debug("dependency removed", "task_id", taskID, "depends_on_id", dependsOnID)
	return nil
}

// adjacency builds an outgoing adjacency list from a full edge fetch.
func adjacency(edges []*model.Dependency) map[string][]string {
	adj := make(map[string][]string)
	for _, e := range edges {
		adj[e.TaskID] = append(adj[e.TaskID], e.DependsOnID)
	}
	return adj
}
