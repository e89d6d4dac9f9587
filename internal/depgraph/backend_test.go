package depgraph

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/jarvis-tasks/jarvis/internal/model"
)

// memBackend is an in-memory Backend used by the tests in this package.
type memBackend struct {
	mu    sync.Mutex
	lock  sync.Mutex
	edges []*model.Dependency
	tasks map[string]*model.TaskRef

	listCalls int
	failList  error
}

func newMemBackend() *memBackend {
	return &memBackend{tasks: make(map[string]*model.TaskRef)}
}

func (b *memBackend) task(id, title string, status model.Status) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tasks[id] = &model.TaskRef{ID: id, Title: title, Status: status}
}

func (b *memBackend) setStatus(id string, status model.Status) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tasks[id].Status = status
}

// edge inserts without validation, for seeding arbitrary graphs.
func (b *memBackend) edge(from, to string) {
	_ = b.AddDependency(context.Background(), &model.Dependency{TaskID: from, DependsOnID: to})
}

func (b *memBackend) ListAllDependencies(_ context.Context) ([]*model.Dependency, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listCalls++
	if b.failList != nil {
		return nil, b.failList
	}
	return slices.Clone(b.edges), nil
}

func (b *memBackend) GetDependencies(_ context.Context, taskID string) ([]*model.Dependency, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*model.Dependency
	for _, e := range b.edges {
		if e.TaskID == taskID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (b *memBackend) GetDependents(_ context.Context, taskID string) ([]*model.Dependency, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*model.Dependency
	for _, e := range b.edges {
		if e.DependsOnID == taskID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (b *memBackend) AddDependency(_ context.Context, dep *model.Dependency) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.edges {
		if e.TaskID == dep.TaskID && e.DependsOnID == dep.DependsOnID {
			return nil
		}
	}
	b.edges = append(b.edges, dep)
	return nil
}

func (b *memBackend) RemoveDependency(_ context.Context, taskID, dependsOnID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.edges = slices.DeleteFunc(b.edges, func(e *model.Dependency) bool {
		return e.TaskID == taskID && e.DependsOnID == dependsOnID
	})
	return nil
}

func (b *memBackend) GetTaskRefs(_ context.Context, ids []string) ([]*model.TaskRef, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*model.TaskRef
	for _, id := range ids {
		if r, ok := b.tasks[id]; ok {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (b *memBackend) RunLocked(_ context.Context, fn func(tx Backend) error) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	return fn(b)
}

var errStoreDown = errors.New("store down")
