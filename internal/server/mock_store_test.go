package server

import (
	"context"
	"database/sql"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/jarvis-tasks/jarvis/internal/depgraph"
	"github.com/jarvis-tasks/jarvis/internal/model"
	"github.com/jarvis-tasks/jarvis/internal/store"
)

// mockStore is an in-memory store.Store for handler tests.
type mockStore struct {
	mu            sync.Mutex
	tasks         map[string]*model.Task
	projects      map[string]*model.Project
	deps          []*model.Dependency
	labels        map[string][]string
	comments      map[string][]*model.Comment
	events        []*model.Event
	commentNextID int64

	// addLabelErr, when non-nil, is returned by AddLabel.
	addLabelErr error
	// pingErr, when non-nil, is returned by Ping.
	pingErr error
}

var _ store.Store = (*mockStore)(nil)

func newMockStore() *mockStore {
	return &mockStore{
		tasks:    make(map[string]*model.Task),
		projects: make(map[string]*model.Project),
		labels:   make(map[string][]string),
		comments: make(map[string][]*model.Comment),
	}
}

// seed adds a task directly, bypassing validation.
func (m *mockStore) seed(id, title string, status model.Status) *model.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &model.Task{ID: id, Title: title, Status: status, Priority: model.PriorityMedium}
	m.tasks[id] = t
	return t
}

// seedEdge adds a dependency edge directly, bypassing validation.
func (m *mockStore) seedEdge(taskID, dependsOnID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deps = append(m.deps, &model.Dependency{TaskID: taskID, DependsOnID: dependsOnID})
}

func (m *mockStore) eventTopics() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	for i, e := range m.events {
		out[i] = e.Topic
	}
	return out
}

func (m *mockStore) CreateTask(_ context.Context, task *model.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *task
	clone.Labels = nil
	m.tasks[task.ID] = &clone
	return nil
}

func (m *mockStore) getTask(id string) (*model.Task, error) {
	t, ok := m.tasks[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *t
	clone.Labels = slices.Clone(m.labels[id])
	return &clone, nil
}

func (m *mockStore) GetTask(_ context.Context, id string) (*model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getTask(id)
}

func (m *mockStore) incomplete(taskID string) bool {
	for _, d := range m.deps {
		if d.TaskID != taskID {
			continue
		}
		if t, ok := m.tasks[d.DependsOnID]; !ok || t.Status != model.StatusDone {
			return true
		}
	}
	return false
}

func (m *mockStore) ListTasks(_ context.Context, filter model.TaskFilter) ([]*model.Task, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []*model.Task
	for id, t := range m.tasks {
		if len(filter.Status) > 0 && !slices.Contains(filter.Status, t.Status) {
			continue
		}
		if filter.ProjectID != "" && t.ProjectID != filter.ProjectID {
			continue
		}
		if filter.Priority != "" && t.Priority != filter.Priority {
			continue
		}
		if filter.Assignee != "" && t.Assignee != filter.Assignee {
			continue
		}
		if filter.Search != "" {
			q := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(t.Title), q) && !strings.Contains(strings.ToLower(t.Description), q) {
				continue
			}
		}
		if filter.Ready && m.incomplete(id) {
			continue
		}
		if filter.Blocked && !m.incomplete(id) {
			continue
		}
		missing := false
		for _, l := range filter.Labels {
			if !slices.Contains(m.labels[id], l) {
				missing = true
			}
		}
		if missing {
			continue
		}
		task, _ := m.getTask(id)
		result = append(result, task)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })

	total := len(result)
	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return nil, total, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, total, nil
}

func (m *mockStore) UpdateTask(_ context.Context, task *model.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[task.ID]; !ok {
		return sql.ErrNoRows
	}
	clone := *task
	clone.Labels = nil
	m.tasks[task.ID] = &clone
	return nil
}

func (m *mockStore) DeleteTask(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.tasks, id)
	delete(m.labels, id)
	delete(m.comments, id)
	m.deps = slices.DeleteFunc(m.deps, func(d *model.Dependency) bool {
		return d.TaskID == id || d.DependsOnID == id
	})
	return nil
}

func (m *mockStore) CreateProject(_ context.Context, p *model.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[p.ID] = p
	return nil
}

func (m *mockStore) GetProject(_ context.Context, id string) (*model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return p, nil
}

func (m *mockStore) ListProjects(_ context.Context) ([]*model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Project
	for _, p := range m.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockStore) DeleteProject(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.projects, id)
	for _, t := range m.tasks {
		if t.ProjectID == id {
			t.ProjectID = ""
		}
	}
	return nil
}

func (m *mockStore) ListAllDependencies(_ context.Context) ([]*model.Dependency, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.deps), nil
}

func (m *mockStore) edges(match func(*model.Dependency) bool) []*model.Dependency {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Dependency
	for _, d := range m.deps {
		if match(d) {
			out = append(out, d)
		}
	}
	return out
}

func (m *mockStore) GetDependencies(_ context.Context, taskID string) ([]*model.Dependency, error) {
	return m.edges(func(d *model.Dependency) bool { return d.TaskID == taskID }), nil
}

func (m *mockStore) GetDependents(_ context.Context, taskID string) ([]*model.Dependency, error) {
	return m.edges(func(d *model.Dependency) bool { return d.DependsOnID == taskID }), nil
}

func (m *mockStore) AddDependency(_ context.Context, dep *model.Dependency) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.deps {
		if d.TaskID == dep.TaskID && d.DependsOnID == dep.DependsOnID {
			return nil
		}
	}
	m.deps = append(m.deps, dep)
	return nil
}

func (m *mockStore) RemoveDependency(_ context.Context, taskID, dependsOnID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deps = slices.DeleteFunc(m.deps, func(d *model.Dependency) bool {
		return d.TaskID == taskID && d.DependsOnID == dependsOnID
	})
	return nil
}

func (m *mockStore) GetTaskRefs(_ context.Context, ids []string) ([]*model.TaskRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.TaskRef
	for _, id := range ids {
		if t, ok := m.tasks[id]; ok {
			out = append(out, t.Ref())
		}
	}
	return out, nil
}

func (m *mockStore) RunLocked(_ context.Context, fn func(tx depgraph.Backend) error) error {
	return fn(m)
}

func (m *mockStore) AddLabel(_ context.Context, taskID, label string) error {
	if m.addLabelErr != nil {
		return m.addLabelErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !slices.Contains(m.labels[taskID], label) {
		m.labels[taskID] = append(m.labels[taskID], label)
	}
	return nil
}

func (m *mockStore) RemoveLabel(_ context.Context, taskID, label string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.labels[taskID] = slices.DeleteFunc(m.labels[taskID], func(l string) bool { return l == label })
	return nil
}

func (m *mockStore) GetLabels(_ context.Context, taskID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.labels[taskID]), nil
}

func (m *mockStore) AddComment(_ context.Context, c *model.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commentNextID++
	c.ID = m.commentNextID
	m.comments[c.TaskID] = append(m.comments[c.TaskID], c)
	return nil
}

func (m *mockStore) GetComments(_ context.Context, taskID string) ([]*model.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.comments[taskID], nil
}

func (m *mockStore) RecordEvent(_ context.Context, e *model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = int64(len(m.events) + 1)
	m.events = append(m.events, e)
	return nil
}

func (m *mockStore) GetEvents(_ context.Context, taskID string) ([]*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Event
	for _, e := range m.events {
		if e.TaskID == taskID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockStore) GetStats(_ context.Context) (*model.BoardStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var st model.BoardStats
	for _, t := range m.tasks {
		st.Add(t.Status, 1)
	}
	return &st, nil
}

func (m *mockStore) GetGraph(ctx context.Context, limit int) (*model.GraphResponse, error) {
	tasks, _, _ := m.ListTasks(ctx, model.TaskFilter{Limit: limit})
	stats, _ := m.GetStats(ctx)
	g := &model.GraphResponse{Nodes: tasks, Edges: []*model.GraphEdge{}, Stats: stats}
	for _, d := range m.edges(func(*model.Dependency) bool { return true }) {
		g.Edges = append(g.Edges, &model.GraphEdge{Source: d.TaskID, Target: d.DependsOnID})
	}
	return g, nil
}

func (m *mockStore) RunInTransaction(_ context.Context, fn func(tx store.Store) error) error {
	return fn(m)
}

func (m *mockStore) Ping(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pingErr
}

func (m *mockStore) Close() error { return nil }
