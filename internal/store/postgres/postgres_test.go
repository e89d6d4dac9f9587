package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/jarvis-tasks/jarvis/internal/depgraph"
	"github.com/jarvis-tasks/jarvis/internal/model"
	"github.com/jarvis-tasks/jarvis/internal/store"
)

// newMockDB creates a sqlmock database with automatic cleanup and expectation checking.
func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		db.Close()
	})
	return db, mock
}

var taskRowColumns = []string{
	"id", "project_id", "title", "description", "status", "priority",
	"assignee", "created_at", "created_by", "updated_at", "completed_at", "due_date",
}

var depColumns = []string{"task_id", "depends_on_id", "created_at", "created_by"}

func TestQueryCreateTask(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	task := &model.Task{
		ID: "jt-test1", Title: "Test task", Status: model.StatusTodo,
		Priority: model.PriorityHigh, CreatedAt: now, UpdatedAt: now,
	}
	mock.ExpectExec("INSERT INTO tasks").
		WithArgs(
			"jt-test1", sqlmock.AnyArg(), "Test task", "", "todo", "high",
			"", now, "", now, sqlmock.AnyArg(), sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := queryCreateTask(context.Background(), db, task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestQueryGetTask(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows(taskRowColumns).AddRow(
		"jt-test1", "pj-web", "Test task", nil, "review", "low",
		"bob", now, nil, now, nil, now.Add(48*time.Hour),
	)
	mock.ExpectQuery("SELECT .+ FROM tasks WHERE id = \\$1").WithArgs("jt-test1").WillReturnRows(rows)
	mock.ExpectQuery("SELECT label FROM labels WHERE task_id = \\$1").WithArgs("jt-test1").
		WillReturnRows(sqlmock.NewRows([]string{"label"}).AddRow("frontend"))
	mock.ExpectQuery("SELECT .+ FROM task_dependencies WHERE task_id = \\$1").WithArgs("jt-test1").
		WillReturnRows(sqlmock.NewRows(depColumns).AddRow("jt-test1", "jt-other", now, "alice"))
	mock.ExpectQuery("SELECT .+ FROM comments WHERE task_id = \\$1").WithArgs("jt-test1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "task_id", "author", "text", "created_at"}))

	task, err := queryGetTask(context.Background(), db, "jt-test1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.ID != "jt-test1" || task.ProjectID != "pj-web" || task.Assignee != "bob" {
		t.Fatalf("unexpected task: %+v", task)
	}
	if task.Status != model.StatusReview || task.Priority != model.PriorityLow {
		t.Errorf("status/priority = %s/%s", task.Status, task.Priority)
	}
	if task.DueDate == nil || task.CompletedAt != nil {
		t.Errorf("due=%v completed=%v", task.DueDate, task.CompletedAt)
	}
	if len(task.Labels) != 1 || task.Labels[0] != "frontend" {
		t.Errorf("expected labels=[frontend], got %v", task.Labels)
	}
	if len(task.Dependencies) != 1 || task.Dependencies[0].DependsOnID != "jt-other" {
		t.Errorf("unexpected dependencies: %v", task.Dependencies)
	}
}

func TestQueryGetTask_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT .+ FROM tasks WHERE id = \\$1").WithArgs("nonexistent").WillReturnError(sql.ErrNoRows)

	_, err := queryGetTask(context.Background(), db, "nonexistent")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestQueryUpdateTask(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	task := &model.Task{ID: "jt-test1", Title: "Updated", Status: model.StatusDone, Priority: model.PriorityMedium, CompletedAt: &now}
	mock.ExpectQuery("UPDATE tasks SET").
		WithArgs("jt-test1", sqlmock.AnyArg(), "Updated", "", "done", "medium", "", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(now))

	if err := queryUpdateTask(context.Background(), db, task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !task.UpdatedAt.Equal(now) {
		t.Errorf("updated_at not refreshed: %v", task.UpdatedAt)
	}
}

func TestQueryDeleteTask(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("DELETE FROM tasks WHERE id = \\$1").WithArgs("jt-del1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM tasks WHERE id = \\$1").WithArgs("nonexistent").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := queryDeleteTask(context.Background(), db, "jt-del1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := queryDeleteTask(context.Background(), db, "nonexistent"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestQueryProjects(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	p := &model.Project{ID: "pj-1", Name: "Website", Color: "#3b82f6", CreatedAt: now}

	mock.ExpectExec("INSERT INTO projects").
		WithArgs("pj-1", "Website", nil, "#3b82f6", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT .+ FROM projects ORDER BY name").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "color", "created_at"}).
			AddRow("pj-1", "Website", nil, "#3b82f6", now))
	mock.ExpectExec("DELETE FROM projects WHERE id = \\$1").WithArgs("pj-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ctx := context.Background()
	if err := queryCreateProject(ctx, db, p); err != nil {
		t.Fatalf("create: %v", err)
	}
	list, err := queryListProjects(ctx, db)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Name != "Website" || list[0].Description != "" {
		t.Fatalf("unexpected projects: %+v", list)
	}
	if err := queryDeleteProject(ctx, db, "pj-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestQueryAddDependency_Idempotent(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	dep := &model.Dependency{TaskID: "jt-a", DependsOnID: "jt-b", CreatedAt: now, CreatedBy: "alice"}
	mock.ExpectExec("INSERT INTO task_dependencies .+ ON CONFLICT \\(task_id, depends_on_id\\) DO NOTHING").
		WithArgs("jt-a", "jt-b", now, "alice").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := queryAddDependency(context.Background(), db, dep); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestQueryGetDependents(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT .+ FROM task_dependencies WHERE depends_on_id = \\$1").WithArgs("jt-b").
		WillReturnRows(sqlmock.NewRows(depColumns).
			AddRow("jt-a", "jt-b", now, nil).
			AddRow("jt-c", "jt-b", now, "bob"))

	deps, err := queryGetDependents(context.Background(), db, "jt-b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(deps) != 2 || deps[0].TaskID != "jt-a" || deps[1].CreatedBy != "bob" {
		t.Fatalf("unexpected dependents: %+v", deps)
	}
}

func TestQueryRemoveDependency(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("DELETE FROM task_dependencies").WithArgs("jt-a", "jt-b").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := queryRemoveDependency(context.Background(), db, "jt-a", "jt-b"); err != nil {
		t.Fatalf("removing a missing edge should succeed: %v", err)
	}
}

func TestQueryLabels(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("INSERT INTO labels .+ ON CONFLICT DO NOTHING").WithArgs("jt-1", "ops").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT label FROM labels WHERE task_id = \\$1").WithArgs("jt-1").
		WillReturnRows(sqlmock.NewRows([]string{"label"}).AddRow("infra").AddRow("ops"))
	mock.ExpectExec("DELETE FROM labels").WithArgs("jt-1", "ops").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ctx := context.Background()
	if err := queryAddLabel(ctx, db, "jt-1", "ops"); err != nil {
		t.Fatal(err)
	}
	labels, err := queryGetLabels(ctx, db, "jt-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(labels) != 2 {
		t.Errorf("expected 2 labels, got %v", labels)
	}
	if err := queryRemoveLabel(ctx, db, "jt-1", "ops"); err != nil {
		t.Fatal(err)
	}
}

func TestQueryCommentsAndEvents(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()

	mock.ExpectQuery("INSERT INTO comments").WithArgs("jt-1", "alice", "looks good").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(7, now))
	mock.ExpectQuery("INSERT INTO events").WithArgs("tasks.comment.added", "jt-1", "alice", []byte(`{"id":7}`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(3, now))
	mock.ExpectQuery("SELECT .+ FROM events WHERE task_id = \\$1").WithArgs("jt-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "topic", "task_id", "actor", "payload", "created_at"}).
			AddRow(3, "tasks.comment.added", "jt-1", "alice", []byte(`{"id":7}`), now))

	ctx := context.Background()
	c := &model.Comment{TaskID: "jt-1", Author: "alice", Text: "looks good"}
	if err := queryAddComment(ctx, db, c); err != nil {
		t.Fatal(err)
	}
	if c.ID != 7 {
		t.Errorf("comment id = %d, want 7", c.ID)
	}

	e := &model.Event{Topic: "tasks.comment.added", TaskID: "jt-1", Actor: "alice", Payload: []byte(`{"id":7}`)}
	if err := queryRecordEvent(ctx, db, e); err != nil {
		t.Fatal(err)
	}
	events, err := queryGetEvents(ctx, db, "jt-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || string(events[0].Payload) != `{"id":7}` {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestStore_GetTaskRefs(t *testing.T) {
	db, mock := newMockDB(t)
	s := newStore(db)
	mock.ExpectQuery("SELECT id, title, status FROM tasks WHERE id IN \\(\\$1, \\$2\\)").
		WithArgs("jt-1", "jt-2").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "status"}).
			AddRow("jt-1", "One", "done").
			AddRow("jt-2", "Two", "todo"))

	refs, err := s.GetTaskRefs(context.Background(), []string{"jt-1", "jt-2"})
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 2 || refs[1].Status != model.StatusTodo {
		t.Fatalf("unexpected refs: %+v", refs)
	}

	refs, err = s.GetTaskRefs(context.Background(), nil)
	if err != nil || refs != nil {
		t.Fatalf("empty ids should not query: %v %v", refs, err)
	}
}

func TestStore_AddDependencyThroughManager(t *testing.T) {
	db, mock := newMockDB(t)
	m := depgraph.New(newStore(db))
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock\\(\\$1\\)").WithArgs(dependencyLockKey).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT .+ FROM task_dependencies ORDER BY").
		WillReturnRows(sqlmock.NewRows(depColumns).AddRow("jt-b", "jt-c", now, nil))
	mock.ExpectExec("INSERT INTO task_dependencies").
		WithArgs("jt-a", "jt-b", sqlmock.AnyArg(), "alice").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	dep, err := m.AddDependency(context.Background(), "jt-a", "jt-b", "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dep.TaskID != "jt-a" || dep.DependsOnID != "jt-b" {
		t.Errorf("unexpected dependency: %+v", dep)
	}
}

func TestStore_AddDependencyCycleRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	m := depgraph.New(newStore(db))
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WithArgs(dependencyLockKey).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT .+ FROM task_dependencies ORDER BY").
		WillReturnRows(sqlmock.NewRows(depColumns).
			AddRow("jt-b", "jt-c", now, nil).
			AddRow("jt-c", "jt-a", now, nil))
	mock.ExpectRollback()

	_, err := m.AddDependency(context.Background(), "jt-a", "jt-b", "alice")
	var ve *depgraph.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *depgraph.ValidationError, got %v", err)
	}
	want := []string{"jt-a", "jt-b", "jt-c", "jt-a"}
	if len(ve.Cycle) != len(want) {
		t.Fatalf("cycle = %v, want %v", ve.Cycle, want)
	}
	for i := range want {
		if ve.Cycle[i] != want[i] {
			t.Fatalf("cycle = %v, want %v", ve.Cycle, want)
		}
	}
}

func TestStore_RunInTransactionRollback(t *testing.T) {
	db, mock := newMockDB(t)
	s := newStore(db)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM tasks WHERE id = \\$1").WithArgs("jt-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	err := s.RunInTransaction(context.Background(), func(tx store.Store) error {
		if err := tx.DeleteTask(context.Background(), "jt-1"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestStore_GetStats(t *testing.T) {
	db, mock := newMockDB(t)
	s := newStore(db)
	mock.ExpectQuery("SELECT status, COUNT\\(\\*\\) FROM tasks GROUP BY status").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("todo", 4).
			AddRow("done", 2).
			AddRow("in_progress", 1))

	stats, err := s.GetStats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Todo != 4 || stats.Done != 2 || stats.InProgress != 1 || stats.Total() != 7 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestStore_GetGraph(t *testing.T) {
	db, mock := newMockDB(t)
	s := newStore(db)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) OVER\\(\\) AS total_count, .+ FROM tasks ORDER BY updated_at DESC, id ASC LIMIT \\$1").
		WithArgs(500).
		WillReturnRows(sqlmock.NewRows(append([]string{"total_count"}, taskRowColumns...)).
			AddRow(2, "jt-1", nil, "One", nil, "todo", "medium", nil, now, nil, now, nil, nil).
			AddRow(2, "jt-2", nil, "Two", nil, "done", "medium", nil, now, nil, now, now, nil))
	mock.ExpectQuery("SELECT task_id, label FROM labels").
		WillReturnRows(sqlmock.NewRows([]string{"task_id", "label"}).AddRow("jt-1", "ui"))
	mock.ExpectQuery("SELECT .+ FROM task_dependencies ORDER BY").
		WillReturnRows(sqlmock.NewRows(depColumns).
			AddRow("jt-1", "jt-2", now, nil).
			AddRow("jt-1", "jt-offpage", now, nil))
	mock.ExpectQuery("SELECT status, COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).AddRow("todo", 1).AddRow("done", 1))

	g, err := s.GetGraph(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(g.Nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(g.Nodes))
	}
	if len(g.Edges) != 1 || g.Edges[0].Source != "jt-1" || g.Edges[0].Target != "jt-2" {
		t.Errorf("expected only the in-page edge, got %+v", g.Edges)
	}
	if len(g.Nodes[0].Dependencies) != 2 || len(g.Nodes[0].Labels) != 1 {
		t.Errorf("node relations not attached: %+v", g.Nodes[0])
	}
	if g.Stats.Total() != 2 {
		t.Errorf("stats total = %d", g.Stats.Total())
	}
}
