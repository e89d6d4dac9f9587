// Package sqlite implements the store.Store interface on a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	msqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"

	"github.com/jarvis-tasks/jarvis/internal/depgraph"
	"github.com/jarvis-tasks/jarvis/internal/model"
	"github.com/jarvis-tasks/jarvis/internal/store"
	"github.com/jarvis-tasks/jarvis/internal/store/sqlutil"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var dialect = sqlutil.SQLite

// dsnOptions enables foreign keys (edge cascade depends on them), waits on
// a busy database instead of failing, and starts every transaction with
// BEGIN IMMEDIATE so writers are serialized from the first statement.
const dsnOptions = "?_fk=1&_busy_timeout=5000&_txlock=immediate"

// SQLiteStore implements store.Store backed by a SQLite database file.
type SQLiteStore struct {
	queries
	db *sql.DB
}

// Compile-time check that SQLiteStore implements store.Store.
var _ store.Store = (*SQLiteStore)(nil)

// New opens (creating if needed) the database at path and runs pending
// migrations.
func New(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+dsnOptions)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{queries: queries{ex: db}, db: db}, nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := msqlite.WithInstance(db, &msqlite.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Ping verifies the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// RunInTransaction runs fn inside a single transaction, committing on
// success and rolling back on error.
func (s *SQLiteStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return s.inTx(ctx, func(tx *txStore) error { return fn(tx) })
}

// RunLocked runs fn inside a write transaction. With _txlock=immediate the
// transaction holds SQLite's reserved lock from BEGIN, which excludes every
// other writer until commit.
func (s *SQLiteStore) RunLocked(ctx context.Context, fn func(tx depgraph.Backend) error) error {
	return s.inTx(ctx, func(tx *txStore) error { return fn(tx) })
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *txStore) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(&txStore{queries: queries{ex: tx}}); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// txStore implements store.Store inside an open transaction.
type txStore struct {
	queries
}

var _ store.Store = (*txStore)(nil)

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (s *txStore) RunInTransaction(_ context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// RunLocked reuses the current transaction, which already holds the write lock.
func (s *txStore) RunLocked(_ context.Context, fn func(tx depgraph.Backend) error) error {
	return fn(s)
}

func (s *txStore) Ping(context.Context) error { return nil }

func (s *txStore) Close() error { return nil }

// queries carries the data methods shared by SQLiteStore and txStore.
type queries struct {
	ex sqlutil.Executor
}

func (q queries) CreateTask(ctx context.Context, task *model.Task) error {
	return queryCreateTask(ctx, q.ex, task)
}

func (q queries) GetTask(ctx context.Context, id string) (*model.Task, error) {
	return queryGetTask(ctx, q.ex, id)
}

func (q queries) ListTasks(ctx context.Context, filter model.TaskFilter) ([]*model.Task, int, error) {
	return dialect.ListTasks(ctx, q.ex, filter)
}

func (q queries) UpdateTask(ctx context.Context, task *model.Task) error {
	return queryUpdateTask(ctx, q.ex, task)
}

func (q queries) DeleteTask(ctx context.Context, id string) error {
	return queryDelete(ctx, q.ex, "tasks", id)
}

func (q queries) CreateProject(ctx context.Context, project *model.Project) error {
	return queryCreateProject(ctx, q.ex, project)
}

func (q queries) GetProject(ctx context.Context, id string) (*model.Project, error) {
	return queryGetProject(ctx, q.ex, id)
}

func (q queries) ListProjects(ctx context.Context) ([]*model.Project, error) {
	return queryListProjects(ctx, q.ex)
}

func (q queries) DeleteProject(ctx context.Context, id string) error {
	return queryDelete(ctx, q.ex, "projects", id)
}

func (q queries) ListAllDependencies(ctx context.Context) ([]*model.Dependency, error) {
	return sqlutil.AllDependencies(ctx, q.ex)
}

func (q queries) GetDependencies(ctx context.Context, taskID string) ([]*model.Dependency, error) {
	return queryEdges(ctx, q.ex, "task_id", taskID)
}

func (q queries) GetDependents(ctx context.Context, taskID string) ([]*model.Dependency, error) {
	return queryEdges(ctx, q.ex, "depends_on_id", taskID)
}

func (q queries) AddDependency(ctx context.Context, dep *model.Dependency) error {
	return queryAddDependency(ctx, q.ex, dep)
}

func (q queries) RemoveDependency(ctx context.Context, taskID, dependsOnID string) error {
	return queryRemoveDependency(ctx, q.ex, taskID, dependsOnID)
}

func (q queries) GetTaskRefs(ctx context.Context, ids []string) ([]*model.TaskRef, error) {
	return dialect.TaskRefs(ctx, q.ex, ids)
}

func (q queries) AddLabel(ctx context.Context, taskID string, label string) error {
	return queryAddLabel(ctx, q.ex, taskID, label)
}

func (q queries) RemoveLabel(ctx context.Context, taskID string, label string) error {
	return queryRemoveLabel(ctx, q.ex, taskID, label)
}

func (q queries) GetLabels(ctx context.Context, taskID string) ([]string, error) {
	return queryGetLabels(ctx, q.ex, taskID)
}

func (q queries) AddComment(ctx context.Context, comment *model.Comment) error {
	return queryAddComment(ctx, q.ex, comment)
}

func (q queries) GetComments(ctx context.Context, taskID string) ([]*model.Comment, error) {
	return queryGetComments(ctx, q.ex, taskID)
}

func (q queries) RecordEvent(ctx context.Context, event *model.Event) error {
	return queryRecordEvent(ctx, q.ex, event)
}

func (q queries) GetEvents(ctx context.Context, taskID string) ([]*model.Event, error) {
	return queryGetEvents(ctx, q.ex, taskID)
}

func (q queries) GetStats(ctx context.Context) (*model.BoardStats, error) {
	return sqlutil.Stats(ctx, q.ex)
}

func (q queries) GetGraph(ctx context.Context, limit int) (*model.GraphResponse, error) {
	return dialect.Graph(ctx, q.ex, limit)
}
