// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/jarvis-tasks/jarvis/internal/depgraph"
	"github.com/jarvis-tasks/jarvis/internal/model"
	"github.com/jarvis-tasks/jarvis/internal/store"
	"github.com/jarvis-tasks/jarvis/internal/store/sqlutil"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var dialect = sqlutil.Postgres

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	queries
	db *sql.DB
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return newStore(db), nil
}

func newStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{queries: queries{ex: db}, db: db}
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Ping verifies the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// RunInTransaction begins a database transaction, creates a txStore that
// delegates to it, calls fn, and commits on success or rolls back on error.
func (s *PostgresStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return s.inTx(ctx, func(tx *txStore) error { return fn(tx) })
}

// RunLocked runs fn in a transaction holding the dependency advisory lock.
// The lock is released when the transaction ends.
func (s *PostgresStore) RunLocked(ctx context.Context, fn func(tx depgraph.Backend) error) error {
	return s.inTx(ctx, func(tx *txStore) error { return tx.RunLocked(ctx, fn) })
}

func (s *PostgresStore) inTx(ctx context.Context, fn func(tx *txStore) error) error {
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

// txStore implements store.Store inside an open *sql.Tx.
type txStore struct {
	queries
	locked bool
}

// Compile-time check that txStore implements store.Store.
var _ store.Store = (*txStore)(nil)

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (s *txStore) RunInTransaction(_ context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// RunLocked takes the dependency lock on the current transaction.
func (s *txStore) RunLocked(ctx context.Context, fn func(tx depgraph.Backend) error) error {
	if !s.locked {
		if err := queryLockDependencies(ctx, s.ex); err != nil {
			return fmt.Errorf("lock dependencies: %w", err)
		}
		s.locked = true
	}
	return fn(s)
}

// Ping is a no-op inside a transaction.
func (s *txStore) Ping(context.Context) error { return nil }

// Close is a no-op for a transaction store; the parent store owns the connection.
func (s *txStore) Close() error { return nil }

// queries carries the data methods shared by PostgresStore and txStore.
type queries struct {
	ex executor
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
	return queryDeleteTask(ctx, q.ex, id)
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
	return queryDeleteProject(ctx, q.ex, id)
}

func (q queries) ListAllDependencies(ctx context.Context) ([]*model.Dependency, error) {
	return sqlutil.AllDependencies(ctx, q.ex)
}

func (q queries) GetDependencies(ctx context.Context, taskID string) ([]*model.Dependency, error) {
	return queryGetDependencies(ctx, q.ex, taskID)
}

func (q queries) GetDependents(ctx context.Context, taskID string) ([]*model.Dependency, error) {
	return queryGetDependents(ctx, q.ex, taskID)
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
