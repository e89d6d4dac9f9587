// Package supabase is a dependency-graph backend for a hosted Supabase
// Postgres database, reached through pgx's database/sql driver.
//
// It only implements depgraph.Backend; task CRUD stays with the main store.
// Every call fetches what it needs in one query, and the whole edge table is
// read in a single round trip for validation and depth.
package supabase

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/jarvis-tasks/jarvis/internal/depgraph"
	"github.com/jarvis-tasks/jarvis/internal/model"
	"github.com/jarvis-tasks/jarvis/internal/store/sqlutil"
)

// lockKey matches the advisory lock the postgres store takes, so writers
// through either path exclude each other.
const lockKey int64 = 0x6a7276_646570

// Graph implements depgraph.Backend on a Supabase database.
type Graph struct {
	edges
	db *sql.DB
}

var _ depgraph.Backend = (*Graph)(nil)

// Open connects to dsn with the pgx driver.
func Open(ctx context.Context, dsn string) (*Graph, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, fmt.Errorf("open supabase: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetConnMaxIdleTime(time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping supabase: %w", err)
	}
	return NewWithDB(db), nil
}

// NewWithDB wraps an existing connection pool.
func NewWithDB(db *sql.DB) *Graph {
	return &Graph{edges: edges{ex: db}, db: db}
}

// Close releases the connection pool.
func (g *Graph) Close() error {
	return g.db.Close()
}

// RunLocked runs fn inside a transaction holding the dependency advisory lock.
func (g *Graph) RunLocked(ctx context.Context, fn func(tx depgraph.Backend) error) error {
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, lockKey); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("lock dependencies: %w", err)
	}
	if err := fn(&lockedTx{edges{ex: tx}}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type lockedTx struct {
	edges
}

func (t *lockedTx) RunLocked(_ context.Context, fn func(tx depgraph.Backend) error) error {
	return fn(t)
}

// edges holds the edge and task-ref queries.
type edges struct {
	ex sqlutil.Executor
}

func (e edges) ListAllDependencies(ctx context.Context) ([]*model.Dependency, error) {
	return sqlutil.AllDependencies(ctx, e.ex)
}

func (e edges) GetDependencies(ctx context.Context, taskID string) ([]*model.Dependency, error) {
	return e.query(ctx, `SELECT `+sqlutil.DependencyColumns+` FROM task_dependencies WHERE task_id = $1 ORDER BY created_at`, taskID)
}

func (e edges) GetDependents(ctx context.Context, taskID string) ([]*model.Dependency, error) {
	return e.query(ctx, `SELECT `+sqlutil.DependencyColumns+` FROM task_dependencies WHERE depends_on_id = $1 ORDER BY created_at`, taskID)
}

func (e edges) query(ctx context.Context, q string, args ...any) ([]*model.Dependency, error) {
	rows, err := e.ex.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return sqlutil.ScanAll(rows, sqlutil.ScanDependency)
}

func (e edges) AddDependency(ctx context.Context, dep *model.Dependency) error {
	_, err := e.ex.ExecContext(ctx, `
		INSERT INTO task_dependencies (task_id, depends_on_id, created_at, created_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (task_id, depends_on_id) DO NOTHING`,
		dep.TaskID, dep.DependsOnID, dep.CreatedAt, sqlutil.NullString(dep.CreatedBy))
	return err
}

func (e edges) RemoveDependency(ctx context.Context, taskID, dependsOnID string) error {
	_, err := e.ex.ExecContext(ctx,
		`DELETE FROM task_dependencies WHERE task_id = $1 AND depends_on_id = $2`, taskID, dependsOnID)
	return err
}

func (e edges) GetTaskRefs(ctx context.Context, ids []string) ([]*model.TaskRef, error) {
	return sqlutil.Postgres.TaskRefs(ctx, e.ex, ids)
}
