package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jarvis-tasks/jarvis/internal/model"
	"github.com/jarvis-tasks/jarvis/internal/store/sqlutil"
)

// Timestamps are assigned here rather than by column defaults so that they
// round-trip through the driver as time.Time with full precision.
func now() time.Time { return time.Now().UTC() }

func queryCreateTask(ctx context.Context, db sqlutil.Executor, t *model.Task) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now()
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO tasks (
			id, project_id, title, description, status, priority,
			assignee, created_at, created_by, updated_at, completed_at, due_date
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID,
		sqlutil.NullString(t.ProjectID),
		t.Title,
		t.Description,
		string(t.Status),
		string(t.Priority),
		t.Assignee,
		t.CreatedAt,
		t.CreatedBy,
		t.UpdatedAt,
		sqlutil.NullTimePtr(t.CompletedAt),
		sqlutil.NullTimePtr(t.DueDate),
	)
	return err
}

func queryGetTask(ctx context.Context, db sqlutil.Executor, id string) (*model.Task, error) {
	t, err := sqlutil.ScanTask(db.QueryRowContext(ctx, `SELECT `+sqlutil.TaskColumns+` FROM tasks WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	if t.Labels, err = queryGetLabels(ctx, db, id); err != nil {
		return nil, err
	}
	if t.Dependencies, err = queryEdges(ctx, db, "task_id", id); err != nil {
		return nil, err
	}
	if t.Comments, err = queryGetComments(ctx, db, id); err != nil {
		return nil, err
	}
	return t, nil
}

func queryUpdateTask(ctx context.Context, db sqlutil.Executor, t *model.Task) error {
	updated := now()
	res, err := db.ExecContext(ctx, `
		UPDATE tasks SET
			project_id = ?, title = ?, description = ?, status = ?, priority = ?,
			assignee = ?, updated_at = ?, completed_at = ?, due_date = ?
		WHERE id = ?`,
		sqlutil.NullString(t.ProjectID),
		t.Title,
		t.Description,
		string(t.Status),
		string(t.Priority),
		t.Assignee,
		updated,
		sqlutil.NullTimePtr(t.CompletedAt),
		sqlutil.NullTimePtr(t.DueDate),
		t.ID,
	)
	if err := affectedOne(res, err); err != nil {
		return err
	}
	t.UpdatedAt = updated
	return nil
}

// queryDelete removes the row with id from table. table is always a
// package constant.
func queryDelete(ctx context.Context, db sqlutil.Executor, table, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	return affectedOne(res, err)
}

func affectedOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func queryCreateProject(ctx context.Context, db sqlutil.Executor, p *model.Project) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO projects (id, name, description, color, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Name, sqlutil.NullString(p.Description), sqlutil.NullString(p.Color), p.CreatedAt,
	)
	return err
}

func queryGetProject(ctx context.Context, db sqlutil.Executor, id string) (*model.Project, error) {
	return sqlutil.ScanProject(db.QueryRowContext(ctx,
		`SELECT id, name, description, color, created_at FROM projects WHERE id = ?`, id))
}

func queryListProjects(ctx context.Context, db sqlutil.Executor) ([]*model.Project, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name, description, color, created_at FROM projects ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return sqlutil.ScanAll(rows, sqlutil.ScanProject)
}

func queryAddDependency(ctx context.Context, db sqlutil.Executor, dep *model.Dependency) error {
	if dep.CreatedAt.IsZero() {
		dep.CreatedAt = now()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO task_dependencies (task_id, depends_on_id, created_at, created_by)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (task_id, depends_on_id) DO NOTHING`,
		dep.TaskID, dep.DependsOnID, dep.CreatedAt, sqlutil.NullString(dep.CreatedBy),
	)
	return err
}

func queryRemoveDependency(ctx context.Context, db sqlutil.Executor, taskID, dependsOnID string) error {
	_, err := db.ExecContext(ctx,
		`DELETE FROM task_dependencies WHERE task_id = ? AND depends_on_id = ?`, taskID, dependsOnID)
	return err
}

// queryEdges lists edges whose column (task_id or depends_on_id) equals id.
func queryEdges(ctx context.Context, db sqlutil.Executor, column, id string) ([]*model.Dependency, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+sqlutil.DependencyColumns+`
		FROM task_dependencies
		WHERE `+column+` = ?
		ORDER BY created_at, rowid`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return sqlutil.ScanAll(rows, sqlutil.ScanDependency)
}

func queryAddLabel(ctx context.Context, db sqlutil.Executor, taskID, label string) error {
	_, err := db.ExecContext(ctx, `INSERT INTO labels (task_id, label) VALUES (?, ?) ON CONFLICT DO NOTHING`, taskID, label)
	return err
}

func queryRemoveLabel(ctx context.Context, db sqlutil.Executor, taskID, label string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM labels WHERE task_id = ? AND label = ?`, taskID, label)
	return err
}

func queryGetLabels(ctx context.Context, db sqlutil.Executor, taskID string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT label FROM labels WHERE task_id = ? ORDER BY label`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return sqlutil.ScanStrings(rows)
}

func queryAddComment(ctx context.Context, db sqlutil.Executor, c *model.Comment) error {
	c.CreatedAt = now()
	res, err := db.ExecContext(ctx,
		`INSERT INTO comments (task_id, author, text, created_at) VALUES (?, ?, ?, ?)`,
		c.TaskID, c.Author, c.Text, c.CreatedAt)
	if err != nil {
		return err
	}
	c.ID, err = res.LastInsertId()
	return err
}

func queryGetComments(ctx context.Context, db sqlutil.Executor, taskID string) ([]*model.Comment, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, task_id, author, text, created_at
		FROM comments WHERE task_id = ? ORDER BY created_at, id`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return sqlutil.ScanAll(rows, sqlutil.ScanComment)
}

func queryRecordEvent(ctx context.Context, db sqlutil.Executor, e *model.Event) error {
	e.CreatedAt = now()
	res, err := db.ExecContext(ctx,
		`INSERT INTO events (topic, task_id, actor, payload, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.Topic, e.TaskID, e.Actor, string(e.Payload), e.CreatedAt)
	if err != nil {
		return err
	}
	e.ID, err = res.LastInsertId()
	return err
}

func queryGetEvents(ctx context.Context, db sqlutil.Executor, taskID string) ([]*model.Event, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, topic, task_id, actor, payload, created_at
		FROM events WHERE task_id = ? ORDER BY created_at, id`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return sqlutil.ScanAll(rows, sqlutil.ScanEvent)
}
