package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jarvis-tasks/jarvis/internal/model"
	"github.com/jarvis-tasks/jarvis/internal/store/sqlutil"
)

type executor = sqlutil.Executor

// dependencyLockKey is the pg_advisory_xact_lock key that serializes
// dependency writers across every connection to the database.
const dependencyLockKey int64 = 0x6a7276_646570 // "jrv" "dep"

func queryCreateTask(ctx context.Context, db executor, t *model.Task) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO tasks (
			id, project_id, title, description, status, priority,
			assignee, created_at, created_by, updated_at, completed_at, due_date
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12
		)`,
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

func queryGetTask(ctx context.Context, db executor, id string) (*model.Task, error) {
	row := db.QueryRowContext(ctx, `SELECT `+sqlutil.TaskColumns+` FROM tasks WHERE id = $1`, id)
	t, err := sqlutil.ScanTask(row)
	if err != nil {
		return nil, err
	}

	if t.Labels, err = queryGetLabels(ctx, db, id); err != nil {
		return nil, err
	}
	if t.Dependencies, err = queryGetDependencies(ctx, db, id); err != nil {
		return nil, err
	}
	if t.Comments, err = queryGetComments(ctx, db, id); err != nil {
		return nil, err
	}
	return t, nil
}

func queryUpdateTask(ctx context.Context, db executor, t *model.Task) error {
	return db.QueryRowContext(ctx, `
		UPDATE tasks SET
			project_id = $2,
			title = $3,
			description = $4,
			status = $5,
			priority = $6,
			assignee = $7,
			updated_at = NOW(),
			completed_at = $8,
			due_date = $9
		WHERE id = $1
		RETURNING updated_at`,
		t.ID,
		sqlutil.NullString(t.ProjectID),
		t.Title,
		t.Description,
		string(t.Status),
		string(t.Priority),
		t.Assignee,
		sqlutil.NullTimePtr(t.CompletedAt),
		sqlutil.NullTimePtr(t.DueDate),
	).Scan(&t.UpdatedAt)
}

func queryDeleteTask(ctx context.Context, db executor, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
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

func queryCreateProject(ctx context.Context, db executor, p *model.Project) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO projects (id, name, description, color, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.Name, sqlutil.NullString(p.Description), sqlutil.NullString(p.Color), p.CreatedAt,
	)
	return err
}

func queryGetProject(ctx context.Context, db executor, id string) (*model.Project, error) {
	return sqlutil.ScanProject(db.QueryRowContext(ctx, `
		SELECT id, name, description, color, created_at
		FROM projects WHERE id = $1`, id))
}

func queryListProjects(ctx context.Context, db executor) ([]*model.Project, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, description, color, created_at
		FROM projects ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return sqlutil.ScanAll(rows, sqlutil.ScanProject)
}

func queryDeleteProject(ctx context.Context, db executor, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
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

func queryAddDependency(ctx context.Context, db executor, dep *model.Dependency) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO task_dependencies (task_id, depends_on_id, created_at, created_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (task_id, depends_on_id) DO NOTHING`,
		dep.TaskID,
		dep.DependsOnID,
		dep.CreatedAt,
		sqlutil.NullString(dep.CreatedBy),
	)
	return err
}

func queryRemoveDependency(ctx context.Context, db executor, taskID, dependsOnID string) error {
	_, err := db.ExecContext(ctx, `
		DELETE FROM task_dependencies
		WHERE task_id = $1 AND depends_on_id = $2`,
		taskID, dependsOnID,
	)
	return err
}

func queryGetDependencies(ctx context.Context, db executor, taskID string) ([]*model.Dependency, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+sqlutil.DependencyColumns+`
		FROM task_dependencies
		WHERE task_id = $1
		ORDER BY created_at`,
		taskID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return sqlutil.ScanAll(rows, sqlutil.ScanDependency)
}

func queryGetDependents(ctx context.Context, db executor, taskID string) ([]*model.Dependency, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+sqlutil.DependencyColumns+`
		FROM task_dependencies
		WHERE depends_on_id = $1
		ORDER BY created_at`,
		taskID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return sqlutil.ScanAll(rows, sqlutil.ScanDependency)
}

func queryLockDependencies(ctx context.Context, db executor) error {
	_, err := db.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, dependencyLockKey)
	return err
}

func queryAddLabel(ctx context.Context, db executor, taskID, label string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO labels (task_id, label)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`,
		taskID, label,
	)
	return err
}

func queryRemoveLabel(ctx context.Context, db executor, taskID, label string) error {
	_, err := db.ExecContext(ctx, `
		DELETE FROM labels
		WHERE task_id = $1 AND label = $2`,
		taskID, label,
	)
	return err
}

func queryGetLabels(ctx context.Context, db executor, taskID string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT label FROM labels WHERE task_id = $1 ORDER BY label`,
		taskID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return sqlutil.ScanStrings(rows)
}

func queryAddComment(ctx context.Context, db executor, c *model.Comment) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO comments (task_id, author, text)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		c.TaskID, c.Author, c.Text,
	).Scan(&c.ID, &c.CreatedAt)
}

func queryGetComments(ctx context.Context, db executor, taskID string) ([]*model.Comment, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, task_id, author, text, created_at
		FROM comments
		WHERE task_id = $1
		ORDER BY created_at ASC`,
		taskID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return sqlutil.ScanAll(rows, sqlutil.ScanComment)
}

func queryRecordEvent(ctx context.Context, db executor, e *model.Event) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO events (topic, task_id, actor, payload)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		e.Topic, e.TaskID, e.Actor, []byte(e.Payload),
	).Scan(&e.ID, &e.CreatedAt)
}

func queryGetEvents(ctx context.Context, db executor, taskID string) ([]*model.Event, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, topic, task_id, actor, payload, created_at
		FROM events
		WHERE task_id = $1
		ORDER BY created_at ASC`,
		taskID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return sqlutil.ScanAll(rows, sqlutil.ScanEvent)
}
