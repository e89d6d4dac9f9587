package sqlutil

import (
	"database/sql"
	"encoding/json"

	"github.com/jarvis-tasks/jarvis/internal/model"
)

// Scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type Scannable interface {
	Scan(dest ...any) error
}

// taskDest holds the nullable intermediates for one task row.
type taskDest struct {
	projectID   sql.NullString
	description sql.NullString
	assignee    sql.NullString
	createdBy   sql.NullString
	completedAt sql.NullTime
	dueDate     sql.NullTime
}

func (d *taskDest) targets(t *model.Task) []any {
	return []any{
		&t.ID,
		&d.projectID,
		&t.Title,
		&d.description,
		&t.Status,
		&t.Priority,
		&d.assignee,
		&t.CreatedAt,
		&d.createdBy,
		&t.UpdatedAt,
		&d.completedAt,
		&d.dueDate,
	}
}

func (d *taskDest) apply(t *model.Task) {
	t.ProjectID = d.projectID.String
	t.Description = d.description.String
	t.Assignee = d.assignee.String
	t.CreatedBy = d.createdBy.String
	if d.completedAt.Valid {
		ts := d.completedAt.Time
		t.CompletedAt = &ts
	}
	if d.dueDate.Valid {
		ts := d.dueDate.Time
		t.DueDate = &ts
	}
}

// ScanTask scans a single row into a model.Task.
// The row must contain columns in the order defined by TaskColumns.
func ScanTask(row Scannable) (*model.Task, error) {
	var t model.Task
	var d taskDest
	if err := row.Scan(d.targets(&t)...); err != nil {
		return nil, err
	}
	d.apply(&t)
	return &t, nil
}

// ScanTaskWithTotal scans a row that has a leading total_count column
// followed by the standard task columns.
func ScanTaskWithTotal(row Scannable) (*model.Task, int, error) {
	var total int
	var t model.Task
	var d taskDest
	if err := row.Scan(append([]any{&total}, d.targets(&t)...)...); err != nil {
		return nil, 0, err
	}
	d.apply(&t)
	return &t, total, nil
}

// ScanTaskRef scans id, title, status.
func ScanTaskRef(row Scannable) (*model.TaskRef, error) {
	var r model.TaskRef
	if err := row.Scan(&r.ID, &r.Title, &r.Status); err != nil {
		return nil, err
	}
	return &r, nil
}

// ScanDependency scans a single row into a model.Dependency.
func ScanDependency(row Scannable) (*model.Dependency, error) {
	var d model.Dependency
	var createdBy sql.NullString
	if err := row.Scan(&d.TaskID, &d.DependsOnID, &d.CreatedAt, &createdBy); err != nil {
		return nil, err
	}
	d.CreatedBy = createdBy.String
	return &d, nil
}

// ScanComment scans a single row into a model.Comment.
func ScanComment(row Scannable) (*model.Comment, error) {
	var c model.Comment
	var author sql.NullString
	if err := row.Scan(&c.ID, &c.TaskID, &author, &c.Text, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.Author = author.String
	return &c, nil
}

// ScanEvent scans a single row into a model.Event.
func ScanEvent(row Scannable) (*model.Event, error) {
	var e model.Event
	var (
		actor   sql.NullString
		payload []byte
	)
	if err := row.Scan(&e.ID, &e.Topic, &e.TaskID, &actor, &payload, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Actor = actor.String
	if len(payload) > 0 {
		e.Payload = json.RawMessage(payload)
	}
	return &e, nil
}

// ScanProject scans a single row into a model.Project.
func ScanProject(row Scannable) (*model.Project, error) {
	var p model.Project
	var (
		description sql.NullString
		color       sql.NullString
	)
	if err := row.Scan(&p.ID, &p.Name, &description, &color, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.Description = description.String
	p.Color = color.String
	return &p, nil
}

// ScanAll drains rows through scan.
func ScanAll[T any](rows *sql.Rows, scan func(Scannable) (T, error)) ([]T, error) {
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ScanStrings drains a single-column string result.
func ScanStrings(rows *sql.Rows) ([]string, error) {
	return ScanAll(rows, func(s Scannable) (string, error) {
		var v string
		err := s.Scan(&v)
		return v, err
	})
}
