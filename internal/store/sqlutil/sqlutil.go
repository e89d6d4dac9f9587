// Package sqlutil holds the row scanning and query building shared by the
// SQL-backed stores.
package sqlutil

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jarvis-tasks/jarvis/internal/model"
)

// TaskColumns is the column list used for SELECT statements on the tasks table.
const TaskColumns = `id, project_id, title, description, status, priority,
	assignee, created_at, created_by, updated_at, completed_at, due_date`

// DependencyColumns is the column list for the task_dependencies table.
const DependencyColumns = `task_id, depends_on_id, created_at, created_by`

// Executor is the interface satisfied by both *sql.DB and *sql.Tx.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Dialect captures the handful of syntax differences between the SQL
// backends.
type Dialect struct {
	// Placeholder returns the bind parameter for the n-th (1-based) argument.
	Placeholder func(n int) string
	// Like is the case-insensitive match operator.
	Like string
	// NoLimit is the LIMIT value meaning "unbounded", needed before OFFSET.
	NoLimit string
}

// Postgres numbers its parameters and has ILIKE.
var Postgres = Dialect{
	Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	Like:        "ILIKE",
	NoLimit:     "ALL",
}

// SQLite uses positional ? parameters; LIKE is already case-insensitive for ASCII.
var SQLite = Dialect{
	Placeholder: func(int) string { return "?" },
	Like:        "LIKE",
	NoLimit:     "-1",
}

// Placeholders returns a comma-separated list of parameters starting at
// argument number start.
func (d Dialect) Placeholders(start, count int) string {
	ps := make([]string, count)
	for i := range ps {
		ps[i] = d.Placeholder(start + i)
	}
	return strings.Join(ps, ", ")
}

// incomplete matches tasks with at least one dependency that is not done.
const incomplete = "EXISTS (SELECT 1 FROM task_dependencies d JOIN tasks dep ON d.depends_on_id = dep.id " +
	"WHERE d.task_id = tasks.id AND dep.status <> 'done')"

// ListTasksQuery builds the SELECT for filter. The first result column is
// COUNT(*) OVER() so the total survives LIMIT/OFFSET; scan rows with
// ScanTaskWithTotal.
func (d Dialect) ListTasksQuery(filter model.TaskFilter) (string, []any) {
	var (
		whereClauses []string
		args         []any
	)

	nextArg := func(v any) string {
		args = append(args, v)
		return d.Placeholder(len(args))
	}

	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			placeholders[i] = nextArg(string(s))
		}
		whereClauses = append(whereClauses, "status IN ("+strings.Join(placeholders, ", ")+")")
	}

	if filter.ProjectID != "" {
		whereClauses = append(whereClauses, "project_id = "+nextArg(filter.ProjectID))
	}

	if filter.Priority != "" {
		whereClauses = append(whereClauses, "priority = "+nextArg(string(filter.Priority)))
	}

	if filter.Assignee != "" {
		whereClauses = append(whereClauses, "assignee = "+nextArg(filter.Assignee))
	}

	for _, label := range filter.Labels {
		whereClauses = append(whereClauses,
			"EXISTS (SELECT 1 FROM labels WHERE labels.task_id = tasks.id AND labels.label = "+nextArg(label)+")")
	}

	if filter.Search != "" {
		tp := nextArg(filter.Search)
		dp := nextArg(filter.Search)
		whereClauses = append(whereClauses, fmt.Sprintf(
			"(title %[1]s '%%' || %[2]s || '%%' OR description %[1]s '%%' || %[3]s || '%%')", d.Like, tp, dp))
	}

	if filter.Ready {
		whereClauses = append(whereClauses, "NOT "+incomplete)
	}
	if filter.Blocked {
		whereClauses = append(whereClauses, incomplete)
	}

	query := "SELECT COUNT(*) OVER() AS total_count, " + TaskColumns + " FROM tasks"
	if len(whereClauses) > 0 {
		query += " WHERE " + strings.Join(whereClauses, " AND ")
	}
	query += " ORDER BY " + SortClause(filter.Sort)

	if filter.Limit > 0 {
		query += " LIMIT " + nextArg(filter.Limit)
	}
	if filter.Offset > 0 {
		if filter.Limit <= 0 {
			query += " LIMIT " + d.NoLimit
		}
		query += " OFFSET " + nextArg(filter.Offset)
	}
	return query, args
}

// priorityRank orders the priority enum numerically.
const priorityRank = "CASE priority WHEN 'urgent' THEN 3 WHEN 'high' THEN 2 WHEN 'medium' THEN 1 ELSE 0 END"

// SortClause converts a sort key like "-priority" into an ORDER BY clause.
// Unknown columns fall back to newest first.
func SortClause(sort string) string {
	if sort == "" {
		return "created_at DESC"
	}
	desc := strings.HasPrefix(sort, "-")
	col := strings.TrimPrefix(sort, "-")
	allowed := map[string]string{
		"priority": priorityRank, "created_at": "created_at", "updated_at": "updated_at",
		"title": "title", "status": "status", "due_date": "due_date",
	}
	expr, ok := allowed[col]
	if !ok {
		return "created_at DESC"
	}
	dir := " ASC"
	if desc {
		dir = " DESC"
	}
	// Tie-break on id so pagination is stable.
	return expr + dir + ", id ASC"
}

// NullTimePtr converts a *time.Time to a sql.NullTime.
func NullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// NullString converts a string to sql.NullString; empty string is null.
func NullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
