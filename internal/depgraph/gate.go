package depgraph

import (
	"context"
	"fmt"
	"strings"

	"github.com/jarvis-tasks/jarvis/internal/model"
)

// BlockingTask is a dependency (or, under strict reopen, a dependent) that
// prevents a status change.
type BlockingTask struct {
	ID     string       `json:"id"`
	Title  string       `json:"title"`
	Status model.Status `json:"status"`
}

// TransitionCheck is the allow/deny answer for a status change.
type TransitionCheck struct {
	Allowed       bool            `json:"allowed"`
	Reason        string          `json:"reason,omitempty"`
	BlockingTasks []*BlockingTask `json:"blocking_tasks,omitempty"`
}

// CanChangeStatus reports whether taskID may move to newStatus given the
// current status of its neighbours. Only reaching done is gated by
// dependencies; with strict reopen, leaving done is gated by done
// dependents. The error return is only for store failures.
func (m *Manager) CanChangeStatus(ctx context.Context, taskID string, newStatus model.Status) (*TransitionCheck, error) {
	if newStatus != model.StatusDone {
		if m.strictReopen {
			return m.checkReopen(ctx, taskID)
		}
		return &TransitionCheck{Allowed: true}, nil
	}

	deps, err := m.backend.GetDependencies(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("get dependencies of %s: %w", taskID, err)
	}
	if len(deps) == 0 {
		return &TransitionCheck{Allowed: true}, nil
	}

	ids := make([]string, len(deps))
	for i, d := range deps {
		ids[i] = d.DependsOnID
	}
	blocking, err := m.blockers(ctx, ids, func(r *model.TaskRef) bool {
		return r.Status != model.StatusDone
	})
	if err != nil {
		return nil, err
	}
	if len(blocking) == 0 {
		return &TransitionCheck{Allowed: true}, nil
	}
	return &TransitionCheck{
		Reason:        "Blocked by incomplete dependencies: " + labels(blocking),
		BlockingTasks: blocking,
	}, nil
}

// checkReopen gates moving a done task out of done while done tasks depend
// on it.
func (m *Manager) checkReopen(ctx context.Context, taskID string) (*TransitionCheck, error) {
	self, err := m.backend.GetTaskRefs(ctx, []string{taskID})
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", taskID, err)
	}
	if len(self) == 0 || self[0].Status != model.StatusDone {
		return &TransitionCheck{Allowed: true}, nil
	}

	deps, err := m.backend.GetDependents(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("get dependents of %s: %w", taskID, err)
	}
	if len(deps) == 0 {
		return &TransitionCheck{Allowed: true}, nil
	}
	ids := make([]string, len(deps))
	for i, d := range deps {
		ids[i] = d.TaskID
	}
	blocking, err := m.blockers(ctx, ids, func(r *model.TaskRef) bool {
		return r.Status == model.StatusDone
	})
	if err != nil {
		return nil, err
	}
	if len(blocking) == 0 {
		return &TransitionCheck{Allowed: true}, nil
	}
	return &TransitionCheck{
		Reason:        "Completed tasks depend on this task: " + labels(blocking),
		BlockingTasks: blocking,
	}, nil
}

// blockers loads refs for ids and keeps those matching blocks, in ids order.
// An id the store no longer knows is reported with an empty title and status.
func (m *Manager) blockers(ctx context.Context, ids []string, blocks func(*model.TaskRef) bool) ([]*BlockingTask, error) {
	refs, err := m.backend.GetTaskRefs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get task refs: %w", err)
	}
	byID := make(map[string]*model.TaskRef, len(refs))
	for _, r := range refs {
		byID[r.ID] = r
	}

	var out []*BlockingTask
	for _, id := range ids {
		r, ok := byID[id]
		if !ok {
			r = &model.TaskRef{ID: id}
		}
		if blocks(r) {
			out = append(out, &BlockingTask{ID: r.ID, Title: r.Title, Status: r.Status})
		}
	}
	return out, nil
}

func labels(tasks []*BlockingTask) string {
	names := make([]string, len(tasks))
	for i, t := range tasks {
		names[i] = (&model.TaskRef{ID: t.ID, Title: t.Title}).Label()
	}
	return strings.Join(names, ", ")
}
