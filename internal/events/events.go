package events

import (
	"context"

	"github.com/jarvis-tasks/jarvis/internal/model"
)

// Event topic constants
const (
	TopicTaskCreated       = "tasks.task.created"
	TopicTaskUpdated       = "tasks.task.updated"
	TopicTaskDeleted       = "tasks.task.deleted"
	TopicDependencyAdded   = "tasks.dependency.added"
	TopicDependencyRemoved = "tasks.dependency.removed"
	TopicLabelAdded        = "tasks.label.added"
	TopicLabelRemoved      = "tasks.label.removed"
	TopicCommentAdded      = "tasks.comment.added"
	TopicProjectCreated    = "tasks.project.created"
	TopicProjectDeleted    = "tasks.project.deleted"

	// TopicAll matches every task-board subject.
	TopicAll = "tasks.>"
)

// Event types

type TaskCreated struct {
	Task *model.Task `json:"task"`
}

type TaskUpdated struct {
	Task    *model.Task    `json:"task"`
	Changes map[string]any `json:"changes"` // field name -> new value
}

type TaskDeleted struct {
	TaskID string `json:"task_id"`
}

type DependencyAdded struct {
	Dependency *model.Dependency `json:"dependency"`
	Depth      int               `json:"depth"`
}

type DependencyRemoved struct {
	TaskID      string `json:"task_id"`
	DependsOnID string `json:"depends_on_id"`
}

type LabelAdded struct {
	TaskID string `json:"task_id"`
	Label  string `json:"label"`
}

type LabelRemoved struct {
	TaskID string `json:"task_id"`
	Label  string `json:"label"`
}

type CommentAdded struct {
	Comment *model.Comment `json:"comment"`
}

type ProjectCreated struct {
	Project *model.Project `json:"project"`
}

type ProjectDeleted struct {
	ProjectID string `json:"project_id"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

// NewPublisher connects to NATS when url is set and otherwise returns a
// publisher that drops everything.
func NewPublisher(url string) (Publisher, error) {
	if url == "" {
		return &NoopPublisher{}, nil
	}
	return NewNATSPublisher(url)
}

// NoopPublisher drops every event. Used when NATS is not configured.
type NoopPublisher struct{}

func (*NoopPublisher) Publish(context.Context, string, any) error { return nil }
func (*NoopPublisher) Close() error                               { return nil }

// Message is one event as received from the bus.
type Message struct {
	Topic  string
	TaskID string
	Actor  string
	Data   []byte
}

// Subscriber receives events from the bus.
type Subscriber interface {
	// Subscribe delivers messages matching topic (NATS wildcards allowed)
	// until the returned cancel func is called, which also closes the
	// channel.
	Subscribe(topic string) (<-chan *Message, func(), error)
	Close() error
}

type originKey struct{}

type origin struct {
	taskID string
	actor  string
}

// WithOrigin attaches the task and actor an event is about. Publishers
// that support message headers send them along with the payload.
func WithOrigin(ctx context.Context, taskID, actor string) context.Context {
	return context.WithValue(ctx, originKey{}, origin{taskID: taskID, actor: actor})
}

func originFrom(ctx context.Context) (origin, bool) {
	o, ok := ctx.Value(originKey{}).(origin)
	return o, ok
}
