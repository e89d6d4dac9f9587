package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// Headers carrying the event origin.
const (
	headerTaskID = "Jarvis-Task-Id"
	headerActor  = "Jarvis-Actor"
)

// NATSPublisher publishes JSON-encoded events, one subject per topic.
type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url string, opts ...nats.Option) (*NATSPublisher, error) {
	base := []nats.Option{
		nats.Name("jarvis-server"),
		nats.MaxReconnects(-1),
	}
	nc, err := nats.Connect(url, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSPublisher{conn: nc}, nil
}

// Publish sends event on topic. An origin set with WithOrigin travels in
// the message headers.
func (p *NATSPublisher) Publish(ctx context.Context, topic string, event any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	msg := nats.NewMsg(topic)
	msg.Data = data
	if o, ok := originFrom(ctx); ok {
		if o.taskID != "" {
			msg.Header.Set(headerTaskID, o.taskID)
		}
		if o.actor != "" {
			msg.Header.Set(headerActor, o.actor)
		}
	}
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publishing %s: %w", topic, err)
	}
	return nil
}

func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}

// NATSSubscriber reads events from NATS, reconnecting forever.
type NATSSubscriber struct {
	conn *nats.Conn
}

var _ Subscriber = (*NATSSubscriber)(nil)

// NewNATSSubscriber connects to url. Extra options (disconnect and
// reconnect handlers, for instance) are applied after the defaults.
func NewNATSSubscriber(url string, opts ...nats.Option) (*NATSSubscriber, error) {
	base := []nats.Option{
		nats.Name("jarvis-watch"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}
	nc, err := nats.Connect(url, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSSubscriber{conn: nc}, nil
}

func (s *NATSSubscriber) Subscribe(topic string) (<-chan *Message, func(), error) {
	box := &mailbox{ch: make(chan *Message, 64)}

	sub, err := s.conn.Subscribe(topic, func(msg *nats.Msg) {
		box.deliver(&Message{
			Topic:  msg.Subject,
			TaskID: msg.Header.Get(headerTaskID),
			Actor:  msg.Header.Get(headerActor),
			Data:   msg.Data,
		})
	})
	if err != nil {
		box.close()
		return nil, nil, fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	// The subscription must reach the server before we return, or messages
	// published right after on another connection are missed.
	if err := s.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		box.close()
		return nil, nil, fmt.Errorf("flushing subscription: %w", err)
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			_ = sub.Unsubscribe()
			box.close()
		})
	}
	return box.ch, cancel, nil
}

func (s *NATSSubscriber) Close() error {
	s.conn.Close()
	return nil
}

// mailbox hands messages from the NATS callback goroutine to one reader.
// Messages are dropped while the reader is behind so the NATS client never
// blocks.
type mailbox struct {
	mu     sync.Mutex
	ch     chan *Message
	closed bool
}

func (b *mailbox) deliver(m *Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	select {
	case b.ch <- m:
	default:
	}
}

// close stops delivery and closes the channel. Messages already buffered
// stay readable until the reader reaches the close.
func (b *mailbox) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.ch)
}
