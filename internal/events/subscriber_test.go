package events

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

// startTestNATS runs an in-process NATS server on a random port.
func startTestNATS(t *testing.T) string {
	t.Helper()
	srv, err := natsserver.NewServer(&natsserver.Options{Host: "127.0.0.1", Port: -1})
	if err != nil {
		t.Fatalf("embedded NATS: %v", err)
	}
	srv.Start()
	t.Cleanup(srv.Shutdown)
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded NATS never became ready")
	}
	return srv.ClientURL()
}

// natsPair connects a publisher and a subscriber to a fresh server and
// subscribes to every board topic.
func natsPair(t *testing.T) (*NATSPublisher, <-chan *Message, func()) {
	t.Helper()
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("NewNATSPublisher: %v", err)
	}
	t.Cleanup(func() { _ = pub.Close() })

	sub, err := NewNATSSubscriber(url)
	if err != nil {
		t.Fatalf("NewNATSSubscriber: %v", err)
	}
	t.Cleanup(func() { _ = sub.Close() })

	ch, cancel, err := sub.Subscribe(TopicAll)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	t.Cleanup(cancel)
	return pub, ch, cancel
}

func receive(t *testing.T, ch <-chan *Message) *Message {
	t.Helper()
	select {
	case msg := <-ch:
		if msg == nil {
			t.Fatal("channel closed")
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message within 1s")
		return nil
	}
}

func TestNATSSubscriber_RawPublish(t *testing.T) {
	pub, ch, _ := natsPair(t)

	if err := pub.conn.Publish(TopicTaskCreated, []byte(`{"id":"jt-1"}`)); err != nil {
		t.Fatal(err)
	}
	_ = pub.conn.Flush()

	msg := receive(t, ch)
	if msg.Topic != TopicTaskCreated || string(msg.Data) != `{"id":"jt-1"}` {
		t.Errorf("got %s %s", msg.Topic, msg.Data)
	}
	if msg.TaskID != "" || msg.Actor != "" {
		t.Errorf("no headers were sent, got task %q actor %q", msg.TaskID, msg.Actor)
	}
}

func TestNATSSubscriber_KeepsTopicOrder(t *testing.T) {
	pub, ch, _ := natsPair(t)

	topics := []string{TopicTaskCreated, TopicDependencyAdded, TopicTaskUpdated, TopicLabelAdded}
	for i, topic := range topics {
		if err := pub.conn.Publish(topic, []byte(fmt.Sprintf(`{"n":%d}`, i))); err != nil {
			t.Fatal(err)
		}
	}
	_ = pub.conn.Flush()

	for i, want := range topics {
		if got := receive(t, ch).Topic; got != want {
			t.Errorf("message %d: topic %q, want %q", i, got, want)
		}
	}
}

func TestNATSPublisher_CarriesOrigin(t *testing.T) {
	pub, ch, _ := natsPair(t)

	ctx := WithOrigin(context.Background(), "jt-abc", "ana")
	if err := pub.Publish(ctx, TopicDependencyRemoved, DependencyRemoved{TaskID: "jt-abc", DependsOnID: "jt-def"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	msg := receive(t, ch)
	if msg.Topic != TopicDependencyRemoved || msg.TaskID != "jt-abc" || msg.Actor != "ana" {
		t.Errorf("message = %+v", msg)
	}
	var got DependencyRemoved
	if err := json.Unmarshal(msg.Data, &got); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if got.DependsOnID != "jt-def" {
		t.Errorf("depends_on = %q", got.DependsOnID)
	}
}

func TestNATSPublisher_CanceledContext(t *testing.T) {
	pub, ch, _ := natsPair(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := pub.Publish(ctx, TopicTaskCreated, TaskCreated{}); err == nil {
		t.Fatal("Publish with canceled context succeeded")
	}
	select {
	case msg := <-ch:
		t.Errorf("unexpected delivery %+v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNATSSubscriber_CancelClosesChannel(t *testing.T) {
	pub, ch, cancel := natsPair(t)

	// Publishing races with the cancel; neither side may panic.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			_ = pub.conn.Publish(TopicTaskCreated, []byte(`{}`))
		}
		_ = pub.conn.Flush()
	}()
	cancel()
	cancel()
	<-done

	// Whatever was buffered before the cancel drains, then the channel ends.
	timeout := time.After(time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-timeout:
			t.Fatal("channel still open after cancel")
		}
	}
}

func TestNATSSubscriber_ExtraOptions(t *testing.T) {
	url := startTestNATS(t)

	sub, err := NewNATSSubscriber(url,
		nats.Name("watch-test"),
		nats.ReconnectHandler(func(*nats.Conn) {}),
	)
	if err != nil {
		t.Fatalf("NewNATSSubscriber: %v", err)
	}
	defer sub.Close()

	if !sub.conn.IsConnected() {
		t.Fatal("not connected")
	}
	if name := sub.conn.Opts.Name; name != "watch-test" {
		t.Errorf("connection name = %q, caller option should win", name)
	}
	if sub.conn.Opts.MaxReconnect != -1 {
		t.Errorf("MaxReconnect = %d, want -1", sub.conn.Opts.MaxReconnect)
	}
}

func TestMailbox_DropsWhenFull(t *testing.T) {
	box := &mailbox{ch: make(chan *Message, 2)}
	for i := 0; i < 5; i++ {
		box.deliver(&Message{Topic: fmt.Sprint(i)})
	}
	if len(box.ch) != 2 {
		t.Fatalf("buffered %d, want 2", len(box.ch))
	}
	if got := (<-box.ch).Topic; got != "0" {
		t.Errorf("first = %q, want the oldest message kept", got)
	}

	box.close()
	box.close()
	box.deliver(&Message{Topic: "late"})

	var rest []string
	for m := range box.ch {
		rest = append(rest, m.Topic)
	}
	if len(rest) != 1 || rest[0] != "1" {
		t.Errorf("after close read %q, want the one buffered message and no late ones", rest)
	}
}

func TestMailbox_CloseWhileReaderDrains(t *testing.T) {
	box := &mailbox{ch: make(chan *Message, 64)}
	for i := 0; i < 64; i++ {
		box.deliver(&Message{})
	}

	drained := make(chan int)
	go func() {
		n := 0
		for range box.ch {
			n++
		}
		drained <- n
	}()

	closed := make(chan struct{})
	go func() {
		box.close()
		close(closed)
	}()

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("close blocked while another goroutine was reading")
	}
	box.deliver(&Message{})

	select {
	case n := <-drained:
		if n != 64 {
			t.Errorf("read %d messages, want the 64 buffered before close", n)
		}
	case <-time.After(time.Second):
		t.Fatal("reader never saw the close")
	}
}
