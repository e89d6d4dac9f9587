package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jarvis-tasks/jarvis/internal/events"
	"github.com/jarvis-tasks/jarvis/internal/model"
)

func TestSSEHub_BroadcastAndReceive(t *testing.T) {
	hub := newSSEHub()

	client := hub.subscribe(nil, "")
	defer hub.unsubscribe(client)

	hub.broadcast(events.TopicTaskCreated, "jt-1", []byte(`{"id":"jt-1"}`))

	select {
	case evt := <-client.ch:
		if evt.Topic != events.TopicTaskCreated || evt.ID != 1 || string(evt.Data) != `{"id":"jt-1"}` {
			t.Fatalf("got %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestSSEHub_Filters(t *testing.T) {
	for _, tc := range []struct {
		name   string
		topics []string
		taskID string
		want   []string // topic:task pairs delivered
	}{
		{"all", nil, "", []string{"tasks.task.created:jt-1", "tasks.label.added:jt-2", "tasks.comment.added:jt-1"}},
		{"task topics", []string{"tasks.task.*"}, "", []string{"tasks.task.created:jt-1"}},
		{"two patterns", []string{"tasks.task.*", "tasks.label.*"}, "", []string{"tasks.task.created:jt-1", "tasks.label.added:jt-2"}},
		{"one task", nil, "jt-1", []string{"tasks.task.created:jt-1", "tasks.comment.added:jt-1"}},
		{"task and topic", []string{"tasks.comment.>"}, "jt-1", []string{"tasks.comment.added:jt-1"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			hub := newSSEHub()
			client := hub.subscribe(tc.topics, tc.taskID)
			defer hub.unsubscribe(client)

			hub.broadcast(events.TopicTaskCreated, "jt-1", []byte(`{}`))
			hub.broadcast(events.TopicLabelAdded, "jt-2", []byte(`{}`))
			hub.broadcast(events.TopicCommentAdded, "jt-1", []byte(`{}`))

			var got []string
			for {
				select {
				case evt := <-client.ch:
					got = append(got, evt.Topic+":"+evt.TaskID)
					continue
				case <-time.After(50 * time.Millisecond):
				}
				break
			}
			if strings.Join(got, ",") != strings.Join(tc.want, ",") {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSSEHub_Unsubscribe(t *testing.T) {
	hub := newSSEHub()

	client := hub.subscribe(nil, "")
	hub.unsubscribe(client)
	if hub.clientCount() != 0 {
		t.Fatalf("clientCount = %d", hub.clientCount())
	}

	hub.broadcast(events.TopicTaskCreated, "jt-1", []byte(`{}`))

	select {
	case <-client.ch:
		t.Fatal("should not receive events after unsubscribe")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSSEHub_EventsSince(t *testing.T) {
	hub := newSSEHub()
	if evts := hub.eventsSince(0); len(evts) != 0 {
		t.Fatalf("expected 0 events, got %d", len(evts))
	}

	for range 5 {
		hub.broadcast(events.TopicTaskUpdated, "jt-1", []byte(`{}`))
	}

	evts := hub.eventsSince(2)
	if len(evts) != 3 || evts[0].ID != 3 || evts[2].ID != 5 {
		t.Fatalf("got %d events starting at %d", len(evts), evts[0].ID)
	}
	if len(hub.eventsSince(5)) != 0 {
		t.Fatal("expected nothing after the newest id")
	}
}

func TestSSEHub_ReplayWindow(t *testing.T) {
	hub := newSSEHub()
	for range sseReplaySize + 100 {
		hub.broadcast(events.TopicTaskUpdated, "jt-1", []byte(`{}`))
	}

	evts := hub.eventsSince(0)
	if len(evts) != sseReplaySize {
		t.Fatalf("expected %d events, got %d", sseReplaySize, len(evts))
	}
	if evts[0].ID != 101 || evts[len(evts)-1].ID != sseReplaySize+100 {
		t.Fatalf("window = [%d, %d]", evts[0].ID, evts[len(evts)-1].ID)
	}
}

func TestMatchTopicPattern(t *testing.T) {
	for _, tc := range []struct {
		pattern string
		topic   string
		want    bool
	}{
		{"tasks.task.created", "tasks.task.created", true},
		{"tasks.task.created", "tasks.task.updated", false},
		{"tasks.task.*", "tasks.task.created", true},
		{"tasks.task.*", "tasks.label.added", false},
		{"tasks.>", "tasks.dependency.added", true},
		{"tasks.>", "tasks", false},
		{"tasks.>", "other.topic", false},
		{"*.*.*", "tasks.task.created", true},
		{"*.*.*", "tasks.task", false},
	} {
		t.Run(tc.pattern+"_"+tc.topic, func(t *testing.T) {
			if got := matchTopicPattern(tc.pattern, tc.topic); got != tc.want {
				t.Fatalf("matchTopicPattern(%q, %q) = %v, want %v", tc.pattern, tc.topic, got, tc.want)
			}
		})
	}
}

// streamFor runs the stream handler until stop is called and returns the body.
func streamFor(t *testing.T, handler http.Handler, path string, header http.Header) (body func() string, stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest("GET", path, nil).WithContext(ctx)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		handler.ServeHTTP(rec, req)
	}()
	time.Sleep(50 * time.Millisecond)

	stopped := false
	stop = func() {
		if !stopped {
			stopped = true
			cancel()
			<-done
		}
	}
	t.Cleanup(stop)
	return func() string { stop(); return rec.Body.String() }, stop
}

func TestHandleEventStream_WireFormat(t *testing.T) {
	srv, _, handler := newTestServer()
	body, _ := streamFor(t, handler, "/v1/events/stream", nil)

	srv.sseHub.broadcast(events.TopicTaskCreated, "jt-fmt", []byte(`{"id":"jt-fmt"}`))
	time.Sleep(50 * time.Millisecond)

	out := body()
	if !strings.HasPrefix(out, "retry:3000\n\n") {
		t.Fatalf("expected retry hint first, got:\n%s", out)
	}

	scanner := bufio.NewScanner(strings.NewReader(out))
	var id, event, data string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "id:"):
			id = strings.TrimPrefix(line, "id:")
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimPrefix(line, "event:")
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimPrefix(line, "data:")
		}
	}
	if id != "1" || event != events.TopicTaskCreated || data != `{"id":"jt-fmt"}` {
		t.Fatalf("got id=%q event=%q data=%q", id, event, data)
	}
}

func TestHandleEventStream_LastEventID(t *testing.T) {
	srv, _, handler := newTestServer()
	srv.sseHub.broadcast(events.TopicTaskCreated, "jt-1", []byte(`{"n":1}`))
	srv.sseHub.broadcast(events.TopicTaskUpdated, "jt-1", []byte(`{"n":2}`))
	srv.sseHub.broadcast(events.TopicTaskDeleted, "jt-1", []byte(`{"n":3}`))

	body, _ := streamFor(t, handler, "/v1/events/stream", http.Header{"Last-Event-Id": {"1"}})
	out := body()
	if strings.Contains(out, `data:{"n":1}`) {
		t.Fatalf("expected event 1 to be skipped, got:\n%s", out)
	}
	if !strings.Contains(out, `data:{"n":2}`) || !strings.Contains(out, `data:{"n":3}`) {
		t.Fatalf("expected events 2 and 3, got:\n%s", out)
	}
}

func TestHandleEventStream_BoardChanges(t *testing.T) {
	_, ms, handler := newTestServer()
	ms.seed("jt-api", "Build API", model.StatusTodo)
	ms.seed("jt-docs", "Write docs", model.StatusTodo)

	all, _ := streamFor(t, handler, "/v1/events/stream", nil)
	deps, _ := streamFor(t, handler, "/v1/events/stream?topics=tasks.dependency.*&task_id=jt-docs", nil)

	requireStatus(t, doJSON(t, handler, "POST", "/v1/tasks/jt-docs/dependencies", map[string]any{
		"depends_on_id": "jt-api", "created_by": "ana",
	}), 201)
	requireStatus(t, doJSON(t, handler, "POST", "/v1/tasks/jt-api/labels", map[string]any{"label": "backend"}), 201)
	time.Sleep(50 * time.Millisecond)

	out := all()
	if !strings.Contains(out, "event:"+events.TopicDependencyAdded) || !strings.Contains(out, "event:"+events.TopicLabelAdded) {
		t.Fatalf("expected dependency and label events, got:\n%s", out)
	}

	out = deps()
	if strings.Contains(out, events.TopicLabelAdded) {
		t.Fatalf("label event should be filtered, got:\n%s", out)
	}
	var payload events.DependencyAdded
	for _, line := range strings.Split(out, "\n") {
		if d, ok := strings.CutPrefix(line, "data:"); ok {
			if err := json.Unmarshal([]byte(d), &payload); err != nil {
				t.Fatalf("bad payload %q: %v", d, err)
			}
		}
	}
	if payload.Dependency == nil || payload.Dependency.DependsOnID != "jt-api" || payload.Depth != 1 {
		t.Fatalf("payload = %+v", payload)
	}
}

func TestHandleEventStream_RealServer(t *testing.T) {
	_, _, handler := newTestServer()
	ts := httptest.NewServer(handler)
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, "GET", ts.URL+"/v1/events/stream?topics=tasks.task.created", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	got := make(chan string, 1)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if ev, ok := strings.CutPrefix(scanner.Text(), "event:"); ok {
				got <- ev
				return
			}
		}
	}()

	time.Sleep(50 * time.Millisecond)
	create, err := http.Post(ts.URL+"/v1/tasks", "application/json", strings.NewReader(`{"title":"Ship it"}`))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	create.Body.Close()
	if create.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", create.StatusCode)
	}

	select {
	case ev := <-got:
		if ev != events.TopicTaskCreated {
			t.Fatalf("event = %q", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for task created event")
	}
}
