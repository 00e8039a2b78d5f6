package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/yungbote/coursehub-backend/internal/platform/logger"
)

func recvMessage(t *testing.T, ch <-chan SSEMessage) SSEMessage {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for message")
	}
	return SSEMessage{}
}

func expectSilence(t *testing.T, ch <-chan SSEMessage) {
	t.Helper()
	select {
	case msg, ok := <-ch:
		if ok {
			t.Fatalf("unexpected message %+v", msg)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubDeliversInOrderAndReattaches(t *testing.T) {
	hub := NewHub(logger.Nop())
	channel := CourseChannel("u1", "c1")

	first := hub.Attach("u1", channel)
	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventLessonProgressUpdated})
	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventCourseProgressUpdated})
	if got := recvMessage(t, first.C).Event; got != SSEEventLessonProgressUpdated {
		t.Fatalf("first event: want=%s got=%s", SSEEventLessonProgressUpdated, got)
	}
	if got := recvMessage(t, first.C).Event; got != SSEEventCourseProgressUpdated {
		t.Fatalf("second event: want=%s got=%s", SSEEventCourseProgressUpdated, got)
	}

	hub.Detach(first)
	hub.Detach(first)
	if _, open := <-first.C; open {
		t.Fatalf("listener channel should be closed after detach")
	}
	if n := hub.Subscribers(channel); n != 0 {
		t.Fatalf("subscribers after detach: want=0 got=%d", n)
	}

	second := hub.Attach("u1", channel, "  ")
	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventLessonCompleted})
	if got := recvMessage(t, second.C).Event; got != SSEEventLessonCompleted {
		t.Fatalf("reattach event: want=%s got=%s", SSEEventLessonCompleted, got)
	}
}

func TestHubIsolatesUsers(t *testing.T) {
	hub := NewHub(logger.Nop())
	a := hub.Attach("u1", CourseChannel("u1", "c1"))
	b := hub.Attach("u2", CourseChannel("u2", "c1"))

	hub.Broadcast(SSEMessage{Channel: CourseChannel("u1", "c1"), Event: SSEEventCourseProgressUpdated})
	recvMessage(t, a.C)
	expectSilence(t, b.C)
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(logger.Nop())
	channel := CourseChannel("u1", "c1")
	l := hub.Attach("u1", channel)
	for i := 0; i < listenerBuffer+5; i++ {
		hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventCourseProgressUpdated})
	}
	if n := len(l.C); n != listenerBuffer {
		t.Fatalf("buffered: want=%d got=%d", listenerBuffer, n)
	}
}

func TestHubSubscribe(t *testing.T) {
	hub := NewHub(logger.Nop())
	channel := LessonChannel("u1", "c1", "l1")
	got := make(chan SSEMessage, 4)

	unsubscribe := hub.Subscribe("u1", channel, func(m SSEMessage) { got <- m })
	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventLessonProgressUpdated})
	if msg := recvMessage(t, got); msg.Event != SSEEventLessonProgressUpdated {
		t.Fatalf("subscribe: want=%s got=%s", SSEEventLessonProgressUpdated, msg.Event)
	}

	unsubscribe()
	unsubscribe()
	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventLessonCompleted})
	expectSilence(t, got)
}

func TestHubStream(t *testing.T) {
	hub := NewHub(logger.Nop())
	channel := CourseChannel("u1", "c1")
	l := hub.Attach("u1", channel)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		hub.Stream(rec, req, l)
		close(done)
	}()

	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventCourseProgressUpdated, Data: map[string]any{"pct": 43}})
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Stream did not return after cancel")
	}

	body := rec.Body.String()
	if !strings.Contains(body, "event: course_progress_updated\n") || !strings.Contains(body, `"pct":43`) {
		t.Fatalf("unexpected stream body: %q", body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type: want=text/event-stream got=%q", ct)
	}
}

func TestHubStreamEndsOnDetach(t *testing.T) {
	hub := NewHub(logger.Nop())
	l := hub.Attach("u1", CourseChannel("u1", "c1"))
	done := make(chan struct{})
	go func() {
		hub.Stream(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/stream", nil), l)
		close(done)
	}()
	hub.Detach(l)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Stream did not return after detach")
	}
}

func TestChannelsDoNotCollide(t *testing.T) {
	if CourseChannel("u1", "c:l") == LessonChannel("u1", "c", "l") {
		t.Fatalf("course id containing ':' spells a lesson channel")
	}
	if LessonChannel("u1", "c:x", "l") == LessonChannel("u1", "c", "x:l") {
		t.Fatalf("lesson channels collide across separators")
	}
	if got := CourseChannel("u1", "c1"); got != "progress:course:u1:c1" {
		t.Fatalf("course channel: want=progress:course:u1:c1 got=%s", got)
	}
}
