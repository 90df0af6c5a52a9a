package stream

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/events"
)

func planEvent(eventType, familyID string) *events.BaseEvent {
	return events.NewPlanEvent(eventType, "plan-1", familyID, "alice", time.Now(), nil)
}

func waitForClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d, want %d", h.Clients(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_WebSocketFiltersByFamily(t *testing.T) {
	hub := NewHub(nil, nil)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?family=fam-1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitForClients(t, hub, 1)

	d := events.NewEventDispatcher(nil)
	d.Register(hub.Registration())
	_ = d.Dispatch(context.Background(), planEvent(events.EventTypePlanCreated, "fam-2"))
	_ = d.Dispatch(context.Background(), planEvent(events.EventTypePlanApproved, "fam-1"))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var m Message
	if err := conn.ReadJSON(&m); err != nil {
		t.Fatalf("read: %v", err)
	}
	if m.Type != events.EventTypePlanApproved || m.FamilyID != "fam-1" {
		t.Errorf("unexpected message: %+v", m)
	}
	if !strings.Contains(m.Summary, "approved") {
		t.Errorf("summary = %q", m.Summary)
	}

	conn.Close()
	waitForClients(t, hub, 0)
}

func TestHub_ReplaysTimeline(t *testing.T) {
	timeline := events.NewActivityTimeline(10)
	timeline.Apply(planEvent(events.EventTypePlanSubmitted, "fam-1"))
	timeline.Apply(planEvent(events.EventTypePlanSubmitted, "fam-2"))
	hub := NewHub(timeline, nil)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"?family=fam-2", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var m Message
	if err := conn.ReadJSON(&m); err != nil {
		t.Fatalf("read: %v", err)
	}
	if m.FamilyID != "fam-2" || m.Type != events.EventTypePlanSubmitted {
		t.Errorf("unexpected replay: %+v", m)
	}
}

func TestHub_SSE(t *testing.T) {
	hub := NewHub(nil, nil)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeSSE))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "?types=plan.expired")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}
	waitForClients(t, hub, 1)

	_ = hub.Handle(context.Background(), planEvent(events.EventTypePlanCreated, "fam-1"))
	_ = hub.Handle(context.Background(), planEvent(events.EventTypePlanExpired, "fam-1"))

	lines := make(chan string, 8)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	timeout := time.After(2 * time.Second)
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatal("stream closed")
			}
			if strings.HasPrefix(line, "event: ") {
				if got := strings.TrimPrefix(line, "event: "); got != events.EventTypePlanExpired {
					t.Fatalf("event = %q, want plan.expired", got)
				}
				return
			}
		case <-timeout:
			t.Fatal("no event received")
		}
	}
}

func TestHub_DropsForSlowClients(t *testing.T) {
	hub := NewHub(nil, nil)
	c := hub.subscribe(filter{})
	defer hub.unsubscribe(c)

	for i := 0; i < clientBuffer+5; i++ {
		_ = hub.Handle(context.Background(), planEvent(events.EventTypeItemEdited, "fam-1"))
	}
	if hub.Dropped() != 5 {
		t.Errorf("dropped = %d, want 5", hub.Dropped())
	}
}
