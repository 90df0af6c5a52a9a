// Package stream pushes domain events to connected clients over WebSocket
// and Server-Sent Events.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/events"
)

const (
	clientBuffer = 64
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = pongWait * 9 / 10
)

// Message is the JSON frame sent to clients.
type Message struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	AggregateID string         `json:"aggregate_id"`
	FamilyID    string         `json:"family_id,omitempty"`
	Actor       string         `json:"actor,omitempty"`
	Summary     string         `json:"summary"`
	Timestamp   time.Time      `json:"timestamp"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func newMessage(e *events.BaseEvent) Message {
	return Message{
		ID:          e.ID,
		Type:        e.Type,
		AggregateID: e.AggregateID_,
		FamilyID:    e.FamilyID,
		Actor:       e.Actor,
		Summary:     e.String(),
		Timestamp:   e.Timestamp,
		Metadata:    e.Metadata,
	}
}

// filter narrows a subscription by family and event types, taken from the
// "family" and "types" query parameters.
type filter struct {
	family string
	types  map[string]bool
}

func parseFilter(r *http.Request) filter {
	f := filter{family: r.URL.Query().Get("family")}
	if types := r.URL.Query().Get("types"); types != "" {
		f.types = make(map[string]bool)
		for _, t := range strings.Split(types, ",") {
			if t = strings.TrimSpace(t); t != "" {
				f.types[t] = true
			}
		}
	}
	return f
}

func (f filter) accepts(m Message) bool {
	if f.family != "" && m.FamilyID != f.family {
		return false
	}
	return len(f.types) == 0 || f.types[m.Type]
}

type client struct {
	ch     chan Message
	filter filter
}

// Hub fans dispatched events out to subscribers. Slow clients drop
// messages rather than blocking the dispatcher.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader
	timeline *events.ActivityTimeline

	mu      sync.RWMutex
	clients map[*client]struct{}
	dropped atomic.Int64
}

// NewHub creates a hub. When timeline is set, new clients first receive
// its recent entries.
func NewHub(timeline *events.ActivityTimeline, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:   logger,
		timeline: timeline,
		clients:  make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Handle is the dispatcher handler.
func (h *Hub) Handle(_ context.Context, event events.DomainEvent) error {
	base := events.AsBase(event)
	if base == nil {
		return nil
	}
	h.broadcast(newMessage(base))
	return nil
}

func (h *Hub) Registration() events.HandlerRegistration {
	return events.HandlerRegistration{
		Name:       "StreamHub",
		Handler:    h.Handle,
		EventTypes: []string{events.AllEvents},
	}
}

func (h *Hub) broadcast(m Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.filter.accepts(m) {
			continue
		}
		select {
		case c.ch <- m:
		default:
			h.dropped.Add(1)
		}
	}
}

// Dropped counts messages discarded for slow clients.
func (h *Hub) Dropped() int64 { return h.dropped.Load() }

// Clients is the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) subscribe(f filter) *client {
	c := &client{ch: make(chan Message, clientBuffer), filter: f}
	if h.timeline != nil {
		for _, e := range h.timeline.Recent(f.family, clientBuffer) {
			m := Message{
				Type:        e.EventType,
				AggregateID: e.AggregateID,
				FamilyID:    e.FamilyID,
				Actor:       e.Actor,
				Summary:     e.Description,
				Timestamp:   e.Timestamp,
				Metadata:    e.Metadata,
			}
			if f.accepts(m) {
				select {
				case c.ch <- m:
				default:
				}
			}
		}
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *Hub) unsubscribe(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// ServeWS upgrades the request and streams messages until the client
// disconnects. Client frames are read only to detect closure.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	c := h.subscribe(parseFilter(r))
	defer h.unsubscribe(c)
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case m := <-c.ch:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(m); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeSSE streams the same messages as Server-Sent Events.
func (h *Hub) ServeSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	c := h.subscribe(parseFilter(r))
	defer h.unsubscribe(c)

	for {
		select {
		case <-r.Context().Done():
			return
		case m := <-c.ch:
			data, err := json.Marshal(m)
			if err != nil {
				continue
			}
			if m.ID != "" {
				_, _ = fmt.Fprintf(w, "id: %s\n", m.ID)
			}
			_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", m.Type, data)
			flusher.Flush()
		}
	}
}
