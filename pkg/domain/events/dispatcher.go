package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// AllEvents registers a handler for every event type.
const AllEvents = "*"

// EventHandlerFunc handles one domain event.
type EventHandlerFunc func(ctx context.Context, event DomainEvent) error

// HandlerRegistration binds a named handler to the event types it consumes.
type HandlerRegistration struct {
	EventTypes []string
	Handler    EventHandlerFunc
	Name       string
}

// Publisher accepts events without waiting for delivery.
type Publisher interface {
	Publish(ctx context.Context, event DomainEvent)
}

type namedHandler struct {
	name    string
	handler EventHandlerFunc
}

// EventDispatcher fans plan and occurrence events out to the audit log,
// projections, metrics and notification channels. Every handler runs even
// when an earlier one fails.
type EventDispatcher struct {
	mu       sync.RWMutex
	handlers map[string][]namedHandler
	logger   *slog.Logger
	inflight sync.WaitGroup
}

func NewEventDispatcher(logger *slog.Logger) *EventDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventDispatcher{
		handlers: make(map[string][]namedHandler),
		logger:   logger,
	}
}

func (d *EventDispatcher) Register(reg HandlerRegistration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, t := range reg.EventTypes {
		d.handlers[t] = append(d.handlers[t], namedHandler{name: reg.Name, handler: reg.Handler})
	}
}

func (d *EventDispatcher) RegisterHandler(name string, handler EventHandlerFunc, eventTypes ...string) {
	d.Register(HandlerRegistration{Name: name, Handler: handler, EventTypes: eventTypes})
}

func (d *EventDispatcher) RegisterWildcard(name string, handler EventHandlerFunc) {
	d.RegisterHandler(name, handler, AllEvents)
}

// snapshot copies the handlers for eventType so handlers run without the lock.
func (d *EventDispatcher) snapshot(eventType string) []namedHandler {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]namedHandler, 0, len(d.handlers[eventType])+len(d.handlers[AllEvents]))
	out = append(out, d.handlers[eventType]...)
	return append(out, d.handlers[AllEvents]...)
}

// Dispatch delivers the event synchronously, in registration order, to the
// type-specific handlers and then the wildcard ones. Failures are joined.
func (d *EventDispatcher) Dispatch(ctx context.Context, event DomainEvent) error {
	var errs []error
	for _, nh := range d.snapshot(event.EventType()) {
		if err := nh.handler(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("handler %s failed for %s: %w", nh.name, event.EventType(), err))
		}
	}
	return errors.Join(errs...)
}

// Publish dispatches in the background. The caller's cancellation does not
// abort delivery; failures are logged.
func (d *EventDispatcher) Publish(ctx context.Context, event DomainEvent) {
	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		if err := d.Dispatch(context.WithoutCancel(ctx), event); err != nil {
			d.logger.Warn("event delivery failed",
				"event_type", event.EventType(),
				"aggregate_id", event.AggregateID(),
				"error", err)
		}
	}()
}

// Wait blocks until every published event has been delivered.
func (d *EventDispatcher) Wait() {
	d.inflight.Wait()
}

// HasHandlers reports whether anything would receive eventType.
func (d *EventDispatcher) HasHandlers(eventType string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.handlers[eventType]) > 0 || len(d.handlers[AllEvents]) > 0
}
