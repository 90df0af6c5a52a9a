package events

import (
	"context"
	"sync"
	"time"
)

// TimelineEntry is one line in the activity timeline.
type TimelineEntry struct {
	Timestamp   time.Time      `json:"timestamp"`
	EventType   string         `json:"event_type"`
	Actor       string         `json:"actor,omitempty"`
	Description string         `json:"description"`
	AggregateID string         `json:"aggregate_id"`
	FamilyID    string         `json:"family_id,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// ActivityTimeline keeps the most recent events in memory for dashboards
// and stream clients that connect late.
type ActivityTimeline struct {
	mu       sync.RWMutex
	capacity int
	timeline []TimelineEntry
}

// NewActivityTimeline keeps at most capacity entries (100 when capacity <= 0).
func NewActivityTimeline(capacity int) *ActivityTimeline {
	if capacity <= 0 {
		capacity = 100
	}
	return &ActivityTimeline{capacity: capacity}
}

func (p *ActivityTimeline) Name() string { return "activity_timeline" }

// Apply records the event, dropping the oldest entry when full.
func (p *ActivityTimeline) Apply(event *BaseEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.timeline = append(p.timeline, TimelineEntry{
		Timestamp:   event.Timestamp,
		EventType:   event.Type,
		Actor:       event.Actor,
		Description: event.String(),
		AggregateID: event.AggregateID_,
		FamilyID:    event.FamilyID,
		Metadata:    event.Metadata,
	})
	if over := len(p.timeline) - p.capacity; over > 0 {
		p.timeline = append([]TimelineEntry(nil), p.timeline[over:]...)
	}
}

// Handle adapts Apply to the dispatcher.
func (p *ActivityTimeline) Handle(ctx context.Context, event DomainEvent) error {
	p.Apply(AsBase(event))
	return nil
}

func (p *ActivityTimeline) Registration() HandlerRegistration {
	return HandlerRegistration{
		Name:       "ActivityTimeline",
		Handler:    p.Handle,
		EventTypes: []string{AllEvents},
	}
}

// Recent returns the most recent n entries for a family, oldest first. An
// empty familyID matches every family.
func (p *ActivityTimeline) Recent(familyID string, n int) []TimelineEntry {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var result []TimelineEntry
	for i := len(p.timeline) - 1; i >= 0 && len(result) < n; i-- {
		e := p.timeline[i]
		if familyID == "" || e.FamilyID == familyID {
			result = append(result, e)
		}
	}
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	return result
}
