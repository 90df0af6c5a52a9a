// Package events defines the domain events published by plan operations.
package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DomainEvent is the base interface for all domain events.
type DomainEvent interface {
	EventType() string
	AggregateID() string
	AggregateType() string
	OccurredAt() time.Time
}

// BaseEvent provides common fields for all events. It is also the wire
// shape delivered to messaging adapters and stream clients.
type BaseEvent struct {
	ID             string         `json:"id"`
	Type           string         `json:"type"`
	AggregateID_   string         `json:"aggregate_id"`
	AggregateType_ string         `json:"aggregate_type"`
	FamilyID       string         `json:"family_id,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
	Actor          string         `json:"actor,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	// PrevHash and Hash chain the audit log; they are set when the event
	// is appended there.
	PrevHash string `json:"prev_hash,omitempty"`
	Hash     string `json:"hash,omitempty"`
}

func (e BaseEvent) EventType() string     { return e.Type }
func (e BaseEvent) AggregateID() string   { return e.AggregateID_ }
func (e BaseEvent) AggregateType() string { return e.AggregateType_ }
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

// String renders a one-line description for logs and chat notifications.
func (e BaseEvent) String() string {
	msg := describe(e.Type)
	if week, ok := e.Metadata["week_start"]; ok {
		msg += fmt.Sprintf(" (week of %v)", week)
	}
	if e.Actor != "" {
		msg += " by " + e.Actor
	}
	return msg
}

// Aggregate types.
const (
	AggregatePlan       = "weekly_plan"
	AggregateOccurrence = "occurrence"
)

// Event types.
const (
	EventTypePlanCreated       = "plan.created"
	EventTypePlanSubmitted     = "plan.submitted"
	EventTypePlanApproved      = "plan.approved"
	EventTypePlanRejected      = "plan.rejected"
	EventTypePlanExpired       = "plan.expired"
	EventTypePlanDeleted       = "plan.deleted"
	EventTypeDecisionRecorded  = "plan.decision_recorded"
	EventTypeApprovalsReset    = "plan.approvals_reset"
	EventTypeItemEdited        = "plan.item_edited"
	EventTypeItemDeleted       = "plan.item_deleted"
	EventTypeGenerationFailed  = "plan.generation_failed"
	EventTypeOccurrenceUpdated = "occurrence.updated"
	EventTypeConflictRecorded  = "conflict.recorded"
)

// NotifyEventTypes are the events announced to family members.
var NotifyEventTypes = []string{
	EventTypePlanCreated,
	EventTypePlanSubmitted,
	EventTypePlanApproved,
	EventTypePlanRejected,
	EventTypePlanExpired,
}

func describe(eventType string) string {
	switch eventType {
	case EventTypePlanCreated:
		return "A new weekly plan is ready for review"
	case EventTypePlanSubmitted:
		return "The weekly plan was submitted for approval"
	case EventTypePlanApproved:
		return "The weekly plan was approved by everyone"
	case EventTypePlanRejected:
		return "The weekly plan was rejected"
	case EventTypePlanExpired:
		return "The weekly plan expired before it was approved"
	case EventTypePlanDeleted:
		return "The weekly plan was deleted"
	case EventTypeDecisionRecorded:
		return "An approval decision was recorded"
	case EventTypeApprovalsReset:
		return "Approvals were reset after an edit"
	case EventTypeItemEdited:
		return "A plan item was edited"
	case EventTypeItemDeleted:
		return "A plan item was removed"
	case EventTypeGenerationFailed:
		return "No tasks could be scheduled"
	case EventTypeOccurrenceUpdated:
		return "An occurrence was updated"
	case EventTypeConflictRecorded:
		return "A schedule conflict was recorded"
	default:
		return eventType
	}
}

// NewPlanEvent builds an event about a weekly plan.
func NewPlanEvent(eventType, planID, familyID, actor string, at time.Time, metadata map[string]any) *BaseEvent {
	return &BaseEvent{
		ID:             uuid.NewString(),
		Type:           eventType,
		AggregateID_:   planID,
		AggregateType_: AggregatePlan,
		FamilyID:       familyID,
		Timestamp:      at,
		Actor:          actor,
		Metadata:       metadata,
	}
}

// NewOccurrenceEvent builds an event about a scheduled occurrence.
func NewOccurrenceEvent(occurrenceID, familyID, actor string, at time.Time, metadata map[string]any) *BaseEvent {
	return &BaseEvent{
		ID:             uuid.NewString(),
		Type:           EventTypeOccurrenceUpdated,
		AggregateID_:   occurrenceID,
		AggregateType_: AggregateOccurrence,
		FamilyID:       familyID,
		Timestamp:      at,
		Actor:          actor,
		Metadata:       metadata,
	}
}

// AsBase returns the wire representation of any domain event.
func AsBase(event DomainEvent) *BaseEvent {
	switch e := event.(type) {
	case *BaseEvent:
		return e
	case BaseEvent:
		return &e
	}
	return &BaseEvent{
		Type:           event.EventType(),
		AggregateID_:   event.AggregateID(),
		AggregateType_: event.AggregateType(),
		Timestamp:      event.OccurredAt(),
	}
}
