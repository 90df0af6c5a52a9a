package application

import (
	"context"

	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/events"
)

// EventLog persists events, normally the workspace events.jsonl.
type EventLog interface {
	AppendEvent(e *events.BaseEvent) error
	LoadEvents() ([]*events.BaseEvent, error)
}

// AuditRecorder appends every dispatched event to an EventLog.
type AuditRecorder struct {
	log EventLog
}

func NewAuditRecorder(log EventLog) *AuditRecorder {
	return &AuditRecorder{log: log}
}

func (a *AuditRecorder) Handle(ctx context.Context, event events.DomainEvent) error {
	return a.log.AppendEvent(events.AsBase(event))
}

// Register subscribes the recorder to all events.
func (a *AuditRecorder) Register(d *events.EventDispatcher) {
	d.RegisterWildcard("audit_log", a.Handle)
}

// History returns logged events for a family, oldest first. An empty
// familyID returns everything.
func (a *AuditRecorder) History(familyID string) ([]*events.BaseEvent, error) {
	all, err := a.log.LoadEvents()
	if err != nil {
		return nil, err
	}
	if familyID == "" {
		return all, nil
	}
	var out []*events.BaseEvent
	for _, e := range all {
		if e.FamilyID == familyID {
			out = append(out, e)
		}
	}
	return out, nil
}

// Verify checks the hash chain of the whole log and returns its length.
func (a *AuditRecorder) Verify() (int, error) {
	all, err := a.log.LoadEvents()
	if err != nil {
		return 0, err
	}
	return len(all), events.VerifyChain(all)
}
