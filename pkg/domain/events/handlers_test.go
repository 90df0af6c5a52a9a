package events

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

type recordingNotifier struct {
	levels   []NotificationLevel
	messages []string
	err      error
}

func (n *recordingNotifier) Notify(ctx context.Context, level NotificationLevel, title, message string) error {
	n.levels = append(n.levels, level)
	n.messages = append(n.messages, message)
	return n.err
}

func TestPlanNotificationHandler(t *testing.T) {
	notifier := &recordingNotifier{}
	d := NewEventDispatcher(nil)
	d.Register(NewPlanNotificationHandler(notifier, nil).Registration())

	for _, et := range []string{EventTypePlanCreated, EventTypePlanRejected, EventTypeItemEdited} {
		if err := d.Dispatch(context.Background(), planEvent(et)); err != nil {
			t.Fatalf("Dispatch(%s) failed: %v", et, err)
		}
	}
	if len(notifier.levels) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(notifier.levels))
	}
	if notifier.levels[1] != NotificationLevelWarning {
		t.Errorf("rejection should warn, got %s", notifier.levels[1])
	}

	notifier.err = errors.New("smtp down")
	if err := d.Dispatch(context.Background(), planEvent(EventTypePlanApproved)); err == nil {
		t.Error("expected notifier failure to surface")
	}
}

func TestActivityTimeline(t *testing.T) {
	tl := NewActivityTimeline(3)
	base := time.Date(2025, 6, 9, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		fam := "fam-1"
		if i%2 == 1 {
			fam = "fam-2"
		}
		tl.Apply(NewPlanEvent(EventTypeItemEdited, fmt.Sprintf("plan-%d", i), fam, "bob", base.Add(time.Duration(i)*time.Minute), nil))
	}

	all := tl.Recent("", 10)
	if len(all) != 3 || all[0].AggregateID != "plan-2" || all[2].AggregateID != "plan-4" {
		t.Errorf("unexpected timeline %+v", all)
	}
	fam1 := tl.Recent("fam-1", 10)
	if len(fam1) != 2 || fam1[0].AggregateID != "plan-2" {
		t.Errorf("unexpected family filter result %+v", fam1)
	}
}
