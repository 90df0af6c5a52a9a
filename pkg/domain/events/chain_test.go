package events

import (
	"errors"
	"testing"
	"time"
)

func chainOf(n int) []*BaseEvent {
	var out []*BaseEvent
	prev := ""
	ts := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		e := (&BaseEvent{
			ID:        string(rune('a' + i)),
			Type:      EventTypePlanCreated,
			FamilyID:  "fam",
			Timestamp: ts.Add(time.Duration(i) * time.Minute),
			Actor:     "alice",
			Metadata:  map[string]any{"week_start": "2025-03-10", "items": i},
		}).Chain(prev)
		prev = e.Hash
		out = append(out, e)
	}
	return out
}

func TestCalculateHashIsDeterministic(t *testing.T) {
	a := &BaseEvent{ID: "1", Type: "x", Metadata: map[string]any{"b": 2, "a": 1}}
	b := &BaseEvent{ID: "1", Type: "x", Metadata: map[string]any{"a": 1, "b": 2}}
	if a.CalculateHash() != b.CalculateHash() {
		t.Fatal("metadata key order must not change the hash")
	}
	b.Actor = "bob"
	if a.CalculateHash() == b.CalculateHash() {
		t.Fatal("actor must be part of the hash")
	}
}

func TestChainDoesNotMutate(t *testing.T) {
	e := &BaseEvent{ID: "1"}
	c := e.Chain("prev")
	if e.Hash != "" || e.PrevHash != "" {
		t.Fatal("Chain must return a copy")
	}
	if c.PrevHash != "prev" || c.Hash == "" {
		t.Fatalf("unexpected chained event %+v", c)
	}
}

func TestVerifyChain(t *testing.T) {
	tests := []struct {
		name    string
		log     func() []*BaseEvent
		wantErr bool
	}{
		{name: "empty", log: func() []*BaseEvent { return nil }},
		{name: "intact", log: func() []*BaseEvent { return chainOf(4) }},
		{
			name: "legacy entries first",
			log: func() []*BaseEvent {
				return append([]*BaseEvent{{ID: "old"}}, chainOf(2)...)
			},
		},
		{
			name: "modified actor",
			log: func() []*BaseEvent {
				l := chainOf(3)
				l[1].Actor = "mallory"
				return l
			},
			wantErr: true,
		},
		{
			name: "removed entry",
			log: func() []*BaseEvent {
				l := chainOf(3)
				return []*BaseEvent{l[0], l[2]}
			},
			wantErr: true,
		},
		{
			name: "unhashed entry after chain",
			log: func() []*BaseEvent {
				return append(chainOf(2), &BaseEvent{ID: "late"})
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifyChain(tt.log())
			if tt.wantErr != (err != nil) {
				t.Fatalf("VerifyChain() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrChainBroken) {
				t.Fatalf("expected ErrChainBroken, got %v", err)
			}
		})
	}
}
