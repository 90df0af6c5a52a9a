package application_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/SECURESLOG/resolution-ai-sub002/pkg/application"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/events"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/family"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/proposal"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/scheduling"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/storage"
)

// Monday 10 March 2025, 08:00 UTC.
var monday = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*events.BaseEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e events.DomainEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events.AsBase(e))
}

func (p *recordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

func (p *recordingPublisher) Has(eventType string) bool {
	for _, t := range p.Types() {
		if t == eventType {
			return true
		}
	}
	return false
}

// stubGenerator returns a fixed generation and remembers its input.
type stubGenerator struct {
	gen   *proposal.Generation
	err   error
	input application.GenerationInput
	calls int
}

func (g *stubGenerator) Generate(_ context.Context, in application.GenerationInput) (*proposal.Generation, error) {
	g.calls++
	g.input = in
	return g.gen, g.err
}

type fixture struct {
	t         *testing.T
	ctx       context.Context
	raw       *storage.SQLStore
	store     application.Store
	clock     *testClock
	publisher *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	raw, err := storage.Open(ctx, storage.Options{Driver: storage.DriverSQLite, DSN: filepath.Join(t.TempDir(), "app.db")})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = raw.Close() })

	f := &fixture{
		t:         t,
		ctx:       ctx,
		raw:       raw,
		store:     application.NewSQLStore(raw),
		clock:     &testClock{now: monday},
		publisher: &recordingPublisher{},
	}
	f.seed()
	return f
}

func (f *fixture) options() []application.Option {
	return []application.Option{
		application.WithClock(f.clock.Now),
		application.WithLocation(time.UTC),
		application.WithPublisher(f.publisher),
	}
}

func (f *fixture) must(err error) {
	f.t.Helper()
	if err != nil {
		f.t.Fatal(err)
	}
}

// seed creates family fam-1 with alice (admin), bob (member), clara
// (viewer) and three tasks.
func (f *fixture) seed() {
	f.must(f.raw.CreateFamily(f.ctx, &family.Family{ID: "fam-1", Name: "Rivera", Timezone: "UTC", CreatedAt: monday}))
	for _, m := range []family.Member{
		{FamilyID: "fam-1", UserID: "alice", DisplayName: "Alice", Role: family.RoleAdmin, JoinedAt: monday},
		{FamilyID: "fam-1", UserID: "bob", DisplayName: "Bob", Role: family.RoleMember, JoinedAt: monday},
		{FamilyID: "fam-1", UserID: "clara", DisplayName: "Clara", Role: family.RoleViewer, JoinedAt: monday},
	} {
		f.must(f.raw.AddMember(f.ctx, m))
	}

	gymTime := scheduling.MustTimeOfDay(7, 0)
	tasks := []*scheduling.TaskDefinition{
		{ID: "gym", OwnerID: "alice", Name: "Gym", Type: scheduling.TaskTypeResolution, DurationMin: 45, Priority: 2,
			Mode: scheduling.ModeFixed, FixedDays: scheduling.Weekdays{scheduling.Monday, scheduling.Thursday}, FixedTime: &gymTime, CreatedAt: monday},
		{ID: "dishes", OwnerID: "alice", FamilyID: "fam-1", Name: "Dishes", Type: scheduling.TaskTypeHousehold, DurationMin: 30, Priority: 3,
			Mode: scheduling.ModeFlexible, Frequency: 1, FrequencyPeriod: scheduling.PeriodDay, CreatedAt: monday.Add(time.Second)},
		{ID: "laundry", OwnerID: "bob", FamilyID: "fam-1", Name: "Laundry", Type: scheduling.TaskTypeHousehold, DurationMin: 60, Priority: 3,
			Mode: scheduling.ModeFlexible, Frequency: 2, FrequencyPeriod: scheduling.PeriodWeek,
			RequiredDays: scheduling.Weekdays{scheduling.Saturday, scheduling.Sunday}, CreatedAt: monday.Add(2 * time.Second)},
	}
	for _, task := range tasks {
		f.must(f.raw.CreateTask(f.ctx, task))
	}
}

func prop(task, user, date, start string) proposal.Proposal {
	return proposal.Proposal{TaskID: task, AssignedUserID: user, ScheduledDate: date, StartTime: start}
}

// generate creates a draft plan for the current week from proposals.
func (f *fixture) generate(props ...proposal.Proposal) *application.GenerateResult {
	f.t.Helper()
	svc := application.NewPlanningService(f.store, &stubGenerator{gen: &proposal.Generation{Proposals: props, Reasoning: "balanced"}}, f.options()...)
	res, err := svc.GenerateWeek(f.ctx, application.GenerateRequest{FamilyID: "fam-1", RequestedBy: "alice"})
	if err != nil {
		f.t.Fatalf("GenerateWeek failed: %v", err)
	}
	return res
}

// standardPlan has gym Monday 07:05 (alice), dishes Tuesday 18:00 (alice)
// and laundry Saturday 10:00 (bob).
func (f *fixture) standardPlan() *application.GenerateResult {
	return f.generate(
		prop("gym", "alice", "2025-03-10", "07:05"),
		prop("dishes", "alice", "2025-03-11", "18:00"),
		prop("laundry", "bob", "2025-03-15", "10:00"),
	)
}

func itemFor(t *testing.T, res *application.GenerateResult, taskID string) string {
	t.Helper()
	for _, it := range res.Items {
		if it.TaskID == taskID {
			return it.ID
		}
	}
	t.Fatalf("no item for task %s", taskID)
	return ""
}
