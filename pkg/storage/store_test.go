package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/analytics"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/family"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/planning"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/scheduling"
)

var testNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func openTestStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := Open(context.Background(), Options{Driver: DriverSQLite, DSN: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedPlan(t *testing.T, s *SQLStore) (*planning.WeeklyPlan, *planning.WeeklyPlanItem) {
	t.Helper()
	ctx := context.Background()
	plan := planning.NewWeeklyPlan("plan-1", "fam-1", scheduling.MustParseDate("2025-03-10"), "alice", "", testNow, planning.DefaultExpiry, time.UTC)
	if err := s.CreatePlan(ctx, plan); err != nil {
		t.Fatalf("CreatePlan failed: %v", err)
	}
	item := &planning.WeeklyPlanItem{
		ID:             "item-1",
		PlanID:         plan.ID,
		TaskID:         "dishes",
		AssignedUserID: "alice",
		Date:           scheduling.MustParseDate("2025-03-11"),
		Start:          scheduling.MustTimeOfDay(18, 0),
		End:            scheduling.MustTimeOfDay(18, 30),
		CreatedAt:      testNow,
	}
	if err := s.CreateItems(ctx, []*planning.WeeklyPlanItem{item}); err != nil {
		t.Fatalf("CreateItems failed: %v", err)
	}
	return plan, item
}

func TestMigrate_Idempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	v, err := s.SchemaVersion(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if v != 1 {
		t.Errorf("expected schema version 1, got %d", v)
	}
	n, err := s.Migrate(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("expected no pending migrations, applied %d", n)
	}
}

func TestPlan_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	plan, _ := seedPlan(t, s)

	got, err := s.GetPlan(ctx, plan.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != planning.StatusDraft {
		t.Errorf("expected draft, got %s", got.Status)
	}
	if got.WeekStart != plan.WeekStart || got.WeekEnd != plan.WeekEnd {
		t.Errorf("week mismatch: %s..%s", got.WeekStart, got.WeekEnd)
	}
	if !got.ExpiresAt.Equal(plan.ExpiresAt) {
		t.Errorf("expiry mismatch: %v vs %v", got.ExpiresAt, plan.ExpiresAt)
	}
	if got.SubmittedAt != nil {
		t.Error("expected nil submitted_at")
	}

	submitted := testNow.Add(time.Hour)
	got.Status = planning.StatusPendingApproval
	got.SubmittedAt = &submitted
	got.UpdatedAt = submitted
	if err := s.UpdatePlan(ctx, got); err != nil {
		t.Fatal(err)
	}
	again, err := s.FindPlanByWeek(ctx, "fam-1", plan.WeekStart)
	if err != nil {
		t.Fatal(err)
	}
	if again.SubmittedAt == nil || !again.SubmittedAt.Equal(submitted) {
		t.Errorf("expected submitted_at %v, got %v", submitted, again.SubmittedAt)
	}
}

func TestPlan_UniqueWeek(t *testing.T) {
	s := openTestStore(t)
	plan, _ := seedPlan(t, s)

	dup := *plan
	dup.ID = "plan-2"
	err := s.CreatePlan(context.Background(), &dup)
	if !errors.Is(err, planning.ErrPlanExists) {
		t.Fatalf("expected ErrPlanExists, got %v", err)
	}
}

func TestPlan_NotFound(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.GetPlan(ctx, "missing"); !errors.Is(err, planning.ErrPlanNotFound) {
		t.Errorf("expected ErrPlanNotFound, got %v", err)
	}
	if _, err := s.FindPlanByWeek(ctx, "fam-1", scheduling.MustParseDate("2025-03-10")); !errors.Is(err, planning.ErrPlanNotFound) {
		t.Errorf("expected ErrPlanNotFound, got %v", err)
	}
}

func TestItem_ConditionalUpdate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, item := seedPlan(t, s)

	start := scheduling.MustTimeOfDay(19, 0)
	changes := planning.ItemChanges{Start: &start}
	edited := item.WithChanges(changes, 30, item.Diff(changes, 30), "bob", testNow)
	if err := s.UpdateItem(ctx, edited, 0); err != nil {
		t.Fatalf("first update failed: %v", err)
	}

	stale := item.WithChanges(changes, 30, item.Diff(changes, 30), "carol", testNow)
	err := s.UpdateItem(ctx, stale, 0)
	if !errors.Is(err, planning.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}

	got, err := s.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Version != 1 || got.LastEditedBy != "bob" {
		t.Errorf("expected version 1 by bob, got %d by %s", got.Version, got.LastEditedBy)
	}
	if got.End != scheduling.MustTimeOfDay(19, 30) {
		t.Errorf("expected end 19:30, got %s", got.End)
	}
	if len(got.EditHistory) != 1 || len(got.EditHistory[0].Changes) != 2 {
		t.Errorf("expected one history entry with start and end, got %+v", got.EditHistory)
	}

	missing := *edited
	missing.ID = "nope"
	if err := s.UpdateItem(ctx, &missing, 1); !errors.Is(err, planning.ErrItemNotFound) {
		t.Errorf("expected ErrItemNotFound, got %v", err)
	}
}

func TestItem_DeleteRequiresVersion(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, item := seedPlan(t, s)

	if err := s.DeleteItem(ctx, item.ID, 3); !errors.Is(err, planning.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
	if err := s.DeleteItem(ctx, item.ID, 0); err != nil {
		t.Fatal(err)
	}
	items, err := s.ListItems(ctx, item.PlanID)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 0 {
		t.Errorf("expected no items, got %d", len(items))
	}
}

func TestApprovals_Upsert(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	plan, _ := seedPlan(t, s)

	approvals := planning.NewApprovals(plan.ID, []string{"alice", "bob"}, testNow)
	if err := s.SaveApprovals(ctx, approvals); err != nil {
		t.Fatal(err)
	}
	approvals[1].Status = planning.ApprovalApproved
	approvals[1].Comment = "ok"
	if err := s.SaveApprovals(ctx, approvals[1:]); err != nil {
		t.Fatal(err)
	}

	got, err := s.ListApprovals(ctx, plan.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 approvals, got %d", len(got))
	}
	if got[1].UserID != "bob" || got[1].Status != planning.ApprovalApproved || got[1].Comment != "ok" {
		t.Errorf("unexpected bob approval: %+v", got[1])
	}
}

func TestDeletePlan_RemovesChildren(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	plan, _ := seedPlan(t, s)
	if err := s.SaveApprovals(ctx, planning.NewApprovals(plan.ID, []string{"alice"}, testNow)); err != nil {
		t.Fatal(err)
	}

	if err := s.DeletePlan(ctx, plan.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetPlan(ctx, plan.ID); !errors.Is(err, planning.ErrPlanNotFound) {
		t.Errorf("expected plan gone, got %v", err)
	}
	approvals, err := s.ListApprovals(ctx, plan.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(approvals) != 0 {
		t.Errorf("expected approvals removed, got %d", len(approvals))
	}
}

func TestListExpirable(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	plan, _ := seedPlan(t, s)

	due, err := s.ListExpirable(ctx, plan.ExpiresAt.Add(-time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 0 {
		t.Errorf("expected nothing due before expiry, got %d", len(due))
	}
	due, err = s.ListExpirable(ctx, plan.ExpiresAt.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 1 || due[0].ID != plan.ID {
		t.Errorf("expected plan-1 due, got %+v", due)
	}
}

func TestInTx_RollsBack(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.InTx(ctx, func(tx *SQLStore) error {
		plan := planning.NewWeeklyPlan("plan-tx", "fam-1", scheduling.MustParseDate("2025-03-17"), "alice", "", testNow, planning.DefaultExpiry, time.UTC)
		if err := tx.CreatePlan(ctx, plan); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := s.GetPlan(ctx, "plan-tx"); !errors.Is(err, planning.ErrPlanNotFound) {
		t.Errorf("expected rolled-back plan to be absent, got %v", err)
	}
}

func TestTasks_ListIncludesMemberPersonalTasks(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.CreateFamily(ctx, &family.Family{ID: "fam-1", Name: "Home", Timezone: "UTC", CreatedAt: testNow}); err != nil {
		t.Fatal(err)
	}
	if err := s.AddMember(ctx, family.Member{FamilyID: "fam-1", UserID: "alice", Role: family.RoleAdmin, JoinedAt: testNow}); err != nil {
		t.Fatal(err)
	}
	fixed := scheduling.MustTimeOfDay(7, 0)
	tasks := []*scheduling.TaskDefinition{
		{ID: "gym", OwnerID: "alice", Name: "Gym", Type: scheduling.TaskTypeResolution, DurationMin: 45, Priority: 2,
			Mode: scheduling.ModeFixed, FixedDays: scheduling.Weekdays{scheduling.Monday, scheduling.Thursday}, FixedTime: &fixed, CreatedAt: testNow},
		{ID: "dishes", OwnerID: "alice", FamilyID: "fam-1", Name: "Dishes", Type: scheduling.TaskTypeHousehold, DurationMin: 30, Priority: 3,
			Mode: scheduling.ModeFlexible, Frequency: 1, FrequencyPeriod: scheduling.PeriodDay, CreatedAt: testNow.Add(time.Second)},
		{ID: "other", OwnerID: "zed", Name: "Other", Type: scheduling.TaskTypeResolution, DurationMin: 10, Priority: 4,
			Mode: scheduling.ModeFlexible, CreatedAt: testNow},
	}
	for _, task := range tasks {
		if err := s.CreateTask(ctx, task); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.ListTasks(ctx, "fam-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "gym" || got[1].ID != "dishes" {
		t.Fatalf("unexpected tasks: %+v", got)
	}
	if got[0].FixedTime == nil || *got[0].FixedTime != fixed || len(got[0].FixedDays) != 2 {
		t.Errorf("fixed schedule did not round-trip: %+v", got[0])
	}
}

func TestOccurrences_RangeAndUpdate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	occ := []scheduling.ScheduledOccurrence{
		{ID: "o1", TaskID: "dishes", FamilyID: "fam-1", AssignedUserID: "alice", Date: scheduling.MustParseDate("2025-03-11"),
			Start: scheduling.MustTimeOfDay(18, 0), End: scheduling.MustTimeOfDay(18, 30), Status: scheduling.OccurrencePending, CreatedAt: testNow, UpdatedAt: testNow},
		{ID: "o2", TaskID: "dishes", FamilyID: "fam-1", AssignedUserID: "bob", Date: scheduling.MustParseDate("2025-03-18"),
			Start: scheduling.MustTimeOfDay(18, 0), End: scheduling.MustTimeOfDay(18, 30), Status: scheduling.OccurrencePending, CreatedAt: testNow, UpdatedAt: testNow},
	}
	if err := s.CreateOccurrences(ctx, occ); err != nil {
		t.Fatal(err)
	}

	week, err := s.ListOccurrences(ctx, []string{"dishes"}, scheduling.MustParseDate("2025-03-10"), scheduling.MustParseDate("2025-03-16"))
	if err != nil {
		t.Fatal(err)
	}
	if len(week) != 1 || week[0].ID != "o1" {
		t.Fatalf("expected only o1 in week, got %+v", week)
	}

	week[0].Status = scheduling.OccurrenceSkipped
	if err := s.UpdateOccurrence(ctx, &week[0]); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetOccurrence(ctx, "o1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != scheduling.OccurrenceSkipped {
		t.Errorf("expected skipped, got %s", got.Status)
	}

	fam, err := s.ListFamilyOccurrences(ctx, "fam-1", scheduling.MustParseDate("2025-03-10"), scheduling.MustParseDate("2025-03-23"))
	if err != nil {
		t.Fatal(err)
	}
	if len(fam) != 2 {
		t.Errorf("expected 2 family occurrences, got %d", len(fam))
	}
	if _, err := s.GetOccurrence(ctx, "missing"); !errors.Is(err, ErrOccurrenceNotFound) {
		t.Errorf("expected ErrOccurrenceNotFound, got %v", err)
	}
}

func TestConflicts_SinceFilter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i, week := range []string{"2025-02-03", "2025-03-03", "2025-03-10"} {
		c := analytics.ScheduleConflict{
			ID: week, FamilyID: "fam-1", MovedTaskID: "dishes",
			WeekStart: scheduling.MustParseDate(week), ResolutionType: analytics.ResolutionDisplaced, RecordedAt: testNow.Add(time.Duration(i) * time.Minute),
		}
		if err := s.AppendConflict(ctx, c); err != nil {
			t.Fatal(err)
		}
	}
	got, err := s.ListConflicts(ctx, "fam-1", scheduling.MustParseDate("2025-03-01"))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 conflicts since March, got %d", len(got))
	}
}

func TestRebind(t *testing.T) {
	s := &SQLStore{driver: DriverPostgres}
	if got := s.rebind("a = ? AND b IN (?, ?)"); got != "a = $1 AND b IN ($2, $3)" {
		t.Errorf("unexpected rebind: %s", got)
	}
	s.driver = DriverSQLite
	if got := s.rebind("a = ?"); got != "a = ?" {
		t.Errorf("sqlite should not rebind: %s", got)
	}
}
