package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/SECURESLOG/resolution-ai-sub002/pkg/application"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/analytics"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/family"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/planning"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/scheduling"
)

type fakeSources struct {
	families  []*family.Family
	members   family.Members
	plans     []*planning.WeeklyPlan
	detail    *application.PlanDetail
	report    *analytics.WeekReport
	conflicts []analytics.TaskConflicts
	lastWeek  *scheduling.Date
	lastWeeks int
	listErr   error
}

func (f *fakeSources) ListFamilies(context.Context) ([]*family.Family, error) {
	return f.families, f.listErr
}

func (f *fakeSources) GetFamily(_ context.Context, id string) (*family.Family, family.Members, error) {
	for _, fam := range f.families {
		if fam.ID == id {
			return fam, f.members, nil
		}
	}
	return nil, nil, family.ErrFamilyNotFound
}

func (f *fakeSources) ListPlans(context.Context, string) ([]*planning.WeeklyPlan, error) {
	return f.plans, nil
}

func (f *fakeSources) GetPlan(_ context.Context, id string) (*application.PlanDetail, error) {
	if f.detail == nil || f.detail.Plan.ID != id {
		return nil, fmt.Errorf("get plan %s: %w", id, planning.ErrPlanNotFound)
	}
	return f.detail, nil
}

func (f *fakeSources) WeekReport(_ context.Context, _ string, week *scheduling.Date) (*analytics.WeekReport, error) {
	f.lastWeek = week
	return f.report, nil
}

func (f *fakeSources) ConflictReport(_ context.Context, _ string, weeks int) ([]analytics.TaskConflicts, error) {
	f.lastWeeks = weeks
	return f.conflicts, nil
}

func newFixture(t *testing.T) (*Server, *fakeSources) {
	t.Helper()
	monday := scheduling.MustParseDate("2025-03-10")
	plan := &planning.WeeklyPlan{
		ID: "plan-1", FamilyID: "fam-1", WeekStart: monday, WeekEnd: monday.AddDays(6),
		Status: planning.StatusPendingApproval, ExpiresAt: time.Date(2025, 3, 13, 8, 0, 0, 0, time.UTC),
	}
	src := &fakeSources{
		families: []*family.Family{{ID: "fam-1", Name: "Rivera", Timezone: "UTC"}},
		members: family.Members{
			{FamilyID: "fam-1", UserID: "alice", DisplayName: "Alice", Role: family.RoleAdmin},
			{FamilyID: "fam-1", UserID: "bob", Role: family.RoleMember},
		},
		plans: []*planning.WeeklyPlan{plan},
		detail: &application.PlanDetail{
			Plan: plan,
			Items: []*planning.WeeklyPlanItem{
				{ID: "i-2", TaskID: "laundry", AssignedUserID: "bob", Date: monday.AddDays(5), Start: scheduling.MustTimeOfDay(10, 0), End: scheduling.MustTimeOfDay(11, 0)},
				{ID: "i-1", TaskID: "gym", AssignedUserID: "alice", Date: monday, Start: scheduling.MustTimeOfDay(7, 5), End: scheduling.MustTimeOfDay(7, 50)},
			},
			Approvals: []*planning.WeeklyPlanApproval{
				{PlanID: "plan-1", UserID: "alice", Status: planning.ApprovalApproved},
				{PlanID: "plan-1", UserID: "bob", Status: planning.ApprovalPending},
			},
			Summary: planning.ApprovalSummary{Pending: 1, Approved: 1},
		},
		report: &analytics.WeekReport{
			WeekStart: monday,
			Members:   []analytics.MemberLoad{{UserID: "alice", TaskCount: 1, TotalMinutes: 45}},
			Fairness:  0.5,
		},
		conflicts: []analytics.TaskConflicts{{TaskID: "gym", TotalMoves: 3}},
	}
	s, err := NewServer("127.0.0.1:0", Sources{Families: src, Plans: src, Reports: src}, nil)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	return s, src
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestPages(t *testing.T) {
	s, _ := newFixture(t)
	tests := []struct {
		path   string
		status int
		want   []string
	}{
		{"/", http.StatusOK, []string{"Rivera", "/families/fam-1"}},
		{"/families/fam-1", http.StatusOK, []string{"Alice", "bob", "status-pending", "fairness 50%", "gym"}},
		{"/plans/plan-1", http.StatusOK, []string{"Week of 2025-03-10", "laundry", "07:05", "Approvals (1/2)"}},
		{"/families/nope", http.StatusNotFound, []string{"family not found"}},
		{"/plans/nope", http.StatusNotFound, []string{"plan not found"}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := get(t, s, tt.path)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			body := rec.Body.String()
			for _, w := range tt.want {
				if !strings.Contains(body, w) {
					t.Errorf("body missing %q", w)
				}
			}
		})
	}
}

func TestPlanPageSortsItems(t *testing.T) {
	s, _ := newFixture(t)
	body := get(t, s, "/plans/plan-1").Body.String()
	if strings.Index(body, "gym") > strings.Index(body, "laundry") {
		t.Error("items should be ordered by date")
	}
}

func TestIndexShowsListError(t *testing.T) {
	s, src := newFixture(t)
	src.listErr = errors.New("database locked")
	rec := get(t, s, "/")
	if !strings.Contains(rec.Body.String(), "database locked") {
		t.Errorf("error not rendered: %s", rec.Body.String())
	}
}

func TestAPI(t *testing.T) {
	s, src := newFixture(t)

	rec := get(t, s, "/api/plans/plan-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var detail application.PlanDetail
	if err := json.Unmarshal(rec.Body.Bytes(), &detail); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(detail.Items) != 2 || detail.Items[0].TaskID != "gym" {
		t.Errorf("unexpected items: %+v", detail.Items)
	}

	if rec := get(t, s, "/api/plans/missing"); rec.Code != http.StatusNotFound {
		t.Errorf("missing plan status = %d", rec.Code)
	}

	rec = get(t, s, "/api/families/fam-1/report?week=2025-03-12")
	if rec.Code != http.StatusOK {
		t.Fatalf("report status = %d", rec.Code)
	}
	if src.lastWeek == nil || src.lastWeek.String() != "2025-03-12" {
		t.Errorf("week not passed: %v", src.lastWeek)
	}
	if rec := get(t, s, "/api/families/fam-1/report?week=soon"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad week status = %d", rec.Code)
	}

	if rec := get(t, s, "/api/families/fam-1/conflicts?weeks=6"); rec.Code != http.StatusOK || src.lastWeeks != 6 {
		t.Errorf("conflicts status = %d weeks = %d", rec.Code, src.lastWeeks)
	}
	if rec := get(t, s, "/api/families/fam-1/conflicts?weeks=0"); rec.Code != http.StatusBadRequest {
		t.Errorf("zero weeks status = %d", rec.Code)
	}

	rec = get(t, s, "/api/families")
	var fams []family.Family
	if err := json.Unmarshal(rec.Body.Bytes(), &fams); err != nil || len(fams) != 1 {
		t.Errorf("families = %v, %v", fams, err)
	}
	if rec := get(t, s, "/api/families/fam-1/plans"); rec.Code != http.StatusOK {
		t.Errorf("plans status = %d", rec.Code)
	}
}

func TestHealthAndMount(t *testing.T) {
	s, _ := newFixture(t)
	s.Mount("GET /metrics", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("resolution_up 1\n"))
	}))

	if rec := get(t, s, "/healthz"); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "ok") {
		t.Errorf("healthz = %d %s", rec.Code, rec.Body.String())
	}
	if rec := get(t, s, "/metrics"); !strings.Contains(rec.Body.String(), "resolution_up") {
		t.Errorf("mounted handler not served: %s", rec.Body.String())
	}
	if rec := get(t, s, "/unknown"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown path status = %d", rec.Code)
	}
}

func TestServeAndShutdown(t *testing.T) {
	s, _ := newFixture(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	done := make(chan error, 1)
	go func() { done <- s.Serve(ln) }()

	url := "http://" + ln.Addr().String() + "/healthz"
	var resp *http.Response
	for i := 0; i < 50; i++ {
		if resp, err = http.Get(url); err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()

	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err := <-done; err != nil {
		t.Errorf("serve returned %v", err)
	}
}
