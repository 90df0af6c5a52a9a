// Package dashboard serves a read-only web view of families, weekly plans
// and fairness reports, plus the JSON API behind it.
package dashboard

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/SECURESLOG/resolution-ai-sub002/pkg/application"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/analytics"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/family"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/planning"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/scheduling"
)

//go:embed templates/*.html
var templatesFS embed.FS

type FamilyReader interface {
	ListFamilies(ctx context.Context) ([]*family.Family, error)
	GetFamily(ctx context.Context, familyID string) (*family.Family, family.Members, error)
}

type PlanReader interface {
	ListPlans(ctx context.Context, familyID string) ([]*planning.WeeklyPlan, error)
	GetPlan(ctx context.Context, planID string) (*application.PlanDetail, error)
}

type ReportReader interface {
	WeekReport(ctx context.Context, familyID string, weekStart *scheduling.Date) (*analytics.WeekReport, error)
	ConflictReport(ctx context.Context, familyID string, weeks int) ([]analytics.TaskConflicts, error)
}

// Sources are the services the pages read from.
type Sources struct {
	Families FamilyReader
	Plans    PlanReader
	Reports  ReportReader
}

// Server is the dashboard HTTP server. Extra handlers (metrics, event
// streams) are attached with Mount before Start.
type Server struct {
	addr    string
	sources Sources
	tmpl    *template.Template
	mux     *http.ServeMux
	logger  *slog.Logger
	server  *http.Server
}

func NewServer(addr string, sources Sources, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	funcMap := template.FuncMap{
		"statusClass": statusClass,
		"formatTime":  formatTime,
		"percent":     func(f float64) string { return fmt.Sprintf("%.0f%%", f*100) },
	}
	tmpl, err := template.New("").Funcs(funcMap).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{addr: addr, sources: sources, tmpl: tmpl, mux: http.NewServeMux(), logger: logger}
	s.server = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /families/{id}", s.handleFamily)
	s.mux.HandleFunc("GET /plans/{id}", s.handlePlan)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /api/families", s.handleAPIFamilies)
	s.mux.HandleFunc("GET /api/families/{id}/plans", s.handleAPIPlans)
	s.mux.HandleFunc("GET /api/families/{id}/report", s.handleAPIReport)
	s.mux.HandleFunc("GET /api/families/{id}/conflicts", s.handleAPIConflicts)
	s.mux.HandleFunc("GET /api/plans/{id}", s.handleAPIPlan)
	return s, nil
}

// Mount registers an additional handler, e.g. "GET /metrics".
func (s *Server) Mount(pattern string, h http.Handler) {
	s.mux.Handle(pattern, h)
}

// Handler is the complete router.
func (s *Server) Handler() http.Handler { return s.mux }

// Start listens until Shutdown. It returns nil after a clean shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("dashboard server starting", "addr", ln.Addr().String())
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// PageData is the template model shared by every page.
type PageData struct {
	Title     string
	Families  []*family.Family
	Family    *family.Family
	Members   family.Members
	Plans     []*planning.WeeklyPlan
	Detail    *application.PlanDetail
	Report    *analytics.WeekReport
	Conflicts []analytics.TaskConflicts
	Error     string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := PageData{Title: "Families"}
	families, err := s.sources.Families.ListFamilies(r.Context())
	if err != nil {
		data.Error = err.Error()
	}
	data.Families = families
	s.render(w, "index.html", data)
}

func (s *Server) handleFamily(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	fam, members, err := s.sources.Families.GetFamily(ctx, r.PathValue("id"))
	if err != nil {
		s.renderError(w, "family.html", err)
		return
	}
	data := PageData{Title: fam.Name, Family: fam, Members: members}
	if data.Plans, err = s.sources.Plans.ListPlans(ctx, fam.ID); err != nil {
		data.Error = err.Error()
	}
	if data.Report, err = s.sources.Reports.WeekReport(ctx, fam.ID, nil); err != nil {
		data.Error = err.Error()
	}
	if data.Conflicts, err = s.sources.Reports.ConflictReport(ctx, fam.ID, 0); err != nil {
		data.Error = err.Error()
	}
	s.render(w, "family.html", data)
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	detail, err := s.sources.Plans.GetPlan(r.Context(), r.PathValue("id"))
	if err != nil {
		s.renderError(w, "plan.html", err)
		return
	}
	sortItems(detail.Items)
	s.render(w, "plan.html", PageData{
		Title:  "Week of " + detail.Plan.WeekStart.String(),
		Detail: detail,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAPIFamilies(w http.ResponseWriter, r *http.Request) {
	families, err := s.sources.Families.ListFamilies(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, families)
}

func (s *Server) handleAPIPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.sources.Plans.ListPlans(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plans)
}

func (s *Server) handleAPIPlan(w http.ResponseWriter, r *http.Request) {
	detail, err := s.sources.Plans.GetPlan(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	sortItems(detail.Items)
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleAPIReport(w http.ResponseWriter, r *http.Request) {
	var week *scheduling.Date
	if v := r.URL.Query().Get("week"); v != "" {
		d, err := scheduling.ParseDate(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		week = &d
	}
	report, err := s.sources.Reports.WeekReport(r.Context(), r.PathValue("id"), week)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleAPIConflicts(w http.ResponseWriter, r *http.Request) {
	weeks := 0
	if v := r.URL.Query().Get("weeks"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "weeks must be a positive integer"})
			return
		}
		weeks = n
	}
	report, err := s.sources.Reports.ConflictReport(r.Context(), r.PathValue("id"), weeks)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) render(w http.ResponseWriter, name string, data PageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("template render failed", "template", name, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func (s *Server) renderError(w http.ResponseWriter, name string, err error) {
	w.WriteHeader(statusFor(err))
	s.render(w, name, PageData{Title: "Error", Error: err.Error()})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("api request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, planning.ErrPlanNotFound), errors.Is(err, family.ErrFamilyNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func sortItems(items []*planning.WeeklyPlanItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if c := items[i].Date.Compare(items[j].Date); c != 0 {
			return c < 0
		}
		return items[i].Start < items[j].Start
	})
}

func statusClass(status planning.PlanStatus) string {
	switch status {
	case planning.StatusDraft:
		return "status-draft"
	case planning.StatusPendingApproval:
		return "status-pending"
	case planning.StatusApproved:
		return "status-approved"
	case planning.StatusRejected, planning.StatusExpired:
		return "status-closed"
	default:
		return "status-unknown"
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04")
}
