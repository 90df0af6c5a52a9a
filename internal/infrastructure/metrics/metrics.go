// Package metrics exports engine counters to Prometheus.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SECURESLOG/resolution-ai-sub002/pkg/application"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/events"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/planning"
)

const namespace = "resolution"

// Recorder implements application.Recorder on a private registry.
type Recorder struct {
	registry    *prometheus.Registry
	generations *prometheus.CounterVec
	proposals   *prometheus.CounterVec
	transitions *prometheus.CounterVec
	edits       *prometheus.CounterVec
	events      *prometheus.CounterVec
}

var _ application.Recorder = (*Recorder)(nil)

func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Weekly plan generations by result.",
		}, []string{"result"}),
		proposals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proposals_total",
			Help:      "Validated proposals by outcome and violated rule.",
		}, []string{"outcome", "rule"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plan_transitions_total",
			Help:      "Plan status transitions.",
		}, []string{"from", "to"}),
		edits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "item_edits_total",
			Help:      "Plan item edits by outcome.",
		}, []string{"outcome"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Domain events dispatched by type.",
		}, []string{"type"}),
	}
	r.registry.MustRegister(
		r.generations, r.proposals, r.transitions, r.edits, r.events,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Recorder) GenerationCompleted(_ string, accepted int, rejectedByRule map[string]int) {
	r.generations.WithLabelValues("created").Inc()
	r.proposals.WithLabelValues("accepted", "").Add(float64(accepted))
	for rule, n := range rejectedByRule {
		r.proposals.WithLabelValues("rejected", rule).Add(float64(n))
	}
}

// GenerationFailed counts the failure; the reason is free text and is
// only logged.
func (r *Recorder) GenerationFailed(_, _ string) {
	r.generations.WithLabelValues("failed").Inc()
}

func (r *Recorder) PlanTransition(from, to planning.PlanStatus) {
	r.transitions.WithLabelValues(string(from), string(to)).Inc()
}

func (r *Recorder) EditOutcome(outcome application.EditOutcome) {
	r.edits.WithLabelValues(string(outcome)).Inc()
}

// Registration counts every dispatched event.
func (r *Recorder) Registration() events.HandlerRegistration {
	return events.HandlerRegistration{
		Name: "MetricsRecorder",
		Handler: func(_ context.Context, e events.DomainEvent) error {
			r.events.WithLabelValues(e.EventType()).Inc()
			return nil
		},
		EventTypes: []string{events.AllEvents},
	}
}

// Registry exposes the underlying registry for tests and extra collectors.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
