// Package metrics exposes Prometheus collectors for the workflow engine and the announcement broadcaster.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/garyjia/campus-assistant/internal/application/broadcast"
	"github.com/garyjia/campus-assistant/internal/application/workflow"
	"github.com/garyjia/campus-assistant/internal/domain/entity"
	domainwf "github.com/garyjia/campus-assistant/internal/domain/workflow"
)

const namespace = "campus_assistant"

// Metrics owns a private registry so tests and multiple containers never collide
type Metrics struct {
	registry *prometheus.Registry

	workflowSteps     *prometheus.CounterVec
	workflowCommits   *prometheus.CounterVec
	deliveries        *prometheus.CounterVec
	broadcastDuration prometheus.Histogram
	broadcastFailed   prometheus.Counter
	updatesHandled    *prometheus.CounterVec
	sessionsSwept     prometheus.Counter
}

// New creates the collectors and registers them with runtime collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		workflowSteps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "workflow_steps_total",
				Help:      "Workflow inputs by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		workflowCommits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "workflow_commits_total",
				Help:      "Workflow commits by kind and result",
			},
			[]string{"kind", "result"}, // result: success, error
		),
		deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "announcement_deliveries_total",
				Help:      "Announcement delivery attempts by result",
			},
			[]string{"result"}, // result: delivered, retried, failed
		),
		broadcastDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "broadcast_duration_seconds",
				Help:      "Duration of a full announcement broadcast in seconds",
				Buckets:   []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
		),
		broadcastFailed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "broadcast_recipients_failed_total",
				Help:      "Recipients an announcement could not reach",
			},
		),
		updatesHandled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bot_updates_total",
				Help:      "Inbound chat updates by type and status",
			},
			[]string{"type", "status"},
		),
		sessionsSwept: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_expired_total",
				Help:      "Idle workflow sessions removed by the sweeper",
			},
		),
	}

	m.registry.MustRegister(
		m.workflowSteps,
		m.workflowCommits,
		m.deliveries,
		m.broadcastDuration,
		m.broadcastFailed,
		m.updatesHandled,
		m.sessionsSwept,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// StepObserved implements workflow.Observer
func (m *Metrics) StepObserved(kind domainwf.Kind, outcome workflow.Outcome) {
	m.workflowSteps.WithLabelValues(kind.String(), string(outcome)).Inc()
}

// CommitObserved implements workflow.Observer
func (m *Metrics) CommitObserved(kind domainwf.Kind, ok bool) {
	result := "success"
	if !ok {
		result = "error"
	}
	m.workflowCommits.WithLabelValues(kind.String(), result).Inc()
}

// DeliveryObserved implements broadcast.Observer
func (m *Metrics) DeliveryObserved(result string) {
	m.deliveries.WithLabelValues(result).Inc()
}

// BroadcastObserved implements broadcast.Observer
func (m *Metrics) BroadcastObserved(report *entity.DeliveryReport, elapsed time.Duration) {
	m.broadcastDuration.Observe(elapsed.Seconds())
	m.broadcastFailed.Add(float64(report.Failed))
}

// UpdateHandled counts one inbound update
func (m *Metrics) UpdateHandled(updateType, status string) {
	m.updatesHandled.WithLabelValues(updateType, status).Inc()
}

// SessionsSwept counts expired sessions
func (m *Metrics) SessionsSwept(n int) {
	m.sessionsSwept.Add(float64(n))
}

var (
	_ workflow.Observer  = (*Metrics)(nil)
	_ broadcast.Observer = (*Metrics)(nil)
)
