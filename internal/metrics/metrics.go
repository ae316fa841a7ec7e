package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/notifyhub/editorial-notify/internal/domain"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	EventsTotal        *prometheus.CounterVec
	WorkflowsMatched   *prometheus.CounterVec
	NotificationsTotal *prometheus.CounterVec
	DeliveryLatency    *prometheus.HistogramVec
	ScheduledJobsTotal *prometheus.CounterVec
	JobQueueDepth      prometheus.Gauge
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "editorial_events_total",
			Help: "Content events received, by kind and whether handling was aborted.",
		}, []string{"event", "result"}),

		WorkflowsMatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "editorial_workflows_matched_total",
			Help: "Workflows selected by the matching query, by event kind.",
		}, []string{"event"}),

		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "editorial_notifications_total",
			Help: "Dispatch outcomes by channel and outcome (sent, duplicate, failed, scheduled).",
		}, []string{"channel", "outcome"}),

		DeliveryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "editorial_delivery_seconds",
			Help:    "Time spent handing one notification to its channel.",
			Buckets: prometheus.DefBuckets,
		}, []string{"channel"}),

		ScheduledJobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "editorial_scheduled_jobs_total",
			Help: "Scheduled notification jobs by lifecycle step (scheduled, fired, aborted, failed, requeued).",
		}, []string{"result"}),

		JobQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "editorial_job_queue_depth",
			Help: "Claimed scheduled jobs waiting for a worker.",
		}),
	}

	reg.MustRegister(
		m.EventsTotal,
		m.WorkflowsMatched,
		m.NotificationsTotal,
		m.DeliveryLatency,
		m.ScheduledJobsTotal,
		m.JobQueueDepth,
	)

	return m
}

// Name makes Metrics an action step, so every dispatch outcome is counted.
func (m *Metrics) Name() string { return "action_metrics" }

// OnOutcome records one dispatch outcome.
func (m *Metrics) OnOutcome(_ context.Context, o domain.Outcome) {
	channel := o.Channel
	if channel == "" {
		channel = "none"
	}
	m.NotificationsTotal.WithLabelValues(channel, string(o.Kind)).Inc()
	if o.Kind == domain.OutcomeSent || o.Kind == domain.OutcomeFailed {
		m.DeliveryLatency.WithLabelValues(channel).Observe(o.Latency.Seconds())
	}
}

// ObserveEvent records a handled event and how many workflows it matched.
func (m *Metrics) ObserveEvent(kind domain.EventKind, matched int, aborted bool) {
	result := "ok"
	if aborted {
		result = "aborted"
	}
	m.EventsTotal.WithLabelValues(string(kind), result).Inc()
	m.WorkflowsMatched.WithLabelValues(string(kind)).Add(float64(matched))
}

// WorkerHooks returns the metric callback functions expected by
// worker.MetricHooks. Centralises the prometheus observation calls so the
// worker package stays import-free.
func (m *Metrics) WorkerHooks() (
	onJob func(result string),
	onQueueDepth func(depth int),
) {
	onJob = func(result string) {
		m.ScheduledJobsTotal.WithLabelValues(result).Inc()
	}
	onQueueDepth = func(depth int) {
		m.JobQueueDepth.Set(float64(depth))
	}
	return
}
