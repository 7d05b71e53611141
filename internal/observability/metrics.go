package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequestsTotal   *prometheus.CounterVec
	httpLatencySeconds  *prometheus.HistogramVec
	httpErrorsTotal     *prometheus.CounterVec
	debateTransitions   *prometheus.CounterVec
	debateMessagesTotal prometheus.Counter
	sweepRunsTotal      prometheus.Counter
	sweepDuration       prometheus.Histogram
	sweepFailuresTotal  *prometheus.CounterVec
	presenceHeartbeats  *prometheus.CounterVec
	notificationsQueued *prometheus.CounterVec
	notificationsDrop   *prometheus.CounterVec
	notificationsFailed *prometheus.CounterVec
	notificationsPushed *prometheus.CounterVec
	sseClientsActive    prometheus.Gauge
	liveConnections     prometheus.Counter
	liveEventsTotal     *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		debateTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "debate_transitions_total",
			Help: "Debate state transitions applied, by kind.",
		}, []string{"kind"})

		debateMessagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "debate_messages_total",
			Help: "Participant messages accepted into the ledger.",
		})

		sweepRunsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "debate_sweep_runs_total",
			Help: "Completed sweep passes.",
		})

		sweepDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "debate_sweep_duration_seconds",
			Help:    "Duration of a single sweep pass.",
			Buckets: prometheus.DefBuckets,
		})

		sweepFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "debate_sweep_failures_total",
			Help: "Per-debate failures during sweep passes, by phase.",
		}, []string{"phase"})

		presenceHeartbeats = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "presence_heartbeats_total",
			Help: "Viewer heartbeats processed, by identity kind.",
		}, []string{"identity"})

		notificationsQueued = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_dispatched_total",
			Help: "Notifications handed to the sink, by type.",
		}, []string{"type"})

		notificationsDrop = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_dropped_total",
			Help: "Notifications not delivered, by reason.",
		}, []string{"reason"})

		notificationsFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_failed_total",
			Help: "Notifications whose delivery returned an error, by type.",
		}, []string{"type"})

		notificationsPushed = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_published_total",
			Help: "Notifications fanned out to live subscribers, by type.",
		}, []string{"type"})

		sseClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "notifications_sse_clients_active",
			Help: "Currently connected notification stream clients.",
		})

		liveConnections = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "live_connections_total",
			Help: "Websocket connections accepted by the live room.",
		})

		liveEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "live_events_total",
			Help: "Live room events broadcast locally, by type.",
		}, []string{"type"})

		prometheus.MustRegister(
			httpRequestsTotal, httpLatencySeconds, httpErrorsTotal,
			debateTransitions, debateMessagesTotal,
			sweepRunsTotal, sweepDuration, sweepFailuresTotal,
			presenceHeartbeats,
			notificationsQueued, notificationsDrop, notificationsFailed, notificationsPushed, sseClientsActive,
			liveConnections, liveEventsTotal,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// DebateTransitions counts applied state transitions.
func DebateTransitions() *prometheus.CounterVec {
	RegisterMetrics()
	return debateTransitions
}

// DebateMessages counts accepted participant messages.
func DebateMessages() prometheus.Counter {
	RegisterMetrics()
	return debateMessagesTotal
}

// SweepRuns counts completed sweep passes.
func SweepRuns() prometheus.Counter {
	RegisterMetrics()
	return sweepRunsTotal
}

// SweepDuration observes sweep pass latency.
func SweepDuration() prometheus.Histogram {
	RegisterMetrics()
	return sweepDuration
}

// SweepFailures counts per-debate sweep failures.
func SweepFailures() *prometheus.CounterVec {
	RegisterMetrics()
	return sweepFailuresTotal
}

// PresenceHeartbeats counts viewer heartbeats.
func PresenceHeartbeats() *prometheus.CounterVec {
	RegisterMetrics()
	return presenceHeartbeats
}

// NotificationsDispatched counts notifications handed to the sink.
func NotificationsDispatched() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsQueued
}

// NotificationsDropped counts notifications skipped or discarded.
func NotificationsDropped() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsDrop
}

// NotificationsFailed counts sink delivery errors.
func NotificationsFailed() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsFailed
}

// NotificationsPublishedTotal counts notifications fanned out to subscribers.
func NotificationsPublishedTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsPushed
}

// SSEClientsActive tracks connected notification streams.
func SSEClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return sseClientsActive
}

// LiveConnectionsTotal counts accepted live room websocket connections.
func LiveConnectionsTotal() prometheus.Counter {
	RegisterMetrics()
	return liveConnections
}

// LiveEvents counts broadcast live room events.
func LiveEvents() *prometheus.CounterVec {
	RegisterMetrics()
	return liveEventsTotal
}
