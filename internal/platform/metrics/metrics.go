package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the lead capture service.
// A nil *Metrics is valid and records nothing, so tests can skip wiring it.
type Metrics struct {
	LeadsCaptured       *prometheus.CounterVec
	ValidationFailures  *prometheus.CounterVec
	LocalStoreFailures  *prometheus.CounterVec
	RemoteSends         *prometheus.CounterVec
	RemoteWriteFailures *prometheus.CounterVec
	RemoteReadFailures  *prometheus.CounterVec
	ExitIntentTriggers  *prometheus.CounterVec
	ReconciledRecords   *prometheus.GaugeVec
	ReconcileDuration   prometheus.Histogram
	OutboxPending       prometheus.Gauge
	RateLimited         *prometheus.CounterVec
	HTTPDuration        *prometheus.HistogramVec
}

// New creates and registers all metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		LeadsCaptured: f.NewCounterVec(prometheus.CounterOpts{
			Name: "leadcapture_leads_captured_total",
			Help: "Leads recorded locally, by capture path",
		}, []string{"path"}),
		ValidationFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "leadcapture_validation_failures_total",
			Help: "Rejected answers, by field and reason",
		}, []string{"field", "reason"}),
		LocalStoreFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "leadcapture_local_store_failures_total",
			Help: "Local lead store read or write failures",
		}, []string{"op"}),
		RemoteSends: f.NewCounterVec(prometheus.CounterOpts{
			Name: "leadcapture_remote_sends_total",
			Help: "Best-effort remote deliveries attempted, by sink",
		}, []string{"sink"}),
		RemoteWriteFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "leadcapture_remote_write_failures_total",
			Help: "Transport-level failures delivering a lead, by sink",
		}, []string{"sink"}),
		RemoteReadFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "leadcapture_remote_read_failures_total",
			Help: "Failures reading the remote tabular export, by reason",
		}, []string{"reason"}),
		ExitIntentTriggers: f.NewCounterVec(prometheus.CounterOpts{
			Name: "leadcapture_exit_intent_triggers_total",
			Help: "Exit-intent trigger events, by reason, device class and whether they fired",
		}, []string{"reason", "device", "fired"}),
		ReconciledRecords: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "leadcapture_reconciled_records",
			Help: "Records returned by the last reconcile, by source",
		}, []string{"source"}),
		ReconcileDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "leadcapture_reconcile_duration_seconds",
			Help:    "Duration of dashboard reconcile operations",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		OutboxPending: f.NewGauge(prometheus.GaugeOpts{
			Name: "leadcapture_outbox_pending",
			Help: "Leads recorded locally but not yet delivered by the outbox drainer",
		}),
		RateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Name: "leadcapture_rate_limited_total",
			Help: "Requests rejected with 429, by endpoint class",
		}, []string{"class"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "leadcapture_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"method", "route", "status"}),
	}
}

func (m *Metrics) IncLeadCaptured(path string) {
	if m == nil {
		return
	}
	m.LeadsCaptured.WithLabelValues(path).Inc()
}

func (m *Metrics) IncValidationFailure(field, reason string) {
	if m == nil {
		return
	}
	m.ValidationFailures.WithLabelValues(field, reason).Inc()
}

func (m *Metrics) IncLocalStoreFailure(op string) {
	if m == nil {
		return
	}
	m.LocalStoreFailures.WithLabelValues(op).Inc()
}

func (m *Metrics) IncRemoteSend(sink string) {
	if m == nil {
		return
	}
	m.RemoteSends.WithLabelValues(sink).Inc()
}

func (m *Metrics) IncRemoteWriteFailure(sink string) {
	if m == nil {
		return
	}
	m.RemoteWriteFailures.WithLabelValues(sink).Inc()
}

func (m *Metrics) IncRemoteReadFailure(reason string) {
	if m == nil {
		return
	}
	m.RemoteReadFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncExitIntentTrigger(reason, device string, fired bool) {
	if m == nil {
		return
	}
	f := "false"
	if fired {
		f = "true"
	}
	m.ExitIntentTriggers.WithLabelValues(reason, device, f).Inc()
}

// ObserveReconcile records one reconcile pass.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveReconcile(start time.Time, local, online int) {
	if m == nil {
		return
	}
	m.ReconcileDuration.Observe(time.Since(start).Seconds())
	m.ReconciledRecords.WithLabelValues("local").Set(float64(local))
	m.ReconciledRecords.WithLabelValues("online").Set(float64(online))
}

func (m *Metrics) SetOutboxPending(n int) {
	if m == nil {
		return
	}
	m.OutboxPending.Set(float64(n))
}

func (m *Metrics) IncRateLimited(class string) {
	if m == nil {
		return
	}
	m.RateLimited.WithLabelValues(class).Inc()
}

func (m *Metrics) ObserveHTTP(method, route string, status int, start time.Time) {
	if m == nil {
		return
	}
	m.HTTPDuration.WithLabelValues(method, route, statusClass(status)).Observe(time.Since(start).Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
