package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebhookMetrics exposes counters/histograms for the ingress flow.
type WebhookMetrics struct {
	eventsTotal    *prometheus.CounterVec
	webhookLatency *prometheus.HistogramVec
}

func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	m := &WebhookMetrics{
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatbatch",
			Subsystem: "ingest",
			Name:      "webhook_events_total",
			Help:      "Total webhook events received",
		}, []string{"event_type", "status"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "chatbatch",
			Subsystem: "ingest",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of webhook event processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.eventsTotal, m.webhookLatency)
	return m
}

func (m *WebhookMetrics) ObserveEvent(eventType, status string) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(eventType, status).Inc()
}

func (m *WebhookMetrics) ObserveLatency(eventType string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(eventType).Observe(seconds)
}

// SweepMetrics tracks the periodic batching passes.
type SweepMetrics struct {
	runsTotal    *prometheus.CounterVec
	digestsTotal prometheus.Counter
	duration     prometheus.Histogram
}

func NewSweepMetrics(reg prometheus.Registerer) *SweepMetrics {
	m := &SweepMetrics{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatbatch",
			Subsystem: "sweep",
			Name:      "runs_total",
			Help:      "Total sweep runs",
		}, []string{"status"}),
		digestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chatbatch",
			Subsystem: "sweep",
			Name:      "digests_total",
			Help:      "Total outbound digests synthesized",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "chatbatch",
			Subsystem: "sweep",
			Name:      "duration_seconds",
			Help:      "Duration of one full sweep",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.runsTotal, m.digestsTotal, m.duration)
	return m
}

func (m *SweepMetrics) ObserveRun(status string, digests int, seconds float64) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(status).Inc()
	m.digestsTotal.Add(float64(digests))
	m.duration.Observe(seconds)
}

// ReconcileMetrics counts reconciliation check outcomes.
type ReconcileMetrics struct {
	checksTotal *prometheus.CounterVec
}

func NewReconcileMetrics(reg prometheus.Registerer) *ReconcileMetrics {
	m := &ReconcileMetrics{
		checksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatbatch",
			Subsystem: "reconcile",
			Name:      "checks_total",
			Help:      "Total reconciliation checks by outcome",
		}, []string{"outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.checksTotal)
	return m
}

func (m *ReconcileMetrics) ObserveCheck(outcome string) {
	if m == nil {
		return
	}
	m.checksTotal.WithLabelValues(outcome).Inc()
}
