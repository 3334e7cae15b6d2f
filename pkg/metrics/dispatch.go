package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DispatchMetrics records the dispatch queue's delivery behavior.
type DispatchMetrics struct {
	sendDuration prometheus.Histogram
	sends        *prometheus.CounterVec
	enqueued     prometheus.Counter
	deadLettered *prometheus.CounterVec
}

// NewDispatchMetrics registers the dispatch metrics on the provided registerer.
func NewDispatchMetrics(reg prometheus.Registerer) *DispatchMetrics {
	if reg == nil {
		return &DispatchMetrics{}
	}
	sendDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "outcome_send_duration_seconds",
		Help:    "Duration of collector send attempts in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	sends := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outcome_send_attempts_total",
		Help: "Collector send attempts by result.",
	}, []string{"result"})
	enqueued := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "outcome_events_enqueued_total",
		Help: "Outcome events durably enqueued for delivery.",
	})
	deadLettered := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outcome_sends_dead_lettered_total",
		Help: "Pending sends abandoned by the dispatch worker.",
	}, []string{"reason"})
	reg.MustRegister(sendDuration, sends, enqueued, deadLettered)
	return &DispatchMetrics{
		sendDuration: sendDuration,
		sends:        sends,
		enqueued:     enqueued,
		deadLettered: deadLettered,
	}
}

// ObserveSendDuration records the duration of one send attempt.
func (m *DispatchMetrics) ObserveSendDuration(duration time.Duration) {
	if m == nil || m.sendDuration == nil {
		return
	}
	m.sendDuration.Observe(duration.Seconds())
}

// IncSendResult increments the attempt counter for the given result label.
func (m *DispatchMetrics) IncSendResult(result string) {
	if m == nil || m.sends == nil {
		return
	}
	if result == "" {
		result = "unknown"
	}
	m.sends.WithLabelValues(result).Inc()
}

// IncEnqueued counts one durably enqueued event.
func (m *DispatchMetrics) IncEnqueued() {
	if m == nil || m.enqueued == nil {
		return
	}
	m.enqueued.Inc()
}

// IncDeadLettered counts one abandoned pending send.
func (m *DispatchMetrics) IncDeadLettered(reason string) {
	if m == nil || m.deadLettered == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.deadLettered.WithLabelValues(reason).Inc()
}
