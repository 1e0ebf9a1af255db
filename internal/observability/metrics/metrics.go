package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "receptionist"

// ReceptionistMetrics exposes counters/histograms for the voice receptionist flows.
type ReceptionistMetrics struct {
	webhookEvents  *prometheus.CounterVec
	webhookLatency *prometheus.HistogramVec
	functionCalls  *prometheus.CounterVec
	bookings       *prometheus.CounterVec
	confirmations  *prometheus.CounterVec
	reminders      *prometheus.CounterVec
}

func NewReceptionistMetrics(reg prometheus.Registerer) *ReceptionistMetrics {
	m := &ReceptionistMetrics{
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "events_total",
			Help:      "Voice platform webhook events by type and outcome",
		}, []string{"event_type", "status"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "latency_seconds",
			Help:      "Latency of voice platform webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type"}),
		functionCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "function_calls_total",
			Help:      "Assistant function calls by name and outcome",
		}, []string{"function", "outcome"}),
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "appointments",
			Name:      "bookings_total",
			Help:      "Appointments booked by resulting status",
		}, []string{"status"}),
		confirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "confirmations_total",
			Help:      "Confirmation deliveries by channel and outcome",
		}, []string{"channel", "outcome"}),
		reminders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "reminders_total",
			Help:      "Appointment reminders processed by outcome",
		}, []string{"outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.webhookEvents, m.webhookLatency, m.functionCalls, m.bookings, m.confirmations, m.reminders)
	return m
}

func (m *ReceptionistMetrics) ObserveWebhookEvent(eventType, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(eventType, status).Inc()
	m.webhookLatency.WithLabelValues(eventType).Observe(elapsed.Seconds())
}

func (m *ReceptionistMetrics) ObserveFunctionCall(name, outcome string) {
	if m == nil {
		return
	}
	m.functionCalls.WithLabelValues(name, outcome).Inc()
}

func (m *ReceptionistMetrics) ObserveBooking(status string) {
	if m == nil {
		return
	}
	m.bookings.WithLabelValues(status).Inc()
}

func (m *ReceptionistMetrics) ObserveConfirmation(channel, outcome string) {
	if m == nil {
		return
	}
	m.confirmations.WithLabelValues(channel, outcome).Inc()
}

func (m *ReceptionistMetrics) ObserveReminder(outcome string) {
	if m == nil {
		return
	}
	m.reminders.WithLabelValues(outcome).Inc()
}
