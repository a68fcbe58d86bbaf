package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Booking metrics
	Reservations           *prometheus.CounterVec
	AppointmentTransitions *prometheus.CounterVec
	AbsenceCancellations   prometheus.Counter
	GridBuildDuration      prometheus.Histogram
	DoctorCache            *prometheus.CounterVec

	// Outbox related metrics
	OutboxEventsProcessed   prometheus.Counter
	OutboxEventsFailed      prometheus.Counter
	OutboxProcessingLatency prometheus.Histogram
	OutboxRetries           *prometheus.CounterVec

	// Notification fan-out
	NotificationsDelivered *prometheus.CounterVec
}

// New creates all application metrics and registers them with reg.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Reservations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_total",
			Help:      "Reservation attempts by outcome",
		}, []string{"outcome"}),
		AppointmentTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appointment_transitions_total",
			Help:      "Appointment status transitions by action and outcome",
		}, []string{"action", "outcome"}),
		AbsenceCancellations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "absence_cancellations_total",
			Help:      "Appointments cancelled because of a doctor absence",
		}),
		GridBuildDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "slot_grid_build_duration_seconds",
			Help:      "Time spent building a weekly slot grid",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		DoctorCache: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "doctor_directory_cache_total",
			Help:      "Doctor directory cache lookups by result",
		}, []string{"result"}),

		OutboxEventsProcessed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_processed_total",
			Help:      "Total number of successfully processed outbox events",
		}),
		OutboxEventsFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_failed_total",
			Help:      "Total number of failed outbox events",
		}),
		OutboxProcessingLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "outbox_processing_duration_seconds",
			Help:      "Time spent processing outbox events",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		OutboxRetries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_retry_attempts_total",
			Help:      "Total number of retry attempts for outbox events",
		}, []string{"event_type"}),

		NotificationsDelivered: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_delivered_total",
			Help:      "Notification deliveries by sink and status",
		}, []string{"sink", "status"}),
	}
}

// NewNop returns metrics registered with a private registry, for tests and
// tools that never expose them.
func NewNop() *Metrics {
	return New("nop", prometheus.NewRegistry())
}
