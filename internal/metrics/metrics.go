package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "airres"

// Outcomes of a booking attempt.
const (
	OutcomeConfirmed  = "confirmed"
	OutcomeWaitlisted = "waitlisted"
	OutcomeFailed     = "failed"
)

// Reservations groups the collectors of the reservation service. A nil
// *Reservations is valid and records nothing.
type Reservations struct {
	// Booking attempts by outcome and seat class (counter)
	booked *prometheus.CounterVec
	// Cancelled reservations by seat class (counter)
	cancelled *prometheus.CounterVec
	// Waiting customers moved into a freed seat (counter)
	promoted *prometheus.CounterVec
	// Waiting entries dropped because their travel date passed (counter)
	expired prometheus.Counter
	// Transactions retried after a conflict, by operation (counter)
	conflictRetries *prometheus.CounterVec
	// Total money refunded (counter)
	refunded prometheus.Counter
	// Time spent in a booking or cancellation including retries (histogram)
	duration *prometheus.HistogramVec
}

func NewReservations(reg prometheus.Registerer) *Reservations {
	factory := promauto.With(reg)
	return &Reservations{
		booked: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reservations_total",
				Help:      "The total number of booking attempts by outcome",
			},
			[]string{"outcome", "class"},
		),
		cancelled: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cancellations_total",
				Help:      "The total number of cancelled reservations",
			},
			[]string{"class"},
		),
		promoted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "waitlist_promotions_total",
				Help:      "The total number of waiting customers promoted to a confirmed seat",
			},
			[]string{"class"},
		),
		expired: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "waitlist_expired_total",
				Help:      "The total number of waiting entries removed after their travel date",
			},
		),
		conflictRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "conflict_retries_total",
				Help:      "The total number of transactions retried after a concurrent change",
			},
			[]string{"operation"},
		),
		refunded: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "refunded_amount_total",
				Help:      "The total amount refunded on cancellations",
			},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "The time spent on bookings and cancellations",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (m *Reservations) Booked(outcome, class string) {
	if m == nil {
		return
	}
	m.booked.WithLabelValues(outcome, class).Inc()
}

func (m *Reservations) Cancelled(class string, refund float64) {
	if m == nil {
		return
	}
	m.cancelled.WithLabelValues(class).Inc()
	if refund > 0 {
		m.refunded.Add(refund)
	}
}

func (m *Reservations) Promoted(class string) {
	if m == nil {
		return
	}
	m.promoted.WithLabelValues(class).Inc()
}

func (m *Reservations) Expired(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.expired.Add(float64(n))
}

func (m *Reservations) ConflictRetry(operation string) {
	if m == nil {
		return
	}
	m.conflictRetries.WithLabelValues(operation).Inc()
}

func (m *Reservations) ObserveDuration(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(operation).Observe(seconds)
}
