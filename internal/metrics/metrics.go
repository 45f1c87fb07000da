package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QueueUsers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "admission_queue_users",
			Help: "Users currently in the admission queue by state",
		},
		[]string{"state"},
	)

	QueueTokensIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admission_queue_tokens_issued_total",
			Help: "Tokens handed out by the admission queue",
		},
		[]string{"status"},
	)

	QueueActivations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "admission_queue_activations_total",
			Help: "Waiting users promoted to active",
		},
	)

	LockAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "distributed_lock_attempts_total",
			Help: "Distributed lock acquisition attempts",
		},
		[]string{"result"},
	)

	Reservations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seat_reservations_total",
			Help: "Seat reservation attempts by outcome",
		},
		[]string{"result"},
	)

	Payments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payment attempts by outcome",
		},
		[]string{"result"},
	)

	LedgerMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "balance_ledger_mutations_total",
			Help: "Balance ledger rows appended by type",
		},
		[]string{"type"},
	)

	ExpiredReservations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reservations_expired_total",
			Help: "Reservations reclaimed by the expiry sweep",
		},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Outbound domain events by result",
		},
		[]string{"result"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route and status code",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	ReservationHoldDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reservation_hold_to_payment_seconds",
			Help:    "Time between placing a hold and paying for it",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)
)

// Outcome maps an error to a low-cardinality label value.
func Outcome(err error, classify func(error) string) string {
	if err == nil {
		return "success"
	}
	if classify != nil {
		if label := classify(err); label != "" {
			return label
		}
	}
	return "error"
}
