package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitclass_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fitclass_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	BookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitclass_bookings_total",
			Help: "Booking attempts by outcome (booked, waitlisted, already_exists or an error kind)",
		},
		[]string{"result", "source"},
	)

	BookingCancellationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitclass_booking_cancellations_total",
			Help: "Total number of booking cancellations",
		},
		[]string{"kind"},
	)

	WaitlistPromotionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitclass_waitlist_promotions_total",
			Help: "Waitlist promotions attempted after a seat was freed",
		},
		[]string{"outcome"},
	)

	LedgerEntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitclass_ledger_entries_total",
			Help: "Ledger entries written by kind",
		},
		[]string{"kind"},
	)

	LedgerCreditsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitclass_ledger_credits_total",
			Help: "Credits moved through the ledger by kind",
		},
		[]string{"kind"},
	)

	CreditSubmissionsReviewedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitclass_credit_submissions_reviewed_total",
			Help: "Credit submissions reviewed by action",
		},
		[]string{"action"},
	)

	CycleRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitclass_credit_cycle_runs_total",
			Help: "Monthly credit cycle runs by status",
		},
		[]string{"status"},
	)

	CycleRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fitclass_credit_cycle_run_duration_seconds",
			Help:    "Duration of monthly credit cycle runs",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	UnitOfWorkMode = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fitclass_unit_of_work_mode",
			Help: "Set to 1 for the unit-of-work strategy in use",
		},
		[]string{"mode"},
	)

	EmailsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitclass_emails_sent_total",
			Help: "Total number of emails sent",
		},
		[]string{"type", "status"},
	)

	EmailQueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fitclass_email_queue_length",
			Help: "Current length of email queue",
		},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordBooking(result, source string) {
	BookingsTotal.WithLabelValues(result, source).Inc()
}

func RecordBookingCancellation(kind string) {
	BookingCancellationsTotal.WithLabelValues(kind).Inc()
}

func RecordPromotion(outcome string) {
	WaitlistPromotionsTotal.WithLabelValues(outcome).Inc()
}

func RecordSubmissionReview(action string) {
	CreditSubmissionsReviewedTotal.WithLabelValues(action).Inc()
}

func RecordCycleRun(status string, seconds float64) {
	CycleRunsTotal.WithLabelValues(status).Inc()
	CycleRunDuration.Observe(seconds)
}

func SetUnitOfWorkMode(mode string) {
	UnitOfWorkMode.Reset()
	UnitOfWorkMode.WithLabelValues(mode).Set(1)
}

func RecordEmail(emailType, status string) {
	EmailsSentTotal.WithLabelValues(emailType, status).Inc()
}
