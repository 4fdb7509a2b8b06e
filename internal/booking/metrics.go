package booking

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts workflow transitions. A nil *Metrics records nothing.
type Metrics struct {
	Submissions      *prometheus.CounterVec
	Decisions        *prometheus.CounterVec
	Payments         prometheus.Counter
	PaymentAmount    prometheus.Counter
	Cancellations    *prometheus.CounterVec
	Conflicts        *prometheus.CounterVec
	RentalsCompleted prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Submissions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "renthive_applications_submitted_total",
			Help: "Applications accepted as pending, by listing kind",
		}, []string{"kind"}),

		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "renthive_application_decisions_total",
			Help: "Owner decisions on pending applications",
		}, []string{"decision"}),

		Payments: f.NewCounter(prometheus.CounterOpts{
			Name: "renthive_payments_total",
			Help: "Approved applications paid",
		}),

		PaymentAmount: f.NewCounter(prometheus.CounterOpts{
			Name: "renthive_payment_amount_total",
			Help: "Sum of paid amounts",
		}),

		Cancellations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "renthive_cancellations_total",
			Help: "Cancelled applications and rentals",
		}, []string{"target"}),

		Conflicts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "renthive_booking_conflicts_total",
			Help: "Operations refused with a conflict, by operation",
		}, []string{"operation"}),

		RentalsCompleted: f.NewCounter(prometheus.CounterOpts{
			Name: "renthive_rentals_completed_total",
			Help: "Rentals moved to Completed by the reconciler",
		}),
	}
}

func (m *Metrics) submitted(kind string) {
	if m != nil {
		m.Submissions.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) decided(decision string) {
	if m != nil {
		m.Decisions.WithLabelValues(decision).Inc()
	}
}

func (m *Metrics) paid(amount float64) {
	if m != nil {
		m.Payments.Inc()
		m.PaymentAmount.Add(amount)
	}
}

func (m *Metrics) cancelled(target string) {
	if m != nil {
		m.Cancellations.WithLabelValues(target).Inc()
	}
}

func (m *Metrics) failed(operation string, err error) {
	if m != nil && KindOf(err) == KindConflict {
		m.Conflicts.WithLabelValues(operation).Inc()
	}
}

func (m *Metrics) completed(n int) {
	if m != nil {
		m.RentalsCompleted.Add(float64(n))
	}
}
