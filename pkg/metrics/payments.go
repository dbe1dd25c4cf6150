package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics observes the payment transition function.
type PaymentMetrics struct {
	transitions *prometheus.CounterVec
	duplicates  *prometheus.CounterVec
	mismatches  *prometheus.CounterVec
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "owls",
		Name:      "payment_transitions_total",
		Help:      "Payment state transitions by source and outcome.",
	}, []string{"source", "outcome"})
	duplicates := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "owls",
		Name:      "payment_duplicate_results_total",
		Help:      "Gateway results dropped because the payment was already terminal.",
	}, []string{"source"})
	mismatches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "owls",
		Name:      "payment_amount_mismatches_total",
		Help:      "Successful gateway results rejected for an amount mismatch.",
	}, []string{"source"})
	reg.MustRegister(transitions, duplicates, mismatches)
	return &PaymentMetrics{
		transitions: transitions,
		duplicates:  duplicates,
		mismatches:  mismatches,
	}
}

// IncTransition counts one applied transition.
func (p *PaymentMetrics) IncTransition(source, outcome string) {
	if p == nil || p.transitions == nil {
		return
	}
	p.transitions.WithLabelValues(normalizeLabel(source), normalizeLabel(outcome)).Inc()
}

// IncDuplicate counts a result ignored because the payment was terminal.
func (p *PaymentMetrics) IncDuplicate(source string) {
	if p == nil || p.duplicates == nil {
		return
	}
	p.duplicates.WithLabelValues(normalizeLabel(source)).Inc()
}

// IncAmountMismatch counts a success result rejected on amount.
func (p *PaymentMetrics) IncAmountMismatch(source string) {
	if p == nil || p.mismatches == nil {
		return
	}
	p.mismatches.WithLabelValues(normalizeLabel(source)).Inc()
}
