package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EscrowMetrics counts escrow operations, gateway round trips and reconciliation drift.
type EscrowMetrics struct {
	operations    *prometheus.CounterVec
	gatewayCalls  *prometheus.HistogramVec
	discrepancies *prometheus.CounterVec
}

// NewEscrowMetrics registers the escrow metrics on reg. A nil registerer yields a no-op recorder.
func NewEscrowMetrics(reg prometheus.Registerer) *EscrowMetrics {
	if reg == nil {
		return &EscrowMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "escrow",
		Name:      "operations_total",
		Help:      "Escrow operations by outcome (ok or error kind).",
	}, []string{"operation", "outcome"})
	gatewayCalls := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "gateway",
		Name:      "call_duration_seconds",
		Help:      "Payment gateway call latency.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
	}, []string{"call", "outcome"})
	discrepancies := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "escrow",
		Name:      "reconcile_discrepancies_total",
		Help:      "Holds whose provider status disagrees with the persisted status.",
	}, []string{"persisted", "provider"})
	reg.MustRegister(operations, gatewayCalls, discrepancies)
	return &EscrowMetrics{
		operations:    operations,
		gatewayCalls:  gatewayCalls,
		discrepancies: discrepancies,
	}
}

// IncOperation records one escrow operation with its outcome.
func (m *EscrowMetrics) IncOperation(operation, outcome string) {
	if m == nil || m.operations == nil {
		return
	}
	m.operations.WithLabelValues(normalizeLabel(operation), normalizeLabel(outcome)).Inc()
}

// ObserveGatewayCall records the latency of one provider round trip.
func (m *EscrowMetrics) ObserveGatewayCall(call, outcome string, duration time.Duration) {
	if m == nil || m.gatewayCalls == nil {
		return
	}
	m.gatewayCalls.WithLabelValues(normalizeLabel(call), normalizeLabel(outcome)).Observe(duration.Seconds())
}

// IncDiscrepancy counts a persisted/provider status mismatch.
func (m *EscrowMetrics) IncDiscrepancy(persisted, provider string) {
	if m == nil || m.discrepancies == nil {
		return
	}
	m.discrepancies.WithLabelValues(normalizeLabel(persisted), normalizeLabel(provider)).Inc()
}
