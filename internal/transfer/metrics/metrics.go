package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the transfer engine. A nil
// receiver is a no-op so tests can skip registration.
type Metrics struct {
	// Transfer outcomes by status and kind
	TransferOutcome *prometheus.CounterVec

	// Anomaly flags by reason
	AnomalyFlagged *prometheus.CounterVec

	// Idempotency reservation results
	IdempotencyHits *prometheus.CounterVec

	// Lock acquisition latency across both accounts
	LockWaitLatency prometheus.Histogram

	// End-to-end transfer execution latency
	ExecuteLatency prometheus.Histogram
}

// New creates a Metrics instance with all transfer metrics registered.
func New() *Metrics {
	return &Metrics{
		TransferOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tally_transfer_outcomes_total",
			Help: "Total transfer outcomes by status and kind",
		}, []string{"status", "kind"}),

		AnomalyFlagged: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tally_transfer_anomalies_total",
			Help: "Total anomaly flags by reason",
		}, []string{"reason"}),

		IdempotencyHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tally_idempotency_reservations_total",
			Help: "Idempotency reservation results by state",
		}, []string{"state"}), // state: "fresh", "inflight", "cached"

		LockWaitLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "tally_transfer_lock_wait_seconds",
			Help:    "Time spent acquiring both account locks",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5},
		}),

		ExecuteLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "tally_transfer_execute_duration_seconds",
			Help:    "Duration of full transfer execution including locking",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

// IncrementOutcome records a transfer outcome.
func (m *Metrics) IncrementOutcome(status, kind string) {
	if m != nil {
		m.TransferOutcome.WithLabelValues(status, kind).Inc()
	}
}

// IncrementAnomaly records one flagged reason.
func (m *Metrics) IncrementAnomaly(reason string) {
	if m != nil {
		m.AnomalyFlagged.WithLabelValues(reason).Inc()
	}
}

// IncrementIdempotency records a reservation result.
func (m *Metrics) IncrementIdempotency(state string) {
	if m != nil {
		m.IdempotencyHits.WithLabelValues(state).Inc()
	}
}

// ObserveLockWait records the time spent waiting on account locks.
func (m *Metrics) ObserveLockWait(d time.Duration) {
	if m != nil {
		m.LockWaitLatency.Observe(d.Seconds())
	}
}

// ObserveExecuteLatency records the total execution duration.
func (m *Metrics) ObserveExecuteLatency(d time.Duration) {
	if m != nil {
		m.ExecuteLatency.Observe(d.Seconds())
	}
}
