// Package metrics exposes Prometheus instruments for the booking engine
// and the mail pipeline.  All methods are safe on a nil *Metrics so
// components can run without instrumentation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups every instrument the service records.
type Metrics struct {
	BatchRuns     *prometheus.CounterVec
	BatchDuration prometheus.Histogram
	Confirmations prometheus.Counter
	Cancellations *prometheus.CounterVec
	Archived      *prometheus.CounterVec
	Restores      *prometheus.CounterVec
	Registrations prometheus.Counter
	Mail          *prometheus.CounterVec
	LockWait      prometheus.Histogram
}

// New registers the instruments on reg.  Passing a fresh registry keeps
// tests independent of the global default one.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		BatchRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "slotbooking_batch_runs_total",
			Help: "Batch runs by outcome",
		}, []string{"outcome"}), // ok, partial, lock_timeout

		BatchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "slotbooking_batch_duration_seconds",
			Help:    "Duration of a full batch run while holding the lock",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),

		Confirmations: f.NewCounter(prometheus.CounterOpts{
			Name: "slotbooking_confirmations_total",
			Help: "Registrations moved to confirmed",
		}),

		Cancellations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "slotbooking_cancellations_total",
			Help: "Registrations removed by operator cancellations, by slot policy",
		}, []string{"slot_policy"}),

		Archived: f.NewCounterVec(prometheus.CounterOpts{
			Name: "slotbooking_archived_total",
			Help: "Registrations moved to the archive, by reason",
		}, []string{"reason"}),

		Restores: f.NewCounterVec(prometheus.CounterOpts{
			Name: "slotbooking_restores_total",
			Help: "Archive restore attempts by result",
		}, []string{"result"}),

		Registrations: f.NewCounter(prometheus.CounterOpts{
			Name: "slotbooking_registrations_total",
			Help: "Registrations accepted into the ledger",
		}),

		Mail: f.NewCounterVec(prometheus.CounterOpts{
			Name: "slotbooking_mail_total",
			Help: "Outbound mail by type and outcome",
		}, []string{"type", "outcome"}), // sent, queued, failed

		LockWait: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "slotbooking_lock_wait_seconds",
			Help:    "Time spent waiting for the batch lock",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}),
	}
}

func (m *Metrics) BatchFinished(outcome string, d time.Duration) {
	if m != nil {
		m.BatchRuns.WithLabelValues(outcome).Inc()
		m.BatchDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) Confirmed(n int) {
	if m != nil && n > 0 {
		m.Confirmations.Add(float64(n))
	}
}

func (m *Metrics) Cancelled(slotPolicy string, n int) {
	if m != nil && n > 0 {
		m.Cancellations.WithLabelValues(slotPolicy).Add(float64(n))
	}
}

func (m *Metrics) ArchivedRow(reason string) {
	if m != nil {
		m.Archived.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) Restore(result string) {
	if m != nil {
		m.Restores.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) Registered(n int) {
	if m != nil && n > 0 {
		m.Registrations.Add(float64(n))
	}
}

func (m *Metrics) MailOutcome(typ, outcome string) {
	if m != nil {
		m.Mail.WithLabelValues(typ, outcome).Inc()
	}
}

func (m *Metrics) ObserveLockWait(d time.Duration) {
	if m != nil {
		m.LockWait.Observe(d.Seconds())
	}
}
