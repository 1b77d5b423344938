package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.BatchFinished("ok", time.Second)
		m.Confirmed(2)
		m.Cancelled("refill-slot", 1)
		m.ArchivedRow("slot-already-full")
		m.Restore("restored")
		m.Registered(1)
		m.MailOutcome("confirm", "queued")
		m.ObserveLockWait(time.Millisecond)
	})
}

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Confirmed(3)
	m.Confirmed(0)
	m.ArchivedRow("past-date-pending")
	m.ArchivedRow("past-date-pending")
	m.MailOutcome("receipt", "sent")

	assert.Equal(t, 3.0, testutil.ToFloat64(m.Confirmations))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Archived.WithLabelValues("past-date-pending")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Mail.WithLabelValues("receipt", "sent")))

	// a second registry accepts the same names
	require.NotPanics(t, func() { New(prometheus.NewRegistry()) })
}
