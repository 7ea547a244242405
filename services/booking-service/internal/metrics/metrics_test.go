package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveAvailability("open", 3*time.Millisecond)
	m.ObserveAvailability("closed", time.Millisecond)
	m.ObserveCommit("scheduled")
	m.ObserveCommit("slot_unavailable")
	m.ObserveCommit("slot_unavailable")
	m.ObserveGiftCard("active")
	m.AddOutboxPublished(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.availabilityQueries.WithLabelValues("open")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.commits.WithLabelValues("slot_unavailable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.giftCards.WithLabelValues("active")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.outboxPublished))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAvailability("open", time.Second)
	m.ObserveCommit("error")
	m.ObserveGiftCard("active")
	m.AddOutboxPublished(1)
}
