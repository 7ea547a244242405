// Package metrics exposes Prometheus collectors for the booking service.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	availabilityQueries *prometheus.CounterVec
	availabilityLatency prometheus.Histogram
	commits             *prometheus.CounterVec
	giftCards           *prometheus.CounterVec
	outboxPublished     prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		availabilityQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salon",
			Subsystem: "availability",
			Name:      "queries_total",
			Help:      "Availability queries by result status.",
		}, []string{"status"}),
		availabilityLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "salon",
			Subsystem: "availability",
			Name:      "compute_seconds",
			Help:      "Time spent computing bookable slots for one day.",
			Buckets:   prometheus.DefBuckets,
		}),
		commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salon",
			Subsystem: "booking",
			Name:      "commits_total",
			Help:      "Reservation commit attempts by outcome.",
		}, []string{"outcome"}),
		giftCards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salon",
			Subsystem: "giftcards",
			Name:      "issued_total",
			Help:      "Gift cards issued by initial status.",
		}, []string{"status"}),
		outboxPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "salon",
			Subsystem: "outbox",
			Name:      "published_total",
			Help:      "Outbox events written to Kafka.",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.availabilityQueries, m.availabilityLatency, m.commits, m.giftCards, m.outboxPublished)
	return m
}

func (m *Metrics) ObserveAvailability(status string, took time.Duration) {
	if m == nil {
		return
	}
	m.availabilityQueries.WithLabelValues(status).Inc()
	m.availabilityLatency.Observe(took.Seconds())
}

// ObserveCommit records one commit attempt; outcome is "scheduled",
// "slot_unavailable", "invalid" or "error".
func (m *Metrics) ObserveCommit(outcome string) {
	if m == nil {
		return
	}
	m.commits.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveGiftCard(status string) {
	if m == nil {
		return
	}
	m.giftCards.WithLabelValues(status).Inc()
}

func (m *Metrics) AddOutboxPublished(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.outboxPublished.Add(float64(n))
}
