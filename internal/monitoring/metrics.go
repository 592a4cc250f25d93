package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	bidOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bid_admission_total",
			Help: "Bid submissions by outcome",
		},
		[]string{"outcome"},
	)

	bidLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bid_admission_duration_seconds",
			Help:    "Time spent admitting a bid, from validation to commit",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"outcome"},
	)

	eventDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_deliveries_total",
			Help: "Event deliveries per publisher and status",
		},
		[]string{"publisher", "event", "status"},
	)

	eventQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "event_queue_length",
			Help: "Events waiting for delivery",
		},
	)

	wsConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Currently connected websocket viewers",
		},
	)
)

// Monitor records service metrics into the default prometheus registry
type Monitor struct{}

func NewMonitor() *Monitor {
	return &Monitor{}
}

// TrackBid records the outcome and latency of one SubmitBid call
func (m *Monitor) TrackBid(outcome string, duration time.Duration) {
	bidOutcomes.WithLabelValues(outcome).Inc()
	bidLatency.WithLabelValues(outcome).Observe(duration.Seconds())
}

// TrackDelivery records one publisher delivery attempt result
func (m *Monitor) TrackDelivery(publisher, event, status string) {
	eventDeliveries.WithLabelValues(publisher, event, status).Inc()
}

func (m *Monitor) SetQueueDepth(n int) {
	eventQueueDepth.Set(float64(n))
}

func (m *Monitor) ConnectionOpened() { wsConnections.Inc() }
func (m *Monitor) ConnectionClosed() { wsConnections.Dec() }
