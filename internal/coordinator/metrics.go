package coordinator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Poll results used as the "result" label.
const (
	resultOK    = "ok"
	resultError = "error"
)

// Metrics are the coordinator's Prometheus collectors.
// A nil *Metrics records nothing.
type Metrics struct {
	polls               *prometheus.CounterVec
	pollDuration        prometheus.Histogram
	skipped             prometheus.Counter
	cacheEntries        prometheus.Gauge
	lastSuccess         prometheus.Gauge
	consecutiveFailures prometheus.Gauge
}

// NewMetrics creates unregistered collectors. Register them with Collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "comfortclick_polls_total",
			Help: "Panel polls by result",
		}, []string{"result"}),
		pollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "comfortclick_poll_duration_seconds",
			Help:    "Panel poll round trip duration",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "comfortclick_polls_skipped_total",
			Help: "Polls skipped because another poll was in flight",
		}),
		cacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "comfortclick_cache_entries",
			Help: "Device points held in the value cache",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "comfortclick_last_success_timestamp_seconds",
			Help: "Last successful poll timestamp (epoch seconds)",
		}),
		consecutiveFailures: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "comfortclick_consecutive_failures",
			Help: "Failed polls since the last success",
		}),
	}
}

// Collectors returns every collector for registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.polls,
		m.pollDuration,
		m.skipped,
		m.cacheEntries,
		m.lastSuccess,
		m.consecutiveFailures,
	}
}

func (m *Metrics) observePoll(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.pollDuration.Observe(d.Seconds())
	if err != nil {
		m.polls.WithLabelValues(resultError).Inc()
		return
	}
	m.polls.WithLabelValues(resultOK).Inc()
}

func (m *Metrics) recordSkip() {
	if m != nil {
		m.skipped.Inc()
	}
}

func (m *Metrics) recordHealth(lastSuccess time.Time, failures int, cacheEntries int) {
	if m == nil {
		return
	}
	if !lastSuccess.IsZero() {
		m.lastSuccess.Set(float64(lastSuccess.Unix()))
	}
	m.consecutiveFailures.Set(float64(failures))
	if cacheEntries >= 0 {
		m.cacheEntries.Set(float64(cacheEntries))
	}
}
