package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the API's Prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	requests  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	commands  *prometheus.CounterVec
	wsClients prometheus.Gauge
}

// NewMetrics creates unregistered collectors. Register them with Collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "comfortclick_http_requests_total",
			Help: "API requests by method, route and status",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "comfortclick_http_request_duration_seconds",
			Help:    "API request duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "comfortclick_api_commands_total",
			Help: "Entity commands received over the API by command and result",
		}, []string{"command", "result"}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "comfortclick_websocket_clients",
			Help: "Connected WebSocket clients",
		}),
	}
}

// Collectors returns every collector for registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.requests, m.duration, m.commands, m.wsClients}
}

// observeRequest uses the matched chi route pattern so ids in paths do not
// create new series.
func (m *Metrics) observeRequest(r *http.Request, status int, d time.Duration) {
	if m == nil {
		return
	}
	route := "unmatched"
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			route = p
		}
	}
	m.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(r.Method, route).Observe(d.Seconds())
}

func (m *Metrics) recordCommand(command string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.commands.WithLabelValues(command, result).Inc()
}

func (m *Metrics) setWSClients(n int) {
	if m != nil {
		m.wsClients.Set(float64(n))
	}
}
