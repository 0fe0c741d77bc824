package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "router"

// Exporter publishes dispatch metrics to Prometheus.
type Exporter struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errorsTotal     *prometheus.CounterVec
	serviceUp       *prometheus.GaugeVec
}

// NewExporter registers the router collectors with reg, or with the default
// registerer when reg is nil.
func NewExporter(reg prometheus.Registerer) *Exporter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Exporter{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "proxy",
				Name:      "requests_total",
				Help:      "Total number of forwarded requests, labeled by service and status code.",
			},
			[]string{"service", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "proxy",
				Name:      "request_duration_seconds",
				Help:      "Upstream round trip latency in seconds, labeled by service and forwarding strategy.",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"service", "strategy"},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "proxy",
				Name:      "errors_total",
				Help:      "Total number of failed forwards, labeled by service and error kind.",
			},
			[]string{"service", "kind"},
		),
		serviceUp: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "health",
				Name:      "service_up",
				Help:      "Result of the last health check (1 healthy, 0 unhealthy).",
			},
			[]string{"service"},
		),
	}
}

// ObserveRequest records a forward that produced an upstream response.
func (e *Exporter) ObserveRequest(service, strategy string, status int, duration time.Duration) {
	if e == nil {
		return
	}
	e.requestsTotal.WithLabelValues(service, strconv.Itoa(status)).Inc()
	e.requestDuration.WithLabelValues(service, strategy).Observe(duration.Seconds())
}

// ObserveError records a failed forward.
func (e *Exporter) ObserveError(service, kind string) {
	if e == nil {
		return
	}
	e.errorsTotal.WithLabelValues(service, kind).Inc()
}

// SetHealth records a health check result.
func (e *Exporter) SetHealth(service string, healthy bool) {
	if e == nil {
		return
	}
	v := 0.0
	if healthy {
		v = 1
	}
	e.serviceUp.WithLabelValues(service).Set(v)
}
