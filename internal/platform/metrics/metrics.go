package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the carousel.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry            *prometheus.Registry
	requestsTotal       prometheus.Counter
	errorsTotal         prometheus.Counter
	chunksIngestedTotal *prometheus.CounterVec
	servicesAddedTotal  prometheus.Counter
	decodeErrorsTotal   prometheus.Counter
	transitionsTotal    prometheus.Counter
	framesRenderedTotal prometheus.Counter
	framesDroppedTotal  prometheus.Counter
	services            prometheus.Gauge
	animationRunning    prometheus.Gauge
	viewers             prometheus.Gauge
}

// New creates and registers Prometheus metrics for the carousel.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "carousel_requests_total",
			Help: "Total number of HTTP requests received",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "carousel_errors_total",
			Help: "Total number of HTTP responses with error status (4xx or 5xx)",
		}),
		chunksIngestedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "carousel_chunks_ingested_total",
			Help: "Chunks successfully folded into the replay state, by ingestion path",
		}, []string{"path"}),
		servicesAddedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "carousel_services_added_total",
			Help: "Service identifiers added to the replay state",
		}),
		decodeErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "carousel_decode_errors_total",
			Help: "Chunks rejected because they could not be decoded",
		}),
		transitionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "carousel_transitions_total",
			Help: "Timed rotation transitions that advanced the carousel",
		}),
		framesRenderedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "carousel_frames_rendered_total",
			Help: "Frames handed to the renderer",
		}),
		framesDroppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "carousel_frames_dropped_total",
			Help: "Frames dropped for slow viewers",
		}),
		services: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "carousel_services",
			Help: "Number of services in the rotation",
		}),
		animationRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "carousel_animation_running",
			Help: "1 while the rotation scheduler is running",
		}),
		viewers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "carousel_viewers",
			Help: "Connected websocket viewers",
		}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.errorsTotal,
		m.chunksIngestedTotal,
		m.servicesAddedTotal,
		m.decodeErrorsTotal,
		m.transitionsTotal,
		m.framesRenderedTotal,
		m.framesDroppedTotal,
		m.services,
		m.animationRunning,
		m.viewers,
	)
	return m
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	if m != nil {
		m.requestsTotal.Inc()
	}
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	if m != nil {
		m.errorsTotal.Inc()
	}
}

// ObserveChunk records one ingested chunk on the given path ("append" or "replay")
// and the number of identifiers it added.
func (m *Metrics) ObserveChunk(path string, added int) {
	if m == nil {
		return
	}
	m.chunksIngestedTotal.WithLabelValues(path).Inc()
	m.servicesAddedTotal.Add(float64(added))
}

// IncDecodeErrors increments the decode error counter.
func (m *Metrics) IncDecodeErrors() {
	if m != nil {
		m.decodeErrorsTotal.Inc()
	}
}

// IncTransitions increments the transition counter.
func (m *Metrics) IncTransitions() {
	if m != nil {
		m.transitionsTotal.Inc()
	}
}

// IncFramesRendered increments the rendered frame counter.
func (m *Metrics) IncFramesRendered() {
	if m != nil {
		m.framesRenderedTotal.Inc()
	}
}

// AddFramesDropped adds n to the dropped frame counter.
func (m *Metrics) AddFramesDropped(n int) {
	if m != nil && n > 0 {
		m.framesDroppedTotal.Add(float64(n))
	}
}

// SetServices sets the services gauge.
func (m *Metrics) SetServices(n int) {
	if m != nil {
		m.services.Set(float64(n))
	}
}

// SetRunning sets the animation gauge.
func (m *Metrics) SetRunning(running bool) {
	if m == nil {
		return
	}
	if running {
		m.animationRunning.Set(1)
	} else {
		m.animationRunning.Set(0)
	}
}

// SetViewers sets the connected viewer gauge.
func (m *Metrics) SetViewers(n int) {
	if m != nil {
		m.viewers.Set(float64(n))
	}
}

// Registry exposes the underlying registry (tests gather from it).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
