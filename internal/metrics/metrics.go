// Package metrics exposes admission engine measurements to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "booking"

// Recorder implements the application's Metrics port on a private registry.
type Recorder struct {
	registry    *prometheus.Registry
	admissions  *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	lockWait    prometheus.Histogram
	transitions *prometheus.CounterVec
}

// New registers the booking collectors plus Go runtime and process collectors.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		admissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admissions_total",
			Help:      "Booking admission attempts by outcome.",
		}, []string{"outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "admission_duration_seconds",
			Help:      "Time spent admitting a booking, lock wait included.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"outcome"}),
		lockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resource_lock_wait_seconds",
			Help:      "Time spent waiting for a resource's critical section.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_transitions_total",
			Help:      "Persisted booking status changes by target status.",
		}, []string{"status"}),
	}
	r.registry.MustRegister(
		r.admissions,
		r.latency,
		r.lockWait,
		r.transitions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Recorder) ObserveAdmission(outcome string, elapsed time.Duration) {
	r.admissions.WithLabelValues(outcome).Inc()
	r.latency.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func (r *Recorder) ObserveLockWait(elapsed time.Duration) {
	r.lockWait.Observe(elapsed.Seconds())
}

func (r *Recorder) IncTransition(status string) {
	r.transitions.WithLabelValues(status).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}
