// Package metrics exposes grading metrics to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "omr_grader"

// Recorder owns a private registry so several recorders (one per test, for
// example) never collide on the default registerer.
type Recorder struct {
	registry *prometheus.Registry

	registrationsTotal   *prometheus.CounterVec
	registrationDuration *prometheus.HistogramVec
	zonesTotal           *prometheus.CounterVec
	pagesTotal           *prometheus.CounterVec
	pageDuration         prometheus.Histogram
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
}

// New creates a Recorder with Go runtime and process collectors attached.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),

		registrationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "registrations_total",
				Help:      "Page registrations by winning strategy and outcome",
			},
			[]string{"strategy", "outcome"},
		),
		registrationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "registration_duration_seconds",
				Help:      "Page registration duration in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"outcome"},
		),
		zonesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "zones_total",
				Help:      "Graded zones by outcome",
			},
			[]string{"outcome"}, // correct, incorrect, blank, skipped
		),
		pagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pages_total",
				Help:      "Graded pages by status",
			},
			[]string{"status"}, // graded, unaligned, failed
		),
		pageDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "page_duration_seconds",
				Help:      "Full page grading duration in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
		),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"method", "path", "status"},
		),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.registrationsTotal,
		r.registrationDuration,
		r.zonesTotal,
		r.pagesTotal,
		r.pageDuration,
		r.httpRequestsTotal,
		r.httpRequestDuration,
	)
	return r
}

// Registry returns the recorder's registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveRegistration records one Register call. strategy is empty on failure.
func (r *Recorder) ObserveRegistration(strategy string, aligned bool, d time.Duration) {
	outcome := "aligned"
	if !aligned {
		outcome = "failed"
		strategy = "none"
	}
	r.registrationsTotal.WithLabelValues(strategy, outcome).Inc()
	r.registrationDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// ObserveZone records one zone outcome.
func (r *Recorder) ObserveZone(outcome string) {
	r.zonesTotal.WithLabelValues(outcome).Inc()
}

// ObservePage records one page.
func (r *Recorder) ObservePage(status string, d time.Duration) {
	r.pagesTotal.WithLabelValues(status).Inc()
	r.pageDuration.Observe(d.Seconds())
}
