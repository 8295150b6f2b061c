// Package metrics exposes Prometheus collectors for sandbox activity and
// the HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SandboxBuckets covers sandbox latencies from 1ms to 10s.
var SandboxBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Collector holds every formsandbox metric on its own registry. It
// implements sandbox.Observer.
type Collector struct {
	registry *prometheus.Registry

	BuildDuration      prometheus.Histogram
	EvaluationsTotal   *prometheus.CounterVec
	EvaluationDuration *prometheus.HistogramVec
	RequestsTotal      *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	SubmissionsTotal   *prometheus.CounterVec
}

// New creates and registers the collectors.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		BuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "formsandbox_sandbox_build_seconds",
			Help:    "Time to allocate a runtime and load its dependencies",
			Buckets: SandboxBuckets,
		}),
		EvaluationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formsandbox_evaluations_total",
			Help: "Sandbox evaluations by outcome (ok or error code)",
		}, []string{"outcome"}),
		EvaluationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "formsandbox_evaluation_seconds",
			Help:    "Sandbox evaluation duration including build",
			Buckets: SandboxBuckets,
		}, []string{"outcome"}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formsandbox_http_requests_total",
			Help: "HTTP requests",
		}, []string{"method", "route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "formsandbox_http_request_seconds",
			Help:    "HTTP request duration",
			Buckets: SandboxBuckets,
		}, []string{"method", "route"}),
		SubmissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formsandbox_submissions_total",
			Help: "Validated submissions by verdict",
		}, []string{"form", "verdict"}),
	}
	c.registry.MustRegister(
		c.BuildDuration,
		c.EvaluationsTotal,
		c.EvaluationDuration,
		c.RequestsTotal,
		c.RequestDuration,
		c.SubmissionsTotal,
	)
	return c
}

// Registry returns the registry the collectors live on.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// SandboxBuilt records one runtime construction.
func (c *Collector) SandboxBuilt(elapsed time.Duration) {
	c.BuildDuration.Observe(elapsed.Seconds())
}

// EvaluationDone records one finished evaluation.
func (c *Collector) EvaluationDone(outcome string, elapsed time.Duration) {
	c.EvaluationsTotal.WithLabelValues(outcome).Inc()
	c.EvaluationDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// ObserveRequest records one HTTP request. Status is folded into its class.
func (c *Collector) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	c.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status/100)+"xx").Inc()
	c.RequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveSubmission records a validation verdict: accepted, rejected or failed.
func (c *Collector) ObserveSubmission(form, verdict string) {
	c.SubmissionsTotal.WithLabelValues(form, verdict).Inc()
}
