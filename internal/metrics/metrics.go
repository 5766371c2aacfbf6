package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ModeSingle = "single"
	ModeMulti  = "multi"

	OutcomeSuccess          = "success"
	OutcomeInvalidOptions   = "invalid_options"
	OutcomeLoadFailed       = "load_failed"
	OutcomeCancelled        = "cancelled"
	OutcomePersistFailed    = "persist_failed"
	OutcomeDetectionFailure = "detection_failed"
)

// Collector owns a private registry so tests can create as many as they
// like. Every method is safe on a nil *Collector.
type Collector struct {
	registry *prometheus.Registry

	DetectionRuns      *prometheus.CounterVec
	DetectionDuration  *prometheus.HistogramVec
	Communities        *prometheus.CounterVec
	OptimizerPasses    *prometheus.HistogramVec
	ConvergenceWarning prometheus.Counter
	HTTPRequests       *prometheus.CounterVec
}

func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		DetectionRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "detection_runs_total",
				Help:      "Community detection runs by mode and outcome",
			},
			[]string{"mode", "outcome"},
		),
		DetectionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "detection_duration_seconds",
				Help:      "Wall time of a detection run, load to persistence",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14),
			},
			[]string{"mode"},
		),
		Communities: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "communities_detected_total",
				Help:      "Communities produced by successful runs, by hierarchy level",
			},
			[]string{"level"},
		),
		OptimizerPasses: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "optimizer_passes",
				Help:      "Louvain passes needed per hierarchy level",
				Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 50, 100},
			},
			[]string{"level"},
		),
		ConvergenceWarning: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "convergence_warnings_total",
				Help:      "Levels that hit the optimizer pass cap",
			},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route and status",
			},
			[]string{"method", "route", "status"},
		),
	}

	registry.MustRegister(
		c.DetectionRuns,
		c.DetectionDuration,
		c.Communities,
		c.OptimizerPasses,
		c.ConvergenceWarning,
		c.HTTPRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// RecordRun counts one finished run. Duration is observed for every outcome.
func (c *Collector) RecordRun(mode, outcome string, duration time.Duration) {
	if c == nil {
		return
	}
	c.DetectionRuns.WithLabelValues(mode, outcome).Inc()
	c.DetectionDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

func (c *Collector) RecordLevel(level, communities, passes int, converged bool) {
	if c == nil {
		return
	}
	label := strconv.Itoa(level)
	c.Communities.WithLabelValues(label).Add(float64(communities))
	c.OptimizerPasses.WithLabelValues(label).Observe(float64(passes))
	if !converged {
		c.ConvergenceWarning.Inc()
	}
}

func (c *Collector) RecordHTTP(method, route string, status int) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// Handler exposes the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
