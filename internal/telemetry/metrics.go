package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsSink exposes batch telemetry as Prometheus metrics. It plugs into
// the emitter like any other sink; the HTTP layer serves the registry at
// /metrics.
type MetricsSink struct {
	batches      *prometheus.CounterVec
	predictions  *prometheus.CounterVec
	failures     *prometheus.CounterVec
	registryHits *prometheus.CounterVec
	latency      prometheus.Histogram
	batchSize    prometheus.Histogram
	coverage     prometheus.Histogram
}

// NewMetricsSink registers the scoring metrics on reg (the default
// registerer when nil).
func NewMetricsSink(reg prometheus.Registerer) *MetricsSink {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	s := &MetricsSink{
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leadscore_batches_total",
			Help: "Prediction batches processed, by model version.",
		}, []string{"model_version"}),
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leadscore_predictions_total",
			Help: "Per-lead predictions, by outcome.",
		}, []string{"outcome"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leadscore_failures_total",
			Help: "Per-lead failures, by kind.",
		}, []string{"kind"}),
		registryHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leadscore_registry_lookups_total",
			Help: "Model registry lookups, by cache outcome.",
		}, []string{"outcome"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "leadscore_batch_latency_seconds",
			Help:    "End-to-end batch prediction latency.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "leadscore_batch_size",
			Help:    "Lead count per prediction batch.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		coverage: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "leadscore_feature_coverage",
			Help:    "Mean feature coverage ratio per batch.",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
	}

	reg.MustRegister(s.batches, s.predictions, s.failures, s.registryHits, s.latency, s.batchSize, s.coverage)
	return s
}

func (s *MetricsSink) Name() string { return "prometheus" }

func (s *MetricsSink) Deliver(_ context.Context, ev *Event) error {
	if ev == nil {
		return nil
	}
	s.batches.WithLabelValues(ev.ModelVersion).Inc()
	s.predictions.WithLabelValues("success").Add(float64(ev.Successful))
	s.predictions.WithLabelValues("failure").Add(float64(ev.Failed))
	for kind, n := range ev.FailureKinds {
		s.failures.WithLabelValues(kind).Add(float64(n))
	}
	if ev.CacheHit {
		s.registryHits.WithLabelValues("hit").Inc()
	} else {
		s.registryHits.WithLabelValues("miss").Inc()
	}
	s.latency.Observe(ev.LatencyMS / 1000)
	s.batchSize.Observe(float64(ev.BatchSize))
	if ev.Successful > 0 {
		s.coverage.Observe(ev.CoverageMean)
	}
	return nil
}

func (s *MetricsSink) Close(context.Context) error { return nil }
