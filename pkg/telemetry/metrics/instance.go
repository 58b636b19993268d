package metrics

import (
	"github.com/eunomia-sh/eunomia/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// InstanceMetrics tracks metrics related to enforcement instance health and
// apply performance, as observed by the distributor's health prober and
// apply pipeline.
//
// Metrics:
//   - eunomia_instance_health: Instance health status (1=healthy, 0=unhealthy)
//   - eunomia_instance_apply_latency_seconds: Bundle apply call latency
//   - eunomia_instance_apply_errors_total: Apply error count by error type
//   - eunomia_instance_applies_total: Total apply calls issued to each instance
type InstanceMetrics struct {
	// Instance health status (gauge: 1=healthy, 0=unhealthy)
	health *prometheus.GaugeVec

	// Apply call latency histogram
	latency *prometheus.HistogramVec

	// Apply error counter
	errors *prometheus.CounterVec

	// Total apply calls issued to an instance
	applies *prometheus.CounterVec
}

// NewInstanceMetrics creates and registers instance metrics with the provided registry.
func NewInstanceMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *InstanceMetrics {
	im := &InstanceMetrics{
		health: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "instance_health",
				Help:      "Enforcement instance health status (1=healthy, 0=unhealthy)",
			},
			[]string{"instance_id"},
		),

		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "instance_apply_latency_seconds",
				Help:      "Bundle apply call latency in seconds",
				Buckets:   cfg.DurationBuckets,
			},
			[]string{"instance_id", "bundle"},
		),

		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "instance_apply_errors_total",
				Help:      "Total number of bundle apply errors by type",
			},
			[]string{"instance_id", "error_type"},
		),

		applies: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "instance_applies_total",
				Help:      "Total number of apply calls issued to each instance",
			},
			[]string{"instance_id", "bundle"},
		),
	}

	registry.MustRegister(
		im.health,
		im.latency,
		im.errors,
		im.applies,
	)

	return im
}

// UpdateHealth updates the health status of an enforcement instance.
//
// The health metric is a gauge where 1=healthy, 0=unhealthy.
func (im *InstanceMetrics) UpdateHealth(instanceID string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	im.health.WithLabelValues(instanceID).Set(value)
}

// RecordLatency records the latency of an apply call to an instance.
func (im *InstanceMetrics) RecordLatency(instanceID, bundle string, latencySeconds float64) {
	im.latency.WithLabelValues(instanceID, bundle).Observe(latencySeconds)
}

// RecordError records an apply error from an instance.
//
// Common error types:
//   - "timeout": Apply call exceeded ApplyTimeout
//   - "unavailable": Instance unreachable
//   - "rejected": Instance rejected the bundle (e.g. failed local validation)
//   - "version_mismatch": Instance reported an unexpected applied version
func (im *InstanceMetrics) RecordError(instanceID, errorType string) {
	im.errors.WithLabelValues(instanceID, errorType).Inc()
}

// RecordApply records an apply call issued to an instance.
func (im *InstanceMetrics) RecordApply(instanceID, bundle string) {
	im.applies.WithLabelValues(instanceID, bundle).Inc()
}
