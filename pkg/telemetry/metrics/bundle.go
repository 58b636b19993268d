package metrics

import (
	"time"

	"github.com/eunomia-sh/eunomia/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// BundleMetrics tracks metrics related to bundle compile, push, and pull
// operations, as performed by the cmd/eunomia build/push/pull commands.
//
// Metrics:
//   - eunomia_bundle_operations_total: Total operations by service, operation, result
//   - eunomia_bundle_operation_duration_seconds: Operation duration histogram
//   - eunomia_bundle_size_bytes: Compiled bundle size histogram
type BundleMetrics struct {
	// Total operation count
	operationsTotal *prometheus.CounterVec

	// Operation duration histogram
	operationDuration *prometheus.HistogramVec

	// Bundle size in bytes
	sizeBytes *prometheus.HistogramVec
}

// NewBundleMetrics creates and registers bundle metrics with the provided registry.
func NewBundleMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *BundleMetrics {
	bm := &BundleMetrics{
		operationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "bundle_operations_total",
				Help:      "Total number of bundle operations processed",
			},
			[]string{"service", "operation", "result"},
		),

		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "bundle_operation_duration_seconds",
				Help:      "Duration of bundle operations in seconds",
				Buckets:   cfg.DurationBuckets,
			},
			[]string{"service", "operation"},
		),

		sizeBytes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "bundle_size_bytes",
				Help:      "Size of compiled bundle archives in bytes",
				Buckets:   prometheus.ExponentialBuckets(1024, 2, 12), // 1KB to 4MB
			},
			[]string{"service"},
		),
	}

	registry.MustRegister(
		bm.operationsTotal,
		bm.operationDuration,
		bm.sizeBytes,
	)

	return bm
}

// RecordOperation records metrics for a completed bundle operation.
//
// Parameters:
//   - service: bundle service namespace (e.g. "checkout-policy")
//   - operation: "compile", "push", or "pull"
//   - result: "success", "error", or "rejected"
//   - duration: operation duration
func (bm *BundleMetrics) RecordOperation(service, operation, result string, duration time.Duration) {
	bm.operationsTotal.WithLabelValues(service, operation, result).Inc()
	bm.operationDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
}

// RecordSize records the size of a compiled bundle.
func (bm *BundleMetrics) RecordSize(service string, sizeBytes int) {
	if sizeBytes > 0 {
		bm.sizeBytes.WithLabelValues(service).Observe(float64(sizeBytes))
	}
}
