// Package metrics provides Prometheus metrics collection for eunomia's
// build, registry, and distributor components.
//
// # Overview
//
// The metrics package implements Prometheus metrics for monitoring bundle
// compile/push/pull operations, enforcement instance health and apply
// latency, static analysis results, and cache performance.
//
// # Metrics Categories
//
//   - Bundle Metrics: compile/push/pull count, duration, and bundle size
//   - Instance Metrics: enforcement instance health, apply latency, apply errors
//   - Analysis Metrics: static analysis evaluation count, duration, and warnings
//   - Cache Metrics: cache hits, misses, and sizes
//
// # Usage
//
//	// Create collector
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//
//	// Record a bundle push
//	collector.RecordBundleOperation(
//		"checkout-policy", // service
//		"push",            // operation
//		"success",         // result
//		time.Second,       // duration
//		48213,             // size in bytes
//	)
//
//	// Record instance health and apply metrics
//	collector.RecordInstanceLatency("edge-01", "checkout-policy", 0.12)
//	collector.UpdateInstanceHealth("edge-01", true)
//
//	// Record a static analysis run
//	collector.RecordAnalysis("checkout-policy", "unsafe-builtin", "pass", 2*time.Millisecond)
//
// # Prometheus Endpoint
//
// All metrics are exposed on the /metrics endpoint in standard Prometheus format:
//
//	# HELP eunomia_bundle_operations_total Total number of bundle operations processed
//	# TYPE eunomia_bundle_operations_total counter
//	eunomia_bundle_operations_total{service="checkout-policy",operation="push",result="success"} 1234
//
// # Cardinality Management
//
// The collector limits the cardinality of bundle operation metrics to
// prevent memory issues:
//
//   - At most 10,000 distinct service/operation/result combinations are
//     recorded as given
//   - A combination first seen after that limit is recorded under the
//     service "other"
//
// Instance, analysis and cache metrics have no cardinality limit.
package metrics
