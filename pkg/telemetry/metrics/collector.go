package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/eunomia-sh/eunomia/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector is the main orchestrator for all Prometheus metrics in eunomia.
// It manages metric registration, collection, and provides a unified
// interface for recording metrics across the build, registry, and
// distributor components.
//
// The collector is designed for low overhead:
//   - Pre-allocated metric instances
//   - Lock-free counters where possible
//   - Cardinality limits to prevent memory issues
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	// Bundle compile/push/pull metrics
	bundleMetrics *BundleMetrics

	// Enforcement instance health/apply metrics
	instanceMetrics *InstanceMetrics

	// Static analysis metrics
	analysisMetrics *AnalysisMetrics

	// Cache metrics (registry blob cache, distributor bundle cache)
	cacheMetrics *CacheMetrics

	// Cardinality tracking
	cardinalityLimiter *CardinalityLimiter
}

// NewCollector creates a new metrics collector with the specified configuration
// and Prometheus registry. If registry is nil, a new Prometheus registry is
// created; the global default registry is not used.
//
// cfg is expected to have already passed through config.ApplyDefaults, which
// sets Namespace and DurationBuckets; NewCollector only fills in a defensive
// fallback if those are still zero-valued.
//
// Example:
//
//	var cfg config.Config
//	config.ApplyDefaults(&cfg)
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = "eunomia"
	}
	if len(cfg.DurationBuckets) == 0 {
		cfg.DurationBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}
	}

	c := &Collector{
		config:             cfg,
		registry:           registry,
		cardinalityLimiter: NewCardinalityLimiter(10000), // Max 10K unique label sets
	}

	c.bundleMetrics = NewBundleMetrics(cfg, registry)
	c.instanceMetrics = NewInstanceMetrics(cfg, registry)
	c.analysisMetrics = NewAnalysisMetrics(cfg, registry)
	c.cacheMetrics = NewCacheMetrics(cfg, registry)

	return c
}

// RecordBundleOperation records metrics for a completed compile, push, or
// pull operation.
//
// Parameters:
//   - service: bundle service namespace (e.g. "checkout-policy")
//   - operation: "compile", "push", or "pull"
//   - result: "success", "error", or "rejected"
//   - duration: total operation duration
//   - sizeBytes: compiled bundle size, 0 if unknown (e.g. a failed compile)
func (c *Collector) RecordBundleOperation(service, operation, result string, duration time.Duration, sizeBytes int) {
	if !c.config.Enabled {
		return
	}

	labelSet := fmt.Sprintf("bundle:%s:%s:%s", service, operation, result)
	if !c.cardinalityLimiter.Allow(labelSet) {
		// Aggregate into "other" to prevent cardinality explosion from a
		// runaway number of distinct bundle services.
		service = "other"
	}

	c.bundleMetrics.RecordOperation(service, operation, result, duration)
	if sizeBytes > 0 {
		c.bundleMetrics.RecordSize(service, sizeBytes)
	}
}

// RecordInstanceLatency records the latency of an apply call to an
// enforcement instance.
func (c *Collector) RecordInstanceLatency(instanceID, bundle string, latencySeconds float64) {
	if !c.config.Enabled {
		return
	}

	c.instanceMetrics.RecordLatency(instanceID, bundle, latencySeconds)
}

// UpdateInstanceHealth updates the health status of an enforcement instance.
//
// The health metric is a gauge where 1=healthy, 0=unhealthy.
func (c *Collector) UpdateInstanceHealth(instanceID string, healthy bool) {
	if !c.config.Enabled {
		return
	}

	c.instanceMetrics.UpdateHealth(instanceID, healthy)
}

// RecordInstanceError records an apply error from an instance.
//
// Parameters:
//   - instanceID: enforcement instance identifier
//   - errorType: "timeout", "unavailable", "rejected", or "version_mismatch"
func (c *Collector) RecordInstanceError(instanceID, errorType string) {
	if !c.config.Enabled {
		return
	}

	c.instanceMetrics.RecordError(instanceID, errorType)
}

// RecordInstanceApply records an apply call issued to an instance.
func (c *Collector) RecordInstanceApply(instanceID, bundle string) {
	if !c.config.Enabled {
		return
	}

	c.instanceMetrics.RecordApply(instanceID, bundle)
}

// RecordAnalysis records metrics for a static analysis run.
//
// Parameters:
//   - service: bundle service namespace being analyzed
//   - analyzer: analyzer name
//   - result: "pass", "warn", or "fail"
//   - duration: analyzer run duration
func (c *Collector) RecordAnalysis(service, analyzer, result string, duration time.Duration) {
	if !c.config.Enabled {
		return
	}

	c.analysisMetrics.RecordEvaluation(service, analyzer, result, duration)
}

// RecordAnalysisWarning records a warning raised by an analyzer.
func (c *Collector) RecordAnalysisWarning(service, analyzer string) {
	if !c.config.Enabled {
		return
	}

	c.analysisMetrics.RecordWarning(service, analyzer)
}

// RecordAnalysisError records an error raised by an analyzer.
func (c *Collector) RecordAnalysisError(service, analyzer string) {
	if !c.config.Enabled {
		return
	}

	c.analysisMetrics.RecordError(service, analyzer)
}

// RecordCacheHit records a cache hit.
//
// Parameters:
//   - cacheName: Name of the cache (e.g., "registry_blob", "bundle")
func (c *Collector) RecordCacheHit(cacheName string) {
	if !c.config.Enabled {
		return
	}

	c.cacheMetrics.RecordHit(cacheName)
}

// RecordCacheMiss records a cache miss.
//
// Parameters:
//   - cacheName: Name of the cache
func (c *Collector) RecordCacheMiss(cacheName string) {
	if !c.config.Enabled {
		return
	}

	c.cacheMetrics.RecordMiss(cacheName)
}

// UpdateCacheSize updates the current size of a cache.
//
// Parameters:
//   - cacheName: Name of the cache
//   - size: Current number of entries in the cache
func (c *Collector) UpdateCacheSize(cacheName string, size int) {
	if !c.config.Enabled {
		return
	}

	c.cacheMetrics.UpdateSize(cacheName, size)
}

// Registry returns the Prometheus registry used by this collector.
// This can be used to create an HTTP handler for the /metrics endpoint:
//
//	http.Handle("/metrics", promhttp.HandlerFor(
//		collector.Registry(),
//		promhttp.HandlerOpts{},
//	))
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label combinations per metric.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow checks if a label set is allowed. Returns true if the label set
// already exists or if we haven't reached the cardinality limit yet.
// Returns false if adding this label set would exceed the limit.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[labelSet]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	// Double-check after acquiring write lock
	if _, exists := cl.current[labelSet]; exists {
		return true
	}

	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[labelSet] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
