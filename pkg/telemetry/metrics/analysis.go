package metrics

import (
	"time"

	"github.com/eunomia-sh/eunomia/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// AnalysisMetrics tracks metrics related to static policy analysis, as run
// by the validate pipeline against a bundle's Rego source before it is
// allowed to compile.
//
// Metrics:
//   - eunomia_analysis_evaluations_total: Total analyzer runs by service and result
//   - eunomia_analysis_duration_seconds: Analyzer run duration
//   - eunomia_analysis_warnings_total: Number of warnings an analyzer raised
//   - eunomia_analysis_errors_total: Number of errors an analyzer raised
type AnalysisMetrics struct {
	// Total analyzer evaluations
	evaluationsTotal *prometheus.CounterVec

	// Analyzer evaluation duration histogram
	evaluationDuration *prometheus.HistogramVec

	// Warnings raised (evaluation proceeds but flags a concern)
	warningsTotal *prometheus.CounterVec

	// Errors raised (evaluation fails the bundle)
	errorsTotal *prometheus.CounterVec
}

// NewAnalysisMetrics creates and registers analysis metrics with the provided registry.
func NewAnalysisMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *AnalysisMetrics {
	am := &AnalysisMetrics{
		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "analysis_evaluations_total",
				Help:      "Total number of static policy analysis runs",
			},
			[]string{"service", "analyzer", "result"},
		),

		evaluationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "analysis_duration_seconds",
				Help:      "Duration of static policy analysis in seconds",
				// Analysis passes run at linting speed, not request speed.
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~2s
			},
			[]string{"service", "analyzer"},
		),

		warningsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "analysis_warnings_total",
				Help:      "Total number of warnings raised during static policy analysis",
			},
			[]string{"service", "analyzer"},
		),

		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "analysis_errors_total",
				Help:      "Total number of errors raised during static policy analysis",
			},
			[]string{"service", "analyzer"},
		),
	}

	registry.MustRegister(
		am.evaluationsTotal,
		am.evaluationDuration,
		am.warningsTotal,
		am.errorsTotal,
	)

	return am
}

// RecordEvaluation records an analyzer run against a bundle's source.
//
// Parameters:
//   - service: bundle service namespace being analyzed
//   - analyzer: analyzer name (e.g. "unsafe-builtin", "default-rule")
//   - result: "pass", "warn", or "fail"
//   - duration: time taken to run the analyzer
func (am *AnalysisMetrics) RecordEvaluation(service, analyzer, result string, duration time.Duration) {
	am.evaluationsTotal.WithLabelValues(service, analyzer, result).Inc()
	am.evaluationDuration.WithLabelValues(service, analyzer).Observe(duration.Seconds())
}

// RecordWarning records a warning raised by an analyzer.
func (am *AnalysisMetrics) RecordWarning(service, analyzer string) {
	am.warningsTotal.WithLabelValues(service, analyzer).Inc()
}

// RecordError records an error raised by an analyzer.
func (am *AnalysisMetrics) RecordError(service, analyzer string) {
	am.errorsTotal.WithLabelValues(service, analyzer).Inc()
}
