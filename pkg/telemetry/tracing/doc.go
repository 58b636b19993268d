// Package tracing provides OpenTelemetry distributed tracing for eunomia.
//
// # Overview
//
// The tracing package implements W3C Trace Context propagation, span
// creation, and trace export over OTLP. It gives visibility into a bundle's
// path through compile, sign, push, pull, and rollout, and into a
// distributor's RPC calls to enforcement instances.
//
// # Trace Context Propagation
//
// The package implements W3C Trace Context (https://www.w3.org/TR/trace-context/)
// for propagating trace context across the distributor's HTTP and gRPC
// boundaries:
//
//	traceparent: 00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01
//	tracestate: congo=t61rcWkgMzE
//
// # Sampling Strategies
//
// Three sampling strategies are supported and are selected automatically
// from config.TracingConfig.SampleRatio:
//   - always: ratio >= 1 (development/debugging)
//   - never: ratio <= 0 (tracing effectively disabled)
//   - ratio: 0 < ratio < 1 (production)
//
// # Usage
//
//	cfg := &config.TracingConfig{
//	    Enabled:     true,
//	    Endpoint:    "localhost:4317",
//	    SampleRatio: 0.1,
//	}
//	tracer, err := tracing.New(cfg, "eunomia-distributor")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tracer.Shutdown(context.Background())
//
//	ctx, span := tracer.Start(ctx, "bundle.compile")
//	defer span.End()
//	tracing.SetBundleAttributes(span, "users", "1.0.0", digest)
//
// # Span Hierarchy
//
// A deploy's spans form a hierarchy representing the rollout:
//
//	rollout.deploy (12s)
//	├── registry.pull (200ms)
//	├── sign.verify (5ms)
//	├── rollout.batch[0] (3s)
//	│   ├── instance.apply[i1] (1.1s)
//	│   └── instance.apply[i2] (1.2s)
//	├── rollout.soak[0] (30s)
//	└── rollout.batch[1] (3s)
//
// # HTTP Integration
//
// Extract trace context from incoming HTTP requests:
//
//	ctx := tracing.Extract(r.Context(), r.Header)
//	ctx, span := tracer.Start(ctx, "handle_request")
//	defer span.End()
//
// Inject trace context into outgoing HTTP requests, such as an OCI registry
// push or pull:
//
//	req, _ := http.NewRequestWithContext(ctx, "POST", url, body)
//	tracing.Inject(ctx, req.Header)
//
// # Trace Exporter
//
// eunomia's config surface exposes a single OTLP gRPC exporter:
//
//	telemetry:
//	  tracing:
//	    enabled: true
//	    endpoint: localhost:4317
//	    sample_ratio: 0.1
//
// # Attribute Helpers
//
// Common attributes can be set using helper functions:
//
//	tracing.SetBundleAttributes(span, service, version, digest)
//	tracing.SetDeploymentAttributes(span, deploymentID, service, strategy)
//	tracing.SetPolicyAttributes(span, packageName, ruleName, action)
//	tracing.SetErrorAttributes(span, err, "verification_failed")
package tracing
