package tracing

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span Attribute Helpers
//
// These functions provide a convenient way to set common attributes on
// spans across eunomia's compile/sign/push/pull/rollout paths. They use
// OpenTelemetry semantic conventions where applicable and a custom
// "eunomia.*" namespace for domain-specific attributes.

// Common attribute keys used throughout the system
const (
	// Bundle attributes
	AttrService        = "eunomia.service"
	AttrBundleVersion   = "eunomia.bundle.version"
	AttrBundleDigest    = "eunomia.bundle.digest"
	AttrBundleSizeBytes = "eunomia.bundle.size_bytes"

	// Signature attributes
	AttrKeyID = "eunomia.signature.key_id"

	// Deployment attributes
	AttrDeploymentID = "eunomia.deployment.id"
	AttrStrategy     = "eunomia.deployment.strategy"
	AttrBatchIndex   = "eunomia.deployment.batch_index"
	AttrInstanceID   = "eunomia.instance.id"

	// Policy attributes
	AttrPolicyPackage = "eunomia.policy.package"
	AttrPolicyRule    = "eunomia.policy.rule"
	AttrPolicyAction  = "eunomia.policy.action"

	// Cache attributes
	AttrCacheHit  = "eunomia.cache.hit"
	AttrCacheName = "eunomia.cache.name"

	// Error attributes
	AttrErrorType    = "eunomia.error.type"
	AttrErrorMessage = "error.message"

	// Performance attributes
	AttrDuration   = "eunomia.duration_ms"
	AttrRetryCount = "eunomia.retry_count"
)

// SetBundleAttributes sets service/version/digest attributes on a span, for
// compile, push, and pull spans.
func SetBundleAttributes(span trace.Span, service, version, digest string) {
	attrs := []attribute.KeyValue{
		attribute.String(AttrService, service),
		attribute.String(AttrBundleVersion, version),
	}
	if digest != "" {
		attrs = append(attrs, attribute.String(AttrBundleDigest, digest))
	}
	span.SetAttributes(attrs...)
}

// SetBundleSizeAttribute records a pushed or pulled bundle's archive size.
func SetBundleSizeAttribute(span trace.Span, sizeBytes int64) {
	span.SetAttributes(attribute.Int64(AttrBundleSizeBytes, sizeBytes))
}

// SetSignatureAttributes records which signing key produced or verified a
// bundle's envelope.
func SetSignatureAttributes(span trace.Span, keyID string) {
	if keyID != "" {
		span.SetAttributes(attribute.String(AttrKeyID, keyID))
	}
}

// SetDeploymentAttributes sets rollout-identifying attributes on a span.
func SetDeploymentAttributes(span trace.Span, deploymentID, service, strategy string) {
	span.SetAttributes(
		attribute.String(AttrDeploymentID, deploymentID),
		attribute.String(AttrService, service),
		attribute.String(AttrStrategy, strategy),
	)
}

// SetBatchAttributes records which batch of a rollout a span covers.
func SetBatchAttributes(span trace.Span, index, size int) {
	span.SetAttributes(
		attribute.Int(AttrBatchIndex, index),
		attribute.Int("eunomia.deployment.batch_size", size),
	)
}

// SetInstanceAttribute records the enforcement instance a span's Apply or
// Status RPC targeted.
func SetInstanceAttribute(span trace.Span, instanceID string) {
	if instanceID != "" {
		span.SetAttributes(attribute.String(AttrInstanceID, instanceID))
	}
}

// SetPolicyAttributes sets Rego package/rule/action attributes on a span,
// for analyzer and optimizer spans that inspect a specific rule.
func SetPolicyAttributes(span trace.Span, packageName, ruleName, action string) {
	span.SetAttributes(
		attribute.String(AttrPolicyPackage, packageName),
		attribute.String(AttrPolicyRule, ruleName),
		attribute.String(AttrPolicyAction, action),
	)
}

// SetCacheAttributes sets cache-related attributes on a span.
//
// Example:
//
//	SetCacheAttributes(span, true, "registry-pull-cache")
func SetCacheAttributes(span trace.Span, hit bool, cacheName string) {
	span.SetAttributes(
		attribute.Bool(AttrCacheHit, hit),
		attribute.String(AttrCacheName, cacheName),
	)
}

// SetErrorAttributes sets error-related attributes on a span.
// This also records the error using span.RecordError() and sets the span status.
func SetErrorAttributes(span trace.Span, err error, errorType string) {
	if err == nil {
		return
	}
	span.SetAttributes(
		attribute.Bool("error", true),
		attribute.String(AttrErrorType, errorType),
		attribute.String(AttrErrorMessage, err.Error()),
	)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetDurationAttribute sets the duration attribute on a span, in milliseconds.
func SetDurationAttribute(span trace.Span, durationMs int64) {
	span.SetAttributes(attribute.Int64(AttrDuration, durationMs))
}

// SetRetryAttribute sets the retry count attribute on a span.
func SetRetryAttribute(span trace.Span, retryCount int) {
	span.SetAttributes(attribute.Int(AttrRetryCount, retryCount))
}

// AddEvent adds a named event to the span with optional attributes.
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// RecordException records an exception event on the span.
func RecordException(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
}

// AttributeBuilder provides a fluent interface for building span attributes.
type AttributeBuilder struct {
	attrs []attribute.KeyValue
}

// NewAttributeBuilder creates a new attribute builder.
func NewAttributeBuilder() *AttributeBuilder {
	return &AttributeBuilder{attrs: make([]attribute.KeyValue, 0, 8)}
}

// WithBundle adds service/version attributes.
func (ab *AttributeBuilder) WithBundle(service, version string) *AttributeBuilder {
	ab.attrs = append(ab.attrs,
		attribute.String(AttrService, service),
		attribute.String(AttrBundleVersion, version),
	)
	return ab
}

// WithDeployment adds deployment-identifying attributes.
func (ab *AttributeBuilder) WithDeployment(deploymentID, strategy string) *AttributeBuilder {
	ab.attrs = append(ab.attrs,
		attribute.String(AttrDeploymentID, deploymentID),
		attribute.String(AttrStrategy, strategy),
	)
	return ab
}

// WithInstance adds an instance ID attribute.
func (ab *AttributeBuilder) WithInstance(instanceID string) *AttributeBuilder {
	ab.attrs = append(ab.attrs, attribute.String(AttrInstanceID, instanceID))
	return ab
}

// WithPolicy adds policy attributes.
func (ab *AttributeBuilder) WithPolicy(packageName, ruleName, action string) *AttributeBuilder {
	ab.attrs = append(ab.attrs,
		attribute.String(AttrPolicyPackage, packageName),
		attribute.String(AttrPolicyRule, ruleName),
		attribute.String(AttrPolicyAction, action),
	)
	return ab
}

// WithCache adds cache attributes.
func (ab *AttributeBuilder) WithCache(hit bool, cacheName string) *AttributeBuilder {
	ab.attrs = append(ab.attrs,
		attribute.Bool(AttrCacheHit, hit),
		attribute.String(AttrCacheName, cacheName),
	)
	return ab
}

// WithCustom adds a custom attribute.
func (ab *AttributeBuilder) WithCustom(key string, value interface{}) *AttributeBuilder {
	switch v := value.(type) {
	case string:
		ab.attrs = append(ab.attrs, attribute.String(key, v))
	case int:
		ab.attrs = append(ab.attrs, attribute.Int(key, v))
	case int64:
		ab.attrs = append(ab.attrs, attribute.Int64(key, v))
	case float64:
		ab.attrs = append(ab.attrs, attribute.Float64(key, v))
	case bool:
		ab.attrs = append(ab.attrs, attribute.Bool(key, v))
	default:
		ab.attrs = append(ab.attrs, attribute.String(key, fmt.Sprintf("%v", v)))
	}
	return ab
}

// Build returns the built attributes as a trace.SpanStartOption.
func (ab *AttributeBuilder) Build() trace.SpanStartOption {
	return trace.WithAttributes(ab.attrs...)
}

// Apply applies the attributes to a span.
func (ab *AttributeBuilder) Apply(span trace.Span) {
	span.SetAttributes(ab.attrs...)
}

// Attributes returns the raw attribute slice.
func (ab *AttributeBuilder) Attributes() []attribute.KeyValue {
	return ab.attrs
}
