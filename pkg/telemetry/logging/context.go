package logging

import (
	"context"
)

// Context keys for common log fields.
type contextKey string

const (
	// RequestIDKey is the context key for request IDs.
	RequestIDKey contextKey = "request_id"

	// InstanceIDKey is the context key for enforcement instance IDs.
	InstanceIDKey contextKey = "instance_id"

	// UserKey is the context key for the operator identifier driving a CLI
	// command or API call.
	UserKey contextKey = "user"

	// NamespaceKey is the context key for the registry namespace a bundle
	// belongs to.
	NamespaceKey contextKey = "namespace"

	// BundleKey is the context key for a bundle name.
	BundleKey contextKey = "bundle"

	// VersionKey is the context key for a bundle version.
	VersionKey contextKey = "version"

	// DeploymentIDKey is the context key for a rollout's deployment ID.
	DeploymentIDKey contextKey = "deployment_id"

	// TraceIDKey is the context key for trace IDs.
	TraceIDKey contextKey = "trace_id"

	// SpanIDKey is the context key for span IDs.
	SpanIDKey contextKey = "span_id"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithInstanceID adds an enforcement instance ID to the context.
func WithInstanceID(ctx context.Context, instanceID string) context.Context {
	return context.WithValue(ctx, InstanceIDKey, instanceID)
}

// GetInstanceID retrieves the enforcement instance ID from the context.
func GetInstanceID(ctx context.Context) string {
	if instanceID, ok := ctx.Value(InstanceIDKey).(string); ok {
		return instanceID
	}
	return ""
}

// WithUser adds an operator identifier to the context.
func WithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, UserKey, user)
}

// GetUser retrieves the operator identifier from the context.
func GetUser(ctx context.Context) string {
	if user, ok := ctx.Value(UserKey).(string); ok {
		return user
	}
	return ""
}

// WithNamespace adds a registry namespace to the context.
func WithNamespace(ctx context.Context, namespace string) context.Context {
	return context.WithValue(ctx, NamespaceKey, namespace)
}

// GetNamespace retrieves the registry namespace from the context.
func GetNamespace(ctx context.Context) string {
	if namespace, ok := ctx.Value(NamespaceKey).(string); ok {
		return namespace
	}
	return ""
}

// WithBundle adds a bundle name to the context.
func WithBundle(ctx context.Context, bundle string) context.Context {
	return context.WithValue(ctx, BundleKey, bundle)
}

// GetBundle retrieves the bundle name from the context.
func GetBundle(ctx context.Context) string {
	if bundle, ok := ctx.Value(BundleKey).(string); ok {
		return bundle
	}
	return ""
}

// WithVersion adds a bundle version to the context.
func WithVersion(ctx context.Context, version string) context.Context {
	return context.WithValue(ctx, VersionKey, version)
}

// GetVersion retrieves the bundle version from the context.
func GetVersion(ctx context.Context) string {
	if version, ok := ctx.Value(VersionKey).(string); ok {
		return version
	}
	return ""
}

// WithDeploymentID adds a rollout's deployment ID to the context.
func WithDeploymentID(ctx context.Context, deploymentID string) context.Context {
	return context.WithValue(ctx, DeploymentIDKey, deploymentID)
}

// GetDeploymentID retrieves the deployment ID from the context.
func GetDeploymentID(ctx context.Context) string {
	if deploymentID, ok := ctx.Value(DeploymentIDKey).(string); ok {
		return deploymentID
	}
	return ""
}

// WithTraceID adds a trace ID to the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID retrieves the trace ID from the context.
func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// WithSpanID adds a span ID to the context.
func WithSpanID(ctx context.Context, spanID string) context.Context {
	return context.WithValue(ctx, SpanIDKey, spanID)
}

// GetSpanID retrieves the span ID from the context.
func GetSpanID(ctx context.Context) string {
	if spanID, ok := ctx.Value(SpanIDKey).(string); ok {
		return spanID
	}
	return ""
}

// extractContextFields extracts common fields from context for logging.
// Returns a slice of key-value pairs suitable for logger.With().
func extractContextFields(ctx context.Context) []any {
	var fields []any

	if requestID := GetRequestID(ctx); requestID != "" {
		fields = append(fields, "request_id", requestID)
	}

	if instanceID := GetInstanceID(ctx); instanceID != "" {
		fields = append(fields, "instance_id", instanceID)
	}

	if user := GetUser(ctx); user != "" {
		fields = append(fields, "user", user)
	}

	if namespace := GetNamespace(ctx); namespace != "" {
		fields = append(fields, "namespace", namespace)
	}

	if bundle := GetBundle(ctx); bundle != "" {
		fields = append(fields, "bundle", bundle)
	}

	if version := GetVersion(ctx); version != "" {
		fields = append(fields, "version", version)
	}

	if deploymentID := GetDeploymentID(ctx); deploymentID != "" {
		fields = append(fields, "deployment_id", deploymentID)
	}

	if traceID := GetTraceID(ctx); traceID != "" {
		fields = append(fields, "trace_id", traceID)
	}

	if spanID := GetSpanID(ctx); spanID != "" {
		fields = append(fields, "span_id", spanID)
	}

	return fields
}

// ContextLogger is a logger that automatically includes context fields.
type ContextLogger struct {
	logger *Logger
	ctx    context.Context
}

// NewContextLogger creates a logger that automatically includes context fields.
func NewContextLogger(logger *Logger, ctx context.Context) *ContextLogger {
	return &ContextLogger{
		logger: logger.WithContext(ctx),
		ctx:    ctx,
	}
}

// Debug logs a debug message with context fields.
func (cl *ContextLogger) Debug(msg string, args ...any) {
	cl.logger.DebugContext(cl.ctx, msg, args...)
}

// Info logs an info message with context fields.
func (cl *ContextLogger) Info(msg string, args ...any) {
	cl.logger.InfoContext(cl.ctx, msg, args...)
}

// Warn logs a warning message with context fields.
func (cl *ContextLogger) Warn(msg string, args ...any) {
	cl.logger.WarnContext(cl.ctx, msg, args...)
}

// Error logs an error message with context fields.
func (cl *ContextLogger) Error(msg string, args ...any) {
	cl.logger.ErrorContext(cl.ctx, msg, args...)
}

// With creates a new context logger with additional fields.
func (cl *ContextLogger) With(args ...any) *ContextLogger {
	return &ContextLogger{
		logger: cl.logger.With(args...),
		ctx:    cl.ctx,
	}
}
