package tracing

import (
	"context"
	"testing"

	"github.com/eunomia-sh/eunomia/pkg/config"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  *config.TracingConfig
		wantErr bool
	}{
		{
			name:    "nil config",
			config:  nil,
			wantErr: true,
		},
		{
			name:   "disabled tracing",
			config: &config.TracingConfig{Enabled: false},
		},
		{
			name:   "enabled, always sampler via ratio 1.0",
			config: &config.TracingConfig{Enabled: true, Endpoint: "localhost:4317", SampleRatio: 1.0},
		},
		{
			name:   "enabled, never sampler via ratio 0.0",
			config: &config.TracingConfig{Enabled: true, Endpoint: "localhost:4317", SampleRatio: 0.0},
		},
		{
			name:   "enabled, ratio sampler",
			config: &config.TracingConfig{Enabled: true, Endpoint: "localhost:4317", SampleRatio: 0.5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracer, err := New(tt.config, "eunomia-test")
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err == nil {
				if tracer == nil {
					t.Fatal("New() returned nil tracer without error")
				}
				if tracer.Enabled() != tt.config.Enabled {
					t.Errorf("tracer.Enabled() = %v, want %v", tracer.Enabled(), tt.config.Enabled)
				}
				if err := tracer.Shutdown(context.Background()); err != nil {
					t.Errorf("Shutdown() error = %v", err)
				}
			}
		})
	}
}

func newDisabledTracer(t *testing.T) *Tracer {
	t.Helper()
	tracer, err := New(&config.TracingConfig{Enabled: false}, "eunomia-test")
	if err != nil {
		t.Fatalf("failed to create tracer: %v", err)
	}
	t.Cleanup(func() { tracer.Shutdown(context.Background()) })
	return tracer
}

func TestTracer_Start(t *testing.T) {
	tracer := newDisabledTracer(t)
	ctx := context.Background()

	ctx, span := tracer.Start(ctx, "test-operation")
	if span == nil {
		t.Error("Start() returned nil span")
	}
	span.End()

	ctx, span = tracer.Start(ctx, "test-operation-with-attrs",
		trace.WithAttributes(attribute.String("test.key", "test.value")),
	)
	if span == nil {
		t.Error("Start() returned nil span")
	}
	span.End()

	ctx, parentSpan := tracer.Start(ctx, "parent-operation")
	_, childSpan := tracer.Start(ctx, "child-operation")
	childSpan.End()
	parentSpan.End()
}

func TestTracer_Shutdown(t *testing.T) {
	tests := []struct {
		name    string
		enabled bool
	}{
		{name: "shutdown disabled tracer", enabled: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.TracingConfig{Enabled: tt.enabled}
			tracer, err := New(cfg, "eunomia-test")
			if err != nil {
				t.Fatalf("failed to create tracer: %v", err)
			}
			ctx, span := tracer.Start(context.Background(), "test-operation")
			span.End()
			if err := tracer.Shutdown(ctx); err != nil {
				t.Errorf("Shutdown() error = %v", err)
			}
		})
	}
}

func TestSpanFromContext(t *testing.T) {
	tracer := newDisabledTracer(t)
	ctx := context.Background()

	span := SpanFromContext(ctx)
	if span == nil {
		t.Error("SpanFromContext() returned nil")
	}

	ctx, createdSpan := tracer.Start(ctx, "test-operation")
	if SpanFromContext(ctx) == nil {
		t.Error("SpanFromContext() returned nil")
	}
	createdSpan.End()
}

func TestContextWithSpan(t *testing.T) {
	tracer := newDisabledTracer(t)
	_, span := tracer.Start(context.Background(), "test-operation")
	defer span.End()

	newCtx := ContextWithSpan(context.Background(), span)
	if SpanFromContext(newCtx) == nil {
		t.Error("SpanFromContext() returned nil after ContextWithSpan()")
	}
}

func TestSpanContext(t *testing.T) {
	tracer := newDisabledTracer(t)
	ctx := context.Background()

	if SpanContext(ctx).IsValid() {
		t.Error("SpanContext() returned valid context with no span")
	}

	_, span := tracer.Start(ctx, "test-operation")
	defer span.End()
	_ = SpanContext(ctx)
}

func TestTraceID(t *testing.T) {
	tracer := newDisabledTracer(t)
	ctx := context.Background()

	if TraceID(ctx) != "" {
		t.Errorf("TraceID() = %q, want empty string", TraceID(ctx))
	}

	_, span := tracer.Start(ctx, "test-operation")
	defer span.End()
	_ = TraceID(ctx)
}

func TestSpanID(t *testing.T) {
	tracer := newDisabledTracer(t)
	ctx := context.Background()

	if SpanID(ctx) != "" {
		t.Errorf("SpanID() = %q, want empty string", SpanID(ctx))
	}

	_, span := tracer.Start(ctx, "test-operation")
	defer span.End()
	_ = SpanID(ctx)
}

func TestIsSampled(t *testing.T) {
	tracer := newDisabledTracer(t)
	ctx := context.Background()

	if IsSampled(ctx) {
		t.Error("IsSampled() = true, want false with no span")
	}

	_, span := tracer.Start(ctx, "test-operation")
	defer span.End()
	_ = IsSampled(ctx)
}

func TestSetError(t *testing.T) {
	tracer := newDisabledTracer(t)
	_, span := tracer.Start(context.Background(), "test-operation")
	defer span.End()

	SetError(span, nil)
	SetError(span, context.DeadlineExceeded)
}

func TestSetStatus(t *testing.T) {
	tracer := newDisabledTracer(t)
	_, span := tracer.Start(context.Background(), "test-operation")
	defer span.End()

	SetStatus(span, nil)
	SetStatus(span, context.DeadlineExceeded)
}

func TestTracer_SpanAttributes(t *testing.T) {
	tracer := newDisabledTracer(t)
	_, span := tracer.Start(context.Background(), "test-operation")
	defer span.End()

	span.SetAttributes(
		attribute.String("string.key", "value"),
		attribute.Int("int.key", 42),
		attribute.Float64("float64.key", 3.14),
		attribute.Bool("bool.key", true),
	)
}

func TestTracer_SpanEvents(t *testing.T) {
	tracer := newDisabledTracer(t)
	_, span := tracer.Start(context.Background(), "test-operation")
	defer span.End()

	span.AddEvent("test-event")
	span.AddEvent("test-event-with-attrs",
		trace.WithAttributes(attribute.String("event.key", "event.value")),
	)
}

func TestTracer_RecordError(t *testing.T) {
	tracer := newDisabledTracer(t)
	_, span := tracer.Start(context.Background(), "test-operation")
	defer span.End()
	span.RecordError(context.DeadlineExceeded)
}

func TestTracer_SetStatus(t *testing.T) {
	tracer := newDisabledTracer(t)
	_, span := tracer.Start(context.Background(), "test-operation")
	defer span.End()

	span.SetStatus(codes.Ok, "success")
	span.SetStatus(codes.Error, "failed")
}
