package otel

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Phase names a step of a measurement run.
type Phase string

const (
	PhaseRun       Phase = "run"
	PhaseBuild     Phase = "build"
	PhaseLaunch    Phase = "launch"
	PhaseReadiness Phase = "readiness"
	PhaseSampling  Phase = "sampling"
	PhaseEvaluate  Phase = "evaluate"
	PhaseTeardown  Phase = "teardown"
)

// Tracer starts the spans of a run. A disabled Tracer hands out no-op spans.
type Tracer struct {
	enabled  bool
	provider trace.TracerProvider
	tracer   trace.Tracer

	shutdownOnce sync.Once
	shutdown     func(context.Context) error
	shutdownErr  error
}

// NewTracer builds a Tracer exporting every span through cfg.Exporter.
func NewTracer(ctx context.Context, cfg Config) (*Tracer, error) {
	if !cfg.Enabled() {
		return NoopTracer(), nil
	}

	exporter, err := newSpanExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create span exporter: %w", err)
	}
	res, err := newResource(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	return &Tracer{
		enabled:  true,
		provider: tp,
		tracer:   tp.Tracer(serviceName),
		shutdown: tp.Shutdown,
	}, nil
}

// NoopTracer returns a disabled Tracer.
func NoopTracer() *Tracer {
	tp := noop.NewTracerProvider()
	return &Tracer{provider: tp, tracer: tp.Tracer(serviceName)}
}

// Enabled reports whether spans are exported.
func (t *Tracer) Enabled() bool {
	return t.enabled
}

// Shutdown flushes pending spans. Later calls return the first result.
func (t *Tracer) Shutdown(ctx context.Context) error {
	t.shutdownOnce.Do(func() {
		if t.shutdown != nil {
			t.shutdownErr = t.shutdown(ctx)
		}
	})
	return t.shutdownErr
}

// StartSpan starts a span with the given name and options.
func (t *Tracer) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}

// StartPhaseSpan starts the span "slocheck.<phase>" tagged with the run ID.
func (t *Tracer) StartPhaseSpan(ctx context.Context, runID string, phase Phase, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := make([]attribute.KeyValue, 0, len(attrs)+2)
	all = append(all,
		attribute.String("slocheck.run_id", runID),
		attribute.String("slocheck.phase", string(phase)),
	)
	all = append(all, attrs...)
	return t.tracer.Start(ctx, "slocheck."+string(phase), trace.WithAttributes(all...))
}

// RecordError records err on span with its category.
func RecordError(span trace.Span, err error, errorType string, retryable bool) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err, trace.WithAttributes(
		attribute.String("error.type", errorType),
		attribute.Bool("error.retryable", retryable),
	))
}

// RecordRetry adds a retry event to span.
func RecordRetry(span trace.Span, attempt int, reason string) {
	if span == nil {
		return
	}
	span.AddEvent("retry", trace.WithAttributes(
		attribute.Int("retry.attempt", attempt),
		attribute.String("retry.reason", reason),
	))
}

// GetTraceInfo returns the trace and span IDs of the span in ctx, or empty
// strings when there is none.
func GetTraceInfo(ctx context.Context) (traceID, spanID string) {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		traceID = sc.TraceID().String()
	}
	if sc.HasSpanID() {
		spanID = sc.SpanID().String()
	}
	return traceID, spanID
}

var (
	globalTracer atomic.Pointer[Tracer]
	noopTracer   = NoopTracer()
)

// SetGlobalTracer installs t as the process tracer. nil restores the
// disabled tracer.
func SetGlobalTracer(t *Tracer) {
	globalTracer.Store(t)
	if t != nil && t.enabled {
		otel.SetTracerProvider(t.provider)
		otel.SetTextMapPropagator(propagator)
	}
}

// GetGlobalTracer returns the process tracer, disabled when none is set.
func GetGlobalTracer() *Tracer {
	if t := globalTracer.Load(); t != nil {
		return t
	}
	return noopTracer
}
