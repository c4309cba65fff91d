package otel

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const testTraceparent = "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"

func newStdoutTracer(t *testing.T) *Tracer {
	t.Helper()
	ctx := context.Background()
	tracer, err := NewTracer(ctx, Config{Exporter: ExporterStdout, Version: "test"})
	if err != nil {
		t.Fatalf("NewTracer failed: %v", err)
	}
	t.Cleanup(func() { tracer.Shutdown(ctx) })
	return tracer
}

func TestConfigEnabled(t *testing.T) {
	tests := map[ExporterType]bool{
		"":               false,
		ExporterNone:     false,
		ExporterStdout:   true,
		ExporterOTLPGRPC: true,
		ExporterOTLPHTTP: true,
	}
	for exporter, want := range tests {
		if got := (Config{Exporter: exporter}).Enabled(); got != want {
			t.Errorf("Config{Exporter: %q}.Enabled() = %v, want %v", exporter, got, want)
		}
	}
}

func TestNewTracerUnknownExporter(t *testing.T) {
	if _, err := NewTracer(context.Background(), Config{Exporter: "zipkin"}); err == nil {
		t.Fatal("expected error for unknown exporter")
	}
}

func TestTracerShutdownTwice(t *testing.T) {
	ctx := context.Background()
	tracer, err := NewTracer(ctx, Config{Exporter: ExporterStdout})
	if err != nil {
		t.Fatalf("NewTracer failed: %v", err)
	}
	if err := tracer.Shutdown(ctx); err != nil {
		t.Errorf("first Shutdown failed: %v", err)
	}
	if err := tracer.Shutdown(ctx); err != nil {
		t.Errorf("second Shutdown failed: %v", err)
	}
}

func TestNewTracerDisabled(t *testing.T) {
	ctx := context.Background()

	tracer, err := NewTracer(ctx, Config{})
	if err != nil {
		t.Fatalf("NewTracer failed: %v", err)
	}
	defer tracer.Shutdown(ctx)

	if tracer.Enabled() {
		t.Error("expected tracer to be disabled")
	}

	_, span := tracer.StartPhaseSpan(ctx, "run-1", PhaseSampling)
	defer span.End()
	if span.SpanContext().IsValid() {
		t.Error("expected no-op span from disabled tracer")
	}
}

func TestStartPhaseSpan(t *testing.T) {
	tracer := newStdoutTracer(t)

	ctx, span := tracer.StartPhaseSpan(context.Background(), "run-1", PhaseReadiness,
		attribute.String("slocheck.url", "http://127.0.0.1:49219/state"))
	defer span.End()

	sc := span.SpanContext()
	if !sc.HasTraceID() || !sc.HasSpanID() {
		t.Fatal("expected recording span with trace and span IDs")
	}

	traceID, spanID := GetTraceInfo(ctx)
	if traceID != sc.TraceID().String() || spanID != sc.SpanID().String() {
		t.Errorf("GetTraceInfo = %s/%s, want %s/%s", traceID, spanID, sc.TraceID(), sc.SpanID())
	}
}

func TestGetTraceInfoNoSpan(t *testing.T) {
	traceID, spanID := GetTraceInfo(context.Background())
	if traceID != "" || spanID != "" {
		t.Errorf("expected empty IDs, got %q/%q", traceID, spanID)
	}
}

func TestRecordErrorAndRetryNilSafe(t *testing.T) {
	RecordError(nil, errors.New("boom"), "read", true)
	RecordRetry(nil, 1, "connection refused")

	tracer := newStdoutTracer(t)
	_, span := tracer.StartSpan(context.Background(), "op")
	RecordError(span, nil, "read", false)
	RecordError(span, errors.New("boom"), "read", true)
	RecordRetry(span, 2, "connection refused")
	span.End()
}

func TestGlobalTracer(t *testing.T) {
	defer SetGlobalTracer(nil)

	SetGlobalTracer(nil)
	if g := GetGlobalTracer(); g == nil || g.Enabled() {
		t.Fatal("expected disabled fallback tracer")
	}

	tracer := newStdoutTracer(t)
	SetGlobalTracer(tracer)
	if GetGlobalTracer() != tracer {
		t.Error("expected installed tracer")
	}
}

func TestMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for name, tracer := range map[string]*Tracer{"nil": nil, "noop": NoopTracer()} {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Middleware(tracer)(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/state", nil))
			if rec.Code != http.StatusOK {
				t.Errorf("expected status 200, got %d", rec.Code)
			}
		})
	}
}

func TestMiddlewareWithTraceparent(t *testing.T) {
	tracer := newStdoutTracer(t)

	var capturedTraceID string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedTraceID = trace.SpanFromContext(r.Context()).SpanContext().TraceID().String()
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	req := httptest.NewRequest(http.MethodGet, "/state", nil)
	req.Header.Set("traceparent", testTraceparent)
	rec := httptest.NewRecorder()
	Middleware(tracer)(handler).ServeHTTP(rec, req)

	if capturedTraceID != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("expected trace ID from header, got %q", capturedTraceID)
	}
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status not passed through: %d", rec.Code)
	}
}

func TestInjectHeaders(t *testing.T) {
	tracer := newStdoutTracer(t)

	ctx, span := tracer.StartSpan(context.Background(), "fetch")
	defer span.End()

	headers := http.Header{}
	InjectHeaders(ctx, headers, tracer)
	want := "00-" + span.SpanContext().TraceID().String() + "-" + span.SpanContext().SpanID().String() + "-01"
	if got := headers.Get("traceparent"); got != want {
		t.Fatalf("traceparent = %q, want %q", got, want)
	}

	disabled := http.Header{}
	InjectHeaders(ctx, disabled, NoopTracer())
	if disabled.Get("traceparent") != "" {
		t.Error("expected no traceparent header from a disabled tracer")
	}
}

func TestStartClientSpan(t *testing.T) {
	tracer := newStdoutTracer(t)

	req := httptest.NewRequest(http.MethodGet, "http://127.0.0.1:49219/state", nil)
	end := StartClientSpan(tracer, req)
	if req.Header.Get("traceparent") == "" {
		t.Fatal("expected traceparent header on the outgoing request")
	}
	end(http.StatusOK, nil)

	noopReq := httptest.NewRequest(http.MethodGet, "http://127.0.0.1:49219/state", nil)
	StartClientSpan(NoopTracer(), noopReq)(0, errors.New("refused"))
	if noopReq.Header.Get("traceparent") != "" {
		t.Error("expected no traceparent header from a disabled tracer")
	}
}

func TestClientAndServerShareTrace(t *testing.T) {
	tracer := newStdoutTracer(t)

	var serverTraceID string
	srv := httptest.NewServer(Middleware(tracer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		serverTraceID = trace.SpanFromContext(r.Context()).SpanContext().TraceID().String()
	})))
	defer srv.Close()

	ctx, parent := tracer.StartSpan(context.Background(), "sampling")
	defer parent.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/state", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	end := StartClientSpan(tracer, req)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	end(resp.StatusCode, nil)

	if serverTraceID != parent.SpanContext().TraceID().String() {
		t.Errorf("server trace %s, want %s", serverTraceID, parent.SpanContext().TraceID())
	}
}

func TestParseExporterType(t *testing.T) {
	tests := map[string]ExporterType{
		"":          ExporterNone,
		"none":      ExporterNone,
		"STDOUT":    ExporterStdout,
		"otlp-grpc": ExporterOTLPGRPC,
		"otlp-http": ExporterOTLPHTTP,
	}
	for in, want := range tests {
		got, err := ParseExporterType(in)
		if err != nil || got != want {
			t.Errorf("ParseExporterType(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseExporterType("zipkin"); err == nil {
		t.Error("expected error for unknown exporter")
	}
}

func TestSetupNone(t *testing.T) {
	defer SetGlobalTracer(nil)
	defer SetGlobalMetrics(nil)

	ctx := context.Background()
	p, err := Setup(ctx, Config{Exporter: ExporterNone, Version: "test"})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	if p.Tracer.Enabled() || p.Metrics.Enabled() {
		t.Error("expected disabled tracer and metrics")
	}
	if err := p.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestSetupStdout(t *testing.T) {
	defer SetGlobalTracer(nil)
	defer SetGlobalMetrics(nil)

	ctx := context.Background()
	p, err := Setup(ctx, Config{Exporter: ExporterStdout, Insecure: true, Version: "test"})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	if !p.Tracer.Enabled() || !p.Metrics.Enabled() {
		t.Error("expected enabled tracer and metrics")
	}
	if GetGlobalTracer() != p.Tracer || GetGlobalMetrics() != p.Metrics {
		t.Error("expected Setup to install the globals")
	}
	if err := p.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestNoopProviderShutdown(t *testing.T) {
	if err := NoopProvider().Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}
