package otel

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics records the measurements of a run. A disabled Metrics has no
// instruments and every recorder is a no-op.
type Metrics struct {
	enabled        bool
	meter          metric.Meter
	lifecycleState atomic.Int64
	stateReg       metric.Registration

	shutdownOnce sync.Once
	shutdown     func(context.Context) error
	shutdownErr  error

	agentCPU       metric.Float64Histogram
	agentMemory    metric.Float64Histogram
	processCPU     metric.Float64Histogram
	processRSS     metric.Float64Histogram
	readFailures   metric.Int64Counter
	readinessWait  metric.Float64Histogram
	evaluationPass metric.Int64Counter
}

// NewMetrics builds a Metrics exporting periodically through cfg.Exporter.
func NewMetrics(ctx context.Context, cfg Config) (*Metrics, error) {
	if !cfg.Enabled() {
		return NoopMetrics(), nil
	}

	exporter, err := newMetricExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics exporter: %w", err)
	}
	res, err := newResource(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics resource: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	)
	m := &Metrics{
		enabled:  true,
		meter:    mp.Meter(serviceName),
		shutdown: mp.Shutdown,
	}
	if err := m.registerInstruments(); err != nil {
		_ = mp.Shutdown(ctx)
		return nil, fmt.Errorf("failed to register metric instruments: %w", err)
	}
	otel.SetMeterProvider(mp)
	return m, nil
}

// NoopMetrics returns a disabled Metrics.
func NoopMetrics() *Metrics {
	return &Metrics{}
}

// registerInstruments creates and registers all metric instruments.
func (m *Metrics) registerInstruments() error {
	var err error

	// Self-reported agent CPU
	m.agentCPU, err = m.meter.Float64Histogram(
		"slocheck.agent.cpu",
		metric.WithDescription("Agent CPU usage as reported by its status endpoint"),
		metric.WithUnit("%"),
	)
	if err != nil {
		return fmt.Errorf("failed to create agent cpu histogram: %w", err)
	}

	// Self-reported agent memory
	m.agentMemory, err = m.meter.Float64Histogram(
		"slocheck.agent.memory",
		metric.WithDescription("Agent resident memory as reported by its status endpoint"),
		metric.WithUnit("MBy"),
	)
	if err != nil {
		return fmt.Errorf("failed to create agent memory histogram: %w", err)
	}

	// Externally observed process CPU
	m.processCPU, err = m.meter.Float64Histogram(
		"slocheck.process.cpu",
		metric.WithDescription("Agent process CPU usage observed by the harness"),
		metric.WithUnit("%"),
	)
	if err != nil {
		return fmt.Errorf("failed to create process cpu histogram: %w", err)
	}

	// Externally observed process RSS
	m.processRSS, err = m.meter.Float64Histogram(
		"slocheck.process.rss",
		metric.WithDescription("Agent process resident set size observed by the harness"),
		metric.WithUnit("MBy"),
	)
	if err != nil {
		return fmt.Errorf("failed to create process rss histogram: %w", err)
	}

	// Failed status reads with phase attribute
	m.readFailures, err = m.meter.Int64Counter(
		"slocheck.reads.failed",
		metric.WithDescription("Count of failed status reads by phase"),
	)
	if err != nil {
		return fmt.Errorf("failed to create read failure counter: %w", err)
	}

	// Time until the agent answered
	m.readinessWait, err = m.meter.Float64Histogram(
		"slocheck.readiness.wait",
		metric.WithDescription("Time from start of readiness wait until the first successful read"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return fmt.Errorf("failed to create readiness histogram: %w", err)
	}

	// Evaluations with pass attribute
	m.evaluationPass, err = m.meter.Int64Counter(
		"slocheck.evaluations",
		metric.WithDescription("Count of SLO evaluations by outcome"),
	)
	if err != nil {
		return fmt.Errorf("failed to create evaluation counter: %w", err)
	}

	// Agent lifecycle observable gauge
	stateGauge, err := m.meter.Int64ObservableGauge(
		"slocheck.lifecycle.state",
		metric.WithDescription("Current agent lifecycle state index"),
	)
	if err != nil {
		return fmt.Errorf("failed to create lifecycle gauge: %w", err)
	}

	// Register callback for lifecycle gauge
	m.stateReg, err = m.meter.RegisterCallback(
		func(_ context.Context, o metric.Observer) error {
			o.ObserveInt64(stateGauge, m.lifecycleState.Load())
			return nil
		},
		stateGauge,
	)
	if err != nil {
		return fmt.Errorf("failed to register lifecycle gauge callback: %w", err)
	}

	return nil
}

// RecordSample records one self-reported agent sample.
func (m *Metrics) RecordSample(ctx context.Context, cpuPct, memMB float64) {
	if m.agentCPU == nil || m.agentMemory == nil {
		return
	}

	m.agentCPU.Record(ctx, cpuPct)
	m.agentMemory.Record(ctx, memMB)
}

// RecordProcessSample records one externally observed process sample.
func (m *Metrics) RecordProcessSample(ctx context.Context, pid int, cpuPct, rssMB float64) {
	if m.processCPU == nil || m.processRSS == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.Int("pid", pid))
	m.processCPU.Record(ctx, cpuPct, attrs)
	m.processRSS.Record(ctx, rssMB, attrs)
}

// RecordReadFailure counts a failed status read in the given phase
// ("readiness" or "sampling").
func (m *Metrics) RecordReadFailure(ctx context.Context, phase string) {
	if m.readFailures == nil {
		return
	}

	m.readFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("phase", phase),
	))
}

// RecordReadinessWait records how long the agent took to become ready.
func (m *Metrics) RecordReadinessWait(ctx context.Context, waitMs float64) {
	if m.readinessWait == nil {
		return
	}

	m.readinessWait.Record(ctx, waitMs)
}

// RecordEvaluation counts an SLO evaluation outcome.
func (m *Metrics) RecordEvaluation(ctx context.Context, pass bool) {
	if m.evaluationPass == nil {
		return
	}

	m.evaluationPass.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("pass", pass),
	))
}

// SetLifecycleState sets the current lifecycle state index for the observable gauge.
// This is thread-safe and will be read by the gauge callback.
func (m *Metrics) SetLifecycleState(stateIndex int) {
	m.lifecycleState.Store(int64(stateIndex))
}

// Shutdown unregisters the lifecycle gauge and flushes pending metrics.
// Later calls return the first result.
func (m *Metrics) Shutdown(ctx context.Context) error {
	m.shutdownOnce.Do(func() {
		if m.stateReg != nil {
			if err := m.stateReg.Unregister(); err != nil {
				m.shutdownErr = fmt.Errorf("failed to unregister lifecycle callback: %w", err)
				return
			}
		}
		if m.shutdown != nil {
			m.shutdownErr = m.shutdown(ctx)
		}
	})
	return m.shutdownErr
}

// Enabled reports whether metrics are exported.
func (m *Metrics) Enabled() bool {
	return m.enabled
}

var (
	globalMetrics atomic.Pointer[Metrics]
	noopMetrics   = NoopMetrics()
)

// SetGlobalMetrics installs m as the process metrics. nil restores the
// disabled metrics.
func SetGlobalMetrics(m *Metrics) {
	globalMetrics.Store(m)
}

// GetGlobalMetrics returns the process metrics, disabled when none is set.
func GetGlobalMetrics() *Metrics {
	if m := globalMetrics.Load(); m != nil {
		return m
	}
	return noopMetrics
}
