package otel

import (
	"context"
	"errors"
)

// Provider bundles the tracer and metrics of one process.
type Provider struct {
	Tracer  *Tracer
	Metrics *Metrics
}

// Setup builds a tracer and metrics pair from cfg and installs them as the
// process globals.
func Setup(ctx context.Context, cfg Config) (*Provider, error) {
	tracer, err := NewTracer(ctx, cfg)
	if err != nil {
		return nil, err
	}
	metrics, err := NewMetrics(ctx, cfg)
	if err != nil {
		_ = tracer.Shutdown(ctx)
		return nil, err
	}

	SetGlobalTracer(tracer)
	SetGlobalMetrics(metrics)
	return &Provider{Tracer: tracer, Metrics: metrics}, nil
}

// NoopProvider returns a Provider whose tracer and metrics do nothing.
func NoopProvider() *Provider {
	return &Provider{Tracer: NoopTracer(), Metrics: NoopMetrics()}
}

// Shutdown flushes and stops both the tracer and the metrics provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	return errors.Join(p.Metrics.Shutdown(ctx), p.Tracer.Shutdown(ctx))
}
