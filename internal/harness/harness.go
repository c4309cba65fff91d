// Package harness runs one idle measurement end to end: acquire the agent,
// wait for it to answer, sample it, and evaluate the samples.
package harness

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ripor/slocheck/internal/agent"
	"github.com/ripor/slocheck/internal/config"
	"github.com/ripor/slocheck/internal/events"
	"github.com/ripor/slocheck/internal/lifecycle"
	"github.com/ripor/slocheck/internal/otel"
	"github.com/ripor/slocheck/internal/sampling"
	"github.com/ripor/slocheck/internal/slo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// releaseSlack is added to the stop grace period to bound teardown.
const releaseSlack = 5 * time.Second

// Deps are the collaborators of a run. Zero values are replaced by
// defaults derived from the configuration.
type Deps struct {
	Logger   *events.EventLogger
	Provider *otel.Provider
	// Fetcher reads the agent status. Defaults to an agent.Reader on the
	// configured panel URL.
	Fetcher sampling.Fetcher
	// Manager owns the agent process. Defaults to a Manager built from the
	// configuration.
	Manager *lifecycle.Manager
}

// Outcome is a completed measurement.
type Outcome struct {
	Result *slo.Result
	Series *sampling.Series
}

// Run performs one measurement and returns its result. Setup failures and
// interruption return an error and no result.
func Run(ctx context.Context, cfg *config.Config, deps Deps) (*slo.Result, error) {
	out, err := RunDetailed(ctx, cfg, deps)
	if err != nil {
		return nil, err
	}
	return out.Result, nil
}

// RunDetailed is Run that also returns the accepted samples.
func RunDetailed(ctx context.Context, cfg *config.Config, deps Deps) (*Outcome, error) {
	r := newRunner(cfg, deps)
	return r.run(ctx)
}

type runner struct {
	cfg     *config.Config
	runID   string
	logger  *events.EventLogger
	tracer  *otel.Tracer
	metrics *otel.Metrics
	fetcher sampling.Fetcher
	manager *lifecycle.Manager
}

func newRunner(cfg *config.Config, deps Deps) *runner {
	r := &runner{cfg: cfg, logger: deps.Logger, fetcher: deps.Fetcher, manager: deps.Manager}
	if r.logger == nil {
		r.logger = events.GetGlobalEventLogger()
	}
	r.runID = r.logger.RunID()
	if r.runID == "" {
		r.runID = uuid.NewString()
	}

	provider := deps.Provider
	if provider == nil {
		provider = &otel.Provider{Tracer: otel.GetGlobalTracer(), Metrics: otel.GetGlobalMetrics()}
	}
	r.tracer = provider.Tracer
	r.metrics = provider.Metrics

	if r.fetcher == nil {
		r.fetcher = agent.NewReader(cfg.PanelURL, cfg.ReadTimeout)
	}
	if r.manager == nil {
		opts := lifecycle.OptionsFromConfig(cfg)
		opts.RunID = r.runID
		opts.Logger = r.logger
		opts.Tracer = r.tracer
		opts.Metrics = r.metrics
		r.manager = lifecycle.NewManager(opts)
	}
	return r
}

func (r *runner) run(ctx context.Context) (*Outcome, error) {
	ctx, span := r.tracer.StartPhaseSpan(ctx, r.runID, otel.PhaseRun,
		attribute.Bool("slocheck.use_running", r.cfg.UseRunning),
	)
	defer span.End()

	traceID, _ := otel.GetTraceInfo(ctx)
	r.logger.LogRunStarted(r.cfg.UseRunning, traceID)

	handle, err := r.acquire(ctx)
	if err != nil {
		r.fail(span, err, "acquire")
		return nil, err
	}
	defer r.release(handle)

	snap, err := r.waitReady(ctx)
	if err != nil {
		r.fail(span, err, "readiness")
		return nil, err
	}
	span.SetAttributes(
		attribute.String("slocheck.device_id", snap.DeviceID),
		attribute.String("slocheck.agent_version", snap.AgentVersion),
	)

	probe := r.newProbe(ctx, handle)
	series, procSamples, probeFails, err := r.sample(ctx, probe)
	if err != nil {
		r.fail(span, err, "sampling")
		return nil, err
	}

	result := r.evaluate(ctx, snap, series)
	if probe != nil {
		result.Process = slo.SummarizeProcess(probe.PID(), procSamples, probeFails)
	}
	span.SetAttributes(attribute.Bool("slocheck.pass", result.Pass))
	return &Outcome{Result: result, Series: series}, nil
}

func (r *runner) fail(span trace.Span, err error, phase string) {
	otel.RecordError(span, err, phase, false)
	r.logger.LogFatal(err)
}

func (r *runner) acquire(ctx context.Context) (*lifecycle.Handle, error) {
	if r.cfg.UseRunning {
		return nil, r.manager.Skip()
	}
	return r.manager.Acquire(ctx)
}

// release stops an owned agent. It uses its own context so teardown also
// runs after the run context was cancelled.
func (r *runner) release(h *lifecycle.Handle) {
	if h == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.StopGrace+releaseSlack)
	defer cancel()
	_ = h.Release(ctx)
}

func (r *runner) waitReady(ctx context.Context) (*agent.StatusSnapshot, error) {
	ctx, span := r.tracer.StartPhaseSpan(ctx, r.runID, otel.PhaseReadiness,
		attribute.String("slocheck.state_url", r.cfg.StateURL()),
	)
	defer span.End()

	gate := &sampling.Gate{
		Fetcher: r.fetcher,
		Timeout: r.cfg.ReadyTimeout,
		Backoff: r.cfg.ReadyBackoff,
		OnRetry: func(attempt int, err error) {
			r.metrics.RecordReadFailure(ctx, "readiness")
			otel.RecordRetry(span, attempt, err.Error())
		},
	}

	start := time.Now()
	snap, err := gate.Wait(ctx)
	waitMs := time.Since(start).Milliseconds()
	r.metrics.RecordReadinessWait(ctx, float64(waitMs))
	if err != nil {
		return nil, err
	}
	r.logger.LogAgentReady(snap.DeviceID, snap.AgentVersion, waitMs)
	return snap, nil
}

func (r *runner) newProbe(ctx context.Context, h *lifecycle.Handle) *agent.ProcessProbe {
	if h == nil {
		return nil
	}
	probe, err := agent.NewProcessProbe(ctx, h.PID())
	if err != nil {
		r.logger.LogProbeFailed(h.PID(), err)
		return nil
	}
	return probe
}

func (r *runner) sample(ctx context.Context, probe *agent.ProcessProbe) (*sampling.Series, []agent.ProcessMetrics, int, error) {
	ctx, span := r.tracer.StartPhaseSpan(ctx, r.runID, otel.PhaseSampling,
		attribute.Float64("slocheck.duration_s", r.cfg.Duration.Seconds()),
		attribute.Float64("slocheck.interval_s", r.cfg.Interval.Seconds()),
	)
	defer span.End()

	r.logger.LogMeasurementStarted(r.cfg.Duration.Seconds(), r.cfg.Interval.Seconds())

	var procSamples []agent.ProcessMetrics
	probeFails := 0
	sampler := &sampling.Sampler{
		Fetcher:  r.fetcher,
		Duration: r.cfg.Duration,
		Interval: r.cfg.Interval,
		OnSample: func(_ int, snap *agent.StatusSnapshot) {
			r.metrics.RecordSample(ctx, snap.CPUPct, snap.MemMB)
			if probe == nil {
				return
			}
			pm, err := probe.Observe(ctx)
			if err != nil {
				probeFails++
				r.logger.LogProbeFailed(probe.PID(), err)
				return
			}
			procSamples = append(procSamples, *pm)
			r.metrics.RecordProcessSample(ctx, pm.PID, pm.CPUPercent, pm.RSSMB)
		},
		OnFailure: func(tick int, err error) {
			r.logger.LogReadFailed(tick, err)
			r.metrics.RecordReadFailure(ctx, "sampling")
		},
	}

	series, err := sampler.Run(ctx)
	if err != nil {
		return nil, nil, 0, err
	}
	span.SetAttributes(
		attribute.Int("slocheck.samples", len(series.Samples)),
		attribute.Int("slocheck.failed_reads", series.Failed),
	)
	return series, procSamples, probeFails, nil
}

func (r *runner) evaluate(ctx context.Context, snap *agent.StatusSnapshot, series *sampling.Series) *slo.Result {
	ctx, span := r.tracer.StartPhaseSpan(ctx, r.runID, otel.PhaseEvaluate)
	defer span.End()

	result := slo.Evaluate(series.CPU(), series.Mem(), r.cfg.CPUThresholdPct, r.cfg.MemThresholdMB)
	result.IntervalS = r.cfg.Interval.Seconds()
	result.DurationS = r.cfg.Duration.Seconds()
	result.RunID = r.runID
	result.DeviceID = snap.DeviceID
	result.AgentVersion = snap.AgentVersion
	result.FailedReads = series.Failed

	host, err := agent.HostContext(ctx)
	if err != nil {
		r.logger.LogProbeFailed(0, err)
	} else {
		result.Host = host
	}

	r.metrics.RecordEvaluation(ctx, result.Pass)
	r.logger.LogResult(result.Samples, result.FailedReads, result.CPU.P95, result.Mem.P95, result.Pass)
	return &result
}
