package sampling

import (
	"context"
	"time"

	"github.com/ripor/slocheck/internal/agent"
)

// Sample is the part of a status read kept for statistics.
type Sample struct {
	CPUPct float64
	MemMB  float64
	Offset time.Duration
}

// Series is the outcome of one sampling window, in tick order.
type Series struct {
	Samples []Sample
	Ticks   int
	Failed  int
	Elapsed time.Duration
}

// CPU returns the CPU values in tick order.
func (s *Series) CPU() []float64 {
	out := make([]float64, len(s.Samples))
	for i, sample := range s.Samples {
		out[i] = sample.CPUPct
	}
	return out
}

// Mem returns the memory values in tick order.
func (s *Series) Mem() []float64 {
	out := make([]float64, len(s.Samples))
	for i, sample := range s.Samples {
		out[i] = sample.MemMB
	}
	return out
}

// Sampler reads the agent status once per Interval until Duration of
// wall-clock time has passed. A failed read skips its tick; it is never
// retried and never extends the window.
type Sampler struct {
	Fetcher  Fetcher
	Duration time.Duration
	Interval time.Duration

	// OnSample is called after each successful read.
	OnSample func(tick int, snap *agent.StatusSnapshot)
	// OnFailure is called after each failed read.
	OnFailure func(tick int, err error)
}

// Run executes the sampling window. Cancelling ctx aborts the window and
// returns ctx.Err() without a series.
func (s *Sampler) Run(ctx context.Context) (*Series, error) {
	start := time.Now()
	end := start.Add(s.Duration)
	series := &Series{}

	for tick := 0; time.Now().Before(end); tick++ {
		series.Ticks++

		snap, err := s.Fetcher.Fetch(ctx)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if err != nil {
			series.Failed++
			if s.OnFailure != nil {
				s.OnFailure(tick, err)
			}
		} else {
			series.Samples = append(series.Samples, Sample{
				CPUPct: snap.CPUPct,
				MemMB:  snap.MemMB,
				Offset: time.Since(start),
			})
			if s.OnSample != nil {
				s.OnSample(tick, snap)
			}
		}

		if !sleepWithContext(ctx, s.Interval) {
			return nil, ctx.Err()
		}
	}

	series.Elapsed = time.Since(start)
	return series, nil
}
