// Package sampling drives status reads against the agent: a readiness
// gate that waits for the first good read, and a fixed-cadence loop that
// accumulates samples over a wall-clock window.
package sampling

import (
	"context"
	"time"

	"github.com/ripor/slocheck/internal/agent"
)

// Fetcher performs a single status read.
type Fetcher interface {
	Fetch(ctx context.Context) (*agent.StatusSnapshot, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context) (*agent.StatusSnapshot, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context) (*agent.StatusSnapshot, error) {
	return f(ctx)
}

// sleepWithContext waits for d or until ctx is done. It reports whether the
// full duration elapsed.
func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
