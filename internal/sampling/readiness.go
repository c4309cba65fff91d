package sampling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ripor/slocheck/internal/agent"
)

// ErrReadinessTimeout matches any *ReadinessError.
var ErrReadinessTimeout = errors.New("agent did not become ready")

// ReadinessError reports that no status read succeeded within the timeout.
type ReadinessError struct {
	Timeout  time.Duration
	Attempts int
	LastErr  error
}

func (e *ReadinessError) Error() string {
	msg := fmt.Sprintf("agent did not answer within %s after %d attempts", e.Timeout, e.Attempts)
	if e.LastErr != nil {
		return fmt.Sprintf("%s: %v", msg, e.LastErr)
	}
	return msg
}

func (e *ReadinessError) Unwrap() error {
	return e.LastErr
}

// Is reports ErrReadinessTimeout as a match.
func (e *ReadinessError) Is(target error) bool {
	return target == ErrReadinessTimeout
}

// Gate waits until the agent answers a status read.
type Gate struct {
	Fetcher Fetcher
	Timeout time.Duration
	Backoff time.Duration

	// OnRetry is called after every failed attempt.
	OnRetry func(attempt int, err error)
}

// Wait retries Fetch until it succeeds or Timeout of wall-clock time has
// passed. At least one attempt is always made.
func (g *Gate) Wait(ctx context.Context) (*agent.StatusSnapshot, error) {
	backoff := g.Backoff
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}

	start := time.Now()
	attempts := 0
	for {
		attempts++
		snap, err := g.Fetcher.Fetch(ctx)
		if err == nil {
			return snap, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if g.OnRetry != nil {
			g.OnRetry(attempts, err)
		}

		if time.Since(start) >= g.Timeout {
			return nil, &ReadinessError{Timeout: g.Timeout, Attempts: attempts, LastErr: err}
		}
		if !sleepWithContext(ctx, backoff) {
			return nil, ctx.Err()
		}
	}
}

// WaitReady is a shorthand for a Gate with the default backoff.
func WaitReady(ctx context.Context, f Fetcher, timeout time.Duration) (*agent.StatusSnapshot, error) {
	g := &Gate{Fetcher: f, Timeout: timeout}
	return g.Wait(ctx)
}
